package advisor

import (
	"errors"
	"net/http"

	"github.com/ChakraFleet/ChakraFleet/internal/common/middleware"
	"github.com/ChakraFleet/ChakraFleet/internal/job"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/ChakraFleet/ChakraFleet/internal/vehicle"
	"github.com/gin-gonic/gin"
)

// Handler 指派建议接口（仅管理员，路由级 RBAC 控制）。
type Handler struct {
	client   *Client
	jobs     *job.Repo
	users    *user.Repo
	vehicles *vehicle.Repo
}

func NewHandler(client *Client, jobs *job.Repo, users *user.Repo, vehicles *vehicle.Repo) *Handler {
	return &Handler{client: client, jobs: jobs, users: users, vehicles: vehicles}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/advisor/suggest", h.suggest)
}

type suggestRequest struct {
	JobDescription string `json:"jobDescription" binding:"required"`
}

// suggest 汇总候选司机、候选车辆与历史完成任务，转发给建议服务。
// 返回前校验建议目标仍然存在，悬空建议直接剔除。
func (h *Handler) suggest(c *gin.Context) {
	if !h.client.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrDisabled.Error()})
		return
	}
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	users, err := h.users.ListAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	vehicles, err := h.vehicles.ListAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	allJobs, err := h.jobs.ListAll(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := SuggestRequest{JobDescription: req.JobDescription}
	driverIDs := make(map[string]bool)
	for _, u := range users {
		if !u.IsDriver() {
			continue
		}
		driverIDs[u.ID] = true
		out.Drivers = append(out.Drivers, DriverCandidate{
			ID:           u.ID,
			Name:         u.Name,
			Availability: u.Availability,
			Location:     u.CurrentLocation,
			PastJobIDs:   u.PastJobsSlice(),
		})
	}
	vehicleIDs := make(map[string]bool)
	for _, v := range vehicles {
		vehicleIDs[v.ID] = true
		out.Vehicles = append(out.Vehicles, VehicleCandidate{
			ID:       v.ID,
			Name:     v.Name,
			Status:   string(v.Status),
			Location: v.Location,
			Type:     v.Type,
			Capacity: v.Capacity,
		})
	}
	for i := range allJobs {
		if allJobs[i].Status != job.StatusCompleted {
			continue
		}
		out.Historical = append(out.Historical, HistoricalJob{
			Title:            allJobs[i].Title,
			DriverID:         allJobs[i].AssignedDriverID,
			VehicleID:        allJobs[i].AssignedVehicleID,
			KilometersDriven: allJobs[i].KilometersDriven,
		})
	}

	suggestion, err := h.client.Suggest(ctx, out)
	if err != nil {
		if errors.Is(err, middleware.ErrCircuitOpen) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisor temporarily unavailable"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	// 建议的 id 可能已经失效，悬空就清掉对应建议
	if suggestion.SuggestedDriverID != "" && !driverIDs[suggestion.SuggestedDriverID] {
		suggestion.SuggestedDriverID = ""
		suggestion.DriverReason = ""
	}
	if suggestion.SuggestedVehicleID != "" && !vehicleIDs[suggestion.SuggestedVehicleID] {
		suggestion.SuggestedVehicleID = ""
		suggestion.VehicleReason = ""
	}
	c.JSON(http.StatusOK, suggestion)
}
