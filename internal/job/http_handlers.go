package job

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ChakraFleet/ChakraFleet/internal/activity"
	"github.com/ChakraFleet/ChakraFleet/internal/common/server"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ActivityLister 单个任务历史的读取能力。
type ActivityLister interface {
	ListByJob(ctx context.Context, jobID string) ([]activity.Log, error)
}

// Handler 任务相关 HTTP 接口。
type Handler struct {
	svc  *Service
	logs ActivityLister
	// SSE 轮询/心跳间隔，零值用默认（测试会调小）
	feedTick      time.Duration
	feedHeartbeat time.Duration
}

func NewHandler(svc *Service, logs ActivityLister) *Handler {
	return &Handler{svc: svc, logs: logs}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	jobs := r.Group("/api/jobs")
	{
		jobs.POST("", h.create)
		jobs.GET("", h.list)
		jobs.GET("/:id", h.get)
		jobs.GET("/:id/actions", h.actions)
		jobs.GET("/:id/activity", h.activityByJob)
		jobs.POST("/:id/claim", h.claim)
		jobs.POST("/:id/assign", h.assign)
		jobs.POST("/:id/reject", h.reject)
		jobs.POST("/:id/start-transit", h.startTransit)
		jobs.POST("/:id/complete", h.complete)
		jobs.POST("/:id/archive", h.archive)
		jobs.POST("/:id/unarchive", h.unarchive)
		jobs.DELETE("/:id", h.deletePermanent)
		// 批量清空归档区挂在集合路径上，避免与 /:id 冲突
		jobs.DELETE("", h.deleteAllArchived)
	}
}

// principalFrom 从认证上下文取出操作者；拿不到就 401。
func principalFrom(c *gin.Context) (Principal, bool) {
	ai, ok := server.AuthFromContext(c)
	if !ok || ai.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return Principal{}, false
	}
	return Principal{ID: ai.Subject, Role: user.Role(ai.PrimaryRole())}, true
}

// writeError 把领域错误翻译成 HTTP 状态码：
// 参数错 400、权限/归属错 403、不存在 404、状态机冲突 409。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type createRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

func (h *Handler) create(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	j, err := h.svc.Create(c.Request.Context(), actor, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Origin:      req.Origin,
		Destination: req.Destination,
		Date:        req.Date,
		Time:        req.Time,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, j)
}

// parseListOptions 解析 status=a,b / view=unclaimed / q=search。
func parseListOptions(c *gin.Context) ListOptions {
	opts := ListOptions{
		UnclaimedView: c.Query("view") == "unclaimed",
		Search:        strings.TrimSpace(c.Query("q")),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := Status(strings.TrimSpace(s))
			if ValidStatus(st) {
				opts.Statuses = append(opts.Statuses, st)
			}
		}
	}
	return opts
}

func (h *Handler) list(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	jobs, err := h.svc.List(c.Request.Context(), actor, parseListOptions(c))
	if err != nil {
		writeError(c, err)
		return
	}
	resolver, err := h.svc.ResolveNames(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, newJobView(&jobs[i], resolver))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views, "total": len(views)})
}

// jobView 列表视图：在模型之上补充解析出的展示名。
type jobView struct {
	Job
	SupervisorName string `json:"supervisorName,omitempty"`
	CreatorName    string `json:"creatorName,omitempty"`
}

func newJobView(j *Job, r *NameResolver) jobView {
	v := jobView{Job: *j}
	v.SupervisorName = r.UserName(j.SupervisorID)
	v.CreatorName = r.UserName(j.CreatorID)
	// 冗余名可能因目录变更而过期，列表展示时重新解析
	if j.AssignedDriverID != "" {
		v.DriverName = r.UserName(j.AssignedDriverID)
	}
	if j.AssignedVehicleID != "" {
		v.VehicleName = r.VehicleName(j.AssignedVehicleID)
	}
	return v
}

func (h *Handler) get(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	j, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// actions 返回该操作者当前对这条任务可执行的动作。
func (h *Handler) actions(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	j, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	actions := PermittedActions(actor.Role, j.Status)
	if actor.Role == user.RoleDriver && j.AssignedDriverID != actor.ID {
		actions = nil
	}
	if actions == nil {
		actions = []Action{}
	}
	c.JSON(http.StatusOK, gin.H{"status": j.Status, "actions": actions})
}

// activityByJob 单个任务的历史。先过任务可见范围（司机只能看自己的
// 任务，调度员只能看本人或待认领的），再解析操作者展示名。
func (h *Handler) activityByJob(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	j, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	logs, err := h.logs.ListByJob(c.Request.Context(), j.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	resolver, err := h.svc.ResolveNames(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]activity.View, 0, len(logs))
	for i := range logs {
		views = append(views, activity.NewView(&logs[i], resolver.UserName))
	}
	c.JSON(http.StatusOK, gin.H{"logs": views})
}

func (h *Handler) claim(c *gin.Context) {
	h.transition(c, func(actor Principal, id string) (*Job, error) {
		return h.svc.Claim(c.Request.Context(), actor, id)
	})
}

type assignRequest struct {
	DriverID  string `json:"driverId" binding:"required"`
	VehicleID string `json:"vehicleId" binding:"required"`
}

func (h *Handler) assign(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	j, err := h.svc.Assign(c.Request.Context(), actor, c.Param("id"), AssignInput{
		DriverID:  req.DriverID,
		VehicleID: req.VehicleID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *Handler) reject(c *gin.Context) {
	h.transition(c, func(actor Principal, id string) (*Job, error) {
		return h.svc.Reject(c.Request.Context(), actor, id)
	})
}

func (h *Handler) startTransit(c *gin.Context) {
	h.transition(c, func(actor Principal, id string) (*Job, error) {
		return h.svc.StartTransit(c.Request.Context(), actor, id)
	})
}

type completeRequest struct {
	Rounds     int     `json:"rounds" binding:"required"`
	KmPerRound float64 `json:"kmPerRound" binding:"required"`
}

func (h *Handler) complete(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	j, err := h.svc.Complete(c.Request.Context(), actor, c.Param("id"), CompleteInput{
		Rounds:     req.Rounds,
		KmPerRound: req.KmPerRound,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *Handler) archive(c *gin.Context) {
	h.transition(c, func(actor Principal, id string) (*Job, error) {
		return h.svc.Archive(c.Request.Context(), actor, id)
	})
}

func (h *Handler) unarchive(c *gin.Context) {
	h.transition(c, func(actor Principal, id string) (*Job, error) {
		return h.svc.Unarchive(c.Request.Context(), actor, id)
	})
}

func (h *Handler) transition(c *gin.Context, fn func(Principal, string) (*Job, error)) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	j, err := fn(actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *Handler) deletePermanent(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	if err := h.svc.DeletePermanent(c.Request.Context(), actor, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) deleteAllArchived(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	n, err := h.svc.DeleteAllArchived(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
