package vehicle

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler 车辆与车型词表的 HTTP 接口（路由级 RBAC 已限定为管理员）。
type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	vehicles := r.Group("/api/vehicles")
	{
		vehicles.GET("", h.list)
		vehicles.POST("", h.create)
		vehicles.GET("/:id", h.get)
		vehicles.PUT("/:id", h.update)
		vehicles.DELETE("/:id", h.delete)
	}

	types := r.Group("/api/vehicle-types")
	{
		types.GET("", h.listTypes)
		types.POST("", h.createType)
		types.DELETE("/:id", h.deleteType)
	}
}

type vehicleRequest struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Capacity string `json:"capacity"`
	Status   string `json:"status"`
	Location string `json:"location"`
}

func (h *Handler) create(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 车型必须在受控词表中
	ok, err := h.repo.TypeExists(c.Request.Context(), strings.TrimSpace(req.Type))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown vehicle type: " + req.Type})
		return
	}

	st := Status(strings.TrimSpace(req.Status))
	if st == "" {
		st = StatusAvailable
	}
	if !ValidStatus(st) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + req.Status})
		return
	}

	v := &Vehicle{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(req.Name),
		Type:     strings.TrimSpace(req.Type),
		Capacity: strings.TrimSpace(req.Capacity),
		Status:   st,
		Location: strings.TrimSpace(req.Location),
	}
	if err := h.repo.Upsert(c.Request.Context(), v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"vehicle": v})
}

func (h *Handler) update(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Type != "" && req.Type != v.Type {
		ok, err := h.repo.TypeExists(c.Request.Context(), strings.TrimSpace(req.Type))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown vehicle type: " + req.Type})
			return
		}
		v.Type = strings.TrimSpace(req.Type)
	}
	if req.Name != "" {
		v.Name = strings.TrimSpace(req.Name)
	}
	if req.Capacity != "" {
		v.Capacity = strings.TrimSpace(req.Capacity)
	}
	if req.Location != "" {
		v.Location = strings.TrimSpace(req.Location)
	}
	if req.Status != "" {
		st := Status(strings.TrimSpace(req.Status))
		if !ValidStatus(st) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + req.Status})
			return
		}
		v.Status = st
	}

	if err := h.repo.Upsert(c.Request.Context(), v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": v})
}

func (h *Handler) get(c *gin.Context) {
	v, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": v})
}

func (h *Handler) list(c *gin.Context) {
	page, size := 1, 20
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 && n <= 200 {
		size = n
	}
	vehicles, total, err := h.repo.List(c.Request.Context(), Status(c.Query("status")), (page-1)*size, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles, "total": total})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type typeRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) createType(c *gin.Context) {
	var req typeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	t := &TypeDefinition{
		ID:   SlugifyTypeName(name),
		Name: name,
	}
	if t.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	if err := h.repo.UpsertType(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"type": t})
}

func (h *Handler) listTypes(c *gin.Context) {
	types, err := h.repo.ListTypes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types})
}

func (h *Handler) deleteType(c *gin.Context) {
	if err := h.repo.DeleteType(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
