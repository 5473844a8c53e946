package user

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ChakraFleet/ChakraFleet/internal/common/server"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 用户相关 HTTP 接口。
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 挂载路由。/api/auth/* 为公开入口，其余需要鉴权。
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	r.GET("/api/profile", h.profile)
	r.PUT("/api/profile", h.updateProfile)

	users := r.Group("/api/users")
	{
		users.GET("", h.list)
		users.DELETE("/:id", h.delete)
		users.PUT("/:id/availability", h.setAvailability)
		users.POST("/reset-availability", h.resetAvailability)
	}
}

// userView 对外视图（不含凭证字段）。
type userView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Role            string   `json:"role"`
	AvatarURL       string   `json:"avatarUrl,omitempty"`
	Availability    *bool    `json:"availability,omitempty"`
	CurrentLocation string   `json:"currentLocation,omitempty"`
	PastJobs        []string `json:"pastJobs,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
}

func toView(u *User) userView {
	v := userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt.Unix(),
	}
	if u.IsDriver() {
		avail := u.Availability
		v.Availability = &avail
		v.CurrentLocation = u.CurrentLocation
		v.PastJobs = u.PastJobsSlice()
	}
	return v
}

type registerRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         string `json:"role" binding:"required"`
	AvatarURL    string `json:"avatarUrl"`
	Availability bool   `json:"availability"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.svc.Register(c.Request.Context(), RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         Role(req.Role),
		AvatarURL:    req.AvatarURL,
		Availability: req.Availability,
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": toView(u)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, token, exp, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"expiresAt":   exp.Unix(),
		"user":        toView(u),
	})
}

func (h *Handler) profile(c *gin.Context) {
	ai, ok := server.AuthFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	u, err := h.svc.Get(c.Request.Context(), ai.Subject)
	if err == gorm.ErrRecordNotFound {
		// 档案丢失视为未登录态（凭证与档案一一对应）
		c.JSON(http.StatusUnauthorized, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toView(u)})
}

type updateProfileRequest struct {
	Name            *string `json:"name"`
	AvatarURL       *string `json:"avatarUrl"`
	CurrentLocation *string `json:"currentLocation"`
	Availability    *bool   `json:"availability"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	ai, ok := server.AuthFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth"})
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), ai.Subject, ProfileUpdate{
		Name:            req.Name,
		AvatarURL:       req.AvatarURL,
		CurrentLocation: req.CurrentLocation,
		Availability:    req.Availability,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toView(u)})
}

func (h *Handler) list(c *gin.Context) {
	page, size := pagination(c)
	role := Role(strings.TrimSpace(c.Query("role")))
	users, total, err := h.svc.List(c.Request.Context(), role, (page-1)*size, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, toView(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": total})
}

func (h *Handler) delete(c *gin.Context) {
	ai, _ := server.AuthFromContext(c)
	err := h.svc.Delete(c.Request.Context(), ai.Subject, c.Param("id"))
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type availabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

func (h *Handler) setAvailability(c *gin.Context) {
	ai, _ := server.AuthFromContext(c)
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.SetAvailability(c.Request.Context(), ai.Subject, c.Param("id"), *req.Available)
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resetAvailability(c *gin.Context) {
	ai, _ := server.AuthFromContext(c)
	n, err := h.svc.ResetAllDrivers(c.Request.Context(), ai.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": n})
}

func pagination(c *gin.Context) (page, size int) {
	page, size = 1, 20
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(c.Query("page_size")); err == nil && n > 0 && n <= 200 {
		size = n
	}
	return page, size
}
