package activity

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ChakraFleet/ChakraFleet/internal/common/server"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/gin-gonic/gin"
)

// UserDirectory 操作者展示名解析所需的用户目录能力。
type UserDirectory interface {
	ListAll(ctx context.Context) ([]user.User, error)
}

// Handler 全局审计动态接口。整条路由仅管理员可用：单个任务的
// 历史走 /api/jobs/:id/activity，由任务可见范围把关。
type Handler struct {
	repo  *Repo
	users UserDirectory
}

func NewHandler(repo *Repo, users UserDirectory) *Handler {
	return &Handler{repo: repo, users: users}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/activity", h.recent)
	r.DELETE("/api/activity", h.clearAll)
}

// View 审计记录对外视图：UserID 解析成展示名，悬空 id 解析为 Unknown。
type View struct {
	ID           string    `json:"id"`
	JobID        string    `json:"jobId,omitempty"`
	UserID       string    `json:"userId"`
	ActorName    string    `json:"actorName"`
	ActivityType string    `json:"activityType"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewView 套用解析函数产出视图；resolve 为 nil 时只回填 Unknown 兜底。
func NewView(l *Log, resolve func(id string) string) View {
	name := "Unknown"
	if l.UserID == "system" {
		name = "System"
	} else if resolve != nil {
		name = resolve(l.UserID)
	}
	return View{
		ID:           l.ID,
		JobID:        l.JobID,
		UserID:       l.UserID,
		ActorName:    name,
		ActivityType: l.ActivityType,
		Description:  l.Description,
		Timestamp:    l.Timestamp,
	}
}

// actorResolver 全量扫描用户目录建一次 id->name 映射，缺失解析为 Unknown。
func (h *Handler) actorResolver(ctx context.Context) (func(id string) string, error) {
	users, err := h.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return "Unknown"
	}, nil
}

func requireAdmin(c *gin.Context) bool {
	ai, ok := server.AuthFromContext(c)
	if !ok || ai.PrimaryRole() != "Admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return false
	}
	return true
}

func (h *Handler) recent(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	limit := 50
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}
	logs, err := h.repo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resolve, err := h.actorResolver(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]View, 0, len(logs))
	for i := range logs {
		views = append(views, NewView(&logs[i], resolve))
	}
	c.JSON(http.StatusOK, gin.H{"logs": views})
}

// clearAll 清空审计记录。
func (h *Handler) clearAll(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	n, err := h.repo.DeleteAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
