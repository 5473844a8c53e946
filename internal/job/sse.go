package job

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultFeedTick      = 3 * time.Second
	defaultFeedHeartbeat = 15 * time.Second
)

// jobChangeEvent 推送给客户端的变更事件。
type jobChangeEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Count     int       `json:"count"`
}

// RegisterFeed 注册任务变更的 SSE 轮询推送。客户端断开即停止；
// 可见范围与列表接口一致，按 updated_at 水位增量下发。
func (h *Handler) RegisterFeed(r *gin.Engine) {
	r.GET("/api/feed", h.feed)
}

func (h *Handler) feed(c *gin.Context) {
	actor, ok := principalFrom(c)
	if !ok {
		return
	}
	opts := parseListOptions(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	// 从连接时刻开始增量推送。查询按 updated_at >= 水位取闭区间，
	// sent 记录水位同刻已下发的条目，防止同刻第二次变更被跳过或重发。
	watermark := time.Now()
	sent := make(map[string]time.Time)

	tick := h.feedTick
	if tick <= 0 {
		tick = defaultFeedTick
	}
	hb := h.feedHeartbeat
	if hb <= 0 {
		hb = defaultFeedHeartbeat
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(tick)
	heartbeat := time.NewTicker(hb)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			changed, err := h.svc.repo.ListUpdatedSince(ctx, actor, opts, watermark)
			if err != nil {
				continue
			}
			fresh := changed[:0]
			for i := range changed {
				if ts, ok := sent[changed[i].ID]; ok && !changed[i].UpdatedAt.After(ts) {
					continue
				}
				fresh = append(fresh, changed[i])
			}
			if len(fresh) == 0 {
				continue
			}
			watermark = fresh[len(fresh)-1].UpdatedAt
			for k := range sent {
				delete(sent, k)
			}
			for i := range fresh {
				j := &fresh[i]
				if j.UpdatedAt.Equal(watermark) {
					sent[j.ID] = j.UpdatedAt
				}
				writeSSE(c.Writer, "job", jobChangeEvent{
					ID:        j.ID,
					Title:     j.Title,
					Status:    j.Status,
					UpdatedAt: j.UpdatedAt,
					Count:     len(fresh),
				})
			}
			c.Writer.Flush()
		}
	}
}

// writeSSE 写出单条 SSE 事件。
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
