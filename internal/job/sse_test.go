package job

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// collectFeed 以给定身份订阅 /api/feed 一小段时间，期间执行 mutate，
// 返回收到的完整事件流文本。
func collectFeed(t *testing.T, f *serviceFixture, subject, role string, mutate func()) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(subject, role))
	h := NewHandler(f.svc, f.activity)
	h.feedTick = 20 * time.Millisecond
	h.feedHeartbeat = time.Minute
	h.RegisterFeed(r)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	mutate()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done
	return w.Body.String()
}

func TestFeedDeliversChangesToAdmin(t *testing.T) {
	f := newServiceFixture(t)

	out := collectFeed(t, f, "a1", "Admin", func() {
		if _, err := f.svc.Create(context.Background(), adminP,
			CreateInput{Title: "Night haul", Origin: "A", Destination: "B"}); err != nil {
			t.Errorf("Create: %v", err)
		}
	})

	if !strings.Contains(out, "event: connected") {
		t.Fatalf("missing connected event:\n%s", out)
	}
	if !strings.Contains(out, "event: job") || !strings.Contains(out, "Night haul") {
		t.Fatalf("admin subscriber missed the change event:\n%s", out)
	}
}

func TestFeedHidesForeignJobsFromDriver(t *testing.T) {
	f := newServiceFixture(t)

	out := collectFeed(t, f, "d9", "Driver", func() {
		if _, err := f.svc.Create(context.Background(), supervisorP,
			CreateInput{Title: "Secret cement run", Origin: "A", Destination: "B"}); err != nil {
			t.Errorf("Create: %v", err)
		}
	})

	if !strings.Contains(out, "event: connected") {
		t.Fatalf("missing connected event:\n%s", out)
	}
	if strings.Contains(out, "event: job") || strings.Contains(out, "Secret cement run") {
		t.Fatalf("foreign driver received a scoped-out change:\n%s", out)
	}
}

func TestFeedDoesNotRepeatSameChange(t *testing.T) {
	f := newServiceFixture(t)

	out := collectFeed(t, f, "a1", "Admin", func() {
		if _, err := f.svc.Create(context.Background(), adminP,
			CreateInput{Title: "Once only", Origin: "A", Destination: "B"}); err != nil {
			t.Errorf("Create: %v", err)
		}
	})

	if n := strings.Count(out, "Once only"); n != 1 {
		t.Fatalf("change delivered %d times, want 1:\n%s", n, out)
	}
}
