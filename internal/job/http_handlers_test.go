package job

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ChakraFleet/ChakraFleet/internal/activity"
	"github.com/ChakraFleet/ChakraFleet/internal/common/server"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/ChakraFleet/ChakraFleet/internal/vehicle"
	"github.com/gin-gonic/gin"
)

// fakeAuth 以固定身份注入鉴权信息，替代 JWT 中间件。
func fakeAuth(subject, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("authInfo", server.AuthInfo{Subject: subject, Roles: []string{role}})
		c.Next()
	}
}

func newTestRouter(t *testing.T, subject, role string) (*gin.Engine, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(subject, role))
	NewHandler(f.svc, f.activity).RegisterRoutes(r)
	return r, f
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndListOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, "a1", "Admin")

	w := doJSON(t, r, http.MethodPost, "/api/jobs",
		`{"title":"T","origin":"A","destination":"B","date":"2024-01-01","time":"09:00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created Job
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Status != StatusUnclaimed {
		t.Fatalf("created status = %s", created.Status)
	}

	w = doJSON(t, r, http.MethodGet, "/api/jobs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listResp struct {
		Jobs  []json.RawMessage `json:"jobs"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listResp.Total != 1 {
		t.Fatalf("total = %d, want 1", listResp.Total)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	r, f := newTestRouter(t, "a1", "Admin")
	ctx := context.Background()

	j, err := f.svc.Create(ctx, adminP, CreateInput{Title: "T", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 404：不存在的任务
	if w := doJSON(t, r, http.MethodPost, "/api/jobs/nope/reject", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d, want 404", w.Code)
	}
	// 409：状态机不允许（Unclaimed 不能归档）
	if w := doJSON(t, r, http.MethodPost, "/api/jobs/"+j.ID+"/archive", ""); w.Code != http.StatusConflict {
		t.Fatalf("invalid transition status = %d, want 409", w.Code)
	}
	// 400：缺少指派字段
	if w := doJSON(t, r, http.MethodPost, "/api/jobs/"+j.ID+"/assign", `{"driverId":"d1"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad assign status = %d, want 400", w.Code)
	}
}

func TestDriverForbiddenOverHTTP(t *testing.T) {
	f := newServiceFixture(t)
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	f.seedDriver(t, "d1", true)
	f.seedVehicle(t, "v1", vehicle.StatusAvailable)
	j, err := f.svc.Create(ctx, adminP, CreateInput{Title: "T", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Assign(ctx, adminP, j.ID, AssignInput{DriverID: "d1", VehicleID: "v1"}); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	r := gin.New()
	r.Use(fakeAuth("d2", "Driver"))
	NewHandler(f.svc, f.activity).RegisterRoutes(r)
	if w := doJSON(t, r, http.MethodPost, "/api/jobs/"+j.ID+"/start-transit", ""); w.Code != http.StatusForbidden {
		t.Fatalf("foreign driver status = %d, want 403", w.Code)
	}
}

func TestJobActivityFollowsVisibility(t *testing.T) {
	f := newServiceFixture(t)
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	if err := f.users.Create(ctx, &user.User{
		ID: "s1", Name: "Sita", Email: "s1@fleet.local",
		PasswordHash: "x", PasswordSalt: "x", Role: user.RoleSupervisor,
	}); err != nil {
		t.Fatalf("seed supervisor: %v", err)
	}
	j, err := f.svc.Create(ctx, supervisorP, CreateInput{Title: "Secret cement run", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 与任务无关的司机不能读它的历史
	r := gin.New()
	r.Use(fakeAuth("d9", "Driver"))
	NewHandler(f.svc, f.activity).RegisterRoutes(r)
	if w := doJSON(t, r, http.MethodGet, "/api/jobs/"+j.ID+"/activity", ""); w.Code != http.StatusForbidden {
		t.Fatalf("foreign driver activity status = %d, want 403", w.Code)
	}

	// 其他调度员同样不可见
	r = gin.New()
	r.Use(fakeAuth("s2", "Supervisor"))
	NewHandler(f.svc, f.activity).RegisterRoutes(r)
	if w := doJSON(t, r, http.MethodGet, "/api/jobs/"+j.ID+"/activity", ""); w.Code != http.StatusForbidden {
		t.Fatalf("foreign supervisor activity status = %d, want 403", w.Code)
	}

	// 管理员可见，且操作者 id 解析成展示名
	r = gin.New()
	r.Use(fakeAuth("a1", "Admin"))
	NewHandler(f.svc, f.activity).RegisterRoutes(r)
	w := doJSON(t, r, http.MethodGet, "/api/jobs/"+j.ID+"/activity", "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin activity status = %d", w.Code)
	}
	var resp struct {
		Logs []activity.View `json:"logs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Logs) != 1 {
		t.Fatalf("logs = %+v", resp.Logs)
	}
	if resp.Logs[0].ActorName != "Sita" {
		t.Fatalf("actorName = %q, want Sita", resp.Logs[0].ActorName)
	}
}

func TestPermittedActionsEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	j, err := f.svc.Create(ctx, adminP, CreateInput{Title: "T", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := gin.New()
	r.Use(fakeAuth("a1", "Admin"))
	NewHandler(f.svc, f.activity).RegisterRoutes(r)

	w := doJSON(t, r, http.MethodGet, "/api/jobs/"+j.ID+"/actions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("actions status = %d", w.Code)
	}
	var resp struct {
		Status  Status   `json:"status"`
		Actions []Action `json:"actions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[Action]bool{ActionAssign: true, ActionReject: true}
	if len(resp.Actions) != 2 || !want[resp.Actions[0]] || !want[resp.Actions[1]] {
		t.Fatalf("admin actions on unclaimed = %v", resp.Actions)
	}
}
