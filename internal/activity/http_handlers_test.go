package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ChakraFleet/ChakraFleet/internal/common/server"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/gin-gonic/gin"
)

func newHandlerRouter(t *testing.T, role string) (*gin.Engine, *Repo, *user.Repo) {
	t.Helper()
	db := testDB(t)
	if err := db.AutoMigrate(&user.User{}); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	repo := NewRepo(db)
	users := user.NewRepo(db)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("authInfo", server.AuthInfo{Subject: "u-test", Roles: []string{role}})
		c.Next()
	})
	NewHandler(repo, users).RegisterRoutes(r)
	return r, repo, users
}

func TestGlobalFeedIsAdminOnly(t *testing.T) {
	for _, role := range []string{"Driver", "Supervisor"} {
		r, repo, _ := newHandlerRouter(t, role)
		NewRecorder(repo, nil).Record(context.Background(), "j-1", "u-1", TypeJobCreation, "created")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity", nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s feed status = %d, want 403", role, w.Code)
		}

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/activity", nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s clear status = %d, want 403", role, w.Code)
		}
	}
}

func TestGlobalFeedResolvesActorNames(t *testing.T) {
	r, repo, users := newHandlerRouter(t, "Admin")
	ctx := context.Background()

	if err := users.Create(ctx, &user.User{
		ID: "u-1", Name: "Ravi", Email: "ravi@fleet.local",
		PasswordHash: "x", PasswordSalt: "x", Role: user.RoleDriver,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	rec := NewRecorder(repo, nil)
	rec.Record(ctx, "j-1", "u-1", TypeJobClaimed, "claimed")
	rec.Record(ctx, "j-2", "ghost", TypeJobCreation, "created")
	rec.Record(ctx, "j-3", "system", TypeJobPurged, "purged")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("feed status = %d", w.Code)
	}
	var resp struct {
		Logs []View `json:"logs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Logs) != 3 {
		t.Fatalf("logs = %+v", resp.Logs)
	}
	byActor := make(map[string]string, len(resp.Logs))
	for _, v := range resp.Logs {
		byActor[v.UserID] = v.ActorName
	}
	if byActor["u-1"] != "Ravi" {
		t.Fatalf("actorName for u-1 = %q, want Ravi", byActor["u-1"])
	}
	if byActor["ghost"] != "Unknown" {
		t.Fatalf("dangling actor = %q, want Unknown", byActor["ghost"])
	}
	if byActor["system"] != "System" {
		t.Fatalf("system actor = %q, want System", byActor["system"])
	}
}
