package job

import (
	"context"
	"testing"

	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func scopeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Job{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedScopeJobs(t *testing.T, db *gorm.DB) {
	t.Helper()
	jobs := []Job{
		{ID: "j1", Title: "A", Origin: "x", Destination: "y", Status: StatusUnclaimed, CreatorID: "a1", CreatorRole: "Admin"},
		{ID: "j2", Title: "B", Origin: "x", Destination: "y", Status: StatusPending, SupervisorID: "s1", CreatorID: "s1", CreatorRole: "Supervisor"},
		{ID: "j3", Title: "C", Origin: "x", Destination: "y", Status: StatusApproved, SupervisorID: "s2", AssignedDriverID: "d1", AssignedVehicleID: "v1", CreatorID: "s2", CreatorRole: "Supervisor"},
		{ID: "j4", Title: "D", Origin: "x", Destination: "y", Status: StatusCompleted, SupervisorID: "s1", AssignedDriverID: "d2", AssignedVehicleID: "v2", CreatorID: "a1", CreatorRole: "Admin"},
		{ID: "j5", Title: "E", Origin: "x", Destination: "y", Status: StatusArchived, PreviousStatus: StatusCompleted, CreatorID: "a1", CreatorRole: "Admin"},
	}
	for i := range jobs {
		if err := db.Create(&jobs[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func listIDs(t *testing.T, db *gorm.DB, actor Principal, opts ListOptions) map[string]bool {
	t.Helper()
	var jobs []Job
	if err := db.WithContext(context.Background()).Scopes(Scope(actor, opts)).Find(&jobs).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		ids[j.ID] = true
	}
	return ids
}

func TestScopeAdminDefaultExcludesArchived(t *testing.T) {
	db := scopeTestDB(t)
	seedScopeJobs(t, db)

	ids := listIDs(t, db, Principal{ID: "a1", Role: user.RoleAdmin}, ListOptions{})
	if len(ids) != 4 || ids["j5"] {
		t.Fatalf("admin default view = %v, want all non-archived", ids)
	}

	ids = listIDs(t, db, Principal{ID: "a1", Role: user.RoleAdmin}, ListOptions{Statuses: []Status{StatusArchived}})
	if len(ids) != 1 || !ids["j5"] {
		t.Fatalf("admin archived view = %v", ids)
	}
}

func TestScopeSupervisorNeverSeesOthers(t *testing.T) {
	db := scopeTestDB(t)
	seedScopeJobs(t, db)

	ids := listIDs(t, db, Principal{ID: "s1", Role: user.RoleSupervisor},
		ListOptions{Statuses: []Status{StatusPending, StatusApproved}})
	if !ids["j2"] {
		t.Fatalf("supervisor should see own pending job, got %v", ids)
	}
	if ids["j3"] {
		t.Fatalf("supervisor s1 must never see s2's job")
	}

	// 待认领视图只含 Unclaimed，忽略状态过滤
	ids = listIDs(t, db, Principal{ID: "s1", Role: user.RoleSupervisor},
		ListOptions{UnclaimedView: true, Statuses: []Status{StatusCompleted}})
	if len(ids) != 1 || !ids["j1"] {
		t.Fatalf("unclaimed view = %v", ids)
	}
}

func TestScopeDriverOwnJobsOnly(t *testing.T) {
	db := scopeTestDB(t)
	seedScopeJobs(t, db)

	ids := listIDs(t, db, Principal{ID: "d1", Role: user.RoleDriver}, ListOptions{})
	if len(ids) != 1 || !ids["j3"] {
		t.Fatalf("driver view = %v, want only j3", ids)
	}

	ids = listIDs(t, db, Principal{ID: "d9", Role: user.RoleDriver}, ListOptions{})
	if len(ids) != 0 {
		t.Fatalf("unassigned driver should see nothing, got %v", ids)
	}
}

func TestNameResolverUnknownSentinel(t *testing.T) {
	r := NewNameResolver(
		[]user.User{{ID: "u1", Name: "Ravi"}},
		[]VehicleRef{{ID: "v1", Name: "Truck 7"}},
	)
	if got := r.UserName("u1"); got != "Ravi" {
		t.Fatalf("UserName(u1) = %q", got)
	}
	if got := r.UserName("missing"); got != UnknownName {
		t.Fatalf("UserName(missing) = %q, want %q", got, UnknownName)
	}
	if got := r.VehicleName(""); got != "" {
		t.Fatalf("empty id should resolve to empty, got %q", got)
	}
	if got := r.VehicleName("missing"); got != UnknownName {
		t.Fatalf("VehicleName(missing) = %q, want %q", got, UnknownName)
	}
}
