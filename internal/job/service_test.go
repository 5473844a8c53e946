package job

import (
	"context"
	"errors"
	"testing"

	"github.com/ChakraFleet/ChakraFleet/internal/activity"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/ChakraFleet/ChakraFleet/internal/vehicle"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type serviceFixture struct {
	db       *gorm.DB
	svc      *Service
	activity *activity.Repo
	users    *user.Repo
	vehicles *vehicle.Repo
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Job{}, &user.User{}, &vehicle.Vehicle{}, &activity.Log{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := user.NewRepo(db)
	vehicles := vehicle.NewRepo(db)
	actRepo := activity.NewRepo(db)
	svc := NewService(NewRepo(db), users, vehicles, activity.NewRecorder(actRepo, nil))
	return &serviceFixture{db: db, svc: svc, activity: actRepo, users: users, vehicles: vehicles}
}

func (f *serviceFixture) seedDriver(t *testing.T, id string, available bool) {
	t.Helper()
	u := &user.User{
		ID: id, Name: "Driver " + id, Email: id + "@fleet.local",
		PasswordHash: "x", PasswordSalt: "x",
		Role: user.RoleDriver, Availability: available,
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

func (f *serviceFixture) seedVehicle(t *testing.T, id string, status vehicle.Status) {
	t.Helper()
	v := &vehicle.Vehicle{ID: id, Name: "Vehicle " + id, Type: "truck", Capacity: "10 tons", Status: status}
	if err := f.vehicles.Upsert(context.Background(), v); err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
}

var (
	adminP      = Principal{ID: "a1", Role: user.RoleAdmin}
	supervisorP = Principal{ID: "s1", Role: user.RoleSupervisor}
)

func TestCreateByAdminIsUnclaimedWithAudit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	j, err := f.svc.Create(ctx, adminP, CreateInput{
		Title: "T", Origin: "A", Destination: "B", Date: "2024-01-01", Time: "09:00",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if j.Status != StatusUnclaimed {
		t.Fatalf("admin-created job status = %s, want Unclaimed", j.Status)
	}
	if j.CreatorRole != "Admin" {
		t.Fatalf("creatorRole = %s", j.CreatorRole)
	}

	logs, err := f.activity.ListByJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("ListByJob: %v", err)
	}
	if len(logs) != 1 || logs[0].ActivityType != activity.TypeJobCreation {
		t.Fatalf("expected one Job Creation entry, got %+v", logs)
	}
}

func TestCreateBySupervisorIsPendingAndOwned(t *testing.T) {
	f := newServiceFixture(t)
	j, err := f.svc.Create(context.Background(), supervisorP, CreateInput{
		Title: "T", Origin: "A", Destination: "B",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if j.Status != StatusPending || j.SupervisorID != "s1" {
		t.Fatalf("supervisor-created job = %+v", j)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newServiceFixture(t)
	if _, err := f.svc.Create(context.Background(), adminP, CreateInput{Title: " "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), Principal{ID: "d1", Role: user.RoleDriver},
		CreateInput{Title: "T", Origin: "A", Destination: "B"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("driver create should be forbidden, got %v", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedDriver(t, "d1", true)
	f.seedVehicle(t, "v1", vehicle.StatusAvailable)

	j, err := f.svc.Create(ctx, adminP, CreateInput{Title: "Cement run", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Supervisor 认领
	j, err = f.svc.Claim(ctx, supervisorP, j.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if j.Status != StatusPending || j.SupervisorID != "s1" {
		t.Fatalf("after claim: %+v", j)
	}

	// Admin 指派
	j, err = f.svc.Assign(ctx, adminP, j.ID, AssignInput{DriverID: "d1", VehicleID: "v1"})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if j.Status != StatusApproved || j.AssignedDriverID != "d1" || j.AssignedVehicleID != "v1" {
		t.Fatalf("after assign: %+v", j)
	}
	// 指派后车辆应为使用中
	veh, err := f.vehicles.FindByID(ctx, "v1")
	if err != nil {
		t.Fatalf("FindByID vehicle: %v", err)
	}
	if veh.Status != vehicle.StatusInUse {
		t.Fatalf("vehicle status after assign = %s", veh.Status)
	}

	driverP := Principal{ID: "d1", Role: user.RoleDriver}

	// 开始运输
	j, err = f.svc.StartTransit(ctx, driverP, j.ID)
	if err != nil {
		t.Fatalf("StartTransit: %v", err)
	}
	if j.Status != StatusInTransit {
		t.Fatalf("after start transit: %s", j.Status)
	}

	// 完成：4 趟 × 25.5 km = 102.0
	j, err = f.svc.Complete(ctx, driverP, j.ID, CompleteInput{Rounds: 4, KmPerRound: 25.5})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if j.Status != StatusCompleted {
		t.Fatalf("after complete: %s", j.Status)
	}
	if j.KilometersDriven != 102.0 {
		t.Fatalf("kilometersDriven = %v, want 102.0", j.KilometersDriven)
	}
	if j.CompletionDate == nil || j.CompletionDate.Before(j.RequestDate) {
		t.Fatalf("completionDate not set or before requestDate: %+v", j)
	}
	drv, err := f.users.FindByID(ctx, "d1")
	if err != nil {
		t.Fatalf("FindByID driver: %v", err)
	}
	if got := drv.PastJobsSlice(); len(got) != 1 || got[0] != j.ID {
		t.Fatalf("driver pastJobs = %v", got)
	}

	// 归档再恢复
	j, err = f.svc.Archive(ctx, adminP, j.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if j.Status != StatusArchived || j.PreviousStatus != StatusCompleted {
		t.Fatalf("after archive: %+v", j)
	}
	if _, err := f.svc.Archive(ctx, adminP, j.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double archive should fail, got %v", err)
	}
	j, err = f.svc.Unarchive(ctx, adminP, j.ID)
	if err != nil {
		t.Fatalf("Unarchive: %v", err)
	}
	if j.Status != StatusCompleted || j.PreviousStatus != "" {
		t.Fatalf("after unarchive: %+v", j)
	}
}

func TestAssignRequiresAvailableTargets(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedDriver(t, "d1", false)
	f.seedVehicle(t, "v1", vehicle.StatusMaintenance)
	f.seedDriver(t, "d2", true)
	f.seedVehicle(t, "v2", vehicle.StatusAvailable)

	j, err := f.svc.Create(ctx, adminP, CreateInput{Title: "T", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Assign(ctx, adminP, j.ID, AssignInput{DriverID: "d1", VehicleID: "v2"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unavailable driver should fail validation, got %v", err)
	}
	if _, err := f.svc.Assign(ctx, adminP, j.ID, AssignInput{DriverID: "d2", VehicleID: "v1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unavailable vehicle should fail validation, got %v", err)
	}
	if _, err := f.svc.Assign(ctx, adminP, j.ID, AssignInput{DriverID: "d2", VehicleID: ""}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing vehicle should fail validation, got %v", err)
	}
	if _, err := f.svc.Assign(ctx, supervisorP, j.ID, AssignInput{DriverID: "d2", VehicleID: "v2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("supervisor assign should be forbidden, got %v", err)
	}
}

func TestDriverMismatchNeverMutates(t *testing.T) {
	f := newServiceFixture(t)
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

	other := Principal{ID: "d2", Role: user.RoleDriver}
	if _, err := f.svc.StartTransit(ctx, other, j.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign driver should be forbidden, got %v", err)
	}
	got, err := f.svc.Get(ctx, adminP, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("status mutated by forbidden actor: %s", got.Status)
	}
}

func TestCompleteValidatesRounds(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.seedDriver(t, "d1", true)
	f.seedVehicle(t, "v1", vehicle.StatusAvailable)

	j, _ := f.svc.Create(ctx, adminP, CreateInput{Title: "T", Origin: "A", Destination: "B"})
	if _, err := f.svc.Assign(ctx, adminP, j.ID, AssignInput{DriverID: "d1", VehicleID: "v1"}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	driverP := Principal{ID: "d1", Role: user.RoleDriver}
	if _, err := f.svc.StartTransit(ctx, driverP, j.ID); err != nil {
		t.Fatalf("StartTransit: %v", err)
	}
	if _, err := f.svc.Complete(ctx, driverP, j.ID, CompleteInput{Rounds: 0, KmPerRound: 10}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero rounds should fail, got %v", err)
	}
	if _, err := f.svc.Complete(ctx, driverP, j.ID, CompleteInput{Rounds: 2, KmPerRound: -1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative km should fail, got %v", err)
	}
}

func TestDeletePermanentOnlyArchived(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	j, _ := f.svc.Create(ctx, adminP, CreateInput{Title: "T", Origin: "A", Destination: "B"})
	if err := f.svc.DeletePermanent(ctx, adminP, j.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("delete on non-archived should fail, got %v", err)
	}

	if _, err := f.svc.Reject(ctx, adminP, j.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if _, err := f.svc.Archive(ctx, adminP, j.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := f.svc.DeletePermanent(ctx, adminP, j.ID); err != nil {
		t.Fatalf("DeletePermanent: %v", err)
	}
	if _, err := f.svc.Get(ctx, adminP, j.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
}
