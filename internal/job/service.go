package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ChakraFleet/ChakraFleet/internal/activity"
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"github.com/ChakraFleet/ChakraFleet/internal/vehicle"
	"github.com/google/uuid"
)

// UserDirectory 指派校验与历史任务回写所需的用户目录能力。
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	ListAll(ctx context.Context) ([]user.User, error)
}

// VehicleDirectory 指派校验所需的车辆目录能力。
type VehicleDirectory interface {
	FindByID(ctx context.Context, id string) (*vehicle.Vehicle, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	ListAll(ctx context.Context) ([]vehicle.Vehicle, error)
}

// ActivityRecorder 审计写入（尽力而为）。
type ActivityRecorder interface {
	Record(ctx context.Context, jobID, actorID, activityType, description string)
}

// Service 任务生命周期引擎：所有状态转移都经 Guard 复核后落库，
// 并追加一条审计记录。
type Service struct {
	repo     *Repo
	users    UserDirectory
	vehicles VehicleDirectory
	recorder ActivityRecorder
}

func NewService(repo *Repo, users UserDirectory, vehicles VehicleDirectory, recorder ActivityRecorder) *Service {
	return &Service{repo: repo, users: users, vehicles: vehicles, recorder: recorder}
}

// CreateInput 建单入参。
type CreateInput struct {
	Title       string
	Description string
	Origin      string
	Destination string
	Date        string
	Time        string
}

// Create 建单。管理员建的单直接进入待认领池（Unclaimed），
// 调度员建的单自动归属本人并进入待审批（Pending）。
func (s *Service) Create(ctx context.Context, actor Principal, in CreateInput) (*Job, error) {
	if actor.Role != user.RoleAdmin && actor.Role != user.RoleSupervisor {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Origin) == "" ||
		strings.TrimSpace(in.Destination) == "" {
		return nil, fmt.Errorf("%w: title, origin and destination are required", ErrValidation)
	}
	j := &Job{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Origin:      strings.TrimSpace(in.Origin),
		Destination: strings.TrimSpace(in.Destination),
		Date:        in.Date,
		Time:        in.Time,
		CreatorID:   actor.ID,
		CreatorRole: string(actor.Role),
	}
	if actor.Role == user.RoleAdmin {
		j.Status = StatusUnclaimed
	} else {
		j.Status = StatusPending
		j.SupervisorID = actor.ID
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, j.ID, actor.ID, activity.TypeJobCreation,
		fmt.Sprintf("Job %q created (%s -> %s)", j.Title, j.Origin, j.Destination))
	return j, nil
}

// Get 读取单条任务，并复核其是否在该操作者可见范围内。
func (s *Service) Get(ctx context.Context, actor Principal, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(actor, j) {
		return nil, ErrForbidden
	}
	return j, nil
}

func visibleTo(actor Principal, j *Job) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RoleSupervisor:
		return j.SupervisorID == actor.ID || j.Status == StatusUnclaimed
	case user.RoleDriver:
		return j.AssignedDriverID == actor.ID
	}
	return false
}

// List 按角色范围列出任务。
func (s *Service) List(ctx context.Context, actor Principal, opts ListOptions) ([]Job, error) {
	return s.repo.List(ctx, actor, opts)
}

// Claim 调度员认领待认领任务。
func (s *Service) Claim(ctx context.Context, actor Principal, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(actor, j, ActionClaim); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"status":        StatusPending,
		"supervisor_id": actor.ID,
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, id, actor.ID, activity.TypeJobClaimed,
		fmt.Sprintf("Job %q claimed by supervisor", j.Title))
	return s.repo.FindByID(ctx, id)
}

// AssignInput 指派入参。
type AssignInput struct {
	DriverID  string
	VehicleID string
}

// Assign 管理员审批并指派司机与车辆。指派字段与状态走同一次
// 多字段更新，外部不可能观察到"有司机没车辆"的中间态。
// 指派目标必须是当前可用的司机与可用车辆。
func (s *Service) Assign(ctx context.Context, actor Principal, id string, in AssignInput) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	action := ActionAssign
	if j.Status == StatusApproved {
		action = ActionReassign
	}
	if err := Guard(actor, j, action); err != nil {
		return nil, err
	}
	if in.DriverID == "" || in.VehicleID == "" {
		return nil, fmt.Errorf("%w: driver and vehicle must be assigned together", ErrValidation)
	}
	drv, err := s.users.FindByID(ctx, in.DriverID)
	if err != nil {
		return nil, fmt.Errorf("%w: driver %s not found", ErrValidation, in.DriverID)
	}
	if !drv.IsDriver() {
		return nil, fmt.Errorf("%w: user %s is not a driver", ErrValidation, in.DriverID)
	}
	if !drv.Availability && drv.ID != j.AssignedDriverID {
		return nil, fmt.Errorf("%w: driver %s is not available", ErrValidation, drv.Name)
	}
	veh, err := s.vehicles.FindByID(ctx, in.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicle %s not found", ErrValidation, in.VehicleID)
	}
	if veh.Status != vehicle.StatusAvailable && veh.ID != j.AssignedVehicleID {
		return nil, fmt.Errorf("%w: vehicle %s is not available", ErrValidation, veh.Name)
	}
	fields := map[string]interface{}{
		"status":              StatusApproved,
		"assigned_driver_id":  drv.ID,
		"assigned_vehicle_id": veh.ID,
		"driver_name":         drv.Name,
		"vehicle_name":        veh.Name,
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	// 指派后把车辆置为使用中、司机置为不可用；完成/驳回时不自动回退
	_ = s.vehicles.UpdateFields(ctx, veh.ID, map[string]any{"status": vehicle.StatusInUse})
	_ = s.users.UpdateFields(ctx, drv.ID, map[string]any{"availability": false})
	label := activity.TypeAssignment
	desc := fmt.Sprintf("Job %q assigned to driver %s with vehicle %s", j.Title, drv.Name, veh.Name)
	if action == ActionReassign {
		desc = fmt.Sprintf("Job %q re-assigned to driver %s with vehicle %s", j.Title, drv.Name, veh.Name)
	}
	s.recorder.Record(ctx, id, actor.ID, label, desc)
	return s.repo.FindByID(ctx, id)
}

// Reject 管理员驳回。
func (s *Service) Reject(ctx context.Context, actor Principal, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(actor, j, ActionReject); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]interface{}{"status": StatusRejected}); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, id, actor.ID, activity.TypeJobRejected,
		fmt.Sprintf("Job %q rejected", j.Title))
	return s.repo.FindByID(ctx, id)
}

// StartTransit 受派司机开始运输。
func (s *Service) StartTransit(ctx context.Context, actor Principal, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(actor, j, ActionStartTransit); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]interface{}{"status": StatusInTransit}); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, id, actor.ID, activity.TypeStatusUpdate,
		fmt.Sprintf("Job %q is now in transit", j.Title))
	return s.repo.FindByID(ctx, id)
}

// CompleteInput 完成入参：趟数与单趟公里数均须为正数。
type CompleteInput struct {
	Rounds     int
	KmPerRound float64
}

// Complete 受派司机完成运输：完成时间取服务端时间，总公里数 =
// 趟数 × 单趟公里数，并把任务 ID 追加到司机的历史任务里。
func (s *Service) Complete(ctx context.Context, actor Principal, id string, in CompleteInput) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(actor, j, ActionComplete); err != nil {
		return nil, err
	}
	if in.Rounds <= 0 || in.KmPerRound <= 0 {
		return nil, fmt.Errorf("%w: rounds and kilometers per round must be positive", ErrValidation)
	}
	now := time.Now()
	km := float64(in.Rounds) * in.KmPerRound
	fields := map[string]interface{}{
		"status":            StatusCompleted,
		"completion_date":   now,
		"rounds_completed":  in.Rounds,
		"kilometers_driven": km,
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	// 司机历史任务回写失败不回滚完成本身
	if drv, derr := s.users.FindByID(ctx, actor.ID); derr == nil {
		drv.AppendPastJob(id)
		_ = s.users.UpdateFields(ctx, drv.ID, map[string]any{"past_jobs": drv.PastJobs})
	}
	s.recorder.Record(ctx, id, actor.ID, activity.TypeStatusUpdate,
		fmt.Sprintf("Job %q completed: %d rounds, %.1f km", j.Title, in.Rounds, km))
	return s.repo.FindByID(ctx, id)
}

// Archive 管理员归档：记下归档前的状态供恢复。
func (s *Service) Archive(ctx context.Context, actor Principal, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(actor, j, ActionArchive); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"status":          StatusArchived,
		"previous_status": j.Status,
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, id, actor.ID, activity.TypeJobArchived,
		fmt.Sprintf("Job %q archived", j.Title))
	return s.repo.FindByID(ctx, id)
}

// Unarchive 管理员恢复归档：回到归档前状态，没有记录时回到 Completed。
func (s *Service) Unarchive(ctx context.Context, actor Principal, id string) (*Job, error) {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Guard(actor, j, ActionUnarchive); err != nil {
		return nil, err
	}
	restored := j.PreviousStatus
	if restored == "" || !ValidStatus(restored) {
		restored = StatusCompleted
	}
	fields := map[string]interface{}{
		"status":          restored,
		"previous_status": "",
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, id, actor.ID, activity.TypeJobUnarchived,
		fmt.Sprintf("Job %q restored to %s", j.Title, restored))
	return s.repo.FindByID(ctx, id)
}

// DeletePermanent 管理员永久删除（仅限归档任务）。
func (s *Service) DeletePermanent(ctx context.Context, actor Principal, id string) error {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Guard(actor, j, ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recorder.Record(ctx, id, actor.ID, activity.TypeJobPurged,
		fmt.Sprintf("Job %q permanently deleted", j.Title))
	return nil
}

// DeleteAllArchived 管理员批量清空归档区，返回删除条数。
func (s *Service) DeleteAllArchived(ctx context.Context, actor Principal) (int, error) {
	if actor.Role != user.RoleAdmin {
		return 0, ErrForbidden
	}
	jobs, err := s.repo.ListArchived(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i := range jobs {
		if err := s.repo.Delete(ctx, jobs[i].ID); err != nil {
			return deleted, err
		}
		s.recorder.Record(ctx, jobs[i].ID, actor.ID, activity.TypeJobPurged,
			fmt.Sprintf("Job %q permanently deleted", jobs[i].Title))
		deleted++
	}
	return deleted, nil
}

// PurgeExpiredArchived 清理保留期外的归档任务：以完成时间（缺失时退回
// 申请时间）早于 cutoff 为准。供后台清扫调用，失败只影响单条。
func (s *Service) PurgeExpiredArchived(ctx context.Context, cutoff time.Time) (int, error) {
	jobs, err := s.repo.ListArchivedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	purged := 0
	for i := range jobs {
		if err := s.repo.Delete(ctx, jobs[i].ID); err != nil {
			return purged, err
		}
		s.recorder.Record(ctx, jobs[i].ID, "system", activity.TypeJobPurged,
			fmt.Sprintf("Job %q purged after retention window", jobs[i].Title))
		purged++
	}
	return purged, nil
}

// ResolveNames 基于用户与车辆目录的一次全量扫描构建名称解析器。
func (s *Service) ResolveNames(ctx context.Context) (*NameResolver, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.vehicles.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]VehicleRef, 0, len(vehicles))
	for _, v := range vehicles {
		refs = append(refs, VehicleRef{ID: v.ID, Name: v.Name})
	}
	return NewNameResolver(users, refs), nil
}
