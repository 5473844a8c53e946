package job

import (
	"errors"

	"github.com/ChakraFleet/ChakraFleet/internal/user"
)

// Principal 当前操作者，由调用方（HTTP 层）从认证信息解析后显式传入。
type Principal struct {
	ID   string
	Role user.Role
}

// Action 生命周期动作。
type Action string

const (
	ActionClaim        Action = "claim"
	ActionAssign       Action = "assign"
	ActionReject       Action = "reject"
	ActionReassign     Action = "reassign"
	ActionStartTransit Action = "start-transit"
	ActionComplete     Action = "complete"
	ActionArchive      Action = "archive"
	ActionUnarchive    Action = "unarchive"
	ActionDelete       Action = "delete"
)

var (
	// ErrInvalidTransition 当前状态下不允许该动作
	ErrInvalidTransition = errors.New("invalid job transition")
	// ErrForbidden 操作者角色或归属不满足动作要求
	ErrForbidden = errors.New("actor not permitted for this action")
	// ErrValidation 入参不合法（如非正数的趟数/单趟公里数）
	ErrValidation = errors.New("invalid input")
)

// transitionRule 声明式转移规则：哪些角色、从哪些状态、是否要求
// 操作者就是任务的受派司机。守卫检查与 PermittedActions 共用同一张表。
type transitionRule struct {
	Roles      []user.Role
	From       []Status
	DriverOnly bool // 要求 actor.ID == job.AssignedDriverID
}

var transitionRules = map[Action]transitionRule{
	ActionClaim:        {Roles: []user.Role{user.RoleSupervisor}, From: []Status{StatusUnclaimed}},
	ActionAssign:       {Roles: []user.Role{user.RoleAdmin}, From: []Status{StatusPending, StatusUnclaimed}},
	ActionReject:       {Roles: []user.Role{user.RoleAdmin}, From: []Status{StatusPending, StatusUnclaimed}},
	ActionReassign:     {Roles: []user.Role{user.RoleAdmin}, From: []Status{StatusApproved}},
	ActionStartTransit: {Roles: []user.Role{user.RoleDriver}, From: []Status{StatusApproved}, DriverOnly: true},
	ActionComplete:     {Roles: []user.Role{user.RoleDriver}, From: []Status{StatusInTransit}, DriverOnly: true},
	ActionArchive:      {Roles: []user.Role{user.RoleAdmin}, From: []Status{StatusCompleted, StatusRejected}},
	ActionUnarchive:    {Roles: []user.Role{user.RoleAdmin}, From: []Status{StatusArchived}},
	ActionDelete:       {Roles: []user.Role{user.RoleAdmin}, From: []Status{StatusArchived}},
}

func containsRole(roles []user.Role, r user.Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}

func containsStatus(states []Status, s Status) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

// Guard 在落库前复核一次转移合法性：角色、当前状态、司机归属三项
// 全部满足才放行。角色/归属不符返回 ErrForbidden，状态不符返回
// ErrInvalidTransition，绝不静默跳过。
func Guard(actor Principal, j *Job, action Action) error {
	rule, ok := transitionRules[action]
	if !ok {
		return ErrInvalidTransition
	}
	if !containsRole(rule.Roles, actor.Role) {
		return ErrForbidden
	}
	if rule.DriverOnly && actor.ID != j.AssignedDriverID {
		return ErrForbidden
	}
	if !containsStatus(rule.From, j.Status) {
		return ErrInvalidTransition
	}
	return nil
}

// PermittedActions 返回该角色对处于某状态的任务可执行的动作集合，
// 供前端决定展示哪些操作入口（司机归属需调用方另行比对）。
func PermittedActions(role user.Role, status Status) []Action {
	var actions []Action
	for _, a := range []Action{
		ActionClaim, ActionAssign, ActionReject, ActionReassign,
		ActionStartTransit, ActionComplete, ActionArchive,
		ActionUnarchive, ActionDelete,
	} {
		rule := transitionRules[a]
		if containsRole(rule.Roles, role) && containsStatus(rule.From, status) {
			actions = append(actions, a)
		}
	}
	return actions
}
