package job

import (
	"github.com/ChakraFleet/ChakraFleet/internal/user"
	"gorm.io/gorm"
)

// ListOptions 列表查询参数。
type ListOptions struct {
	// Statuses 状态过滤；为空时 Admin/Supervisor/Driver 默认取全部非归档状态
	Statuses []Status
	// UnclaimedView 调度员的"待认领"视图：只看 Unclaimed，忽略 Statuses
	UnclaimedView bool
	// Search 对标题/起点/终点做模糊匹配（可选）
	Search string
}

// 默认过滤集合：全部非归档状态。
var nonArchivedStatuses = []Status{
	StatusUnclaimed, StatusPending, StatusApproved,
	StatusInTransit, StatusCompleted, StatusRejected,
}

// Scope 按角色拼出任务可见范围的查询条件。这是服务端唯一的
// 访问控制边界：任何角色都不可能读到自己范围之外的任务。
//
//   - Admin：status ∈ 过滤集（默认非归档全集）
//   - Supervisor 待认领视图：仅 Unclaimed
//   - Supervisor 默认视图：supervisor_id = 本人 AND status ∈ 过滤集
//   - Driver：assigned_driver_id = 本人 AND status ∈ 过滤集
func Scope(actor Principal, opts ListOptions) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		statuses := opts.Statuses
		if len(statuses) == 0 {
			statuses = nonArchivedStatuses
		}
		switch actor.Role {
		case user.RoleAdmin:
			db = db.Where("status IN ?", statuses)
		case user.RoleSupervisor:
			if opts.UnclaimedView {
				db = db.Where("status = ?", StatusUnclaimed)
			} else {
				db = db.Where("supervisor_id = ? AND status IN ?", actor.ID, statuses)
			}
		case user.RoleDriver:
			db = db.Where("assigned_driver_id = ? AND status IN ?", actor.ID, statuses)
		default:
			// 未知角色什么都看不到
			db = db.Where("1 = 0")
		}
		if opts.Search != "" {
			like := "%" + opts.Search + "%"
			db = db.Where("title LIKE ? OR origin LIKE ? OR destination LIKE ?", like, like, like)
		}
		return db
	}
}

// UnknownName 悬空引用的展示兜底值。
const UnknownName = "Unknown"

// NameResolver 把外键 id 解析成展示名；缺失 id 解析为 Unknown 而非报错，
// 保证引用漂移时列表仍可渲染。
type NameResolver struct {
	users    map[string]string
	vehicles map[string]string
}

func NewNameResolver(users []user.User, vehicles []VehicleRef) *NameResolver {
	r := &NameResolver{
		users:    make(map[string]string, len(users)),
		vehicles: make(map[string]string, len(vehicles)),
	}
	for _, u := range users {
		r.users[u.ID] = u.Name
	}
	for _, v := range vehicles {
		r.vehicles[v.ID] = v.Name
	}
	return r
}

// VehicleRef 解析展示名所需的最小车辆投影。
type VehicleRef struct {
	ID   string
	Name string
}

func (r *NameResolver) UserName(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := r.users[id]; ok {
		return name
	}
	return UnknownName
}

func (r *NameResolver) VehicleName(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := r.vehicles[id]; ok {
		return name
	}
	return UnknownName
}
