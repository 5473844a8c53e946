package user

import (
	"strings"
	"time"
)

// Role 系统角色（持久化为字符串）。
type Role string

const (
	RoleAdmin      Role = "Admin"      // 管理员：建单、审批、指派、归档
	RoleSupervisor Role = "Supervisor" // 调度主管：建单、认领
	RoleDriver     Role = "Driver"     // 司机：执行运输任务
)

// ValidRole 判断是否为已知角色。
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleDriver:
		return true
	}
	return false
}

// User 是 users 表的 GORM 模型。
// 身份凭证与业务档案一一对应（同一行），管理员删除用户即回收其登录能力。
type User struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Name         string    `gorm:"size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	PasswordSalt string    `gorm:"size:64;not null"`
	Role         Role      `gorm:"type:varchar(16);index;not null"`
	AvatarURL    string    `gorm:"size:255"`
	// 以下字段仅对 Driver 有意义，其余角色忽略
	Availability    bool   `gorm:"not null;default:false"`
	CurrentLocation string `gorm:"size:128"`
	PastJobs        string `gorm:"size:2048"` // 逗号分隔的历史任务 ID
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// IsDriver 是否司机角色。
func (u User) IsDriver() bool {
	return u.Role == RoleDriver
}

// PastJobsSlice 返回历史任务 ID 列表。
func (u User) PastJobsSlice() []string {
	return splitCSV(u.PastJobs)
}

// AppendPastJob 追加一条历史任务 ID（去重）。
func (u *User) AppendPastJob(jobID string) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return
	}
	for _, id := range u.PastJobsSlice() {
		if id == jobID {
			return
		}
	}
	if u.PastJobs == "" {
		u.PastJobs = jobID
		return
	}
	u.PastJobs = u.PastJobs + "," + jobID
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
