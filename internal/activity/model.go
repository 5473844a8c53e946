package activity

import "time"

// Log 是 activity_logs 表的 GORM 模型（追加写，不做单条修改/删除）。
type Log struct {
	ID           string    `gorm:"primaryKey;size:36"`
	JobID        string    `gorm:"index;size:36"` // 可为空（用户/车辆类操作）
	UserID       string    `gorm:"index;size:36;not null"`
	ActivityType string    `gorm:"size:64;not null"`
	Description  string    `gorm:"size:512"`
	Timestamp    time.Time `gorm:"autoCreateTime;index"`
}

// 常用 activity type 标签。
const (
	TypeJobCreation   = "Job Creation"
	TypeJobClaimed    = "Job Claimed"
	TypeAssignment    = "Assignment"
	TypeStatusUpdate  = "Status Update"
	TypeJobRejected   = "Job Rejected"
	TypeJobArchived   = "Job Archived"
	TypeJobUnarchived = "Job Unarchived"
	TypeJobPurged     = "Job Purged"
)
