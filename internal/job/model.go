package job

import "time"

// Status 任务生命周期状态。
type Status string

const (
	StatusUnclaimed Status = "Unclaimed"
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusInTransit Status = "In Transit"
	StatusCompleted Status = "Completed"
	StatusRejected  Status = "Rejected"
	StatusArchived  Status = "Archived"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusUnclaimed, StatusPending, StatusApproved, StatusInTransit,
		StatusCompleted, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// Job 是 jobs 表的 GORM 模型。
// AssignedDriverID / AssignedVehicleID / SupervisorID 为空串表示未指派。
type Job struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Title       string `gorm:"size:128;not null" json:"title"`
	Description string `gorm:"size:1024" json:"description"`
	Origin      string `gorm:"size:256;not null" json:"origin"`
	Destination string `gorm:"size:256;not null" json:"destination"`
	// 计划日期与时间，按创建者录入原样保存
	Date string `gorm:"size:16" json:"date"`
	Time string `gorm:"size:16" json:"time"`

	Status Status `gorm:"size:16;index;not null" json:"status"`
	// Archive 前的状态，Unarchive 时恢复用
	PreviousStatus Status `gorm:"size:16" json:"previousStatus,omitempty"`

	AssignedDriverID  string `gorm:"index;size:36" json:"assignedDriverId,omitempty"`
	AssignedVehicleID string `gorm:"size:36" json:"assignedVehicleId,omitempty"`
	SupervisorID      string `gorm:"index;size:36" json:"supervisorId,omitempty"`

	CreatorID   string `gorm:"size:36;not null" json:"creatorId"`
	CreatorRole string `gorm:"size:16;not null" json:"creatorRole"`

	// 展示用冗余字段，指派/认领时由用户与车辆目录解析写入
	DriverName  string `gorm:"size:128" json:"driverName,omitempty"`
	VehicleName string `gorm:"size:128" json:"vehicleName,omitempty"`

	RoundsCompleted  int     `json:"roundsCompleted,omitempty"`
	KilometersDriven float64 `json:"kilometersDriven,omitempty"`

	RequestDate    time.Time  `gorm:"autoCreateTime" json:"requestDate"`
	CompletionDate *time.Time `json:"completionDate,omitempty"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime;index" json:"updatedAt"`
}
