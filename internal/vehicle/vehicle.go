package vehicle

import (
	"strings"
	"time"
)

// Status 车辆状态。
type Status string

const (
	StatusAvailable   Status = "available"
	StatusInUse       Status = "in-use"
	StatusMaintenance Status = "maintenance"
)

// ValidStatus 判断是否为已知车辆状态。
func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance:
		return true
	}
	return false
}

// Vehicle 是 vehicles 表的 GORM 模型。
// Type 为受控词表（vehicle_types）中的值；词表项被删后旧值允许悬挂。
type Vehicle struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"size:64;not null"`
	Type      string    `gorm:"size:32;index;not null"`
	Capacity  string    `gorm:"size:32"`
	Status    Status    `gorm:"type:varchar(16);index;not null"`
	Location  string    `gorm:"size:128"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TypeDefinition 是 vehicle_types 表的 GORM 模型（受控词表，管理员维护）。
type TypeDefinition struct {
	ID        string    `gorm:"primaryKey;size:64"` // 由名称派生的 slug
	Name      string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// SlugifyTypeName 由名称派生词表 ID（小写、空白折叠为连字符）。
func SlugifyTypeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "-")
}
