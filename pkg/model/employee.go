// Package model 定义排班引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// EmployeeStatus 员工状态
type EmployeeStatus string

const (
	StatusActive EmployeeStatus = "active"
	StatusFormer EmployeeStatus = "former"
)

// Employee 员工
type Employee struct {
	ID     uuid.UUID      `json:"id" yaml:"id" db:"id"`
	Name   string         `json:"name" yaml:"name" db:"name"`
	Status EmployeeStatus `json:"status" yaml:"status" db:"status"` // active/former

	// 排班相关
	WorkingDaysAWeek      int       `json:"working_days_a_week" yaml:"workingDaysAWeek" db:"working_days_a_week"`
	PreferredWorkingDays  []Weekday `json:"preferred_working_days,omitempty" yaml:"preferredWorkingDays" db:"preferred_working_days"`
	IsWorkingDaysFlexible bool      `json:"is_working_days_flexible" yaml:"isWorkingDaysFlexible" db:"is_working_days_flexible"`
	WantsToWorkSixDays    bool      `json:"wants_to_work_six_days" yaml:"wantsToWorkSixDays" db:"wants_to_work_six_days"`
}

// IsActive 检查员工是否在职（空状态视为在职）
func (e *Employee) IsActive() bool {
	return e.Status == StatusActive || e.Status == ""
}

// PrefersDay 检查某天是否为员工偏好工作日
func (e *Employee) PrefersDay(day Weekday) bool {
	for _, d := range e.PreferredWorkingDays {
		if d == day {
			return true
		}
	}
	return false
}

// CanWork 检查员工当天是否可以上班
// 灵活员工、本周临时灵活的员工或偏好日内均可
func (e *Employee) CanWork(day Weekday, temporarilyFlexible bool) bool {
	return e.IsWorkingDaysFlexible || temporarilyFlexible || e.PrefersDay(day)
}

// CanTakeSixthDay 检查员工是否接受在五天目标之外加第六天
func (e *Employee) CanTakeSixthDay(sixDayTarget int) bool {
	return e.WantsToWorkSixDays && e.WorkingDaysAWeek == sixDayTarget-1
}
