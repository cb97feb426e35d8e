// Package model 定义排班引擎的核心数据模型
package model

import (
	"github.com/google/uuid"
)

// ShiftType 班次类型
type ShiftType string

const (
	ShiftWork        ShiftType = "work"        // 上班
	ShiftFree        ShiftType = "free"        // 休息（可上班但未安排）
	ShiftAppointment ShiftType = "appointment" // 预约
	ShiftVacation    ShiftType = "vacation"    // 休假
	ShiftSick        ShiftType = "sick"        // 病假
)

// IsProtected 预约、休假、病假为受保护班次，排班时不得改动
func (t ShiftType) IsProtected() bool {
	switch t {
	case ShiftAppointment, ShiftVacation, ShiftSick:
		return true
	}
	return false
}

// IsValid 检查班次类型是否合法
func (t ShiftType) IsValid() bool {
	switch t {
	case ShiftWork, ShiftFree, ShiftAppointment, ShiftVacation, ShiftSick:
		return true
	}
	return false
}

// ShiftKey 员工+日期
type ShiftKey struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	Date       string    `json:"date"`
}

// ExistingShift 已有班次记录
type ExistingShift struct {
	EmployeeID uuid.UUID `json:"employee_id" yaml:"employeeId" db:"employee_id"`
	Date       string    `json:"date" yaml:"date" db:"date"`
	ShiftType  ShiftType `json:"shift_type" yaml:"shiftType" db:"shift_type"`
}

// Key 返回班次键
func (s ExistingShift) Key() ShiftKey {
	return ShiftKey{EmployeeID: s.EmployeeID, Date: s.Date}
}

// ExistingShifts 已有班次索引
type ExistingShifts map[ShiftKey]ExistingShift

// NewExistingShifts 由班次列表构建索引，同一键后出现的覆盖先出现的
func NewExistingShifts(shifts []ExistingShift) ExistingShifts {
	m := make(ExistingShifts, len(shifts))
	for _, s := range shifts {
		m[s.Key()] = s
	}
	return m
}

// Get 查询某员工某日的已有班次
func (m ExistingShifts) Get(empID uuid.UUID, date string) (ExistingShift, bool) {
	s, ok := m[ShiftKey{EmployeeID: empID, Date: date}]
	return s, ok
}

// ShiftAssignment 排班结果
type ShiftAssignment struct {
	EmployeeID uuid.UUID `json:"employee_id" yaml:"employeeId" db:"employee_id"`
	Date       string    `json:"date" yaml:"date" db:"date"`
	ShiftType  ShiftType `json:"shift_type" yaml:"shiftType" db:"shift_type"`
}

// Key 返回班次键
func (a ShiftAssignment) Key() ShiftKey {
	return ShiftKey{EmployeeID: a.EmployeeID, Date: a.Date}
}

// IsWork 是否为上班
func (a ShiftAssignment) IsWork() bool {
	return a.ShiftType == ShiftWork
}
