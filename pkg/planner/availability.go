package planner

import (
	"github.com/google/uuid"

	"github.com/paiban/shiftplan/pkg/model"
)

// CanWork 判断员工当天是否可上班
func CanWork(emp *model.Employee, day model.Weekday, temporarilyFlexible model.EmployeeSet) bool {
	return emp.CanWork(day, temporarilyFlexible.Has(emp.ID))
}

// ProtectedShift 返回员工当天的受保护班次（预约/休假/病假）
// 已有的上班、休息记录不受保护，返回 false
func ProtectedShift(empID uuid.UUID, date string, existing model.ExistingShifts) (model.ShiftType, bool) {
	s, ok := existing.Get(empID, date)
	if !ok || !s.ShiftType.IsProtected() {
		return "", false
	}
	return s.ShiftType, true
}
