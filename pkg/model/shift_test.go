package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestShiftType_IsProtected(t *testing.T) {
	tests := []struct {
		typ      ShiftType
		expected bool
	}{
		{ShiftWork, false},
		{ShiftFree, false},
		{ShiftAppointment, true},
		{ShiftVacation, true},
		{ShiftSick, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if result := tt.typ.IsProtected(); result != tt.expected {
				t.Errorf("IsProtected() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestNewExistingShifts(t *testing.T) {
	empID := uuid.New()
	shifts := NewExistingShifts([]ExistingShift{
		{EmployeeID: empID, Date: "2026-01-12", ShiftType: ShiftWork},
		{EmployeeID: empID, Date: "2026-01-12", ShiftType: ShiftSick},
		{EmployeeID: empID, Date: "2026-01-13", ShiftType: ShiftFree},
	})

	if len(shifts) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(shifts))
	}

	// 后出现的记录覆盖先出现的
	s, ok := shifts.Get(empID, "2026-01-12")
	if !ok || s.ShiftType != ShiftSick {
		t.Errorf("Get() = %v, %v, expected sick", s, ok)
	}

	if _, ok := shifts.Get(uuid.New(), "2026-01-12"); ok {
		t.Error("未知员工不应有记录")
	}
}
