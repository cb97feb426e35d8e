package planner

import (
	"fmt"
	"strings"

	apperrors "github.com/paiban/shiftplan/pkg/errors"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/validator"
)

// assemble 输出最终排班：受保护班次、上班、休息依次排列
// 同类记录按天、员工排序位置排列
func assemble(s *State) []model.ShiftAssignment {
	out := make([]model.ShiftAssignment, 0, len(s.protected)+s.days()*len(s.employees))
	out = append(out, s.protected...)

	for day := 0; day < s.days(); day++ {
		for _, e := range s.workersOn(day) {
			out = append(out, model.ShiftAssignment{
				EmployeeID: e.ID,
				Date:       s.date(day),
				ShiftType:  model.ShiftWork,
			})
		}
	}

	for day := 0; day < s.days(); day++ {
		for _, e := range s.employees {
			key := model.ShiftKey{EmployeeID: e.ID, Date: s.date(day)}
			if !s.free[key] || s.isAssigned(e, day) || s.isProtected(e, day) {
				continue
			}
			out = append(out, model.ShiftAssignment{
				EmployeeID: e.ID,
				Date:       key.Date,
				ShiftType:  model.ShiftFree,
			})
		}
	}
	return out
}

// verify 最终检查：每人每天最多一条记录，受保护班次原样保留
func verify(s *State, out []model.ShiftAssignment) error {
	conflicts := validator.CheckUniqueness(out)
	conflicts = append(conflicts, validator.CheckProtection(out, s.existing, s.week)...)
	if len(conflicts) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		msgs = append(msgs, fmt.Sprintf("%s %s: %s", c.Date, c.EmployeeID, c.Message))
	}
	details := strings.Join(msgs, "; ")
	invariant := string(conflicts[0].Type)
	s.log.InvariantViolation(invariant, details)
	return apperrors.InvariantViolation(invariant, details)
}
