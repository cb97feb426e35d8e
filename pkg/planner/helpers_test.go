package planner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/validator"
)

// 2026-01-05 是周一
var testMonday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

var weekdays = []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday}

func testWeek(days int) model.PlanningWeek {
	return model.NewPlanningWeek(testMonday, days)
}

func quietLogger() *logger.PlannerLogger {
	return logger.NewPlannerLoggerFrom(zerolog.Nop())
}

func newEmployee(name string, target int, flexible bool, preferred ...model.Weekday) *model.Employee {
	return &model.Employee{
		ID:                    uuid.New(),
		Name:                  name,
		Status:                model.StatusActive,
		WorkingDaysAWeek:      target,
		PreferredWorkingDays:  preferred,
		IsWorkingDaysFlexible: flexible,
	}
}

func runPlan(t *testing.T, req *Request) *Result {
	t.Helper()
	res, err := New(DefaultConfig(), quietLogger()).Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	return res
}

// roster 按员工、日期索引结果
func roster(out []model.ShiftAssignment) map[uuid.UUID]map[string]model.ShiftType {
	m := make(map[uuid.UUID]map[string]model.ShiftType)
	for _, a := range out {
		if m[a.EmployeeID] == nil {
			m[a.EmployeeID] = make(map[string]model.ShiftType)
		}
		m[a.EmployeeID][a.Date] = a.ShiftType
	}
	return m
}

func countType(days map[string]model.ShiftType, st model.ShiftType) int {
	n := 0
	for _, v := range days {
		if v == st {
			n++
		}
	}
	return n
}

// assertNoConflicts 用冲突检测器校验所有硬约束
func assertNoConflicts(t *testing.T, req *Request, out []model.ShiftAssignment) {
	t.Helper()
	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig())
	conflicts := detector.DetectAll(validator.PlanInput{
		Employees:           req.Employees,
		Week:                req.Week,
		ExistingShifts:      req.ExistingShifts,
		TemporarilyFlexible: req.TemporarilyFlexible,
	}, out)
	for _, c := range conflicts {
		t.Errorf("unexpected conflict %s on %s for %s: %s", c.Type, c.Date, c.EmployeeID, c.Message)
	}
}

// assertConsistent 检查状态三组数据一致
func assertConsistent(t *testing.T, s *State) {
	t.Helper()
	counts := make(map[uuid.UUID]int)
	for day := 0; day < s.days(); day++ {
		set := s.assigned[s.date(day)]
		if len(set) != s.filled[day] {
			t.Errorf("day %d: filled=%d but %d assigned", day, s.filled[day], len(set))
		}
		for id := range set {
			counts[id]++
		}
	}
	for _, p := range s.protected {
		if _, ok := s.order[p.EmployeeID]; ok {
			counts[p.EmployeeID]++
		}
	}
	for _, e := range s.employees {
		if counts[e.ID] != s.count(e) {
			t.Errorf("employee %s: count=%d, expected %d", e.Name, s.count(e), counts[e.ID])
		}
	}
}
