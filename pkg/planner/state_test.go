package planner

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/paiban/shiftplan/pkg/model"
)

func stateFor(employees []*model.Employee, week model.PlanningWeek, required model.RequiredStaffing, existing []model.ExistingShift) *State {
	req := &Request{
		Employees:      employees,
		Week:           week,
		Required:       required,
		ExistingShifts: model.NewExistingShifts(existing),
		Mode:           model.ModeForecast,
	}
	return newState(req, DefaultConfig(), quietLogger())
}

func TestSortEmployees(t *testing.T) {
	flex := newEmployee("flex", 5, true)
	wide := newEmployee("wide", 5, false, weekdays...)
	narrow := newEmployee("narrow", 2, false, model.Monday)
	former := newEmployee("former", 5, false, model.Monday)
	former.Status = model.StatusFormer

	got := sortEmployees([]*model.Employee{flex, wide, former, nil, narrow, wide})
	want := []*model.Employee{narrow, wide, flex}
	if len(got) != len(want) {
		t.Fatalf("got %d employees, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i].Name, want[i].Name)
		}
	}
}

func TestNewState_Seeding(t *testing.T) {
	week := testWeek(7)
	e := newEmployee("E", 2, false, model.Monday, model.Tuesday, model.Wednesday)
	other := uuid.New()

	s := stateFor([]*model.Employee{e}, week, nil, []model.ExistingShift{
		{EmployeeID: e.ID, Date: week.Date(0), ShiftType: model.ShiftSick},
		{EmployeeID: e.ID, Date: week.Date(1), ShiftType: model.ShiftWork},
		{EmployeeID: e.ID, Date: week.Date(2), ShiftType: model.ShiftWork},  // 已达目标，不保留
		{EmployeeID: e.ID, Date: week.Date(4), ShiftType: model.ShiftWork},  // 非偏好日，不保留
		{EmployeeID: other, Date: week.Date(3), ShiftType: model.ShiftWork}, // 名单外，不保留
		{EmployeeID: other, Date: week.Date(0), ShiftType: model.ShiftVacation},
	})

	if s.count(e) != 2 {
		t.Errorf("count = %d, want 2 (sick + one prior work day)", s.count(e))
	}
	if !s.isAssigned(e, 1) || s.isAssigned(e, 2) || s.isAssigned(e, 4) {
		t.Error("prior work seeded incorrectly")
	}
	if s.filled[1] != 1 || s.filled[3] != 0 {
		t.Errorf("filled = %v", s.filled)
	}
	if len(s.protected) != 2 {
		t.Errorf("protected = %d, want 2", len(s.protected))
	}
	if s.protected[0].EmployeeID != e.ID {
		t.Error("roster employees should sort before unknown ones on the same day")
	}
	assertConsistent(t, s)
}

func TestNewState_IgnorePriorWork(t *testing.T) {
	week := testWeek(7)
	e := newEmployee("E", 5, true)
	cfg := DefaultConfig()
	cfg.KeepPriorWork = false

	s := newState(&Request{
		Employees: []*model.Employee{e},
		Week:      week,
		ExistingShifts: model.NewExistingShifts([]model.ExistingShift{
			{EmployeeID: e.ID, Date: week.Date(0), ShiftType: model.ShiftWork},
		}),
	}, cfg, quietLogger())

	if s.count(e) != 0 || s.filled[0] != 0 {
		t.Error("prior work should be ignored")
	}
}

func TestState_MoveIsAtomic(t *testing.T) {
	week := testWeek(7)
	e := newEmployee("E", 3, true)
	s := stateFor([]*model.Employee{e}, week, model.RequiredStaffing{0: 1, 1: 1}, []model.ExistingShift{
		{EmployeeID: e.ID, Date: week.Date(2), ShiftType: model.ShiftAppointment},
	})

	s.assign(e, 0)
	s.free[model.ShiftKey{EmployeeID: e.ID, Date: week.Date(1)}] = true

	t.Run("正常调班", func(t *testing.T) {
		if !s.move(e, 0, 1) {
			t.Fatal("move should succeed")
		}
		if s.filled[0] != 0 || s.filled[1] != 1 || s.count(e) != 2 {
			t.Errorf("filled=%v count=%d", s.filled, s.count(e))
		}
		if !s.free[model.ShiftKey{EmployeeID: e.ID, Date: week.Date(0)}] {
			t.Error("vacated day should become free")
		}
		if s.free[model.ShiftKey{EmployeeID: e.ID, Date: week.Date(1)}] {
			t.Error("target day should no longer be free")
		}
		assertConsistent(t, s)
	})

	t.Run("受保护班次", func(t *testing.T) {
		if s.move(e, 1, 2) {
			t.Error("move onto an appointment must be refused")
		}
		if s.filled[1] != 1 || s.filled[2] != 0 {
			t.Errorf("refused move changed state: %v", s.filled)
		}
		assertConsistent(t, s)
	})

	t.Run("来源未排班", func(t *testing.T) {
		if s.move(e, 3, 4) {
			t.Error("move from an unassigned day must be refused")
		}
	})
}

func TestState_Ratios(t *testing.T) {
	week := testWeek(7)
	a := newEmployee("A", 5, true)
	b := newEmployee("B", 5, true)
	s := stateFor([]*model.Employee{a, b}, week, model.RequiredStaffing{0: 4, 1: 1, 2: 0}, nil)

	s.assign(a, 0)
	s.assign(a, 1)
	s.assign(b, 1)
	s.assign(b, 2)

	tests := []struct {
		name      string
		got, want float64
	}{
		{"周一缺口率", s.imbalanceRatio(0), 0.75},
		{"周二满足", s.imbalanceRatio(1), 0},
		{"无需求", s.imbalanceRatio(2), 0},
		{"周二富余率", s.surplusRatio(1), 1},
		{"无需求富余率", s.surplusRatio(2), math.Inf(1)},
		{"空日富余率", s.surplusRatio(3), 0},
		{"平均满足率", s.averageFillRatio(), (0.25 + 2) / 2},
		{"周二减一人", s.imbalanceAfterRemoval(1), 0},
		{"周一减一人", s.imbalanceAfterRemoval(0), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if s.classify(0) != DayUnderfilled || s.classify(1) != DayOverfilled || s.classify(2) != DayBalanced {
		t.Error("classification mismatch")
	}
	if s.totalShortage() != 3 || s.demandSurplus() != 1 {
		t.Errorf("shortage=%d surplus=%d", s.totalShortage(), s.demandSurplus())
	}
}

func TestState_ExtraDay(t *testing.T) {
	week := testWeek(7)
	c := newEmployee("C", 5, true)
	c.WantsToWorkSixDays = true
	s := stateFor([]*model.Employee{c}, week, model.RequiredStaffing{5: 1, 6: 1}, nil)

	for day := 0; day < 5; day++ {
		s.assign(c, day)
	}
	if !s.mayTakeExtra(c) {
		t.Fatal("weekend shortage should allow a sixth day")
	}
	s.assign(c, 5)
	if s.count(c) != 6 || !s.extra[c.ID] {
		t.Fatalf("count = %d", s.count(c))
	}
	if s.mayTakeExtra(c) {
		t.Error("only one extra day is allowed")
	}
	if s.capacity(c, true) != 5 {
		t.Errorf("capacity = %d, want 5", s.capacity(c, true))
	}
}
