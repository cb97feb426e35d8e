package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/paiban/shiftplan/pkg/model"
)

// Transactor 可开启事务的数据库
type Transactor interface {
	DB
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Store 汇总排班一周所需的数据访问
type Store struct {
	db        Transactor
	Employees *EmployeeRepository
	Staffing  *StaffingRepository
	Shifts    *ShiftRepository
	PlanRuns  *PlanRunRepository
}

// NewStore 创建数据访问集合
func NewStore(db Transactor) *Store {
	return &Store{
		db:        db,
		Employees: NewEmployeeRepository(db),
		Staffing:  NewStaffingRepository(db),
		Shifts:    NewShiftRepository(db),
		PlanRuns:  NewPlanRunRepository(db),
	}
}

// WeekData 排班一周的输入数据
type WeekData struct {
	Employees []*model.Employee
	Required  model.RequiredStaffing
	Existing  model.ExistingShifts
}

// LoadWeek 读取在职员工、需求预测和已有班次
func (s *Store) LoadWeek(ctx context.Context, week model.PlanningWeek) (*WeekData, error) {
	employees, err := s.Employees.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	required, err := s.Staffing.ForWeek(ctx, week)
	if err != nil {
		return nil, err
	}
	existing, err := s.Shifts.ExistingForWeek(ctx, week)
	if err != nil {
		return nil, err
	}
	return &WeekData{Employees: employees, Required: required, Existing: existing}, nil
}

// SavePlan 在一个事务中写入运行记录并替换排班周的排班结果，返回写入的班次数
func (s *Store) SavePlan(ctx context.Context, week model.PlanningWeek, run *PlanRun, assignments []model.ShiftAssignment) (int, error) {
	written := 0
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := NewPlanRunRepository(tx).Create(ctx, run); err != nil {
			return err
		}
		n, err := NewShiftRepository(tx).SavePlan(ctx, week, run.ID, assignments)
		if err != nil {
			return fmt.Errorf("保存排班结果失败: %w", err)
		}
		written = n
		return nil
	})
	return written, err
}

// LatestRun 获取某周最近一次运行记录
func (s *Store) LatestRun(ctx context.Context, weekStart string) (*PlanRun, error) {
	return s.PlanRuns.Latest(ctx, weekStart)
}

// ListEmployees 分页查询员工
func (s *Store) ListEmployees(ctx context.Context, filter ListFilter) ([]*model.Employee, int, error) {
	return s.Employees.List(ctx, filter)
}

// SaveEmployee 创建或更新员工
func (s *Store) SaveEmployee(ctx context.Context, emp *model.Employee, create bool) error {
	if create {
		return s.Employees.Create(ctx, emp)
	}
	return s.Employees.Update(ctx, emp)
}

// DeleteEmployee 将员工标记为离职
func (s *Store) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	return s.Employees.Delete(ctx, id)
}

// SaveForecast 在一个事务中写入整周需求
func (s *Store) SaveForecast(ctx context.Context, week model.PlanningWeek, required model.RequiredStaffing) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return NewStaffingRepository(tx).SaveWeek(ctx, week, required)
	})
}

// WeekShifts 获取排班周内的全部班次
func (s *Store) WeekShifts(ctx context.Context, week model.PlanningWeek) ([]model.ExistingShift, error) {
	return s.Shifts.ListByWeek(ctx, week)
}

// PutShift 手工录入单个班次，返回是否写入
func (s *Store) PutShift(ctx context.Context, a model.ShiftAssignment) (bool, error) {
	return s.Shifts.Upsert(ctx, a, nil)
}

// ClearPlanned 删除排班周内引擎生成的班次
func (s *Store) ClearPlanned(ctx context.Context, week model.PlanningWeek) (int64, error) {
	return s.Shifts.ClearPlanned(ctx, week)
}
