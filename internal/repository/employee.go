package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/shiftplan/pkg/model"
)

const employeeColumns = `id, name, status, working_days_a_week, preferred_working_days,
	is_working_days_flexible, wants_to_work_six_days`

// EmployeeRepository 员工仓储
type EmployeeRepository struct {
	db DB
}

var _ Repository[model.Employee] = (*EmployeeRepository)(nil)

// NewEmployeeRepository 创建员工仓储
func NewEmployeeRepository(db DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create 创建员工
func (r *EmployeeRepository) Create(ctx context.Context, emp *model.Employee) error {
	if emp.ID == uuid.Nil {
		emp.ID = uuid.New()
	}
	if emp.Status == "" {
		emp.Status = model.StatusActive
	}

	query := `
		INSERT INTO employees (` + employeeColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Status, emp.WorkingDaysAWeek, pq.Array(weekdayStrings(emp.PreferredWorkingDays)),
		emp.IsWorkingDaysFlexible, emp.WantsToWorkSixDays, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("创建员工失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取员工，不存在时返回 nil
func (r *EmployeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	emp, err := scanEmployee(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return emp, err
}

// Update 更新员工
func (r *EmployeeRepository) Update(ctx context.Context, emp *model.Employee) error {
	query := `
		UPDATE employees SET
			name = $2, status = $3, working_days_a_week = $4, preferred_working_days = $5,
			is_working_days_flexible = $6, wants_to_work_six_days = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Status, emp.WorkingDaysAWeek, pq.Array(weekdayStrings(emp.PreferredWorkingDays)),
		emp.IsWorkingDaysFlexible, emp.WantsToWorkSixDays, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("更新员工失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("员工 %s: %w", emp.ID, ErrNotFound)
	}

	return nil
}

// Delete 将员工标记为离职，历史班次保留
func (r *EmployeeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE employees SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $2`

	result, err := r.db.ExecContext(ctx, query, id, model.StatusFormer, time.Now())
	if err != nil {
		return fmt.Errorf("删除员工失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("员工 %s: %w", id, ErrNotFound)
	}

	return nil
}

// List 查询员工列表
func (r *EmployeeRepository) List(ctx context.Context, filter ListFilter) ([]*model.Employee, int, error) {
	var where whereBuilder
	if filter.Status != "" {
		where.add("status = $%d", filter.Status)
	}
	if filter.Search != "" {
		where.add("name ILIKE $%d", "%"+filter.Search+"%")
	}

	countQuery := "SELECT COUNT(*) FROM employees " + where.clause()
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	limitArg := where.next()
	query := fmt.Sprintf(`
		SELECT %s
		FROM employees
		%s
		%s, id
		LIMIT $%d OFFSET $%d
	`, employeeColumns, where.clause(), filter.orderClause("created_at", "name"), limitArg, limitArg+1)

	args := append(where.args, filter.Limit, filter.Offset)
	employees, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

// ListActive 获取所有在职员工，按创建时间排序
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]*model.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE status = $1 ORDER BY created_at, id`
	return r.query(ctx, query, model.StatusActive)
}

func (r *EmployeeRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Employee, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询员工失败: %w", err)
	}
	defer rows.Close()

	var employees []*model.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历员工失败: %w", err)
	}

	return employees, nil
}

// scanEmployee 扫描单行员工数据
func scanEmployee(row Scanner) (*model.Employee, error) {
	emp := &model.Employee{}
	var days []string

	err := row.Scan(
		&emp.ID, &emp.Name, &emp.Status, &emp.WorkingDaysAWeek, pq.Array(&days),
		&emp.IsWorkingDaysFlexible, &emp.WantsToWorkSixDays,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("扫描员工数据失败: %w", err)
	}

	emp.PreferredWorkingDays = parseWeekdays(days)
	return emp, nil
}

func weekdayStrings(days []model.Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

// parseWeekdays 忽略无法识别的星期
func parseWeekdays(days []string) []model.Weekday {
	out := make([]model.Weekday, 0, len(days))
	for _, s := range days {
		if d, ok := model.ParseWeekday(s); ok {
			out = append(out, d)
		}
	}
	return out
}
