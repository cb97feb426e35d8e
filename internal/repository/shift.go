package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/shiftplan/pkg/model"
)

// protectedTypes 不会被排班结果覆盖的班次
var protectedTypes = []string{
	string(model.ShiftAppointment),
	string(model.ShiftVacation),
	string(model.ShiftSick),
}

// ShiftRepository 班次仓储
type ShiftRepository struct {
	db DB
}

// NewShiftRepository 创建班次仓储
func NewShiftRepository(db DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// ListByWeek 获取排班周内的已有班次，按日期和员工排序
func (r *ShiftRepository) ListByWeek(ctx context.Context, week model.PlanningWeek) ([]model.ExistingShift, error) {
	query := `
		SELECT employee_id, to_char(date, 'YYYY-MM-DD'), shift_type
		FROM shifts
		WHERE date = ANY($1::date[])
		ORDER BY date, employee_id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array([]string(week)))
	if err != nil {
		return nil, fmt.Errorf("查询班次失败: %w", err)
	}
	defer rows.Close()

	var shifts []model.ExistingShift
	for rows.Next() {
		var s model.ExistingShift
		if err := rows.Scan(&s.EmployeeID, &s.Date, &s.ShiftType); err != nil {
			return nil, fmt.Errorf("扫描班次数据失败: %w", err)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历班次失败: %w", err)
	}

	return shifts, nil
}

// ExistingForWeek 返回排班引擎使用的已有班次索引
func (r *ShiftRepository) ExistingForWeek(ctx context.Context, week model.PlanningWeek) (model.ExistingShifts, error) {
	shifts, err := r.ListByWeek(ctx, week)
	if err != nil {
		return nil, err
	}
	return model.NewExistingShifts(shifts), nil
}

// Upsert 写入单个班次，受保护的班次不会被覆盖
// 返回是否实际写入
func (r *ShiftRepository) Upsert(ctx context.Context, a model.ShiftAssignment, planRunID *uuid.UUID) (bool, error) {
	if !a.ShiftType.IsValid() {
		return false, fmt.Errorf("班次类型无效: %s", a.ShiftType)
	}

	query := `
		INSERT INTO shifts (employee_id, date, shift_type, plan_run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employee_id, date) DO UPDATE
			SET shift_type = EXCLUDED.shift_type, plan_run_id = EXCLUDED.plan_run_id, updated_at = EXCLUDED.updated_at
			WHERE shifts.shift_type <> ALL($6::text[])
	`

	result, err := r.db.ExecContext(ctx, query,
		a.EmployeeID, a.Date, a.ShiftType, planRunID, time.Now(), pq.Array(protectedTypes),
	)
	if err != nil {
		return false, fmt.Errorf("写入班次失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// SavePlan 用新的排班结果替换排班周内引擎生成的班次，返回写入条数
// 先清除上一次运行留下的记录，受保护的班次原样保留；应在事务中调用
func (r *ShiftRepository) SavePlan(ctx context.Context, week model.PlanningWeek, planRunID uuid.UUID, assignments []model.ShiftAssignment) (int, error) {
	if _, err := r.ClearPlanned(ctx, week); err != nil {
		return 0, err
	}

	written := 0
	for _, a := range assignments {
		if a.ShiftType.IsProtected() {
			continue
		}
		ok, err := r.Upsert(ctx, a, &planRunID)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// ClearPlanned 删除排班周内引擎生成的班次，保留手工录入和受保护的记录
func (r *ShiftRepository) ClearPlanned(ctx context.Context, week model.PlanningWeek) (int64, error) {
	query := `
		DELETE FROM shifts
		WHERE date = ANY($1::date[]) AND plan_run_id IS NOT NULL AND shift_type <> ALL($2::text[])
	`

	result, err := r.db.ExecContext(ctx, query, pq.Array([]string(week)), pq.Array(protectedTypes))
	if err != nil {
		return 0, fmt.Errorf("清除排班失败: %w", err)
	}

	return result.RowsAffected()
}
