package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/paiban/shiftplan/pkg/model"
)

// StaffingRepository 每日需求人数预测
type StaffingRepository struct {
	db DB
}

// NewStaffingRepository 创建需求仓储
func NewStaffingRepository(db DB) *StaffingRepository {
	return &StaffingRepository{db: db}
}

// ForWeek 读取排班周的需求，没有预测的天不出现在结果中
func (r *StaffingRepository) ForWeek(ctx context.Context, week model.PlanningWeek) (model.RequiredStaffing, error) {
	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), required
		FROM staffing_forecasts
		WHERE date = ANY($1::date[])
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array([]string(week)))
	if err != nil {
		return nil, fmt.Errorf("查询需求预测失败: %w", err)
	}
	defer rows.Close()

	required := make(model.RequiredStaffing, week.Len())
	for rows.Next() {
		var date string
		var n int
		if err := rows.Scan(&date, &n); err != nil {
			return nil, fmt.Errorf("扫描需求预测失败: %w", err)
		}
		if i := week.IndexOf(date); i >= 0 {
			required[i] = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历需求预测失败: %w", err)
	}

	return required, nil
}

// Upsert 写入某天的需求
func (r *StaffingRepository) Upsert(ctx context.Context, date string, required int) error {
	if required < 0 {
		return fmt.Errorf("需求人数不能为负: %d", required)
	}

	query := `
		INSERT INTO staffing_forecasts (date, required, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (date) DO UPDATE SET required = EXCLUDED.required, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, date, required, time.Now()); err != nil {
		return fmt.Errorf("写入需求预测失败: %w", err)
	}
	return nil
}

// SaveWeek 写入整周需求，缺失的天记为0
func (r *StaffingRepository) SaveWeek(ctx context.Context, week model.PlanningWeek, required model.RequiredStaffing) error {
	for i := 0; i < week.Len(); i++ {
		if err := r.Upsert(ctx, week.Date(i), required.For(i)); err != nil {
			return err
		}
	}
	return nil
}
