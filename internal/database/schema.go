package database

import (
	"context"
	"fmt"

	"github.com/paiban/shiftplan/pkg/logger"
)

// schema 建表语句，均可重复执行
var schema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		working_days_a_week INT NOT NULL DEFAULT 5,
		preferred_working_days TEXT[] NOT NULL DEFAULT '{}',
		is_working_days_flexible BOOLEAN NOT NULL DEFAULT FALSE,
		wants_to_work_six_days BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS staffing_forecasts (
		date DATE PRIMARY KEY,
		required INT NOT NULL CHECK (required >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS shifts (
		employee_id UUID NOT NULL,
		date DATE NOT NULL,
		shift_type TEXT NOT NULL,
		plan_run_id UUID,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (employee_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_date ON shifts (date)`,
	`CREATE TABLE IF NOT EXISTS plan_runs (
		id UUID PRIMARY KEY,
		week_start DATE NOT NULL,
		mode TEXT NOT NULL,
		total_required INT NOT NULL,
		total_assigned INT NOT NULL,
		shortage INT NOT NULL,
		surplus INT NOT NULL,
		coverage DOUBLE PRECISION NOT NULL,
		duration_ms BIGINT NOT NULL,
		phases JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_plan_runs_week ON plan_runs (week_start, created_at DESC)`,
}

// Migrate 创建排班所需的表
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行建表语句 %d 失败: %w", i, err)
		}
	}
	logger.Info().Int("statements", len(schema)).Msg("数据库表结构已就绪")
	return nil
}
