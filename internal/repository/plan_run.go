package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/shiftplan/pkg/planner"
)

// PlanRun 一次排班运行的记录
type PlanRun struct {
	ID            uuid.UUID             `json:"id"`
	WeekStart     string                `json:"week_start"`
	Mode          string                `json:"mode"`
	TotalRequired int                   `json:"total_required"`
	TotalAssigned int                   `json:"total_assigned"`
	Shortage      int                   `json:"shortage"`
	Surplus       int                   `json:"surplus"`
	Coverage      float64               `json:"coverage"`
	Duration      time.Duration         `json:"duration"`
	Phases        []planner.PhaseReport `json:"phases,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// NewPlanRun 由排班结果生成运行记录
func NewPlanRun(weekStart, mode string, res *planner.Result) *PlanRun {
	run := &PlanRun{
		ID:        uuid.New(),
		WeekStart: weekStart,
		Mode:      mode,
		Duration:  res.Duration,
		Phases:    res.Phases,
	}
	if c := res.Coverage; c != nil {
		run.TotalRequired = c.TotalRequired
		run.TotalAssigned = c.TotalAssigned
		run.Shortage = c.TotalShortage
		run.Surplus = c.TotalSurplus
		run.Coverage = c.OverallCoverage
	}
	return run
}

const planRunColumns = `id, to_char(week_start, 'YYYY-MM-DD'), mode, total_required, total_assigned,
	shortage, surplus, coverage, duration_ms, phases, created_at`

// PlanRunRepository 排班运行记录仓储
type PlanRunRepository struct {
	db DB
}

// NewPlanRunRepository 创建运行记录仓储
func NewPlanRunRepository(db DB) *PlanRunRepository {
	return &PlanRunRepository{db: db}
}

// Create 创建运行记录
func (r *PlanRunRepository) Create(ctx context.Context, run *PlanRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now()

	phasesJSON, err := json.Marshal(run.Phases)
	if err != nil {
		return fmt.Errorf("序列化阶段信息失败: %w", err)
	}

	query := `
		INSERT INTO plan_runs (
			id, week_start, mode, total_required, total_assigned,
			shortage, surplus, coverage, duration_ms, phases, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.WeekStart, run.Mode, run.TotalRequired, run.TotalAssigned,
		run.Shortage, run.Surplus, run.Coverage, run.Duration.Milliseconds(), phasesJSON, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建运行记录失败: %w", err)
	}

	return nil
}

// GetByID 根据ID获取运行记录，不存在时返回 nil
func (r *PlanRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*PlanRun, error) {
	query := `SELECT ` + planRunColumns + ` FROM plan_runs WHERE id = $1`

	run, err := scanPlanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// Latest 获取某周最近一次运行记录，不存在时返回 nil
func (r *PlanRunRepository) Latest(ctx context.Context, weekStart string) (*PlanRun, error) {
	query := `SELECT ` + planRunColumns + ` FROM plan_runs WHERE week_start = $1 ORDER BY created_at DESC LIMIT 1`

	run, err := scanPlanRun(r.db.QueryRowContext(ctx, query, weekStart))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// List 列出运行记录，日期范围按周起始日过滤
func (r *PlanRunRepository) List(ctx context.Context, filter ListFilter) ([]*PlanRun, int, error) {
	var where whereBuilder
	if filter.Status != "" {
		where.add("mode = $%d", filter.Status)
	}
	if filter.StartDate != "" {
		where.add("week_start >= $%d", filter.StartDate)
	}
	if filter.EndDate != "" {
		where.add("week_start <= $%d", filter.EndDate)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM plan_runs " + where.clause()
	if err := r.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	limitArg := where.next()
	query := fmt.Sprintf(`
		SELECT %s
		FROM plan_runs
		%s
		%s
		LIMIT $%d OFFSET $%d
	`, planRunColumns, where.clause(), filter.orderClause("created_at", "week_start", "shortage"), limitArg, limitArg+1)

	args := append(where.args, filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var runs []*PlanRun
	for rows.Next() {
		run, err := scanPlanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("遍历运行记录失败: %w", err)
	}

	return runs, total, nil
}

func scanPlanRun(row Scanner) (*PlanRun, error) {
	run := &PlanRun{}
	var durationMs int64
	var phasesJSON []byte

	err := row.Scan(
		&run.ID, &run.WeekStart, &run.Mode, &run.TotalRequired, &run.TotalAssigned,
		&run.Shortage, &run.Surplus, &run.Coverage, &durationMs, &phasesJSON, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("扫描运行记录失败: %w", err)
	}

	run.Duration = time.Duration(durationMs) * time.Millisecond
	if len(phasesJSON) > 0 {
		if err := json.Unmarshal(phasesJSON, &run.Phases); err != nil {
			return nil, fmt.Errorf("解析阶段信息失败: %w", err)
		}
	}
	return run, nil
}
