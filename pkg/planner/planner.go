package planner

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/paiban/shiftplan/pkg/errors"
	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/stats"
)

// Request 排班请求
type Request struct {
	Employees           []*model.Employee      `json:"employees"`
	Week                model.PlanningWeek     `json:"week"`
	Required            model.RequiredStaffing `json:"required"`
	ExistingShifts      model.ExistingShifts   `json:"-"`
	Mode                model.PlanningMode     `json:"mode"`
	TemporarilyFlexible model.EmployeeSet      `json:"-"`
}

// PhaseReport 单个阶段的执行情况
type PhaseReport struct {
	Name     string `json:"name"`
	Changes  int    `json:"changes"`  // 新增上班、调班或标记的数量
	Shortage int    `json:"shortage"` // 阶段结束后全周缺口
	Surplus  int    `json:"surplus"`  // 阶段结束后有需求的天的富余
}

// Result 排班结果
type Result struct {
	Assignments []model.ShiftAssignment `json:"assignments"`
	Coverage    *stats.CoverageMetrics  `json:"coverage"`
	Phases      []PhaseReport           `json:"phases"`
	Duration    time.Duration           `json:"duration"`
}

// Moves 返回某阶段的变更数
func (r *Result) Moves(phase string) int {
	for _, p := range r.Phases {
		if p.Name == phase {
			return p.Changes
		}
	}
	return 0
}

// phase 按顺序执行的排班阶段，返回变更数
type phase struct {
	name string
	run  func(*State) int
}

// Planner 排班引擎，可并发使用，每次调用独立维护状态
type Planner struct {
	cfg Config
	log *logger.PlannerLogger
}

// New 创建排班引擎，log 为空时使用全局日志
func New(cfg Config, log *logger.PlannerLogger) *Planner {
	if log == nil {
		log = logger.NewPlannerLogger()
	}
	return &Planner{cfg: cfg.normalize(), log: log}
}

// Config 返回生效的参数
func (p *Planner) Config() Config {
	return p.cfg
}

// Plan 生成一周排班
// 人手不足不算错误；只有输入无法解析、超时或结果违反硬约束时返回错误
func (p *Planner) Plan(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("request", "不能为空")
	}
	if err := checkWeek(req.Week); err != nil {
		return nil, err
	}
	mode, ok := model.ParsePlanningMode(string(req.Mode))
	if !ok {
		return nil, apperrors.InvalidInput("mode", "不支持的排班模式: "+string(req.Mode))
	}
	normalized := *req
	normalized.Mode = mode

	start := time.Now()
	s := newState(&normalized, p.cfg, p.log)
	p.log.StartPlan(req.Week.Date(0), string(mode), len(s.employees), s.days(), s.required.Total(s.week))

	var flagged map[int]bool
	phases := []phase{
		{PhaseNonFlexible, nonFlexibleFirst},
		{PhasePreferred, preferredDays},
	}
	if mode == model.ModeMaximum {
		phases = append(phases, phase{PhaseMaximum, maximumMode})
	} else {
		phases = append(phases,
			phase{PhaseLocal, localBalance},
			phase{PhaseFullDays, ensureFullDays},
			phase{PhaseWeekend, func(s *State) int {
				flagged = weekendPriority(s)
				return len(flagged)
			}},
			phase{PhaseAggressive, func(s *State) int {
				return aggressiveRebalance(s, flagged)
			}},
			phase{PhaseGlobal, globalRebalance},
		)
	}
	phases = append(phases, phase{PhaseFree, freeStatus})

	reports := make([]PhaseReport, 0, len(phases))
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeTimeout, "排班超时").WithField("phase", ph.name)
		}
		changes := ph.run(s)
		report := PhaseReport{
			Name:     ph.name,
			Changes:  changes,
			Shortage: s.totalShortage(),
			Surplus:  s.demandSurplus(),
		}
		reports = append(reports, report)
		p.log.PhaseComplete(ph.name, report.Changes, report.Shortage, report.Surplus)
	}

	out := assemble(s)
	if err := verify(s, out); err != nil {
		return nil, err
	}

	result := &Result{
		Assignments: out,
		Coverage:    stats.NewCoverageAnalyzer().Analyze(s.week, s.required, out),
		Phases:      reports,
		Duration:    time.Since(start),
	}
	p.log.PlanComplete(req.Week.Date(0), result.Duration, len(out), s.totalShortage())
	return result, nil
}

// checkWeek 排班周为6或7天且日期不重复，空周视为没有需要排的班
func checkWeek(week model.PlanningWeek) error {
	if n := week.Len(); n != 0 && (n < 6 || n > 7) {
		return apperrors.InvalidWeek(fmt.Sprintf("需要6或7天，实际为%d天", n))
	}
	seen := make(map[string]bool, week.Len())
	for _, d := range week {
		if seen[d] {
			return apperrors.InvalidWeek("日期重复: " + d)
		}
		seen[d] = true
	}
	return nil
}

// Plan 使用默认参数生成一周排班
func Plan(
	employees []*model.Employee,
	week model.PlanningWeek,
	required model.RequiredStaffing,
	existing model.ExistingShifts,
	mode model.PlanningMode,
	temporarilyFlexible model.EmployeeSet,
) ([]model.ShiftAssignment, error) {
	res, err := New(DefaultConfig(), nil).Plan(context.Background(), &Request{
		Employees:           employees,
		Week:                week,
		Required:            required,
		ExistingShifts:      existing,
		Mode:                mode,
		TemporarilyFlexible: temporarilyFlexible,
	})
	if err != nil {
		return nil, err
	}
	return res.Assignments, nil
}
