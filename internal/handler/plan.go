package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/shiftplan/internal/config"
	"github.com/paiban/shiftplan/internal/metrics"
	"github.com/paiban/shiftplan/internal/repository"
	apperrors "github.com/paiban/shiftplan/pkg/errors"
	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/planner"
	"github.com/paiban/shiftplan/pkg/staffing"
	"github.com/paiban/shiftplan/pkg/stats"
	"github.com/paiban/shiftplan/pkg/validator"
)

// WeekStore 按周读取和保存排班数据
type WeekStore interface {
	LoadWeek(ctx context.Context, week model.PlanningWeek) (*repository.WeekData, error)
	SavePlan(ctx context.Context, week model.PlanningWeek, run *repository.PlanRun, assignments []model.ShiftAssignment) (int, error)
	LatestRun(ctx context.Context, weekStart string) (*repository.PlanRun, error)
}

// PlanHandler 排班处理器
type PlanHandler struct {
	planner     *planner.Planner
	timeout     time.Duration
	mode        model.PlanningMode
	daysPerWeek int
	overrides   []staffing.Override
	store       WeekStore // 为空时不提供按周排班
}

// NewPlanHandler 创建排班处理器
func NewPlanHandler(p *planner.Planner, cfg config.PlannerConfig, store WeekStore) *PlanHandler {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	days := cfg.DaysPerWeek
	if days == 0 {
		days = 7
	}
	return &PlanHandler{
		planner:     p,
		timeout:     timeout,
		mode:        cfg.Mode(),
		daysPerWeek: days,
		overrides:   cfg.StaffingOverrides,
		store:       store,
	}
}

// AssignmentOutput 排班输出
type AssignmentOutput struct {
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name,omitempty"`
	Date         string          `json:"date"`
	Weekday      model.Weekday   `json:"weekday"`
	ShiftType    model.ShiftType `json:"shift_type"`
}

// PlanResponse 排班生成响应
type PlanResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message,omitempty"`
	PlanRunID   string                 `json:"plan_run_id,omitempty"`
	Saved       int                    `json:"saved,omitempty"`
	Week        model.PlanningWeek     `json:"week"`
	Mode        model.PlanningMode     `json:"mode"`
	Assignments []AssignmentOutput     `json:"assignments"`
	Coverage    *stats.CoverageMetrics `json:"coverage"`
	Fairness    *stats.FairnessMetrics `json:"fairness"`
	Phases      []planner.PhaseReport  `json:"phases"`
	Duration    string                 `json:"duration"`
}

// ValidateRequest 排班校验请求
type ValidateRequest struct {
	planner.Input
	Assignments []model.ShiftAssignment `json:"assignments"`
}

// ValidateResponse 校验响应
type ValidateResponse struct {
	IsValid   bool                 `json:"is_valid"`
	Errors    int                  `json:"errors"`
	Warnings  int                  `json:"warnings"`
	Conflicts []validator.Conflict `json:"conflicts"`
}

// Generate 根据请求体中的员工和需求生成排班
func (h *PlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var in planner.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	if in.Mode == "" {
		in.Mode = string(h.mode)
	}

	req, err := in.Request()
	if err != nil {
		respondError(w, err)
		return
	}

	res, fairness, err := h.plan(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, buildPlanResponse(req, res, fairness))
}

// Validate 校验一份排班结果
func (h *PlanHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var body ValidateRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, err)
		return
	}

	req, err := body.Input.Request()
	if err != nil {
		respondError(w, err)
		return
	}

	detector := validator.NewConflictDetector(&validator.DetectorConfig{
		SixDayTarget:      h.planner.Config().SixDayTarget,
		CheckCapacity:     true,
		CheckAvailability: true,
		CheckCompleteness: true,
	})
	conflicts := detector.DetectAll(planInput(req), body.Assignments)

	resp := ValidateResponse{Conflicts: conflicts}
	for _, c := range conflicts {
		metrics.RecordConflict(string(c.Type), c.Severity)
		if c.Severity == validator.SeverityError {
			resp.Errors++
		} else {
			resp.Warnings++
		}
	}
	if resp.Conflicts == nil {
		resp.Conflicts = []validator.Conflict{}
	}
	resp.IsValid = resp.Errors == 0

	respondJSON(w, http.StatusOK, resp)
}

// GenerateWeek 读取数据库中的员工、需求和已有班次，排班后保存
// 查询参数：mode、days、dry_run
func (h *PlanHandler) GenerateWeek(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, apperrors.New(apperrors.CodeNotFound, "未配置数据库，无法按周排班"))
		return
	}

	week, err := h.weekFromPath(r)
	if err != nil {
		respondError(w, err)
		return
	}

	mode := h.mode
	if m := r.URL.Query().Get("mode"); m != "" {
		parsed, ok := model.ParsePlanningMode(m)
		if !ok {
			respondError(w, apperrors.InvalidInput("mode", "不支持的排班模式: "+m))
			return
		}
		mode = parsed
	}

	data, err := h.store.LoadWeek(r.Context(), week)
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "读取排班数据失败"))
		return
	}

	required, err := staffing.Apply(week, data.Required, h.overrides)
	if err != nil {
		respondError(w, err)
		return
	}

	req := &planner.Request{
		Employees:      data.Employees,
		Week:           week,
		Required:       required,
		ExistingShifts: data.Existing,
		Mode:           mode,
	}
	res, fairness, err := h.plan(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := buildPlanResponse(req, res, fairness)
	if dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run")); dryRun {
		resp.Message = "试运行，结果未保存"
		respondJSON(w, http.StatusOK, resp)
		return
	}

	run := repository.NewPlanRun(week.Date(0), string(mode), res)
	saved, err := h.store.SavePlan(r.Context(), week, run, res.Assignments)
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存排班失败"))
		return
	}

	logger.WithContext(r.Context()).Info().
		Str("plan_run_id", run.ID.String()).
		Str("week_start", week.Date(0)).
		Int("saved", saved).
		Msg("排班已保存")

	resp.PlanRunID = run.ID.String()
	resp.Saved = saved
	respondJSON(w, http.StatusOK, resp)
}

// LatestRun 返回某周最近一次排班运行记录
func (h *PlanHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, apperrors.New(apperrors.CodeNotFound, "未配置数据库"))
		return
	}

	week, err := h.weekFromPath(r)
	if err != nil {
		respondError(w, err)
		return
	}

	run, err := h.store.LatestRun(r.Context(), week.Date(0))
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询运行记录失败"))
		return
	}
	if run == nil {
		respondError(w, apperrors.NotFound("排班运行记录", week.Date(0)))
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// weekFromPath 由路径中的周一日期和 days 参数生成排班周
func (h *PlanHandler) weekFromPath(r *http.Request) (model.PlanningWeek, error) {
	in := planner.Input{Start: r.PathValue("monday"), Days: h.daysPerWeek}
	if d := r.URL.Query().Get("days"); d != "" {
		days, err := strconv.Atoi(d)
		if err != nil || days < 6 || days > 7 {
			return nil, apperrors.InvalidWeek("days 只能为6或7")
		}
		in.Days = days
	}
	return in.PlanningWeek()
}

// plan 带超时执行排班并记录指标
func (h *PlanHandler) plan(ctx context.Context, req *planner.Request) (*planner.Result, *stats.FairnessMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	done := metrics.TrackActivePlan()
	defer done()

	start := time.Now()
	res, err := h.planner.Plan(ctx, req)
	metrics.RecordPlanGeneration(string(req.Mode), err == nil, time.Since(start))
	if err != nil {
		logger.WithContext(ctx).Error().Err(err).Str("mode", string(req.Mode)).Msg("排班失败")
		return nil, nil, err
	}

	for _, p := range res.Phases {
		metrics.RecordPhaseChanges(p.Name, p.Changes)
	}
	metrics.SetPlanQuality(string(req.Mode), res.Coverage.TotalShortage, res.Coverage.OverallCoverage)

	fairness := stats.NewFairnessAnalyzer().Analyze(req.Employees, req.Week, res.Assignments)
	metrics.SetFairness(fairness.WorkloadGini, fairness.WeekendShiftGini, fairness.TargetAttainment)

	return res, fairness, nil
}

func buildPlanResponse(req *planner.Request, res *planner.Result, fairness *stats.FairnessMetrics) PlanResponse {
	names := employeeNames(req.Employees)
	return PlanResponse{
		Success:     true,
		Message:     shortageMessage(res.Coverage),
		Week:        req.Week,
		Mode:        req.Mode,
		Assignments: toOutputs(req.Week, res.Assignments, names),
		Coverage:    res.Coverage,
		Fairness:    fairness,
		Phases:      res.Phases,
		Duration:    res.Duration.String(),
	}
}

func shortageMessage(c *stats.CoverageMetrics) string {
	if c == nil || c.TotalShortage == 0 {
		return ""
	}
	return "人手不足，全周缺口 " + strconv.Itoa(c.TotalShortage) + " 人次"
}

func employeeNames(employees []*model.Employee) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(employees))
	for _, e := range employees {
		if e != nil {
			names[e.ID] = e.Name
		}
	}
	return names
}

func toOutputs(week model.PlanningWeek, assignments []model.ShiftAssignment, names map[uuid.UUID]string) []AssignmentOutput {
	out := make([]AssignmentOutput, len(assignments))
	for i, a := range assignments {
		out[i] = AssignmentOutput{
			EmployeeID:   a.EmployeeID.String(),
			EmployeeName: names[a.EmployeeID],
			Date:         a.Date,
			Weekday:      week.Weekday(week.IndexOf(a.Date)),
			ShiftType:    a.ShiftType,
		}
	}
	return out
}

func planInput(req *planner.Request) validator.PlanInput {
	return validator.PlanInput{
		Employees:           req.Employees,
		Week:                req.Week,
		ExistingShifts:      req.ExistingShifts,
		TemporarilyFlexible: req.TemporarilyFlexible,
	}
}
