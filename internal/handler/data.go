package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/paiban/shiftplan/internal/repository"
	apperrors "github.com/paiban/shiftplan/pkg/errors"
	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/planner"
	"github.com/paiban/shiftplan/pkg/staffing"
)

// DataStore 员工、需求预测和班次的维护
type DataStore interface {
	ListEmployees(ctx context.Context, filter repository.ListFilter) ([]*model.Employee, int, error)
	SaveEmployee(ctx context.Context, emp *model.Employee, create bool) error
	DeleteEmployee(ctx context.Context, id uuid.UUID) error
	SaveForecast(ctx context.Context, week model.PlanningWeek, required model.RequiredStaffing) error
	WeekShifts(ctx context.Context, week model.PlanningWeek) ([]model.ExistingShift, error)
	PutShift(ctx context.Context, a model.ShiftAssignment) (bool, error)
	ClearPlanned(ctx context.Context, week model.PlanningWeek) (int64, error)
}

// DataHandler 基础数据处理器
type DataHandler struct {
	store DataStore
	weeks *PlanHandler // 复用排班周解析
}

// NewDataHandler 创建基础数据处理器
func NewDataHandler(store DataStore, plans *PlanHandler) *DataHandler {
	return &DataHandler{store: store, weeks: plans}
}

// EmployeeListResponse 员工列表响应
type EmployeeListResponse struct {
	Items  []*model.Employee `json:"items"`
	Total  int               `json:"total"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
}

// ForecastRequest 整周需求，键可以是天下标、日期或星期标签
type ForecastRequest struct {
	Required  map[string]int      `json:"required"`
	Overrides []staffing.Override `json:"overrides,omitempty"`
}

// ShiftRequest 手工录入的班次
type ShiftRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	ShiftType  string `json:"shift_type"`
}

// ListEmployees 查询员工，支持 status、search、offset、limit、order_by、order_dir
func (h *DataHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithStatus(q.Get("status"))
	filter.Search = q.Get("search")
	if v := q.Get("order_by"); v != "" {
		filter.OrderBy = v
	}
	if v := q.Get("order_dir"); v != "" {
		filter.OrderDir = v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			respondError(w, apperrors.InvalidInput("limit", "取值范围为1-200"))
			return
		}
		filter = filter.WithLimit(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, apperrors.InvalidInput("offset", "不能为负数"))
			return
		}
		filter = filter.WithOffset(n)
	}

	items, total, err := h.store.ListEmployees(r.Context(), filter)
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询员工失败"))
		return
	}
	if items == nil {
		items = []*model.Employee{}
	}
	respondJSON(w, http.StatusOK, EmployeeListResponse{Items: items, Total: total, Offset: filter.Offset, Limit: filter.Limit})
}

// CreateEmployee 新增员工，未填写ID时按姓名生成
func (h *DataHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	emp, ok := decodeEmployee(w, r)
	if !ok {
		return
	}
	if err := h.store.SaveEmployee(r.Context(), emp, true); err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "创建员工失败"))
		return
	}

	logger.WithContext(r.Context()).Info().
		Str("employee_id", emp.ID.String()).
		Str("name", emp.Name).
		Msg("员工已创建")
	respondJSON(w, http.StatusCreated, emp)
}

// UpdateEmployee 更新员工，ID 取自路径
func (h *DataHandler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, apperrors.InvalidInput("id", "不是有效的UUID"))
		return
	}
	emp, ok := decodeEmployee(w, r)
	if !ok {
		return
	}
	emp.ID = id

	if err := h.store.SaveEmployee(r.Context(), emp, false); err != nil {
		respondError(w, storeError(err, "员工", id.String(), "更新员工失败"))
		return
	}
	respondJSON(w, http.StatusOK, emp)
}

// DeleteEmployee 将员工标记为离职，历史班次保留
func (h *DataHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, apperrors.InvalidInput("id", "不是有效的UUID"))
		return
	}
	if err := h.store.DeleteEmployee(r.Context(), id); err != nil {
		respondError(w, storeError(err, "员工", id.String(), "删除员工失败"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutForecast 写入整周需求预测，未列出的天记为0
func (h *DataHandler) PutForecast(w http.ResponseWriter, r *http.Request) {
	var body ForecastRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, err)
		return
	}
	week, err := h.weeks.weekFromPath(r)
	if err != nil {
		respondError(w, err)
		return
	}

	in := planner.Input{Week: week, Required: body.Required, Overrides: body.Overrides}
	req, err := in.Request()
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.store.SaveForecast(r.Context(), req.Week, req.Required); err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "保存需求预测失败"))
		return
	}

	out := make(map[string]int, week.Len())
	for i := 0; i < week.Len(); i++ {
		out[week.Date(i)] = req.Required.For(i)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"week": week, "required": out})
}

// ListShifts 返回排班周内的全部班次
func (h *DataHandler) ListShifts(w http.ResponseWriter, r *http.Request) {
	week, err := h.weeks.weekFromPath(r)
	if err != nil {
		respondError(w, err)
		return
	}
	shifts, err := h.store.WeekShifts(r.Context(), week)
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "查询班次失败"))
		return
	}
	if shifts == nil {
		shifts = []model.ExistingShift{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"week": week, "shifts": shifts})
}

// PutShift 录入预约、休假、病假等班次；已有的受保护班次不会被覆盖
func (h *DataHandler) PutShift(w http.ResponseWriter, r *http.Request) {
	var body ShiftRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, err)
		return
	}
	week, err := h.weeks.weekFromPath(r)
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := uuid.Parse(body.EmployeeID)
	if err != nil {
		respondError(w, apperrors.InvalidInput("employee_id", "不是有效的UUID"))
		return
	}
	if week.IndexOf(body.Date) < 0 {
		respondError(w, apperrors.InvalidInput("date", body.Date+" 不在排班周内"))
		return
	}
	shift := model.ShiftAssignment{EmployeeID: id, Date: body.Date, ShiftType: model.ShiftType(body.ShiftType)}
	if !shift.ShiftType.IsValid() {
		respondError(w, apperrors.InvalidInput("shift_type", "不支持的班次类型: "+body.ShiftType))
		return
	}

	written, err := h.store.PutShift(r.Context(), shift)
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "写入班次失败"))
		return
	}
	if !written {
		respondError(w, apperrors.ScheduleConflict(id.String(), body.Date, "已有受保护的班次"))
		return
	}
	respondJSON(w, http.StatusOK, shift)
}

// ClearPlan 删除排班周内引擎生成的班次，手工录入的记录保留
func (h *DataHandler) ClearPlan(w http.ResponseWriter, r *http.Request) {
	week, err := h.weeks.weekFromPath(r)
	if err != nil {
		respondError(w, err)
		return
	}
	n, err := h.store.ClearPlanned(r.Context(), week)
	if err != nil {
		respondError(w, apperrors.Wrap(err, apperrors.CodeDatabaseError, "清除排班失败"))
		return
	}

	logger.WithContext(r.Context()).Info().
		Str("week_start", week.Date(0)).
		Int64("deleted", n).
		Msg("已清除排班")
	respondJSON(w, http.StatusOK, map[string]interface{}{"week": week, "deleted": n})
}

func decodeEmployee(w http.ResponseWriter, r *http.Request) (*model.Employee, bool) {
	var in planner.EmployeeInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return nil, false
	}
	emp, err := in.ToEmployee()
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	if emp.Status == "" {
		emp.Status = model.StatusActive
	}
	return emp, true
}

// storeError 区分记录不存在和数据库错误
func storeError(err error, resource, id, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, id)
	}
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, message)
}
