package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftplan/internal/config"
	"github.com/paiban/shiftplan/internal/repository"
	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/planner"
	"github.com/paiban/shiftplan/pkg/validator"
)

// fakeStore 内存中的按周数据
type fakeStore struct {
	data      *repository.WeekData
	loadErr   error
	saved     []model.ShiftAssignment
	savedWeek model.PlanningWeek
	runs      map[string]*repository.PlanRun
}

func (s *fakeStore) LoadWeek(ctx context.Context, week model.PlanningWeek) (*repository.WeekData, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.data, nil
}

func (s *fakeStore) SavePlan(ctx context.Context, week model.PlanningWeek, run *repository.PlanRun, assignments []model.ShiftAssignment) (int, error) {
	s.savedWeek = week
	s.saved = nil
	n := 0
	for _, a := range assignments {
		if !a.ShiftType.IsProtected() {
			s.saved = append(s.saved, a)
			n++
		}
	}
	if s.runs == nil {
		s.runs = make(map[string]*repository.PlanRun)
	}
	s.runs[run.WeekStart] = run
	return n, nil
}

func (s *fakeStore) LatestRun(ctx context.Context, weekStart string) (*repository.PlanRun, error) {
	return s.runs[weekStart], nil
}

func newTestServer(t *testing.T, store WeekStore) *httptest.Server {
	t.Helper()
	p := planner.New(planner.DefaultConfig(), logger.NewPlannerLoggerFrom(zerolog.Nop()))
	cfg := config.Defaults().Planner

	mux := http.NewServeMux()
	Register(mux, NewPlanHandler(p, cfg, store))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func weekInput() map[string]interface{} {
	return map[string]interface{}{
		"start": "2026-01-05",
		"employees": []map[string]interface{}{
			{"name": "Alice", "working_days_a_week": 5, "is_working_days_flexible": true},
		},
		"required": map[string]int{"Mon": 1, "Tue": 1, "Wed": 1, "Thu": 1, "Fri": 1, "Sat": 1, "Sun": 1},
	}
}

func TestGenerate(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, out := post(t, srv, "/api/v1/plan/generate", weekInput())
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	assert.Equal(t, true, out["success"])
	assert.Equal(t, "forecast", out["mode"])
	assert.Len(t, out["assignments"], 7)
	assert.NotEmpty(t, out["message"], "understaffed week should carry a message")

	coverage := out["coverage"].(map[string]interface{})
	assert.Equal(t, float64(7), coverage["total_required"])
	assert.Equal(t, float64(5), coverage["total_assigned"])
	assert.Equal(t, float64(2), coverage["total_shortage"])
	assert.NotNil(t, out["fairness"])
}

func TestGenerate_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"未知字段", map[string]interface{}{"start": "2026-01-05", "org_id": "x"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"缺少排班周", map[string]interface{}{"employees": []interface{}{}}, http.StatusBadRequest, "INVALID_WEEK"},
		{"模式错误", map[string]interface{}{"start": "2026-01-05", "mode": "random"}, http.StatusBadRequest, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := post(t, srv, "/api/v1/plan/generate", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, out["code"])
		})
	}
}

func TestGenerate_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/plan/generate")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestValidate(t *testing.T) {
	srv := newTestServer(t, nil)

	body := weekInput()
	alice := uuid.NewSHA1(uuid.MustParse("5d1f3c2e-8a47-4b0e-9f6a-2c8e7b1d4a90"), []byte("Alice"))
	var assignments []model.ShiftAssignment
	for _, d := range []string{"2026-01-05", "2026-01-06", "2026-01-07", "2026-01-08", "2026-01-09", "2026-01-10"} {
		assignments = append(assignments, model.ShiftAssignment{EmployeeID: alice, Date: d, ShiftType: model.ShiftWork})
	}
	assignments = append(assignments, model.ShiftAssignment{EmployeeID: alice, Date: "2026-01-11", ShiftType: model.ShiftFree})
	body["assignments"] = assignments

	resp, out := post(t, srv, "/api/v1/plan/validate", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	assert.Equal(t, false, out["is_valid"])
	conflicts := out["conflicts"].([]interface{})
	require.NotEmpty(t, conflicts)
	first := conflicts[0].(map[string]interface{})
	assert.Equal(t, string(validator.ConflictCapacity), first["type"])
}

func TestStatsEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	body := weekInput()
	body["assignments"] = []model.ShiftAssignment{}

	resp, out := post(t, srv, "/api/v1/stats/coverage?format=text", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["total_shortage"])
	assert.Contains(t, out["report"], "覆盖率分析报告")

	resp, out = post(t, srv, "/api/v1/stats/workload", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, true, out["success"])
}

func TestGenerateWeek(t *testing.T) {
	alice := &model.Employee{ID: uuid.New(), Name: "Alice", Status: model.StatusActive, WorkingDaysAWeek: 5, IsWorkingDaysFlexible: true}
	store := &fakeStore{data: &repository.WeekData{
		Employees: []*model.Employee{alice},
		Required:  model.RequiredStaffing{0: 1, 1: 1, 2: 1},
		Existing: model.NewExistingShifts([]model.ExistingShift{
			{EmployeeID: alice.ID, Date: "2026-01-07", ShiftType: model.ShiftSick},
		}),
	}}
	srv := newTestServer(t, store)

	resp, out := post(t, srv, "/api/v1/weeks/2026-01-05/plan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.NotEmpty(t, out["plan_run_id"])
	assert.Equal(t, float64(6), out["saved"], "the sick day is not written back")
	for _, a := range store.saved {
		assert.NotEqual(t, "2026-01-07", a.Date)
	}
	assert.Equal(t, 7, store.savedWeek.Len(), "the whole week is replaced")
	assert.Equal(t, "2026-01-05", store.savedWeek.Date(0))

	latest, err := http.Get(srv.URL + "/api/v1/weeks/2026-01-05/runs/latest")
	require.NoError(t, err)
	defer latest.Body.Close()
	assert.Equal(t, http.StatusOK, latest.StatusCode)

	resp, out = post(t, srv, "/api/v1/weeks/2026-01-05/plan?dry_run=true&mode=maximum", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Nil(t, out["plan_run_id"])
	assert.Equal(t, "maximum", out["mode"])
}

func TestGenerateWeek_Errors(t *testing.T) {
	t.Run("未配置数据库", func(t *testing.T) {
		srv := newTestServer(t, nil)
		resp, out := post(t, srv, "/api/v1/weeks/2026-01-05/plan", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", out["code"])
	})

	t.Run("不是周一", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{})
		resp, out := post(t, srv, "/api/v1/weeks/2026-01-06/plan", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_WEEK", out["code"])
	})

	t.Run("数据库错误", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{loadErr: errors.New("connection refused")})
		resp, out := post(t, srv, "/api/v1/weeks/2026-01-05/plan", nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "DATABASE_ERROR", out["code"])
	})

	t.Run("没有运行记录", func(t *testing.T) {
		srv := newTestServer(t, &fakeStore{})
		resp, err := http.Get(srv.URL + "/api/v1/weeks/2026-01-05/runs/latest")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
