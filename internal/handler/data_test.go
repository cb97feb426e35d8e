package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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
)

// fakeDataStore 内存中的基础数据
type fakeDataStore struct {
	employees map[uuid.UUID]*model.Employee
	forecast  map[string]int
	shifts    map[model.ShiftKey]model.ShiftType
	filter    repository.ListFilter
}

func newFakeDataStore() *fakeDataStore {
	return &fakeDataStore{
		employees: make(map[uuid.UUID]*model.Employee),
		forecast:  make(map[string]int),
		shifts:    make(map[model.ShiftKey]model.ShiftType),
	}
}

func (s *fakeDataStore) ListEmployees(ctx context.Context, filter repository.ListFilter) ([]*model.Employee, int, error) {
	s.filter = filter
	var out []*model.Employee
	for _, e := range s.employees {
		if filter.Status == "" || string(e.Status) == filter.Status {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (s *fakeDataStore) SaveEmployee(ctx context.Context, emp *model.Employee, create bool) error {
	if _, ok := s.employees[emp.ID]; !ok && !create {
		return fmt.Errorf("员工 %s: %w", emp.ID, repository.ErrNotFound)
	}
	s.employees[emp.ID] = emp
	return nil
}

func (s *fakeDataStore) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	e, ok := s.employees[id]
	if !ok || e.Status == model.StatusFormer {
		return fmt.Errorf("员工 %s: %w", id, repository.ErrNotFound)
	}
	e.Status = model.StatusFormer
	return nil
}

func (s *fakeDataStore) SaveForecast(ctx context.Context, week model.PlanningWeek, required model.RequiredStaffing) error {
	for i := 0; i < week.Len(); i++ {
		s.forecast[week.Date(i)] = required.For(i)
	}
	return nil
}

func (s *fakeDataStore) WeekShifts(ctx context.Context, week model.PlanningWeek) ([]model.ExistingShift, error) {
	var out []model.ExistingShift
	for k, t := range s.shifts {
		if week.IndexOf(k.Date) >= 0 {
			out = append(out, model.ExistingShift{EmployeeID: k.EmployeeID, Date: k.Date, ShiftType: t})
		}
	}
	return out, nil
}

func (s *fakeDataStore) PutShift(ctx context.Context, a model.ShiftAssignment) (bool, error) {
	if t, ok := s.shifts[a.Key()]; ok && t.IsProtected() {
		return false, nil
	}
	s.shifts[a.Key()] = a.ShiftType
	return true, nil
}

func (s *fakeDataStore) ClearPlanned(ctx context.Context, week model.PlanningWeek) (int64, error) {
	var n int64
	for k, t := range s.shifts {
		if week.IndexOf(k.Date) >= 0 && !t.IsProtected() {
			delete(s.shifts, k)
			n++
		}
	}
	return n, nil
}

func newDataServer(t *testing.T, store *fakeDataStore) *httptest.Server {
	t.Helper()
	p := planner.New(planner.DefaultConfig(), logger.NewPlannerLoggerFrom(zerolog.Nop()))
	plans := NewPlanHandler(p, config.Defaults().Planner, nil)

	mux := http.NewServeMux()
	RegisterData(mux, NewDataHandler(store, plans))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestEmployeeLifecycle(t *testing.T) {
	store := newFakeDataStore()
	srv := newDataServer(t, store)

	resp, out := send(t, "POST", srv.URL+"/api/v1/employees", map[string]interface{}{
		"name":                   "Alice",
		"working_days_a_week":    5,
		"preferred_working_days": []string{"Mon", "tuesday"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	id := out["id"].(string)
	assert.Equal(t, "active", out["status"])
	assert.Equal(t, []interface{}{"Mon", "Tue"}, out["preferred_working_days"])

	resp, out = send(t, "PUT", srv.URL+"/api/v1/employees/"+id, map[string]interface{}{
		"name":                   "Alice",
		"working_days_a_week":    6,
		"wants_to_work_six_days": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, 6, store.employees[uuid.MustParse(id)].WorkingDaysAWeek)

	resp, out = send(t, "GET", srv.URL+"/api/v1/employees?status=active&limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, float64(1), out["total"])
	assert.Equal(t, 5, store.filter.Limit)

	resp, _ = send(t, "DELETE", srv.URL+"/api/v1/employees/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, model.StatusFormer, store.employees[uuid.MustParse(id)].Status)

	resp, out = send(t, "DELETE", srv.URL+"/api/v1/employees/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", out["code"])
}

func TestEmployee_BadRequests(t *testing.T) {
	srv := newDataServer(t, newFakeDataStore())

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"缺少姓名", "POST", "/api/v1/employees", map[string]interface{}{"working_days_a_week": 5}, http.StatusBadRequest},
		{"天数超出范围", "POST", "/api/v1/employees", map[string]interface{}{"name": "Bob", "working_days_a_week": 8}, http.StatusBadRequest},
		{"星期无法识别", "POST", "/api/v1/employees", map[string]interface{}{"name": "Bob", "preferred_working_days": []string{"Funday"}}, http.StatusBadRequest},
		{"ID无效", "PUT", "/api/v1/employees/abc", map[string]interface{}{"name": "Bob"}, http.StatusBadRequest},
		{"更新不存在的员工", "PUT", "/api/v1/employees/" + uuid.NewString(), map[string]interface{}{"name": "Bob"}, http.StatusNotFound},
		{"limit无效", "GET", "/api/v1/employees?limit=0", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := send(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, out)
		})
	}
}

func TestPutForecast(t *testing.T) {
	store := newFakeDataStore()
	srv := newDataServer(t, store)

	resp, out := send(t, "PUT", srv.URL+"/api/v1/weeks/2026-01-05/forecast", map[string]interface{}{
		"required": map[string]int{"Mon": 3, "2026-01-06": 2, "6": 1},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	assert.Equal(t, 3, store.forecast["2026-01-05"])
	assert.Equal(t, 2, store.forecast["2026-01-06"])
	assert.Equal(t, 0, store.forecast["2026-01-07"], "unlisted days are stored as zero")
	assert.Equal(t, 1, store.forecast["2026-01-11"])
	assert.Len(t, store.forecast, 7)

	resp, out = send(t, "PUT", srv.URL+"/api/v1/weeks/2026-01-05/forecast?days=6", map[string]interface{}{
		"required": map[string]int{"Mon": 4, "2026-01-11": 5, "Sun": 5},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, 4, store.forecast["2026-01-05"])
	assert.Equal(t, 1, store.forecast["2026-01-11"], "the Sunday is outside a six-day week and stays untouched")

	resp, out = send(t, "PUT", srv.URL+"/api/v1/weeks/2026-01-05/forecast", map[string]interface{}{
		"required": map[string]int{"someday": 1},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", out["code"])
}

func TestShifts(t *testing.T) {
	store := newFakeDataStore()
	srv := newDataServer(t, store)
	alice := uuid.New()
	base := srv.URL + "/api/v1/weeks/2026-01-05/shifts"

	resp, out := send(t, "PUT", base, map[string]string{"employee_id": alice.String(), "date": "2026-01-07", "shift_type": "vacation"})
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	resp, out = send(t, "PUT", base, map[string]string{"employee_id": alice.String(), "date": "2026-01-07", "shift_type": "work"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "SCHEDULE_CONFLICT", out["code"])

	resp, out = send(t, "PUT", base, map[string]string{"employee_id": alice.String(), "date": "2026-01-20", "shift_type": "sick"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, out)

	resp, out = send(t, "PUT", base, map[string]string{"employee_id": alice.String(), "date": "2026-01-08", "shift_type": "overtime"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, out)

	store.shifts[model.ShiftKey{EmployeeID: alice, Date: "2026-01-05"}] = model.ShiftWork

	resp, out = send(t, "GET", base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Len(t, out["shifts"], 2)

	resp, out = send(t, "DELETE", srv.URL+"/api/v1/weeks/2026-01-05/plan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, float64(1), out["deleted"])
	assert.Equal(t, model.ShiftVacation, store.shifts[model.ShiftKey{EmployeeID: alice, Date: "2026-01-07"}])
}
