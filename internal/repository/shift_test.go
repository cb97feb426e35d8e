package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftplan/pkg/model"
)

// recordingDB 记录执行过的语句
type recordingDB struct {
	execs   []string
	args    [][]interface{}
	failOn  string
	deleted int64
}

func (db *recordingDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	query = strings.Join(strings.Fields(query), " ")
	db.execs = append(db.execs, query)
	db.args = append(db.args, args)
	if db.failOn != "" && strings.HasPrefix(query, db.failOn) {
		return nil, errors.New("连接已断开")
	}
	if strings.HasPrefix(query, "DELETE") {
		return driver.RowsAffected(db.deleted), nil
	}
	return driver.RowsAffected(1), nil
}

func (db *recordingDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("未实现")
}

func (db *recordingDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func TestShiftRepository_SavePlanClearsPreviousRun(t *testing.T) {
	db := &recordingDB{deleted: 4}
	repo := NewShiftRepository(db)
	week := model.NewPlanningWeek(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 7)
	alice := uuid.New()
	runID := uuid.New()

	n, err := repo.SavePlan(t.Context(), week, runID, []model.ShiftAssignment{
		{EmployeeID: alice, Date: "2026-01-05", ShiftType: model.ShiftWork},
		{EmployeeID: alice, Date: "2026-01-06", ShiftType: model.ShiftVacation},
		{EmployeeID: alice, Date: "2026-01-07", ShiftType: model.ShiftFree},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "protected shifts are not written")

	require.Len(t, db.execs, 3)
	assert.True(t, strings.HasPrefix(db.execs[0], "DELETE FROM shifts"), "the previous run is cleared first: %s", db.execs[0])
	assert.Contains(t, db.execs[0], "plan_run_id IS NOT NULL")
	assert.True(t, strings.HasPrefix(db.execs[1], "INSERT INTO shifts"))
	assert.True(t, strings.HasPrefix(db.execs[2], "INSERT INTO shifts"))
	assert.Equal(t, &runID, db.args[1][3])
}

func TestShiftRepository_SavePlanClearError(t *testing.T) {
	db := &recordingDB{failOn: "DELETE"}
	week := model.NewPlanningWeek(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 6)

	n, err := NewShiftRepository(db).SavePlan(t.Context(), week, uuid.New(), []model.ShiftAssignment{
		{EmployeeID: uuid.New(), Date: "2026-01-05", ShiftType: model.ShiftWork},
	})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, db.execs, 1, "nothing is written after a failed clear")
}
