package database

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftplan/internal/config"
)

// openLazy 只打开驱动，不建立连接
func openLazy(t *testing.T, cfg *config.DatabaseConfig) *DB {
	t.Helper()
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return wrap(sqlDB, cfg)
}

func TestWrap_SlowQueryThreshold(t *testing.T) {
	db := openLazy(t, &config.DatabaseConfig{Host: "127.0.0.1", Port: 5432, Name: "shiftplan", SSLMode: "disable"})
	assert.Equal(t, defaultSlowQuery, db.slow)

	db = openLazy(t, &config.DatabaseConfig{Host: "127.0.0.1", Port: 5432, Name: "shiftplan", SSLMode: "disable", SlowQueryThreshold: time.Second})
	assert.Equal(t, time.Second, db.slow)
}

func TestReportStats(t *testing.T) {
	cfg := &config.DatabaseConfig{Host: "127.0.0.1", Port: 5432, Name: "shiftplan", SSLMode: "disable", MaxOpenConns: 3}
	db := openLazy(t, cfg)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithCancel(t.Context())
	reports := make(chan sql.DBStats, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		db.ReportStats(ctx, 5*time.Millisecond, func(s sql.DBStats) {
			select {
			case reports <- s:
			default:
			}
		})
	}()

	select {
	case s := <-reports:
		assert.Equal(t, 3, s.MaxOpenConnections)
		assert.Zero(t, s.InUse)
	case <-time.After(2 * time.Second):
		t.Fatal("no pool stats reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReportStats did not stop after cancel")
	}
}

func TestTruncateQuery(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateQuery(short))

	long := "SELECT " + strings.Repeat("x", 300)
	got := truncateQuery(long)
	assert.Len(t, got, 203)
	assert.True(t, strings.HasSuffix(got, "..."))
}
