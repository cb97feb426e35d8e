// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paiban/shiftplan/internal/config"
	"github.com/paiban/shiftplan/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// defaultSlowQuery 未配置时的慢查询阈值
const defaultSlowQuery = 100 * time.Millisecond

// DB 数据库连接封装，记录慢查询并上报连接池状态
type DB struct {
	*sql.DB
	cfg  *config.DatabaseConfig
	slow time.Duration
}

// New 创建新的数据库连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	db := wrap(sqlDB, cfg)
	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Dur("slow_query", db.slow).
		Msg("数据库连接成功")
	return db, nil
}

func wrap(sqlDB *sql.DB, cfg *config.DatabaseConfig) *DB {
	slow := cfg.SlowQueryThreshold
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &DB{DB: sqlDB, cfg: cfg, slow: slow}
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	logger.Info().Msg("关闭数据库连接")
	return db.DB.Close()
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务，fn 返回错误或 panic 时回滚
// 保存排班时运行记录和班次在同一事务中写入
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		logger.Warn().Err(err).Msg("事务已回滚")
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}
	return nil
}

// ReportStats 每隔 interval 把连接池状态交给 report，直到 ctx 结束
// 两次上报之间出现等待连接时记录告警
func (db *DB) ReportStats(ctx context.Context, interval time.Duration, report func(sql.DBStats)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var waits int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := db.Stats()
			if s.WaitCount > waits {
				logger.Warn().
					Int64("waits", s.WaitCount-waits).
					Dur("wait_duration", s.WaitDuration).
					Int("max_open", s.MaxOpenConnections).
					Msg("数据库连接池出现等待")
			}
			waits = s.WaitCount
			report(s)
		}
	}
}

// ExecContext 执行SQL语句
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	defer db.logSlow(query, time.Now())
	return db.DB.ExecContext(ctx, query, args...)
}

// QueryContext 执行查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	defer db.logSlow(query, time.Now())
	return db.DB.QueryContext(ctx, query, args...)
}

// QueryRowContext 执行单行查询
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	defer db.logSlow(query, time.Now())
	return db.DB.QueryRowContext(ctx, query, args...)
}

func (db *DB) logSlow(query string, start time.Time) {
	if d := time.Since(start); d > db.slow {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", d).
			Dur("threshold", db.slow).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}
