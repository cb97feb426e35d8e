// shiftplan 周排班服务
// 主程序入口

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/shiftplan/internal/config"
	"github.com/paiban/shiftplan/internal/database"
	"github.com/paiban/shiftplan/internal/handler"
	"github.com/paiban/shiftplan/internal/metrics"
	"github.com/paiban/shiftplan/internal/middleware"
	"github.com/paiban/shiftplan/internal/repository"
	"github.com/paiban/shiftplan/internal/security"
	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/planner"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	format := "console"
	if cfg.IsProduction() {
		format = "json"
	}
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: format,
		Output: "stdout",
	})

	fmt.Printf("shiftplan 排班服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 数据库可选，未启用时只提供无状态接口
	var store *repository.Store
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库连接失败")
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}
		store = repository.NewStore(db)
		go db.ReportStats(ctx, 15*time.Second, func(s sql.DBStats) {
			metrics.SetDBConnections(s.InUse, s.Idle)
		})
	}

	p := planner.New(cfg.Planner.ToPlannerConfig(), nil)
	var weeks handler.WeekStore
	if store != nil {
		weeks = store
	}
	plans := handler.NewPlanHandler(p, cfg.Planner, weeks)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":"%s","service":"%s"}`, status, cfg.App.Name)
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	handler.Register(mux, plans)
	if store != nil {
		handler.RegisterData(mux, handler.NewDataHandler(store, plans))
	}

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// 执行顺序：requestID -> recovery -> securityHeaders -> cors -> rateLimit -> apiKey -> logging -> handler
	mws := []middleware.Middleware{
		middleware.RequestIDMiddleware,
		middleware.RecoveryMiddleware,
		middleware.SecurityHeadersMiddleware,
	}
	if cfg.API.CORS.Enabled {
		mws = append(mws, middleware.CORSMiddleware(cfg.API.CORS.Origins))
	}
	if cfg.API.RateLimit > 0 {
		rl := middleware.NewRateLimiter(cfg.API.RateLimit, time.Second)
		go rl.Run(ctx)
		mws = append(mws, middleware.RateLimitMiddleware(rl, middleware.NewTrustedProxies(cfg.API.TrustedProxies), "/health", cfg.Metrics.Path))
	}
	if len(cfg.API.Keys) > 0 {
		mws = append(mws, security.Middleware(security.NewKeyStore(cfg.API.Keys)))
	}
	mws = append(mws, middleware.LoggingMiddleware)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + cfg.Planner.DefaultTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", db != nil).
			Int("api_keys", len(cfg.API.Keys)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}
