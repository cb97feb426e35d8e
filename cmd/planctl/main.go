// planctl 周排班命令行工具
// 读取 YAML/JSON 输入文件，生成、校验和统计一周排班

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/paiban/shiftplan/internal/config"
	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/planner"
)

// app 命令共享的配置和日志
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	format string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath, logLevel string

	root := &cobra.Command{
		Use:           "planctl",
		Short:         "周排班命令行工具",
		Long:          `根据员工、需求预测和已有班次生成一周排班，并校验或统计排班结果。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, configPath, logLevel)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件 (YAML)，默认读取环境变量")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "日志级别: debug/info/warn/error")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "table", "输出格式: table/json")

	root.AddCommand(planCmd(a))
	root.AddCommand(validateCmd(a))
	root.AddCommand(statsCmd(a))
	root.AddCommand(keygenCmd(a))

	return root
}

// init 加载配置并创建输出到 stderr 的日志器
func (a *app) init(cmd *cobra.Command, configPath, logLevel string) error {
	if a.format != "table" && a.format != "json" {
		return fmt.Errorf("不支持的输出格式: %s", a.format)
	}

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("无法解析日志级别: %w", err)
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).
		With().Timestamp().Logger()

	if configPath != "" {
		a.cfg, err = config.LoadFromPath(configPath)
	} else {
		a.cfg = config.Defaults()
		err = config.Validate(a.cfg)
	}
	if err != nil {
		return err
	}

	a.log.Debug().Str("config", configPath).Str("mode", a.cfg.Planner.DefaultMode).Msg("配置已加载")
	return nil
}

// request 合并配置中的默认模式和需求规则后转换输入
func (a *app) request(in *planner.Input) (*planner.Request, error) {
	if in.Mode == "" {
		in.Mode = a.cfg.Planner.DefaultMode
	}
	if len(a.cfg.Planner.StaffingOverrides) > 0 {
		in.Overrides = append(append(in.Overrides[:0:0], a.cfg.Planner.StaffingOverrides...), in.Overrides...)
	}
	return in.Request()
}

// newPlanner 按配置创建排班引擎
func (a *app) newPlanner() *planner.Planner {
	return planner.New(a.cfg.Planner.ToPlannerConfig(), logger.NewPlannerLoggerFrom(a.log))
}
