package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paiban/shiftplan/internal/security"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/planner"
	"github.com/paiban/shiftplan/pkg/stats"
	"github.com/paiban/shiftplan/pkg/validator"
)

func planCmd(a *app) *cobra.Command {
	var mode string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "根据输入文件生成一周排班",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(args[0])
			if err != nil {
				return err
			}
			if mode != "" {
				f.Mode = mode
			}

			req, err := a.request(&f.Input)
			if err != nil {
				return err
			}
			res, err := a.run(cmd.Context(), req, timeout)
			if err != nil {
				return err
			}

			if a.format == "json" {
				return printJSON(cmd.OutOrStdout(), planOutput{
					Week:        req.Week,
					Mode:        req.Mode,
					Assignments: res.Assignments,
					Coverage:    res.Coverage,
					Phases:      res.Phases,
				})
			}
			printRoster(cmd.OutOrStdout(), req, res.Assignments)
			printPhases(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "排班模式 forecast/maximum，覆盖文件中的设置")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "排班超时，默认使用配置")
	return cmd
}

func validateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "校验输入文件中 assignments 列出的排班",
		Long:  `检查排班是否满足硬约束：每人每天一条记录、受保护班次不变、不超过周目标、只在可上班的天上班。存在错误时以非零状态退出。`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(args[0])
			if err != nil {
				return err
			}
			req, err := a.request(&f.Input)
			if err != nil {
				return err
			}
			assignments, err := resolveAssignments(req, f.Assignments)
			if err != nil {
				return err
			}

			detector := validator.NewConflictDetector(&validator.DetectorConfig{
				SixDayTarget:      a.newPlanner().Config().SixDayTarget,
				CheckCapacity:     true,
				CheckAvailability: true,
				CheckCompleteness: true,
			})
			conflicts := detector.DetectAll(validator.PlanInput{
				Employees:           req.Employees,
				Week:                req.Week,
				ExistingShifts:      req.ExistingShifts,
				TemporarilyFlexible: req.TemporarilyFlexible,
			}, assignments)

			if a.format == "json" {
				if err := printJSON(cmd.OutOrStdout(), conflicts); err != nil {
					return err
				}
			} else {
				printConflicts(cmd.OutOrStdout(), req, conflicts)
			}

			if validator.HasErrors(conflicts) {
				return fmt.Errorf("排班校验未通过")
			}
			return nil
		},
	}
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "统计覆盖率和工作量，文件中没有 assignments 时先排班",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(args[0])
			if err != nil {
				return err
			}
			req, err := a.request(&f.Input)
			if err != nil {
				return err
			}

			var assignments []model.ShiftAssignment
			if len(f.Assignments) > 0 {
				assignments, err = resolveAssignments(req, f.Assignments)
			} else {
				var res *planner.Result
				res, err = a.run(cmd.Context(), req, 0)
				if res != nil {
					assignments = res.Assignments
				}
			}
			if err != nil {
				return err
			}

			coverageAnalyzer := stats.NewCoverageAnalyzer()
			coverage := coverageAnalyzer.Analyze(req.Week, req.Required, assignments)
			fairness := stats.NewFairnessAnalyzer().Analyze(req.Employees, req.Week, assignments)

			if a.format == "json" {
				return printJSON(cmd.OutOrStdout(), statsOutput{Coverage: coverage, Fairness: fairness})
			}
			fmt.Fprint(cmd.OutOrStdout(), coverageAnalyzer.GenerateCoverageReport(coverage))
			fmt.Fprintln(cmd.OutOrStdout())
			printFairness(cmd.OutOrStdout(), fairness)
			return nil
		},
	}
}

// run 带超时执行排班
func (a *app) run(ctx context.Context, req *planner.Request, timeout time.Duration) (*planner.Result, error) {
	if timeout <= 0 {
		timeout = a.cfg.Planner.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := a.newPlanner().Plan(ctx, req)
	if err != nil {
		a.log.Error().Err(err).Str("week_start", req.Week.Date(0)).Msg("排班失败")
		return nil, err
	}
	a.log.Info().
		Str("week_start", req.Week.Date(0)).
		Int("assignments", len(res.Assignments)).
		Int("shortage", res.Coverage.TotalShortage).
		Dur("duration", res.Duration).
		Msg("排班完成")
	return res, nil
}

func keygenCmd(a *app) *cobra.Command {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "keygen <name>",
		Short: "生成API密钥，输出明文和写入配置的条目",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, hash, err := security.GenerateKey()
			if err != nil {
				return fmt.Errorf("生成密钥失败: %w", err)
			}
			entry := security.APIKey{Name: args[0], Hash: hash, Scopes: scopes}

			if a.format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{"key": key, "hash": hash, "name": entry.Name, "scopes": scopes})
			}

			out, err := yaml.Marshal(map[string]any{"api": map[string]any{"keys": []security.APIKey{entry}}})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "密钥（只显示一次）: %s\n\n写入配置文件:\n%s", key, out)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scope", []string{security.ScopeRead}, "权限范围: plan:read/plan:write/*")
	return cmd
}
