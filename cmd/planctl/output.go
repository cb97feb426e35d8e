package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/planner"
	"github.com/paiban/shiftplan/pkg/stats"
	"github.com/paiban/shiftplan/pkg/validator"
)

// planFile 输入文件：排班输入加可选的排班结果
type planFile struct {
	planner.Input `yaml:",inline"`
	Assignments   []planner.ShiftInput `json:"assignments,omitempty" yaml:"assignments,omitempty"`
}

type planOutput struct {
	Week        model.PlanningWeek      `json:"week"`
	Mode        model.PlanningMode      `json:"mode"`
	Assignments []model.ShiftAssignment `json:"assignments"`
	Coverage    *stats.CoverageMetrics  `json:"coverage"`
	Phases      []planner.PhaseReport   `json:"phases"`
}

type statsOutput struct {
	Coverage *stats.CoverageMetrics `json:"coverage"`
	Fairness *stats.FairnessMetrics `json:"fairness"`
}

// loadFile 按扩展名解析 JSON 或 YAML 输入文件
func loadFile(path string) (*planFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取输入文件失败: %w", err)
	}

	f := &planFile{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, f)
	default:
		err = yaml.Unmarshal(data, f)
	}
	if err != nil {
		return nil, fmt.Errorf("解析输入文件 %s 失败: %w", path, err)
	}
	return f, nil
}

// resolveAssignments 将按姓名或ID填写的排班转换为排班结果
func resolveAssignments(req *planner.Request, in []planner.ShiftInput) ([]model.ShiftAssignment, error) {
	byName := make(map[string]uuid.UUID, len(req.Employees))
	for _, e := range req.Employees {
		byName[e.Name] = e.ID
	}

	out := make([]model.ShiftAssignment, 0, len(in))
	for i, s := range in {
		id, ok := byName[s.Employee]
		if !ok {
			parsed, err := uuid.Parse(s.Employee)
			if err != nil {
				return nil, fmt.Errorf("assignments[%d]: 未知员工 %s", i, s.Employee)
			}
			id = parsed
		}
		st := model.ShiftType(s.ShiftType)
		if !st.IsValid() {
			return nil, fmt.Errorf("assignments[%d]: 无法识别的班次类型 %s", i, s.ShiftType)
		}
		out = append(out, model.ShiftAssignment{EmployeeID: id, Date: s.Date, ShiftType: st})
	}
	return out, nil
}

var shiftLabels = map[model.ShiftType]string{
	model.ShiftWork:        "上班",
	model.ShiftFree:        "休",
	model.ShiftAppointment: "预约",
	model.ShiftVacation:    "休假",
	model.ShiftSick:        "病假",
}

// printRoster 输出员工 x 日期的排班表，末行为每日已排/需求
func printRoster(w io.Writer, req *planner.Request, assignments []model.ShiftAssignment) {
	byKey := make(map[model.ShiftKey]model.ShiftType, len(assignments))
	working := make([]int, req.Week.Len())
	for _, a := range assignments {
		byKey[a.Key()] = a.ShiftType
		if i := req.Week.IndexOf(a.Date); i >= 0 && a.IsWork() {
			working[i]++
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "员工")
	for i, date := range req.Week {
		fmt.Fprintf(tw, "\t%s %s", req.Week.Weekday(i), date[5:])
	}
	fmt.Fprintln(tw)

	for _, e := range req.Employees {
		fmt.Fprint(tw, e.Name)
		for _, date := range req.Week {
			label := "-"
			if st, ok := byKey[model.ShiftKey{EmployeeID: e.ID, Date: date}]; ok {
				label = shiftLabels[st]
			}
			fmt.Fprintf(tw, "\t%s", label)
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprint(tw, "已排/需求")
	for i := range req.Week {
		fmt.Fprintf(tw, "\t%d/%d", working[i], req.Required.For(i))
	}
	fmt.Fprintln(tw)
	tw.Flush()
}

func printPhases(w io.Writer, res *planner.Result) {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "阶段\t变更\t缺口\t富余")
	for _, p := range res.Phases {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", p.Name, p.Changes, p.Shortage, p.Surplus)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n覆盖率 %.1f%%，缺口 %d，用时 %s\n", res.Coverage.OverallCoverage, res.Coverage.TotalShortage, res.Duration)
}

func printConflicts(w io.Writer, req *planner.Request, conflicts []validator.Conflict) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, "排班校验通过")
		return
	}

	names := make(map[uuid.UUID]string, len(req.Employees))
	for _, e := range req.Employees {
		names[e.ID] = e.Name
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "级别\t类型\t日期\t员工\t说明")
	for _, c := range conflicts {
		name, ok := names[c.EmployeeID]
		if !ok {
			name = c.EmployeeID.String()
		}
		date := c.Date
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Severity, c.Type, date, name, c.Message)
	}
	tw.Flush()
}

func printFairness(w io.Writer, m *stats.FairnessMetrics) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "员工\t目标\t上班\t受保护\t周末\t偏好日\t差距")
	for _, s := range m.EmployeeStats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			s.EmployeeName, s.Target, s.WorkDays, s.ProtectedDays, s.WeekendShifts, s.PreferredHits, s.TargetGap)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n工作量基尼系数 %.3f，周末基尼系数 %.3f，目标达成 %.1f%%，综合评分 %.1f\n",
		m.WorkloadGini, m.WeekendShiftGini, m.TargetAttainment, m.OverallFairnessScore)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
