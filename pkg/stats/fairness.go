// Package stats 提供排班统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/paiban/shiftplan/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 上班天数公平性
	WorkloadGini       float64 `json:"workload_gini"`         // 上班天数基尼系数 (0=完全公平, 1=完全不公平)
	WorkloadVariance   float64 `json:"workload_variance"`     // 上班天数方差
	WorkloadStdDev     float64 `json:"workload_std_dev"`      // 上班天数标准差
	AvgDaysPerEmployee float64 `json:"avg_days_per_employee"` // 人均上班天数
	MaxDays            int     `json:"max_days"`              // 最多上班天数
	MinDays            int     `json:"min_days"`              // 最少上班天数

	// 周末公平性
	WeekendShiftGini float64 `json:"weekend_shift_gini"` // 周末班分配基尼系数

	// 目标达成
	TargetAttainment float64 `json:"target_attainment"` // 周目标达成率 (%)
	PreferenceRate   float64 `json:"preference_rate"`   // 上班日落在偏好日的比例 (%)

	// 员工级别统计
	EmployeeStats []EmployeeStat `json:"employee_stats"`

	// 综合评分
	OverallFairnessScore float64 `json:"overall_fairness_score"` // 综合公平性评分 (0-100)
}

// EmployeeStat 员工统计
type EmployeeStat struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	Target        int     `json:"target"`
	WorkDays      int     `json:"work_days"`
	ProtectedDays int     `json:"protected_days"`
	FreeDays      int     `json:"free_days"`
	WeekendShifts int     `json:"weekend_shifts"`
	PreferredHits int     `json:"preferred_hits"` // 落在偏好日的上班天数
	TargetGap     int     `json:"target_gap"`     // 周目标 - (上班 + 受保护)，负数表示超出
	Deviation     float64 `json:"deviation"`      // 与平均值的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析排班公平性，只统计在职员工
func (f *FairnessAnalyzer) Analyze(employees []*model.Employee, week model.PlanningWeek, assignments []model.ShiftAssignment) *FairnessMetrics {
	var active []*model.Employee
	for _, e := range employees {
		if e != nil && e.IsActive() {
			active = append(active, e)
		}
	}
	if len(active) == 0 {
		return &FairnessMetrics{
			TargetAttainment:     100,
			PreferenceRate:       100,
			OverallFairnessScore: 100,
		}
	}

	employeeStats := f.calculateEmployeeStats(active, week, assignments)

	workDays := make([]float64, len(employeeStats))
	weekendShifts := make([]float64, len(employeeStats))
	totalTarget, totalCovered, totalWork, totalPreferred := 0, 0, 0, 0
	for i, stat := range employeeStats {
		workDays[i] = float64(stat.WorkDays)
		weekendShifts[i] = float64(stat.WeekendShifts)
		totalTarget += stat.Target
		totalCovered += min(stat.WorkDays+stat.ProtectedDays, stat.Target)
		totalWork += stat.WorkDays
		totalPreferred += stat.PreferredHits
	}

	avg := calculateMean(workDays)
	variance := calculateVariance(workDays, avg)
	stdDev := math.Sqrt(variance)

	for i := range employeeStats {
		if avg > 0 {
			employeeStats[i].Deviation = (float64(employeeStats[i].WorkDays) - avg) / avg * 100
		}
	}

	maxDays, minDays := employeeStats[0].WorkDays, employeeStats[0].WorkDays
	for _, stat := range employeeStats[1:] {
		maxDays = max(maxDays, stat.WorkDays)
		minDays = min(minDays, stat.WorkDays)
	}

	workloadGini := calculateGini(workDays)
	weekendGini := calculateGini(weekendShifts)
	attainment := percent(totalCovered, totalTarget)

	return &FairnessMetrics{
		WorkloadGini:         workloadGini,
		WorkloadVariance:     variance,
		WorkloadStdDev:       stdDev,
		AvgDaysPerEmployee:   avg,
		MaxDays:              maxDays,
		MinDays:              minDays,
		WeekendShiftGini:     weekendGini,
		TargetAttainment:     attainment,
		PreferenceRate:       percent(totalPreferred, totalWork),
		EmployeeStats:        employeeStats,
		OverallFairnessScore: calculateOverallScore(workloadGini, weekendGini, attainment),
	}
}

// calculateEmployeeStats 计算员工统计数据，按上班天数降序
func (f *FairnessAnalyzer) calculateEmployeeStats(employees []*model.Employee, week model.PlanningWeek, assignments []model.ShiftAssignment) []EmployeeStat {
	statMap := make(map[string]*EmployeeStat, len(employees))
	byID := make(map[string]*model.Employee, len(employees))
	result := make([]*EmployeeStat, 0, len(employees))
	for _, e := range employees {
		id := e.ID.String()
		if _, ok := statMap[id]; ok {
			continue
		}
		stat := &EmployeeStat{EmployeeID: id, EmployeeName: e.Name, Target: e.WorkingDaysAWeek}
		statMap[id] = stat
		byID[id] = e
		result = append(result, stat)
	}

	for _, a := range assignments {
		i := week.IndexOf(a.Date)
		stat, ok := statMap[a.EmployeeID.String()]
		if i < 0 || !ok {
			continue
		}
		switch {
		case a.IsWork():
			stat.WorkDays++
			if week.IsWeekend(i) {
				stat.WeekendShifts++
			}
			if byID[stat.EmployeeID].PrefersDay(week.Weekday(i)) {
				stat.PreferredHits++
			}
		case a.ShiftType == model.ShiftFree:
			stat.FreeDays++
		case a.ShiftType.IsProtected():
			stat.ProtectedDays++
		}
	}

	out := make([]EmployeeStat, len(result))
	for i, stat := range result {
		stat.TargetGap = stat.Target - stat.WorkDays - stat.ProtectedDays
		out[i] = *stat
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WorkDays > out[j].WorkDays
	})
	return out
}

// calculateMean 计算平均值
func calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateGini 计算基尼系数
func calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 计算综合公平性评分
func calculateOverallScore(workloadGini, weekendGini, attainment float64) float64 {
	const (
		workloadWeight   = 0.4
		weekendWeight    = 0.3
		attainmentWeight = 0.3
	)

	score := workloadWeight*(1-workloadGini)*100 +
		weekendWeight*(1-weekendGini)*100 +
		attainmentWeight*attainment

	return math.Max(0, math.Min(100, score))
}

// CompareSchedules 比较两个排班方案的公平性
func (f *FairnessAnalyzer) CompareSchedules(employees []*model.Employee, week model.PlanningWeek, schedule1, schedule2 []model.ShiftAssignment) map[string]float64 {
	metrics1 := f.Analyze(employees, week, schedule1)
	metrics2 := f.Analyze(employees, week, schedule2)

	return map[string]float64{
		"workload_gini_diff":      metrics2.WorkloadGini - metrics1.WorkloadGini,
		"weekend_gini_diff":       metrics2.WeekendShiftGini - metrics1.WeekendShiftGini,
		"overall_score_diff":      metrics2.OverallFairnessScore - metrics1.OverallFairnessScore,
		"schedule1_overall_score": metrics1.OverallFairnessScore,
		"schedule2_overall_score": metrics2.OverallFairnessScore,
	}
}
