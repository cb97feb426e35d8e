// Package stats 提供排班统计分析功能
package stats

import (
	"fmt"
	"strings"

	"github.com/paiban/shiftplan/pkg/model"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	// 整体覆盖率
	TotalRequired   int     `json:"total_required"`   // 全周需求人次
	TotalAssigned   int     `json:"total_assigned"`   // 全周已排上班人次
	TotalShortage   int     `json:"total_shortage"`   // 全周缺口
	TotalSurplus    int     `json:"total_surplus"`    // 全周富余
	OverallCoverage float64 `json:"overall_coverage"` // 整体覆盖率 (%)

	// 按日期统计
	Days []DayCoverage `json:"days"`

	// 周末覆盖率
	WeekendCoverage float64 `json:"weekend_coverage"`

	// 人力需求满足度（超出需求的部分不计）
	DemandSatisfaction float64 `json:"demand_satisfaction"`

	// 问题识别
	Understaffed []UnderstaffedDay `json:"understaffed"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Index          int           `json:"index"`
	Date           string        `json:"date"`
	Weekday        model.Weekday `json:"weekday"`
	IsWeekend      bool          `json:"is_weekend"`
	Required       int           `json:"required"`
	Assigned       int           `json:"assigned"`
	Shortage       int           `json:"shortage"`
	Surplus        int           `json:"surplus"`
	CoverageRate   float64       `json:"coverage_rate"`   // 已排/需求 (%)
	ImbalanceRatio float64       `json:"imbalance_ratio"` // 1 - 已排/需求，满足时为0
	Protected      int           `json:"protected"`       // 当天受保护班次数
	Free           int           `json:"free"`            // 当天休息人数
}

// UnderstaffedDay 人手不足的天
type UnderstaffedDay struct {
	Date           string  `json:"date"`
	Required       int     `json:"required"`
	Assigned       int     `json:"assigned"`
	Shortage       int     `json:"shortage"`
	ImbalanceRatio float64 `json:"imbalance_ratio"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct {
	criticalRatio float64 // 缺口率达到该值视为严重不足
}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{criticalRatio: 0.5}
}

// SetCriticalRatio 设置严重不足的缺口率
func (c *CoverageAnalyzer) SetCriticalRatio(ratio float64) {
	if ratio > 0 && ratio <= 1 {
		c.criticalRatio = ratio
	}
}

// Analyze 按天统计排班结果的覆盖情况
// 不在排班周内的记录忽略
func (c *CoverageAnalyzer) Analyze(week model.PlanningWeek, required model.RequiredStaffing, assignments []model.ShiftAssignment) *CoverageMetrics {
	days := make([]DayCoverage, week.Len())
	for i := range days {
		days[i] = DayCoverage{
			Index:     i,
			Date:      week.Date(i),
			Weekday:   week.Weekday(i),
			IsWeekend: week.IsWeekend(i),
			Required:  required.For(i),
		}
	}

	for _, a := range assignments {
		i := week.IndexOf(a.Date)
		if i < 0 {
			continue
		}
		switch {
		case a.IsWork():
			days[i].Assigned++
		case a.ShiftType == model.ShiftFree:
			days[i].Free++
		case a.ShiftType.IsProtected():
			days[i].Protected++
		}
	}

	m := &CoverageMetrics{Days: days}
	satisfied := 0
	weekendRequired, weekendSatisfied := 0, 0
	for i := range days {
		d := &days[i]
		d.Shortage = max(0, d.Required-d.Assigned)
		d.Surplus = max(0, d.Assigned-d.Required)
		d.CoverageRate = 100
		if d.Required > 0 {
			d.CoverageRate = float64(d.Assigned) / float64(d.Required) * 100
			if d.Shortage > 0 {
				d.ImbalanceRatio = 1 - float64(d.Assigned)/float64(d.Required)
			}
		}

		m.TotalRequired += d.Required
		m.TotalAssigned += d.Assigned
		m.TotalShortage += d.Shortage
		m.TotalSurplus += d.Surplus
		satisfied += min(d.Assigned, d.Required)
		if d.IsWeekend {
			weekendRequired += d.Required
			weekendSatisfied += min(d.Assigned, d.Required)
		}

		if d.Shortage > 0 && d.ImbalanceRatio >= c.criticalRatio {
			m.Understaffed = append(m.Understaffed, UnderstaffedDay{
				Date:           d.Date,
				Required:       d.Required,
				Assigned:       d.Assigned,
				Shortage:       d.Shortage,
				ImbalanceRatio: d.ImbalanceRatio,
			})
		}
	}

	m.OverallCoverage = percent(m.TotalAssigned, m.TotalRequired)
	m.DemandSatisfaction = percent(satisfied, m.TotalRequired)
	m.WeekendCoverage = percent(weekendSatisfied, weekendRequired)
	return m
}

// percent 计算百分比，分母为0视为100%
func percent(n, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(n) / float64(total) * 100
}

// GenerateCoverageReport 生成覆盖率报告
func (c *CoverageAnalyzer) GenerateCoverageReport(metrics *CoverageMetrics) string {
	var b strings.Builder
	b.WriteString("=== 覆盖率分析报告 ===\n\n")

	b.WriteString("【整体覆盖情况】\n")
	fmt.Fprintf(&b, "  需求人次: %d\n", metrics.TotalRequired)
	fmt.Fprintf(&b, "  已排人次: %d\n", metrics.TotalAssigned)
	fmt.Fprintf(&b, "  覆盖率: %.1f%%\n", metrics.OverallCoverage)
	fmt.Fprintf(&b, "  需求满足度: %.1f%%\n", metrics.DemandSatisfaction)
	fmt.Fprintf(&b, "  周末满足度: %.1f%%\n\n", metrics.WeekendCoverage)

	b.WriteString("【每日情况】\n")
	for _, d := range metrics.Days {
		fmt.Fprintf(&b, "  %s %s 需要%d人，已排%d人", d.Date, d.Weekday, d.Required, d.Assigned)
		if d.Shortage > 0 {
			fmt.Fprintf(&b, "，缺%d人", d.Shortage)
		}
		if d.Surplus > 0 {
			fmt.Fprintf(&b, "，多%d人", d.Surplus)
		}
		b.WriteString("\n")
	}

	if len(metrics.Understaffed) > 0 {
		b.WriteString("\n【人手严重不足】\n")
		for _, d := range metrics.Understaffed {
			fmt.Fprintf(&b, "  - %s (需要%d人，仅有%d人，缺%d人)\n", d.Date, d.Required, d.Assigned, d.Shortage)
		}
	}

	return b.String()
}
