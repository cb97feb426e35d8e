// Package model 定义排班引擎的核心数据模型
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout 日期格式
const DateLayout = "2006-01-02"

// Weekday 星期标签（Mon/Tue/...）
type Weekday string

const (
	Monday    Weekday = "Mon"
	Tuesday   Weekday = "Tue"
	Wednesday Weekday = "Wed"
	Thursday  Weekday = "Thu"
	Friday    Weekday = "Fri"
	Saturday  Weekday = "Sat"
	Sunday    Weekday = "Sun"
)

// weekOrder 周一为第0天
var weekOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayAt 返回周内第 i 天的标签（0=周一）
func WeekdayAt(i int) Weekday {
	if i < 0 || i >= len(weekOrder) {
		return ""
	}
	return weekOrder[i]
}

// WeekdayOf 返回日期对应的星期标签
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday 以周日为0
	return weekOrder[(int(t.Weekday())+6)%7]
}

// weekdayNames 全称、三字母标签和 RFC 5545 的两字母代码
var weekdayNames = func() map[string]Weekday {
	names := make(map[string]Weekday, 3*len(weekOrder))
	for i, d := range weekOrder {
		label := strings.ToLower(string(d))
		names[label] = d
		names[label[:2]] = d
		names[strings.ToLower(time.Weekday((i+1)%7).String())] = d
	}
	return names
}()

// ParseWeekday 解析星期标签，接受 "Mon"、"monday"、"MO" 等写法，不区分大小写
func ParseWeekday(s string) (Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// PlanningWeek 排班周：按顺序排列的 6-7 个日期（YYYY-MM-DD），第0天为周一
type PlanningWeek []string

// NewPlanningWeek 从周一开始生成 days 天的排班周
func NewPlanningWeek(monday time.Time, days int) PlanningWeek {
	week := make(PlanningWeek, days)
	for i := 0; i < days; i++ {
		week[i] = monday.AddDate(0, 0, i).Format(DateLayout)
	}
	return week
}

// Len 返回天数
func (w PlanningWeek) Len() int {
	return len(w)
}

// Date 返回第 i 天的日期
func (w PlanningWeek) Date(i int) string {
	if i < 0 || i >= len(w) {
		return ""
	}
	return w[i]
}

// IndexOf 返回日期在周内的下标，不存在返回 -1
func (w PlanningWeek) IndexOf(date string) int {
	for i, d := range w {
		if d == date {
			return i
		}
	}
	return -1
}

// Weekday 返回第 i 天的星期标签
// 日期可解析时以日期为准，否则按下标推算
func (w PlanningWeek) Weekday(i int) Weekday {
	if t, err := time.Parse(DateLayout, w.Date(i)); err == nil {
		return WeekdayOf(t)
	}
	return WeekdayAt(i)
}

// IsWeekend 第5、6天视为周末
func (w PlanningWeek) IsWeekend(i int) bool {
	return i == 5 || i == 6
}

// Contains 检查日期是否在本周内
func (w PlanningWeek) Contains(date string) bool {
	return w.IndexOf(date) >= 0
}

// RequiredStaffing 每日需求人数：天下标 -> 人数
type RequiredStaffing map[int]int

// For 返回第 i 天的需求人数，负数按0处理
func (r RequiredStaffing) For(i int) int {
	if n := r[i]; n > 0 {
		return n
	}
	return 0
}

// Total 返回周内总需求
func (r RequiredStaffing) Total(week PlanningWeek) int {
	total := 0
	for i := 0; i < week.Len(); i++ {
		total += r.For(i)
	}
	return total
}

// PlanningMode 排班模式
type PlanningMode string

const (
	ModeForecast PlanningMode = "forecast" // 按预测需求排班
	ModeMaximum  PlanningMode = "maximum"  // 尽量排满
)

// ParsePlanningMode 解析排班模式，空字符串默认为 forecast
func ParsePlanningMode(s string) (PlanningMode, bool) {
	switch PlanningMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeForecast:
		return ModeForecast, true
	case ModeMaximum, "max":
		return ModeMaximum, true
	}
	return "", false
}

// EmployeeSet 员工ID集合
type EmployeeSet map[uuid.UUID]struct{}

// NewEmployeeSet 创建员工ID集合
func NewEmployeeSet(ids ...uuid.UUID) EmployeeSet {
	s := make(EmployeeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has 检查是否包含
func (s EmployeeSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}
