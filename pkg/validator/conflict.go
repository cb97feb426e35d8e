// Package validator 提供排班结果校验功能
package validator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/shiftplan/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictDuplicate    ConflictType = "duplicate"    // 同一员工同一天多条记录
	ConflictProtected    ConflictType = "protected"    // 受保护班次被改动或丢失
	ConflictCapacity     ConflictType = "capacity"     // 超过周目标天数
	ConflictAvailability ConflictType = "availability" // 不可上班的天被排班
	ConflictIncomplete   ConflictType = "incomplete"   // 可上班的天缺少状态
	ConflictUnexpected   ConflictType = "unexpected"   // 不该出现的记录
)

// 严重程度
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Conflict 冲突信息
type Conflict struct {
	Type       ConflictType `json:"type"`
	Severity   string       `json:"severity"` // error/warning
	EmployeeID uuid.UUID    `json:"employee_id"`
	Date       string       `json:"date,omitempty"`
	Message    string       `json:"message"`
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	SixDayTarget      int  // 愿意上六天的员工最多天数
	CheckCapacity     bool // 是否检查周天数
	CheckAvailability bool // 是否检查可上班日
	CheckCompleteness bool // 是否检查状态完整
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		SixDayTarget:      6,
		CheckCapacity:     true,
		CheckAvailability: true,
		CheckCompleteness: true,
	}
}

// PlanInput 校验所需的排班输入
type PlanInput struct {
	Employees           []*model.Employee
	Week                model.PlanningWeek
	ExistingShifts      model.ExistingShifts
	TemporarilyFlexible model.EmployeeSet
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// DetectAll 检测所有冲突，结果按日期和员工排序
func (d *ConflictDetector) DetectAll(in PlanInput, assignments []model.ShiftAssignment) []Conflict {
	var conflicts []Conflict
	conflicts = append(conflicts, CheckUniqueness(assignments)...)
	conflicts = append(conflicts, CheckProtection(assignments, in.ExistingShifts, in.Week)...)

	byKey := make(map[model.ShiftKey]model.ShiftAssignment, len(assignments))
	for _, a := range assignments {
		if _, ok := byKey[a.Key()]; !ok {
			byKey[a.Key()] = a
		}
	}

	known := make(map[uuid.UUID]bool, len(in.Employees))
	for _, emp := range in.Employees {
		if emp == nil {
			continue
		}
		known[emp.ID] = true
		if d.config.CheckCapacity {
			conflicts = append(conflicts, d.detectCapacity(emp, in, byKey)...)
		}
		if d.config.CheckAvailability {
			conflicts = append(conflicts, d.detectAvailability(emp, in, byKey)...)
		}
		if d.config.CheckCompleteness {
			conflicts = append(conflicts, d.detectCompleteness(emp, in, byKey)...)
		}
	}
	conflicts = append(conflicts, d.detectUnexpected(in, known, assignments)...)

	sortConflicts(conflicts)
	return conflicts
}

// CheckUniqueness 检查每个员工每天最多一条记录
func CheckUniqueness(assignments []model.ShiftAssignment) []Conflict {
	var conflicts []Conflict
	seen := make(map[model.ShiftKey]model.ShiftType, len(assignments))
	for _, a := range assignments {
		if prev, ok := seen[a.Key()]; ok {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictDuplicate,
				Severity:   SeverityError,
				EmployeeID: a.EmployeeID,
				Date:       a.Date,
				Message:    fmt.Sprintf("员工 %s 在 %s 同时存在 %s 和 %s", a.EmployeeID, a.Date, prev, a.ShiftType),
			})
			continue
		}
		seen[a.Key()] = a.ShiftType
	}
	return conflicts
}

// CheckProtection 检查本周受保护班次原样保留
func CheckProtection(assignments []model.ShiftAssignment, existing model.ExistingShifts, week model.PlanningWeek) []Conflict {
	var conflicts []Conflict
	found := make(map[model.ShiftKey]bool)
	for _, a := range assignments {
		sh, ok := existing[a.Key()]
		if !ok || !sh.ShiftType.IsProtected() {
			continue
		}
		if a.ShiftType != sh.ShiftType {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictProtected,
				Severity:   SeverityError,
				EmployeeID: a.EmployeeID,
				Date:       a.Date,
				Message:    fmt.Sprintf("受保护班次 %s 被改为 %s", sh.ShiftType, a.ShiftType),
			})
			continue
		}
		found[a.Key()] = true
	}
	for key, sh := range existing {
		if !sh.ShiftType.IsProtected() || !week.Contains(sh.Date) || found[key] {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:       ConflictProtected,
			Severity:   SeverityError,
			EmployeeID: sh.EmployeeID,
			Date:       sh.Date,
			Message:    fmt.Sprintf("受保护班次 %s 未出现在结果中", sh.ShiftType),
		})
	}
	sortConflicts(conflicts)
	return conflicts
}

// detectCapacity 检查上班天数加受保护天数不超过周目标
// 愿意上六天的员工允许多一天；受保护天数本身超出目标不算冲突
func (d *ConflictDetector) detectCapacity(emp *model.Employee, in PlanInput, byKey map[model.ShiftKey]model.ShiftAssignment) []Conflict {
	work, protected := 0, 0
	for _, date := range in.Week {
		a, ok := byKey[model.ShiftKey{EmployeeID: emp.ID, Date: date}]
		if !ok {
			continue
		}
		switch {
		case a.IsWork():
			work++
		case a.ShiftType.IsProtected():
			protected++
		}
	}
	limit := emp.WorkingDaysAWeek
	if emp.CanTakeSixthDay(d.config.SixDayTarget) {
		limit++
	}
	if work == 0 || work+protected <= limit {
		return nil
	}
	return []Conflict{{
		Type:       ConflictCapacity,
		Severity:   SeverityError,
		EmployeeID: emp.ID,
		Message:    fmt.Sprintf("员工 %s 本周占用 %d 天，超过上限 %d 天", emp.Name, work+protected, limit),
	}}
}

// detectAvailability 检查上班日均为可上班日
func (d *ConflictDetector) detectAvailability(emp *model.Employee, in PlanInput, byKey map[model.ShiftKey]model.ShiftAssignment) []Conflict {
	var conflicts []Conflict
	flexible := in.TemporarilyFlexible.Has(emp.ID)
	for i, date := range in.Week {
		a, ok := byKey[model.ShiftKey{EmployeeID: emp.ID, Date: date}]
		if !ok || !a.IsWork() {
			continue
		}
		if !emp.CanWork(in.Week.Weekday(i), flexible) {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictAvailability,
				Severity:   SeverityError,
				EmployeeID: emp.ID,
				Date:       date,
				Message:    fmt.Sprintf("员工 %s 在 %s 不可上班", emp.Name, date),
			})
		}
	}
	return conflicts
}

// detectCompleteness 检查可上班的天都有状态，不可上班的天没有上班或休息记录
func (d *ConflictDetector) detectCompleteness(emp *model.Employee, in PlanInput, byKey map[model.ShiftKey]model.ShiftAssignment) []Conflict {
	if !emp.IsActive() {
		return nil
	}
	var conflicts []Conflict
	flexible := in.TemporarilyFlexible.Has(emp.ID)
	for i, date := range in.Week {
		key := model.ShiftKey{EmployeeID: emp.ID, Date: date}
		if sh, ok := in.ExistingShifts[key]; ok && sh.ShiftType.IsProtected() {
			continue
		}
		a, ok := byKey[key]
		canWork := emp.CanWork(in.Week.Weekday(i), flexible)
		switch {
		case canWork && !ok:
			conflicts = append(conflicts, Conflict{
				Type:       ConflictIncomplete,
				Severity:   SeverityError,
				EmployeeID: emp.ID,
				Date:       date,
				Message:    fmt.Sprintf("员工 %s 在 %s 缺少排班状态", emp.Name, date),
			})
		case !canWork && ok && a.ShiftType == model.ShiftFree:
			conflicts = append(conflicts, Conflict{
				Type:       ConflictUnexpected,
				Severity:   SeverityWarning,
				EmployeeID: emp.ID,
				Date:       date,
				Message:    fmt.Sprintf("员工 %s 在 %s 不可上班却标记为休息", emp.Name, date),
			})
		}
	}
	return conflicts
}

// detectUnexpected 检查本周以外的日期和名单外员工的上班/休息记录
func (d *ConflictDetector) detectUnexpected(in PlanInput, known map[uuid.UUID]bool, assignments []model.ShiftAssignment) []Conflict {
	var conflicts []Conflict
	for _, a := range assignments {
		if a.ShiftType.IsProtected() {
			continue
		}
		switch {
		case !in.Week.Contains(a.Date):
			conflicts = append(conflicts, Conflict{
				Type:       ConflictUnexpected,
				Severity:   SeverityError,
				EmployeeID: a.EmployeeID,
				Date:       a.Date,
				Message:    fmt.Sprintf("日期 %s 不在排班周内", a.Date),
			})
		case !known[a.EmployeeID]:
			conflicts = append(conflicts, Conflict{
				Type:       ConflictUnexpected,
				Severity:   SeverityError,
				EmployeeID: a.EmployeeID,
				Date:       a.Date,
				Message:    fmt.Sprintf("员工 %s 不在名单中", a.EmployeeID),
			})
		}
	}
	return conflicts
}

// HasErrors 是否存在 error 级别的冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

// sortConflicts 按日期、员工、类型排序，保证输出稳定
func sortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID.String() < b.EmployeeID.String()
		}
		return a.Type < b.Type
	})
}
