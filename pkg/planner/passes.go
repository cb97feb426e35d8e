package planner

import (
	"github.com/paiban/shiftplan/pkg/model"
)

// 阶段名称，用于日志和统计
const (
	PhaseNonFlexible = "non_flexible_first"
	PhasePreferred   = "preferred_day"
	PhaseMaximum     = "maximum_mode"
	PhaseLocal       = "local_balance"
	PhaseFullDays    = "ensure_full_days"
	PhaseWeekend     = "weekend_priority"
	PhaseAggressive  = "aggressive_rebalance"
	PhaseGlobal      = "global_rebalance"
	PhaseFree        = "free_status"
)

// atCeiling 按预测排班时当天是否已满
func (s *State) atCeiling(day int) bool {
	return s.mode == model.ModeForecast && s.filled[day] >= s.requiredOn(day)
}

// skipDay 按预测排班时跳过无需求的天
func (s *State) skipDay(day int) bool {
	return s.mode == model.ModeForecast && s.requiredOn(day) == 0
}

// nonFlexibleFirst 先给非灵活员工排偏好日
// 约束最紧的员工先占位，避免偏好日被灵活员工挤占
func nonFlexibleFirst(s *State) int {
	changes := 0
	for day := 0; day < s.days(); day++ {
		if s.skipDay(day) {
			continue
		}
		for _, e := range s.employees {
			if s.atCeiling(day) {
				break
			}
			if e.IsWorkingDaysFlexible || s.isTemporarilyFlexible(e) {
				continue
			}
			if s.placePreferred(e, day) {
				changes++
			}
		}
	}
	return changes
}

// preferredDays 所有员工按偏好日排班
func preferredDays(s *State) int {
	changes := 0
	for day := 0; day < s.days(); day++ {
		if s.skipDay(day) {
			continue
		}
		for _, e := range s.employees {
			if s.atCeiling(day) {
				break
			}
			if s.placePreferred(e, day) {
				changes++
			}
		}
	}
	return changes
}

// placePreferred 员工未达目标且当天为偏好日时排上班
func (s *State) placePreferred(e *model.Employee, day int) bool {
	if !s.underTarget(e) || !e.PrefersDay(s.weekdays[day]) || !s.canAssign(e, day) {
		return false
	}
	s.assign(e, day)
	return true
}

// maximumMode 尽量排满模式：灵活员工补到周目标
// 每次选缺口最大的一天，缺口相同取靠前的
func maximumMode(s *State) int {
	changes := 0
	for _, e := range s.employees {
		if !e.IsWorkingDaysFlexible && !s.isTemporarilyFlexible(e) {
			continue
		}
		for s.underTarget(e) {
			best := -1
			for day := 0; day < s.days(); day++ {
				if !s.canAssign(e, day) {
					continue
				}
				if best < 0 || s.requiredOn(day)-s.filled[day] > s.requiredOn(best)-s.filled[best] {
					best = day
				}
			}
			if best < 0 {
				break
			}
			s.assign(e, best)
			changes++
		}
	}
	return changes
}

// freeStatus 可上班但未排班的员工标记为休息
func freeStatus(s *State) int {
	changes := 0
	for _, e := range s.employees {
		for day := 0; day < s.days(); day++ {
			if s.isAssigned(e, day) || s.isProtected(e, day) || !s.canWork(e, day) {
				continue
			}
			key := model.ShiftKey{EmployeeID: e.ID, Date: s.date(day)}
			if !s.free[key] {
				s.free[key] = true
				changes++
			}
		}
	}
	return changes
}
