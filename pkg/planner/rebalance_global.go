package planner

import (
	"sort"
)

// needsGlobal 强力调班后仍有周末满足率低于阈值时触发全局调班
func needsGlobal(s *State) bool {
	for day := 0; day < s.days(); day++ {
		if s.week.IsWeekend(day) && s.requiredOn(day) > 0 && s.fillRatio(day) < s.cfg.GlobalTriggerRatio {
			return true
		}
	}
	return false
}

// globalRebalance 按缺口率从高到低处理每一天，从富余率最高的天逐人调入
// 缺口率降到可接受范围即停止；调出后来源日的缺口率必须小于目标日当前缺口率
func globalRebalance(s *State) int {
	if !needsGlobal(s) {
		return 0
	}
	budget := s.days() * len(s.employees)
	changes := 0
	for _, target := range s.underfilledDays() {
		for budget > 0 && s.imbalanceRatio(target) >= s.cfg.AcceptableImbalance {
			if !s.pullOne(target) {
				break
			}
			changes++
			budget--
		}
	}
	return changes
}

// pullOne 从富余率最高的可用来源日调一人到 target
func (s *State) pullOne(target int) bool {
	for _, source := range s.sourcesBySurplusRatio(target) {
		if s.imbalanceAfterRemoval(source) >= s.imbalanceRatio(target) {
			continue
		}
		for _, e := range s.workersOn(source) {
			if s.moveLogged(PhaseGlobal, e, source, target) {
				return true
			}
		}
	}
	return false
}

// sourcesBySurplusRatio 有人上班的其他天，富余率高的在前
func (s *State) sourcesBySurplusRatio(target int) []int {
	var days []int
	for day := 0; day < s.days(); day++ {
		if day != target && s.filled[day] > 0 {
			days = append(days, day)
		}
	}
	sort.SliceStable(days, func(i, j int) bool {
		return s.surplusRatio(days[i]) > s.surplusRatio(days[j])
	})
	return days
}
