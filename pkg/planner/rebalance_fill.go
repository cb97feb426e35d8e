package planner

import (
	"sort"
)

// ensureFullDays 给未达周目标的员工补天数
// 先补缺人的天（缺口率高的在前）；全周仍有缺口时再按周六优先、需求多优先补任意一天
// 愿意上六天的员工只在缺人的天加第六天
func ensureFullDays(s *State) int {
	changes := 0
	for _, e := range s.employees {
		for _, day := range s.underfilledDays() {
			if s.count(e) >= s.capacity(e, true) {
				break
			}
			if s.shortage(day) == 0 || !s.canAssign(e, day) {
				continue
			}
			if s.count(e) >= s.target(e) {
				s.assignExtra(PhaseFullDays, e, day)
			} else {
				s.assign(e, day)
			}
			changes++
		}

		if !s.underTarget(e) || s.totalShortage() == 0 {
			continue
		}
		for _, day := range s.fallbackDays() {
			if !s.underTarget(e) {
				break
			}
			if s.canAssign(e, day) {
				s.assign(e, day)
				changes++
			}
		}
	}
	return changes
}

// fallbackDays 补天数的备选顺序：周六优先，其次需求多的，最后按日期
func (s *State) fallbackDays() []int {
	days := make([]int, s.days())
	for i := range days {
		days[i] = i
	}
	const saturday = 5
	sort.SliceStable(days, func(i, j int) bool {
		a, b := days[i], days[j]
		if (a == saturday) != (b == saturday) {
			return a == saturday
		}
		return s.requiredOn(a) > s.requiredOn(b)
	})
	return days
}
