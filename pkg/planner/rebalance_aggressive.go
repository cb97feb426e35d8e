package planner

import (
	"sort"

	"github.com/paiban/shiftplan/pkg/model"
)

// weekendPriority 标记满足率明显低于全周平均的周末
// 缺口人数少但比例大的周末也会被优先处理
func weekendPriority(s *State) map[int]bool {
	flagged := make(map[int]bool)
	threshold := s.averageFillRatio() * (1 - s.cfg.WeekendGapRatio)
	for day := 0; day < s.days(); day++ {
		if !s.week.IsWeekend(day) || s.requiredOn(day) == 0 || s.shortage(day) == 0 {
			continue
		}
		if s.fillRatio(day) < threshold {
			flagged[day] = true
		}
	}
	return flagged
}

// criticalDays 仍缺人的天：被标记的周末在前（按缺口率），其余按缺口人数
func (s *State) criticalDays(flagged map[int]bool) []int {
	var days []int
	for day := 0; day < s.days(); day++ {
		if s.shortage(day) > 0 {
			days = append(days, day)
		}
	}
	sort.SliceStable(days, func(i, j int) bool {
		a, b := days[i], days[j]
		if flagged[a] != flagged[b] {
			return flagged[a]
		}
		if flagged[a] {
			return s.imbalanceRatio(a) > s.imbalanceRatio(b)
		}
		return s.shortage(a) > s.shortage(b)
	})
	return days
}

// aggressiveRebalance 从任何有富余的天（包括无需求的天）调人补缺
// 调不出人时，给愿意上六天的员工加一天
func aggressiveRebalance(s *State, flagged map[int]bool) int {
	changes := 0
	for _, target := range s.criticalDays(flagged) {
		for s.shortage(target) > 0 {
			if e, source, ok := s.bestDonor(target); ok {
				s.moveLogged(PhaseAggressive, e, source, target)
				changes++
				continue
			}
			if e, ok := s.extraDayCandidate(target); ok {
				s.assignExtra(PhaseAggressive, e, target)
				changes++
				continue
			}
			break
		}
	}
	return changes
}

// loadTier 调人优先级：超出周目标的先调，其次恰好达标的
func (s *State) loadTier(e *model.Employee) int {
	switch c, t := s.count(e), s.target(e); {
	case c > t:
		return 0
	case c == t:
		return 1
	}
	return 2
}

// bestDonor 为 target 选出调出员工和来源日
// 排序：员工负荷档位，来源日富余人数多的，日期靠前的，员工排序位置
func (s *State) bestDonor(target int) (*model.Employee, int, bool) {
	var (
		best       *model.Employee
		bestSource = -1
		bestTier   int
		bestExcess int
	)
	for source := 0; source < s.days(); source++ {
		excess := s.surplus(source)
		if source == target || excess == 0 {
			continue
		}
		for _, e := range s.workersOn(source) {
			if !s.canAssign(e, target) {
				continue
			}
			tier := s.loadTier(e)
			if best == nil || tier < bestTier || (tier == bestTier && excess > bestExcess) {
				best, bestSource, bestTier, bestExcess = e, source, tier, excess
			}
		}
	}
	return best, bestSource, best != nil
}

// extraDayCandidate 选出可在 target 加第六天的员工
func (s *State) extraDayCandidate(target int) (*model.Employee, bool) {
	for _, e := range s.employees {
		if s.mayTakeExtra(e) && s.canAssign(e, target) {
			return e, true
		}
	}
	return nil, false
}
