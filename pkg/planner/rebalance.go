package planner

import (
	"sort"

	"github.com/paiban/shiftplan/pkg/model"
)

// DayBalance 单日人手状态
type DayBalance string

const (
	DayBalanced    DayBalance = "balanced"
	DayUnderfilled DayBalance = "underfilled"
	DayOverfilled  DayBalance = "overfilled"
)

// classify 判断当天人手状态
// 无需求的天即使有人上班也视为平衡
func (s *State) classify(day int) DayBalance {
	req := s.requiredOn(day)
	switch {
	case s.filled[day] < req:
		return DayUnderfilled
	case req > 0 && s.filled[day] > req:
		return DayOverfilled
	}
	return DayBalanced
}

// underfilledDays 缺人的天，缺口率高的在前
func (s *State) underfilledDays() []int {
	var days []int
	for day := 0; day < s.days(); day++ {
		if s.classify(day) == DayUnderfilled {
			days = append(days, day)
		}
	}
	sort.SliceStable(days, func(i, j int) bool {
		return s.imbalanceRatio(days[i]) > s.imbalanceRatio(days[j])
	})
	return days
}

// overfilledDays 超员的天，超出人数多的在前
func (s *State) overfilledDays() []int {
	var days []int
	for day := 0; day < s.days(); day++ {
		if s.classify(day) == DayOverfilled {
			days = append(days, day)
		}
	}
	sort.SliceStable(days, func(i, j int) bool {
		return s.surplus(days[i]) > s.surplus(days[j])
	})
	return days
}

// moveLogged 调班并记录日志
func (s *State) moveLogged(phase string, e *model.Employee, from, to int) bool {
	if !s.move(e, from, to) {
		return false
	}
	s.log.Move(phase, e.ID.String(), s.date(from), s.date(to))
	return true
}

// assignExtra 给员工加第六天并记录日志
func (s *State) assignExtra(phase string, e *model.Employee, day int) {
	s.assign(e, day)
	s.log.ExtraDay(phase, e.ID.String(), s.date(day))
}

// localBalance 从超员的天调人到缺人的天
// 每对（缺人天，超员天）最多调一人，调出后超员天不得低于需求
func localBalance(s *State) int {
	moves := 0
	for _, target := range s.underfilledDays() {
		quota := s.shortage(target)
		for _, source := range s.overfilledDays() {
			if quota == 0 || s.shortage(target) == 0 {
				break
			}
			if s.surplus(source) == 0 {
				continue
			}
			for _, e := range s.workersOn(source) {
				if s.moveLogged(PhaseLocal, e, source, target) {
					moves++
					quota--
					break
				}
			}
		}
	}
	return moves
}
