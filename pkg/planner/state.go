package planner

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/shiftplan/pkg/logger"
	"github.com/paiban/shiftplan/pkg/model"
)

// State 单次排班的可变状态
// filled、counts、assigned 三者必须同步修改，只能通过 assign/unassign/move 变更
type State struct {
	cfg      Config
	mode     model.PlanningMode
	week     model.PlanningWeek
	required model.RequiredStaffing
	existing model.ExistingShifts
	flexible model.EmployeeSet
	log      *logger.PlannerLogger

	employees []*model.Employee // 在职员工，已排序
	order     map[uuid.UUID]int // 员工排序位置
	weekdays  []model.Weekday   // 天下标 -> 星期标签

	filled   []int                         // 天下标 -> 已排上班人数
	counts   map[uuid.UUID]int             // 员工 -> 本周已占用天数（含受保护班次）
	assigned map[string]map[uuid.UUID]bool // 日期 -> 上班员工
	free     map[model.ShiftKey]bool       // 休息状态

	protected []model.ShiftAssignment // 本周受保护班次
	extra     map[uuid.UUID]bool      // 已获得第六天的员工
}

// newState 构建初始状态：登记受保护班次，按需保留上一版上班记录
func newState(req *Request, cfg Config, log *logger.PlannerLogger) *State {
	s := &State{
		cfg:      cfg,
		log:      log,
		mode:     req.Mode,
		week:     req.Week,
		required: req.Required,
		existing: req.ExistingShifts,
		flexible: req.TemporarilyFlexible,
		order:    make(map[uuid.UUID]int),
		weekdays: make([]model.Weekday, req.Week.Len()),
		filled:   make([]int, req.Week.Len()),
		counts:   make(map[uuid.UUID]int),
		assigned: make(map[string]map[uuid.UUID]bool, req.Week.Len()),
		free:     make(map[model.ShiftKey]bool),
		extra:    make(map[uuid.UUID]bool),
	}
	if s.required == nil {
		s.required = model.RequiredStaffing{}
	}
	for i := range s.weekdays {
		s.weekdays[i] = s.week.Weekday(i)
		s.assigned[s.week.Date(i)] = make(map[uuid.UUID]bool)
	}

	s.employees = sortEmployees(req.Employees)
	for i, e := range s.employees {
		s.order[e.ID] = i
	}

	s.seedProtected()
	if cfg.KeepPriorWork {
		s.seedPriorWork()
	}
	return s
}

// sortEmployees 过滤离职员工并排序：非灵活员工在前，偏好日少的在前，其余保持输入顺序
func sortEmployees(in []*model.Employee) []*model.Employee {
	out := make([]*model.Employee, 0, len(in))
	seen := make(map[uuid.UUID]bool, len(in))
	for _, e := range in {
		if e == nil || !e.IsActive() || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsWorkingDaysFlexible != b.IsWorkingDaysFlexible {
			return !a.IsWorkingDaysFlexible
		}
		return len(a.PreferredWorkingDays) < len(b.PreferredWorkingDays)
	})
	return out
}

// seedProtected 登记本周受保护班次，计入员工周天数
func (s *State) seedProtected() {
	for _, sh := range s.existing {
		if !sh.ShiftType.IsProtected() || !s.week.Contains(sh.Date) {
			continue
		}
		s.protected = append(s.protected, model.ShiftAssignment{
			EmployeeID: sh.EmployeeID,
			Date:       sh.Date,
			ShiftType:  sh.ShiftType,
		})
		if _, ok := s.order[sh.EmployeeID]; ok {
			s.counts[sh.EmployeeID]++
		}
	}
	sort.Slice(s.protected, func(i, j int) bool {
		return s.lessAssignment(s.protected[i], s.protected[j])
	})
}

// seedPriorWork 保留上一版方案中仍然有效的上班记录
func (s *State) seedPriorWork() {
	for _, e := range s.employees {
		for day := range s.filled {
			sh, ok := s.existing.Get(e.ID, s.week.Date(day))
			if !ok || sh.ShiftType != model.ShiftWork {
				continue
			}
			if s.underTarget(e) && s.canAssign(e, day) {
				s.assign(e, day)
			}
		}
	}
}

// lessAssignment 输出排序：按天，再按员工排序位置，未知员工按ID
func (s *State) lessAssignment(a, b model.ShiftAssignment) bool {
	da, db := s.week.IndexOf(a.Date), s.week.IndexOf(b.Date)
	if da != db {
		return da < db
	}
	oa, okA := s.order[a.EmployeeID]
	ob, okB := s.order[b.EmployeeID]
	switch {
	case okA && okB:
		return oa < ob
	case okA != okB:
		return okA
	}
	return a.EmployeeID.String() < b.EmployeeID.String()
}

// days 返回天数
func (s *State) days() int {
	return len(s.filled)
}

func (s *State) date(day int) string {
	return s.week.Date(day)
}

func (s *State) requiredOn(day int) int {
	return s.required.For(day)
}

func (s *State) filledOn(day int) int {
	return s.filled[day]
}

// shortage 当天缺口人数
func (s *State) shortage(day int) int {
	if d := s.requiredOn(day) - s.filled[day]; d > 0 {
		return d
	}
	return 0
}

// surplus 当天超出需求的人数
func (s *State) surplus(day int) int {
	if d := s.filled[day] - s.requiredOn(day); d > 0 {
		return d
	}
	return 0
}

// totalShortage 全周缺口
func (s *State) totalShortage() int {
	total := 0
	for day := range s.filled {
		total += s.shortage(day)
	}
	return total
}

// demandSurplus 全周有需求的天的富余人数
func (s *State) demandSurplus() int {
	total := 0
	for day := range s.filled {
		if s.requiredOn(day) > 0 {
			total += s.surplus(day)
		}
	}
	return total
}

// imbalanceRatio 缺口率：1 - 已排/需求，满足或无需求为0
func (s *State) imbalanceRatio(day int) float64 {
	req := s.requiredOn(day)
	if req == 0 || s.filled[day] >= req {
		return 0
	}
	return 1 - float64(s.filled[day])/float64(req)
}

// imbalanceAfterRemoval 减少一人后的缺口率
func (s *State) imbalanceAfterRemoval(day int) float64 {
	req := s.requiredOn(day)
	n := s.filled[day] - 1
	if req == 0 || n >= req {
		return 0
	}
	return 1 - float64(n)/float64(req)
}

// fillRatio 满足率：已排/需求
func (s *State) fillRatio(day int) float64 {
	req := s.requiredOn(day)
	if req == 0 {
		return 1
	}
	return float64(s.filled[day]) / float64(req)
}

// surplusRatio 富余率：已排/需求 - 1，无需求但有人上班视为无穷大
func (s *State) surplusRatio(day int) float64 {
	req := s.requiredOn(day)
	if req == 0 {
		if s.filled[day] > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return float64(s.filled[day])/float64(req) - 1
}

// averageFillRatio 有需求的天的平均满足率
func (s *State) averageFillRatio() float64 {
	sum, n := 0.0, 0
	for day := range s.filled {
		if s.requiredOn(day) > 0 {
			sum += s.fillRatio(day)
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// canWork 员工当天是否可上班
func (s *State) canWork(e *model.Employee, day int) bool {
	return e.CanWork(s.weekdays[day], s.flexible.Has(e.ID))
}

// isTemporarilyFlexible 员工本周是否临时灵活
func (s *State) isTemporarilyFlexible(e *model.Employee) bool {
	return s.flexible.Has(e.ID)
}

// isProtected 员工当天是否有受保护班次
func (s *State) isProtected(e *model.Employee, day int) bool {
	_, ok := ProtectedShift(e.ID, s.date(day), s.existing)
	return ok
}

// isAssigned 员工当天是否已排上班
func (s *State) isAssigned(e *model.Employee, day int) bool {
	return s.assigned[s.date(day)][e.ID]
}

// canAssign 员工当天可以新增上班：可上班、未排班、无受保护班次
func (s *State) canAssign(e *model.Employee, day int) bool {
	return s.canWork(e, day) && !s.isAssigned(e, day) && !s.isProtected(e, day)
}

func (s *State) count(e *model.Employee) int {
	return s.counts[e.ID]
}

func (s *State) target(e *model.Employee) int {
	return e.WorkingDaysAWeek
}

func (s *State) underTarget(e *model.Employee) bool {
	return s.count(e) < s.target(e)
}

// capacity 员工本周最多可占用的天数
// 愿意上六天的员工在全周缺口大于富余时可多排一天
func (s *State) capacity(e *model.Employee, allowExtra bool) int {
	t := s.target(e)
	if allowExtra && s.mayTakeExtra(e) {
		return t + 1
	}
	return t
}

// mayTakeExtra 是否允许给该员工加第六天
func (s *State) mayTakeExtra(e *model.Employee) bool {
	if s.extra[e.ID] || !e.CanTakeSixthDay(s.cfg.SixDayTarget) {
		return false
	}
	return s.count(e) == s.target(e) && s.totalShortage() > s.demandSurplus()
}

// workersOn 当天上班的员工，按排序位置
func (s *State) workersOn(day int) []*model.Employee {
	set := s.assigned[s.date(day)]
	out := make([]*model.Employee, 0, len(set))
	for _, e := range s.employees {
		if set[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// assign 新增上班
func (s *State) assign(e *model.Employee, day int) {
	if !s.canAssign(e, day) {
		return
	}
	if s.count(e) >= s.target(e) {
		s.extra[e.ID] = true
	}
	s.filled[day]++
	s.counts[e.ID]++
	s.assigned[s.date(day)][e.ID] = true
	delete(s.free, model.ShiftKey{EmployeeID: e.ID, Date: s.date(day)})
}

// unassign 取消上班，可上班时改为休息
func (s *State) unassign(e *model.Employee, day int) {
	if !s.isAssigned(e, day) {
		return
	}
	s.filled[day]--
	s.counts[e.ID]--
	delete(s.assigned[s.date(day)], e.ID)
	if s.canWork(e, day) {
		s.free[model.ShiftKey{EmployeeID: e.ID, Date: s.date(day)}] = true
	}
}

// move 将员工从 from 调到 to，周天数不变
// 条件不满足时不做任何修改
func (s *State) move(e *model.Employee, from, to int) bool {
	if from == to || !s.isAssigned(e, from) || !s.canAssign(e, to) {
		return false
	}
	s.unassign(e, from)
	s.filled[to]++
	s.counts[e.ID]++
	s.assigned[s.date(to)][e.ID] = true
	delete(s.free, model.ShiftKey{EmployeeID: e.ID, Date: s.date(to)})
	return true
}
