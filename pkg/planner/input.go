package planner

import (
	"fmt"
	"strconv"
	"time"

	playground "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/paiban/shiftplan/pkg/errors"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/staffing"
)

// employeeNamespace 未填写ID的员工按姓名生成固定ID
var employeeNamespace = uuid.MustParse("5d1f3c2e-8a47-4b0e-9f6a-2c8e7b1d4a90")

// EmployeeInput 员工输入，ID 可省略
type EmployeeInput struct {
	ID                    string   `json:"id,omitempty" yaml:"id,omitempty" validate:"omitempty,uuid"`
	Name                  string   `json:"name" yaml:"name" validate:"required"`
	Status                string   `json:"status,omitempty" yaml:"status,omitempty" validate:"omitempty,oneof=active former"`
	WorkingDaysAWeek      int      `json:"working_days_a_week" yaml:"workingDaysAWeek" validate:"min=0,max=7"`
	PreferredWorkingDays  []string `json:"preferred_working_days,omitempty" yaml:"preferredWorkingDays,omitempty"`
	IsWorkingDaysFlexible bool     `json:"is_working_days_flexible" yaml:"isWorkingDaysFlexible"`
	WantsToWorkSixDays    bool     `json:"wants_to_work_six_days" yaml:"wantsToWorkSixDays"`
}

// ShiftInput 已有班次输入，Employee 可以是员工ID或姓名
type ShiftInput struct {
	Employee  string `json:"employee" yaml:"employee" validate:"required"`
	Date      string `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	ShiftType string `json:"shift_type" yaml:"shiftType" validate:"required,oneof=work free appointment vacation sick"`
}

// Input 排班输入文件或请求体
// 排班周可以用 Start+Days 描述，也可以直接列出 Week
// Required 的键可以是天下标、日期或星期标签
type Input struct {
	Start               string              `json:"start,omitempty" yaml:"start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Days                int                 `json:"days,omitempty" yaml:"days,omitempty" validate:"omitempty,min=6,max=7"`
	Week                []string            `json:"week,omitempty" yaml:"week,omitempty" validate:"omitempty,min=6,max=7,dive,datetime=2006-01-02"`
	Mode                string              `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=forecast maximum max"`
	Employees           []EmployeeInput     `json:"employees" yaml:"employees" validate:"dive"`
	Required            map[string]int      `json:"required,omitempty" yaml:"required,omitempty"`
	ExistingShifts      []ShiftInput        `json:"existing_shifts,omitempty" yaml:"existingShifts,omitempty" validate:"dive"`
	TemporarilyFlexible []string            `json:"temporarily_flexible,omitempty" yaml:"temporarilyFlexible,omitempty"`
	Overrides           []staffing.Override `json:"overrides,omitempty" yaml:"overrides,omitempty" validate:"dive"`
}

var inputValidator = playground.New()

// Validate 校验输入格式
func (in *Input) Validate() error {
	if err := inputValidator.Struct(in); err != nil {
		return validationError(err)
	}
	if in.Start == "" && len(in.Week) == 0 {
		return apperrors.InvalidWeek("需要 start 或 week")
	}
	return nil
}

// PlanningWeek 返回输入描述的排班周
func (in *Input) PlanningWeek() (model.PlanningWeek, error) {
	if len(in.Week) > 0 {
		return model.PlanningWeek(in.Week), nil
	}
	start, err := time.Parse(model.DateLayout, in.Start)
	if err != nil {
		return nil, apperrors.InvalidWeek("无法解析开始日期: " + in.Start)
	}
	if model.WeekdayOf(start) != model.Monday {
		return nil, apperrors.InvalidWeek(in.Start + " 不是周一")
	}
	days := in.Days
	if days == 0 {
		days = 7
	}
	return model.NewPlanningWeek(start, days), nil
}

// Request 校验输入并转换为排班请求
// 需求规则在转换时应用
func (in *Input) Request() (*Request, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	week, err := in.PlanningWeek()
	if err != nil {
		return nil, err
	}
	mode, ok := model.ParsePlanningMode(in.Mode)
	if !ok {
		return nil, apperrors.InvalidInput("mode", "不支持的排班模式: "+in.Mode)
	}

	ve := &apperrors.ValidationErrors{}
	employees, byName := in.employees(ve)
	resolve := func(field, ref string) (uuid.UUID, bool) {
		if id, ok := byName[ref]; ok {
			return id, true
		}
		if id, err := uuid.Parse(ref); err == nil {
			return id, true
		}
		ve.Add(field, "未知员工: "+ref)
		return uuid.Nil, false
	}

	required := make(model.RequiredStaffing, len(in.Required))
	for key, n := range in.Required {
		day, ok := dayIndex(week, key)
		if !ok {
			ve.Add("required."+key, "无法识别的需求键，应为天下标、日期或星期")
			continue
		}
		// 不在排班周内的天直接忽略
		if day >= 0 {
			required[day] = n
		}
	}

	shifts := make([]model.ExistingShift, 0, len(in.ExistingShifts))
	for i, s := range in.ExistingShifts {
		id, ok := resolve(fmt.Sprintf("existing_shifts[%d].employee", i), s.Employee)
		if !ok {
			continue
		}
		shifts = append(shifts, model.ExistingShift{EmployeeID: id, Date: s.Date, ShiftType: model.ShiftType(s.ShiftType)})
	}

	flexible := make(model.EmployeeSet, len(in.TemporarilyFlexible))
	for i, ref := range in.TemporarilyFlexible {
		if id, ok := resolve(fmt.Sprintf("temporarily_flexible[%d]", i), ref); ok {
			flexible[id] = struct{}{}
		}
	}

	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}

	required, err = staffing.Apply(week, required, in.Overrides)
	if err != nil {
		return nil, err
	}

	return &Request{
		Employees:           employees,
		Week:                week,
		Required:            required,
		ExistingShifts:      model.NewExistingShifts(shifts),
		Mode:                mode,
		TemporarilyFlexible: flexible,
	}, nil
}

func (in *Input) employees(ve *apperrors.ValidationErrors) ([]*model.Employee, map[string]uuid.UUID) {
	employees := make([]*model.Employee, 0, len(in.Employees))
	byName := make(map[string]uuid.UUID, len(in.Employees))

	for i, e := range in.Employees {
		if _, dup := byName[e.Name]; dup {
			ve.Add(fmt.Sprintf("employees[%d].name", i), "姓名重复: "+e.Name)
			continue
		}
		emp := e.employee(fmt.Sprintf("employees[%d]", i), ve)
		byName[e.Name] = emp.ID
		employees = append(employees, emp)
	}
	return employees, byName
}

// ToEmployee 校验并转换单个员工输入
func (e EmployeeInput) ToEmployee() (*model.Employee, error) {
	if err := inputValidator.Struct(e); err != nil {
		return nil, validationError(err)
	}
	ve := &apperrors.ValidationErrors{}
	emp := e.employee("employee", ve)
	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}
	return emp, nil
}

func (e EmployeeInput) employee(field string, ve *apperrors.ValidationErrors) *model.Employee {
	id := uuid.NewSHA1(employeeNamespace, []byte(e.Name))
	if e.ID != "" {
		id = uuid.MustParse(e.ID)
	}

	days := make([]model.Weekday, 0, len(e.PreferredWorkingDays))
	for _, s := range e.PreferredWorkingDays {
		d, ok := model.ParseWeekday(s)
		if !ok {
			ve.Add(field+".preferred_working_days", "无法识别的星期: "+s)
			continue
		}
		days = append(days, d)
	}

	return &model.Employee{
		ID:                    id,
		Name:                  e.Name,
		Status:                model.EmployeeStatus(e.Status),
		WorkingDaysAWeek:      e.WorkingDaysAWeek,
		PreferredWorkingDays:  days,
		IsWorkingDaysFlexible: e.IsWorkingDaysFlexible,
		WantsToWorkSixDays:    e.WantsToWorkSixDays,
	}
}

// validationError 将校验器错误转换为带字段信息的 AppError
func validationError(err error) error {
	ve := &apperrors.ValidationErrors{}
	if fieldErrs, ok := err.(playground.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			ve.Add(fe.Namespace(), fmt.Sprintf("不满足规则 %s", fe.Tag()))
		}
		return ve.ToAppError()
	}
	return apperrors.Wrap(err, apperrors.CodeInvalidInput, "输入校验失败")
}

// dayIndex 解析需求键：天下标、日期或星期标签
// 能识别但不在排班周内的键返回 -1, true
func dayIndex(week model.PlanningWeek, key string) (int, bool) {
	if i, err := strconv.Atoi(key); err == nil {
		if i >= 0 && i < week.Len() {
			return i, true
		}
		return -1, true
	}
	if _, err := time.Parse(model.DateLayout, key); err == nil {
		return week.IndexOf(key), true
	}
	if d, ok := model.ParseWeekday(key); ok {
		for i := 0; i < week.Len(); i++ {
			if week.Weekday(i) == d {
				return i, true
			}
		}
		return -1, true
	}
	return -1, false
}
