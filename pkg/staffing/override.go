// Package staffing 提供每日需求人数的调整规则
package staffing

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	apperrors "github.com/paiban/shiftplan/pkg/errors"
	"github.com/paiban/shiftplan/pkg/model"
)

// Override 按重复规则调整需求人数
// RRule 为 RFC 5545 重复规则，如 "FREQ=WEEKLY;BYDAY=SA"；Required 直接覆盖，Delta 在其后增减
type Override struct {
	RRule    string `yaml:"rrule" json:"rrule" validate:"required"`
	Required *int   `yaml:"required,omitempty" json:"required,omitempty" validate:"omitempty,min=0"`
	Delta    int    `yaml:"delta,omitempty" json:"delta,omitempty"`
}

// Validate 检查规则语法
func Validate(overrides []Override) error {
	for i, o := range overrides {
		if _, err := rrule.StrToRRule(o.RRule); err != nil {
			return fmt.Errorf("staffing_overrides[%d] 规则无效: %w", i, err)
		}
	}
	return nil
}

// Apply 返回应用规则后的需求，不修改传入的 required
// 多条规则命中同一天时按顺序依次生效，结果不小于0
func Apply(week model.PlanningWeek, required model.RequiredStaffing, overrides []Override) (model.RequiredStaffing, error) {
	out := make(model.RequiredStaffing, len(required))
	for day, n := range required {
		out[day] = n
	}
	if week.Len() == 0 || len(overrides) == 0 {
		return out, nil
	}

	start, err := time.Parse(model.DateLayout, week.Date(0))
	if err != nil {
		return nil, apperrors.InvalidWeek("无法解析开始日期: " + week.Date(0))
	}
	end, err := time.Parse(model.DateLayout, week.Date(week.Len()-1))
	if err != nil {
		return nil, apperrors.InvalidWeek("无法解析结束日期: " + week.Date(week.Len()-1))
	}

	for i, o := range overrides {
		rule, err := rrule.StrToRRule(o.RRule)
		if err != nil {
			return nil, apperrors.InvalidInput(fmt.Sprintf("staffing_overrides[%d]", i), err.Error())
		}
		rule.DTStart(start)

		for _, occurrence := range rule.Between(start, end, true) {
			day := week.IndexOf(occurrence.Format(model.DateLayout))
			if day < 0 {
				continue
			}
			if o.Required != nil {
				out[day] = *o.Required
			}
			out[day] = max(0, out[day]+o.Delta)
		}
	}
	return out, nil
}
