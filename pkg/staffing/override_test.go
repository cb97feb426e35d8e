package staffing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/shiftplan/pkg/model"
)

func intPtr(n int) *int { return &n }

func TestApply(t *testing.T) {
	// 2026-01-05 是周一
	week := model.NewPlanningWeek(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 7)
	base := model.RequiredStaffing{0: 2, 5: 3, 6: 3}

	tests := []struct {
		name      string
		overrides []Override
		want      model.RequiredStaffing
	}{
		{
			name:      "无规则",
			overrides: nil,
			want:      model.RequiredStaffing{0: 2, 5: 3, 6: 3},
		},
		{
			name:      "周六加人",
			overrides: []Override{{RRule: "FREQ=WEEKLY;BYDAY=SA", Delta: 2}},
			want:      model.RequiredStaffing{0: 2, 5: 5, 6: 3},
		},
		{
			name:      "周末覆盖",
			overrides: []Override{{RRule: "FREQ=WEEKLY;BYDAY=SA,SU", Required: intPtr(1)}},
			want:      model.RequiredStaffing{0: 2, 5: 1, 6: 1},
		},
		{
			name: "依次生效且不小于0",
			overrides: []Override{
				{RRule: "FREQ=DAILY", Required: intPtr(1)},
				{RRule: "FREQ=WEEKLY;BYDAY=MO", Delta: -5},
			},
			want: model.RequiredStaffing{0: 0, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(week, base, tt.overrides)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, model.RequiredStaffing{0: 2, 5: 3, 6: 3}, base, "input must not be modified")
}

func TestApply_Errors(t *testing.T) {
	week := model.PlanningWeek{"not-a-date", "2026-01-06"}
	_, err := Apply(week, nil, []Override{{RRule: "FREQ=DAILY"}})
	assert.Error(t, err)

	week = model.NewPlanningWeek(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 7)
	_, err = Apply(week, nil, []Override{{RRule: "FREQ=SOMETIMES"}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]Override{{RRule: "FREQ=WEEKLY;BYDAY=SA"}}))
	assert.Error(t, Validate([]Override{{RRule: "FREQ=SOMETIMES"}}))
}
