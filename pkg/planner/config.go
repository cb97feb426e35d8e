// Package planner 提供周排班自动生成引擎
package planner

// Config 排班引擎参数
// 阈值均为经验值，可按门店情况调整
type Config struct {
	// WeekendGapRatio 周末满足率低于全周平均满足率的比例超过该值时，周末优先处理
	WeekendGapRatio float64 `yaml:"weekend_gap_ratio" json:"weekend_gap_ratio"`

	// GlobalTriggerRatio 强力调班后仍有周末满足率低于该值时，触发全局调班
	GlobalTriggerRatio float64 `yaml:"global_trigger_ratio" json:"global_trigger_ratio"`

	// AcceptableImbalance 全局调班中缺口率低于该值即视为可接受
	AcceptableImbalance float64 `yaml:"acceptable_imbalance" json:"acceptable_imbalance"`

	// SixDayTarget 愿意上六天的员工最多可排的天数
	SixDayTarget int `yaml:"six_day_target" json:"six_day_target"`

	// KeepPriorWork 重新排班时保留上一版方案中的上班记录作为起点
	KeepPriorWork bool `yaml:"keep_prior_work" json:"keep_prior_work"`
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return Config{
		WeekendGapRatio:     0.2,
		GlobalTriggerRatio:  0.7,
		AcceptableImbalance: 0.25,
		SixDayTarget:        6,
		KeepPriorWork:       true,
	}
}

// normalize 将非法参数替换为默认值
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.WeekendGapRatio <= 0 || c.WeekendGapRatio >= 1 {
		c.WeekendGapRatio = def.WeekendGapRatio
	}
	if c.GlobalTriggerRatio <= 0 || c.GlobalTriggerRatio > 1 {
		c.GlobalTriggerRatio = def.GlobalTriggerRatio
	}
	if c.AcceptableImbalance <= 0 || c.AcceptableImbalance >= 1 {
		c.AcceptableImbalance = def.AcceptableImbalance
	}
	if c.SixDayTarget <= 1 {
		c.SixDayTarget = def.SixDayTarget
	}
	return c
}
