// Package config 提供配置管理
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/paiban/shiftplan/internal/security"
	"github.com/paiban/shiftplan/pkg/model"
	"github.com/paiban/shiftplan/pkg/planner"
	"github.com/paiban/shiftplan/pkg/staffing"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Planner  PlannerConfig  `yaml:"planner"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Env      string `yaml:"env" validate:"oneof=development test production"`
	Port     int    `yaml:"port" validate:"min=1,max=65535"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Host               string        `yaml:"host" validate:"required_if=Enabled true"`
	Port               int           `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Name               string        `yaml:"name" validate:"required_if=Enabled true"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	SSLMode            string        `yaml:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxOpenConns       int           `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns       int           `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"` // 0 表示使用默认的100ms
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit      int               `yaml:"rate_limit" validate:"min=0"` // 每秒每个客户端的请求数，0 表示不限制
	Timeout        time.Duration     `yaml:"timeout"`
	CORS           CORSConfig        `yaml:"cors"`
	Keys           []security.APIKey `yaml:"keys,omitempty" validate:"dive"`                    // 为空时不认证
	TrustedProxies []string          `yaml:"trusted_proxies,omitempty" validate:"dive,ip|cidr"` // 只有这些代理转发的 X-Forwarded-For 才采信
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// PlannerConfig 排班引擎配置
type PlannerConfig struct {
	DefaultTimeout      time.Duration       `yaml:"default_timeout"`
	DefaultMode         string              `yaml:"default_mode" validate:"omitempty,oneof=forecast maximum max"`
	DaysPerWeek         int                 `yaml:"days_per_week" validate:"omitempty,min=6,max=7"`
	WeekendGapRatio     float64             `yaml:"weekend_gap_ratio" validate:"gte=0,lt=1"`
	GlobalTriggerRatio  float64             `yaml:"global_trigger_ratio" validate:"gte=0,lte=1"`
	AcceptableImbalance float64             `yaml:"acceptable_imbalance" validate:"gte=0,lt=1"`
	SixDayTarget        int                 `yaml:"six_day_target" validate:"omitempty,min=2,max=7"`
	KeepPriorWork       bool                `yaml:"keep_prior_work"`
	StaffingOverrides   []staffing.Override `yaml:"staffing_overrides,omitempty" validate:"dive"`
}

// ToPlannerConfig 转换为引擎参数
func (c PlannerConfig) ToPlannerConfig() planner.Config {
	return planner.Config{
		WeekendGapRatio:     c.WeekendGapRatio,
		GlobalTriggerRatio:  c.GlobalTriggerRatio,
		AcceptableImbalance: c.AcceptableImbalance,
		SixDayTarget:        c.SixDayTarget,
		KeepPriorWork:       c.KeepPriorWork,
	}
}

// Mode 返回默认排班模式
func (c PlannerConfig) Mode() model.PlanningMode {
	mode, ok := model.ParsePlanningMode(c.DefaultMode)
	if !ok {
		return model.ModeForecast
	}
	return mode
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

var validate = validator.New()

// Load 从环境变量加载配置
// 先载入 ENV_FILE（默认 .env）中的变量，已设置的环境变量优先
// 设置 CONFIG_FILE 时再读取该 YAML 文件，环境变量不会覆盖文件中的值
func Load() (*Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return LoadFromPath(path)
	}

	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults 返回环境变量和默认值组成的配置
func Defaults() *Config {
	def := planner.DefaultConfig()
	return &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "shiftplan"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Enabled:            getEnvBool("DB_ENABLED", false),
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			Name:               getEnv("DB_NAME", "shiftplan"),
			User:               getEnv("DB_USER", "shiftplan"),
			Password:           getEnv("DB_PASSWORD", ""),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		},
		API: APIConfig{
			RateLimit: getEnvInt("API_RATE_LIMIT", 100),
			Timeout:   getEnvDuration("API_TIMEOUT", 30*time.Second),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: []string{"*"},
			},
			TrustedProxies: getEnvList("API_TRUSTED_PROXIES"),
		},
		Planner: PlannerConfig{
			DefaultTimeout:      getEnvDuration("PLANNER_TIMEOUT", 10*time.Second),
			DefaultMode:         getEnv("PLANNER_DEFAULT_MODE", string(model.ModeForecast)),
			DaysPerWeek:         getEnvInt("PLANNER_DAYS_PER_WEEK", 7),
			WeekendGapRatio:     getEnvFloat("PLANNER_WEEKEND_GAP_RATIO", def.WeekendGapRatio),
			GlobalTriggerRatio:  getEnvFloat("PLANNER_GLOBAL_TRIGGER_RATIO", def.GlobalTriggerRatio),
			AcceptableImbalance: getEnvFloat("PLANNER_ACCEPTABLE_IMBALANCE", def.AcceptableImbalance),
			SixDayTarget:        getEnvInt("PLANNER_SIX_DAY_TARGET", def.SixDayTarget),
			KeepPriorWork:       getEnvBool("PLANNER_KEEP_PRIOR_WORK", def.KeepPriorWork),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}
}

// LoadFromPath 读取 YAML 配置文件，未填写的字段使用默认值
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return staffing.Validate(cfg.Planner.StaffingOverrides)
}

// loadEnvFile 载入 .env 文件，文件不存在时忽略
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("读取环境文件 %s 失败: %w", path, err)
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList 逗号分隔的列表，未设置时返回 nil
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
