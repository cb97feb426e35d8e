// Package metrics 提供Prometheus监控指标
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricsRegistry 指标注册表
type MetricsRegistry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter 计数器
type Counter struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Gauge 仪表盘
type Gauge struct {
	Name   string
	Help   string
	Labels []string
	values map[string]float64
	mu     sync.RWMutex
}

// Histogram 直方图
type Histogram struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64
	counts  map[string][]int
	sums    map[string]float64
	mu      sync.RWMutex
}

const (
	metricHTTPRequests     = "shiftplan_http_requests_total"
	metricHTTPDuration     = "shiftplan_http_request_duration_seconds"
	metricPlanGeneration   = "shiftplan_plan_generation_total"
	metricPlanDuration     = "shiftplan_plan_generation_duration_seconds"
	metricPhaseChanges     = "shiftplan_phase_changes_total"
	metricConflicts        = "shiftplan_conflicts_total"
	metricActivePlans      = "shiftplan_active_plans"
	metricDBConnections    = "shiftplan_db_connections"
	metricShortage         = "shiftplan_plan_shortage"
	metricCoverageRate     = "shiftplan_coverage_rate"
	metricFairnessGini     = "shiftplan_fairness_gini"
	metricTargetAttainment = "shiftplan_target_attainment"
)

var (
	registry *MetricsRegistry
	once     sync.Once
)

// GetRegistry 获取全局注册表
func GetRegistry() *MetricsRegistry {
	once.Do(func() {
		registry = NewRegistry()
		initDefaultMetrics(registry)
	})
	return registry
}

// NewRegistry 创建空注册表
func NewRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// initDefaultMetrics 初始化默认指标
func initDefaultMetrics(r *MetricsRegistry) {
	r.NewCounter(metricHTTPRequests, "HTTP请求总数", []string{"method", "path", "status"})
	r.NewHistogram(metricHTTPDuration, "HTTP请求延迟",
		[]string{"method", "path"},
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0})

	// 排班生成
	r.NewCounter(metricPlanGeneration, "排班生成次数", []string{"mode", "status"})
	r.NewHistogram(metricPlanDuration, "排班生成延迟",
		[]string{"mode"},
		[]float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0})
	r.NewCounter(metricPhaseChanges, "各阶段的新增、调班和标记数", []string{"phase"})
	r.NewCounter(metricConflicts, "校验发现的冲突数", []string{"type", "severity"})
	r.NewGauge(metricActivePlans, "正在计算的排班数", []string{})

	r.NewGauge(metricDBConnections, "数据库连接数", []string{"state"})

	// 排班质量
	r.NewGauge(metricShortage, "最近一次排班的全周缺口", []string{"mode"})
	r.NewGauge(metricCoverageRate, "最近一次排班的覆盖率", []string{"mode"})
	r.NewGauge(metricFairnessGini, "工作量基尼系数", []string{"metric_type"})
	r.NewGauge(metricTargetAttainment, "员工目标天数达成率", []string{})
}

// NewCounter 创建计数器
func (r *MetricsRegistry) NewCounter(name, help string, labels []string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter := &Counter{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.counters[name] = counter
	return counter
}

// NewGauge 创建仪表盘
func (r *MetricsRegistry) NewGauge(name, help string, labels []string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge := &Gauge{
		Name:   name,
		Help:   help,
		Labels: labels,
		values: make(map[string]float64),
	}
	r.gauges[name] = gauge
	return gauge
}

// NewHistogram 创建直方图
func (r *MetricsRegistry) NewHistogram(name, help string, labels []string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram := &Histogram{
		Name:    name,
		Help:    help,
		Labels:  labels,
		Buckets: buckets,
		counts:  make(map[string][]int),
		sums:    make(map[string]float64),
	}
	r.histograms[name] = histogram
	return histogram
}

// GetCounter 获取计数器
func (r *MetricsRegistry) GetCounter(name string) *Counter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// GetGauge 获取仪表盘
func (r *MetricsRegistry) GetGauge(name string) *Gauge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

// GetHistogram 获取直方图
func (r *MetricsRegistry) GetHistogram(name string) *Histogram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.histograms[name]
}

// Inc 增加计数
func (c *Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add 增加指定值
func (c *Counter) Add(value float64, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[labelKey(labelValues)] += value
}

// Value 返回当前值
func (c *Counter) Value(labelValues ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[labelKey(labelValues)]
}

// Set 设置值
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] = value
}

// Inc 增加
func (g *Gauge) Inc(labelValues ...string) {
	g.Add(1, labelValues...)
}

// Dec 减少
func (g *Gauge) Dec(labelValues ...string) {
	g.Add(-1, labelValues...)
}

// Add 增加指定值
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelKey(labelValues)] += value
}

// Value 返回当前值
func (g *Gauge) Value(labelValues ...string) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.values[labelKey(labelValues)]
}

// Observe 记录观测值
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := labelKey(labelValues)
	if _, exists := h.counts[key]; !exists {
		h.counts[key] = make([]int, len(h.Buckets)+1)
	}

	// 只记入第一个满足的 bucket，输出时累加
	idx := sort.SearchFloat64s(h.Buckets, value)
	h.counts[key][idx]++
	h.sums[key] += value
}

// Count 返回观测次数
func (h *Histogram) Count(labelValues ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, n := range h.counts[labelKey(labelValues)] {
		total += n
	}
	return total
}

// labelKey 生成标签键
func labelKey(labels []string) string {
	return strings.Join(labels, ",")
}

// Handler 返回Prometheus格式的指标HTTP处理器
func Handler() http.Handler {
	return GetRegistry().Handler()
}

// Handler 返回该注册表的HTTP处理器
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	})
}

// WriteTo 以Prometheus文本格式输出全部指标，按名称和标签排序
func (r *MetricsRegistry) WriteTo(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		counter := r.counters[name]
		fmt.Fprintf(w, "# HELP %s %s\n", counter.Name, counter.Help)
		fmt.Fprintf(w, "# TYPE %s counter\n", counter.Name)

		counter.mu.RLock()
		for _, key := range sortedKeys(counter.values) {
			fmt.Fprintf(w, "%s%s %s\n", counter.Name, braces(formatLabels(counter.Labels, key)), formatValue(counter.values[key]))
		}
		counter.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.gauges) {
		gauge := r.gauges[name]
		fmt.Fprintf(w, "# HELP %s %s\n", gauge.Name, gauge.Help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", gauge.Name)

		gauge.mu.RLock()
		for _, key := range sortedKeys(gauge.values) {
			fmt.Fprintf(w, "%s%s %s\n", gauge.Name, braces(formatLabels(gauge.Labels, key)), formatValue(gauge.values[key]))
		}
		gauge.mu.RUnlock()
	}

	for _, name := range sortedKeys(r.histograms) {
		histogram := r.histograms[name]
		fmt.Fprintf(w, "# HELP %s %s\n", histogram.Name, histogram.Help)
		fmt.Fprintf(w, "# TYPE %s histogram\n", histogram.Name)

		histogram.mu.RLock()
		for _, key := range sortedKeys(histogram.counts) {
			counts := histogram.counts[key]
			labels := formatLabels(histogram.Labels, key)
			prefix := ""
			if labels != "" {
				prefix = labels + ","
			}

			cumulative := 0
			for i, bucket := range histogram.Buckets {
				cumulative += counts[i]
				fmt.Fprintf(w, "%s_bucket{%sle=\"%s\"} %d\n", histogram.Name, prefix, formatValue(bucket), cumulative)
			}
			cumulative += counts[len(histogram.Buckets)]
			fmt.Fprintf(w, "%s_bucket{%sle=\"+Inf\"} %d\n", histogram.Name, prefix, cumulative)
			fmt.Fprintf(w, "%s_sum%s %s\n", histogram.Name, braces(labels), formatValue(histogram.sums[key]))
			fmt.Fprintf(w, "%s_count%s %d\n", histogram.Name, braces(labels), cumulative)
		}
		histogram.mu.RUnlock()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func braces(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

// formatLabels 格式化标签
func formatLabels(names []string, key string) string {
	if len(names) == 0 {
		return ""
	}
	vals := strings.Split(key, ",")
	parts := make([]string, len(names))
	for i, name := range names {
		val := ""
		if i < len(vals) {
			val = vals[i]
		}
		parts[i] = fmt.Sprintf("%s=%q", name, val)
	}
	return strings.Join(parts, ",")
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	r := GetRegistry()
	if counter := r.GetCounter(metricHTTPRequests); counter != nil {
		counter.Inc(method, path, strconv.Itoa(status))
	}
	if histogram := r.GetHistogram(metricHTTPDuration); histogram != nil {
		histogram.Observe(duration.Seconds(), method, path)
	}
}

// RecordPlanGeneration 记录排班生成指标
func RecordPlanGeneration(mode string, success bool, duration time.Duration) {
	r := GetRegistry()

	status := "success"
	if !success {
		status = "failure"
	}
	if counter := r.GetCounter(metricPlanGeneration); counter != nil {
		counter.Inc(mode, status)
	}
	if histogram := r.GetHistogram(metricPlanDuration); histogram != nil {
		histogram.Observe(duration.Seconds(), mode)
	}
}

// RecordPhaseChanges 记录某阶段的变更数
func RecordPhaseChanges(phase string, changes int) {
	if changes <= 0 {
		return
	}
	if counter := GetRegistry().GetCounter(metricPhaseChanges); counter != nil {
		counter.Add(float64(changes), phase)
	}
}

// RecordConflict 记录校验冲突
func RecordConflict(conflictType, severity string) {
	if counter := GetRegistry().GetCounter(metricConflicts); counter != nil {
		counter.Inc(conflictType, severity)
	}
}

// TrackActivePlan 正在计算的排班数加一，返回的函数用于减一
func TrackActivePlan() func() {
	gauge := GetRegistry().GetGauge(metricActivePlans)
	if gauge == nil {
		return func() {}
	}
	gauge.Inc()
	return func() { gauge.Dec() }
}

// SetPlanQuality 设置最近一次排班的缺口和覆盖率
func SetPlanQuality(mode string, shortage int, coverageRate float64) {
	r := GetRegistry()
	if gauge := r.GetGauge(metricShortage); gauge != nil {
		gauge.Set(float64(shortage), mode)
	}
	if gauge := r.GetGauge(metricCoverageRate); gauge != nil {
		gauge.Set(coverageRate, mode)
	}
}

// SetFairness 设置工作量公平性指标
func SetFairness(workloadGini, weekendGini, targetAttainment float64) {
	r := GetRegistry()
	if gauge := r.GetGauge(metricFairnessGini); gauge != nil {
		gauge.Set(workloadGini, "workload")
		gauge.Set(weekendGini, "weekend")
	}
	if gauge := r.GetGauge(metricTargetAttainment); gauge != nil {
		gauge.Set(targetAttainment)
	}
}

// SetDBConnections 设置数据库连接数
func SetDBConnections(inUse, idle int) {
	if gauge := GetRegistry().GetGauge(metricDBConnections); gauge != nil {
		gauge.Set(float64(inUse), "in_use")
		gauge.Set(float64(idle), "idle")
	}
}
