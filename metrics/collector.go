package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// 流水线指标名称
const (
	ResizeTotal           = "resize_total"
	ResizeFailuresTotal   = "resize_failures_total"
	ResizeDurationSeconds = "resize_duration_seconds"
	HalfScaleSteps        = "half_scale_steps"
	HermiteBands          = "hermite_bands"
	HermiteFallbackTotal  = "hermite_fallback_total"
	HermiteReclaimedTotal = "hermite_reclaimed_workers_total"
)

// historyLimit bounds the samples kept per histogram.
const historyLimit = 100

// Collector 指标收集器
//
// A nil *Collector is valid and records nothing.
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
	}
}

// IncCounter 增加计数器
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter 增加计数器值
func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value += value
		metric.Timestamp = time.Now().Unix()
		return
	}
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      "counter",
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: time.Now().Unix(),
	}
}

// SetGauge 设置仪表值
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics[buildKey(name, labels)] = &Metric{
		Name:      name,
		Type:      "gauge",
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: time.Now().Unix(),
	}
}

// ObserveHistogram 观察直方图
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value = value
		metric.History = append(metric.History, value)
		if len(metric.History) > historyLimit {
			metric.History = metric.History[1:]
		}
		metric.Timestamp = time.Now().Unix()
		return
	}
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      "histogram",
		Value:     value,
		Labels:    copyLabels(labels),
		History:   []float64{value},
		Timestamp: time.Now().Unix(),
	}
}

// RecordDuration 记录执行耗时
func (c *Collector) RecordDuration(name string, labels map[string]string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.ObserveHistogram(name, time.Since(start).Seconds(), labels)
	return err
}

// RecordResize 记录一次缩放
func (c *Collector) RecordResize(algorithm string, duration time.Duration, errType string) {
	labels := map[string]string{"algorithm": algorithm}
	c.IncCounter(ResizeTotal, labels)
	c.ObserveHistogram(ResizeDurationSeconds, duration.Seconds(), labels)
	if errType != "" {
		c.IncCounter(ResizeFailuresTotal, map[string]string{"type": errType})
	}
}

// GetMetrics 获取所有指标
func (c *Collector) GetMetrics() map[string]*Metric {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*Metric, len(c.metrics))
	for k, v := range c.metrics {
		cp := *v
		cp.History = append([]float64(nil), v.History...)
		result[k] = &cp
	}
	return result
}

// GetMetric 获取单个指标
func (c *Collector) GetMetric(name string, labels map[string]string) *Metric {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics[buildKey(name, labels)]
}

// Reset 重置指标
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

// PrometheusFormat renders the metrics in the Prometheus text format, sorted
// by key. Histograms are reduced to _avg and _count.
func (c *Collector) PrometheusFormat() string {
	metrics := c.GetMetrics()
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		metric := metrics[key]
		labels := formatLabels(metric.Labels)

		switch metric.Type {
		case "counter", "gauge":
			fmt.Fprintf(&sb, "%s%s %g\n", metric.Name, labels, metric.Value)
		case "histogram":
			if len(metric.History) == 0 {
				continue
			}
			var sum float64
			for _, v := range metric.History {
				sum += v
			}
			fmt.Fprintf(&sb, "%s_avg%s %g\n", metric.Name, labels, sum/float64(len(metric.History)))
			fmt.Fprintf(&sb, "%s_count%s %d\n", metric.Name, labels, len(metric.History))
		}
	}
	return sb.String()
}

// Snapshot 指标快照
type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Metrics   map[string]*Metric `json:"metrics"`
}

// TakeSnapshot 获取快照
func TakeSnapshot(c *Collector) Snapshot {
	return Snapshot{
		Timestamp: time.Now(),
		Metrics:   c.GetMetrics(),
	}
}

// buildKey 构建指标键，标签按名称排序
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range names {
		sb.WriteString(":")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, k+"=\""+labels[k]+"\"")
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
