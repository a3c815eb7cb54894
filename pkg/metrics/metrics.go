// Package metrics 暴露 Prometheus 指标。
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// 聊天轮次的 outcome 标签取值。
const (
	OutcomeSuccess       = "success"
	OutcomeUpstreamError = "upstream_error"
	OutcomeClientAbort   = "client_abort"
)

// ChatMetrics 记录聊天管线的运行指标。
type ChatMetrics struct {
	turnsTotal     *prometheus.CounterVec
	fragmentsTotal prometheus.Counter
}

// NewChatMetrics 注册并返回聊天指标集合。reg 为 nil 时使用默认注册表。
func NewChatMetrics(namespace string, reg prometheus.Registerer) (*ChatMetrics, error) {
	if namespace == "" {
		namespace = "ai_chat"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Count of chat turns by transport mode and outcome.",
		}, []string{"mode", "outcome"}),
		fragmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Count of streamed reply fragments delivered to clients.",
		}),
	}
	collectors := []prometheus.Collector{m.turnsTotal, m.fragmentsTotal}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register chat metric: %w", err)
		}
	}
	return m, nil
}

// ObserveTurn 记录一轮聊天的结果。nil 接收者为 no-op，测试可不注入指标。
func (m *ChatMetrics) ObserveTurn(mode, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveFragment 记录一个已下发的流式分块。
func (m *ChatMetrics) ObserveFragment() {
	if m == nil {
		return
	}
	m.fragmentsTotal.Inc()
}
