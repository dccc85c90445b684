package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus 监控指标收集器，使用独立 registry。
type Monitor struct {
	registry *prometheus.Registry

	// 行情流
	wsConnections   *prometheus.CounterVec
	wsDisconnects   *prometheus.CounterVec
	listenersActive prometheus.Gauge
	malformed       *prometheus.CounterVec
	depthEvents     *prometheus.CounterVec

	// 聚合
	updatesApplied *prometheus.CounterVec
	updatesDropped *prometheus.CounterVec
	currentPrice   *prometheus.GaugeVec
	percentChange  *prometheus.GaugeVec
	engineState    prometheus.Gauge

	// REST
	restRequests *prometheus.CounterVec
	restErrors   *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "ticker",
		Subsystem: "",
	}
}

// New 创建新的 Monitor 实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	gaugeVec := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Monitor{
		registry: reg,

		wsConnections: counterVec("ws_connections_total", "WebSocket连接次数", "symbol"),
		wsDisconnects: counterVec("ws_disconnects_total", "WebSocket断开次数", "symbol"),
		listenersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "listeners_active",
			Help:      "运行中的 listener 数量",
		}),
		malformed:   counterVec("malformed_messages_total", "无法解析的成交消息数", "symbol"),
		depthEvents: counterVec("depth_events_total", "收到但未入库的深度消息数", "symbol"),

		updatesApplied: counterVec("updates_applied_total", "已写入价格状态的更新数", "symbol"),
		updatesDropped: counterVec("updates_dropped_total", "被丢弃的更新数", "reason"),
		currentPrice:   gaugeVec("price_current", "最新成交价", "symbol"),
		percentChange:  gaugeVec("percent_change", "相对入场价的涨跌幅(%)", "symbol"),
		engineState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "engine_state",
			Help:      "聚合循环状态(0=starting,1=listening,2=draining,3=stopped)",
		}),

		restRequests: counterVec("rest_requests_total", "REST请求总数", "action"),
		restErrors:   counterVec("rest_errors_total", "REST错误总数", "action"),
		restLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rest_latency_seconds",
			Help:      "REST请求延迟（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// 行情流相关方法
func (m *Monitor) RecordWSConnection(symbol string) {
	m.wsConnections.WithLabelValues(symbol).Inc()
	m.listenersActive.Inc()
}

func (m *Monitor) RecordWSDisconnect(symbol string) {
	m.wsDisconnects.WithLabelValues(symbol).Inc()
}

func (m *Monitor) RecordListenerExit() {
	m.listenersActive.Dec()
}

func (m *Monitor) RecordMalformed(symbol string) {
	m.malformed.WithLabelValues(symbol).Inc()
}

func (m *Monitor) RecordDepth(symbol string) {
	m.depthEvents.WithLabelValues(symbol).Inc()
}

// 聚合相关方法
func (m *Monitor) RecordApplied(symbol string, price, percent float64) {
	m.updatesApplied.WithLabelValues(symbol).Inc()
	m.currentPrice.WithLabelValues(symbol).Set(price)
	m.percentChange.WithLabelValues(symbol).Set(percent)
}

func (m *Monitor) RecordDropped(reason string) {
	m.updatesDropped.WithLabelValues(reason).Inc()
}

func (m *Monitor) UpdateEngineState(state int) {
	m.engineState.Set(float64(state))
}

// REST 相关方法
func (m *Monitor) RecordRESTRequest(action string) {
	m.restRequests.WithLabelValues(action).Inc()
}

func (m *Monitor) RecordRESTError(action string) {
	m.restErrors.WithLabelValues(action).Inc()
}

func (m *Monitor) RecordRESTLatency(action string, seconds float64) {
	m.restLatency.WithLabelValues(action).Observe(seconds)
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
