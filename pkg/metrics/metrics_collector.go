package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 领取流程指标
	claimsTotal          *prometheus.CounterVec
	claimDuration        prometheus.Histogram
	partialFailuresTotal prometheus.Counter

	// 链上交易指标
	transferSubmissions *prometheus.CounterVec

	// RPC 节点指标
	rpcRequestDuration *prometheus.HistogramVec
	rpcEndpointHealthy *prometheus.GaugeVec
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		claimsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_claims_total",
				Help: "Total number of claim attempts by outcome",
			},
			[]string{"outcome"},
		),

		claimDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faucet_claim_duration_seconds",
				Help:    "End to end claim processing duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		partialFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "faucet_partial_failures_total",
				Help: "Claims where the token transfer landed but the native transfer failed",
			},
		),

		transferSubmissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_transfer_submissions_total",
				Help: "On-chain transfer submissions by leg and status",
			},
			[]string{"leg", "status"},
		),

		rpcRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chain_rpc_request_duration_seconds",
				Help:    "Chain RPC call duration in seconds per endpoint",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method"},
		),

		rpcEndpointHealthy: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chain_rpc_endpoint_healthy",
				Help: "Whether the RPC endpoint passed its last health probe (1/0)",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordClaim 记录一次领取尝试的结局
func (m *MetricsCollector) RecordClaim(outcome string, duration time.Duration) {
	m.claimsTotal.WithLabelValues(outcome).Inc()
	m.claimDuration.Observe(duration.Seconds())
}

// RecordPartialFailure 记录半途失败（代币已转、原生币未转）
func (m *MetricsCollector) RecordPartialFailure() {
	m.partialFailuresTotal.Inc()
}

// RecordTransferSubmission 记录转账提交
func (m *MetricsCollector) RecordTransferSubmission(leg, status string) {
	m.transferSubmissions.WithLabelValues(leg, status).Inc()
}

// RecordRPCRequest 记录 RPC 调用耗时
func (m *MetricsCollector) RecordRPCRequest(endpoint, method string, duration time.Duration) {
	m.rpcRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// SetEndpointHealthy 更新节点健康状态
func (m *MetricsCollector) SetEndpointHealthy(endpoint string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.rpcEndpointHealthy.WithLabelValues(endpoint).Set(v)
}

// Default 全局收集器实例；promauto 的指标只能注册一次
var Default = NewMetricsCollector()
