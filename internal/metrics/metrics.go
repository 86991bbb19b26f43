// Package metrics 提供Prometheus监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 流式识别服务的监控指标，nil值可以安全调用
type Metrics struct {
	// 会话指标
	ActiveSessions  prometheus.Gauge
	SessionsOpened  prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// 消息指标
	MessagesReceived  *prometheus.CounterVec
	SamplesDecoded    prometheus.Counter
	TruncatedPayloads prometheus.Counter
	SendErrors        prometheus.Counter

	// 识别指标
	InferenceDuration prometheus.Histogram
	InferenceFailures *prometheus.CounterVec
	WindowSamples     prometheus.Histogram
	Commits           prometheus.Counter
}

// New 创建并注册所有指标
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_stream_active_sessions",
			Help: "Current number of active streaming sessions",
		}),
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_sessions_opened_total",
			Help: "Total number of sessions opened",
		}),
		SessionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_sessions_closed_total",
			Help: "Total number of sessions closed",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_stream_session_duration_seconds",
			Help:    "Lifetime of streaming sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_stream_messages_received_total",
			Help: "Total number of WebSocket messages received",
		}, []string{"type"}),
		SamplesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_samples_decoded_total",
			Help: "Total number of PCM samples decoded from binary messages",
		}),
		TruncatedPayloads: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_truncated_payloads_total",
			Help: "Binary messages whose length was not a multiple of 4 bytes",
		}),
		SendErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_send_errors_total",
			Help: "Total number of failed WebSocket writes",
		}),

		InferenceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_stream_inference_duration_seconds",
			Help:    "Duration of a single recognition pass",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		InferenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_stream_inference_failures_total",
			Help: "Total number of failed recognition passes",
		}, []string{"reason"}),
		WindowSamples: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_stream_window_samples",
			Help:    "Number of samples submitted per recognition pass",
			Buckets: prometheus.ExponentialBuckets(1600, 2, 10), // 0.1s to ~51s at 16kHz
		}),
		Commits: f.NewCounter(prometheus.CounterOpts{
			Name: "whisper_stream_commits_total",
			Help: "Total number of committed transcript segments",
		}),
	}
}

// RecordSessionOpened 记录会话创建
func (m *Metrics) RecordSessionOpened() {
	if m == nil {
		return
	}
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionClosed 记录会话关闭及持续时间
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SessionsClosed.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordMessage 记录收到的消息
func (m *Metrics) RecordMessage(messageType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(messageType).Inc()
}

// RecordDecoded 记录解码的采样数
func (m *Metrics) RecordDecoded(samples int, truncated bool) {
	if m == nil {
		return
	}
	m.SamplesDecoded.Add(float64(samples))
	if truncated {
		m.TruncatedPayloads.Inc()
	}
}

// RecordSendError 记录发送失败
func (m *Metrics) RecordSendError() {
	if m == nil {
		return
	}
	m.SendErrors.Inc()
}

// RecordInference 记录一次成功的识别
func (m *Metrics) RecordInference(durationSeconds float64, windowSamples int) {
	if m == nil {
		return
	}
	m.InferenceDuration.Observe(durationSeconds)
	m.WindowSamples.Observe(float64(windowSamples))
}

// RecordInferenceFailure 记录识别失败
func (m *Metrics) RecordInferenceFailure(reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.InferenceFailures.WithLabelValues(reason).Inc()
	m.InferenceDuration.Observe(durationSeconds)
}

// RecordCommit 记录一次提交
func (m *Metrics) RecordCommit() {
	if m == nil {
		return
	}
	m.Commits.Inc()
}
