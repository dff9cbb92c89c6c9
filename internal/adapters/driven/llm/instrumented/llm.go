// Package instrumented decorates an LLMService with logging and metrics.
//
// The decorator never alters what the wrapped service returns: the answer
// and the error value reach the caller unchanged, so errors.Is and direct
// comparison against the delegate's error both hold.
package instrumented

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Call outcomes used as metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors shared by every instrumented service.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the LLM collectors with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_llm_calls_total",
				Help: "Number of chat model calls by outcome",
			},
			[]string{"model", "method", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docchat_llm_call_duration_seconds",
				Help:    "Latency of chat model calls",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model", "method"},
		),
	}
}

func (m *Metrics) observe(model, method string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.calls.WithLabelValues(model, method, outcome).Inc()
	m.duration.WithLabelValues(model, method).Observe(time.Since(started).Seconds())
}

// LLMService wraps another LLMService.
type LLMService struct {
	next    driven.LLMService
	metrics *Metrics
	level   zapcore.Level
}

// Option configures an LLMService.
type Option func(*LLMService)

// WithLevel sets the level of the request and response records.
// Failures are always logged at error level. The default is info.
func WithLevel(l zapcore.Level) Option {
	return func(s *LLMService) {
		s.level = l
	}
}

// New wraps next. metrics may be nil to log without recording metrics.
func New(next driven.LLMService, metrics *Metrics, opts ...Option) *LLMService {
	s := &LLMService{next: next, metrics: metrics, level: zapcore.InfoLevel}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Level returns the level of the request and response records.
func (s *LLMService) Level() zapcore.Level {
	return s.level
}

// Unwrap returns the decorated service.
func (s *LLMService) Unwrap() driven.LLMService {
	return s.next
}

// Chat logs the request, delegates, then logs and records the outcome.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	log := logger.L().With(zap.String("model", s.next.ModelName()), zap.String("method", "chat"))

	roles := make([]string, len(messages))
	size := 0
	for i, m := range messages {
		roles[i] = m.Role
		size += len(m.Content)
	}
	log.Log(s.level, "llm request",
		zap.Strings("roles", roles),
		zap.Int("chars", size),
		zap.Int("max_tokens", opts.MaxTokens),
		zap.Float64("temperature", opts.Temperature),
	)
	if log.Core().Enabled(zap.DebugLevel) {
		for i, m := range messages {
			log.Debug("llm message", zap.Int("index", i), zap.String("role", m.Role), zap.String("content", m.Content))
		}
	}

	started := time.Now()
	answer, err := s.next.Chat(ctx, messages, opts)
	elapsed := time.Since(started)

	s.metrics.observe(s.next.ModelName(), "chat", started, err)
	if err != nil {
		log.Error("llm call failed", zap.Duration("latency", elapsed), zap.Error(err))
		return answer, err
	}
	log.Log(s.level, "llm response", zap.Duration("latency", elapsed), zap.Int("chars", len(answer)))
	log.Debug("llm answer", zap.String("content", answer))
	return answer, err
}

// ModelName returns the wrapped model's name.
func (s *LLMService) ModelName() string {
	return s.next.ModelName()
}

// Ping delegates and records the outcome.
func (s *LLMService) Ping(ctx context.Context) error {
	started := time.Now()
	err := s.next.Ping(ctx)
	s.metrics.observe(s.next.ModelName(), "ping", started, err)
	if err != nil {
		logger.L().Warn("llm ping failed", zap.String("model", s.next.ModelName()), zap.Error(err))
	}
	return err
}

// Close closes the wrapped service.
func (s *LLMService) Close() error {
	return s.next.Close()
}
