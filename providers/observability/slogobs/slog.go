package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finflow-ai/finflow/providers/observability"
)

// Observer implements observability.Provider using log/slog. Spans log
// their start and end at debug level with their accumulated attributes;
// metrics are kept in memory and logged on every update.
type Observer struct {
	logger  *slog.Logger
	metrics *metricsStore
}

var _ observability.Provider = (*Observer)(nil)

// New creates a slog-based observer. With no options, format and level are
// taken from FINFLOW_LOG_FORMAT and FINFLOW_LOG_LEVEL, defaulting to text
// at info level on stderr.
//
// Example:
//
//	obs := slogobs.New(
//	    slogobs.WithFormat(slogobs.FormatJSON),
//	    slogobs.WithLevel(slog.LevelDebug),
//	)
func New(opts ...Option) *Observer {
	cfg := applyOptions(opts...)

	logger := cfg.logger
	if logger == nil {
		handlerOpts := &slog.HandlerOptions{Level: cfg.level}
		switch cfg.format {
		case FormatJSON:
			logger = slog.New(slog.NewJSONHandler(cfg.output, handlerOpts))
		default:
			logger = slog.New(slog.NewTextHandler(cfg.output, handlerOpts))
		}
	}

	return &Observer{
		logger:  logger,
		metrics: newMetricsStore(),
	}
}

// --- TRACING ---

// StartSpan begins a named span and logs its start at debug level. The
// returned context is unchanged; End logs the elapsed duration.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		name:      name,
		startTime: time.Now(),
		logger:    o.logger,
		attrs:     attrs,
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "span started", spanAttrs(name, "span.start", attrs)...)
	return ctx, span
}

type slogSpan struct {
	name      string
	startTime time.Time
	logger    *slog.Logger
	attrs     []observability.Attribute
	mu        sync.Mutex
}

func (s *slogSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	logAttrs := spanAttrs(s.name, "span.end", s.attrs)
	logAttrs = append(logAttrs, slog.Duration("duration", time.Since(s.startTime)))
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "span ended", logAttrs...)
}

func (s *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *slogSpan) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "unset"
	switch code {
	case observability.StatusOK:
		status = "ok"
	case observability.StatusError:
		status = "error"
	}
	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, status))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

func (s *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, observability.Error(err))
	s.logger.LogAttrs(context.Background(), slog.LevelError, "span error",
		slog.String("span", s.name),
		slog.String("error", err.Error()),
	)
}

func (s *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "span event", spanAttrs(s.name, name, attrs)...)
}

func spanAttrs(span, event string, attrs []observability.Attribute) []slog.Attr {
	logAttrs := make([]slog.Attr, 0, len(attrs)+2)
	logAttrs = append(logAttrs, slog.String("span", span), slog.String("event", event))
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	return logAttrs
}

// --- METRICS ---

// Counter returns the named counter. Repeated calls with the same name
// return the same instance.
func (o *Observer) Counter(name string) observability.Counter {
	return o.metrics.counter(name, o.logger)
}

// Histogram returns the named histogram. Repeated calls with the same name
// return the same instance.
func (o *Observer) Histogram(name string) observability.Histogram {
	return o.metrics.histogram(name, o.logger)
}

type metricsStore struct {
	mu         sync.Mutex
	counters   map[string]*slogCounter
	histograms map[string]*slogHistogram
}

func newMetricsStore() *metricsStore {
	return &metricsStore{
		counters:   make(map[string]*slogCounter),
		histograms: make(map[string]*slogHistogram),
	}
}

func (m *metricsStore) counter(name string, logger *slog.Logger) *slogCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &slogCounter{name: name, logger: logger}
	m.counters[name] = c
	return c
}

func (m *metricsStore) histogram(name string, logger *slog.Logger) *slogHistogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h
	}
	h := &slogHistogram{name: name, logger: logger}
	m.histograms[name] = h
	return h
}

type slogCounter struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
	total  int64
}

func (c *slogCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.mu.Lock()
	c.total += value
	total := c.total
	c.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("metric", c.name),
		slog.Int64("delta", value),
		slog.Int64("total", total),
	}
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "counter", logAttrs...)
}

type slogHistogram struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
	count  int64
	sum    float64
}

func (h *slogHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	h.mu.Lock()
	h.count++
	h.sum += value
	count, sum := h.count, h.sum
	h.mu.Unlock()

	logAttrs := []slog.Attr{
		slog.String("metric", h.name),
		slog.Float64("value", value),
		slog.Int64("count", count),
		slog.Float64("sum", sum),
	}
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	h.logger.LogAttrs(ctx, slog.LevelDebug, "histogram", logAttrs...)
}

// --- LOGGING ---

// Debug logs at debug level.
func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug, msg, attrs)
}

// Info logs at info level.
func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelInfo, msg, attrs)
}

// Warn logs at warn level.
func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelWarn, msg, attrs)
}

// Error logs at error level.
func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelError, msg, attrs)
}

func (o *Observer) log(ctx context.Context, level slog.Level, msg string, attrs []observability.Attribute) {
	logAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(attr.Key, attr.Value))
	}
	o.logger.LogAttrs(ctx, level, msg, logAttrs...)
}
