package observability

import "context"

// Nop returns a Provider that discards every observation. Constructors use
// it as the default so callers may omit observability wiring entirely.
func Nop() Provider {
	return nopProvider{}
}

type nopProvider struct{}

func (nopProvider) StartSpan(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, nopSpan{}
}

func (nopProvider) Counter(string) Counter     { return nopCounter{} }
func (nopProvider) Histogram(string) Histogram { return nopHistogram{} }

func (nopProvider) Debug(context.Context, string, ...Attribute) {}
func (nopProvider) Info(context.Context, string, ...Attribute)  {}
func (nopProvider) Warn(context.Context, string, ...Attribute)  {}
func (nopProvider) Error(context.Context, string, ...Attribute) {}

type nopSpan struct{}

func (nopSpan) End()                          {}
func (nopSpan) SetAttributes(...Attribute)    {}
func (nopSpan) SetStatus(StatusCode, string)  {}
func (nopSpan) RecordError(error)             {}
func (nopSpan) AddEvent(string, ...Attribute) {}

type nopCounter struct{}

func (nopCounter) Add(context.Context, int64, ...Attribute) {}

type nopHistogram struct{}

func (nopHistogram) Record(context.Context, float64, ...Attribute) {}
