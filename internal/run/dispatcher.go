// Package run executes code snippets and reports their output as console
// entries. JavaScript runs in an embedded interpreter; PHP is sent to a
// Piston-compatible execution service.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentic-research/pocket/internal/console"
	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/metrics"
)

// Failure classes carried in Result.Err.
var (
	ErrUnsupported = errors.New("language not runnable")
	ErrTimeout     = errors.New("execution timed out")
	ErrCanceled    = errors.New("execution canceled")
	ErrCompile     = errors.New("compile error")
	ErrRuntime     = errors.New("runtime error")
	ErrTransport   = errors.New("execution service unavailable")
)

// Result summarizes a run. Output is the collected text; Error the failure
// message shown to the user.
type Result struct {
	Success  bool
	Output   string
	Error    string
	Err      error
	Duration time.Duration
}

// Emit receives console entries in the order they are produced.
type Emit func(console.Entry)

// Strategy executes code for one language.
type Strategy interface {
	Run(ctx context.Context, code string, emit Emit) Result
}

// Runnable reports whether tag is on the run allow-list.
func Runnable(tag lang.Tag) bool {
	return tag == lang.JavaScript || tag == lang.PHP
}

// Dispatcher routes code to the strategy for its language.
type Dispatcher struct {
	strategies map[lang.Tag]Strategy
	metrics    *metrics.Collector
	log        *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records every run on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher wires the JavaScript and PHP strategies. Either may be nil,
// in which case that language reports as unsupported.
func NewDispatcher(javascript, php Strategy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		strategies: map[lang.Tag]Strategy{},
		log:        zap.NewNop(),
	}
	if javascript != nil {
		d.strategies[lang.JavaScript] = javascript
	}
	if php != nil {
		d.strategies[lang.PHP] = php
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run executes code as tag. Failures are reported through emit and the
// Result; Run never panics on user code.
func (d *Dispatcher) Run(ctx context.Context, code string, tag lang.Tag, emit Emit) Result {
	if emit == nil {
		emit = func(console.Entry) {}
	}

	s, ok := d.strategies[tag]
	if !Runnable(tag) || !ok {
		msg := fmt.Sprintf("Running %s code is not supported yet.", tag)
		emit(console.NewEntry(console.Error, msg))
		d.metrics.RecordRun(tag.String(), "unsupported", 0)
		return Result{Error: msg, Err: ErrUnsupported}
	}

	d.log.Debug("run started", zap.String("language", string(tag)), zap.Int("bytes", len(code)))
	res := s.Run(ctx, code, emit)
	d.metrics.RecordRun(string(tag), outcome(res), res.Duration)
	d.log.Info("run finished",
		zap.String("language", string(tag)),
		zap.Bool("success", res.Success),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func outcome(r Result) string {
	switch {
	case r.Success:
		return "success"
	case errors.Is(r.Err, ErrTimeout):
		return "timeout"
	default:
		return "failure"
	}
}

func timeoutMessage(d time.Duration) string {
	return fmt.Sprintf("Execution timed out after %s", d)
}

// expiredMessage names the configured limit only when the runner's own
// deadline fired. When the caller's context expired first the time
// actually spent is reported instead.
func expiredMessage(parent context.Context, limit time.Duration, start time.Time) string {
	if limit > 0 && parent.Err() == nil {
		return timeoutMessage(limit)
	}
	return timeoutMessage(time.Since(start).Round(time.Millisecond))
}
