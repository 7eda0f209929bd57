package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "WalletMirror/pkg/logger"
)

// ConsumerHook observes each handling attempt. An error from BeforeHandle
// skips the handler and counts as a failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
	OnError(ctx context.Context, km kafka.Message, err error)
}

// HookError wraps a hook failure, including recovered panics.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs adapts plain functions. Nil fields do nothing.
type HookFuncs struct {
	Before func(context.Context, kafka.Message) (context.Context, error)
	After  func(context.Context, kafka.Message, error)
	Err    func(context.Context, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	if h.Before == nil {
		return ctx, nil
	}
	return h.Before(ctx, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	if h.After != nil {
		h.After(ctx, km, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, km kafka.Message, err error) {
	if h.Err != nil {
		h.Err(ctx, km, err)
	}
}

// HookChain runs BeforeHandle in order and AfterHandle in reverse. When a
// BeforeHandle fails or panics the chain stops and every hook gets OnError.
// Panics in After and OnError are swallowed.
type HookChain []ConsumerHook

func NewHookChain(hooks ...ConsumerHook) HookChain {
	chain := make(HookChain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

func (hc HookChain) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	for _, h := range hc {
		next, err := before(h, ctx, km)
		if err != nil {
			hc.OnError(ctx, km, err)
			return ctx, err
		}
		ctx = next
	}
	return ctx, nil
}

func (hc HookChain) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	for i := len(hc) - 1; i >= 0; i-- {
		h := hc[i]
		quietly(func() { h.AfterHandle(ctx, km, err) })
	}
}

func (hc HookChain) OnError(ctx context.Context, km kafka.Message, err error) {
	for _, h := range hc {
		quietly(func() { h.OnError(ctx, km, err) })
	}
}

func before(h ConsumerHook, ctx context.Context, km kafka.Message) (out context.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = ctx, &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
		}
	}()
	return h.BeforeHandle(ctx, km)
}

func quietly(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

type ctxKey string

const (
	CtxStartTime ctxKey = "kafka_hook_start_time"
	CtxTraceID   ctxKey = "kafka_hook_trace_id"
)

func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, CtxStartTime, t)
}

// WithTraceID is a no-op for an empty id. Producer.Publish stamps the id it
// finds here onto outgoing messages.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, CtxTraceID, id)
}

// ExtractTraceID reads the trace_id header and falls back to the message key.
func ExtractTraceID(km kafka.Message) string {
	for _, h := range km.Headers {
		if h.Key == "trace_id" && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return string(km.Key)
}

// TracingHook puts the start time and trace id on the handler context.
func TracingHook() HookFuncs {
	return HookFuncs{
		Before: func(ctx context.Context, km kafka.Message) (context.Context, error) {
			return WithTraceID(WithStartTime(ctx, time.Now()), ExtractTraceID(km)), nil
		},
	}
}

// LoggingHook logs failed attempts and successful ones slower than slow.
func LoggingHook(l *applogger.Logger, slow time.Duration) HookFuncs {
	return HookFuncs{
		After: func(ctx context.Context, km kafka.Message, err error) {
			start, ok := ctx.Value(CtxStartTime).(time.Time)
			if err != nil || !ok || slow <= 0 {
				return
			}
			if d := time.Since(start); d >= slow {
				l.Warn("kafka message slow",
					applogger.String("topic", km.Topic),
					applogger.Int64("offset", km.Offset),
					applogger.Duration("duration", d))
			}
		},
		Err: func(ctx context.Context, km kafka.Message, err error) {
			trace, _ := ctx.Value(CtxTraceID).(string)
			l.Error("kafka message failed",
				applogger.String("topic", km.Topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.String("trace_id", trace),
				applogger.Error(err))
		},
	}
}
