package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"AgriPulse/pkg/logger"
)

func TestBackoffWithJitter_Bounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v outside (0,%v]", attempt, d, max)
		}
	}
	if d := backoffWithJitter(0, 0, 1); d <= 0 {
		t.Fatalf("zero bounds should fall back to a positive delay, got %v", d)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]float64{"price": 12.5})
	if err != nil || string(b) != `{"price":12.5}` {
		t.Fatalf("json = %s, %v", b, err)
	}
	b, _ = encodeValue("raw")
	if string(b) != "raw" {
		t.Fatalf("string = %s", b)
	}
	if _, err := encodeValue(func() {}); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestLoggingHook(t *testing.T) {
	h := LoggingHook{Log: logger.NewNop(), SlowThreshold: time.Nanosecond}

	_, _, _, err := h.BeforeHandle(context.Background(), "agri.prices", kafka.Message{}, nil)
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_EMPTY_PAYLOAD" {
		t.Fatalf("empty payload err = %v", err)
	}

	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, data, err := h.BeforeHandle(context.Background(), "agri.prices", km, []byte(`{}`))
	if err != nil || string(data) != "{}" {
		t.Fatalf("before = %s, %v", data, err)
	}
	if TraceIDFrom(ctx) != "abc" {
		t.Fatalf("trace id = %q", TraceIDFrom(ctx))
	}
	if _, ok := ctx.Value(CtxStartTime).(time.Time); !ok {
		t.Fatalf("start time missing")
	}
	h.AfterHandle(ctx, "agri.prices", km, data, nil)
	h.OnError(ctx, "agri.prices", km, data, errors.New("boom"))
}

func TestHookFuncs_NilSafe(t *testing.T) {
	var h HookFuncs
	ctx, _, data, err := h.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	if ctx == nil || string(data) != "x" || err != nil {
		t.Fatalf("nil Before should pass through")
	}
	h.AfterHandle(ctx, "t", kafka.Message{}, data, nil)
	h.OnError(ctx, "t", kafka.Message{}, data, nil)

	called := false
	h.Err = func(context.Context, string, kafka.Message, []byte, error) { called = true }
	h.OnError(ctx, "t", kafka.Message{}, data, errors.New("x"))
	if !called {
		t.Fatalf("Err func not invoked")
	}
}

func TestNewProducerAndConsumer_RequireBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("producer without brokers should fail")
	}
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("consumer without brokers should fail")
	}
}
