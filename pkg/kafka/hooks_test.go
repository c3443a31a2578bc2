package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestHookChainThreadsData(t *testing.T) {
	upper := HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, append(data, '!'), nil
		},
	}
	chain := NewHookChain(upper, upper)

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "x!!" {
		t.Fatalf("data not threaded through hooks: %q", data)
	}
}

func TestHookChainBeforeErrorShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	var secondRan bool
	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return ctx, km, data, boom
			},
		},
		HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				secondRan = true
				return ctx, km, data, nil
			},
		},
	)

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("orig"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if string(data) != "orig" {
		t.Fatalf("failed chain must return original data, got %q", data)
	}
	if secondRan {
		t.Fatal("hooks after the failing one must not run")
	}
}

func TestHookChainSurvivesPanics(t *testing.T) {
	chain := NewHookChain(
		HookFuncs{
			Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
				panic("bad hook")
			},
		},
	)

	ctx, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("keep"))
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if ctx == nil || string(data) != "keep" {
		t.Fatalf("panicking hook must not destroy inputs: ctx=%v data=%q", ctx, data)
	}

	// Observe-only hooks must never take the caller down.
	chain2 := NewHookChain(HookFuncs{
		After: func(context.Context, string, kafka.Message, []byte, error) { panic("after") },
		Err:   func(context.Context, string, kafka.Message, []byte, error) { panic("err") },
	})
	chain2.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	chain2.OnError(context.Background(), "t", kafka.Message{}, nil, errors.New("x"))
}

func TestHookChainAfterReverseOrder(t *testing.T) {
	var order []string
	after := func(name string) ConsumerHook {
		return HookFuncs{
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, name)
			},
		}
	}
	chain := NewHookChain(after("a"), after("b"))
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("expected reverse unwind, got %v", order)
	}
}

func TestContextStamps(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := WithStartTime(context.Background(), start)
	ctx = WithTraceID(ctx, "abc-123")

	got, ok := StartTime(ctx)
	if !ok || !got.Equal(start) {
		t.Fatalf("start time lost: %v ok=%v", got, ok)
	}
	if TraceID(ctx) != "abc-123" {
		t.Fatalf("trace id lost: %q", TraceID(ctx))
	}
	if TraceID(context.Background()) != "" {
		t.Fatal("empty context must yield empty trace id")
	}
}

func TestExtractTraceID(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "other", Value: []byte("x")},
		{Key: "trace_id", Value: []byte("t-9")},
	}}
	if got := ExtractTraceID(msg); got != "t-9" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractTraceID(kafka.Message{}); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestLaneForIsStable(t *testing.T) {
	a := laneFor("candles", 3, 8)
	for i := 0; i < 100; i++ {
		if laneFor("candles", 3, 8) != a {
			t.Fatal("lane assignment must be deterministic")
		}
	}
	if a < 0 || a >= 8 {
		t.Fatalf("lane out of range: %d", a)
	}
}

func TestRetryDelayBounds(t *testing.T) {
	min := 100 * time.Millisecond
	max := 2 * time.Second
	for attempt := 0; attempt < 12; attempt++ {
		d := retryDelay(min, max, attempt)
		if d < min || d > max {
			t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, min, max)
		}
	}
	if d := retryDelay(0, 0, 0); d <= 0 {
		t.Fatalf("degenerate config must still back off, got %v", d)
	}
}

func TestEncodePayload(t *testing.T) {
	if b, err := encodePayload([]byte{1, 2}); err != nil || len(b) != 2 {
		t.Fatalf("bytes passthrough: %v %v", b, err)
	}
	if b, err := encodePayload("hi"); err != nil || string(b) != "hi" {
		t.Fatalf("string passthrough: %v %v", b, err)
	}
	b, err := encodePayload(map[string]int{"n": 1})
	if err != nil || string(b) != `{"n":1}` {
		t.Fatalf("json encode: %s %v", b, err)
	}
	if b, err := encodePayload(nil); err != nil || b != nil {
		t.Fatalf("nil payload: %v %v", b, err)
	}
}
