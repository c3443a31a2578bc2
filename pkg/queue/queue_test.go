package queue

import (
	"encoding/json"
	"testing"
	"time"
)

type sweepRequest struct {
	RequestedAt time.Time `json:"requested_at"`
	Retrain     bool      `json:"retrain"`
}

func TestParsePayloadRawJSON(t *testing.T) {
	raw := json.RawMessage(`{"requested_at":"2025-06-01T10:00:00Z","retrain":true}`)
	got, err := ParsePayload[sweepRequest](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Retrain {
		t.Fatal("retrain flag lost")
	}
	if got.RequestedAt.Hour() != 10 {
		t.Fatalf("timestamp lost: %v", got.RequestedAt)
	}
}

func TestParsePayloadTypedValues(t *testing.T) {
	want := sweepRequest{Retrain: true}

	byValue, err := ParsePayload[sweepRequest](want)
	if err != nil || !byValue.Retrain {
		t.Fatalf("value passthrough: %+v %v", byValue, err)
	}

	byPtr, err := ParsePayload[sweepRequest](&want)
	if err != nil || byPtr != &want {
		t.Fatalf("pointer passthrough must not copy: %p vs %p (%v)", byPtr, &want, err)
	}
}

func TestParsePayloadMapRoundTrip(t *testing.T) {
	m := map[string]interface{}{"retrain": true}
	got, err := ParsePayload[sweepRequest](m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Retrain {
		t.Fatal("map payload did not round-trip")
	}
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	if _, err := ParsePayload[sweepRequest](json.RawMessage(`{broken`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParsePayload[sweepRequest](nil); err == nil {
		t.Fatal("expected nil payload error")
	}
}

func TestMessageEnvelopeRoundTrip(t *testing.T) {
	payload, _ := json.Marshal(sweepRequest{Retrain: true})
	msg := Message{
		ID:         "42",
		Type:       "verify.due",
		Payload:    payload,
		Attempts:   1,
		EnqueuedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Type != "verify.due" || back.Attempts != 1 {
		t.Fatalf("envelope fields lost: %+v", back)
	}
	inner, err := ParsePayload[sweepRequest](back.Payload)
	if err != nil || !inner.Retrain {
		t.Fatalf("nested payload lost: %+v %v", inner, err)
	}
}

func TestQueueKeyNamespacing(t *testing.T) {
	k := keys{prefix: "smsent"}
	if k.jobs() != "smsent:jobs" || k.retry() != "smsent:retry" || k.dead() != "smsent:dead" {
		t.Fatalf("unexpected keys: %s %s %s", k.jobs(), k.retry(), k.dead())
	}
}
