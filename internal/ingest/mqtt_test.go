package ingest

import (
	"testing"
)

type fakeMessage struct {
	payload []byte
}

func (fakeMessage) Duplicate() bool   { return false }
func (fakeMessage) Qos() byte         { return 1 }
func (fakeMessage) Retained() bool    { return false }
func (fakeMessage) Topic() string     { return "thermo/readings" }
func (fakeMessage) MessageID() uint16 { return 42 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (fakeMessage) Ack()              {}

func TestMQTTSubscriber_OnMessage(t *testing.T) {
	t.Parallel()

	rec := &fakeRecorder{}
	s, err := NewMQTTSubscriber(MQTTConfig{Broker: "tcp://127.0.0.1:1883", Topic: "thermo/readings", ClientID: "test"}, rec, discardLogger())
	if err != nil {
		t.Fatalf("NewMQTTSubscriber: %v", err)
	}

	s.onMessage(nil, fakeMessage{payload: []byte(`{"value":23.5,"position":"office"}`)})
	s.onMessage(nil, fakeMessage{payload: []byte(`{"position":"office"}`)})

	calls, recorded := rec.snapshot()
	if calls != 1 || len(recorded) != 1 {
		t.Fatalf("calls=%d recorded=%d want 1 and 1", calls, len(recorded))
	}
	if got, want := recorded[0].Position, "office"; got != want {
		t.Fatalf("position=%q want %q", got, want)
	}
}

func TestNewMQTTSubscriber_Validates(t *testing.T) {
	t.Parallel()

	if _, err := NewMQTTSubscriber(MQTTConfig{Topic: "t"}, &fakeRecorder{}, discardLogger()); err == nil {
		t.Fatalf("expected error without broker")
	}
	if _, err := NewMQTTSubscriber(MQTTConfig{Broker: "tcp://127.0.0.1:1883"}, &fakeRecorder{}, discardLogger()); err == nil {
		t.Fatalf("expected error without topic")
	}
}
