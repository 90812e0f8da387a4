package events

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventMissionChanged, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := MissionEventPayload{MissionID: "m1", Status: "requested", Version: 1}
	if err := bus.PublishJSON(EventMissionChanged, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != EventMissionChanged {
		t.Errorf("expected type %s, got %s", EventMissionChanged, received.Type)
	}
	if received.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	decoded, err := DecodeMission(received)
	if err != nil {
		t.Fatalf("DecodeMission failed: %v", err)
	}
	if decoded.MissionID != "m1" || decoded.Version != 1 {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestEventBusWildcardAndOtherTypes(t *testing.T) {
	bus := NewEventBus()
	var specific, wildcard int

	bus.Subscribe(EventMissionCreated, func(_ *Event) error { specific++; return nil })
	bus.Subscribe(AllEvents, func(_ *Event) error { wildcard++; return nil })

	_ = bus.PublishJSON(EventMissionCreated, map[string]string{"mission_id": "m1"})
	_ = bus.PublishJSON(EventApplicantAdded, map[string]string{"mission_id": "m1"})

	if specific != 1 {
		t.Errorf("expected specific handler once, got %d", specific)
	}
	if wildcard != 2 {
		t.Errorf("expected wildcard handler twice, got %d", wildcard)
	}
}

func TestEventBusJoinsHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	errA := errors.New("sink a down")
	var ranSecond bool

	bus.Subscribe(EventMissionChanged, func(_ *Event) error { return errA })
	bus.Subscribe(EventMissionChanged, func(_ *Event) error { ranSecond = true; return nil })

	err := bus.PublishJSON(EventMissionChanged, map[string]string{"mission_id": "m1"})
	if !errors.Is(err, errA) {
		t.Errorf("expected joined error to contain errA, got %v", err)
	}
	if !ranSecond {
		t.Error("a failing handler must not stop the others")
	}
}

func TestPublishJSON_NilBus(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON(EventMissionChanged, nil); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestPublishJSON_MarshalError(t *testing.T) {
	bus := NewEventBus()
	if err := bus.PublishJSON(EventMissionChanged, make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestDecodeMission_Invalid(t *testing.T) {
	if _, err := DecodeMission(&Event{Type: "x", Payload: json.RawMessage(`{`)}); err == nil {
		t.Error("expected decode error for broken json")
	}
	if _, err := DecodeMission(&Event{Type: "x", Payload: json.RawMessage(`{"status":"requested"}`)}); err == nil {
		t.Error("expected error for missing mission id")
	}
}
