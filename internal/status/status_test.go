package status

import "testing"

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Send(e Event) { s.events = append(s.events, e) }

func TestEmitDedupsIdenticalStatus(t *testing.T) {
	sink := &recordingSink{}
	r := NewReporter(sink)
	tag := Tag{Host: "127.0.0.1", Port: 6379}

	// Scenario in §8: several connect_error signals in succession must
	// collapse to a single connection_down event.
	for i := 0; i < 3; i++ {
		r.Emit(Event{Tag: tag, Kind: ConnectionDown, Reason: ReasonConnectError})
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected exactly 1 emitted event, got %d", len(sink.events))
	}

	r.Emit(Event{Tag: tag, Kind: ConnectionUp})
	if len(sink.events) != 2 {
		t.Fatalf("expected connection_up to be delivered as a distinct status, got %d events", len(sink.events))
	}
}

func TestEmitTreatsDifferentDownReasonsAsDistinct(t *testing.T) {
	sink := &recordingSink{}
	r := NewReporter(sink)
	tag := Tag{Host: "h", Port: 1}

	r.Emit(Event{Tag: tag, Kind: ConnectionDown, Reason: ReasonConnectError})
	r.Emit(Event{Tag: tag, Kind: ConnectionDown, Reason: ReasonSocketClosed})

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 distinct connection_down reasons to both deliver, got %d", len(sink.events))
	}
}

func TestEmitIgnoresReasonErrValueForDedup(t *testing.T) {
	sink := &recordingSink{}
	r := NewReporter(sink)
	tag := Tag{Host: "h", Port: 1}

	r.Emit(Event{Tag: tag, Kind: ConnectionDown, Reason: ReasonConnectError, ReasonErr: errA{}})
	delivered := r.Emit(Event{Tag: tag, Kind: ConnectionDown, Reason: ReasonConnectError, ReasonErr: errB{}})

	if delivered {
		t.Fatal("expected dedup to collapse same-reason events despite differing underlying errors")
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(sink.events))
	}
}

func TestAttachAddsSinkForSubsequentEvents(t *testing.T) {
	first := &recordingSink{}
	r := NewReporter(first)
	r.Emit(Event{Kind: ConnectionUp})

	second := &recordingSink{}
	r.Attach(second)
	r.Emit(Event{Kind: ConnectionDown, Reason: ReasonSocketClosed})

	if len(first.events) != 2 {
		t.Fatalf("expected the original sink to see both events, got %d", len(first.events))
	}
	if len(second.events) != 1 {
		t.Fatalf("expected the late-attached sink to see only the later event, got %d", len(second.events))
	}
}

func TestEmitRecoversFromPanickingSink(t *testing.T) {
	r := NewReporter(panicSink{}, &recordingSink{})
	// Must not panic despite the first sink blowing up.
	r.Emit(Event{Kind: ConnectionUp})
}

type panicSink struct{}

func (panicSink) Send(Event) { panic("boom") }

type errA struct{}

func (errA) Error() string { return "a" }

type errB struct{}

func (errB) Error() string { return "b" }
