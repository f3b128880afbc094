package wire

import "testing"

func TestQueuedSubjectBuffersBeforeSubscribe(t *testing.T) {
	s := NewQueuedSubject()
	s.OnNext("a")
	s.OnNext("b")
	s.OnCompleted()
	s.OnNext("dropped-after-terminal") // must be a no-op

	obs := &recordingObserver{}
	s.Subscribe(obs)

	if got := obs.next; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("buffered values not drained in order: %+v", got)
	}
	if !obs.completed {
		t.Fatal("buffered completion not delivered")
	}
}

func TestQueuedSubjectForwardsDirectlyAfterSubscribe(t *testing.T) {
	s := NewQueuedSubject()
	obs := &recordingObserver{}
	s.Subscribe(obs)

	s.OnNext("live")
	s.OnCompleted()

	if len(obs.next) != 1 || obs.next[0] != "live" {
		t.Fatalf("direct forward failed: %+v", obs.next)
	}
	if !obs.completed {
		t.Fatal("direct completion not delivered")
	}
}

func TestQueuedSubjectBufferedErrorThenSubscribe(t *testing.T) {
	s := NewQueuedSubject()
	s.OnNext("a")
	boom := errBoom{}
	s.OnError(boom)

	obs := &recordingObserver{}
	s.Subscribe(obs)

	if len(obs.next) != 1 {
		t.Fatalf("expected one buffered value, got %+v", obs.next)
	}
	if obs.err != boom {
		t.Fatalf("expected buffered error delivered, got %v", obs.err)
	}
}

func TestQueuedSubjectSecondSubscribeIgnored(t *testing.T) {
	s := NewQueuedSubject()
	s.Subscribe(&recordingObserver{})

	second := &recordingObserver{}
	s.Subscribe(second)
	s.OnNext("x")

	if len(second.next) != 0 {
		t.Fatalf("second subscriber should not be driven: %+v", second)
	}
}

func TestQueuedSubjectCancellation(t *testing.T) {
	s := NewQueuedSubject()
	sub := s.Subscribe(&recordingObserver{})

	select {
	case <-s.Cancelled():
		t.Fatal("should not be cancelled yet")
	default:
	}

	sub.Unsubscribe()

	select {
	case <-s.Cancelled():
	default:
		t.Fatal("Cancelled() channel not closed after Unsubscribe")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
