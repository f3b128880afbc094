package wire

import "sync"

type subjectOp int

const (
	subjectOpNext subjectOp = iota
	subjectOpError
	subjectOpCompleted
)

type subjectEvent struct {
	op    subjectOp
	value string
	err   error
}

// QueuedSubject buffers every OnNext/OnError/OnCompleted call it receives
// before its first Subscribe, then drains the buffer into the first
// subscriber in order and switches to direct forwarding. This is the
// default InboundSlot backing in this module (see DESIGN.md "Open
// Questions resolved" for why, over SingleSubscriptionProxy): a controller
// method that subscribes to an inbound parameter after the peer has
// already sent frames must still observe every one of them.
type QueuedSubject struct {
	mu         sync.Mutex
	subscribed bool
	subscriber Observer
	terminated bool
	buffer     []subjectEvent

	cancelOnce sync.Once
	cancelled  chan struct{}
}

// NewQueuedSubject returns a subject with an empty buffer, unsubscribed.
func NewQueuedSubject() *QueuedSubject {
	return &QueuedSubject{cancelled: make(chan struct{})}
}

// OnNext implements Observer.
func (s *QueuedSubject) OnNext(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	if s.subscribed {
		s.subscriber.OnNext(v)
		return
	}
	s.buffer = append(s.buffer, subjectEvent{op: subjectOpNext, value: v})
}

// OnError implements Observer.
func (s *QueuedSubject) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.terminated = true
	if s.subscribed {
		s.subscriber.OnError(err)
		return
	}
	s.buffer = append(s.buffer, subjectEvent{op: subjectOpError, err: err})
}

// OnCompleted implements Observer.
func (s *QueuedSubject) OnCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.terminated = true
	if s.subscribed {
		s.subscriber.OnCompleted()
		return
	}
	s.buffer = append(s.buffer, subjectEvent{op: subjectOpCompleted})
}

// Subscribe implements Observable. Only the first call drains the buffer
// and attaches; later calls return a no-op Subscription.
func (s *QueuedSubject) Subscribe(o Observer) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		return noopSubscription
	}
	s.subscribed = true
	buffered := s.buffer
	s.buffer = nil
	s.subscriber = o

	// The lock stays held while draining so that a concurrent
	// OnNext/OnError/OnCompleted cannot be forwarded ahead of buffered events.
	for _, e := range buffered {
		switch e.op {
		case subjectOpNext:
			o.OnNext(e.value)
		case subjectOpError:
			o.OnError(e.err)
		case subjectOpCompleted:
			o.OnCompleted()
		}
	}

	return subscriptionFunc(s.cancel)
}

func (s *QueuedSubject) cancel() {
	s.cancelOnce.Do(func() { close(s.cancelled) })
}

// Cancelled returns a channel closed once the subscription has been
// disposed by the controller method.
func (s *QueuedSubject) Cancelled() <-chan struct{} { return s.cancelled }
