package streamware

import (
	"context"

	"github.com/nggorpc/streamware/wire"
)

// inboundSlot is the per-parameter receptacle the WebSocket demux pump
// dispatches frames into. Both wire.QueuedSubject and
// wire.SingleSubscriptionProxy satisfy it; ServerOptions.InboundBufferPolicy
// picks which one backs a connection's slots.
type inboundSlot interface {
	observable() wire.Observable
	cancelled() <-chan struct{}
	deliverNext(ctx context.Context, v string)
	deliverError(ctx context.Context, err error)
	deliverCompleted(ctx context.Context)
}

func newInboundSlot(policy InboundBufferPolicy) inboundSlot {
	switch policy {
	case SingleSubscription:
		return &proxySlot{p: wire.NewSingleSubscriptionProxy()}
	default:
		return &queuedSlot{q: wire.NewQueuedSubject()}
	}
}

type queuedSlot struct {
	q *wire.QueuedSubject
}

func (s *queuedSlot) observable() wire.Observable                    { return s.q }
func (s *queuedSlot) cancelled() <-chan struct{}                      { return s.q.Cancelled() }
func (s *queuedSlot) deliverNext(_ context.Context, v string)         { s.q.OnNext(v) }
func (s *queuedSlot) deliverError(_ context.Context, err error)       { s.q.OnError(err) }
func (s *queuedSlot) deliverCompleted(_ context.Context)              { s.q.OnCompleted() }

// proxySlot adapts wire.SingleSubscriptionProxy, which captures the
// observer only once the controller method subscribes. Frames that arrive
// before that subscription blocks in Await until the subscription happens
// or ctx is done.
type proxySlot struct {
	p *wire.SingleSubscriptionProxy
}

func (s *proxySlot) observable() wire.Observable { return s.p }
func (s *proxySlot) cancelled() <-chan struct{}   { return s.p.Cancelled() }

func (s *proxySlot) deliverNext(ctx context.Context, v string) {
	if obs, ok := s.p.Await(ctx); ok {
		obs.OnNext(v)
	}
}

func (s *proxySlot) deliverError(ctx context.Context, err error) {
	if obs, ok := s.p.Await(ctx); ok {
		obs.OnError(err)
	}
}

func (s *proxySlot) deliverCompleted(ctx context.Context) {
	if obs, ok := s.p.Await(ctx); ok {
		obs.OnCompleted()
	}
}
