package streamware

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/nggorpc/streamware/registry"
	"github.com/nggorpc/streamware/transport"
	"github.com/nggorpc/streamware/wire"
)

// handleWebSocket drives one upgraded connection for route to completion:
// a per-connection cancellable context, a tracked connection set, and
// concurrent outbound/inbound pump goroutines joined by a WaitGroup, with
// one named inbound slot per declared stream parameter created upfront.
func (s *Server) handleWebSocket(ctx context.Context, adapter *transport.Adapter, route *registry.Route, scalarParams map[string]string, logger zerolog.Logger) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer adapter.Close(websocket.StatusInternalError, "connection closed")

	var lastActivity sync.Mutex
	touchedAt := time.Now()
	touch := func() {
		lastActivity.Lock()
		touchedAt = time.Now()
		lastActivity.Unlock()
	}
	readActivity := func() time.Time {
		lastActivity.Lock()
		defer lastActivity.Unlock()
		return touchedAt
	}

	conn := &connection{id: newConnID(), cancel: cancel, isWS: true, touch: readActivity}
	s.track(conn)
	defer s.untrack(conn)

	slots := make(map[string]inboundSlot, len(route.InboundParamNames))
	for _, name := range route.InboundParamNames {
		slots[name] = newInboundSlot(s.options.InboundBufferPolicy)
	}
	getInbound := func(name string) (wire.Observable, bool) {
		slot, ok := slots[name]
		if !ok {
			return nil, false
		}
		return slot.observable(), true
	}

	controller := route.Factory()
	outbound := route.Invoker(controller, scalarParams, getInbound)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.outboundPump(connCtx, adapter, outbound, touch, logger)
	}()
	go func() {
		defer wg.Done()
		s.inboundDemuxPump(connCtx, adapter, slots, touch, logger)
	}()
	wg.Wait()
}

// outboundPump subscribes to outbound and translates each event into a
// text frame, closing the handshake on normal completion.
func (s *Server) outboundPump(ctx context.Context, adapter *transport.Adapter, outbound wire.Observable, touch func(), logger zerolog.Logger) {
	done := make(chan struct{})
	sub := outbound.Subscribe(&wsOutboundObserver{
		ctx:     ctx,
		adapter: adapter,
		touch:   touch,
		logger:  logger,
		done:    done,
	})
	defer sub.Unsubscribe()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

type wsOutboundObserver struct {
	ctx     context.Context
	adapter *transport.Adapter
	touch   func()
	logger  zerolog.Logger
	done    chan struct{}
	once    sync.Once
}

func (o *wsOutboundObserver) finish() { o.once.Do(func() { close(o.done) }) }

func (o *wsOutboundObserver) OnNext(v string) {
	if o.adapter.IsClosed() {
		o.finish()
		return
	}
	o.touch()
	if err := o.adapter.Send(o.ctx, wire.EncodeNext(v)); err != nil {
		o.logger.Debug().Err(err).Msg("outbound send failed")
		o.finish()
	}
}

func (o *wsOutboundObserver) OnError(err error) {
	defer o.finish()
	if o.adapter.IsClosed() {
		return
	}
	o.touch()
	payload, _ := json.Marshal(err.Error())
	if sendErr := o.adapter.Send(o.ctx, wire.EncodeError(string(payload))); sendErr != nil {
		o.logger.Debug().Err(sendErr).Msg("outbound error send failed")
	}
}

func (o *wsOutboundObserver) OnCompleted() {
	defer o.finish()
	if o.adapter.IsClosed() {
		return
	}
	o.touch()
	if err := o.adapter.Send(o.ctx, wire.EncodeComplete); err != nil {
		o.logger.Debug().Err(err).Msg("completion send failed")
		return
	}
	if err := o.adapter.Close(websocket.StatusNormalClosure, "onCompleted"); err != nil {
		o.logger.Debug().Err(err).Msg("close handshake failed")
	}
}

// inboundDemuxPump receives frames until the socket reports closed or every
// slot has been removed, dispatching each to the named slot. On exit it
// delivers completion to every slot that hasn't already been cancelled or
// removed.
func (s *Server) inboundDemuxPump(ctx context.Context, adapter *transport.Adapter, slots map[string]inboundSlot, touch func(), logger zerolog.Logger) {
	for len(slots) > 0 {
		msg, ok := adapter.ReceiveString(ctx)
		if !ok {
			break
		}
		touch()

		frame, ok := wire.DecodeFrame(msg)
		if !ok {
			logger.Debug().Str("frame", msg).Msg("dropping malformed inbound frame")
			continue
		}

		slot, ok := slots[frame.Name]
		if !ok {
			logger.Debug().Str("name", frame.Name).Msg("dropping frame for unknown inbound name")
			continue
		}

		select {
		case <-slot.cancelled():
			delete(slots, frame.Name)
			continue
		default:
		}

		switch frame.Kind {
		case wire.KindNext:
			slot.deliverNext(ctx, frame.Payload)
		case wire.KindError:
			slot.deliverError(ctx, decodeErrorPayload(frame.Payload))
			delete(slots, frame.Name)
		case wire.KindComplete:
			slot.deliverCompleted(ctx)
			delete(slots, frame.Name)
		case wire.KindFinal:
			slot.deliverNext(ctx, frame.Payload)
			slot.deliverCompleted(ctx)
			delete(slots, frame.Name)
		}
	}

	for _, slot := range slots {
		select {
		case <-slot.cancelled():
		default:
			slot.deliverCompleted(ctx)
		}
	}
}

func decodeErrorPayload(payload string) error {
	var msg string
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return inboundError(payload)
	}
	return inboundError(msg)
}

type inboundError string

func (e inboundError) Error() string { return string(e) }
