package streamware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nggorpc/streamware/registry"
	"github.com/nggorpc/streamware/scheduler"
	"github.com/nggorpc/streamware/wire"
)

// handleHTTP drives one matched, non-upgrade request to completion as a
// chunked application/json response, serialized through a write scheduler
// so out-of-order goroutine scheduling can never interleave chunks.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request, route *registry.Route, scalarParams map[string]string, logger zerolog.Logger) {
	flusher, _ := w.(http.Flusher)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &connection{id: newConnID(), cancel: cancel, isWS: false, touch: nil}
	s.track(conn)
	defer s.untrack(conn)

	sched := scheduler.New()
	state := &httpResponseState{w: w, flusher: flusher}

	noInbound := func(string) (wire.Observable, bool) { return nil, false }
	controller := route.Factory()
	outbound := route.Invoker(controller, scalarParams, noInbound)

	sub := outbound.Subscribe(&httpOutboundObserver{sched: sched, state: state, logger: logger})

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sub.Unsubscribe()
		<-done
	}
}

// httpResponseState tracks whether headers have been written and whether
// any value has been emitted, so the first write picks the right status
// code and a completion with no prior emission falls back to 204. Mutated
// only from inside scheduled tasks, which the scheduler guarantees run one
// at a time.
type httpResponseState struct {
	w             http.ResponseWriter
	flusher       http.Flusher
	headerWritten bool
	emittedAny    bool
}

func (st *httpResponseState) writeHeader(status int) {
	if st.headerWritten {
		return
	}
	st.w.Header().Set("Content-Type", "application/json")
	st.w.WriteHeader(status)
	st.headerWritten = true
}

func (st *httpResponseState) flush() {
	if st.flusher != nil {
		st.flusher.Flush()
	}
}

type httpOutboundObserver struct {
	sched  *scheduler.Scheduler
	state  *httpResponseState
	logger zerolog.Logger
}

func (o *httpOutboundObserver) OnNext(v string) {
	o.sched.Schedule(func(ctx context.Context) {
		o.state.writeHeader(http.StatusOK)
		o.state.emittedAny = true
		if _, err := o.state.w.Write([]byte(v)); err != nil {
			o.logger.Debug().Err(err).Msg("http chunk write failed")
			return
		}
		o.state.flush()
	})
}

func (o *httpOutboundObserver) OnError(err error) {
	o.sched.Schedule(func(ctx context.Context) {
		if !o.state.emittedAny {
			o.state.writeHeader(http.StatusInternalServerError)
		}
		o.state.w.Write([]byte(err.Error()))
		o.state.flush()
	})
	o.sched.Complete()
}

func (o *httpOutboundObserver) OnCompleted() {
	o.sched.Schedule(func(ctx context.Context) {
		if !o.state.emittedAny {
			o.state.writeHeader(http.StatusNoContent)
		}
	})
	o.sched.Complete()
}
