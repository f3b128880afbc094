package streamware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/nggorpc/streamware/registry"
	"github.com/nggorpc/streamware/rx"
)

type sumController struct{}

func (sumController) RoutePrefix() string { return "/sum" }

func (sumController) RouteDescriptors() map[string]registry.RouteDescriptor {
	return map[string]registry.RouteDescriptor{"Combine": {Suffix: "go"}}
}

type sumParams struct {
	Left  *rx.Stream[int] `param:"left"`
	Right *rx.Stream[int] `param:"right"`
}

func (sumController) Combine(p sumParams) *rx.Stream[int] {
	return rx.FromFunc(func(o rx.Observer[int]) rx.Subscription {
		var total int
		leftDone, rightDone := false, false
		finish := func() {
			if leftDone && rightDone {
				o.OnCompleted()
			}
		}
		p.Left.Subscribe(sumObserver{
			next:      func(v int) { total += v; o.OnNext(total) },
			completed: func() { leftDone = true; finish() },
		})
		p.Right.Subscribe(sumObserver{
			next:      func(v int) { total += v; o.OnNext(total) },
			completed: func() { rightDone = true; finish() },
		})
		return noopWSSub{}
	})
}

type noopWSSub struct{}

func (noopWSSub) Unsubscribe() {}

type sumObserver struct {
	next      func(int)
	completed func()
}

func (o sumObserver) OnNext(v int)     { o.next(v) }
func (o sumObserver) OnError(error)    {}
func (o sumObserver) OnCompleted()     { o.completed() }

type finalFrameController struct{}

func (finalFrameController) RoutePrefix() string { return "/finalframe" }

func (finalFrameController) RouteDescriptors() map[string]registry.RouteDescriptor {
	return map[string]registry.RouteDescriptor{"Go": {Suffix: "go"}}
}

type finalFrameParams struct {
	A *rx.Stream[int] `param:"a"`
	B *rx.Stream[int] `param:"b"`
}

func (finalFrameController) Go(p finalFrameParams) *rx.Stream[int] {
	return rx.FromFunc(func(o rx.Observer[int]) rx.Subscription {
		forward := func(v int) { o.OnNext(v) }
		p.A.Subscribe(sumObserver{next: forward, completed: func() {}})
		p.B.Subscribe(sumObserver{next: forward, completed: func() {}})
		return noopWSSub{}
	})
}

type errController struct{}

func (errController) RoutePrefix() string { return "/err" }

func (errController) RouteDescriptors() map[string]registry.RouteDescriptor {
	return map[string]registry.RouteDescriptor{"Go": {Suffix: "go"}}
}

func (errController) Go() *rx.Stream[string] {
	return rx.ErrStream[string](errBoom)
}

type boomError string

func (e boomError) Error() string { return string(e) }

const errBoom = boomError("boom")

func dialWS(t *testing.T, httpSrv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + httpSrv.URL[len("http"):] + path
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func newMultiRouteServer(t *testing.T) *httptest.Server {
	t.Helper()
	b := registry.NewBuilder("")
	if err := b.Register(func() any { return sumController{} }); err != nil {
		t.Fatalf("register sum: %v", err)
	}
	if err := b.Register(func() any { return errController{} }); err != nil {
		t.Fatalf("register err: %v", err)
	}
	if err := b.Register(func() any { return finalFrameController{} }); err != nil {
		t.Fatalf("register finalframe: %v", err)
	}
	reg := b.Build()

	srv := NewServer(reg, zerolog.Nop(), WithInsecureSkipVerify(true))
	httpSrv := httptest.NewServer(srv.Middleware(http.NotFoundHandler()))
	t.Cleanup(httpSrv.Close)
	return httpSrv
}

func TestMultiplexedInboundSumOverWebSocket(t *testing.T) {
	httpSrv := newMultiRouteServer(t)
	conn := dialWS(t, httpSrv, "/sum/go")
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	send := func(msg string) {
		if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}
	readFrame := func() string {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(data)
	}

	send("nleft.3")
	if got := readFrame(); got != "n3" {
		t.Fatalf("expected n3, got %q", got)
	}
	send("nright.4")
	if got := readFrame(); got != "n7" {
		t.Fatalf("expected n7, got %q", got)
	}
	send("cleft")
	send("cright")
	if got := readFrame(); got != "c" {
		t.Fatalf("expected completion frame, got %q", got)
	}
}

func TestOutboundErrorSendsErrorFrameThenCloses(t *testing.T) {
	httpSrv := newMultiRouteServer(t)
	conn := dialWS(t, httpSrv, "/err/go")
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `e"boom"` {
		t.Fatalf("expected error frame, got %q", data)
	}

	if _, _, err := conn.Read(ctx); err == nil {
		t.Fatal("expected connection to close after the error frame")
	}
}

func TestFinalFrameDropsSubsequentFrameForSameName(t *testing.T) {
	httpSrv := newMultiRouteServer(t)
	conn := dialWS(t, httpSrv, "/finalframe/go")
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	send := func(msg string) {
		if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
	}
	readFrame := func() string {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(data)
	}

	send("fa.5")
	if got := readFrame(); got != "n5" {
		t.Fatalf("expected n5 from the final frame's payload, got %q", got)
	}

	// "a" was removed from the slot table by the final frame above; a
	// subsequent frame naming it must be dropped, not forwarded.
	send("na.999")

	// "b" is still live: its frame must be the next thing observed, proving
	// na.999 above produced no outbound value.
	send("nb.7")
	if got := readFrame(); got != "n7" {
		t.Fatalf("expected n7 (na.999 should have been dropped), got %q", got)
	}
}
