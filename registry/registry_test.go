package registry

import (
	"testing"

	"github.com/nggorpc/streamware/rx"
	"github.com/nggorpc/streamware/wire"
)

// echoController: route prefix /echo, method Go(msg string) returning the
// one-item sequence [msg].
type echoController struct{}

func (echoController) RoutePrefix() string { return "/echo" }

func (echoController) RouteDescriptors() map[string]RouteDescriptor {
	return map[string]RouteDescriptor{
		"Go": {Suffix: "go"},
	}
}

type echoParams struct {
	Msg string `param:"msg"`
}

func (echoController) Go(p echoParams) *rx.Stream[string] {
	return rx.Just(p.Msg)
}

func newEchoController() any { return echoController{} }

func TestRegisterAndMatchScalarEcho(t *testing.T) {
	b := NewBuilder("")
	if err := b.Register(newEchoController); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg := b.Build()

	route, ok := reg.Match("/echo/go")
	if !ok {
		t.Fatal("expected /echo/go to be registered")
	}
	if len(route.InboundParamNames) != 0 || route.HasBodyParameter {
		t.Fatalf("unexpected route metadata: %+v", route)
	}

	obs := route.Invoker(echoController{}, map[string]string{"msg": "hello"}, noInbound)
	rec := &testObserver{}
	obs.Subscribe(rec)

	if len(rec.next) != 1 || rec.next[0] != `"hello"` || !rec.completed {
		t.Fatalf("invoker result: %+v", rec)
	}
}

func TestMatchIsExactNotPrefix(t *testing.T) {
	b := NewBuilder("")
	_ = b.Register(newEchoController)
	reg := b.Build()

	if _, ok := reg.Match("/echo/go/extra"); ok {
		t.Fatal("registry must not prefix-match")
	}
	if _, ok := reg.Match("/echo"); ok {
		t.Fatal("registry must not prefix-match the bare controller prefix")
	}
}

// bodyStreamController exercises the "body cannot be a stream" rejection.
type bodyStreamController struct{}

func (bodyStreamController) RouteDescriptors() map[string]RouteDescriptor {
	return map[string]RouteDescriptor{"Bad": {Suffix: "bad"}}
}

type bodyStreamParams struct {
	Item *rx.Stream[int] `param:"body"`
}

func (bodyStreamController) Bad(p bodyStreamParams) *rx.Stream[int] { return rx.Empty[int]() }

func TestRegisterRejectsStreamBody(t *testing.T) {
	b := NewBuilder("")
	err := b.Register(func() any { return bodyStreamController{} })
	if err == nil {
		t.Fatal("expected registration error for stream body")
	}
}

// doubleBodyController exercises the "at most one body" rejection.
type doubleBodyController struct{}

func (doubleBodyController) RouteDescriptors() map[string]RouteDescriptor {
	return map[string]RouteDescriptor{"Bad": {Suffix: "bad"}}
}

type doubleBodyParams struct {
	A string `param:"body"`
	B string `param:"body"`
}

func (doubleBodyController) Bad(p doubleBodyParams) *rx.Stream[string] { return rx.Empty[string]() }

func TestRegisterRejectsSecondBodyMarker(t *testing.T) {
	b := NewBuilder("")
	err := b.Register(func() any { return doubleBodyController{} })
	if err == nil {
		t.Fatal("expected registration error for second body marker")
	}
}

func TestMissingMethodNameIsFatal(t *testing.T) {
	b := NewBuilder("")
	err := b.Register(func() any { return missingMethodController{} })
	if err == nil {
		t.Fatal("expected fatal error for a descriptor naming a nonexistent method")
	}
}

type missingMethodController struct{}

func (missingMethodController) RouteDescriptors() map[string]RouteDescriptor {
	return map[string]RouteDescriptor{"DoesNotExist": {Suffix: "x"}}
}

var noInbound GetInbound = func(string) (wire.Observable, bool) { return nil, false }

type testObserver struct {
	next      []string
	err       error
	completed bool
}

func (o *testObserver) OnNext(v string)   { o.next = append(o.next, v) }
func (o *testObserver) OnError(err error) { o.err = err }
func (o *testObserver) OnCompleted()      { o.completed = true }
