// Package rx gives controller authors a typed, generic lazy-sequence type
// to return from and accept as parameters to their route methods. Every
// Stream[T] can produce and consume a wire.Observable (string on the wire,
// T on the controller side via a JSON mapping stage). The registry reaches
// that bridge through NewBoundStream and ToWire, which assert a reflected
// *Stream[T] value to the unexported wireSource/wireSink interfaces below,
// so the registry package never needs T at compile time.
package rx

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/nggorpc/streamware/wire"
)

// Observer is the typed sink a controller method subscribes with.
type Observer[T any] interface {
	OnNext(T)
	OnError(error)
	OnCompleted()
}

// Subscription mirrors wire.Subscription at the typed layer.
type Subscription = wire.Subscription

type subscribeFunc[T any] func(Observer[T]) Subscription

// Stream is the lazy, asynchronous sequence of T that controller methods
// return (outbound) or accept as a parameter (inbound). The zero value is
// not usable; build one with Just, Empty, FromFunc, or ErrStream, or
// receive one already bound by the registry as a method parameter.
type Stream[T any] struct {
	subscribe subscribeFunc[T]

	// set only when this Stream was constructed by the registry to bind an
	// inbound parameter; see bindWire.
	wire wire.Observable
}

// Subscribe attaches obs to the stream. For a Stream returned by a
// controller method this drives production; for a Stream received as a
// parameter this attaches the controller's consumption logic to whatever
// the peer sends.
func (s *Stream[T]) Subscribe(obs Observer[T]) Subscription {
	if s.subscribe == nil {
		obs.OnCompleted()
		return noop{}
	}
	return s.subscribe(obs)
}

// FromFunc builds a Stream from a subscribe function, analogous to
// wire.FromFunc at the typed layer.
func FromFunc[T any](subscribe func(Observer[T]) Subscription) *Stream[T] {
	return &Stream[T]{subscribe: subscribeFunc[T](subscribe)}
}

// Just returns a Stream emitting a single value then completing.
func Just[T any](v T) *Stream[T] {
	return FromFunc(func(o Observer[T]) Subscription {
		o.OnNext(v)
		o.OnCompleted()
		return noop{}
	})
}

// Empty returns a Stream that completes immediately without emitting.
func Empty[T any]() *Stream[T] {
	return FromFunc(func(o Observer[T]) Subscription {
		o.OnCompleted()
		return noop{}
	})
}

// ErrStream returns a Stream that fails synchronously with err. Controller
// methods don't need to build these by hand for panics — the registry's
// Invoker does that conversion — but it is how a method reports a domain
// error as its whole result.
func ErrStream[T any](err error) *Stream[T] {
	return FromFunc(func(o Observer[T]) Subscription {
		o.OnError(err)
		return noop{}
	})
}

type noop struct{}

func (noop) Unsubscribe() {}

// wireSource is implemented by every *Stream[T] instantiation. Its method
// set mentions no type parameter, so ToWire can reach it through a plain
// type assertion on a reflected value without knowing T at compile time —
// only the already-reflected method's return type needs to be a
// *Stream[T] for some T.
type wireSource interface {
	toWire() wire.Observable
}

// toWire projects this Stream's typed items through JSON-encode, producing
// the wire.Observable the outbound pump consumes.
func (s *Stream[T]) toWire() wire.Observable {
	return wire.FromFunc(func(wo wire.Observer) wire.Subscription {
		sub := s.Subscribe(&jsonEncodingObserver[T]{out: wo})
		return sub
	})
}

type jsonEncodingObserver[T any] struct {
	out wire.Observer
}

func (j *jsonEncodingObserver[T]) OnNext(v T) {
	b, err := json.Marshal(v)
	if err != nil {
		j.out.OnError(fmt.Errorf("encode outbound value: %w", err))
		return
	}
	j.out.OnNext(string(b))
}

func (j *jsonEncodingObserver[T]) OnError(err error) { j.out.OnError(err) }
func (j *jsonEncodingObserver[T]) OnCompleted()      { j.out.OnCompleted() }

// wireSink is implemented by every *Stream[T] instantiation and is how the
// registry binds an inbound stream parameter: NewBoundStream constructs a
// zero *Stream[ConcreteT] via reflect.New (ConcreteT coming from the
// method's own reflected parameter type) and calls bindWire through a type
// assertion, again without ever needing ConcreteT at Go compile time
// inside the registry package.
type wireSink interface {
	bindWire(src wire.Observable)
}

// bindWire makes this Stream forward items from src, JSON-decoding each one
// into T before handing it to whatever the controller method subscribes
// with.
func (s *Stream[T]) bindWire(src wire.Observable) {
	s.wire = src
	var once sync.Once
	s.subscribe = func(obs Observer[T]) Subscription {
		var sub Subscription
		once.Do(func() {
			sub = src.Subscribe(&jsonDecodingObserver[T]{out: obs})
		})
		if sub == nil {
			return noop{}
		}
		return sub
	}
}

type jsonDecodingObserver[T any] struct {
	out Observer[T]
}

func (j *jsonDecodingObserver[T]) OnNext(raw string) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		j.out.OnError(fmt.Errorf("decode inbound value: %w", err))
		return
	}
	j.out.OnNext(v)
}

func (j *jsonDecodingObserver[T]) OnError(err error) { j.out.OnError(err) }
func (j *jsonDecodingObserver[T]) OnCompleted()      { j.out.OnCompleted() }

// ElemType reports the reflect.Type of T for a *Stream[T] value obtained
// via reflection (e.g. a method's declared parameter or return type); it is
// what IsStreamType uses to recognize lazy-sequence types.
func ElemType(streamPtrType reflect.Type) (reflect.Type, bool) {
	if streamPtrType.Kind() != reflect.Ptr {
		return nil, false
	}
	elem := streamPtrType.Elem()
	// An instantiated generic type is named with its type arguments,
	// e.g. "Stream[int]".
	if elem.Kind() != reflect.Struct || !strings.HasPrefix(elem.Name(), "Stream[") {
		return nil, false
	}
	if elem.NumField() == 0 {
		return nil, false
	}
	// Stream[T] always has at least the `subscribe subscribeFunc[T]` field;
	// recover T from its function type's single parameter.
	field, ok := elem.FieldByName("subscribe")
	if !ok {
		return nil, false
	}
	if field.Type.Kind() != reflect.Func || field.Type.NumIn() != 1 {
		return nil, false
	}
	observerType := field.Type.In(0) // Observer[T]
	if observerType.NumMethod() == 0 {
		return nil, false
	}
	onNext, ok := observerType.MethodByName("OnNext")
	if !ok || onNext.Type.NumIn() != 1 {
		return nil, false
	}
	return onNext.Type.In(0), true
}

// IsStreamType reports whether t is *Stream[T] for some T — the registry's
// only hook for recognizing lazy-sequence parameters and return types
// without depending on rx's unexported bridge interfaces.
func IsStreamType(t reflect.Type) bool {
	_, ok := ElemType(t)
	return ok
}

// NewBoundStream allocates a zero *Stream[T] (T recovered from
// streamPtrType, which must satisfy IsStreamType) and binds it to src, so
// that the controller method observes src's items JSON-decoded into T when
// it subscribes.
func NewBoundStream(streamPtrType reflect.Type, src wire.Observable) reflect.Value {
	v := reflect.New(streamPtrType.Elem())
	v.Interface().(wireSink).bindWire(src)
	return v
}

// ToWire extracts the wire.Observable backing a *Stream[T] reflect.Value —
// used by the registry to project a method's return value through
// JSON-encode.
func ToWire(v reflect.Value) (wire.Observable, bool) {
	ws, ok := v.Interface().(wireSource)
	if !ok {
		return nil, false
	}
	return ws.toWire(), true
}
