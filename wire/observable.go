package wire

// Observer is the wire-level sink: every item that crosses the core is a
// string, leaving the T-on-the-controller-side mapping to package rx.
type Observer interface {
	OnNext(v string)
	OnError(err error)
	OnCompleted()
}

// Subscription is returned by Observable.Subscribe; disposing it must make
// the corresponding cancellation observable to whatever produced the
// Observable.
type Subscription interface {
	Unsubscribe()
}

// Observable is the wire-level lazy sequence of strings that an Invoker
// produces and that the connection drivers consume.
type Observable interface {
	Subscribe(Observer) Subscription
}

// subscriptionFunc adapts a plain func to Subscription.
type subscriptionFunc func()

func (f subscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// noopSubscription is returned by producers with nothing to cancel.
var noopSubscription Subscription = subscriptionFunc(nil)

// observableFunc adapts a plain subscribe function to Observable.
type observableFunc func(Observer) Subscription

func (f observableFunc) Subscribe(o Observer) Subscription { return f(o) }

// FromFunc builds an Observable from a subscribe function.
func FromFunc(subscribe func(Observer) Subscription) Observable {
	return observableFunc(subscribe)
}

// Empty returns an Observable that completes synchronously without emitting.
func Empty() Observable {
	return FromFunc(func(o Observer) Subscription {
		o.OnCompleted()
		return noopSubscription
	})
}

// Just returns an Observable emitting a single value then completing.
func Just(v string) Observable {
	return FromFunc(func(o Observer) Subscription {
		o.OnNext(v)
		o.OnCompleted()
		return noopSubscription
	})
}

// Err returns an Observable that fails synchronously with err.
//
// This is how the registry converts a method's synchronous panic or a
// parameter-decode failure into the same Observable shape as an
// asynchronous error.
func Err(err error) Observable {
	return FromFunc(func(o Observer) Subscription {
		o.OnError(err)
		return noopSubscription
	})
}
