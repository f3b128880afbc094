package main

import (
	"context"
	"time"

	"github.com/nggorpc/streamware/registry"
	"github.com/nggorpc/streamware/rx"
)

// greeterController is the scalar-echo demo: one request, one reply.
type greeterController struct{}

func (greeterController) RoutePrefix() string { return "/greeter" }

func (greeterController) RouteDescriptors() map[string]registry.RouteDescriptor {
	return map[string]registry.RouteDescriptor{
		"SayHello": {Suffix: "sayhello", PlainHTTP: true},
	}
}

type sayHelloParams struct {
	Name string `param:"name"`
}

func (greeterController) SayHello(p sayHelloParams) *rx.Stream[string] {
	return rx.Just("Hello, " + p.Name + "!")
}

// tickerController is the unbounded-outbound-sequence demo: a tick every
// 100ms until the subscription is disposed.
type tickerController struct{}

func (tickerController) RoutePrefix() string { return "/ticker" }

func (tickerController) RouteDescriptors() map[string]registry.RouteDescriptor {
	return map[string]registry.RouteDescriptor{
		"InfiniteTicker": {Suffix: "go"},
	}
}

// Tick is the element type of InfiniteTicker's outbound sequence.
type Tick struct {
	Count     int64 `json:"count"`
	Timestamp int64 `json:"timestamp"`
}

func (tickerController) InfiniteTicker() *rx.Stream[Tick] {
	return rx.FromFunc(func(o rx.Observer[Tick]) rx.Subscription {
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()

			var count int64
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-ticker.C:
					count++
					o.OnNext(Tick{Count: count, Timestamp: t.Unix()})
				}
			}
		}()

		return cancelSubscription(cancel)
	})
}

type cancelSubscription context.CancelFunc

func (c cancelSubscription) Unsubscribe() { c() }
