package streamware

import "time"

// InboundBufferPolicy selects the InboundSlot backing an inbound stream
// parameter uses (see wire.QueuedSubject / wire.SingleSubscriptionProxy).
type InboundBufferPolicy int

const (
	// QueuedUntilSubscribed buffers peer frames that arrive before the
	// controller method subscribes, delivering them in order once it does.
	QueuedUntilSubscribed InboundBufferPolicy = iota
	// SingleSubscription does not buffer: a frame that arrives before the
	// controller method subscribes holds the inbound pump until it
	// subscribes, disposes its subscription, or the connection ends.
	SingleSubscription
)

// ServerOptions configures a Server. The zero value is not useful; build
// one with NewServerOptions.
type ServerOptions struct {
	InsecureSkipVerify  bool
	InboundBufferPolicy InboundBufferPolicy
	IdleTimeout         time.Duration
	IdleCheckInterval   time.Duration
}

// ServerOption mutates a ServerOptions during construction.
type ServerOption func(*ServerOptions)

// WithInsecureSkipVerify disables WebSocket origin checking. Development
// only.
func WithInsecureSkipVerify(skip bool) ServerOption {
	return func(o *ServerOptions) { o.InsecureSkipVerify = skip }
}

// WithInboundBufferPolicy selects the InboundSlot backing.
func WithInboundBufferPolicy(p InboundBufferPolicy) ServerOption {
	return func(o *ServerOptions) { o.InboundBufferPolicy = p }
}

// WithIdleTimeout sets the duration of inactivity after which a connection
// is closed by the idle reaper.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(o *ServerOptions) { o.IdleTimeout = d }
}

// WithIdleCheckInterval sets how often the idle reaper scans connections.
func WithIdleCheckInterval(d time.Duration) ServerOption {
	return func(o *ServerOptions) { o.IdleCheckInterval = d }
}

// NewServerOptions applies opts over the default configuration: secure by
// default, queued-until-subscribed inbound slots, 5 minute idle timeout
// checked every minute.
func NewServerOptions(opts ...ServerOption) ServerOptions {
	o := ServerOptions{
		InsecureSkipVerify:  false,
		InboundBufferPolicy: QueuedUntilSubscribed,
		IdleTimeout:         5 * time.Minute,
		IdleCheckInterval:   1 * time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
