// Package registry builds the route table and per-method binding plan. Go
// has no method-level attributes, so the route/body/plain-http metadata a
// controller needs to declare is expressed as a small set of optional
// interfaces a controller type implements, plus a struct tag on the
// method's single parameter struct (Go reflection cannot recover
// positional parameter names, so every bound method takes zero or one
// params struct whose exported fields carry a `param:"name"` tag — see
// invoker.go).
package registry

// RoutePrefixer lets a controller type set its RoutePrefix. A controller
// that doesn't implement it has an empty prefix.
type RoutePrefixer interface {
	RoutePrefix() string
}

// RouteDescriptor is the per-method metadata a controller declares: Suffix
// sets the method's path suffix (a method absent from the returned map is
// excluded from registration entirely), and PlainHTTP marks the advisory
// "at most one value" constraint, which the route's Invoker enforces on
// every transport by reporting a second emission as an error.
type RouteDescriptor struct {
	Suffix    string
	PlainHTTP bool
}

// RouteDescriptors is how a controller type marks itself as exposing
// routes and declares, for each exported method it wants exposed, the
// route suffix and PlainHTTP marker. Methods whose name is absent from
// the returned map are not registered, even if their signature otherwise
// qualifies.
type RouteDescriptors interface {
	RouteDescriptors() map[string]RouteDescriptor
}

// Factory provisions one controller instance per connection/request.
type Factory func() any
