package registry

import (
	"fmt"
	"reflect"
	"strings"
)

// Route is the immutable record produced at registration for one
// controller method.
type Route struct {
	Path              string
	ControllerType    reflect.Type
	Factory           Factory
	Invoker           Invoker
	InboundParamNames []string
	HasBodyParameter  bool
}

// Registry is the read-only, path-keyed route table built once per
// controller set and shared across every connection afterward.
type Registry struct {
	routes map[string]*Route
}

// Match performs an exact-path lookup. Prefix matching is a bug, not a
// feature: a client hitting an unregistered sub-path must fall through
// to the next handler, never be silently routed to a parent.
func (r *Registry) Match(path string) (*Route, bool) {
	route, ok := r.routes[path]
	return route, ok
}

// Routes returns every registered route; callers must not mutate the
// returned Route values.
func (r *Registry) Routes() []*Route {
	out := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	return out
}

// Builder accumulates routes from one or more controller factories before
// producing an immutable Registry.
type Builder struct {
	basePrefix string
	routes     map[string]*Route
}

// NewBuilder starts a registry build. basePrefix (possibly empty) is
// prepended ahead of every controller's RoutePrefix; the final path is
// '/' joined from the non-empty trimmed segments of basePrefix,
// controller prefix, and method suffix.
func NewBuilder(basePrefix string) *Builder {
	return &Builder{basePrefix: basePrefix, routes: map[string]*Route{}}
}

// Register reflects one controller type (obtained by calling factory once)
// into zero or more routes. factory is retained and invoked again once per
// connection/request that matches one of this controller's routes.
func (b *Builder) Register(factory Factory) error {
	sample := factory()
	if sample == nil {
		return &RouteError{"<nil>", "factory returned a nil controller"}
	}
	t := reflect.TypeOf(sample)

	descriptorSource, ok := sample.(RouteDescriptors)
	if !ok {
		return &RouteError{t.String(), "controller does not implement RouteDescriptors (not a StreamController)"}
	}
	descriptors := descriptorSource.RouteDescriptors()

	prefix := ""
	if p, ok := sample.(RoutePrefixer); ok {
		prefix = p.RoutePrefix()
	}

	for methodName, desc := range descriptors {
		invoker, inboundNames, hasBody, err := buildInvoker(t, methodName, desc)
		if err != nil {
			return err
		}

		path := joinPath(b.basePrefix, prefix, desc.Suffix)
		if existing, exists := b.routes[path]; exists {
			return &RouteError{methodName, fmt.Sprintf("duplicate route path %q (already bound to %s)", path, existing.ControllerType)}
		}

		b.routes[path] = &Route{
			Path:              path,
			ControllerType:    t,
			Factory:           factory,
			Invoker:           invoker,
			InboundParamNames: inboundNames,
			HasBodyParameter:  hasBody,
		}
	}

	return nil
}

// Build finalizes the route table. The returned Registry is never mutated
// again.
func (b *Builder) Build() *Registry {
	return &Registry{routes: b.routes}
}

// joinPath composes the full path from routePrefix, controllerPrefix, and
// methodSuffix segments, trimming slashes and dropping empty segments.
// Paths never end with '/' except the root.
func joinPath(segments ...string) string {
	var parts []string
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}
