package registry

import "fmt"

// RouteError is a fatal, unrecoverable registration-time error raised
// while building a Registry.
type RouteError struct {
	Method string
	Reason string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("registry: route %s: %s", e.Method, e.Reason)
}
