package streamware

import (
	"io"
	"net/http"
	"strings"

	"github.com/nggorpc/streamware/internal/logging"
	"github.com/nggorpc/streamware/registry"
	"github.com/nggorpc/streamware/transport"
)

// Middleware returns an http.Handler that dispatches requests matching the
// Registry to the WebSocket or HTTP connection driver, and falls through
// to next on a route miss. While the server is shutting down, a matched
// request is answered with 503 Service Unavailable.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := s.registry.Match(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if s.isShuttingDown() {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}

		connID := newConnID()
		ctx, logger := logging.WithConn(r.Context(), s.logger, connID, r.RemoteAddr)
		logger = logging.WithRoute(logger, route.Path)
		r = r.WithContext(ctx)

		scalarParams := extractQueryParams(r)
		if route.HasBodyParameter {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			scalarParams[registry.BodyParamKey] = string(body)
		}

		if isWebSocketUpgrade(r) {
			adapter, err := transport.Accept(w, r, transport.AcceptOptions{InsecureSkipVerify: s.options.InsecureSkipVerify})
			if err != nil {
				logger.Debug().Err(err).Msg("websocket accept failed")
				return
			}
			logger.Info().Msg("websocket connection established")
			s.handleWebSocket(ctx, adapter, route, scalarParams, logger)
			return
		}

		s.handleHTTP(w, r, route, scalarParams, logger)
	})
}

// extractQueryParams takes each query key's first value, URL-decoded,
// case-preserving (no lower-casing of names).
func extractQueryParams(r *http.Request) map[string]string {
	query := r.URL.Query()
	out := make(map[string]string, len(query))
	for k, values := range query {
		if len(values) > 0 {
			out[k] = values[0]
		}
	}
	return out
}

// isWebSocketUpgrade reports whether Connection and Upgrade headers both
// request a WebSocket upgrade.
func isWebSocketUpgrade(r *http.Request) bool {
	return headerTokenContains(r.Header.Get("Connection"), "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func headerTokenContains(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
