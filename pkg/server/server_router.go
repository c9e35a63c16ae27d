package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter wires routes and the middleware chain.
func (s *Server) buildRouter() http.Handler {
	mux := http.NewServeMux()

	// Graph endpoints, all database-scoped and authenticated
	mux.HandleFunc("POST /api/{db}/graph/query", s.withAuth(s.handleQuery))
	mux.HandleFunc("POST /api/{db}/graph/nodes/expand", s.withAuth(s.handleExpand))
	mux.HandleFunc("GET /api/{db}/graph/nodes/count", s.withAuth(s.handleNodeCount))
	mux.HandleFunc("GET /api/{db}/graph/edges/count", s.withAuth(s.handleEdgeCount))
	mux.HandleFunc("GET /api/{db}/graph/nodes/{id}", s.withAuth(s.handleNodeByID))

	// Property search
	mux.HandleFunc("GET /api/{db}/search/node/full", s.withAuth(s.handleSearchNodes))
	mux.HandleFunc("GET /api/{db}/search/edge/full", s.withAuth(s.handleSearchEdges))

	// Schema listing
	mux.HandleFunc("GET /api/{db}/graph/schema/node/types", s.withAuth(s.handleNodeTypes))
	mux.HandleFunc("GET /api/{db}/graph/schema/edge/types", s.withAuth(s.handleEdgeTypes))

	// Health check is public (required for load balancers/k8s probes)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.withAuth(s.handleStatus))

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	// Wrap with middleware (order matters: outermost runs first)
	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = s.metricsMiddleware(handler)

	return handler
}
