// Package server provides the mimirgw HTTP API: a read-only gateway in front
// of a Neo4j deployment, serving graph-visualization clients the node/edge
// JSON contract.
//
// Every client query passes through the lexical read-only classifier before
// it reaches the driver; anything that mutates the store is rejected with
// 403 before execution. The rest of the surface (expand, lookup, search,
// schema, counts) issues fixed queries built by the gateway itself.
//
// Endpoints:
//
//	POST /api/{db}/graph/query             - classify, execute, project
//	POST /api/{db}/graph/nodes/expand      - neighborhood expansion
//	GET  /api/{db}/graph/nodes/{id}        - single node by element id
//	GET  /api/{db}/graph/nodes/count       - node count
//	GET  /api/{db}/graph/edges/count       - relationship count
//	GET  /api/{db}/search/node/full        - property search over nodes
//	GET  /api/{db}/search/edge/full        - property search over relationships
//	GET  /api/{db}/graph/schema/node/types - label listing
//	GET  /api/{db}/graph/schema/edge/types - relationship type listing
//	GET  /api/health                       - public connectivity probe
//	GET  /api/status                       - uptime and request counters
//	GET  /metrics                          - Prometheus metrics
//
// Errors use the envelope {"error": {"code", "message", "details"}}.
//
// Example:
//
//	exec, _ := neoexec.New(neoexec.DefaultConfig())
//	srv, err := server.New(server.NewStore(exec), config.Defaults())
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/orneryd/mimirgw/pkg/auth"
	"github.com/orneryd/mimirgw/pkg/config"
	"github.com/orneryd/mimirgw/pkg/cypher"
	"github.com/orneryd/mimirgw/pkg/graph"
	"github.com/orneryd/mimirgw/pkg/neoexec"
)

// Errors for HTTP operations.
var (
	ErrServerClosed = fmt.Errorf("server closed")
)

// Querier is the per-database surface the handlers run against. It is
// satisfied by *neoexec.DatabaseRunner; tests substitute a fake.
type Querier interface {
	Run(ctx context.Context, query string, params map[string]any) ([]graph.Row, error)
	Labels(ctx context.Context) ([]string, error)
	RelationshipTypes(ctx context.Context) ([]string, error)
	NodeByID(ctx context.Context, id string) (graph.GraphNode, error)
	NodeCount(ctx context.Context) (int64, error)
	EdgeCount(ctx context.Context) (int64, error)
	SearchNodes(ctx context.Context, q string, limit int) (graph.ProjectionResult, error)
	SearchEdges(ctx context.Context, q string, limit int) (graph.ProjectionResult, error)
}

// Store provides access to the graph backend and its databases.
type Store interface {
	VerifyConnectivity(ctx context.Context) error
	Database(name string) Querier
}

// NewStore adapts a neoexec.Executor to the Store interface.
func NewStore(exec *neoexec.Executor) Store {
	return execStore{exec: exec}
}

type execStore struct {
	exec *neoexec.Executor
}

func (s execStore) VerifyConnectivity(ctx context.Context) error {
	return s.exec.VerifyConnectivity(ctx)
}

func (s execStore) Database(name string) Querier {
	return s.exec.Database(name)
}

// Server is the gateway HTTP server.
//
// The server is thread-safe and handles concurrent requests. Lifecycle:
// create with New(), Start(), then Stop() for graceful shutdown.
type Server struct {
	config     *config.Config
	store      Store
	auth       *auth.Authenticator
	classifier *cypher.Classifier

	httpServer *http.Server
	listener   net.Listener

	closed  atomic.Bool
	started time.Time

	// Metrics
	requestCount   atomic.Int64
	errorCount     atomic.Int64
	activeRequests atomic.Int64

	// Slow query logging
	slowQueryLogger *log.Logger
	slowQueryCount  atomic.Int64
}

// New creates the gateway server over the given backend. The store is
// required; configuration falls back to config.Defaults() when nil.
func New(store Store, cfg *config.Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	authenticator := auth.New(cfg.Auth.APIKey)
	if !authenticator.Enabled() {
		log.Println("⚠️  Authentication disabled (set MIMIRGW_API_KEY to enable)")
	}

	s := &Server{
		config:     cfg,
		store:      store,
		auth:       authenticator,
		classifier: cypher.NewClassifier(cfg.Query.ForbiddenKeywords),
	}

	// Slow query logger, to a file when configured.
	if cfg.Server.SlowQueryThreshold > 0 && cfg.Server.SlowQueryLogFile != "" {
		file, err := os.OpenFile(cfg.Server.SlowQueryLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("⚠️  Failed to open slow query log file %s: %v", cfg.Server.SlowQueryLogFile, err)
		} else {
			s.slowQueryLogger = log.New(file, "", log.LstdFlags)
			log.Printf("✓ Slow query logging to: %s (threshold: %v)", cfg.Server.SlowQueryLogFile, cfg.Server.SlowQueryThreshold)
		}
	} else if cfg.Server.SlowQueryThreshold > 0 {
		log.Printf("✓ Slow query logging enabled (threshold: %v)", cfg.Server.SlowQueryThreshold)
	}

	return s, nil
}

// Start begins listening on the configured address and port. The server
// serves in a separate goroutine, so Start returns once the port is bound.
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stats returns current server runtime statistics. Thread-safe.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Uptime:         time.Since(s.started),
		RequestCount:   s.requestCount.Load(),
		ErrorCount:     s.errorCount.Load(),
		ActiveRequests: s.activeRequests.Load(),
		SlowQueryCount: s.slowQueryCount.Load(),
	}
}

// ServerStats holds server metrics.
type ServerStats struct {
	Uptime         time.Duration `json:"uptime"`
	RequestCount   int64         `json:"request_count"`
	ErrorCount     int64         `json:"error_count"`
	ActiveRequests int64         `json:"active_requests"`
	SlowQueryCount int64         `json:"slow_query_count"`
}
