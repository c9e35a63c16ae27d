package neoexec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/orneryd/mimirgw/pkg/graph"
)

// Config holds Neo4j connection settings.
type Config struct {
	// URI is the connection URI (bolt:// or neo4j:// schemes).
	URI string
	// Username for basic auth.
	Username string
	// Password for basic auth.
	Password string
	// MaxConnectionPoolSize caps pooled connections (default: 50).
	MaxConnectionPoolSize int
	// MaxConnectionLifetime before pooled connections are recycled (default: 1h).
	MaxConnectionLifetime time.Duration
	// ConnectionTimeout for establishing new connections (default: 30s).
	ConnectionTimeout time.Duration
	// QueryTimeout bounds each query execution; 0 disables the bound.
	QueryTimeout time.Duration
}

// DefaultConfig returns connection defaults matching the Neo4j driver's own.
func DefaultConfig() *Config {
	return &Config{
		URI:                   "bolt://localhost:7687",
		Username:              "neo4j",
		MaxConnectionPoolSize: 50,
		MaxConnectionLifetime: time.Hour,
		ConnectionTimeout:     30 * time.Second,
		QueryTimeout:          30 * time.Second,
	}
}

// Executor owns the driver and its connection pool. It is safe for concurrent
// use; per-request work happens on sessions it opens and closes per call.
type Executor struct {
	driver neo4j.DriverWithContext
	cfg    *Config
}

// New creates an Executor from cfg. The driver is created eagerly but
// connections are established lazily; call VerifyConnectivity to probe.
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *config.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			if cfg.MaxConnectionLifetime > 0 {
				c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
			}
			if cfg.ConnectionTimeout > 0 {
				c.SocketConnectTimeout = cfg.ConnectionTimeout
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	return &Executor{driver: driver, cfg: cfg}, nil
}

// VerifyConnectivity probes the deployment.
func (e *Executor) VerifyConnectivity(ctx context.Context) error {
	if err := e.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the driver and its pool.
func (e *Executor) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Database returns a request-scoped runner bound to the named database.
// Existence is not checked here; an unknown name fails the first Run with
// ErrDatabaseNotFound.
func (e *Executor) Database(name string) *DatabaseRunner {
	return &DatabaseRunner{exec: e, name: name}
}

// DatabaseRunner executes queries against one named database. It satisfies
// expand.QueryRunner.
type DatabaseRunner struct {
	exec *Executor
	name string
}

// Name returns the bound database name.
func (d *DatabaseRunner) Name() string {
	return d.name
}

// Run executes query with params and converts every record into a graph.Row.
// The result set is fully consumed within the session.
func (d *DatabaseRunner) Run(ctx context.Context, query string, params map[string]any) ([]graph.Row, error) {
	return d.exec.Run(ctx, d.name, query, params)
}

// Run executes query against the named database in a read-mode session.
func (e *Executor) Run(ctx context.Context, database, query string, params map[string]any) ([]graph.Row, error) {
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	session := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	if params == nil {
		params = map[string]any{}
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, mapError(err, database, query)
	}

	var rows []graph.Row
	for result.Next(ctx) {
		row, convErr := recordToRow(result.Record())
		if convErr != nil {
			return nil, &QueryError{Database: database, Query: query, Err: convErr}
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, mapError(err, database, query)
	}

	return rows, nil
}

// mapError translates driver failures into the gateway's error taxonomy,
// keeping the native status code for rendering.
func mapError(err error, database, query string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &QueryError{Database: database, Query: query, Err: fmt.Errorf("%w: %v", ErrQueryTimeout, err)}
	}

	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		wrapped := error(neoErr)
		switch {
		case strings.Contains(neoErr.Code, "DatabaseNotFound"):
			wrapped = fmt.Errorf("%w: %v", ErrDatabaseNotFound, neoErr)
		case strings.Contains(neoErr.Code, "TransactionTimedOut"),
			strings.Contains(strings.ToLower(neoErr.Msg), "timeout"),
			strings.Contains(strings.ToLower(neoErr.Msg), "timed out"):
			wrapped = fmt.Errorf("%w: %v", ErrQueryTimeout, neoErr)
		}
		return &QueryError{Database: database, Query: query, Code: neoErr.Code, Err: wrapped}
	}

	return &QueryError{Database: database, Query: query, Err: err}
}
