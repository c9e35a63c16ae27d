// Package neoexec executes validated Cypher against a Neo4j deployment and
// converts driver records into the gateway's raw value union.
//
// It plays two collaborator roles for the core:
//
//   - Database Router: Database(name) hands out a request-scoped runner bound
//     to one named database; unknown names surface ErrDatabaseNotFound at
//     execution time.
//   - Query Executor: Run streams records through the converter and returns
//     rows of graph.Value cells.
//
// Sessions are opened in read access mode. Read mode affects cluster routing
// only; write rejection happens before execution, in the classifier.
package neoexec

import (
	"errors"
	"fmt"
)

// Errors surfaced by the executor.
var (
	ErrDatabaseNotFound = errors.New("database not found")
	ErrNodeNotFound     = errors.New("node not found")
	ErrQueryTimeout     = errors.New("query timed out")
	ErrUnavailable      = errors.New("neo4j unavailable")
)

// QueryError wraps an execution failure with enough context to render a
// useful message: the query text, the target database, and the native Neo4j
// status code when one exists.
type QueryError struct {
	Database string
	Query    string
	Code     string
	Err      error
}

func (e *QueryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("query on database %q failed (%s): %v", e.Database, e.Code, e.Err)
	}
	return fmt.Sprintf("query on database %q failed: %v", e.Database, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
