package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/orneryd/mimirgw/pkg/neoexec"
)

// =============================================================================
// Helper Functions
// =============================================================================

// Error codes returned in the {"error": {...}} envelope.
const (
	codeWriteForbidden   = "WRITE_OPERATION_FORBIDDEN"
	codeQuerySyntaxError = "QUERY_SYNTAX_ERROR"
	codeQueryTimeout     = "QUERY_TIMEOUT"
	codeQueryCancelled   = "QUERY_CANCELLED"
	codeNeo4jUnavailable = "NEO4J_UNAVAILABLE"
	codeDatabaseNotFound = "DATABASE_NOT_FOUND"
	codeNodeNotFound     = "NODE_NOT_FOUND"
	codeValidationError  = "VALIDATION_ERROR"
	codeUnauthorized     = "UNAUTHORIZED"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeInternalError    = "INTERNAL_ERROR"
)

// allowedOperations is echoed in write-rejection responses so clients can
// tell users what the gateway does accept.
var allowedOperations = []string{
	"MATCH", "OPTIONAL MATCH", "WHERE", "RETURN", "WITH",
	"UNWIND", "ORDER BY", "SKIP", "LIMIT", "CALL (read-only procedures)",
}

// maxQueryDetailLen bounds query text echoed back in error details.
const maxQueryDetailLen = 100

// statusClientClosedRequest has no net/http constant; 499 is the nginx
// convention for a client closing the connection mid-request.
const statusClientClosedRequest = 499

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// JSON helpers

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, s.config.Server.MaxRequestSize)
	return json.NewDecoder(body).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// apiError is the wire envelope for every failure response.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) writeAPIError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	s.errorCount.Add(1)
	s.writeJSON(w, status, apiError{Error: apiErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// writeQueryError maps executor failures onto HTTP statuses and error codes.
// The offending query is truncated into the details for operator debugging.
func (s *Server) writeQueryError(w http.ResponseWriter, query string, err error) {
	details := map[string]any{
		"query": truncateQuery(query),
	}

	var qe *neoexec.QueryError
	if errors.As(err, &qe) && qe.Code != "" {
		details["neo4j_code"] = qe.Code
	}

	switch {
	case errors.Is(err, neoexec.ErrQueryTimeout):
		s.writeAPIError(w, http.StatusGatewayTimeout, codeQueryTimeout,
			"query exceeded the configured timeout", details)

	case errors.Is(err, context.Canceled):
		s.writeAPIError(w, statusClientClosedRequest, codeQueryCancelled,
			"request cancelled before the query completed", details)

	case errors.Is(err, neoexec.ErrDatabaseNotFound):
		s.writeAPIError(w, http.StatusNotFound, codeDatabaseNotFound,
			"database does not exist", details)

	case errors.Is(err, neoexec.ErrUnavailable):
		s.writeAPIError(w, http.StatusServiceUnavailable, codeNeo4jUnavailable,
			"graph store unreachable", details)

	case qe != nil && strings.Contains(qe.Code, "SyntaxError"):
		if line, column, ok := errorPosition(err.Error()); ok {
			details["line"] = line
			details["column"] = column
		}
		s.writeAPIError(w, http.StatusBadRequest, codeQuerySyntaxError,
			firstErrorLine(err), details)

	case qe != nil && strings.Contains(qe.Code, "ClientError"):
		s.writeAPIError(w, http.StatusBadRequest, codeQuerySyntaxError,
			firstErrorLine(err), details)

	default:
		s.writeAPIError(w, http.StatusServiceUnavailable, codeNeo4jUnavailable,
			"query execution failed", details)
	}
}

func truncateQuery(query string) string {
	if len(query) > maxQueryDetailLen {
		return query[:maxQueryDetailLen] + "..."
	}
	return query
}

// errorPositionRe matches the position Neo4j appends to syntax errors,
// e.g. "(line 1, column 9 (offset: 8))".
var errorPositionRe = regexp.MustCompile(`line (\d+), column (\d+)`)

func errorPosition(msg string) (line, column int, ok bool) {
	m := errorPositionRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, 0, false
	}
	line, _ = strconv.Atoi(m[1])
	column, _ = strconv.Atoi(m[2])
	return line, column, true
}

// firstErrorLine keeps error messages single-line; driver syntax errors
// embed the query with a caret marker on following lines.
func firstErrorLine(err error) string {
	msg := err.Error()
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	return msg
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		return defaultVal
	}
	return val
}

// Logging helpers

func (s *Server) logRequest(r *http.Request, requestID string, status int, duration time.Duration) {
	fmt.Printf("[HTTP] %s %s %d %v id=%s\n", r.Method, r.URL.Path, status, duration, requestID)
}

// logSlowQuery logs queries that exceed the configured threshold.
func (s *Server) logSlowQuery(query string, duration time.Duration, err error) {
	if s.config.Server.SlowQueryThreshold <= 0 {
		return
	}
	if duration < s.config.Server.SlowQueryThreshold {
		return
	}

	s.slowQueryCount.Add(1)

	status := "OK"
	if err != nil {
		status = fmt.Sprintf("ERROR: %v", err)
	}

	logMsg := fmt.Sprintf("[SLOW QUERY] duration=%v status=%s query=%q",
		duration, status, truncateQuery(query))

	if s.slowQueryLogger != nil {
		s.slowQueryLogger.Println(logMsg)
	} else {
		log.Println(logMsg)
	}
}
