// Package config handles mimirgw configuration via YAML files and environment
// variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--port, --neo4j-uri, etc.)
//  2. Environment variables (MIMIRGW_*)
//  3. Config file (mimirgw.yaml)
//  4. Built-in defaults
//
// Environment Variables (all use MIMIRGW_ prefix):
//
// Neo4j connection:
//   - MIMIRGW_NEO4J_URI="bolt://localhost:7687"
//   - MIMIRGW_NEO4J_USERNAME="neo4j"
//   - MIMIRGW_NEO4J_PASSWORD="secret"
//   - MIMIRGW_NEO4J_POOL_SIZE=50
//   - MIMIRGW_NEO4J_CONNECTION_TIMEOUT=30s
//
// API:
//   - MIMIRGW_API_KEY="plain-key-or-bcrypt-hash"
//   - MIMIRGW_QUERY_TIMEOUT=30s
//
// Server:
//   - MIMIRGW_ADDRESS="127.0.0.1"
//   - MIMIRGW_PORT=8080
//   - MIMIRGW_CORS_ENABLED=true
//   - MIMIRGW_CORS_ORIGINS="https://app.example.com,https://other.example.com"
//
// Expansion:
//   - MIMIRGW_EXPAND_DEFAULT_MAX_NODES=50
//   - MIMIRGW_EXPAND_MAX_DEPTH=5
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all mimirgw configuration.
//
// Use LoadFromEnv() for defaults plus environment overrides, or
// LoadFromFile() to layer a YAML file underneath the environment.
type Config struct {
	// Neo4j connection settings
	Neo4j Neo4jConfig `yaml:"neo4j"`

	// Server settings
	Server ServerConfig `yaml:"server"`

	// Auth settings
	Auth AuthConfig `yaml:"auth"`

	// Query execution settings
	Query QueryConfig `yaml:"query"`

	// Neighborhood expansion settings
	Expansion ExpansionConfig `yaml:"expansion"`
}

// Neo4jConfig holds driver connection settings.
type Neo4jConfig struct {
	// URI is the connection URI; bolt:// and neo4j:// schemes only.
	URI string `yaml:"uri"`
	// Username for basic auth.
	Username string `yaml:"username"`
	// Password for basic auth.
	Password string `yaml:"password"`
	// MaxConnectionPoolSize caps pooled connections.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size"`
	// MaxConnectionLifetime before pooled connections are recycled.
	MaxConnectionLifetime time.Duration `yaml:"max_connection_lifetime"`
	// ConnectionTimeout for establishing connections.
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Address to bind to (default: 127.0.0.1 - localhost only)
	Address string `yaml:"address"`
	// Port to listen on (default: 8080)
	Port int `yaml:"port"`
	// ReadTimeout for requests
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout for responses
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// IdleTimeout for keep-alive connections
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// MaxRequestSize in bytes (default: 1MB; this gateway takes no uploads)
	MaxRequestSize int64 `yaml:"max_request_size"`
	// EnableCORS for cross-origin requests
	EnableCORS bool `yaml:"enable_cors"`
	// CORSOrigins allowed origins; "*" allows any origin without credentials
	CORSOrigins []string `yaml:"cors_origins"`
	// SlowQueryThreshold above which query handlers log timing; 0 disables
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
	// SlowQueryLogFile is an optional file path for the slow query log
	SlowQueryLogFile string `yaml:"slow_query_log_file"`
}

// AuthConfig holds API key settings. An empty APIKey disables authentication.
type AuthConfig struct {
	// APIKey is either the plain key or a bcrypt hash of it ($2a$... prefix).
	APIKey string `yaml:"api_key"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	// Timeout bounds each query execution
	Timeout time.Duration `yaml:"timeout"`
	// ForbiddenKeywords overrides the built-in mutating-keyword blocklist;
	// empty keeps the default set
	ForbiddenKeywords []string `yaml:"forbidden_keywords"`
}

// ExpansionConfig holds neighborhood expansion settings.
type ExpansionConfig struct {
	// DefaultDepth when a request omits depth
	DefaultDepth int `yaml:"default_depth"`
	// MaxDepth cap on requested depth
	MaxDepth int `yaml:"max_depth"`
	// DefaultMaxNodes when a request omits maxNodes
	DefaultMaxNodes int `yaml:"default_max_nodes"`
	// MaxNodesCap cap on requested maxNodes
	MaxNodesCap int `yaml:"max_nodes_cap"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:                   "bolt://localhost:7687",
			Username:              "neo4j",
			MaxConnectionPoolSize: 50,
			MaxConnectionLifetime: time.Hour,
			ConnectionTimeout:     30 * time.Second,
		},
		Server: ServerConfig{
			Address:            "127.0.0.1",
			Port:               8080,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       60 * time.Second,
			IdleTimeout:        120 * time.Second,
			MaxRequestSize:     1 * 1024 * 1024,
			EnableCORS:         true,
			CORSOrigins:        []string{"*"},
			SlowQueryThreshold: 0,
		},
		Query: QueryConfig{
			Timeout: 30 * time.Second,
		},
		Expansion: ExpansionConfig{
			DefaultDepth:    1,
			MaxDepth:        5,
			DefaultMaxNodes: 50,
			MaxNodesCap:     1000,
		},
	}
}

// LoadFromEnv returns defaults with environment variable overrides applied.
func LoadFromEnv() *Config {
	cfg := Defaults()
	applyEnvVars(cfg)
	return cfg
}

// LoadFromFile loads a YAML config file, then applies environment overrides.
// An empty path skips the file layer.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvVars(cfg)
	return cfg, nil
}

// FindConfigFile returns the first config file that exists among the
// conventional locations, or empty when none does.
func FindConfigFile() string {
	candidates := []string{
		"mimirgw.yaml",
		"mimirgw.yml",
		"config.yaml",
		"/etc/mimirgw/mimirgw.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// validURISchemes for Neo4j connections.
var validURISchemes = []string{
	"bolt://", "bolt+s://", "bolt+ssc://",
	"neo4j://", "neo4j+s://", "neo4j+ssc://",
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	uri := strings.TrimSpace(c.Neo4j.URI)
	if uri == "" {
		return fmt.Errorf("neo4j.uri cannot be empty")
	}
	schemeOK := false
	for _, scheme := range validURISchemes {
		if strings.HasPrefix(uri, scheme) {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return fmt.Errorf("neo4j.uri must use a bolt:// or neo4j:// scheme, got %q", uri)
	}

	if strings.TrimSpace(c.Neo4j.Username) == "" {
		return fmt.Errorf("neo4j.username cannot be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Expansion.DefaultDepth < 1 {
		return fmt.Errorf("expansion.default_depth must be at least 1")
	}
	if c.Expansion.MaxDepth < c.Expansion.DefaultDepth {
		return fmt.Errorf("expansion.max_depth must be >= expansion.default_depth")
	}
	if c.Expansion.DefaultMaxNodes < 1 {
		return fmt.Errorf("expansion.default_max_nodes must be at least 1")
	}
	if c.Expansion.MaxNodesCap < c.Expansion.DefaultMaxNodes {
		return fmt.Errorf("expansion.max_nodes_cap must be >= expansion.default_max_nodes")
	}

	return nil
}

// applyEnvVars applies environment variable overrides to an existing config.
// Environment variables take precedence over config file values.
func applyEnvVars(cfg *Config) {
	if v := getEnv("MIMIRGW_NEO4J_URI", ""); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := getEnv("MIMIRGW_NEO4J_USERNAME", ""); v != "" {
		cfg.Neo4j.Username = v
	}
	if v := getEnv("MIMIRGW_NEO4J_PASSWORD", ""); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := getEnvInt("MIMIRGW_NEO4J_POOL_SIZE", 0); v > 0 {
		cfg.Neo4j.MaxConnectionPoolSize = v
	}
	if v := getEnvDuration("MIMIRGW_NEO4J_CONNECTION_LIFETIME", 0); v > 0 {
		cfg.Neo4j.MaxConnectionLifetime = v
	}
	if v := getEnvDuration("MIMIRGW_NEO4J_CONNECTION_TIMEOUT", 0); v > 0 {
		cfg.Neo4j.ConnectionTimeout = v
	}

	if v := getEnv("MIMIRGW_ADDRESS", ""); v != "" {
		cfg.Server.Address = v
	}
	if v := getEnvInt("MIMIRGW_PORT", 0); v > 0 {
		cfg.Server.Port = v
	}
	if v := getEnvDuration("MIMIRGW_READ_TIMEOUT", 0); v > 0 {
		cfg.Server.ReadTimeout = v
	}
	if v := getEnvDuration("MIMIRGW_WRITE_TIMEOUT", 0); v > 0 {
		cfg.Server.WriteTimeout = v
	}
	if v := os.Getenv("MIMIRGW_CORS_ENABLED"); v != "" {
		cfg.Server.EnableCORS = getEnvBool("MIMIRGW_CORS_ENABLED", cfg.Server.EnableCORS)
	}
	if v := getEnv("MIMIRGW_CORS_ORIGINS", ""); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Server.CORSOrigins = origins
	}
	if v := getEnvDuration("MIMIRGW_SLOW_QUERY_THRESHOLD", 0); v > 0 {
		cfg.Server.SlowQueryThreshold = v
	}
	if v := getEnv("MIMIRGW_SLOW_QUERY_LOG", ""); v != "" {
		cfg.Server.SlowQueryLogFile = v
	}

	if v := getEnv("MIMIRGW_API_KEY", ""); v != "" {
		cfg.Auth.APIKey = v
	}

	if v := getEnvDuration("MIMIRGW_QUERY_TIMEOUT", 0); v > 0 {
		cfg.Query.Timeout = v
	}

	if v := getEnvInt("MIMIRGW_EXPAND_DEFAULT_DEPTH", 0); v > 0 {
		cfg.Expansion.DefaultDepth = v
	}
	if v := getEnvInt("MIMIRGW_EXPAND_MAX_DEPTH", 0); v > 0 {
		cfg.Expansion.MaxDepth = v
	}
	if v := getEnvInt("MIMIRGW_EXPAND_DEFAULT_MAX_NODES", 0); v > 0 {
		cfg.Expansion.DefaultMaxNodes = v
	}
	if v := getEnvInt("MIMIRGW_EXPAND_MAX_NODES_CAP", 0); v > 0 {
		cfg.Expansion.MaxNodesCap = v
	}
}

// Environment variable helpers

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
