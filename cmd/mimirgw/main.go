// Package main provides the mimirgw CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orneryd/mimirgw/pkg/config"
	"github.com/orneryd/mimirgw/pkg/neoexec"
	"github.com/orneryd/mimirgw/pkg/server"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mimirgw",
		Short: "mimirgw - Read-only HTTP gateway for Neo4j graph visualization",
		Long: `mimirgw is a read-only HTTP gateway in front of a Neo4j deployment.

It serves graph-visualization clients the node/edge JSON contract while
guaranteeing that no client query can mutate the store: every query is
lexically classified before execution, and anything containing a write
operation is rejected with 403.

Features:
  • Read-only Cypher execution with write rejection before the driver
  • Per-request database routing (multi-database Neo4j)
  • Bounded neighborhood expansion with a global node budget
  • Property search, schema listing, node/edge counts
  • Prometheus metrics and API-key authentication`,
	}

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mimirgw v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Long:  "Start the gateway HTTP server in front of the configured Neo4j deployment",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Config file path (default: auto-detect mimirgw.yaml)")
	serveCmd.Flags().String("address", getEnvStr("MIMIRGW_ADDRESS", ""), "Bind address (127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)")
	serveCmd.Flags().Int("port", getEnvInt("MIMIRGW_PORT", 0), "HTTP API port")
	serveCmd.Flags().String("neo4j-uri", getEnvStr("MIMIRGW_NEO4J_URI", ""), "Neo4j connection URI (bolt:// or neo4j://)")
	serveCmd.Flags().String("neo4j-username", getEnvStr("MIMIRGW_NEO4J_USERNAME", ""), "Neo4j username")
	serveCmd.Flags().String("neo4j-password", getEnvStr("MIMIRGW_NEO4J_PASSWORD", ""), "Neo4j password")
	serveCmd.Flags().String("api-key", getEnvStr("MIMIRGW_API_KEY", ""), "API key (plain or bcrypt hash; empty disables auth)")
	serveCmd.Flags().Duration("query-timeout", 0, "Per-query execution timeout")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	address, _ := cmd.Flags().GetString("address")
	port, _ := cmd.Flags().GetInt("port")
	neo4jURI, _ := cmd.Flags().GetString("neo4j-uri")
	neo4jUsername, _ := cmd.Flags().GetString("neo4j-username")
	neo4jPassword, _ := cmd.Flags().GetString("neo4j-password")
	apiKey, _ := cmd.Flags().GetString("api-key")
	queryTimeout, _ := cmd.Flags().GetDuration("query-timeout")

	// Load configuration: file, then env, then flags on top.
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	var cfg *config.Config
	if configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			fmt.Printf("⚠️  Warning: failed to load config from %s: %v\n", configPath, err)
			cfg = config.LoadFromEnv()
		} else {
			fmt.Printf("📄 Loaded config from: %s\n", configPath)
		}
	} else {
		cfg = config.LoadFromEnv()
	}

	// Flag overrides
	if address != "" {
		cfg.Server.Address = address
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if neo4jURI != "" {
		cfg.Neo4j.URI = neo4jURI
	}
	if neo4jUsername != "" {
		cfg.Neo4j.Username = neo4jUsername
	}
	if neo4jPassword != "" {
		cfg.Neo4j.Password = neo4jPassword
	}
	if apiKey != "" {
		cfg.Auth.APIKey = apiKey
	}
	if queryTimeout > 0 {
		cfg.Query.Timeout = queryTimeout
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	versionInfo := fmt.Sprintf("v%s", version)
	if commit != "dev" && commit != "" {
		versionInfo = fmt.Sprintf("v%s-%s", version, commit[:7]) // Short hash
	}
	fmt.Printf("🚀 Starting mimirgw %s\n", versionInfo)
	fmt.Printf("   Neo4j:         %s\n", cfg.Neo4j.URI)
	fmt.Printf("   HTTP API:      http://%s:%d\n", cfg.Server.Address, cfg.Server.Port)
	fmt.Printf("   Query timeout: %v\n", cfg.Query.Timeout)
	fmt.Println()

	// Connect to Neo4j
	fmt.Println("🔌 Connecting to Neo4j...")
	execConfig := neoexec.DefaultConfig()
	execConfig.URI = cfg.Neo4j.URI
	execConfig.Username = cfg.Neo4j.Username
	execConfig.Password = cfg.Neo4j.Password
	execConfig.MaxConnectionPoolSize = cfg.Neo4j.MaxConnectionPoolSize
	execConfig.MaxConnectionLifetime = cfg.Neo4j.MaxConnectionLifetime
	execConfig.ConnectionTimeout = cfg.Neo4j.ConnectionTimeout
	execConfig.QueryTimeout = cfg.Query.Timeout

	exec, err := neoexec.New(execConfig)
	if err != nil {
		return fmt.Errorf("creating executor: %w", err)
	}

	{
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Neo4j.ConnectionTimeout)
		err := exec.VerifyConnectivity(ctx)
		cancel()
		if err != nil {
			// The gateway still starts; /api/health reports the outage and the
			// driver reconnects once the store comes back.
			fmt.Printf("   ⚠️  Neo4j unreachable: %v\n", err)
		} else {
			fmt.Println("   ✅ Connected")
		}
	}

	// Create and start HTTP server
	httpServer, err := server.New(server.NewStore(exec), cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	displayAddr := cfg.Server.Address
	if displayAddr == "0.0.0.0" {
		displayAddr = "localhost" // 0.0.0.0 is all interfaces, show localhost for convenience
	}
	fmt.Println()
	fmt.Println("✅ mimirgw is ready!")
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Printf("  • Query:    POST http://%s:%d/api/{db}/graph/query\n", displayAddr, cfg.Server.Port)
	fmt.Printf("  • Expand:   POST http://%s:%d/api/{db}/graph/nodes/expand\n", displayAddr, cfg.Server.Port)
	fmt.Printf("  • Health:   http://%s:%d/api/health\n", displayAddr, cfg.Server.Port)
	fmt.Printf("  • Metrics:  http://%s:%d/metrics\n", displayAddr, cfg.Server.Port)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	// Block until shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		return fmt.Errorf("stopping HTTP server: %w", err)
	}
	if err := exec.Close(ctx); err != nil {
		fmt.Printf("Warning: error closing Neo4j driver: %v\n", err)
	}

	fmt.Println("✅ Server stopped gracefully")
	return nil
}

// Environment helpers for flag defaults.

func getEnvStr(key, defaultVal string) string {
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
