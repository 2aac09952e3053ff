package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/pkg/buildinfo"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/planner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol
	log := logger.New(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
		Output: os.Stderr,
	})

	session := planner.NewSession(*cfg, log)
	if err := session.Prepare(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing airport data: %v\n", err)
		os.Exit(1)
	}

	limits := toolLimits{MaxSearches: 100_000, Timeout: 2 * time.Minute}
	if v, err := strconv.Atoi(os.Getenv("MCP_MAX_SEARCHES")); err == nil && v > 0 {
		limits.MaxSearches = v
	}
	if v, err := time.ParseDuration(os.Getenv("MCP_RUN_TIMEOUT")); err == nil && v > 0 {
		limits.Timeout = v
	}

	s := server.NewMCPServer(
		"seven-continents-mcp",
		buildinfo.Version,
		server.WithLogging(),
	)
	registerTools(s, session, limits)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}
