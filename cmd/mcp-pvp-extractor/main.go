package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/a3tai/mcp-pvp-extractor/internal/config"
	"github.com/a3tai/mcp-pvp-extractor/internal/logging"
	"github.com/a3tai/mcp-pvp-extractor/internal/mcp"
	"github.com/a3tai/mcp-pvp-extractor/internal/pipeline"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	if hasVersionFlag(os.Args[1:]) {
		printVersion(os.Stdout)
		return
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if version != "dev" {
		cfg.Version = version
	}

	logger := logging.Setup(cfg)
	if cfg.IsDebug() {
		logger.Debug("starting", "config", cfg.String())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires the pipeline into the MCP server and blocks until ctx is done
// or the transport fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()

	p, closePipeline, err := pipeline.FromConfig(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePipeline(); err != nil {
			logger.Warn("closing pipeline", "error", err)
		}
	}()

	server, err := mcp.NewServer(cfg, p, reg, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	err = server.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("shutdown requested")
		return nil
	}
	return err
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PVP Extractor\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
