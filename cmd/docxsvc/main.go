// Command docxsvc serves text extraction and template merging for .docx
// documents over HTTP, with the same operations exposed as MCP tools.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docxsvc/assets"
	"github.com/hazyhaar/docxsvc/chassis"
	"github.com/hazyhaar/docxsvc/config"
	"github.com/hazyhaar/docxsvc/docxmerge"
	"github.com/hazyhaar/docxsvc/docxread"
	"github.com/hazyhaar/docxsvc/fetch"
	"github.com/hazyhaar/docxsvc/observability"
	"github.com/hazyhaar/docxsvc/service"
)

const version = "1.0.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("docxsvc", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("docxsvc", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("DOCXSVC_CONFIG"), "path to YAML config file")
	listen := fs.String("listen", "", "listen address (overrides config)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides config)")
	stdio := fs.Bool("stdio", false, "serve the MCP tools on stdin/stdout instead of HTTP")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Logging. In stdio mode stdout carries the protocol.
	var out io.Writer = os.Stdout
	if *stdio {
		out = os.Stderr
	}
	logger := newLogger(out, cfg.LogLevel)
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := observability.New()
	fetcher := metrics.InstrumentFetcher(fetch.New(fetch.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxBytes:     cfg.Fetch.MaxBytes,
		UserAgent:    cfg.Fetch.UserAgent,
		BlockPrivate: cfg.Fetch.BlockPrivate,
		Logger:       logger,
	}))

	if p := cfg.Merge.DefaultTemplate; p != "" {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("default template: %w", err)
		}
	}

	svc := service.New(service.Config{
		Reader: docxread.New(docxread.Config{MaxSize: cfg.Fetch.MaxBytes, Logger: logger}),
		Merger: docxmerge.New(docxmerge.Config{
			DefaultTemplatePath: cfg.Merge.DefaultTemplate,
			DefaultTemplate:     assets.DefaultTemplate,
			Logger:              logger,
		}, fetcher),
		Fetcher: fetcher,
		Metrics: metrics,
		Logger:  logger,
	})

	impl := &mcp.Implementation{Name: "docxsvc", Version: version}

	if *stdio {
		srv := mcp.NewServer(impl, nil)
		svc.RegisterMCP(srv)
		slog.Info("MCP stdio starting")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp stdio: %w", err)
		}
		return nil
	}

	chassisCfg := chassis.Config{
		Addr:              cfg.Listen,
		Logger:            logger,
		Metrics:           metrics,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}
	if cfg.MCP.On() {
		chassisCfg.MCP = impl
	}
	server := chassis.New(chassisCfg)
	if err := server.RegisterService("docx", svc); err != nil {
		return err
	}

	slog.Info("docxsvc starting",
		"version", version,
		"listen", cfg.Listen,
		"mcp", cfg.MCP.On(),
		"block_private", cfg.Fetch.BlockPrivate,
		"default_template", cfg.Merge.DefaultTemplate,
	)
	return server.ListenAndServe(ctx)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
