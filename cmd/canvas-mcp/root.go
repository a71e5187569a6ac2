package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ggoodman/canvas-mcp/cache"
	"github.com/ggoodman/canvas-mcp/cache/memory"
	rediscache "github.com/ggoodman/canvas-mcp/cache/redis"
	"github.com/ggoodman/canvas-mcp/canvas"
	canvastools "github.com/ggoodman/canvas-mcp/canvas/tools"
	"github.com/ggoodman/canvas-mcp/internal/config"
	"github.com/ggoodman/canvas-mcp/internal/engine"
	"github.com/ggoodman/canvas-mcp/mcp"
	"github.com/ggoodman/canvas-mcp/stdio"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	test    bool
	verbose bool
	logFile string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "canvas-mcp",
		Short: "MCP server for Canvas LMS over stdio",
		Long: `canvas-mcp exposes Canvas LMS courses, assignments and discussions as MCP
tools. It speaks newline-delimited JSON-RPC on stdin/stdout; diagnostics are
written to a log file, never to stdout.

Required environment:
  CANVAS_API_TOKEN  Canvas API access token
  CANVAS_API_URL    Canvas URL, e.g. https://school.instructure.com`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.test {
				return runConnectionTest(cmd.Context(), stdout, stderr)
			}
			return serve(cmd.Context(), opts, stdin, stdout, stderr)
		},
	}
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.BoolVar(&opts.test, "test", false, "check configuration and Canvas connectivity, then exit")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flags.StringVar(&opts.logFile, "log-file", "", `diagnostic log path, or "off" (default: daily file in the temp directory)`)
	return cmd
}

func loadConfig(stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n\n", err)
		fmt.Fprintln(stderr, "Required environment variables:")
		fmt.Fprintln(stderr, "  CANVAS_API_TOKEN - your Canvas API access token")
		fmt.Fprintln(stderr, "  CANVAS_API_URL   - your Canvas URL (e.g. https://school.instructure.com)")
		return nil, errReported
	}
	return cfg, nil
}

func newCanvasClient(cfg *config.Config, log *slog.Logger) (*canvas.Client, error) {
	return canvas.New(canvas.Config{
		BaseURL:       cfg.APIURL,
		Token:         cfg.APIToken,
		UserAgent:     "canvas-mcp/" + version,
		HTTPTimeout:   cfg.HTTPTimeout,
		RateLimit:     cfg.RateLimit,
		RetryAttempts: cfg.RetryAttempts,
		Logger:        log,
	})
}

func serve(ctx context.Context, opts rootOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(stderr)
	if err != nil {
		return err
	}
	if opts.verbose {
		cfg.Debug = true
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}

	log, closeLog, err := openDiagnostics(cfg.LogFile, cfg.Debug, time.Now())
	if err != nil {
		return err
	}
	defer closeLog()
	log = log.With(slog.String("server_id", uuid.NewString()))

	respCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		log.ErrorContext(ctx, "server.cache.fail", slog.String("err", err.Error()))
		return err
	}
	defer closeCache()

	client, err := newCanvasClient(cfg, log)
	if err != nil {
		return err
	}
	tools, err := canvastools.NewContainer(client)
	if err != nil {
		return err
	}

	h := stdio.NewHandler(tools,
		stdio.WithIO(stdin, stdout),
		stdio.WithLogger(log),
		stdio.WithEngineOptions(
			engine.WithCache(respCache),
			engine.WithServerInfo(mcp.ImplementationInfo{Name: "canvas-mcp", Title: "Canvas LMS", Version: version}),
			engine.WithInstructions(instructions(cfg, tools.Len())),
			engine.WithToolTimeout(cfg.ToolTimeout),
			engine.WithMaxInFlight(cfg.MaxInFlight),
		),
	)

	log.InfoContext(ctx, "server.start",
		slog.String("version", version),
		slog.String("api_url", cfg.APIURL),
		slog.Int("tools", tools.Len()),
		slog.Bool("shared_cache", cfg.CacheRedisAddr != ""),
		slog.Bool("anonymization", cfg.EnableAnonymization),
	)
	err = h.Serve(ctx)
	if err != nil {
		log.InfoContext(ctx, "server.stop", slog.String("err", err.Error()))
	} else {
		log.InfoContext(ctx, "server.stop")
	}
	return err
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.CacheRedisAddr == "" {
		c, err := memory.New(cfg.CacheSize)
		if err != nil {
			return nil, nil, fmt.Errorf("memory cache: %w", err)
		}
		return c, func() { _ = c.Close() }, nil
	}

	client := goredis.NewClient(&goredis.Options{Addr: cfg.CacheRedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	c, err := rediscache.New(rediscache.Config{Client: client, KeyPrefix: cfg.CacheRedisPrefix})
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return c, func() { _ = client.Close() }, nil
}

func instructions(cfg *config.Config, toolCount int) string {
	institution := cfg.InstitutionName
	if institution == "" {
		institution = "Not specified"
	}
	var b strings.Builder
	b.WriteString("Canvas LMS MCP Server\n")
	fmt.Fprintf(&b, "Institution: %s\n", institution)
	fmt.Fprintf(&b, "API URL: %s\n", cfg.APIURL)
	if cfg.Timezone != "" {
		fmt.Fprintf(&b, "Timezone: %s\n", cfg.Timezone)
	}
	if cfg.EnableAnonymization {
		b.WriteString("Data anonymization: enabled\n")
	}
	fmt.Fprintf(&b, "\nThis server provides %d tools for interacting with Canvas LMS. ", toolCount)
	b.WriteString("Course identifiers accept a numeric id or an SIS reference such as sis_course_id:ABC123.")
	return b.String()
}
