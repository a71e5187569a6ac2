package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	canvastools "github.com/ggoodman/canvas-mcp/canvas/tools"
)

// runConnectionTest validates configuration and credentials against Canvas.
// Progress goes to stdout; failures go to stderr.
func runConnectionTest(ctx context.Context, stdout, stderr io.Writer) error {
	fmt.Fprintln(stdout, "Testing Canvas API connection...")
	fmt.Fprintln(stdout)

	cfg, err := loadConfig(stderr)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "✓ Configuration loaded")
	if cfg.InstitutionName != "" {
		fmt.Fprintf(stdout, "  Institution: %s\n", cfg.InstitutionName)
	}
	fmt.Fprintf(stdout, "  API URL: %s\n", cfg.APIURL)

	client, err := newCanvasClient(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		fmt.Fprintf(stderr, "✗ Failed to create HTTP client: %v\n", err)
		return errReported
	}
	fmt.Fprintln(stdout, "✓ HTTP client created")

	fmt.Fprint(stdout, "Testing API connection... ")
	user, err := client.CurrentUser(ctx)
	if err != nil {
		fmt.Fprintln(stdout, "✗")
		fmt.Fprintf(stderr, "✗ API connection failed: %v\n\n", err)
		fmt.Fprintln(stderr, "Please check:")
		fmt.Fprintln(stderr, "  - your API token is valid")
		fmt.Fprintln(stderr, "  - your API URL is correct")
		fmt.Fprintln(stderr, "  - you have network access to Canvas")
		return errReported
	}
	fmt.Fprintln(stdout, "✓")
	if user.Name != "" {
		fmt.Fprintf(stdout, "✓ Connected as: %s\n", user.Name)
	}
	fmt.Fprintf(stdout, "  User ID: %d\n", user.ID)

	fmt.Fprint(stdout, "Testing MCP server creation... ")
	tools, err := canvastools.NewContainer(client)
	if err != nil {
		fmt.Fprintln(stdout, "✗")
		fmt.Fprintf(stderr, "✗ Failed to create MCP server: %v\n", err)
		return errReported
	}
	fmt.Fprintln(stdout, "✓")
	fmt.Fprintf(stdout, "  Server: canvas-mcp v%s (%d tools)\n", version, tools.Len())
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "✓ All tests passed!")
	return nil
}
