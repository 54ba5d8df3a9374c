package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/richinex/weaver/mcp"
	"github.com/richinex/weaver/server"
	"github.com/richinex/weaver/storage"
	"github.com/richinex/weaver/tools"
)

// Serve exposes the app's agent over HTTP until ctx is cancelled.
func Serve(ctx context.Context, app *App, addr string) error {
	if addr == "" {
		addr = app.Settings.Server.Addr
	}
	app.Logger.Info("starting server",
		"provider", app.Agent.Provider().Name(),
		"model", app.Agent.Provider().Model(),
		"max_turns", app.Settings.Agent.MaxTurns,
	)
	return server.New(app.Agent, app.Logger).ListenAndServe(ctx, addr)
}

// ListTools prints the tool catalog. Verbose output includes input schemas.
func ListTools(out io.Writer, registry *tools.Registry, verbose bool) error {
	catalog := registry.Catalog()

	fmt.Fprintln(out, "Available tools:")
	fmt.Fprintln(out)
	for _, schema := range catalog {
		fmt.Fprintf(out, "  %s\n", schema.Name)
		fmt.Fprintf(out, "    %s\n", schema.Description)
		if verbose {
			b, err := json.MarshalIndent(schema.InputSchema, "    ", "  ")
			if err != nil {
				return fmt.Errorf("tool %s: %w", schema.Name, err)
			}
			fmt.Fprintf(out, "    Input: %s\n", b)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// ShowTools lists the built-in tools plus those of the MCP servers in
// mcpConfig, if given. No provider credentials are needed.
func ShowTools(ctx context.Context, out io.Writer, mcpConfig string, verbose bool, logger *slog.Logger) error {
	notes := storage.NewInMemoryNotes()
	defer notes.Close()

	registry, err := tools.WithDefaults(notes)
	if err != nil {
		return err
	}
	if mcpConfig != "" {
		cfg, err := mcp.LoadConfig(mcpConfig)
		if err != nil {
			return fmt.Errorf("mcp config: %w", err)
		}
		manager, err := mcp.Connect(ctx, cfg, registry, logger)
		if err != nil {
			return err
		}
		defer manager.Close()
	}
	return ListTools(out, registry, verbose)
}
