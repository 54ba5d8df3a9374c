// Command wiring for the weaver CLI.
//
// Information Hiding:
// - Provider, note store, registry and agent construction hidden
// - MCP server lifecycle hidden behind App.Close

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/richinex/weaver/agent"
	"github.com/richinex/weaver/config"
	"github.com/richinex/weaver/llm"
	"github.com/richinex/weaver/mcp"
	"github.com/richinex/weaver/storage"
	"github.com/richinex/weaver/tools"
)

// Options holds values given on the command line. Non-empty values
// override the environment.
type Options struct {
	Provider  string
	Model     string
	BaseURL   string
	DBPath    string
	MCPConfig string
	MaxTurns  int
}

// App is a fully wired conversation agent and the resources behind it.
type App struct {
	Settings config.Settings
	Agent    *agent.Agent
	Notes    storage.NoteStore
	Logger   *slog.Logger

	mcpTools *mcp.Manager
}

// Setup loads settings, opens the note store, registers the tools and
// builds the agent. The caller must Close the App.
func Setup(ctx context.Context, opts Options, logger *slog.Logger) (*App, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}
	applyOverrides(&settings, opts)

	provider, err := newProvider(settings.LLM)
	if err != nil {
		return nil, err
	}

	notes, err := storage.OpenSqlite(settings.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	app, err := assemble(ctx, settings, provider, notes, opts.MCPConfig, logger)
	if err != nil {
		notes.Close()
		return nil, err
	}
	return app, nil
}

// assemble builds the registry and agent over an already created provider
// and note store.
func assemble(ctx context.Context, settings config.Settings, provider llm.Provider, notes storage.NoteStore, mcpConfig string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := tools.WithDefaults(notes)
	if err != nil {
		return nil, err
	}

	app := &App{Settings: settings, Notes: notes, Logger: logger}
	if mcpConfig != "" {
		cfg, err := mcp.LoadConfig(mcpConfig)
		if err != nil {
			return nil, fmt.Errorf("mcp config: %w", err)
		}
		app.mcpTools, err = mcp.Connect(ctx, cfg, registry, logger)
		if err != nil {
			return nil, err
		}
	}

	app.Agent = agent.New(provider, registry,
		agent.WithConfig(settings.AgentConfig()),
		agent.WithLogger(logger),
	)

	logger.Debug("agent ready",
		"provider", provider.Name(),
		"model", provider.Model(),
		"tools", registry.Names(),
	)
	return app, nil
}

// Close releases the note store and stops MCP servers.
func (a *App) Close() error {
	var errs []error
	if a.mcpTools != nil {
		errs = append(errs, a.mcpTools.Close())
	}
	if a.Notes != nil {
		errs = append(errs, a.Notes.Close())
	}
	return errors.Join(errs...)
}

func applyOverrides(settings *config.Settings, opts Options) {
	if opts.Model != "" {
		settings.LLM.Model = opts.Model
	}
	if opts.BaseURL != "" {
		settings.LLM.BaseURL = opts.BaseURL
	}
	if opts.DBPath != "" {
		settings.Storage.DBPath = opts.DBPath
	}
	if opts.MaxTurns > 0 {
		settings.Agent.MaxTurns = opts.MaxTurns
	}
}

// newProvider creates the LLM provider named in cfg, reading its API key
// from the environment.
func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	pc, err := cfg.ProviderConfig()
	if err != nil {
		return nil, err
	}
	return llm.New(pc)
}
