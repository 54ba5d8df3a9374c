// Package main provides the weaver CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/weaver/cli"
	"github.com/richinex/weaver/config"
)

var (
	// Global flags
	opts    cli.Options
	verbose bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "weaver",
		Short: "Streaming LLM conversations with tool calling",
		Long: `Run conversations with an LLM that can call tools mid-conversation.

Replies stream as they are generated. Tool requests are dispatched to the
registered tools (notes, HTTP and any configured MCP servers) and their
results fed back until the model answers without calling a tool.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&opts.Provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVarP(&opts.Model, "model", "m", "", "Model name (overrides <PROVIDER>_MODEL)")
	rootCmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "Provider API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "Note database path (overrides WEAVER_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.MCPConfig, "mcp-config", "", "Path to MCP server config file")
	rootCmd.PersistentFlags().IntVar(&opts.MaxTurns, "max-turns", 0, "Maximum model turns per run (0 = unlimited)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs and tool results")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(toolsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	level, err := config.LogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// withApp sets up the agent, runs fn and releases the app afterwards.
func withApp(cmd *cobra.Command, fn func(app *cli.App) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	app, err := cli.Setup(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversations over HTTP with server-sent events",
		Long: `Start the HTTP server.

Endpoints:
- POST /api/stream  conversation in, event stream out
- GET  /api/tools   tool catalog
- GET  /healthz     liveness and provider info`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *cli.App) error {
				return cli.Serve(cmd.Context(), app, addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides WEAVER_ADDR)")

	return cmd
}

func chatCmd() *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session in the terminal.

With --remote the conversation is sent to a running weaver server instead of
an in-process agent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote != "" {
				return cli.Chat(cmd.Context(), os.Stdin, os.Stdout, cli.RemoteRunner(remote, nil), verbose)
			}
			return withApp(cmd, func(app *cli.App) error {
				fmt.Printf("Chatting with %s (%s).\n", app.Agent.Provider().Name(), app.Agent.Provider().Model())
				return cli.Chat(cmd.Context(), os.Stdin, os.Stdout, app.Agent.Run, verbose)
			})
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "Base URL of a weaver server, e.g. http://localhost:8080")

	return cmd
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a single prompt and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *cli.App) error {
				return cli.Ask(cmd.Context(), os.Stdout, app.Agent.Run, args[0], verbose)
			})
		},
	}
}

func toolsCmd() *cobra.Command {
	var showSchema bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			return cli.ShowTools(cmd.Context(), os.Stdout, opts.MCPConfig, showSchema, logger)
		},
	}

	cmd.Flags().BoolVarP(&showSchema, "schema", "s", false, "Show tool input schemas")

	return cmd
}
