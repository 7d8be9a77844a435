// Vega is the command-understanding core of a conversational assistant.
//
// The engine, session store, and knowledge cache are libraries; this
// command is a minimal hosting process for local use and inspection.
// Network and voice transports live outside this repository and call the
// same library surface.
//
// Usage:
//
//	vega repl                Interactive command loop on stdin
//	vega ask <text>          Process a single command and print the response
//	vega stats               Print knowledge base statistics
//	vega version             Print version and build information
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vegalabs/vega/internal/audit"
	"github.com/vegalabs/vega/internal/buildinfo"
	"github.com/vegalabs/vega/internal/config"
	"github.com/vegalabs/vega/internal/engine"
	"github.com/vegalabs/vega/internal/knowledge"
	"github.com/vegalabs/vega/internal/session"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the full
// lifecycle can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. All OS-level dependencies are injected:
// ctx controls the process lifetime, stdin feeds the repl, stdout and
// stderr receive output, and args is os.Args[1:]. Arguments are parsed
// by hand; the surface is small enough that the flag package's global
// state would cost more than it saves.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			}
		}
	}

	switch command {
	case "", "help":
		return printUsage(stdout)
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "%s, using info\n", err)
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level}))

	app, err := buildApp(logger, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	switch command {
	case "repl":
		return app.repl(ctx, stdin, stdout)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: vega ask <text>")
		}
		return app.ask(ctx, stdout, strings.Join(cmdArgs, " "))
	case "stats":
		return app.stats(stdout)
	default:
		return fmt.Errorf("unknown command %q (try: vega help)", command)
	}
}

// app bundles the wired components. The hosting process owns exactly
// one of each and passes references into the engine.
type app struct {
	logger  *slog.Logger
	session *session.Store
	cache   *knowledge.Cache
	audit   *audit.Store
	engine  *engine.Engine
}

// buildApp constructs and wires the session store, knowledge cache,
// audit log, and decision engine from configuration.
func buildApp(logger *slog.Logger, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	wikipedia := knowledge.NewWikipedia(logger)
	weather := knowledge.NewOpenWeather(logger, cfg.Knowledge.OpenWeather.APIKey)

	sess := session.New(logger, filepath.Join(cfg.DataDir, "context.json"))
	cache := knowledge.New(logger, filepath.Join(cfg.DataDir, "knowledge_base.json"), wikipedia, weather)

	if cfg.Knowledge.Wikipedia.Disabled {
		disabled := false
		cache.ConfigureSource("wikipedia", knowledge.SourceOptions{Enabled: &disabled})
	}

	auditStore, err := audit.NewStore(filepath.Join(cfg.DataDir, "interactions.db"))
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}

	eng := engine.New(logger, sess, cache, auditStore)
	eng.SetDefaultCity(cfg.Knowledge.DefaultCity)

	return &app{
		logger:  logger,
		session: sess,
		cache:   cache,
		audit:   auditStore,
		engine:  eng,
	}, nil
}

func (a *app) close() {
	if err := a.session.Save(); err != nil {
		a.logger.Error("could not save context", "error", err)
	}
	if err := a.audit.Close(); err != nil {
		a.logger.Error("could not close audit store", "error", err)
	}
}

// repl reads commands line by line from stdin until EOF or context
// cancellation. Periodic context cleanup runs on a ticker here; the
// core components own no timers of their own.
func (a *app) repl(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	a.logger.Info("vega ready", "version", buildinfo.Version)

	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cleanup.C:
			a.session.CleanupOldData()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			resp := a.engine.ProcessCommand(ctx, line)
			a.session.AddConversationEntry(map[string]any{
				"command": line,
				"action":  resp.Action,
				"status":  string(resp.Status),
			})
			printJSON(stdout, resp)
		}
	}
}

// ask processes a single command and prints the structured response.
func (a *app) ask(ctx context.Context, stdout io.Writer, text string) error {
	resp := a.engine.ProcessCommand(ctx, text)
	a.session.AddConversationEntry(map[string]any{
		"command": text,
		"action":  resp.Action,
		"status":  string(resp.Status),
	})
	printJSON(stdout, resp)
	return nil
}

// stats prints knowledge base statistics.
func (a *app) stats(stdout io.Writer) error {
	printJSON(stdout, a.cache.Stats())
	return nil
}

func printJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "encode response: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

// loadConfig locates and parses the YAML configuration file, falling
// back to defaults when no file exists and none was requested
// explicitly.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func printUsage(w io.Writer) error {
	fmt.Fprint(w, `Vega, a conversational assistant command core

Usage:
  vega [flags] <command> [args]

Commands:
  repl            Interactive command loop on stdin
  ask <text>      Process a single command and print the response
  stats           Print knowledge base statistics
  version         Print version and build information
  help            Show this help

Flags:
  -config <path>  Explicit configuration file path
`)
	return nil
}
