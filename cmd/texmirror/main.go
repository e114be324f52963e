// Package main is the entry point for the texmirror study-sheet
// editor.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/texmirror/internal/compile"
	"github.com/dshills/texmirror/internal/config"
	"github.com/dshills/texmirror/internal/event"
	"github.com/dshills/texmirror/internal/hook"
	"github.com/dshills/texmirror/internal/logging"
	"github.com/dshills/texmirror/internal/rewrite"
	"github.com/dshills/texmirror/internal/store"
	"github.com/dshills/texmirror/internal/sync/animator"
	"github.com/dshills/texmirror/internal/sync/orchestrator"
	"github.com/dshills/texmirror/internal/tui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		storePath   string
		logLevel    string
		logPath     string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&storePath, "store", "", "Path to the document store database")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&logPath, "log", "", "Log file path (logging is off without one)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "texmirror - LaTeX study-sheet editor with source/preview sync\n\n")
		fmt.Fprintf(os.Stderr, "Usage: texmirror [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("texmirror %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if storePath != "" {
		cfg.Storage.Path = storePath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	// The terminal owns stderr once the screen is up, so logs go to a
	// file or nowhere.
	logOutput := io.Writer(io.Discard)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOutput = f
	}
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Output: logOutput,
		Prefix: "texmirror",
	})

	log.Info("starting texmirror %s", version)

	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	compiler := compile.NewClient(cfg.Server.CompileURL,
		compile.WithTimeout(timeout),
		compile.WithLogger(log.WithComponent("compile")))

	provider, err := buildRewriter(cfg, timeout, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	bus := event.NewBus()

	opts := []orchestrator.Option{
		orchestrator.WithLogger(log.WithComponent("sync")),
		orchestrator.WithRewriter(provider),
		orchestrator.WithAnimatorOptions(
			animator.WithSteps(cfg.Animation.Steps),
			animator.WithStepDelay(time.Duration(cfg.Animation.StepDelayMS)*time.Millisecond),
		),
	}

	if st, err := store.Open(cfg.Storage.Path); err != nil {
		log.Error("document store unavailable, running in memory: %v", err)
	} else {
		defer st.Close()
		opts = append(opts, orchestrator.WithStore(st, cfg.Storage.Slot))
	}

	if cfg.Rewrite.HookScript != "" {
		runner, err := hook.New(cfg.Rewrite.HookScript,
			hook.WithLogger(log.WithComponent("hook")))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer runner.Close()
		opts = append(opts, orchestrator.WithHook(runner))
	}

	orch := orchestrator.New(compiler, bus, opts...)
	orch.LoadDocument()

	// Pick up log-level changes without a restart.
	if configPath != "" {
		watcher := config.NewWatcher(configPath, func(c config.Config, err error) {
			if err != nil {
				log.Warn("config reload failed: %v", err)
				return
			}
			log.SetLevel(logging.ParseLevel(c.Log.Level))
			log.Info("config reloaded")
		})
		if err := watcher.Start(); err != nil {
			log.Warn("config watcher unavailable: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := tui.New(orch, bus,
		tui.WithLogger(log.WithComponent("tui")),
		tui.WithCompileTimeout(timeout),
		tui.WithPreviewScale(cfg.Preview.Scale))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log.Info("shutting down")
	return 0
}

// buildRewriter selects the rewrite backend from configuration.
func buildRewriter(cfg config.Config, timeout time.Duration, log *logging.Logger) (rewrite.Provider, error) {
	switch cfg.Rewrite.Provider {
	case "server":
		return rewrite.NewServerClient(cfg.Server.RewriteURL,
			rewrite.WithTimeout(timeout),
			rewrite.WithLogger(log.WithComponent("rewrite"))), nil
	case "anthropic":
		key := os.Getenv(cfg.Rewrite.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("rewrite provider %q needs an API key in $%s",
				cfg.Rewrite.Provider, cfg.Rewrite.APIKeyEnv)
		}
		return rewrite.NewAnthropicProvider(key, cfg.Rewrite.Model), nil
	case "openai":
		key := os.Getenv(cfg.Rewrite.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("rewrite provider %q needs an API key in $%s",
				cfg.Rewrite.Provider, cfg.Rewrite.APIKeyEnv)
		}
		return rewrite.NewOpenAIProvider(key, cfg.Rewrite.Model), nil
	default:
		return nil, fmt.Errorf("unknown rewrite provider %q", cfg.Rewrite.Provider)
	}
}
