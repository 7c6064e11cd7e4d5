// Package cli implements the treereplay command-line interface.
//
// The CLI replays argument-tree snapshots, either from local JSON/YAML
// files or fetched from the classroom API, and serves the teacher
// dashboard. It is built using cobra and logs via charmbracelet/log.
//
// # Commands
//
//   - timeline: list the activities reconstructed from a snapshot
//   - frame: print the frame at one timeline cursor
//   - render: write SVG, PNG, PDF, DOT or JSON renderings of a frame
//   - play: replay a snapshot interactively in the terminal
//   - serve: run the dashboard API
//   - login, logout, whoami: manage the classroom login used by --assignment
//   - cache: inspect and clear the local cache
//
// # Configuration
//
// Settings are read from $XDG_CONFIG_HOME/treereplay/config.toml (or
// --config) and TREEREPLAY_* environment variables. Command flags take
// precedence over both.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/internal/config"
	"github.com/matzehuels/treereplay/pkg/buildinfo"
	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/integrations/classroom"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "treereplay"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath overrides the default config file location.
	ConfigPath string
	// SessionDir overrides the directory holding the classroom login.
	SessionDir string

	cfg    config.Config
	loaded bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Treereplay replays how students built their argument trees",
		Long:         `Treereplay reconstructs the order in which an argument tree was built and replays it step by step, in the terminal, as rendered images, or through the teacher dashboard.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.config(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/treereplay/config.toml)")

	root.AddCommand(c.timelineCommand())
	root.AddCommand(c.frameCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.playCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.loginCommand())
	root.AddCommand(c.logoutCommand())
	root.AddCommand(c.whoamiCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the configuration once per CLI.
func (c *CLI) config() (config.Config, error) {
	if c.loaded {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	c.cfg, c.loaded = cfg, true
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	backend, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(backend, nil, c.Logger), nil
}

// newCache opens the configured cache. A backend that cannot be reached
// degrades to no caching so that offline replays still work.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	opts := cfg.CacheOptions()
	if opts.Backend == cache.BackendFile || opts.Backend == "" {
		if opts.Dir == "" {
			dir, err := cacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
			opts.Dir = dir
		}
	}
	backend, err := cache.Open(ctx, opts)
	if err != nil {
		c.Logger.Warn("cache unavailable, continuing without", "backend", opts.Backend, "error", err)
		return cache.NewNullCache(), nil
	}
	return backend, nil
}

// =============================================================================
// Classroom
// =============================================================================

// newClassroom creates an anonymous classroom client from the config.
func (c *CLI) newClassroom(backend cache.Cache) (*classroom.Client, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if cfg.Classroom.BaseURL == "" {
		return nil, fmt.Errorf("classroom.base_url is not configured (set it in the config file or %sCLASSROOM_BASE_URL)", config.EnvPrefix)
	}
	client := classroom.NewClient(backend, cfg.Classroom.BaseURL, cache.TTLHTTP)
	if rate := cfg.Classroom.RateLimit; rate > 0 {
		client.SetRateLimit(rate, max(1, int(rate)))
	}
	return client, nil
}

// sessionStore opens the store holding the CLI's classroom login.
func (c *CLI) sessionStore() (*session.CLIStore, error) {
	store, err := session.NewCLIStore(c.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

// loadLogin returns the saved classroom login.
func (c *CLI) loadLogin(ctx context.Context) (*session.Session, error) {
	store, err := c.sessionStore()
	if err != nil {
		return nil, err
	}
	sess, err := store.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("not logged in (run '%s login' first)", appName)
	}
	return sess, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/treereplay/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
