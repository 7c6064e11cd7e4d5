package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/internal/config"
	"github.com/matzehuels/treereplay/internal/server"
	"github.com/matzehuels/treereplay/pkg/integrations/chathistory"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/session"
)

// serveOpts holds the flags of the serve command.
type serveOpts struct {
	addr    string
	origins []string
	noCache bool
}

// serveCommand creates the command running the dashboard API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := &serveOpts{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the teacher dashboard API",
		Long: `Serve the dashboard API: classroom login, rosters, assignments, replay
timelines and frames, node chat history, and the /ws/replay live channel.

The classroom API must be configured with classroom.base_url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringSliceVar(&opts.origins, "allow-origin", nil, "origins allowed to open the replay websocket")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	srv, cleanup, err := c.newServer(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}
	return srv.Run(ctx, addr)
}

// newServer wires the dashboard from the config. cleanup releases the
// cache and session store.
func (c *CLI) newServer(ctx context.Context, cfg config.Config, opts *serveOpts) (*server.Server, func(), error) {
	backend, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return nil, nil, err
	}
	classroom, err := c.newClassroom(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	sessions, err := session.Open(ctx, cfg.Session.Backend, cfg.SessionOptions())
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	var chat replay.ChatSource
	if cfg.Chat.BaseURL != "" {
		client := chathistory.NewClient(cfg.Chat.BaseURL, cfg.Chat.APIKey)
		if rate := cfg.Classroom.RateLimit; rate > 0 {
			client.SetRateLimit(rate, max(1, int(rate)))
		}
		chat = client
	} else {
		c.Logger.Warn("chat.base_url not configured; node chat history is disabled")
	}

	srv, err := server.New(server.Config{
		Classroom:      classroom,
		Chat:           chat,
		Sessions:       sessions,
		Runner:         pipeline.NewRunner(backend, nil, c.Logger),
		Logger:         c.Logger,
		JWTSecret:      []byte(cfg.Server.JWTSecret),
		SessionTTL:     cfg.Server.SessionTTL.Duration,
		Speed:          cfg.Speed(),
		AutoplayDelay:  cfg.Replay.AutoplayDelay.Duration,
		MaxPasses:      cfg.Replay.MaxPasses,
		AllowedOrigins: opts.origins,
	})
	if err != nil {
		sessions.Close()
		backend.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := sessions.Close(); err != nil {
			c.Logger.Warn("close session store", "error", err)
		}
		if err := backend.Close(); err != nil {
			c.Logger.Warn("close cache", "error", err)
		}
	}
	return srv, cleanup, nil
}
