package cli

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// playOpts holds the flags of the play command.
type playOpts struct {
	src     sourceOpts
	speed   string
	noCache bool
}

// playCommand creates the interactive replay command.
func (c *CLI) playCommand() *cobra.Command {
	opts := &playOpts{}

	cmd := &cobra.Command{
		Use:   "play [snapshot]",
		Short: "Replay a snapshot interactively in the terminal",
		Long: `Replay how a tree was built, one activity at a time.

Playback starts automatically. Use space to pause, the arrow keys to step,
1-3 to choose SLOW, MEDIUM or FAST, and q to quit.`,
		Example: `  treereplay play tree.json
  treereplay play --assignment 12 --student 7 --speed FAST`,
		Args: snapshotArgs(&opts.src),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlay(cmd.Context(), args, opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVar(&opts.speed, "speed", "", "playback speed: SLOW, MEDIUM or FAST (default from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	_ = cmd.RegisterFlagCompletionFunc("speed", completeSpeeds)

	return cmd
}

func (c *CLI) runPlay(ctx context.Context, args []string, opts *playOpts) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	speed := cfg.Speed()
	if opts.speed != "" {
		if speed, err = timeline.ParseSpeed(opts.speed); err != nil {
			return err
		}
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	src, err := c.source(ctx, args, &opts.src, runner.Cache)
	if err != nil {
		return err
	}
	var snap *pipeline.Snapshot
	err = spin(ctx, "Loading snapshot...", "Failed to load snapshot", func(ctx context.Context) error {
		var err error
		snap, err = c.loadSnapshot(ctx, src, &opts.src)
		return err
	})
	if err != nil {
		return err
	}
	acts, _, err := runner.Timeline(ctx, snap)
	if err != nil {
		printError("Snapshot is malformed")
		return err
	}

	feed := newFrameFeed()
	sess := replay.NewSession(
		replay.WithSurface(pipeline.Metrics),
		replay.WithMaxPasses(cfg.Replay.MaxPasses),
		replay.WithTitle(snap.Title),
		// The alternate screen owns the terminal while playing.
		replay.WithLogger(log.New(io.Discard)),
		replay.WithOnFrame(feed.offer),
		replay.WithPlayerOptions(
			timeline.WithSpeed(speed),
			timeline.WithAutoplayDelay(cfg.Replay.AutoplayDelay.Duration),
		),
	)
	defer sess.Close()
	sess.LoadActivities(acts)

	p := tea.NewProgram(NewPlayerModel(sess, feed), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
