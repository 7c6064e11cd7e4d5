package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/render"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	src      sourceOpts
	cursor   string
	formats  string
	output   string
	detailed bool
	scale    float64
	all      bool
	noCache  bool
}

// renderCommand creates the render command for writing frame images.
func (c *CLI) renderCommand() *cobra.Command {
	opts := &renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [snapshot]",
		Short: "Render the replay frame at a cursor to files",
		Long: `Render the tree as it stood after one activity.

Formats are svg, png, pdf, dot and json. PNG and PDF conversion shells out
to rsvg-convert. With --all every step of the timeline is written, numbered
by cursor.`,
		Example: `  treereplay render tree.json
  treereplay render tree.json --cursor 3 --format svg,png -o step3
  treereplay render --assignment 12 --student 7 --all --format svg`,
		Args: snapshotArgs(&opts.src),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args, opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVar(&opts.cursor, "cursor", "last", "timeline cursor (0-based index or 'last')")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output formats: svg, png, pdf, dot, json (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file or base path")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include evidence in DOT output")
	cmd.Flags().Float64Var(&opts.scale, "scale", pipeline.DefaultScale, "PNG resolution multiplier")
	cmd.Flags().BoolVar(&opts.all, "all", false, "render every step of the timeline")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
	_ = cmd.RegisterFlagCompletionFunc("cursor", completeCursor)

	return cmd
}

func (c *CLI) runRender(ctx context.Context, args []string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)

	cursor, err := parseCursor(opts.cursor)
	if err != nil {
		return err
	}
	popts, err := c.pipelineOptions(opts, cursor)
	if err != nil {
		return err
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
	base := basePath(opts.output, outputStem(args, &opts.src))

	if !opts.all {
		prog := newProgress(logger)
		res, err := runner.Execute(ctx, src, popts)
		if err != nil {
			return err
		}
		prog.done(fmt.Sprintf("Rendered step %d of %d", res.Frame.Cursor, res.Frame.Length))
		desc := res.Frame.Description
		if res.Frame.Empty {
			desc = "No activity yet"
		}
		printSuccess("Rendered %s", StyleHighlight.Render(desc))
		printStats(res.Stats.Activities, res.Stats.Nodes, res.CacheInfo.RenderHit)
		return writeArtifacts(res.Artifacts, popts.Formats, singlePath(opts.output, popts.Formats, base))
	}

	// Load once; every step is rendered from the same tree.
	snap, err := c.loadSnapshot(ctx, src, &opts.src)
	if err != nil {
		return err
	}
	acts, _, err := runner.Timeline(ctx, snap)
	if err != nil {
		return err
	}
	if len(acts) == 0 {
		printWarning("No activity yet")
		return nil
	}

	fixed := pipeline.TreeSource{Root: snap.Root, Title: snap.Title}
	width := len(strconv.Itoa(len(acts) - 1))
	cached := 0
	for i := range acts {
		if err := ctx.Err(); err != nil {
			return err
		}
		stepOpts := popts
		stepOpts.Cursor = i
		res, err := runner.Execute(ctx, fixed, stepOpts)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if res.CacheInfo.RenderHit {
			cached++
		}
		stepBase := fmt.Sprintf("%s_%0*d", base, width, i)
		if err := writeArtifacts(res.Artifacts, popts.Formats, func(f string) string { return stepBase + "." + f }); err != nil {
			return err
		}
	}
	printSuccess("Rendered %d steps", len(acts))
	printStats(len(acts), snap.Root.Count(), cached == len(acts))
	return nil
}

// pipelineOptions converts command flags and config into pipeline options.
func (c *CLI) pipelineOptions(opts *renderOpts, cursor int) (pipeline.Options, error) {
	cfg, err := c.config()
	if err != nil {
		return pipeline.Options{}, err
	}
	popts := pipeline.Options{
		Cursor:    cursor,
		MaxPasses: cfg.Replay.MaxPasses,
		Formats:   parseFormats(opts.formats),
		Title:     opts.src.title,
		Detailed:  opts.detailed,
		Scale:     opts.scale,
		Refresh:   opts.src.refresh,
		Logger:    c.Logger,
	}
	if err := popts.ValidateAndSetDefaults(); err != nil {
		return pipeline.Options{}, err
	}
	return popts, nil
}

// writeArtifacts writes each rendered format to the path chosen by pathFor.
func writeArtifacts(artifacts map[string][]byte, formats []string, pathFor func(format string) string) error {
	for _, f := range formats {
		data, ok := artifacts[f]
		if !ok {
			continue
		}
		path := pathFor(f)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	return nil
}

// singlePath names single-frame outputs. An explicit output with a format
// extension is used as-is when one format is rendered.
func singlePath(output string, formats []string, base string) func(string) string {
	return func(f string) string {
		if len(formats) == 1 && output != "" && strings.EqualFold(strings.TrimPrefix(filepath.Ext(output), "."), f) {
			return output
		}
		return base + "." + f
	}
}

// basePath derives the base output path from the output flag and the
// input stem. Known format extensions are stripped from output.
func basePath(output, stem string) string {
	if output == "" {
		return stem
	}
	ext := filepath.Ext(output)
	if _, err := render.ParseFormat(strings.TrimPrefix(ext, ".")); err == nil && ext != "" {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// outputStem names outputs after the snapshot file, or after the
// assignment and student for classroom snapshots.
func outputStem(args []string, o *sourceOpts) string {
	if o.remote() {
		return fmt.Sprintf("assignment-%d-student-%d", o.assignment, o.student)
	}
	return strings.TrimSuffix(args[0], filepath.Ext(args[0]))
}

// parseCursor parses a cursor flag: a non-negative index, or "last"/"end".
func parseCursor(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last", "end":
		return pipeline.CursorEnd, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New(errors.ErrCodeInvalidCursor, "cursor must be a non-negative index or 'last': %q", s)
	}
	return n, nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{string(pipeline.DefaultFormat)}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
