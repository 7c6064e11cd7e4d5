package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/pipeline"
	"github.com/matzehuels/treereplay/pkg/replay"
)

// frameOpts holds the flags of the frame command.
type frameOpts struct {
	src     sourceOpts
	cursor  string
	json    bool
	noCache bool
}

// frameCommand creates the frame command.
func (c *CLI) frameCommand() *cobra.Command {
	opts := &frameOpts{}

	cmd := &cobra.Command{
		Use:   "frame [snapshot]",
		Short: "Print the tree as it stood at one timeline cursor",
		Long: `Print the visible nodes of the replay frame at a cursor as an outline,
or the full frame (nodes, positions, settle passes) with --json.`,
		Example: `  treereplay frame tree.json --cursor 2
  treereplay frame tree.json --json | jq '.positions'`,
		Args: snapshotArgs(&opts.src),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFrame(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().StringVar(&opts.cursor, "cursor", "last", "timeline cursor (0-based index or 'last')")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the frame as JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	_ = cmd.RegisterFlagCompletionFunc("cursor", completeCursor)

	return cmd
}

func (c *CLI) runFrame(ctx context.Context, w io.Writer, args []string, opts *frameOpts) error {
	cursor, err := parseCursor(opts.cursor)
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
	snap, err := c.loadSnapshot(ctx, src, &opts.src)
	if err != nil {
		return err
	}
	acts, _, err := runner.Timeline(ctx, snap)
	if err != nil {
		return err
	}

	popts, err := c.pipelineOptions(&renderOpts{src: opts.src}, cursor)
	if err != nil {
		return err
	}
	f, err := runner.Frame(ctx, acts, pipeline.SnapshotHash(snap), popts)
	if err != nil {
		return err
	}
	f.Title = snap.Title

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}
	writeOutline(w, f)
	return nil
}

// writeOutline prints a frame as an indented outline, marking the node
// added by the current activity.
func writeOutline(w io.Writer, f replay.Frame) {
	fmt.Fprintln(w, StyleTitle.Render(f.Title))
	if f.Empty {
		fmt.Fprintln(w, StyleDim.Render("No activity yet"))
		return
	}
	fmt.Fprintln(w, StyleDim.Render(fmt.Sprintf("Step %d/%d · %s", f.Cursor+1, f.Length, f.Description)))
	fmt.Fprintln(w)
	for _, line := range outlineLines(f, 0) {
		fmt.Fprintln(w, line)
	}
}

// outlineLines renders the visible nodes one per line, indented by depth.
// A width of zero disables clipping.
func outlineLines(f replay.Frame, width int) []string {
	var current *layout.RenderableNode
	if f.Activity != nil {
		for i := range f.Nodes {
			if f.Nodes[i].ID == f.Activity.Node.ID {
				current = &f.Nodes[i]
			}
		}
	}

	lines := make([]string, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		marker := "  "
		if current != nil && n.ID == current.ID {
			marker = StyleHighlight.Render("▶ ")
		}
		indent := strings.Repeat("  ", max(0, n.Depth-1))
		text := n.Node.Text()
		if width > 0 {
			text = clip(text, max(8, width-len(indent)-16))
		} else {
			text = clip(text, 96)
		}
		label := kindStyle(n.Kind).Render(fmt.Sprintf("[%s]", n.Kind))
		line := marker + indent + label + " " + text
		if len(n.Evidences) > 0 {
			line += StyleDim.Render(fmt.Sprintf(" (%d evidence)", len(n.Evidences)))
		}
		lines = append(lines, line)
	}
	return lines
}
