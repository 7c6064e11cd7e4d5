package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/pkg/layout"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

const (
	timeLayout    = "2006-01-02 15:04"
	maxCellLength = 48
)

// timelineOpts holds the flags of the timeline command.
type timelineOpts struct {
	src     sourceOpts
	json    bool
	noCache bool
}

// timelineCommand creates the timeline command.
func (c *CLI) timelineCommand() *cobra.Command {
	opts := &timelineOpts{}

	cmd := &cobra.Command{
		Use:   "timeline [snapshot]",
		Short: "List the activities of a snapshot in replay order",
		Long: `List every activity reconstructed from an argument tree, oldest first.

The snapshot is a JSON or YAML tree file, or a student's tree log fetched
from the classroom with --assignment and --student.`,
		Example: `  treereplay timeline tree.json
  treereplay timeline --assignment 12 --student 7 --json`,
		Args: snapshotArgs(&opts.src),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTimeline(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	opts.src.register(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "print activities and statistics as JSON")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

// timelineJSON is the --json output of the timeline command.
type timelineJSON struct {
	Title      string              `json:"title"`
	Activities []timeline.Activity `json:"activities"`
	Statistics timeline.Statistics `json:"statistics"`
}

func (c *CLI) runTimeline(ctx context.Context, w io.Writer, args []string, opts *timelineOpts) error {
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	src, err := c.source(ctx, args, &opts.src, runner.Cache)
	if err != nil {
		return err
	}
	prog := newProgress(logger)
	snap, err := c.loadSnapshot(ctx, src, &opts.src)
	if err != nil {
		return err
	}
	activities, stats, err := runner.Timeline(ctx, snap)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Extracted %d activities", len(activities)))

	if opts.json {
		if activities == nil {
			activities = []timeline.Activity{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(timelineJSON{Title: snap.Title, Activities: activities, Statistics: stats})
	}

	fmt.Fprintln(w, StyleTitle.Render(snap.Title))
	if len(activities) == 0 {
		fmt.Fprintln(w, StyleDim.Render("No activity yet"))
		return nil
	}
	fmt.Fprintln(w, activityTable(activities))
	writeStatistics(w, stats)
	return nil
}

// activityTable renders activities as a table, one row per step.
func activityTable(activities []timeline.Activity) string {
	rows := make([][]string, 0, len(activities))
	for i, a := range activities {
		rows = append(rows, []string{
			strconv.Itoa(i),
			a.Timestamp.Local().Format(timeLayout),
			a.Describe(),
			clip(a.Node.Text(), maxCellLength),
			strconv.Itoa(len(a.Evidences)),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cell := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Time", "Activity", "Node", "Evidence").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle.Padding(0, 1)
			}
			switch col {
			case 0, 1, 4:
				return cell.Foreground(colorDim)
			case 2:
				return cell.Inherit(kindStyle(layout.KindOf(activities[row].Node.Type)))
			}
			return cell
		}).
		Render()
}

// writeStatistics prints the summary block below a timeline.
func writeStatistics(w io.Writer, s timeline.Statistics) {
	key := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	line := func(k, v string) {
		fmt.Fprintln(w, key.Render(k)+" "+StyleValue.Render(v))
	}

	fmt.Fprintln(w)
	line("Nodes", fmt.Sprintf("%d (student %d, AI %d, teacher %d)", s.TotalNodes, s.StudentNodes, s.AINodes, s.TeacherNodes))
	line("Evidence", fmt.Sprintf("%d (student %d, AI %d)", s.TotalEvidences, s.StudentEvidences, s.AIEvidences))
	if !s.FirstActivity.IsZero() {
		line("Started", s.FirstActivity.Local().Format(timeLayout))
		line("Finished", s.LastActivity.Local().Format(timeLayout))
	}
	if s.TotalDuration != "" {
		line("Duration", s.TotalDuration)
	}
}

// clip shortens s to n runes on a single line.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
