package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/pkg/cache"
	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/pipeline"
)

// sourceOpts selects where a snapshot comes from: a file argument or a
// student's tree log in the classroom.
type sourceOpts struct {
	assignment int64
	student    int64
	title      string
	refresh    bool
}

func (o *sourceOpts) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.assignment, "assignment", 0, "classroom assignment id (instead of a file)")
	cmd.Flags().Int64Var(&o.student, "student", 0, "classroom student id (with --assignment)")
	cmd.Flags().StringVar(&o.title, "title", "", "subject heading (default: derived from the snapshot)")
	cmd.Flags().BoolVar(&o.refresh, "refresh", false, "bypass cached tree logs")
}

func (o *sourceOpts) remote() bool {
	return o.assignment != 0 || o.student != 0
}

// snapshotArgs accepts one file, or none when --assignment is given.
func snapshotArgs(o *sourceOpts) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if o.remote() {
			if len(args) > 0 {
				return fmt.Errorf("a snapshot file cannot be combined with --assignment")
			}
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	}
}

// source resolves the snapshot source for a command.
func (c *CLI) source(ctx context.Context, args []string, o *sourceOpts, backend cache.Cache) (pipeline.Source, error) {
	if !o.remote() {
		return pipeline.FileSource{Path: args[0], Title: o.title}, nil
	}
	if o.assignment <= 0 || o.student <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidID, "--assignment and --student must both be positive ids")
	}

	sess, err := c.loadLogin(ctx)
	if err != nil {
		return nil, err
	}
	client, err := c.newClassroom(backend)
	if err != nil {
		return nil, err
	}
	return pipeline.ClassroomSource{
		Client:       client.WithSession(sess.Cookie),
		AssignmentID: o.assignment,
		StudentID:    o.student,
		Refresh:      o.refresh,
	}, nil
}

// loadSnapshot loads a snapshot and applies the --title override.
func (c *CLI) loadSnapshot(ctx context.Context, src pipeline.Source, o *sourceOpts) (*pipeline.Snapshot, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if o.title != "" {
		snap.Title = o.title
	}
	return snap, nil
}
