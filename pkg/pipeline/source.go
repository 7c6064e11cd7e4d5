package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/matzehuels/treereplay/pkg/integrations/classroom"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// Snapshot is a loaded tree with its presentation metadata.
type Snapshot struct {
	Root  *tree.Node
	Title string
	// Statistics reported by the source, if any. Nil means they are
	// computed from the activities.
	Statistics *timeline.Statistics
}

// Source provides a snapshot.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// FileSource reads a JSON or YAML snapshot file.
type FileSource struct {
	Path  string
	Title string // defaults to the subject text
}

func (s FileSource) Load(context.Context) (*Snapshot, error) {
	root, err := tree.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	title := s.Title
	if title == "" {
		title = strings.TrimSpace(root.Text())
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	}
	return &Snapshot{Root: root, Title: title}, nil
}

// TreeSource wraps an already decoded tree.
type TreeSource struct {
	Root  *tree.Node
	Title string
}

func (s TreeSource) Load(context.Context) (*Snapshot, error) {
	return &Snapshot{Root: s.Root, Title: s.Title}, nil
}

// ClassroomSource fetches a student's tree log from the classroom API.
type ClassroomSource struct {
	Client       *classroom.Client
	AssignmentID int64
	StudentID    int64
	Refresh      bool
}

func (s ClassroomSource) Load(ctx context.Context) (*Snapshot, error) {
	log, err := s.Client.TreeLog(ctx, s.AssignmentID, s.StudentID, s.Refresh)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Root: log.Tree, Title: log.Title()}
	if log.ServerStatistics {
		stats := log.Statistics
		snap.Statistics = &stats
	}
	return snap, nil
}
