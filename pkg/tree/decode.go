package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/treereplay/pkg/errors"
)

// Format is a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// wireNode mirrors Node with the fields that must be validated kept as
// pointers and raw strings, so that absent values can be told apart from
// zero values.
type wireNode struct {
	ID                    *int64         `json:"id" yaml:"id"`
	Content               string         `json:"content" yaml:"content"`
	Summary               string         `json:"summary" yaml:"summary"`
	Type                  string         `json:"type" yaml:"type"`
	CreatedBy             string         `json:"createdBy" yaml:"createdBy"`
	CreatedAt             *string        `json:"createdAt" yaml:"createdAt"`
	UpdatedAt             *string        `json:"updatedAt" yaml:"updatedAt"`
	Evidences             []wireEvidence `json:"evidences" yaml:"evidences"`
	Children              []wireNode     `json:"children" yaml:"children"`
	TriggeredByEvidenceID *int64         `json:"triggeredByEvidenceId" yaml:"triggeredByEvidenceId"`
	Hidden                bool           `json:"hidden" yaml:"hidden"`
}

type wireEvidence struct {
	ID        *int64  `json:"id" yaml:"id"`
	Content   string  `json:"content" yaml:"content"`
	Summary   string  `json:"summary" yaml:"summary"`
	Source    string  `json:"source" yaml:"source"`
	URL       string  `json:"url" yaml:"url"`
	CreatedBy string  `json:"createdBy" yaml:"createdBy"`
	CreatedAt *string `json:"createdAt" yaml:"createdAt"`
}

// Decode reads a JSON snapshot from r.
//
// Every node must carry an id and a parseable createdAt; otherwise Decode
// returns a [*MalformedNodeError] naming the node's path. Evidence items
// without a createdAt are accepted and left with a zero time. Decode does
// not close r.
func Decode(r io.Reader) (*Node, error) {
	var w wireNode
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode snapshot")
	}
	return w.toNode(RootPath)
}

// DecodeYAML reads a YAML snapshot from r. Field names match the JSON form.
func DecodeYAML(r io.Reader) (*Node, error) {
	var w wireNode
	if err := yaml.NewDecoder(r).Decode(&w); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode snapshot")
	}
	return w.toNode(RootPath)
}

// Parse decodes data in the given format.
func Parse(data []byte, format Format) (*Node, error) {
	switch format {
	case FormatJSON, "":
		return Decode(bytes.NewReader(data))
	case FormatYAML:
		return DecodeYAML(bytes.NewReader(data))
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported snapshot format %q", format)
	}
}

// FormatFromPath infers the snapshot format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ReadFile reads and decodes a snapshot file, choosing the format by
// extension.
func ReadFile(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "snapshot %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, FormatFromPath(path))
}

func (w *wireNode) toNode(path string) (*Node, error) {
	if w.ID == nil {
		return nil, &MalformedNodeError{Path: path, Field: "id", Reason: "is missing"}
	}
	id := NodeID(*w.ID)
	if w.CreatedAt == nil {
		return nil, &MalformedNodeError{Path: path, ID: &id, Field: "createdAt", Reason: "is missing"}
	}
	created, err := ParseTime(*w.CreatedAt)
	if err != nil {
		return nil, &MalformedNodeError{Path: path, ID: &id, Field: "createdAt", Reason: err.Error()}
	}

	n := &Node{
		ID:        id,
		Content:   w.Content,
		Summary:   w.Summary,
		Type:      NodeType(strings.ToUpper(w.Type)),
		CreatedBy: Creator(strings.ToUpper(w.CreatedBy)),
		CreatedAt: created,
		Hidden:    w.Hidden,
	}
	if w.UpdatedAt != nil {
		if t, err := ParseTime(*w.UpdatedAt); err == nil {
			n.UpdatedAt = t
		}
	}
	if w.TriggeredByEvidenceID != nil {
		eid := EvidenceID(*w.TriggeredByEvidenceID)
		n.TriggeredByEvidenceID = &eid
	}

	for i, we := range w.Evidences {
		if we.ID == nil {
			return nil, &MalformedNodeError{
				Path:   path,
				ID:     &id,
				Field:  fmt.Sprintf("evidences[%d].id", i),
				Reason: "is missing",
			}
		}
		ev := Evidence{
			ID:        EvidenceID(*we.ID),
			Content:   we.Content,
			Summary:   we.Summary,
			Source:    we.Source,
			URL:       we.URL,
			CreatedBy: Creator(strings.ToUpper(we.CreatedBy)),
		}
		if we.CreatedAt != nil {
			if t, err := ParseTime(*we.CreatedAt); err == nil {
				ev.CreatedAt = t
			}
		}
		n.Evidences = append(n.Evidences, ev)
	}

	for i := range w.Children {
		child, err := w.Children[i].toNode(ChildPath(path, i))
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
