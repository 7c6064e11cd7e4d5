package tree

import (
	"fmt"

	"github.com/matzehuels/treereplay/pkg/errors"
)

// MalformedNodeError reports a snapshot node the replay engine cannot order
// or identify. Extraction refuses to continue past such a node.
type MalformedNodeError struct {
	Path   string  // location in the snapshot, e.g. "root.children[0]"
	ID     *NodeID // nil when the id itself is missing
	Field  string  // offending field: "id", "createdAt" or "node"
	Reason string
}

func (e *MalformedNodeError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("malformed node %d at %s: %s %s", *e.ID, e.Path, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed node at %s: %s %s", e.Path, e.Field, e.Reason)
}

// ErrorCode implements the coded-error contract of pkg/errors.
func (e *MalformedNodeError) ErrorCode() errors.Code { return errors.ErrCodeMalformedNode }

// ChildPath returns the path of the i-th child of the node at path.
func ChildPath(path string, i int) string {
	return fmt.Sprintf("%s.children[%d]", path, i)
}

// RootPath is the path of the snapshot root.
const RootPath = "root"
