// Package tree defines the argumentation-tree snapshot a student builds for
// an assignment, and decodes it from the JSON (or YAML) the classroom API and
// exported fixture files use.
//
// # Model
//
// A snapshot is a single [Node] rooted at the assignment subject. Every node
// carries its creation time, its author ([Creator]) and an ordered list of
// [Evidence] items. Children nest arbitrarily deep:
//
//	SUBJECT
//	└── CLAIM        (evidences: e1, e2)
//	    ├── COUNTER  (triggeredByEvidenceId: e1)
//	    └── QUESTION
//	        └── ANSWER
//
// Snapshots are immutable once decoded. Nothing in this package mutates a
// [Node] after [Decode] returns.
//
// # Decoding
//
// [Decode] and [ReadFile] validate the structural fields the replay engine
// depends on: every node needs an id and a parseable createdAt. Failures are
// reported as [*MalformedNodeError], which carries the path of the offending
// node and maps to the MALFORMED_NODE error code.
//
// Timestamps are accepted both with and without a zone designator; the
// classroom API emits zone-less microsecond timestamps such as
// "2025-06-05T05:48:59.55406", which are interpreted as UTC.
package tree
