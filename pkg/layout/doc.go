// Package layout places the nodes of a partially replayed tree on a
// column grid.
//
// Layout runs in three steps, each a pure function of its inputs:
//
//  1. [Build] turns the visible prefix of a timeline into [RenderableNode]s,
//     assigning every node a depth (its column) and a parent.
//  2. [Compute] assigns positions column by column, anchoring each node at
//     the evidence slot or parent it responds to and never overlapping an
//     earlier node in the same column.
//  3. [Settle] alternates Compute with a [Surface] measurement until the
//     positions stop changing, since node heights depend on rendered text.
//
// # Columns
//
// The assignment subject sits at depth 0 and is drawn at [Origin]. Nodes
// attached directly to the subject are depth 1; every structural child is
// one column further right. A counter-argument raised against a specific
// evidence item is moved next to the node owning that evidence, one column
// right of it, and anchored at the evidence's vertical position.
//
// # Measurements
//
// Heights and evidence slots come from the presentation layer through
// [NodeMeasure]. Until a node has been measured, [FallbackHeight] is used.
package layout
