// Package forkchoice reconstructs a beacon client's fork-choice structure
// from a flat dump of block records.
//
// A client's fork-choice store ("protoarray") tracks every candidate block it
// knows about, with parent pointers and attestation weights. Debug endpoints
// dump this store as an unordered flat list. This package rebuilds the
// implied tree(s), recovers per-block weights, and selects heads the same way
// a client would, for inspection rather than block production.
//
// Reconstruction is three explicit phases over an id-keyed node arena:
//
//  1. [Build] creates one node per record and resolves parent links. Records
//     whose parent is not present become roots; that is the expected shape at
//     chain-history boundaries, not an error.
//  2. [Tree.Propagate] computes exclusive weights bottom-up and
//     cumulative-to-head weights top-down.
//  3. [Tree.SelectHeads] flags leaf nodes and orders them by cumulative
//     weight.
//
// [Reconstruct] runs all three. The resulting tree is a pure function of one
// snapshot's records plus the placeholder option; nothing is shared or
// mutated across invocations.
package forkchoice

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrInvalidRecordID is returned by [Build] when a record has an empty id.
	ErrInvalidRecordID = errors.New("record ID must not be empty")

	// ErrDuplicateRecordID is returned by [Build] when two records in one
	// snapshot share an id. Block roots are unique within a snapshot.
	ErrDuplicateRecordID = errors.New("duplicate record ID")

	// ErrMissingWeight is returned by [Build] when a record carries no weight.
	ErrMissingWeight = errors.New("record has no weight")
)

// Node is one block in the reconstructed fork-choice tree.
//
// Children holds real child ids in attach order; placeholder chains never
// appear here, only in the edge list. Exclusive and Cumulative are nil until
// [Tree.Propagate] runs.
type Node struct {
	Record

	// Children are the ids of nodes that name this node as parent, in the
	// order they were attached.
	Children []string

	// Exclusive is this block's own attestation weight: the reported subtree
	// weight minus the sum of the children's reported subtree weights. It can
	// be negative when a client reports inconsistent weights.
	Exclusive *big.Int

	// Cumulative is the weight accumulated from this node's root down to this
	// node: the parent's Cumulative plus this node's Exclusive.
	Cumulative *big.Int

	// Root reports that ParentID did not resolve within the snapshot.
	Root bool

	// Head reports that no node in the snapshot names this node as parent.
	// Set by [Tree.SelectHeads].
	Head bool

	// FirstPostMerge reports that this node is the first block past the
	// proof-of-stake transition: its resolved parent is pre-merge while the
	// node itself is post-merge.
	FirstPostMerge bool
}

// Placeholder is a synthetic zero-weight node standing in for a slot with no
// observed block between a node and its parent. Placeholders keep slot
// spacing uniform in positional renderings; they are never roots, heads, or
// merge markers and take no part in weight accounting.
type Placeholder struct {
	ID   string
	Slot uint64
}

// Edge is one parent link for rendering, directed child→parent. When
// placeholder synthesis is on, a gap of k skipped slots produces k+1 edges
// threading the placeholder chain.
type Edge struct {
	From string
	To   string
}

// Tree is the reconstructed fork-choice structure for one snapshot.
//
// Nodes are held in an id-keyed arena and reference each other by id, so the
// structure serializes trivially and carries no ownership cycles. Tree is not
// safe for concurrent use; every reconstruction produces a fresh instance.
type Tree struct {
	nodes        map[string]*Node
	order        []string // record input order, drives stable head ordering
	roots        []string
	placeholders []Placeholder
	edges        []Edge
	heads        []*Node
	firstMerge   string
}

// Build reconstructs the tree implied by records.
//
// The first pass creates one node per record, keyed by id. The second pass
// resolves each node's parent: an unresolvable (or self-referencing) parent
// makes the node a root, otherwise the node is appended to the parent's
// children. When synthesizePlaceholders is set, one placeholder per skipped
// slot strictly between a node and its parent is threaded into the edge list.
//
// Returns ErrInvalidRecordID, ErrDuplicateRecordID, or ErrMissingWeight when
// the canonical records are malformed.
func Build(records []Record, synthesizePlaceholders bool) (*Tree, error) {
	t := &Tree{
		nodes: make(map[string]*Node, len(records)),
		order: make([]string, 0, len(records)),
	}

	for i, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("record %d: %w", i, ErrInvalidRecordID)
		}
		if _, exists := t.nodes[r.ID]; exists {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.ID, ErrDuplicateRecordID)
		}
		if r.Weight == nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, r.ID, ErrMissingWeight)
		}
		t.nodes[r.ID] = &Node{Record: r}
		t.order = append(t.order, r.ID)
	}

	for _, id := range t.order {
		n := t.nodes[id]
		parent, ok := t.nodes[n.ParentID]
		if !ok || n.ParentID == n.ID {
			n.Root = true
			t.roots = append(t.roots, id)
			continue
		}

		parent.Children = append(parent.Children, id)

		if !parent.PostMerge && n.PostMerge {
			// Last one processed wins when several branches cross the
			// transition in the same snapshot.
			n.FirstPostMerge = true
			if prev, ok := t.nodes[t.firstMerge]; ok {
				prev.FirstPostMerge = false
			}
			t.firstMerge = id
		}

		if synthesizePlaceholders && n.Slot > parent.Slot+1 {
			from := id
			for slot := n.Slot - 1; slot > parent.Slot; slot-- {
				ph := Placeholder{ID: placeholderID(id, slot), Slot: slot}
				t.placeholders = append(t.placeholders, ph)
				t.edges = append(t.edges, Edge{From: from, To: ph.ID})
				from = ph.ID
			}
			t.edges = append(t.edges, Edge{From: from, To: parent.ID})
		} else {
			t.edges = append(t.edges, Edge{From: id, To: parent.ID})
		}
	}

	return t, nil
}

// Reconstruct runs the full pipeline: [Build], [Tree.Propagate], and
// [Tree.SelectHeads].
func Reconstruct(records []Record, synthesizePlaceholders bool) (*Tree, error) {
	t, err := Build(records, synthesizePlaceholders)
	if err != nil {
		return nil, err
	}
	t.Propagate()
	t.SelectHeads()
	return t, nil
}

// placeholderID derives a stable synthetic id from the descendant block the
// chain hangs off and the skipped slot.
func placeholderID(childID string, slot uint64) string {
	return fmt.Sprintf("%s@%d", childID, slot)
}

// Node returns the node with the given id, or nil and false if not found.
// The returned pointer refers to the arena node; mutations affect the tree.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Nodes returns all real nodes in record input order.
func (t *Tree) Nodes() []*Node {
	nodes := make([]*Node, len(t.order))
	for i, id := range t.order {
		nodes[i] = t.nodes[id]
	}
	return nodes
}

// Roots returns the root nodes in record input order.
func (t *Tree) Roots() []*Node {
	roots := make([]*Node, len(t.roots))
	for i, id := range t.roots {
		roots[i] = t.nodes[id]
	}
	return roots
}

// Heads returns the head nodes ordered by descending cumulative weight.
// Nil until [Tree.SelectHeads] has run.
func (t *Tree) Heads() []*Node { return t.heads }

// Placeholders returns the synthetic slot-filler nodes, if any were
// synthesized.
func (t *Tree) Placeholders() []Placeholder { return t.placeholders }

// Edges returns the rendering edge list, directed child→parent.
func (t *Tree) Edges() []Edge { return t.edges }

// FirstPostMerge returns the node marking the proof-of-stake transition and
// true, or nil and false when no parent-child pair crosses it.
func (t *Tree) FirstPostMerge() (*Node, bool) {
	n, ok := t.nodes[t.firstMerge]
	return n, ok
}

// Len returns the number of real nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }
