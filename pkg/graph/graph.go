// Package graph projects a reconstructed fork-choice tree into the node/edge
// document consumed by a rendering layer.
//
// The projection is pure: all weights, flags, and orderings are computed
// during reconstruction, and this package only reshapes them. The format is
// plain JSON designed for node-link renderers: every node carries a display
// label, its slot as the hierarchical level, a size value, a color derived
// from validation status, and a free-form detail string.
package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tbenr/protovis/pkg/forkchoice"
)

// Node colors by validation status.
const (
	ColorValid       = "#4caf50"
	ColorOptimistic  = "#ff9800"
	ColorInvalid     = "#f44336"
	ColorPlaceholder = "#9e9e9e"
)

// Graph is the assembled output for one snapshot, ready for a rendering
// layer. Heads are ordered by descending cumulative weight; Nodes keep
// record input order with placeholders appended after the real nodes.
type Graph struct {
	Nodes          []Node   `json:"nodes"`
	Edges          []Edge   `json:"edges"`
	Heads          []string `json:"heads"`
	Roots          []string `json:"roots"`
	FirstPostMerge string   `json:"first_post_merge,omitempty"`
}

// Node is one rendered block (or slot placeholder).
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Level is the hierarchical layer for positional layouts: the slot.
	Level uint64 `json:"level"`
	// Value is the reported subtree weight driving node size, as a decimal
	// string to keep arbitrary precision on the wire.
	Value string `json:"value"`
	Color string `json:"color"`
	// Title is the free-form detail payload shown on inspection.
	Title string `json:"title,omitempty"`

	Status           string `json:"status,omitempty"`
	ExclusiveWeight  string `json:"exclusive_weight,omitempty"`
	CumulativeWeight string `json:"cumulative_weight,omitempty"`
	Root             bool   `json:"root,omitempty"`
	Head             bool   `json:"head,omitempty"`
	FirstPostMerge   bool   `json:"first_post_merge,omitempty"`
	Placeholder      bool   `json:"placeholder,omitempty"`
}

// Edge is one parent link, directed child→parent.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Assemble projects a reconstructed tree into its rendering document.
// The tree must have been fully reconstructed (weights propagated, heads
// selected); Assemble performs no computation of its own.
func Assemble(t *forkchoice.Tree) Graph {
	out := Graph{
		Nodes: make([]Node, 0, t.Len()+len(t.Placeholders())),
		Edges: make([]Edge, 0, len(t.Edges())),
		Heads: make([]string, 0, len(t.Heads())),
		Roots: make([]string, 0, len(t.Roots())),
	}

	for _, n := range t.Nodes() {
		out.Nodes = append(out.Nodes, nodeFromTree(n))
	}
	for _, ph := range t.Placeholders() {
		out.Nodes = append(out.Nodes, Node{
			ID:          ph.ID,
			Label:       fmt.Sprintf("slot %d", ph.Slot),
			Level:       ph.Slot,
			Value:       "0",
			Color:       ColorPlaceholder,
			Placeholder: true,
		})
	}
	for _, e := range t.Edges() {
		out.Edges = append(out.Edges, Edge{From: e.From, To: e.To})
	}
	for _, h := range t.Heads() {
		out.Heads = append(out.Heads, h.ID)
	}
	for _, r := range t.Roots() {
		out.Roots = append(out.Roots, r.ID)
	}
	if n, ok := t.FirstPostMerge(); ok {
		out.FirstPostMerge = n.ID
	}

	return out
}

func nodeFromTree(n *forkchoice.Node) Node {
	return Node{
		ID:               n.ID,
		Label:            shortID(n.ID),
		Level:            n.Slot,
		Value:            n.Weight.String(),
		Color:            statusColor(n.Status),
		Title:            title(n),
		Status:           n.Status.String(),
		ExclusiveWeight:  n.Exclusive.String(),
		CumulativeWeight: n.Cumulative.String(),
		Root:             n.Root,
		Head:             n.Head,
		FirstPostMerge:   n.FirstPostMerge,
	}
}

func statusColor(s forkchoice.Status) string {
	switch s {
	case forkchoice.StatusInvalid:
		return ColorInvalid
	case forkchoice.StatusOptimistic:
		return ColorOptimistic
	default:
		return ColorValid
	}
}

// shortID abbreviates a block root for display: 0x-prefixed roots keep the
// first and last four hex digits.
func shortID(id string) string {
	if strings.HasPrefix(id, "0x") && len(id) > 14 {
		return id[:6] + "…" + id[len(id)-4:]
	}
	return id
}

func title(n *forkchoice.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "slot %d\nweight %s\nexclusive %s\ncumulative %s\nstatus %s",
		n.Slot, n.Weight, n.Exclusive, n.Cumulative, n.Status)
	if n.Root {
		b.WriteString("\nroot")
	}
	if n.Head {
		b.WriteString("\nhead")
	}
	if n.FirstPostMerge {
		b.WriteString("\nfirst post-merge block")
	}
	return b.String()
}

// Marshal encodes the graph as indented JSON.
func Marshal(g Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// Write encodes the graph as indented JSON to w.
func Write(g Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}

// Export writes the graph to a JSON file at path.
func Export(g Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(g, f)
}
