package forkchoice

import "sort"

// SelectHeads flags and returns the head nodes: nodes that no other node in
// the snapshot names as parent, i.e. the tips of every branch.
//
// Heads are ordered by descending cumulative weight using big-integer
// comparison. The sort is stable, so heads with equal weight keep their
// relative record input order. This mirrors the tie behavior of the client
// dumps being inspected; it depends on the client's serialization order
// rather than any deliberate rule.
//
// SelectHeads must run after [Tree.Propagate]; it reads cumulative weights
// and sets the Head flag as a side effect.
func (t *Tree) SelectHeads() []*Node {
	var heads []*Node
	for _, id := range t.order {
		if n := t.nodes[id]; len(n.Children) == 0 {
			heads = append(heads, n)
		}
	}

	sort.SliceStable(heads, func(i, j int) bool {
		return heads[i].Cumulative.Cmp(heads[j].Cumulative) > 0
	})

	for _, h := range heads {
		h.Head = true
	}
	t.heads = heads
	return heads
}
