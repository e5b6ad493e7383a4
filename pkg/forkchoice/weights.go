package forkchoice

import "math/big"

// Propagate computes the two derived weights for every real node, in place.
//
// Phase one recovers each node's exclusive weight: the reported weight is the
// attestation weight of the whole subtree rooted at the node, so the node's
// own share is the remainder after subtracting the children's reported
// weights. The result can be negative when the client reported inconsistent
// weights; big-integer arithmetic keeps that exact instead of wrapping.
//
// Phase two walks each root's subtree top-down and accumulates exclusive
// weights along the path: a root's cumulative weight is its exclusive weight,
// every other node's is its parent's cumulative plus its own exclusive.
// Phase two must only start once phase one has finished for the whole tree.
//
// Placeholders carry no weight and are not visited by either phase.
func (t *Tree) Propagate() {
	for _, id := range t.order {
		n := t.nodes[id]
		ex := new(big.Int).Set(n.Weight)
		for _, child := range n.Children {
			ex.Sub(ex, t.nodes[child].Weight)
		}
		n.Exclusive = ex
	}

	for _, root := range t.roots {
		r := t.nodes[root]
		r.Cumulative = new(big.Int).Set(r.Exclusive)

		stack := append([]string(nil), r.Children...)
		for len(stack) > 0 {
			n := t.nodes[stack[len(stack)-1]]
			stack = stack[:len(stack)-1]

			parent := t.nodes[n.ParentID]
			n.Cumulative = new(big.Int).Add(parent.Cumulative, n.Exclusive)
			stack = append(stack, n.Children...)
		}
	}
}
