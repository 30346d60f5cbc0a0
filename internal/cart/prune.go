package cart

import "math"

// Prune applies minimal cost-complexity pruning: the weakest link is collapsed
// into a leaf while its effective alpha is <= alpha. The result is re-indexed
// in preorder. t is not modified.
func Prune(t *Tree, alpha float64) *Tree {
	if len(t.Nodes) == 0 {
		return t
	}
	total := float64(t.Nodes[0].Samples)
	collapsed := make([]bool, len(t.Nodes))

	// risk of node id as a leaf, weighted by its share of the training set
	risk := func(id int) float64 {
		n := t.Nodes[id]
		return n.Impurity * float64(n.Samples) / total
	}

	for {
		weakest, weakestAlpha := -1, math.Inf(1)
		var walk func(id int) (leaves int, subtreeRisk float64)
		walk = func(id int) (int, float64) {
			n := t.Nodes[id]
			if n.IsLeaf() || collapsed[id] {
				return 1, risk(id)
			}
			ll, lr := walk(n.Left)
			rl, rr := walk(n.Right)
			leaves, sub := ll+rl, lr+rr
			eff := (risk(id) - sub) / float64(leaves-1)
			if eff < weakestAlpha {
				weakest, weakestAlpha = id, eff
			}
			return leaves, sub
		}
		walk(0)
		if weakest < 0 || weakestAlpha > alpha {
			break
		}
		collapsed[weakest] = true
	}

	out := &Tree{NFeatures: t.NFeatures, NClasses: t.NClasses}
	var copyNode func(id int) int
	copyNode = func(id int) int {
		n := t.Nodes[id]
		nid := len(out.Nodes)
		node := Node{
			Feature:   n.Feature,
			Threshold: n.Threshold,
			Left:      NoChild,
			Right:     NoChild,
			Value:     append([]float64(nil), n.Value...),
			Impurity:  n.Impurity,
			Samples:   n.Samples,
		}
		if collapsed[id] {
			node.Feature = LeafSentinel
			node.Threshold = LeafSentinel
		}
		out.Nodes = append(out.Nodes, node)
		if node.IsLeaf() {
			return nid
		}
		l := copyNode(n.Left)
		r := copyNode(n.Right)
		out.Nodes[nid].Left = l
		out.Nodes[nid].Right = r
		return nid
	}
	copyNode(0)
	return out
}
