package forest

import (
	"fmt"
	"math/rand"
	"sort"
)

const leaf = -1

// Node is one tree node. Leaves have Feature == -1 and carry Value; inner
// nodes send x[Feature] <= Threshold to Left and everything else to Right.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a regression tree stored as a flat node slice rooted at index 0.
// Children always sit after their parent.
type Tree struct {
	Nodes []Node
}

// Predict walks the tree for x.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature == leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child link out of range", i)
		}
	}
	return nil
}

type builder struct {
	X     [][]float64
	y     []float64
	p     Params
	rng   *rand.Rand
	nodes []Node
	order []int
}

func fitTree(X [][]float64, y []float64, p Params, rng *rand.Rand) Tree {
	n := len(y)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.Intn(n)
	}

	b := &builder{X: X, y: y, p: p, rng: rng, order: make([]int, n)}
	b.grow(sample, 0)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree for idx and returns its root index.
func (b *builder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: b.mean(idx)})

	if !b.splittable(idx, depth) {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

func (b *builder) splittable(idx []int, depth int) bool {
	if b.p.MaxDepth > 0 && depth >= b.p.MaxDepth {
		return false
	}
	if len(idx) < b.p.MinSamplesSplit || len(idx) < 2*b.p.MinSamplesLeaf {
		return false
	}
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return true
		}
	}
	return false
}

// bestSplit scans the candidate features in permuted order and keeps the
// first split with the lowest summed squared error. Children must hold at
// least MinSamplesLeaf samples.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	nFeatures := len(b.X[0])
	candidates := b.rng.Perm(nFeatures)
	if b.p.MaxFeatures > 0 && b.p.MaxFeatures < nFeatures {
		candidates = candidates[:b.p.MaxFeatures]
	}

	n := len(idx)
	minLeaf := b.p.MinSamplesLeaf
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}

	order := b.order[:n]
	bestFeature, bestThreshold := -1, 0.0
	bestScore := 0.0

	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool {
			va, vc := b.X[order[a]][f], b.X[order[c]][f]
			if va != vc {
				return va < vc
			}
			return order[a] < order[c]
		})

		var sumLeft float64
		for k := 1; k < n; k++ {
			sumLeft += b.y[order[k-1]]
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := b.X[order[k-1]][f], b.X[order[k]][f]
			if lo == hi {
				continue
			}
			sumRight := total - sumLeft
			// Maximizing this proxy minimizes the children's squared error.
			score := sumLeft*sumLeft/float64(k) + sumRight*sumRight/float64(n-k)
			if bestFeature < 0 || score > bestScore {
				bestFeature, bestScore = f, score
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *builder) mean(idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}
