package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the number of elements in the set containing x.
func (uf *UnionFind) Size(x uint32) uint32 { return uf.size[uf.Find(x)] }

// LargestComponent returns the node indices belonging to the largest
// weakly connected component (treating directed edges as undirected), in
// ascending order. Ties keep the component holding the lowest index.
func LargestComponent(g *Graph) []uint32 {
	n := uint32(g.NodeCount())
	if n == 0 {
		return nil
	}

	uf := NewUnionFind(n)
	for u := range n {
		for _, e := range g.EdgesFrom(u) {
			uf.Union(u, e.To)
		}
	}

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := range n {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := range n {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent returns a new graph holding only the given nodes, the
// edges between them and the segments those edges reference. Node identities,
// coordinates and the geometry flag carry over.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	out := New()
	out.nonGeometric = g.nonGeometric
	if len(nodes) == 0 {
		return out
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for _, oldIdx := range nodes {
		newIdx := out.node(g.nodes[oldIdx])
		if g.located[oldIdx] {
			out.locate(newIdx, g.coords[oldIdx])
		}
		oldToNew[oldIdx] = newIdx
	}

	attrMap := make(map[uint32]uint32)
	for _, oldU := range nodes {
		u := oldToNew[oldU]
		for _, e := range g.EdgesFrom(oldU) {
			v, ok := oldToNew[e.To]
			if !ok {
				continue
			}
			attr, ok := attrMap[e.Attr]
			if !ok {
				attr = uint32(len(out.geometry))
				out.geometry = append(out.geometry, g.geometry[e.Attr])
				out.properties = append(out.properties, g.properties[e.Attr])
				attrMap[e.Attr] = attr
			}
			out.link(u, v, e.Cost, attr, e.Reverse)
		}
	}
	return out
}
