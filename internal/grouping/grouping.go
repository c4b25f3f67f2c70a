// Package grouping clusters detected marks into on-screen card groups.
package grouping

import (
	"image"
	"sort"
)

// DefaultRadius is the linking distance in pixels between marks of one card.
// It is an empirical calibration for the reference layout and may need
// adjusting per deployment when stars are miscounted.
const DefaultRadius = 120.0

// Groups maps an opaque cluster label to the points carrying it.
// Labels are assigned in order of each cluster's first point in the input.
type Groups map[int][]image.Point

// Labels returns the group labels in ascending order.
func (g Groups) Labels() []int {
	labels := make([]int, 0, len(g))
	for label := range g {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

// Group partitions points by single-link connectivity: two points share a
// group when a chain of points joins them with every hop no longer than
// radius. Every point belongs to exactly one group; an isolated point forms a
// singleton. Empty input yields an empty, non-nil mapping.
func Group(points []image.Point, radius float64) Groups {
	groups := make(Groups)
	if len(points) == 0 {
		return groups
	}

	uf := newUnionFind(len(points))
	r2 := radius * radius
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if dist2(points[i], points[j]) <= r2 {
				uf.union(i, j)
			}
		}
	}

	labels := make(map[int]int)
	for i, p := range points {
		root := uf.find(i)
		label, ok := labels[root]
		if !ok {
			label = len(labels)
			labels[root] = label
		}
		groups[label] = append(groups[label], p)
	}

	return groups
}

func dist2(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return dx*dx + dy*dy
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
