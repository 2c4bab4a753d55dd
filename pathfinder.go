package routegraph

import (
	"container/heap"
	"errors"
	"sort"
)

var ErrNoPath = errors.New("no path between stops")

// An ordered sequence of edges from origin to destination. The weight
// is the Dijkstra total; durations and prices come later, from the
// itinerary assembler.
type Path struct {
	Edges       []*Edge
	TotalWeight float64
}

type pqItem struct {
	node string
	dist float64
	seq  int
	idx  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	// Equal distances resolve in adjacency insertion order.
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].idx = i
	pq[j].idx = j
}

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.idx = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// Single-source shortest path over the graph's non-negative edge
// weights. Returns ErrNoPath when either endpoint is missing or the
// destination is unreachable. Terminates as soon as the destination
// is extracted.
func FindPath(g *Graph, from, to string) (*Path, error) {
	if _, found := g.Nodes[from]; !found {
		return nil, ErrNoPath
	}
	if _, found := g.Nodes[to]; !found {
		return nil, ErrNoPath
	}

	dist := map[string]float64{from: 0}
	prev := map[string]*Edge{}
	visited := map[string]bool{}

	seq := 0
	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{node: from, dist: 0, seq: seq})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		if visited[item.node] {
			continue
		}
		visited[item.node] = true

		if item.node == to {
			break
		}

		for _, e := range g.OutEdges(item.node) {
			if visited[e.To] {
				continue
			}
			alt := item.dist + e.Weight
			if cur, seen := dist[e.To]; !seen || alt < cur {
				dist[e.To] = alt
				prev[e.To] = e
				seq++
				heap.Push(pq, &pqItem{node: e.To, dist: alt, seq: seq})
			}
		}
	}

	if !visited[to] {
		return nil, ErrNoPath
	}

	edges := []*Edge{}
	for at := to; at != from; {
		e := prev[at]
		edges = append(edges, e)
		at = e.From
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return &Path{Edges: edges, TotalWeight: dist[to]}, nil
}

// Exhaustive bounded DFS over simple paths, sorted by total weight.
// Diagnostics only: complexity explodes on dense graphs, so keep
// maxDepth small.
func FindAllPaths(g *Graph, from, to string, maxDepth int) []*Path {
	if _, found := g.Nodes[from]; !found {
		return nil
	}
	if _, found := g.Nodes[to]; !found {
		return nil
	}

	paths := []*Path{}
	onPath := map[string]bool{from: true}
	var edges []*Edge

	var dfs func(node string, weight float64)
	dfs = func(node string, weight float64) {
		if node == to {
			p := &Path{Edges: make([]*Edge, len(edges)), TotalWeight: weight}
			copy(p.Edges, edges)
			paths = append(paths, p)
			return
		}
		if len(edges) >= maxDepth {
			return
		}
		for _, e := range g.OutEdges(node) {
			if onPath[e.To] {
				continue
			}
			onPath[e.To] = true
			edges = append(edges, e)
			dfs(e.To, weight+e.Weight)
			edges = edges[:len(edges)-1]
			delete(onPath, e.To)
		}
	}
	dfs(from, 0)

	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].TotalWeight < paths[j].TotalWeight
	})
	return paths
}
