package registry

import (
	"container/heap"
	"strings"
)

// bfsState is one frontier entry of the cycle search.
type bfsState struct {
	token     string
	tokenPath []string
	poolPath  []*Pool
}

// stateKey deduplicates frontier states by token sequence plus pool identity
// sequence, bounding the search on dense graphs.
func stateKey(tokenPath []string, poolPath []*Pool) string {
	var b strings.Builder
	for _, t := range tokenPath {
		b.WriteString(t)
		b.WriteByte('|')
	}
	b.WriteByte('#')
	for _, p := range poolPath {
		b.WriteString(p.ID)
		b.WriteByte('|')
	}
	return b.String()
}

// FindArbitragePaths enumerates structurally valid arbitrage cycles starting
// and ending at startToken, each at most maxHops pools long. Tokens other
// than the start may not repeat within a path. Chain activation and custom
// filters prune during expansion. No profitability judgment happens here;
// ranking is a downstream concern.
func (r *Registry) FindArbitragePaths(startToken string, maxHops int) [][]*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var paths [][]*Pool
	queue := []bfsState{{token: startToken, tokenPath: []string{startToken}}}
	visited := make(map[string]struct{})

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// Completed a cycle back to start.
		if len(cur.tokenPath) > 1 && cur.token == startToken && len(cur.poolPath) <= maxHops {
			paths = append(paths, cur.poolPath)
			continue
		}

		if len(cur.poolPath) >= maxHops {
			continue
		}

		for _, e := range r.graph[cur.token] {
			// A non-start token may appear at most once per path.
			if e.neighbor != startToken && containsAfterFirst(cur.tokenPath, e.neighbor) {
				continue
			}
			if !r.passesLocked(e.pool) {
				continue
			}

			tokenPath := append(append([]string(nil), cur.tokenPath...), e.neighbor)
			poolPath := append(append([]*Pool(nil), cur.poolPath...), e.pool)

			key := stateKey(tokenPath, poolPath)
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}

			queue = append(queue, bfsState{token: e.neighbor, tokenPath: tokenPath, poolPath: poolPath})
		}
	}

	return paths
}

// pqItem is a Dijkstra frontier entry. seq preserves insertion order so that
// equal-priority items pop in FIFO order.
type pqItem struct {
	dist  float64
	seq   int
	token string
	path  []*Pool
}

type pathQueue []*pqItem

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(*pqItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// FindShortestPath runs Dijkstra from tokenA to tokenB with edge weight
// -(1 - fee): a lower-fee pool is "shorter". This is a multiplicative
// value-preserving linearization, not literal distance. Returns (nil, false)
// when tokenB is unreachable within maxHops.
func (r *Registry) FindShortestPath(tokenA, tokenB string, maxHops int) ([]*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seq := 0
	pq := pathQueue{{dist: 0, seq: seq, token: tokenA}}
	heap.Init(&pq)
	best := map[string]float64{tokenA: 0}

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(*pqItem)

		if cur.token == tokenB {
			return cur.path, true
		}

		if len(cur.path) >= maxHops {
			continue
		}

		for _, e := range r.graph[cur.token] {
			if !r.passesLocked(e.pool) {
				continue
			}

			newDist := cur.dist + -(1.0 - e.pool.Fee)

			if prev, seen := best[e.neighbor]; !seen || newDist < prev {
				best[e.neighbor] = newDist
				seq++
				path := append(append([]*Pool(nil), cur.path...), e.pool)
				heap.Push(&pq, &pqItem{dist: newDist, seq: seq, token: e.neighbor, path: path})
			}
		}
	}

	return nil, false
}

// containsAfterFirst reports whether token appears in path[1:]. The first
// element is the cycle start, which is always allowed to close the loop.
func containsAfterFirst(path []string, token string) bool {
	for _, t := range path[1:] {
		if t == token {
			return true
		}
	}
	return false
}
