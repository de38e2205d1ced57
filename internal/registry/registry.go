package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// edge is one directed adjacency entry. Every valid pool contributes exactly
// two of these: token0 -> token1 and token1 -> token0.
type edge struct {
	neighbor string
	pool     *Pool
}

// Registry is the in-memory pool registry with a token adjacency graph for
// pathfinding. Reads (pathfinding, lookups) run concurrently under the read
// lock; AddPool and Refresh are the only writers.
type Registry struct {
	mu           sync.RWMutex
	pools        []*Pool
	graph        map[string][]edge
	activeChains map[string]struct{}
	filters      []PoolFilter
	lastUpdate   time.Time

	feed   PoolFeed
	logger *zap.Logger
}

// Stats is a point-in-time snapshot of registry contents.
type Stats struct {
	Pools        int
	Tokens       int
	Edges        int
	ActiveChains []string
	LastUpdate   time.Time
}

// New creates a registry around an optional feed. The feed may be nil if the
// caller only ever uses Build/AddPool directly.
func New(feed PoolFeed, logger *zap.Logger) *Registry {
	return &Registry{
		graph:        make(map[string][]edge),
		activeChains: make(map[string]struct{}),
		feed:         feed,
		logger:       logger.Named("registry"),
	}
}

// Build replaces the registry contents with the given pool list and rebuilds
// the adjacency graph. Invalid pools are skipped and logged; they never abort
// the build.
func (r *Registry) Build(pools []*Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked(pools)
}

func (r *Registry) rebuildLocked(pools []*Pool) {
	start := time.Now()

	r.pools = r.pools[:0]
	r.graph = make(map[string][]edge, len(pools))
	edgeCount := 0
	skipped := 0

	for _, p := range pools {
		if !p.Valid() {
			skipped++
			r.logger.Warn("Skipping pool without both tokens",
				zap.String("pool_id", p.ID),
				zap.String("dex", p.Dex))
			continue
		}
		r.pools = append(r.pools, p)
		r.graph[p.Token0] = append(r.graph[p.Token0], edge{neighbor: p.Token1, pool: p})
		r.graph[p.Token1] = append(r.graph[p.Token1], edge{neighbor: p.Token0, pool: p})
		edgeCount += 2
		if p.Chain != "" {
			r.activeChains[p.Chain] = struct{}{}
		}
	}

	r.lastUpdate = time.Now()
	r.logger.Info("Built arbitrage graph",
		zap.Int("pools", len(r.pools)),
		zap.Int("tokens", len(r.graph)),
		zap.Int("edges", edgeCount),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", time.Since(start)))
}

// AddPool inserts a single pool without a full rebuild.
func (r *Registry) AddPool(p *Pool) {
	if !p.Valid() {
		r.logger.Warn("Rejecting pool without both tokens", zap.String("pool_id", p.ID))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pools = append(r.pools, p)
	r.graph[p.Token0] = append(r.graph[p.Token0], edge{neighbor: p.Token1, pool: p})
	r.graph[p.Token1] = append(r.graph[p.Token1], edge{neighbor: p.Token0, pool: p})
	if p.Chain != "" {
		r.activeChains[p.Chain] = struct{}{}
	}
	r.lastUpdate = time.Now()
}

// Refresh reloads the pool list from the feed and fully rebuilds the graph.
// Used when the upstream pool snapshot changes wholesale.
func (r *Registry) Refresh(ctx context.Context) error {
	if r.feed == nil {
		return fmt.Errorf("no pool feed configured")
	}

	pools, err := r.feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch pools: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildLocked(pools)
	return nil
}

// ActivateChain marks a chain as routable.
func (r *Registry) ActivateChain(chain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeChains[chain] = struct{}{}
	r.logger.Info("Activated chain", zap.String("chain", chain))
}

// DeactivateChain removes a chain from routing. Pools on an inactive chain
// are pruned during path expansion, not deleted from the graph.
func (r *Registry) DeactivateChain(chain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.activeChains, chain)
	r.logger.Info("Deactivated chain", zap.String("chain", chain))
}

// AddFilter registers a custom pool filter. Filters apply to subsequent
// pathfinding calls; they are AND-composed with chain activation.
func (r *Registry) AddFilter(f PoolFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, f)
}

// passesLocked checks chain activation plus every custom filter. Callers must
// hold at least the read lock.
func (r *Registry) passesLocked(p *Pool) bool {
	if p.Chain != "" {
		if _, ok := r.activeChains[p.Chain]; !ok {
			return false
		}
	}
	for _, f := range r.filters {
		if !f(p) {
			return false
		}
	}
	return true
}

// PoolsForToken returns every pool adjacent to the given token that passes
// chain activation and the registered filters.
func (r *Registry) PoolsForToken(token string) []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	edges := r.graph[token]
	out := make([]*Pool, 0, len(edges))
	for _, e := range edges {
		if r.passesLocked(e.pool) {
			out = append(out, e.pool)
		}
	}
	return out
}

// PoolsByPair returns all pools joining the two tokens, in either orientation.
func (r *Registry) PoolsByPair(token0, token1 string) []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Pool
	for _, p := range r.pools {
		if (p.Token0 == token0 && p.Token1 == token1) ||
			(p.Token0 == token1 && p.Token1 == token0) {
			out = append(out, p)
		}
	}
	return out
}

// FilterOptions narrows FilterPools results. Zero values mean "no constraint".
type FilterOptions struct {
	Chain        string
	Dex          string
	MinTVL       float64
	MinLiquidity float64
}

// FilterPools returns the pools matching every set constraint.
func (r *Registry) FilterPools(opts FilterOptions) []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Pool
	for _, p := range r.pools {
		if opts.Chain != "" && p.Chain != opts.Chain {
			continue
		}
		if opts.Dex != "" && p.Dex != opts.Dex {
			continue
		}
		if opts.MinTVL > 0 && p.TVL < opts.MinTVL {
			continue
		}
		if opts.MinLiquidity > 0 && p.Liquidity < opts.MinLiquidity {
			continue
		}
		out = append(out, p)
	}
	return out
}

// EdgeCount returns the number of directed adjacency entries.
func (r *Registry) EdgeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, edges := range r.graph {
		n += len(edges)
	}
	return n
}

// Snapshot returns registry statistics.
func (r *Registry) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chains := make([]string, 0, len(r.activeChains))
	for c := range r.activeChains {
		chains = append(chains, c)
	}

	edges := 0
	for _, e := range r.graph {
		edges += len(e)
	}

	return Stats{
		Pools:        len(r.pools),
		Tokens:       len(r.graph),
		Edges:        edges,
		ActiveChains: chains,
		LastUpdate:   r.lastUpdate,
	}
}
