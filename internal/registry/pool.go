package registry

// Pool describes a single liquidity pool as delivered by the upstream
// registry feed. Pools are immutable once loaded; Dex and Chain are labels
// used only for filtering.
type Pool struct {
	ID           string  `json:"id"`
	Dex          string  `json:"dex"`
	Chain        string  `json:"chain"`
	Token0       string  `json:"token0"`
	Token1       string  `json:"token1"`
	Token0Symbol string  `json:"token0_symbol,omitempty"`
	Token1Symbol string  `json:"token1_symbol,omitempty"`
	Fee          float64 `json:"fee"`
	Liquidity    float64 `json:"liquidity"`
	Reserve0     float64 `json:"reserve0"`
	Reserve1     float64 `json:"reserve1"`
	TVL          float64 `json:"tvl"`
}

// Valid reports whether the pool carries both token addresses. Pools failing
// this check are skipped at graph build time, never aborting the build.
func (p *Pool) Valid() bool {
	return p.Token0 != "" && p.Token1 != ""
}

// Other returns the pool's counterpart token for the given token, and whether
// the token belongs to the pool at all.
func (p *Pool) Other(token string) (string, bool) {
	switch token {
	case p.Token0:
		return p.Token1, true
	case p.Token1:
		return p.Token0, true
	default:
		return "", false
	}
}

// PoolFilter is a predicate applied to pools during path expansion. Filters
// are AND-composed: a pool must pass every registered filter to be traversed.
type PoolFilter func(*Pool) bool
