package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeRegistryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileFeedFlatArray(t *testing.T) {
	path := writeRegistryFile(t, `[
		{"id": "p1", "dex": "raydium", "chain": "solana", "token0": "SOL", "token1": "USDC", "fee": 0.003},
		{"id": "p2", "dex": "orca", "chain": "solana", "token0": "USDC", "token1": "RAY", "fee": 0.0025}
	]`)

	feed := NewFileFeed(path, zap.NewNop())
	pools, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "p1", pools[0].ID)
	assert.Equal(t, 0.0025, pools[1].Fee)
}

func TestFileFeedChainKeyed(t *testing.T) {
	path := writeRegistryFile(t, `{
		"solana": {"pools": [{"id": "p1", "token0": "SOL", "token1": "USDC", "fee": 0.003}]},
		"ethereum": [{"id": "p2", "token0": "WETH", "token1": "USDC", "fee": 0.003}]
	}`)

	feed := NewFileFeed(path, zap.NewNop())
	pools, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 2)

	byID := map[string]*Pool{}
	for _, p := range pools {
		byID[p.ID] = p
	}
	assert.Equal(t, "solana", byID["p1"].Chain, "chain label is stamped from the key")
	assert.Equal(t, "ethereum", byID["p2"].Chain)
}

func TestFileFeedChainLabelNotOverwritten(t *testing.T) {
	path := writeRegistryFile(t, `{
		"solana": [{"id": "p1", "chain": "custom", "token0": "SOL", "token1": "USDC", "fee": 0.003}]
	}`)

	feed := NewFileFeed(path, zap.NewNop())
	pools, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "custom", pools[0].Chain)
}

func TestFileFeedRejectsMalformedFile(t *testing.T) {
	path := writeRegistryFile(t, `"not a registry"`)

	feed := NewFileFeed(path, zap.NewNop())
	_, err := feed.Fetch(context.Background())
	assert.Error(t, err)
}

func TestMultiFeedMerges(t *testing.T) {
	a := &StaticFeed{Pools: []*Pool{pairPool("p1", "A", "B", 0.003)}}
	b := &StaticFeed{Pools: []*Pool{pairPool("p2", "B", "C", 0.003)}}

	pools, err := NewMultiFeed(a, b).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 2)
}
