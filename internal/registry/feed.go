package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PoolFeed supplies pool snapshots to the registry. Implementations may read
// files, databases or remote services; the registry only needs Fetch.
type PoolFeed interface {
	Fetch(ctx context.Context) ([]*Pool, error)
}

// FileFeed loads a pool registry file. Two formats are accepted: a flat pool
// array, or an object keyed by chain where each value is either a pool array
// or an object with a "pools" field.
type FileFeed struct {
	path   string
	logger *zap.Logger
}

// chainEntry is the object-valued variant of a chain-keyed registry file.
type chainEntry struct {
	Pools []*Pool `json:"pools"`
}

// NewFileFeed builds a feed over the given registry file.
func NewFileFeed(path string, logger *zap.Logger) *FileFeed {
	return &FileFeed{
		path:   filepath.Clean(path),
		logger: logger.Named("pool_feed"),
	}
}

// Fetch reads and decodes the registry file, retrying transient read errors
// with exponential backoff.
func (f *FileFeed) Fetch(ctx context.Context) ([]*Pool, error) {
	op := func() ([]*Pool, error) {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, err
		}
		return f.decode(data)
	}

	pools, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(15*time.Second))
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", f.path, err)
	}

	f.logger.Info("Loaded pool registry",
		zap.String("path", f.path),
		zap.Int("pools", len(pools)))
	return pools, nil
}

func (f *FileFeed) decode(data []byte) ([]*Pool, error) {
	// Flat pool array.
	var flat []*Pool
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, nil
	}

	// Chain-keyed object.
	var byChain map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &byChain); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unrecognized registry format: %w", err))
	}

	var pools []*Pool
	for chain, raw := range byChain {
		var entry chainEntry
		if err := json.Unmarshal(raw, &entry); err == nil && entry.Pools != nil {
			pools = append(pools, withChain(entry.Pools, chain)...)
			continue
		}
		var list []*Pool
		if err := json.Unmarshal(raw, &list); err == nil {
			pools = append(pools, withChain(list, chain)...)
			continue
		}
		f.logger.Warn("Skipping malformed chain entry", zap.String("chain", chain))
	}
	return pools, nil
}

// withChain stamps the chain label onto pools that did not carry their own.
func withChain(pools []*Pool, chain string) []*Pool {
	for _, p := range pools {
		if p.Chain == "" {
			p.Chain = chain
		}
	}
	return pools
}

// MultiFeed fans out to several feeds concurrently and merges their pools.
// One failing feed fails the whole fetch; partial snapshots would silently
// shrink the graph.
type MultiFeed struct {
	feeds []PoolFeed
}

// NewMultiFeed combines the given feeds.
func NewMultiFeed(feeds ...PoolFeed) *MultiFeed {
	return &MultiFeed{feeds: feeds}
}

// Fetch gathers pools from every feed.
func (m *MultiFeed) Fetch(ctx context.Context) ([]*Pool, error) {
	results := make([][]*Pool, len(m.feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, feed := range m.feeds {
		g.Go(func() error {
			pools, err := feed.Fetch(ctx)
			if err != nil {
				return err
			}
			results[i] = pools
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []*Pool
	for _, pools := range results {
		merged = append(merged, pools...)
	}
	return merged, nil
}

// StaticFeed serves a fixed pool list. Useful for tests and backtests.
type StaticFeed struct {
	Pools []*Pool
}

// Fetch returns the configured pools.
func (s *StaticFeed) Fetch(context.Context) ([]*Pool, error) {
	return s.Pools, nil
}
