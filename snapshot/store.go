package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/relgraph"
	"github.com/syssam/relgraph/graph"
)

// Store persists snapshots in a relgraph.Cache.
type Store struct {
	cache relgraph.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets the expiry of saved snapshots. Zero keeps them forever.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = d
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

// NewStore returns a Store writing to c.
func NewStore(c relgraph.Cache, opts ...StoreOption) *Store {
	s := &Store{cache: c}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Save captures g and writes it under key.
func (s *Store) Save(ctx context.Context, key relgraph.CacheKey, g *graph.Graph) error {
	snap := Capture(g)
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key.String(), data, s.ttl); err != nil {
		return fmt.Errorf("snapshot: save %s: %w", key, err)
	}
	s.log.Debug("snapshot saved", "key", key.String(), "records", len(snap.Records), "bytes", len(data))
	return nil
}

// Load reads the snapshot under key and restores it into g.
// It returns an error matching relgraph.ErrNotFound when nothing is stored.
func (s *Store) Load(ctx context.Context, key relgraph.CacheKey, g *graph.Graph) error {
	data, err := s.cache.Get(ctx, key.String())
	if err != nil {
		return fmt.Errorf("snapshot: load %s: %w", key, err)
	}
	if data == nil {
		return fmt.Errorf("snapshot: load %s: %w", key, relgraph.ErrNotFound)
	}
	snap, err := Decode(data)
	if err != nil {
		return err
	}
	if err := Restore(g, snap); err != nil {
		return err
	}
	s.log.Debug("snapshot restored", "key", key.String(), "records", len(snap.Records))
	return nil
}

// Delete removes the snapshot under key.
func (s *Store) Delete(ctx context.Context, key relgraph.CacheKey) error {
	return s.cache.Delete(ctx, key.String())
}

// Purge removes every version of the snapshot named name in namespace.
func (s *Store) Purge(ctx context.Context, namespace, name string) error {
	prefix := relgraph.CacheKey{Namespace: namespace, Name: name}.String()
	prefix = prefix[:len(prefix)-len("v0")]
	return s.cache.DeletePrefix(ctx, prefix)
}
