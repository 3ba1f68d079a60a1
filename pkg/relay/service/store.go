package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/pebble"

	"codeuchat/pkg/ids"
	"codeuchat/pkg/relay"
)

const (
	bundlePrefix = "bundle/"
	bundleUpper  = "bundle0" // '0' sorts right after '/'
)

func bundleKey(id ids.ID) []byte {
	return []byte(fmt.Sprintf("%s%020d", bundlePrefix, uint64(id)))
}

// BundleStore is the relay's append-only bundle log on pebble. Keys are
// zero padded so lexical order is id order.
type BundleStore struct {
	db   *pebble.DB
	node *snowflake.Node
	log  *slog.Logger

	mu sync.Mutex // serializes id generation with the write
}

func OpenBundleStore(path string, node int64, log *slog.Logger) (*BundleStore, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	log.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		log.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &BundleStore{db: db, node: n, log: log}, nil
}

func (s *BundleStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.log.Info("pebble_closed")
	return err
}

// Append assigns the next id and persists the bundle.
func (s *BundleStore) Append(team ids.ID, req relay.WriteRequest) (relay.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := relay.Bundle{
		ID:           ids.ID(s.node.Generate().Int64()),
		Team:         team,
		User:         req.User,
		Conversation: req.Conversation,
		Message:      req.Message,
	}
	data, err := json.Marshal(b)
	if err != nil {
		return relay.Bundle{}, err
	}
	if err := s.db.Set(bundleKey(b.ID), data, pebble.Sync); err != nil {
		return relay.Bundle{}, fmt.Errorf("store bundle: %w", err)
	}
	return b, nil
}

// After returns up to limit bundles with ids greater than root.
func (s *BundleStore) After(root ids.ID, limit int) ([]relay.Bundle, error) {
	lower := bundleKey(root + 1)
	if root == ids.ID(^uint64(0)) {
		return nil, nil
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: []byte(bundleUpper),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]relay.Bundle, 0, limit)
	for iter.First(); iter.Valid() && len(out) < limit; iter.Next() {
		var b relay.Bundle
		if err := json.Unmarshal(iter.Value(), &b); err != nil {
			s.log.Error("bundle_decode_failed", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, b)
	}
	return out, iter.Error()
}

// Count walks the whole log. Used for metrics and tests.
func (s *BundleStore) Count() (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(bundlePrefix),
		UpperBound: []byte(bundleUpper),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}
