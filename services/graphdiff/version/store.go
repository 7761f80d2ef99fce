// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package version implements the version store: an id-keyed registry of
// stored graph versions and computed diffs.
//
// The hot tier is an in-memory map guarded by a RWMutex. An optional
// BadgerDB warm tier persists entries across restarts; when configured,
// the store reloads everything from disk at construction. The store is an
// explicit dependency-injected object: empty at construction, it grows
// via Store* calls and never evicts.
package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/grafity/services/graphdiff/diff"
	"github.com/AleutianAI/grafity/services/graphdiff/graph"
)

// ErrNotFound indicates a version or diff id absent from the store.
var ErrNotFound = errors.New("not found in version store")

// Badger key prefixes for the two record kinds.
const (
	versionPrefix = "version/"
	diffPrefix    = "diff/"
)

// Config configures a Store.
type Config struct {
	// DB is an optional opened BadgerDB for persistence. Nil keeps the
	// store memory-only. The store does not own the DB; the caller
	// closes it.
	DB *badger.DB

	// Logger receives persistence diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Store is the concurrency-safe version/diff registry.
type Store struct {
	mu       sync.RWMutex
	versions map[string]*graph.Version
	diffs    map[string]*diff.GraphDiff
	db       *badger.DB
	logger   *slog.Logger
}

// NewStore constructs a Store. With a persistent DB configured, existing
// records are loaded before the store is returned.
func NewStore(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		versions: make(map[string]*graph.Version),
		diffs:    make(map[string]*diff.GraphDiff),
		db:       cfg.DB,
		logger:   logger,
	}
	if s.db != nil {
		if err := s.loadAll(); err != nil {
			return nil, fmt.Errorf("load version store: %w", err)
		}
		logger.Info("version store loaded",
			"versions", len(s.versions), "diffs", len(s.diffs))
	}
	return s, nil
}

// StoreVersion registers a version. A missing id or timestamp is filled
// in; the snapshot is kept as given (snapshots are immutable by
// convention).
func (s *Store) StoreVersion(v *graph.Version) error {
	if v == nil || v.Graph == nil {
		return errors.New("version and its graph must not be nil")
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	s.versions[v.ID] = v
	s.mu.Unlock()

	return s.persist(versionPrefix+v.ID, v)
}

// GetVersion looks up a stored version by id.
func (s *Store) GetVersion(id string) (*graph.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	return v, nil
}

// VersionHistory returns all stored versions sorted by timestamp,
// newest first. Ties break on id for deterministic output.
func (s *Store) VersionHistory() []*graph.Version {
	s.mu.RLock()
	out := make([]*graph.Version, 0, len(s.versions))
	for _, v := range s.versions {
		out = append(out, v)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// StoreDiff registers a computed diff for later retrieval.
func (s *Store) StoreDiff(d *diff.GraphDiff) error {
	if d == nil {
		return errors.New("diff must not be nil")
	}
	if d.ID == "" {
		return errors.New("diff has no id")
	}

	s.mu.Lock()
	s.diffs[d.ID] = d
	s.mu.Unlock()

	return s.persist(diffPrefix+d.ID, d)
}

// GetDiff looks up a stored diff by id.
func (s *Store) GetDiff(id string) (*diff.GraphDiff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.diffs[id]
	if !ok {
		return nil, fmt.Errorf("diff %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// Len returns the number of stored versions and diffs.
func (s *Store) Len() (versions, diffs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions), len(s.diffs)
}

// persist writes one record to the warm tier, if configured. Persistence
// failures are logged and returned but leave the hot tier intact.
func (s *Store) persist(key string, record any) error {
	if s.db == nil {
		return nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		s.logger.Error("version store persist failed", "key", key, "error", err.Error())
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// loadAll hydrates the hot tier from the warm tier.
func (s *Store) loadAll() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(raw []byte) error {
				switch {
				case strings.HasPrefix(key, versionPrefix):
					var v graph.Version
					if err := json.Unmarshal(raw, &v); err != nil {
						return fmt.Errorf("decode %s: %w", key, err)
					}
					s.versions[v.ID] = &v
				case strings.HasPrefix(key, diffPrefix):
					var d diff.GraphDiff
					if err := json.Unmarshal(raw, &d); err != nil {
						return fmt.Errorf("decode %s: %w", key, err)
					}
					s.diffs[d.ID] = &d
				default:
					s.logger.Warn("skipping unknown record", "key", key)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
