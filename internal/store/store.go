// Marquee - Catalog Similarity Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package store persists recommendation artifacts in BadgerDB.
//
// Each artifact occupies three keys written in one transaction:
//
//	artifact:<name>:meta    JSON Meta record
//	artifact:<name>:corpus  corpus blob
//	artifact:<name>:matrix  similarity matrix blob
//
// A reader therefore never observes a corpus from one build paired with the
// matrix of another.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/marquee/internal/recommend"
)

const keyPrefix = "artifact:"

var (
	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("artifact store is closed")

	// ErrEmptyName is returned for an empty artifact name.
	ErrEmptyName = errors.New("artifact name cannot be empty")
)

// Config holds BadgerDB settings for the artifact store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory; used by tests and ephemeral deployments.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Compression enables Snappy block compression.
	Compression bool

	// GCRatio is the discard ratio used by RunGC.
	GCRatio float64
}

// Meta describes a stored artifact.
type Meta struct {
	Name        string    `json:"name"`
	CorpusBytes int       `json:"corpus_bytes"`
	MatrixBytes int       `json:"matrix_bytes"`
	SavedAt     time.Time `json:"saved_at"`
}

// BadgerStore implements recommend.ArtifactRepository on top of BadgerDB.
type BadgerStore struct {
	mu     sync.RWMutex
	db     *badger.DB
	cfg    Config
	closed bool
	logger zerolog.Logger
}

// Open opens (or creates) the artifact store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("artifact store path is required unless in-memory")
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &BadgerStore{db: db, cfg: cfg, logger: logger.With().Str("component", "artifact_store").Logger()}
	s.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("compression", cfg.Compression).
		Msg("artifact store opened")
	return s, nil
}

func artifactKey(name, part string) []byte {
	return []byte(keyPrefix + name + ":" + part)
}

func (s *BadgerStore) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SaveArtifact stores both blobs of an artifact atomically, replacing any
// previous artifact with the same name.
func (s *BadgerStore) SaveArtifact(ctx context.Context, name string, a *recommend.Artifact) error {
	if name == "" {
		return ErrEmptyName
	}
	if a == nil {
		return fmt.Errorf("artifact %q is nil", name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	meta := Meta{Name: name, CorpusBytes: len(a.Corpus), MatrixBytes: len(a.Matrix), SavedAt: time.Now().UTC()}
	metaData, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal artifact meta: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(artifactKey(name, "meta"), metaData); err != nil {
			return err
		}
		if err := txn.Set(artifactKey(name, "corpus"), a.Corpus); err != nil {
			return err
		}
		return txn.Set(artifactKey(name, "matrix"), a.Matrix)
	})
	if err != nil {
		return fmt.Errorf("save artifact %q: %w", name, err)
	}

	s.logger.Debug().
		Str("name", name).
		Int("corpus_bytes", meta.CorpusBytes).
		Int("matrix_bytes", meta.MatrixBytes).
		Msg("artifact saved")
	return nil
}

// LoadArtifact reads both blobs of the named artifact. A missing artifact
// yields recommend.ErrNotFound.
func (s *BadgerStore) LoadArtifact(ctx context.Context, name string) (*recommend.Artifact, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var art recommend.Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		corpus, err := getValue(txn, artifactKey(name, "corpus"))
		if err != nil {
			return err
		}
		matrix, err := getValue(txn, artifactKey(name, "matrix"))
		if err != nil {
			return err
		}
		art = recommend.Artifact{Corpus: corpus, Matrix: matrix}
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("artifact %q: %w", name, recommend.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact %q: %w", name, err)
	}
	return &art, nil
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// DeleteArtifact removes the named artifact. Deleting a missing artifact is not an error.
func (s *BadgerStore) DeleteArtifact(ctx context.Context, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, part := range []string{"meta", "corpus", "matrix"} {
			if err := txn.Delete(artifactKey(name, part)); err != nil {
				return fmt.Errorf("delete artifact %q %s: %w", name, part, err)
			}
		}
		return nil
	})
}

// ListArtifacts returns the metadata of every stored artifact, ordered by name.
func (s *BadgerStore) ListArtifacts(ctx context.Context) ([]Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var metas []Meta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), ":meta") {
				continue
			}
			var m Meta
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("unmarshal artifact meta: %w", err)
			}
			metas = append(metas, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// RunGC reclaims value log space until badger reports nothing to rewrite.
func (s *BadgerStore) RunGC() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.cfg.InMemory {
		return nil
	}

	for {
		err := s.db.RunValueLogGC(s.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the underlying database. It is safe to call more than once.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info().Msg("closing artifact store")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}
