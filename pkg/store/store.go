package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/shieldnet/core/pkg/apperrors"
)

// metaVersionKey is the fixed key the current tree version is cached under
// so a restarted process can resume without rescanning the keyspace.
var metaVersionKey = []byte("meta/version")

// Store is the top-level storage substrate: a persisted engine backing the
// verifiable and non-verifiable namespaces, plus bookkeeping for the
// current tree version. Exactly one writer (the application orchestrator)
// calls Commit per block; any number of readers may hold Snapshots
// concurrently.
type Store struct {
	mu      sync.RWMutex
	kv      KV
	version int64
}

// Open attaches a Store to a backing KV engine, restoring the last
// committed version if one was persisted.
func Open(kv KV) (*Store, error) {
	s := &Store{kv: kv}
	if b, err := kv.Get(metaVersionKey); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, fmt.Sprintf("reading meta version: %v", err))
	} else if len(b) == 8 {
		s.version = int64(binary.BigEndian.Uint64(b))
	}
	return s, nil
}

// Version returns the latest committed tree version.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// NewSnapshot opens a read-only view pinned at the latest committed
// version.
func (s *Store) NewSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Snapshot{kv: s.kv, version: s.version}
}

// NewBlockOverlay opens the per-block working Overlay atop the latest
// Snapshot. The application orchestrator holds exactly one of these per
// block, merges each transaction's Delta into it in consensus order, and
// passes it to Commit at block end.
func (s *Store) NewBlockOverlay() *Layer {
	return NewOverlay(s.NewSnapshot())
}

// Commit applies an Overlay's accumulated verifiable and non-verifiable
// writes to the persisted engine, advances the tree version, and returns
// the new version and app hash. Ephemeral object-store state is dropped:
// it never contributes to the app hash and never survives a block
// boundary. Commit failing is block-fatal: the engine's durability
// guarantee has been violated and the node must halt rather than silently
// diverge from its peers.
func (s *Store) Commit(overlay *Layer) (int64, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writes, deletes := overlay.flattenedWrites()
	nvWrites, nvDeletes := overlay.flattenedNonverifiable()

	for k := range deletes {
		if err := s.kv.Delete(vKey([]byte(k))); err != nil {
			return 0, nil, apperrors.Block(apperrors.ErrCommitFailure, err.Error())
		}
	}
	for k, v := range writes {
		if err := s.kv.Set(vKey([]byte(k)), v); err != nil {
			return 0, nil, apperrors.Block(apperrors.ErrCommitFailure, err.Error())
		}
	}
	for k := range nvDeletes {
		if err := s.kv.Delete(nvKey([]byte(k))); err != nil {
			return 0, nil, apperrors.Block(apperrors.ErrCommitFailure, err.Error())
		}
	}
	for k, v := range nvWrites {
		if err := s.kv.Set(nvKey([]byte(k)), v); err != nil {
			return 0, nil, apperrors.Block(apperrors.ErrCommitFailure, err.Error())
		}
	}

	root, err := s.recomputeRoot()
	if err != nil {
		return 0, nil, apperrors.Block(apperrors.ErrCommitFailure, err.Error())
	}

	s.version++
	vb := make([]byte, 8)
	binary.BigEndian.PutUint64(vb, uint64(s.version))
	if err := s.kv.Set(metaVersionKey, vb); err != nil {
		return 0, nil, apperrors.Block(apperrors.ErrCommitFailure, err.Error())
	}

	return s.version, root, nil
}

// recomputeRoot rebuilds the verifiable root from the full persisted
// verifiable keyspace. See tree.go for why this is a full rebuild rather
// than an incremental patch.
func (s *Store) recomputeRoot() ([]byte, error) {
	it, err := s.kv.Iterator([]byte(verifiablePrefix), prefixUpperBound([]byte(verifiablePrefix)))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	entries := make(map[string][]byte)
	for ; it.Valid(); it.Next() {
		k := string(it.Key()[len(verifiablePrefix):])
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		entries[k] = v
	}
	return verifiableRoot(entries), nil
}

// Close releases the backing engine.
func (s *Store) Close() error {
	return s.kv.Close()
}
