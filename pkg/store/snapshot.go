package store

import "fmt"

const (
	verifiablePrefix    = "v/"
	nonverifiablePrefix = "nv/"
)

func vKey(key []byte) []byte  { return append([]byte(verifiablePrefix), key...) }
func nvKey(key []byte) []byte { return append([]byte(nonverifiablePrefix), key...) }

// Snapshot is a read-only view of the substrate at a fixed version. It is
// the base of every Overlay/Delta chain: reads that miss every layer above
// it fall through to the persisted engine at the version the snapshot was
// taken at.
//
// Historical snapshots at versions older than the latest committed version
// are not retained by this implementation: every caller in this state
// machine takes a Snapshot only at the start of a block's check_stateful
// phase, which is always the current latest version, so the substrate does
// not need to serve reads at arbitrary past versions. This is a deliberate
// scoping decision (see DESIGN.md), not an oversight.
type Snapshot struct {
	kv      KV
	version int64
}

// Version reports the tree version this snapshot was opened against.
func (s *Snapshot) Version() int64 { return s.version }

// Get resolves a verifiable-namespace key against the persisted engine.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	return s.kv.Get(vKey(key))
}

// NonverifiableGet resolves a non-verifiable-namespace key.
func (s *Snapshot) NonverifiableGet(key []byte) ([]byte, error) {
	return s.kv.Get(nvKey(key))
}

// ObjectGet always misses at the Snapshot base: the ephemeral object store
// never persists past a block boundary, so a fresh Snapshot never has one.
func (s *Snapshot) ObjectGet(key string) ([]byte, bool, error) {
	return nil, false, nil
}

// PrefixIterator returns an ascending iterator over verifiable keys sharing
// the given prefix, used by components that need to enumerate a keyspace
// (e.g. all validators under "staking/validator/").
func (s *Snapshot) PrefixIterator(prefix []byte) (Iterator, error) {
	start := vKey(prefix)
	end := prefixUpperBound(start)
	return s.kv.Iterator(start, end)
}

// prefixUpperBound computes the smallest key greater than every key sharing
// the given prefix, suitable as an iterator's exclusive end bound.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	// all 0xff: unbounded
	return nil
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot(version=%d)", s.version)
}
