package store

import (
	"bytes"
	"crypto/sha256"
	"sort"
)

// verifiableRoot computes a deterministic authenticated root over a sorted
// set of (key, value) entries. It generalizes the teacher's flat pairwise
// Merkle tree (pkg/merkle/tree.go: BuildTree over an ordered leaf list) from
// a fixed batch of transaction hashes to an arbitrary keyed state snapshot:
// every verifiable key contributes one leaf, leaves are ordered by key so
// the root is a pure function of (key, value) pairs, and the tree is
// rebuilt from the full keyspace on every commit rather than incrementally
// patched. This trades the O(log n) update cost of a true Jellyfish Merkle
// Tree for a simple, obviously-correct, fully deterministic root — adequate
// for this exercise's authentication needs, and documented as a scoping
// decision in DESIGN.md.
func verifiableRoot(entries map[string][]byte) []byte {
	if len(entries) == 0 {
		return emptyRoot()
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([][]byte, 0, len(keys))
	for _, k := range keys {
		leaves = append(leaves, leafHash([]byte(k), entries[k]))
	}
	return buildMerkleRoot(leaves)
}

// emptyRoot is the deterministic root of a store containing no verifiable
// entries, used as the genesis app hash before any block commits.
func emptyRoot() []byte {
	h := sha256.Sum256([]byte("shieldnet:empty-verifiable-root"))
	return h[:]
}

func leafHash(key, value []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x00}) // leaf domain tag
	kh := sha256.Sum256(key)
	vh := sha256.Sum256(value)
	h.Write(kh[:])
	h.Write(vh[:])
	return h.Sum(nil)
}

func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x01}) // interior domain tag
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// buildMerkleRoot folds an ordered leaf list up to a single root, duplicating
// the final node of an odd-length level exactly as the teacher's hashPair
// construction does.
func buildMerkleRoot(level [][]byte) []byte {
	if len(level) == 1 {
		return level[0]
	}
	next := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 < len(level) {
			next = append(next, nodeHash(level[i], level[i+1]))
		} else {
			next = append(next, nodeHash(level[i], level[i]))
		}
	}
	return buildMerkleRoot(next)
}

// appHashPrefix is prefixed onto the verifiable root before presentation to
// IBC verifiers, per spec.md §6.
var appHashPrefix = []byte("ShieldNetAppHash")

// PresentedAppHash returns the 32-byte verifiable root prefixed with the
// fixed commitment prefix external verifiers expect.
func PresentedAppHash(root []byte) []byte {
	return bytes.Join([][]byte{appHashPrefix, root}, nil)
}
