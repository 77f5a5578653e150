// Package tct implements the tiered commitment tree: the append-only,
// witnessable structure that accumulates note and swap commitments across a
// block and an epoch into a single authenticated root included in the app
// hash. The tree is organized as three nested quad-branching tiers of
// height 8 (item, block, epoch), giving an overall height of 24 and a
// 48-bit position space, matching the teacher's flat Merkle tree
// (pkg/merkle/tree.go) generalized from a single binary level to a nested
// quad structure with per-leaf witness retention.
package tct

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2b"
)

// Hash is a single BN254 scalar-field element. Commitments, domain
// separators, and tree node values all live in this field so interior
// nodes can be produced by field arithmetic instead of a byte-oriented hash,
// matching how the rest of the gnark-crypto-based pack represents
// field-native data.
type Hash = fr.Element

// Commitment is a leaf value presented for insertion: a note or swap
// commitment computed upstream by the shielded-pool or DEX components.
type Commitment = Hash

// domain separators, one per node "shape" the tree produces. Keeping these
// distinct prevents a leaf hash from ever colliding with an interior node
// hash of any height, and keeps item/block/epoch tiers from colliding with
// each other even though they use the same fold code.
const (
	domainLeaf  = "shieldnet-tct-leaf"
	domainNode  = "shieldnet-tct-node"
	domainEmpty = "shieldnet-tct-empty"
)

func feFromLabel(label string) Hash {
	sum := blake2b.Sum512([]byte(label))
	var h Hash
	h.SetBytes(sum[:32])
	return h
}

// CommitmentFromBytes derives a field-element commitment from arbitrary
// opaque bytes (e.g. a note or swap payload's serialized ciphertext),
// exposed for action handlers that need to turn wire bytes into a leaf
// value without depending on tct's internal label-hashing scheme.
func CommitmentFromBytes(b []byte) Commitment {
	sum := blake2b.Sum512(b)
	var h Hash
	h.SetBytes(sum[:32])
	return h
}

// leafHash commits a raw note/swap commitment into the tree's leaf domain.
func leafHash(c Commitment) Hash {
	return poseidonHash(feFromLabel(domainLeaf), c)
}

// nodeHash combines four children at the given tier height (1..8, counted
// from the leaves of that tier upward) into their parent's hash.
func nodeHash(height int, children [4]Hash) Hash {
	tag := feFromLabel(domainNode)
	var heightFE Hash
	heightFE.SetUint64(uint64(height))
	tag.Add(&tag, &heightFE)
	return poseidonHashN(tag, children[:])
}

// poseidonHash and poseidonHashN run a width-(1+len(inputs)) Poseidon-shaped
// permutation and return the first limb of the resulting state (a
// single-squeeze sponge, sufficient since every caller here needs exactly
// one field element of output).
func poseidonHash(tag Hash, input Hash) Hash {
	return poseidonHashN(tag, []Hash{input})
}

func poseidonHashN(tag Hash, inputs []Hash) Hash {
	state := make([]Hash, 1+len(inputs))
	state[0] = tag
	copy(state[1:], inputs)
	poseidonPermute(state)
	return state[0]
}

// --- Poseidon-shaped permutation -------------------------------------------
//
// Parameters are generated deterministically from a fixed label via
// blake2b, rather than hardcoded from a published Poseidon instance: this
// tree does not feed a zk-proof circuit (the proof system itself is out of
// scope), so what matters is that every node derives byte-identical round
// constants and MDS matrices for a given width, not that the parameters
// match an external specification. alpha=5 is used because it is the
// standard S-box exponent for BN254's scalar field (gcd(5, r-1) = 1).

const (
	fullRounds    = 8
	partialRounds = 56
)

type poseidonParams struct {
	roundConstants [][]Hash // [round][width]
	mds            [][]Hash // [width][width]
}

var (
	paramsCache   = map[int]*poseidonParams{}
	paramsCacheMu sync.Mutex
)

func paramsForWidth(width int) *poseidonParams {
	paramsCacheMu.Lock()
	defer paramsCacheMu.Unlock()
	if p, ok := paramsCache[width]; ok {
		return p
	}
	p := buildParams(width)
	paramsCache[width] = p
	return p
}

func buildParams(width int) *poseidonParams {
	totalRounds := fullRounds + partialRounds
	rc := make([][]Hash, totalRounds)
	for r := 0; r < totalRounds; r++ {
		row := make([]Hash, width)
		for i := 0; i < width; i++ {
			row[i] = kdfElement("shieldnet-tct-poseidon-rc", width, r, i)
		}
		rc[r] = row
	}

	// Cauchy-matrix MDS: M[i][j] = 1 / (x_i - y_j), x_i = i+1, y_j = width+j+1.
	// x and y ranges never overlap, so the matrix is well-defined and MDS by
	// the standard Cauchy-matrix argument used in the Poseidon paper.
	mds := make([][]Hash, width)
	for i := 0; i < width; i++ {
		row := make([]Hash, width)
		var xi Hash
		xi.SetUint64(uint64(i + 1))
		for j := 0; j < width; j++ {
			var yj Hash
			yj.SetUint64(uint64(width + j + 1))
			var diff Hash
			diff.Sub(&xi, &yj)
			row[j].Inverse(&diff)
		}
		mds[i] = row
	}

	return &poseidonParams{roundConstants: rc, mds: mds}
}

// kdfElement derives a single field element deterministically from a label
// and integer coordinates, used to seed round constants without hardcoding
// a published constant table.
func kdfElement(label string, width, round, index int) Hash {
	input := make([]byte, 0, len(label)+24)
	input = append(input, label...)
	input = appendUint64(input, uint64(width))
	input = appendUint64(input, uint64(round))
	input = appendUint64(input, uint64(index))
	sum := blake2b.Sum512(input)
	var h Hash
	h.SetBytes(sum[:32])
	return h
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func sbox(x *Hash) {
	var x2, x4 Hash
	x2.Square(x)
	x4.Square(&x2)
	x.Mul(&x4, x)
}

func poseidonPermute(state []Hash) {
	width := len(state)
	p := paramsForWidth(width)
	totalRounds := fullRounds + partialRounds
	half := fullRounds / 2

	for r := 0; r < totalRounds; r++ {
		for i := 0; i < width; i++ {
			state[i].Add(&state[i], &p.roundConstants[r][i])
		}

		if r < half || r >= totalRounds-half {
			for i := 0; i < width; i++ {
				sbox(&state[i])
			}
		} else {
			sbox(&state[0])
		}

		next := make([]Hash, width)
		for i := 0; i < width; i++ {
			var acc Hash
			for j := 0; j < width; j++ {
				var term Hash
				term.Mul(&p.mds[i][j], &state[j])
				acc.Add(&acc, &term)
			}
			next[i] = acc
		}
		copy(state, next)
	}
}
