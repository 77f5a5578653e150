// Package shieldedpool owns the "shielded_pool/" keyspace: the global
// nullifier set and the bridge from Spend/Output/Swap/SwapClaim actions
// into the sct component's commitment tree.
package shieldedpool

import (
	"encoding/hex"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/component/sct"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
	"golang.org/x/crypto/blake2b"
)

// Nullifier is a 32-byte tag uniquely derived from a spent note.
type Nullifier [32]byte

func (n Nullifier) key() []byte {
	return []byte("shielded_pool/nullifier/" + hex.EncodeToString(n[:]))
}

func (n Nullifier) String() string { return hex.EncodeToString(n[:]) }

// domainNullifier separates nullifier derivation from every other blake2b
// use in this codebase, per original_source/crypto/src/keys/nullifier.rs's
// (note_commitment, position, nullifier_key) derivation.
var domainNullifier = []byte("shieldnet-nullifier")

// DeriveNullifier computes the nullifier for a spent note, grounded on the
// original implementation's (note_commitment, position, nullifier_key)
// triple.
func DeriveNullifier(commitment tct.Commitment, pos tct.Position, nullifierKey []byte) Nullifier {
	h, _ := blake2b.New256(nullifierKey)
	h.Write(domainNullifier)
	h.Write(tct.MarshalHash(commitment))
	posBytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		posBytes[i] = byte(uint64(pos) >> (56 - 8*i))
	}
	h.Write(posBytes)
	var out Nullifier
	copy(out[:], h.Sum(nil))
	return out
}

// Component bridges to the sct component; a ShieldedPool cannot append
// commitments without it, matching the fixed dependency order (SCT before
// ShieldedPool).
type Component struct {
	SCT *sct.Component
}

func New(s *sct.Component) *Component {
	return &Component{SCT: s}
}

func (c *Component) InitChain(delta *store.Layer, req component.InitChainRequest) error {
	return nil
}

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error {
	return nil
}

func (c *Component) EndBlock(delta *store.Layer, req component.EndBlockRequest) error {
	return nil
}

// IsSpent checks the nullifier set against any reader: pass the block
// overlay during check_stateful so a nullifier spent earlier in the same
// block is already visible (same-block double-spend detection), or a
// Snapshot for purely historical checks.
func IsSpent(r store.Reader, n Nullifier) (bool, error) {
	b, err := r.Get(n.key())
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

// SpendNullifier records a nullifier as spent. Callers must have already
// verified it is unspent in check_stateful; execute only records it, it
// does not re-check (a concurrent spend within the same transaction's
// action list is impossible since actions within a tx execute serially in
// declared order against the same delta, so this write is immediately
// visible to the next action's read).
func SpendNullifier(delta *store.Layer, n Nullifier) {
	delta.Put(n.key(), []byte{1})
}

// AppendCommitment inserts a commitment into the tree via the sct
// component, returning its TCT position.
func (c *Component) AppendCommitment(policy tct.WitnessPolicy, commitment tct.Commitment) (tct.Position, error) {
	return c.SCT.Append(policy, commitment)
}

// CheckBalance is a placeholder for the homomorphic value-commitment sum
// check (spec.md §4.3's "balance commitments sum to zero modulo declared
// fee"). The zk value-commitment group itself is out of scope (proof
// system internals), so balances here are represented as plain signed
// int64 deltas the caller has already derived from a verified proof; this
// function is the one place that check lives so every action's
// CheckStateless can share it.
func CheckBalance(deltas []int64, fee uint64) error {
	var sum int64
	for _, d := range deltas {
		sum += d
	}
	if sum != int64(fee) {
		return apperrors.Tx(apperrors.ErrValueImbalance, "balance commitments do not sum to the declared fee")
	}
	return nil
}
