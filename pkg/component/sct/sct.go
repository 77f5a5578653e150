// Package sct owns the tiered commitment tree (pkg/tct) as a component:
// the single in-process accumulator every note/swap commitment is
// inserted into, with its root published into the verifiable keyspace so
// it contributes to the app hash alongside every other component's state.
package sct

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
)

const keyRoot = "sct/root"

// Component wraps the live tree. It is the only component holding
// meaningful in-memory state across blocks (the tree itself); every other
// component reads and writes exclusively through the store. This mirrors
// the spec's own framing of the TCT as an append-only accumulator with its
// own incremental serialization, distinct from the generic verifiable KV
// tree.
type Component struct {
	Tree *tct.Tree
}

func New() *Component {
	return &Component{Tree: tct.New()}
}

func (c *Component) InitChain(delta *store.Layer, req component.InitChainRequest) error {
	c.Tree = tct.New()
	return c.publishRoot(delta)
}

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error {
	return nil
}

// Append inserts a commitment produced by an upstream action's execute
// phase (ShieldedPool or DEX). Downstream components must call this rather
// than touching c.Tree directly so the position it returns is recorded
// consistently.
func (c *Component) Append(policy tct.WitnessPolicy, commitment tct.Commitment) (tct.Position, error) {
	pos, err := c.Tree.Insert(policy, commitment)
	if err != nil {
		return 0, apperrors.Tx(apperrors.ErrConsensusRuleViolation, err.Error())
	}
	return pos, nil
}

// EndBlock closes the current block's item tier and republishes the root.
func (c *Component) EndBlock(delta *store.Layer, req component.EndBlockRequest) error {
	if err := c.Tree.EndBlock(); err != nil {
		return apperrors.Block(apperrors.ErrInvariantViolation, err.Error())
	}
	return c.publishRoot(delta)
}

// EndEpoch closes the current epoch and republishes the root. It returns
// the closing root so the orchestrator can attach it to the compact
// block's epoch_root field.
func (c *Component) EndEpoch(delta *store.Layer) (tct.Hash, error) {
	root := c.Tree.Root()
	if err := c.Tree.EndEpoch(); err != nil {
		return tct.Hash{}, apperrors.Block(apperrors.ErrInvariantViolation, err.Error())
	}
	if err := c.publishRoot(delta); err != nil {
		return tct.Hash{}, err
	}
	return root, nil
}

func (c *Component) publishRoot(delta *store.Layer) error {
	root := c.Tree.Root()
	delta.Put([]byte(keyRoot), tct.MarshalHash(root))
	return nil
}

// PublishedRoot reads the last-published root out of a reader, for
// read-only callers (e.g. IBC client-state verification context).
func PublishedRoot(r store.Reader) (tct.Hash, error) {
	b, err := r.Get([]byte(keyRoot))
	if err != nil || b == nil {
		return tct.Hash{}, err
	}
	return tct.UnmarshalHash(b), nil
}

// MarshalPosition is a small convenience used by actions that need to
// persist a Position as a JSON-friendly value (e.g. in a nullifier
// record).
func MarshalPosition(p tct.Position) json.RawMessage {
	b, _ := json.Marshal(uint64(p))
	return b
}
