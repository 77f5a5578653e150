// Package chain owns the "chain/" keyspace: chain-wide parameters and the
// current block's height/time, read by every other component. It is first
// in the dependency order since everything downstream reads chain
// parameters (epoch_duration, active_validator_limit, ...) as an input.
package chain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/store"
)

const (
	keyParams      = "chain/params"
	keyBlockHeight = "chain/block_height"
	keyBlockTime   = "chain/block_time"
)

// Params are the chain parameters fixed at genesis and mutable only
// through a passed ParameterChange governance proposal.
type Params struct {
	ChainID                       string `json:"chain_id" yaml:"chain_id"`
	EpochDuration                 uint64 `json:"epoch_duration" yaml:"epoch_duration"`
	UnbondingEpochs               uint64 `json:"unbonding_epochs" yaml:"unbonding_epochs"`
	ActiveValidatorLimit          int    `json:"active_validator_limit" yaml:"active_validator_limit"`
	BaseRewardRate                uint64 `json:"base_reward_rate" yaml:"base_reward_rate"`
	SlashingPenaltyMisbehaviorBps uint64 `json:"slashing_penalty_misbehavior_bps" yaml:"slashing_penalty_misbehavior_bps"`
	SlashingPenaltyDowntimeBps    uint64 `json:"slashing_penalty_downtime_bps" yaml:"slashing_penalty_downtime_bps"`
	SignedBlocksWindowLen         uint64 `json:"signed_blocks_window_len" yaml:"signed_blocks_window_len"`
	MissedBlocksMaximum           uint64 `json:"missed_blocks_maximum" yaml:"missed_blocks_maximum"`
	IBCEnabled                    bool   `json:"ibc_enabled" yaml:"ibc_enabled"`
	InboundICS20Enabled           bool   `json:"inbound_ics20_enabled" yaml:"inbound_ics20_enabled"`
	OutboundICS20Enabled          bool   `json:"outbound_ics20_enabled" yaml:"outbound_ics20_enabled"`
	DexMaxHops                    int    `json:"dex_max_hops" yaml:"dex_max_hops"`
	DexArbToken                   string `json:"dex_arb_token" yaml:"dex_arb_token"`
	GovernanceQuorumBps           uint64 `json:"governance_quorum_bps" yaml:"governance_quorum_bps"`
	GovernancePassBps             uint64 `json:"governance_pass_bps" yaml:"governance_pass_bps"`
}

// Component holds no in-memory state: everything is read from and written
// to the snapshot/delta passed in, per spec.md §9's "never cache them as
// globals" design note.
type Component struct{}

func New() *Component { return &Component{} }

func (c *Component) InitChain(delta *store.Layer, params Params, req component.InitChainRequest) error {
	b, err := json.Marshal(params)
	if err != nil {
		return apperrors.Block(apperrors.ErrInvariantViolation, err.Error())
	}
	delta.Put([]byte(keyParams), b)
	return c.BeginBlock(delta, component.BeginBlockRequest{Height: 0, Time: req.Time})
}

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error {
	delta.Put([]byte(keyBlockHeight), encodeUint64(uint64(req.Height)))
	tb, err := req.Time.MarshalBinary()
	if err != nil {
		return err
	}
	delta.Put([]byte(keyBlockTime), tb)
	return nil
}

// LoadParams reads the current chain parameters from any reader (snapshot or
// delta). Per spec.md §9, callers must always re-read from the current
// snapshot rather than caching this, so parameter-change proposals take
// effect deterministically the block after enactment.
func LoadParams(r store.Reader) (Params, error) {
	b, err := r.Get([]byte(keyParams))
	if err != nil {
		return Params{}, err
	}
	if b == nil {
		return Params{}, fmt.Errorf("chain params not initialized")
	}
	var p Params
	if err := json.Unmarshal(b, &p); err != nil {
		return Params{}, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return p, nil
}

// BlockHeight reads the height recorded by the current block's BeginBlock.
func BlockHeight(r store.Reader) (int64, error) {
	b, err := r.Get([]byte(keyBlockHeight))
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, nil
	}
	return int64(decodeUint64(b)), nil
}

// BlockTime reads the time recorded by the current block's BeginBlock.
func BlockTime(r store.Reader) (time.Time, error) {
	b, err := r.Get([]byte(keyBlockTime))
	if err != nil {
		return time.Time{}, err
	}
	var t time.Time
	if len(b) == 0 {
		return t, nil
	}
	if err := t.UnmarshalBinary(b); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// IsEpochBoundary reports whether the given height is a multiple of the
// chain's configured epoch duration: under CurrentEpoch that is the first
// height of a new epoch, the block at which the preceding epoch is closed.
func IsEpochBoundary(height int64, epochDuration uint64) bool {
	if epochDuration == 0 {
		return false
	}
	return uint64(height)%epochDuration == 0
}

// CurrentEpoch computes the epoch index a given height falls in.
func CurrentEpoch(height int64, epochDuration uint64) uint64 {
	if epochDuration == 0 {
		return 0
	}
	return uint64(height) / epochDuration
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
	return b
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
