// Package dex implements the per-block batch-swap and routing/arbitrage
// engine operating over a price-indexed position book.
package dex

import (
	"encoding/json"
	"math/big"

	"github.com/google/uuid"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
)

// TradingPair is an unordered pair of asset denominations; DirectedTradingPair
// below fixes an input/output direction over one.
type TradingPair struct {
	Asset1 string `json:"asset_1"`
	Asset2 string `json:"asset_2"`
}

func (p TradingPair) Canonical() TradingPair {
	if p.Asset1 > p.Asset2 {
		return TradingPair{Asset1: p.Asset2, Asset2: p.Asset1}
	}
	return p
}

// DirectedTradingPair names a swap direction: Start is given up, End is
// received.
type DirectedTradingPair struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PositionState is the lifecycle of a single concentrated-liquidity-style
// position, mirroring original_source's position::State enum.
type PositionState string

const (
	PositionOpened  PositionState = "opened"
	PositionClosed  PositionState = "closed"
	PositionWithdrawn PositionState = "withdrawn"
)

// TradingFunction is phi: a constant-sum-style function over the pair,
// parameterized by an effective price (p/q) and a fee in basis points.
// original_source's phi supports flip() to swap direction; effectivePrice
// (price_index.go) computes the per-unit output price in the given direction.
type TradingFunction struct {
	Pair   TradingPair `json:"pair"`
	P      *big.Int    `json:"p"` // price numerator, denominated in Asset2 per unit Asset1
	Q      *big.Int    `json:"q"` // price denominator
	FeeBps uint32      `json:"fee_bps"`
}

// Flip returns the trading function viewed from the opposite direction.
func (f TradingFunction) Flip() TradingFunction {
	return TradingFunction{
		Pair:   TradingPair{Asset1: f.Pair.Asset2, Asset2: f.Pair.Asset1},
		P:      new(big.Int).Set(f.Q),
		Q:      new(big.Int).Set(f.P),
		FeeBps: f.FeeBps,
	}
}

// Position is a single open liquidity position, holding reserves of both
// assets in the pair and a trading function describing the price at which
// it executes.
type Position struct {
	ID       string        `json:"id"`
	Phi      TradingFunction `json:"phi"`
	Reserves Reserves      `json:"reserves"`
	State    PositionState `json:"state"`
	Owner    string        `json:"owner"`
	Nonce    string        `json:"nonce"`
}

type Reserves struct {
	R1 *big.Int `json:"r1"`
	R2 *big.Int `json:"r2"`
}

func positionKey(id string) []byte { return []byte("dex/position/" + id) }

// NewPositionID derives a fresh position identifier. Grounded on
// original_source's Position::id() hash-of-contents scheme, simplified to
// a random uuid since the ZK-bound position commitment scheme itself is
// out of scope.
func NewPositionID() string { return uuid.NewString() }

func GetPosition(r store.Reader, id string) (*Position, error) {
	b, err := r.Get(positionKey(id))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, "unknown position "+id)
	}
	var p Position
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return &p, nil
}

func PutPosition(delta *store.Layer, p *Position) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	delta.Put(positionKey(p.ID), b)
	return nil
}

// OpenPosition creates and indexes a new position from a PositionOpen
// action's payload.
func OpenPosition(delta *store.Layer, phi TradingFunction, reserves Reserves, owner string) (*Position, error) {
	p := &Position{
		ID:       NewPositionID(),
		Phi:      phi,
		Reserves: reserves,
		State:    PositionOpened,
		Owner:    owner,
	}
	if err := PutPosition(delta, p); err != nil {
		return nil, err
	}
	IndexPositionByPrice(p)
	return p, nil
}

// ClosePosition stops a position from being indexed for future swaps
// without releasing its reserves (PositionWithdraw does that).
func ClosePosition(delta *store.Layer, id string) error {
	p, err := GetPosition(delta, id)
	if err != nil {
		return err
	}
	if p.State != PositionOpened {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "position is not open")
	}
	DeindexPositionByPrice(p)
	p.State = PositionClosed
	return PutPosition(delta, p)
}

// WithdrawPosition releases a closed position's remaining reserves to its
// owner, transitioning it to Withdrawn.
func WithdrawPosition(delta *store.Layer, id string) (Reserves, error) {
	p, err := GetPosition(delta, id)
	if err != nil {
		return Reserves{}, err
	}
	if p.State != PositionClosed {
		return Reserves{}, apperrors.Tx(apperrors.ErrConsensusRuleViolation, "position must be closed before withdrawal")
	}
	out := p.Reserves
	p.State = PositionWithdrawn
	p.Reserves = Reserves{R1: big.NewInt(0), R2: big.NewInt(0)}
	if err := PutPosition(delta, p); err != nil {
		return Reserves{}, err
	}
	return out, nil
}
