package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/store"
)

// PositionWithdrawPayload releases a closed position's final reserves to
// its owner, moving it to PositionWithdrawn.
type PositionWithdrawPayload struct {
	PositionID string `json:"position_id"`
}

type positionWithdrawHandler struct {
	comps   *Components
	payload PositionWithdrawPayload

	reserves dex.Reserves
	pair     dex.TradingPair
}

func newPositionWithdrawHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p PositionWithdrawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &positionWithdrawHandler{comps: comps, payload: p}, nil
}

func (h *positionWithdrawHandler) CheckStateless() error {
	if h.payload.PositionID == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position withdraw missing position id")
	}
	return nil
}

func (h *positionWithdrawHandler) CheckStateful(r store.Reader) error {
	p, err := dex.GetPosition(r, h.payload.PositionID)
	if err != nil {
		return err
	}
	if p.State != dex.PositionClosed {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "position is not closed")
	}
	h.reserves = p.Reserves
	h.pair = p.Phi.Pair
	return nil
}

func (h *positionWithdrawHandler) Execute(delta *store.Layer) error {
	_, err := dex.WithdrawPosition(delta, h.payload.PositionID)
	return err
}

func (h *positionWithdrawHandler) NativeBalance() int64 {
	var balance int64
	if h.pair.Asset1 == nativeAsset && h.reserves.R1 != nil {
		balance += h.reserves.R1.Int64()
	}
	if h.pair.Asset2 == nativeAsset && h.reserves.R2 != nil {
		balance += h.reserves.R2.Int64()
	}
	return balance
}
