package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/store"
)

// PositionRewardClaimPayload would redeem a liquidity-incentive-program
// reward accrued by an open position over Epoch. The incentive tournament
// that computes those rewards is out of scope here (no per-epoch reward
// pool or scoring is modeled), so this handler only checks that the
// position exists and accepts a claim of zero; it does not check who owns
// the position.
type PositionRewardClaimPayload struct {
	PositionID    string `json:"position_id"`
	Epoch         uint64 `json:"epoch"`
	ClaimedReward uint64 `json:"claimed_reward"`
}

type positionRewardClaimHandler struct {
	comps   *Components
	payload PositionRewardClaimPayload
}

func newPositionRewardClaimHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p PositionRewardClaimPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &positionRewardClaimHandler{comps: comps, payload: p}, nil
}

func (h *positionRewardClaimHandler) CheckStateless() error {
	if h.payload.PositionID == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position reward claim missing position id")
	}
	if h.payload.ClaimedReward != 0 {
		return apperrors.Tx(apperrors.ErrAmountRoundingMismatch, "no reward pool is tracked; claimed_reward must be zero")
	}
	return nil
}

func (h *positionRewardClaimHandler) CheckStateful(r store.Reader) error {
	_, err := dex.GetPosition(r, h.payload.PositionID)
	return err
}

func (h *positionRewardClaimHandler) Execute(delta *store.Layer) error { return nil }

func (h *positionRewardClaimHandler) NativeBalance() int64 { return 0 }
