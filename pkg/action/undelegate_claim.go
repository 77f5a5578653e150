package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

// UndelegateClaimPayload redeems a staged UnbondingTokens record once
// FromEpoch + unbonding_epochs has elapsed, releasing the native token back
// to Owner.
type UndelegateClaimPayload struct {
	Owner           string `json:"owner"`
	Seq             uint64 `json:"seq"`
	DeclaredAmount  uint64 `json:"declared_amount"`
}

type undelegateClaimHandler struct {
	comps   *Components
	payload UndelegateClaimPayload
}

func newUndelegateClaimHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p UndelegateClaimPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &undelegateClaimHandler{comps: comps, payload: p}, nil
}

func (h *undelegateClaimHandler) CheckStateless() error {
	if h.payload.Owner == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "undelegate claim missing owner")
	}
	return nil
}

func (h *undelegateClaimHandler) CheckStateful(r store.Reader) error {
	u, err := stake.GetUnbonding(r, h.payload.Owner, h.payload.Seq)
	if err != nil {
		return err
	}
	if u.Claimed {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "unbonding record already claimed")
	}
	if newBigFromUint64(h.payload.DeclaredAmount).Cmp(u.Amount) != 0 {
		return apperrors.Tx(apperrors.ErrAmountRoundingMismatch, "declared_amount does not match staged unbonding amount")
	}
	height, err := chain.BlockHeight(r)
	if err != nil {
		return err
	}
	params, err := chain.LoadParams(r)
	if err != nil {
		return err
	}
	currentEpoch := chain.CurrentEpoch(height, params.EpochDuration)
	if currentEpoch < u.FromEpoch+params.UnbondingEpochs {
		return apperrors.Tx(apperrors.ErrEpochMismatch, "unbonding period has not elapsed")
	}
	return nil
}

func (h *undelegateClaimHandler) Execute(delta *store.Layer) error {
	params, err := chain.LoadParams(delta)
	if err != nil {
		return err
	}
	height, err := chain.BlockHeight(delta)
	if err != nil {
		return err
	}
	currentEpoch := chain.CurrentEpoch(height, params.EpochDuration)
	_, err = stake.ClaimUnbonding(delta, h.payload.Owner, h.payload.Seq, currentEpoch, params.UnbondingEpochs)
	return err
}

func (h *undelegateClaimHandler) NativeBalance() int64 { return int64(h.payload.DeclaredAmount) }
