package action

import (
	"encoding/json"
	"errors"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

// UndelegatePayload burns DelegationAmount of validator-specific delegation
// tokens and stages UnbondedAmount of the native token for release after
// unbonding_epochs. FromEpoch must equal the chain's current epoch — the
// epoch the unbonding period starts counting from (spec.md §8 S3).
type UndelegatePayload struct {
	Validator        string `json:"validator"`
	FromEpoch        uint64 `json:"from_epoch"`
	DelegationAmount uint64 `json:"delegation_amount"`
	UnbondedAmount   uint64 `json:"unbonded_amount"`
	Owner            string `json:"owner"`
	Seq              uint64 `json:"seq"`
}

type undelegateHandler struct {
	comps   *Components
	payload UndelegatePayload
}

func newUndelegateHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p UndelegatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &undelegateHandler{comps: comps, payload: p}, nil
}

func (h *undelegateHandler) CheckStateless() error {
	if h.payload.Validator == "" || h.payload.Owner == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "undelegate missing validator or owner")
	}
	if h.payload.DelegationAmount == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "undelegate amount must be nonzero")
	}
	return nil
}

func (h *undelegateHandler) CheckStateful(r store.Reader) error {
	height, err := chain.BlockHeight(r)
	if err != nil {
		return err
	}
	params, err := chain.LoadParams(r)
	if err != nil {
		return err
	}
	currentEpoch := chain.CurrentEpoch(height, params.EpochDuration)
	if h.payload.FromEpoch != currentEpoch {
		return apperrors.Tx(apperrors.ErrEpochMismatch, "undelegate from_epoch must equal the current epoch")
	}

	rate, err := stake.GetRate(r, h.payload.Validator, currentEpoch)
	if err != nil {
		return err
	}
	expected := stake.ExpectedUnbonded(h.payload.DelegationAmount, rate.ExchangeRate)
	if expected.Cmp(newBigFromUint64(h.payload.UnbondedAmount)) != 0 {
		return apperrors.Tx(apperrors.ErrAmountRoundingMismatch, "declared unbonded_amount does not match expected_unbonded")
	}

	if _, err := stake.GetUnbonding(r, h.payload.Owner, h.payload.Seq); err == nil {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "unbonding sequence already in use")
	} else if !errors.Is(err, apperrors.ErrConsensusRuleViolation) {
		return err
	}
	return nil
}

func (h *undelegateHandler) Execute(delta *store.Layer) error {
	if err := stake.QueueDelegationChange(delta, h.payload.Validator, negate(newBigFromUint64(h.payload.DelegationAmount))); err != nil {
		return err
	}
	return stake.StageUnbonding(delta, h.payload.Owner, h.payload.Validator, h.payload.FromEpoch, h.payload.Seq, newBigFromUint64(h.payload.UnbondedAmount))
}

func (h *undelegateHandler) NativeBalance() int64 { return int64(h.payload.UnbondedAmount) }
