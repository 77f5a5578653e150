package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

// DelegatePayload converts UnbondedAmount of the native staking token into
// DelegationAmount of validator-specific delegation tokens. Epoch names the
// upcoming epoch the delegation resolves into at the next end_epoch
// reconciliation — spec.md §4.5's "current next_epoch index" — while the
// conversion rate used is the validator's already-committed rate for the
// current epoch.
type DelegatePayload struct {
	Validator        string `json:"validator"`
	Epoch            uint64 `json:"epoch"`
	UnbondedAmount   uint64 `json:"unbonded_amount"`
	DelegationAmount uint64 `json:"delegation_amount"`
}

type delegateHandler struct {
	comps   *Components
	payload DelegatePayload
}

func newDelegateHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p DelegatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &delegateHandler{comps: comps, payload: p}, nil
}

func (h *delegateHandler) CheckStateless() error {
	if h.payload.Validator == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "delegate missing validator identity")
	}
	if h.payload.UnbondedAmount == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "delegate amount must be nonzero")
	}
	return nil
}

func (h *delegateHandler) CheckStateful(r store.Reader) error {
	v, err := stake.GetValidator(r, h.payload.Validator)
	if err != nil {
		return err
	}
	if v.State != stake.Active {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "delegate target validator is not Active")
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
	if h.payload.Epoch != currentEpoch+1 {
		return apperrors.Tx(apperrors.ErrEpochMismatch, "delegate epoch must equal the current next_epoch index")
	}

	rate, err := stake.GetRate(r, h.payload.Validator, currentEpoch)
	if err != nil {
		return err
	}
	expected := stake.ExpectedDelegation(h.payload.UnbondedAmount, rate.ExchangeRate)
	if expected.Cmp(newBigFromUint64(h.payload.DelegationAmount)) != 0 {
		return apperrors.Tx(apperrors.ErrAmountRoundingMismatch, "declared delegation_amount does not match expected_delegation")
	}
	return nil
}

func (h *delegateHandler) Execute(delta *store.Layer) error {
	return stake.QueueDelegationChange(delta, h.payload.Validator, newBigFromUint64(h.payload.DelegationAmount))
}

func (h *delegateHandler) NativeBalance() int64 { return -int64(h.payload.UnbondedAmount) }
