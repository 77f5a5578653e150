package action

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dao"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/store"
)

// ProposalDepositClaimPayload releases a finished proposal's escrowed
// deposit back to the claimant, unless the proposal's outcome was Slashed,
// in which case the deposit is forfeit to the DAO.
type ProposalDepositClaimPayload struct {
	ProposalID uint64 `json:"proposal_id"`
}

type proposalDepositClaimHandler struct {
	comps   *Components
	payload ProposalDepositClaimPayload

	refund uint64
}

func newProposalDepositClaimHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p ProposalDepositClaimPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &proposalDepositClaimHandler{comps: comps, payload: p}, nil
}

func (h *proposalDepositClaimHandler) CheckStateless() error { return nil }

func (h *proposalDepositClaimHandler) CheckStateful(r store.Reader) error {
	p, err := governance.GetProposal(r, h.payload.ProposalID)
	if err != nil {
		return err
	}
	if p.State != governance.StateFinished {
		return apperrors.Tx(apperrors.ErrProposalInWrongState, "proposal has not finished voting")
	}
	if p.Outcome != governance.OutcomeSlashed {
		h.refund = p.Deposit
	}
	return nil
}

func (h *proposalDepositClaimHandler) Execute(delta *store.Layer) error {
	_, toDAO, err := governance.ClaimDeposit(delta, h.payload.ProposalID)
	if err != nil {
		return err
	}
	if toDAO > 0 {
		return dao.Deposit(delta, nativeAsset, new(big.Int).SetUint64(toDAO))
	}
	return nil
}

func (h *proposalDepositClaimHandler) NativeBalance() int64 { return int64(h.refund) }
