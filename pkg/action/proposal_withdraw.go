package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/store"
)

// ProposalWithdrawPayload moves a Voting-state proposal to Withdrawn, which
// governance.Finish later forces to OutcomeRejected regardless of tally.
type ProposalWithdrawPayload struct {
	ProposalID uint64 `json:"proposal_id"`
	Reason     string `json:"reason"`
}

type proposalWithdrawHandler struct {
	comps   *Components
	payload ProposalWithdrawPayload
}

func newProposalWithdrawHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p ProposalWithdrawPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &proposalWithdrawHandler{comps: comps, payload: p}, nil
}

func (h *proposalWithdrawHandler) CheckStateless() error {
	if len(h.payload.Reason) > 80 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "proposal withdraw reason exceeds 80 characters")
	}
	return nil
}

func (h *proposalWithdrawHandler) CheckStateful(r store.Reader) error {
	p, err := governance.GetProposal(r, h.payload.ProposalID)
	if err != nil {
		return err
	}
	if p.State != governance.StateVoting {
		return apperrors.Tx(apperrors.ErrProposalInWrongState, "proposal is not in the voting state")
	}
	return nil
}

func (h *proposalWithdrawHandler) Execute(delta *store.Layer) error {
	return governance.Withdraw(delta, h.payload.ProposalID, h.payload.Reason)
}

func (h *proposalWithdrawHandler) NativeBalance() int64 { return 0 }
