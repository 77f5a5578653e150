package governance

import (
	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
)

// ClaimDeposit returns a finished proposal's locked deposit to its
// submitter, marking the proposal Claimed so a second ProposalDepositClaim
// against the same id is rejected. A Slashed outcome forfeits the deposit
// to the DAO instead of refunding it.
func ClaimDeposit(delta *store.Layer, id uint64) (refund uint64, toDAO uint64, err error) {
	p, err := GetProposal(delta, id)
	if err != nil {
		return 0, 0, err
	}
	if p.State != StateFinished {
		return 0, 0, apperrors.Tx(apperrors.ErrProposalInWrongState, "deposit claim requires Finished state")
	}
	if p.Outcome == OutcomeSlashed {
		toDAO = p.Deposit
	} else {
		refund = p.Deposit
	}
	p.State = StateClaimed
	if err := PutProposal(delta, p); err != nil {
		return 0, 0, err
	}
	return refund, toDAO, nil
}
