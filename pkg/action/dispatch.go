package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/wire"
)

// NewHandler constructs the Handler responsible for one transaction action,
// dispatching on its wire.ActionKind tag. Every kind in wire.ActionKind must
// have exactly one case here; an unrecognized kind is malformed input, not
// a programmer error, since it arrives over the wire from an untrusted
// submitter.
func NewHandler(kind wire.ActionKind, payload json.RawMessage, comps *Components) (Handler, error) {
	switch kind {
	case wire.ActionSpend:
		return newSpendHandler(comps, payload)
	case wire.ActionOutput:
		return newOutputHandler(comps, payload)
	case wire.ActionSwap:
		return newSwapHandler(comps, payload)
	case wire.ActionSwapClaim:
		return newSwapClaimHandler(comps, payload)
	case wire.ActionDelegate:
		return newDelegateHandler(comps, payload)
	case wire.ActionUndelegate:
		return newUndelegateHandler(comps, payload)
	case wire.ActionUndelegateClaim:
		return newUndelegateClaimHandler(comps, payload)
	case wire.ActionValidatorDefinition:
		return newValidatorDefinitionHandler(comps, payload)
	case wire.ActionProposalSubmit:
		return newProposalSubmitHandler(comps, payload)
	case wire.ActionProposalWithdraw:
		return newProposalWithdrawHandler(comps, payload)
	case wire.ActionProposalDepositClaim:
		return newProposalDepositClaimHandler(comps, payload)
	case wire.ActionValidatorVote:
		return newValidatorVoteHandler(comps, payload)
	case wire.ActionDelegatorVote:
		return newDelegatorVoteHandler(comps, payload)
	case wire.ActionDaoDeposit:
		return newDaoDepositHandler(comps, payload)
	case wire.ActionDaoSpend:
		return newDaoSpendHandler(comps, payload)
	case wire.ActionPositionOpen:
		return newPositionOpenHandler(comps, payload)
	case wire.ActionPositionClose:
		return newPositionCloseHandler(comps, payload)
	case wire.ActionPositionWithdraw:
		return newPositionWithdrawHandler(comps, payload)
	case wire.ActionPositionRewardClaim:
		return newPositionRewardClaimHandler(comps, payload)
	case wire.ActionIcs20Withdrawal:
		return newIcs20WithdrawalHandler(comps, payload)
	case wire.ActionIbc:
		return newIbcActionHandler(comps, payload)
	default:
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, "unknown action kind: "+string(kind))
	}
}
