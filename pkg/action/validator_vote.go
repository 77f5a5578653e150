package action

import (
	"encoding/json"
	"errors"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

// ValidatorVotePayload casts a validator's own vote, weighted when it is
// recorded (see Execute) by the validator's voting power at the epoch of
// the proposal's voting_start.
type ValidatorVotePayload struct {
	ProposalID uint64                `json:"proposal_id"`
	Identity   string                `json:"identity"`
	Choice     governance.VoteChoice `json:"choice"`
}

type validatorVoteHandler struct {
	comps   *Components
	payload ValidatorVotePayload
}

func newValidatorVoteHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p ValidatorVotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &validatorVoteHandler{comps: comps, payload: p}, nil
}

func (h *validatorVoteHandler) CheckStateless() error {
	if h.payload.Identity == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "validator vote missing identity")
	}
	return nil
}

// CheckStateful unconditionally calls CheckProposalVotable first, per
// spec.md §9: every vote is rejected outright if the proposal isn't open,
// before any voter-specific checks run. The validator lookup only feeds the
// activity flag (an unknown validator counts as not Active) and rejects
// nothing itself, except on a storage error. Whether the validator was
// Active is judged from its current state, not from its state at the
// proposal's voting_start.
func (h *validatorVoteHandler) CheckStateful(r store.Reader) error {
	v, err := stake.GetValidator(r, h.payload.Identity)
	if err != nil && !errors.Is(err, apperrors.ErrUnknownValidator) {
		return err
	}
	active := err == nil && v.State == stake.Active
	_, err = governance.CheckProposalVotable(r, h.payload.ProposalID, h.payload.Identity, active)
	return err
}

// Execute weights the vote by the validator's voting power as of the
// proposal's voting_start. CheckProposalVotable's activity flag, by
// contrast, comes from the validator's current state.
func (h *validatorVoteHandler) Execute(delta *store.Layer) error {
	p, err := governance.GetProposal(delta, h.payload.ProposalID)
	if err != nil {
		return err
	}
	params, err := chain.LoadParams(delta)
	if err != nil {
		return err
	}
	epoch := chain.CurrentEpoch(int64(p.VotingStart), params.EpochDuration)
	rate, err := stake.GetRate(delta, h.payload.Identity, epoch)
	if err != nil {
		return err
	}
	return governance.RecordVote(delta, governance.Vote{
		ProposalID: h.payload.ProposalID,
		Identity:   h.payload.Identity,
		Choice:     h.payload.Choice,
		Weight:     rate.VotingPower,
	})
}

func (h *validatorVoteHandler) NativeBalance() int64 { return 0 }
