package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/store"
)

// DelegatorVotePayload casts a vote on behalf of a shielded delegator,
// identified by a nullifier-derived voting key rather than a validator
// identity, spending a note that proves delegation-token ownership at the
// proposal's starting block. Weight is the delegation amount that note
// proves, and is what the vote is tallied at; the shielded pool's spend
// proof is what makes declaring it here trustworthy.
type DelegatorVotePayload struct {
	ProposalID uint64                `json:"proposal_id"`
	VotingKey  string                `json:"voting_key"`
	Choice     governance.VoteChoice `json:"choice"`
	Weight     uint64                `json:"weight"`
}

type delegatorVoteHandler struct {
	comps   *Components
	payload DelegatorVotePayload
}

func newDelegatorVoteHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p DelegatorVotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &delegatorVoteHandler{comps: comps, payload: p}, nil
}

func (h *delegatorVoteHandler) CheckStateless() error {
	if h.payload.VotingKey == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "delegator vote missing voting key")
	}
	if h.payload.Weight == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "delegator vote weight must be nonzero")
	}
	return nil
}

// CheckStateful unconditionally calls CheckProposalVotable first, per
// spec.md §9: a shielded delegator vote carries no on-chain activity
// history to check, so wasActiveAtStart is always true here — the note the
// voter spent already proves delegation-token ownership as of the
// proposal's starting block.
func (h *delegatorVoteHandler) CheckStateful(r store.Reader) error {
	_, err := governance.CheckProposalVotable(r, h.payload.ProposalID, h.payload.VotingKey, true)
	return err
}

func (h *delegatorVoteHandler) Execute(delta *store.Layer) error {
	return governance.RecordVote(delta, governance.Vote{
		ProposalID: h.payload.ProposalID,
		Identity:   h.payload.VotingKey,
		Choice:     h.payload.Choice,
		Weight:     newBigFromUint64(h.payload.Weight),
	})
}

func (h *delegatorVoteHandler) NativeBalance() int64 { return 0 }
