package action

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

// ProposalSubmitPayload opens a new Voting-state proposal, locking Deposit
// out of the submitter's native balance until ProposalDepositClaim.
type ProposalSubmitPayload struct {
	Kind         governance.ProposalKind `json:"kind"`
	Payload      json.RawMessage         `json:"payload"`
	Deposit      uint64                  `json:"deposit"`
	VotingPeriod uint64                  `json:"voting_period"`
}

type proposalSubmitHandler struct {
	comps   *Components
	payload ProposalSubmitPayload
}

func newProposalSubmitHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p ProposalSubmitPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &proposalSubmitHandler{comps: comps, payload: p}, nil
}

func (h *proposalSubmitHandler) CheckStateless() error {
	if h.payload.VotingPeriod == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "proposal voting_period must be nonzero")
	}
	return nil
}

func (h *proposalSubmitHandler) CheckStateful(r store.Reader) error { return nil }

// activeStakeTotal sums TotalDelegation across every currently Active
// validator, the snapshot ProposalSubmit locks in as ActiveStakeAtStart for
// the emergency-enactment threshold (spec.md §4.6).
func activeStakeTotal(r store.Reader) (*big.Int, error) {
	identities, err := stake.ListIndex(r)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, id := range identities {
		v, err := stake.GetValidator(r, id)
		if err != nil {
			return nil, err
		}
		if v.State == stake.Active {
			total.Add(total, v.TotalDelegation)
		}
	}
	return total, nil
}

func (h *proposalSubmitHandler) Execute(delta *store.Layer) error {
	height, err := chain.BlockHeight(delta)
	if err != nil {
		return err
	}
	active, err := activeStakeTotal(delta)
	if err != nil {
		return err
	}
	_, err = governance.Submit(delta, h.payload.Kind, h.payload.Payload, h.payload.Deposit, uint64(height), h.payload.VotingPeriod, active)
	return err
}

func (h *proposalSubmitHandler) NativeBalance() int64 { return -int64(h.payload.Deposit) }
