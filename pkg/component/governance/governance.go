// Package governance implements proposal submit/vote/withdraw/tally and
// emergency enactment, carried verbatim from spec.md §4.6.
package governance

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

type ProposalKind string

const (
	Signaling      ProposalKind = "signaling"
	Emergency      ProposalKind = "emergency"
	ParameterChange ProposalKind = "parameter_change"
	DaoSpend       ProposalKind = "dao_spend"
	UpgradePlan    ProposalKind = "upgrade_plan"
)

type ProposalStateTag string

const (
	StateVoting    ProposalStateTag = "voting"
	StateWithdrawn ProposalStateTag = "withdrawn"
	StateFinished  ProposalStateTag = "finished"
	StateClaimed   ProposalStateTag = "claimed"
)

type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeRejected Outcome = "rejected"
	OutcomeSlashed Outcome = "slashed"
)

type Proposal struct {
	ID               uint64          `json:"id"`
	Kind             ProposalKind    `json:"kind"`
	Payload          json.RawMessage `json:"payload"`
	State            ProposalStateTag `json:"state"`
	WithdrawReason   string          `json:"withdraw_reason,omitempty"`
	Outcome          Outcome         `json:"outcome,omitempty"`
	VotingStart      uint64          `json:"voting_start"`
	VotingEnd        uint64          `json:"voting_end"`
	Deposit          uint64          `json:"deposit"`
	ActiveStakeAtStart *big.Int      `json:"active_stake_at_start"`
}

type VoteChoice string

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"
)

func proposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf("governance/proposal/%d/state", id))
}

func voteKey(id uint64, identity string) []byte {
	return []byte(fmt.Sprintf("governance/proposal/%d/vote/%s", id, identity))
}

const keyNextProposalID = "governance/next_proposal_id"

type Component struct {
	Stake *stake.Component
}

func New(s *stake.Component) *Component { return &Component{Stake: s} }

func (c *Component) InitChain(delta *store.Layer, req component.InitChainRequest) error {
	delta.Put([]byte(keyNextProposalID), encodeUint64(0))
	return nil
}

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error { return nil }

// proposalCount reports how many proposals have ever been allocated.
// Proposal ids are assigned sequentially from 0 by NextProposalID, so the
// count alone is enough for EndBlock/EndEpoch to enumerate every proposal
// without a separate index.
func proposalCount(r store.Reader) (uint64, error) {
	b, err := r.Get([]byte(keyNextProposalID))
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, nil
	}
	return decodeUint64(b), nil
}

// EndBlock checks every still-Voting Emergency proposal for early
// enactment: spec.md §4.6 lets an Emergency proposal finish the moment its
// Yes votes cross ⅔ of active stake at submission, rather than waiting for
// its voting period to end. A proposal that crosses the threshold finishes
// Passed immediately; whatever action names it (e.g. DaoSpend) becomes
// executable the same block instead of waiting for end_epoch.
func (c *Component) EndBlock(delta *store.Layer, req component.EndBlockRequest, th Thresholds) error {
	count, err := proposalCount(delta)
	if err != nil {
		return err
	}
	for id := uint64(0); id < count; id++ {
		p, err := GetProposal(delta, id)
		if err != nil {
			return err
		}
		if p.State != StateVoting || p.Kind != Emergency {
			continue
		}
		tally, err := TallyStored(delta, id)
		if err != nil {
			return err
		}
		if !EmergencyEnactable(p, tally, th) {
			continue
		}
		if err := Finish(delta, p, OutcomePassed); err != nil {
			return err
		}
	}
	return nil
}

// EndEpoch resolves every proposal whose voting period has elapsed as of
// height: tallies its votes, applies quorum/pass thresholds, and
// transitions it to Finished. A Withdrawn proposal is finished Rejected
// regardless of tally, per Finish's own rule.
func (c *Component) EndEpoch(delta *store.Layer, height int64, th Thresholds) error {
	count, err := proposalCount(delta)
	if err != nil {
		return err
	}
	for id := uint64(0); id < count; id++ {
		p, err := GetProposal(delta, id)
		if err != nil {
			return err
		}
		if p.State != StateVoting && p.State != StateWithdrawn {
			continue
		}
		if p.VotingEnd >= uint64(height) {
			continue
		}
		tally, err := TallyStored(delta, id)
		if err != nil {
			return err
		}
		outcome := Resolve(p, tally, th)
		if err := Finish(delta, p, outcome); err != nil {
			return err
		}
	}
	return nil
}

// NextProposalID allocates the next strictly-increasing proposal id.
func NextProposalID(delta *store.Layer) (uint64, error) {
	b, err := delta.Get([]byte(keyNextProposalID))
	if err != nil {
		return 0, err
	}
	var id uint64
	if len(b) == 8 {
		id = decodeUint64(b)
	}
	delta.Put([]byte(keyNextProposalID), encodeUint64(id+1))
	return id, nil
}

func GetProposal(r store.Reader, id uint64) (Proposal, error) {
	b, err := r.Get(proposalKey(id))
	if err != nil {
		return Proposal{}, err
	}
	if b == nil {
		return Proposal{}, apperrors.Tx(apperrors.ErrProposalInWrongState, "proposal does not exist")
	}
	var p Proposal
	if err := json.Unmarshal(b, &p); err != nil {
		return Proposal{}, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return p, nil
}

func PutProposal(delta *store.Layer, p Proposal) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	delta.Put(proposalKey(p.ID), b)
	return nil
}

// Submit allocates a proposal id, opens voting, and records the active
// stake snapshot used for the emergency-enactment threshold.
func Submit(delta *store.Layer, kind ProposalKind, payload json.RawMessage, deposit uint64, votingStart, votingPeriod uint64, activeStake *big.Int) (Proposal, error) {
	id, err := NextProposalID(delta)
	if err != nil {
		return Proposal{}, err
	}
	p := Proposal{
		ID:                 id,
		Kind:               kind,
		Payload:            payload,
		State:              StateVoting,
		VotingStart:        votingStart,
		VotingEnd:          votingStart + votingPeriod,
		Deposit:            deposit,
		ActiveStakeAtStart: activeStake,
	}
	if err := PutProposal(delta, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// Withdraw transitions a Voting proposal to Withdrawn; it remains tallied
// but can never pass.
func Withdraw(delta *store.Layer, id uint64, reason string) error {
	if len(reason) > 80 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "withdraw reason exceeds 80 characters")
	}
	p, err := GetProposal(delta, id)
	if err != nil {
		return err
	}
	if p.State != StateVoting {
		return apperrors.Tx(apperrors.ErrProposalInWrongState, "withdraw requires Voting state")
	}
	p.State = StateWithdrawn
	p.WithdrawReason = reason
	return PutProposal(delta, p)
}

// Vote is a single validator or delegator's vote on a proposal, carrying
// the voting power it was weighted at when cast: a validator's stake-rate
// voting power as of voting_start, or a delegator's declared delegation
// amount proven by the note they spent.
type Vote struct {
	ProposalID uint64     `json:"proposal_id"`
	Identity   string     `json:"identity_key"`
	Choice     VoteChoice `json:"choice"`
	Weight     *big.Int   `json:"weight"`
}

// CheckProposalVotable is the unconditional first guard both ValidatorVote
// and DelegatorVote call in check_stateful, resolving spec.md §9's Open
// Question: the proposal must exist, be in Voting, the validator must have
// been Active at voting_start, and must not have already voted. Sourced
// from original_source/app/src/action_handler/actions/validator_vote.rs.
func CheckProposalVotable(r store.Reader, proposalID uint64, identity string, wasActiveAtStart bool) (Proposal, error) {
	p, err := GetProposal(r, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if p.State != StateVoting {
		return Proposal{}, apperrors.Tx(apperrors.ErrProposalInWrongState, "proposal not in Voting state")
	}
	if !wasActiveAtStart {
		return Proposal{}, apperrors.Tx(apperrors.ErrConsensusRuleViolation, "validator was not Active at voting_start")
	}
	existing, err := r.Get(voteKey(proposalID, identity))
	if err != nil {
		return Proposal{}, err
	}
	if existing != nil {
		return Proposal{}, apperrors.Tx(apperrors.ErrValidatorAlreadyVoted, identity)
	}
	return p, nil
}

func RecordVote(delta *store.Layer, v Vote) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	delta.Put(voteKey(v.ProposalID, v.Identity), b)
	return addVoterToIndex(delta, v.ProposalID, v.Identity)
}

// GetVote reads a single recorded vote, nil without error if none exists.
func GetVote(r store.Reader, proposalID uint64, identity string) (*Vote, error) {
	b, err := r.Get(voteKey(proposalID, identity))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	var v Vote
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return &v, nil
}

func voterIndexKey(id uint64) []byte {
	return []byte(fmt.Sprintf("governance/proposal/%d/voters", id))
}

// addVoterToIndex records an identity as having voted on a proposal, so
// end-of-epoch tallying can enumerate every cast vote without a keyspace
// prefix scan over the working overlay, mirroring
// stake.AddToIndex/ListIndex.
func addVoterToIndex(delta *store.Layer, proposalID uint64, identity string) error {
	voters, err := ListVoters(delta, proposalID)
	if err != nil {
		return err
	}
	for _, id := range voters {
		if id == identity {
			return nil
		}
	}
	voters = append(voters, identity)
	b, err := json.Marshal(voters)
	if err != nil {
		return err
	}
	delta.Put(voterIndexKey(proposalID), b)
	return nil
}

// ListVoters returns every identity that has voted on a proposal.
func ListVoters(r store.Reader, proposalID uint64) ([]string, error) {
	b, err := r.Get(voterIndexKey(proposalID))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	var voters []string
	if err := json.Unmarshal(b, &voters); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return voters, nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
	return b
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
