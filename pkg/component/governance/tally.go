package governance

import (
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
)

// Thresholds bundles the per-chain quorum/pass parameters a tally is
// evaluated against. The emergency threshold is not a parameter: it is the
// fixed two-thirds EmergencyEnactable applies.
type Thresholds struct {
	QuorumBps uint64 // fraction of ActiveStakeAtStart that must vote at all
	PassBps   uint64 // fraction of (yes+no) votes that must be yes
}

// Tally is the weighted sum of votes cast on a proposal, keyed by voting
// power at the time of the vote.
type Tally struct {
	Yes     *big.Int
	No      *big.Int
	Abstain *big.Int
}

func newTally() Tally {
	return Tally{Yes: big.NewInt(0), No: big.NewInt(0), Abstain: big.NewInt(0)}
}

func (t Tally) total() *big.Int {
	return new(big.Int).Add(t.Yes, new(big.Int).Add(t.No, t.Abstain))
}

// Accumulate folds one identity's weighted vote into the running tally.
func (t Tally) Accumulate(choice VoteChoice, weight *big.Int) {
	switch choice {
	case VoteYes:
		t.Yes.Add(t.Yes, weight)
	case VoteNo:
		t.No.Add(t.No, weight)
	case VoteAbstain:
		t.Abstain.Add(t.Abstain, weight)
	}
}

func bpsOf(amount *big.Int, bps uint64) *big.Int {
	v := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return v.Quo(v, big.NewInt(10_000))
}

// Resolve applies quorum and pass thresholds to a completed tally, returning
// the outcome to finalize a Voting proposal at end_epoch.
func Resolve(p Proposal, t Tally, th Thresholds) Outcome {
	if p.ActiveStakeAtStart == nil || p.ActiveStakeAtStart.Sign() == 0 {
		return OutcomeRejected
	}
	quorumNeeded := bpsOf(p.ActiveStakeAtStart, th.QuorumBps)
	if t.total().Cmp(quorumNeeded) < 0 {
		return OutcomeRejected
	}
	yesAndNo := new(big.Int).Add(t.Yes, t.No)
	if yesAndNo.Sign() == 0 {
		return OutcomeRejected
	}
	passNeeded := bpsOf(yesAndNo, th.PassBps)
	if t.Yes.Cmp(passNeeded) < 0 {
		return OutcomeRejected
	}
	return OutcomePassed
}

// EmergencyEnactable reports whether an Emergency-kind proposal has already
// crossed the ⅔-of-active-stake-at-start Yes threshold, allowing it to
// enact immediately rather than waiting for its voting period to end. The
// comparison is exact rational arithmetic (yes*3 >= active*2), not a
// basis-point approximation, so that exactly ⅔ enacts and ⅔ minus one
// satoshi-weight of stake does not (spec.md §8 S6 / the closing example in
// §4.6).
func EmergencyEnactable(p Proposal, t Tally, th Thresholds) bool {
	if p.Kind != Emergency || p.ActiveStakeAtStart == nil {
		return false
	}
	lhs := new(big.Int).Mul(t.Yes, big.NewInt(3))
	rhs := new(big.Int).Mul(p.ActiveStakeAtStart, big.NewInt(2))
	return lhs.Cmp(rhs) >= 0
}

// Finish marks a Voting (or Withdrawn) proposal Finished with the given
// outcome; a Withdrawn proposal is always forced to Rejected regardless of
// its tally, since it can never pass.
func Finish(delta *store.Layer, p Proposal, outcome Outcome) error {
	if p.State != StateVoting && p.State != StateWithdrawn {
		return apperrors.Tx(apperrors.ErrProposalInWrongState, "finish requires Voting or Withdrawn state")
	}
	if p.State == StateWithdrawn {
		outcome = OutcomeRejected
	}
	p.State = StateFinished
	p.Outcome = outcome
	return PutProposal(delta, p)
}

// TallyProposal replays every recorded vote for a proposal and folds it
// into a running Tally using the supplied weight lookup (voting power at
// voting_start for the identity that cast the vote).
func TallyProposal(r store.Reader, identities []string, weights map[string]*big.Int, votes map[string]VoteChoice) Tally {
	t := newTally()
	for _, id := range identities {
		choice, voted := votes[id]
		if !voted {
			continue
		}
		w, ok := weights[id]
		if !ok || w == nil {
			continue
		}
		t.Accumulate(choice, w)
	}
	return t
}

// TallyStored reads every identity that voted on a proposal along with its
// recorded choice and weight, and folds them through TallyProposal. Each
// Vote record already carries the weight it was cast at (a validator's
// stake-rate voting power as of voting_start, or a delegator's declared
// delegation amount), so no separate weight lookup is needed here.
func TallyStored(r store.Reader, proposalID uint64) (Tally, error) {
	voters, err := ListVoters(r, proposalID)
	if err != nil {
		return Tally{}, err
	}
	weights := make(map[string]*big.Int, len(voters))
	choices := make(map[string]VoteChoice, len(voters))
	for _, identity := range voters {
		v, err := GetVote(r, proposalID, identity)
		if err != nil {
			return Tally{}, err
		}
		if v == nil {
			continue
		}
		weights[identity] = v.Weight
		choices[identity] = v.Choice
	}
	return TallyProposal(r, voters, weights, choices), nil
}
