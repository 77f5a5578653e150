package governance

import (
	"math/big"
	"testing"

	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/store"
)

func newTestLayer(t *testing.T) *store.Layer {
	t.Helper()
	s, err := store.Open(store.MemKV())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ov := s.NewBlockOverlay()
	return ov.BeginTransaction()
}

func TestSubmitAllocatesSequentialIDs(t *testing.T) {
	delta := newTestLayer(t)
	p0, err := Submit(delta, Signaling, nil, 1000, 100, 500, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	p1, err := Submit(delta, Signaling, nil, 1000, 100, 500, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p0.ID != 0 || p1.ID != 1 {
		t.Fatalf("expected sequential ids 0,1 got %d,%d", p0.ID, p1.ID)
	}
	if p0.VotingEnd != 600 {
		t.Fatalf("expected voting_end 600, got %d", p0.VotingEnd)
	}
}

func TestWithdrawRejectsOversizeReason(t *testing.T) {
	delta := newTestLayer(t)
	p, _ := Submit(delta, Signaling, nil, 1000, 0, 500, big.NewInt(1_000_000))
	long := make([]byte, 81)
	for i := range long {
		long[i] = 'x'
	}
	if err := Withdraw(delta, p.ID, string(long)); err == nil {
		t.Fatalf("expected rejection of 81-byte withdraw reason")
	}
	if err := Withdraw(delta, p.ID, "reasonable"); err != nil {
		t.Fatalf("expected withdraw to succeed: %v", err)
	}
	got, err := GetProposal(delta, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != StateWithdrawn {
		t.Fatalf("expected Withdrawn state, got %s", got.State)
	}
}

func TestCheckProposalVotableRejectsDoubleVote(t *testing.T) {
	delta := newTestLayer(t)
	p, _ := Submit(delta, Signaling, nil, 1000, 0, 500, big.NewInt(1_000_000))
	if _, err := CheckProposalVotable(delta, p.ID, "val1", true); err != nil {
		t.Fatalf("first vote check should pass: %v", err)
	}
	if err := RecordVote(delta, Vote{ProposalID: p.ID, Identity: "val1", Choice: VoteYes}); err != nil {
		t.Fatalf("record vote: %v", err)
	}
	if _, err := CheckProposalVotable(delta, p.ID, "val1", true); err == nil {
		t.Fatalf("expected rejection of double vote")
	}
}

func TestCheckProposalVotableRejectsNotActiveAtStart(t *testing.T) {
	delta := newTestLayer(t)
	p, _ := Submit(delta, Signaling, nil, 1000, 0, 500, big.NewInt(1_000_000))
	if _, err := CheckProposalVotable(delta, p.ID, "val1", false); err == nil {
		t.Fatalf("expected rejection when validator was not active at voting_start")
	}
}

func TestResolveRejectsBelowQuorum(t *testing.T) {
	p := Proposal{ActiveStakeAtStart: big.NewInt(1_000_000)}
	th := Thresholds{QuorumBps: 4000, PassBps: 5000}
	tly := newTally()
	tly.Yes.SetInt64(100_000)
	if Resolve(p, tly, th) != OutcomeRejected {
		t.Fatalf("expected rejection below quorum")
	}
}

func TestResolvePassesAboveQuorumAndPassThreshold(t *testing.T) {
	p := Proposal{ActiveStakeAtStart: big.NewInt(1_000_000)}
	th := Thresholds{QuorumBps: 4000, PassBps: 5000}
	tly := newTally()
	tly.Yes.SetInt64(450_000)
	tly.No.SetInt64(50_000)
	if Resolve(p, tly, th) != OutcomePassed {
		t.Fatalf("expected pass: yes=450000 no=50000 total=500000 >= 40%% quorum, yes 90%% of yes+no")
	}
}

func TestEmergencyEnactableRequiresExactlyTwoThirds(t *testing.T) {
	// spec.md §8: exactly 2/3 Yes enacts; 2/3 minus one satoshi-weight does not.
	p := Proposal{Kind: Emergency, ActiveStakeAtStart: big.NewInt(900_000)}
	th := Thresholds{}
	tly := newTally()
	tly.Yes.SetInt64(600_000 - 1)
	if EmergencyEnactable(p, tly, th) {
		t.Fatalf("one satoshi-weight short of exactly 2/3 must not enact")
	}
	tly.Yes.SetInt64(600_000)
	if !EmergencyEnactable(p, tly, th) {
		t.Fatalf("expected exactly 2/3 to enact")
	}
}

func TestEmergencyEnactableS6Scenario(t *testing.T) {
	// S6: validators A/B/C with stake 40/30/30 of active total; A and B
	// vote Yes (70), C abstains. 70/100 > 2/3, so it enacts.
	p := Proposal{Kind: Emergency, ActiveStakeAtStart: big.NewInt(100)}
	th := Thresholds{}
	tly := newTally()
	tly.Yes.SetInt64(70)
	tly.Abstain.SetInt64(30)
	if !EmergencyEnactable(p, tly, th) {
		t.Fatalf("expected S6 scenario (70%% yes) to clear the 2/3 emergency threshold")
	}
}

func TestFinishForcesWithdrawnToRejected(t *testing.T) {
	delta := newTestLayer(t)
	p, _ := Submit(delta, Signaling, nil, 1000, 0, 500, big.NewInt(1_000_000))
	if err := Withdraw(delta, p.ID, "withdrawn by submitter"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	got, _ := GetProposal(delta, p.ID)
	if err := Finish(delta, got, OutcomePassed); err != nil {
		t.Fatalf("finish: %v", err)
	}
	final, _ := GetProposal(delta, p.ID)
	if final.Outcome != OutcomeRejected {
		t.Fatalf("withdrawn proposal must finish Rejected regardless of tally, got %s", final.Outcome)
	}
}

func TestClaimDepositRefundsUnlessSlashed(t *testing.T) {
	delta := newTestLayer(t)
	p, _ := Submit(delta, Signaling, nil, 5000, 0, 500, big.NewInt(1_000_000))
	if err := Finish(delta, p, OutcomePassed); err != nil {
		t.Fatalf("finish: %v", err)
	}
	refund, toDAO, err := ClaimDeposit(delta, p.ID)
	if err != nil {
		t.Fatalf("claim deposit: %v", err)
	}
	if refund != 5000 || toDAO != 0 {
		t.Fatalf("expected full refund on Passed outcome, got refund=%d toDAO=%d", refund, toDAO)
	}
	if _, _, err := ClaimDeposit(delta, p.ID); err == nil {
		t.Fatalf("expected second deposit claim to be rejected")
	}
}

func TestEndEpochFinishesExpiredProposalByTally(t *testing.T) {
	delta := newTestLayer(t)
	p, err := Submit(delta, Signaling, nil, 1000, 0, 100, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := RecordVote(delta, Vote{ProposalID: p.ID, Identity: "val1", Choice: VoteYes, Weight: big.NewInt(450_000)}); err != nil {
		t.Fatalf("record vote: %v", err)
	}
	if err := RecordVote(delta, Vote{ProposalID: p.ID, Identity: "val2", Choice: VoteNo, Weight: big.NewInt(50_000)}); err != nil {
		t.Fatalf("record vote: %v", err)
	}

	c := &Component{}
	th := Thresholds{QuorumBps: 4000, PassBps: 5000}
	// Before voting_end, the proposal must not be touched.
	if err := c.EndEpoch(delta, 50, th); err != nil {
		t.Fatalf("end epoch before voting_end: %v", err)
	}
	if got, _ := GetProposal(delta, p.ID); got.State != StateVoting {
		t.Fatalf("proposal finished before its voting period elapsed")
	}

	if err := c.EndEpoch(delta, 200, th); err != nil {
		t.Fatalf("end epoch: %v", err)
	}
	got, err := GetProposal(delta, p.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if got.State != StateFinished || got.Outcome != OutcomePassed {
		t.Fatalf("expected Finished/Passed, got state=%s outcome=%s", got.State, got.Outcome)
	}
}

func TestEndBlockEnactsEmergencyProposalBeforeVotingEnds(t *testing.T) {
	delta := newTestLayer(t)
	p, err := Submit(delta, Emergency, nil, 1000, 0, 10_000, big.NewInt(100))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := RecordVote(delta, Vote{ProposalID: p.ID, Identity: "val1", Choice: VoteYes, Weight: big.NewInt(70)}); err != nil {
		t.Fatalf("record vote: %v", err)
	}

	c := &Component{}
	if err := c.EndBlock(delta, component.EndBlockRequest{Height: 1}, Thresholds{}); err != nil {
		t.Fatalf("end block: %v", err)
	}
	got, err := GetProposal(delta, p.ID)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if got.State != StateFinished || got.Outcome != OutcomePassed {
		t.Fatalf("expected emergency proposal to enact before voting_end, got state=%s outcome=%s", got.State, got.Outcome)
	}
}

func TestClaimDepositForfeitsOnSlashed(t *testing.T) {
	delta := newTestLayer(t)
	p, _ := Submit(delta, Signaling, nil, 5000, 0, 500, big.NewInt(1_000_000))
	if err := Finish(delta, p, OutcomeSlashed); err != nil {
		t.Fatalf("finish: %v", err)
	}
	refund, toDAO, err := ClaimDeposit(delta, p.ID)
	if err != nil {
		t.Fatalf("claim deposit: %v", err)
	}
	if refund != 0 || toDAO != 5000 {
		t.Fatalf("expected full forfeiture on Slashed outcome, got refund=%d toDAO=%d", refund, toDAO)
	}
}
