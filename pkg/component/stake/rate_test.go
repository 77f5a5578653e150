package stake

import (
	"math/big"
	"testing"
)

func TestComputeNextRateZeroCommission(t *testing.T) {
	prev := RateData{
		Epoch:        0,
		RewardRate:   big.NewInt(0),
		ExchangeRate: new(big.Int).Set(Scale),
		VotingPower:  big.NewInt(1_000_000),
	}
	baseReward := big.NewInt(3000)
	baseExchange := new(big.Int).Set(Scale)

	next := ComputeNextRate(prev, 0, baseReward, baseExchange, 1)

	if next.RewardRate.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("expected reward_rate 3000, got %s", next.RewardRate)
	}
	wantExchange := new(big.Int).Add(Scale, big.NewInt(3000))
	if next.ExchangeRate.Cmp(wantExchange) != 0 {
		t.Fatalf("expected exchange_rate %s, got %s", wantExchange, next.ExchangeRate)
	}
}

func TestComputeNextRateExchangeRateNeverDecreasesWithoutSlashing(t *testing.T) {
	prev := RateData{
		Epoch:        0,
		ExchangeRate: new(big.Int).Set(Scale),
		RewardRate:   big.NewInt(0),
		VotingPower:  big.NewInt(100),
	}
	baseReward := big.NewInt(500)
	baseExchange := new(big.Int).Set(Scale)

	next := ComputeNextRate(prev, 1000, baseReward, baseExchange, 1)
	if next.ExchangeRate.Cmp(prev.ExchangeRate) < 0 {
		t.Fatalf("exchange rate decreased with positive base reward and no slashing")
	}
}

func TestDelegationUndelegationRoundTrip(t *testing.T) {
	exchangeRate := big.NewInt(100_300_000) // 1.003 * 10^8
	unbonded := uint64(1_000_000_000)

	delegation := ExpectedDelegation(unbonded, exchangeRate)
	backToUnbonded := ExpectedUnbonded(delegation.Uint64(), exchangeRate)

	// Floor division on both legs may lose at most a handful of base units;
	// it must never overshoot the original amount.
	if backToUnbonded.Cmp(big.NewInt(int64(unbonded))) > 0 {
		t.Fatalf("round trip overshot: unbonded=%d delegation=%s back=%s", unbonded, delegation, backToUnbonded)
	}
}

func TestActiveSetRanksByDelegationThenIdentity(t *testing.T) {
	validators := []Validator{
		{Identity: "b", TotalDelegation: big.NewInt(100)},
		{Identity: "a", TotalDelegation: big.NewInt(100)},
		{Identity: "c", TotalDelegation: big.NewInt(200)},
	}
	active := ActiveSet(validators, 2)
	if len(active) != 2 || active[0] != "c" || active[1] != "a" {
		t.Fatalf("unexpected active set: %v", active)
	}
}

func TestCommissionBpsCap(t *testing.T) {
	v := Validator{
		Identity: "x",
		FundingStreams: []FundingStream{
			{Address: "addr1", RateBps: 6000},
			{Address: "addr2", RateBps: 5000},
		},
		TotalDelegation: big.NewInt(0),
	}
	if v.CommissionBps() <= 10000 {
		t.Fatalf("expected commission to exceed cap in this fixture")
	}
	if err := PutValidator(nil, &v); err == nil {
		t.Fatalf("expected PutValidator to reject a validator over the 10000bps commission cap")
	}
}
