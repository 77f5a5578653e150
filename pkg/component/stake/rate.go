package stake

import "math/big"

// ComputeNextRate implements spec.md §4.5's per-validator per-epoch update:
//
//	reward_rate_{e+1}   = ((10^8 - commission_bps*10^4) * base_reward_rate_{e+1}) / 10^8
//	exchange_rate_{e+1} = (exchange_rate_e * (reward_rate_{e+1} + 10^8)) / 10^8
//	voting_power_{e+1}  = voting_power_e * exchange_rate_{e+1} * 10^8 / base_exchange_rate_{e+1}
//
// Every division truncates toward zero (big.Int.Quo on non-negative
// operands is floor division), and the truncation direction is
// consensus-critical: all honest nodes must reach byte-identical results.
func ComputeNextRate(prev RateData, commissionBps uint64, baseRewardNext, baseExchangeNext *big.Int, nextEpoch uint64) RateData {
	commissionScaled := new(big.Int).Mul(big.NewInt(int64(commissionBps)), bpsToScaleFactor)
	headroom := new(big.Int).Sub(Scale, commissionScaled)
	if headroom.Sign() < 0 {
		headroom.SetInt64(0)
	}

	rewardRate := new(big.Int).Mul(headroom, baseRewardNext)
	rewardRate.Quo(rewardRate, Scale)

	exchangeRate := new(big.Int).Add(rewardRate, Scale)
	exchangeRate.Mul(exchangeRate, prev.ExchangeRate)
	exchangeRate.Quo(exchangeRate, Scale)

	votingPower := new(big.Int).Mul(prev.VotingPower, exchangeRate)
	votingPower.Mul(votingPower, Scale)
	if baseExchangeNext.Sign() != 0 {
		votingPower.Quo(votingPower, baseExchangeNext)
	}

	return RateData{
		Epoch:        nextEpoch,
		RewardRate:   rewardRate,
		ExchangeRate: exchangeRate,
		VotingPower:  votingPower,
	}
}

// ExpectedDelegation computes floor(unbonded * 10^8 / exchange_rate), the
// amount a Delegate action must declare.
func ExpectedDelegation(unbonded uint64, exchangeRate *big.Int) *big.Int {
	n := new(big.Int).Mul(big.NewInt(int64(unbonded)), Scale)
	return n.Quo(n, exchangeRate)
}

// ExpectedUnbonded computes floor(delegation * exchange_rate / 10^8), the
// amount an Undelegate action must declare.
func ExpectedUnbonded(delegation uint64, exchangeRate *big.Int) *big.Int {
	n := new(big.Int).Mul(big.NewInt(int64(delegation)), exchangeRate)
	return n.Quo(n, Scale)
}
