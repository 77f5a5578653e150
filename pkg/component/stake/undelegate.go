package stake

import (
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
)

// StageUnbonding records an Undelegate action's staged claim, maturing at
// fromEpoch + unbondingEpochs, per
// original_source/crates/core/component/stake/src/undelegate.rs.
func StageUnbonding(delta *store.Layer, owner, validator string, fromEpoch, seq uint64, amount *big.Int) error {
	u := UnbondingTokens{
		Validator: validator,
		FromEpoch: fromEpoch,
		Amount:    amount,
		Owner:     owner,
	}
	return PutUnbonding(delta, owner, seq, u)
}

// ClaimUnbonding validates and marks an UndelegateClaim's target record
// spent, returning the amount now unbonded. currentEpoch must be at least
// FromEpoch + unbondingEpochs for the claim to mature.
func ClaimUnbonding(delta *store.Layer, owner string, seq, currentEpoch, unbondingEpochs uint64) (*big.Int, error) {
	u, err := GetUnbonding(delta, owner, seq)
	if err != nil {
		return nil, err
	}
	if u.Claimed {
		return nil, apperrors.Tx(apperrors.ErrConsensusRuleViolation, "unbonding record already claimed")
	}
	if currentEpoch < u.FromEpoch+unbondingEpochs {
		return nil, apperrors.Tx(apperrors.ErrEpochMismatch, "unbonding period has not elapsed")
	}
	u.Claimed = true
	if err := PutUnbonding(delta, owner, seq, u); err != nil {
		return nil, err
	}
	return u.Amount, nil
}
