package stake

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
)

const keyValidatorIndex = "staking/validator_index"

// AddToIndex records a validator identity in the chain-wide index so
// end-epoch reconciliation (which needs to enumerate every validator) does
// not depend on a keyspace prefix scan over the working overlay, which
// (unlike a persisted Snapshot) cannot enumerate pending in-memory writes.
func AddToIndex(delta *store.Layer, identity string) error {
	idx, err := ListIndex(delta)
	if err != nil {
		return err
	}
	for _, id := range idx {
		if id == identity {
			return nil
		}
	}
	idx = append(idx, identity)
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	delta.Put([]byte(keyValidatorIndex), b)
	return nil
}

func ListIndex(r store.Reader) ([]string, error) {
	b, err := r.Get([]byte(keyValidatorIndex))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	var idx []string
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return idx, nil
}

func delegationChangeKey(identity string) []byte {
	return []byte("staking/delegation_change/" + identity)
}

// QueueDelegationChange accumulates a signed delegation-amount delta for a
// validator within the current epoch, applied to TotalDelegation at the
// next end_epoch. Multiple Delegate/Undelegate actions against the same
// validator within or across blocks of the epoch sum correctly into one
// net change, satisfying spec.md §8's boundary behavior for repeated
// Delegate actions in a single transaction.
func QueueDelegationChange(delta *store.Layer, identity string, amount *big.Int) error {
	cur, err := readDelegationChange(delta, identity)
	if err != nil {
		return err
	}
	cur.Add(cur, amount)
	b, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	delta.Put(delegationChangeKey(identity), b)
	return nil
}

func readDelegationChange(r store.Reader, identity string) (*big.Int, error) {
	b, err := r.Get(delegationChangeKey(identity))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return big.NewInt(0), nil
	}
	v := new(big.Int)
	if err := json.Unmarshal(b, v); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return v, nil
}

// EndEpoch reconciles every indexed validator: applies the epoch's queued
// delegation changes, advances rate data, and recomputes Active/Inactive
// membership against activeValidatorLimit. Jailed/Tombstoned/Disabled
// states are never assigned here; they only ever result from evidence
// handling or an operator-submitted ValidatorDefinition update.
func (c *Component) EndEpoch(delta *store.Layer, currentEpoch uint64, activeValidatorLimit int, baseRewardNext *big.Int) error {
	identities, err := ListIndex(delta)
	if err != nil {
		return err
	}

	baseRewardCur, baseExchangeCur, err := GetBaseRate(delta, currentEpoch)
	if err != nil {
		return apperrors.Block(apperrors.ErrInvariantViolation, err.Error())
	}
	_ = baseRewardCur
	baseExchangeNext := new(big.Int).Mul(baseExchangeCur, new(big.Int).Add(baseRewardNext, Scale))
	baseExchangeNext.Quo(baseExchangeNext, Scale)
	if err := PutBaseRate(delta, currentEpoch+1, baseRewardNext, baseExchangeNext); err != nil {
		return err
	}

	validators := make([]Validator, 0, len(identities))
	for _, id := range identities {
		v, err := GetValidator(delta, id)
		if err != nil {
			return err
		}

		change, err := readDelegationChange(delta, id)
		if err != nil {
			return err
		}
		v.TotalDelegation = new(big.Int).Add(v.TotalDelegation, change)
		if v.TotalDelegation.Sign() < 0 {
			return apperrors.Block(apperrors.ErrInvariantViolation, "validator total delegation went negative: "+id)
		}
		delta.Put(delegationChangeKey(id), mustMarshalZero())

		prevRate, err := GetRate(delta, id, currentEpoch)
		if err != nil {
			return err
		}
		nextRate := ComputeNextRate(prevRate, v.CommissionBps(), baseRewardNext, baseExchangeNext, currentEpoch+1)
		if nextRate.ExchangeRate.Cmp(prevRate.ExchangeRate) < 0 && v.State != Jailed && v.State != Tombstoned {
			return apperrors.Block(apperrors.ErrInvariantViolation, "exchange rate decreased for non-slashed validator "+id)
		}
		// Voting power tracks delegated stake valued at the new exchange
		// rate, not the compounding recurrence alone: a delegation change
		// this epoch must be reflected immediately, not phased in.
		nextRate.VotingPower = new(big.Int).Mul(v.TotalDelegation, nextRate.ExchangeRate)
		nextRate.VotingPower.Quo(nextRate.VotingPower, Scale)
		if err := PutRate(delta, id, nextRate); err != nil {
			return err
		}

		if v.State == Defined {
			v.State = Inactive
		}
		validators = append(validators, *v)
	}

	active := map[string]bool{}
	for _, id := range ActiveSet(validators, activeValidatorLimit) {
		active[id] = true
	}
	for i := range validators {
		v := &validators[i]
		switch v.State {
		case Active, Inactive:
			if active[v.Identity] {
				v.State = Active
			} else {
				v.State = Inactive
			}
		}
		if err := PutValidator(delta, v); err != nil {
			return err
		}
	}
	return nil
}

func mustMarshalZero() []byte {
	b, _ := json.Marshal(big.NewInt(0))
	return b
}
