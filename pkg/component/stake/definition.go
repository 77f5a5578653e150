package stake

import (
	"errors"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
)

// ApplyDefinition accepts a ValidatorDefinition action's payload: on first
// sight of an identity it creates a Defined validator; on re-definition it
// requires SequenceNumber to strictly increase (replay protection), per
// original_source/component/src/stake/validator/definition.rs.
func ApplyDefinition(delta *store.Layer, def Validator) error {
	existing, err := GetValidator(delta, def.Identity)
	if err != nil {
		if errIsUnknownValidator(err) {
			def.State = Defined
			if def.TotalDelegation == nil {
				def.TotalDelegation = zero()
			}
			if err := PutValidator(delta, &def); err != nil {
				return err
			}
			return AddToIndex(delta, def.Identity)
		}
		return err
	}

	if def.SequenceNumber <= existing.SequenceNumber {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "validator definition sequence_number must strictly increase")
	}
	def.State = existing.State
	def.TotalDelegation = existing.TotalDelegation
	return PutValidator(delta, &def)
}

func errIsUnknownValidator(err error) bool {
	return errors.Is(err, apperrors.ErrUnknownValidator)
}

func zero() *big.Int { return big.NewInt(0) }
