// Package dao holds a single DAO-owned balance keyed by asset, mutated by
// deposits (DaoDeposit actions, genesis allocations, collected fees and
// forfeited proposal deposits) and by DaoSpend actions.
package dao

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/store"
)

func balanceKey(asset string) []byte {
	return []byte("dao/balance/" + asset)
}

type Component struct{}

func New() *Component { return &Component{} }

func (c *Component) InitChain(delta *store.Layer, req component.InitChainRequest) error { return nil }

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error { return nil }

// Balance returns the DAO's current holding of asset, zero if never
// touched.
func Balance(r store.Reader, asset string) (*big.Int, error) {
	b, err := r.Get(balanceKey(asset))
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

func putBalance(delta *store.Layer, asset string, v *big.Int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	delta.Put(balanceKey(asset), b)
	return nil
}

// Deposit credits amount of asset to the DAO balance. Any account may
// deposit; no authorization check is performed here, and the DaoDeposit
// action handler's check_stateful phase checks nothing either (its native
// leg is covered by the transaction-wide balance check).
func Deposit(delta *store.Layer, asset string, amount *big.Int) error {
	cur, err := Balance(delta, asset)
	if err != nil {
		return err
	}
	cur.Add(cur, amount)
	return putBalance(delta, asset, cur)
}

// Spend debits amount of asset from the DAO balance. Only the DaoSpend
// action handler calls this, after its check_stateful phase has rejected a
// spend above the current balance; it is block-fatal for the balance to go
// negative, since that would mean a spend passed that check without the
// chain actually holding the funds.
func Spend(delta *store.Layer, asset string, amount *big.Int) error {
	cur, err := Balance(delta, asset)
	if err != nil {
		return err
	}
	if cur.Cmp(amount) < 0 {
		return apperrors.Block(apperrors.ErrInvariantViolation, "dao spend exceeds balance for asset "+asset)
	}
	cur.Sub(cur, amount)
	return putBalance(delta, asset, cur)
}
