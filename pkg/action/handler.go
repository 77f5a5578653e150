// Package action implements the three-phase action-handler contract
// (check_stateless, check_stateful, execute) spec.md §4.3 requires every
// transaction action kind to satisfy, plus the transaction-level pipeline
// that dispatches a decoded wire.Transaction through it. Grounded on the
// teacher's validateValidatorBlock dispatch shape
// (pkg/consensus/validator_block_invariants.go), generalized from a single
// validator-block check into a closed tagged-union dispatcher over
// twenty-one action kinds.
package action

import (
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/dao"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/component/fee"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/component/ibc"
	"github.com/shieldnet/core/pkg/component/sct"
	"github.com/shieldnet/core/pkg/component/shieldedpool"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

// Handler is the uniform three-phase contract every action kind implements.
// check_stateless depends only on the action's own decoded payload;
// check_stateful reads a snapshot or block overlay; execute mutates a
// per-transaction delta. Resolves spec.md §9's "two parallel ActionHandler
// trait shapes" open question by exposing exactly this one interface for
// every action kind, with no per-kind extensions.
type Handler interface {
	CheckStateless() error
	CheckStateful(r store.Reader) error
	Execute(delta *store.Layer) error

	// NativeBalance reports this action's signed contribution to the
	// transaction-wide native-asset balance check (spec.md §4.3's "balance
	// commitments sum to zero modulo declared fee"). Value that moves in a
	// different asset (delegation tokens, DAO-held assets, DEX position
	// reserves) contributes nothing here, and those actions enforce their
	// own per-asset conservation inline in Execute; an action with a native
	// leg (Delegate's and Undelegate's unbonded amount, a native DAO
	// deposit or spend) reports that leg here. This is because the real system's
	// homomorphic multi-asset value commitments are out of scope (the ZK
	// proof system itself is a Non-goal) and this simplified model tracks
	// only the single native asset through the shared balance equation.
	NativeBalance() int64
}

// Components bundles every component in their fixed dependency order
// (pkg/component.Order) so a Handler can read and mutate any of them.
// Holding these as plain references (not cached parameter values) keeps
// faith with spec.md §9's "never cache globals" design note: every read
// still goes through the snapshot or delta passed into each phase.
type Components struct {
	Chain        *chain.Component
	SCT          *sct.Component
	ShieldedPool *shieldedpool.Component
	Fee          *fee.Component
	Stake        *stake.Component
	Governance   *governance.Component
	DAO          *dao.Component
	Dex          *dex.Component
	IBC          *ibc.Component
}
