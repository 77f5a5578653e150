// Package component defines the lifecycle contract every state-owning
// subsystem implements, and the fixed invocation order the orchestrator
// enforces across them. Each concrete component lives in its own
// subpackage (chain, sct, shieldedpool, fee, stake, governance, dao, dex,
// ibc) and owns a disjoint keyspace prefix.
package component

import (
	"time"

	"github.com/shieldnet/core/pkg/store"
)

// Order is the strict dependency order every block phase invokes
// components in. Downstream components may read upstream state (by
// holding a reference to the upstream component) but orchestration never
// schedules a downstream hook before every upstream hook for that phase
// has completed.
var Order = []string{
	"chain", "sct", "shielded_pool", "fee", "stake",
	"governance", "dao", "dex", "ibc", "app_assembly",
}

// InitChainRequest carries the genesis content each component initializes
// its keyspace from.
type InitChainRequest struct {
	ChainID string
	Time    time.Time
	AppHash []byte
}

// BeginBlockRequest carries per-block context available before any
// transaction executes.
type BeginBlockRequest struct {
	Height int64
	Time   time.Time
}

// EndBlockRequest carries per-block context available after every
// transaction in the block has executed.
type EndBlockRequest struct {
	Height int64
}

// Lifecycle is the three-hook contract a component implements. Not every
// concrete component type below literally implements this Go interface
// (some need extra per-call arguments specific to their domain, e.g. the
// stake component's end_epoch needs the base reward rate), but all follow
// its shape: init_chain, begin_block and end_block. Components that close
// epochs also have an end_epoch hook, outside this interface, run on each
// epoch-boundary height (see chain.IsEpochBoundary).
type Lifecycle interface {
	InitChain(delta *store.Layer, req InitChainRequest) error
	BeginBlock(delta *store.Layer, req BeginBlockRequest) error
	EndBlock(delta *store.Layer, req EndBlockRequest) error
}
