// Package app wires every component into a single ABCI application:
// InitChain bootstraps genesis state through each component in dependency
// order, CheckTx and FinalizeBlock drive transactions through the
// check_stateless/check_stateful/execute pipeline, FinalizeBlock persists
// the block's overlay and returns the resulting app hash, and Commit
// confirms it. Grounded on the
// teacher's ValidatorApp (pkg/consensus/abci_validator.go): the mutex-
// guarded struct holding per-block tracking fields, the FinalizeBlock/
// Commit split, and the path-based Query dispatch are all carried over:
// only the domain logic inside each hook is replaced.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"sync"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/shieldnet/core/internal/metrics"
	"github.com/shieldnet/core/pkg/action"
	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/dao"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/component/fee"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/component/ibc"
	"github.com/shieldnet/core/pkg/component/sct"
	"github.com/shieldnet/core/pkg/component/shieldedpool"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/genesis"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
	"github.com/shieldnet/core/pkg/wire"
)

// App implements abcitypes.Application over the component set, gluing
// CometBFT's block lifecycle to the state-machine packages.
type App struct {
	logger *log.Logger
	mu     sync.Mutex

	store *store.Store
	comps *action.Components
	codec wire.Codec

	// checkTxOverlay is rebuilt fresh on every Commit so CheckTx always
	// validates against the latest committed state without interleaving
	// with the in-progress block overlay FinalizeBlock is building.
	checkTxOverlay *store.Layer

	// blockOverlay is the current block's working state. FinalizeBlock
	// creates it and commits it to the store before returning; Commit clears
	// it. InitChain builds its own local overlay instead.
	blockOverlay *store.Layer

	currentHeight int64
	currentTime   time.Time
	lastAppHash   []byte
}

// New constructs the App. Every component is wired here in
// component.Order, so a reviewer can read the dependency chain in one
// place: chain has no upstream dependency, shieldedpool is built on sct (it
// holds a reference to the SCT component), fee and stake are downstream of
// chain only, governance depends on
// stake (it needs validator state for voting eligibility), and dao/dex/ibc
// close out the chain.
func New(st *store.Store, verifier ibc.ClientVerifier) *App {
	chainComp := chain.New()
	sctComp := sct.New()
	poolComp := shieldedpool.New(sctComp)
	feeComp := fee.New()
	stakeComp := stake.New()
	govComp := governance.New(stakeComp)
	daoComp := dao.New()
	dexComp := dex.New()
	ibcComp := ibc.New(verifier)

	comps := &action.Components{
		Chain:        chainComp,
		SCT:          sctComp,
		ShieldedPool: poolComp,
		Fee:          feeComp,
		Stake:        stakeComp,
		Governance:   govComp,
		DAO:          daoComp,
		Dex:          dexComp,
		IBC:          ibcComp,
	}

	return &App{
		logger: log.New(os.Stderr, "[shieldnoded] ", log.LstdFlags),
		store:  st,
		comps:  comps,
		codec:  wire.JSONCodec{},
	}
}

var _ abcitypes.Application = (*App)(nil)

// Info reports the last committed height and app hash so CometBFT can
// resume consensus from where the store left off after a restart.
func (a *App) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &abcitypes.ResponseInfo{
		Data:             "shieldnoded",
		Version:          "0.1.0",
		AppVersion:       1,
		LastBlockHeight:  a.store.Version(),
		LastBlockAppHash: a.lastAppHash,
	}, nil
}

// InitChain applies the genesis document through every component's
// InitChain hook, in component.Order, then commits the resulting state as
// block zero.
func (a *App) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := genesisDocFromRequest(req)
	if err != nil {
		return nil, err
	}

	overlay := a.store.NewBlockOverlay()
	initReq := component.InitChainRequest{ChainID: doc.ChainID, Time: doc.GenesisTime}

	if err := a.comps.Chain.InitChain(overlay, doc.Params, initReq); err != nil {
		return nil, err
	}
	if err := a.comps.SCT.InitChain(overlay, initReq); err != nil {
		return nil, err
	}
	if err := a.comps.ShieldedPool.InitChain(overlay, initReq); err != nil {
		return nil, err
	}
	if err := a.comps.Fee.InitChain(overlay, doc.BaseFee, initReq); err != nil {
		return nil, err
	}
	validators, err := doc.StakeValidators()
	if err != nil {
		return nil, err
	}
	if err := a.comps.Stake.InitChain(overlay, validators, doc.BaseReward(), initReq); err != nil {
		return nil, err
	}
	if err := a.comps.Governance.InitChain(overlay, initReq); err != nil {
		return nil, err
	}
	if err := a.comps.DAO.InitChain(overlay, initReq); err != nil {
		return nil, err
	}
	balances, err := doc.DAOBalances()
	if err != nil {
		return nil, err
	}
	for asset, amount := range balances {
		if err := dao.Deposit(overlay, asset, amount); err != nil {
			return nil, err
		}
	}
	if err := a.comps.Dex.InitChain(overlay, initReq); err != nil {
		return nil, err
	}
	if err := a.comps.IBC.InitChain(overlay, initReq); err != nil {
		return nil, err
	}

	version, appHash, err := a.store.Commit(overlay)
	if err != nil {
		return nil, err
	}
	a.currentHeight = version
	a.currentTime = doc.GenesisTime
	a.lastAppHash = appHash
	a.checkTxOverlay = a.store.NewBlockOverlay()

	validatorUpdates := make([]abcitypes.ValidatorUpdate, 0, len(validators))
	for _, v := range validators {
		validatorUpdates = append(validatorUpdates, abcitypes.ValidatorUpdate{
			PubKeyBytes: v.ConsensusKey,
			PubKeyType:  "ed25519",
			Power:       1,
		})
	}

	return &abcitypes.ResponseInitChain{
		AppHash:    appHash,
		Validators: validatorUpdates,
	}, nil
}

// CheckTx runs the stateless and stateful checks against the latest
// committed state without executing, so the mempool can reject an invalid
// transaction before it ever reaches a block.
func (a *App) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	tx, err := a.codec.Decode(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: "malformed transaction: " + err.Error()}, nil
	}

	a.mu.Lock()
	overlay := a.checkTxOverlay.BeginTransaction()
	a.mu.Unlock()

	if err := action.ApplyTransaction(overlay, a.comps, *tx); err != nil {
		store.DiscardTransaction(overlay)
		metrics.TransactionsRejected.WithLabelValues(rejectReason(err)).Inc()
		return &abcitypes.ResponseCheckTx{Code: 1, Log: err.Error()}, nil
	}
	store.DiscardTransaction(overlay) // CheckTx never commits; FinalizeBlock re-runs it for real.
	return &abcitypes.ResponseCheckTx{Code: 0}, nil
}

// PrepareProposal accepts the mempool's transaction order unchanged; this
// state machine has no block-building optimization (e.g. batch-swap
// ordering) that would benefit from reordering at proposal time.
func (a *App) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

// ProcessProposal rejects a proposed block only if it contains an
// undecodable transaction; full stateful validation happens in
// FinalizeBlock, since decode-only acceptance here keeps proposer and
// validator logic from diverging over in-flight state.
func (a *App) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, tx := range req.Txs {
		if _, err := a.codec.Decode(tx); err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// FinalizeBlock runs BeginBlock across every component, applies each
// transaction through the full pipeline against the block overlay, then
// runs EndBlock (and, on an epoch boundary, EndEpoch) across the
// components that implement them, flushing the block's collected fees into
// the DAO after governance's EndBlock. It writes the block overlay to the
// store itself (see the AppHash note below) rather than waiting for the
// ABCI Commit call: per the ABCI v0.38+ contract, Commit is a distinct RPC
// the consensus engine issues once FinalizeBlock's response has been
// accepted by the network, and here it only confirms the write.
func (a *App) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.blockOverlay = a.store.NewBlockOverlay()
	beginReq := component.BeginBlockRequest{Height: req.Height, Time: req.Time}

	if err := a.comps.Chain.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.SCT.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.ShieldedPool.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.Fee.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.Stake.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.Governance.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.DAO.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.Dex.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}
	if err := a.comps.IBC.BeginBlock(a.blockOverlay, beginReq); err != nil {
		return nil, err
	}

	txResults := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, raw := range req.Txs {
		txResults[i] = a.finalizeOne(raw)
	}

	params, err := chain.LoadParams(a.blockOverlay)
	if err != nil {
		return nil, err
	}

	endReq := component.EndBlockRequest{Height: req.Height}
	if err := a.comps.SCT.EndBlock(a.blockOverlay, endReq); err != nil {
		return nil, err
	}
	if err := a.comps.ShieldedPool.EndBlock(a.blockOverlay, endReq); err != nil {
		return nil, err
	}
	if err := a.comps.Stake.EndBlock(a.blockOverlay, endReq); err != nil {
		return nil, err
	}
	if err := a.comps.Governance.EndBlock(a.blockOverlay, endReq, governanceThresholds(params)); err != nil {
		return nil, err
	}
	collected, err := fee.FlushToDAO(a.blockOverlay)
	if err != nil {
		return nil, err
	}
	if collected > 0 {
		if err := dao.Deposit(a.blockOverlay, "unative", new(big.Int).SetUint64(collected)); err != nil {
			return nil, err
		}
	}
	routingParams := dex.RoutingParams{MaxHops: maxInt(params.DexMaxHops, 4)}
	epochStartingHeight := epochStart(req.Height, params.EpochDuration)
	if err := a.comps.Dex.EndBlock(a.blockOverlay, endReq, epochStartingHeight, routingParams, params.DexArbToken); err != nil {
		return nil, err
	}

	var validatorUpdates []abcitypes.ValidatorUpdate
	if chain.IsEpochBoundary(req.Height, params.EpochDuration) {
		updates, err := a.rolloverEpoch(req.Height, params)
		if err != nil {
			return nil, err
		}
		validatorUpdates = updates
		metrics.EpochBoundariesProcessed.Inc()
	}

	// CometBFT v0.38+ requires AppHash on the FinalizeBlock response itself,
	// not on the later Commit response, so the overlay is persisted here
	// rather than deferred: Commit becomes a confirmation step that merely
	// reports back the hash this call already produced.
	_, appHash, err := a.store.Commit(a.blockOverlay)
	if err != nil {
		return nil, err
	}
	a.lastAppHash = appHash
	a.currentHeight = req.Height
	a.currentTime = req.Time
	metrics.CurrentHeight.Set(float64(req.Height))
	metrics.CurrentEpoch.Set(float64(chain.CurrentEpoch(req.Height, params.EpochDuration)))

	return &abcitypes.ResponseFinalizeBlock{TxResults: txResults, AppHash: appHash, ValidatorUpdates: validatorUpdates}, nil
}

// governanceThresholds adapts the chain's governance parameters into the
// shape Tally/Resolve/EmergencyEnactable consume.
func governanceThresholds(params chain.Params) governance.Thresholds {
	return governance.Thresholds{QuorumBps: params.GovernanceQuorumBps, PassBps: params.GovernancePassBps}
}

func (a *App) finalizeOne(raw []byte) *abcitypes.ExecTxResult {
	tx, err := a.codec.Decode(raw)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: 1, Log: "malformed transaction: " + err.Error()}
	}
	if err := action.ApplyTransaction(a.blockOverlay, a.comps, *tx); err != nil {
		if apperrors.IsBlockFatal(err) {
			a.logger.Fatalf("block-fatal error applying transaction at height %d: %v", a.currentHeight+1, err)
		}
		metrics.TransactionsRejected.WithLabelValues(rejectReason(err)).Inc()
		return &abcitypes.ExecTxResult{Code: 1, Log: err.Error()}
	}
	if err := fee.Collect(a.blockOverlay, tx.Body.Fee); err != nil {
		a.logger.Fatalf("collecting fee at height %d: %v", a.currentHeight+1, err)
	}
	metrics.TransactionsAccepted.Inc()
	return &abcitypes.ExecTxResult{Code: 0}
}

// rolloverEpoch runs the once-per-epoch hooks: the TCT's epoch tier close,
// stake's rate/membership reconciliation, and governance's end-of-epoch
// tallying. Order follows component.Order: sct first, then stake before
// governance (tallying weighs votes by stake's freshly recomputed rate
// data), with the validator power update stake's reconciliation feeds
// CometBFT read right after stake. Returns the ABCI validator power updates produced by stake's
// reconciliation, for FinalizeBlock to hand back to the consensus engine.
func (a *App) rolloverEpoch(height int64, params chain.Params) ([]abcitypes.ValidatorUpdate, error) {
	// chain.CurrentEpoch(height, ...) reports the epoch the NEXT block
	// belongs to once height is itself a boundary (height/epochDuration), so
	// the epoch actually closing here is one less: genesis seeds epoch 0's
	// base rate via stake.Component.InitChain, and the first boundary must
	// close that same epoch 0, not the not-yet-seeded epoch 1.
	closingEpoch := chain.CurrentEpoch(height, params.EpochDuration) - 1
	if _, err := a.comps.SCT.EndEpoch(a.blockOverlay); err != nil {
		return nil, err
	}
	baseRewardNext := new(big.Int).SetUint64(params.BaseRewardRate)
	baseRewardNext.Mul(baseRewardNext, stake.Scale)
	baseRewardNext.Div(baseRewardNext, big.NewInt(10_000))
	if err := a.comps.Stake.EndEpoch(a.blockOverlay, closingEpoch, params.ActiveValidatorLimit, baseRewardNext); err != nil {
		return nil, err
	}
	powerUpdates, err := stake.PowerUpdates(a.blockOverlay, closingEpoch+1)
	if err != nil {
		return nil, err
	}
	if err := a.comps.Governance.EndEpoch(a.blockOverlay, height, governanceThresholds(params)); err != nil {
		return nil, err
	}

	validatorUpdates := make([]abcitypes.ValidatorUpdate, len(powerUpdates))
	for i, u := range powerUpdates {
		validatorUpdates[i] = abcitypes.ValidatorUpdate{
			PubKeyBytes: u.ConsensusKey,
			PubKeyType:  "ed25519",
			Power:       u.Power,
		}
	}
	return validatorUpdates, nil
}

// Commit confirms the block FinalizeBlock already persisted. The actual
// write happened inside FinalizeBlock (see its comment on AppHash timing);
// this hook only resets the CheckTx overlay onto the newly committed
// snapshot and reports a retain height for CometBFT's pruning.
func (a *App) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.blockOverlay = nil
	a.checkTxOverlay = a.store.NewBlockOverlay()
	metrics.BlocksCommitted.Inc()

	retainHeight := a.store.Version() - 100
	if retainHeight < 0 {
		retainHeight = 0
	}
	return &abcitypes.ResponseCommit{RetainHeight: retainHeight}, nil
}

// Query dispatches on req.Path against the latest committed snapshot.
// Unlike CheckTx/FinalizeBlock, queries never touch the in-progress block
// overlay: a client asking "what is the state" during block N's execution
// should see block N-1's answer until Commit publishes block N's.
func (a *App) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	snap := a.store.NewSnapshot()
	switch req.Path {
	case "/height":
		return &abcitypes.ResponseQuery{Code: 0, Value: []byte(fmt.Sprintf("%d", a.store.Version()))}, nil
	case "/chain/params":
		params, err := chain.LoadParams(snap)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return queryJSON(params)
	case "/sct/root":
		root, err := sct.PublishedRoot(snap)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Value: tct.MarshalHash(root)}, nil
	case "/staking/validator":
		v, err := stake.GetValidator(snap, string(req.Data))
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return queryJSON(v)
	case "/governance/proposal":
		p, err := governance.GetProposal(snap, decodeUint64Ascii(req.Data))
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return queryJSON(p)
	case "/dao/balance":
		bal, err := dao.Balance(snap, string(req.Data))
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return queryJSON(bal)
	default:
		return &abcitypes.ResponseQuery{Code: 2, Log: "unknown query path: " + req.Path}, nil
	}
}

// ExtendVote/VerifyVoteExtension are unused: this state machine has no
// oracle or cross-chain-price data that needs a validator-signed vote
// extension, unlike the teacher's evidence-gathering consensus extensions.
func (a *App) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *App) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

// State sync is out of scope (spec.md's Non-goals exclude the snapshot
// protocol); these stubs keep the Application interface satisfied while
// telling a requesting peer no snapshots are offered.
func (a *App) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *App) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (a *App) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *App) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

func genesisDocFromRequest(req *abcitypes.RequestInitChain) (*genesis.Doc, error) {
	doc, err := genesis.Load(genesisPathFromAppState(req.AppStateBytes))
	if err != nil {
		return nil, err
	}
	if doc.ChainID == "" {
		doc.ChainID = req.ChainId
	}
	if doc.GenesisTime.IsZero() {
		doc.GenesisTime = req.Time
	}
	return doc, nil
}

// genesisPathFromAppState supports the common CometBFT pattern of passing
// the genesis app_state as raw bytes naming a path, since this state
// machine's genesis document is a standalone YAML file (pkg/genesis) read
// once at InitChain rather than embedded in CometBFT's own genesis.json.
func genesisPathFromAppState(appState []byte) string {
	if len(appState) == 0 {
		return "./genesis.yaml"
	}
	return string(appState)
}

func rejectReason(err error) string {
	var blockErr *apperrors.BlockFatal
	if errors.As(err, &blockErr) {
		return blockErr.Sentinel.Error()
	}
	var txErr *apperrors.TxFatal
	if errors.As(err, &txErr) {
		return txErr.Sentinel.Error()
	}
	return "unknown"
}

// queryJSON marshals v as a successful ABCI query response, the shape every
// domain path above returns on the happy path.
func queryJSON(v interface{}) (*abcitypes.ResponseQuery, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
	}
	return &abcitypes.ResponseQuery{Code: 0, Value: b}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func epochStart(height int64, epochDuration uint64) int64 {
	if epochDuration == 0 {
		return 1
	}
	epoch := chain.CurrentEpoch(height, epochDuration)
	if epoch == 0 {
		return 1
	}
	return int64(epoch * epochDuration)
}

func decodeUint64Ascii(b []byte) uint64 {
	var v uint64
	fmt.Sscanf(string(b), "%d", &v)
	return v
}
