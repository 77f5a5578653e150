package action

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

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
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
	"github.com/shieldnet/core/pkg/wire"
)

const testChainID = "shieldnet-test"

func bigZero() *big.Int { return big.NewInt(0) }

// wireTransaction builds a well-formed envelope around actions: fmd_clues
// and memo are derived automatically from the output actions present so
// each test only has to state the action list itself.
func wireTransaction(t *testing.T, chainID string, expiryHeight uint64, actions []wire.Action) wire.Transaction {
	t.Helper()
	outputCount := 0
	for _, a := range actions {
		if a.Kind == wire.ActionOutput {
			outputCount++
		}
	}
	var memo []byte
	if outputCount > 0 {
		memo = []byte("memo")
	}
	return wire.Transaction{
		Body: wire.TransactionBody{
			Actions:      actions,
			ExpiryHeight: expiryHeight,
			ChainID:      chainID,
			FmdClues:     outputCount,
			Memo:         memo,
		},
		BindingSig: []byte{1},
	}
}

func newTestComponents(t *testing.T) (*Components, *store.Layer) {
	t.Helper()
	s, err := store.Open(store.MemKV())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	overlay := s.NewBlockOverlay()

	chainComp := chain.New()
	sctComp := sct.New()
	poolComp := shieldedpool.New(sctComp)
	feeComp := fee.New()
	stakeComp := stake.New()
	govComp := governance.New(stakeComp)
	daoComp := dao.New()
	dexComp := dex.New()
	ibcComp := ibc.New(ibc.TrustedVerifier{})

	initReq := component.InitChainRequest{ChainID: testChainID, Time: time.Unix(0, 0)}
	params := chain.Params{ChainID: testChainID, EpochDuration: 100, ActiveValidatorLimit: 10}

	if err := chainComp.InitChain(overlay, params, initReq); err != nil {
		t.Fatalf("chain init: %v", err)
	}
	if err := sctComp.InitChain(overlay, initReq); err != nil {
		t.Fatalf("sct init: %v", err)
	}
	if err := poolComp.InitChain(overlay, initReq); err != nil {
		t.Fatalf("pool init: %v", err)
	}
	if err := feeComp.InitChain(overlay, 0, initReq); err != nil {
		t.Fatalf("fee init: %v", err)
	}
	if err := stakeComp.InitChain(overlay, nil, bigZero(), initReq); err != nil {
		t.Fatalf("stake init: %v", err)
	}
	if err := govComp.InitChain(overlay, initReq); err != nil {
		t.Fatalf("gov init: %v", err)
	}
	if err := daoComp.InitChain(overlay, initReq); err != nil {
		t.Fatalf("dao init: %v", err)
	}
	if err := dexComp.InitChain(overlay, initReq); err != nil {
		t.Fatalf("dex init: %v", err)
	}
	if err := ibcComp.InitChain(overlay, initReq); err != nil {
		t.Fatalf("ibc init: %v", err)
	}

	if err := chainComp.BeginBlock(overlay, component.BeginBlockRequest{Height: 1, Time: time.Unix(1, 0)}); err != nil {
		t.Fatalf("chain begin block: %v", err)
	}

	return &Components{
		Chain: chainComp, SCT: sctComp, ShieldedPool: poolComp, Fee: feeComp,
		Stake: stakeComp, Governance: govComp, DAO: daoComp, Dex: dexComp, IBC: ibcComp,
	}, overlay
}

func outputAction(t *testing.T, ciphertext string, value int64) wire.Action {
	t.Helper()
	payload, err := json.Marshal(OutputPayload{NoteCiphertext: []byte(ciphertext), Keep: true, ValueBalance: value})
	if err != nil {
		t.Fatalf("marshal output payload: %v", err)
	}
	return wire.Action{Kind: wire.ActionOutput, Payload: payload}
}

func spendAction(t *testing.T, anchor []byte, nullifier string, value int64) wire.Action {
	t.Helper()
	payload, err := json.Marshal(SpendPayload{
		Nullifier:    nullifier,
		Anchor:       anchor,
		ValueBalance: value,
	})
	if err != nil {
		t.Fatalf("marshal spend payload: %v", err)
	}
	return wire.Action{Kind: wire.ActionSpend, Payload: payload}
}

func TestApplyTransactionBalancedSpendAndOutput(t *testing.T) {
	comps, overlay := newTestComponents(t)

	root, err := sct.PublishedRoot(overlay)
	if err != nil {
		t.Fatalf("published root: %v", err)
	}
	anchor := tct.MarshalHash(root)
	nullifier := hex.EncodeToString(make([]byte, 32))

	tx := wireTransaction(t, testChainID, 0, []wire.Action{
		spendAction(t, anchor, nullifier, 100),
		outputAction(t, "note-ciphertext", 100),
	})

	if err := ApplyTransaction(overlay, comps, tx); err != nil {
		t.Fatalf("apply transaction: %v", err)
	}
}

func TestApplyTransactionRejectsChainIDMismatch(t *testing.T) {
	comps, overlay := newTestComponents(t)
	tx := wireTransaction(t, "some-other-chain", 0, []wire.Action{outputAction(t, "x", 0)})

	err := ApplyTransaction(overlay, comps, tx)
	if !errors.Is(err, apperrors.ErrChainIDMismatch) {
		t.Fatalf("expected chain id mismatch, got %v", err)
	}
}

func TestApplyTransactionRejectsExpiredTransaction(t *testing.T) {
	comps, overlay := newTestComponents(t)
	if err := comps.Chain.BeginBlock(overlay, component.BeginBlockRequest{Height: 5, Time: time.Unix(5, 0)}); err != nil {
		t.Fatalf("advance block height: %v", err)
	}
	tx := wireTransaction(t, testChainID, 1, []wire.Action{outputAction(t, "x", 0)})

	err := ApplyTransaction(overlay, comps, tx)
	if !errors.Is(err, apperrors.ErrExpiredTransaction) {
		t.Fatalf("expected expired transaction, got %v", err)
	}
}

func TestApplyTransactionRejectsUnbalancedValue(t *testing.T) {
	comps, overlay := newTestComponents(t)
	root, err := sct.PublishedRoot(overlay)
	if err != nil {
		t.Fatalf("published root: %v", err)
	}
	anchor := tct.MarshalHash(root)
	nullifier := hex.EncodeToString(make([]byte, 32))

	tx := wireTransaction(t, testChainID, 0, []wire.Action{
		spendAction(t, anchor, nullifier, 100),
		outputAction(t, "note-ciphertext", 50),
	})

	err = ApplyTransaction(overlay, comps, tx)
	if !errors.Is(err, apperrors.ErrValueImbalance) {
		t.Fatalf("expected value imbalance, got %v", err)
	}
}

func TestApplyTransactionRejectsSameBlockDoubleSpend(t *testing.T) {
	comps, overlay := newTestComponents(t)
	root, err := sct.PublishedRoot(overlay)
	if err != nil {
		t.Fatalf("published root: %v", err)
	}
	anchor := tct.MarshalHash(root)
	nullifier := hex.EncodeToString(make([]byte, 32))

	first := wireTransaction(t, testChainID, 0, []wire.Action{
		spendAction(t, anchor, nullifier, 100),
		outputAction(t, "note-ciphertext", 100),
	})
	if err := ApplyTransaction(overlay, comps, first); err != nil {
		t.Fatalf("first spend: %v", err)
	}

	second := wireTransaction(t, testChainID, 0, []wire.Action{
		spendAction(t, anchor, nullifier, 100),
		outputAction(t, "note-ciphertext-2", 100),
	})
	err = ApplyTransaction(overlay, comps, second)
	if !errors.Is(err, apperrors.ErrDuplicateNullifier) {
		t.Fatalf("expected duplicate nullifier, got %v", err)
	}
}

func TestApplyTransactionRejectsMissingMemoWithOutputs(t *testing.T) {
	comps, overlay := newTestComponents(t)
	tx := wireTransaction(t, testChainID, 0, []wire.Action{outputAction(t, "x", 0)})
	tx.Body.Memo = nil
	tx.Body.FmdClues = 1

	err := ApplyTransaction(overlay, comps, tx)
	if !errors.Is(err, apperrors.ErrMalformedAction) {
		t.Fatalf("expected malformed action for missing memo, got %v", err)
	}
}
