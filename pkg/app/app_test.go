package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/shieldnet/core/pkg/component/ibc"
	"github.com/shieldnet/core/pkg/store"
)

const testGenesisYAML = `
chain_id: shieldnet-app-test
genesis_time: 2024-01-01T00:00:00Z
params:
  chain_id: shieldnet-app-test
  epoch_duration: 10
  unbonding_epochs: 1
  active_validator_limit: 10
  base_reward_rate: 0
  slashing_penalty_misbehavior_bps: 0
  slashing_penalty_downtime_bps: 0
  signed_blocks_window_len: 0
  missed_blocks_maximum: 0
  ibc_enabled: false
  inbound_ics20_enabled: false
  outbound_ics20_enabled: false
  dex_max_hops: 4
  dex_arb_token: ""
base_reward_bps: 0
base_fee: 0
validators:
  - identity: validator-1
    consensus_key: dGVzdC1rZXk=
    name: val1
    website: ""
    funding_streams: []
    total_delegation: "0"
dao_allocations: []
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	s, err := store.Open(store.MemKV())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return New(s, ibc.TrustedVerifier{})
}

func genesisPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	if err := os.WriteFile(path, []byte(testGenesisYAML), 0o644); err != nil {
		t.Fatalf("write genesis fixture: %v", err)
	}
	return path
}

func TestInitChainBootstrapsAndReturnsAppHash(t *testing.T) {
	a := newTestApp(t)
	resp, err := a.InitChain(context.Background(), &abcitypes.RequestInitChain{
		AppStateBytes: []byte(genesisPath(t)),
	})
	if err != nil {
		t.Fatalf("init chain: %v", err)
	}
	if len(resp.AppHash) == 0 {
		t.Fatalf("expected non-empty app hash from init chain")
	}
	if len(resp.Validators) != 1 {
		t.Fatalf("expected 1 validator update, got %d", len(resp.Validators))
	}
}

func TestFinalizeBlockAdvancesHeightAndAppHash(t *testing.T) {
	a := newTestApp(t)
	initResp, err := a.InitChain(context.Background(), &abcitypes.RequestInitChain{
		AppStateBytes: []byte(genesisPath(t)),
	})
	if err != nil {
		t.Fatalf("init chain: %v", err)
	}

	fbResp, err := a.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Height: 1, Time: time.Unix(100, 0),
	})
	if err != nil {
		t.Fatalf("finalize block: %v", err)
	}
	if len(fbResp.AppHash) == 0 {
		t.Fatalf("expected non-empty app hash from finalize block")
	}
	if bytes.Equal(fbResp.AppHash, initResp.AppHash) {
		t.Fatalf("expected app hash to change after a block advances chain height/time")
	}

	if _, err := a.Commit(context.Background(), &abcitypes.RequestCommit{}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if a.store.Version() != 2 {
		t.Fatalf("expected store version 2 after init+one block, got %d", a.store.Version())
	}
}

func TestEpochBoundaryRolloverDoesNotError(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.InitChain(context.Background(), &abcitypes.RequestInitChain{
		AppStateBytes: []byte(genesisPath(t)),
	}); err != nil {
		t.Fatalf("init chain: %v", err)
	}

	// The fixture's epoch_duration is 10, so height 10 is the epoch
	// boundary block; walk the chain up to and past it.
	for h := int64(1); h <= 11; h++ {
		if _, err := a.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
			Height: h, Time: time.Unix(100+h, 0),
		}); err != nil {
			t.Fatalf("finalize block %d: %v", h, err)
		}
		if _, err := a.Commit(context.Background(), &abcitypes.RequestCommit{}); err != nil {
			t.Fatalf("commit block %d: %v", h, err)
		}
	}
	if a.store.Version() != 12 {
		t.Fatalf("expected store version 12 after init+11 blocks, got %d", a.store.Version())
	}
}

func TestCheckTxRejectsMalformedTransaction(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.InitChain(context.Background(), &abcitypes.RequestInitChain{
		AppStateBytes: []byte(genesisPath(t)),
	}); err != nil {
		t.Fatalf("init chain: %v", err)
	}

	resp, err := a.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: []byte("not json")})
	if err != nil {
		t.Fatalf("check tx: %v", err)
	}
	if resp.Code == 0 {
		t.Fatalf("expected malformed transaction to be rejected")
	}
}
