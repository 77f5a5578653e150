package dao

import (
	"math/big"
	"testing"

	"github.com/shieldnet/core/pkg/store"
)

func newTestLayer(t *testing.T) *store.Layer {
	t.Helper()
	s, err := store.Open(store.MemKV())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s.NewBlockOverlay().BeginTransaction()
}

func TestDepositAndSpendRoundTrip(t *testing.T) {
	delta := newTestLayer(t)
	if err := Deposit(delta, "upenumbra", big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := Deposit(delta, "upenumbra", big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	bal, err := Balance(delta, "upenumbra")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("expected balance 1500, got %s", bal)
	}
	if err := Spend(delta, "upenumbra", big.NewInt(1500)); err != nil {
		t.Fatalf("spend: %v", err)
	}
	bal, _ = Balance(delta, "upenumbra")
	if bal.Sign() != 0 {
		t.Fatalf("expected zero balance after full spend, got %s", bal)
	}
}

func TestSpendExceedingBalanceIsBlockFatal(t *testing.T) {
	delta := newTestLayer(t)
	if err := Deposit(delta, "upenumbra", big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := Spend(delta, "upenumbra", big.NewInt(11)); err == nil {
		t.Fatalf("expected spend exceeding balance to fail")
	}
}

func TestBalanceDefaultsToZero(t *testing.T) {
	delta := newTestLayer(t)
	bal, err := Balance(delta, "untouched")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected zero balance for untouched asset, got %s", bal)
	}
}
