package dex

import (
	"math/big"
	"testing"

	"github.com/google/btree"

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

func resetPriceIndex() {
	globalPriceIndex.mu.Lock()
	defer globalPriceIndex.mu.Unlock()
	globalPriceIndex.trees = map[DirectedTradingPair]*btree.BTree{}
}

func TestOpenPositionIndexesBothDirections(t *testing.T) {
	resetPriceIndex()
	delta := newTestLayer(t)
	pair := TradingPair{Asset1: "upenumbra", Asset2: "gm"}
	phi := TradingFunction{Pair: pair, P: big.NewInt(2), Q: big.NewInt(1), FeeBps: 0}
	reserves := Reserves{R1: big.NewInt(1000), R2: big.NewInt(1000)}

	p, err := OpenPosition(delta, phi, reserves, "owner1")
	if err != nil {
		t.Fatalf("open position: %v", err)
	}

	forward := DirectedTradingPair{Start: "upenumbra", End: "gm"}
	backward := DirectedTradingPair{Start: "gm", End: "upenumbra"}
	if ids := BestPositions(forward, 10); len(ids) != 1 || ids[0] != p.ID {
		t.Fatalf("expected forward index to contain position, got %v", ids)
	}
	if ids := BestPositions(backward, 10); len(ids) != 1 || ids[0] != p.ID {
		t.Fatalf("expected backward index to contain position, got %v", ids)
	}
}

func TestClosePositionDeindexes(t *testing.T) {
	resetPriceIndex()
	delta := newTestLayer(t)
	pair := TradingPair{Asset1: "upenumbra", Asset2: "gm"}
	phi := TradingFunction{Pair: pair, P: big.NewInt(1), Q: big.NewInt(1), FeeBps: 0}
	reserves := Reserves{R1: big.NewInt(100), R2: big.NewInt(100)}
	p, err := OpenPosition(delta, phi, reserves, "owner1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ClosePosition(delta, p.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	forward := DirectedTradingPair{Start: "upenumbra", End: "gm"}
	if ids := BestPositions(forward, 10); len(ids) != 0 {
		t.Fatalf("expected closed position to be deindexed, got %v", ids)
	}
}

func TestRouteAndFillDirectHop(t *testing.T) {
	resetPriceIndex()
	delta := newTestLayer(t)
	pair := TradingPair{Asset1: "upenumbra", Asset2: "gm"}
	phi := TradingFunction{Pair: pair, P: big.NewInt(1), Q: big.NewInt(1), FeeBps: 0}
	reserves := Reserves{R1: big.NewInt(1_000_000), R2: big.NewInt(1_000_000)}
	if _, err := OpenPosition(delta, phi, reserves, "lp1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	out, unfilled, err := RouteAndFill(delta, "upenumbra", "gm", big.NewInt(100), RoutingParams{MaxHops: 5})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if out.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 1:1 fill of 100, got out=%s unfilled=%s", out, unfilled)
	}
	if unfilled.Sign() != 0 {
		t.Fatalf("expected zero unfilled, got %s", unfilled)
	}
}

func TestRouteAndFillNoPathReturnsFullyUnfilled(t *testing.T) {
	resetPriceIndex()
	delta := newTestLayer(t)
	out, unfilled, err := RouteAndFill(delta, "a", "z", big.NewInt(500), RoutingParams{MaxHops: 5})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if out.Sign() != 0 || unfilled.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected fully unfilled route, got out=%s unfilled=%s", out, unfilled)
	}
}

func TestSaturatingSubNeverUnderflows(t *testing.T) {
	small := big.NewInt(5)
	big_ := big.NewInt(10)
	if got := saturatingSub(small, big_); got.Sign() != 0 {
		t.Fatalf("expected saturating subtraction to floor at zero, got %s", got)
	}
	if got := saturatingSub(big_, small); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected normal subtraction when no underflow, got %s", got)
	}
}

func TestAccumulateSwapSumsFlows(t *testing.T) {
	delta := newTestLayer(t)
	pair := TradingPair{Asset1: "upenumbra", Asset2: "gm"}
	if err := AccumulateSwap(delta, pair, big.NewInt(100), big.NewInt(0)); err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	if err := AccumulateSwap(delta, pair, big.NewInt(50), big.NewInt(25)); err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	f, err := readFlow(delta, pair.Canonical())
	if err != nil {
		t.Fatalf("read flow: %v", err)
	}
	if f.Delta1.Cmp(big.NewInt(150)) != 0 || f.Delta2.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("unexpected accumulated flow: %+v", f)
	}
}
