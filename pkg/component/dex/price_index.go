package dex

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/google/btree"
)

// priceIndexEntry is one (price, position-id) slot in a directed pair's
// BTree. Ordering is by Phi's effective price (P/Q in the direction the
// BTree indexes), best price first, ties broken by position id so the
// order is total and deterministic.
type priceIndexEntry struct {
	pair  DirectedTradingPair
	price *big.Rat
	id    string
}

func (e *priceIndexEntry) Less(than btree.Item) bool {
	other := than.(*priceIndexEntry)
	// price is end-per-start (output per unit of input), so the best price
	// for a taker buying `end` with `start` is the HIGHEST one: sorting
	// descending over price yields "best first" when the router walks the
	// tree ascending.
	c := e.price.Cmp(other.price)
	if c != 0 {
		return c > 0
	}
	return e.id < other.id
}

// priceIndex holds one BTree per directed pair, mirroring
// original_source's PositionByPriceIndex (nonverifiable_put_raw keyed by
// pair+phi+id). Kept in the ephemeral in-memory orchestrator rather than
// the verifiable store, since it is a derived acceleration structure the
// same way original_source's is nonverifiable.
type priceIndex struct {
	mu    sync.Mutex
	trees map[DirectedTradingPair]*btree.BTree
}

var globalPriceIndex = &priceIndex{trees: make(map[DirectedTradingPair]*btree.BTree)}

func (pi *priceIndex) treeFor(pair DirectedTradingPair) *btree.BTree {
	t, ok := pi.trees[pair]
	if !ok {
		t = btree.New(16)
		pi.trees[pair] = t
	}
	return t
}

func effectivePrice(phi TradingFunction) *big.Rat {
	if phi.Q.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(phi.P, phi.Q)
}

// IndexPositionByPrice indexes an open position for both trading
// directions it can serve, exactly as original_source's
// index_position_by_price: a position with nonzero r2 can serve
// asset1=>asset2 trades, one with nonzero r1 can serve asset2=>asset1. The
// index itself is an in-memory acceleration structure, not part of the
// authenticated store, mirroring original_source's own use of the
// nonverifiable (unauthenticated) namespace for this purpose.
func IndexPositionByPrice(p *Position) {
	globalPriceIndex.mu.Lock()
	defer globalPriceIndex.mu.Unlock()

	if p.Reserves.R2 != nil && p.Reserves.R2.Sign() != 0 {
		pair12 := DirectedTradingPair{Start: p.Phi.Pair.Asset1, End: p.Phi.Pair.Asset2}
		entry := &priceIndexEntry{pair: pair12, price: effectivePrice(p.Phi), id: p.ID}
		globalPriceIndex.treeFor(pair12).ReplaceOrInsert(entry)
	}
	if p.Reserves.R1 != nil && p.Reserves.R1.Sign() != 0 {
		pair21 := DirectedTradingPair{Start: p.Phi.Pair.Asset2, End: p.Phi.Pair.Asset1}
		flipped := p.Phi.Flip()
		entry := &priceIndexEntry{pair: pair21, price: effectivePrice(flipped), id: p.ID}
		globalPriceIndex.treeFor(pair21).ReplaceOrInsert(entry)
	}
}

// DeindexPositionByPrice removes a position from both directions' trees.
func DeindexPositionByPrice(p *Position) {
	globalPriceIndex.mu.Lock()
	defer globalPriceIndex.mu.Unlock()

	pair12 := DirectedTradingPair{Start: p.Phi.Pair.Asset1, End: p.Phi.Pair.Asset2}
	pair21 := DirectedTradingPair{Start: p.Phi.Pair.Asset2, End: p.Phi.Pair.Asset1}
	if t, ok := globalPriceIndex.trees[pair12]; ok {
		t.Delete(&priceIndexEntry{pair: pair12, price: effectivePrice(p.Phi), id: p.ID})
	}
	if t, ok := globalPriceIndex.trees[pair21]; ok {
		t.Delete(&priceIndexEntry{pair: pair21, price: effectivePrice(p.Phi.Flip()), id: p.ID})
	}
}

// BestPositions returns up to n best-priced (highest end-per-start price)
// position ids for the given direction, best first.
func BestPositions(pair DirectedTradingPair, n int) []string {
	globalPriceIndex.mu.Lock()
	defer globalPriceIndex.mu.Unlock()

	t, ok := globalPriceIndex.trees[pair]
	if !ok {
		return nil
	}
	ids := make([]string, 0, n)
	t.Ascend(func(item btree.Item) bool {
		ids = append(ids, item.(*priceIndexEntry).id)
		return len(ids) < n
	})
	return ids
}

func (p DirectedTradingPair) String() string {
	return fmt.Sprintf("%s->%s", p.Start, p.End)
}
