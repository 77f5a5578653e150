package dex

import (
	"math/big"

	"github.com/shieldnet/core/pkg/store"
)

// RoutingParams bounds a single route_and_fill invocation, per spec.md
// §4.7's "Dijkstra-like over a graph whose nodes are assets and edges are
// price-indexed positions, capped at max_hops hops".
type RoutingParams struct {
	MaxHops         int
	FixedCandidates []string
}

const feeBpsDenominator = 10_000

// findPath performs a breadth-first search over the directed pairs that
// currently have an indexed position, returning the shortest asset path
// from -> ... -> to within params.MaxHops edges. Among equal-length paths
// discovered at the same BFS depth, the first one found (insertion order
// of globalPriceIndex.trees) wins; this is a deterministic but not
// globally price-optimal tie-break, documented in DESIGN.md as a
// simplification of the original multi-path flow solver.
func findPath(from, to string, maxHops int) []DirectedTradingPair {
	if from == to {
		return nil
	}
	type frame struct {
		asset string
		path  []DirectedTradingPair
	}
	globalPriceIndex.mu.Lock()
	adjacency := map[string][]DirectedTradingPair{}
	for pair, tree := range globalPriceIndex.trees {
		if tree.Len() == 0 {
			continue
		}
		adjacency[pair.Start] = append(adjacency[pair.Start], pair)
	}
	globalPriceIndex.mu.Unlock()

	visited := map[string]bool{from: true}
	queue := []frame{{asset: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) >= maxHops {
			continue
		}
		for _, edge := range adjacency[cur.asset] {
			if visited[edge.End] {
				continue
			}
			nextPath := append(append([]DirectedTradingPair{}, cur.path...), edge)
			if edge.End == to {
				return nextPath
			}
			visited[edge.End] = true
			queue = append(queue, frame{asset: edge.End, path: nextPath})
		}
	}
	return nil
}

// RouteAndFill attempts to convert amountIn of the `from` asset into the
// `to` asset along a price-indexed path of at most params.MaxHops
// positions, returning the amount actually received and the portion of
// amountIn left unfilled (liquidity-starved or no path found).
func RouteAndFill(delta *store.Layer, from, to string, amountIn *big.Int, params RoutingParams) (*big.Int, *big.Int, error) {
	if amountIn.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}
	maxHops := params.MaxHops
	if maxHops <= 0 {
		maxHops = 5
	}
	path := findPath(from, to, maxHops)
	if path == nil {
		return big.NewInt(0), new(big.Int).Set(amountIn), nil
	}

	remaining := new(big.Int).Set(amountIn)
	current := new(big.Int).Set(amountIn)
	// Hops fill against a child delta that is merged only once the whole
	// route succeeds, so an unfilled route leaves every position untouched.
	child := delta.BeginTransaction()
	for _, hop := range path {
		ids := BestPositions(hop, 1)
		if len(ids) == 0 {
			return big.NewInt(0), new(big.Int).Set(amountIn), nil
		}
		pos, err := GetPosition(child, ids[0])
		if err != nil {
			return nil, nil, err
		}
		out, consumedIn, err := fillAgainstPosition(child, pos, hop, current)
		if err != nil {
			return nil, nil, err
		}
		if consumedIn.Cmp(current) < 0 {
			// A hop short of the final asset cannot fully convert the
			// amount carried into it: this simplified router does not
			// attempt to re-split the shortfall across an alternate path,
			// so the whole route is treated as unfilled rather than
			// emitting an intermediate, non-`to` asset as output.
			return big.NewInt(0), new(big.Int).Set(remaining), nil
		}
		current = out
	}
	delta.CommitTransaction(child)
	return current, big.NewInt(0), nil
}

// fillAgainstPosition executes as much of `in` as the position's output
// reserve allows, applying its fee, and mutates the position's reserves in
// place. Returns the output produced and the portion of `in` actually
// consumed.
func fillAgainstPosition(delta *store.Layer, p *Position, hop DirectedTradingPair, in *big.Int) (*big.Int, *big.Int, error) {
	phi := p.Phi
	if hop.Start == p.Phi.Pair.Asset2 {
		phi = p.Phi.Flip()
	}
	price := effectivePrice(phi)

	grossOut := new(big.Rat).SetInt(in)
	grossOut.Mul(grossOut, price)
	feeFactor := new(big.Rat).SetFrac64(int64(feeBpsDenominator-int(phi.FeeBps)), feeBpsDenominator)
	grossOut.Mul(grossOut, feeFactor)
	out := new(big.Int).Quo(grossOut.Num(), grossOut.Denom())

	available := p.Reserves.R2
	if hop.End == p.Phi.Pair.Asset1 {
		available = p.Reserves.R1
	}
	if available == nil {
		available = big.NewInt(0)
	}

	consumedIn := new(big.Int).Set(in)
	if out.Cmp(available) > 0 {
		out = new(big.Int).Set(available)
		backIn := new(big.Rat).SetInt(out)
		backIn.Quo(backIn, price)
		backIn.Quo(backIn, feeFactor)
		consumedIn = new(big.Int).Quo(backIn.Num(), backIn.Denom())
	}

	if hop.End == p.Phi.Pair.Asset1 {
		p.Reserves.R1 = new(big.Int).Sub(p.Reserves.R1, out)
		p.Reserves.R2 = new(big.Int).Add(p.Reserves.R2, consumedIn)
	} else {
		p.Reserves.R2 = new(big.Int).Sub(p.Reserves.R2, out)
		p.Reserves.R1 = new(big.Int).Add(p.Reserves.R1, consumedIn)
	}
	if err := PutPosition(delta, p); err != nil {
		return nil, nil, err
	}
	return out, consumedIn, nil
}
