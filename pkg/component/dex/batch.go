package dex

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component"
	"github.com/shieldnet/core/pkg/store"
)

// BatchSwapOutputData is the per-pair, per-height record published at
// end-of-block so clients can compute their pro-rata SwapClaim, per
// spec.md §4.7.
type BatchSwapOutputData struct {
	Pair                TradingPair `json:"pair"`
	Delta1              *big.Int    `json:"delta_1"`
	Delta2              *big.Int    `json:"delta_2"`
	Lambda1             *big.Int    `json:"lambda_1"`
	Lambda2             *big.Int    `json:"lambda_2"`
	Unfilled1           *big.Int    `json:"unfilled_1"`
	Unfilled2           *big.Int    `json:"unfilled_2"`
	Height              int64       `json:"height"`
	EpochStartingHeight int64       `json:"epoch_starting_height"`
}

func batchOutputKey(height int64, pair TradingPair) []byte {
	b, _ := json.Marshal(pair.Canonical())
	return append([]byte("dex/batch_output/"+itoa(height)+"/"), b...)
}

func flowKey(pair TradingPair) []byte {
	b, _ := json.Marshal(pair.Canonical())
	return append([]byte("dex/flow/"), b...)
}

func itoa(h int64) string {
	if h == 0 {
		return "0"
	}
	neg := h < 0
	if neg {
		h = -h
	}
	var buf [20]byte
	i := len(buf)
	for h > 0 {
		i--
		buf[i] = byte('0' + h%10)
		h /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

type flowAccumulator struct {
	Delta1 *big.Int `json:"delta_1"`
	Delta2 *big.Int `json:"delta_2"`
}

const activePairsObjectKey = "dex/active_pairs"

// markPairActive records that pair accumulated flow this block, so
// EndBlock knows which pairs to settle without scanning the whole price
// index.
func markPairActive(delta *store.Layer, pair TradingPair) error {
	pairs, err := listActivePairs(delta)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if p == pair {
			return nil
		}
	}
	pairs = append(pairs, pair)
	b, err := json.Marshal(pairs)
	if err != nil {
		return err
	}
	delta.ObjectPut(activePairsObjectKey, b)
	return nil
}

func listActivePairs(r store.Reader) ([]TradingPair, error) {
	raw, _, err := r.ObjectGet(activePairsObjectKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var pairs []TradingPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return pairs, nil
}

func clearActivePairs(delta *store.Layer) {
	delta.ObjectPut(activePairsObjectKey, nil)
}

// AccumulateSwap adds a Swap action's (delta_1, delta_2) flow into the
// per-pair per-block accumulator, held in the ephemeral object store since
// it is discarded at block end once BatchSwapOutputData has been derived
// from it.
func AccumulateSwap(delta *store.Layer, pair TradingPair, delta1, delta2 *big.Int) error {
	canon := pair.Canonical()
	cur, err := readFlow(delta, canon)
	if err != nil {
		return err
	}
	cur.Delta1.Add(cur.Delta1, delta1)
	cur.Delta2.Add(cur.Delta2, delta2)
	if err := markPairActive(delta, canon); err != nil {
		return err
	}
	return writeFlow(delta, canon, cur)
}

func readFlow(r store.Reader, pair TradingPair) (*flowAccumulator, error) {
	raw, _, err := r.ObjectGet(string(flowKey(pair)))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return &flowAccumulator{Delta1: big.NewInt(0), Delta2: big.NewInt(0)}, nil
	}
	var f flowAccumulator
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return &f, nil
}

func writeFlow(delta *store.Layer, pair TradingPair, f *flowAccumulator) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	delta.ObjectPut(string(flowKey(pair)), b)
	return nil
}

// SettleBatch runs end-of-block for a single pair: routes its aggregated
// flow against the price-indexed position book and publishes
// BatchSwapOutputData. Grounded on
// original_source/crates/core/component/dex/src/component/router_cache.rs's
// overall batch-clearing shape, simplified to a single best-effort
// route_and_fill call per direction instead of the full flow-matching
// solver.
func SettleBatch(delta *store.Layer, pair TradingPair, height, epochStartingHeight int64, params RoutingParams) (BatchSwapOutputData, error) {
	canon := pair.Canonical()
	f, err := readFlow(delta, canon)
	if err != nil {
		return BatchSwapOutputData{}, err
	}

	lambda2, unfilled1, err := RouteAndFill(delta, canon.Asset1, canon.Asset2, f.Delta1, params)
	if err != nil {
		return BatchSwapOutputData{}, err
	}
	lambda1, unfilled2, err := RouteAndFill(delta, canon.Asset2, canon.Asset1, f.Delta2, params)
	if err != nil {
		return BatchSwapOutputData{}, err
	}

	out := BatchSwapOutputData{
		Pair:                canon,
		Delta1:              f.Delta1,
		Delta2:              f.Delta2,
		Lambda1:             lambda1,
		Lambda2:             lambda2,
		Unfilled1:           unfilled1,
		Unfilled2:           unfilled2,
		Height:              height,
		EpochStartingHeight: epochStartingHeight,
	}
	b, err := json.Marshal(out)
	if err != nil {
		return BatchSwapOutputData{}, err
	}
	delta.Put(batchOutputKey(height, canon), b)
	return out, nil
}

func GetBatchOutput(r store.Reader, height int64, pair TradingPair) (BatchSwapOutputData, error) {
	b, err := r.Get(batchOutputKey(height, pair))
	if err != nil {
		return BatchSwapOutputData{}, err
	}
	if b == nil {
		return BatchSwapOutputData{}, apperrors.Tx(apperrors.ErrMalformedAction, "no batch swap output at that height/pair")
	}
	var out BatchSwapOutputData
	if err := json.Unmarshal(b, &out); err != nil {
		return BatchSwapOutputData{}, apperrors.Block(apperrors.ErrStorageCorruption, err.Error())
	}
	return out, nil
}

type Component struct{}

func New() *Component { return &Component{} }

func (c *Component) InitChain(delta *store.Layer, req component.InitChainRequest) error { return nil }

func (c *Component) BeginBlock(delta *store.Layer, req component.BeginBlockRequest) error { return nil }

// EndBlock settles every pair that accumulated swap flow this block,
// publishing a BatchSwapOutputData per pair, then runs a single arbitrage
// pass against arbToken. Takes epochStartingHeight and params as explicit
// arguments rather than reading them off a Params type, since dex has no
// genesis-fixed params object of its own (the routing bound and epoch
// anchor are chain-level concerns threaded in by the orchestrator).
func (c *Component) EndBlock(delta *store.Layer, req component.EndBlockRequest, epochStartingHeight int64, params RoutingParams, arbToken string) error {
	pairs, err := listActivePairs(delta)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		if _, err := SettleBatch(delta, pair, req.Height, epochStartingHeight, params); err != nil {
			return err
		}
	}
	clearActivePairs(delta)

	if arbToken != "" {
		if _, err := RunArbitrage(delta, arbToken, req.Height, params); err != nil {
			return err
		}
	}
	return nil
}
