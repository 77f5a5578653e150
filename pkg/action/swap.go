package action

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
)

// SwapPayload escrows a user's input into the block's per-pair batch flow
// (spec.md §4.7); exactly one of Delta1/Delta2 is expected to be nonzero.
// SwapCiphertext is the opaque swap-plaintext note a later SwapClaim
// references by its nullifier to redeem the pro-rata output.
type SwapPayload struct {
	Pair           dex.TradingPair `json:"pair"`
	Delta1         *big.Int        `json:"delta_1"`
	Delta2         *big.Int        `json:"delta_2"`
	SwapCiphertext []byte          `json:"swap_ciphertext"`
	ValueBalance   int64           `json:"value_balance"`
}

type swapHandler struct {
	comps   *Components
	payload SwapPayload
}

func newSwapHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p SwapPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	if p.Delta1 == nil {
		p.Delta1 = big.NewInt(0)
	}
	if p.Delta2 == nil {
		p.Delta2 = big.NewInt(0)
	}
	return &swapHandler{comps: comps, payload: p}, nil
}

func (h *swapHandler) CheckStateless() error {
	if len(h.payload.SwapCiphertext) == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "swap missing ciphertext")
	}
	if h.payload.Delta1.Sign() < 0 || h.payload.Delta2.Sign() < 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "swap deltas must be non-negative")
	}
	if h.payload.Delta1.Sign() == 0 && h.payload.Delta2.Sign() == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "swap must move a nonzero amount of at least one asset")
	}
	if h.payload.Pair.Asset1 == "" || h.payload.Pair.Asset2 == "" || h.payload.Pair.Asset1 == h.payload.Pair.Asset2 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "swap pair must name two distinct assets")
	}
	return nil
}

func (h *swapHandler) CheckStateful(r store.Reader) error { return nil }

func (h *swapHandler) Execute(delta *store.Layer) error {
	if err := dex.AccumulateSwap(delta, h.payload.Pair, h.payload.Delta1, h.payload.Delta2); err != nil {
		return err
	}
	commitment := tct.CommitmentFromBytes(h.payload.SwapCiphertext)
	_, err := h.comps.ShieldedPool.AppendCommitment(tct.Keep, commitment)
	return err
}

func (h *swapHandler) NativeBalance() int64 { return -h.payload.ValueBalance }
