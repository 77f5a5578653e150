package action

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/component/shieldedpool"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
)

// SwapClaimPayload redeems a previously escrowed SwapPayload against the
// BatchSwapOutputData published for (Height, Pair), claiming a pro-rata
// share of the block's cleared swap proportional to ClaimedDelta1/2 out of
// the pair's total Delta1/2 that block.
type SwapClaimPayload struct {
	Nullifier      string          `json:"nullifier"`
	Height         int64           `json:"height"`
	Pair           dex.TradingPair `json:"pair"`
	ClaimedDelta1  *big.Int        `json:"claimed_delta_1"`
	ClaimedDelta2  *big.Int        `json:"claimed_delta_2"`
	ClaimedOutput1 *big.Int        `json:"claimed_output_1"`
	ClaimedOutput2 *big.Int        `json:"claimed_output_2"`
	OutputCiphertext1 []byte       `json:"output_ciphertext_1,omitempty"`
	OutputCiphertext2 []byte       `json:"output_ciphertext_2,omitempty"`
}

type swapClaimHandler struct {
	comps   *Components
	payload SwapClaimPayload
}

func newSwapClaimHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p SwapClaimPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	for _, f := range []**big.Int{&p.ClaimedDelta1, &p.ClaimedDelta2, &p.ClaimedOutput1, &p.ClaimedOutput2} {
		if *f == nil {
			*f = big.NewInt(0)
		}
	}
	return &swapClaimHandler{comps: comps, payload: p}, nil
}

func (h *swapClaimHandler) nullifier() (shieldedpool.Nullifier, error) {
	b, err := hex.DecodeString(h.payload.Nullifier)
	if err != nil || len(b) != 32 {
		return shieldedpool.Nullifier{}, apperrors.Tx(apperrors.ErrMalformedAction, "nullifier must be 32 bytes hex")
	}
	var n shieldedpool.Nullifier
	copy(n[:], b)
	return n, nil
}

func (h *swapClaimHandler) CheckStateless() error {
	_, err := h.nullifier()
	return err
}

// expectedOutputs recomputes the pro-rata share this claim is owed from the
// published batch output, per spec.md §4.7.
func expectedOutputs(out dex.BatchSwapOutputData, claimedDelta1, claimedDelta2 *big.Int) (out1, out2 *big.Int) {
	out1, out2 = big.NewInt(0), big.NewInt(0)
	if out.Delta1.Sign() > 0 && claimedDelta1.Sign() > 0 {
		share := new(big.Rat).SetFrac(claimedDelta1, out.Delta1)
		out1.Add(out1, rationalFloor(share, out.Unfilled1))
		out2.Add(out2, rationalFloor(share, out.Lambda2))
	}
	if out.Delta2.Sign() > 0 && claimedDelta2.Sign() > 0 {
		share := new(big.Rat).SetFrac(claimedDelta2, out.Delta2)
		out1.Add(out1, rationalFloor(share, out.Lambda1))
		out2.Add(out2, rationalFloor(share, out.Unfilled2))
	}
	return out1, out2
}

func rationalFloor(share *big.Rat, amount *big.Int) *big.Int {
	r := new(big.Rat).Mul(share, new(big.Rat).SetInt(amount))
	return new(big.Int).Quo(r.Num(), r.Denom())
}

func (h *swapClaimHandler) CheckStateful(r store.Reader) error {
	n, err := h.nullifier()
	if err != nil {
		return err
	}
	spent, err := shieldedpool.IsSpent(r, n)
	if err != nil {
		return err
	}
	if spent {
		return apperrors.Tx(apperrors.ErrDuplicateNullifier, n.String())
	}
	out, err := dex.GetBatchOutput(r, h.payload.Height, h.payload.Pair)
	if err != nil {
		return err
	}
	expected1, expected2 := expectedOutputs(out, h.payload.ClaimedDelta1, h.payload.ClaimedDelta2)
	if expected1.Cmp(h.payload.ClaimedOutput1) != 0 || expected2.Cmp(h.payload.ClaimedOutput2) != 0 {
		return apperrors.Tx(apperrors.ErrAmountRoundingMismatch, "swap claim output does not match pro-rata share")
	}
	return nil
}

func (h *swapClaimHandler) Execute(delta *store.Layer) error {
	n, err := h.nullifier()
	if err != nil {
		return err
	}
	shieldedpool.SpendNullifier(delta, n)
	if len(h.payload.OutputCiphertext1) > 0 {
		if _, err := h.comps.ShieldedPool.AppendCommitment(tct.Keep, tct.CommitmentFromBytes(h.payload.OutputCiphertext1)); err != nil {
			return err
		}
	}
	if len(h.payload.OutputCiphertext2) > 0 {
		if _, err := h.comps.ShieldedPool.AppendCommitment(tct.Keep, tct.CommitmentFromBytes(h.payload.OutputCiphertext2)); err != nil {
			return err
		}
	}
	return nil
}

func (h *swapClaimHandler) NativeBalance() int64 { return 0 }
