package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/store"
)

// PositionOpenPayload commits Reserves of the pair's two assets into a new
// concentrated-liquidity position governed by trading function Phi.
type PositionOpenPayload struct {
	Phi      dex.TradingFunction `json:"phi"`
	Reserves dex.Reserves        `json:"reserves"`
	Owner    string              `json:"owner"`
}

type positionOpenHandler struct {
	comps   *Components
	payload PositionOpenPayload
}

func newPositionOpenHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p PositionOpenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &positionOpenHandler{comps: comps, payload: p}, nil
}

func (h *positionOpenHandler) CheckStateless() error {
	if h.payload.Owner == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position open missing owner")
	}
	if h.payload.Phi.Pair.Asset1 == "" || h.payload.Phi.Pair.Asset2 == "" || h.payload.Phi.Pair.Asset1 == h.payload.Phi.Pair.Asset2 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position open requires two distinct assets")
	}
	if h.payload.Phi.P == nil || h.payload.Phi.Q == nil || h.payload.Phi.P.Sign() <= 0 || h.payload.Phi.Q.Sign() <= 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position open trading function coefficients must be positive")
	}
	if h.payload.Phi.FeeBps > 10000 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position open fee exceeds 10000bps")
	}
	if h.payload.Reserves.R1 == nil || h.payload.Reserves.R2 == nil ||
		h.payload.Reserves.R1.Sign() < 0 || h.payload.Reserves.R2.Sign() < 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position open reserves must be non-negative")
	}
	return nil
}

func (h *positionOpenHandler) CheckStateful(r store.Reader) error { return nil }

func (h *positionOpenHandler) Execute(delta *store.Layer) error {
	_, err := dex.OpenPosition(delta, h.payload.Phi, h.payload.Reserves, h.payload.Owner)
	return err
}

func (h *positionOpenHandler) NativeBalance() int64 {
	var balance int64
	if h.payload.Phi.Pair.Asset1 == nativeAsset {
		balance -= h.payload.Reserves.R1.Int64()
	}
	if h.payload.Phi.Pair.Asset2 == nativeAsset {
		balance -= h.payload.Reserves.R2.Int64()
	}
	return balance
}
