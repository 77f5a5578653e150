package action

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dao"
	"github.com/shieldnet/core/pkg/store"
)

// DaoDepositPayload moves value from a spent note into the DAO's treasury
// for the named asset. Only the native asset contributes to NativeBalance;
// other-asset deposits are conserved entirely within dao.Deposit's own
// bookkeeping.
type DaoDepositPayload struct {
	Asset  string   `json:"asset"`
	Amount *big.Int `json:"amount"`
}

type daoDepositHandler struct {
	comps   *Components
	payload DaoDepositPayload
}

func newDaoDepositHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	p := DaoDepositPayload{Amount: big.NewInt(0)}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	return &daoDepositHandler{comps: comps, payload: p}, nil
}

func (h *daoDepositHandler) CheckStateless() error {
	if h.payload.Asset == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "dao deposit missing asset")
	}
	if h.payload.Amount.Sign() <= 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "dao deposit amount must be positive")
	}
	return nil
}

func (h *daoDepositHandler) CheckStateful(r store.Reader) error { return nil }

func (h *daoDepositHandler) Execute(delta *store.Layer) error {
	return dao.Deposit(delta, h.payload.Asset, h.payload.Amount)
}

func (h *daoDepositHandler) NativeBalance() int64 {
	if h.payload.Asset == nativeAsset {
		return -h.payload.Amount.Int64()
	}
	return 0
}
