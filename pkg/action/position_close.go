package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dex"
	"github.com/shieldnet/core/pkg/store"
)

// PositionClosePayload stops a position from being routed through further,
// moving it from PositionOpened to PositionClosed so its reserves become
// eligible for PositionWithdraw.
type PositionClosePayload struct {
	PositionID string `json:"position_id"`
}

type positionCloseHandler struct {
	comps   *Components
	payload PositionClosePayload
}

func newPositionCloseHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p PositionClosePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &positionCloseHandler{comps: comps, payload: p}, nil
}

func (h *positionCloseHandler) CheckStateless() error {
	if h.payload.PositionID == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "position close missing position id")
	}
	return nil
}

func (h *positionCloseHandler) CheckStateful(r store.Reader) error {
	p, err := dex.GetPosition(r, h.payload.PositionID)
	if err != nil {
		return err
	}
	if p.State != dex.PositionOpened {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "position is not open")
	}
	return nil
}

func (h *positionCloseHandler) Execute(delta *store.Layer) error {
	return dex.ClosePosition(delta, h.payload.PositionID)
}

func (h *positionCloseHandler) NativeBalance() int64 { return 0 }
