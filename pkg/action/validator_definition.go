package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/stake"
	"github.com/shieldnet/core/pkg/store"
)

// ValidatorDefinitionPayload registers a new validator or updates an
// existing one's metadata; re-definition requires SequenceNumber to
// strictly increase, enforced by stake.ApplyDefinition.
type ValidatorDefinitionPayload struct {
	Definition stake.Validator `json:"definition"`
}

type validatorDefinitionHandler struct {
	comps   *Components
	payload ValidatorDefinitionPayload
}

func newValidatorDefinitionHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p ValidatorDefinitionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &validatorDefinitionHandler{comps: comps, payload: p}, nil
}

func (h *validatorDefinitionHandler) CheckStateless() error {
	if h.payload.Definition.Identity == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "validator definition missing identity")
	}
	if h.payload.Definition.CommissionBps() > 10000 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "funding stream commission exceeds 10000bps")
	}
	return nil
}

func (h *validatorDefinitionHandler) CheckStateful(r store.Reader) error { return nil }

func (h *validatorDefinitionHandler) Execute(delta *store.Layer) error {
	return stake.ApplyDefinition(delta, h.payload.Definition)
}

func (h *validatorDefinitionHandler) NativeBalance() int64 { return 0 }
