package action

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
)

// OutputPayload creates a new shielded note. NoteCiphertext is the opaque,
// encrypted note body the core never inspects beyond hashing it into a
// commitment; Keep controls whether the TCT retains an authentication path
// for it (false for notes the submitting client does not need to witness
// locally, e.g. sent to someone else).
type OutputPayload struct {
	NoteCiphertext []byte `json:"note_ciphertext"`
	Keep           bool   `json:"keep"`
	ValueBalance   int64  `json:"value_balance"`
}

type outputHandler struct {
	comps   *Components
	payload OutputPayload
}

func newOutputHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p OutputPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &outputHandler{comps: comps, payload: p}, nil
}

func (h *outputHandler) CheckStateless() error {
	if len(h.payload.NoteCiphertext) == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "output missing note ciphertext")
	}
	return nil
}

func (h *outputHandler) CheckStateful(r store.Reader) error { return nil }

func (h *outputHandler) Execute(delta *store.Layer) error {
	policy := tct.Forget
	if h.payload.Keep {
		policy = tct.Keep
	}
	commitment := tct.CommitmentFromBytes(h.payload.NoteCiphertext)
	_, err := h.comps.ShieldedPool.AppendCommitment(policy, commitment)
	return err
}

func (h *outputHandler) NativeBalance() int64 { return -h.payload.ValueBalance }
