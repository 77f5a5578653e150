package action

import (
	"encoding/hex"
	"encoding/json"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/sct"
	"github.com/shieldnet/core/pkg/component/shieldedpool"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/tct"
)

// SpendPayload consumes a previously-output note, proving (via the opaque
// proof system, out of scope here) knowledge of its spending key and
// revealing its nullifier. Anchor binds the proof to a TCT root the prover
// saw; ValueBalance is the note's plaintext value in the native asset,
// standing in for the homomorphic value commitment the real system proves
// in zero knowledge.
type SpendPayload struct {
	Nullifier   string `json:"nullifier"`
	Anchor      []byte `json:"anchor"`
	ValueBalance int64 `json:"value_balance"`
}

type spendHandler struct {
	comps   *Components
	payload SpendPayload
}

func newSpendHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p SpendPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &spendHandler{comps: comps, payload: p}, nil
}

func (h *spendHandler) nullifier() (shieldedpool.Nullifier, error) {
	b, err := hex.DecodeString(h.payload.Nullifier)
	if err != nil || len(b) != 32 {
		return shieldedpool.Nullifier{}, apperrors.Tx(apperrors.ErrMalformedAction, "nullifier must be 32 bytes hex")
	}
	var n shieldedpool.Nullifier
	copy(n[:], b)
	return n, nil
}

func (h *spendHandler) CheckStateless() error {
	if len(h.payload.Anchor) == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "spend missing anchor")
	}
	_, err := h.nullifier()
	return err
}

func (h *spendHandler) CheckStateful(r store.Reader) error {
	root, err := sct.PublishedRoot(r)
	if err != nil {
		return err
	}
	if !bytesEqual(tct.MarshalHash(root), h.payload.Anchor) {
		return apperrors.Tx(apperrors.ErrUnknownAnchor, "spend anchor does not match a known root")
	}
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
	return nil
}

func (h *spendHandler) Execute(delta *store.Layer) error {
	n, err := h.nullifier()
	if err != nil {
		return err
	}
	shieldedpool.SpendNullifier(delta, n)
	return nil
}

func (h *spendHandler) NativeBalance() int64 { return h.payload.ValueBalance }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
