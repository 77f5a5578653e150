package action

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/dao"
	"github.com/shieldnet/core/pkg/component/governance"
	"github.com/shieldnet/core/pkg/store"
)

// DaoSpendPayload releases DAO-held funds to Recipient. It is not a
// freestanding user action: it only succeeds when it names a proposal that
// has Finished with OutcomePassed and ProposalKind DaoSpend, and each such
// proposal may be executed exactly once (tracked by an idempotency marker
// in the verifiable store, since Finish/ClaimDeposit track the deposit's
// lifecycle separately from the spend itself).
type DaoSpendPayload struct {
	ProposalID uint64   `json:"proposal_id"`
	Asset      string   `json:"asset"`
	Amount     *big.Int `json:"amount"`
	Recipient  string   `json:"recipient"`
}

type daoSpendHandler struct {
	comps   *Components
	payload DaoSpendPayload
}

func newDaoSpendHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	p := DaoSpendPayload{Amount: big.NewInt(0)}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	return &daoSpendHandler{comps: comps, payload: p}, nil
}

func daoSpendExecutedKey(proposalID uint64) []byte {
	return []byte(fmt.Sprintf("daospend/executed/%d", proposalID))
}

func (h *daoSpendHandler) CheckStateless() error {
	if h.payload.Asset == "" || h.payload.Recipient == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "dao spend missing asset or recipient")
	}
	if h.payload.Amount.Sign() <= 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "dao spend amount must be positive")
	}
	return nil
}

func (h *daoSpendHandler) CheckStateful(r store.Reader) error {
	p, err := governance.GetProposal(r, h.payload.ProposalID)
	if err != nil {
		return err
	}
	if p.Kind != governance.DaoSpend {
		return apperrors.Tx(apperrors.ErrProposalInWrongState, "proposal is not a DaoSpend proposal")
	}
	if p.State != governance.StateFinished || p.Outcome != governance.OutcomePassed {
		return apperrors.Tx(apperrors.ErrProposalInWrongState, "proposal has not passed")
	}
	if b, err := r.Get(daoSpendExecutedKey(h.payload.ProposalID)); err != nil {
		return err
	} else if b != nil {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "dao spend proposal already executed")
	}
	bal, err := dao.Balance(r, h.payload.Asset)
	if err != nil {
		return err
	}
	if bal.Cmp(h.payload.Amount) < 0 {
		return apperrors.Tx(apperrors.ErrInsufficientBalance, "dao balance is below the spend amount")
	}
	return nil
}

func (h *daoSpendHandler) Execute(delta *store.Layer) error {
	if err := dao.Spend(delta, h.payload.Asset, h.payload.Amount); err != nil {
		return err
	}
	delta.Put(daoSpendExecutedKey(h.payload.ProposalID), []byte{1})
	return nil
}

func (h *daoSpendHandler) NativeBalance() int64 {
	if h.payload.Asset == nativeAsset {
		return h.payload.Amount.Int64()
	}
	return 0
}
