// Package wire defines the external transaction format and the codec
// boundary between bytes-on-the-wire and the in-process action types. A
// hand-generated protobuf binding is explicitly out of scope for this
// state machine (protobuf codec generation is a Non-goal); instead this
// package exposes a Codec interface over plain JSON-tagged structs,
// mirroring the teacher's own json.Marshal/Unmarshal use for ValidatorBlock
// at the ABCI boundary. A generated-protobuf Codec could be substituted
// later without touching any action handler.
package wire

import (
	"encoding/json"

	"github.com/shieldnet/core/pkg/commitment"
)

// ActionKind is the closed tagged union of transaction action kinds. New
// kinds are added only by extending this enum plus a handler in pkg/action;
// no open-world plugin registration exists consensus-side.
type ActionKind string

const (
	ActionSpend                ActionKind = "spend"
	ActionOutput               ActionKind = "output"
	ActionSwap                 ActionKind = "swap"
	ActionSwapClaim            ActionKind = "swap_claim"
	ActionDelegate             ActionKind = "delegate"
	ActionUndelegate           ActionKind = "undelegate"
	ActionUndelegateClaim      ActionKind = "undelegate_claim"
	ActionValidatorDefinition  ActionKind = "validator_definition"
	ActionProposalSubmit       ActionKind = "proposal_submit"
	ActionProposalWithdraw     ActionKind = "proposal_withdraw"
	ActionProposalDepositClaim ActionKind = "proposal_deposit_claim"
	ActionValidatorVote        ActionKind = "validator_vote"
	ActionDelegatorVote        ActionKind = "delegator_vote"
	ActionDaoDeposit           ActionKind = "dao_deposit"
	ActionDaoSpend             ActionKind = "dao_spend"
	ActionPositionOpen         ActionKind = "position_open"
	ActionPositionClose        ActionKind = "position_close"
	ActionPositionWithdraw     ActionKind = "position_withdraw"
	ActionPositionRewardClaim  ActionKind = "position_reward_claim"
	ActionIcs20Withdrawal      ActionKind = "ics20_withdrawal"
	ActionIbc                  ActionKind = "ibc_action"
)

// Action is one tagged-union entry in a transaction body. Exactly one of
// the typed payload fields is populated, selected by Kind; json.RawMessage
// keeps the wire format schema-agnostic per action kind without requiring
// a oneof-style generated type.
type Action struct {
	Kind    ActionKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// TransactionBody carries every transaction-wide field the pipeline checks
// before dispatching to individual actions.
type TransactionBody struct {
	Actions      []Action `json:"actions"`
	ExpiryHeight uint64   `json:"expiry_height"`
	ChainID      string   `json:"chain_id"`
	Fee          uint64   `json:"fee"`
	FmdClues     int      `json:"fmd_clues"`
	Memo         []byte   `json:"memo,omitempty"`
}

// Transaction is the full wire envelope: a body plus the signatures and
// anchor binding it to a specific TCT root.
type Transaction struct {
	Body       TransactionBody `json:"body"`
	BindingSig []byte          `json:"binding_sig"`
	Anchor     []byte          `json:"anchor"`
}

// Codec isolates the encode/decode boundary so an alternative wire format
// (e.g. a future generated-protobuf implementation) can be substituted
// without any change to the state machine.
type Codec interface {
	Encode(tx *Transaction) ([]byte, error)
	Decode(b []byte) (*Transaction, error)
}

// JSONCodec is the codec used by this implementation.
type JSONCodec struct{}

func (JSONCodec) Encode(tx *Transaction) ([]byte, error) { return json.Marshal(tx) }

func (JSONCodec) Decode(b []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(b, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Hash returns a stable content-addressed identifier for tx, for logs or
// lookups by hash. The CheckTx/FinalizeBlock results and the app's query
// paths do not use it.
func (tx Transaction) Hash() (string, error) {
	return commitment.HashCanonical(tx)
}
