package action

import (
	"encoding/json"
	"math/big"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/ibc"
	"github.com/shieldnet/core/pkg/store"
)

// Ics20WithdrawalPayload burns a locally-held note and sends its value out
// over an IBC channel as an ICS-20 fungible-token-transfer packet.
type Ics20WithdrawalPayload struct {
	Amount             *big.Int `json:"amount"`
	Denom              string   `json:"denom"`
	DestinationChannel string   `json:"destination_channel"`
	DestinationPort    string   `json:"destination_port"`
	Receiver           string   `json:"receiver"`
	TimeoutHeight      uint64   `json:"timeout_height"`
}

type ics20WithdrawalHandler struct {
	comps   *Components
	payload Ics20WithdrawalPayload
}

func newIcs20WithdrawalHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	p := Ics20WithdrawalPayload{Amount: big.NewInt(0)}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	return &ics20WithdrawalHandler{comps: comps, payload: p}, nil
}

func (h *ics20WithdrawalHandler) CheckStateless() error {
	if h.payload.Denom == "" || h.payload.DestinationChannel == "" || h.payload.DestinationPort == "" || h.payload.Receiver == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "ics20 withdrawal missing required field")
	}
	if h.payload.Amount.Sign() <= 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "ics20 withdrawal amount must be positive")
	}
	return nil
}

// CheckStateful mirrors the source implementation's check_historical (the
// outbound_ics20_transfers_enabled chain parameter gate) followed by
// withdrawal_check (the channel must exist and be open).
func (h *ics20WithdrawalHandler) CheckStateful(r store.Reader) error {
	params, err := chain.LoadParams(r)
	if err != nil {
		return err
	}
	if !params.OutboundICS20Enabled {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "outbound ics20 transfers are disabled")
	}
	ch, err := ibc.GetChannel(r, h.payload.DestinationPort, h.payload.DestinationChannel)
	if err != nil {
		return err
	}
	if ch.State != ibc.ChannelOpen {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "ics20 destination channel is not open")
	}
	return nil
}

// Execute mirrors withdrawal_execute: it advances the channel's outbound
// sequence counter. The packet commitment proof itself and relayer
// liveness are outside this state machine's concern.
func (h *ics20WithdrawalHandler) Execute(delta *store.Layer) error {
	seq, err := ibc.GetSendSequence(delta, h.payload.DestinationPort, h.payload.DestinationChannel)
	if err != nil {
		return err
	}
	return ibc.PutSendSequence(delta, h.payload.DestinationPort, h.payload.DestinationChannel, seq+1)
}

func (h *ics20WithdrawalHandler) NativeBalance() int64 {
	if h.payload.Denom == nativeAsset {
		return -h.payload.Amount.Int64()
	}
	return 0
}
