package action

import (
	"encoding/json"
	"time"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/ibc"
	"github.com/shieldnet/core/pkg/store"
)

type ibcMessageType string

const (
	ibcRecvPacket        ibcMessageType = "recv_packet"
	ibcTimeoutPacket     ibcMessageType = "timeout_packet"
	ibcAcknowledgePacket ibcMessageType = "acknowledge_packet"
)

// IbcActionPayload wraps the three packet-lifecycle messages the packet
// layer understands. Client/connection/channel handshake messages are not
// modeled here: handshakes are established once, out of band, at genesis
// or by a trusted relayer operation outside the transaction pipeline.
type IbcActionPayload struct {
	Type            ibcMessageType `json:"type"`
	Packet          ibc.Packet     `json:"packet"`
	Acknowledgement []byte         `json:"acknowledgement,omitempty"`

	// CounterpartyHeight/CounterpartyTime carry the counterparty chain's
	// consensus state as of the timeout proof, used only by timeout_packet.
	CounterpartyHeight uint64    `json:"counterparty_height,omitempty"`
	CounterpartyTime   time.Time `json:"counterparty_time,omitempty"`
}

type ibcActionHandler struct {
	comps   *Components
	payload IbcActionPayload
}

func newIbcActionHandler(comps *Components, raw json.RawMessage) (Handler, error) {
	var p IbcActionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Tx(apperrors.ErrMalformedAction, err.Error())
	}
	return &ibcActionHandler{comps: comps, payload: p}, nil
}

func (h *ibcActionHandler) CheckStateless() error {
	switch h.payload.Type {
	case ibcRecvPacket, ibcTimeoutPacket, ibcAcknowledgePacket:
	default:
		return apperrors.Tx(apperrors.ErrMalformedAction, "unknown ibc action type")
	}
	if h.payload.Packet.ChanOnB == "" && h.payload.Packet.ChanOnA == "" {
		return apperrors.Tx(apperrors.ErrMalformedAction, "ibc action missing packet channel identifiers")
	}
	return nil
}

func (h *ibcActionHandler) CheckStateful(r store.Reader) error {
	params, err := chain.LoadParams(r)
	if err != nil {
		return err
	}
	if !params.IBCEnabled {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "ibc is disabled")
	}
	return nil
}

func (h *ibcActionHandler) Execute(delta *store.Layer) error {
	height, err := chain.BlockHeight(delta)
	if err != nil {
		return err
	}
	blockTime, err := chain.BlockTime(delta)
	if err != nil {
		return err
	}
	switch h.payload.Type {
	case ibcRecvPacket:
		return h.comps.IBC.RecvPacket(delta, h.payload.Packet, uint64(height), blockTime)
	case ibcTimeoutPacket:
		return ibc.TimeoutPacket(delta, h.payload.Packet, h.payload.CounterpartyHeight, h.payload.CounterpartyTime)
	case ibcAcknowledgePacket:
		return ibc.AcknowledgePacket(delta, h.payload.Packet, h.payload.Acknowledgement)
	default:
		return apperrors.Tx(apperrors.ErrMalformedAction, "unknown ibc action type")
	}
}

func (h *ibcActionHandler) NativeBalance() int64 { return 0 }
