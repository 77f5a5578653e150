package ibc

import (
	"time"

	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/store"
)

// RecvPacket implements MsgRecvPacket's try_execute, ported from
// original_source/crates/core/component/ibc/src/component/msg_handler/recv_packet.rs:
// channel must be Open, the packet's claimed source port/channel must
// match the channel's counterparty, the connection must be Open, the
// packet must not have timed out by height or timestamp, the proof must
// verify, and ordered channels enforce strict sequence order while
// unordered channels reject replays via a receipt key.
func (c *Component) RecvPacket(delta *store.Layer, p Packet, blockHeight uint64, blockTime time.Time) error {
	ch, err := GetChannel(delta, p.PortOnB, p.ChanOnB)
	if err != nil {
		return err
	}
	if ch.State != ChannelOpen {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "channel is not open")
	}
	if p.PortOnA != ch.CounterpartyPortID {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "packet source port does not match channel")
	}
	if ch.CounterpartyChannelID == "" {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "channel missing counterparty channel id")
	}
	if p.ChanOnA != ch.CounterpartyChannelID {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "packet source channel does not match channel")
	}
	if len(ch.ConnectionHops) == 0 {
		return apperrors.Block(apperrors.ErrInvariantViolation, "channel has no connection hops")
	}
	conn, err := GetConnection(delta, ch.ConnectionHops[0])
	if err != nil {
		return err
	}
	if conn.State != ConnectionOpen {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "connection for channel is not open")
	}

	if p.TimeoutHeightOnB != 0 && blockHeight >= p.TimeoutHeightOnB {
		return apperrors.Tx(apperrors.ErrExpiredTransaction, "packet has timed out by height")
	}
	if !p.TimeoutTimestampOnB.IsZero() && !blockTime.Before(p.TimeoutTimestampOnB) {
		return apperrors.Tx(apperrors.ErrExpiredTransaction, "packet has timed out by timestamp")
	}

	if c.Verifier != nil {
		if err := c.Verifier.VerifyPacketRecvProof(*conn, p); err != nil {
			return apperrors.Tx(apperrors.ErrIBCVerificationFailed, err.Error())
		}
	}

	if ch.Ordering == Ordered {
		next, err := GetRecvSequence(delta, p.PortOnB, p.ChanOnB)
		if err != nil {
			return err
		}
		if p.Sequence != next {
			return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "packet sequence number does not match")
		}
		if err := PutRecvSequence(delta, p.PortOnB, p.ChanOnB, next+1); err != nil {
			return err
		}
	} else {
		seen, err := SeenPacket(delta, p)
		if err != nil {
			return err
		}
		if seen {
			return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "packet has already been processed")
		}
		PutPacketReceipt(delta, p)
	}

	return nil
}

// TimeoutPacket releases a sent packet on an open channel once the given
// counterparty height or time has reached the packet's timeout, closing
// the channel if it is ordered, following the shape of ICS-04's timeout
// flow. It does not check for a receipt or acknowledgement on the
// counterparty and verifies no proof. Grounded on the same component.rs
// state machine as RecvPacket, generalized to the send side.
func TimeoutPacket(delta *store.Layer, p Packet, counterpartyHeight uint64, counterpartyTime time.Time) error {
	ch, err := GetChannel(delta, p.PortOnA, p.ChanOnA)
	if err != nil {
		return err
	}
	if ch.State != ChannelOpen {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "channel is not open")
	}
	timedOut := (p.TimeoutHeightOnB != 0 && counterpartyHeight >= p.TimeoutHeightOnB) ||
		(!p.TimeoutTimestampOnB.IsZero() && !counterpartyTime.Before(p.TimeoutTimestampOnB))
	if !timedOut {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "packet has not yet timed out")
	}
	if ch.Ordering == Ordered {
		ch.State = ChannelClosed
		if err := PutChannel(delta, *ch); err != nil {
			return err
		}
	}
	return nil
}

// AcknowledgePacket records a counterparty's acknowledgement of a
// previously sent packet, completing its lifecycle on the sending chain.
func AcknowledgePacket(delta *store.Layer, p Packet, ack []byte) error {
	ch, err := GetChannel(delta, p.PortOnA, p.ChanOnA)
	if err != nil {
		return err
	}
	if ch.State != ChannelOpen {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "channel is not open")
	}
	_, ok, err := GetAcknowledgement(delta, p)
	if err != nil {
		return err
	}
	if ok {
		return apperrors.Tx(apperrors.ErrConsensusRuleViolation, "packet already acknowledged")
	}
	PutAcknowledgement(delta, p, ack)
	return nil
}
