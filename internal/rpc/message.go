// Package rpc implements the wire envelope every inbound transport payload
// decodes to, and the typed bodies it carries: transactions, blocks, and
// the status/sync handshake messages.
package rpc

import (
	"fmt"

	"github.com/empower1/ledgerchain/internal/codec"
	"github.com/empower1/ledgerchain/internal/core"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
)

// MessageType tags the envelope's payload.
type MessageType byte

const (
	MessageTypeTx        MessageType = 0x01
	MessageTypeBlock     MessageType = 0x02
	MessageTypeGetBlocks MessageType = 0x03
	MessageTypeStatus    MessageType = 0x04
	MessageTypeGetStatus MessageType = 0x05
)

// Message is the outer envelope: a one-byte type tag, a u64 length, and the
// type-specific body bytes.
type Message struct {
	Type MessageType
	Data []byte
}

// Encode writes the envelope: Message := MessageType(1 byte) || len(u64) || data[len].
func (m Message) Encode() []byte {
	w := codec.NewWriter()
	w.PutByte(byte(m.Type))
	w.PutBytes(m.Data)
	return w.Bytes()
}

// DecodeMessage reads an outer envelope from raw bytes.
func DecodeMessage(raw []byte) (Message, error) {
	r := codec.NewReader(raw)
	tagByte, err := r.Byte()
	if err != nil {
		return Message{}, err
	}
	data, err := r.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageType(tagByte), Data: data}, nil
}

// StatusMessage reports a peer's chain height for the sync handshake.
type StatusMessage struct {
	ID            string
	Version       uint32
	CurrentHeight uint32
}

// GetBlocksMessage requests the inclusive block range [From, To]. To == 0
// means "up to the peer's current height".
type GetBlocksMessage struct {
	From uint32
	To   uint32
}

// DecodedBody is a tagged union of the five RPC payload shapes.
type DecodedBody struct {
	Tx        *core.Transaction
	Block     *core.Block
	GetStatus bool
	Status    *StatusMessage
	GetBlocks *GetBlocksMessage
}

// DecodedMessage pairs the sender's address with the decoded body.
type DecodedMessage struct {
	From string
	Body DecodedBody
}

// Decode interprets an inbound RPC's raw envelope bytes, given the address
// it arrived from.
func Decode(from string, raw []byte) (DecodedMessage, error) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		return DecodedMessage{}, err
	}
	body, err := decodeBody(msg)
	if err != nil {
		return DecodedMessage{}, err
	}
	return DecodedMessage{From: from, Body: body}, nil
}

func decodeBody(msg Message) (DecodedBody, error) {
	switch msg.Type {
	case MessageTypeTx:
		tx, err := core.DecodeTransaction(codec.NewReader(msg.Data))
		if err != nil {
			return DecodedBody{}, err
		}
		return DecodedBody{Tx: tx}, nil
	case MessageTypeBlock:
		b, err := core.DecodeBlock(codec.NewReader(msg.Data))
		if err != nil {
			return DecodedBody{}, err
		}
		return DecodedBody{Block: b}, nil
	case MessageTypeGetStatus:
		return DecodedBody{GetStatus: true}, nil
	case MessageTypeStatus:
		sm, err := decodeStatus(msg.Data)
		if err != nil {
			return DecodedBody{}, err
		}
		return DecodedBody{Status: &sm}, nil
	case MessageTypeGetBlocks:
		gb, err := decodeGetBlocks(msg.Data)
		if err != nil {
			return DecodedBody{}, err
		}
		return DecodedBody{GetBlocks: &gb}, nil
	default:
		return DecodedBody{}, fmt.Errorf("%w: 0x%02x", internalerrors.ErrUnknownMessageType, byte(msg.Type))
	}
}

// EncodeTx wraps a transaction in a Tx envelope.
func EncodeTx(tx *core.Transaction) Message {
	return Message{Type: MessageTypeTx, Data: tx.Bytes()}
}

// EncodeBlock wraps a block in a Block envelope.
func EncodeBlock(b *core.Block) Message {
	return Message{Type: MessageTypeBlock, Data: b.Bytes()}
}

// EncodeGetStatus builds an empty GetStatus envelope.
func EncodeGetStatus() Message {
	return Message{Type: MessageTypeGetStatus, Data: nil}
}

// EncodeStatus wraps a StatusMessage in a Status envelope.
func EncodeStatus(sm StatusMessage) Message {
	w := codec.NewWriter()
	w.PutBytes([]byte(sm.ID))
	w.PutUint32(sm.Version)
	w.PutUint32(sm.CurrentHeight)
	return Message{Type: MessageTypeStatus, Data: w.Bytes()}
}

func decodeStatus(data []byte) (StatusMessage, error) {
	r := codec.NewReader(data)
	idBytes, err := r.Bytes()
	if err != nil {
		return StatusMessage{}, err
	}
	version, err := r.Uint32()
	if err != nil {
		return StatusMessage{}, err
	}
	height, err := r.Uint32()
	if err != nil {
		return StatusMessage{}, err
	}
	return StatusMessage{ID: string(idBytes), Version: version, CurrentHeight: height}, nil
}

// EncodeGetBlocks wraps a GetBlocksMessage in a GetBlocks envelope.
func EncodeGetBlocks(gb GetBlocksMessage) Message {
	w := codec.NewWriter()
	w.PutUint32(gb.From)
	w.PutUint32(gb.To)
	return Message{Type: MessageTypeGetBlocks, Data: w.Bytes()}
}

func decodeGetBlocks(data []byte) (GetBlocksMessage, error) {
	r := codec.NewReader(data)
	from, err := r.Uint32()
	if err != nil {
		return GetBlocksMessage{}, err
	}
	to, err := r.Uint32()
	if err != nil {
		return GetBlocksMessage{}, err
	}
	return GetBlocksMessage{From: from, To: to}, nil
}
