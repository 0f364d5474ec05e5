package pkt

import (
	"encoding/binary"
	"errors"
	"fmt"

	"bjoernblessin.de/rudpfile/common"
)

// Header represents the frame header structure.
// Format:
//
//	+--------+--------+--------+--------+--------+--------+--------+
//	|                                   |  Msg   |                 |
//	|     Packet Number (32 bits)       |  Type  |    Checksum     |
//	|                                   |(8 bits)|    (16 bits)    |
//	+--------+--------+--------+--------+--------+--------+--------+
//
// Total size: 7 bytes (56 bits). All fields are in network byte order.
// The payload (0 to common.MAX_PAYLOAD_SIZE_BYTES bytes) follows directly.
type Header struct {
	PktNum   [4]byte // Packet number (32 bits)
	Type     byte    // Message type (8 bits)
	Checksum [2]byte // Checksum (16 bits)
}

// Payload represents the data carried by the packet.
type Payload []byte

type Packet struct {
	Header  Header
	Payload Payload
}

const (
	MsgTypeData        = 0x1
	MsgTypeEndOfStream = 0x2
	MsgTypeAck         = 0x3
	MsgTypeOpen        = 0x4
	MsgTypeOpenAck     = 0x5
)

var msgTypeNames = map[byte]string{
	MsgTypeData:        "DATA",
	MsgTypeEndOfStream: "EOS",
	MsgTypeAck:         "ACK",
	MsgTypeOpen:        "OPEN",
	MsgTypeOpenAck:     "OPEN_ACK",
}

const checksumOffset = 5

// MsgTypeName returns a short, human readable name for a message type.
func MsgTypeName(msgType byte) string {
	name, ok := msgTypeNames[msgType]
	if !ok {
		return fmt.Sprintf("0x%02X", msgType)
	}
	return name
}

// ParsePacket parses a received datagram.
// The payload length is the datagram length minus the header size.
// The checksum is not verified, use VerifyChecksum for that.
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < common.HEADER_SIZE_BYTES {
		return nil, fmt.Errorf("data length %d is shorter than the header size, invalid packet", len(data))
	}
	if len(data) > common.HEADER_SIZE_BYTES+common.MAX_PAYLOAD_SIZE_BYTES {
		return nil, errors.New("data length exceeds the maximum frame size, invalid packet")
	}

	header := Header{
		PktNum:   [4]byte{data[0], data[1], data[2], data[3]},
		Type:     data[4],
		Checksum: [2]byte{data[5], data[6]},
	}

	payload := make(Payload, len(data)-common.HEADER_SIZE_BYTES)
	copy(payload, data[common.HEADER_SIZE_BYTES:])

	return &Packet{
		Header:  header,
		Payload: payload,
	}, nil
}

// NewPacket builds a frame and stamps its checksum.
// The payload is copied, so the caller may reuse its buffer.
// No more modifications to the packet should be made afterwards.
func NewPacket(msgType byte, pktNum uint32, payload []byte) *Packet {
	if len(payload) > common.MAX_PAYLOAD_SIZE_BYTES {
		panic(fmt.Sprintf("payload of %d bytes exceeds maximum payload size", len(payload)))
	}

	packet := &Packet{
		Header: Header{
			Type: msgType,
		},
		Payload: append(Payload(nil), payload...),
	}
	binary.BigEndian.PutUint32(packet.Header.PktNum[:], pktNum)

	SetChecksum(packet)
	return packet
}

// NewAck builds an acknowledgment for the given packet number.
func NewAck(pktNum uint32) *Packet {
	return NewPacket(MsgTypeAck, pktNum, nil)
}

// ToByteArray serializes the Packet struct into a byte array.
// Makes a complete copy of all packet data into a new byte slice.
// Only the actual payload is included, not the unused part of the payload area.
func (p *Packet) ToByteArray() []byte {
	data := make([]byte, 0, common.HEADER_SIZE_BYTES+len(p.Payload))
	data = append(data, p.Header.PktNum[:]...)
	data = append(data, p.Header.Type)
	data = append(data, p.Header.Checksum[:]...)
	data = append(data, p.Payload...)

	return data
}

// ToFixedRecord serializes the packet into the fixed-size record: the header
// followed by a payload area of common.MAX_PAYLOAD_SIZE_BYTES, zero-filled behind the payload.
func (p *Packet) ToFixedRecord() []byte {
	data := make([]byte, common.HEADER_SIZE_BYTES+common.MAX_PAYLOAD_SIZE_BYTES)
	copy(data, p.ToByteArray())
	return data
}

// WireSize is the number of bytes that are put on the wire for this packet.
func (p *Packet) WireSize() int {
	return common.HEADER_SIZE_BYTES + len(p.Payload)
}

func (p *Packet) GetPktNum() uint32 {
	return binary.BigEndian.Uint32(p.Header.PktNum[:])
}

func (p *Packet) GetMessageType() byte {
	return p.Header.Type
}

func (p *Packet) String() string {
	return "{ " +
		fmt.Sprintf("Type:%s ", MsgTypeName(p.Header.Type)) +
		fmt.Sprintf("PktNum:%d ", p.GetPktNum()) +
		fmt.Sprintf("Chksum:0x%02X%02X ", p.Header.Checksum[0], p.Header.Checksum[1]) +
		fmt.Sprintf("Len:%d ", len(p.Payload)) +
		"}"
}
