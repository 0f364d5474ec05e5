package pkt

import (
	"bytes"
	"strings"
	"testing"

	"bjoernblessin.de/rudpfile/common"
)

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		pktNum  uint32
		msgType byte
		payload []byte
	}{
		{
			name:    "Header Only",
			data:    []byte{0x0, 0x0, 0x1, 0x0, MsgTypeAck, 0x12, 0x34},
			pktNum:  256,
			msgType: MsgTypeAck,
			payload: []byte{},
		},
		{
			name:    "With Payload",
			data:    []byte{0x0, 0x0, 0x0, 0x2, MsgTypeData, 0x0, 0x0, 'a', 'b'},
			pktNum:  2,
			msgType: MsgTypeData,
			payload: []byte("ab"),
		},
		{
			name:    "Too Short",
			data:    []byte{0x0, 0x0, 0x0, 0x2, MsgTypeData, 0x0},
			wantErr: true,
		},
		{
			name:    "Too Long",
			data:    make([]byte, common.HEADER_SIZE_BYTES+common.MAX_PAYLOAD_SIZE_BYTES+1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet, err := ParsePacket(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePacket() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if packet.GetPktNum() != tt.pktNum {
				t.Errorf("GetPktNum() = %d, expected %d", packet.GetPktNum(), tt.pktNum)
			}
			if packet.GetMessageType() != tt.msgType {
				t.Errorf("GetMessageType() = %d, expected %d", packet.GetMessageType(), tt.msgType)
			}
			if !bytes.Equal(packet.Payload, tt.payload) {
				t.Errorf("Payload = %v, expected %v", packet.Payload, tt.payload)
			}
		})
	}
}

func TestParsePacketCopiesData(t *testing.T) {
	data := NewPacket(MsgTypeData, 1, []byte("xyz")).ToByteArray()

	packet, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket() failed: %v", err)
	}

	data[common.HEADER_SIZE_BYTES] = 'Q'
	if string(packet.Payload) != "xyz" {
		t.Errorf("parsed payload changed with the input buffer: %q", packet.Payload)
	}
}

func TestNewPacket(t *testing.T) {
	payload := []byte("chunk")
	packet := NewPacket(MsgTypeData, 0x01020304, payload)

	payload[0] = 'X'
	if string(packet.Payload) != "chunk" {
		t.Errorf("NewPacket() did not copy the payload")
	}

	wire := packet.ToByteArray()
	expectedHeader := []byte{0x01, 0x02, 0x03, 0x04, MsgTypeData}
	if !bytes.Equal(wire[:5], expectedHeader) {
		t.Errorf("header bytes = %v, expected %v", wire[:5], expectedHeader)
	}
	if packet.WireSize() != len(wire) || len(wire) != common.HEADER_SIZE_BYTES+5 {
		t.Errorf("WireSize() = %d, len(wire) = %d", packet.WireSize(), len(wire))
	}
	if !VerifyChecksum(packet) {
		t.Errorf("NewPacket() produced an invalid checksum")
	}

	record := packet.ToFixedRecord()
	if len(record) != common.HEADER_SIZE_BYTES+common.MAX_PAYLOAD_SIZE_BYTES {
		t.Errorf("fixed record length = %d", len(record))
	}
	if !bytes.Equal(record[:len(wire)], wire) || bytes.ContainsFunc(record[len(wire):], func(r rune) bool { return r != 0 }) {
		t.Errorf("fixed record is not the wire bytes followed by zeros")
	}
}

func TestNewPacketRejectsOversizedPayload(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for oversized payload")
		}
	}()
	NewPacket(MsgTypeData, 0, make([]byte, common.MAX_PAYLOAD_SIZE_BYTES+1))
}

func TestString(t *testing.T) {
	s := NewAck(9).String()
	if !strings.Contains(s, "Type:ACK") || !strings.Contains(s, "PktNum:9") {
		t.Errorf("String() = %s", s)
	}
	if MsgTypeName(0x7F) != "0x7F" {
		t.Errorf("MsgTypeName(0x7F) = %s", MsgTypeName(0x7F))
	}
}
