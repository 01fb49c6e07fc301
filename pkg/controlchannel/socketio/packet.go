package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// EnginePacketType is the Engine.IO v4 packet type, sent as a single
// ASCII digit in front of the payload.
type EnginePacketType byte

const (
	EnginePacketOpen    = EnginePacketType('0')
	EnginePacketClose   = EnginePacketType('1')
	EnginePacketPing    = EnginePacketType('2')
	EnginePacketPong    = EnginePacketType('3')
	EnginePacketMessage = EnginePacketType('4')
	EnginePacketUpgrade = EnginePacketType('5')
	EnginePacketNoop    = EnginePacketType('6')
)

func (t EnginePacketType) String() string {
	switch t {
	case EnginePacketOpen:
		return "open"
	case EnginePacketClose:
		return "close"
	case EnginePacketPing:
		return "ping"
	case EnginePacketPong:
		return "pong"
	case EnginePacketMessage:
		return "message"
	case EnginePacketUpgrade:
		return "upgrade"
	case EnginePacketNoop:
		return "noop"
	default:
		return fmt.Sprintf("unknown_engine_packet_%q", byte(t))
	}
}

var ErrEmptyPacket = errors.New("empty packet")

func DecodeEnginePacket(msg []byte) (EnginePacketType, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, ErrEmptyPacket
	}
	t := EnginePacketType(msg[0])
	if t < EnginePacketOpen || t > EnginePacketNoop {
		return 0, nil, fmt.Errorf("unknown Engine.IO packet type %q", msg[0])
	}
	return t, msg[1:], nil
}

func EncodeEnginePacket(t EnginePacketType, payload []byte) []byte {
	result := make([]byte, 0, 1+len(payload))
	result = append(result, byte(t))
	return append(result, payload...)
}

// OpenPayload is the handshake sent by the server in the open packet.
// Durations are in milliseconds.
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// PacketType is the Socket.IO v4 packet type.
type PacketType byte

const (
	PacketConnect      = PacketType('0')
	PacketDisconnect   = PacketType('1')
	PacketEvent        = PacketType('2')
	PacketAck          = PacketType('3')
	PacketConnectError = PacketType('4')
	PacketBinaryEvent  = PacketType('5')
	PacketBinaryAck    = PacketType('6')
)

func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "connect"
	case PacketDisconnect:
		return "disconnect"
	case PacketEvent:
		return "event"
	case PacketAck:
		return "ack"
	case PacketConnectError:
		return "connect_error"
	case PacketBinaryEvent:
		return "binary_event"
	case PacketBinaryAck:
		return "binary_ack"
	default:
		return fmt.Sprintf("unknown_packet_%q", byte(t))
	}
}

const DefaultNamespace = "/"

// NoAckID marks a packet that does not request an acknowledgement.
const NoAckID = -1

type Packet struct {
	Type      PacketType
	Namespace string
	AckID     int64
	Data      json.RawMessage
}

func (p Packet) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(p.Type))
	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		buf.WriteString(p.Namespace)
		buf.WriteByte(',')
	}
	if p.AckID >= 0 {
		buf.WriteString(strconv.FormatInt(p.AckID, 10))
	}
	buf.Write(p.Data)
	return buf.Bytes()
}

func DecodePacket(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, ErrEmptyPacket
	}
	p := Packet{
		Type:      PacketType(b[0]),
		Namespace: DefaultNamespace,
		AckID:     NoAckID,
	}
	switch p.Type {
	case PacketConnect, PacketDisconnect, PacketEvent, PacketAck, PacketConnectError:
	case PacketBinaryEvent, PacketBinaryAck:
		return Packet{}, fmt.Errorf("binary packets are not supported")
	default:
		return Packet{}, fmt.Errorf("unknown Socket.IO packet type %q", b[0])
	}
	rest := b[1:]

	if len(rest) > 0 && rest[0] == '/' {
		idx := bytes.IndexByte(rest, ',')
		if idx < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:idx])
		rest = rest[idx+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.ParseInt(string(rest[:digits]), 10, 64)
		if err != nil {
			return Packet{}, fmt.Errorf("unable to parse the ack id '%s': %w", rest[:digits], err)
		}
		p.AckID = id
		rest = rest[digits:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return Packet{}, fmt.Errorf("the packet data is not a valid JSON: '%s'", rest)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// NewEventPacket builds `["name"]` or `["name", payload]`.
func NewEventPacket(namespace, name string, payload any) (Packet, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return Packet{}, fmt.Errorf("unable to serialize the event '%s': %w", name, err)
	}
	return Packet{
		Type:      PacketEvent,
		Namespace: namespace,
		AckID:     NoAckID,
		Data:      data,
	}, nil
}

// Event returns the event name and its first argument (nil if there is none).
func (p Packet) Event() (string, json.RawMessage, error) {
	if p.Type != PacketEvent {
		return "", nil, fmt.Errorf("packet type %s is not an event", p.Type)
	}
	var args []json.RawMessage
	if err := json.Unmarshal(p.Data, &args); err != nil {
		return "", nil, fmt.Errorf("unable to parse the event arguments: %w", err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("the event has no name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("the event name is not a string: %w", err)
	}
	if len(args) < 2 {
		return name, nil, nil
	}
	return name, args[1], nil
}
