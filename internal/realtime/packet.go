package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
	engineUpgrade byte = '5'
	engineNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketAck          byte = '3'
	socketConnectError byte = '4'
	socketBinaryEvent  byte = '5'
	socketBinaryAck    byte = '6'
)

// engineProtocol is the EIO query value sent on every request.
const engineProtocol = "4"

// payloadSeparator splits packets in a long-polling payload.
const payloadSeparator = "\x1e"

const defaultNamespace = "/"

var errEmptyPacket = errors.New("empty packet")

type enginePacket struct {
	typ  byte
	data string
}

func parseEnginePacket(raw string) (enginePacket, error) {
	if raw == "" {
		return enginePacket{}, errEmptyPacket
	}
	if raw[0] < engineOpen || raw[0] > engineNoop {
		return enginePacket{}, fmt.Errorf("unknown engine packet type %q", raw[0])
	}
	return enginePacket{typ: raw[0], data: raw[1:]}, nil
}

func (p enginePacket) encode() string {
	return string(p.typ) + p.data
}

// openPayload is the data of the Engine.IO OPEN packet.
type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

type socketPacket struct {
	typ       byte
	namespace string
	ackID     int
	hasAck    bool
	data      json.RawMessage
}

func parseSocketPacket(raw string) (socketPacket, error) {
	if raw == "" {
		return socketPacket{}, errEmptyPacket
	}

	p := socketPacket{typ: raw[0], namespace: defaultNamespace}
	if p.typ < socketConnect || p.typ > socketBinaryAck {
		return socketPacket{}, fmt.Errorf("unknown socket packet type %q", p.typ)
	}
	if p.typ == socketBinaryEvent || p.typ == socketBinaryAck {
		return socketPacket{}, fmt.Errorf("binary socket packets are not supported")
	}

	rest := raw[1:]
	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			p.namespace = rest
			return p, nil
		}
		p.namespace = rest[:end]
		rest = rest[end+1:]
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return socketPacket{}, fmt.Errorf("parsing ack id: %w", err)
		}
		p.ackID, p.hasAck = id, true
		rest = rest[digits:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return socketPacket{}, fmt.Errorf("invalid socket packet payload")
		}
		p.data = json.RawMessage(rest)
	}
	return p, nil
}

// encodeSocket wraps a Socket.IO packet for the default namespace in an
// Engine.IO message.
func encodeSocket(typ byte, data interface{}) (string, error) {
	out := string(engineMessage) + string(typ)
	if data == nil {
		return out, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding socket packet: %w", err)
	}
	return out + string(b), nil
}

// decodeEvent splits an EVENT payload ["name", arg...] into its parts.
func decodeEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", nil, fmt.Errorf("decoding event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("decoding event: missing name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decoding event name: %w", err)
	}
	return name, parts[1:], nil
}

// connectError is the payload of a CONNECT_ERROR packet.
type connectError struct {
	Message string `json:"message"`
}

func splitPayload(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, payloadSeparator)
}

// engineURL builds the Engine.IO endpoint for the given transport on top
// of base, keeping any path prefix base already carries.
func engineURL(base *url.URL, transport, sid string) *url.URL {
	u := *base
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	q := u.Query()
	q.Set("EIO", engineProtocol)
	q.Set("transport", transport)
	if sid != "" {
		q.Set("sid", sid)
	}
	u.RawQuery = q.Encode()
	return &u
}

func decodeOpen(data string, p *openPayload) error {
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return fmt.Errorf("decoding open packet: %w", err)
	}
	if p.SID == "" {
		return errors.New("decoding open packet: missing sid")
	}
	return nil
}
