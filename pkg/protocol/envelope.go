package protocol

import (
	"encoding/json"
	"fmt"
)

// Type is the value of the "t" discriminator on server-originated messages.
type Type string

// Known message types.
const (
	TypeConnected Type = "connect.connected"
	TypeAck       Type = "connect.ack"
	TypeFailed    Type = "connect.failed"
	TypeQuote     Type = "trading.quote"
)

// Envelope is one server-originated message. The concrete types are Connected,
// ConnectionAck, Quote and Failed; all of them are comparable values.
type Envelope interface {
	Type() Type
}

// Connected is the handshake greeting sent as soon as a connection is ready.
type Connected struct{}

// ConnectionAck acknowledges a subscribe request and carries the identity the
// server assigned to the connection.
type ConnectionAck struct {
	ConnectionID int64
}

// Quote is one market data update.
type Quote struct {
	SecurityID   string
	CurrentPrice string
}

// Failed is an informational signal that the server has given up on the connection.
type Failed struct{}

func (Connected) Type() Type     { return TypeConnected }
func (ConnectionAck) Type() Type { return TypeAck }
func (Quote) Type() Type         { return TypeQuote }
func (Failed) Type() Type        { return TypeFailed }

// wire shapes

type bareMsg struct {
	T Type `json:"t"`
}

type ackMsg struct {
	T            Type  `json:"t"`
	ConnectionID int64 `json:"connectionId"`
}

type quoteBody struct {
	SecurityID   string `json:"securityId"`
	CurrentPrice string `json:"currentPrice"`
}

type quoteMsg struct {
	T    Type      `json:"t"`
	Body quoteBody `json:"body"`
}

// Encode serialises env to its JSON wire form.
func Encode(env Envelope) ([]byte, error) {
	var v any
	switch m := env.(type) {
	case Connected, Failed:
		v = bareMsg{T: m.Type()}
	case ConnectionAck:
		v = ackMsg{T: TypeAck, ConnectionID: m.ConnectionID}
	case Quote:
		v = quoteMsg{T: TypeQuote, Body: quoteBody{SecurityID: m.SecurityID, CurrentPrice: m.CurrentPrice}}
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", env)
	}
	return json.Marshal(v)
}

// Decode parses a server-originated message.
//
// The discriminator is read first; only once it names a known type is the full
// payload decoded against that type's shape. Unknown extra fields are ignored,
// missing required fields are not.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		T json.RawMessage `json:"t"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, malformed("", err)
	}
	if len(head.T) == 0 || string(head.T) == "null" {
		return nil, unknownType("")
	}
	var name string
	if err := json.Unmarshal(head.T, &name); err != nil {
		// A discriminator that is not a string names no known type.
		return nil, unknownType(string(head.T))
	}

	typ := Type(name)
	switch typ {
	case TypeConnected:
		return Connected{}, nil
	case TypeFailed:
		return Failed{}, nil
	case TypeAck:
		return decodeAck(data)
	case TypeQuote:
		return decodeQuote(data)
	default:
		return nil, unknownType(string(typ))
	}
}

func decodeAck(data []byte) (Envelope, error) {
	var m struct {
		ConnectionID *int64 `json:"connectionId"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, malformed(string(TypeAck), err)
	}
	if m.ConnectionID == nil {
		return nil, missingField(string(TypeAck), "connectionId")
	}
	return ConnectionAck{ConnectionID: *m.ConnectionID}, nil
}

func decodeQuote(data []byte) (Envelope, error) {
	var m struct {
		Body *struct {
			SecurityID   *string `json:"securityId"`
			CurrentPrice *string `json:"currentPrice"`
		} `json:"body"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, malformed(string(TypeQuote), err)
	}
	switch {
	case m.Body == nil:
		return nil, missingField(string(TypeQuote), "body")
	case m.Body.SecurityID == nil:
		return nil, missingField(string(TypeQuote), "body.securityId")
	case m.Body.CurrentPrice == nil:
		return nil, missingField(string(TypeQuote), "body.currentPrice")
	}
	return Quote{SecurityID: *m.Body.SecurityID, CurrentPrice: *m.Body.CurrentPrice}, nil
}
