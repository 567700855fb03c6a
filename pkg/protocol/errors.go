package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMessageType is returned when the discriminator (or, for client
	// requests, every recognised key) is absent or unrecognised.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrMalformedPayload is returned when the payload is not a JSON object, or a
	// known message type is missing a required field or has a field of the wrong type.
	ErrMalformedPayload = errors.New("malformed payload")
)

// DecodeError describes why a payload could not be decoded.
type DecodeError struct {
	// Type is the discriminator or request key, if one was found.
	Type string
	// Kind is ErrUnknownMessageType or ErrMalformedPayload.
	Kind error
	// Err is the underlying cause, if any.
	Err error
}

func (e *DecodeError) Error() string {
	msg := "protocol: " + e.Kind.Error()
	if e.Type != "" {
		msg += fmt.Sprintf(" %q", e.Type)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unknownType(typ string) error {
	return &DecodeError{Type: typ, Kind: ErrUnknownMessageType}
}

func malformed(typ string, err error) error {
	return &DecodeError{Type: typ, Kind: ErrMalformedPayload, Err: err}
}

func missingField(typ, field string) error {
	return malformed(typ, fmt.Errorf("missing required field %q", field))
}
