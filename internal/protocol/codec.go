package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageSize is the largest inbound message accepted on any transport
const MaxMessageSize = 64 * 1024

// ErrInvalidFormat is returned for lines that are not a JSON object with a type
var ErrInvalidFormat = errors.New("invalid message format")

// UnknownTypeError is returned for a well-formed message with an unrecognised type
type UnknownTypeError struct {
	Type MessageType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.Type)
}

// MissingFieldError is returned when a required field is absent or has the wrong type
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing field: %s", e.Field)
}

// Envelope is a decoded line: its type plus the raw object for binding
type Envelope struct {
	Type MessageType
	Raw  json.RawMessage
}

// Decode parses one inbound message
func Decode(data []byte) (Envelope, error) {
	data = bytes.TrimSpace(data)

	var head struct {
		Type *MessageType `json:"type"`
	}
	if len(data) == 0 || data[0] != '{' {
		return Envelope{}, ErrInvalidFormat
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Type == nil || *head.Type == "" {
		return Envelope{}, ErrInvalidFormat
	}
	return Envelope{Type: *head.Type, Raw: json.RawMessage(data)}, nil
}

// Bind decodes the envelope body into req and validates required fields
func (e Envelope) Bind(req Request) error {
	if err := json.Unmarshal(e.Raw, req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &MissingFieldError{Field: typeErr.Field}
		}
		return ErrInvalidFormat
	}
	return req.Validate()
}

// Encode marshals an outbound message without a trailing delimiter
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// TypeOf extracts the type of an encoded outbound message. It returns "" if
// the payload has none.
func TypeOf(data []byte) MessageType {
	var head struct {
		Type MessageType `json:"type"`
	}
	_ = json.Unmarshal(data, &head)
	return head.Type
}
