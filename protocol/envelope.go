// Package protocol defines the JSON envelopes exchanged between game clients
// and the server.
//
// Inbound (client -> server):
//
//	{"messageContextId": "<uuid>", "type": "JoinRoom", "data": {...}}
//
// Outbound replies echo messageContextId and carry a result code:
//
//	{"messageContextId": "<uuid>", "type": "JoinRoomResponse", "result": "OK", "data": {...}}
//
// Broadcasts carry no messageContextId.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Result classifies an outbound message.
type Result string

const (
	// ResultOK marks a successful reply or a broadcast.
	ResultOK Result = "OK"
	// ResultFailure marks a client-caused problem (bad input, unknown command, rule violation).
	ResultFailure Result = "FAILURE"
	// ResultError marks a server-caused problem.
	ResultError Result = "ERROR"
)

const (
	// TypeError is the reply type used when no command type could be read from the frame.
	TypeError = "Error"

	responseSuffix = "Response"
)

// Envelope is an inbound client message.
type Envelope struct {
	MessageContextID string          `json:"messageContextId"`
	Type             string          `json:"type"`
	Data             json.RawMessage `json:"data,omitempty"`
}

// Outbound is a reply or broadcast sent to a client.
type Outbound struct {
	MessageContextID string `json:"messageContextId,omitempty"`
	Type             string `json:"type"`
	Result           Result `json:"result"`
	Data             any    `json:"data,omitempty"`
}

// ErrorData is the payload of FAILURE and ERROR replies.
type ErrorData struct {
	Error string `json:"error"`
}

// MalformedEnvelopeError reports a frame whose outer envelope could not be read.
type MalformedEnvelopeError struct {
	Reason string
	Err    error
}

func (e *MalformedEnvelopeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed envelope: %s: %v", e.Reason, e.Err)
	}
	return "malformed envelope: " + e.Reason
}

func (e *MalformedEnvelopeError) Unwrap() error { return e.Err }

// ParseEnvelope extracts the routing fields of a raw frame. The payload is
// left undecoded.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &MalformedEnvelopeError{Reason: "invalid JSON", Err: err}
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return Envelope{}, &MalformedEnvelopeError{Reason: "missing type"}
	}
	if env.MessageContextID == "" {
		return Envelope{}, &MalformedEnvelopeError{Reason: "missing messageContextId"}
	}
	if _, err := uuid.Parse(env.MessageContextID); err != nil {
		return Envelope{}, &MalformedEnvelopeError{Reason: "messageContextId is not a UUID", Err: err}
	}
	return env, nil
}

// ResponseType returns the reply type for a command type.
func ResponseType(commandType string) string {
	return commandType + responseSuffix
}

// Success builds an OK reply for env.
func Success(env Envelope, data any) Outbound {
	return Outbound{
		MessageContextID: env.MessageContextID,
		Type:             ResponseType(env.Type),
		Result:           ResultOK,
		Data:             data,
	}
}

// Failure builds a FAILURE reply for env.
func Failure(env Envelope, err error) Outbound {
	return Outbound{
		MessageContextID: env.MessageContextID,
		Type:             ResponseType(env.Type),
		Result:           ResultFailure,
		Data:             ErrorData{Error: errorText(err)},
	}
}

// ServerError builds an ERROR reply for env. The message is generic; details
// stay in the server log.
func ServerError(env Envelope) Outbound {
	return Outbound{
		MessageContextID: env.MessageContextID,
		Type:             ResponseType(env.Type),
		Result:           ResultError,
		Data:             ErrorData{Error: "internal server error"},
	}
}

// ConnectionFailure builds a connection-scoped FAILURE reply for frames that
// carry no usable messageContextId.
func ConnectionFailure(err error) Outbound {
	return Outbound{
		Type:   TypeError,
		Result: ResultFailure,
		Data:   ErrorData{Error: errorText(err)},
	}
}

// Event builds a broadcast message.
func Event(eventType string, data any) Outbound {
	return Outbound{Type: eventType, Result: ResultOK, Data: data}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// IsMalformedEnvelope reports whether err is a MalformedEnvelopeError.
func IsMalformedEnvelope(err error) bool {
	var target *MalformedEnvelopeError
	return errors.As(err, &target)
}
