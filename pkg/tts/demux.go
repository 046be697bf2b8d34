package tts

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventKind tags a decoded provider message.
type EventKind int

const (
	// EventUnrecognized is anything the session does not need (pings,
	// status messages, malformed payloads). It is dropped, never an error.
	EventUnrecognized EventKind = iota

	// EventAudio carries one decoded audio fragment.
	EventAudio

	// EventAlignment carries one timing event, passed through unchanged.
	EventAlignment

	// EventError is an error object sent by the provider in-stream.
	EventError

	// EventFinal marks the provider's last message for the session.
	EventFinal
)

func (k EventKind) String() string {
	switch k {
	case EventAudio:
		return "audio"
	case EventAlignment:
		return "alignment"
	case EventError:
		return "error"
	case EventFinal:
		return "final"
	default:
		return "unrecognized"
	}
}

// Event is one classified provider message.
type Event struct {
	Kind EventKind

	// Audio is set for EventAudio.
	Audio []byte

	// Alignment is set for EventAlignment. An EventAudio may also carry the
	// alignment that arrived in the same message.
	Alignment json.RawMessage

	// Final is set when the provider flagged this message as the last one.
	Final bool

	// Err is set for EventError, and for EventUnrecognized when the payload
	// was malformed.
	Err error

	// Raw is the original payload for EventUnrecognized.
	Raw []byte
}

// inboundMessage is the provider's stream-input response shape.
type inboundMessage struct {
	Audio               *string         `json:"audio"`
	IsFinal             *bool           `json:"isFinal"`
	Alignment           json.RawMessage `json:"alignment"`
	NormalizedAlignment json.RawMessage `json:"normalizedAlignment"`
	Error               json.RawMessage `json:"error"`
	Message             string          `json:"message"`
	Code                json.RawMessage `json:"code"`
}

// Decode classifies one raw provider message. It never fails: payloads that
// are not JSON objects, or whose audio is not valid base64, come back as
// EventUnrecognized with Err set. Raw bytes are never treated as audio.
func Decode(raw []byte) Event {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return unrecognized(raw, fmt.Errorf("parse message: %w", err))
	}

	final := msg.IsFinal != nil && *msg.IsFinal
	alignment := pickAlignment(msg)

	if msg.Audio != nil && *msg.Audio != "" {
		audio, err := decodeAudio(*msg.Audio)
		if err != nil {
			return unrecognized(raw, fmt.Errorf("decode audio: %w", err))
		}
		if len(audio) == 0 {
			return unrecognized(raw, errors.New("decode audio: empty fragment"))
		}
		return Event{Kind: EventAudio, Audio: audio, Alignment: alignment, Final: final}
	}

	if alignment != nil {
		return Event{Kind: EventAlignment, Alignment: alignment, Final: final}
	}

	if present(msg.Error) {
		return Event{Kind: EventError, Err: providerMessageError(msg), Final: final}
	}

	if final {
		return Event{Kind: EventFinal, Final: true}
	}

	return Event{Kind: EventUnrecognized, Raw: raw}
}

func unrecognized(raw []byte, err error) Event {
	return Event{Kind: EventUnrecognized, Raw: raw, Err: err}
}

// pickAlignment prefers the alignment against the submitted text and falls
// back to the normalized one.
func pickAlignment(msg inboundMessage) json.RawMessage {
	if present(msg.Alignment) {
		return msg.Alignment
	}
	if present(msg.NormalizedAlignment) {
		return msg.NormalizedAlignment
	}
	return nil
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// decodeAudio accepts padded, unpadded and over-padded base64.
func decodeAudio(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
}

func providerMessageError(msg inboundMessage) error {
	apiErr := &APIError{Provider: providerElevenLabs, Message: msg.Message}

	var text string
	if json.Unmarshal(msg.Error, &text) == nil {
		apiErr.Code = text
	} else {
		apiErr.Code = string(bytes.TrimSpace(msg.Error))
	}
	if apiErr.Message == "" {
		apiErr.Message = apiErr.Code
		apiErr.Code = ""
	}

	var status int
	if present(msg.Code) && json.Unmarshal(msg.Code, &status) == nil {
		apiErr.StatusCode = status
	}
	return apiErr
}
