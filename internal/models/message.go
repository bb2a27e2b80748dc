package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SignalType is the event name a signaling message travels under.
type SignalType string

const (
	SignalTypeOffer     SignalType = "offer"
	SignalTypeAnswer    SignalType = "answer"
	SignalTypeCandidate SignalType = "ice-candidate"
)

var (
	ErrUnknownSignal = errors.New("unknown signal type")
	ErrEmptyPayload  = errors.New("signal payload is empty")
)

// Signal is one of Offer, Answer or IceCandidate. The payload is the
// browser's session description or candidate, kept as raw JSON.
type Signal interface {
	Type() SignalType
	Payload() json.RawMessage
	isSignal()
}

type Offer struct{ Data json.RawMessage }

type Answer struct{ Data json.RawMessage }

type IceCandidate struct{ Data json.RawMessage }

func (Offer) Type() SignalType        { return SignalTypeOffer }
func (Answer) Type() SignalType       { return SignalTypeAnswer }
func (IceCandidate) Type() SignalType { return SignalTypeCandidate }

func (s Offer) Payload() json.RawMessage        { return s.Data }
func (s Answer) Payload() json.RawMessage       { return s.Data }
func (s IceCandidate) Payload() json.RawMessage { return s.Data }

func (Offer) isSignal()        {}
func (Answer) isSignal()       {}
func (IceCandidate) isSignal() {}

// SignalMessage is the wire envelope exchanged over the realtime channel.
type SignalMessage struct {
	Event SignalType      `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewSignal builds the variant matching t around payload.
func NewSignal(t SignalType, payload json.RawMessage) (Signal, error) {
	switch t {
	case SignalTypeOffer:
		return Offer{Data: payload}, nil
	case SignalTypeAnswer:
		return Answer{Data: payload}, nil
	case SignalTypeCandidate:
		return IceCandidate{Data: payload}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSignal, t)
	}
}

// DecodeSignal parses a wire envelope. The payload is not interpreted beyond
// being well-formed JSON.
func DecodeSignal(frame []byte) (Signal, error) {
	var msg SignalMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse signal: %w", err)
	}
	if len(bytes.TrimSpace(msg.Data)) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyPayload, msg.Event)
	}
	return NewSignal(msg.Event, msg.Data)
}

// EncodeSignal renders s as a wire envelope. The payload bytes are copied
// verbatim; json.Marshal would compact and re-escape them.
func EncodeSignal(s Signal) ([]byte, error) {
	event, err := json.Marshal(s.Type())
	if err != nil {
		return nil, err
	}
	payload := s.Payload()
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("null")
	}

	var buf bytes.Buffer
	buf.Grow(len(event) + len(payload) + 20)
	buf.WriteString(`{"event":`)
	buf.Write(event)
	buf.WriteString(`,"data":`)
	buf.Write(payload)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
