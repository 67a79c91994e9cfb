package schemas

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
)

// MessageType is the wire discriminator of a frame message.
type MessageType string

const (
	MessageStartAutofill MessageType = "START_AUTOFILL"
	MessageScanComplete  MessageType = "AUTOFILL_SCAN_COMPLETE"
	MessageFieldFilled   MessageType = "FIELD_FILLED"
	MessageAutofillTotal MessageType = "AUTOFILL_TOTAL"
)

// IsEvent reports whether messages of this type flow upward from a frame to the top frame.
func (t MessageType) IsEvent() bool {
	switch t {
	case MessageScanComplete, MessageFieldFilled, MessageAutofillTotal:
		return true
	}
	return false
}

// ErrUnknownMessage is returned when decoding a payload whose type is not part of the protocol.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is the closed set of messages exchanged between the host and frames.
type Message interface {
	Type() MessageType
	isMessage()
}

// StartAutofill is the inbound command carrying the raw user profile.
type StartAutofill struct {
	Data json.RawMessage `json:"data"`
}

// ScanComplete is emitted once per run after the scan phase.
type ScanComplete struct {
	Total  int          `json:"total"`
	Fields []FieldBrief `json:"fields"`
}

// FieldFilled is emitted for every successfully filled field.
type FieldFilled struct {
	Label    string `json:"label"`
	Progress int    `json:"progress"`
}

// AutofillTotal is the terminal summary of a run. Interrupted marks the summary of a
// run that was cancelled before it finished, e.g. because a restart replaced it.
type AutofillTotal struct {
	Total       int      `json:"total"`
	Filled      int      `json:"filled"`
	Labels      []string `json:"labels"`
	Interrupted bool     `json:"interrupted,omitempty"`
}

func (StartAutofill) Type() MessageType { return MessageStartAutofill }
func (ScanComplete) Type() MessageType  { return MessageScanComplete }
func (FieldFilled) Type() MessageType   { return MessageFieldFilled }
func (AutofillTotal) Type() MessageType { return MessageAutofillTotal }

func (StartAutofill) isMessage() {}
func (ScanComplete) isMessage()  {}
func (FieldFilled) isMessage()   {}
func (AutofillTotal) isMessage() {}

// Summary converts the terminal message into a FillSummary.
func (m AutofillTotal) Summary() FillSummary {
	return FillSummary{Total: m.Total, Filled: m.Filled, Labels: m.Labels}
}

// EncodeMessage renders a message in its flat wire form: {"type": ..., <fields>}.
func EncodeMessage(m Message) ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil message")
	}
	t := m.Type()
	switch v := m.(type) {
	case StartAutofill:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			StartAutofill
		}{t, v})
	case ScanComplete:
		if v.Fields == nil {
			v.Fields = []FieldBrief{}
		}
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			ScanComplete
		}{t, v})
	case FieldFilled:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			FieldFilled
		}{t, v})
	case AutofillTotal:
		if v.Labels == nil {
			v.Labels = []string{}
		}
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			AutofillTotal
		}{t, v})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, m)
	}
}

// DecodeMessage parses the flat wire form back into a typed message.
func DecodeMessage(data []byte) (Message, error) {
	t := MessageType(json.Get(data, "type").ToString())
	var (
		msg Message
		err error
	)
	switch t {
	case MessageStartAutofill:
		var v StartAutofill
		err = json.Unmarshal(data, &v)
		msg = v
	case MessageScanComplete:
		var v ScanComplete
		err = json.Unmarshal(data, &v)
		msg = v
	case MessageFieldFilled:
		var v FieldFilled
		err = json.Unmarshal(data, &v)
		msg = v
	case MessageAutofillTotal:
		var v AutofillTotal
		err = json.Unmarshal(data, &v)
		msg = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", t, err)
	}
	return msg, nil
}

// Envelope wraps a message with routing metadata. Frame is the frame the message originated from.
type Envelope struct {
	ID        string
	Frame     FrameID
	Timestamp time.Time
	Message   Message
}

// NewEnvelope stamps a message with a fresh ID and the current time.
func NewEnvelope(frame FrameID, m Message) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Frame:     frame,
		Timestamp: time.Now().UTC(),
		Message:   m,
	}
}

type envelopeWire struct {
	ID        string          `json:"id"`
	Frame     FrameID         `json:"frame"`
	Timestamp time.Time       `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	body, err := EncodeMessage(e.Message)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeWire{ID: e.ID, Frame: e.Frame, Timestamp: e.Timestamp, Message: body})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	msg, err := DecodeMessage(w.Message)
	if err != nil {
		return err
	}
	*e = Envelope{ID: w.ID, Frame: w.Frame, Timestamp: w.Timestamp, Message: msg}
	return nil
}
