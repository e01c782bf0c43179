package alert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oshokin/fire-watch/internal/domain/fire"
)

// Kind is the value of the "type" field on the wire.
type Kind string

// Message kinds.
const (
	KindSensorReading         Kind = "sensor_reading"
	KindSearchImageAlert      Kind = "search_image_alert"
	KindFireConfirmed         Kind = "fire_confirmed"
	KindConnectionEstablished Kind = "connection_established"
)

// Default message texts.
const (
	SearchImageText   = "Possible fire detected, capture image"
	FireConfirmedText = "Fire confirmed by visual analysis"
)

// Message is one of SensorReading, SearchImageAlert, FireConfirmed or
// ConnectionEstablished.
type Message interface {
	Kind() Kind
	At() time.Time

	isMessage()
}

// SensorReading is sent to dashboards on every accepted reading.
type SensorReading struct {
	Data      fire.SensorReading
	FireRisk  bool
	Timestamp time.Time
}

// SearchImageAlert asks cameras to capture an image after a risky reading.
type SearchImageAlert struct {
	Data      fire.SensorReading
	Message   string
	Timestamp time.Time
}

// FireConfirmed tells dashboards the vision model saw fire.
type FireConfirmed struct {
	ImageURL   string
	Confidence float64
	Message    string
	Timestamp  time.Time
}

// ConnectionEstablished greets a freshly joined subscriber.
type ConnectionEstablished struct {
	ClientType Group
	Message    string
	Timestamp  time.Time
}

func (SensorReading) Kind() Kind         { return KindSensorReading }
func (SearchImageAlert) Kind() Kind      { return KindSearchImageAlert }
func (FireConfirmed) Kind() Kind         { return KindFireConfirmed }
func (ConnectionEstablished) Kind() Kind { return KindConnectionEstablished }

func (m SensorReading) At() time.Time         { return m.Timestamp }
func (m SearchImageAlert) At() time.Time      { return m.Timestamp }
func (m FireConfirmed) At() time.Time         { return m.Timestamp }
func (m ConnectionEstablished) At() time.Time { return m.Timestamp }

func (SensorReading) isMessage()         {}
func (SearchImageAlert) isMessage()      {}
func (FireConfirmed) isMessage()         {}
func (ConnectionEstablished) isMessage() {}

// NewConnectionEstablished builds the greeting for a group.
func NewConnectionEstablished(group Group, now time.Time) ConnectionEstablished {
	return ConnectionEstablished{
		ClientType: group,
		Message:    fmt.Sprintf("Connected as %s", group),
		Timestamp:  now,
	}
}

// readingPayload is the "data" object of reading-based messages.
type readingPayload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	SmokeLevel  float64 `json:"smoke_level"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

func toReadingPayload(r fire.SensorReading) readingPayload {
	payload := readingPayload{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		SmokeLevel:  r.SmokeLevel,
	}

	if !r.Timestamp.IsZero() {
		payload.Timestamp = r.Timestamp.Format(time.RFC3339Nano)
	}

	return payload
}

// envelope is the wire form shared by all kinds; unused fields are omitted.
type envelope struct {
	Type       Kind            `json:"type"`
	Data       *readingPayload `json:"data,omitempty"`
	FireRisk   *bool           `json:"fire_risk,omitempty"`
	ImageURL   string          `json:"image_url,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	ClientType Group           `json:"client_type,omitempty"`
	Message    string          `json:"message,omitempty"`
	Timestamp  string          `json:"timestamp"`
}

// Encode serializes a message to its JSON wire form.
func Encode(m Message) ([]byte, error) {
	env := envelope{
		Type:      m.Kind(),
		Timestamp: m.At().Format(time.RFC3339Nano),
	}

	switch msg := m.(type) {
	case SensorReading:
		data := toReadingPayload(msg.Data)
		env.Data = &data
		env.FireRisk = &msg.FireRisk
	case SearchImageAlert:
		data := toReadingPayload(msg.Data)
		env.Data = &data
		env.Message = msg.Message
	case FireConfirmed:
		env.ImageURL = msg.ImageURL
		env.Confidence = &msg.Confidence
		env.Message = msg.Message
	case ConnectionEstablished:
		env.ClientType = msg.ClientType
		env.Message = msg.Message
	default:
		return nil, fmt.Errorf("unsupported message %T", m)
	}

	return json.Marshal(env)
}

// Decode parses a wire message back into its typed form.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("decode message timestamp: %w", err)
	}

	switch env.Type {
	case KindSensorReading:
		return SensorReading{
			Data:      fromReadingPayload(env.Data),
			FireRisk:  env.FireRisk != nil && *env.FireRisk,
			Timestamp: ts,
		}, nil
	case KindSearchImageAlert:
		return SearchImageAlert{
			Data:      fromReadingPayload(env.Data),
			Message:   env.Message,
			Timestamp: ts,
		}, nil
	case KindFireConfirmed:
		var confidence float64
		if env.Confidence != nil {
			confidence = *env.Confidence
		}

		return FireConfirmed{
			ImageURL:   env.ImageURL,
			Confidence: confidence,
			Message:    env.Message,
			Timestamp:  ts,
		}, nil
	case KindConnectionEstablished:
		return ConnectionEstablished{
			ClientType: env.ClientType,
			Message:    env.Message,
			Timestamp:  ts,
		}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

func fromReadingPayload(p *readingPayload) fire.SensorReading {
	if p == nil {
		return fire.SensorReading{}
	}

	reading := fire.SensorReading{
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		SmokeLevel:  p.SmokeLevel,
	}

	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
			reading.Timestamp = ts
		}
	}

	return reading
}
