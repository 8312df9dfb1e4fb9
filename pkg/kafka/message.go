package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/aster/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	RawReference *RawReferenceMessage
}

// RawReferenceMessage is one AMC reference published by a source loader.
// Loaders for different registrars publish to the same topic with their
// source set.
type RawReferenceMessage struct {
	Source    string    `json:"source"`
	AmcCode   string    `json:"amc_code"`
	AmcName   string    `json:"amc_name"`
	LoadID    string    `json:"load_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ParseRawReference parses the message value as a raw AMC reference
func (m *IncomingMessage) ParseRawReference() error {
	var msg RawReferenceMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	m.RawReference = &msg
	return nil
}

// GetSource returns the source of the reference, falling back to the header
// when the payload omits it.
func (m *IncomingMessage) GetSource() (models.Source, bool) {
	if m.RawReference != nil && m.RawReference.Source != "" {
		return models.ParseSource(m.RawReference.Source)
	}
	return models.ParseSource(m.Headers["source"])
}

// ToRawReference converts the parsed message into a domain reference.
func (m *IncomingMessage) ToRawReference() (models.RawAmcReference, bool) {
	source, ok := m.GetSource()
	if !ok || m.RawReference == nil {
		return models.RawAmcReference{}, false
	}
	return models.RawAmcReference{
		Source:  source,
		AmcCode: m.RawReference.AmcCode,
		AmcName: m.RawReference.AmcName,
	}, true
}
