package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
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

	// Parsed content
	InspectionMessage *InspectionMessage
}

// InspectionMessage is the envelope published by provider adapters on the
// ingestion topic. One message carries a batch of mapped records from a
// single provider pull.
type InspectionMessage struct {
	Provider string                       `json:"provider"`
	Region   string                       `json:"region,omitempty"`
	PulledAt time.Time                    `json:"pulled_at,omitempty"`
	Records  []models.RawInspectionRecord `json:"records"`
}

// ParseInspectionMessage parses the message value as an inspection batch.
func (m *IncomingMessage) ParseInspectionMessage() error {
	var msg InspectionMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	if msg.Provider == "" {
		msg.Provider = m.Headers["provider"]
	}
	if msg.Provider == "" {
		return fmt.Errorf("inspection message missing provider")
	}
	m.InspectionMessage = &msg
	return nil
}

// GetProvider returns the provider label for this message
func (m *IncomingMessage) GetProvider() string {
	if m.InspectionMessage != nil {
		return m.InspectionMessage.Provider
	}
	return m.Headers["provider"]
}

// GetRegion returns the jurisdiction label for this message
func (m *IncomingMessage) GetRegion() string {
	if m.InspectionMessage != nil && m.InspectionMessage.Region != "" {
		return m.InspectionMessage.Region
	}
	return m.Headers["region"]
}

// GetRecords returns the batch of mapped records, each stamped with the
// envelope's provider when the record itself omits one.
func (m *IncomingMessage) GetRecords() []models.RawInspectionRecord {
	if m.InspectionMessage == nil {
		return nil
	}
	records := m.InspectionMessage.Records
	for i := range records {
		if records[i].Provider == "" {
			records[i].Provider = m.InspectionMessage.Provider
		}
	}
	return records
}
