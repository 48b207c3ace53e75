package events

import (
	"encoding/json"
	"fmt"
)

// IntentData is the payload of intent lifecycle events. Client secrets are
// never published.
type IntentData struct {
	IntentID       string `json:"intentId"`
	Status         string `json:"status"`
	State          string `json:"state"`
	RequiresAction bool   `json:"requiresAction,omitempty"`
	Attach         string `json:"attach,omitempty"`
}

// NewIntentEvent builds an envelope for an intent lifecycle event.
func NewIntentEvent(eventType string, data IntentData) Envelope {
	return Envelope{
		EventType:    eventType,
		EventVersion: "v1",
		AggregateID:  data.IntentID,
		Data:         data,
	}
}

// DecodeIntentEvent parses a message value produced by Producer. The second
// return value is false when the envelope is valid JSON but not an intent event.
func DecodeIntentEvent(value []byte) (Envelope, IntentData, bool, error) {
	var raw struct {
		Envelope
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(value, &raw); err != nil {
		return Envelope{}, IntentData{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	evt := raw.Envelope
	switch evt.EventType {
	case TypeIntentCreated, TypeIntentConfirmed:
	default:
		return evt, IntentData{}, false, nil
	}
	var data IntentData
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return evt, IntentData{}, false, fmt.Errorf("decode %s data: %w", evt.EventType, err)
		}
	}
	evt.Data = data
	return evt, data, true, nil
}
