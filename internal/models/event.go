package models

import "encoding/json"

// Event type constants prevent typos in event names.
const (
	EventDocumentCreated     = "document_created"
	EventDocumentUpdated     = "document_updated"
	EventDocumentDeleted     = "document_deleted"
	EventNotificationCreated = "notification_created"
)

// Event is the envelope pushed over Redis pub/sub and websockets.
type Event struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection,omitempty"`
	ID         string          `json:"id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event with payload marshaled to JSON.
func NewEvent(eventType, collection, id string, payload any) (Event, error) {
	evt := Event{Type: eventType, Collection: collection, ID: id}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		evt.Payload = b
	}
	return evt, nil
}
