package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Document is the storage row behind every collection. Body holds the
// JSON object exactly as clients see it, including its "id" field.
// Seq preserves insertion order within a collection.
type Document struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Collection string    `gorm:"size:32;not null;uniqueIndex:idx_documents_collection_id,priority:1" json:"collection"`
	ID         string    `gorm:"size:64;not null;uniqueIndex:idx_documents_collection_id,priority:2" json:"id"`
	Body       string    `gorm:"type:text;not null" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Document) TableName() string {
	return "documents"
}

// Fields is a decoded document body. Numbers decode as json.Number.
type Fields map[string]any

// ID returns the document's "id" field, or "" if it is missing or not a string.
func (f Fields) ID() string {
	id, _ := f["id"].(string)
	return id
}

// DecodeFields parses a JSON object, keeping numbers exact.
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("document body must be a JSON object")
	}
	return f, nil
}

// ToFields converts any JSON-marshalable value into Fields.
func ToFields(v any) (Fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeFields(b)
}

// Decode unmarshals f into dest.
func (f Fields) Decode(dest any) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}
