package models

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Field names carried by video records.
const (
	FieldTitle             = "title"
	FieldStatus            = "status"
	FieldStorageLocation   = "storage_location"
	FieldPublicationDate   = "publication_date"
	FieldResponsiblePerson = "responsible_person"
	FieldInspirationSource = "inspiration_source"
	FieldDescription       = "description"
	FieldDuration          = "duration"
	FieldFileSize          = "file_size"
	FieldFormat            = "format"
	FieldThumbnailURL      = "thumbnail_url"
	FieldCreatedAt         = "created_at"
	FieldLastUpdated       = "last_updated"
)

// Record is a single video entry in a workspace collection.
//
// UpdatedAt is informational only; conflicts are resolved by arrival order.
type Record struct {
	Key       string    `json:"key"`
	Fields    Fields    `json:"fields"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the record's field list.
func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// Digest returns a stable fingerprint of the record's key and fields.
func (r Record) Digest() string {
	payload, err := json.Marshal(struct {
		Key    string `json:"key"`
		Fields Fields `json:"fields"`
	}{Key: r.Key, Fields: r.Fields})
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

// CollectionDigest fingerprints an ordered set of records. Order matters.
func CollectionDigest(records []Record) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		return ""
	}
	for _, rec := range records {
		_, _ = h.Write([]byte(rec.Digest()))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// EventKind identifies the kind of change-feed delivery.
type EventKind string

const (
	EventInserted EventKind = "inserted"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
)

// ChangeEvent is a single push-channel delivery for one owner's collection.
// Inserted and updated events carry a full record snapshot; deleted events
// carry only the key.
type ChangeEvent struct {
	Kind    EventKind `json:"kind"`
	OwnerID string    `json:"ownerId,omitempty"`
	Key     string    `json:"key,omitempty"`
	Record  *Record   `json:"record,omitempty"`
}

// RecordKey returns the key the event refers to.
func (e ChangeEvent) RecordKey() string {
	if e.Record != nil && e.Record.Key != "" {
		return e.Record.Key
	}
	return e.Key
}
