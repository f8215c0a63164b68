package repositories

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vidfriends/videosync/internal/models"
)

type columnKind int

const (
	textColumn columnKind = iota
	intColumn
	timeColumn
)

type column struct {
	field string
	name  string
	kind  columnKind
}

// videoColumns lists the selectable columns in record field order.
var videoColumns = []column{
	{models.FieldTitle, "title", textColumn},
	{models.FieldStatus, "status", textColumn},
	{models.FieldStorageLocation, "storage_location", textColumn},
	{models.FieldPublicationDate, "publication_date", timeColumn},
	{models.FieldResponsiblePerson, "responsible_person", textColumn},
	{models.FieldInspirationSource, "inspiration_source", textColumn},
	{models.FieldDescription, "description", textColumn},
	{models.FieldDuration, "duration", intColumn},
	{models.FieldFileSize, "file_size", intColumn},
	{models.FieldFormat, "format", textColumn},
	{models.FieldThumbnailURL, "thumbnail_url", textColumn},
	{models.FieldCreatedAt, "created_at", timeColumn},
	{models.FieldLastUpdated, "updated_at", timeColumn},
}

var readOnlyFields = map[string]struct{}{
	models.FieldCreatedAt:   {},
	models.FieldLastUpdated: {},
}

var selectColumns = func() string {
	names := []string{"id", "workspace_owner_id"}
	for _, c := range videoColumns {
		names = append(names, c.name)
	}
	return strings.Join(names, ", ")
}()

func writableColumn(field string) (column, error) {
	if _, ok := readOnlyFields[field]; ok {
		return column{}, fmt.Errorf("%w: %s is read-only", ErrInvalidField, field)
	}
	for _, c := range videoColumns {
		if c.field == field {
			return c, nil
		}
	}
	return column{}, fmt.Errorf("%w: unknown field %q", ErrInvalidField, field)
}

// columnValue converts a decoded field value into the parameter for c.
func columnValue(c column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch c.kind {
	case textColumn:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects text, got %T", ErrInvalidField, c.field, value)
		}
		return s, nil
	case intColumn:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("%w: %s expects an integer, got %v", ErrInvalidField, c.field, v)
			}
			return int64(v), nil
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects an integer: %v", ErrInvalidField, c.field, err)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("%w: %s expects an integer, got %T", ErrInvalidField, c.field, value)
		}
	case timeColumn:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a timestamp, got %T", ErrInvalidField, c.field, value)
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%w: %s has unparseable timestamp %q", ErrInvalidField, c.field, s)
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidField, c.field)
}

// scannedRow holds nullable destinations for one videos row.
type scannedRow struct {
	id      string
	ownerID string
	values  []any
}

func newScannedRow() *scannedRow {
	row := &scannedRow{values: make([]any, len(videoColumns))}
	for i, c := range videoColumns {
		switch c.kind {
		case textColumn:
			row.values[i] = new(*string)
		case intColumn:
			row.values[i] = new(*int64)
		case timeColumn:
			row.values[i] = new(*time.Time)
		}
	}
	return row
}

func (r *scannedRow) dest() []any {
	return append([]any{&r.id, &r.ownerID}, r.values...)
}

// record converts the row into a collection record. NULL columns become nil
// field values so every record carries the full field set.
func (r *scannedRow) record() models.Record {
	rec := models.Record{Key: r.id, Fields: make(models.Fields, 0, len(videoColumns))}
	for i, c := range videoColumns {
		var value any
		switch v := r.values[i].(type) {
		case **string:
			if *v != nil {
				value = **v
			}
		case **int64:
			if *v != nil {
				value = **v
			}
		case **time.Time:
			if *v != nil {
				t := (**v).UTC()
				value = t.Format(time.RFC3339Nano)
				if c.name == "updated_at" {
					rec.UpdatedAt = t
				}
			}
		}
		rec.Fields = append(rec.Fields, models.Field{Name: c.field, Value: value})
	}
	return rec
}
