package repositories

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidfriends/videosync/internal/models"
)

func TestWritableColumn(t *testing.T) {
	c, err := writableColumn(models.FieldStatus)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.name != "status" {
		t.Fatalf("unexpected column %q", c.name)
	}

	for _, field := range []string{models.FieldCreatedAt, models.FieldLastUpdated, "id", "workspace_owner_id"} {
		if _, err := writableColumn(field); !errors.Is(err, ErrInvalidField) {
			t.Fatalf("expected ErrInvalidField for %s, got %v", field, err)
		}
	}
}

func TestColumnValue(t *testing.T) {
	text, _ := writableColumn(models.FieldTitle)
	number, _ := writableColumn(models.FieldDuration)
	when, _ := writableColumn(models.FieldPublicationDate)

	cases := []struct {
		name    string
		col     column
		in      any
		want    any
		wantErr bool
	}{
		{"null", text, nil, nil, false},
		{"text", text, "Intro", "Intro", false},
		{"text rejects number", text, int64(1), nil, true},
		{"int64", number, int64(90), int64(90), false},
		{"integral float", number, float64(90), int64(90), false},
		{"fractional float", number, 1.5, nil, true},
		{"int rejects text", number, "90", nil, true},
		{"date", when, "2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"timestamp", when, "2024-05-01T10:00:00+02:00", time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), false},
		{"bad timestamp", when, "soon", nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := columnValue(tc.col, tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidField) {
					t.Fatalf("expected ErrInvalidField, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if wantTime, ok := tc.want.(time.Time); ok {
				if gotTime, ok := got.(time.Time); !ok || !gotTime.Equal(wantTime) {
					t.Fatalf("got %v want %v", got, tc.want)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("got %#v want %#v", got, tc.want)
			}
		})
	}
}

func TestScannedRowRecordCarriesFullFieldSet(t *testing.T) {
	row := newScannedRow()
	row.id = "v-1"
	title := "Intro"
	updated := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	*(row.values[0].(**string)) = &title
	*(row.values[len(videoColumns)-1].(**time.Time)) = &updated

	rec := row.record()

	if rec.Key != "v-1" {
		t.Fatalf("unexpected key %q", rec.Key)
	}
	if len(rec.Fields) != len(videoColumns) {
		t.Fatalf("expected %d fields, got %d", len(videoColumns), len(rec.Fields))
	}
	if v, _ := rec.Fields.Get(models.FieldTitle); v != "Intro" {
		t.Fatalf("unexpected title %v", v)
	}
	if v, ok := rec.Fields.Get(models.FieldDescription); !ok || v != nil {
		t.Fatalf("expected nil description present, got %v %v", v, ok)
	}
	if !rec.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected updated at %v", rec.UpdatedAt)
	}
	if v, _ := rec.Fields.Get(models.FieldLastUpdated); v != "2024-05-01T08:00:00Z" {
		t.Fatalf("unexpected last_updated %v", v)
	}
}

func TestMapPgError(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"42501", ErrPermissionDenied},
		{"23505", ErrConflict},
		{"23514", ErrConstraintViolation},
		{"23503", ErrConstraintViolation},
	}
	for _, tc := range cases {
		err := mapPgError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code, Message: "boom"}))
		if !errors.Is(err, tc.want) {
			t.Errorf("code %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}

	plain := errors.New("network")
	if got := mapPgError(plain); got != plain {
		t.Fatalf("expected passthrough, got %v", got)
	}
}
