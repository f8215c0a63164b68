package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFieldsWithKeepsPositionAndAppends(t *testing.T) {
	base := Fields{{Name: FieldTitle, Value: "Intro"}, {Name: FieldStatus, Value: "draft"}}

	got := base.With(Fields{{Name: FieldStatus, Value: "published"}, {Name: FieldFormat, Value: "mp4"}})

	want := Fields{{Name: FieldTitle, Value: "Intro"}, {Name: FieldStatus, Value: "published"}, {Name: FieldFormat, Value: "mp4"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected fields: got %+v want %+v", got, want)
	}
	if v, _ := base.Get(FieldStatus); v != "draft" {
		t.Fatalf("expected receiver to be untouched, got status %v", v)
	}
}

func TestFieldsWithout(t *testing.T) {
	base := Fields{{Name: FieldTitle, Value: "Intro"}, {Name: FieldStatus, Value: "draft"}}

	got := base.Without(FieldTitle, "missing")
	if len(got) != 1 || got[0].Name != FieldStatus {
		t.Fatalf("unexpected fields: %+v", got)
	}
}

func TestFieldsJSONPreservesOrder(t *testing.T) {
	fields := Fields{
		{Name: FieldStatus, Value: "draft"},
		{Name: FieldTitle, Value: "Intro"},
		{Name: FieldFileSize, Value: int64(2048)},
		{Name: FieldDescription, Value: nil},
	}

	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"status":"draft","title":"Intro","file_size":2048,"description":null}` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var decoded Fields
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, fields) {
		t.Fatalf("unexpected decoded fields: %+v", decoded)
	}
}

func TestFieldsUnmarshalNumbers(t *testing.T) {
	var decoded Fields
	if err := json.Unmarshal([]byte(`{"duration":12,"ratio":1.5}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, _ := decoded.Get("duration"); v != int64(12) {
		t.Fatalf("expected int64 duration, got %T %v", v, v)
	}
	if v, _ := decoded.Get("ratio"); v != 1.5 {
		t.Fatalf("expected float ratio, got %T %v", v, v)
	}
}

func TestFieldsUnmarshalRejectsArrays(t *testing.T) {
	var decoded Fields
	if err := json.Unmarshal([]byte(`[1,2]`), &decoded); err == nil {
		t.Fatal("expected error decoding array")
	}
}

func TestRecordDigestTracksFields(t *testing.T) {
	a := Record{Key: "a", Fields: Fields{{Name: FieldStatus, Value: "draft"}}}
	b := a.Clone()
	if a.Digest() != b.Digest() {
		t.Fatal("expected identical digests for clones")
	}

	b.Fields = b.Fields.Set(FieldStatus, "published")
	if a.Digest() == b.Digest() {
		t.Fatal("expected digest to change with fields")
	}

	if CollectionDigest([]Record{a, b}) == CollectionDigest([]Record{b, a}) {
		t.Fatal("expected collection digest to depend on order")
	}
}

func TestChangeEventRecordKey(t *testing.T) {
	ev := ChangeEvent{Kind: EventUpdated, Record: &Record{Key: "a"}}
	if ev.RecordKey() != "a" {
		t.Fatalf("unexpected key %q", ev.RecordKey())
	}
	ev = ChangeEvent{Kind: EventDeleted, Key: "b"}
	if ev.RecordKey() != "b" {
		t.Fatalf("unexpected key %q", ev.RecordKey())
	}
}
