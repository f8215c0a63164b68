package changefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vidfriends/videosync/internal/models"
	"github.com/vidfriends/videosync/internal/records"
)

func snapshot(key, status string) *models.Record {
	return &models.Record{Key: key, Fields: models.Fields{
		{Name: models.FieldTitle, Value: "Video " + key},
		{Name: models.FieldStatus, Value: status},
	}}
}

func TestApply_InsertUpdateDelete(t *testing.T) {
	s := records.NewStore()

	assert.True(t, Apply(s, models.ChangeEvent{Kind: models.EventInserted, Record: snapshot("a", "draft")}))
	assert.True(t, Apply(s, models.ChangeEvent{Kind: models.EventInserted, Record: snapshot("b", "draft")}))
	assert.Equal(t, []string{"b", "a"}, s.Keys())

	assert.True(t, Apply(s, models.ChangeEvent{Kind: models.EventUpdated, Record: snapshot("a", "published")}))
	rec, _ := s.Get("a")
	v, _ := rec.Fields.Get(models.FieldStatus)
	assert.Equal(t, "published", v)
	assert.Equal(t, []string{"b", "a"}, s.Keys(), "updates keep position")

	assert.True(t, Apply(s, models.ChangeEvent{Kind: models.EventDeleted, Key: "b"}))
	assert.Equal(t, []string{"a"}, s.Keys())
}

func TestApply_UpdateOverwritesOptimisticFields(t *testing.T) {
	s := records.NewStore()
	s.ReplaceAll([]models.Record{*snapshot("a", "draft")})
	s.Patch("a", models.Fields{{Name: models.FieldStatus, Value: "optimistic"}})

	Apply(s, models.ChangeEvent{Kind: models.EventUpdated, Record: snapshot("a", "review")})

	rec, _ := s.Get("a")
	v, _ := rec.Fields.Get(models.FieldStatus)
	assert.Equal(t, "review", v)
}

func TestApply_DuplicateDeliveryIsIdempotent(t *testing.T) {
	s := records.NewStore()
	s.ReplaceAll([]models.Record{*snapshot("a", "draft"), *snapshot("b", "draft")})
	update := models.ChangeEvent{Kind: models.EventUpdated, Record: snapshot("a", "published")}

	Apply(s, update)
	once := s.Snapshot()

	assert.False(t, Apply(s, update))
	assert.Equal(t, once, s.Snapshot())

	assert.True(t, Apply(s, models.ChangeEvent{Kind: models.EventDeleted, Key: "b"}))
	assert.False(t, Apply(s, models.ChangeEvent{Kind: models.EventDeleted, Key: "b"}))
}

func TestApply_IgnoresMalformedEvents(t *testing.T) {
	s := records.NewStore()

	assert.False(t, Apply(s, models.ChangeEvent{Kind: models.EventUpdated}))
	assert.False(t, Apply(s, models.ChangeEvent{Kind: models.EventDeleted}))
	assert.False(t, Apply(s, models.ChangeEvent{Kind: "truncated", Key: "a"}))
	assert.Equal(t, 0, s.Len())
}
