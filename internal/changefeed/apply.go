// Package changefeed subscribes to per-owner push channels and translates
// their deliveries into collection operations.
package changefeed

import "github.com/vidfriends/videosync/internal/models"

// Applier is the subset of the record collection a change event touches.
type Applier interface {
	Upsert(rec models.Record) bool
	Remove(key string) bool
}

// Apply translates ev into a collection operation and reports whether the
// collection changed. Inserted and updated events overwrite the record's
// field set with the server snapshot; duplicate deliveries are no-ops.
func Apply(store Applier, ev models.ChangeEvent) bool {
	switch ev.Kind {
	case models.EventInserted, models.EventUpdated:
		if ev.Record == nil {
			return false
		}
		return store.Upsert(*ev.Record)
	case models.EventDeleted:
		key := ev.RecordKey()
		if key == "" {
			return false
		}
		return store.Remove(key)
	default:
		return false
	}
}
