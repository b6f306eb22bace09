package types

import "time"

// Change kinds recorded in the revision log.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// BaselineToken is the sync token of an empty collection with no history.
// A client presenting BaselineToken receives the full current state.
const BaselineToken int64 = 0

// HistoryEntry is an immutable record of one item-level event, numbered by
// the revision assigned to that event. For a given collection, entries are
// totally ordered by Revision with no gaps relative to the collection's
// current revision.
type HistoryEntry struct {
	CollectionID string
	ItemName     string
	Change       string // One of the Change constants.
	Revision     int64
	RecordedAt   time.Time
}

// Changes is an incremental sync response: the events since the presented
// token, in revision order, plus the token describing the state they lead to.
// Applying Entries to a mirror taken at the presented token reproduces the
// live item set at Token.
type Changes struct {
	Token   int64
	Entries []HistoryEntry
}
