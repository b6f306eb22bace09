// Revision log: the append-only per-collection change journal and the
// cached current-revision pointer behind sync tokens.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

// metaItemName is the item_name recorded for collection-level events
// (property changes). Entries carrying it keep the journal gap-free but are
// never surfaced as item deltas.
const metaItemName = ""

// nextRevisionTx allocates the next revision number for a collection.
//
// The UPDATE takes the row lock on the collection_state row, so two
// transactions mutating the same collection serialize here and can never
// observe the same "next" revision. The state row is created together with
// the collection; the insert fallback only covers stores predating that
// guarantee.
func (s *Store) nextRevisionTx(tx *sql.Tx, collectionID string) (int64, error) {
	query := s.q("UPDATE collection_state SET current_revision = current_revision + 1 WHERE collection_id = ?")
	s.logQuery(query)
	res, err := tx.Exec(query, collectionID)
	if err != nil {
		return 0, fmt.Errorf("advancing revision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("advancing revision: %w", err)
	}
	if affected == 0 {
		query = s.q("INSERT INTO collection_state (collection_id, current_revision) VALUES (?, ?)")
		s.logQuery(query)
		if _, err := tx.Exec(query, collectionID, types.BaselineToken+1); err != nil {
			return 0, fmt.Errorf("initializing revision state: %w", err)
		}
		return types.BaselineToken + 1, nil
	}

	var revision int64
	query = s.q("SELECT current_revision FROM collection_state WHERE collection_id = ?")
	s.logQuery(query)
	if err := tx.QueryRow(query, collectionID).Scan(&revision); err != nil {
		return 0, fmt.Errorf("reading revision: %w", err)
	}
	return revision, nil
}

// appendHistoryTx records one item-level event and returns the revision
// assigned to it. Must be called exactly once per logical mutation.
func (s *Store) appendHistoryTx(tx *sql.Tx, collectionID, itemName, change string, now time.Time) (int64, error) {
	revision, err := s.nextRevisionTx(tx, collectionID)
	if err != nil {
		return 0, err
	}
	query := s.q("INSERT INTO item_history (history_id, collection_id, item_name, change, revision, recorded_at) VALUES (?, ?, ?, ?, ?, ?)")
	s.logQuery(query)
	_, err = tx.Exec(query, newUUID(), collectionID, itemName, change, revision, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("appending history: %w", err)
	}
	return revision, nil
}

// currentTokenTx reads the cached current revision. A collection with no
// state row reports the baseline token.
func (s *Store) currentTokenTx(tx *sql.Tx, collectionID string) (int64, error) {
	var revision int64
	query := s.q("SELECT current_revision FROM collection_state WHERE collection_id = ?")
	s.logQuery(query)
	err := tx.QueryRow(query, collectionID).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return types.BaselineToken, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading sync token: %w", err)
	}
	return revision, nil
}

// changesSinceTx returns the journal entries after token in revision order.
//
// The baseline token is answered from the live item set instead of a full
// history replay: every live item becomes a synthetic created event at its
// latest recorded revision, which bounds the response by the collection
// size rather than its history length.
func (s *Store) changesSinceTx(tx *sql.Tx, collectionID string, token int64) ([]types.HistoryEntry, error) {
	if token == types.BaselineToken {
		return s.liveStateAsChangesTx(tx, collectionID)
	}

	query := s.q("SELECT item_name, change, revision, recorded_at FROM item_history WHERE collection_id = ? AND revision > ? ORDER BY revision ASC")
	s.logQuery(query)
	rows, err := tx.Query(query, collectionID, token)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		entry, err := hydrateHistoryEntry(rows, collectionID)
		if err != nil {
			return nil, err
		}
		if entry.ItemName == metaItemName {
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}

// liveStateAsChangesTx reconstructs the full current state as synthetic
// created events, ordered by the revision each item last changed at.
func (s *Store) liveStateAsChangesTx(tx *sql.Tx, collectionID string) ([]types.HistoryEntry, error) {
	query := s.q(`SELECT i.name, i.updated_at,
    COALESCE((SELECT MAX(h.revision) FROM item_history h
        WHERE h.collection_id = i.collection_id AND h.item_name = i.name), 0)
FROM items i WHERE i.collection_id = ? ORDER BY 3 ASC, i.name ASC`)
	s.logQuery(query)
	rows, err := tx.Query(query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("querying live state: %w", err)
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		var entry types.HistoryEntry
		var updatedAt string
		if err := rows.Scan(&entry.ItemName, &updatedAt, &entry.Revision); err != nil {
			return nil, fmt.Errorf("scanning live state: %w", err)
		}
		entry.CollectionID = collectionID
		entry.Change = types.ChangeCreated
		entry.RecordedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating live state: %w", err)
	}
	return entries, nil
}

// hydrateHistoryEntry converts a history row into a types.HistoryEntry.
func hydrateHistoryEntry(rows *sql.Rows, collectionID string) (types.HistoryEntry, error) {
	var entry types.HistoryEntry
	var recordedAt string
	if err := rows.Scan(&entry.ItemName, &entry.Change, &entry.Revision, &recordedAt); err != nil {
		return entry, fmt.Errorf("scanning history entry: %w", err)
	}
	entry.CollectionID = collectionID
	var err error
	entry.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return entry, fmt.Errorf("parsing recorded_at: %w", err)
	}
	return entry, nil
}
