// Repository helpers for item rows, plus content fingerprinting.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

const itemColumns = "item_id, collection_id, name, content, etag, created_at, updated_at"

// computeETag derives the content fingerprint: the hex sha256 of the raw
// payload. Identical content always yields an identical fingerprint.
func computeETag(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// getItemTx loads the named item with content. Returns ErrNotFound when no
// row exists.
func (s *Store) getItemTx(tx *sql.Tx, collectionID, name string) (*types.Item, error) {
	query := s.q("SELECT " + itemColumns + " FROM items WHERE collection_id = ? AND name = ?")
	s.logQuery(query)
	item, err := hydrateItem(tx.QueryRow(query, collectionID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %q: %w", name, types.ErrNotFound)
		}
		return nil, fmt.Errorf("getting item %q: %w", name, err)
	}
	return item, nil
}

// listItemInfosTx returns item metadata without content, ordered by name.
func (s *Store) listItemInfosTx(tx *sql.Tx, collectionID string) ([]types.ItemInfo, error) {
	query := s.q("SELECT name, etag, updated_at FROM items WHERE collection_id = ? ORDER BY name ASC")
	s.logQuery(query)
	rows, err := tx.Query(query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var infos []types.ItemInfo
	for rows.Next() {
		var info types.ItemInfo
		var updatedAt string
		if err := rows.Scan(&info.Name, &info.ETag, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning item info: %w", err)
		}
		info.Modified, err = time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return infos, nil
}

// listItemsTx returns all items of a collection with content, ordered by
// name. Used by the derivation engine and the snapshot dump.
func (s *Store) listItemsTx(tx *sql.Tx, collectionID string) ([]*types.Item, error) {
	query := s.q("SELECT " + itemColumns + " FROM items WHERE collection_id = ? ORDER BY name ASC")
	s.logQuery(query)
	rows, err := tx.Query(query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []*types.Item
	for rows.Next() {
		item, err := hydrateItem(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// upsertItemTx inserts or replaces the named item row and reports whether a
// new row was created.
func (s *Store) upsertItemTx(tx *sql.Tx, collectionID, name string, content []byte, etag string, now time.Time) (*types.Item, bool, error) {
	nowStr := now.UTC().Format(time.RFC3339Nano)

	existing, err := s.getItemTx(tx, collectionID, name)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, false, err
	}

	if existing != nil {
		query := s.q("UPDATE items SET content = ?, etag = ?, updated_at = ? WHERE collection_id = ? AND name = ?")
		s.logQuery(query)
		if _, err := tx.Exec(query, string(content), etag, nowStr, collectionID, name); err != nil {
			return nil, false, fmt.Errorf("updating item %q: %w", name, err)
		}
		existing.Content = content
		existing.ETag = etag
		existing.UpdatedAt = now.UTC()
		return existing, false, nil
	}

	item := &types.Item{
		ID:           newUUID(),
		CollectionID: collectionID,
		Name:         name,
		Content:      content,
		ETag:         etag,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	query := s.q("INSERT INTO items (" + itemColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	s.logQuery(query)
	if _, err := tx.Exec(query, item.ID, collectionID, name, string(content), etag, nowStr, nowStr); err != nil {
		return nil, false, fmt.Errorf("inserting item %q: %w", name, err)
	}
	return item, true, nil
}

// updateItemIfMatchTx replaces the named item's content only while the
// stored fingerprint still equals expectedETag. The predicate rides on the
// UPDATE itself, so under concurrent writers the row lock re-evaluates it
// and at most one conditional write can succeed. Zero affected rows means
// the item is absent or carries a different fingerprint; both are
// ErrPreconditionFailed.
func (s *Store) updateItemIfMatchTx(tx *sql.Tx, collectionID, name string, content []byte, etag, expectedETag string, now time.Time) (*types.Item, error) {
	query := s.q("UPDATE items SET content = ?, etag = ?, updated_at = ? WHERE collection_id = ? AND name = ? AND etag = ?")
	s.logQuery(query)
	res, err := tx.Exec(query, string(content), etag, now.UTC().Format(time.RFC3339Nano), collectionID, name, expectedETag)
	if err != nil {
		return nil, fmt.Errorf("updating item %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating item %q: %w", name, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("item %q: %w", name, types.ErrPreconditionFailed)
	}
	return s.getItemTx(tx, collectionID, name)
}

// deleteItemRowIfMatchTx removes the named item row only while it still
// carries expectedETag, with the same single-statement semantics as
// updateItemIfMatchTx. Reports whether a row was deleted.
func (s *Store) deleteItemRowIfMatchTx(tx *sql.Tx, collectionID, name, expectedETag string) (bool, error) {
	query := s.q("DELETE FROM items WHERE collection_id = ? AND name = ? AND etag = ?")
	s.logQuery(query)
	res, err := tx.Exec(query, collectionID, name, expectedETag)
	if err != nil {
		return false, fmt.Errorf("deleting item %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item %q: %w", name, err)
	}
	return affected > 0, nil
}

// deleteItemRowTx removes the named item row.
func (s *Store) deleteItemRowTx(tx *sql.Tx, collectionID, name string) error {
	query := s.q("DELETE FROM items WHERE collection_id = ? AND name = ?")
	s.logQuery(query)
	if _, err := tx.Exec(query, collectionID, name); err != nil {
		return fmt.Errorf("deleting item %q: %w", name, err)
	}
	return nil
}

// hydrateItem converts a row into a *types.Item.
func hydrateItem(row rowScanner) (*types.Item, error) {
	var item types.Item
	var content, createdAt, updatedAt string
	if err := row.Scan(&item.ID, &item.CollectionID, &item.Name, &content, &item.ETag, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Content = []byte(content)
	var err error
	item.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	item.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &item, nil
}
