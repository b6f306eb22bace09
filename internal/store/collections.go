// Repository helpers for collection rows. Every function participates in
// the transaction passed by the caller and never opens or commits one.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/almanac/internal/paths"
	"github.com/mesh-intelligence/almanac/pkg/types"
)

const collectionColumns = "collection_id, path, parent_path, kind, props, created_at, updated_at"

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// getCollectionTx loads the collection at path. Returns ErrNotFound when no
// row exists.
func (s *Store) getCollectionTx(tx *sql.Tx, path string) (*types.Collection, error) {
	query := s.q("SELECT " + collectionColumns + " FROM collections WHERE path = ?")
	s.logQuery(query)
	c, err := hydrateCollection(tx.QueryRow(query, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("collection %q: %w", path, types.ErrNotFound)
		}
		return nil, fmt.Errorf("getting collection %q: %w", path, err)
	}
	return c, nil
}

// getCollectionByIDTx loads a collection by row id.
func (s *Store) getCollectionByIDTx(tx *sql.Tx, id string) (*types.Collection, error) {
	query := s.q("SELECT " + collectionColumns + " FROM collections WHERE collection_id = ?")
	s.logQuery(query)
	c, err := hydrateCollection(tx.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("collection id %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("getting collection %s: %w", id, err)
	}
	return c, nil
}

// insertCollectionTx creates a collection row plus its collection_state row.
// Creating the state row here guarantees later revision allocation always
// finds a row to lock.
func (s *Store) insertCollectionTx(tx *sql.Tx, path, kind string, props map[string]string, now time.Time) (*types.Collection, error) {
	c := &types.Collection{
		ID:         newUUID(),
		Path:       path,
		Kind:       kind,
		Properties: props,
		Revision:   types.BaselineToken,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if c.Properties == nil {
		c.Properties = map[string]string{}
	}

	propsJSON, err := json.Marshal(c.Properties)
	if err != nil {
		return nil, fmt.Errorf("marshaling properties: %w", err)
	}

	query := s.q("INSERT INTO collections (" + collectionColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	s.logQuery(query)
	_, err = tx.Exec(query,
		c.ID, c.Path, paths.Parent(c.Path), c.Kind, string(propsJSON),
		now.UTC().Format(time.RFC3339Nano), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting collection %q: %w", path, err)
	}

	query = s.q("INSERT INTO collection_state (collection_id, current_revision) VALUES (?, ?)")
	s.logQuery(query)
	if _, err := tx.Exec(query, c.ID, types.BaselineToken); err != nil {
		return nil, fmt.Errorf("inserting collection state for %q: %w", path, err)
	}
	return c, nil
}

// listChildrenTx returns the direct child collections of parentPath ordered
// by path.
func (s *Store) listChildrenTx(tx *sql.Tx, parentPath string) ([]*types.Collection, error) {
	query := s.q("SELECT " + collectionColumns + " FROM collections WHERE parent_path = ? ORDER BY path ASC")
	s.logQuery(query)
	rows, err := tx.Query(query, parentPath)
	if err != nil {
		return nil, fmt.Errorf("listing collections under %q: %w", parentPath, err)
	}
	defer rows.Close()

	var result []*types.Collection
	for rows.Next() {
		c, err := hydrateCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating collection: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return result, nil
}

// subtreeTx returns the collection at path and all its descendants, parents
// before children.
func (s *Store) subtreeTx(tx *sql.Tx, path string) ([]*types.Collection, error) {
	root, err := s.getCollectionTx(tx, path)
	if err != nil {
		return nil, err
	}
	query := s.q(`SELECT ` + collectionColumns + ` FROM collections WHERE path LIKE ? ESCAPE '\' ORDER BY path ASC`)
	s.logQuery(query)
	rows, err := tx.Query(query, likeEscape(path)+"/%")
	if err != nil {
		return nil, fmt.Errorf("listing subtree of %q: %w", path, err)
	}
	defer rows.Close()

	result := []*types.Collection{root}
	for rows.Next() {
		c, err := hydrateCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating collection: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subtree: %w", err)
	}
	return result, nil
}

// updatePropsTx replaces the property bag of a collection row.
func (s *Store) updatePropsTx(tx *sql.Tx, id string, props map[string]string, now time.Time) error {
	if props == nil {
		props = map[string]string{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshaling properties: %w", err)
	}
	query := s.q("UPDATE collections SET props = ?, updated_at = ? WHERE collection_id = ?")
	s.logQuery(query)
	if _, err := tx.Exec(query, string(propsJSON), now.UTC().Format(time.RFC3339Nano), id); err != nil {
		return fmt.Errorf("updating properties: %w", err)
	}
	return nil
}

// touchCollectionTx bumps a collection's updated_at.
func (s *Store) touchCollectionTx(tx *sql.Tx, id string, now time.Time) error {
	query := s.q("UPDATE collections SET updated_at = ? WHERE collection_id = ?")
	s.logQuery(query)
	if _, err := tx.Exec(query, now.UTC().Format(time.RFC3339Nano), id); err != nil {
		return fmt.Errorf("touching collection: %w", err)
	}
	return nil
}

// deleteCollectionRowTx removes the collection row and its state row.
// History rows are retained: the journal is append-only.
func (s *Store) deleteCollectionRowTx(tx *sql.Tx, id string) error {
	query := s.q("DELETE FROM collection_state WHERE collection_id = ?")
	s.logQuery(query)
	if _, err := tx.Exec(query, id); err != nil {
		return fmt.Errorf("deleting collection state: %w", err)
	}
	query = s.q("DELETE FROM collections WHERE collection_id = ?")
	s.logQuery(query)
	if _, err := tx.Exec(query, id); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// hydrateCollection converts a row into a *types.Collection.
func hydrateCollection(row rowScanner) (*types.Collection, error) {
	var c types.Collection
	var parentPath, propsJSON, createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Path, &parentPath, &c.Kind, &propsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(propsJSON), &c.Properties); err != nil {
		return nil, fmt.Errorf("parsing properties: %w", err)
	}
	var err error
	c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}
