// Logged item mutations: the single write path that keeps item rows, the
// revision log, and derived collections consistent within one transaction.
package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

// putItemLoggedTx upserts an item, appends the matching history event, and
// bumps the collection's updated_at. A non-empty expectedETag makes the
// write conditional: the fingerprint comparison runs inside the write
// statement itself rather than as a prior read, so two writers presenting
// the same stale fingerprint cannot both pass under read-committed
// isolation.
func (s *Store) putItemLoggedTx(tx *sql.Tx, collection *types.Collection, name string, content []byte, expectedETag string, now time.Time) (*types.Item, error) {
	var item *types.Item
	created := false
	if expectedETag != "" {
		var err error
		item, err = s.updateItemIfMatchTx(tx, collection.ID, name, content, computeETag(content), expectedETag, now)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		item, created, err = s.upsertItemTx(tx, collection.ID, name, content, computeETag(content), now)
		if err != nil {
			return nil, err
		}
	}

	change := types.ChangeUpdated
	if created {
		change = types.ChangeCreated
	}
	if _, err := s.appendHistoryTx(tx, collection.ID, name, change, now); err != nil {
		return nil, err
	}
	if err := s.touchCollectionTx(tx, collection.ID, now); err != nil {
		return nil, err
	}
	return item, nil
}

// deleteItemLoggedTx removes an item and appends the deleted event, with
// the same conditional-write semantics as putItemLoggedTx.
func (s *Store) deleteItemLoggedTx(tx *sql.Tx, collection *types.Collection, name, expectedETag string, now time.Time) error {
	if expectedETag != "" {
		deleted, err := s.deleteItemRowIfMatchTx(tx, collection.ID, name, expectedETag)
		if err != nil {
			return err
		}
		if !deleted {
			// Absent and mismatched are distinguished only for the error
			// kind; either way this writer lost.
			if _, err := s.getItemTx(tx, collection.ID, name); errors.Is(err, types.ErrNotFound) {
				return err
			}
			return fmt.Errorf("item %q: %w", name, types.ErrPreconditionFailed)
		}
	} else {
		if _, err := s.getItemTx(tx, collection.ID, name); err != nil {
			return err
		}
		if err := s.deleteItemRowTx(tx, collection.ID, name); err != nil {
			return err
		}
	}

	if _, err := s.appendHistoryTx(tx, collection.ID, name, types.ChangeDeleted, now); err != nil {
		return err
	}
	return s.touchCollectionTx(tx, collection.ID, now)
}

// deleteCollectionCascadeTx removes a collection, its descendants, and any
// derived collections generated from them. Every removed item is logged as
// a deleted event in its own collection's journal before the collection
// rows disappear; the journal itself is retained.
func (s *Store) deleteCollectionCascadeTx(tx *sql.Tx, path string, now time.Time) error {
	subtree, err := s.subtreeTx(tx, path)
	if err != nil {
		return err
	}

	// Close over derivation links: a derived calendar may live outside the
	// deleted subtree, and shares its source's fate.
	doomed := subtree
	seen := make(map[string]bool, len(doomed))
	for _, c := range doomed {
		seen[c.ID] = true
	}
	for i := 0; i < len(doomed); i++ {
		links, err := s.linksBySourceTx(tx, doomed[i].ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			if seen[link.DerivedID] {
				continue
			}
			derived, err := s.getCollectionByIDTx(tx, link.DerivedID)
			if err != nil {
				return err
			}
			seen[derived.ID] = true
			doomed = append(doomed, derived)
		}
	}

	// Children before parents so foreign keys never dangle.
	for i := len(doomed) - 1; i >= 0; i-- {
		c := doomed[i]
		items, err := s.listItemInfosTx(tx, c.ID)
		if err != nil {
			return err
		}
		for _, info := range items {
			if err := s.deleteItemRowTx(tx, c.ID, info.Name); err != nil {
				return err
			}
			if _, err := s.appendHistoryTx(tx, c.ID, info.Name, types.ChangeDeleted, now); err != nil {
				return err
			}
		}
		if err := s.deleteLinksForCollectionTx(tx, c.ID); err != nil {
			return err
		}
		if err := s.deleteCollectionRowTx(tx, c.ID); err != nil {
			return err
		}
		s.logger.Info("collection deleted", "path", c.Path, "items", len(items))
	}
	return nil
}

// applyDerivedSetTx diffs the computed target set against the derived
// collection's live items and writes only the differences, so unchanged
// derived items never produce a spurious revision bump.
func (s *Store) applyDerivedSetTx(tx *sql.Tx, derived *types.Collection, target map[string][]byte, now time.Time) error {
	current, err := s.listItemsTx(tx, derived.ID)
	if err != nil {
		return err
	}
	currentByName := make(map[string]*types.Item, len(current))
	for _, item := range current {
		currentByName[item.Name] = item
	}

	for _, name := range sortedKeys(target) {
		content := target[name]
		existing, ok := currentByName[name]
		if ok && bytes.Equal(existing.Content, content) {
			continue
		}
		if _, err := s.putItemLoggedTx(tx, derived, name, content, "", now); err != nil {
			return err
		}
	}
	for _, item := range current {
		if _, ok := target[item.Name]; ok {
			continue
		}
		if err := s.deleteItemLoggedTx(tx, derived, item.Name, "", now); err != nil {
			return err
		}
	}
	return nil
}
