// The public Store contract consumed by a host server. Each method opens
// one transaction, runs the full call chain including any cascading
// derivation inside it, and commits or rolls back atomically.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"

	"github.com/mesh-intelligence/almanac/internal/paths"
	"github.com/mesh-intelligence/almanac/pkg/types"
)

// Compile-time interface check.
var _ types.Store = (*Store)(nil)

// CreateCollection creates a collection at path. The parent must already
// exist unless implicit parent creation is enabled in the store config.
func (s *Store) CreateCollection(ctx context.Context, path, kind string, props map[string]string) (*types.Collection, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return nil, err
	}
	if path == paths.Root {
		return nil, fmt.Errorf("cannot create the root: %w", types.ErrInvalidPath)
	}
	if !types.ValidKind(kind) {
		return nil, fmt.Errorf("kind %q: %w", kind, types.ErrInvalidKind)
	}

	var created *types.Collection
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		created, err = s.createCollectionTx(tx, path, kind, props, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("collection created", "path", path, "kind", kind)
	return created, nil
}

// createCollectionTx holds the transactional body of CreateCollection; the
// snapshot loader reuses it.
func (s *Store) createCollectionTx(tx *sql.Tx, path, kind string, props map[string]string, now time.Time) (*types.Collection, error) {
	if _, err := s.getCollectionTx(tx, path); err == nil {
		return nil, fmt.Errorf("collection %q: %w", path, types.ErrConflict)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	parent := paths.Parent(path)
	if parent != paths.Root {
		parentCol, err := s.getCollectionTx(tx, parent)
		switch {
		case err == nil:
			// A derivation target owns its contents entirely; children
			// would dodge the cascade that removes it.
			link, err := s.linkByDerivedTx(tx, parentCol.ID)
			if err != nil {
				return nil, err
			}
			if link != nil {
				return nil, fmt.Errorf("parent %q is managed by policy %s: %w", parent, link.Policy, types.ErrDerivedCollection)
			}
		case errors.Is(err, types.ErrNotFound) && s.createParents:
			if _, err := s.createCollectionTx(tx, parent, types.KindCollection, nil, now); err != nil {
				return nil, err
			}
		case errors.Is(err, types.ErrNotFound):
			return nil, fmt.Errorf("parent of %q does not exist: %w", path, types.ErrInvalidPath)
		default:
			return nil, err
		}
	}
	return s.insertCollectionTx(tx, path, kind, props, now)
}

// GetCollection returns the collection at path with its current revision.
func (s *Store) GetCollection(ctx context.Context, path string) (*types.Collection, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return nil, err
	}
	var collection *types.Collection
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err = s.loadCollectionTx(tx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// ListCollections returns the direct children of parentPath. Listing the
// children of a missing parent is ErrNotFound, except for the root, which
// always exists implicitly.
func (s *Store) ListCollections(ctx context.Context, parentPath string) ([]*types.Collection, error) {
	parentPath, err := paths.Clean(parentPath)
	if err != nil {
		return nil, err
	}
	var collections []*types.Collection
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if parentPath != paths.Root {
			if _, err := s.getCollectionTx(tx, parentPath); err != nil {
				return err
			}
		}
		collections, err = s.listChildrenTx(tx, parentPath)
		if err != nil {
			return err
		}
		for _, c := range collections {
			c.Revision, err = s.currentTokenTx(tx, c.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collections, nil
}

// SetProperties replaces the collection's property bag. The revision
// advances through a collection-level journal entry, so the sync token
// moves without fabricating an item delta.
func (s *Store) SetProperties(ctx context.Context, path string, props map[string]string) (*types.Collection, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return nil, err
	}
	var collection *types.Collection
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err = s.getCollectionTx(tx, path)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := s.updatePropsTx(tx, collection.ID, props, now); err != nil {
			return err
		}
		collection.Revision, err = s.appendHistoryTx(tx, collection.ID, metaItemName, types.ChangeUpdated, now)
		if err != nil {
			return err
		}
		collection.Properties = props
		collection.UpdatedAt = now.UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// DeleteCollection removes the collection, its descendants, their items,
// and any derived collections generated from them, logging every item
// removal.
func (s *Store) DeleteCollection(ctx context.Context, path string) error {
	path, err := paths.Clean(path)
	if err != nil {
		return err
	}
	if path == paths.Root {
		return fmt.Errorf("cannot delete the root: %w", types.ErrInvalidPath)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteCollectionCascadeTx(tx, path, time.Now())
	})
}

// ListItems returns item metadata for the collection at path.
func (s *Store) ListItems(ctx context.Context, path string) ([]types.ItemInfo, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return nil, err
	}
	var infos []types.ItemInfo
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err := s.getCollectionTx(tx, path)
		if err != nil {
			return err
		}
		infos, err = s.listItemInfosTx(tx, collection.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// GetItem returns the named item with content.
func (s *Store) GetItem(ctx context.Context, path, name string) (*types.Item, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return nil, err
	}
	var item *types.Item
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err := s.getCollectionTx(tx, path)
		if err != nil {
			return err
		}
		item, err = s.getItemTx(tx, collection.ID, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// PutItem creates or replaces an item and recomputes any collections
// derived from this one, all in the same transaction.
func (s *Store) PutItem(ctx context.Context, path, name string, content []byte, expectedETag string) (*types.Item, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return nil, err
	}
	if !paths.ValidItemName(name) {
		return nil, fmt.Errorf("item name %q: %w", name, types.ErrInvalidPath)
	}

	var item *types.Item
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err := s.writableCollectionTx(tx, path)
		if err != nil {
			return err
		}
		if err := validateContent(collection.Kind, content); err != nil {
			return err
		}
		now := time.Now()
		item, err = s.putItemLoggedTx(tx, collection, name, content, expectedETag, now)
		if err != nil {
			return err
		}
		return s.recomputeForSourceTx(tx, collection.ID, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("item written", "path", path, "name", name, "etag", item.ETag)
	return item, nil
}

// DeleteItem removes an item with the same precondition and derivation
// semantics as PutItem.
func (s *Store) DeleteItem(ctx context.Context, path, name, expectedETag string) error {
	path, err := paths.Clean(path)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err := s.writableCollectionTx(tx, path)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := s.deleteItemLoggedTx(tx, collection, name, expectedETag, now); err != nil {
			return err
		}
		return s.recomputeForSourceTx(tx, collection.ID, now)
	})
}

// MoveItem relocates an item in a single transaction. The source journal
// records a deleted event and the destination a created or updated one, so
// sync clients on either collection converge without a full resync.
func (s *Store) MoveItem(ctx context.Context, fromPath, fromName, toPath, toName string) (*types.Item, error) {
	fromPath, err := paths.Clean(fromPath)
	if err != nil {
		return nil, err
	}
	toPath, err = paths.Clean(toPath)
	if err != nil {
		return nil, err
	}
	if !paths.ValidItemName(toName) {
		return nil, fmt.Errorf("item name %q: %w", toName, types.ErrInvalidPath)
	}

	var item *types.Item
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		source, err := s.writableCollectionTx(tx, fromPath)
		if err != nil {
			return err
		}
		target := source
		if toPath != fromPath {
			target, err = s.writableCollectionTx(tx, toPath)
			if err != nil {
				return err
			}
		}

		item, err = s.getItemTx(tx, source.ID, fromName)
		if err != nil {
			return err
		}
		if target.ID == source.ID && toName == fromName {
			return nil
		}
		if err := validateContent(target.Kind, item.Content); err != nil {
			return err
		}

		now := time.Now()
		if err := s.deleteItemLoggedTx(tx, source, fromName, "", now); err != nil {
			return err
		}
		item, err = s.putItemLoggedTx(tx, target, toName, item.Content, "", now)
		if err != nil {
			return err
		}
		if err := s.recomputeForSourceTx(tx, source.ID, now); err != nil {
			return err
		}
		if target.ID != source.ID {
			return s.recomputeForSourceTx(tx, target.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("item moved", "from", fromPath+"/"+fromName, "to", toPath+"/"+toName)
	return item, nil
}

// SyncToken returns the collection's current sync token.
func (s *Store) SyncToken(ctx context.Context, path string) (int64, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return 0, err
	}
	var token int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err := s.getCollectionTx(tx, path)
		if err != nil {
			return err
		}
		token, err = s.currentTokenTx(tx, collection.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return token, nil
}

// ChangesSince returns the item events after token together with the
// current token. A token the collection has never issued is ErrNotFound,
// telling the client to resync from the baseline.
func (s *Store) ChangesSince(ctx context.Context, path string, token int64) (*types.Changes, error) {
	path, err := paths.Clean(path)
	if err != nil {
		return nil, err
	}
	if token < types.BaselineToken {
		return nil, fmt.Errorf("sync token %d: %w", token, types.ErrNotFound)
	}

	var changes *types.Changes
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		collection, err := s.getCollectionTx(tx, path)
		if err != nil {
			return err
		}
		current, err := s.currentTokenTx(tx, collection.ID)
		if err != nil {
			return err
		}
		if token > current {
			return fmt.Errorf("sync token %d: %w", token, types.ErrNotFound)
		}
		entries, err := s.changesSinceTx(tx, collection.ID, token)
		if err != nil {
			return err
		}
		changes = &types.Changes{Token: current, Entries: entries}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// EnableBirthdays provisions a birthday calendar at derivedPath generated
// from the address book at sourcePath and runs the initial recomputation
// in the same transaction.
func (s *Store) EnableBirthdays(ctx context.Context, sourcePath, derivedPath string) (*types.Collection, error) {
	sourcePath, err := paths.Clean(sourcePath)
	if err != nil {
		return nil, err
	}
	derivedPath, err = paths.Clean(derivedPath)
	if err != nil {
		return nil, err
	}
	if derivedPath == paths.Root {
		return nil, fmt.Errorf("cannot derive into the root: %w", types.ErrInvalidPath)
	}

	var derived *types.Collection
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		source, err := s.getCollectionTx(tx, sourcePath)
		if err != nil {
			return err
		}
		if source.Kind != types.KindAddressBook {
			return fmt.Errorf("%q is not an address book: %w", sourcePath, types.ErrInvalidKind)
		}
		links, err := s.linksBySourceTx(tx, source.ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			if link.Policy == birthdayPolicyID {
				return fmt.Errorf("birthday calendar already enabled for %q: %w", sourcePath, types.ErrConflict)
			}
		}

		now := time.Now()
		props := map[string]string{
			types.PropDisplayName: source.DisplayName() + " birthdays",
		}
		derived, err = s.createCollectionTx(tx, derivedPath, types.KindCalendar, props, now)
		if err != nil {
			return err
		}
		if err := s.insertLinkTx(tx, derived.ID, source.ID, birthdayPolicyID); err != nil {
			return err
		}
		if err := s.recomputeDerivedTx(tx, derivedLink{
			DerivedID: derived.ID,
			SourceID:  source.ID,
			Policy:    birthdayPolicyID,
		}, now); err != nil {
			return err
		}
		derived.Revision, err = s.currentTokenTx(tx, derived.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("birthday calendar enabled", "source", sourcePath, "derived", derivedPath)
	return derived, nil
}

// DisableBirthdays deletes the birthday calendar generated from sourcePath
// along with its link, logging the derived item deletions.
func (s *Store) DisableBirthdays(ctx context.Context, sourcePath string) error {
	sourcePath, err := paths.Clean(sourcePath)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		source, err := s.getCollectionTx(tx, sourcePath)
		if err != nil {
			return err
		}
		links, err := s.linksBySourceTx(tx, source.ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			if link.Policy != birthdayPolicyID {
				continue
			}
			derived, err := s.getCollectionByIDTx(tx, link.DerivedID)
			if err != nil {
				return err
			}
			return s.deleteCollectionCascadeTx(tx, derived.Path, time.Now())
		}
		return fmt.Errorf("no birthday calendar enabled for %q: %w", sourcePath, types.ErrNotFound)
	})
}

// loadCollectionTx fetches a collection row and fills in its current
// revision from collection_state.
func (s *Store) loadCollectionTx(tx *sql.Tx, path string) (*types.Collection, error) {
	collection, err := s.getCollectionTx(tx, path)
	if err != nil {
		return nil, err
	}
	collection.Revision, err = s.currentTokenTx(tx, collection.ID)
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// writableCollectionTx resolves a collection for an external write and
// rejects derivation targets, whose items only the engine may touch.
func (s *Store) writableCollectionTx(tx *sql.Tx, path string) (*types.Collection, error) {
	collection, err := s.getCollectionTx(tx, path)
	if err != nil {
		return nil, err
	}
	link, err := s.linkByDerivedTx(tx, collection.ID)
	if err != nil {
		return nil, err
	}
	if link != nil {
		return nil, fmt.Errorf("collection %q is managed by policy %s: %w", path, link.Policy, types.ErrDerivedCollection)
	}
	return collection, nil
}

// validateContent checks that a payload parses as the collection's content
// type. Plain container collections accept any payload.
func validateContent(kind string, content []byte) error {
	switch kind {
	case types.KindCalendar:
		if _, err := ical.NewDecoder(bytes.NewReader(content)).Decode(); err != nil {
			return fmt.Errorf("parsing calendar payload: %w: %v", types.ErrInvalidItem, err)
		}
	case types.KindAddressBook:
		if _, err := vcard.NewDecoder(bytes.NewReader(content)).Decode(); err != nil {
			return fmt.Errorf("parsing contact payload: %w: %v", types.ErrInvalidItem, err)
		}
	}
	return nil
}
