package types

import (
	"context"
	"errors"
)

// Store is the persistence contract consumed by a CalDAV/CardDAV host
// server. Every method runs inside exactly one transaction, opened and
// closed by the implementation; on error the transaction is rolled back in
// full and no partial state is ever visible to later calls.
type Store interface {
	// CreateCollection creates a collection at path. It fails with
	// ErrConflict if the path exists and with ErrInvalidPath if the parent
	// is missing and implicit parent creation is disabled.
	CreateCollection(ctx context.Context, path, kind string, props map[string]string) (*Collection, error)

	// GetCollection returns the collection at path, or ErrNotFound.
	GetCollection(ctx context.Context, path string) (*Collection, error)

	// ListCollections returns the direct child collections of parentPath.
	// The root is addressed by "".
	ListCollections(ctx context.Context, parentPath string) ([]*Collection, error)

	// SetProperties replaces the collection's property bag and advances its
	// revision.
	SetProperties(ctx context.Context, path string, props map[string]string) (*Collection, error)

	// DeleteCollection removes the collection at path, its descendants, and
	// all owned items, logging a deleted event for every removed item.
	// Derived collections generated from path are removed the same way.
	DeleteCollection(ctx context.Context, path string) error

	// ListItems returns item metadata for the collection at path, without
	// content.
	ListItems(ctx context.Context, path string) ([]ItemInfo, error)

	// GetItem returns the named item with content, or ErrNotFound.
	GetItem(ctx context.Context, path, name string) (*Item, error)

	// PutItem creates or replaces the named item. A non-empty expectedETag
	// must match the stored fingerprint or the write fails with
	// ErrPreconditionFailed. Writes to a derived collection fail with
	// ErrDerivedCollection.
	PutItem(ctx context.Context, path, name string, content []byte, expectedETag string) (*Item, error)

	// DeleteItem removes the named item, with the same precondition
	// semantics as PutItem.
	DeleteItem(ctx context.Context, path, name, expectedETag string) error

	// MoveItem relocates an item to another collection or name in one
	// transaction, logging a deleted event at the source and a created or
	// updated event at the destination. The content must be valid for the
	// destination collection's kind. Moving onto itself is a no-op.
	MoveItem(ctx context.Context, fromPath, fromName, toPath, toName string) (*Item, error)

	// SyncToken returns the collection's current sync token. An empty
	// collection with no history reports BaselineToken.
	SyncToken(ctx context.Context, path string) (int64, error)

	// ChangesSince returns the events after token in revision order,
	// together with the current token. BaselineToken yields the full
	// current state as synthetic created events.
	ChangesSince(ctx context.Context, path string, token int64) (*Changes, error)

	// EnableBirthdays provisions a derived birthday calendar at derivedPath,
	// generated from the address book at sourcePath, and runs the initial
	// recomputation.
	EnableBirthdays(ctx context.Context, sourcePath, derivedPath string) (*Collection, error)

	// DisableBirthdays removes the derived birthday calendar generated from
	// sourcePath.
	DisableBirthdays(ctx context.Context, sourcePath string) error

	// Close releases the underlying database handle. After Close, all
	// operations return ErrStoreClosed. Close is idempotent.
	Close() error
}

// Storage error taxonomy. Implementations wrap these sentinels so that
// errors.Is classification works across layers.
var (
	// ErrNotFound reports an absent path or item.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a create on an existing path.
	ErrConflict = errors.New("already exists")
	// ErrPreconditionFailed reports a fingerprint mismatch on a conditional
	// write: someone else changed the item first.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrInvalidPath reports a malformed path or a missing parent.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidItem reports a payload that does not parse as the
	// collection's content type.
	ErrInvalidItem = errors.New("invalid item content")
	// ErrInvalidKind reports an unrecognized collection kind, or an
	// operation that requires a different kind.
	ErrInvalidKind = errors.New("invalid collection kind")
	// ErrDerivedCollection reports a direct write to a collection whose
	// items are managed by a derivation policy.
	ErrDerivedCollection = errors.New("collection is derived")
	// ErrStorageUnavailable reports an unreachable backing store or a
	// transaction aborted for infrastructure reasons.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStoreClosed reports an operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)
