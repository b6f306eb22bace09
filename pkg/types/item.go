package types

import "time"

// Item is a single stored object (event or contact) inside a collection.
// Content is the raw calendar/contact payload; ETag is a fingerprint derived
// deterministically from Content and is recomputed on every content change.
type Item struct {
	ID           string // UUID v7, generated on creation.
	CollectionID string
	Name         string // Item name within the collection, e.g. "c1.vcf".
	Content      []byte
	ETag         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ItemInfo is item metadata without content, for listing efficiency.
type ItemInfo struct {
	Name     string
	ETag     string
	Modified time.Time
}
