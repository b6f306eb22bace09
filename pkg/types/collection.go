package types

import "time"

// Collection kinds. A collection is a calendar, an address book, or a plain
// container node (principal homes, intermediate path segments).
const (
	KindCalendar    = "calendar"
	KindAddressBook = "addressbook"
	KindCollection  = "collection"
)

// validKinds is the set of recognized collection kinds.
var validKinds = map[string]bool{
	KindCalendar:    true,
	KindAddressBook: true,
	KindCollection:  true,
}

// ValidKind reports whether kind is a recognized collection kind.
func ValidKind(kind string) bool {
	return validKinds[kind]
}

// Well-known property keys stored in a collection's property bag.
const (
	PropDisplayName  = "displayname"
	PropColor        = "color"
	PropComponentSet = "supported-component-set"
	PropDescription  = "description"
)

// Collection is a node in the path hierarchy that owns items.
type Collection struct {
	ID         string            // UUID v7, generated on creation.
	Path       string            // Normalized path, e.g. "addressbooks/home".
	Kind       string            // One of the Kind constants.
	Properties map[string]string // Opaque property bag (display name, color, ...).
	Revision   int64             // Current revision; advances on every committed mutation.
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Property returns the property value for key, or "" when unset.
func (c *Collection) Property(key string) string {
	if c.Properties == nil {
		return ""
	}
	return c.Properties[key]
}

// DisplayName returns the display name property, falling back to the last
// path segment when the property is unset.
func (c *Collection) DisplayName() string {
	if name := c.Property(PropDisplayName); name != "" {
		return name
	}
	for i := len(c.Path) - 1; i >= 0; i-- {
		if c.Path[i] == '/' {
			return c.Path[i+1:]
		}
	}
	return c.Path
}
