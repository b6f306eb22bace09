// Package types defines the Store interface, entity types, and standard
// error types for the almanac persistence engine.
package types
