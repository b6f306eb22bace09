package types

import "errors"

// Config holds driver selection and parameters for store.Open.
type Config struct {
	// Driver selects the backing SQL engine.
	Driver string `json:"driver" yaml:"driver"`
	// DSN is the connection string: a file path or ":memory:" for sqlite,
	// a connection URL for postgres.
	DSN string `json:"dsn" yaml:"dsn"`
	// CreateParents enables implicit creation of missing ancestor
	// collections on CreateCollection. When false, creating a collection
	// under a missing parent fails with ErrInvalidPath.
	CreateParents bool `json:"create_parents" yaml:"create_parents"`
	// LogQueries enables debug logging of executed statements.
	LogQueries bool `json:"log_queries" yaml:"log_queries"`
}

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config validation errors.
var (
	ErrDriverEmpty   = errors.New("driver must not be empty")
	ErrDriverUnknown = errors.New("unknown driver")
	ErrDSNEmpty      = errors.New("dsn must not be empty")
)

// knownDrivers lists the drivers that Validate accepts.
var knownDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Driver == "" {
		return ErrDriverEmpty
	}
	if !knownDrivers[c.Driver] {
		return ErrDriverUnknown
	}
	if c.DSN == "" {
		return ErrDSNEmpty
	}
	return nil
}
