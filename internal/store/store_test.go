package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

// setupStore opens a Store over a fresh SQLite file, closed via t.Cleanup.
func setupStore(t *testing.T) *Store {
	t.Helper()
	config := types.Config{
		Driver: types.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "almanac.db"),
	}
	s, err := Open(config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// vcardFixture builds a minimal vCard payload. bday may be empty to omit
// the BDAY property.
func vcardFixture(uid, fn, bday string) []byte {
	lines := []string{
		"BEGIN:VCARD",
		"VERSION:4.0",
		"UID:" + uid,
		"FN:" + fn,
	}
	if bday != "" {
		lines = append(lines, "BDAY:"+bday)
	}
	lines = append(lines, "END:VCARD", "")
	return []byte(strings.Join(lines, "\r\n"))
}

// icalFixture builds a minimal single-event calendar payload.
func icalFixture(uid, summary string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//fixture//EN",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240102T100000Z",
		"SUMMARY:" + summary,
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "almanac.db")

	s, err := Open(types.Config{Driver: types.DriverSQLite, DSN: dbPath}, nil)
	require.NoError(t, err)
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file not created")
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  types.Config
		wantErr error
	}{
		{"empty driver", types.Config{DSN: "x"}, types.ErrDriverEmpty},
		{"unknown driver", types.Config{Driver: "oracle", DSN: "x"}, types.ErrDriverUnknown},
		{"empty dsn", types.Config{Driver: types.DriverSQLite}, types.ErrDSNEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.config, nil)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSqlitePragmaDSN(t *testing.T) {
	require.Equal(t,
		"almanac.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		sqlitePragmaDSN("almanac.db"))
	require.Equal(t,
		"almanac.db?mode=ro&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		sqlitePragmaDSN("almanac.db?mode=ro"))
}

func TestClose_Idempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestClosedStore(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, err := s.GetCollection(ctx, "calendars")
	require.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = s.PutItem(ctx, "calendars", "a.ics", icalFixture("e1", "Standup"), "")
	require.ErrorIs(t, err, types.ErrStoreClosed)
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))

	wrapped := fmt.Errorf("getting collection: %w", types.ErrNotFound)
	require.Equal(t, wrapped, classify(wrapped))

	raw := errors.New("disk I/O error")
	require.ErrorIs(t, classify(raw), types.ErrStorageUnavailable)
}
