// JSONL snapshot export and import. A snapshot directory holds
// collections.jsonl, items.jsonl, and birthdays.jsonl; loading replays the
// records through the public Store methods so revision history and derived
// calendars are rebuilt rather than copied.
package store

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

const (
	collectionsFile = "collections.jsonl"
	itemsFile       = "items.jsonl"
	birthdaysFile   = "birthdays.jsonl"
)

// collectionRecord is one line of collections.jsonl.
type collectionRecord struct {
	Path       string            `json:"path"`
	Kind       string            `json:"kind"`
	Properties map[string]string `json:"properties,omitempty"`
}

// itemRecord is one line of items.jsonl. Content is iCalendar or vCard
// text, stored as a JSON string.
type itemRecord struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

// birthdayRecord is one line of birthdays.jsonl.
type birthdayRecord struct {
	Source  string `json:"source"`
	Derived string `json:"derived"`
}

// Dump writes a snapshot of every collection and item to dir. Derived
// collections and their items are not exported; the birthday records carry
// enough to regenerate them on load.
func (s *Store) Dump(ctx context.Context, dir string) error {
	var collections, items, birthdays []json.RawMessage

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		all, err := s.allCollectionsTx(tx)
		if err != nil {
			return err
		}
		links, err := s.allLinksTx(tx)
		if err != nil {
			return err
		}
		derivedIDs := make(map[string]bool, len(links))
		for _, link := range links {
			derivedIDs[link.DerivedID] = true
		}
		byID := make(map[string]string, len(all))
		for _, c := range all {
			byID[c.ID] = c.Path
		}

		for _, c := range all {
			if derivedIDs[c.ID] {
				continue
			}
			rec, err := json.Marshal(collectionRecord{Path: c.Path, Kind: c.Kind, Properties: c.Properties})
			if err != nil {
				return fmt.Errorf("marshaling collection %q: %w", c.Path, err)
			}
			collections = append(collections, rec)

			collectionItems, err := s.listItemsTx(tx, c.ID)
			if err != nil {
				return err
			}
			for _, item := range collectionItems {
				rec, err := json.Marshal(itemRecord{Collection: c.Path, Name: item.Name, Content: string(item.Content)})
				if err != nil {
					return fmt.Errorf("marshaling item %q: %w", item.Name, err)
				}
				items = append(items, rec)
			}
		}

		for _, link := range links {
			if link.Policy != birthdayPolicyID {
				continue
			}
			rec, err := json.Marshal(birthdayRecord{Source: byID[link.SourceID], Derived: byID[link.DerivedID]})
			if err != nil {
				return fmt.Errorf("marshaling birthday link: %w", err)
			}
			birthdays = append(birthdays, rec)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, collectionsFile), collections); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, itemsFile), items); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, birthdaysFile), birthdays); err != nil {
		return err
	}
	s.logger.Info("snapshot written", "dir", dir,
		"collections", len(collections), "items", len(items))
	return nil
}

// Load replays a snapshot directory into the store. Collections load in
// path order so parents precede children; malformed lines are skipped.
func (s *Store) Load(ctx context.Context, dir string) error {
	collections, err := readJSONL(filepath.Join(dir, collectionsFile))
	if err != nil {
		return err
	}
	for _, raw := range collections {
		var rec collectionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if _, err := s.CreateCollection(ctx, rec.Path, rec.Kind, rec.Properties); err != nil {
			return fmt.Errorf("restoring collection %q: %w", rec.Path, err)
		}
	}

	items, err := readJSONL(filepath.Join(dir, itemsFile))
	if err != nil {
		return err
	}
	for _, raw := range items {
		var rec itemRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if _, err := s.PutItem(ctx, rec.Collection, rec.Name, []byte(rec.Content), ""); err != nil {
			return fmt.Errorf("restoring item %q in %q: %w", rec.Name, rec.Collection, err)
		}
	}

	birthdays, err := readJSONL(filepath.Join(dir, birthdaysFile))
	if err != nil {
		return err
	}
	for _, raw := range birthdays {
		var rec birthdayRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if _, err := s.EnableBirthdays(ctx, rec.Source, rec.Derived); err != nil {
			return fmt.Errorf("restoring birthday calendar for %q: %w", rec.Source, err)
		}
	}
	return nil
}

// allCollectionsTx returns every collection ordered by path, parents before
// children.
func (s *Store) allCollectionsTx(tx *sql.Tx) ([]*types.Collection, error) {
	query := s.q("SELECT " + collectionColumns + " FROM collections ORDER BY path ASC")
	s.logQuery(query)
	rows, err := tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
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

// allLinksTx returns every derivation link.
func (s *Store) allLinksTx(tx *sql.Tx) ([]derivedLink, error) {
	query := s.q("SELECT derived_id, source_id, policy FROM derived_links")
	s.logQuery(query)
	rows, err := tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing derivation links: %w", err)
	}
	defer rows.Close()

	var links []derivedLink
	for rows.Next() {
		var link derivedLink
		if err := rows.Scan(&link.DerivedID, &link.SourceID, &link.Policy); err != nil {
			return nil, fmt.Errorf("scanning derivation link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating derivation links: %w", err)
	}
	return links, nil
}

// readJSONL reads a JSONL file, returning each non-empty valid JSON line.
// Malformed lines are skipped so a partially damaged snapshot still loads
// what it can.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to path using the temp-file, fsync,
// rename sequence.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
