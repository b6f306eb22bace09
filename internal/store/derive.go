// Derivation engine: keeps a derived collection's item set a pure function
// of its source collection, recomputed inside the transaction of the
// mutation that changed the source.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

// derivationPolicy computes a derived item set from a source collection's
// live items. Policies are pure: the same source items always produce the
// same target set, keyed by derived item name.
type derivationPolicy interface {
	// ID is the policy identifier persisted in derived_links.
	ID() string
	// Derive returns the full target item set. Malformed source items are
	// skipped, not errors; only infrastructure failures abort.
	Derive(items []*types.Item, logger *slog.Logger) (map[string][]byte, error)
}

// policies registers all known derivation policies by identifier.
var policies = map[string]derivationPolicy{
	birthdayPolicyID: birthdayPolicy{},
}

// derivedLink relates a derived collection to the source it is generated
// from. The derived collection's items are wholly owned by the engine.
type derivedLink struct {
	LinkID    string
	DerivedID string
	SourceID  string
	Policy    string
}

// linksBySourceTx returns the links generating from the given source.
func (s *Store) linksBySourceTx(tx *sql.Tx, sourceID string) ([]derivedLink, error) {
	query := s.q("SELECT link_id, derived_id, source_id, policy FROM derived_links WHERE source_id = ? ORDER BY policy ASC")
	s.logQuery(query)
	rows, err := tx.Query(query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("querying derived links: %w", err)
	}
	defer rows.Close()

	var links []derivedLink
	for rows.Next() {
		var link derivedLink
		if err := rows.Scan(&link.LinkID, &link.DerivedID, &link.SourceID, &link.Policy); err != nil {
			return nil, fmt.Errorf("scanning derived link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating derived links: %w", err)
	}
	return links, nil
}

// linkByDerivedTx returns the link whose target is the given collection,
// or nil when the collection is not derived.
func (s *Store) linkByDerivedTx(tx *sql.Tx, derivedID string) (*derivedLink, error) {
	query := s.q("SELECT link_id, derived_id, source_id, policy FROM derived_links WHERE derived_id = ?")
	s.logQuery(query)
	var link derivedLink
	err := tx.QueryRow(query, derivedID).Scan(&link.LinkID, &link.DerivedID, &link.SourceID, &link.Policy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying derived link: %w", err)
	}
	return &link, nil
}

// insertLinkTx records a new derivation relationship.
func (s *Store) insertLinkTx(tx *sql.Tx, derivedID, sourceID, policy string) error {
	query := s.q("INSERT INTO derived_links (link_id, derived_id, source_id, policy) VALUES (?, ?, ?, ?)")
	s.logQuery(query)
	if _, err := tx.Exec(query, newUUID(), derivedID, sourceID, policy); err != nil {
		return fmt.Errorf("inserting derived link: %w", err)
	}
	return nil
}

// deleteLinksForCollectionTx removes all links touching the collection,
// whichever side it is on.
func (s *Store) deleteLinksForCollectionTx(tx *sql.Tx, collectionID string) error {
	query := s.q("DELETE FROM derived_links WHERE derived_id = ? OR source_id = ?")
	s.logQuery(query)
	if _, err := tx.Exec(query, collectionID, collectionID); err != nil {
		return fmt.Errorf("deleting derived links: %w", err)
	}
	return nil
}

// recomputeDerivedTx rebuilds one derived collection from its source's
// current live item set and applies the diff through the logged write path,
// so the derived collection's own journal records exactly the add, update,
// and delete events implied by the change.
func (s *Store) recomputeDerivedTx(tx *sql.Tx, link derivedLink, now time.Time) error {
	policy, ok := policies[link.Policy]
	if !ok {
		return fmt.Errorf("derivation policy %q: %w", link.Policy, types.ErrStorageUnavailable)
	}

	sourceItems, err := s.listItemsTx(tx, link.SourceID)
	if err != nil {
		return err
	}
	target, err := policy.Derive(sourceItems, s.logger)
	if err != nil {
		return err
	}

	derived, err := s.getCollectionByIDTx(tx, link.DerivedID)
	if err != nil {
		return err
	}
	return s.applyDerivedSetTx(tx, derived, target, now)
}

// recomputeForSourceTx recomputes every derived collection generated from
// the given source. Runs inside the transaction of the source mutation
// that triggered it.
func (s *Store) recomputeForSourceTx(tx *sql.Tx, sourceID string, now time.Time) error {
	links, err := s.linksBySourceTx(tx, sourceID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := s.recomputeDerivedTx(tx, link, now); err != nil {
			return err
		}
	}
	return nil
}

// sortedKeys returns the map's keys in ascending order, for deterministic
// write and journal ordering.
func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
