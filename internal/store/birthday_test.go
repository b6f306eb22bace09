package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

func TestParseBirthday(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  birthdate
		ok    bool
	}{
		{"basic form", "19900502", birthdate{1990, 5, 2}, true},
		{"extended form", "1990-05-02", birthdate{1990, 5, 2}, true},
		{"no year basic", "--0502", birthdate{0, 5, 2}, true},
		{"no year extended", "--05-02", birthdate{0, 5, 2}, true},
		{"with time part", "19900502T120000Z", birthdate{1990, 5, 2}, true},
		{"leap day", "--0229", birthdate{0, 2, 29}, true},
		{"empty", "", birthdate{}, false},
		{"free text", "next tuesday", birthdate{}, false},
		{"month out of range", "19901302", birthdate{}, false},
		{"day out of range", "19900500", birthdate{}, false},
		{"truncated", "199005", birthdate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseBirthday(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDerivedItemName(t *testing.T) {
	a := derivedItemName("contact-1")
	b := derivedItemName("contact-1")
	c := derivedItemName("contact-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasSuffix(a, ".ics"))
}

// setupBirthdays creates an address book with one dated and one dateless
// contact, then enables the derived calendar.
func setupBirthdays(t *testing.T, s *Store) (source, derived string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "book", types.KindAddressBook, map[string]string{
		types.PropDisplayName: "Team",
	})
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "book", "ada.vcf", vcardFixture("contact-ada", "Ada Lovelace", "1990-05-02"), "")
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "book", "grace.vcf", vcardFixture("contact-grace", "Grace Hopper", ""), "")
	require.NoError(t, err)

	_, err = s.EnableBirthdays(ctx, "book", "book-birthdays")
	require.NoError(t, err)
	return "book", "book-birthdays"
}

func TestEnableBirthdays(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, derived := setupBirthdays(t, s)

	c, err := s.GetCollection(ctx, derived)
	require.NoError(t, err)
	assert.Equal(t, types.KindCalendar, c.Kind)
	assert.Equal(t, "Team birthdays", c.DisplayName())

	// Only the dated contact produced an event.
	infos, err := s.ListItems(ctx, derived)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, derivedItemName("contact-ada"), infos[0].Name)

	item, err := s.GetItem(ctx, derived, infos[0].Name)
	require.NoError(t, err)
	content := string(item.Content)
	assert.Contains(t, content, "SUMMARY:Ada Lovelace's birthday")
	assert.Contains(t, content, "RRULE:FREQ=YEARLY")
	assert.Contains(t, content, "19900502")
	assert.Contains(t, content, "UID:birthday-contact-ada")

	// The enable counts as one created item on the derived journal.
	token, err := s.SyncToken(ctx, derived)
	require.NoError(t, err)
	assert.Equal(t, int64(1), token)
}

func TestEnableBirthdays_Errors(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	source, _ := setupBirthdays(t, s)

	_, err := s.CreateCollection(ctx, "cal", types.KindCalendar, nil)
	require.NoError(t, err)

	_, err = s.EnableBirthdays(ctx, "cal", "cal-birthdays")
	require.ErrorIs(t, err, types.ErrInvalidKind)
	_, err = s.EnableBirthdays(ctx, source, "again")
	require.ErrorIs(t, err, types.ErrConflict)
	_, err = s.EnableBirthdays(ctx, "missing", "x")
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = s.EnableBirthdays(ctx, source, "")
	require.ErrorIs(t, err, types.ErrInvalidPath)
}

func TestDerivedCollection_ReadOnly(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, derived := setupBirthdays(t, s)

	_, err := s.PutItem(ctx, derived, "extra.ics", icalFixture("e1", "Party"), "")
	require.ErrorIs(t, err, types.ErrDerivedCollection)

	infos, err := s.ListItems(ctx, derived)
	require.NoError(t, err)
	err = s.DeleteItem(ctx, derived, infos[0].Name, "")
	require.ErrorIs(t, err, types.ErrDerivedCollection)

	// Items cannot be moved into or out of the managed calendar.
	_, err = s.CreateCollection(ctx, "cal", types.KindCalendar, nil)
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "Party"), "")
	require.NoError(t, err)
	_, err = s.MoveItem(ctx, "cal", "a.ics", derived, "a.ics")
	require.ErrorIs(t, err, types.ErrDerivedCollection)
	_, err = s.MoveItem(ctx, derived, infos[0].Name, "cal", "b.ics")
	require.ErrorIs(t, err, types.ErrDerivedCollection)

	// No child collections either; the cascade on disable must be able to
	// account for everything under the managed path.
	_, err = s.CreateCollection(ctx, derived+"/sub", types.KindCollection, nil)
	require.ErrorIs(t, err, types.ErrDerivedCollection)
}

func TestBirthdays_FollowSourceChanges(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	source, derived := setupBirthdays(t, s)

	mark, err := s.SyncToken(ctx, derived)
	require.NoError(t, err)

	// Rewriting a contact without touching its birthday leaves the derived
	// calendar alone.
	_, err = s.PutItem(ctx, source, "grace.vcf", vcardFixture("contact-grace", "Grace B. Hopper", ""), "")
	require.NoError(t, err)
	unchanged, err := s.SyncToken(ctx, derived)
	require.NoError(t, err)
	assert.Equal(t, mark, unchanged)

	// Moving the birthday produces exactly one update event.
	_, err = s.PutItem(ctx, source, "ada.vcf", vcardFixture("contact-ada", "Ada Lovelace", "1990-05-03"), "")
	require.NoError(t, err)
	changes, err := s.ChangesSince(ctx, derived, mark)
	require.NoError(t, err)
	require.Len(t, changes.Entries, 1)
	assert.Equal(t, types.ChangeUpdated, changes.Entries[0].Change)
	assert.Equal(t, derivedItemName("contact-ada"), changes.Entries[0].ItemName)
	assert.Equal(t, mark+1, changes.Token)

	// A birthday appearing on a second contact adds an event.
	_, err = s.PutItem(ctx, source, "grace.vcf", vcardFixture("contact-grace", "Grace Hopper", "--1209"), "")
	require.NoError(t, err)
	infos, err := s.ListItems(ctx, derived)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	// Deleting the contact removes its event.
	require.NoError(t, s.DeleteItem(ctx, source, "ada.vcf", ""))
	changes, err = s.ChangesSince(ctx, derived, changes.Token)
	require.NoError(t, err)
	found := false
	for _, e := range changes.Entries {
		if e.ItemName == derivedItemName("contact-ada") {
			assert.Equal(t, types.ChangeDeleted, e.Change)
			found = true
		}
	}
	assert.True(t, found, "expected a deletion event for the removed contact")
}

func TestBirthdays_OmittedYear(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "book", types.KindAddressBook, nil)
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "book", "leap.vcf", vcardFixture("contact-leap", "Leap Kid", "--0229"), "")
	require.NoError(t, err)
	_, err = s.EnableBirthdays(ctx, "book", "bdays")
	require.NoError(t, err)

	item, err := s.GetItem(ctx, "bdays", derivedItemName("contact-leap"))
	require.NoError(t, err)
	// The placeholder year is a leap year, keeping February 29 representable.
	assert.Contains(t, string(item.Content), "19720229")
}

func TestBirthdays_SkipsNamelessContact(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "book", types.KindAddressBook, nil)
	require.NoError(t, err)
	noName := []byte("BEGIN:VCARD\r\nVERSION:4.0\r\nUID:contact-x\r\nBDAY:19800101\r\nEND:VCARD\r\n")
	_, err = s.PutItem(ctx, "book", "x.vcf", noName, "")
	require.NoError(t, err)
	_, err = s.EnableBirthdays(ctx, "book", "bdays")
	require.NoError(t, err)

	infos, err := s.ListItems(ctx, "bdays")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestDisableBirthdays(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	source, derived := setupBirthdays(t, s)

	require.NoError(t, s.DisableBirthdays(ctx, source))

	_, err := s.GetCollection(ctx, derived)
	require.ErrorIs(t, err, types.ErrNotFound)

	// The source survives with its items.
	infos, err := s.ListItems(ctx, source)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	require.ErrorIs(t, s.DisableBirthdays(ctx, source), types.ErrNotFound)

	// The source is writable again without rippling anywhere.
	_, err = s.PutItem(ctx, source, "ada.vcf", vcardFixture("contact-ada", "Ada Lovelace", "1991-05-02"), "")
	require.NoError(t, err)
}

func TestDeleteCollection_CascadesToDerived(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	source, derived := setupBirthdays(t, s)

	derivedCol, err := s.GetCollection(ctx, derived)
	require.NoError(t, err)

	require.NoError(t, s.DeleteCollection(ctx, source))

	_, err = s.GetCollection(ctx, derived)
	require.ErrorIs(t, err, types.ErrNotFound)

	// The derived journal outlives its collection and records the cascade.
	var change string
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.q("SELECT change FROM item_history WHERE collection_id = ? AND item_name = ? ORDER BY revision DESC LIMIT 1")
		return tx.QueryRow(query, derivedCol.ID, derivedItemName("contact-ada")).Scan(&change)
	})
	require.NoError(t, err)
	assert.Equal(t, types.ChangeDeleted, change)

	// The freed paths are reusable.
	_, err = s.CreateCollection(ctx, derived, types.KindCalendar, nil)
	require.NoError(t, err)
	_, err = s.PutItem(ctx, derived, "a.ics", icalFixture("e1", "Fresh"), "")
	require.NoError(t, err)
}
