package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

func TestSyncToken_AdvancesPerMutation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "cal", types.KindCalendar, nil)
	require.NoError(t, err)

	token, err := s.SyncToken(ctx, "cal")
	require.NoError(t, err)
	assert.Equal(t, types.BaselineToken, token)

	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "One"), "")
	require.NoError(t, err)
	after1, err := s.SyncToken(ctx, "cal")
	require.NoError(t, err)
	assert.Equal(t, token+1, after1)

	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "Two"), "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteItem(ctx, "cal", "a.ics", ""))

	after3, err := s.SyncToken(ctx, "cal")
	require.NoError(t, err)
	assert.Equal(t, token+3, after3)
}

func TestChangesSince_Deltas(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "cal", types.KindCalendar, nil)
	require.NoError(t, err)

	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "One"), "")
	require.NoError(t, err)
	mark, err := s.SyncToken(ctx, "cal")
	require.NoError(t, err)

	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "Two"), "")
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "cal", "b.ics", icalFixture("e2", "Other"), "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteItem(ctx, "cal", "a.ics", ""))

	changes, err := s.ChangesSince(ctx, "cal", mark)
	require.NoError(t, err)
	assert.Equal(t, mark+3, changes.Token)
	require.Len(t, changes.Entries, 3)

	// Entries come back in revision order.
	assert.Equal(t, "a.ics", changes.Entries[0].ItemName)
	assert.Equal(t, types.ChangeUpdated, changes.Entries[0].Change)
	assert.Equal(t, "b.ics", changes.Entries[1].ItemName)
	assert.Equal(t, types.ChangeCreated, changes.Entries[1].Change)
	assert.Equal(t, "a.ics", changes.Entries[2].ItemName)
	assert.Equal(t, types.ChangeDeleted, changes.Entries[2].Change)
	for i := 1; i < len(changes.Entries); i++ {
		assert.Greater(t, changes.Entries[i].Revision, changes.Entries[i-1].Revision)
	}

	// Asking from the current token yields an empty delta.
	empty, err := s.ChangesSince(ctx, "cal", changes.Token)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
	assert.Equal(t, changes.Token, empty.Token)
}

func TestChangesSince_Baseline(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "cal", types.KindCalendar, nil)
	require.NoError(t, err)

	// Churn: b.ics is created then deleted, a.ics rewritten twice.
	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "One"), "")
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "cal", "b.ics", icalFixture("e2", "Gone"), "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteItem(ctx, "cal", "b.ics", ""))
	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "Two"), "")
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "cal", "c.ics", icalFixture("e3", "Three"), "")
	require.NoError(t, err)

	// The baseline answer is the live set, not the journal replay: deleted
	// items never appear.
	changes, err := s.ChangesSince(ctx, "cal", types.BaselineToken)
	require.NoError(t, err)
	require.Len(t, changes.Entries, 2)
	names := []string{changes.Entries[0].ItemName, changes.Entries[1].ItemName}
	assert.ElementsMatch(t, []string{"a.ics", "c.ics"}, names)
	for _, e := range changes.Entries {
		assert.Equal(t, types.ChangeCreated, e.Change)
	}

	current, err := s.SyncToken(ctx, "cal")
	require.NoError(t, err)
	assert.Equal(t, current, changes.Token)
}

func TestChangesSince_ReconstructsState(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "cal", types.KindCalendar, nil)
	require.NoError(t, err)

	mark := types.BaselineToken
	live := map[string]bool{}
	apply := func(changes *types.Changes) {
		for _, e := range changes.Entries {
			if e.Change == types.ChangeDeleted {
				delete(live, e.ItemName)
			} else {
				live[e.ItemName] = true
			}
		}
		mark = changes.Token
	}

	step := func() {
		changes, err := s.ChangesSince(ctx, "cal", mark)
		require.NoError(t, err)
		apply(changes)

		infos, err := s.ListItems(ctx, "cal")
		require.NoError(t, err)
		require.Len(t, infos, len(live))
		for _, info := range infos {
			assert.True(t, live[info.Name], "client missing %s", info.Name)
		}
	}

	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "One"), "")
	require.NoError(t, err)
	step()

	_, err = s.PutItem(ctx, "cal", "b.ics", icalFixture("e2", "Two"), "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteItem(ctx, "cal", "a.ics", ""))
	step()

	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "Back"), "")
	require.NoError(t, err)
	step()
}

func TestChangesSince_UnknownToken(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "cal", types.KindCalendar, nil)
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "cal", "a.ics", icalFixture("e1", "One"), "")
	require.NoError(t, err)

	_, err = s.ChangesSince(ctx, "cal", 99)
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = s.ChangesSince(ctx, "cal", -1)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestSyncTokens_PerCollection(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "one", types.KindCalendar, nil)
	require.NoError(t, err)
	_, err = s.CreateCollection(ctx, "two", types.KindCalendar, nil)
	require.NoError(t, err)

	_, err = s.PutItem(ctx, "one", "a.ics", icalFixture("e1", "One"), "")
	require.NoError(t, err)
	_, err = s.PutItem(ctx, "one", "b.ics", icalFixture("e2", "Two"), "")
	require.NoError(t, err)

	t1, err := s.SyncToken(ctx, "one")
	require.NoError(t, err)
	t2, err := s.SyncToken(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, int64(2), t1)
	assert.Equal(t, types.BaselineToken, t2)
}
