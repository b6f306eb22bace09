package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidKind(t *testing.T) {
	assert.True(t, ValidKind(KindCalendar))
	assert.True(t, ValidKind(KindAddressBook))
	assert.True(t, ValidKind(KindCollection))
	assert.False(t, ValidKind(""))
	assert.False(t, ValidKind("journal"))
}

func TestCollectionDisplayName(t *testing.T) {
	tests := []struct {
		name       string
		collection Collection
		want       string
	}{
		{
			name: "explicit displayname property wins",
			collection: Collection{
				Path:       "calendars/work",
				Properties: map[string]string{PropDisplayName: "Work Calendar"},
			},
			want: "Work Calendar",
		},
		{
			name:       "falls back to last path segment",
			collection: Collection{Path: "addressbooks/home"},
			want:       "home",
		},
		{
			name:       "single segment path",
			collection: Collection{Path: "calendars"},
			want:       "calendars",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.collection.DisplayName())
		})
	}
}
