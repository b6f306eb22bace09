package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM items WHERE name = ?", "SELECT * FROM items WHERE name = $1"},
		{"INSERT INTO t (a, b, c) VALUES (?, ?, ?)", "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rebind(tt.in))
	}
}

func TestLikeEscape(t *testing.T) {
	assert.Equal(t, `plain`, likeEscape(`plain`))
	assert.Equal(t, `100\%`, likeEscape(`100%`))
	assert.Equal(t, `a\_b`, likeEscape(`a_b`))
	assert.Equal(t, `a\\b`, likeEscape(`a\b`))
}
