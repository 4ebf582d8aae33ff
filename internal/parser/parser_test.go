package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlay(t *testing.T) {
	tests := []struct {
		name    string
		message string
		query   string
	}{
		{"simple", "!play Shape of You", "Shape of You"},
		{"with artist", "!play Shape of You - Ed Sheeran", "Shape of You - Ed Sheeran"},
		{"uppercase token", "!PLAY shape of you", "shape of you"},
		{"mixed case", "!Play Bohemian Rhapsody", "Bohemian Rhapsody"},
		{"surrounding whitespace", "  !play  Hotel California  ", "Hotel California"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := Parse(tt.message)
			assert.True(t, ok)
			assert.Equal(t, KindPlay, cmd.Kind)
			assert.Equal(t, tt.query, cmd.Query)
		})
	}
}

func TestParseNoCommand(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"plain chat", "this song is great"},
		{"bare play", "!play"},
		{"play whitespace only", "!play    "},
		{"unknown prefix", "!request Shape of You"},
		{"empty", ""},
		{"whitespace", "   "},
		{"play without bang", "play Shape of You"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Parse(tt.message)
			assert.False(t, ok)
		})
	}
}

func TestParseRevokeAndSkip(t *testing.T) {
	cmd, ok := Parse("!revoke")
	assert.True(t, ok)
	assert.Equal(t, KindRevoke, cmd.Kind)
	assert.Empty(t, cmd.Query)

	cmd, ok = Parse("!SKIP")
	assert.True(t, ok)
	assert.Equal(t, KindSkip, cmd.Kind)

	// A trailing argument makes it ordinary chat, not a skip.
	_, ok = Parse("!skip this one")
	assert.False(t, ok)
}
