// Package parser extracts structured commands from raw TikTok chat lines.
package parser

import (
	"regexp"
	"strings"
)

// Kind identifies a chat command.
type Kind string

const (
	KindPlay   Kind = "play"
	KindRevoke Kind = "revoke"
	KindSkip   Kind = "skip"
)

// Command is a structured instruction extracted from a chat message.
// Only play commands carry a query.
type Command struct {
	Kind  Kind
	Query string
}

var (
	playRe   = regexp.MustCompile(`^(?i)!play\s+(.+)$`)
	revokeRe = regexp.MustCompile(`^(?i)!revoke$`)
	skipRe   = regexp.MustCompile(`^(?i)!skip$`)
)

// Parse maps a raw chat message to a command. The second return value is
// false for ordinary chat, unrecognized prefixes, and play commands with an
// empty query. Pure and total: no side effects, no I/O.
func Parse(message string) (Command, bool) {
	trimmed := strings.TrimSpace(message)

	if m := playRe.FindStringSubmatch(trimmed); m != nil {
		query := strings.TrimSpace(m[1])
		if query == "" {
			return Command{}, false
		}
		return Command{Kind: KindPlay, Query: query}, true
	}
	if revokeRe.MatchString(trimmed) {
		return Command{Kind: KindRevoke}, true
	}
	if skipRe.MatchString(trimmed) {
		return Command{Kind: KindSkip}, true
	}
	return Command{}, false
}
