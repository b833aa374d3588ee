// internal/app/system/normalize/normalize.go

// Package normalize canonicalizes raw identity and conversation strings
// before they reach any store, so equality is well defined across channel
// adapters that differ in casing and whitespace.
package normalize

import "strings"

// Identity normalizes a channel-namespaced identity string such as
// "Telegram: 42" or "EMAIL:Kim@Example.com" to "telegram:42" /
// "email:kim@example.com". The part after the first colon is lowercased
// too: channels are expected to supply case-insensitive identifiers, and a
// raw string that differs only by case must resolve to the same user.
func Identity(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		ns := strings.TrimSpace(s[:i])
		rest := strings.TrimSpace(s[i+1:])
		return strings.ToLower(ns) + ":" + strings.ToLower(rest)
	}
	return strings.ToLower(s)
}

// Conversation normalizes a conversation handle. Conversation ids are
// opaque to this engine; only surrounding whitespace is stripped.
func Conversation(raw string) string {
	return strings.TrimSpace(raw)
}
