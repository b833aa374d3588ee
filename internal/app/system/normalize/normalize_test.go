package normalize

import "testing"

func TestIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"telegram:42", "telegram:42"},
		{"Telegram: 42", "telegram:42"},
		{"  EMAIL:Kim@Example.com ", "email:kim@example.com"},
		{"anon:1", "anon:1"},
		{"NoNamespace", "nonamespace"},
		{"", ""},
		{"   ", ""},
		{"slack: U123 ", "slack:u123"},
	}
	for _, tt := range tests {
		if got := Identity(tt.in); got != tt.want {
			t.Errorf("Identity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConversation(t *testing.T) {
	if got := Conversation("  C-9 "); got != "C-9" {
		t.Errorf("Conversation: got %q, want %q", got, "C-9")
	}
	// Conversation ids are opaque; case is preserved.
	if got := Conversation("Chan:ABC"); got != "Chan:ABC" {
		t.Errorf("Conversation: got %q, want %q", got, "Chan:ABC")
	}
}
