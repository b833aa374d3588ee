package reqctx

import (
	"context"
	"testing"
)

func TestFrom_Empty(t *testing.T) {
	_, ok := From(context.Background())
	if ok {
		t.Error("expected ok=false on a bare context")
	}
}

func TestWithFrom_RoundTrip(t *testing.T) {
	info := Info{UserID: "email:x", WorkspaceID: "abc123", ConversationID: "C1"}
	ctx := With(context.Background(), info)

	got, ok := From(ctx)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != info {
		t.Errorf("got %+v, want %+v", got, info)
	}
}

func TestWith_ChildOverridesWithoutMutatingParent(t *testing.T) {
	parent := With(context.Background(), Info{UserID: "email:a"})
	child := With(parent, Info{UserID: "email:b"})

	p, _ := From(parent)
	c, _ := From(child)
	if p.UserID != "email:a" {
		t.Errorf("parent UserID mutated: got %q", p.UserID)
	}
	if c.UserID != "email:b" {
		t.Errorf("child UserID: got %q, want %q", c.UserID, "email:b")
	}
}
