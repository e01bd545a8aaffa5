package prefs

import (
	"context"
	"testing"
)

func TestMemoryGetUnknownUser(t *testing.T) {
	m := NewMemory()
	ids, err := m.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty list, got %v", ids)
	}
}

func TestMemorySetGetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "hcp-1", []string{"p1", "p2"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ids, err := m.Get(ctx, "hcp-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Errorf("got %v, want [p1 p2]", ids)
	}

	// Users are independent.
	other, _ := m.Get(ctx, "hcp-2")
	if len(other) != 0 {
		t.Errorf("expected empty list for other user, got %v", other)
	}
}

func TestMemoryDoesNotAliasCallerSlices(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	in := []string{"p1"}
	_ = m.Set(ctx, "hcp-1", in)
	in[0] = "mutated"

	got, _ := m.Get(ctx, "hcp-1")
	if got[0] != "p1" {
		t.Error("store aliases the caller's slice")
	}
	got[0] = "mutated"
	again, _ := m.Get(ctx, "hcp-1")
	if again[0] != "p1" {
		t.Error("returned slice aliases the stored one")
	}
}
