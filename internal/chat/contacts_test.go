package chat

import (
	"context"
	"testing"
)

func visibleIDs(t *testing.T, c *Contacts, owner string) []string {
	t.Helper()
	users, err := c.ListVisible(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestListVisibleExcludesSelf(t *testing.T) {
	f := newFixture(t)
	got := visibleIDs(t, f.contacts, "a1")
	if len(got) != 2 || got[0] != "b1" || got[1] != "c1" {
		t.Fatalf("unexpected contacts %v", got)
	}
}

func TestHideIsOneDirectional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.contacts.Hide(ctx, "a1", "b1"); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(t, f.contacts, "a1"); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("a1 should only see c1, got %v", got)
	}
	if got := visibleIDs(t, f.contacts, "b1"); len(got) != 2 || got[0] != "a1" {
		t.Fatalf("b1 should still see a1, got %v", got)
	}
}

func TestHideTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := f.contacts.Hide(ctx, "a1", "c1"); err != nil {
			t.Fatal(err)
		}
	}
	if got := visibleIDs(t, f.contacts, "a1"); len(got) != 1 || got[0] != "b1" {
		t.Fatalf("unexpected contacts %v", got)
	}
}

func TestHiddenContactCanStillMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.contacts.Hide(ctx, "b1", "a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Send(ctx, SendRequest{SenderID: "a1", ReceiverID: "b1", Text: "still here"}); err != nil {
		t.Fatalf("hiding must not block messages: %v", err)
	}
}
