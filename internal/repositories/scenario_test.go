package repositories

import (
	"context"
	"testing"

	"github.com/socialserver/backend/internal/apperrors"
	"github.com/socialserver/backend/internal/params"
)

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.set.Users.Register(ctx, params.Params{"username": "alice", "password": "secret"})
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if alice.ID == "" || alice.Token == "" {
		t.Fatalf("expected generated id and token, got %+v", alice)
	}
	_, err = f.set.Users.Register(ctx, params.Params{"username": "alice", "password": "other"})
	expectKind(t, err, apperrors.KindSemantics)

	bob := f.register(t, "bob")

	message, err := f.set.Messages.Send(ctx, alice.ID, bob.ID, "hi")
	if err != nil || message.To != bob.ID {
		t.Fatalf("send: %+v err=%v", message, err)
	}
	inbox, err := f.set.Messages.ListInbox(ctx, bob.ID, 0)
	if err != nil || len(inbox) != 1 || inbox[0].ID != message.ID {
		t.Fatalf("inbox: %+v err=%v", inbox, err)
	}

	if _, err := f.set.Friendships.NewFriendship(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("new friendship: %v", err)
	}
	_, err = f.set.Friendships.NewFriendship(ctx, bob.ID, alice.ID)
	expectErr(t, err, ErrAlreadyFriends)

	removed, err := f.set.Friendships.Unfriend(ctx, alice.ID, bob.ID)
	if err != nil || !removed {
		t.Fatalf("unfriend: removed=%v err=%v", removed, err)
	}
	friends, err := f.set.Friendships.CheckIfFriends(ctx, alice.ID, bob.ID)
	if err != nil || friends {
		t.Fatalf("check: friends=%v err=%v", friends, err)
	}
}
