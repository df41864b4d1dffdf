package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/socialserver/backend/internal/apperrors"
	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/ids"
	"github.com/socialserver/backend/internal/models"
	"github.com/socialserver/backend/internal/params"
)

func TestRegisterCreatesUser(t *testing.T) {
	f := newFixture(t)

	user := f.register(t, "alice")
	if !ids.Valid(user.ID) {
		t.Fatalf("expected generated id, got %q", user.ID)
	}
	if user.Username != "alice" || user.Password != "secret" {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(user.Token) < 16 {
		t.Fatalf("expected token of configured length, got %q", user.Token)
	}
	if got := f.driver.Count("accounts"); got != 1 {
		t.Fatalf("expected one stored account, got %d", got)
	}
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	_, err := f.set.Users.Register(context.Background(), params.Params{
		models.FieldUsername: "alice",
		models.FieldPassword: "other",
	})
	expectErr(t, err, ErrUsernameTaken)
	expectKind(t, err, apperrors.KindSemantics)
}

func TestRegisterValidatesParams(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		params params.Params
		want   error
	}{
		{name: "extra field", params: params.Params{"username": "a", "password": "b", "admin": "yes"}, want: ErrInvalidParamSet},
		{name: "unknown field", params: params.Params{"username": "a", "token": "b"}, want: ErrInvalidParamSet},
		{name: "missing password", params: params.Params{"username": "a"}, want: ErrInvalidParamSet},
		{name: "empty", params: params.Params{}, want: ErrInvalidParamSet},
		{name: "blank username", params: params.Params{"username": "  ", "password": "b"}, want: ErrMissingParams},
		{name: "blank password", params: params.Params{"username": "a", "password": ""}, want: ErrMissingParams},
		{name: "non-string", params: params.Params{"username": 7, "password": "b"}, want: ErrMissingParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.set.Users.Register(context.Background(), tt.params)
			expectErr(t, err, tt.want)
			expectKind(t, err, apperrors.KindArgument)
		})
	}
	if got := f.driver.Count("accounts"); got != 0 {
		t.Fatalf("expected nothing stored, got %d", got)
	}
}

func TestRegisterPropagatesTokenFailure(t *testing.T) {
	f := newFixture(t)
	f.tokens.err = errors.New("entropy exhausted")

	_, err := f.set.Users.Register(context.Background(), params.Params{"username": "a", "password": "b"})
	if err == nil || !errors.Is(err, f.tokens.err) {
		t.Fatalf("expected token failure, got %v", err)
	}
}

func TestRegisterTranslatesUniqueViolation(t *testing.T) {
	f := newFixture(t)
	coll, err := f.manager.Collection("accounts")
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	// Simulate a concurrent registration landing between precheck and insert.
	racer := racingCollection{Collection: coll, username: "alice"}
	users := NewUsers(racingConn{Connection: f.manager, coll: &racer}, "accounts", f.tokens, 8)

	_, err = users.Register(context.Background(), params.Params{"username": "alice", "password": "b"})
	expectErr(t, err, ErrUsernameTaken)
}

type racingConn struct {
	Connection
	coll db.Collection
}

func (c racingConn) Collection(string) (db.Collection, error) { return c.coll, nil }

type racingCollection struct {
	db.Collection
	username string
	raced    bool
}

func (c *racingCollection) InsertOne(ctx context.Context, id string, doc any) error {
	if !c.raced {
		c.raced = true
		other := models.User{ID: ids.New(), Username: c.username, Password: "x", Token: "t"}
		if err := c.Collection.InsertOne(ctx, other.ID, other); err != nil {
			return err
		}
	}
	return c.Collection.InsertOne(ctx, id, doc)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	ctx := context.Background()

	got, found, err := f.set.Users.GetUser(ctx, params.Params{"username": "alice", "token": "   "})
	if err != nil || !found {
		t.Fatalf("expected alice, found=%v err=%v", found, err)
	}
	if got != alice {
		t.Fatalf("expected %+v, got %+v", alice, got)
	}

	_, found, err = f.set.Users.GetUser(ctx, params.Params{"username": "alice", "password": "wrong"})
	if err != nil || found {
		t.Fatalf("expected no match, found=%v err=%v", found, err)
	}

	_, _, err = f.set.Users.GetUser(ctx, params.Params{"username": " ", "token": nil})
	expectErr(t, err, ErrNoParams)

	for _, filter := range []params.Params{
		{"email": "a@b"},
		{"username": "alice", "email": "a@b"},
		{"username": 12},
	} {
		_, found, err = f.set.Users.GetUser(ctx, filter)
		if err != nil || found {
			t.Fatalf("expected %v to match nothing, found=%v err=%v", filter, found, err)
		}
	}
}

func TestGetUserDoesNotMutateFilter(t *testing.T) {
	f := newFixture(t)
	filter := params.Params{"username": "alice", "token": ""}

	if _, _, err := f.set.Users.GetUser(context.Background(), filter); err != nil {
		t.Fatalf("get user: %v", err)
	}
	if _, ok := filter["token"]; !ok {
		t.Fatal("expected caller's filter to keep its blank entry")
	}
}

func TestGetManyByID(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	ctx := context.Background()

	users, err := f.set.Users.GetManyByID(ctx, []string{alice.ID, bob.ID, unknownID})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected the two existing users, got %d", len(users))
	}

	users, err = f.set.Users.GetManyByID(ctx, nil)
	if err != nil || len(users) != 0 {
		t.Fatalf("expected empty result, got %v err=%v", users, err)
	}

	_, err = f.set.Users.GetManyByID(ctx, []string{alice.ID, "nope"})
	expectErr(t, err, ErrInvalidIDs)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"carol", "alice", "Alina", "bob"} {
		f.register(t, name)
	}
	ctx := context.Background()

	users, err := f.set.Users.Search(ctx, "li")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(users) != 2 || users[0].Username != "Alina" || users[1].Username != "alice" {
		t.Fatalf("unexpected search result %+v", users)
	}

	users, err = f.set.Users.Search(ctx, "AL")
	if err != nil || len(users) != 0 {
		t.Fatalf("expected case-sensitive miss, got %+v err=%v", users, err)
	}

	_, err = f.set.Users.Search(ctx, " \t")
	expectErr(t, err, ErrEmptySearchTerm)
}

func TestRotateToken(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	ctx := context.Background()

	token, err := f.set.Users.RotateToken(ctx, alice.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if token == alice.Token {
		t.Fatal("expected a new token")
	}

	ok, err := f.set.Users.CheckToken(ctx, alice.Token, alice.ID)
	if err != nil || ok {
		t.Fatalf("expected old token to be rejected, ok=%v err=%v", ok, err)
	}
	ok, err = f.set.Users.CheckToken(ctx, token, alice.ID)
	if err != nil || !ok {
		t.Fatalf("expected new token to be accepted, ok=%v err=%v", ok, err)
	}

	_, err = f.set.Users.RotateToken(ctx, unknownID)
	expectErr(t, err, ErrNoDocumentUpdated)
	expectKind(t, err, apperrors.KindSemantics)

	_, err = f.set.Users.RotateToken(ctx, "bad")
	expectErr(t, err, ErrInvalidID)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	ctx := context.Background()

	updated, err := f.set.Users.ChangePassword(ctx, alice.ID, "new-secret", false)
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if updated.Password != "new-secret" || updated.Token != alice.Token {
		t.Fatalf("unexpected user after change %+v", updated)
	}

	updated, err = f.set.Users.ChangePassword(ctx, alice.ID, "newer", true)
	if err != nil {
		t.Fatalf("change password with reset: %v", err)
	}
	if updated.Password != "newer" || updated.Token == alice.Token {
		t.Fatalf("expected rotated token, got %+v", updated)
	}

	_, err = f.set.Users.ChangePassword(ctx, unknownID, "x", true)
	expectErr(t, err, ErrNoDocumentUpdated)

	_, err = f.set.Users.ChangePassword(ctx, alice.ID, " ", false)
	expectErr(t, err, ErrMissingParams)
}

func TestCheckTokenGuards(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		id    string
	}{
		{name: "unknown user", token: alice.Token, id: unknownID},
		{name: "malformed id", token: alice.Token, id: "alice"},
		{name: "empty token", token: "", id: alice.ID},
		{name: "wrong token", token: "token-999", id: alice.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.set.Users.CheckToken(ctx, tt.token, tt.id)
			if err != nil || ok {
				t.Fatalf("expected unauthenticated, ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestUsersRequireConnection(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")
	f.manager.Close()
	ctx := context.Background()

	// Invalid input still reports the connection first.
	_, err := f.set.Users.Register(ctx, params.Params{"bogus": true})
	expectErr(t, err, db.ErrNotConnected)
	expectKind(t, err, apperrors.KindDatabase)

	_, _, err = f.set.Users.GetUser(ctx, params.Params{})
	expectErr(t, err, db.ErrNotConnected)

	_, err = f.set.Users.GetManyByID(ctx, []string{"bad"})
	expectErr(t, err, db.ErrNotConnected)

	_, err = f.set.Users.Search(ctx, "")
	expectErr(t, err, db.ErrNotConnected)

	_, err = f.set.Users.RotateToken(ctx, alice.ID)
	expectErr(t, err, db.ErrNotConnected)

	_, err = f.set.Users.ChangePassword(ctx, alice.ID, "x", false)
	expectErr(t, err, db.ErrNotConnected)

	_, err = f.set.Users.CheckToken(ctx, alice.Token, alice.ID)
	expectErr(t, err, db.ErrNotConnected)
}
