package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/socialserver/backend/internal/apperrors"
	"github.com/socialserver/backend/internal/config"
	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/models"
	"github.com/socialserver/backend/internal/params"
)

type sequenceTokens struct {
	n   atomic.Int64
	err error
}

func (s *sequenceTokens) Generate(_ context.Context, length int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	token := fmt.Sprintf("token-%d", s.n.Add(1))
	for len(token) < length {
		token += "x"
	}
	return token, nil
}

type fixture struct {
	manager *db.Manager
	driver  *db.MemoryDriver
	tokens  *sequenceTokens
	set     Set
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	collections := config.DefaultCollections()
	driver := db.NewMemoryDriver()
	manager := db.NewManager(driver, nil, Specs(collections)...)
	if err := manager.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(manager.Close)

	tokens := &sequenceTokens{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	set := New(manager, tokens, Config{
		Collections: collections,
		TokenLength: 16,
		Now:         func() time.Time { return start },
	})
	return &fixture{manager: manager, driver: driver, tokens: tokens, set: set}
}

func (f *fixture) register(t *testing.T, username string) models.User {
	t.Helper()
	user, err := f.set.Users.Register(context.Background(), params.Params{
		models.FieldUsername: username,
		models.FieldPassword: "secret",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func expectKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %s (%v)", kind, got, err)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

const unknownID = "0123456789abcdef01234567"
