package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/socialserver/backend/internal/config"
	"github.com/socialserver/backend/internal/models"
	"github.com/socialserver/backend/internal/params"
	"github.com/socialserver/backend/internal/repositories"
)

// seedFixture references users by username so fixtures stay readable.
type seedFixture struct {
	Users []struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"users"`
	Friendships [][2]string `json:"friendships"`
	Messages    []struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Message string `json:"message"`
	} `json:"messages"`
}

func runSeed(ctx context.Context, deps Dependencies, _ config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed fixture (e.g. seeds/dev.json)")
	}

	contents, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read seed %s: %w", args[0], err)
	}
	var fixture seedFixture
	if err := json.Unmarshal(contents, &fixture); err != nil {
		return fmt.Errorf("decode seed %s: %w", args[0], err)
	}

	userIDs := make(map[string]string, len(fixture.Users))
	for _, u := range fixture.Users {
		user, err := deps.Accounts.Register(ctx, u.Username, u.Password)
		if errors.Is(err, repositories.ErrUsernameTaken) {
			existing, found, lookupErr := deps.Repositories.Users.GetUser(ctx, params.Params{models.FieldUsername: u.Username})
			if lookupErr != nil {
				return lookupErr
			}
			if !found {
				return fmt.Errorf("seed user %s: %w", u.Username, err)
			}
			user, err = existing, nil
		}
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		userIDs[u.Username] = user.ID
	}

	resolve := func(username string) (string, error) {
		if id, ok := userIDs[username]; ok {
			return id, nil
		}
		return "", fmt.Errorf("seed references unknown user %q", username)
	}

	friendships := 0
	for _, pair := range fixture.Friendships {
		a, err := resolve(pair[0])
		if err != nil {
			return err
		}
		b, err := resolve(pair[1])
		if err != nil {
			return err
		}
		if _, err := deps.Repositories.Friendships.NewFriendship(ctx, a, b); err != nil {
			if errors.Is(err, repositories.ErrAlreadyFriends) {
				continue
			}
			return fmt.Errorf("seed friendship %s/%s: %w", pair[0], pair[1], err)
		}
		friendships++
	}

	messages := 0
	for _, m := range fixture.Messages {
		from, err := resolve(m.From)
		if err != nil {
			return err
		}
		to, err := resolve(m.To)
		if err != nil {
			return err
		}
		seeded, err := hasMessage(ctx, deps, from, to, m.Message)
		if err != nil {
			return fmt.Errorf("seed message %s->%s: %w", m.From, m.To, err)
		}
		if seeded {
			continue
		}
		if _, err := deps.Repositories.Messages.Send(ctx, from, to, m.Message); err != nil {
			return fmt.Errorf("seed message %s->%s: %w", m.From, m.To, err)
		}
		messages++
	}

	fmt.Fprintf(stdout, "seeded %d users, %d friendships, %d messages\n",
		len(userIDs), friendships, messages)
	return nil
}

// hasMessage reports whether to already received text from from, so re-running
// a fixture does not duplicate its messages.
func hasMessage(ctx context.Context, deps Dependencies, from, to, text string) (bool, error) {
	inbox, err := deps.Repositories.Messages.ListInbox(ctx, to, 0)
	if err != nil {
		return false, err
	}
	for _, message := range inbox {
		if message.From == from && message.Message == text {
			return true, nil
		}
	}
	return false, nil
}
