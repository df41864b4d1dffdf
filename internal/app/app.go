package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/socialserver/backend/internal/config"
	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/logging"
	"github.com/socialserver/backend/internal/models"
	"github.com/socialserver/backend/internal/params"
)

var stdout io.Writer = os.Stdout

// Run bootstraps the social server and executes a command.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: migrate, status, seed, friends, or upload-image")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     logging.ParseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	var command func(context.Context, Dependencies, config.Config, []string) error
	switch args[0] {
	case "migrate":
		command = runMigrate
	case "status":
		command = runStatus
	case "seed":
		command = runSeed
	case "friends":
		command = runFriends
	case "upload-image":
		command = runUploadImage
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := connectWithRetry(ctx, deps.Manager); err != nil {
		return err
	}
	return command(ctx, deps, cfg, args[1:])
}

const (
	connectMaxRetries  = 3
	connectBaseBackoff = 100 * time.Millisecond
	connectMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57P03": {}, // cannot_connect_now
}

// connectWithRetry connects the store, retrying transient failures with
// exponential backoff.
func connectWithRetry(ctx context.Context, manager *db.Manager) error {
	var err error
	for attempt := 0; attempt < connectMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * connectBaseBackoff
			if backoff > connectMaxBackoff {
				backoff = connectMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = manager.Connect(ctx)
		if err == nil {
			return nil
		}
		if !shouldRetryConnect(err) {
			return err
		}
		logging.FromContext(ctx).Warn("transient error connecting to database",
			"attempt", attempt+1, "max_attempts", connectMaxRetries, "error", err)
	}
	return fmt.Errorf("connect: exceeded max retries (%d): %w", connectMaxRetries, err)
}

func shouldRetryConnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}

func collectionNames(cfg config.Config) []string {
	return []string{
		cfg.Collections.Accounts,
		cfg.Collections.Messages,
		cfg.Collections.Friendships,
		cfg.Collections.Images,
	}
}

// runMigrate relies on Connect having ensured every collection and index.
func runMigrate(_ context.Context, _ Dependencies, cfg config.Config, _ []string) error {
	for _, name := range collectionNames(cfg) {
		fmt.Fprintf(stdout, "ensured collection %s\n", name)
	}
	return nil
}

func runStatus(ctx context.Context, deps Dependencies, cfg config.Config, _ []string) error {
	fmt.Fprintf(stdout, "connected to %s database %s\n", cfg.DatabaseDriver, cfg.DatabaseName)
	for _, name := range collectionNames(cfg) {
		coll, err := deps.Manager.Collection(name)
		if err != nil {
			return err
		}
		var doc json.RawMessage
		if _, err := coll.FindOne(ctx, db.Filter{}, &doc); err != nil {
			fmt.Fprintf(stdout, "[ ] %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(stdout, "[x] %s\n", coll.Name())
	}
	return nil
}

func lookupUser(ctx context.Context, deps Dependencies, username string) (models.User, error) {
	user, found, err := deps.Repositories.Users.GetUser(ctx, params.Params{models.FieldUsername: username})
	if err != nil {
		return models.User{}, err
	}
	if !found {
		return models.User{}, fmt.Errorf("unknown user %q", username)
	}
	return user, nil
}

func runFriends(ctx context.Context, deps Dependencies, _ config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: friends <username>")
	}

	user, err := lookupUser(ctx, deps, args[0])
	if err != nil {
		return err
	}
	friends, err := deps.Friends.List(ctx, user.ID)
	if err != nil {
		return err
	}

	if len(friends) == 0 {
		fmt.Fprintf(stdout, "%s has no friends\n", user.Username)
		return nil
	}
	for _, friend := range friends {
		fmt.Fprintf(stdout, "%s %s\n", friend.ID, friend.Username)
	}
	return nil
}

func runUploadImage(ctx context.Context, deps Dependencies, _ config.Config, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: upload-image <username> <file>")
	}
	username, path := args[0], args[1]

	user, err := lookupUser(ctx, deps, username)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	upload, err := deps.Gallery.Upload(ctx, user.ID, filepath.Base(path), file)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "uploaded %s as %s (%s)\n", filepath.Base(path), upload.Image.Name, upload.Location)
	return nil
}
