package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/socialserver/backend/internal/auth"
	"github.com/socialserver/backend/internal/config"
	"github.com/socialserver/backend/internal/db"
	"github.com/socialserver/backend/internal/repositories"
	"github.com/socialserver/backend/internal/services"
	"github.com/socialserver/backend/internal/storage"
)

// Dependencies holds the wired components the commands operate on.
type Dependencies struct {
	Manager      *db.Manager
	Repositories repositories.Set
	Accounts     *services.Accounts
	Friends      *services.Friends
	Gallery      *services.Gallery
}

// buildDependencies wires together concrete implementations for cfg. The store
// is not connected yet; cleanup closes it once it is.
func buildDependencies(ctx context.Context, cfg config.Config, logger *slog.Logger) (Dependencies, func(), error) {
	manager := db.NewManager(newDriver(cfg), logger, repositories.Specs(cfg.Collections)...)
	repos := repositories.New(manager, auth.RandomTokens{}, repositories.Config{
		Collections: cfg.Collections,
		TokenLength: cfg.TokenLength,
	})

	imageStorage, err := newImageStorage(ctx, cfg)
	if err != nil {
		return Dependencies{}, nil, err
	}

	limiter := auth.NewKeyedLimiter(cfg.Login.Attempts, cfg.Login.Window, cfg.Login.Burst, 10*time.Minute)

	deps := Dependencies{
		Manager:      manager,
		Repositories: repos,
		Accounts:     services.NewAccounts(repos.Users, auth.Hasher{Cost: cfg.BcryptCost}, limiter),
		Friends:      services.NewFriends(repos.Friendships, repos.Users),
		Gallery:      services.NewGallery(imageStorage, repos.Images),
	}
	return deps, manager.Close, nil
}

func newDriver(cfg config.Config) db.Driver {
	if cfg.DatabaseDriver == config.DriverMemory {
		return db.NewMemoryDriver()
	}
	return db.NewPostgresDriver(cfg.DatabaseURL())
}

func newImageStorage(ctx context.Context, cfg config.Config) (services.ObjectStorage, error) {
	if cfg.ObjectStore.Bucket != "" {
		return storage.NewS3Storage(ctx, cfg.ObjectStore)
	}
	return storage.NewDiskStorage(cfg.ImageDir, cfg.ImageBaseURL)
}
