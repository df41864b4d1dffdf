package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/socialserver/backend/internal/apperrors"
)

// Manager owns the single store connection and the collection handles derived
// from it. Repositories share one Manager and consult it before every operation.
type Manager struct {
	driver Driver
	specs  []CollectionSpec
	logger *slog.Logger

	mu   sync.RWMutex
	conn Conn
	// handles caches collection handles of conn. Connect installs a fresh map
	// and Close drops it, so a handle never outlives its connection's cache.
	handles *sync.Map
}

// NewManager constructs a disconnected Manager. Every spec is ensured on connect.
func NewManager(driver Driver, logger *slog.Logger, specs ...CollectionSpec) *Manager {
	if driver == nil {
		panic("db: driver must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		driver: driver,
		specs:  specs,
		logger: logger,
	}
}

// Connect opens the store connection. It returns immediately when already connected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}

	conn, err := m.driver.Open(ctx)
	if err != nil {
		return apperrors.Database("connect to database", err)
	}

	for _, spec := range m.specs {
		if err := conn.EnsureCollection(ctx, spec); err != nil {
			conn.Close()
			return apperrors.Database("ensure collection "+spec.Name, err)
		}
	}

	m.conn = conn
	m.handles = &sync.Map{}
	m.logger.Info("database connected", slog.Int("collections", len(m.specs)))
	return nil
}

// Close releases the connection and forgets every collection handle. It is safe
// to call when already disconnected.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return
	}

	m.conn.Close()
	m.conn = nil
	m.handles = nil
	m.logger.Info("database connection closed")
}

// Connected reports whether the store connection is open.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn != nil
}

// Collection returns the cached handle for name, creating it on first use.
// It fails with ErrNotConnected when the store is disconnected.
func (m *Manager) Collection(name string) (Collection, error) {
	m.mu.RLock()
	conn, handles := m.conn, m.handles
	m.mu.RUnlock()

	if conn == nil {
		return nil, ErrNotConnected
	}
	if name == "" {
		return nil, fmt.Errorf("db: collection name must not be empty")
	}

	if cached, ok := handles.Load(name); ok {
		return cached.(Collection), nil
	}

	// Concurrent first uses on the same connection keep whichever handle
	// is stored first.
	coll, _ := handles.LoadOrStore(name, conn.Collection(name))
	return coll.(Collection), nil
}
