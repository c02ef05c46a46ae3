package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/badgerdb"
	"github.com/listenupapp/catalog-server/internal/store/mongodb"
)

// storeOpenTimeout bounds connecting to and pinging the store at startup.
const storeOpenTimeout = 15 * time.Second

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens MongoDB when DATABASE_URL is a mongodb URI and Badger
// otherwise. The store must answer a ping before the server starts.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithTimeout(context.Background(), storeOpenTimeout)
	defer cancel()

	var (
		db  store.Store
		err error
	)
	if cfg.Database.IsMongo() {
		db, err = mongodb.Open(ctx, cfg.Database.URL, cfg.Database.Name, log.Logger)
	} else {
		db, err = badgerdb.Open(cfg.Database.URL, log.Logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	log.Info("Database initialized", "backend", backendName(cfg.Database))

	return &StoreHandle{Store: db}, nil
}

func backendName(db config.DatabaseConfig) string {
	if db.IsMongo() {
		return "mongodb"
	}
	return "badger"
}
