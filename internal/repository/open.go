package repository

import (
	"context"
	"fmt"

	"github.com/mr1hm/relief-hub/internal/config"
)

// Open connects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverSQLite:
		return NewSQLiteDB(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}
