package repository

import (
	"github.com/rongwang/savings-circles/internal/config"
)

// Open builds the repository selected by cfg.Database.Driver. The returned
// close func releases the database connection, if any.
func Open(cfg *config.Config) (Repository, func() error, error) {
	if cfg.Database.Driver == "memory" {
		return NewMemoryRepository(), func() error { return nil }, nil
	}

	db, err := config.SetupDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	return NewSQLRepository(db), db.Close, nil
}
