package database

import (
	"database/sql"

	"github.com/google/wire"

	"chat/config"
)

// ProvideDatabase opens the pool and migrates the schema.
func ProvideDatabase(cfg *config.Config) (*Database, func(), error) {
	db, err := NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

func ProvideSQL(db *Database) (*sql.DB, error) {
	return db.SQL()
}

var Set = wire.NewSet(ProvideDatabase, ProvideSQL)
