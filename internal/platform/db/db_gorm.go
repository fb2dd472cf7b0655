// Package db opens the SQLite database backing the durable cache tier.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenCacheDB opens (and creates, if needed) the durable-tier database file.
// The parent directory is created so a fresh deployment works without manual
// setup. Schema migration is owned by the store constructor, not here.
func OpenCacheDB(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache db %s: %w", path, err)
	}
	return db, nil
}
