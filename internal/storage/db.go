package storage

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"soundarr/internal/domain"
)

// Open connects to the sqlite cache database and migrates the schema owned
// by this core.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.CacheEntry{},
		&domain.GuildVideo{},
		&domain.BackupRecord{},
		&domain.SearchCacheEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return db, nil
}

// wrapDBErr maps driver failures onto the domain taxonomy: not-found stays
// queryable with errors.Is, and transient lock/busy conditions surface as
// ErrStoreBusy so callers can retry them.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == gorm.ErrRecordNotFound {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrStoreBusy)
	}
	return fmt.Errorf("%s: %w", op, err)
}
