// Package sqlite stores documents in a local database through GORM.
// It is the default backend: the record becomes one row of the documents table.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/store/common"
)

// Config is the sqlite backend configuration.
type Config struct {
	// Path of the database file; ":memory:" works for tests.
	Path string
}

// Backend implements backend.Backend on top of GORM.
type Backend struct {
	logger log.Logger
	db     *gorm.DB
}

// New opens the database and runs AutoMigrate.
func New(l log.Logger, c Config) (*Backend, error) {
	if c.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := gorm.Open(sqlite.Open(c.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.Document{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	level.Info(l).Log("msg", "database opened", "driver", "sqlite", "path", c.Path)
	return &Backend{logger: l, db: db}, nil
}

// Get loads the document stored under p.
func (b *Backend) Get(ctx context.Context, p string) ([]byte, error) {
	var doc models.Document
	err := b.db.WithContext(ctx).Where("path = ?", p).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", p, err)
	}
	return []byte(doc.Body), nil
}

// Put creates or fully replaces the document under p in one statement.
func (b *Backend) Put(ctx context.Context, p string, body []byte) error {
	doc := models.Document{Path: p, Body: string(body)}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", p, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
