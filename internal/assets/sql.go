package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Asset is one stored sigil row.
type Asset struct {
	Name      string    `gorm:"primaryKey;size:255"`
	Data      []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName sets the table name.
func (*Asset) TableName() string {
	return "sigil_assets"
}

// SQLStore keeps sigils in a SQLite database. Built-in sigils are seeded
// rows; uploads are rows whose name carries the custom prefix.
type SQLStore struct {
	db   *gorm.DB
	opts Options
	log  *slog.Logger
}

var (
	_ Store   = (*SQLStore)(nil)
	_ Sweeper = (*SQLStore)(nil)
)

// OpenSQLStore opens (creating if needed) the database at path and migrates
// the asset table.
func OpenSQLStore(path string, opts Options, log *slog.Logger) (*SQLStore, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sigil database: %w", err)
	}
	if err := db.AutoMigrate(&Asset{}); err != nil {
		return nil, fmt.Errorf("failed to create sigil_assets table: %w", err)
	}
	log.Info("using SQLite sigil store", "path", path)
	return &SQLStore{db: db, opts: opts.withDefaults(), log: log}, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Seed inserts or replaces a built-in sigil.
func (s *SQLStore) Seed(ctx context.Context, name string, data []byte) error {
	if !validName(name) || strings.HasPrefix(name, CustomPrefix) {
		return fmt.Errorf("invalid built-in sigil name %q", name)
	}
	if len(data) == 0 {
		return ErrEmpty
	}
	row := Asset{Name: name, Data: data, CreatedAt: s.opts.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to seed sigil %q: %w", name, err)
	}
	return nil
}

// SeedDir seeds every image file in dir as a built-in sigil and returns how
// many were stored. A missing directory seeds nothing.
func (s *SQLStore) SeedDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading sigil directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !IsImageName(e.Name()) || strings.HasPrefix(e.Name(), CustomPrefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("error reading sigil %q: %w", e.Name(), err)
		}
		if len(data) == 0 {
			s.log.Warn("skipping empty sigil file", "name", e.Name())
			continue
		}
		if err := s.Seed(ctx, e.Name(), data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ListNames returns the built-in sigils.
func (s *SQLStore) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&Asset{}).
		Where("name NOT LIKE ?", CustomPrefix+"%").
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("error listing sigils: %w", err)
	}
	return names, nil
}

// Fetch returns the named sigil.
func (s *SQLStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	var row Asset
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading sigil %q: %w", name, err)
	}
	return row.Data, nil
}

// Put stores an upload under a generated custom name.
func (s *SQLStore) Put(ctx context.Context, originalName string, data []byte) (string, error) {
	if err := s.opts.check(data); err != nil {
		return "", err
	}
	now := s.opts.Now()
	row := Asset{Name: CustomName(now, originalName), Data: data, CreatedAt: now}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("error uploading sigil: %w", err)
	}
	s.log.Info("stored custom sigil", "name", row.Name, "bytes", len(data))
	return row.Name, nil
}

// Sweep deletes uploads older than the TTL.
func (s *SQLStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("name LIKE ? AND created_at < ?", CustomPrefix+"%", now.Add(-s.opts.TTL)).
		Delete(&Asset{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep sigils: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
