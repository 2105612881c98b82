// Package store persists ownership records in a relational table.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// Options configures Open.
type Options struct {
	Table           string
	LogLevel        logger.LogLevel
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *zerolog.Logger
}

// Store writes ownership records through a single gorm handle.
type Store struct {
	db    *gorm.DB
	table string
}

// Open connects to PostgreSQL at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Error
	}
	// Sweeps write serially; one connection is enough.
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 1
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 1
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(opts.Logger, opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return New(db, opts.Table), nil
}

// New wraps an existing gorm handle. An empty table selects DefaultTable.
func New(db *gorm.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

// Table returns the table records are written to.
func (s *Store) Table() string {
	return s.table
}

// Migrate creates the table and its unique index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&OwnershipRecord{}); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Upsert inserts r, or updates customer_name and resource_type of the row
// with the same (customer_alias, resource_id, resource_type). The statement
// runs in its own transaction and is rolled back on error.
func (s *Store) Upsert(ctx context.Context, r resource.Record) error {
	row := fromRecord(r)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(s.table).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "customer_alias"},
					{Name: "resource_id"},
					{Name: "resource_type"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"customer_name", "resource_type"}),
			}).
			Create(&row).
			Error
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", r.Key(), err)
	}
	return nil
}

// List returns every stored record ordered by id.
func (s *Store) List(ctx context.Context) ([]resource.Record, error) {
	var rows []OwnershipRecord
	if err := s.db.WithContext(ctx).Table(s.table).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}

	records := make([]resource.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newGormLogger(zl *zerolog.Logger, level logger.LogLevel) logger.Interface {
	if zl == nil {
		return logger.Default.LogMode(level)
	}
	return logger.New(zl, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
