package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourorg/calibr8/internal/models"
)

type Database struct {
	DB *gorm.DB
}

// Open connects with the driver cfg names.
func Open(cfg Config) (*Database, error) {
	if cfg.IsSQLite() {
		return NewSQLite(cfg.SQLitePath)
	}
	return NewDatabase(cfg)
}

// NewDatabase connects to Postgres and migrates the catalog schema.
func NewDatabase(cfg Config) (*Database, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return open(postgres.Open(cfg.ConnString()), newLogger)
}

// NewSQLite opens a sqlite catalog, used for local runs and tests.
// Pass "file::memory:?cache=shared" (or a unique in-memory name) for a throwaway database.
func NewSQLite(path string) (*Database, error) {
	d, err := open(sqlite.Open(path), logger.Default.LogMode(logger.Silent))
	if err != nil {
		return nil, err
	}
	// a single connection keeps shared in-memory databases free of table locks
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return d, nil
}

func open(dialector gorm.Dialector, l logger.Interface) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   l,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("error getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}
