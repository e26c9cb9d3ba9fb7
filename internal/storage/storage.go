package storage

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pulse/backend/internal/models"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Service bundles the three backing stores of the application: Postgres for
// accounts and posts, Redis for shared realtime state and caching, MySQL for
// analytics.
type Service struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Analytics *sqlx.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, analytics *sqlx.DB) *Service {
	return &Service{
		DB:        db,
		Redis:     rdb,
		Analytics: analytics,
	}
}

// OpenPostgres connects gorm to Postgres and migrates the relational schema.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the users and posts tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Post{})
}

// OpenRedis connects to Redis and checks the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// OpenMySQL connects sqlx to the analytics database.
func OpenMySQL(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	return db, nil
}

// Close releases every open store. Errors are logged and the first is returned.
func (s *Service) Close() error {
	var first error
	record := func(name string, err error) {
		if err == nil {
			return
		}
		log.Printf("ERROR: closing %s: %v", name, err)
		if first == nil {
			first = err
		}
	}

	if s.Redis != nil {
		record("redis", s.Redis.Close())
	}
	if s.Analytics != nil {
		record("mysql", s.Analytics.Close())
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			record("postgres", sqlDB.Close())
		}
	}
	return first
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
