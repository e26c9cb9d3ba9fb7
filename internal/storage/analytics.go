package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"pulse/backend/internal/models"

	"github.com/jmoiron/sqlx"
)

var analyticsSchema = []string{
	`CREATE TABLE IF NOT EXISTS analytics (
		id INT AUTO_INCREMENT PRIMARY KEY,
		event_type VARCHAR(100) NOT NULL,
		user_id VARCHAR(36),
		metadata JSON,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_sessions (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		ip_address VARCHAR(45),
		user_agent TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NULL
	)`,
}

// AnalyticsStore writes usage events to the MySQL analytics database.
type AnalyticsStore struct {
	db *sqlx.DB
}

func NewAnalyticsStore(db *sqlx.DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// Migrate creates the analytics tables if they are missing.
func (a *AnalyticsStore) Migrate(ctx context.Context) error {
	for _, stmt := range analyticsSchema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("analytics migration: %w", err)
		}
	}
	return nil
}

// Track inserts one analytics row. Empty userID is stored as NULL.
func (a *AnalyticsStore) Track(ctx context.Context, eventType, userID string, metadata map[string]any) error {
	var meta any
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(data)
	}

	userCol := sql.NullString{String: userID, Valid: userID != ""}
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO analytics (event_type, user_id, metadata) VALUES (?, ?, ?)",
		eventType, userCol, meta,
	)
	return err
}

func (a *AnalyticsStore) RecordSession(ctx context.Context, session models.UserSession) error {
	_, err := a.db.NamedExecContext(ctx,
		`INSERT INTO user_sessions (user_id, ip_address, user_agent, created_at, expires_at)
		VALUES (:user_id, :ip_address, :user_agent, :created_at, :expires_at)`,
		session,
	)
	return err
}

// CountByType aggregates analytics rows per event type, most frequent first.
func (a *AnalyticsStore) CountByType(ctx context.Context) ([]models.EventCount, error) {
	var counts []models.EventCount
	err := a.db.SelectContext(ctx, &counts,
		"SELECT event_type, COUNT(*) AS count FROM analytics GROUP BY event_type ORDER BY count DESC",
	)
	return counts, err
}
