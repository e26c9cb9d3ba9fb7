package models

import (
	"database/sql"
	"time"
)

// Analytics event types written by the account service.
const (
	EventUserRegistered = "user_registered"
	EventUserLogin      = "user_login"
	EventUserLogout     = "user_logout"
)

// AnalyticsEvent is a row of the MySQL analytics table.
type AnalyticsEvent struct {
	ID        int64          `db:"id" json:"id"`
	EventType string         `db:"event_type" json:"event_type"`
	UserID    sql.NullString `db:"user_id" json:"-"`
	Metadata  []byte         `db:"metadata" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// UserSession records a successful password login.
type UserSession struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// EventCount is an aggregate of analytics rows per event type.
type EventCount struct {
	EventType string `db:"event_type" json:"event_type"`
	Count     int64  `db:"count" json:"count"`
}
