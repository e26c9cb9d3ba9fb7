package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"pulse/backend/internal/config"
	"pulse/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	lastSeenField = "lastSeen"
	socketIDField = "socketId"
)

// PresenceStore tracks online users in a Redis set and keeps a per-user
// hash with the last-seen time. The set and the hash are written by separate
// commands; there is no transaction across them.
type PresenceStore struct {
	rdb       *redis.Client
	onlineKey string
	now       func() time.Time
}

func NewPresenceStore(rdb *redis.Client) *PresenceStore {
	return &PresenceStore{
		rdb:       rdb,
		onlineKey: config.OnlineUsersKey,
		now:       time.Now,
	}
}

func userKey(userID string) string {
	return "user:" + userID
}

// MarkOnline adds userID to the online set and stamps its record. Safe to repeat.
func (p *PresenceStore) MarkOnline(ctx context.Context, userID, sessionID string) error {
	if err := p.rdb.SAdd(ctx, p.onlineKey, userID).Err(); err != nil {
		return err
	}
	return p.rdb.HSet(ctx, userKey(userID),
		socketIDField, sessionID,
		lastSeenField, strconv.FormatInt(p.now().UnixMilli(), 10),
	).Err()
}

// MarkOffline removes userID from the online set. The record is kept with an
// updated last-seen time.
func (p *PresenceStore) MarkOffline(ctx context.Context, userID string) error {
	if err := p.rdb.SRem(ctx, p.onlineKey, userID).Err(); err != nil {
		return err
	}
	return p.rdb.HSet(ctx, userKey(userID), lastSeenField, strconv.FormatInt(p.now().UnixMilli(), 10)).Err()
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.rdb.SIsMember(ctx, p.onlineKey, userID).Result()
}

// Get assembles the presence record of a user. Unknown users come back
// offline with no last-seen time.
func (p *PresenceStore) Get(ctx context.Context, userID string) (models.PresenceRecord, error) {
	record := models.PresenceRecord{UserID: userID}

	online, err := p.IsOnline(ctx, userID)
	if err != nil {
		return record, err
	}
	record.Online = online

	fields, err := p.rdb.HGetAll(ctx, userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return record, err
	}
	if ms, err := strconv.ParseInt(fields[lastSeenField], 10, 64); err == nil {
		seen := time.UnixMilli(ms).UTC()
		record.LastSeenAt = &seen
	}
	record.SessionID = fields[socketIDField]
	return record, nil
}

// Online lists the members of the online set in no particular order.
func (p *PresenceStore) Online(ctx context.Context) ([]string, error) {
	return p.rdb.SMembers(ctx, p.onlineKey).Result()
}
