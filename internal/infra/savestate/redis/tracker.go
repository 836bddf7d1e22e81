// Package redis provides a SaveTracker shared between processes through a
// redis hash per project.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gencon/pkg/domain"
)

var _ domain.SaveTracker = (*Tracker)(nil)

// DefaultPrefix namespaces tracker keys.
const DefaultPrefix = "gencon:savestate:"

const (
	fieldUpdated    = "updated"
	fieldVersion    = "version"
	fieldLastFailed = "lastFailed"
	fieldLastErr    = "lastErr"
)

// Tracker stores save outcomes in redis.
type Tracker struct {
	client *redis.Client
	prefix string
}

// NewTracker connects to redisURL and verifies the connection.
func NewTracker(ctx context.Context, redisURL, prefix string) (*Tracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewTrackerWithClient(client, prefix), nil
}

// NewTrackerWithClient wraps an existing client.
func NewTrackerWithClient(client *redis.Client, prefix string) *Tracker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Tracker{client: client, prefix: prefix}
}

func (t *Tracker) key(projectID string) string {
	return t.prefix + projectID
}

// NoteSave records a successful save of version.
func (t *Tracker) NoteSave(ctx context.Context, projectID string, version int, at time.Time) error {
	if err := t.client.HSet(ctx, t.key(projectID),
		fieldUpdated, at.UnixMilli(),
		fieldVersion, version,
	).Err(); err != nil {
		return fmt.Errorf("note save %s: %w", projectID, err)
	}
	return nil
}

// NoteFailure records a failed save attempt.
func (t *Tracker) NoteFailure(ctx context.Context, projectID string, cause error, at time.Time) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := t.client.HSet(ctx, t.key(projectID),
		fieldLastFailed, at.UnixMilli(),
		fieldLastErr, msg,
	).Err(); err != nil {
		return fmt.Errorf("note failure %s: %w", projectID, err)
	}
	return nil
}

// Status reads and resolves the stored outcome.
func (t *Tracker) Status(ctx context.Context, projectID string) (domain.SaveStatus, error) {
	fields, err := t.client.HGetAll(ctx, t.key(projectID)).Result()
	if err != nil {
		return domain.SaveStatus{}, fmt.Errorf("read save state %s: %w", projectID, err)
	}
	var s domain.SaveStatus
	if s.Updated, err = parseMillis(fields[fieldUpdated]); err != nil {
		return domain.SaveStatus{}, err
	}
	if s.LastFailed, err = parseMillis(fields[fieldLastFailed]); err != nil {
		return domain.SaveStatus{}, err
	}
	if v := fields[fieldVersion]; v != "" {
		if s.Version, err = strconv.Atoi(v); err != nil {
			return domain.SaveStatus{}, fmt.Errorf("parse version %q: %w", v, err)
		}
	}
	s.LastErr = fields[fieldLastErr]
	return s.Resolve(), nil
}

// Close closes the redis connection.
func (t *Tracker) Close() error {
	return t.client.Close()
}

func parseMillis(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
