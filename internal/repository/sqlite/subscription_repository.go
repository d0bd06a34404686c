package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vidstream/internal/repository"
)

const createSubscriptionsTable = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subscriber_id INTEGER NOT NULL REFERENCES users(id),
	channel_id INTEGER NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	UNIQUE (subscriber_id, channel_id)
);
`

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) repository.SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSubscriptionsTable); err != nil {
		return fmt.Errorf("create subscriptions table: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Subscribe(ctx context.Context, subscriberID, channelID int64) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO subscriptions (subscriber_id, channel_id, created_at)
VALUES (?, ?, ?)`,
		subscriberID, channelID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, subscriberID, channelID int64) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`,
		subscriberID, channelID,
	)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) IsSubscribed(ctx context.Context, subscriberID, channelID int64) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM subscriptions WHERE subscriber_id = ? AND channel_id = ?`,
		subscriberID, channelID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return n > 0, nil
}

func (r *SubscriptionRepository) CountSubscribers(ctx context.Context, channelID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM subscriptions WHERE channel_id = ?`, channelID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

func (r *SubscriptionRepository) CountSubscribedTo(ctx context.Context, subscriberID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM subscriptions WHERE subscriber_id = ?`, subscriberID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subscribed-to channels: %w", err)
	}
	return n, nil
}
