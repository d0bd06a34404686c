package repository

import "context"

// SubscriptionRepository defines persistence for subscriber/channel edges
// and the derived counts the channel profile query needs.
type SubscriptionRepository interface {
	Init(ctx context.Context) error
	Subscribe(ctx context.Context, subscriberID, channelID int64) error
	Unsubscribe(ctx context.Context, subscriberID, channelID int64) error
	IsSubscribed(ctx context.Context, subscriberID, channelID int64) (bool, error)
	CountSubscribers(ctx context.Context, channelID int64) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID int64) (int64, error)
}
