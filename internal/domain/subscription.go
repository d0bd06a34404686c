package domain

import "time"

// Subscription is an edge between a subscribing user and a channel
// (a user viewed as the target of subscriptions).
type Subscription struct {
	ID           int64
	SubscriberID int64
	ChannelID    int64
	CreatedAt    time.Time
}

// ChannelProfile is the aggregated public view of a user as a channel,
// including derived subscription counts for a given viewer.
type ChannelProfile struct {
	ID                int64
	Username          string
	Email             string
	FullName          string
	AvatarURL         string
	CoverImageURL     string
	SubscriberCount   int64
	SubscribedToCount int64
	IsSubscribed      bool
}
