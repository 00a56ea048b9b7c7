package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the feed stream
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventUserFollowed   = "user_followed"
	EventUserUnfollowed = "user_unfollowed"
)

// Stream names
const (
	StreamFeed = "stream:feed"
)

// Consumer group name for feed workers
const (
	ConsumerGroupFeed = "feed_workers"
)

// FeedEvent represents an event published to the feed stream.
// All feed-related events share this structure. Timestamps are unix
// milliseconds, matching the feed cache score unit.
type FeedEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	// Post events (PostCreated, PostDeleted). PostCreatedAt carries the
	// post's creation time so the fan-out can score it correctly.
	PostUID       string `json:"post_uid,omitempty"`
	AuthorUID     string `json:"author_uid,omitempty"`
	PostCreatedAt int64  `json:"post_created_at,omitempty"`

	// Follow events (UserFollowed, UserUnfollowed)
	FollowerUID string `json:"follower_uid,omitempty"`
	FolloweeUID string `json:"followee_uid,omitempty"`
}

// NewPostCreatedEvent creates an event for when a user creates a post.
// Worker will fan-out this post to all followers' feed caches.
func NewPostCreatedEvent(postUID, authorUID string, createdAt time.Time) FeedEvent {
	return FeedEvent{
		Type:          EventPostCreated,
		Timestamp:     time.Now().UnixMilli(),
		PostUID:       postUID,
		AuthorUID:     authorUID,
		PostCreatedAt: createdAt.UnixMilli(),
	}
}

// NewPostDeletedEvent creates an event for when a user deletes a post.
// Worker will remove this post from all followers' feed caches.
func NewPostDeletedEvent(postUID, authorUID string) FeedEvent {
	return FeedEvent{
		Type:      EventPostDeleted,
		Timestamp: time.Now().UnixMilli(),
		PostUID:   postUID,
		AuthorUID: authorUID,
	}
}

// NewUserFollowedEvent creates an event for when a user follows another.
// Worker will backfill recent posts from followee into follower's feed cache.
func NewUserFollowedEvent(followerUID, followeeUID string) FeedEvent {
	return FeedEvent{
		Type:        EventUserFollowed,
		Timestamp:   time.Now().UnixMilli(),
		FollowerUID: followerUID,
		FolloweeUID: followeeUID,
	}
}

// NewUserUnfollowedEvent creates an event for when a user unfollows another.
// Worker will remove followee's posts from follower's feed cache.
func NewUserUnfollowedEvent(followerUID, followeeUID string) FeedEvent {
	return FeedEvent{
		Type:        EventUserUnfollowed,
		Timestamp:   time.Now().UnixMilli(),
		FollowerUID: followerUID,
		FolloweeUID: followeeUID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e FeedEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseFeedEvent parses a FeedEvent from Redis stream message values.
func ParseFeedEvent(values map[string]interface{}) (FeedEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return FeedEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event FeedEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return FeedEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
