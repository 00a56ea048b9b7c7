package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loomgraph/internal/cache"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/queue"
)

// fanOutConcurrency caps the parallel cache writes per event.
const fanOutConcurrency = 8

// FollowerProvider abstracts the follower lookup so workers don't
// depend on the repository package directly.
type FollowerProvider interface {
	FollowerUIDs(ctx context.Context, uid string) ([]string, error)
}

// RecentPostsProvider fetches a user's recent posts for backfilling
// a feed after a follow.
type RecentPostsProvider interface {
	RecentByAuthor(ctx context.Context, authorUID string, limit int) ([]model.Post, error)
}

// Handler processes feed events from the queue.
type Handler struct {
	feedCache cache.FeedCache
	followers FollowerProvider
	posts     RecentPostsProvider
}

// NewHandler creates a new event handler.
func NewHandler(feedCache cache.FeedCache, followers FollowerProvider, posts RecentPostsProvider) *Handler {
	return &Handler{
		feedCache: feedCache,
		followers: followers,
		posts:     posts,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.FeedEvent) error {
	switch event.Type {
	case queue.EventPostCreated:
		return h.handlePostCreated(ctx, event)
	case queue.EventPostDeleted:
		return h.handlePostDeleted(ctx, event)
	case queue.EventUserFollowed:
		return h.handleUserFollowed(ctx, event)
	case queue.EventUserUnfollowed:
		return h.handleUserUnfollowed(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// fanOut runs op for every uid with bounded concurrency. Individual
// failures are counted, not fatal: one broken cache entry must not
// wedge the whole fan-out.
func (h *Handler) fanOut(ctx context.Context, uids []string, op func(ctx context.Context, uid string) error) int64 {
	var failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutConcurrency)
	for _, uid := range uids {
		uid := uid
		g.Go(func() error {
			if err := op(ctx, uid); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	return failed.Load()
}

// handlePostCreated fans the new post out to every follower's feed
// cache. The author's own feed is left alone: the home feed shows
// followed users, not yourself.
func (h *Handler) handlePostCreated(ctx context.Context, event queue.FeedEvent) error {
	followers, err := h.followers.FollowerUIDs(ctx, event.AuthorUID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	score := event.PostCreatedAt
	if score == 0 {
		score = event.Timestamp
	}
	failed := h.fanOut(ctx, followers, func(ctx context.Context, uid string) error {
		return h.feedCache.AddPost(ctx, uid, event.PostUID, score)
	})

	logger.Get().Info("post fanned out",
		zap.String("post_uid", event.PostUID),
		zap.Int("followers", len(followers)),
		zap.Int64("failed", failed))
	return nil
}

// handlePostDeleted removes a post from all followers' feed caches.
func (h *Handler) handlePostDeleted(ctx context.Context, event queue.FeedEvent) error {
	followers, err := h.followers.FollowerUIDs(ctx, event.AuthorUID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	failed := h.fanOut(ctx, followers, func(ctx context.Context, uid string) error {
		return h.feedCache.RemovePost(ctx, uid, event.PostUID)
	})

	logger.Get().Info("post removed from feeds",
		zap.String("post_uid", event.PostUID),
		zap.Int("followers", len(followers)),
		zap.Int64("failed", failed))
	return nil
}

// handleUserFollowed backfills the follower's feed with the followee's
// recent posts so a fresh follow shows up immediately. Only a warm
// cache gets the backfill: writing into an absent key would leave a
// partial feed that the read path mistakes for a complete one, so a
// cold cache waits for the next read to warm fully from the graph.
func (h *Handler) handleUserFollowed(ctx context.Context, event queue.FeedEvent) error {
	const backfillLimit = 20

	exists, err := h.feedCache.Exists(ctx, event.FollowerUID)
	if err != nil {
		return fmt.Errorf("check feed cache: %w", err)
	}
	if !exists {
		return nil
	}

	posts, err := h.posts.RecentByAuthor(ctx, event.FolloweeUID, backfillLimit)
	if err != nil {
		return fmt.Errorf("get recent posts: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	scores := make([]cache.PostScore, len(posts))
	for i, p := range posts {
		scores[i] = cache.PostScore{PostUID: p.UID, Timestamp: p.CreatedAt.UnixMilli()}
	}
	if err := h.feedCache.WarmCache(ctx, event.FollowerUID, scores); err != nil {
		return fmt.Errorf("backfill feed: %w", err)
	}

	logger.Get().Info("feed backfilled after follow",
		zap.String("follower_uid", event.FollowerUID),
		zap.String("followee_uid", event.FolloweeUID),
		zap.Int("posts", len(posts)))
	return nil
}

// handleUserUnfollowed drops the follower's whole cached feed. Removing
// the followee's posts one by one can't reach entries older than any
// recency window, and a friends-only post must not outlive the follow
// edge, so the cache is invalidated and the next read rebuilds it from
// the graph.
func (h *Handler) handleUserUnfollowed(ctx context.Context, event queue.FeedEvent) error {
	if err := h.feedCache.Invalidate(ctx, event.FollowerUID); err != nil {
		return fmt.Errorf("invalidate feed: %w", err)
	}

	logger.Get().Info("feed invalidated after unfollow",
		zap.String("follower_uid", event.FollowerUID),
		zap.String("followee_uid", event.FolloweeUID))
	return nil
}
