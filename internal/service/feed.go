package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loomgraph/internal/cache"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/repository"
)

// FeedService serves the home feed read-through: post uids come from
// the Redis sorted set, hydration and re-filtering from the graph. A
// cold or broken cache falls back to the graph query, so the feed
// never depends on Redis being up.
type FeedService struct {
	feedCache cache.FeedCache
	postRepo  repository.PostRepository
}

func NewFeedService(feedCache cache.FeedCache, postRepo repository.PostRepository) *FeedService {
	return &FeedService{
		feedCache: feedCache,
		postRepo:  postRepo,
	}
}

// GetFeed returns a page of the user's home feed, newest first.
//
// Flow:
//  1. Warm the cache from the graph if it is cold.
//  2. Page post uids out of the sorted set by rank.
//  3. Hydrate from the graph, which re-applies visibility and
//     archival filters so stale cache rows drop out silently.
func (s *FeedService) GetFeed(ctx context.Context, userUID string, skip, limit int) (*model.PostListResponse, error) {
	start := time.Now()
	skip, limit = normalizePage(skip, limit)

	exists, err := s.feedCache.Exists(ctx, userUID)
	if err != nil {
		logger.Get().Warn("feed cache check failed, serving from graph",
			zap.String("user_uid", userUID), zap.Error(err))
		return s.fromGraph(ctx, userUID, skip, limit)
	}
	if !exists {
		if err := s.warmCache(ctx, userUID); err != nil {
			logger.Get().Warn("feed cache warm failed, serving from graph",
				zap.String("user_uid", userUID), zap.Error(err))
			return s.fromGraph(ctx, userUID, skip, limit)
		}
	}

	uids, err := s.feedCache.GetFeed(ctx, userUID, skip, limit)
	if err != nil {
		logger.Get().Warn("feed cache read failed, serving from graph",
			zap.String("user_uid", userUID), zap.Error(err))
		return s.fromGraph(ctx, userUID, skip, limit)
	}
	if len(uids) == 0 {
		return &model.PostListResponse{Posts: []model.Post{}}, nil
	}

	posts, err := s.postRepo.FeedByUIDs(ctx, userUID, uids)
	if err != nil {
		return nil, err
	}

	logger.Get().Debug("feed served from cache",
		zap.String("user_uid", userUID),
		zap.Int("posts", len(posts)),
		zap.Duration("duration", time.Since(start)))

	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// Refresh drops and rebuilds the caller's feed cache.
func (s *FeedService) Refresh(ctx context.Context, userUID string) error {
	if err := s.feedCache.Invalidate(ctx, userUID); err != nil {
		return err
	}
	return s.warmCache(ctx, userUID)
}

// warmCache fills the sorted set from the graph, up to the cache cap.
// A user who follows nobody warms to nothing; the next request walks
// the same path, which is fine because the graph query is also empty.
func (s *FeedService) warmCache(ctx context.Context, userUID string) error {
	posts, err := s.postRepo.Feed(ctx, userUID, 0, cache.FeedCacheCap)
	if err != nil {
		return fmt.Errorf("load feed for warmup: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	scores := make([]cache.PostScore, len(posts))
	for i, p := range posts {
		scores[i] = cache.PostScore{PostUID: p.UID, Timestamp: p.CreatedAt.UnixMilli()}
	}
	return s.feedCache.WarmCache(ctx, userUID, scores)
}

func (s *FeedService) fromGraph(ctx context.Context, userUID string, skip, limit int) (*model.PostListResponse, error) {
	posts, err := s.postRepo.Feed(ctx, userUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}
