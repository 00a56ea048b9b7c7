package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loomgraph/internal/cache"
	"loomgraph/internal/model"
)

// mockFeedCache is a function-field FeedCache. The zero value acts
// like a cold cache that accepts writes.
type mockFeedCache struct {
	getFeedFn    func(ctx context.Context, userUID string, skip, limit int) ([]string, error)
	existsFn     func(ctx context.Context, userUID string) (bool, error)
	warmFn       func(ctx context.Context, userUID string, posts []cache.PostScore) error
	invalidateFn func(ctx context.Context, userUID string) error

	warmCalls       [][]cache.PostScore
	invalidateCalls []string
}

func (m *mockFeedCache) AddPost(ctx context.Context, userUID, postUID string, timestamp int64) error {
	return nil
}

func (m *mockFeedCache) RemovePost(ctx context.Context, userUID, postUID string) error {
	return nil
}

func (m *mockFeedCache) GetFeed(ctx context.Context, userUID string, skip, limit int) ([]string, error) {
	if m.getFeedFn != nil {
		return m.getFeedFn(ctx, userUID, skip, limit)
	}
	return nil, nil
}

func (m *mockFeedCache) WarmCache(ctx context.Context, userUID string, posts []cache.PostScore) error {
	m.warmCalls = append(m.warmCalls, posts)
	if m.warmFn != nil {
		return m.warmFn(ctx, userUID, posts)
	}
	return nil
}

func (m *mockFeedCache) Size(ctx context.Context, userUID string) (int64, error) {
	return 0, nil
}

func (m *mockFeedCache) Exists(ctx context.Context, userUID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, userUID)
	}
	return false, nil
}

func (m *mockFeedCache) Invalidate(ctx context.Context, userUID string) error {
	m.invalidateCalls = append(m.invalidateCalls, userUID)
	if m.invalidateFn != nil {
		return m.invalidateFn(ctx, userUID)
	}
	return nil
}

func feedPosts(uids ...string) []model.Post {
	base := time.Now().UTC()
	posts := make([]model.Post, len(uids))
	for i, uid := range uids {
		p := *testPost(uid, "author")
		p.CreatedAt = base.Add(-time.Duration(i) * time.Minute)
		posts[i] = p
	}
	return posts
}

func TestGetFeed_ColdCacheWarmsFromGraph(t *testing.T) {
	ctx := context.Background()
	graph := feedPosts("p2", "p1")

	postRepo := newMockPostRepository()
	postRepo.feedFn = func(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
		return graph, nil
	}
	postRepo.feedByUIDsFn = func(ctx context.Context, viewerUID string, uids []string) ([]model.Post, error) {
		if len(uids) != 2 || uids[0] != "p2" || uids[1] != "p1" {
			t.Errorf("hydration asked for %v", uids)
		}
		return graph, nil
	}

	fc := &mockFeedCache{}
	fc.getFeedFn = func(ctx context.Context, userUID string, skip, limit int) ([]string, error) {
		return []string{"p2", "p1"}, nil
	}

	svc := NewFeedService(fc, postRepo)
	resp, err := svc.GetFeed(ctx, "u1", 0, 20)
	if err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if len(resp.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(resp.Posts))
	}

	// The cold cache was warmed with millisecond scores from the graph.
	if len(fc.warmCalls) != 1 {
		t.Fatalf("expected 1 warm call, got %d", len(fc.warmCalls))
	}
	scores := fc.warmCalls[0]
	if len(scores) != 2 || scores[0].PostUID != "p2" {
		t.Errorf("unexpected warm payload: %v", scores)
	}
	if scores[0].Timestamp != graph[0].CreatedAt.UnixMilli() {
		t.Errorf("score %d != creation ms %d", scores[0].Timestamp, graph[0].CreatedAt.UnixMilli())
	}

	t.Log("✓ cold cache warms from the graph then serves")
}

func TestGetFeed_WarmCacheSkipsGraphList(t *testing.T) {
	ctx := context.Background()
	postRepo := newMockPostRepository()
	postRepo.feedByUIDsFn = func(ctx context.Context, viewerUID string, uids []string) ([]model.Post, error) {
		return feedPosts(uids...), nil
	}

	fc := &mockFeedCache{}
	fc.existsFn = func(ctx context.Context, userUID string) (bool, error) { return true, nil }
	fc.getFeedFn = func(ctx context.Context, userUID string, skip, limit int) ([]string, error) {
		return []string{"p1"}, nil
	}

	svc := NewFeedService(fc, postRepo)
	resp, err := svc.GetFeed(ctx, "u1", 0, 20)
	if err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if len(resp.Posts) != 1 {
		t.Errorf("expected 1 post, got %d", len(resp.Posts))
	}
	if postRepo.feedCalls != 0 {
		t.Errorf("warm cache should not run the graph feed query, ran %d", postRepo.feedCalls)
	}
	if len(fc.warmCalls) != 0 {
		t.Error("warm cache should not re-warm")
	}

	t.Log("✓ warm cache serves without the graph feed query")
}

func TestGetFeed_CacheErrorFallsBackToGraph(t *testing.T) {
	ctx := context.Background()
	graph := feedPosts("p1")
	postRepo := newMockPostRepository()
	postRepo.feedFn = func(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
		return graph, nil
	}

	fc := &mockFeedCache{}
	fc.existsFn = func(ctx context.Context, userUID string) (bool, error) {
		return false, errors.New("redis down")
	}

	svc := NewFeedService(fc, postRepo)
	resp, err := svc.GetFeed(ctx, "u1", 0, 20)
	if err != nil {
		t.Fatalf("GetFeed should degrade, got %v", err)
	}
	if len(resp.Posts) != 1 {
		t.Errorf("expected the graph result, got %d posts", len(resp.Posts))
	}

	t.Log("✓ a broken cache degrades to the graph")
}

func TestGetFeed_ReadErrorFallsBackToGraph(t *testing.T) {
	ctx := context.Background()
	graph := feedPosts("p1")
	postRepo := newMockPostRepository()
	postRepo.feedFn = func(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
		return graph, nil
	}

	fc := &mockFeedCache{}
	fc.existsFn = func(ctx context.Context, userUID string) (bool, error) { return true, nil }
	fc.getFeedFn = func(ctx context.Context, userUID string, skip, limit int) ([]string, error) {
		return nil, errors.New("read timeout")
	}

	svc := NewFeedService(fc, postRepo)
	resp, err := svc.GetFeed(ctx, "u1", 0, 20)
	if err != nil {
		t.Fatalf("GetFeed should degrade, got %v", err)
	}
	if len(resp.Posts) != 1 {
		t.Errorf("expected the graph result, got %d posts", len(resp.Posts))
	}

	t.Log("✓ a failed cache read degrades to the graph")
}

func TestGetFeed_EmptyFeed(t *testing.T) {
	ctx := context.Background()
	hydrated := false
	postRepo := newMockPostRepository()
	postRepo.feedByUIDsFn = func(ctx context.Context, viewerUID string, uids []string) ([]model.Post, error) {
		hydrated = true
		return nil, nil
	}

	fc := &mockFeedCache{}
	fc.existsFn = func(ctx context.Context, userUID string) (bool, error) { return true, nil }

	svc := NewFeedService(fc, postRepo)
	resp, err := svc.GetFeed(ctx, "u1", 0, 20)
	if err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if len(resp.Posts) != 0 {
		t.Errorf("expected an empty feed, got %d posts", len(resp.Posts))
	}
	if hydrated {
		t.Error("nothing to hydrate for an empty page")
	}

	t.Log("✓ an empty warm cache serves an empty page")
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	postRepo := newMockPostRepository()
	postRepo.feedFn = func(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
		if limit != cache.FeedCacheCap {
			t.Errorf("warmup should load up to the cache cap, asked for %d", limit)
		}
		return feedPosts("p1"), nil
	}

	fc := &mockFeedCache{}
	svc := NewFeedService(fc, postRepo)

	if err := svc.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(fc.invalidateCalls) != 1 || fc.invalidateCalls[0] != "u1" {
		t.Errorf("expected one invalidation for u1, got %v", fc.invalidateCalls)
	}
	if len(fc.warmCalls) != 1 {
		t.Errorf("expected one warm call, got %d", len(fc.warmCalls))
	}

	t.Log("✓ refresh drops and rebuilds the cache")
}
