package service

import (
	"context"
	"errors"
	"testing"

	"loomgraph/internal/model"
)

type mockHashtagRepository struct {
	tags map[string]*model.Hashtag

	trendingFn func(ctx context.Context, limit int) ([]model.Hashtag, error)
}

func (m *mockHashtagRepository) GetByName(ctx context.Context, name string) (*model.Hashtag, error) {
	if tag, ok := m.tags[name]; ok {
		return tag, nil
	}
	return nil, model.ErrHashtagNotFound
}

func (m *mockHashtagRepository) Trending(ctx context.Context, limit int) ([]model.Hashtag, error) {
	if m.trendingFn != nil {
		return m.trendingFn(ctx, limit)
	}
	return []model.Hashtag{}, nil
}

func TestHashtagGetByName(t *testing.T) {
	ctx := context.Background()
	repo := &mockHashtagRepository{tags: map[string]*model.Hashtag{
		"golang": {UID: "h1", Name: "golang", UsageCount: 42},
	}}
	svc := NewHashtagService(repo)

	// Leading '#' and case are forgiven.
	for _, input := range []string{"golang", "#golang", " #GoLang "} {
		tag, err := svc.GetByName(ctx, input)
		if err != nil {
			t.Fatalf("GetByName(%q) failed: %v", input, err)
		}
		if tag.Name != "golang" {
			t.Errorf("GetByName(%q): got %s", input, tag.Name)
		}
	}

	if _, err := svc.GetByName(ctx, "#"); !errors.Is(err, model.ErrHashtagNotFound) {
		t.Errorf("bare #: expected ErrHashtagNotFound, got %v", err)
	}
	if _, err := svc.GetByName(ctx, "missing"); !errors.Is(err, model.ErrHashtagNotFound) {
		t.Errorf("unknown tag: expected ErrHashtagNotFound, got %v", err)
	}

	t.Log("✓ hashtag lookup normalizes its input")
}

func TestHashtagTrending_LimitClamp(t *testing.T) {
	ctx := context.Background()
	var asked int
	repo := &mockHashtagRepository{trendingFn: func(ctx context.Context, limit int) ([]model.Hashtag, error) {
		asked = limit
		return []model.Hashtag{{Name: "golang"}}, nil
	}}
	svc := NewHashtagService(repo)

	if _, err := svc.Trending(ctx, 0); err != nil {
		t.Fatalf("Trending failed: %v", err)
	}
	if asked != defaultTrendingLimit {
		t.Errorf("zero limit should default to %d, asked %d", defaultTrendingLimit, asked)
	}

	if _, err := svc.Trending(ctx, 9999); err != nil {
		t.Fatalf("Trending failed: %v", err)
	}
	if asked != maxTrendingLimit {
		t.Errorf("oversized limit should cap at %d, asked %d", maxTrendingLimit, asked)
	}

	resp, err := svc.Trending(ctx, 5)
	if err != nil {
		t.Fatalf("Trending failed: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total: got %d, want 1", resp.Total)
	}

	t.Log("✓ trending limit clamps")
}
