package service

import (
	"context"
	"strings"

	"loomgraph/internal/model"
	"loomgraph/internal/repository"
)

const (
	defaultTrendingLimit = 10
	maxTrendingLimit     = 50
)

// HashtagService serves hashtag lookups and the trending list.
type HashtagService struct {
	hashtagRepo repository.HashtagRepository
}

func NewHashtagService(hashtagRepo repository.HashtagRepository) *HashtagService {
	return &HashtagService{hashtagRepo: hashtagRepo}
}

// GetByName looks up a hashtag. Accepts "#golang" and "golang" alike.
func (s *HashtagService) GetByName(ctx context.Context, name string) (*model.Hashtag, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "#")
	if name == "" {
		return nil, model.ErrHashtagNotFound
	}
	return s.hashtagRepo.GetByName(ctx, name)
}

// Trending returns the hashtags with the most tagged posts over the last day.
func (s *HashtagService) Trending(ctx context.Context, limit int) (*model.HashtagListResponse, error) {
	if limit <= 0 {
		limit = defaultTrendingLimit
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}
	tags, err := s.hashtagRepo.Trending(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &model.HashtagListResponse{Hashtags: tags, Total: len(tags)}, nil
}
