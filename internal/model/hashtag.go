package model

import (
	"errors"
	"strings"
	"time"
)

// Hashtag represents a hashtag node. Usage is derived from TAGGED_WITH
// edges; trending looks at the last day's worth of tagged posts.
type Hashtag struct {
	UID           string    `json:"uid"`
	Name          string    `json:"name"` // lowercase, no leading '#'
	UsageCount    int       `json:"usage_count"`
	TrendingScore int       `json:"trending_score"`
	IsTrending    bool      `json:"is_trending"`
	CreatedAt     time.Time `json:"created_at"`
}

// HashtagListResponse is the paginated hashtag list response.
type HashtagListResponse struct {
	Hashtags []Hashtag `json:"hashtags"`
	Total    int       `json:"total"`
}

// A hashtag is trending when more than this many posts used it today.
const TrendingThreshold = 10

// NormalizeHashtags lowercases tags and strips a leading "#".
// Empty entries and duplicates are dropped, order preserved.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t)), "#")
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Hashtag errors
var (
	ErrHashtagNotFound = errors.New("hashtag not found")
)
