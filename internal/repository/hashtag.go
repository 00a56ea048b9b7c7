package repository

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

type hashtagRepository struct {
	driver neo4j.DriverWithContext
}

func NewHashtagRepository(driver neo4j.DriverWithContext) HashtagRepository {
	return &hashtagRepository{driver: driver}
}

func hashtagFromNode(props map[string]interface{}) *model.Hashtag {
	return &model.Hashtag{
		UID:           getStringFromMap(props, "uid"),
		Name:          getStringFromMap(props, "name"),
		UsageCount:    getIntFromMap(props, "usage_count"),
		TrendingScore: getIntFromMap(props, "trending_score"),
		IsTrending:    getBoolFromMap(props, "is_trending"),
		CreatedAt:     getTimeFromMap(props, "created_at"),
	}
}

func (r *hashtagRepository) GetByName(ctx context.Context, name string) (*model.Hashtag, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `MATCH (h:Hashtag {name: $name}) RETURN h`, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to get hashtag: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, model.ErrHashtagNotFound
	}
	node, ok := getNodeFromRecord(record, "h")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for hashtag")
	}
	return hashtagFromNode(node.Props), nil
}

// Trending lists hashtags by their last-day score. The scores are kept
// current by the recompute that runs whenever a post touches a tag.
func (r *hashtagRepository) Trending(ctx context.Context, limit int) ([]model.Hashtag, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (h:Hashtag)
		WHERE h.trending_score > 0
		RETURN h
		ORDER BY h.trending_score DESC, h.usage_count DESC, h.name ASC
		LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list trending hashtags: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	tags := make([]model.Hashtag, 0, len(records))
	for _, record := range records {
		node, ok := getNodeFromRecord(record, "h")
		if !ok {
			continue
		}
		tags = append(tags, *hashtagFromNode(node.Props))
	}
	return tags, nil
}
