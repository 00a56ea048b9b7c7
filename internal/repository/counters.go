package repository

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

// Counter maintenance. Counters are never incremented in place; every
// mutation that touches a counted edge set re-counts it from the graph
// inside the same transaction. These fragments run on a
// ManagedTransaction so callers compose them with the edge writes.

const recomputeUserCountersCypher = `
MATCH (u:User {uid: $uid})
OPTIONAL MATCH (u)<-[f:FOLLOWS]-(:User)
WITH u, count(f) AS followers
OPTIONAL MATCH (u)-[g:FOLLOWS]->(:User)
WITH u, followers, count(g) AS following
OPTIONAL MATCH (u)-[p:POSTED]->(:Post)
WITH u, followers, following, count(p) AS posts
SET u.followers_count = followers,
    u.following_count = following,
    u.posts_count = posts
RETURN followers, following, posts`

const recomputePostCountersCypher = `
MATCH (p:Post {uid: $uid})
OPTIONAL MATCH (p)<-[l:LIKED]-(:User)
WITH p, count(l) AS likes
OPTIONAL MATCH (p)-[c:HAS_COMMENT]->(:Comment)
WITH p, likes, count(c) AS comments
OPTIONAL MATCH (p)<-[s:SHARES]-(:Post)
WITH p, likes, comments, count(s) AS shares
SET p.likes_count = likes,
    p.comments_count = comments,
    p.shares_count = shares
RETURN likes, comments, shares`

const recomputeCommentCountersCypher = `
MATCH (c:Comment {uid: $uid})
OPTIONAL MATCH (c)<-[l:LIKED_COMMENT]-(:User)
WITH c, count(l) AS likes
OPTIONAL MATCH (c)<-[r:REPLY_TO]-(:Comment)
WITH c, likes, count(r) AS replies
SET c.likes_count = likes,
    c.replies_count = replies
RETURN likes, replies`

const recomputeGroupCountersCypher = `
MATCH (g:Group {uid: $uid})
OPTIONAL MATCH (g)<-[m:MEMBER_OF]-(:User)
WITH g, count(m) AS members
OPTIONAL MATCH (g)<-[p:POSTED_IN]-(:Post)
WITH g, members, count(p) AS posts
SET g.members_count = members,
    g.posts_count = posts
RETURN members, posts`

// Hashtag usage counts all tagged posts; the trending score only counts
// posts from the last day.
const recomputeHashtagsCypher = `
UNWIND $names AS name
MATCH (h:Hashtag {name: name})
OPTIONAL MATCH (h)<-[t:TAGGED_WITH]-(:Post)
WITH h, count(t) AS usage
OPTIONAL MATCH (h)<-[recent:TAGGED_WITH]-(rp:Post)
WHERE rp.created_at > datetime() - duration('P1D')
WITH h, usage, count(recent) AS today
SET h.usage_count = usage,
    h.trending_score = today,
    h.is_trending = today > $threshold
RETURN h.name`

func recomputeUserCountersTx(ctx context.Context, tx neo4j.ManagedTransaction, uid string) error {
	_, err := tx.Run(ctx, recomputeUserCountersCypher, map[string]interface{}{"uid": uid})
	if err != nil {
		return fmt.Errorf("failed to recompute user counters: %w", err)
	}
	return nil
}

func recomputePostCountersTx(ctx context.Context, tx neo4j.ManagedTransaction, uid string) (likes int, err error) {
	result, err := tx.Run(ctx, recomputePostCountersCypher, map[string]interface{}{"uid": uid})
	if err != nil {
		return 0, fmt.Errorf("failed to recompute post counters: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, model.ErrPostNotFound
	}
	return getIntFromRecord(record, "likes"), nil
}

func recomputeCommentCountersTx(ctx context.Context, tx neo4j.ManagedTransaction, uid string) (likes int, err error) {
	result, err := tx.Run(ctx, recomputeCommentCountersCypher, map[string]interface{}{"uid": uid})
	if err != nil {
		return 0, fmt.Errorf("failed to recompute comment counters: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, model.ErrCommentNotFound
	}
	return getIntFromRecord(record, "likes"), nil
}

func recomputeGroupCountersTx(ctx context.Context, tx neo4j.ManagedTransaction, uid string) error {
	_, err := tx.Run(ctx, recomputeGroupCountersCypher, map[string]interface{}{"uid": uid})
	if err != nil {
		return fmt.Errorf("failed to recompute group counters: %w", err)
	}
	return nil
}

func recomputeHashtagsTx(ctx context.Context, tx neo4j.ManagedTransaction, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := tx.Run(ctx, recomputeHashtagsCypher, map[string]interface{}{
		"names":     names,
		"threshold": model.TrendingThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to recompute hashtag usage: %w", err)
	}
	return nil
}
