package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

// postRepository implements PostRepository on the Neo4j driver
type postRepository struct {
	driver neo4j.DriverWithContext
}

// NewPostRepository creates a new post repository
func NewPostRepository(driver neo4j.DriverWithContext) PostRepository {
	return &postRepository{driver: driver}
}

// postReturn is the shared projection: the node, its author, the
// viewer's like state and the share/group links. Every query using it
// must bind $viewer (empty string for anonymous readers).
const postReturn = `
RETURN p,
       author.uid AS author_uid,
       author.username AS author_username,
       EXISTS { MATCH (:User {uid: $viewer})-[:LIKED]->(p) } AS is_liked,
       [ (p)-[:SHARES]->(orig:Post) | orig.uid ][0] AS original_uid,
       [ (p)-[:POSTED_IN]->(g:Group) | g.uid ][0] AS group_uid`

func postFromRecord(record *neo4j.Record) (*model.Post, error) {
	node, ok := getNodeFromRecord(record, "p")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for post")
	}
	props := node.Props
	return &model.Post{
		UID:            getStringFromMap(props, "uid"),
		AuthorUID:      getStringFromRecord(record, "author_uid"),
		AuthorUsername: getStringFromRecord(record, "author_username"),
		Content:        getStringFromMap(props, "content"),
		Title:          getStringPtrFromMap(props, "title"),
		PostType:       getStringFromMap(props, "post_type"),
		Visibility:     getStringFromMap(props, "visibility"),
		Location:       getStringPtrFromMap(props, "location"),
		AllowComments:  getBoolFromMap(props, "allow_comments"),
		Hashtags:       getStringSliceFromMap(props, "hashtags"),
		Mentions:       getStringSliceFromMap(props, "mentions"),
		ImageURLs:      getStringSliceFromMap(props, "image_urls"),
		VideoURLs:      getStringSliceFromMap(props, "video_urls"),
		IsPinned:       getBoolFromMap(props, "is_pinned"),
		IsArchived:     getBoolFromMap(props, "is_archived"),
		LikesCount:     getIntFromMap(props, "likes_count"),
		CommentsCount:  getIntFromMap(props, "comments_count"),
		SharesCount:    getIntFromMap(props, "shares_count"),
		ViewsCount:     getIntFromMap(props, "views_count"),
		CreatedAt:      getTimeFromMap(props, "created_at"),
		UpdatedAt:      getTimeFromMap(props, "updated_at"),
		IsLiked:        getBoolFromRecord(record, "is_liked"),
		OriginalPostID: getStringPtrFromRecord(record, "original_uid"),
		GroupUID:       getStringPtrFromRecord(record, "group_uid"),
	}, nil
}

func postProps(p *model.Post) map[string]interface{} {
	props := map[string]interface{}{
		"content":        p.Content,
		"post_type":      p.PostType,
		"visibility":     p.Visibility,
		"allow_comments": p.AllowComments,
		"hashtags":       p.Hashtags,
		"mentions":       p.Mentions,
		"image_urls":     p.ImageURLs,
		"video_urls":     p.VideoURLs,
		"is_pinned":      p.IsPinned,
		"is_archived":    p.IsArchived,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
	setOptString(props, "title", p.Title)
	setOptString(props, "location", p.Location)
	return props
}

// mergeHashtagsCypher creates missing Hashtag nodes and tags the post.
const mergeHashtagsCypher = `
MATCH (p:Post {uid: $uid})
UNWIND $names AS name
MERGE (h:Hashtag {name: name})
ON CREATE SET h.uid = randomUUID(),
              h.created_at = datetime(),
              h.usage_count = 0,
              h.trending_score = 0,
              h.is_trending = false
MERGE (p)-[:TAGGED_WITH]->(h)`

const mergeMentionsCypher = `
MATCH (p:Post {uid: $uid})
UNWIND $uids AS mention
MATCH (u:User {uid: mention})
MERGE (p)-[:MENTIONS]->(u)`

func tagPostTx(ctx context.Context, tx neo4j.ManagedTransaction, postUID string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	if _, err := tx.Run(ctx, mergeHashtagsCypher, map[string]interface{}{"uid": postUID, "names": names}); err != nil {
		return fmt.Errorf("failed to tag post: %w", err)
	}
	return nil
}

func mentionFromPostTx(ctx context.Context, tx neo4j.ManagedTransaction, postUID string, uids []string) error {
	if len(uids) == 0 {
		return nil
	}
	if _, err := tx.Run(ctx, mergeMentionsCypher, map[string]interface{}{"uid": postUID, "uids": uids}); err != nil {
		return fmt.Errorf("failed to create post mentions: %w", err)
	}
	return nil
}

// Create writes the post node and all of its edges in one transaction:
// POSTED, TAGGED_WITH (creating hashtags as needed), MENTIONS and the
// optional POSTED_IN, then re-counts everything those edges touch.
func (r *postRepository) Create(ctx context.Context, post *model.Post, mentionUIDs []string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		createQuery := `
			CREATE (p:Post {uid: $uid})
			SET p += $props,
			    p.likes_count = 0,
			    p.comments_count = 0,
			    p.shares_count = 0,
			    p.views_count = 0
			RETURN p.uid`
		if _, err := tx.Run(ctx, createQuery, map[string]interface{}{
			"uid":   post.UID,
			"props": postProps(post),
		}); err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}

		if _, err := connectTx(ctx, tx, EdgePosted, post.AuthorUID, post.UID); err != nil {
			return nil, err
		}
		if err := tagPostTx(ctx, tx, post.UID, post.Hashtags); err != nil {
			return nil, err
		}
		if err := mentionFromPostTx(ctx, tx, post.UID, mentionUIDs); err != nil {
			return nil, err
		}
		if post.GroupUID != nil {
			if _, err := connectTx(ctx, tx, EdgePostedIn, post.UID, *post.GroupUID); err != nil {
				return nil, err
			}
			if err := recomputeGroupCountersTx(ctx, tx, *post.GroupUID); err != nil {
				return nil, err
			}
		}
		if err := recomputeUserCountersTx(ctx, tx, post.AuthorUID); err != nil {
			return nil, err
		}
		return nil, recomputeHashtagsTx(ctx, tx, post.Hashtags)
	})
	return err
}

func (r *postRepository) GetByUID(ctx context.Context, uid string, viewerUID string) (*model.Post, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `MATCH (author:User)-[:POSTED]->(p:Post {uid: $uid})` + postReturn

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid, "viewer": viewerUID})
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, model.ErrPostNotFound
	}
	return postFromRecord(record)
}

// Update saves the post's mutable properties and re-syncs the hashtag
// and mention edges to match the new lists.
func (r *postRepository) Update(ctx context.Context, post *model.Post, mentionUIDs []string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	post.UpdatedAt = time.Now().UTC()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		saveQuery := `
			MATCH (p:Post {uid: $uid})
			SET p += $props
			RETURN p.uid`
		result, err := tx.Run(ctx, saveQuery, map[string]interface{}{
			"uid":   post.UID,
			"props": postProps(post),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update post: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, model.ErrPostNotFound
		}

		// Drop the old tag edges and remember the names so counts on
		// abandoned hashtags shrink too.
		dropTags := `
			MATCH (p:Post {uid: $uid})-[t:TAGGED_WITH]->(h:Hashtag)
			DELETE t
			RETURN collect(h.name) AS old`
		result, err = tx.Run(ctx, dropTags, map[string]interface{}{"uid": post.UID})
		if err != nil {
			return nil, fmt.Errorf("failed to drop tag edges: %w", err)
		}
		oldTags := []string{}
		if rec, err := singleRecord(ctx, result); err != nil {
			return nil, err
		} else if rec != nil {
			oldTags = getStringSliceFromRecord(rec, "old")
		}

		dropMentions := `
			MATCH (p:Post {uid: $uid})-[m:MENTIONS]->(:User)
			DELETE m`
		if _, err := tx.Run(ctx, dropMentions, map[string]interface{}{"uid": post.UID}); err != nil {
			return nil, fmt.Errorf("failed to drop mention edges: %w", err)
		}

		if err := tagPostTx(ctx, tx, post.UID, post.Hashtags); err != nil {
			return nil, err
		}
		if err := mentionFromPostTx(ctx, tx, post.UID, mentionUIDs); err != nil {
			return nil, err
		}

		touched := dedupe(append(oldTags, post.Hashtags...))
		return nil, recomputeHashtagsTx(ctx, tx, touched)
	})
	return err
}

// Delete removes the post, its whole comment set and every edge, then
// re-counts the author, the group and the touched hashtags. Posts that
// shared this one survive; their SHARES edge just disappears.
func (r *postRepository) Delete(ctx context.Context, uid string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		infoQuery := `
			MATCH (p:Post {uid: $uid})
			OPTIONAL MATCH (author:User)-[:POSTED]->(p)
			OPTIONAL MATCH (p)-[:POSTED_IN]->(g:Group)
			OPTIONAL MATCH (p)-[:TAGGED_WITH]->(h:Hashtag)
			OPTIONAL MATCH (p)-[:SHARES]->(orig:Post)
			RETURN author.uid AS author_uid,
			       g.uid AS group_uid,
			       orig.uid AS original_uid,
			       collect(DISTINCT h.name) AS tags`
		result, err := tx.Run(ctx, infoQuery, map[string]interface{}{"uid": uid})
		if err != nil {
			return nil, fmt.Errorf("failed to inspect post before delete: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, model.ErrPostNotFound
		}
		authorUID := getStringFromRecord(record, "author_uid")
		groupUID := getStringPtrFromRecord(record, "group_uid")
		originalUID := getStringPtrFromRecord(record, "original_uid")
		tags := getStringSliceFromRecord(record, "tags")

		deleteComments := `
			MATCH (p:Post {uid: $uid})-[:HAS_COMMENT]->(c:Comment)
			DETACH DELETE c`
		if _, err := tx.Run(ctx, deleteComments, map[string]interface{}{"uid": uid}); err != nil {
			return nil, fmt.Errorf("failed to delete post comments: %w", err)
		}

		deletePost := `
			MATCH (p:Post {uid: $uid})
			DETACH DELETE p`
		if _, err := tx.Run(ctx, deletePost, map[string]interface{}{"uid": uid}); err != nil {
			return nil, fmt.Errorf("failed to delete post: %w", err)
		}

		if authorUID != "" {
			if err := recomputeUserCountersTx(ctx, tx, authorUID); err != nil {
				return nil, err
			}
		}
		if groupUID != nil {
			if err := recomputeGroupCountersTx(ctx, tx, *groupUID); err != nil {
				return nil, err
			}
		}
		if originalUID != nil {
			if _, err := recomputePostCountersTx(ctx, tx, *originalUID); err != nil {
				return nil, err
			}
		}
		return nil, recomputeHashtagsTx(ctx, tx, tags)
	})
	return err
}

func (r *postRepository) Like(ctx context.Context, userUID, postUID string) (bool, int, error) {
	return r.reactTx(ctx, postUID, func(tx neo4j.ManagedTransaction) (bool, error) {
		return connectTx(ctx, tx, EdgeLiked, userUID, postUID)
	})
}

func (r *postRepository) Unlike(ctx context.Context, userUID, postUID string) (bool, int, error) {
	return r.reactTx(ctx, postUID, func(tx neo4j.ManagedTransaction) (bool, error) {
		removed, err := disconnectTx(ctx, tx, EdgeLiked, userUID, postUID)
		if err != nil {
			return false, err
		}
		// Deleting a missing edge is silent about missing nodes, so
		// check the endpoints before reporting a clean no-op.
		if !removed {
			if err := checkEndpointsTx(ctx, tx, EdgeLiked, userUID, postUID); err != nil {
				return false, err
			}
		}
		return removed, nil
	})
}

type edgeMutation func(tx neo4j.ManagedTransaction) (bool, error)

// reactTx runs an edge change plus the like recount in one transaction
// and hands back the fresh likes_count.
func (r *postRepository) reactTx(ctx context.Context, postUID string, mutate edgeMutation) (bool, int, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	type reactResult struct {
		changed bool
		likes   int
	}

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		changed, err := mutate(tx)
		if err != nil {
			return nil, err
		}
		likes, err := recomputePostCountersTx(ctx, tx, postUID)
		if err != nil {
			return nil, err
		}
		return reactResult{changed: changed, likes: likes}, nil
	})
	if err != nil {
		return false, 0, err
	}
	res := out.(reactResult)
	return res.changed, res.likes, nil
}

// Share creates the share post, links POSTED and SHARES, and re-counts
// the sharer and the original in the same transaction.
func (r *postRepository) Share(ctx context.Context, share *model.Post, originalUID string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		createQuery := `
			MATCH (orig:Post {uid: $original})
			CREATE (p:Post {uid: $uid})
			SET p += $props,
			    p.likes_count = 0,
			    p.comments_count = 0,
			    p.shares_count = 0,
			    p.views_count = 0
			CREATE (p)-[:SHARES {created_at: datetime()}]->(orig)
			RETURN p.uid`
		result, err := tx.Run(ctx, createQuery, map[string]interface{}{
			"uid":      share.UID,
			"original": originalUID,
			"props":    postProps(share),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create share post: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, model.ErrPostNotFound
		}

		if _, err := connectTx(ctx, tx, EdgePosted, share.AuthorUID, share.UID); err != nil {
			return nil, err
		}
		if err := recomputeUserCountersTx(ctx, tx, share.AuthorUID); err != nil {
			return nil, err
		}
		_, err = recomputePostCountersTx(ctx, tx, originalUID)
		return nil, err
	})
	return err
}

func (r *postRepository) setFlag(ctx context.Context, uid, prop string, value bool) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (p:Post {uid: $uid})
		SET p.%s = $value, p.updated_at = datetime()
		RETURN p.uid`, prop)

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid, "value": value})
	if err != nil {
		return fmt.Errorf("failed to set post %s: %w", prop, err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record == nil {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *postRepository) SetPinned(ctx context.Context, uid string, pinned bool) error {
	return r.setFlag(ctx, uid, "is_pinned", pinned)
}

func (r *postRepository) SetArchived(ctx context.Context, uid string, archived bool) error {
	return r.setFlag(ctx, uid, "is_archived", archived)
}

func (r *postRepository) list(ctx context.Context, query string, params map[string]interface{}) ([]model.Post, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	posts := make([]model.Post, 0, len(records))
	for _, record := range records {
		post, err := postFromRecord(record)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, nil
}

// Feed is the canonical two-hop walk: posts from followed users the
// viewer may see, newest first. The cache layer fronts this; it is the
// cold-start path and the hydration source. Group posts never enter
// feeds or other global surfaces; they are served from the group page
// where access is checked.
func (r *postRepository) Feed(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
	query := `
		MATCH (:User {uid: $viewer})-[:FOLLOWS]->(author:User)-[:POSTED]->(p:Post)
		WHERE p.visibility IN ['public', 'friends'] AND p.is_archived = false
		  AND NOT (p)-[:POSTED_IN]->(:Group)` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"viewer": viewerUID, "skip": skip, "limit": limit})
}

// FeedByUIDs hydrates cached feed entries, re-applying the feed filters
// so stale cache rows (archived posts, visibility flips) drop out.
func (r *postRepository) FeedByUIDs(ctx context.Context, viewerUID string, uids []string) ([]model.Post, error) {
	if len(uids) == 0 {
		return []model.Post{}, nil
	}
	query := `
		MATCH (author:User)-[:POSTED]->(p:Post)
		WHERE p.uid IN $uids
		  AND p.visibility IN ['public', 'friends']
		  AND p.is_archived = false
		  AND NOT (p)-[:POSTED_IN]->(:Group)` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC`
	return r.list(ctx, query, map[string]interface{}{"viewer": viewerUID, "uids": uids})
}

func (r *postRepository) Explore(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
	query := `
		MATCH (author:User)-[:POSTED]->(p:Post)
		WHERE p.visibility = 'public' AND p.is_archived = false
		  AND NOT (p)-[:POSTED_IN]->(:Group)` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"viewer": viewerUID, "skip": skip, "limit": limit})
}

// Trending ranks the last week's public posts by their stored
// engagement counters, which stay fresh because every reaction
// re-counts them.
func (r *postRepository) Trending(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
	query := `
		MATCH (author:User)-[:POSTED]->(p:Post)
		WHERE p.visibility = 'public'
		  AND p.is_archived = false
		  AND NOT (p)-[:POSTED_IN]->(:Group)
		  AND p.created_at > datetime() - duration('P7D')` +
		postReturn + `
		ORDER BY (p.likes_count + p.comments_count + p.shares_count) DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"viewer": viewerUID, "skip": skip, "limit": limit})
}

func (r *postRepository) ByUser(ctx context.Context, authorUID, viewerUID string, includeHidden, includeFriends bool, skip, limit int) ([]model.Post, error) {
	query := `
		MATCH (author:User {uid: $author})-[:POSTED]->(p:Post)
		WHERE $includeHidden
		   OR (p.is_archived = false
		       AND NOT (p)-[:POSTED_IN]->(:Group)
		       AND (p.visibility = 'public'
		            OR ($includeFriends AND p.visibility = 'friends')))` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{
		"author":         authorUID,
		"viewer":         viewerUID,
		"includeHidden":  includeHidden,
		"includeFriends": includeFriends,
		"skip":           skip,
		"limit":          limit,
	})
}

func (r *postRepository) ByHashtag(ctx context.Context, tag, viewerUID string, skip, limit int) ([]model.Post, error) {
	query := `
		MATCH (author:User)-[:POSTED]->(p:Post)-[:TAGGED_WITH]->(:Hashtag {name: $tag})
		WHERE p.visibility = 'public' AND p.is_archived = false
		  AND NOT (p)-[:POSTED_IN]->(:Group)` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"tag": tag, "viewer": viewerUID, "skip": skip, "limit": limit})
}

func (r *postRepository) ByGroup(ctx context.Context, groupUID, viewerUID string, skip, limit int) ([]model.Post, error) {
	query := `
		MATCH (author:User)-[:POSTED]->(p:Post)-[:POSTED_IN]->(:Group {uid: $group})
		WHERE p.is_archived = false` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"group": groupUID, "viewer": viewerUID, "skip": skip, "limit": limit})
}

func (r *postRepository) LikedBy(ctx context.Context, userUID string, skip, limit int) ([]model.Post, error) {
	query := `
		MATCH (:User {uid: $viewer})-[:LIKED]->(p:Post)<-[:POSTED]-(author:User)
		WHERE p.is_archived = false` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"viewer": userUID, "skip": skip, "limit": limit})
}

func (r *postRepository) Search(ctx context.Context, query, viewerUID string, skip, limit int) ([]model.Post, error) {
	cypher := `
		MATCH (author:User)-[:POSTED]->(p:Post)
		WHERE p.visibility = 'public'
		  AND p.is_archived = false
		  AND NOT (p)-[:POSTED_IN]->(:Group)
		  AND (toLower(p.content) CONTAINS toLower($q)
		    OR toLower(coalesce(p.title, '')) CONTAINS toLower($q))` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, cypher, map[string]interface{}{"q": query, "viewer": viewerUID, "skip": skip, "limit": limit})
}

func (r *postRepository) RecentByAuthor(ctx context.Context, authorUID string, limit int) ([]model.Post, error) {
	query := `
		MATCH (author:User {uid: $author})-[:POSTED]->(p:Post)
		WHERE p.visibility IN ['public', 'friends'] AND p.is_archived = false
		  AND NOT (p)-[:POSTED_IN]->(:Group)` +
		postReturn + `
		ORDER BY p.created_at DESC, p.uid DESC
		LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"author": authorUID, "viewer": "", "limit": limit})
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
