package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

type commentRepository struct {
	driver neo4j.DriverWithContext
}

func NewCommentRepository(driver neo4j.DriverWithContext) CommentRepository {
	return &commentRepository{driver: driver}
}

// commentReturn mirrors postReturn: node plus author, owning post,
// optional parent and the viewer's like state. Binds $viewer.
const commentReturn = `
RETURN c,
       author.uid AS author_uid,
       author.username AS author_username,
       post.uid AS post_uid,
       EXISTS { MATCH (:User {uid: $viewer})-[:LIKED_COMMENT]->(c) } AS is_liked,
       [ (c)-[:REPLY_TO]->(parent:Comment) | parent.uid ][0] AS parent_uid`

// commentMatch is the anchor pattern the list queries extend.
const commentMatch = `MATCH (post:Post)-[:HAS_COMMENT]->(c:Comment)<-[:AUTHORED]-(author:User)`

func commentFromRecord(record *neo4j.Record) (*model.Comment, error) {
	node, ok := getNodeFromRecord(record, "c")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for comment")
	}
	props := node.Props
	parentUID := getStringPtrFromRecord(record, "parent_uid")
	return &model.Comment{
		UID:            getStringFromMap(props, "uid"),
		PostUID:        getStringFromRecord(record, "post_uid"),
		AuthorUID:      getStringFromRecord(record, "author_uid"),
		AuthorUsername: getStringFromRecord(record, "author_username"),
		ParentUID:      parentUID,
		Content:        getStringFromMap(props, "content"),
		Mentions:       getStringSliceFromMap(props, "mentions"),
		ImageURL:       getStringPtrFromMap(props, "image_url"),
		GifURL:         getStringPtrFromMap(props, "gif_url"),
		IsEdited:       getBoolFromMap(props, "is_edited"),
		IsPinned:       getBoolFromMap(props, "is_pinned"),
		IsReply:        parentUID != nil,
		LikesCount:     getIntFromMap(props, "likes_count"),
		RepliesCount:   getIntFromMap(props, "replies_count"),
		CreatedAt:      getTimeFromMap(props, "created_at"),
		UpdatedAt:      getTimeFromMap(props, "updated_at"),
		IsLiked:        getBoolFromRecord(record, "is_liked"),
	}, nil
}

func commentProps(c *model.Comment) map[string]interface{} {
	props := map[string]interface{}{
		"content":    c.Content,
		"mentions":   c.Mentions,
		"is_edited":  c.IsEdited,
		"is_pinned":  c.IsPinned,
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
	setOptString(props, "image_url", c.ImageURL)
	setOptString(props, "gif_url", c.GifURL)
	return props
}

// Create writes the comment node, wires AUTHORED, HAS_COMMENT, the
// guarded REPLY_TO and any MENTIONS edges, then re-counts the post and
// the parent in the same transaction.
func (r *commentRepository) Create(ctx context.Context, comment *model.Comment, mentionUIDs []string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		createQuery := `
			CREATE (c:Comment {uid: $uid})
			SET c += $props,
			    c.likes_count = 0,
			    c.replies_count = 0
			RETURN c.uid`
		if _, err := tx.Run(ctx, createQuery, map[string]interface{}{
			"uid":   comment.UID,
			"props": commentProps(comment),
		}); err != nil {
			return nil, fmt.Errorf("failed to create comment: %w", err)
		}

		if _, err := connectTx(ctx, tx, EdgeAuthored, comment.AuthorUID, comment.UID); err != nil {
			return nil, err
		}
		if _, err := connectTx(ctx, tx, EdgeHasComment, comment.PostUID, comment.UID); err != nil {
			return nil, err
		}
		if comment.ParentUID != nil {
			if _, err := connectTx(ctx, tx, EdgeReplyTo, comment.UID, *comment.ParentUID); err != nil {
				return nil, err
			}
			if _, err := recomputeCommentCountersTx(ctx, tx, *comment.ParentUID); err != nil {
				return nil, err
			}
		}
		if len(mentionUIDs) > 0 {
			mentionQuery := `
				MATCH (c:Comment {uid: $uid})
				UNWIND $uids AS mention
				MATCH (u:User {uid: mention})
				MERGE (c)-[:MENTIONS]->(u)`
			if _, err := tx.Run(ctx, mentionQuery, map[string]interface{}{
				"uid":  comment.UID,
				"uids": mentionUIDs,
			}); err != nil {
				return nil, fmt.Errorf("failed to create comment mentions: %w", err)
			}
		}
		_, err := recomputePostCountersTx(ctx, tx, comment.PostUID)
		return nil, err
	})
	return err
}

func (r *commentRepository) GetByUID(ctx context.Context, uid string, viewerUID string) (*model.Comment, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := commentMatch + `
		WHERE c.uid = $uid` + commentReturn

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid, "viewer": viewerUID})
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, model.ErrCommentNotFound
	}
	return commentFromRecord(record)
}

func (r *commentRepository) Update(ctx context.Context, comment *model.Comment, mentionUIDs []string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	comment.UpdatedAt = time.Now().UTC()
	comment.IsEdited = true

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		saveQuery := `
			MATCH (c:Comment {uid: $uid})
			SET c += $props
			RETURN c.uid`
		result, err := tx.Run(ctx, saveQuery, map[string]interface{}{
			"uid":   comment.UID,
			"props": commentProps(comment),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update comment: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, model.ErrCommentNotFound
		}

		dropMentions := `
			MATCH (c:Comment {uid: $uid})-[m:MENTIONS]->(:User)
			DELETE m`
		if _, err := tx.Run(ctx, dropMentions, map[string]interface{}{"uid": comment.UID}); err != nil {
			return nil, fmt.Errorf("failed to drop comment mentions: %w", err)
		}
		if len(mentionUIDs) > 0 {
			mergeMentions := `
				MATCH (c:Comment {uid: $uid})
				UNWIND $uids AS mention
				MATCH (u:User {uid: mention})
				MERGE (c)-[:MENTIONS]->(u)`
			if _, err := tx.Run(ctx, mergeMentions, map[string]interface{}{
				"uid":  comment.UID,
				"uids": mentionUIDs,
			}); err != nil {
				return nil, fmt.Errorf("failed to update comment mentions: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

// Delete removes the comment and its whole reply subtree, then
// re-counts the post and, when the comment was itself a reply, the
// parent it hung from.
func (r *commentRepository) Delete(ctx context.Context, uid string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		infoQuery := `
			MATCH (c:Comment {uid: $uid})
			OPTIONAL MATCH (post:Post)-[:HAS_COMMENT]->(c)
			OPTIONAL MATCH (c)-[:REPLY_TO]->(parent:Comment)
			RETURN post.uid AS post_uid, parent.uid AS parent_uid`
		result, err := tx.Run(ctx, infoQuery, map[string]interface{}{"uid": uid})
		if err != nil {
			return nil, fmt.Errorf("failed to inspect comment before delete: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, model.ErrCommentNotFound
		}
		postUID := getStringPtrFromRecord(record, "post_uid")
		parentUID := getStringPtrFromRecord(record, "parent_uid")

		// The subtree is every comment that reaches this one over
		// REPLY_TO, the comment itself included (the *0.. hop).
		deleteQuery := `
			MATCH (c:Comment {uid: $uid})
			MATCH (c)<-[:REPLY_TO*0..]-(member:Comment)
			DETACH DELETE member`
		if _, err := tx.Run(ctx, deleteQuery, map[string]interface{}{"uid": uid}); err != nil {
			return nil, fmt.Errorf("failed to delete comment subtree: %w", err)
		}

		if postUID != nil {
			if _, err := recomputePostCountersTx(ctx, tx, *postUID); err != nil {
				return nil, err
			}
		}
		if parentUID != nil {
			if _, err := recomputeCommentCountersTx(ctx, tx, *parentUID); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (r *commentRepository) Like(ctx context.Context, userUID, commentUID string) (bool, int, error) {
	return r.reactTx(ctx, commentUID, func(tx neo4j.ManagedTransaction) (bool, error) {
		return connectTx(ctx, tx, EdgeLikedComment, userUID, commentUID)
	})
}

func (r *commentRepository) Unlike(ctx context.Context, userUID, commentUID string) (bool, int, error) {
	return r.reactTx(ctx, commentUID, func(tx neo4j.ManagedTransaction) (bool, error) {
		removed, err := disconnectTx(ctx, tx, EdgeLikedComment, userUID, commentUID)
		if err != nil {
			return false, err
		}
		if !removed {
			if err := checkEndpointsTx(ctx, tx, EdgeLikedComment, userUID, commentUID); err != nil {
				return false, err
			}
		}
		return removed, nil
	})
}

func (r *commentRepository) reactTx(ctx context.Context, commentUID string, mutate edgeMutation) (bool, int, error) {
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
		likes, err := recomputeCommentCountersTx(ctx, tx, commentUID)
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

func (r *commentRepository) list(ctx context.Context, query string, params map[string]interface{}) ([]model.Comment, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	comments := make([]model.Comment, 0, len(records))
	for _, record := range records {
		comment, err := commentFromRecord(record)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
	}
	return comments, nil
}

// ByPost lists a post's top level comments, pinned ones first, then
// oldest to newest so conversations read downward.
func (r *commentRepository) ByPost(ctx context.Context, postUID, viewerUID string, skip, limit int) ([]model.Comment, error) {
	query := commentMatch + `
		WHERE post.uid = $post AND NOT (c)-[:REPLY_TO]->()` +
		commentReturn + `
		ORDER BY c.is_pinned DESC, c.created_at ASC, c.uid ASC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"post": postUID, "viewer": viewerUID, "skip": skip, "limit": limit})
}

func (r *commentRepository) Replies(ctx context.Context, parentUID, viewerUID string, skip, limit int) ([]model.Comment, error) {
	query := commentMatch + `
		WHERE (c)-[:REPLY_TO]->(:Comment {uid: $parent})` +
		commentReturn + `
		ORDER BY c.created_at ASC, c.uid ASC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"parent": parentUID, "viewer": viewerUID, "skip": skip, "limit": limit})
}

// Thread walks from any comment up to its root, then returns the whole
// tree under that root in chronological order.
func (r *commentRepository) Thread(ctx context.Context, uid, viewerUID string) ([]model.Comment, error) {
	query := `
		MATCH (start:Comment {uid: $uid})
		MATCH (start)-[:REPLY_TO*0..]->(root:Comment)
		WHERE NOT (root)-[:REPLY_TO]->()
		MATCH (root)<-[:REPLY_TO*0..]-(c:Comment)
		WITH DISTINCT c
		MATCH (post:Post)-[:HAS_COMMENT]->(c)<-[:AUTHORED]-(author:User)` +
		commentReturn + `
		ORDER BY c.created_at ASC, c.uid ASC`
	comments, err := r.list(ctx, query, map[string]interface{}{"uid": uid, "viewer": viewerUID})
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		// Either the comment is gone or it is orphaned; tell them apart.
		if _, err := r.GetByUID(ctx, uid, viewerUID); err != nil {
			return nil, err
		}
	}
	return comments, nil
}

func (r *commentRepository) ByUser(ctx context.Context, authorUID, viewerUID string, skip, limit int) ([]model.Comment, error) {
	// Others only see comments left on plainly public posts; the
	// author sees their full history.
	query := commentMatch + `
		WHERE author.uid = $author
		  AND ($author = $viewer
		       OR (post.visibility = 'public'
		           AND post.is_archived = false
		           AND NOT (post)-[:POSTED_IN]->(:Group)))` +
		commentReturn + `
		ORDER BY c.created_at DESC, c.uid DESC
		SKIP $skip LIMIT $limit`
	return r.list(ctx, query, map[string]interface{}{"author": authorUID, "viewer": viewerUID, "skip": skip, "limit": limit})
}

func (r *commentRepository) SetPinned(ctx context.Context, uid string, pinned bool) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (c:Comment {uid: $uid})
		SET c.is_pinned = $pinned, c.updated_at = datetime()
		RETURN c.uid`

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid, "pinned": pinned})
	if err != nil {
		return fmt.Errorf("failed to pin comment: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record == nil {
		return model.ErrCommentNotFound
	}
	return nil
}
