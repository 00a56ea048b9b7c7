package repository

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

// EdgeType describes one typed relationship in the graph: its Cypher
// name and the labels it is allowed to connect. All edge writes go
// through this table so endpoint checks and the at-most-one-edge rule
// are enforced in one place.
type EdgeType struct {
	Rel       string
	FromLabel string
	ToLabel   string
}

var (
	EdgeFollows       = EdgeType{"FOLLOWS", "User", "User"}
	EdgePosted        = EdgeType{"POSTED", "User", "Post"}
	EdgeLiked         = EdgeType{"LIKED", "User", "Post"}
	EdgeLikedComment  = EdgeType{"LIKED_COMMENT", "User", "Comment"}
	EdgeAuthored      = EdgeType{"AUTHORED", "User", "Comment"}
	EdgeHasComment    = EdgeType{"HAS_COMMENT", "Post", "Comment"}
	EdgeReplyTo       = EdgeType{"REPLY_TO", "Comment", "Comment"}
	EdgeShares        = EdgeType{"SHARES", "Post", "Post"}
	EdgeTaggedWith    = EdgeType{"TAGGED_WITH", "Post", "Hashtag"}
	EdgeMentionsPost  = EdgeType{"MENTIONS", "Post", "User"}
	EdgeMentionsComment = EdgeType{"MENTIONS", "Comment", "User"}
	EdgePostedIn      = EdgeType{"POSTED_IN", "Post", "Group"}
	EdgeOwns          = EdgeType{"OWNS", "User", "Group"}
	EdgeAdminOf       = EdgeType{"ADMIN_OF", "User", "Group"}
	EdgeModeratorOf   = EdgeType{"MODERATOR_OF", "User", "Group"}
	EdgeMemberOf      = EdgeType{"MEMBER_OF", "User", "Group"}
	EdgeRequestedJoin = EdgeType{"REQUESTED_TO_JOIN", "User", "Group"}
	EdgeBannedFrom    = EdgeType{"BANNED_FROM", "User", "Group"}
)

// notFoundForLabel maps a missing endpoint to the entity's sentinel.
func notFoundForLabel(label string) error {
	switch label {
	case "User":
		return model.ErrUserNotFound
	case "Post":
		return model.ErrPostNotFound
	case "Comment":
		return model.ErrCommentNotFound
	case "Group":
		return model.ErrGroupNotFound
	case "Hashtag":
		return model.ErrHashtagNotFound
	}
	return fmt.Errorf("unknown node label %q", label)
}

// connectTx merges the edge inside an open transaction. It reports
// whether the edge was newly created; connecting an existing pair is a
// no-op, not an error. Missing endpoints return the entity sentinel.
// REPLY_TO additionally refuses edges that would close a reply cycle.
func connectTx(ctx context.Context, tx neo4j.ManagedTransaction, edge EdgeType, fromUID, toUID string) (bool, error) {
	if err := checkEndpointsTx(ctx, tx, edge, fromUID, toUID); err != nil {
		return false, err
	}

	guard := ""
	if edge.Rel == "REPLY_TO" {
		guard = fmt.Sprintf("WHERE a <> b AND NOT (b)-[:%s*1..]->(a)\n", edge.Rel)
	}

	query := fmt.Sprintf(`
MATCH (a:%s {uid: $from})
MATCH (b:%s {uid: $to})
%sOPTIONAL MATCH (a)-[existing:%s]->(b)
WITH a, b, existing IS NOT NULL AS already
MERGE (a)-[r:%s]->(b)
ON CREATE SET r.created_at = datetime()
RETURN already`, edge.FromLabel, edge.ToLabel, guard, edge.Rel, edge.Rel)

	result, err := tx.Run(ctx, query, map[string]interface{}{"from": fromUID, "to": toUID})
	if err != nil {
		return false, fmt.Errorf("failed to connect %s: %w", edge.Rel, err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return false, err
	}
	if record == nil {
		// Endpoints exist, so only the cycle guard can have filtered the row.
		if edge.Rel == "REPLY_TO" {
			return false, model.ErrReplyCycle
		}
		return false, fmt.Errorf("connect %s matched no rows", edge.Rel)
	}
	return !getBoolFromRecord(record, "already"), nil
}

// disconnectTx deletes the edge if present and reports whether anything
// was removed.
func disconnectTx(ctx context.Context, tx neo4j.ManagedTransaction, edge EdgeType, fromUID, toUID string) (bool, error) {
	query := fmt.Sprintf(`
MATCH (a:%s {uid: $from})-[r:%s]->(b:%s {uid: $to})
DELETE r
RETURN count(*) AS removed`, edge.FromLabel, edge.Rel, edge.ToLabel)

	result, err := tx.Run(ctx, query, map[string]interface{}{"from": fromUID, "to": toUID})
	if err != nil {
		return false, fmt.Errorf("failed to disconnect %s: %w", edge.Rel, err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return false, err
	}
	return record != nil && getIntFromRecord(record, "removed") > 0, nil
}

func checkEndpointsTx(ctx context.Context, tx neo4j.ManagedTransaction, edge EdgeType, fromUID, toUID string) error {
	query := fmt.Sprintf(`
OPTIONAL MATCH (a:%s {uid: $from})
OPTIONAL MATCH (b:%s {uid: $to})
RETURN a IS NOT NULL AS from_ok, b IS NOT NULL AS to_ok`, edge.FromLabel, edge.ToLabel)

	result, err := tx.Run(ctx, query, map[string]interface{}{"from": fromUID, "to": toUID})
	if err != nil {
		return fmt.Errorf("failed to check %s endpoints: %w", edge.Rel, err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record == nil || !getBoolFromRecord(record, "from_ok") {
		return notFoundForLabel(edge.FromLabel)
	}
	if !getBoolFromRecord(record, "to_ok") {
		return notFoundForLabel(edge.ToLabel)
	}
	return nil
}

// Edges exposes the fabric on its own sessions for callers that do not
// already hold a transaction (integration tests, one-off checks).
type Edges struct {
	driver neo4j.DriverWithContext
}

func NewEdges(driver neo4j.DriverWithContext) *Edges {
	return &Edges{driver: driver}
}

func (e *Edges) Connect(ctx context.Context, edge EdgeType, fromUID, toUID string) (bool, error) {
	session := writeSession(ctx, e.driver)
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return connectTx(ctx, tx, edge, fromUID, toUID)
	})
	if err != nil {
		return false, err
	}
	return created.(bool), nil
}

func (e *Edges) Disconnect(ctx context.Context, edge EdgeType, fromUID, toUID string) (bool, error) {
	session := writeSession(ctx, e.driver)
	defer session.Close(ctx)

	removed, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return disconnectTx(ctx, tx, edge, fromUID, toUID)
	})
	if err != nil {
		return false, err
	}
	return removed.(bool), nil
}

func (e *Edges) Connected(ctx context.Context, edge EdgeType, fromUID, toUID string) (bool, error) {
	session := readSession(ctx, e.driver)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
MATCH (a:%s {uid: $from})-[r:%s]->(b:%s {uid: $to})
RETURN count(r) > 0 AS connected`, edge.FromLabel, edge.Rel, edge.ToLabel)

	result, err := session.Run(ctx, query, map[string]interface{}{"from": fromUID, "to": toUID})
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", edge.Rel, err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return false, err
	}
	return record != nil && getBoolFromRecord(record, "connected"), nil
}
