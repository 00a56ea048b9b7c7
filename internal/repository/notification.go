package repository

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

type notificationRepository struct {
	driver neo4j.DriverWithContext
}

func NewNotificationRepository(driver neo4j.DriverWithContext) NotificationRepository {
	return &notificationRepository{driver: driver}
}

func notificationFromRecord(record *neo4j.Record) (*model.Notification, error) {
	node, ok := getNodeFromRecord(record, "n")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for notification")
	}
	props := node.Props
	return &model.Notification{
		UID:           getStringFromMap(props, "uid"),
		Type:          getStringFromMap(props, "type"),
		Message:       getStringFromMap(props, "message"),
		ReferenceUID:  getStringPtrFromMap(props, "reference_uid"),
		ActorUID:      getStringFromRecord(record, "actor_uid"),
		ActorUsername: getStringFromRecord(record, "actor_username"),
		IsRead:        getBoolFromMap(props, "is_read"),
		IsSeen:        getBoolFromMap(props, "is_seen"),
		CreatedAt:     getTimeFromMap(props, "created_at"),
	}, nil
}

// Create writes the notification node and links it to its recipient
// (NOTIFIED) and the acting user (TRIGGERED_BY).
func (r *notificationRepository) Create(ctx context.Context, n *model.Notification, recipientUID string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (recipient:User {uid: $recipient})
		MATCH (actor:User {uid: $actor})
		CREATE (n:Notification {uid: $uid})
		SET n += $props
		CREATE (recipient)-[:NOTIFIED]->(n)
		CREATE (n)-[:TRIGGERED_BY]->(actor)
		RETURN n.uid`

	props := map[string]interface{}{
		"type":       n.Type,
		"message":    n.Message,
		"is_read":    false,
		"is_seen":    false,
		"created_at": n.CreatedAt,
	}
	setOptString(props, "reference_uid", n.ReferenceUID)

	result, err := session.Run(ctx, query, map[string]interface{}{
		"uid":       n.UID,
		"recipient": recipientUID,
		"actor":     n.ActorUID,
		"props":     props,
	})
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record == nil {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientUID string, unreadOnly bool, skip, limit int) ([]model.Notification, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (:User {uid: $recipient})-[:NOTIFIED]->(n:Notification)-[:TRIGGERED_BY]->(actor:User)
		WHERE NOT $unreadOnly OR n.is_read = false
		RETURN n,
		       actor.uid AS actor_uid,
		       actor.username AS actor_username
		ORDER BY n.created_at DESC, n.uid DESC
		SKIP $skip LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"recipient":  recipientUID,
		"unreadOnly": unreadOnly,
		"skip":       skip,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	notifications := make([]model.Notification, 0, len(records))
	for _, record := range records {
		n, err := notificationFromRecord(record)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientUID string) (int, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (:User {uid: $recipient})-[:NOTIFIED]->(n:Notification)
		WHERE n.is_read = false
		RETURN count(n) AS unread`

	result, err := session.Run(ctx, query, map[string]interface{}{"recipient": recipientUID})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return getIntFromRecord(record, "unread"), nil
}

// MarkRead flips the given notifications, scoped to the recipient so
// nobody can mark someone else's. Returns how many actually flipped.
func (r *notificationRepository) MarkRead(ctx context.Context, recipientUID string, uids []string) (int, error) {
	if len(uids) == 0 {
		return 0, nil
	}
	query := `
		MATCH (:User {uid: $recipient})-[:NOTIFIED]->(n:Notification)
		WHERE n.uid IN $uids AND n.is_read = false
		SET n.is_read = true, n.is_seen = true
		RETURN count(n) AS marked`
	return r.mark(ctx, query, map[string]interface{}{"recipient": recipientUID, "uids": uids})
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientUID string) (int, error) {
	query := `
		MATCH (:User {uid: $recipient})-[:NOTIFIED]->(n:Notification)
		WHERE n.is_read = false
		SET n.is_read = true, n.is_seen = true
		RETURN count(n) AS marked`
	return r.mark(ctx, query, map[string]interface{}{"recipient": recipientUID})
}

func (r *notificationRepository) MarkAllSeen(ctx context.Context, recipientUID string) (int, error) {
	query := `
		MATCH (:User {uid: $recipient})-[:NOTIFIED]->(n:Notification)
		WHERE n.is_seen = false
		SET n.is_seen = true
		RETURN count(n) AS marked`
	return r.mark(ctx, query, map[string]interface{}{"recipient": recipientUID})
}

func (r *notificationRepository) mark(ctx context.Context, query string, params map[string]interface{}) (int, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return getIntFromRecord(record, "marked"), nil
}
