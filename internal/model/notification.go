package model

import (
	"errors"
	"time"
)

// Notification types
const (
	NotificationTypeLike         = "like"
	NotificationTypeComment      = "comment"
	NotificationTypeReply        = "reply"
	NotificationTypeFollow       = "follow"
	NotificationTypeMention      = "mention"
	NotificationTypeShare        = "share"
	NotificationTypeGroupRequest = "group_request"
)

// Notification represents a notification node, linked to its recipient
// (NOTIFIED) and the acting user (TRIGGERED_BY). ReferenceUID points at
// the entity the notification is about.
type Notification struct {
	UID           string    `json:"uid"`
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	ReferenceUID  *string   `json:"reference_uid,omitempty"`
	ActorUID      string    `json:"actor_uid"`
	ActorUsername string    `json:"actor_username"`
	IsRead        bool      `json:"is_read"`
	IsSeen        bool      `json:"is_seen"`
	CreatedAt     time.Time `json:"created_at"`
}

// NotificationListResponse is the paginated notification list response.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// MarkReadRequest is the request body for marking notifications as read.
type MarkReadRequest struct {
	NotificationUIDs []string `json:"notification_uids"`
}

// Notification errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
)
