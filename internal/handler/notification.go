package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"loomgraph/internal/httputil"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/service"
	"loomgraph/internal/transport/http/middleware"
)

// NotificationHandler serves the notification tray.
type NotificationHandler struct {
	notifService *service.NotificationService
}

func NewNotificationHandler(notifService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifService: notifService}
}

// List handles GET /notifications. Pass ?unread=true for unread only.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	skip, limit := parsePagination(r)

	notifications, err := h.notifService.List(r.Context(), userUID, unreadOnly, skip, limit)
	if err != nil {
		logger.Get().Error("list notifications failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get notifications")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, notifications)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	count, err := h.notifService.UnreadCount(r.Context(), userUID)
	if err != nil {
		logger.Get().Error("unread count failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get unread count")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"unread_count": count,
	})
}

// MarkRead handles POST /notifications/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if len(req.NotificationUIDs) == 0 {
		httputil.WriteBadRequest(w, "notification_uids is required")
		return
	}

	updated, err := h.notifService.MarkRead(r.Context(), userUID, req.NotificationUIDs)
	if err != nil {
		logger.Get().Error("mark read failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to mark notifications as read")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Notifications marked as read",
		"updated": updated,
	})
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	updated, err := h.notifService.MarkAllRead(r.Context(), userUID)
	if err != nil {
		logger.Get().Error("mark all read failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to mark notifications as read")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

// MarkAllSeen handles POST /notifications/seen. Called when the tray
// is opened; clears the badge without marking anything read.
func (h *NotificationHandler) MarkAllSeen(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	updated, err := h.notifService.MarkAllSeen(r.Context(), userUID)
	if err != nil {
		logger.Get().Error("mark all seen failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to mark notifications as seen")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Notifications marked as seen",
		"updated": updated,
	})
}
