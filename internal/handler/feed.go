package handler

import (
	"net/http"

	"go.uber.org/zap"

	"loomgraph/internal/httputil"
	"loomgraph/internal/logger"
	"loomgraph/internal/service"
	"loomgraph/internal/transport/http/middleware"
)

// FeedHandler serves the personalized home feed.
type FeedHandler struct {
	feedService *service.FeedService
}

func NewFeedHandler(feedService *service.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// GetFeed handles GET /posts/feed. Served from the Redis cache when
// warm, straight from the graph otherwise.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	skip, limit := parsePagination(r)

	feed, err := h.feedService.GetFeed(r.Context(), userUID, skip, limit)
	if err != nil {
		logger.Get().Error("get feed failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, feed)
}

// Refresh handles POST /posts/feed/refresh. Drops the cached feed and
// rebuilds it from the graph.
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.feedService.Refresh(r.Context(), userUID); err != nil {
		logger.Get().Error("feed refresh failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to refresh feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Feed refreshed",
	})
}
