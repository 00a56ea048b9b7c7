package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loomgraph/internal/httputil"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/service"
	"loomgraph/internal/transport/http/middleware"
)

// FollowHandler serves follow graph mutations and listings.
type FollowHandler struct {
	userService *service.UserService
}

func NewFollowHandler(userService *service.UserService) *FollowHandler {
	return &FollowHandler{userService: userService}
}

// Follow handles POST /users/{uid}/follow.
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetUID := chi.URLParam(r, "uid")

	resp, err := h.userService.Follow(r.Context(), userUID, targetUID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCannotFollowSelf):
			httputil.WriteInvalidOperation(w, "You cannot follow yourself")
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, "User not found")
		default:
			logger.Get().Error("follow failed",
				zap.String("follower", userUID), zap.String("followee", targetUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to follow user")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Unfollow handles DELETE /users/{uid}/follow.
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	targetUID := chi.URLParam(r, "uid")

	resp, err := h.userService.Unfollow(r.Context(), userUID, targetUID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("unfollow failed",
			zap.String("follower", userUID), zap.String("followee", targetUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to unfollow user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Followers handles GET /users/{uid}/followers.
func (h *FollowHandler) Followers(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	users, err := h.userService.Followers(r.Context(), uid, viewerUID, skip, limit)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("list followers failed", zap.String("uid", uid), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get followers")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, users)
}

// Following handles GET /users/{uid}/following.
func (h *FollowHandler) Following(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	users, err := h.userService.Following(r.Context(), uid, viewerUID, skip, limit)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("list following failed", zap.String("uid", uid), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get following")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, users)
}
