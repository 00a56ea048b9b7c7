package handler

import (
	"encoding/json"
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

// PostHandler serves post CRUD, reactions and the public listing
// surfaces (explore, trending, search, hashtag, per-user).
type PostHandler struct {
	postService *service.PostService
}

func NewPostHandler(postService *service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// writePostAccessError maps the shared view-access errors. Returns
// false when the error is not one of them so the caller can keep
// matching.
func writePostAccessError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, model.ErrPostNotFound):
		httputil.WriteNotFound(w, "Post not found")
	case errors.Is(err, model.ErrGroupNotFound):
		httputil.WriteNotFound(w, "Group not found")
	case errors.Is(err, model.ErrPostAccessDenied):
		httputil.WriteForbidden(w, "You are not allowed to view this post")
	case errors.Is(err, model.ErrGroupPostsRestricted):
		httputil.WriteForbidden(w, "Only members can view posts in this group")
	default:
		return false
	}
	return true
}

// Create handles POST /posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.postService.Create(r.Context(), userUID, &req)
	if err != nil {
		switch {
		case model.IsValidation(err):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrPostContentEmpty):
			httputil.WriteBadRequest(w, "Post content is required")
		case errors.Is(err, model.ErrPostContentTooLong):
			httputil.WriteBadRequest(w, "Post content too long (max 2000 characters)")
		case errors.Is(err, model.ErrGroupNotFound):
			httputil.WriteNotFound(w, "Group not found")
		case errors.Is(err, model.ErrBannedFromGroup):
			httputil.WriteForbidden(w, "You are banned from this group")
		case errors.Is(err, model.ErrNotMember):
			httputil.WriteForbidden(w, "Only members can post in this group")
		case errors.Is(err, model.ErrMemberPostsOff):
			httputil.WriteForbidden(w, "Member posts are disabled in this group")
		default:
			logger.Get().Error("create post failed", zap.String("user_uid", userUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to create post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// Get handles GET /posts/{uid}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())

	post, err := h.postService.Get(r.Context(), postUID, viewerUID)
	if err != nil {
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("get post failed", zap.String("post_uid", postUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Update handles PUT /posts/{uid}.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postUID := chi.URLParam(r, "uid")

	var req model.UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.postService.Update(r.Context(), postUID, userUID, &req)
	if err != nil {
		switch {
		case model.IsValidation(err):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrNotPostOwner):
			httputil.WriteForbidden(w, "You can only edit your own posts")
		case errors.Is(err, model.ErrPostContentEmpty):
			httputil.WriteBadRequest(w, "Post content is required")
		case errors.Is(err, model.ErrPostContentTooLong):
			httputil.WriteBadRequest(w, "Post content too long (max 2000 characters)")
		default:
			logger.Get().Error("update post failed", zap.String("post_uid", postUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to update post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{uid}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postUID := chi.URLParam(r, "uid")

	if err := h.postService.Delete(r.Context(), postUID, userUID); err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrNotPostOwner):
			httputil.WriteForbidden(w, "You can only delete your own posts")
		default:
			logger.Get().Error("delete post failed", zap.String("post_uid", postUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to delete post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Post deleted successfully",
	})
}

// Like handles POST /posts/{uid}/like.
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postUID := chi.URLParam(r, "uid")

	resp, err := h.postService.Like(r.Context(), postUID, userUID)
	if err != nil {
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("like post failed", zap.String("post_uid", postUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to like post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Unlike handles DELETE /posts/{uid}/like.
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postUID := chi.URLParam(r, "uid")

	resp, err := h.postService.Unlike(r.Context(), postUID, userUID)
	if err != nil {
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("unlike post failed", zap.String("post_uid", postUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to unlike post")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Share handles POST /posts/{uid}/share.
func (h *PostHandler) Share(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postUID := chi.URLParam(r, "uid")

	// The body is optional commentary; an empty body is fine.
	var req model.SharePostRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	share, err := h.postService.Share(r.Context(), postUID, userUID, &req)
	if err != nil {
		switch {
		case model.IsValidation(err):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrCannotShareOwn):
			httputil.WriteInvalidOperation(w, "You cannot share your own post")
		case errors.Is(err, model.ErrShareUnavailable):
			httputil.WriteInvalidOperation(w, "This post cannot be shared")
		default:
			if writePostAccessError(w, err) {
				return
			}
			logger.Get().Error("share post failed", zap.String("post_uid", postUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to share post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, share)
}

// Pin handles POST /posts/{uid}/pin.
func (h *PostHandler) Pin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, true, "Post pinned")
}

// Unpin handles DELETE /posts/{uid}/pin.
func (h *PostHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, false, "Post unpinned")
}

func (h *PostHandler) setPinned(w http.ResponseWriter, r *http.Request, pinned bool, message string) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postUID := chi.URLParam(r, "uid")

	if err := h.postService.SetPinned(r.Context(), postUID, userUID, pinned); err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrNotPostOwner):
			httputil.WriteForbidden(w, "You can only pin your own posts")
		default:
			logger.Get().Error("pin post failed", zap.String("post_uid", postUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to update post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

// Archive handles POST /posts/{uid}/archive.
func (h *PostHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true, "Post archived")
}

// Unarchive handles DELETE /posts/{uid}/archive.
func (h *PostHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false, "Post unarchived")
}

func (h *PostHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool, message string) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	postUID := chi.URLParam(r, "uid")

	if err := h.postService.SetArchived(r.Context(), postUID, userUID, archived); err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrNotPostOwner):
			httputil.WriteForbidden(w, "You can only archive your own posts")
		default:
			logger.Get().Error("archive post failed", zap.String("post_uid", postUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to update post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

// Explore handles GET /posts.
func (h *PostHandler) Explore(w http.ResponseWriter, r *http.Request) {
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	posts, err := h.postService.Explore(r.Context(), viewerUID, skip, limit)
	if err != nil {
		logger.Get().Error("explore failed", zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Trending handles GET /posts/trending.
func (h *PostHandler) Trending(w http.ResponseWriter, r *http.Request) {
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	posts, err := h.postService.Trending(r.Context(), viewerUID, skip, limit)
	if err != nil {
		logger.Get().Error("trending posts failed", zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get trending posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Search handles GET /posts/search?q=...
func (h *PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	query := r.URL.Query().Get("q")
	skip, limit := parsePagination(r)

	posts, err := h.postService.Search(r.Context(), query, viewerUID, skip, limit)
	if err != nil {
		logger.Get().Error("post search failed", zap.String("query", query), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to search posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Liked handles GET /posts/liked. Always scoped to the caller.
func (h *PostHandler) Liked(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	skip, limit := parsePagination(r)

	posts, err := h.postService.LikedPosts(r.Context(), userUID, skip, limit)
	if err != nil {
		logger.Get().Error("liked posts failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get liked posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}

// ByHashtag handles GET /posts/hashtag/{tag}.
func (h *PostHandler) ByHashtag(w http.ResponseWriter, r *http.Request) {
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	tag := chi.URLParam(r, "tag")
	skip, limit := parsePagination(r)

	posts, err := h.postService.ByHashtag(r.Context(), tag, viewerUID, skip, limit)
	if err != nil {
		logger.Get().Error("posts by hashtag failed", zap.String("tag", tag), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}

// ByUser handles GET /posts/user/{uid}.
func (h *PostHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	uid := chi.URLParam(r, "uid")
	skip, limit := parsePagination(r)

	posts, err := h.postService.ByUser(r.Context(), uid, viewerUID, skip, limit)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("posts by user failed", zap.String("uid", uid), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}
