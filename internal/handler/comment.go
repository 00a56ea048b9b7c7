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

// CommentHandler serves comment threads. Access errors surface exactly
// as they would for the underlying post.
type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// Create handles POST /comments.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.PostUID == "" {
		httputil.WriteBadRequest(w, "post_uid is required")
		return
	}

	comment, err := h.commentService.Create(r.Context(), userUID, &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentContentEmpty):
			httputil.WriteBadRequest(w, "Comment content is required")
		case errors.Is(err, model.ErrCommentTooLong):
			httputil.WriteBadRequest(w, "Comment too long (max 1000 characters)")
		case errors.Is(err, model.ErrCommentsDisabled):
			httputil.WriteInvalidOperation(w, "Comments are disabled on this post")
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Parent comment not found")
		case errors.Is(err, model.ErrParentWrongPost):
			httputil.WriteBadRequest(w, "Parent comment belongs to a different post")
		default:
			if writePostAccessError(w, err) {
				return
			}
			logger.Get().Error("create comment failed", zap.String("user_uid", userUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to create comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Get handles GET /comments/{uid}.
func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	commentUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())

	comment, err := h.commentService.Get(r.Context(), commentUID, viewerUID)
	if err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			httputil.WriteNotFound(w, "Comment not found")
			return
		}
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("get comment failed", zap.String("comment_uid", commentUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get comment")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// Update handles PUT /comments/{uid}.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	commentUID := chi.URLParam(r, "uid")

	var req model.UpdateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Update(r.Context(), commentUID, userUID, &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotCommentOwner):
			httputil.WriteForbidden(w, "You can only edit your own comments")
		case errors.Is(err, model.ErrCommentContentEmpty):
			httputil.WriteBadRequest(w, "Comment content is required")
		case errors.Is(err, model.ErrCommentTooLong):
			httputil.WriteBadRequest(w, "Comment too long (max 1000 characters)")
		default:
			logger.Get().Error("update comment failed", zap.String("comment_uid", commentUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to update comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comment)
}

// Delete handles DELETE /comments/{uid}. The comment author and the
// post author can both delete.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	commentUID := chi.URLParam(r, "uid")

	if err := h.commentService.Delete(r.Context(), commentUID, userUID); err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotCommentOwner):
			httputil.WriteForbidden(w, "You can only delete your own comments")
		default:
			logger.Get().Error("delete comment failed", zap.String("comment_uid", commentUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to delete comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Comment deleted successfully",
	})
}

// Like handles POST /comments/{uid}/like.
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	commentUID := chi.URLParam(r, "uid")

	resp, err := h.commentService.Like(r.Context(), commentUID, userUID)
	if err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			httputil.WriteNotFound(w, "Comment not found")
			return
		}
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("like comment failed", zap.String("comment_uid", commentUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to like comment")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Unlike handles DELETE /comments/{uid}/like.
func (h *CommentHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	commentUID := chi.URLParam(r, "uid")

	resp, err := h.commentService.Unlike(r.Context(), commentUID, userUID)
	if err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			httputil.WriteNotFound(w, "Comment not found")
			return
		}
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("unlike comment failed", zap.String("comment_uid", commentUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to unlike comment")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Pin handles POST /comments/{uid}/pin. Only the post author pins.
func (h *CommentHandler) Pin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, true, "Comment pinned")
}

// Unpin handles DELETE /comments/{uid}/pin.
func (h *CommentHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, false, "Comment unpinned")
}

func (h *CommentHandler) setPinned(w http.ResponseWriter, r *http.Request, pinned bool, message string) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	commentUID := chi.URLParam(r, "uid")

	if err := h.commentService.SetPinned(r.Context(), commentUID, userUID, pinned); err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotPostOwner):
			httputil.WriteForbidden(w, "Only the post author can pin comments")
		default:
			if writePostAccessError(w, err) {
				return
			}
			logger.Get().Error("pin comment failed", zap.String("comment_uid", commentUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to update comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}

// Replies handles GET /comments/{uid}/replies.
func (h *CommentHandler) Replies(w http.ResponseWriter, r *http.Request) {
	commentUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	replies, err := h.commentService.Replies(r.Context(), commentUID, viewerUID, skip, limit)
	if err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			httputil.WriteNotFound(w, "Comment not found")
			return
		}
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("list replies failed", zap.String("comment_uid", commentUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get replies")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, replies)
}

// Thread handles GET /comments/{uid}/thread. Returns the root comment
// with every nested reply; clients nest by parent_comment_uid.
func (h *CommentHandler) Thread(w http.ResponseWriter, r *http.Request) {
	commentUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())

	thread, err := h.commentService.Thread(r.Context(), commentUID, viewerUID)
	if err != nil {
		if errors.Is(err, model.ErrCommentNotFound) {
			httputil.WriteNotFound(w, "Comment not found")
			return
		}
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("get thread failed", zap.String("comment_uid", commentUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get thread")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, thread)
}

// ByPost handles GET /comments/post/{uid}.
func (h *CommentHandler) ByPost(w http.ResponseWriter, r *http.Request) {
	postUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	comments, err := h.commentService.ByPost(r.Context(), postUID, viewerUID, skip, limit)
	if err != nil {
		if writePostAccessError(w, err) {
			return
		}
		logger.Get().Error("comments by post failed", zap.String("post_uid", postUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comments)
}

// ByUser handles GET /comments/user/{uid}.
func (h *CommentHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	comments, err := h.commentService.ByUser(r.Context(), uid, viewerUID, skip, limit)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("comments by user failed", zap.String("uid", uid), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, comments)
}
