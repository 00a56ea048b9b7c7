package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loomgraph/internal/httputil"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/service"
	"loomgraph/internal/transport/http/middleware"
)

// UserHandler serves profiles, discovery and the current user's own
// profile management.
type UserHandler struct {
	userService  *service.UserService
	mediaService *service.MediaService
}

func NewUserHandler(userService *service.UserService, mediaService *service.MediaService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		mediaService: mediaService,
	}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.userService.GetMe(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("get me failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe handles PUT /users/me.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userUID, &req)
	if err != nil {
		switch {
		case model.IsValidation(err):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, "User not found")
		default:
			logger.Get().Error("profile update failed", zap.String("user_uid", userUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to update profile")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// UploadAvatar handles POST /users/me/avatar. The image is normalized
// to a 200x200 JPEG, stored under a fresh key and the profile picture
// URL is updated; the previous object is deleted best-effort.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	maxFormSize := int64(model.MaxAvatarSizeBytes) + 1024*1024 // allow form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		if strings.Contains(err.Error(), "request body too large") {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Avatar exceeds 5MB limit")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.WriteBadRequest(w, "avatar file is required")
		return
	}
	defer file.Close()

	current, err := h.userService.GetMe(r.Context(), userUID)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to get user")
		return
	}

	upload, err := h.mediaService.UploadAvatar(r.Context(), file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Avatar exceeds 5MB limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		default:
			logger.Get().Error("avatar upload failed", zap.String("user_uid", userUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to upload avatar")
		}
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userUID, &model.UpdateProfileRequest{
		ProfilePictureURL: &upload.URL,
	})
	if err != nil {
		logger.Get().Error("avatar save failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to save avatar")
		return
	}

	// The old object is unreachable now; reclaim the storage.
	if current.ProfilePictureURL != nil {
		if oldKey := h.mediaService.KeyFromPublicURL(*current.ProfilePictureURL); oldKey != "" {
			if err := h.mediaService.DeleteObject(r.Context(), oldKey); err != nil {
				logger.Get().Warn("failed to delete previous avatar",
					zap.String("user_uid", userUID), zap.String("key", oldKey), zap.Error(err))
			}
		}
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// Suggestions handles GET /users/me/suggestions.
func (h *UserHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	skip, limit := parsePagination(r)
	users, err := h.userService.Suggestions(r.Context(), userUID, skip, limit)
	if err != nil {
		logger.Get().Error("suggestions failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get suggestions")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, users)
}

// Search handles GET /users/search?q=...
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())

	query := r.URL.Query().Get("q")
	skip, limit := parsePagination(r)

	users, err := h.userService.Search(r.Context(), query, viewerUID, skip, limit)
	if err != nil {
		logger.Get().Error("user search failed", zap.String("query", query), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to search users")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, users)
}

// GetProfile handles GET /users/{uid}.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())

	profile, err := h.userService.GetProfile(r.Context(), uid, viewerUID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("get profile failed", zap.String("uid", uid), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// GetByUsername handles GET /users/username/{username}.
func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())

	profile, err := h.userService.GetProfileByUsername(r.Context(), username, viewerUID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("get profile by username failed", zap.String("username", username), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}
