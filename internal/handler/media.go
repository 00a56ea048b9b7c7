package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"loomgraph/internal/httputil"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/service"
	"loomgraph/internal/transport/http/middleware"
)

// MediaHandler hands out presigned upload URLs so post media bytes
// never pass through the API server.
type MediaHandler struct {
	mediaService *service.MediaService
}

func NewMediaHandler(mediaService *service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// writeMediaError maps media validation errors; false means unmapped.
func writeMediaError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, model.ErrInvalidMediaType):
		httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported media type. Allowed: jpeg, png, gif, webp, mp4")
	case errors.Is(err, model.ErrFileTooLarge):
		httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Media exceeds 10MB limit")
	case errors.Is(err, model.ErrNoMediaItems):
		httputil.WriteBadRequest(w, "items is required")
	case errors.Is(err, model.ErrTooManyMediaItems):
		httputil.WriteBadRequest(w, "Too many media items (max 10)")
	default:
		return false
	}
	return true
}

// PresignPostUpload handles POST /media/posts/presign.
func (h *MediaHandler) PresignPostUpload(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB is plenty for JSON
	var req model.PresignPostUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.ContentType == "" {
		httputil.WriteBadRequest(w, "content_type is required")
		return
	}

	res, err := h.mediaService.PresignPostUpload(r.Context(), userUID, &req)
	if err != nil {
		if writeMediaError(w, err) {
			return
		}
		logger.Get().Error("presign failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to create upload URL")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

// PresignPostUploadBatch handles POST /media/posts/presign-batch.
func (h *MediaHandler) PresignPostUploadBatch(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB is plenty for JSON
	var req model.PresignPostUploadBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	res, err := h.mediaService.PresignPostUploadBatch(r.Context(), userUID, &req)
	if err != nil {
		if writeMediaError(w, err) {
			return
		}
		logger.Get().Error("presign batch failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to create upload URLs")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}
