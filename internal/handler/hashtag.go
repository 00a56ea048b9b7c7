package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loomgraph/internal/httputil"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/service"
)

// HashtagHandler serves hashtag lookups and the trending list.
type HashtagHandler struct {
	hashtagService *service.HashtagService
}

func NewHashtagHandler(hashtagService *service.HashtagService) *HashtagHandler {
	return &HashtagHandler{hashtagService: hashtagService}
}

// Trending handles GET /hashtags/trending.
func (h *HashtagHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tags, err := h.hashtagService.Trending(r.Context(), limit)
	if err != nil {
		logger.Get().Error("trending hashtags failed", zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get trending hashtags")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tags)
}

// Get handles GET /hashtags/{name}.
func (h *HashtagHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	tag, err := h.hashtagService.GetByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, model.ErrHashtagNotFound) {
			httputil.WriteNotFound(w, "Hashtag not found")
			return
		}
		logger.Get().Error("get hashtag failed", zap.String("name", name), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get hashtag")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tag)
}
