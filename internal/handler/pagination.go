package handler

import (
	"net/http"
	"strconv"
)

// parsePagination reads the skip/limit query params. Missing or
// malformed values come back as zero and the service layer clamps.
func parsePagination(r *http.Request) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return skip, limit
}
