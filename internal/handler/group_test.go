package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"loomgraph/internal/httputil"
	"loomgraph/internal/model"
)

func TestWriteGroupError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		// Rejoining a group you belong to breaks a domain rule; CONFLICT
		// stays reserved for uniqueness clashes like a taken group name.
		{"already member", model.ErrAlreadyMember, http.StatusBadRequest, httputil.ErrCodeInvalidOperation},
		{"name taken", model.ErrGroupNameTaken, http.StatusConflict, httputil.ErrCodeConflict},
		{"group missing", model.ErrGroupNotFound, http.StatusNotFound, httputil.ErrCodeNotFound},
		{"banned user", model.ErrBannedFromGroup, http.StatusForbidden, httputil.ErrCodeForbidden},
		{"not a member", model.ErrNotMember, http.StatusBadRequest, httputil.ErrCodeInvalidOperation},
		{"owner leaving", model.ErrOwnerCannotLeave, http.StatusBadRequest, httputil.ErrCodeInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if !writeGroupError(w, tt.err) {
				t.Fatalf("writeGroupError did not handle %v", tt.err)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
			var resp httputil.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}

	if writeGroupError(httptest.NewRecorder(), errors.New("driver timeout")) {
		t.Error("non-group errors should fall through to the caller")
	}

	t.Log("✓ group errors map onto the response envelope")
}
