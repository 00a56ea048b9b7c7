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

// AuthHandler groups account lifecycle endpoints: register, login,
// token refresh and the self-service account switches.
type AuthHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

func NewAuthHandler(userService *service.UserService, authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
	}
}

// Register handles POST /users/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Username == "" {
		httputil.WriteBadRequest(w, "Username is required")
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "Email is required")
		return
	}
	if req.Password == "" {
		httputil.WriteBadRequest(w, "Password is required")
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		switch {
		case model.IsValidation(err):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrUsernameTaken):
			httputil.WriteConflict(w, "Username already taken")
		case errors.Is(err, model.ErrEmailTaken):
			httputil.WriteConflict(w, "Email already registered")
		default:
			logger.Get().Error("register failed", zap.Error(err))
			httputil.WriteInternalError(w, "Failed to register")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, user)
}

// Login handles POST /users/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.UsernameOrEmail == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "Username/email and password are required")
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			httputil.WriteUnauthorized(w, "Invalid username or password")
		case errors.Is(err, model.ErrAccountDeactivated):
			httputil.WriteForbidden(w, "Account is deactivated")
		default:
			logger.Get().Error("login failed", zap.Error(err))
			httputil.WriteInternalError(w, "Failed to login")
		}
		return
	}

	h.writeLoginResponse(w, r, user)
}

// Refresh handles POST /users/refresh. The presented refresh token is
// rotated; reuse of an already-rotated token revokes every session.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	pair, _, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrRefreshTokenNotFound):
			httputil.WriteUnauthorized(w, "Invalid refresh token")
		case errors.Is(err, model.ErrRefreshTokenReused):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenReused, "Refresh token reuse detected. Please login again.")
		default:
			logger.Get().Error("token refresh failed", zap.Error(err))
			httputil.WriteInternalError(w, "Failed to refresh tokens")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pair)
}

// Logout handles POST /users/logout. Revoking an unknown token still
// succeeds so repeated logouts are harmless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req model.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	if err := h.authService.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		logger.Get().Error("logout failed", zap.Error(err))
		httputil.WriteInternalError(w, "Failed to logout")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// ChangePassword handles POST /users/me/password. Every refresh token
// the user holds is revoked afterwards.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.userService.ChangePassword(r.Context(), userUID, &req); err != nil {
		switch {
		case model.IsValidation(err):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrInvalidCredentials):
			httputil.WriteUnauthorized(w, "Current password is incorrect")
		default:
			logger.Get().Error("password change failed", zap.String("user_uid", userUID), zap.Error(err))
			httputil.WriteInternalError(w, "Failed to change password")
		}
		return
	}

	if err := h.authService.RevokeAllUserTokens(r.Context(), userUID); err != nil {
		logger.Get().Error("failed to revoke sessions after password change",
			zap.String("user_uid", userUID), zap.Error(err))
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password changed. Please login again.",
	})
}

// Deactivate handles POST /users/me/deactivate. Sessions are revoked
// so the account goes dark immediately.
func (h *AuthHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.userService.Deactivate(r.Context(), userUID); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		logger.Get().Error("deactivate failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to deactivate account")
		return
	}

	if err := h.authService.RevokeAllUserTokens(r.Context(), userUID); err != nil {
		logger.Get().Error("failed to revoke sessions after deactivation",
			zap.String("user_uid", userUID), zap.Error(err))
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Account deactivated",
	})
}

// Activate handles POST /users/me/activate. A deactivated user cannot
// log in, so this endpoint takes credentials and returns a fresh
// session on success.
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.UsernameOrEmail == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "Username/email and password are required")
		return
	}

	user, err := h.userService.Reactivate(r.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			httputil.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		logger.Get().Error("reactivate failed", zap.Error(err))
		httputil.WriteInternalError(w, "Failed to activate account")
		return
	}

	h.writeLoginResponse(w, r, user)
}

func (h *AuthHandler) writeLoginResponse(w http.ResponseWriter, r *http.Request, user *model.User) {
	pair, err := h.authService.GenerateTokenPair(r.Context(), user.UID)
	if err != nil {
		logger.Get().Error("token generation failed", zap.String("user_uid", user.UID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to generate tokens")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, model.LoginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}
