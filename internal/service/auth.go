package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"loomgraph/internal/config"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/repository"
)

// AuthService issues JWT access tokens and manages refresh tokens with
// rotation and reuse detection. Refresh tokens live in Redis keyed by
// their SHA-256 hash; the raw token is only ever held by the client.
type AuthService struct {
	tokenRepo repository.TokenRepository
	config    *config.Config
}

func NewAuthService(tokenRepo repository.TokenRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		tokenRepo: tokenRepo,
		config:    cfg,
	}
}

// GenerateTokenPair issues a new access token and stores a fresh
// refresh token for the user.
func (s *AuthService) GenerateTokenPair(ctx context.Context, userUID string) (*model.TokenPair, error) {
	accessToken, err := s.generateAccessToken(userUID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshTokenRaw := uuid.New().String()
	ttl := time.Duration(s.config.RefreshTokenMaxAge) * time.Second
	if err := s.tokenRepo.Store(ctx, hashToken(refreshTokenRaw), userUID, ttl); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenRaw,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, nil
}

// RefreshTokens rotates the refresh token: the presented token is
// consumed and a new pair comes back. A token that was already consumed
// means the token leaked somewhere, so every session the user has gets
// revoked.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshTokenRaw string) (*model.TokenPair, string, error) {
	userUID, reused, err := s.tokenRepo.Consume(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		return nil, "", err
	}
	if reused {
		logger.Get().Warn("refresh token reuse detected, revoking all sessions",
			zap.String("user_uid", userUID))
		if err := s.tokenRepo.RevokeAllForUser(ctx, userUID); err != nil {
			logger.Get().Error("failed to revoke token family",
				zap.String("user_uid", userUID),
				zap.Error(err))
		}
		return nil, "", model.ErrRefreshTokenReused
	}

	pair, err := s.GenerateTokenPair(ctx, userUID)
	if err != nil {
		return nil, "", err
	}
	return pair, userUID, nil
}

// RevokeRefreshToken drops a single refresh token (logout).
func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error {
	return s.tokenRepo.Revoke(ctx, hashToken(refreshTokenRaw))
}

// RevokeAllUserTokens drops every session the user has. Called on
// password change and account deactivation.
func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userUID string) error {
	return s.tokenRepo.RevokeAllForUser(ctx, userUID)
}

func (s *AuthService) generateAccessToken(userUID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     userUID,
		"user_id": userUID,
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
