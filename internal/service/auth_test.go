package service

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"loomgraph/internal/config"
	"loomgraph/internal/model"
)

func newTestAuthService() (*AuthService, *mockTokenRepository) {
	tokens := newMockTokenRepository()
	cfg := &config.Config{
		JWTSecret:          "test-secret",
		AccessTokenMaxAge:  900,
		RefreshTokenMaxAge: 3600,
	}
	return NewAuthService(tokens, cfg), tokens
}

func TestGenerateTokenPair(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newTestAuthService()

	pair, err := svc.GenerateTokenPair(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if pair.ExpiresIn != 900 {
		t.Errorf("expires_in: got %d, want 900", pair.ExpiresIn)
	}

	// The access token must verify against the signing secret and carry
	// the user.
	parsed, err := jwt.Parse(pair.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("access token does not parse: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("unexpected claims type")
	}
	if claims["user_id"] != "u1" || claims["sub"] != "u1" {
		t.Errorf("wrong subject claims: %v", claims)
	}

	// The refresh token is stored hashed, never raw.
	if len(tokens.active) != 1 {
		t.Fatalf("expected 1 stored refresh token, got %d", len(tokens.active))
	}
	if _, rawStored := tokens.active[pair.RefreshToken]; rawStored {
		t.Error("refresh token stored raw instead of hashed")
	}

	t.Log("✓ token pair issues a signed JWT and a hashed refresh token")
}

func TestRefreshTokens_Rotation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService()

	first, err := svc.GenerateTokenPair(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	second, uid, err := svc.RefreshTokens(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}
	if uid != "u1" {
		t.Errorf("rotation resolved the wrong user: %s", uid)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("rotation must mint a fresh refresh token")
	}

	t.Log("✓ refresh rotates the token")
}

func TestRefreshTokens_ReuseRevokesFamily(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newTestAuthService()

	first, err := svc.GenerateTokenPair(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	second, _, err := svc.RefreshTokens(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}

	// Presenting the consumed token again means it leaked. Every
	// session dies, the still-valid successor included.
	_, _, err = svc.RefreshTokens(ctx, first.RefreshToken)
	if !errors.Is(err, model.ErrRefreshTokenReused) {
		t.Fatalf("expected ErrRefreshTokenReused, got %v", err)
	}
	if len(tokens.revokeAllCalls) != 1 || tokens.revokeAllCalls[0] != "u1" {
		t.Errorf("expected a full revocation for u1, got %v", tokens.revokeAllCalls)
	}

	_, _, err = svc.RefreshTokens(ctx, second.RefreshToken)
	if !errors.Is(err, model.ErrRefreshTokenNotFound) {
		t.Errorf("successor should be dead after the revocation, got %v", err)
	}

	t.Log("✓ token reuse kills the whole session family")
}

func TestRefreshTokens_Unknown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService()

	_, _, err := svc.RefreshTokens(ctx, "never-issued")
	if !errors.Is(err, model.ErrRefreshTokenNotFound) {
		t.Fatalf("expected ErrRefreshTokenNotFound, got %v", err)
	}

	t.Log("✓ unknown refresh tokens rejected")
}

func TestRevokeRefreshToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService()

	pair, err := svc.GenerateTokenPair(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if err := svc.RevokeRefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken failed: %v", err)
	}

	// Logout is a clean revocation, not a reuse signal.
	_, _, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	if !errors.Is(err, model.ErrRefreshTokenNotFound) {
		t.Errorf("expected ErrRefreshTokenNotFound after logout, got %v", err)
	}

	t.Log("✓ logout drops the refresh token without tripping reuse detection")
}
