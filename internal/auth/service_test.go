package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tripconnect/tripchat-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "ab", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, err := svc.Register(ctx, " ab ", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "abc", "12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, err := svc.Register(ctx, " alice ", "password123")
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	// Should collide because the stored username is trimmed.
	if _, err := svc.Register(ctx, "alice", "password123"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin_RoundTripClaims(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	token, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Username != "alice" || claims.IsGuest {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.UserID == "" {
		t.Fatal("expected a user id in the claims")
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateGuestUser_IssuesGuestToken(t *testing.T) {
	svc := newTestAuthService(t)

	token, sessionID, err := svc.CreateGuestUser(context.Background())
	if err != nil {
		t.Fatalf("expected guest creation success, got %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a session id")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if !claims.IsGuest {
		t.Fatal("expected guest claims")
	}
}

func TestValidateToken_RejectsForeignSecret(t *testing.T) {
	svc := newTestAuthService(t)

	foreign := &JWTConfig{
		Secret:   []byte("some-other-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	token, err := GenerateToken(foreign, "user-1", "alice", false)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected validation failure for foreign signature")
	}
}
