package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"loomgraph/internal/model"
	"loomgraph/internal/queue"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

// ============================================================
// Register
// ============================================================

func TestRegister_Success(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Register(ctx, &model.RegisterRequest{
		Username:        "alice_01",
		Email:           "Alice@Example.COM",
		Password:        "hunter2hunter2",
		ConfirmPassword: "hunter2hunter2",
		Bio:             strPtr("hi there"),
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if user.UID == "" {
		t.Error("expected a generated uid")
	}
	if !user.IsActive {
		t.Error("new accounts should start active")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not lowercased: %q", user.Email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2hunter2")); err != nil {
		t.Error("stored hash does not verify against the password")
	}
	if len(repo.createCalls) != 1 {
		t.Errorf("expected 1 Create call, got %d", len(repo.createCalls))
	}

	t.Log("✓ registration creates an active account with a hashed password")
}

func TestRegister_UsernameTaken(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository(testUser("u1", "alice"))
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username:        "alice",
		Email:           "other@example.com",
		Password:        "hunter2hunter2",
		ConfirmPassword: "hunter2hunter2",
	})
	if !errors.Is(err, model.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if len(repo.createCalls) != 0 {
		t.Error("Create should not run on a conflict")
	}

	t.Log("✓ duplicate username rejected")
}

func TestRegister_EmailTaken(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository(testUser("u1", "alice"))
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username:        "bob",
		Email:           "alice@example.com",
		Password:        "hunter2hunter2",
		ConfirmPassword: "hunter2hunter2",
	})
	if !errors.Is(err, model.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	t.Log("✓ duplicate email rejected")
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newMockUserRepository(), nil, nil)

	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{
			name: "username too short",
			req:  model.RegisterRequest{Username: "ab", Email: "a@b.com", Password: "longenough", ConfirmPassword: "longenough"},
		},
		{
			name: "username with spaces",
			req:  model.RegisterRequest{Username: "not valid", Email: "a@b.com", Password: "longenough", ConfirmPassword: "longenough"},
		},
		{
			name: "bad email",
			req:  model.RegisterRequest{Username: "charlie", Email: "not-an-email", Password: "longenough", ConfirmPassword: "longenough"},
		},
		{
			name: "short password",
			req:  model.RegisterRequest{Username: "charlie", Email: "a@b.com", Password: "short", ConfirmPassword: "short"},
		},
		{
			name: "password mismatch",
			req:  model.RegisterRequest{Username: "charlie", Email: "a@b.com", Password: "longenough", ConfirmPassword: "different00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, &tt.req)
			if err == nil {
				t.Fatal("expected a validation error, got nil")
			}
			if !model.IsValidation(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}

	t.Log("✓ register input validation")
}

// ============================================================
// Login
// ============================================================

func TestLogin(t *testing.T) {
	ctx := context.Background()

	alice := testUser("u1", "alice")
	alice.PasswordHash = mustHash(t, "correct-horse")

	sleepy := testUser("u2", "sleepy")
	sleepy.PasswordHash = mustHash(t, "correct-horse")
	sleepy.IsActive = false

	repo := newMockUserRepository(alice, sleepy)
	svc := NewUserService(repo, nil, nil)

	tests := []struct {
		name    string
		login   string
		pass    string
		wantErr error
	}{
		{name: "by username", login: "alice", pass: "correct-horse", wantErr: nil},
		{name: "by email", login: "alice@example.com", pass: "correct-horse", wantErr: nil},
		{name: "unknown account", login: "nobody", pass: "correct-horse", wantErr: model.ErrInvalidCredentials},
		{name: "wrong password", login: "alice", pass: "battery-staple", wantErr: model.ErrInvalidCredentials},
		{name: "deactivated account", login: "sleepy", pass: "correct-horse", wantErr: model.ErrAccountDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Login(ctx, &model.LoginRequest{UsernameOrEmail: tt.login, Password: tt.pass})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if user.UID != "u1" {
				t.Errorf("wrong user returned: %s", user.UID)
			}
		})
	}

	t.Log("✓ login paths")
}

// ============================================================
// Follow / Unfollow
// ============================================================

func TestFollow_Self(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository(testUser("u1", "alice"))
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Follow(ctx, "u1", "u1")
	if !errors.Is(err, model.ErrCannotFollowSelf) {
		t.Fatalf("expected ErrCannotFollowSelf, got %v", err)
	}
	if len(repo.followCalls) != 0 {
		t.Error("repo should not be touched on a self-follow")
	}

	t.Log("✓ self-follow rejected before the graph write")
}

func TestFollow_NotifiesAndPublishes(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository(testUser("u1", "alice"), testUser("u2", "bob"))
	notifier, notifRepo := newTestNotifier(repo)
	pub := &mockPublisher{}
	svc := NewUserService(repo, notifier, pub)

	resp, err := svc.Follow(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if !resp.IsFollowing {
		t.Error("expected is_following=true")
	}

	// Bob gets notified that alice followed him.
	if len(notifRepo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifRepo.created))
	}
	call := notifRepo.created[0]
	if call.RecipientUID != "u2" {
		t.Errorf("notification went to %s, want u2", call.RecipientUID)
	}
	if call.Notification.Type != model.NotificationTypeFollow {
		t.Errorf("wrong notification type: %s", call.Notification.Type)
	}
	if call.Notification.Message != "alice started following you" {
		t.Errorf("unexpected message: %q", call.Notification.Message)
	}

	// The worker learns about the edge so it can backfill the feed.
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	event := pub.events[0]
	if event.Type != queue.EventUserFollowed {
		t.Errorf("wrong event type: %s", event.Type)
	}
	if event.FollowerUID != "u1" || event.FolloweeUID != "u2" {
		t.Errorf("wrong event edge: %s -> %s", event.FollowerUID, event.FolloweeUID)
	}

	t.Log("✓ fresh follow notifies the followee and publishes the event")
}

func TestFollow_AlreadyFollowing(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository(testUser("u1", "alice"), testUser("u2", "bob"))
	repo.followFn = func(ctx context.Context, followerUID, followeeUID string) (bool, error) {
		return false, nil // edge already existed
	}
	notifier, notifRepo := newTestNotifier(repo)
	pub := &mockPublisher{}
	svc := NewUserService(repo, notifier, pub)

	resp, err := svc.Follow(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if !resp.IsFollowing {
		t.Error("expected is_following=true")
	}
	if len(notifRepo.created) != 0 {
		t.Error("repeat follow must not re-notify")
	}
	if len(pub.events) != 0 {
		t.Error("repeat follow must not re-publish")
	}

	t.Log("✓ repeat follow is idempotent and quiet")
}

func TestUnfollow(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository(testUser("u1", "alice"), testUser("u2", "bob"))
	pub := &mockPublisher{}
	svc := NewUserService(repo, nil, pub)

	resp, err := svc.Unfollow(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}
	if resp.IsFollowing {
		t.Error("expected is_following=false")
	}
	if got := pub.eventTypes(); len(got) != 1 || got[0] != queue.EventUserUnfollowed {
		t.Errorf("expected one user_unfollowed event, got %v", got)
	}

	t.Log("✓ unfollow publishes the cleanup event")
}

func TestUnfollow_NotFollowing(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository(testUser("u1", "alice"), testUser("u2", "bob"))
	repo.unfollowFn = func(ctx context.Context, followerUID, followeeUID string) (bool, error) {
		return false, nil
	}
	pub := &mockPublisher{}
	svc := NewUserService(repo, nil, pub)

	resp, err := svc.Unfollow(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}
	if resp.IsFollowing {
		t.Error("expected is_following=false")
	}
	if len(pub.events) != 0 {
		t.Error("no edge removed, no event expected")
	}

	t.Log("✓ unfollowing a stranger is a quiet no-op")
}

// ============================================================
// Password / account state
// ============================================================

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	alice := testUser("u1", "alice")
	alice.PasswordHash = mustHash(t, "old-password")
	repo := newMockUserRepository(alice)
	svc := NewUserService(repo, nil, nil)

	err := svc.ChangePassword(ctx, "u1", &model.ChangePasswordRequest{
		CurrentPassword:    "old-password",
		NewPassword:        "brand-new-pass",
		ConfirmNewPassword: "brand-new-pass",
	})
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("brand-new-pass")); err != nil {
		t.Error("new password does not verify after the change")
	}

	t.Log("✓ password change stores a fresh hash")
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	ctx := context.Background()
	alice := testUser("u1", "alice")
	alice.PasswordHash = mustHash(t, "old-password")
	repo := newMockUserRepository(alice)
	svc := NewUserService(repo, nil, nil)

	err := svc.ChangePassword(ctx, "u1", &model.ChangePasswordRequest{
		CurrentPassword:    "guess",
		NewPassword:        "brand-new-pass",
		ConfirmNewPassword: "brand-new-pass",
	})
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	t.Log("✓ current password is verified first")
}

func TestReactivate(t *testing.T) {
	ctx := context.Background()
	alice := testUser("u1", "alice")
	alice.PasswordHash = mustHash(t, "correct-horse")
	alice.IsActive = false
	repo := newMockUserRepository(alice)
	svc := NewUserService(repo, nil, nil)

	// Wrong credentials keep the account down.
	_, err := svc.Reactivate(ctx, &model.LoginRequest{UsernameOrEmail: "alice", Password: "nope"})
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if repo.users["u1"].IsActive {
		t.Fatal("account flipped active on bad credentials")
	}

	// Right credentials bring it back.
	user, err := svc.Reactivate(ctx, &model.LoginRequest{UsernameOrEmail: "alice", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Reactivate failed: %v", err)
	}
	if !user.IsActive || !repo.users["u1"].IsActive {
		t.Error("account should be active again")
	}

	t.Log("✓ reactivation requires valid credentials")
}

// ============================================================
// Search
// ============================================================

func TestSearch_EmptyQuery(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepository()
	called := false
	repo.searchFn = func(ctx context.Context, query string, skip, limit int) ([]model.UserPublic, error) {
		called = true
		return nil, nil
	}
	svc := NewUserService(repo, nil, nil)

	resp, err := svc.Search(ctx, "   ", "", 0, 20)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if called {
		t.Error("blank query should not hit the repository")
	}
	if len(resp.Users) != 0 {
		t.Errorf("expected empty result, got %d users", len(resp.Users))
	}

	t.Log("✓ blank search short-circuits")
}
