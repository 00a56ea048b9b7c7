package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/queue"
	"loomgraph/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserService handles accounts, profiles and the follow graph.
type UserService struct {
	userRepo  repository.UserRepository
	notifier  *NotificationService
	publisher queue.Publisher
}

func NewUserService(
	userRepo repository.UserRepository,
	notifier *NotificationService,
	publisher queue.Publisher,
) *UserService {
	return &UserService{
		userRepo:  userRepo,
		notifier:  notifier,
		publisher: publisher,
	}
}

// Register creates a new user account.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !model.ValidUsername(username) {
		return nil, model.Validationf("username must be %d-%d characters of letters, digits and underscores",
			model.MinUsernameLength, model.MaxUsernameLength)
	}
	if !emailPattern.MatchString(email) {
		return nil, model.Validationf("invalid email address")
	}
	if len(req.Password) < model.MinPasswordLength {
		return nil, model.Validationf("password must be at least %d characters", model.MinPasswordLength)
	}
	if req.Password != req.ConfirmPassword {
		return nil, model.Validationf("passwords do not match")
	}
	if req.Bio != nil && len(*req.Bio) > model.MaxBioLength {
		return nil, model.Validationf("bio must be at most %d characters", model.MaxBioLength)
	}

	// Check both before writing so the caller gets the right conflict
	// error; the unique constraints still back this up under races.
	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, model.ErrUsernameTaken
	}
	exists, err = s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		UID:          uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Bio:          req.Bio,
		Location:     req.Location,
		Website:      req.Website,
		PhoneNumber:  req.PhoneNumber,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates with username or email plus password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.userRepo.GetByUsernameOrEmail(ctx, strings.TrimSpace(req.UsernameOrEmail))
	if err != nil {
		// Don't reveal whether the account exists
		return nil, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, model.ErrAccountDeactivated
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.UID); err != nil {
		logger.Get().Warn("failed to record last login",
			zap.String("user_uid", user.UID), zap.Error(err))
	}
	return user, nil
}

// GetMe returns the caller's own full profile, email included.
func (s *UserService) GetMe(ctx context.Context, uid string) (*model.User, error) {
	return s.userRepo.GetByUID(ctx, uid)
}

// GetProfile returns a user's public profile with the viewer's follow
// state filled in. Follow lookup failure degrades to is_following=false
// rather than blocking the profile.
func (s *UserService) GetProfile(ctx context.Context, uid, viewerUID string) (*model.UserPublic, error) {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.publicProfile(ctx, user, viewerUID), nil
}

// GetProfileByUsername is GetProfile keyed by username.
func (s *UserService) GetProfileByUsername(ctx context.Context, username, viewerUID string) (*model.UserPublic, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.publicProfile(ctx, user, viewerUID), nil
}

func (s *UserService) publicProfile(ctx context.Context, user *model.User, viewerUID string) *model.UserPublic {
	public := user.Public()
	if viewerUID != "" && viewerUID != user.UID {
		following, err := s.userRepo.IsFollowing(ctx, viewerUID, user.UID)
		if err != nil {
			logger.Get().Warn("failed to check follow status",
				zap.String("viewer_uid", viewerUID), zap.String("user_uid", user.UID), zap.Error(err))
		} else {
			public.IsFollowing = following
		}
	}
	return public
}

// UpdateProfile applies a partial profile update. Nil fields are left
// untouched.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	if req.Bio != nil {
		if len(*req.Bio) > model.MaxBioLength {
			return nil, model.Validationf("bio must be at most %d characters", model.MaxBioLength)
		}
		user.Bio = req.Bio
	}
	if req.FirstName != nil {
		user.FirstName = req.FirstName
	}
	if req.LastName != nil {
		user.LastName = req.LastName
	}
	if req.Location != nil {
		user.Location = req.Location
	}
	if req.Website != nil {
		user.Website = req.Website
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.IsPrivate != nil {
		user.IsPrivate = *req.IsPrivate
	}
	if req.Interests != nil {
		user.Interests = *req.Interests
	}
	if req.ProfilePictureURL != nil {
		user.ProfilePictureURL = req.ProfilePictureURL
	}
	if req.CoverPhotoURL != nil {
		user.CoverPhotoURL = req.CoverPhotoURL
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before setting a new one.
// The caller is expected to revoke refresh tokens afterwards.
func (s *UserService) ChangePassword(ctx context.Context, uid string, req *model.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return model.ErrInvalidCredentials
	}
	if len(req.NewPassword) < model.MinPasswordLength {
		return model.Validationf("password must be at least %d characters", model.MinPasswordLength)
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return model.Validationf("passwords do not match")
	}
	if req.NewPassword == req.CurrentPassword {
		return model.Validationf("new password must differ from the current one")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, uid, string(hashed))
}

// Deactivate soft-disables the account. Content stays in the graph and
// the account comes back through Reactivate.
func (s *UserService) Deactivate(ctx context.Context, uid string) error {
	return s.userRepo.SetActive(ctx, uid, false)
}

// Reactivate re-enables a deactivated account. It takes credentials
// because a deactivated user cannot log in to get a token first.
func (s *UserService) Reactivate(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.userRepo.GetByUsernameOrEmail(ctx, strings.TrimSpace(req.UsernameOrEmail))
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if !user.IsActive {
		if err := s.userRepo.SetActive(ctx, user.UID, true); err != nil {
			return nil, err
		}
		user.IsActive = true
	}
	return user, nil
}

// Follow creates follower -> followee. Idempotent: following an already
// followed user succeeds and reports the existing state.
func (s *UserService) Follow(ctx context.Context, followerUID, followeeUID string) (*model.FollowResponse, error) {
	if followerUID == followeeUID {
		return nil, model.ErrCannotFollowSelf
	}

	created, err := s.userRepo.Follow(ctx, followerUID, followeeUID)
	if err != nil {
		return nil, err
	}
	if !created {
		return &model.FollowResponse{Message: "already following", IsFollowing: true}, nil
	}

	if s.notifier != nil {
		s.notifier.NotifyAsync(ctx, followeeUID, followerUID, model.NotificationTypeFollow, nil)
	}

	// Publish after the graph write so the worker backfills the new
	// followee's posts into the follower's feed cache.
	if s.publisher != nil {
		event := queue.NewUserFollowedEvent(followerUID, followeeUID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			logger.Get().Warn("failed to publish user followed event",
				zap.String("follower_uid", followerUID),
				zap.String("followee_uid", followeeUID),
				zap.Error(err))
		}
	}

	return &model.FollowResponse{Message: "followed successfully", IsFollowing: true}, nil
}

// Unfollow removes follower -> followee. Unfollowing someone you don't
// follow succeeds and says so.
func (s *UserService) Unfollow(ctx context.Context, followerUID, followeeUID string) (*model.FollowResponse, error) {
	removed, err := s.userRepo.Unfollow(ctx, followerUID, followeeUID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return &model.FollowResponse{Message: "not following", IsFollowing: false}, nil
	}

	if s.publisher != nil {
		event := queue.NewUserUnfollowedEvent(followerUID, followeeUID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			logger.Get().Warn("failed to publish user unfollowed event",
				zap.String("follower_uid", followerUID),
				zap.String("followee_uid", followeeUID),
				zap.Error(err))
		}
	}

	return &model.FollowResponse{Message: "unfollowed successfully", IsFollowing: false}, nil
}

// Followers lists users following uid, with the viewer's own follow
// state for each.
func (s *UserService) Followers(ctx context.Context, uid, viewerUID string, skip, limit int) (*model.UserListResponse, error) {
	if _, err := s.userRepo.GetByUID(ctx, uid); err != nil {
		return nil, err
	}
	skip, limit = normalizePage(skip, limit)
	users, err := s.userRepo.Followers(ctx, uid, skip, limit)
	if err != nil {
		return nil, err
	}
	users = s.enrichWithFollowStatus(ctx, viewerUID, users)
	return &model.UserListResponse{Users: users, Total: len(users)}, nil
}

// Following lists users uid follows.
func (s *UserService) Following(ctx context.Context, uid, viewerUID string, skip, limit int) (*model.UserListResponse, error) {
	if _, err := s.userRepo.GetByUID(ctx, uid); err != nil {
		return nil, err
	}
	skip, limit = normalizePage(skip, limit)
	users, err := s.userRepo.Following(ctx, uid, skip, limit)
	if err != nil {
		return nil, err
	}
	users = s.enrichWithFollowStatus(ctx, viewerUID, users)
	return &model.UserListResponse{Users: users, Total: len(users)}, nil
}

// Suggestions ranks people two FOLLOWS hops away by mutual count.
// Candidates are never already followed, so no enrichment pass.
func (s *UserService) Suggestions(ctx context.Context, uid string, skip, limit int) (*model.UserListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	users, err := s.userRepo.Suggestions(ctx, uid, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.UserListResponse{Users: users, Total: len(users)}, nil
}

// Search matches usernames and display names, case-insensitive.
func (s *UserService) Search(ctx context.Context, query, viewerUID string, skip, limit int) (*model.UserListResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &model.UserListResponse{Users: []model.UserPublic{}}, nil
	}
	skip, limit = normalizePage(skip, limit)
	users, err := s.userRepo.Search(ctx, query, skip, limit)
	if err != nil {
		return nil, err
	}
	users = s.enrichWithFollowStatus(ctx, viewerUID, users)
	return &model.UserListResponse{Users: users, Total: len(users)}, nil
}

// enrichWithFollowStatus fills is_following for each user with one
// batch query. On failure the list is returned as-is, all false.
func (s *UserService) enrichWithFollowStatus(ctx context.Context, viewerUID string, users []model.UserPublic) []model.UserPublic {
	if viewerUID == "" || len(users) == 0 {
		return users
	}

	uids := make([]string, 0, len(users))
	for _, u := range users {
		uids = append(uids, u.UID)
	}

	follows, err := s.userRepo.CheckFollows(ctx, viewerUID, uids)
	if err != nil {
		logger.Get().Warn("failed to batch check follows",
			zap.String("viewer_uid", viewerUID), zap.Error(err))
		return users
	}

	for i := range users {
		users[i].IsFollowing = follows[users[i].UID]
	}
	return users
}
