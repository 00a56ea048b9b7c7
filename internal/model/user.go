package model

import (
	"errors"
	"regexp"
	"time"
)

// User represents a user node in the graph.
type User struct {
	UID               string     `json:"uid"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"` // never serialized
	FirstName         *string    `json:"first_name"`
	LastName          *string    `json:"last_name"`
	Bio               *string    `json:"bio"`
	Location          *string    `json:"location"`
	Website           *string    `json:"website"`
	PhoneNumber       *string    `json:"phone_number"`
	ProfilePictureURL *string    `json:"profile_picture_url"`
	CoverPhotoURL     *string    `json:"cover_photo_url"`
	IsActive          bool       `json:"is_active"`
	IsVerified        bool       `json:"is_verified"`
	IsPrivate         bool       `json:"is_private"`
	Interests         []string   `json:"interests"`
	FollowersCount    int        `json:"followers_count"`
	FollowingCount    int        `json:"following_count"`
	PostsCount        int        `json:"posts_count"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// UserPublic is the profile shape shown to other users (no email/phone).
type UserPublic struct {
	UID               string    `json:"uid"`
	Username          string    `json:"username"`
	FirstName         *string   `json:"first_name"`
	LastName          *string   `json:"last_name"`
	Bio               *string   `json:"bio"`
	Location          *string   `json:"location"`
	Website           *string   `json:"website"`
	ProfilePictureURL *string   `json:"profile_picture_url"`
	CoverPhotoURL     *string   `json:"cover_photo_url"`
	IsVerified        bool      `json:"is_verified"`
	FollowersCount    int       `json:"followers_count"`
	FollowingCount    int       `json:"following_count"`
	PostsCount        int       `json:"posts_count"`
	CreatedAt         time.Time `json:"created_at"`
	IsFollowing       bool      `json:"is_following"`
}

// Public strips the private fields for display to other users.
func (u *User) Public() *UserPublic {
	return &UserPublic{
		UID:               u.UID,
		Username:          u.Username,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Bio:               u.Bio,
		Location:          u.Location,
		Website:           u.Website,
		ProfilePictureURL: u.ProfilePictureURL,
		CoverPhotoURL:     u.CoverPhotoURL,
		IsVerified:        u.IsVerified,
		FollowersCount:    u.FollowersCount,
		FollowingCount:    u.FollowingCount,
		PostsCount:        u.PostsCount,
		CreatedAt:         u.CreatedAt,
	}
}

// RegisterRequest is the request body for creating an account.
type RegisterRequest struct {
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirm_password"`
	FirstName       *string  `json:"first_name"`
	LastName        *string  `json:"last_name"`
	Bio             *string  `json:"bio"`
	Location        *string  `json:"location"`
	Website         *string  `json:"website"`
	PhoneNumber     *string  `json:"phone_number"`
	IsPrivate       bool     `json:"is_private"`
	Interests       []string `json:"interests"`
}

// LoginRequest accepts either the username or the email in the same field.
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

// UpdateProfileRequest is a partial update; nil fields are left untouched.
// Username, email and password are changed through their own endpoints.
type UpdateProfileRequest struct {
	FirstName         *string   `json:"first_name"`
	LastName          *string   `json:"last_name"`
	Bio               *string   `json:"bio"`
	Location          *string   `json:"location"`
	Website           *string   `json:"website"`
	PhoneNumber       *string   `json:"phone_number"`
	IsPrivate         *bool     `json:"is_private"`
	Interests         *[]string `json:"interests"`
	ProfilePictureURL *string   `json:"profile_picture_url"`
	CoverPhotoURL     *string   `json:"cover_photo_url"`
}

// ChangePasswordRequest is the request body for POST /users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// FollowResponse reports the follow state after a follow/unfollow call.
type FollowResponse struct {
	Message     string `json:"message"`
	IsFollowing bool   `json:"is_following"`
}

// UserListResponse is the paginated user list response.
type UserListResponse struct {
	Users []UserPublic `json:"users"`
	Total int          `json:"total"`
}

// User constraints
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8
	MaxBioLength      = 500
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidUsername reports whether the username matches length and charset rules.
func ValidUsername(username string) bool {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return false
	}
	return usernamePattern.MatchString(username)
}

// User errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrCannotFollowSelf   = errors.New("cannot follow yourself")
)
