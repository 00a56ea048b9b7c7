package model

import (
	"errors"
	"strings"
	"time"
)

// Group types
const (
	GroupTypePublic  = "public"
	GroupTypePrivate = "private"
	GroupTypeSecret  = "secret"
)

// Group roles, strongest first. A user's effective role is the strongest
// edge they hold; the owner also carries admin and member edges.
const (
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

var validGroupTypes = map[string]struct{}{
	GroupTypePublic:  {},
	GroupTypePrivate: {},
	GroupTypeSecret:  {},
}

// ValidGroupType reports whether t is a known group type.
func ValidGroupType(t string) bool {
	_, ok := validGroupTypes[t]
	return ok
}

// PromotableRole reports whether r can be granted through promotion.
func PromotableRole(r string) bool {
	return r == RoleAdmin || r == RoleModerator
}

// Group represents a group node in the graph.
type Group struct {
	UID               string    `json:"uid"`
	Name              string    `json:"name"`
	Description       *string   `json:"description"`
	GroupType         string    `json:"group_type"`
	Category          *string   `json:"category"`
	Location          *string   `json:"location"`
	Tags              []string  `json:"tags"`
	Rules             []string  `json:"rules"`
	Guidelines        *string   `json:"guidelines"`
	ProfilePictureURL *string   `json:"profile_picture_url"`
	CoverPhotoURL     *string   `json:"cover_photo_url"`
	OwnerUID          string    `json:"owner_uid"`
	OwnerUsername     string    `json:"owner_username"`
	IsActive          bool      `json:"is_active"`
	RequireApproval   bool      `json:"require_approval"`
	AllowMemberPosts  bool      `json:"allow_member_posts"`
	MembersCount      int       `json:"members_count"`
	PostsCount        int       `json:"posts_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Viewer-dependent fields, filled by the service layer
	UserRole *string `json:"user_role,omitempty"`
	IsMember bool    `json:"is_member"`
}

// GroupMember is a member listing entry with their role in the group.
type GroupMember struct {
	UserPublic
	Role string `json:"role"`
}

// CreateGroupRequest is the request body for creating a group.
type CreateGroupRequest struct {
	Name             string   `json:"name"`
	Description      *string  `json:"description"`
	GroupType        string   `json:"group_type"`
	Category         *string  `json:"category"`
	Location         *string  `json:"location"`
	Tags             []string `json:"tags"`
	Rules            []string `json:"rules"`
	Guidelines       *string  `json:"guidelines"`
	RequireApproval  bool     `json:"require_approval"`
	AllowMemberPosts *bool    `json:"allow_member_posts"` // defaults to true
}

// UpdateGroupRequest is a partial update; nil fields are left untouched.
type UpdateGroupRequest struct {
	Name              *string   `json:"name"`
	Description       *string   `json:"description"`
	GroupType         *string   `json:"group_type"`
	Category          *string   `json:"category"`
	Location          *string   `json:"location"`
	Tags              *[]string `json:"tags"`
	Rules             *[]string `json:"rules"`
	Guidelines        *string   `json:"guidelines"`
	RequireApproval   *bool     `json:"require_approval"`
	AllowMemberPosts  *bool     `json:"allow_member_posts"`
	ProfilePictureURL *string   `json:"profile_picture_url"`
	CoverPhotoURL     *string   `json:"cover_photo_url"`
}

// PromoteRequest is the request body for granting a group role.
type PromoteRequest struct {
	UserUID string `json:"user_uid"`
	Role    string `json:"role"` // admin or moderator
}

// TransferOwnershipRequest is the request body for handing a group over.
type TransferOwnershipRequest struct {
	NewOwnerUID string `json:"new_owner_uid"`
}

// JoinResponse reports the membership state after a join call.
type JoinResponse struct {
	Message  string `json:"message"`
	IsMember bool   `json:"is_member"`
	Pending  bool   `json:"pending"`
}

// GroupListResponse is the paginated group list response.
type GroupListResponse struct {
	Groups []Group `json:"groups"`
	Total  int     `json:"total"`
}

// GroupMemberListResponse is the paginated member list response.
type GroupMemberListResponse struct {
	Members []GroupMember `json:"members"`
	Total   int           `json:"total"`
}

// Group constraints
const (
	MinGroupNameLength = 3
	MaxGroupNameLength = 100
)

// NormalizeGroupTags lowercases and trims tags, dropping empties.
func NormalizeGroupTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Group errors
var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrGroupNameTaken     = errors.New("group name already taken")
	ErrNotGroupOwner      = errors.New("only the group owner can do this")
	ErrNotGroupAdmin      = errors.New("admin privileges required")
	ErrAlreadyMember      = errors.New("already a member of this group")
	ErrNotMember          = errors.New("not a member of this group")
	ErrNoJoinRequest      = errors.New("no pending join request")
	ErrBannedFromGroup    = errors.New("banned from this group")
	ErrOwnerCannotLeave   = errors.New("owner must transfer ownership before leaving")
	ErrCannotRemoveOwner  = errors.New("the owner cannot be removed")
	ErrCannotBanOwner     = errors.New("the owner cannot be banned")
	ErrCannotDemoteOwner  = errors.New("the owner cannot be demoted")
	ErrCannotPromoteOwner = errors.New("the owner already holds the highest role")
	ErrNewOwnerNotMember  = errors.New("new owner must be a group member")
	ErrInvalidGroupRole   = errors.New("invalid group role")
	ErrMemberPostsOff     = errors.New("members cannot post in this group")
	ErrGroupPostsRestricted = errors.New("only members can view posts in this group")
)
