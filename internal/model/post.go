package model

import (
	"errors"
	"strings"
	"time"
)

// Post types
const (
	PostTypeText  = "text"
	PostTypeImage = "image"
	PostTypeVideo = "video"
	PostTypeLink  = "link"
	PostTypePoll  = "poll"
)

// Post visibility levels
const (
	VisibilityPublic  = "public"
	VisibilityFriends = "friends"
	VisibilityPrivate = "private"
)

var validPostTypes = map[string]struct{}{
	PostTypeText:  {},
	PostTypeImage: {},
	PostTypeVideo: {},
	PostTypeLink:  {},
	PostTypePoll:  {},
}

var validVisibilities = map[string]struct{}{
	VisibilityPublic:  {},
	VisibilityFriends: {},
	VisibilityPrivate: {},
}

// ValidPostType reports whether t is a known post type.
func ValidPostType(t string) bool {
	_, ok := validPostTypes[t]
	return ok
}

// ValidVisibility reports whether v is a known visibility level.
func ValidVisibility(v string) bool {
	_, ok := validVisibilities[v]
	return ok
}

// Post represents a post node in the graph.
type Post struct {
	UID            string    `json:"uid"`
	AuthorUID      string    `json:"author_uid"`
	AuthorUsername string    `json:"author_username"` // resolved from the POSTED edge
	Content        string    `json:"content"`
	Title          *string   `json:"title"`
	PostType       string    `json:"post_type"`
	Visibility     string    `json:"visibility"`
	Location       *string   `json:"location"`
	AllowComments  bool      `json:"allow_comments"`
	Hashtags       []string  `json:"hashtags"`
	Mentions       []string  `json:"mentions"`
	ImageURLs      []string  `json:"image_urls"`
	VideoURLs      []string  `json:"video_urls"`
	IsPinned       bool      `json:"is_pinned"`
	IsArchived     bool      `json:"is_archived"`
	LikesCount     int       `json:"likes_count"`
	CommentsCount  int       `json:"comments_count"`
	SharesCount    int       `json:"shares_count"`
	ViewsCount     int       `json:"views_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Viewer-dependent fields, filled by the service layer
	IsLiked        bool    `json:"is_liked_by_user"`
	OriginalPostID *string `json:"original_post_uid,omitempty"` // set on shared posts
	GroupUID       *string `json:"group_uid,omitempty"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Content       string   `json:"content"`
	Title         *string  `json:"title"`
	PostType      string   `json:"post_type"`
	Visibility    string   `json:"visibility"`
	Location      *string  `json:"location"`
	AllowComments *bool    `json:"allow_comments"` // defaults to true
	Hashtags      []string `json:"hashtags"`
	Mentions      []string `json:"mentions"`
	ImageURLs     []string `json:"image_urls"`
	VideoURLs     []string `json:"video_urls"`
	GroupUID      *string  `json:"group_uid"` // post into a group
}

// UpdatePostRequest is a partial update; nil fields are left untouched.
type UpdatePostRequest struct {
	Content       *string   `json:"content"`
	Title         *string   `json:"title"`
	Visibility    *string   `json:"visibility"`
	Location      *string   `json:"location"`
	AllowComments *bool     `json:"allow_comments"`
	Hashtags      *[]string `json:"hashtags"`
	Mentions      *[]string `json:"mentions"`
}

// SharePostRequest is the request body for sharing a post.
// Content is the sharer's optional commentary.
type SharePostRequest struct {
	Content *string `json:"content"`
}

// LikeResponse reports the like state and fresh count after a like/unlike call.
type LikeResponse struct {
	Message    string `json:"message"`
	IsLiked    bool   `json:"is_liked"`
	LikesCount int    `json:"likes_count"`
}

// PostListResponse is the paginated post list response.
type PostListResponse struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

// Post constraints
const (
	MaxPostContentLength  = 2000
	MaxPostTitleLength    = 200
	MaxShareContentLength = 500
	TrendingWindowDays    = 7
)

// NormalizeMentions lowercases mention usernames and strips a leading "@".
// Empty entries are dropped.
func NormalizeMentions(mentions []string) []string {
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		m = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(m)), "@")
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Post errors
var (
	ErrPostNotFound       = errors.New("post not found")
	ErrNotPostOwner       = errors.New("not the owner of this post")
	ErrPostAccessDenied   = errors.New("not allowed to view this post")
	ErrPostContentTooLong = errors.New("post content too long")
	ErrPostContentEmpty   = errors.New("post content is required")
	ErrCannotShareOwn     = errors.New("cannot share your own post")
	ErrShareUnavailable   = errors.New("post cannot be shared")
)
