package model

import (
	"errors"
	"time"
)

// Comment represents a comment node in the graph. Replies are comments
// with a REPLY_TO edge to their parent; every comment also hangs off its
// post so post-level counts stay a single edge count.
type Comment struct {
	UID            string    `json:"uid"`
	PostUID        string    `json:"post_uid"`
	AuthorUID      string    `json:"author_uid"`
	AuthorUsername string    `json:"author_username"`
	ParentUID      *string   `json:"parent_comment_uid,omitempty"`
	Content        string    `json:"content"`
	Mentions       []string  `json:"mentions"`
	ImageURL       *string   `json:"image_url"`
	GifURL         *string   `json:"gif_url"`
	IsEdited       bool      `json:"is_edited"`
	IsPinned       bool      `json:"is_pinned"`
	IsReply        bool      `json:"is_reply"`
	LikesCount     int       `json:"likes_count"`
	RepliesCount   int       `json:"replies_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Viewer-dependent field, filled by the service layer
	IsLiked bool `json:"is_liked_by_user"`
}

// CreateCommentRequest is the request body for creating a comment or reply.
type CreateCommentRequest struct {
	PostUID   string   `json:"post_uid"`
	Content   string   `json:"content"`
	ParentUID *string  `json:"parent_comment_uid,omitempty"`
	Mentions  []string `json:"mentions"`
	ImageURL  *string  `json:"image_url"`
	GifURL    *string  `json:"gif_url"`
}

// UpdateCommentRequest is a partial update; nil fields are left untouched.
type UpdateCommentRequest struct {
	Content  *string   `json:"content"`
	Mentions *[]string `json:"mentions"`
}

// CommentListResponse is the paginated comment list response.
type CommentListResponse struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
}

// Comment constraints
const (
	MaxCommentLength = 1000
)

// Comment errors
var (
	ErrCommentNotFound     = errors.New("comment not found")
	ErrNotCommentOwner     = errors.New("not the owner of this comment")
	ErrCommentContentEmpty = errors.New("comment content is required")
	ErrCommentTooLong      = errors.New("comment content too long")
	ErrCommentsDisabled    = errors.New("comments are disabled on this post")
	ErrParentWrongPost     = errors.New("parent comment belongs to a different post")
	ErrReplyCycle          = errors.New("reply would create a cycle")
)
