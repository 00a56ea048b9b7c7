package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/repository"
)

// CommentService handles comment threads. Post access checks go
// through PostService so group and visibility gates apply to comments
// the same way they apply to the post itself.
type CommentService struct {
	commentRepo repository.CommentRepository
	posts       *PostService
	userRepo    repository.UserRepository
	notifier    *NotificationService
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	posts *PostService,
	userRepo repository.UserRepository,
	notifier *NotificationService,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		posts:       posts,
		userRepo:    userRepo,
		notifier:    notifier,
	}
}

// Create adds a comment or reply. The post must allow comments; a
// reply's parent must belong to the same post.
func (s *CommentService) Create(ctx context.Context, authorUID string, req *model.CreateCommentRequest) (*model.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrCommentContentEmpty
	}
	if len(content) > model.MaxCommentLength {
		return nil, model.ErrCommentTooLong
	}

	post, err := s.posts.Get(ctx, req.PostUID, authorUID)
	if err != nil {
		return nil, err
	}
	if !post.AllowComments {
		return nil, model.ErrCommentsDisabled
	}

	var parent *model.Comment
	if req.ParentUID != nil {
		parent, err = s.commentRepo.GetByUID(ctx, *req.ParentUID, authorUID)
		if err != nil {
			return nil, err
		}
		if parent.PostUID != post.UID {
			return nil, model.ErrParentWrongPost
		}
	}

	mentions, mentionUIDs, err := resolveMentions(ctx, s.userRepo, req.Mentions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment := &model.Comment{
		UID:       uuid.New().String(),
		PostUID:   post.UID,
		AuthorUID: authorUID,
		ParentUID: req.ParentUID,
		Content:   content,
		Mentions:  mentions,
		ImageURL:  req.ImageURL,
		GifURL:    req.GifURL,
		IsReply:   req.ParentUID != nil,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.commentRepo.Create(ctx, comment, mentionUIDs); err != nil {
		return nil, err
	}

	s.hydrateAuthor(ctx, comment)

	if s.notifier != nil {
		if parent != nil {
			s.notifier.NotifyAsync(ctx, parent.AuthorUID, authorUID, model.NotificationTypeReply, &comment.UID)
			// Avoid a double ping when the parent author owns the post
			if post.AuthorUID != parent.AuthorUID {
				s.notifier.NotifyAsync(ctx, post.AuthorUID, authorUID, model.NotificationTypeComment, &comment.UID)
			}
		} else {
			s.notifier.NotifyAsync(ctx, post.AuthorUID, authorUID, model.NotificationTypeComment, &comment.UID)
		}
		for _, uid := range mentionUIDs {
			s.notifier.NotifyAsync(ctx, uid, authorUID, model.NotificationTypeMention, &comment.UID)
		}
	}

	return comment, nil
}

// Get returns a comment the viewer may see. Access follows the post.
func (s *CommentService) Get(ctx context.Context, commentUID, viewerUID string) (*model.Comment, error) {
	comment, err := s.commentRepo.GetByUID(ctx, commentUID, viewerUID)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.Get(ctx, comment.PostUID, viewerUID); err != nil {
		return nil, err
	}
	return comment, nil
}

// Update edits the author's own comment and marks it edited.
func (s *CommentService) Update(ctx context.Context, commentUID, userUID string, req *model.UpdateCommentRequest) (*model.Comment, error) {
	comment, err := s.commentRepo.GetByUID(ctx, commentUID, userUID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorUID != userUID {
		return nil, model.ErrNotCommentOwner
	}

	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, model.ErrCommentContentEmpty
		}
		if len(content) > model.MaxCommentLength {
			return nil, model.ErrCommentTooLong
		}
		comment.Content = content
	}

	rawMentions := comment.Mentions
	if req.Mentions != nil {
		rawMentions = *req.Mentions
	}
	mentions, mentionUIDs, err := resolveMentions(ctx, s.userRepo, rawMentions)
	if err != nil {
		return nil, err
	}
	comment.Mentions = mentions

	if err := s.commentRepo.Update(ctx, comment, mentionUIDs); err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete removes a comment and its whole reply subtree. Allowed for
// the comment author and for the post author.
func (s *CommentService) Delete(ctx context.Context, commentUID, userUID string) error {
	comment, err := s.commentRepo.GetByUID(ctx, commentUID, userUID)
	if err != nil {
		return err
	}

	if comment.AuthorUID != userUID {
		post, err := s.posts.Get(ctx, comment.PostUID, userUID)
		if err != nil {
			return err
		}
		if post.AuthorUID != userUID {
			return model.ErrNotCommentOwner
		}
	}

	return s.commentRepo.Delete(ctx, commentUID)
}

// Like records a like on a comment.
func (s *CommentService) Like(ctx context.Context, commentUID, userUID string) (*model.LikeResponse, error) {
	comment, err := s.Get(ctx, commentUID, userUID)
	if err != nil {
		return nil, err
	}

	created, likes, err := s.commentRepo.Like(ctx, userUID, commentUID)
	if err != nil {
		return nil, err
	}
	if !created {
		return &model.LikeResponse{Message: "already liked", IsLiked: true, LikesCount: likes}, nil
	}

	if s.notifier != nil {
		s.notifier.NotifyAsync(ctx, comment.AuthorUID, userUID, model.NotificationTypeLike, &commentUID)
	}
	return &model.LikeResponse{Message: "comment liked", IsLiked: true, LikesCount: likes}, nil
}

// Unlike removes a like if present.
func (s *CommentService) Unlike(ctx context.Context, commentUID, userUID string) (*model.LikeResponse, error) {
	removed, likes, err := s.commentRepo.Unlike(ctx, userUID, commentUID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return &model.LikeResponse{Message: "not liked", IsLiked: false, LikesCount: likes}, nil
	}
	return &model.LikeResponse{Message: "comment unliked", IsLiked: false, LikesCount: likes}, nil
}

// ByPost lists a post's top-level comments, pinned first then oldest
// first.
func (s *CommentService) ByPost(ctx context.Context, postUID, viewerUID string, skip, limit int) (*model.CommentListResponse, error) {
	if _, err := s.posts.Get(ctx, postUID, viewerUID); err != nil {
		return nil, err
	}
	skip, limit = normalizePage(skip, limit)
	comments, err := s.commentRepo.ByPost(ctx, postUID, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.CommentListResponse{Comments: comments, Total: len(comments)}, nil
}

// Replies lists the direct replies of a comment, oldest first.
func (s *CommentService) Replies(ctx context.Context, commentUID, viewerUID string, skip, limit int) (*model.CommentListResponse, error) {
	if _, err := s.Get(ctx, commentUID, viewerUID); err != nil {
		return nil, err
	}
	skip, limit = normalizePage(skip, limit)
	comments, err := s.commentRepo.Replies(ctx, commentUID, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.CommentListResponse{Comments: comments, Total: len(comments)}, nil
}

// Thread returns the full conversation around a comment: up to the
// root, then every descendant, as a flat oldest-first list. Clients
// nest by parent_comment_uid.
func (s *CommentService) Thread(ctx context.Context, commentUID, viewerUID string) (*model.CommentListResponse, error) {
	if _, err := s.Get(ctx, commentUID, viewerUID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.Thread(ctx, commentUID, viewerUID)
	if err != nil {
		return nil, err
	}
	return &model.CommentListResponse{Comments: comments, Total: len(comments)}, nil
}

// ByUser lists a user's comment history, newest first. The repository
// hides comments on non-public posts from other viewers.
func (s *CommentService) ByUser(ctx context.Context, userUID, viewerUID string, skip, limit int) (*model.CommentListResponse, error) {
	if _, err := s.userRepo.GetByUID(ctx, userUID); err != nil {
		return nil, err
	}
	skip, limit = normalizePage(skip, limit)
	comments, err := s.commentRepo.ByUser(ctx, userUID, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.CommentListResponse{Comments: comments, Total: len(comments)}, nil
}

// SetPinned pins or unpins a comment. Only the post author curates
// pinned comments.
func (s *CommentService) SetPinned(ctx context.Context, commentUID, userUID string, pinned bool) error {
	comment, err := s.commentRepo.GetByUID(ctx, commentUID, userUID)
	if err != nil {
		return err
	}
	post, err := s.posts.Get(ctx, comment.PostUID, userUID)
	if err != nil {
		return err
	}
	if post.AuthorUID != userUID {
		return model.ErrNotPostOwner
	}
	return s.commentRepo.SetPinned(ctx, commentUID, pinned)
}

func (s *CommentService) hydrateAuthor(ctx context.Context, comment *model.Comment) {
	author, err := s.userRepo.GetByUID(ctx, comment.AuthorUID)
	if err != nil {
		logger.Get().Warn("failed to hydrate comment author",
			zap.String("comment_uid", comment.UID), zap.Error(err))
		return
	}
	comment.AuthorUsername = author.Username
}
