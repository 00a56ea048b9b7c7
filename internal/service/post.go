package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/queue"
	"loomgraph/internal/repository"
)

// PostService handles post content, reactions and distribution. Feed
// reads live in FeedService; this service owns the write side and the
// graph-backed listings.
type PostService struct {
	postRepo  repository.PostRepository
	userRepo  repository.UserRepository
	groupRepo repository.GroupRepository
	notifier  *NotificationService
	publisher queue.Publisher
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
	notifier *NotificationService,
	publisher queue.Publisher,
) *PostService {
	return &PostService{
		postRepo:  postRepo,
		userRepo:  userRepo,
		groupRepo: groupRepo,
		notifier:  notifier,
		publisher: publisher,
	}
}

// Create validates and stores a new post, then publishes the fan-out
// event. Mentions that don't resolve to a user are dropped silently.
func (s *PostService) Create(ctx context.Context, authorUID string, req *model.CreatePostRequest) (*model.Post, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrPostContentEmpty
	}
	if len(content) > model.MaxPostContentLength {
		return nil, model.ErrPostContentTooLong
	}
	if req.Title != nil && len(*req.Title) > model.MaxPostTitleLength {
		return nil, model.Validationf("title must be at most %d characters", model.MaxPostTitleLength)
	}

	postType := req.PostType
	if postType == "" {
		postType = model.PostTypeText
	}
	if !model.ValidPostType(postType) {
		return nil, model.Validationf("invalid post type %q", postType)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	if !model.ValidVisibility(visibility) {
		return nil, model.Validationf("invalid visibility %q", visibility)
	}

	if req.GroupUID != nil {
		if err := s.checkGroupPosting(ctx, *req.GroupUID, authorUID); err != nil {
			return nil, err
		}
	}

	mentions, mentionUIDs, err := resolveMentions(ctx, s.userRepo, req.Mentions)
	if err != nil {
		return nil, err
	}

	allowComments := true
	if req.AllowComments != nil {
		allowComments = *req.AllowComments
	}

	now := time.Now().UTC()
	post := &model.Post{
		UID:           uuid.New().String(),
		AuthorUID:     authorUID,
		Content:       content,
		Title:         req.Title,
		PostType:      postType,
		Visibility:    visibility,
		Location:      req.Location,
		AllowComments: allowComments,
		Hashtags:      model.NormalizeHashtags(req.Hashtags),
		Mentions:      mentions,
		ImageURLs:     req.ImageURLs,
		VideoURLs:     req.VideoURLs,
		GroupUID:      req.GroupUID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.postRepo.Create(ctx, post, mentionUIDs); err != nil {
		return nil, err
	}

	s.hydrateAuthor(ctx, post)
	s.notifyMentions(ctx, mentionUIDs, authorUID, post.UID)

	// Group and private posts never reach follower feeds, so there is
	// nothing to fan out for them.
	if s.publisher != nil && post.GroupUID == nil && post.Visibility != model.VisibilityPrivate {
		event := queue.NewPostCreatedEvent(post.UID, authorUID, post.CreatedAt)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			logger.Get().Warn("failed to publish post created event",
				zap.String("post_uid", post.UID), zap.Error(err))
		}
	}

	return post, nil
}

// Get returns a post the viewer is allowed to see.
func (s *PostService) Get(ctx context.Context, postUID, viewerUID string) (*model.Post, error) {
	post, err := s.postRepo.GetByUID(ctx, postUID, viewerUID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, post, viewerUID); err != nil {
		return nil, err
	}
	return post, nil
}

// Update applies a partial edit by the author. Hashtag and mention
// edges are re-synced to the new lists.
func (s *PostService) Update(ctx context.Context, postUID, userUID string, req *model.UpdatePostRequest) (*model.Post, error) {
	post, err := s.postRepo.GetByUID(ctx, postUID, userUID)
	if err != nil {
		return nil, err
	}
	if post.AuthorUID != userUID {
		return nil, model.ErrNotPostOwner
	}

	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, model.ErrPostContentEmpty
		}
		if len(content) > model.MaxPostContentLength {
			return nil, model.ErrPostContentTooLong
		}
		post.Content = content
	}
	if req.Title != nil {
		if len(*req.Title) > model.MaxPostTitleLength {
			return nil, model.Validationf("title must be at most %d characters", model.MaxPostTitleLength)
		}
		post.Title = req.Title
	}
	if req.Visibility != nil {
		if !model.ValidVisibility(*req.Visibility) {
			return nil, model.Validationf("invalid visibility %q", *req.Visibility)
		}
		post.Visibility = *req.Visibility
	}
	if req.Location != nil {
		post.Location = req.Location
	}
	if req.AllowComments != nil {
		post.AllowComments = *req.AllowComments
	}
	if req.Hashtags != nil {
		post.Hashtags = model.NormalizeHashtags(*req.Hashtags)
	}

	// The repository re-syncs mention edges from what we pass, so an
	// untouched mention list still has to be resolved again.
	rawMentions := post.Mentions
	if req.Mentions != nil {
		rawMentions = *req.Mentions
	}
	mentions, mentionUIDs, err := resolveMentions(ctx, s.userRepo, rawMentions)
	if err != nil {
		return nil, err
	}
	post.Mentions = mentions
	post.UpdatedAt = time.Now().UTC()

	if err := s.postRepo.Update(ctx, post, mentionUIDs); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes the author's post, its comment tree included, and
// publishes the feed removal event.
func (s *PostService) Delete(ctx context.Context, postUID, userUID string) error {
	post, err := s.postRepo.GetByUID(ctx, postUID, userUID)
	if err != nil {
		return err
	}
	if post.AuthorUID != userUID {
		return model.ErrNotPostOwner
	}

	if err := s.postRepo.Delete(ctx, postUID); err != nil {
		return err
	}

	if s.publisher != nil {
		event := queue.NewPostDeletedEvent(postUID, post.AuthorUID)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			logger.Get().Warn("failed to publish post deleted event",
				zap.String("post_uid", postUID), zap.Error(err))
		}
	}
	return nil
}

// Like records a like. Liking twice is a no-op that reports the
// existing state with a fresh count.
func (s *PostService) Like(ctx context.Context, postUID, userUID string) (*model.LikeResponse, error) {
	post, err := s.Get(ctx, postUID, userUID)
	if err != nil {
		return nil, err
	}

	created, likes, err := s.postRepo.Like(ctx, userUID, postUID)
	if err != nil {
		return nil, err
	}
	if !created {
		return &model.LikeResponse{Message: "already liked", IsLiked: true, LikesCount: likes}, nil
	}

	if s.notifier != nil {
		s.notifier.NotifyAsync(ctx, post.AuthorUID, userUID, model.NotificationTypeLike, &postUID)
	}
	return &model.LikeResponse{Message: "post liked", IsLiked: true, LikesCount: likes}, nil
}

// Unlike removes a like if present.
func (s *PostService) Unlike(ctx context.Context, postUID, userUID string) (*model.LikeResponse, error) {
	removed, likes, err := s.postRepo.Unlike(ctx, userUID, postUID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return &model.LikeResponse{Message: "not liked", IsLiked: false, LikesCount: likes}, nil
	}
	return &model.LikeResponse{Message: "post unliked", IsLiked: false, LikesCount: likes}, nil
}

// Share wraps someone else's post in a new post by the caller. The
// original must be shareable: not the caller's own, not private, not
// archived.
func (s *PostService) Share(ctx context.Context, originalUID, userUID string, req *model.SharePostRequest) (*model.Post, error) {
	original, err := s.postRepo.GetByUID(ctx, originalUID, userUID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, original, userUID); err != nil {
		return nil, err
	}
	if original.AuthorUID == userUID {
		return nil, model.ErrCannotShareOwn
	}
	if original.Visibility == model.VisibilityPrivate || original.IsArchived {
		return nil, model.ErrShareUnavailable
	}

	content := "Shared from @" + original.AuthorUsername
	if req != nil && req.Content != nil {
		c := strings.TrimSpace(*req.Content)
		if len(c) > model.MaxShareContentLength {
			return nil, model.Validationf("share commentary must be at most %d characters", model.MaxShareContentLength)
		}
		if c != "" {
			content = c
		}
	}

	now := time.Now().UTC()
	share := &model.Post{
		UID:           uuid.New().String(),
		AuthorUID:     userUID,
		Content:       content,
		PostType:      model.PostTypeText,
		Visibility:    model.VisibilityPublic,
		AllowComments: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.postRepo.Share(ctx, share, originalUID); err != nil {
		return nil, err
	}
	share.OriginalPostID = &originalUID

	s.hydrateAuthor(ctx, share)

	if s.notifier != nil {
		s.notifier.NotifyAsync(ctx, original.AuthorUID, userUID, model.NotificationTypeShare, &share.UID)
	}

	if s.publisher != nil {
		event := queue.NewPostCreatedEvent(share.UID, userUID, share.CreatedAt)
		if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
			logger.Get().Warn("failed to publish post created event",
				zap.String("post_uid", share.UID), zap.Error(err))
		}
	}

	return share, nil
}

// SetPinned pins or unpins one of the author's posts.
func (s *PostService) SetPinned(ctx context.Context, postUID, userUID string, pinned bool) error {
	post, err := s.postRepo.GetByUID(ctx, postUID, userUID)
	if err != nil {
		return err
	}
	if post.AuthorUID != userUID {
		return model.ErrNotPostOwner
	}
	return s.postRepo.SetPinned(ctx, postUID, pinned)
}

// SetArchived hides or restores one of the author's posts. Archived
// posts drop out of feeds, trending and search but stay reachable for
// the author.
func (s *PostService) SetArchived(ctx context.Context, postUID, userUID string, archived bool) error {
	post, err := s.postRepo.GetByUID(ctx, postUID, userUID)
	if err != nil {
		return err
	}
	if post.AuthorUID != userUID {
		return model.ErrNotPostOwner
	}
	return s.postRepo.SetArchived(ctx, postUID, archived)
}

// Explore lists public posts, newest first.
func (s *PostService) Explore(ctx context.Context, viewerUID string, skip, limit int) (*model.PostListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	posts, err := s.postRepo.Explore(ctx, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// Trending lists the week's most engaged public posts.
func (s *PostService) Trending(ctx context.Context, viewerUID string, skip, limit int) (*model.PostListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	posts, err := s.postRepo.Trending(ctx, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// Search matches public post content and titles, case-insensitive.
func (s *PostService) Search(ctx context.Context, query, viewerUID string, skip, limit int) (*model.PostListResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &model.PostListResponse{Posts: []model.Post{}}, nil
	}
	skip, limit = normalizePage(skip, limit)
	posts, err := s.postRepo.Search(ctx, query, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// ByUser lists a user's posts with profile visibility rules: the
// author sees everything including archived, followers also see
// friends-visibility posts, everyone else public only.
func (s *PostService) ByUser(ctx context.Context, authorUID, viewerUID string, skip, limit int) (*model.PostListResponse, error) {
	if _, err := s.userRepo.GetByUID(ctx, authorUID); err != nil {
		return nil, err
	}

	includeHidden := viewerUID == authorUID
	includeFriends := false
	if !includeHidden && viewerUID != "" {
		following, err := s.userRepo.IsFollowing(ctx, viewerUID, authorUID)
		if err != nil {
			return nil, err
		}
		includeFriends = following
	}

	skip, limit = normalizePage(skip, limit)
	posts, err := s.postRepo.ByUser(ctx, authorUID, viewerUID, includeHidden, includeFriends, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// ByHashtag lists public posts tagged with the given hashtag. Unknown
// tags yield an empty page, not an error.
func (s *PostService) ByHashtag(ctx context.Context, tag, viewerUID string, skip, limit int) (*model.PostListResponse, error) {
	tag = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), "#")
	if tag == "" {
		return &model.PostListResponse{Posts: []model.Post{}}, nil
	}
	skip, limit = normalizePage(skip, limit)
	posts, err := s.postRepo.ByHashtag(ctx, tag, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// GroupPosts lists posts made in a group. Secret groups stay invisible
// to non-members; private groups reject them with a restricted error.
func (s *PostService) GroupPosts(ctx context.Context, groupUID, viewerUID string, skip, limit int) (*model.PostListResponse, error) {
	group, err := s.groupRepo.GetByUID(ctx, groupUID)
	if err != nil {
		return nil, err
	}
	if group.GroupType != model.GroupTypePublic {
		membership, err := s.groupRepo.Membership(ctx, groupUID, viewerUID)
		if err != nil {
			return nil, err
		}
		if !membership.IsMember {
			if group.GroupType == model.GroupTypeSecret {
				return nil, model.ErrGroupNotFound
			}
			return nil, model.ErrGroupPostsRestricted
		}
	}

	skip, limit = normalizePage(skip, limit)
	posts, err := s.postRepo.ByGroup(ctx, groupUID, viewerUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// LikedPosts lists the caller's own liked posts, newest first.
func (s *PostService) LikedPosts(ctx context.Context, userUID string, skip, limit int) (*model.PostListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	posts, err := s.postRepo.LikedBy(ctx, userUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.PostListResponse{Posts: posts, Total: len(posts)}, nil
}

// canView enforces read access: the author always, group posts behind
// the group gate, then the post's own visibility.
func (s *PostService) canView(ctx context.Context, post *model.Post, viewerUID string) error {
	if viewerUID != "" && post.AuthorUID == viewerUID {
		return nil
	}

	if post.GroupUID != nil {
		group, err := s.groupRepo.GetByUID(ctx, *post.GroupUID)
		if err != nil {
			return err
		}
		if group.GroupType != model.GroupTypePublic {
			membership, err := s.groupRepo.Membership(ctx, *post.GroupUID, viewerUID)
			if err != nil {
				return err
			}
			if !membership.IsMember {
				if group.GroupType == model.GroupTypeSecret {
					// Hide existence entirely, same as the group itself
					return model.ErrPostNotFound
				}
				return model.ErrGroupPostsRestricted
			}
		}
	}

	switch post.Visibility {
	case model.VisibilityPublic:
		return nil
	case model.VisibilityFriends:
		if viewerUID == "" {
			return model.ErrPostAccessDenied
		}
		following, err := s.userRepo.IsFollowing(ctx, viewerUID, post.AuthorUID)
		if err != nil {
			return err
		}
		if !following {
			return model.ErrPostAccessDenied
		}
		return nil
	default:
		return model.ErrPostAccessDenied
	}
}

// checkGroupPosting gates posting into a group: members only, and
// plain members also need allow_member_posts.
func (s *PostService) checkGroupPosting(ctx context.Context, groupUID, authorUID string) error {
	group, err := s.groupRepo.GetByUID(ctx, groupUID)
	if err != nil {
		return err
	}
	membership, err := s.groupRepo.Membership(ctx, groupUID, authorUID)
	if err != nil {
		return err
	}
	if membership.IsBanned {
		return model.ErrBannedFromGroup
	}
	if !membership.IsMember {
		return model.ErrNotMember
	}
	if !group.AllowMemberPosts &&
		membership.Role != model.RoleOwner && membership.Role != model.RoleAdmin {
		return model.ErrMemberPostsOff
	}
	return nil
}

// resolveMentions normalizes mention usernames and maps them to uids.
// Unknown usernames are dropped from both lists.
func resolveMentions(ctx context.Context, users repository.UserRepository, raw []string) ([]string, []string, error) {
	normalized := model.NormalizeMentions(raw)
	if len(normalized) == 0 {
		return nil, nil, nil
	}

	resolved, err := users.ResolveUsernames(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve mentions: %w", err)
	}

	usernames := make([]string, 0, len(normalized))
	uids := make([]string, 0, len(normalized))
	for _, username := range normalized {
		uid, ok := resolved[username]
		if !ok {
			continue
		}
		usernames = append(usernames, username)
		uids = append(uids, uid)
	}
	return usernames, uids, nil
}

func (s *PostService) notifyMentions(ctx context.Context, mentionUIDs []string, actorUID, postUID string) {
	if s.notifier == nil {
		return
	}
	for _, uid := range mentionUIDs {
		s.notifier.NotifyAsync(ctx, uid, actorUID, model.NotificationTypeMention, &postUID)
	}
}

func (s *PostService) hydrateAuthor(ctx context.Context, post *model.Post) {
	author, err := s.userRepo.GetByUID(ctx, post.AuthorUID)
	if err != nil {
		logger.Get().Warn("failed to hydrate post author",
			zap.String("post_uid", post.UID), zap.Error(err))
		return
	}
	post.AuthorUsername = author.Username
}
