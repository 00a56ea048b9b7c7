package repository

import (
	"context"
	"time"

	"loomgraph/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByUID(ctx context.Context, uid string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, uid, passwordHash string) error
	UpdateLastLogin(ctx context.Context, uid string) error
	SetActive(ctx context.Context, uid string, active bool) error

	// Follow edge ops; both recompute the affected counters in the same
	// transaction and report whether the edge actually changed.
	Follow(ctx context.Context, followerUID, followeeUID string) (bool, error)
	Unfollow(ctx context.Context, followerUID, followeeUID string) (bool, error)
	IsFollowing(ctx context.Context, followerUID, followeeUID string) (bool, error)
	// CheckFollows reports, for each uid in uids, whether viewerUID
	// follows it. One query regardless of list size.
	CheckFollows(ctx context.Context, viewerUID string, uids []string) (map[string]bool, error)

	Followers(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error)
	Following(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error)
	// FollowerUIDs feeds the fan-out worker; no pagination, uids only.
	FollowerUIDs(ctx context.Context, uid string) ([]string, error)
	Suggestions(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error)
	Search(ctx context.Context, query string, skip, limit int) ([]model.UserPublic, error)
	// ResolveUsernames maps usernames to uids, silently dropping unknowns.
	ResolveUsernames(ctx context.Context, usernames []string) (map[string]string, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post, mentionUIDs []string) error
	GetByUID(ctx context.Context, uid string, viewerUID string) (*model.Post, error)
	Update(ctx context.Context, post *model.Post, mentionUIDs []string) error
	Delete(ctx context.Context, uid string) error

	Like(ctx context.Context, userUID, postUID string) (created bool, likes int, err error)
	Unlike(ctx context.Context, userUID, postUID string) (removed bool, likes int, err error)

	// Share creates the share post and links it to the original in one
	// transaction, recomputing both sides' counters.
	Share(ctx context.Context, share *model.Post, originalUID string) error

	SetPinned(ctx context.Context, uid string, pinned bool) error
	SetArchived(ctx context.Context, uid string, archived bool) error

	Feed(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error)
	FeedByUIDs(ctx context.Context, viewerUID string, uids []string) ([]model.Post, error)
	Explore(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error)
	Trending(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error)
	ByUser(ctx context.Context, authorUID, viewerUID string, includeHidden, includeFriends bool, skip, limit int) ([]model.Post, error)
	ByHashtag(ctx context.Context, tag, viewerUID string, skip, limit int) ([]model.Post, error)
	ByGroup(ctx context.Context, groupUID, viewerUID string, skip, limit int) ([]model.Post, error)
	LikedBy(ctx context.Context, userUID string, skip, limit int) ([]model.Post, error)
	Search(ctx context.Context, query, viewerUID string, skip, limit int) ([]model.Post, error)
	// RecentByAuthor feeds the follow backfill in the worker.
	RecentByAuthor(ctx context.Context, authorUID string, limit int) ([]model.Post, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment, mentionUIDs []string) error
	GetByUID(ctx context.Context, uid, viewerUID string) (*model.Comment, error)
	Update(ctx context.Context, comment *model.Comment, mentionUIDs []string) error
	// Delete removes the comment and its whole reply subtree.
	Delete(ctx context.Context, uid string) error

	Like(ctx context.Context, userUID, commentUID string) (created bool, likes int, err error)
	Unlike(ctx context.Context, userUID, commentUID string) (removed bool, likes int, err error)

	ByPost(ctx context.Context, postUID, viewerUID string, skip, limit int) ([]model.Comment, error)
	Replies(ctx context.Context, commentUID, viewerUID string, skip, limit int) ([]model.Comment, error)
	// Thread walks up to the root and returns the full tree, oldest first.
	Thread(ctx context.Context, commentUID, viewerUID string) ([]model.Comment, error)
	ByUser(ctx context.Context, userUID, viewerUID string, skip, limit int) ([]model.Comment, error)
	SetPinned(ctx context.Context, uid string, pinned bool) error
}

// MembershipState is a user's standing in a group, resolved in one query.
type MembershipState struct {
	Role      string // owner, admin, moderator, member or "" when not a member
	IsMember  bool
	IsPending bool
	IsBanned  bool
	IsOwner   bool
}

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByUID(ctx context.Context, uid string) (*model.Group, error)
	Update(ctx context.Context, group *model.Group) error
	Delete(ctx context.Context, uid string) error

	Membership(ctx context.Context, groupUID, userUID string) (*MembershipState, error)
	Join(ctx context.Context, groupUID, userUID string) (bool, error)
	RequestJoin(ctx context.Context, groupUID, userUID string) (bool, error)
	Leave(ctx context.Context, groupUID, userUID string) (bool, error)
	// Approve atomically swaps the pending request for membership.
	Approve(ctx context.Context, groupUID, userUID string) (bool, error)
	RejectRequest(ctx context.Context, groupUID, userUID string) (bool, error)
	Promote(ctx context.Context, groupUID, userUID, role string) error
	Demote(ctx context.Context, groupUID, userUID string) error
	RemoveMember(ctx context.Context, groupUID, userUID string) (bool, error)
	Ban(ctx context.Context, groupUID, userUID string) error
	Unban(ctx context.Context, groupUID, userUID string) (bool, error)
	// TransferOwnership moves OWNS and grants the new owner admin in one
	// transaction. The new owner must already be a member.
	TransferOwnership(ctx context.Context, groupUID, oldOwnerUID, newOwnerUID string) error

	Members(ctx context.Context, groupUID string, skip, limit int) ([]model.GroupMember, error)
	PendingRequests(ctx context.Context, groupUID string, skip, limit int) ([]model.UserPublic, error)
	Public(ctx context.Context, skip, limit int) ([]model.Group, error)
	Search(ctx context.Context, query string, skip, limit int) ([]model.Group, error)
	ByMember(ctx context.Context, userUID string, skip, limit int) ([]model.Group, error)
	OwnedBy(ctx context.Context, userUID string, skip, limit int) ([]model.Group, error)
}

type HashtagRepository interface {
	GetByName(ctx context.Context, name string) (*model.Hashtag, error)
	Trending(ctx context.Context, limit int) ([]model.Hashtag, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification, recipientUID string) error
	ListByRecipient(ctx context.Context, recipientUID string, unreadOnly bool, skip, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, recipientUID string) (int, error)
	MarkRead(ctx context.Context, recipientUID string, uids []string) (int, error)
	MarkAllRead(ctx context.Context, recipientUID string) (int, error)
	MarkAllSeen(ctx context.Context, recipientUID string) (int, error)
}

// TokenRepository stores hashed refresh tokens with their TTL.
// Consume reports reuse of an already-rotated token so the service can
// revoke the whole family.
type TokenRepository interface {
	Store(ctx context.Context, tokenHash, userUID string, ttl time.Duration) error
	Consume(ctx context.Context, tokenHash string) (userUID string, reused bool, err error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userUID string) error
}
