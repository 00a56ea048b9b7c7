package service

import (
	"context"
	"time"

	"loomgraph/internal/model"
	"loomgraph/internal/queue"
	"loomgraph/internal/repository"
)

// The mocks below follow one pattern: a small in-memory store gives
// sane defaults, and per-test function fields override single methods.
// Calls that tests assert on are recorded.

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// ----- fixtures -----

func testUser(uid, username string) *model.User {
	now := time.Now().UTC()
	return &model.User{
		UID:       uid,
		Username:  username,
		Email:     username + "@example.com",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testPost(uid, authorUID string) *model.Post {
	now := time.Now().UTC()
	return &model.Post{
		UID:           uid,
		AuthorUID:     authorUID,
		Content:       "hello graph",
		PostType:      model.PostTypeText,
		Visibility:    model.VisibilityPublic,
		AllowComments: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func testGroup(uid, ownerUID string) *model.Group {
	now := time.Now().UTC()
	return &model.Group{
		UID:              uid,
		Name:             "gophers",
		GroupType:        model.GroupTypePublic,
		OwnerUID:         ownerUID,
		IsActive:         true,
		AllowMemberPosts: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ----- user repository -----

type mockUserRepository struct {
	users map[string]*model.User

	createFn       func(ctx context.Context, user *model.User) error
	getByUIDFn     func(ctx context.Context, uid string) (*model.User, error)
	followFn       func(ctx context.Context, followerUID, followeeUID string) (bool, error)
	unfollowFn     func(ctx context.Context, followerUID, followeeUID string) (bool, error)
	isFollowingFn  func(ctx context.Context, followerUID, followeeUID string) (bool, error)
	checkFollowsFn func(ctx context.Context, viewerUID string, uids []string) (map[string]bool, error)
	searchFn       func(ctx context.Context, query string, skip, limit int) ([]model.UserPublic, error)

	createCalls []*model.User
	followCalls [][2]string
}

func newMockUserRepository(users ...*model.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[string]*model.User)}
	for _, u := range users {
		m.users[u.UID] = u
	}
	return m
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	m.users[user.UID] = user
	return nil
}

func (m *mockUserRepository) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	if m.getByUIDFn != nil {
		return m.getByUIDFn(ctx, uid)
	}
	if u, ok := m.users[uid]; ok {
		return u, nil
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == usernameOrEmail || u.Email == usernameOrEmail {
			return u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *model.User) error {
	m.users[user.UID] = user
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, uid, passwordHash string) error {
	if u, ok := m.users[uid]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, uid string) error {
	return nil
}

func (m *mockUserRepository) SetActive(ctx context.Context, uid string, active bool) error {
	if u, ok := m.users[uid]; ok {
		u.IsActive = active
		return nil
	}
	return model.ErrUserNotFound
}

func (m *mockUserRepository) Follow(ctx context.Context, followerUID, followeeUID string) (bool, error) {
	m.followCalls = append(m.followCalls, [2]string{followerUID, followeeUID})
	if m.followFn != nil {
		return m.followFn(ctx, followerUID, followeeUID)
	}
	return true, nil
}

func (m *mockUserRepository) Unfollow(ctx context.Context, followerUID, followeeUID string) (bool, error) {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, followerUID, followeeUID)
	}
	return true, nil
}

func (m *mockUserRepository) IsFollowing(ctx context.Context, followerUID, followeeUID string) (bool, error) {
	if m.isFollowingFn != nil {
		return m.isFollowingFn(ctx, followerUID, followeeUID)
	}
	return false, nil
}

func (m *mockUserRepository) CheckFollows(ctx context.Context, viewerUID string, uids []string) (map[string]bool, error) {
	if m.checkFollowsFn != nil {
		return m.checkFollowsFn(ctx, viewerUID, uids)
	}
	return map[string]bool{}, nil
}

func (m *mockUserRepository) Followers(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error) {
	return []model.UserPublic{}, nil
}

func (m *mockUserRepository) Following(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error) {
	return []model.UserPublic{}, nil
}

func (m *mockUserRepository) FollowerUIDs(ctx context.Context, uid string) ([]string, error) {
	return nil, nil
}

func (m *mockUserRepository) Suggestions(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error) {
	return []model.UserPublic{}, nil
}

func (m *mockUserRepository) Search(ctx context.Context, query string, skip, limit int) ([]model.UserPublic, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, skip, limit)
	}
	return []model.UserPublic{}, nil
}

func (m *mockUserRepository) ResolveUsernames(ctx context.Context, usernames []string) (map[string]string, error) {
	resolved := make(map[string]string)
	for _, name := range usernames {
		for _, u := range m.users {
			if u.Username == name {
				resolved[name] = u.UID
			}
		}
	}
	return resolved, nil
}

// ----- post repository -----

type mockPostRepository struct {
	posts map[string]*model.Post

	createFn     func(ctx context.Context, post *model.Post, mentionUIDs []string) error
	getByUIDFn   func(ctx context.Context, uid, viewerUID string) (*model.Post, error)
	likeFn       func(ctx context.Context, userUID, postUID string) (bool, int, error)
	unlikeFn     func(ctx context.Context, userUID, postUID string) (bool, int, error)
	shareFn      func(ctx context.Context, share *model.Post, originalUID string) error
	deleteFn     func(ctx context.Context, uid string) error
	feedFn       func(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error)
	feedByUIDsFn func(ctx context.Context, viewerUID string, uids []string) ([]model.Post, error)

	createCalls []*model.Post
	shareCalls  []*model.Post
	deleteCalls []string
	feedCalls   int
}

func newMockPostRepository(posts ...*model.Post) *mockPostRepository {
	m := &mockPostRepository{posts: make(map[string]*model.Post)}
	for _, p := range posts {
		m.posts[p.UID] = p
	}
	return m
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post, mentionUIDs []string) error {
	m.createCalls = append(m.createCalls, post)
	if m.createFn != nil {
		return m.createFn(ctx, post, mentionUIDs)
	}
	m.posts[post.UID] = post
	return nil
}

func (m *mockPostRepository) GetByUID(ctx context.Context, uid, viewerUID string) (*model.Post, error) {
	if m.getByUIDFn != nil {
		return m.getByUIDFn(ctx, uid, viewerUID)
	}
	if p, ok := m.posts[uid]; ok {
		return p, nil
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) Update(ctx context.Context, post *model.Post, mentionUIDs []string) error {
	m.posts[post.UID] = post
	return nil
}

func (m *mockPostRepository) Delete(ctx context.Context, uid string) error {
	m.deleteCalls = append(m.deleteCalls, uid)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, uid)
	}
	delete(m.posts, uid)
	return nil
}

func (m *mockPostRepository) Like(ctx context.Context, userUID, postUID string) (bool, int, error) {
	if m.likeFn != nil {
		return m.likeFn(ctx, userUID, postUID)
	}
	return true, 1, nil
}

func (m *mockPostRepository) Unlike(ctx context.Context, userUID, postUID string) (bool, int, error) {
	if m.unlikeFn != nil {
		return m.unlikeFn(ctx, userUID, postUID)
	}
	return true, 0, nil
}

func (m *mockPostRepository) Share(ctx context.Context, share *model.Post, originalUID string) error {
	m.shareCalls = append(m.shareCalls, share)
	if m.shareFn != nil {
		return m.shareFn(ctx, share, originalUID)
	}
	m.posts[share.UID] = share
	return nil
}

func (m *mockPostRepository) SetPinned(ctx context.Context, uid string, pinned bool) error {
	if p, ok := m.posts[uid]; ok {
		p.IsPinned = pinned
	}
	return nil
}

func (m *mockPostRepository) SetArchived(ctx context.Context, uid string, archived bool) error {
	if p, ok := m.posts[uid]; ok {
		p.IsArchived = archived
	}
	return nil
}

func (m *mockPostRepository) Feed(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
	m.feedCalls++
	if m.feedFn != nil {
		return m.feedFn(ctx, viewerUID, skip, limit)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) FeedByUIDs(ctx context.Context, viewerUID string, uids []string) ([]model.Post, error) {
	if m.feedByUIDsFn != nil {
		return m.feedByUIDsFn(ctx, viewerUID, uids)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) Explore(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

func (m *mockPostRepository) Trending(ctx context.Context, viewerUID string, skip, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

func (m *mockPostRepository) ByUser(ctx context.Context, authorUID, viewerUID string, includeHidden, includeFriends bool, skip, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

func (m *mockPostRepository) ByHashtag(ctx context.Context, tag, viewerUID string, skip, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

func (m *mockPostRepository) ByGroup(ctx context.Context, groupUID, viewerUID string, skip, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

func (m *mockPostRepository) LikedBy(ctx context.Context, userUID string, skip, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

func (m *mockPostRepository) Search(ctx context.Context, query, viewerUID string, skip, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

func (m *mockPostRepository) RecentByAuthor(ctx context.Context, authorUID string, limit int) ([]model.Post, error) {
	return []model.Post{}, nil
}

// ----- comment repository -----

type mockCommentRepository struct {
	comments map[string]*model.Comment

	createFn   func(ctx context.Context, comment *model.Comment, mentionUIDs []string) error
	getByUIDFn func(ctx context.Context, uid, viewerUID string) (*model.Comment, error)
	likeFn     func(ctx context.Context, userUID, commentUID string) (bool, int, error)
	threadFn   func(ctx context.Context, commentUID, viewerUID string) ([]model.Comment, error)

	createCalls []*model.Comment
	deleteCalls []string
}

func newMockCommentRepository(comments ...*model.Comment) *mockCommentRepository {
	m := &mockCommentRepository{comments: make(map[string]*model.Comment)}
	for _, c := range comments {
		m.comments[c.UID] = c
	}
	return m
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *model.Comment, mentionUIDs []string) error {
	m.createCalls = append(m.createCalls, comment)
	if m.createFn != nil {
		return m.createFn(ctx, comment, mentionUIDs)
	}
	m.comments[comment.UID] = comment
	return nil
}

func (m *mockCommentRepository) GetByUID(ctx context.Context, uid, viewerUID string) (*model.Comment, error) {
	if m.getByUIDFn != nil {
		return m.getByUIDFn(ctx, uid, viewerUID)
	}
	if c, ok := m.comments[uid]; ok {
		return c, nil
	}
	return nil, model.ErrCommentNotFound
}

func (m *mockCommentRepository) Update(ctx context.Context, comment *model.Comment, mentionUIDs []string) error {
	m.comments[comment.UID] = comment
	return nil
}

func (m *mockCommentRepository) Delete(ctx context.Context, uid string) error {
	m.deleteCalls = append(m.deleteCalls, uid)
	delete(m.comments, uid)
	return nil
}

func (m *mockCommentRepository) Like(ctx context.Context, userUID, commentUID string) (bool, int, error) {
	if m.likeFn != nil {
		return m.likeFn(ctx, userUID, commentUID)
	}
	return true, 1, nil
}

func (m *mockCommentRepository) Unlike(ctx context.Context, userUID, commentUID string) (bool, int, error) {
	return true, 0, nil
}

func (m *mockCommentRepository) ByPost(ctx context.Context, postUID, viewerUID string, skip, limit int) ([]model.Comment, error) {
	return []model.Comment{}, nil
}

func (m *mockCommentRepository) Replies(ctx context.Context, commentUID, viewerUID string, skip, limit int) ([]model.Comment, error) {
	return []model.Comment{}, nil
}

func (m *mockCommentRepository) Thread(ctx context.Context, commentUID, viewerUID string) ([]model.Comment, error) {
	if m.threadFn != nil {
		return m.threadFn(ctx, commentUID, viewerUID)
	}
	return []model.Comment{}, nil
}

func (m *mockCommentRepository) ByUser(ctx context.Context, userUID, viewerUID string, skip, limit int) ([]model.Comment, error) {
	return []model.Comment{}, nil
}

func (m *mockCommentRepository) SetPinned(ctx context.Context, uid string, pinned bool) error {
	if c, ok := m.comments[uid]; ok {
		c.IsPinned = pinned
	}
	return nil
}

// ----- group repository -----

type mockGroupRepository struct {
	groups map[string]*model.Group

	membershipFn  func(ctx context.Context, groupUID, userUID string) (*repository.MembershipState, error)
	joinFn        func(ctx context.Context, groupUID, userUID string) (bool, error)
	requestJoinFn func(ctx context.Context, groupUID, userUID string) (bool, error)
	leaveFn       func(ctx context.Context, groupUID, userUID string) (bool, error)
	approveFn     func(ctx context.Context, groupUID, userUID string) (bool, error)
	promoteFn     func(ctx context.Context, groupUID, userUID, role string) error
	transferFn    func(ctx context.Context, groupUID, oldOwnerUID, newOwnerUID string) error

	joinCalls     [][2]string
	requestCalls  [][2]string
	promoteCalls  []string
	transferCalls [][2]string
}

func newMockGroupRepository(groups ...*model.Group) *mockGroupRepository {
	m := &mockGroupRepository{groups: make(map[string]*model.Group)}
	for _, g := range groups {
		m.groups[g.UID] = g
	}
	return m
}

func (m *mockGroupRepository) Create(ctx context.Context, group *model.Group) error {
	m.groups[group.UID] = group
	return nil
}

func (m *mockGroupRepository) GetByUID(ctx context.Context, uid string) (*model.Group, error) {
	if g, ok := m.groups[uid]; ok {
		return g, nil
	}
	return nil, model.ErrGroupNotFound
}

func (m *mockGroupRepository) Update(ctx context.Context, group *model.Group) error {
	m.groups[group.UID] = group
	return nil
}

func (m *mockGroupRepository) Delete(ctx context.Context, uid string) error {
	delete(m.groups, uid)
	return nil
}

func (m *mockGroupRepository) Membership(ctx context.Context, groupUID, userUID string) (*repository.MembershipState, error) {
	if m.membershipFn != nil {
		return m.membershipFn(ctx, groupUID, userUID)
	}
	return &repository.MembershipState{}, nil
}

func (m *mockGroupRepository) Join(ctx context.Context, groupUID, userUID string) (bool, error) {
	m.joinCalls = append(m.joinCalls, [2]string{groupUID, userUID})
	if m.joinFn != nil {
		return m.joinFn(ctx, groupUID, userUID)
	}
	return true, nil
}

func (m *mockGroupRepository) RequestJoin(ctx context.Context, groupUID, userUID string) (bool, error) {
	m.requestCalls = append(m.requestCalls, [2]string{groupUID, userUID})
	if m.requestJoinFn != nil {
		return m.requestJoinFn(ctx, groupUID, userUID)
	}
	return true, nil
}

func (m *mockGroupRepository) Leave(ctx context.Context, groupUID, userUID string) (bool, error) {
	if m.leaveFn != nil {
		return m.leaveFn(ctx, groupUID, userUID)
	}
	return true, nil
}

func (m *mockGroupRepository) Approve(ctx context.Context, groupUID, userUID string) (bool, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, groupUID, userUID)
	}
	return true, nil
}

func (m *mockGroupRepository) RejectRequest(ctx context.Context, groupUID, userUID string) (bool, error) {
	return true, nil
}

func (m *mockGroupRepository) Promote(ctx context.Context, groupUID, userUID, role string) error {
	m.promoteCalls = append(m.promoteCalls, userUID+":"+role)
	if m.promoteFn != nil {
		return m.promoteFn(ctx, groupUID, userUID, role)
	}
	return nil
}

func (m *mockGroupRepository) Demote(ctx context.Context, groupUID, userUID string) error {
	return nil
}

func (m *mockGroupRepository) RemoveMember(ctx context.Context, groupUID, userUID string) (bool, error) {
	return true, nil
}

func (m *mockGroupRepository) Ban(ctx context.Context, groupUID, userUID string) error {
	return nil
}

func (m *mockGroupRepository) Unban(ctx context.Context, groupUID, userUID string) (bool, error) {
	return true, nil
}

func (m *mockGroupRepository) TransferOwnership(ctx context.Context, groupUID, oldOwnerUID, newOwnerUID string) error {
	m.transferCalls = append(m.transferCalls, [2]string{oldOwnerUID, newOwnerUID})
	if m.transferFn != nil {
		return m.transferFn(ctx, groupUID, oldOwnerUID, newOwnerUID)
	}
	return nil
}

func (m *mockGroupRepository) Members(ctx context.Context, groupUID string, skip, limit int) ([]model.GroupMember, error) {
	return []model.GroupMember{}, nil
}

func (m *mockGroupRepository) PendingRequests(ctx context.Context, groupUID string, skip, limit int) ([]model.UserPublic, error) {
	return []model.UserPublic{}, nil
}

func (m *mockGroupRepository) Public(ctx context.Context, skip, limit int) ([]model.Group, error) {
	return []model.Group{}, nil
}

func (m *mockGroupRepository) Search(ctx context.Context, query string, skip, limit int) ([]model.Group, error) {
	return []model.Group{}, nil
}

func (m *mockGroupRepository) ByMember(ctx context.Context, userUID string, skip, limit int) ([]model.Group, error) {
	return []model.Group{}, nil
}

func (m *mockGroupRepository) OwnedBy(ctx context.Context, userUID string, skip, limit int) ([]model.Group, error) {
	return []model.Group{}, nil
}

// ----- notification repository -----

type notifyCall struct {
	RecipientUID string
	Notification *model.Notification
}

type mockNotificationRepository struct {
	createFn func(ctx context.Context, n *model.Notification, recipientUID string) error

	created []notifyCall
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *model.Notification, recipientUID string) error {
	m.created = append(m.created, notifyCall{RecipientUID: recipientUID, Notification: n})
	if m.createFn != nil {
		return m.createFn(ctx, n, recipientUID)
	}
	return nil
}

func (m *mockNotificationRepository) ListByRecipient(ctx context.Context, recipientUID string, unreadOnly bool, skip, limit int) ([]model.Notification, error) {
	return []model.Notification{}, nil
}

func (m *mockNotificationRepository) UnreadCount(ctx context.Context, recipientUID string) (int, error) {
	return 0, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, recipientUID string, uids []string) (int, error) {
	return len(uids), nil
}

func (m *mockNotificationRepository) MarkAllRead(ctx context.Context, recipientUID string) (int, error) {
	return 0, nil
}

func (m *mockNotificationRepository) MarkAllSeen(ctx context.Context, recipientUID string) (int, error) {
	return 0, nil
}

// recipients returns who got notified, in order.
func (m *mockNotificationRepository) recipients() []string {
	out := make([]string, 0, len(m.created))
	for _, c := range m.created {
		out = append(out, c.RecipientUID)
	}
	return out
}

// newTestNotifier builds a NotificationService recording into the
// returned mock repo. It shares the caller's user repo so actor
// usernames resolve.
func newTestNotifier(userRepo repository.UserRepository) (*NotificationService, *mockNotificationRepository) {
	notifRepo := &mockNotificationRepository{}
	return NewNotificationService(notifRepo, userRepo), notifRepo
}

// ----- token repository -----

type mockTokenRepository struct {
	active map[string]string // hash -> user uid
	used   map[string]string // consumed hashes, for reuse detection

	revokeAllCalls []string
}

func newMockTokenRepository() *mockTokenRepository {
	return &mockTokenRepository{
		active: make(map[string]string),
		used:   make(map[string]string),
	}
}

func (m *mockTokenRepository) Store(ctx context.Context, tokenHash, userUID string, ttl time.Duration) error {
	m.active[tokenHash] = userUID
	return nil
}

func (m *mockTokenRepository) Consume(ctx context.Context, tokenHash string) (string, bool, error) {
	if uid, ok := m.active[tokenHash]; ok {
		delete(m.active, tokenHash)
		m.used[tokenHash] = uid
		return uid, false, nil
	}
	if uid, ok := m.used[tokenHash]; ok {
		return uid, true, nil
	}
	return "", false, model.ErrRefreshTokenNotFound
}

func (m *mockTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	delete(m.active, tokenHash)
	return nil
}

func (m *mockTokenRepository) RevokeAllForUser(ctx context.Context, userUID string) error {
	m.revokeAllCalls = append(m.revokeAllCalls, userUID)
	for hash, uid := range m.active {
		if uid == userUID {
			delete(m.active, hash)
		}
	}
	return nil
}

// ----- queue publisher -----

type mockPublisher struct {
	publishFn func(ctx context.Context, stream string, event queue.FeedEvent) (string, error)

	events []queue.FeedEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.FeedEvent) (string, error) {
	m.events = append(m.events, event)
	if m.publishFn != nil {
		return m.publishFn(ctx, stream, event)
	}
	return "1-0", nil
}

func (m *mockPublisher) eventTypes() []string {
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}
