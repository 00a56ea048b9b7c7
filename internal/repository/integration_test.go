package repository

// Integration tests against a live Neo4j instance. They run only when
// NEO4J_URI is set (NEO4J_USER / NEO4J_PASSWORD optional, defaulting to
// neo4j/password) and clean up every node they create, so they are safe
// to point at a shared development database:
//
//	NEO4J_URI=bolt://localhost:7687 go test ./internal/repository/

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

func integrationDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()

	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		t.Skip("NEO4J_URI not set, skipping integration test")
	}

	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		t.Fatalf("failed to create driver: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("failed to reach neo4j at %s: %v", uri, err)
	}
	t.Cleanup(func() { _ = driver.Close(context.Background()) })
	return driver
}

// graphCleaner detach-deletes every tracked uid when the test finishes,
// whichever way it finishes.
type graphCleaner struct {
	driver neo4j.DriverWithContext
	uids   []string
}

func newCleaner(t *testing.T, driver neo4j.DriverWithContext) *graphCleaner {
	c := &graphCleaner{driver: driver}
	t.Cleanup(func() {
		ctx := context.Background()
		session := writeSession(ctx, c.driver)
		defer session.Close(ctx)
		if _, err := session.Run(ctx,
			`MATCH (n) WHERE n.uid IN $uids DETACH DELETE n`,
			map[string]interface{}{"uids": c.uids}); err != nil {
			t.Logf("cleanup failed, leftover uids %v: %v", c.uids, err)
		}
	})
	return c
}

func (c *graphCleaner) track(uids ...string) {
	c.uids = append(c.uids, uids...)
}

func seedUser(t *testing.T, repo UserRepository, c *graphCleaner, name string) *model.User {
	t.Helper()

	suffix := uuid.NewString()[:8]
	now := time.Now().UTC()
	u := &model.User{
		UID:       uuid.NewString(),
		Username:  fmt.Sprintf("%s_%s", name, suffix),
		Email:     fmt.Sprintf("%s_%s@test.local", name, suffix),
		IsActive:  true,
		Interests: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("failed to seed user %s: %v", name, err)
	}
	c.track(u.UID)
	return u
}

func seedPost(t *testing.T, repo PostRepository, c *graphCleaner, authorUID, content string) *model.Post {
	t.Helper()

	now := time.Now().UTC()
	p := &model.Post{
		UID:           uuid.NewString(),
		AuthorUID:     authorUID,
		Content:       content,
		PostType:      model.PostTypeText,
		Visibility:    model.VisibilityPublic,
		AllowComments: true,
		Hashtags:      []string{},
		Mentions:      []string{},
		ImageURLs:     []string{},
		VideoURLs:     []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(context.Background(), p, nil); err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	c.track(p.UID)
	return p
}

func seedComment(t *testing.T, repo CommentRepository, c *graphCleaner, authorUID, postUID string, parentUID *string, createdAt time.Time) *model.Comment {
	t.Helper()

	cm := &model.Comment{
		UID:       uuid.NewString(),
		PostUID:   postUID,
		AuthorUID: authorUID,
		ParentUID: parentUID,
		Content:   "comment " + uuid.NewString()[:8],
		Mentions:  []string{},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), cm, nil); err != nil {
		t.Fatalf("failed to seed comment: %v", err)
	}
	c.track(cm.UID)
	return cm
}

func seedGroup(t *testing.T, repo GroupRepository, c *graphCleaner, ownerUID string, requireApproval bool) *model.Group {
	t.Helper()

	now := time.Now().UTC()
	g := &model.Group{
		UID:              uuid.NewString(),
		Name:             "itest_" + uuid.NewString()[:8],
		GroupType:        model.GroupTypePublic,
		OwnerUID:         ownerUID,
		IsActive:         true,
		RequireApproval:  requireApproval,
		AllowMemberPosts: true,
		Tags:             []string{},
		Rules:            []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Create(context.Background(), g); err != nil {
		t.Fatalf("failed to seed group: %v", err)
	}
	c.track(g.UID)
	return g
}

// ============================================================
// Follow edges and user counters
// ============================================================

func TestIntegration_FollowCounters(t *testing.T) {
	driver := integrationDriver(t)
	cleaner := newCleaner(t, driver)
	repo := NewUserRepository(driver)
	ctx := context.Background()

	alice := seedUser(t, repo, cleaner, "alice")
	bob := seedUser(t, repo, cleaner, "bob")

	created, err := repo.Follow(ctx, alice.UID, bob.UID)
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if !created {
		t.Error("first follow should report a new edge")
	}

	following, err := repo.IsFollowing(ctx, alice.UID, bob.UID)
	if err != nil {
		t.Fatalf("IsFollowing failed: %v", err)
	}
	if !following {
		t.Error("edge missing after Follow")
	}

	// Counters are recomputed inside the same transaction.
	bobLoaded, err := repo.GetByUID(ctx, bob.UID)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if bobLoaded.FollowersCount != 1 {
		t.Errorf("followers_count = %d, want 1", bobLoaded.FollowersCount)
	}
	aliceLoaded, _ := repo.GetByUID(ctx, alice.UID)
	if aliceLoaded.FollowingCount != 1 {
		t.Errorf("following_count = %d, want 1", aliceLoaded.FollowingCount)
	}

	// A repeat follow is an idempotent no-op, not an error.
	created, err = repo.Follow(ctx, alice.UID, bob.UID)
	if err != nil {
		t.Fatalf("repeat Follow failed: %v", err)
	}
	if created {
		t.Error("repeat follow should not report a new edge")
	}
	bobLoaded, _ = repo.GetByUID(ctx, bob.UID)
	if bobLoaded.FollowersCount != 1 {
		t.Errorf("followers_count after repeat = %d, want 1", bobLoaded.FollowersCount)
	}

	removed, err := repo.Unfollow(ctx, alice.UID, bob.UID)
	if err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}
	if !removed {
		t.Error("Unfollow should report the edge removed")
	}
	bobLoaded, _ = repo.GetByUID(ctx, bob.UID)
	if bobLoaded.FollowersCount != 0 {
		t.Errorf("followers_count after unfollow = %d, want 0", bobLoaded.FollowersCount)
	}

	// Following a missing user surfaces the entity sentinel.
	if _, err := repo.Follow(ctx, alice.UID, uuid.NewString()); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("missing followee: expected ErrUserNotFound, got %v", err)
	}

	t.Log("✓ follow edge and counter lifecycle")
}

// ============================================================
// Like recount idempotence
// ============================================================

func TestIntegration_LikeRecountIdempotent(t *testing.T) {
	driver := integrationDriver(t)
	cleaner := newCleaner(t, driver)
	userRepo := NewUserRepository(driver)
	postRepo := NewPostRepository(driver)
	ctx := context.Background()

	alice := seedUser(t, userRepo, cleaner, "alice")
	bob := seedUser(t, userRepo, cleaner, "bob")
	post := seedPost(t, postRepo, cleaner, alice.UID, "hello world")

	created, likes, err := postRepo.Like(ctx, bob.UID, post.UID)
	if err != nil {
		t.Fatalf("Like failed: %v", err)
	}
	if !created || likes != 1 {
		t.Errorf("first like: created=%v likes=%d, want true/1", created, likes)
	}

	loaded, err := postRepo.GetByUID(ctx, post.UID, bob.UID)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if !loaded.IsLiked || loaded.LikesCount != 1 {
		t.Errorf("viewer state: is_liked=%v likes_count=%d, want true/1", loaded.IsLiked, loaded.LikesCount)
	}

	// Liking again recounts to the same value: the recompute is a full
	// re-count, so repeats can never drift the counter.
	created, likes, err = postRepo.Like(ctx, bob.UID, post.UID)
	if err != nil {
		t.Fatalf("repeat Like failed: %v", err)
	}
	if created || likes != 1 {
		t.Errorf("repeat like: created=%v likes=%d, want false/1", created, likes)
	}

	removed, likes, err := postRepo.Unlike(ctx, bob.UID, post.UID)
	if err != nil {
		t.Fatalf("Unlike failed: %v", err)
	}
	if !removed || likes != 0 {
		t.Errorf("unlike: removed=%v likes=%d, want true/0", removed, likes)
	}

	removed, likes, err = postRepo.Unlike(ctx, bob.UID, post.UID)
	if err != nil {
		t.Fatalf("repeat Unlike failed: %v", err)
	}
	if removed || likes != 0 {
		t.Errorf("repeat unlike: removed=%v likes=%d, want false/0", removed, likes)
	}

	t.Log("✓ like recount is idempotent under repeats")
}

// ============================================================
// Thread reconstruction and the reply cycle guard
// ============================================================

func TestIntegration_ThreadReconstruction(t *testing.T) {
	driver := integrationDriver(t)
	cleaner := newCleaner(t, driver)
	userRepo := NewUserRepository(driver)
	postRepo := NewPostRepository(driver)
	commentRepo := NewCommentRepository(driver)
	ctx := context.Background()

	alice := seedUser(t, userRepo, cleaner, "alice")
	post := seedPost(t, postRepo, cleaner, alice.UID, "thread me")

	base := time.Now().UTC().Add(-time.Hour)
	root := seedComment(t, commentRepo, cleaner, alice.UID, post.UID, nil, base)
	c1 := seedComment(t, commentRepo, cleaner, alice.UID, post.UID, &root.UID, base.Add(time.Minute))
	c2 := seedComment(t, commentRepo, cleaner, alice.UID, post.UID, &c1.UID, base.Add(2*time.Minute))

	// From the deepest leaf the walk climbs to the root and returns the
	// whole tree, oldest first.
	thread, err := commentRepo.Thread(ctx, c2.UID, "")
	if err != nil {
		t.Fatalf("Thread failed: %v", err)
	}
	if len(thread) != 3 {
		t.Fatalf("thread size = %d, want 3", len(thread))
	}
	want := []string{root.UID, c1.UID, c2.UID}
	for i, uid := range want {
		if thread[i].UID != uid {
			t.Errorf("thread[%d] = %s, want %s", i, thread[i].UID, uid)
		}
	}
	if thread[0].ParentUID != nil {
		t.Error("root must have no parent")
	}
	if thread[2].ParentUID == nil || *thread[2].ParentUID != c1.UID {
		t.Error("leaf must point at its parent")
	}

	// Reply counts come from the REPLY_TO edge set.
	rootLoaded, err := commentRepo.GetByUID(ctx, root.UID, "")
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if rootLoaded.RepliesCount != 1 {
		t.Errorf("root replies_count = %d, want 1", rootLoaded.RepliesCount)
	}
	postLoaded, _ := postRepo.GetByUID(ctx, post.UID, "")
	if postLoaded.CommentsCount != 3 {
		t.Errorf("post comments_count = %d, want 3", postLoaded.CommentsCount)
	}

	// Closing the chain back on itself is refused at connect time.
	edges := NewEdges(driver)
	if _, err := edges.Connect(ctx, EdgeReplyTo, root.UID, c2.UID); !errors.Is(err, model.ErrReplyCycle) {
		t.Errorf("cycle connect: expected ErrReplyCycle, got %v", err)
	}
	if _, err := edges.Connect(ctx, EdgeReplyTo, c1.UID, c1.UID); !errors.Is(err, model.ErrReplyCycle) {
		t.Errorf("self reply: expected ErrReplyCycle, got %v", err)
	}

	// Deleting the middle comment takes its subtree with it.
	if err := commentRepo.Delete(ctx, c1.UID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := commentRepo.GetByUID(ctx, c2.UID, ""); !errors.Is(err, model.ErrCommentNotFound) {
		t.Errorf("subtree member should be gone, got %v", err)
	}
	postLoaded, _ = postRepo.GetByUID(ctx, post.UID, "")
	if postLoaded.CommentsCount != 1 {
		t.Errorf("post comments_count after subtree delete = %d, want 1", postLoaded.CommentsCount)
	}

	t.Log("✓ thread walk, cycle guard and subtree delete")
}

// ============================================================
// Group membership flows
// ============================================================

func TestIntegration_GroupApprovalFlow(t *testing.T) {
	driver := integrationDriver(t)
	cleaner := newCleaner(t, driver)
	userRepo := NewUserRepository(driver)
	groupRepo := NewGroupRepository(driver)
	ctx := context.Background()

	alice := seedUser(t, userRepo, cleaner, "alice")
	bob := seedUser(t, userRepo, cleaner, "bob")
	group := seedGroup(t, groupRepo, cleaner, alice.UID, true)

	// The creator is owner and member from the start.
	state, err := groupRepo.Membership(ctx, group.UID, alice.UID)
	if err != nil {
		t.Fatalf("Membership failed: %v", err)
	}
	if !state.IsOwner || !state.IsMember || state.Role != model.RoleOwner {
		t.Errorf("creator state = %+v, want owner+member", state)
	}

	// A request leaves bob pending, not a member.
	if _, err := groupRepo.RequestJoin(ctx, group.UID, bob.UID); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	state, _ = groupRepo.Membership(ctx, group.UID, bob.UID)
	if state.IsMember || !state.IsPending {
		t.Errorf("after request: member=%v pending=%v, want false/true", state.IsMember, state.IsPending)
	}

	// Approval swaps the request for membership atomically.
	approved, err := groupRepo.Approve(ctx, group.UID, bob.UID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !approved {
		t.Error("Approve should consume the pending request")
	}
	state, _ = groupRepo.Membership(ctx, group.UID, bob.UID)
	if !state.IsMember || state.IsPending {
		t.Errorf("after approve: member=%v pending=%v, want true/false", state.IsMember, state.IsPending)
	}

	loaded, err := groupRepo.GetByUID(ctx, group.UID)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if loaded.MembersCount != 2 {
		t.Errorf("members_count = %d, want 2 (owner + approved)", loaded.MembersCount)
	}

	// The request is gone, so approving again finds nothing.
	approved, err = groupRepo.Approve(ctx, group.UID, bob.UID)
	if err != nil {
		t.Fatalf("repeat Approve failed: %v", err)
	}
	if approved {
		t.Error("a consumed request must not approve twice")
	}

	t.Log("✓ request, approve and recount")
}

func TestIntegration_OwnershipTransfer(t *testing.T) {
	driver := integrationDriver(t)
	cleaner := newCleaner(t, driver)
	userRepo := NewUserRepository(driver)
	groupRepo := NewGroupRepository(driver)
	ctx := context.Background()

	alice := seedUser(t, userRepo, cleaner, "alice")
	bob := seedUser(t, userRepo, cleaner, "bob")
	carol := seedUser(t, userRepo, cleaner, "carol")
	group := seedGroup(t, groupRepo, cleaner, alice.UID, false)

	// Outsiders cannot take over.
	if err := groupRepo.TransferOwnership(ctx, group.UID, alice.UID, carol.UID); !errors.Is(err, model.ErrNewOwnerNotMember) {
		t.Errorf("non-member transfer: expected ErrNewOwnerNotMember, got %v", err)
	}

	if _, err := groupRepo.Join(ctx, group.UID, bob.UID); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := groupRepo.TransferOwnership(ctx, group.UID, alice.UID, bob.UID); err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}

	// Exactly one owner, never zero, never two.
	bobState, _ := groupRepo.Membership(ctx, group.UID, bob.UID)
	aliceState, _ := groupRepo.Membership(ctx, group.UID, alice.UID)
	if !bobState.IsOwner {
		t.Error("new owner should hold OWNS")
	}
	if aliceState.IsOwner {
		t.Error("old owner should have lost OWNS")
	}
	if !aliceState.IsMember || aliceState.Role != model.RoleAdmin {
		t.Errorf("old owner should stay an admin member, got %+v", aliceState)
	}

	loaded, err := groupRepo.GetByUID(ctx, group.UID)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if loaded.OwnerUID != bob.UID {
		t.Errorf("group owner = %s, want %s", loaded.OwnerUID, bob.UID)
	}

	// The new owner is now pinned in place the same way the old one was.
	if _, err := groupRepo.Leave(ctx, group.UID, bob.UID); !errors.Is(err, model.ErrOwnerCannotLeave) {
		t.Errorf("owner leave: expected ErrOwnerCannotLeave, got %v", err)
	}

	t.Log("✓ ownership moves whole, exactly one owner at all times")
}

// ============================================================
// Notification fan-in
// ============================================================

func TestIntegration_NotificationRoundTrip(t *testing.T) {
	driver := integrationDriver(t)
	cleaner := newCleaner(t, driver)
	userRepo := NewUserRepository(driver)
	notifRepo := NewNotificationRepository(driver)
	ctx := context.Background()

	alice := seedUser(t, userRepo, cleaner, "alice")
	bob := seedUser(t, userRepo, cleaner, "bob")

	n := &model.Notification{
		UID:       uuid.NewString(),
		Type:      model.NotificationTypeFollow,
		Message:   bob.Username + " started following you",
		ActorUID:  bob.UID,
		CreatedAt: time.Now().UTC(),
	}
	if err := notifRepo.Create(ctx, n, alice.UID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cleaner.track(n.UID)

	unread, err := notifRepo.UnreadCount(ctx, alice.UID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if unread != 1 {
		t.Errorf("unread = %d, want 1", unread)
	}

	list, err := notifRepo.ListByRecipient(ctx, alice.UID, false, 0, 20)
	if err != nil {
		t.Fatalf("ListByRecipient failed: %v", err)
	}
	if len(list) != 1 || list[0].ActorUID != bob.UID || list[0].ActorUsername != bob.Username {
		t.Fatalf("unexpected listing: %+v", list)
	}

	// Only the recipient's own notifications can be flipped.
	if marked, _ := notifRepo.MarkRead(ctx, bob.UID, []string{n.UID}); marked != 0 {
		t.Errorf("foreign mark-read flipped %d notifications", marked)
	}
	marked, err := notifRepo.MarkRead(ctx, alice.UID, []string{n.UID})
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if marked != 1 {
		t.Errorf("marked = %d, want 1", marked)
	}
	if unread, _ := notifRepo.UnreadCount(ctx, alice.UID); unread != 0 {
		t.Errorf("unread after mark = %d, want 0", unread)
	}

	t.Log("✓ notification create, list and recipient-scoped marking")
}
