package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loomgraph/internal/model"
)

func testComment(uid, postUID, authorUID string) *model.Comment {
	now := time.Now().UTC()
	return &model.Comment{
		UID:       uid,
		PostUID:   postUID,
		AuthorUID: authorUID,
		Content:   "nice one",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type commentFixture struct {
	users    *mockUserRepository
	posts    *mockPostRepository
	comments *mockCommentRepository
	notifs   *mockNotificationRepository
	svc      *CommentService
}

func newCommentFixture(users []*model.User, posts []*model.Post, comments []*model.Comment) *commentFixture {
	userRepo := newMockUserRepository(users...)
	postRepo := newMockPostRepository(posts...)
	commentRepo := newMockCommentRepository(comments...)
	notifier, notifRepo := newTestNotifier(userRepo)
	postSvc := NewPostService(postRepo, userRepo, newMockGroupRepository(), nil, nil)
	return &commentFixture{
		users:    userRepo,
		posts:    postRepo,
		comments: commentRepo,
		notifs:   notifRepo,
		svc:      NewCommentService(commentRepo, postSvc, userRepo, notifier),
	}
}

// ============================================================
// Create
// ============================================================

func TestCreateComment_Validation(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice")},
		[]*model.Post{testPost("p1", "u1")},
		nil,
	)

	if _, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{PostUID: "p1", Content: " "}); !errors.Is(err, model.ErrCommentContentEmpty) {
		t.Errorf("blank content: expected ErrCommentContentEmpty, got %v", err)
	}

	long := strings.Repeat("a", model.MaxCommentLength+1)
	if _, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{PostUID: "p1", Content: long}); !errors.Is(err, model.ErrCommentTooLong) {
		t.Errorf("oversized content: expected ErrCommentTooLong, got %v", err)
	}

	t.Log("✓ comment create validation")
}

func TestCreateComment_CommentsDisabled(t *testing.T) {
	ctx := context.Background()
	post := testPost("p1", "u2")
	post.AllowComments = false
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u2", "bob")},
		[]*model.Post{post},
		nil,
	)

	_, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{PostUID: "p1", Content: "hello?"})
	if !errors.Is(err, model.ErrCommentsDisabled) {
		t.Fatalf("expected ErrCommentsDisabled, got %v", err)
	}
	if len(f.comments.createCalls) != 0 {
		t.Error("no comment should be written")
	}

	t.Log("✓ closed comment sections stay closed")
}

func TestCreateComment_NotifiesPostAuthor(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u2", "bob")},
		[]*model.Post{testPost("p1", "u2")},
		nil,
	)

	comment, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{PostUID: "p1", Content: "nice"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if comment.IsReply {
		t.Error("top-level comment marked as reply")
	}
	if comment.AuthorUsername != "alice" {
		t.Errorf("author not hydrated: %q", comment.AuthorUsername)
	}

	if len(f.notifs.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.notifs.created))
	}
	call := f.notifs.created[0]
	if call.RecipientUID != "u2" || call.Notification.Type != model.NotificationTypeComment {
		t.Errorf("wrong notification: recipient=%s type=%s", call.RecipientUID, call.Notification.Type)
	}

	t.Log("✓ post author notified of new comments")
}

func TestCreateComment_OwnPostQuiet(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice")},
		[]*model.Post{testPost("p1", "u1")},
		nil,
	)

	if _, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{PostUID: "p1", Content: "replying to myself"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(f.notifs.created) != 0 {
		t.Errorf("commenting on your own post must not notify, got %v", f.notifs.recipients())
	}

	t.Log("✓ self-comments stay silent")
}

func TestCreateReply_ParentWrongPost(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u2", "bob")},
		[]*model.Post{testPost("p1", "u2"), testPost("p2", "u2")},
		[]*model.Comment{testComment("c1", "p2", "u2")},
	)

	_, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{
		PostUID:   "p1",
		Content:   "confused reply",
		ParentUID: strPtr("c1"),
	})
	if !errors.Is(err, model.ErrParentWrongPost) {
		t.Fatalf("expected ErrParentWrongPost, got %v", err)
	}

	t.Log("✓ replies must stay on their parent's post")
}

func TestCreateReply_NotifiesParentAndPostAuthor(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u2", "bob"), testUser("u3", "carol")},
		[]*model.Post{testPost("p1", "u2")},
		[]*model.Comment{testComment("c1", "p1", "u3")},
	)

	reply, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{
		PostUID:   "p1",
		Content:   "agreed",
		ParentUID: strPtr("c1"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !reply.IsReply {
		t.Error("reply not marked as reply")
	}

	// carol (parent author) gets a reply, bob (post author) a comment.
	if len(f.notifs.created) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %v", len(f.notifs.created), f.notifs.recipients())
	}
	byType := map[string]string{}
	for _, call := range f.notifs.created {
		byType[call.Notification.Type] = call.RecipientUID
	}
	if byType[model.NotificationTypeReply] != "u3" {
		t.Errorf("reply notification went to %s, want u3", byType[model.NotificationTypeReply])
	}
	if byType[model.NotificationTypeComment] != "u2" {
		t.Errorf("comment notification went to %s, want u2", byType[model.NotificationTypeComment])
	}

	t.Log("✓ replies notify parent author and post author")
}

func TestCreateReply_NoDoublePing(t *testing.T) {
	ctx := context.Background()
	// bob owns the post AND the parent comment.
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u2", "bob")},
		[]*model.Post{testPost("p1", "u2")},
		[]*model.Comment{testComment("c1", "p1", "u2")},
	)

	_, err := f.svc.Create(ctx, "u1", &model.CreateCommentRequest{
		PostUID:   "p1",
		Content:   "agreed",
		ParentUID: strPtr("c1"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(f.notifs.created) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d: %v", len(f.notifs.created), f.notifs.recipients())
	}
	if f.notifs.created[0].Notification.Type != model.NotificationTypeReply {
		t.Errorf("the single notification should be the reply, got %s", f.notifs.created[0].Notification.Type)
	}

	t.Log("✓ replying to the post author pings them once, not twice")
}

// ============================================================
// Delete
// ============================================================

func TestDeleteComment(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u2", "bob"), testUser("u3", "carol")},
		[]*model.Post{testPost("p1", "u2")},
		[]*model.Comment{testComment("c1", "p1", "u1"), testComment("c2", "p1", "u1")},
	)

	// A bystander cannot delete.
	if err := f.svc.Delete(ctx, "c1", "u3"); !errors.Is(err, model.ErrNotCommentOwner) {
		t.Errorf("stranger: expected ErrNotCommentOwner, got %v", err)
	}

	// The comment author can.
	if err := f.svc.Delete(ctx, "c1", "u1"); err != nil {
		t.Errorf("comment author delete failed: %v", err)
	}

	// The post author moderates their own post.
	if err := f.svc.Delete(ctx, "c2", "u2"); err != nil {
		t.Errorf("post author delete failed: %v", err)
	}

	if len(f.comments.deleteCalls) != 2 {
		t.Errorf("expected 2 deletes, got %v", f.comments.deleteCalls)
	}

	t.Log("✓ delete allowed for comment author and post author only")
}

// ============================================================
// Like / pin
// ============================================================

func TestLikeComment(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u3", "carol")},
		[]*model.Post{testPost("p1", "u1")},
		[]*model.Comment{testComment("c1", "p1", "u3")},
	)

	resp, err := f.svc.Like(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("Like failed: %v", err)
	}
	if !resp.IsLiked {
		t.Error("expected is_liked=true")
	}
	if len(f.notifs.created) != 1 || f.notifs.created[0].RecipientUID != "u3" {
		t.Errorf("comment author should be notified, got %v", f.notifs.recipients())
	}

	t.Log("✓ comment like notifies its author")
}

func TestSetPinnedComment(t *testing.T) {
	ctx := context.Background()
	f := newCommentFixture(
		[]*model.User{testUser("u1", "alice"), testUser("u2", "bob")},
		[]*model.Post{testPost("p1", "u2")},
		[]*model.Comment{testComment("c1", "p1", "u1")},
	)

	// Even the comment's own author cannot pin it; curation belongs to
	// the post author.
	if err := f.svc.SetPinned(ctx, "c1", "u1", true); !errors.Is(err, model.ErrNotPostOwner) {
		t.Errorf("comment author: expected ErrNotPostOwner, got %v", err)
	}

	if err := f.svc.SetPinned(ctx, "c1", "u2", true); err != nil {
		t.Fatalf("post author SetPinned failed: %v", err)
	}
	if !f.comments.comments["c1"].IsPinned {
		t.Error("pin flag not set")
	}

	t.Log("✓ pinning is post-author-only")
}
