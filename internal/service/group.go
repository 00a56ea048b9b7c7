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

// GroupService handles groups, membership and the role ladder:
// owner > admin > moderator > member.
type GroupService struct {
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
	notifier  *NotificationService
}

func NewGroupService(
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	notifier *NotificationService,
) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
		notifier:  notifier,
	}
}

// Create makes a new group with the caller as owner, admin and member.
func (s *GroupService) Create(ctx context.Context, ownerUID string, req *model.CreateGroupRequest) (*model.Group, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) < model.MinGroupNameLength || len(name) > model.MaxGroupNameLength {
		return nil, model.Validationf("group name must be %d-%d characters",
			model.MinGroupNameLength, model.MaxGroupNameLength)
	}

	groupType := req.GroupType
	if groupType == "" {
		groupType = model.GroupTypePublic
	}
	if !model.ValidGroupType(groupType) {
		return nil, model.Validationf("invalid group type %q", groupType)
	}

	allowMemberPosts := true
	if req.AllowMemberPosts != nil {
		allowMemberPosts = *req.AllowMemberPosts
	}

	now := time.Now().UTC()
	group := &model.Group{
		UID:              uuid.New().String(),
		Name:             name,
		Description:      req.Description,
		GroupType:        groupType,
		Category:         req.Category,
		Location:         req.Location,
		Tags:             model.NormalizeGroupTags(req.Tags),
		Rules:            req.Rules,
		Guidelines:       req.Guidelines,
		OwnerUID:         ownerUID,
		IsActive:         true,
		RequireApproval:  req.RequireApproval,
		AllowMemberPosts: allowMemberPosts,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}

	if owner, err := s.userRepo.GetByUID(ctx, ownerUID); err == nil {
		group.OwnerUsername = owner.Username
	} else {
		logger.Get().Warn("failed to hydrate group owner",
			zap.String("group_uid", group.UID), zap.Error(err))
	}

	role := model.RoleOwner
	group.UserRole = &role
	group.IsMember = true
	return group, nil
}

// Get returns a group with the caller's membership state. Secret
// groups do not exist for non-members.
func (s *GroupService) Get(ctx context.Context, groupUID, viewerUID string) (*model.Group, error) {
	group, membership, err := s.loadAccessible(ctx, groupUID, viewerUID)
	if err != nil {
		return nil, err
	}
	applyMembership(group, membership)
	return group, nil
}

// Update applies a partial edit. Owner or admin only.
func (s *GroupService) Update(ctx context.Context, groupUID, actorUID string, req *model.UpdateGroupRequest) (*model.Group, error) {
	group, membership, err := s.loadAccessible(ctx, groupUID, actorUID)
	if err != nil {
		return nil, err
	}
	if !isAdmin(membership) {
		return nil, model.ErrNotGroupAdmin
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < model.MinGroupNameLength || len(name) > model.MaxGroupNameLength {
			return nil, model.Validationf("group name must be %d-%d characters",
				model.MinGroupNameLength, model.MaxGroupNameLength)
		}
		group.Name = name
	}
	if req.GroupType != nil {
		if !model.ValidGroupType(*req.GroupType) {
			return nil, model.Validationf("invalid group type %q", *req.GroupType)
		}
		group.GroupType = *req.GroupType
	}
	if req.Description != nil {
		group.Description = req.Description
	}
	if req.Category != nil {
		group.Category = req.Category
	}
	if req.Location != nil {
		group.Location = req.Location
	}
	if req.Tags != nil {
		group.Tags = model.NormalizeGroupTags(*req.Tags)
	}
	if req.Rules != nil {
		group.Rules = *req.Rules
	}
	if req.Guidelines != nil {
		group.Guidelines = req.Guidelines
	}
	if req.RequireApproval != nil {
		group.RequireApproval = *req.RequireApproval
	}
	if req.AllowMemberPosts != nil {
		group.AllowMemberPosts = *req.AllowMemberPosts
	}
	if req.ProfilePictureURL != nil {
		group.ProfilePictureURL = req.ProfilePictureURL
	}
	if req.CoverPhotoURL != nil {
		group.CoverPhotoURL = req.CoverPhotoURL
	}
	group.UpdatedAt = time.Now().UTC()

	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, err
	}
	applyMembership(group, membership)
	return group, nil
}

// Delete removes the group node entirely. Owner only. Posts made in
// the group lose their group link but survive.
func (s *GroupService) Delete(ctx context.Context, groupUID, actorUID string) error {
	_, membership, err := s.loadAccessible(ctx, groupUID, actorUID)
	if err != nil {
		return err
	}
	if !membership.IsOwner {
		return model.ErrNotGroupOwner
	}
	return s.groupRepo.Delete(ctx, groupUID)
}

// Join enters an open group directly or files a join request when the
// group requires approval. Secret groups always go through approval.
func (s *GroupService) Join(ctx context.Context, groupUID, userUID string) (*model.JoinResponse, error) {
	group, err := s.groupRepo.GetByUID(ctx, groupUID)
	if err != nil {
		return nil, err
	}
	membership, err := s.groupRepo.Membership(ctx, groupUID, userUID)
	if err != nil {
		return nil, err
	}
	if membership.IsBanned {
		return nil, model.ErrBannedFromGroup
	}
	if membership.IsMember {
		return nil, model.ErrAlreadyMember
	}

	if group.RequireApproval || group.GroupType == model.GroupTypeSecret {
		created, err := s.groupRepo.RequestJoin(ctx, groupUID, userUID)
		if err != nil {
			return nil, err
		}
		if !created {
			return &model.JoinResponse{Message: "request already pending", Pending: true}, nil
		}
		if s.notifier != nil {
			s.notifier.NotifyAsync(ctx, group.OwnerUID, userUID, model.NotificationTypeGroupRequest, &group.UID)
		}
		return &model.JoinResponse{Message: "join request sent", Pending: true}, nil
	}

	created, err := s.groupRepo.Join(ctx, groupUID, userUID)
	if err != nil {
		return nil, err
	}
	if !created {
		return &model.JoinResponse{Message: "already a member", IsMember: true}, nil
	}
	return &model.JoinResponse{Message: "joined group", IsMember: true}, nil
}

// Leave drops the caller's membership and any role edges. The owner
// has to transfer ownership first.
func (s *GroupService) Leave(ctx context.Context, groupUID, userUID string) error {
	removed, err := s.groupRepo.Leave(ctx, groupUID, userUID)
	if err != nil {
		return err
	}
	if !removed {
		return model.ErrNotMember
	}
	return nil
}

// Approve turns a pending join request into a membership. Admin or
// owner only.
func (s *GroupService) Approve(ctx context.Context, groupUID, actorUID, targetUID string) error {
	if err := s.requireAdmin(ctx, groupUID, actorUID); err != nil {
		return err
	}
	approved, err := s.groupRepo.Approve(ctx, groupUID, targetUID)
	if err != nil {
		return err
	}
	if !approved {
		return model.ErrNoJoinRequest
	}
	return nil
}

// Reject discards a pending join request. Admin or owner only.
func (s *GroupService) Reject(ctx context.Context, groupUID, actorUID, targetUID string) error {
	if err := s.requireAdmin(ctx, groupUID, actorUID); err != nil {
		return err
	}
	rejected, err := s.groupRepo.RejectRequest(ctx, groupUID, targetUID)
	if err != nil {
		return err
	}
	if !rejected {
		return model.ErrNoJoinRequest
	}
	return nil
}

// Promote grants admin or moderator to a member. Owner only.
func (s *GroupService) Promote(ctx context.Context, groupUID, actorUID string, req *model.PromoteRequest) error {
	if !model.PromotableRole(req.Role) {
		return model.ErrInvalidGroupRole
	}
	actor, err := s.groupRepo.Membership(ctx, groupUID, actorUID)
	if err != nil {
		return err
	}
	if !actor.IsOwner {
		return model.ErrNotGroupOwner
	}
	target, err := s.groupRepo.Membership(ctx, groupUID, req.UserUID)
	if err != nil {
		return err
	}
	if target.IsOwner {
		return model.ErrCannotPromoteOwner
	}
	return s.groupRepo.Promote(ctx, groupUID, req.UserUID, req.Role)
}

// Demote strips admin/moderator from a member. Owner only; the owner
// cannot be demoted.
func (s *GroupService) Demote(ctx context.Context, groupUID, actorUID, targetUID string) error {
	actor, err := s.groupRepo.Membership(ctx, groupUID, actorUID)
	if err != nil {
		return err
	}
	if !actor.IsOwner {
		return model.ErrNotGroupOwner
	}
	target, err := s.groupRepo.Membership(ctx, groupUID, targetUID)
	if err != nil {
		return err
	}
	if target.IsOwner {
		return model.ErrCannotDemoteOwner
	}
	return s.groupRepo.Demote(ctx, groupUID, targetUID)
}

// RemoveMember kicks a member out. Admin or owner; the owner cannot be
// removed.
func (s *GroupService) RemoveMember(ctx context.Context, groupUID, actorUID, targetUID string) error {
	if err := s.requireAdmin(ctx, groupUID, actorUID); err != nil {
		return err
	}
	removed, err := s.groupRepo.RemoveMember(ctx, groupUID, targetUID)
	if err != nil {
		return err
	}
	if !removed {
		return model.ErrNotMember
	}
	return nil
}

// Ban strips membership, pending requests and roles, and blocks
// rejoining. Admin or owner; the owner cannot be banned.
func (s *GroupService) Ban(ctx context.Context, groupUID, actorUID, targetUID string) error {
	if err := s.requireAdmin(ctx, groupUID, actorUID); err != nil {
		return err
	}
	return s.groupRepo.Ban(ctx, groupUID, targetUID)
}

// Unban lifts a ban. Unbanning someone who isn't banned is a no-op.
func (s *GroupService) Unban(ctx context.Context, groupUID, actorUID, targetUID string) error {
	if err := s.requireAdmin(ctx, groupUID, actorUID); err != nil {
		return err
	}
	_, err := s.groupRepo.Unban(ctx, groupUID, targetUID)
	return err
}

// TransferOwnership hands the group to another member. The old owner
// stays on as admin and member.
func (s *GroupService) TransferOwnership(ctx context.Context, groupUID, actorUID string, req *model.TransferOwnershipRequest) error {
	actor, err := s.groupRepo.Membership(ctx, groupUID, actorUID)
	if err != nil {
		return err
	}
	if !actor.IsOwner {
		return model.ErrNotGroupOwner
	}
	if req.NewOwnerUID == actorUID {
		return nil
	}
	return s.groupRepo.TransferOwnership(ctx, groupUID, actorUID, req.NewOwnerUID)
}

// Members lists group members with their roles, ordered by username.
func (s *GroupService) Members(ctx context.Context, groupUID, viewerUID string, skip, limit int) (*model.GroupMemberListResponse, error) {
	if _, _, err := s.loadAccessible(ctx, groupUID, viewerUID); err != nil {
		return nil, err
	}
	skip, limit = normalizePage(skip, limit)
	members, err := s.groupRepo.Members(ctx, groupUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.GroupMemberListResponse{Members: members, Total: len(members)}, nil
}

// PendingRequests lists pending join requests in arrival order. Admin
// or owner only.
func (s *GroupService) PendingRequests(ctx context.Context, groupUID, actorUID string, skip, limit int) (*model.UserListResponse, error) {
	if err := s.requireAdmin(ctx, groupUID, actorUID); err != nil {
		return nil, err
	}
	skip, limit = normalizePage(skip, limit)
	users, err := s.groupRepo.PendingRequests(ctx, groupUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.UserListResponse{Users: users, Total: len(users)}, nil
}

// Public lists active public groups, biggest first.
func (s *GroupService) Public(ctx context.Context, skip, limit int) (*model.GroupListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	groups, err := s.groupRepo.Public(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.GroupListResponse{Groups: groups, Total: len(groups)}, nil
}

// Search matches non-secret groups by name, description and tags.
func (s *GroupService) Search(ctx context.Context, query string, skip, limit int) (*model.GroupListResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &model.GroupListResponse{Groups: []model.Group{}}, nil
	}
	skip, limit = normalizePage(skip, limit)
	groups, err := s.groupRepo.Search(ctx, query, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.GroupListResponse{Groups: groups, Total: len(groups)}, nil
}

// ByMember lists the groups a user belongs to.
func (s *GroupService) ByMember(ctx context.Context, userUID string, skip, limit int) (*model.GroupListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	groups, err := s.groupRepo.ByMember(ctx, userUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.GroupListResponse{Groups: groups, Total: len(groups)}, nil
}

// OwnedBy lists the groups a user owns.
func (s *GroupService) OwnedBy(ctx context.Context, userUID string, skip, limit int) (*model.GroupListResponse, error) {
	skip, limit = normalizePage(skip, limit)
	groups, err := s.groupRepo.OwnedBy(ctx, userUID, skip, limit)
	if err != nil {
		return nil, err
	}
	return &model.GroupListResponse{Groups: groups, Total: len(groups)}, nil
}

// loadAccessible fetches the group and the viewer's membership,
// hiding secret groups from non-members.
func (s *GroupService) loadAccessible(ctx context.Context, groupUID, viewerUID string) (*model.Group, *repository.MembershipState, error) {
	group, err := s.groupRepo.GetByUID(ctx, groupUID)
	if err != nil {
		return nil, nil, err
	}
	membership, err := s.groupRepo.Membership(ctx, groupUID, viewerUID)
	if err != nil {
		return nil, nil, err
	}
	if group.GroupType == model.GroupTypeSecret && !membership.IsMember {
		return nil, nil, model.ErrGroupNotFound
	}
	return group, membership, nil
}

func (s *GroupService) requireAdmin(ctx context.Context, groupUID, actorUID string) error {
	_, membership, err := s.loadAccessible(ctx, groupUID, actorUID)
	if err != nil {
		return err
	}
	if !isAdmin(membership) {
		return model.ErrNotGroupAdmin
	}
	return nil
}

func isAdmin(m *repository.MembershipState) bool {
	return m.IsOwner || m.Role == model.RoleAdmin
}

func applyMembership(group *model.Group, m *repository.MembershipState) {
	group.IsMember = m.IsMember
	if m.Role != "" {
		role := m.Role
		group.UserRole = &role
	}
}
