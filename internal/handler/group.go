package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"loomgraph/internal/httputil"
	"loomgraph/internal/logger"
	"loomgraph/internal/model"
	"loomgraph/internal/service"
	"loomgraph/internal/transport/http/middleware"
)

// GroupHandler serves groups, membership and moderation. Group post
// listings go through PostService so the same access gates apply.
type GroupHandler struct {
	groupService *service.GroupService
	postService  *service.PostService
}

func NewGroupHandler(groupService *service.GroupService, postService *service.PostService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		postService:  postService,
	}
}

// writeGroupError maps the group domain errors onto the response
// envelope. Returns false when the error is not a group error.
func writeGroupError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, model.ErrGroupNotFound):
		httputil.WriteNotFound(w, "Group not found")
	case errors.Is(err, model.ErrUserNotFound):
		httputil.WriteNotFound(w, "User not found")
	case errors.Is(err, model.ErrGroupNameTaken):
		httputil.WriteConflict(w, "Group name already taken")
	case errors.Is(err, model.ErrNotGroupOwner):
		httputil.WriteForbidden(w, "Only the group owner can do this")
	case errors.Is(err, model.ErrNotGroupAdmin):
		httputil.WriteForbidden(w, "Admin privileges required")
	case errors.Is(err, model.ErrBannedFromGroup):
		httputil.WriteForbidden(w, "You are banned from this group")
	case errors.Is(err, model.ErrGroupPostsRestricted):
		httputil.WriteForbidden(w, "Only members can view posts in this group")
	case errors.Is(err, model.ErrAlreadyMember):
		httputil.WriteInvalidOperation(w, "Already a member of this group")
	case errors.Is(err, model.ErrNotMember):
		httputil.WriteInvalidOperation(w, "Not a member of this group")
	case errors.Is(err, model.ErrNoJoinRequest):
		httputil.WriteNotFound(w, "No pending join request for this user")
	case errors.Is(err, model.ErrOwnerCannotLeave):
		httputil.WriteInvalidOperation(w, "Transfer ownership before leaving the group")
	case errors.Is(err, model.ErrCannotRemoveOwner):
		httputil.WriteInvalidOperation(w, "The owner cannot be removed")
	case errors.Is(err, model.ErrCannotBanOwner):
		httputil.WriteInvalidOperation(w, "The owner cannot be banned")
	case errors.Is(err, model.ErrCannotDemoteOwner):
		httputil.WriteInvalidOperation(w, "The owner cannot be demoted")
	case errors.Is(err, model.ErrCannotPromoteOwner):
		httputil.WriteInvalidOperation(w, "The owner already holds the highest role")
	case errors.Is(err, model.ErrNewOwnerNotMember):
		httputil.WriteInvalidOperation(w, "The new owner must be a group member")
	case errors.Is(err, model.ErrInvalidGroupRole):
		httputil.WriteBadRequest(w, "Invalid group role")
	default:
		return false
	}
	return true
}

// Create handles POST /groups.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	group, err := h.groupService.Create(r.Context(), userUID, &req)
	if err != nil {
		if model.IsValidation(err) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("create group failed", zap.String("user_uid", userUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to create group")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, group)
}

// Get handles GET /groups/{uid}.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	groupUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())

	group, err := h.groupService.Get(r.Context(), groupUID, viewerUID)
	if err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("get group failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get group")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, group)
}

// Update handles PUT /groups/{uid}.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")

	var req model.UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	group, err := h.groupService.Update(r.Context(), groupUID, userUID, &req)
	if err != nil {
		if model.IsValidation(err) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("update group failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to update group")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, group)
}

// Delete handles DELETE /groups/{uid}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")

	if err := h.groupService.Delete(r.Context(), groupUID, userUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("delete group failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to delete group")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Group deleted successfully",
	})
}

// Join handles POST /groups/{uid}/join. Open groups add the member
// directly; approval-required and secret groups leave a pending
// request.
func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")

	resp, err := h.groupService.Join(r.Context(), groupUID, userUID)
	if err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("join group failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to join group")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Leave handles DELETE /groups/{uid}/join.
func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")

	if err := h.groupService.Leave(r.Context(), groupUID, userUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("leave group failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to leave group")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Left group",
	})
}

// Approve handles POST /groups/{uid}/approve/{userUID}.
func (h *GroupHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")
	targetUID := chi.URLParam(r, "userUID")

	if err := h.groupService.Approve(r.Context(), groupUID, actorUID, targetUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("approve join failed",
			zap.String("group_uid", groupUID), zap.String("target", targetUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to approve request")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Join request approved",
	})
}

// Reject handles DELETE /groups/{uid}/approve/{userUID}.
func (h *GroupHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")
	targetUID := chi.URLParam(r, "userUID")

	if err := h.groupService.Reject(r.Context(), groupUID, actorUID, targetUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("reject join failed",
			zap.String("group_uid", groupUID), zap.String("target", targetUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to reject request")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Join request rejected",
	})
}

// Promote handles POST /groups/{uid}/promote.
func (h *GroupHandler) Promote(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")

	var req model.PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.UserUID == "" {
		httputil.WriteBadRequest(w, "user_uid is required")
		return
	}

	if err := h.groupService.Promote(r.Context(), groupUID, actorUID, &req); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("promote failed",
			zap.String("group_uid", groupUID), zap.String("target", req.UserUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to promote member")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Member promoted",
	})
}

// Demote handles DELETE /groups/{uid}/promote/{userUID}. The target
// drops back to plain member.
func (h *GroupHandler) Demote(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")
	targetUID := chi.URLParam(r, "userUID")

	if err := h.groupService.Demote(r.Context(), groupUID, actorUID, targetUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("demote failed",
			zap.String("group_uid", groupUID), zap.String("target", targetUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to demote member")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Member demoted",
	})
}

// RemoveMember handles DELETE /groups/{uid}/members/{userUID}.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")
	targetUID := chi.URLParam(r, "userUID")

	if err := h.groupService.RemoveMember(r.Context(), groupUID, actorUID, targetUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("remove member failed",
			zap.String("group_uid", groupUID), zap.String("target", targetUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to remove member")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Member removed",
	})
}

// Ban handles POST /groups/{uid}/ban/{userUID}.
func (h *GroupHandler) Ban(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")
	targetUID := chi.URLParam(r, "userUID")

	if err := h.groupService.Ban(r.Context(), groupUID, actorUID, targetUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("ban failed",
			zap.String("group_uid", groupUID), zap.String("target", targetUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to ban user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User banned from group",
	})
}

// Unban handles DELETE /groups/{uid}/ban/{userUID}.
func (h *GroupHandler) Unban(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")
	targetUID := chi.URLParam(r, "userUID")

	if err := h.groupService.Unban(r.Context(), groupUID, actorUID, targetUID); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("unban failed",
			zap.String("group_uid", groupUID), zap.String("target", targetUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to unban user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User unbanned",
	})
}

// Transfer handles POST /groups/{uid}/transfer.
func (h *GroupHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")

	var req model.TransferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.NewOwnerUID == "" {
		httputil.WriteBadRequest(w, "new_owner_uid is required")
		return
	}

	if err := h.groupService.TransferOwnership(r.Context(), groupUID, actorUID, &req); err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("ownership transfer failed",
			zap.String("group_uid", groupUID), zap.String("new_owner", req.NewOwnerUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to transfer ownership")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Ownership transferred",
	})
}

// Members handles GET /groups/{uid}/members.
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	groupUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	members, err := h.groupService.Members(r.Context(), groupUID, viewerUID, skip, limit)
	if err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("list members failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get members")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, members)
}

// Pending handles GET /groups/{uid}/pending.
func (h *GroupHandler) Pending(w http.ResponseWriter, r *http.Request) {
	actorUID, ok := middleware.GetUserUIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	groupUID := chi.URLParam(r, "uid")
	skip, limit := parsePagination(r)

	pending, err := h.groupService.PendingRequests(r.Context(), groupUID, actorUID, skip, limit)
	if err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("list pending failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get pending requests")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pending)
}

// Posts handles GET /groups/{uid}/posts. The only surface where group
// posts appear.
func (h *GroupHandler) Posts(w http.ResponseWriter, r *http.Request) {
	groupUID := chi.URLParam(r, "uid")
	viewerUID, _ := middleware.GetUserUIDFromContext(r.Context())
	skip, limit := parsePagination(r)

	posts, err := h.postService.GroupPosts(r.Context(), groupUID, viewerUID, skip, limit)
	if err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("group posts failed", zap.String("group_uid", groupUID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get group posts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, posts)
}

// Public handles GET /groups.
func (h *GroupHandler) Public(w http.ResponseWriter, r *http.Request) {
	skip, limit := parsePagination(r)

	groups, err := h.groupService.Public(r.Context(), skip, limit)
	if err != nil {
		logger.Get().Error("list public groups failed", zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get groups")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, groups)
}

// Search handles GET /groups/search?q=...
func (h *GroupHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	skip, limit := parsePagination(r)

	groups, err := h.groupService.Search(r.Context(), query, skip, limit)
	if err != nil {
		logger.Get().Error("group search failed", zap.String("query", query), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to search groups")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, groups)
}

// ByMember handles GET /groups/user/{uid}.
func (h *GroupHandler) ByMember(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	skip, limit := parsePagination(r)

	groups, err := h.groupService.ByMember(r.Context(), uid, skip, limit)
	if err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("groups by member failed", zap.String("uid", uid), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get groups")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, groups)
}

// OwnedBy handles GET /groups/owned/{uid}.
func (h *GroupHandler) OwnedBy(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	skip, limit := parsePagination(r)

	groups, err := h.groupService.OwnedBy(r.Context(), uid, skip, limit)
	if err != nil {
		if writeGroupError(w, err) {
			return
		}
		logger.Get().Error("groups owned by failed", zap.String("uid", uid), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to get groups")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, groups)
}
