package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

type groupRepository struct {
	driver neo4j.DriverWithContext
}

func NewGroupRepository(driver neo4j.DriverWithContext) GroupRepository {
	return &groupRepository{driver: driver}
}

const groupReturn = `
RETURN g,
       owner.uid AS owner_uid,
       owner.username AS owner_username`

func groupFromRecord(record *neo4j.Record) (*model.Group, error) {
	node, ok := getNodeFromRecord(record, "g")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for group")
	}
	props := node.Props
	return &model.Group{
		UID:               getStringFromMap(props, "uid"),
		Name:              getStringFromMap(props, "name"),
		Description:       getStringPtrFromMap(props, "description"),
		GroupType:         getStringFromMap(props, "group_type"),
		Category:          getStringPtrFromMap(props, "category"),
		Location:          getStringPtrFromMap(props, "location"),
		Tags:              getStringSliceFromMap(props, "tags"),
		Rules:             getStringSliceFromMap(props, "rules"),
		Guidelines:        getStringPtrFromMap(props, "guidelines"),
		ProfilePictureURL: getStringPtrFromMap(props, "profile_picture_url"),
		CoverPhotoURL:     getStringPtrFromMap(props, "cover_photo_url"),
		OwnerUID:          getStringFromRecord(record, "owner_uid"),
		OwnerUsername:     getStringFromRecord(record, "owner_username"),
		IsActive:          getBoolFromMap(props, "is_active"),
		RequireApproval:   getBoolFromMap(props, "require_approval"),
		AllowMemberPosts:  getBoolFromMap(props, "allow_member_posts"),
		MembersCount:      getIntFromMap(props, "members_count"),
		PostsCount:        getIntFromMap(props, "posts_count"),
		CreatedAt:         getTimeFromMap(props, "created_at"),
		UpdatedAt:         getTimeFromMap(props, "updated_at"),
	}, nil
}

func groupProps(g *model.Group) map[string]interface{} {
	props := map[string]interface{}{
		"name":               g.Name,
		"group_type":         g.GroupType,
		"tags":               g.Tags,
		"rules":              g.Rules,
		"is_active":          g.IsActive,
		"require_approval":   g.RequireApproval,
		"allow_member_posts": g.AllowMemberPosts,
		"created_at":         g.CreatedAt,
		"updated_at":         g.UpdatedAt,
	}
	setOptString(props, "description", g.Description)
	setOptString(props, "category", g.Category)
	setOptString(props, "location", g.Location)
	setOptString(props, "guidelines", g.Guidelines)
	setOptString(props, "profile_picture_url", g.ProfilePictureURL)
	setOptString(props, "cover_photo_url", g.CoverPhotoURL)
	return props
}

// Create writes the group node and gives the owner their OWNS,
// ADMIN_OF and MEMBER_OF edges in one transaction.
func (r *groupRepository) Create(ctx context.Context, group *model.Group) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		createQuery := `
			MATCH (owner:User {uid: $owner})
			CREATE (g:Group {uid: $uid})
			SET g += $props,
			    g.members_count = 0,
			    g.posts_count = 0
			CREATE (owner)-[:OWNS {created_at: datetime()}]->(g)
			CREATE (owner)-[:ADMIN_OF {created_at: datetime()}]->(g)
			CREATE (owner)-[:MEMBER_OF {created_at: datetime()}]->(g)
			RETURN g.uid`
		result, err := tx.Run(ctx, createQuery, map[string]interface{}{
			"uid":   group.UID,
			"owner": group.OwnerUID,
			"props": groupProps(group),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create group: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, model.ErrUserNotFound
		}
		return nil, recomputeGroupCountersTx(ctx, tx, group.UID)
	})
	if err != nil {
		return mapConstraintError(err, map[string]error{
			"name": model.ErrGroupNameTaken,
		})
	}
	return nil
}

func (r *groupRepository) GetByUID(ctx context.Context, uid string) (*model.Group, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `MATCH (owner:User)-[:OWNS]->(g:Group {uid: $uid})` + groupReturn

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid})
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, model.ErrGroupNotFound
	}
	return groupFromRecord(record)
}

func (r *groupRepository) Update(ctx context.Context, group *model.Group) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	group.UpdatedAt = time.Now().UTC()

	query := `
		MATCH (g:Group {uid: $uid})
		SET g += $props
		RETURN g.uid`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"uid":   group.UID,
		"props": groupProps(group),
	})
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return mapConstraintError(err, map[string]error{
			"name": model.ErrGroupNameTaken,
		})
	}
	if record == nil {
		return model.ErrGroupNotFound
	}
	return nil
}

// Delete removes the group and every membership edge. Posts made in the
// group survive; they just lose their POSTED_IN link.
func (r *groupRepository) Delete(ctx context.Context, uid string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (g:Group {uid: $uid})
		DETACH DELETE g
		RETURN count(*) AS deleted`

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid})
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record == nil || getIntFromRecord(record, "deleted") == 0 {
		return model.ErrGroupNotFound
	}
	return nil
}

// Membership resolves a user's whole standing in one query. The role is
// the strongest edge they hold.
func (r *groupRepository) Membership(ctx context.Context, groupUID, userUID string) (*MembershipState, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (g:Group {uid: $group})
		OPTIONAL MATCH (u:User {uid: $user})
		RETURN EXISTS { MATCH (u)-[:OWNS]->(g) } AS is_owner,
		       EXISTS { MATCH (u)-[:ADMIN_OF]->(g) } AS is_admin,
		       EXISTS { MATCH (u)-[:MODERATOR_OF]->(g) } AS is_moderator,
		       EXISTS { MATCH (u)-[:MEMBER_OF]->(g) } AS is_member,
		       EXISTS { MATCH (u)-[:REQUESTED_TO_JOIN]->(g) } AS is_pending,
		       EXISTS { MATCH (u)-[:BANNED_FROM]->(g) } AS is_banned`

	result, err := session.Run(ctx, query, map[string]interface{}{"group": groupUID, "user": userUID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, model.ErrGroupNotFound
	}

	state := &MembershipState{
		IsMember:  getBoolFromRecord(record, "is_member"),
		IsPending: getBoolFromRecord(record, "is_pending"),
		IsBanned:  getBoolFromRecord(record, "is_banned"),
		IsOwner:   getBoolFromRecord(record, "is_owner"),
	}
	switch {
	case state.IsOwner:
		state.Role = model.RoleOwner
	case getBoolFromRecord(record, "is_admin"):
		state.Role = model.RoleAdmin
	case getBoolFromRecord(record, "is_moderator"):
		state.Role = model.RoleModerator
	case state.IsMember:
		state.Role = model.RoleMember
	}
	return state, nil
}

// Join adds the MEMBER_OF edge directly. Banned users are rejected
// inside the transaction; a repeat join reports joined=false.
func (r *groupRepository) Join(ctx context.Context, groupUID, userUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if err := r.rejectBannedTx(ctx, tx, groupUID, userUID); err != nil {
			return nil, err
		}
		created, err := connectTx(ctx, tx, EdgeMemberOf, userUID, groupUID)
		if err != nil {
			return nil, err
		}
		if created {
			// A direct join settles any stale request.
			dropRequest := `
				MATCH (u:User {uid: $user})-[r:REQUESTED_TO_JOIN]->(g:Group {uid: $group})
				DELETE r`
			if _, err := tx.Run(ctx, dropRequest, map[string]interface{}{"user": userUID, "group": groupUID}); err != nil {
				return nil, fmt.Errorf("failed to clear join request: %w", err)
			}
			if err := recomputeGroupCountersTx(ctx, tx, groupUID); err != nil {
				return nil, err
			}
		}
		return created, nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// RequestJoin records a pending request for approval-gated groups.
func (r *groupRepository) RequestJoin(ctx context.Context, groupUID, userUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if err := r.rejectBannedTx(ctx, tx, groupUID, userUID); err != nil {
			return nil, err
		}
		return connectTx(ctx, tx, EdgeRequestedJoin, userUID, groupUID)
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (r *groupRepository) rejectBannedTx(ctx context.Context, tx neo4j.ManagedTransaction, groupUID, userUID string) error {
	query := `
		MATCH (u:User {uid: $user})-[:BANNED_FROM]->(g:Group {uid: $group})
		RETURN u.uid`
	result, err := tx.Run(ctx, query, map[string]interface{}{"user": userUID, "group": groupUID})
	if err != nil {
		return fmt.Errorf("failed to check ban state: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record != nil {
		return model.ErrBannedFromGroup
	}
	return nil
}

// Leave drops the caller's membership and any elevated role edges. The
// owner is blocked here so the group can never go ownerless.
func (r *groupRepository) Leave(ctx context.Context, groupUID, userUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		ownsQuery := `
			MATCH (u:User {uid: $user})-[:OWNS]->(g:Group {uid: $group})
			RETURN u.uid`
		result, err := tx.Run(ctx, ownsQuery, map[string]interface{}{"user": userUID, "group": groupUID})
		if err != nil {
			return nil, fmt.Errorf("failed to check ownership: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return nil, model.ErrOwnerCannotLeave
		}
		return r.stripMembershipTx(ctx, tx, groupUID, userUID)
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// RemoveMember is Leave driven by a moderator; the owner check flips to
// protecting the target instead of the caller.
func (r *groupRepository) RemoveMember(ctx context.Context, groupUID, userUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		ownsQuery := `
			MATCH (u:User {uid: $user})-[:OWNS]->(g:Group {uid: $group})
			RETURN u.uid`
		result, err := tx.Run(ctx, ownsQuery, map[string]interface{}{"user": userUID, "group": groupUID})
		if err != nil {
			return nil, fmt.Errorf("failed to check ownership: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return nil, model.ErrCannotRemoveOwner
		}
		return r.stripMembershipTx(ctx, tx, groupUID, userUID)
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// stripMembershipTx deletes every membership-family edge and reports
// whether a MEMBER_OF edge was actually there.
func (r *groupRepository) stripMembershipTx(ctx context.Context, tx neo4j.ManagedTransaction, groupUID, userUID string) (bool, error) {
	query := `
		MATCH (u:User {uid: $user}), (g:Group {uid: $group})
		OPTIONAL MATCH (u)-[m:MEMBER_OF]->(g)
		OPTIONAL MATCH (u)-[a:ADMIN_OF]->(g)
		OPTIONAL MATCH (u)-[mo:MODERATOR_OF]->(g)
		OPTIONAL MATCH (u)-[rq:REQUESTED_TO_JOIN]->(g)
		WITH u, g, m, a, mo, rq, m IS NOT NULL AS was_member
		DELETE m, a, mo, rq
		RETURN was_member`
	result, err := tx.Run(ctx, query, map[string]interface{}{"user": userUID, "group": groupUID})
	if err != nil {
		return false, fmt.Errorf("failed to strip membership: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return false, err
	}
	if record == nil {
		if err := checkEndpointsTx(ctx, tx, EdgeMemberOf, userUID, groupUID); err != nil {
			return false, err
		}
		return false, nil
	}
	removed := getBoolFromRecord(record, "was_member")
	if removed {
		if err := recomputeGroupCountersTx(ctx, tx, groupUID); err != nil {
			return false, err
		}
	}
	return removed, nil
}

// Approve swaps a pending request for membership in a single statement
// so the request can never be consumed twice.
func (r *groupRepository) Approve(ctx context.Context, groupUID, userUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		query := `
			MATCH (u:User {uid: $user})-[r:REQUESTED_TO_JOIN]->(g:Group {uid: $group})
			DELETE r
			MERGE (u)-[m:MEMBER_OF]->(g)
			ON CREATE SET m.created_at = datetime()
			RETURN count(*) AS approved`
		result, err := tx.Run(ctx, query, map[string]interface{}{"user": userUID, "group": groupUID})
		if err != nil {
			return nil, fmt.Errorf("failed to approve join request: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		approved := record != nil && getIntFromRecord(record, "approved") > 0
		if approved {
			if err := recomputeGroupCountersTx(ctx, tx, groupUID); err != nil {
				return nil, err
			}
		}
		return approved, nil
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

func (r *groupRepository) RejectRequest(ctx context.Context, groupUID, userUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (u:User {uid: $user})-[r:REQUESTED_TO_JOIN]->(g:Group {uid: $group})
		DELETE r
		RETURN count(*) AS rejected`

	result, err := session.Run(ctx, query, map[string]interface{}{"user": userUID, "group": groupUID})
	if err != nil {
		return false, fmt.Errorf("failed to reject join request: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return false, err
	}
	return record != nil && getIntFromRecord(record, "rejected") > 0, nil
}

var roleEdges = map[string]string{
	model.RoleAdmin:     "ADMIN_OF",
	model.RoleModerator: "MODERATOR_OF",
}

// Promote grants admin or moderator. The two elevated edges are
// exclusive, so the other one is dropped in the same statement.
func (r *groupRepository) Promote(ctx context.Context, groupUID, userUID, role string) error {
	rel, ok := roleEdges[role]
	if !ok {
		return model.ErrInvalidGroupRole
	}

	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		query := fmt.Sprintf(`
			MATCH (u:User {uid: $user})-[:MEMBER_OF]->(g:Group {uid: $group})
			OPTIONAL MATCH (u)-[a:ADMIN_OF]->(g)
			OPTIONAL MATCH (u)-[mo:MODERATOR_OF]->(g)
			DELETE a, mo
			MERGE (u)-[r:%s]->(g)
			ON CREATE SET r.created_at = datetime()
			RETURN u.uid`, rel)
		result, err := tx.Run(ctx, query, map[string]interface{}{"user": userUID, "group": groupUID})
		if err != nil {
			return nil, fmt.Errorf("failed to promote member: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			if err := checkEndpointsTx(ctx, tx, EdgeMemberOf, userUID, groupUID); err != nil {
				return nil, err
			}
			return nil, model.ErrNotMember
		}
		return nil, nil
	})
	return err
}

// Demote strips both elevated edges, leaving plain membership.
func (r *groupRepository) Demote(ctx context.Context, groupUID, userUID string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		query := `
			MATCH (u:User {uid: $user})-[:MEMBER_OF]->(g:Group {uid: $group})
			OPTIONAL MATCH (u)-[a:ADMIN_OF]->(g)
			OPTIONAL MATCH (u)-[mo:MODERATOR_OF]->(g)
			DELETE a, mo
			RETURN u.uid`
		result, err := tx.Run(ctx, query, map[string]interface{}{"user": userUID, "group": groupUID})
		if err != nil {
			return nil, fmt.Errorf("failed to demote member: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			if err := checkEndpointsTx(ctx, tx, EdgeMemberOf, userUID, groupUID); err != nil {
				return nil, err
			}
			return nil, model.ErrNotMember
		}
		return nil, nil
	})
	return err
}

// Ban strips every membership edge and pins a BANNED_FROM edge so the
// user cannot come back on their own.
func (r *groupRepository) Ban(ctx context.Context, groupUID, userUID string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		ownsQuery := `
			MATCH (u:User {uid: $user})-[:OWNS]->(g:Group {uid: $group})
			RETURN u.uid`
		result, err := tx.Run(ctx, ownsQuery, map[string]interface{}{"user": userUID, "group": groupUID})
		if err != nil {
			return nil, fmt.Errorf("failed to check ownership: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return nil, model.ErrCannotBanOwner
		}

		banQuery := `
			MATCH (u:User {uid: $user}), (g:Group {uid: $group})
			OPTIONAL MATCH (u)-[m:MEMBER_OF]->(g)
			OPTIONAL MATCH (u)-[a:ADMIN_OF]->(g)
			OPTIONAL MATCH (u)-[mo:MODERATOR_OF]->(g)
			OPTIONAL MATCH (u)-[rq:REQUESTED_TO_JOIN]->(g)
			DELETE m, a, mo, rq
			MERGE (u)-[b:BANNED_FROM]->(g)
			ON CREATE SET b.created_at = datetime()
			RETURN u.uid`
		result, err = tx.Run(ctx, banQuery, map[string]interface{}{"user": userUID, "group": groupUID})
		if err != nil {
			return nil, fmt.Errorf("failed to ban member: %w", err)
		}
		record, err = singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			if err := checkEndpointsTx(ctx, tx, EdgeBannedFrom, userUID, groupUID); err != nil {
				return nil, err
			}
		}
		return nil, recomputeGroupCountersTx(ctx, tx, groupUID)
	})
	return err
}

func (r *groupRepository) Unban(ctx context.Context, groupUID, userUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (u:User {uid: $user})-[b:BANNED_FROM]->(g:Group {uid: $group})
		DELETE b
		RETURN count(*) AS lifted`

	result, err := session.Run(ctx, query, map[string]interface{}{"user": userUID, "group": groupUID})
	if err != nil {
		return false, fmt.Errorf("failed to unban user: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return false, err
	}
	return record != nil && getIntFromRecord(record, "lifted") > 0, nil
}

// TransferOwnership moves the OWNS edge in one statement. The new owner
// must already be a member; the old owner keeps admin and membership.
func (r *groupRepository) TransferOwnership(ctx context.Context, groupUID, oldOwnerUID, newOwnerUID string) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		query := `
			MATCH (old:User {uid: $old})-[o:OWNS]->(g:Group {uid: $group})
			MATCH (next:User {uid: $next})-[:MEMBER_OF]->(g)
			DELETE o
			MERGE (next)-[no:OWNS]->(g)
			ON CREATE SET no.created_at = datetime()
			MERGE (next)-[na:ADMIN_OF]->(g)
			ON CREATE SET na.created_at = datetime()
			RETURN g.uid`
		result, err := tx.Run(ctx, query, map[string]interface{}{
			"old":   oldOwnerUID,
			"next":  newOwnerUID,
			"group": groupUID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to transfer ownership: %w", err)
		}
		record, err := singleRecord(ctx, result)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, model.ErrNewOwnerNotMember
		}
		return nil, nil
	})
	return err
}

// Members lists the membership with resolved roles, ordered by username.
func (r *groupRepository) Members(ctx context.Context, groupUID string, skip, limit int) ([]model.GroupMember, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (u:User)-[:MEMBER_OF]->(g:Group {uid: $group})
		RETURN u,
		       EXISTS { MATCH (u)-[:OWNS]->(g) } AS is_owner,
		       EXISTS { MATCH (u)-[:ADMIN_OF]->(g) } AS is_admin,
		       EXISTS { MATCH (u)-[:MODERATOR_OF]->(g) } AS is_moderator
		ORDER BY u.username ASC, u.uid ASC
		SKIP $skip LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]interface{}{"group": groupUID, "skip": skip, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	members := make([]model.GroupMember, 0, len(records))
	for _, record := range records {
		node, ok := getNodeFromRecord(record, "u")
		if !ok {
			continue
		}
		role := model.RoleMember
		switch {
		case getBoolFromRecord(record, "is_owner"):
			role = model.RoleOwner
		case getBoolFromRecord(record, "is_admin"):
			role = model.RoleAdmin
		case getBoolFromRecord(record, "is_moderator"):
			role = model.RoleModerator
		}
		members = append(members, model.GroupMember{
			UserPublic: *userFromProps(node.Props).Public(),
			Role:       role,
		})
	}
	return members, nil
}

func (r *groupRepository) PendingRequests(ctx context.Context, groupUID string, skip, limit int) ([]model.UserPublic, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (u:User)-[r:REQUESTED_TO_JOIN]->(g:Group {uid: $group})
		RETURN u
		ORDER BY r.created_at ASC, u.uid ASC
		SKIP $skip LIMIT $limit`

	result, err := session.Run(ctx, query, map[string]interface{}{"group": groupUID, "skip": skip, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list join requests: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	users := make([]model.UserPublic, 0, len(records))
	for _, record := range records {
		node, ok := getNodeFromRecord(record, "u")
		if !ok {
			continue
		}
		users = append(users, *userFromProps(node.Props).Public())
	}
	return users, nil
}

func (r *groupRepository) listGroups(ctx context.Context, query string, params map[string]interface{}) ([]model.Group, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	groups := make([]model.Group, 0, len(records))
	for _, record := range records {
		group, err := groupFromRecord(record)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, nil
}

func (r *groupRepository) Public(ctx context.Context, skip, limit int) ([]model.Group, error) {
	query := `
		MATCH (owner:User)-[:OWNS]->(g:Group)
		WHERE g.group_type = 'public' AND g.is_active = true` +
		groupReturn + `
		ORDER BY g.members_count DESC, g.uid ASC
		SKIP $skip LIMIT $limit`
	return r.listGroups(ctx, query, map[string]interface{}{"skip": skip, "limit": limit})
}

// Search covers name, description and tags. Secret groups never appear
// in search, whoever asks.
func (r *groupRepository) Search(ctx context.Context, query string, skip, limit int) ([]model.Group, error) {
	cypher := `
		MATCH (owner:User)-[:OWNS]->(g:Group)
		WHERE g.is_active = true
		  AND g.group_type <> 'secret'
		  AND (toLower(g.name) CONTAINS toLower($q)
		    OR toLower(coalesce(g.description, '')) CONTAINS toLower($q)
		    OR any(tag IN g.tags WHERE tag CONTAINS toLower($q)))` +
		groupReturn + `
		ORDER BY g.members_count DESC, g.uid ASC
		SKIP $skip LIMIT $limit`
	return r.listGroups(ctx, cypher, map[string]interface{}{"q": query, "skip": skip, "limit": limit})
}

func (r *groupRepository) ByMember(ctx context.Context, userUID string, skip, limit int) ([]model.Group, error) {
	query := `
		MATCH (:User {uid: $user})-[:MEMBER_OF]->(g:Group)<-[:OWNS]-(owner:User)
		WHERE g.is_active = true` +
		groupReturn + `
		ORDER BY g.name ASC, g.uid ASC
		SKIP $skip LIMIT $limit`
	return r.listGroups(ctx, query, map[string]interface{}{"user": userUID, "skip": skip, "limit": limit})
}

func (r *groupRepository) OwnedBy(ctx context.Context, userUID string, skip, limit int) ([]model.Group, error) {
	query := `
		MATCH (owner:User {uid: $user})-[:OWNS]->(g:Group)` +
		groupReturn + `
		ORDER BY g.name ASC, g.uid ASC
		SKIP $skip LIMIT $limit`
	return r.listGroups(ctx, query, map[string]interface{}{"user": userUID, "skip": skip, "limit": limit})
}
