package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"loomgraph/internal/model"
)

// userRepository implements UserRepository on the Neo4j driver
type userRepository struct {
	driver neo4j.DriverWithContext
}

// NewUserRepository creates a new user repository
func NewUserRepository(driver neo4j.DriverWithContext) UserRepository {
	return &userRepository{driver: driver}
}

func userFromProps(props map[string]interface{}) *model.User {
	return &model.User{
		UID:               getStringFromMap(props, "uid"),
		Username:          getStringFromMap(props, "username"),
		Email:             getStringFromMap(props, "email"),
		PasswordHash:      getStringFromMap(props, "password_hash"),
		FirstName:         getStringPtrFromMap(props, "first_name"),
		LastName:          getStringPtrFromMap(props, "last_name"),
		Bio:               getStringPtrFromMap(props, "bio"),
		Location:          getStringPtrFromMap(props, "location"),
		Website:           getStringPtrFromMap(props, "website"),
		PhoneNumber:       getStringPtrFromMap(props, "phone_number"),
		ProfilePictureURL: getStringPtrFromMap(props, "profile_picture_url"),
		CoverPhotoURL:     getStringPtrFromMap(props, "cover_photo_url"),
		IsActive:          getBoolFromMap(props, "is_active"),
		IsVerified:        getBoolFromMap(props, "is_verified"),
		IsPrivate:         getBoolFromMap(props, "is_private"),
		Interests:         getStringSliceFromMap(props, "interests"),
		FollowersCount:    getIntFromMap(props, "followers_count"),
		FollowingCount:    getIntFromMap(props, "following_count"),
		PostsCount:        getIntFromMap(props, "posts_count"),
		LastLogin:         getTimePtrFromMap(props, "last_login"),
		CreatedAt:         getTimeFromMap(props, "created_at"),
		UpdatedAt:         getTimeFromMap(props, "updated_at"),
	}
}

// userProps carries the mutable profile fields. Counters are absent on
// purpose: they only ever move through the recompute statements, so a
// profile save can never clobber them with stale values.
func userProps(u *model.User) map[string]interface{} {
	props := map[string]interface{}{
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"is_active":     u.IsActive,
		"is_verified":   u.IsVerified,
		"is_private":    u.IsPrivate,
		"interests":     u.Interests,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
	setOptString(props, "first_name", u.FirstName)
	setOptString(props, "last_name", u.LastName)
	setOptString(props, "bio", u.Bio)
	setOptString(props, "location", u.Location)
	setOptString(props, "website", u.Website)
	setOptString(props, "phone_number", u.PhoneNumber)
	setOptString(props, "profile_picture_url", u.ProfilePictureURL)
	setOptString(props, "cover_photo_url", u.CoverPhotoURL)
	if u.LastLogin != nil {
		props["last_login"] = *u.LastLogin
	}
	return props
}

// mapConstraintError turns a uniqueness violation into the right sentinel.
func mapConstraintError(err error, fields map[string]error) error {
	var neoErr *neo4j.Neo4jError
	if !errors.As(err, &neoErr) {
		return err
	}
	if !strings.Contains(neoErr.Code, "ConstraintValidationFailed") {
		return err
	}
	for field, sentinel := range fields {
		if strings.Contains(neoErr.Msg, field) {
			return sentinel
		}
	}
	return err
}

// Create inserts the user node. Uniqueness clashes on username or email
// surface as the matching sentinel error.
func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		CREATE (u:User {uid: $uid})
		SET u += $props,
		    u.followers_count = 0,
		    u.following_count = 0,
		    u.posts_count = 0
		RETURN u.uid`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"uid":   u.UID,
		"props": userProps(u),
	})
	if err == nil {
		// Constraint violations surface on consumption, not on Run.
		_, err = result.Consume(ctx)
	}
	if err != nil {
		mapped := mapConstraintError(err, map[string]error{
			"email":    model.ErrEmailTaken,
			"username": model.ErrUsernameTaken,
		})
		if mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) getOne(ctx context.Context, query string, params map[string]interface{}) (*model.User, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, model.ErrUserNotFound
	}
	node, ok := getNodeFromRecord(record, "u")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for user")
	}
	return userFromProps(node.Props), nil
}

func (r *userRepository) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	return r.getOne(ctx, `MATCH (u:User {uid: $uid}) RETURN u`, map[string]interface{}{"uid": uid})
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `MATCH (u:User {username: $username}) RETURN u`, map[string]interface{}{"username": username})
}

func (r *userRepository) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error) {
	query := `
		MATCH (u:User)
		WHERE u.username = $value OR u.email = $value
		RETURN u
		LIMIT 1`
	return r.getOne(ctx, query, map[string]interface{}{"value": usernameOrEmail})
}

func (r *userRepository) exists(ctx context.Context, query string, params map[string]interface{}) (bool, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return false, err
	}
	return record != nil && getBoolFromRecord(record, "found"), nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx,
		`MATCH (u:User {username: $username}) RETURN count(u) > 0 AS found`,
		map[string]interface{}{"username": username})
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx,
		`MATCH (u:User {email: $email}) RETURN count(u) > 0 AS found`,
		map[string]interface{}{"email": email})
}

// Update saves the full mutable property set of the node. The service
// merges request fields into the loaded user before calling this.
func (r *userRepository) Update(ctx context.Context, u *model.User) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	u.UpdatedAt = time.Now().UTC()
	query := `
		MATCH (u:User {uid: $uid})
		SET u += $props
		RETURN u.uid`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"uid":   u.UID,
		"props": userProps(u),
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record == nil {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) setProps(ctx context.Context, uid string, props map[string]interface{}) error {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (u:User {uid: $uid})
		SET u += $props
		RETURN u.uid`

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid, "props": props})
	if err != nil {
		return fmt.Errorf("failed to set user properties: %w", err)
	}
	record, err := singleRecord(ctx, result)
	if err != nil {
		return err
	}
	if record == nil {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, uid, passwordHash string) error {
	return r.setProps(ctx, uid, map[string]interface{}{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	})
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, uid string) error {
	return r.setProps(ctx, uid, map[string]interface{}{"last_login": time.Now().UTC()})
}

func (r *userRepository) SetActive(ctx context.Context, uid string, active bool) error {
	return r.setProps(ctx, uid, map[string]interface{}{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	})
}

// Follow merges the FOLLOWS edge and re-counts both sides in the same
// transaction. Reports whether the edge is new.
func (r *userRepository) Follow(ctx context.Context, followerUID, followeeUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		created, err := connectTx(ctx, tx, EdgeFollows, followerUID, followeeUID)
		if err != nil {
			return false, err
		}
		if created {
			if err := recomputeUserCountersTx(ctx, tx, followerUID); err != nil {
				return false, err
			}
			if err := recomputeUserCountersTx(ctx, tx, followeeUID); err != nil {
				return false, err
			}
		}
		return created, nil
	})
	if err != nil {
		return false, err
	}
	return created.(bool), nil
}

func (r *userRepository) Unfollow(ctx context.Context, followerUID, followeeUID string) (bool, error) {
	session := writeSession(ctx, r.driver)
	defer session.Close(ctx)

	removed, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		removed, err := disconnectTx(ctx, tx, EdgeFollows, followerUID, followeeUID)
		if err != nil {
			return false, err
		}
		if removed {
			if err := recomputeUserCountersTx(ctx, tx, followerUID); err != nil {
				return false, err
			}
			if err := recomputeUserCountersTx(ctx, tx, followeeUID); err != nil {
				return false, err
			}
		}
		return removed, nil
	})
	if err != nil {
		return false, err
	}
	return removed.(bool), nil
}

func (r *userRepository) IsFollowing(ctx context.Context, followerUID, followeeUID string) (bool, error) {
	return NewEdges(r.driver).Connected(ctx, EdgeFollows, followerUID, followeeUID)
}

func (r *userRepository) CheckFollows(ctx context.Context, viewerUID string, uids []string) (map[string]bool, error) {
	follows := make(map[string]bool, len(uids))
	for _, uid := range uids {
		follows[uid] = false
	}
	if viewerUID == "" || len(uids) == 0 {
		return follows, nil
	}

	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (:User {uid: $viewer})-[:FOLLOWS]->(u:User)
		WHERE u.uid IN $uids
		RETURN u.uid AS uid`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"viewer": viewerUID,
		"uids":   uids,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check follows: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		follows[getStringFromRecord(record, "uid")] = true
	}
	return follows, nil
}

func (r *userRepository) listPublic(ctx context.Context, query string, params map[string]interface{}) ([]model.UserPublic, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
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

// Followers and Following order by username: FOLLOWS edges carry no
// ordering the API exposes, so make pagination deterministic.
func (r *userRepository) Followers(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error) {
	query := `
		MATCH (:User {uid: $uid})<-[:FOLLOWS]-(u:User)
		RETURN u
		ORDER BY u.username, u.uid
		SKIP $skip LIMIT $limit`
	return r.listPublic(ctx, query, map[string]interface{}{"uid": uid, "skip": skip, "limit": limit})
}

func (r *userRepository) Following(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error) {
	query := `
		MATCH (:User {uid: $uid})-[:FOLLOWS]->(u:User)
		RETURN u
		ORDER BY u.username, u.uid
		SKIP $skip LIMIT $limit`
	return r.listPublic(ctx, query, map[string]interface{}{"uid": uid, "skip": skip, "limit": limit})
}

func (r *userRepository) FollowerUIDs(ctx context.Context, uid string) ([]string, error) {
	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		MATCH (:User {uid: $uid})<-[:FOLLOWS]-(f:User)
		RETURN f.uid AS uid`

	result, err := session.Run(ctx, query, map[string]interface{}{"uid": uid})
	if err != nil {
		return nil, fmt.Errorf("failed to list follower uids: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	uids := make([]string, 0, len(records))
	for _, record := range records {
		uids = append(uids, getStringFromRecord(record, "uid"))
	}
	return uids, nil
}

// Suggestions walks two FOLLOWS hops out and ranks candidates by how
// many of the caller's follows lead to them.
func (r *userRepository) Suggestions(ctx context.Context, uid string, skip, limit int) ([]model.UserPublic, error) {
	query := `
		MATCH (me:User {uid: $uid})-[:FOLLOWS]->(followed:User)-[:FOLLOWS]->(u:User)
		WHERE u.uid <> $uid
		  AND u.is_active = true
		  AND NOT (me)-[:FOLLOWS]->(u)
		WITH u, count(DISTINCT followed) AS mutual
		ORDER BY mutual DESC, u.uid
		SKIP $skip LIMIT $limit
		RETURN u`
	return r.listPublic(ctx, query, map[string]interface{}{"uid": uid, "skip": skip, "limit": limit})
}

func (r *userRepository) Search(ctx context.Context, query string, skip, limit int) ([]model.UserPublic, error) {
	cypher := `
		MATCH (u:User)
		WHERE u.is_active = true
		  AND (toLower(u.username) CONTAINS toLower($q)
		    OR toLower(coalesce(u.first_name, '')) CONTAINS toLower($q)
		    OR toLower(coalesce(u.last_name, '')) CONTAINS toLower($q))
		RETURN u
		ORDER BY u.followers_count DESC, u.uid
		SKIP $skip LIMIT $limit`
	return r.listPublic(ctx, cypher, map[string]interface{}{"q": query, "skip": skip, "limit": limit})
}

func (r *userRepository) ResolveUsernames(ctx context.Context, usernames []string) (map[string]string, error) {
	if len(usernames) == 0 {
		return map[string]string{}, nil
	}

	session := readSession(ctx, r.driver)
	defer session.Close(ctx)

	query := `
		UNWIND $names AS name
		MATCH (u:User {username: name})
		RETURN u.username AS username, u.uid AS uid`

	result, err := session.Run(ctx, query, map[string]interface{}{"names": usernames})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}
	records, err := collectRecords(ctx, result)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]string, len(records))
	for _, record := range records {
		resolved[getStringFromRecord(record, "username")] = getStringFromRecord(record, "uid")
	}
	return resolved, nil
}
