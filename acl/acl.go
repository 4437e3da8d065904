// Package acl computes effective collection permissions and exposes the
// membership/permission mutation operations from spec.md §4.8. It has no
// teacher precedent (the teacher is single-user, cookie-identified); it is
// built in the teacher's PostgresStore idiom — one exported method per
// operation, errors wrapped with context — applied to the new ACL tables.
package acl

import (
	"context"
	"fmt"

	"docrag/database"
)

// Effective is the boolean triple from spec.md §3's Permission entity.
type Effective struct {
	CanRead   bool
	CanWrite  bool
	CanDelete bool
}

func (e Effective) Allows(action string) bool {
	switch action {
	case "read":
		return e.CanRead
	case "write":
		return e.CanWrite
	case "delete":
		return e.CanDelete
	}
	return false
}

type Engine struct {
	store *database.PostgresStore
}

func New(store *database.PostgresStore) *Engine {
	return &Engine{store: store}
}

// Effective computes effective(user, collection) per spec.md §4.8's
// canonical query: OR over group memberships, plus creator-implicit and
// admin-implicit grants.
func (e *Engine) Effective(ctx context.Context, userID int64, collection database.Collection) (Effective, error) {
	if collection.CreatorUserID == userID {
		return Effective{true, true, true}, nil
	}

	isAdmin, err := e.store.IsAdmin(ctx, userID)
	if err != nil {
		return Effective{}, fmt.Errorf("check admin: %w", err)
	}
	if isAdmin {
		return Effective{true, true, true}, nil
	}

	groupIDs, err := e.store.UserGroupList(ctx, userID)
	if err != nil {
		return Effective{}, fmt.Errorf("list user groups: %w", err)
	}
	if len(groupIDs) == 0 {
		return Effective{}, nil
	}

	perms, err := e.store.PermissionsForGroups(ctx, groupIDs)
	if err != nil {
		return Effective{}, fmt.Errorf("load group permissions: %w", err)
	}

	var eff Effective
	for _, p := range perms {
		if p.CollectionID != collection.ID {
			continue
		}
		eff.CanRead = eff.CanRead || p.CanRead
		eff.CanWrite = eff.CanWrite || p.CanWrite
		eff.CanDelete = eff.CanDelete || p.CanDelete
	}
	return eff, nil
}

// Check is a convenience wrapper for a single (user, collection, action)
// question, used by the orchestrator before dispatching a mutating request.
func (e *Engine) Check(ctx context.Context, userID int64, collection database.Collection, action string) (bool, error) {
	eff, err := e.Effective(ctx, userID, collection)
	if err != nil {
		return false, err
	}
	return eff.Allows(action), nil
}

// AccessibleCollections lists every collection effective(user,*).can_read,
// used by list_collections_for_user (spec.md §4.3) and the
// /api/collections endpoint.
func (e *Engine) AccessibleCollections(ctx context.Context, userID int64) ([]database.Collection, error) {
	all, err := e.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	isAdmin, err := e.store.IsAdmin(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if isAdmin {
		return all, nil
	}

	groupIDs, err := e.store.UserGroupList(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	perms, err := e.store.PermissionsForGroups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("load group permissions: %w", err)
	}

	readable := make(map[int64]bool)
	for _, p := range perms {
		if p.CanRead {
			readable[p.CollectionID] = true
		}
	}

	var out []database.Collection
	for _, c := range all {
		if c.CreatorUserID == userID || readable[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// ReplacePermissions sets a collection's group permission rows atomically.
func (e *Engine) ReplacePermissions(ctx context.Context, collectionID int64, perms []database.Permission) error {
	return e.store.ReplacePermissions(ctx, collectionID, perms)
}

// AddMembership adds a user to a group.
func (e *Engine) AddMembership(ctx context.Context, userID int64, groupID string) error {
	return e.store.AssignGroup(ctx, userID, groupID)
}

// RemoveMembership removes a user from a group.
func (e *Engine) RemoveMembership(ctx context.Context, userID int64, groupID string) error {
	return e.store.RemoveGroup(ctx, userID, groupID)
}
