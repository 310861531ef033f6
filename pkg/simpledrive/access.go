package simpledrive

import (
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Resolve returns the effective permission of user on item.
// The owner always holds admin; otherwise the user's access entry applies.
func Resolve(item *Item, user uuid.UUID) Permission {
	if item == nil {
		return PermissionNone
	}
	if item.Owner == user {
		return PermissionAdmin
	}
	idx := slices.IndexFunc(item.Access, func(e AccessEntry) bool { return e.User == user })
	if idx < 0 {
		return PermissionNone
	}
	return item.Access[idx].Permission
}

// HasAtLeast reports whether user's effective permission on item includes required
func HasAtLeast(item *Item, user uuid.UUID, required Permission) bool {
	return Resolve(item, user).Includes(required)
}

// upsertAccess sets user's entry to permission, keeping one entry per user
func upsertAccess(entries []AccessEntry, user uuid.UUID, permission Permission) []AccessEntry {
	idx := slices.IndexFunc(entries, func(e AccessEntry) bool { return e.User == user })
	if idx >= 0 {
		entries[idx].Permission = permission
		return entries
	}
	return append(entries, AccessEntry{User: user, Permission: permission})
}

// visibleTo reports whether the item appears in user's listings
func visibleTo(item *Item, user uuid.UUID) bool {
	return Resolve(item, user) != PermissionNone
}
