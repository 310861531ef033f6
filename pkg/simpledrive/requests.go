package simpledrive

import (
	"time"

	"github.com/google/uuid"
)

// Request/Response DTOs

// CreateItemRequest contains parameters for creating a file or folder.
// A request with Content creates a file; without it, a folder.
type CreateItemRequest struct {
	Actor          uuid.UUID
	ParentFolderID *uuid.UUID

	// Name defaults to the uploaded file name for files
	Name                string
	Description         string
	OriginalLocation    string
	OriginatingDeviceID string
	UserTags            []string
	CustomProperties    map[string]any
	IsHidden            bool
	IsEncrypted         bool
	CompressionType     string

	Content *Upload
}

// ParentChange moves an item. A nil FolderID moves it to the root.
type ParentChange struct {
	FolderID *uuid.UUID
}

// ItemPatch holds the allow-listed mutable attributes of an item. Nil fields
// are left unchanged.
type ItemPatch struct {
	Name             *string
	Description      *string
	IsArchived       *bool
	IsHidden         *bool
	CustomProperties map[string]any
	UserTags         []string
	Parent           *ParentChange
	IsEncrypted      *bool
	CompressionType  *string

	// SharedLink sets the link token directly; an empty string clears the
	// link and its expiration date
	SharedLink *string
}

// IsEmpty reports whether the patch changes nothing
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.IsArchived == nil && p.IsHidden == nil &&
		p.CustomProperties == nil && p.UserTags == nil && p.Parent == nil &&
		p.IsEncrypted == nil && p.CompressionType == nil && p.SharedLink == nil
}

// UpdateItemRequest contains parameters for updating an item
type UpdateItemRequest struct {
	ItemID uuid.UUID
	Actor  uuid.UUID
	Patch  ItemPatch

	// Content replaces the file content; only valid for files
	Content *Upload
}

// UpdateAccessRequest grants or changes a user's permission on an item
type UpdateAccessRequest struct {
	ItemID     uuid.UUID
	Actor      uuid.UUID
	User       uuid.UUID
	Permission Permission
}

// CreateSharedLinkRequest contains parameters for issuing a shared link
type CreateSharedLinkRequest struct {
	ItemID uuid.UUID
	Actor  uuid.UUID

	// ExpiresAt is optional; a link without it never expires
	ExpiresAt *time.Time
}

// ListItemsRequest contains parameters for listing items visible to Actor
type ListItemsRequest struct {
	Actor uuid.UUID

	// ParentFolderID nil lists root-level items
	ParentFolderID *uuid.UUID
	Search         string
	StartDate      *time.Time
	EndDate        *time.Time
	Type           ItemType
	Owner          *uuid.UUID

	Page      int
	PageSize  int
	SortBy    string
	SortOrder SortOrder
}

// Listing defaults
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
