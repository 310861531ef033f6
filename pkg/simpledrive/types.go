package simpledrive

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// ItemType distinguishes files from folders
type ItemType string

const (
	ItemTypeFile   ItemType = "file"
	ItemTypeFolder ItemType = "folder"
)

// IsValid reports whether t is a known item type
func (t ItemType) IsValid() bool {
	return t == ItemTypeFile || t == ItemTypeFolder
}

// Permission is an access level granted on an item.
// The zero value, PermissionNone, grants nothing.
type Permission string

const (
	PermissionNone  Permission = ""
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

func (p Permission) rank() int {
	switch p {
	case PermissionRead:
		return 1
	case PermissionWrite:
		return 2
	case PermissionAdmin:
		return 3
	default:
		return 0
	}
}

// IsValid reports whether p is one of read, write or admin
func (p Permission) IsValid() bool {
	return p.rank() > 0
}

// Includes reports whether p grants at least required
func (p Permission) Includes(required Permission) bool {
	return p.rank() >= required.rank()
}

// ParsePermission converts a string to a grantable Permission
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.IsValid() {
		return PermissionNone, validationError("invalid permission %q", s)
	}
	return p, nil
}

// AccessEntry grants a permission on an item to a non-owner user
type AccessEntry struct {
	User       uuid.UUID  `json:"user"`
	Permission Permission `json:"permission"`
}

// Item is a file or folder in a user's drive
type Item struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	Type         ItemType  `json:"type"`
	Description  string    `json:"description,omitempty"`

	// File content fields; empty for folders
	ContentRef   string         `json:"contentRef,omitempty"`
	ThumbnailRef string         `json:"thumbnailRef,omitempty"`
	Extension    string         `json:"extension,omitempty"`
	MimeType     string         `json:"mimeType,omitempty"`
	Size         int64          `json:"size"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ChecksumHash string         `json:"checksumHash,omitempty"`

	CompressionType string `json:"compressionType,omitempty"`
	IsEncrypted     bool   `json:"isEncrypted"`

	ParentFolderID      *uuid.UUID `json:"parentFolderId"`
	OriginalLocation    string     `json:"originalLocation,omitempty"`
	OriginatingDeviceID string     `json:"originatingDeviceId,omitempty"`

	InternalTags []string `json:"internalTags"`
	UserTags     []string `json:"userTags"`

	CreatedOn      time.Time  `json:"createdOn"`
	LastModifiedOn time.Time  `json:"lastModifiedOn"`
	FileCreatedOn  *time.Time `json:"fileCreatedOn,omitempty"`
	FileModifiedOn *time.Time `json:"fileModifiedOn,omitempty"`
	LastAccessedOn *time.Time `json:"lastAccessedOn,omitempty"`
	LastModifiedBy uuid.UUID  `json:"lastModifiedBy"`

	Owner      uuid.UUID `json:"owner"`
	Version    int       `json:"version"`
	IsArchived bool      `json:"isArchived"`
	IsHidden   bool      `json:"isHidden"`

	CustomProperties map[string]any `json:"customProperties"`
	Access           []AccessEntry  `json:"access"`

	SharedLink     *string    `json:"sharedLink,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
}

// IsFolder reports whether the item is a folder
func (i *Item) IsFolder() bool {
	return i.Type == ItemTypeFolder
}

// SharedLinkValid reports whether the item has a shared link usable at now.
// A link without an expiration date never expires.
func (i *Item) SharedLinkValid(now time.Time) bool {
	if i.SharedLink == nil || *i.SharedLink == "" {
		return false
	}
	return i.ExpirationDate == nil || now.Before(*i.ExpirationDate)
}

// Clone returns a deep copy of the item. Values nested inside Metadata and
// CustomProperties are shared.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Metadata = maps.Clone(i.Metadata)
	c.CustomProperties = maps.Clone(i.CustomProperties)
	c.InternalTags = cloneStrings(i.InternalTags)
	c.UserTags = cloneStrings(i.UserTags)
	if i.Access != nil {
		c.Access = append([]AccessEntry{}, i.Access...)
	}
	c.ParentFolderID = clonePtr(i.ParentFolderID)
	c.FileCreatedOn = clonePtr(i.FileCreatedOn)
	c.FileModifiedOn = clonePtr(i.FileModifiedOn)
	c.LastAccessedOn = clonePtr(i.LastAccessedOn)
	c.SharedLink = clonePtr(i.SharedLink)
	c.ExpirationDate = clonePtr(i.ExpirationDate)
	return &c
}

// validate checks the structural invariants of an item before persistence
func (i *Item) validate() error {
	if i.Name == "" {
		return validationError("name is required")
	}
	if !i.Type.IsValid() {
		return validationError("invalid item type %q", i.Type)
	}
	if i.ParentFolderID != nil && *i.ParentFolderID == i.ID {
		return validationError("item cannot be its own parent")
	}
	for _, entry := range i.Access {
		if !entry.Permission.IsValid() {
			return validationError("invalid permission %q for user %s", entry.Permission, entry.User)
		}
	}
	switch i.Type {
	case ItemTypeFile:
		// Extension stays empty for names without one, e.g. README
		if i.ContentRef == "" || i.MimeType == "" || i.ChecksumHash == "" {
			return validationError("file item %s has incomplete content fields", i.ID)
		}
	case ItemTypeFolder:
		if i.ContentRef != "" || i.ThumbnailRef != "" || i.Extension != "" || i.MimeType != "" ||
			i.Size != 0 || i.ChecksumHash != "" {
			return validationError("folder item %s cannot carry content", i.ID)
		}
	}
	return nil
}

// ItemView is an item as presented to a caller, enriched with per-request
// fields. Expired shared links are stripped from the embedded item.
type ItemView struct {
	Item
	SignedURL      string     `json:"signedUrl,omitempty"`
	UserPermission Permission `json:"userPermission,omitempty"`
	IsOwner        bool       `json:"isOwner,omitempty"`
	FullPath       string     `json:"fullPath,omitempty"`
}

// ItemPage is one page of a listing
type ItemPage struct {
	Items      []*ItemView `json:"items"`
	Page       int         `json:"currentPage"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
	TotalItems int         `json:"totalItems"`
}

// DeleteReport describes the outcome of a hard delete. Metadata removal has
// succeeded whenever a report is returned; BlobErrors lists blob cleanup
// failures that left orphaned objects behind.
type DeleteReport struct {
	ItemID     uuid.UUID `json:"itemId"`
	BlobErrors []error   `json:"-"`
}

// Clean reports whether every blob was removed
func (r *DeleteReport) Clean() bool {
	return len(r.BlobErrors) == 0
}

// BlobErrorMessages returns the cleanup failures as strings
func (r *DeleteReport) BlobErrorMessages() []string {
	msgs := make([]string, 0, len(r.BlobErrors))
	for _, err := range r.BlobErrors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// SortOrder is the direction of a listing sort
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable item fields
const (
	SortByName           = "name"
	SortByCreatedOn      = "createdOn"
	SortByLastModifiedOn = "lastModifiedOn"
	SortByLastAccessedOn = "lastAccessedOn"
	SortBySize           = "size"
	SortByType           = "type"
	SortByVersion        = "version"
)

// ValidSortField reports whether field can be used to order a listing
func ValidSortField(field string) bool {
	switch field {
	case SortByName, SortByCreatedOn, SortByLastModifiedOn, SortByLastAccessedOn,
		SortBySize, SortByType, SortByVersion:
		return true
	}
	return false
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (t ItemType) String() string { return string(t) }

func (p Permission) String() string {
	if p == PermissionNone {
		return "none"
	}
	return string(p)
}
