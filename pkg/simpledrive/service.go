package simpledrive

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-drive library
type Service interface {
	// Hierarchy operations
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*Item, error)
	ArchiveItem(ctx context.Context, itemID, actor uuid.UUID) (*Item, error)
	RestoreItem(ctx context.Context, itemID, actor uuid.UUID) (*Item, error)
	DeleteItem(ctx context.Context, itemID, actor uuid.UUID) (*DeleteReport, error)
	UpdateAccess(ctx context.Context, req UpdateAccessRequest) (*Item, error)
	TouchAccessTime(ctx context.Context, itemID, actor uuid.UUID) (*Item, error)
	FullPath(ctx context.Context, itemID uuid.UUID) (string, error)

	// Listing and retrieval
	GetItem(ctx context.Context, itemID, actor uuid.UUID) (*ItemView, error)
	ListItems(ctx context.Context, req ListItemsRequest) (*ItemPage, error)

	// Shared links
	CreateSharedLink(ctx context.Context, req CreateSharedLinkRequest) (*Item, error)
	RemoveSharedLink(ctx context.Context, itemID, actor uuid.UUID) (*Item, error)
	OpenSharedLink(ctx context.Context, token string) (*ItemView, error)
}
