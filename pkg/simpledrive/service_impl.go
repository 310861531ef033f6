package simpledrive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-drive/pkg/simpledrive/metrics"
	"github.com/tendant/simple-drive/pkg/simpledrive/objectkey"
	"golang.org/x/exp/slices"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStore      BlobStore
	backendName    string
	keys           objectkey.Generator
	thumbnailer    Thumbnailer
	extractor      MetadataExtractor
	storageTimeout time.Duration
	folders        FolderCache
	eventSink      EventSink
	logger         *slog.Logger
	now            func() time.Time

	pipeline *Pipeline
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend holding item content
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.blobStore = store
	}
}

// WithObjectKeyGenerator sets how blob keys are laid out
func WithObjectKeyGenerator(keys objectkey.Generator) Option {
	return func(s *service) {
		s.keys = keys
	}
}

// WithThumbnailer sets the image thumbnail renderer
func WithThumbnailer(t Thumbnailer) Option {
	return func(s *service) {
		s.thumbnailer = t
	}
}

// WithMetadataExtractor sets the embedded metadata extractor
func WithMetadataExtractor(e MetadataExtractor) Option {
	return func(s *service) {
		s.extractor = e
	}
}

// WithStorageTimeout bounds each blob store call
func WithStorageTimeout(d time.Duration) Option {
	return func(s *service) {
		s.storageTimeout = d
	}
}

// WithFolderCache sets the cache used to resolve full paths
func WithFolderCache(c FolderCache) Option {
	return func(s *service) {
		s.folders = c
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink: NewNoopEventSink(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	s.pipeline = NewPipeline(PipelineConfig{
		Backend:        s.backendName,
		Store:          s.blobStore,
		Keys:           s.keys,
		Thumbnailer:    s.thumbnailer,
		Extractor:      s.extractor,
		StorageTimeout: s.storageTimeout,
		Logger:         s.logger,
		Now:            s.now,
	})

	return s, nil
}

// Hierarchy operations

// CreateItem creates a folder, or a file when req.Content is set.
// The write check on the parent is not atomic with the insert of the child.
func (s *service) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	itemType := ItemTypeFolder
	name := req.Name
	if req.Content != nil {
		itemType = ItemTypeFile
		if req.Content.FileName == "" {
			return nil, validationError("uploaded file name is required")
		}
		if name == "" {
			name = req.Content.FileName
		}
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	if req.ParentFolderID != nil {
		if _, err := s.checkParent(ctx, *req.ParentFolderID, req.Actor, "create"); err != nil {
			return nil, err
		}
	}

	now := s.now()
	item := &Item{
		ID:                  uuid.New(),
		Name:                name,
		OriginalName:        name,
		Type:                itemType,
		Description:         req.Description,
		CompressionType:     req.CompressionType,
		IsEncrypted:         req.IsEncrypted,
		ParentFolderID:      clonePtr(req.ParentFolderID),
		OriginalLocation:    req.OriginalLocation,
		OriginatingDeviceID: req.OriginatingDeviceID,
		InternalTags:        []string{},
		UserTags:            normalizeTags(req.UserTags),
		CreatedOn:           now,
		LastModifiedOn:      now,
		LastModifiedBy:      req.Actor,
		Owner:               req.Actor,
		Version:             1,
		IsHidden:            req.IsHidden,
		CustomProperties:    req.CustomProperties,
		Access:              []AccessEntry{},
	}
	if item.CustomProperties == nil {
		item.CustomProperties = map[string]any{}
	}

	var content *ContentResult
	if itemType == ItemTypeFile {
		var err error
		content, err = s.pipeline.Process(ctx, req.Content)
		if err != nil {
			return nil, &ItemError{ItemID: item.ID, Op: "create", Err: err}
		}
		applyContent(item, content)
	}

	if err := item.validate(); err != nil {
		s.pipeline.Discard(ctx, content)
		return nil, err
	}

	if err := s.repository.CreateItem(ctx, item); err != nil {
		s.pipeline.Discard(ctx, content)
		return nil, &ItemError{ItemID: item.ID, Op: "create", Err: err}
	}

	s.logger.InfoContext(ctx, "Item created", "item_id", item.ID, "type", item.Type, "owner", item.Owner)
	if err := s.eventSink.ItemCreated(ctx, item); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish item created event", "item_id", item.ID, "error", err)
	}

	return item, nil
}

// UpdateItem applies the allow-listed patch and optional replacement content.
// Old blobs are removed only after the item referencing the new ones is stored.
func (s *service) UpdateItem(ctx context.Context, req UpdateItemRequest) (*Item, error) {
	item, err := s.authorize(ctx, req.ItemID, req.Actor, PermissionWrite, "update")
	if err != nil {
		return nil, err
	}
	if err := s.validatePatch(ctx, item, req); err != nil {
		return nil, err
	}

	var content *ContentResult
	if req.Content != nil {
		content, err = s.pipeline.Process(ctx, req.Content)
		if err != nil {
			return nil, &ItemError{ItemID: item.ID, Op: "update", Err: err}
		}
	}

	var replaced []string
	updated, err := s.persist(ctx, req.ItemID, req.Actor, "update", true, func(fresh *Item) error {
		applyPatch(fresh, req.Patch)
		if content != nil {
			replaced = blobRefs(fresh)
			applyContent(fresh, content)
		}
		return nil
	})
	if err != nil {
		s.pipeline.Discard(ctx, content)
		return nil, err
	}

	for _, ref := range replaced {
		if err := s.pipeline.DeleteBlob(ctx, ref); err != nil {
			metrics.BlobCleanupFailures.Inc()
			s.logger.ErrorContext(ctx, "Failed to delete replaced blob", "item_id", updated.ID, "key", ref, "error", err)
		}
	}

	return updated, nil
}

// ArchiveItem marks the item archived
func (s *service) ArchiveItem(ctx context.Context, itemID, actor uuid.UUID) (*Item, error) {
	return s.setArchived(ctx, itemID, actor, true)
}

// RestoreItem clears the archived flag
func (s *service) RestoreItem(ctx context.Context, itemID, actor uuid.UUID) (*Item, error) {
	return s.setArchived(ctx, itemID, actor, false)
}

func (s *service) setArchived(ctx context.Context, itemID, actor uuid.UUID, archived bool) (*Item, error) {
	op := "restore"
	if archived {
		op = "archive"
	}
	if _, err := s.authorize(ctx, itemID, actor, PermissionWrite, op); err != nil {
		return nil, err
	}
	return s.persist(ctx, itemID, actor, op, true, func(fresh *Item) error {
		fresh.IsArchived = archived
		return nil
	})
}

// DeleteItem removes the item record and then its blobs. Blob failures do
// not undo the deletion; they are returned in the report.
// Children of a deleted folder are left in place.
func (s *service) DeleteItem(ctx context.Context, itemID, actor uuid.UUID) (*DeleteReport, error) {
	item, err := s.authorize(ctx, itemID, actor, PermissionAdmin, "delete")
	if err != nil {
		return nil, err
	}

	if err := s.repository.DeleteItem(ctx, itemID); err != nil {
		return nil, &ItemError{ItemID: itemID, Op: "delete", Err: err}
	}
	s.forgetFolder(itemID)

	report := &DeleteReport{ItemID: itemID}
	for _, ref := range blobRefs(item) {
		if err := s.pipeline.DeleteBlob(ctx, ref); err != nil {
			metrics.BlobCleanupFailures.Inc()
			s.logger.ErrorContext(ctx, "Failed to delete blob", "item_id", itemID, "key", ref, "error", err)
			report.BlobErrors = append(report.BlobErrors, err)
		}
	}

	s.logger.InfoContext(ctx, "Item deleted", "item_id", itemID, "blob_errors", len(report.BlobErrors))
	if err := s.eventSink.ItemDeleted(ctx, itemID); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish item deleted event", "item_id", itemID, "error", err)
	}

	return report, nil
}

// UpdateAccess upserts the access entry of req.User
func (s *service) UpdateAccess(ctx context.Context, req UpdateAccessRequest) (*Item, error) {
	if _, err := s.authorize(ctx, req.ItemID, req.Actor, PermissionAdmin, "update_access"); err != nil {
		return nil, err
	}
	if req.User == uuid.Nil {
		return nil, validationError("target user is required")
	}
	if !req.Permission.IsValid() {
		return nil, validationError("invalid permission %q", string(req.Permission))
	}

	return s.persist(ctx, req.ItemID, req.Actor, "update_access", true, func(fresh *Item) error {
		fresh.Access = upsertAccess(fresh.Access, req.User, req.Permission)
		return nil
	})
}

// TouchAccessTime records a read without bumping the version
func (s *service) TouchAccessTime(ctx context.Context, itemID, actor uuid.UUID) (*Item, error) {
	if _, err := s.authorize(ctx, itemID, actor, PermissionRead, "touch"); err != nil {
		return nil, err
	}
	return s.persist(ctx, itemID, actor, "touch", false, func(fresh *Item) error {
		now := s.now()
		fresh.LastAccessedOn = &now
		return nil
	})
}

// FullPath joins the names from the root down to the item with "/".
// The walk stops at a missing parent or an already visited folder.
func (s *service) FullPath(ctx context.Context, itemID uuid.UUID) (string, error) {
	item, err := s.repository.GetItem(ctx, itemID)
	if err != nil {
		return "", &ItemError{ItemID: itemID, Op: "full_path", Err: err}
	}
	return s.fullPath(ctx, item), nil
}

func (s *service) fullPath(ctx context.Context, item *Item) string {
	names := []string{item.Name}
	seen := map[uuid.UUID]bool{item.ID: true}
	for parentID := item.ParentFolderID; parentID != nil; {
		if seen[*parentID] {
			s.logger.WarnContext(ctx, "Cycle detected while resolving path", "item_id", item.ID, "parent_id", *parentID)
			break
		}
		seen[*parentID] = true
		parent, ok := s.folder(ctx, *parentID)
		if !ok {
			break
		}
		names = append(names, parent.Name)
		parentID = parent.ParentFolderID
	}
	slices.Reverse(names)
	return strings.Join(names, "/")
}

// folder reads a folder through the cache
func (s *service) folder(ctx context.Context, id uuid.UUID) (*Item, bool) {
	if s.folders != nil {
		if f, ok := s.folders.Get(id); ok {
			return f, true
		}
	}
	f, err := s.repository.GetItem(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to load parent folder", "folder_id", id, "error", err)
		}
		return nil, false
	}
	if s.folders != nil {
		s.folders.Add(f)
	}
	return f, true
}

func (s *service) forgetFolder(id uuid.UUID) {
	if s.folders != nil {
		s.folders.Remove(id)
	}
}

// authorize loads the item and checks the actor holds required on it
func (s *service) authorize(ctx context.Context, itemID, actor uuid.UUID, required Permission, op string) (*Item, error) {
	item, err := s.repository.GetItem(ctx, itemID)
	if err != nil {
		return nil, &ItemError{ItemID: itemID, Op: op, Err: err}
	}
	if !HasAtLeast(item, actor, required) {
		return nil, &ItemError{ItemID: itemID, Op: op, Err: ErrAccessDenied}
	}
	return item, nil
}

// checkParent verifies parentID is a folder the actor can write into
func (s *service) checkParent(ctx context.Context, parentID, actor uuid.UUID, op string) (*Item, error) {
	parent, err := s.repository.GetItem(ctx, parentID)
	if err != nil {
		return nil, &ItemError{ItemID: parentID, Op: op, Err: err}
	}
	if !HasAtLeast(parent, actor, PermissionWrite) {
		return nil, &ItemError{ItemID: parentID, Op: op, Err: ErrAccessDenied}
	}
	if !parent.IsFolder() {
		return nil, validationError("parent %s is not a folder", parentID)
	}
	return parent, nil
}

// checkNoCycle fails when newParent is item itself or one of its descendants
func (s *service) checkNoCycle(ctx context.Context, item *Item, newParent *Item) error {
	seen := map[uuid.UUID]bool{}
	for cur := newParent; cur != nil; {
		if cur.ID == item.ID {
			return validationError("cannot move %s into its own subtree", item.ID)
		}
		if cur.ParentFolderID == nil || seen[cur.ID] {
			return nil
		}
		seen[cur.ID] = true
		next, err := s.repository.GetItem(ctx, *cur.ParentFolderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return &ItemError{ItemID: *cur.ParentFolderID, Op: "update", Err: err}
		}
		cur = next
	}
	return nil
}

func (s *service) validatePatch(ctx context.Context, item *Item, req UpdateItemRequest) error {
	p := req.Patch
	if p.IsEmpty() && req.Content == nil {
		return validationError("update changes nothing")
	}
	if p.SharedLink != nil && *p.SharedLink != "" {
		return validationError("sharedLink can only be cleared; issue links with CreateSharedLink")
	}
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if req.Content != nil {
		if item.IsFolder() {
			return validationError("folders cannot carry content")
		}
		if req.Content.FileName == "" {
			return validationError("uploaded file name is required")
		}
	}
	if p.Parent != nil && p.Parent.FolderID != nil {
		if *p.Parent.FolderID == item.ID {
			return validationError("item cannot be its own parent")
		}
		parent, err := s.checkParent(ctx, *p.Parent.FolderID, req.Actor, "update")
		if err != nil {
			return err
		}
		if item.IsFolder() {
			if err := s.checkNoCycle(ctx, item, parent); err != nil {
				return err
			}
		}
	}
	return nil
}

// persist re-reads the item, applies fn to the fresh state and stores it.
// Versioned mutations bump version and the modification stamp.
func (s *service) persist(ctx context.Context, itemID, actor uuid.UUID, op string, versioned bool, fn func(fresh *Item) error) (*Item, error) {
	fresh, err := s.repository.GetItem(ctx, itemID)
	if err != nil {
		return nil, &ItemError{ItemID: itemID, Op: op, Err: err}
	}
	if err := fn(fresh); err != nil {
		return nil, &ItemError{ItemID: itemID, Op: op, Err: err}
	}
	if versioned {
		fresh.Version++
		fresh.LastModifiedOn = s.now()
		fresh.LastModifiedBy = actor
	}
	if err := fresh.validate(); err != nil {
		return nil, &ItemError{ItemID: itemID, Op: op, Err: err}
	}
	if err := s.repository.UpdateItem(ctx, fresh); err != nil {
		return nil, &ItemError{ItemID: itemID, Op: op, Err: err}
	}
	s.forgetFolder(itemID)

	if err := s.eventSink.ItemUpdated(ctx, fresh); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish item updated event", "item_id", itemID, "error", err)
	}
	return fresh, nil
}

func applyPatch(item *Item, p ItemPatch) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.IsArchived != nil {
		item.IsArchived = *p.IsArchived
	}
	if p.IsHidden != nil {
		item.IsHidden = *p.IsHidden
	}
	if p.CustomProperties != nil {
		item.CustomProperties = p.CustomProperties
	}
	if p.UserTags != nil {
		item.UserTags = normalizeTags(p.UserTags)
	}
	if p.Parent != nil {
		item.ParentFolderID = clonePtr(p.Parent.FolderID)
	}
	if p.IsEncrypted != nil {
		item.IsEncrypted = *p.IsEncrypted
	}
	if p.CompressionType != nil {
		item.CompressionType = *p.CompressionType
	}
	if p.SharedLink != nil {
		if *p.SharedLink == "" {
			item.SharedLink = nil
			item.ExpirationDate = nil
		} else {
			item.SharedLink = clonePtr(p.SharedLink)
		}
	}
}

func applyContent(item *Item, c *ContentResult) {
	item.ContentRef = c.ContentRef
	item.ThumbnailRef = c.ThumbnailRef
	item.OriginalName = c.OriginalName
	item.Extension = c.Extension
	item.MimeType = c.MimeType
	item.Size = c.Size
	item.Metadata = c.Metadata
	item.ChecksumHash = c.ChecksumHash
	item.InternalTags = c.InternalTags
	item.FileCreatedOn = &c.FileCreatedOn
	item.FileModifiedOn = &c.FileModifiedOn
}

// blobRefs returns the blob keys an item references
func blobRefs(item *Item) []string {
	var refs []string
	if item.ContentRef != "" {
		refs = append(refs, item.ContentRef)
	}
	if item.ThumbnailRef != "" {
		refs = append(refs, item.ThumbnailRef)
	}
	return refs
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return validationError("name is required")
	}
	if strings.Contains(name, "/") {
		return validationError("name %q must not contain '/'", name)
	}
	return nil
}

// normalizeTags trims tags and drops empty and duplicate entries
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
