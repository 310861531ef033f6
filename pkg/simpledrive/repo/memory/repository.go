package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-drive/pkg/simpledrive"
)

// Repository implements simpledrive.Repository using in-memory storage.
// Items are copied on the way in and out.
type Repository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*simpledrive.Item
	links map[string]uuid.UUID // shared link token -> item id
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		items: make(map[uuid.UUID]*simpledrive.Item),
		links: make(map[string]uuid.UUID),
	}
}

func (r *Repository) CreateItem(ctx context.Context, item *simpledrive.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return fmt.Errorf("item %s already exists", item.ID)
	}
	if err := r.checkLink(item); err != nil {
		return err
	}
	r.items[item.ID] = item.Clone()
	r.indexLink(nil, item)
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*simpledrive.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[id]
	if !exists {
		return nil, fmt.Errorf("item %s: %w", id, simpledrive.ErrNotFound)
	}
	return item.Clone(), nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *simpledrive.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.items[item.ID]
	if !exists {
		return fmt.Errorf("item %s: %w", item.ID, simpledrive.ErrNotFound)
	}
	if err := r.checkLink(item); err != nil {
		return err
	}
	r.items[item.ID] = item.Clone()
	r.indexLink(old, item)
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.items[id]
	if !exists {
		return fmt.Errorf("item %s: %w", id, simpledrive.ErrNotFound)
	}
	delete(r.items, id)
	r.indexLink(old, nil)
	return nil
}

func (r *Repository) GetItemBySharedLink(ctx context.Context, token string) (*simpledrive.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.links[token]
	if !ok {
		return nil, fmt.Errorf("shared link: %w", simpledrive.ErrNotFound)
	}
	return r.items[id].Clone(), nil
}

func (r *Repository) ListItems(ctx context.Context, query simpledrive.ItemQuery) ([]*simpledrive.Item, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*simpledrive.Item
	for _, item := range r.items {
		if query.Matches(item) {
			matches = append(matches, item)
		}
	}
	query.SortItems(matches)

	page := query.Page(matches)
	out := make([]*simpledrive.Item, 0, len(page))
	for _, item := range page {
		out = append(out, item.Clone())
	}
	return out, len(matches), nil
}

// checkLink rejects a token already held by another item
func (r *Repository) checkLink(item *simpledrive.Item) error {
	if item.SharedLink == nil {
		return nil
	}
	if owner, ok := r.links[*item.SharedLink]; ok && owner != item.ID {
		return simpledrive.ErrSharedLinkInUse
	}
	return nil
}

func (r *Repository) indexLink(old, updated *simpledrive.Item) {
	if old != nil && old.SharedLink != nil {
		delete(r.links, *old.SharedLink)
	}
	if updated != nil && updated.SharedLink != nil {
		r.links[*updated.SharedLink] = updated.ID
	}
}

var _ simpledrive.Repository = (*Repository)(nil)
