// Package badger implements simpledrive.Repository on an embedded BadgerDB
// key-value store, for single-node deployments without Postgres.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/tendant/simple-drive/pkg/simpledrive"
)

// Key layout:
//
//	i:<item id>      -> JSON encoded item
//	l:<link token>   -> item id
const (
	itemPrefix = "i:"
	linkPrefix = "l:"
)

// Config options for the Badger repository
type Config struct {
	// Dir is the database directory; ignored when InMemory is set
	Dir      string
	InMemory bool
}

// Repository implements simpledrive.Repository using BadgerDB
type Repository struct {
	db *badger.DB
}

// Open opens (or creates) the database
func Open(config Config) (*Repository, error) {
	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.Dir == "" {
			return nil, errors.New("badger directory is required")
		}
		opts = badger.DefaultOptions(config.Dir)
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.Dir, err)
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

func itemKey(id uuid.UUID) []byte {
	return []byte(itemPrefix + id.String())
}

func linkKey(token string) []byte {
	return []byte(linkPrefix + token)
}

func (r *Repository) CreateItem(ctx context.Context, item *simpledrive.Item) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(itemKey(item.ID)); err == nil {
			return fmt.Errorf("item %s already exists", item.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return putItem(txn, nil, item)
	})
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*simpledrive.Item, error) {
	var item *simpledrive.Item
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = getItem(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *simpledrive.Item) error {
	return r.db.Update(func(txn *badger.Txn) error {
		old, err := getItem(txn, item.ID)
		if err != nil {
			return err
		}
		return putItem(txn, old, item)
	})
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		old, err := getItem(txn, id)
		if err != nil {
			return err
		}
		if old.SharedLink != nil {
			if err := txn.Delete(linkKey(*old.SharedLink)); err != nil {
				return err
			}
		}
		return txn.Delete(itemKey(id))
	})
}

func (r *Repository) GetItemBySharedLink(ctx context.Context, token string) (*simpledrive.Item, error) {
	var item *simpledrive.Item
	err := r.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(linkKey(token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("shared link: %w", simpledrive.ErrNotFound)
		} else if err != nil {
			return err
		}
		var id uuid.UUID
		if err := entry.Value(func(val []byte) error {
			id, err = uuid.FromBytes(val)
			return err
		}); err != nil {
			return err
		}
		item, err = getItem(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems scans every item; filtering and ordering happen in memory
func (r *Repository) ListItems(ctx context.Context, query simpledrive.ItemQuery) ([]*simpledrive.Item, int, error) {
	var matches []*simpledrive.Item
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(itemPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var item simpledrive.Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if query.Matches(&item) {
				matches = append(matches, &item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	query.SortItems(matches)
	return query.Page(matches), len(matches), nil
}

func getItem(txn *badger.Txn, id uuid.UUID) (*simpledrive.Item, error) {
	entry, err := txn.Get(itemKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("item %s: %w", id, simpledrive.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	var item simpledrive.Item
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &item)
	}); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", id, err)
	}
	return &item, nil
}

// putItem writes item and moves its shared link index entry from old
func putItem(txn *badger.Txn, old, item *simpledrive.Item) error {
	if item.SharedLink != nil {
		entry, err := txn.Get(linkKey(*item.SharedLink))
		switch {
		case err == nil:
			var holder uuid.UUID
			if err := entry.Value(func(val []byte) error {
				holder, err = uuid.FromBytes(val)
				return err
			}); err != nil {
				return err
			}
			if holder != item.ID {
				return simpledrive.ErrSharedLinkInUse
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
	}

	if old != nil && old.SharedLink != nil && (item.SharedLink == nil || *old.SharedLink != *item.SharedLink) {
		if err := txn.Delete(linkKey(*old.SharedLink)); err != nil {
			return err
		}
	}
	if item.SharedLink != nil {
		if err := txn.Set(linkKey(*item.SharedLink), item.ID[:]); err != nil {
			return err
		}
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", item.ID, err)
	}
	return txn.Set(itemKey(item.ID), data)
}

var _ simpledrive.Repository = (*Repository)(nil)
