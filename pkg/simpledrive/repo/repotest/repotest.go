// Package repotest holds the behavioural test suite shared by every
// simpledrive.Repository implementation.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive"
)

// NewItem returns a persisted-shape folder owned by owner
func NewItem(owner uuid.UUID, name string, parent *uuid.UUID) *simpledrive.Item {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &simpledrive.Item{
		ID:               uuid.New(),
		Name:             name,
		OriginalName:     name,
		Type:             simpledrive.ItemTypeFolder,
		ParentFolderID:   parent,
		InternalTags:     []string{},
		UserTags:         []string{},
		CreatedOn:        now,
		LastModifiedOn:   now,
		LastModifiedBy:   owner,
		Owner:            owner,
		Version:          1,
		CustomProperties: map[string]any{},
		Access:           []simpledrive.AccessEntry{},
	}
}

// NewFile returns a persisted-shape file owned by owner
func NewFile(owner uuid.UUID, name string, parent *uuid.UUID) *simpledrive.Item {
	item := NewItem(owner, name, parent)
	item.Type = simpledrive.ItemTypeFile
	item.ContentRef = uuid.NewString() + ".txt"
	item.Extension = ".txt"
	item.MimeType = "text/plain"
	item.Size = 12
	item.ChecksumHash = "abc"
	item.InternalTags = []string{"text/plain", "document"}
	item.Metadata = map[string]any{"k": "v"}
	fc := item.CreatedOn
	item.FileCreatedOn = &fc
	item.FileModifiedOn = &fc
	return item
}

// Run exercises repo through the full Repository contract. newRepo must
// return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) simpledrive.Repository) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := newRepo(t)
		owner := uuid.New()
		item := NewFile(owner, "report.txt", nil)
		item.UserTags = []string{"work"}
		item.CustomProperties = map[string]any{"color": "blue"}
		item.Access = []simpledrive.AccessEntry{{User: uuid.New(), Permission: simpledrive.PermissionRead}}

		require.NoError(t, repo.CreateItem(ctx, item))

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, "report.txt", got.Name)
		assert.Equal(t, simpledrive.ItemTypeFile, got.Type)
		assert.Equal(t, item.ContentRef, got.ContentRef)
		assert.Equal(t, owner, got.Owner)
		assert.Equal(t, 1, got.Version)
		assert.Equal(t, []string{"work"}, got.UserTags)
		assert.Equal(t, []string{"text/plain", "document"}, got.InternalTags)
		assert.Equal(t, "blue", got.CustomProperties["color"])
		assert.Equal(t, item.Access, got.Access)
		assert.Nil(t, got.ParentFolderID)
		assert.True(t, item.CreatedOn.Equal(got.CreatedOn))
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetItem(ctx, uuid.New())
		assert.ErrorIs(t, err, simpledrive.ErrNotFound)
	})

	t.Run("ReturnedItemsAreCopies", func(t *testing.T) {
		repo := newRepo(t)
		item := NewItem(uuid.New(), "docs", nil)
		require.NoError(t, repo.CreateItem(ctx, item))

		item.Name = "changed"
		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "docs", got.Name)

		got.Access = append(got.Access, simpledrive.AccessEntry{User: uuid.New(), Permission: simpledrive.PermissionAdmin})
		again, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Empty(t, again.Access)
	})

	t.Run("Update", func(t *testing.T) {
		repo := newRepo(t)
		item := NewItem(uuid.New(), "docs", nil)
		require.NoError(t, repo.CreateItem(ctx, item))

		item.Name = "documents"
		item.Version = 2
		item.IsArchived = true
		require.NoError(t, repo.UpdateItem(ctx, item))

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "documents", got.Name)
		assert.Equal(t, 2, got.Version)
		assert.True(t, got.IsArchived)

		missing := NewItem(uuid.New(), "ghost", nil)
		assert.ErrorIs(t, repo.UpdateItem(ctx, missing), simpledrive.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		item := NewItem(uuid.New(), "docs", nil)
		require.NoError(t, repo.CreateItem(ctx, item))

		require.NoError(t, repo.DeleteItem(ctx, item.ID))
		_, err := repo.GetItem(ctx, item.ID)
		assert.ErrorIs(t, err, simpledrive.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteItem(ctx, item.ID), simpledrive.ErrNotFound)
	})

	t.Run("SharedLinkLookup", func(t *testing.T) {
		repo := newRepo(t)
		item := NewItem(uuid.New(), "docs", nil)
		token := "tok-" + uuid.NewString()
		item.SharedLink = &token
		require.NoError(t, repo.CreateItem(ctx, item))

		got, err := repo.GetItemBySharedLink(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)

		next := "tok-" + uuid.NewString()
		item.SharedLink = &next
		require.NoError(t, repo.UpdateItem(ctx, item))

		_, err = repo.GetItemBySharedLink(ctx, token)
		assert.ErrorIs(t, err, simpledrive.ErrNotFound)
		got, err = repo.GetItemBySharedLink(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, item.ID, got.ID)

		taken := NewItem(uuid.New(), "taken", nil)
		taken.SharedLink = &next
		err = repo.CreateItem(ctx, taken)
		assert.ErrorIs(t, err, simpledrive.ErrSharedLinkInUse)
		assert.ErrorIs(t, err, simpledrive.ErrValidation)

		item.SharedLink = nil
		require.NoError(t, repo.UpdateItem(ctx, item))
		_, err = repo.GetItemBySharedLink(ctx, next)
		assert.ErrorIs(t, err, simpledrive.ErrNotFound)
	})

	t.Run("ListVisibility", func(t *testing.T) {
		repo := newRepo(t)
		u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

		own := NewItem(u1, "mine", nil)
		shared := NewItem(u2, "shared", nil)
		shared.Access = []simpledrive.AccessEntry{{User: u1, Permission: simpledrive.PermissionRead}}
		hidden := NewItem(u3, "theirs", nil)
		for _, it := range []*simpledrive.Item{own, shared, hidden} {
			require.NoError(t, repo.CreateItem(ctx, it))
		}

		items, total, err := repo.ListItems(ctx, simpledrive.ItemQuery{VisibleTo: u1, SortBy: simpledrive.SortByName, SortOrder: simpledrive.SortAsc, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"mine", "shared"}, names(items))
	})

	t.Run("ListFilters", func(t *testing.T) {
		repo := newRepo(t)
		owner, other := uuid.New(), uuid.New()

		root := NewItem(owner, "Projects", nil)
		require.NoError(t, repo.CreateItem(ctx, root))
		child := NewFile(owner, "Budget.xlsx", &root.ID)
		child.Description = "quarterly numbers"
		require.NoError(t, repo.CreateItem(ctx, child))
		sub := NewItem(owner, "Archive", &root.ID)
		require.NoError(t, repo.CreateItem(ctx, sub))
		foreign := NewFile(other, "notes.txt", &root.ID)
		foreign.Access = []simpledrive.AccessEntry{{User: owner, Permission: simpledrive.PermissionWrite}}
		require.NoError(t, repo.CreateItem(ctx, foreign))

		base := simpledrive.ItemQuery{VisibleTo: owner, SortBy: simpledrive.SortByName, SortOrder: simpledrive.SortAsc, Limit: 10}

		items, total, err := repo.ListItems(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, 1, total, "nil parent lists root only")
		assert.Equal(t, []string{"Projects"}, names(items))

		q := base
		q.ParentFolderID = &root.ID
		items, total, err = repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []string{"Archive", "Budget.xlsx", "notes.txt"}, names(items))

		q.Search = "QUARTER"
		items, _, err = repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"Budget.xlsx"}, names(items))

		q.Search = "bud"
		items, _, err = repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"Budget.xlsx"}, names(items))

		q.Search = ""
		q.Type = simpledrive.ItemTypeFolder
		items, _, err = repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"Archive"}, names(items))

		q.Type = ""
		q.Owner = &other
		items, _, err = repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"notes.txt"}, names(items))
	})

	t.Run("ListDateRangeInclusive", func(t *testing.T) {
		repo := newRepo(t)
		owner := uuid.New()
		base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			it := NewItem(owner, fmt.Sprintf("f%d", i), nil)
			it.CreatedOn = base.AddDate(0, 0, i)
			require.NoError(t, repo.CreateItem(ctx, it))
		}

		from, to := base.AddDate(0, 0, 1), base.AddDate(0, 0, 3)
		items, total, err := repo.ListItems(ctx, simpledrive.ItemQuery{
			VisibleTo: owner, CreatedFrom: &from, CreatedTo: &to,
			SortBy: simpledrive.SortByCreatedOn, SortOrder: simpledrive.SortAsc, Limit: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []string{"f1", "f2", "f3"}, names(items))
	})

	t.Run("ListSortAndPaginate", func(t *testing.T) {
		repo := newRepo(t)
		owner := uuid.New()
		for i, n := range []string{"charlie", "alpha", "echo", "bravo", "delta"} {
			it := NewFile(owner, n, nil)
			it.Size = int64(i)
			require.NoError(t, repo.CreateItem(ctx, it))
		}

		q := simpledrive.ItemQuery{VisibleTo: owner, SortBy: simpledrive.SortByName, SortOrder: simpledrive.SortDesc, Limit: 2, Offset: 2}
		items, total, err := repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Equal(t, []string{"charlie", "bravo"}, names(items))

		q = simpledrive.ItemQuery{VisibleTo: owner, SortBy: simpledrive.SortBySize, SortOrder: simpledrive.SortAsc, Limit: 3}
		items, _, err = repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"charlie", "alpha", "echo"}, names(items))

		q.Offset = 10
		items, total, err = repo.ListItems(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Empty(t, items)
	})
}

func names(items []*simpledrive.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}
