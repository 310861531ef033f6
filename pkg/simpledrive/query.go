package simpledrive

import (
	"cmp"
	"sort"
	"strings"
	"time"
)

// Matches reports whether item satisfies every filter of q, including the
// visibility filter. Repositories without a query language use it to filter
// in memory.
func (q ItemQuery) Matches(item *Item) bool {
	if !visibleTo(item, q.VisibleTo) {
		return false
	}
	if q.ParentFolderID == nil {
		if item.ParentFolderID != nil {
			return false
		}
	} else if item.ParentFolderID == nil || *item.ParentFolderID != *q.ParentFolderID {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(item.Name), needle) &&
			!strings.Contains(strings.ToLower(item.Description), needle) {
			return false
		}
	}
	if q.CreatedFrom != nil && item.CreatedOn.Before(*q.CreatedFrom) {
		return false
	}
	if q.CreatedTo != nil && item.CreatedOn.After(*q.CreatedTo) {
		return false
	}
	if q.Type != "" && item.Type != q.Type {
		return false
	}
	if q.Owner != nil && item.Owner != *q.Owner {
		return false
	}
	return true
}

// SortItems orders items by q.SortBy and q.SortOrder. Ties are broken by ID
// so pagination is stable.
func (q ItemQuery) SortItems(items []*Item) {
	desc := q.SortOrder == SortDesc
	sort.SliceStable(items, func(a, b int) bool {
		c := compareItems(items[a], items[b], q.SortBy)
		if c == 0 {
			return items[a].ID.String() < items[b].ID.String()
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// Page applies q.Offset and q.Limit to an already sorted slice
func (q ItemQuery) Page(items []*Item) []*Item {
	if q.Offset < 0 || q.Offset >= len(items) {
		return []*Item{}
	}
	end := len(items)
	if q.Limit > 0 && q.Limit < end-q.Offset {
		end = q.Offset + q.Limit
	}
	return items[q.Offset:end]
}

func compareItems(a, b *Item, field string) int {
	switch field {
	case SortByCreatedOn:
		return a.CreatedOn.Compare(b.CreatedOn)
	case SortByLastModifiedOn:
		return a.LastModifiedOn.Compare(b.LastModifiedOn)
	case SortByLastAccessedOn:
		return compareTimePtr(a.LastAccessedOn, b.LastAccessedOn)
	case SortBySize:
		return cmp.Compare(a.Size, b.Size)
	case SortByType:
		return cmp.Compare(a.Type, b.Type)
	case SortByVersion:
		return cmp.Compare(a.Version, b.Version)
	default:
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}

// never-accessed items sort first
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
