package simpledrive

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// GetItem returns the item with the caller's permission, ownership, full
// path and, for files, a fresh signed URL
func (s *service) GetItem(ctx context.Context, itemID, actor uuid.UUID) (*ItemView, error) {
	item, err := s.repository.GetItem(ctx, itemID)
	if err != nil {
		return nil, &ItemError{ItemID: itemID, Op: "get", Err: err}
	}

	permission := Resolve(item, actor)
	if permission == PermissionNone {
		return nil, &ItemError{ItemID: itemID, Op: "get", Err: ErrAccessDenied}
	}

	view, err := s.present(ctx, item)
	if err != nil {
		return nil, err
	}
	view.UserPermission = permission
	view.IsOwner = item.Owner == actor
	view.FullPath = s.fullPath(ctx, item)
	return view, nil
}

// ListItems returns one page of the items visible to req.Actor
func (s *service) ListItems(ctx context.Context, req ListItemsRequest) (*ItemPage, error) {
	query, page, err := buildQuery(req)
	if err != nil {
		return nil, err
	}

	items, total, err := s.repository.ListItems(ctx, query)
	if err != nil {
		return nil, err
	}

	views := make([]*ItemView, 0, len(items))
	for _, item := range items {
		view, err := s.present(ctx, item)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	return &ItemPage{
		Items:      views,
		Page:       page,
		PageSize:   query.Limit,
		TotalPages: (total + query.Limit - 1) / query.Limit,
		TotalItems: total,
	}, nil
}

// buildQuery validates a listing request and applies defaults
func buildQuery(req ListItemsRequest) (ItemQuery, int, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	if page-1 > math.MaxInt/size {
		return ItemQuery{}, 0, validationError("page %d is out of range", req.Page)
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = SortByName
	}
	if !ValidSortField(sortBy) {
		return ItemQuery{}, 0, validationError("cannot sort by %q", sortBy)
	}
	order := req.SortOrder
	if order == "" {
		order = SortAsc
	}
	if order != SortAsc && order != SortDesc {
		return ItemQuery{}, 0, validationError("invalid sort order %q", string(order))
	}
	if req.Type != "" && !req.Type.IsValid() {
		return ItemQuery{}, 0, validationError("invalid item type %q", string(req.Type))
	}
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return ItemQuery{}, 0, validationError("startDate is after endDate")
	}

	return ItemQuery{
		VisibleTo:      req.Actor,
		ParentFolderID: req.ParentFolderID,
		Search:         req.Search,
		CreatedFrom:    req.StartDate,
		CreatedTo:      req.EndDate,
		Type:           req.Type,
		Owner:          req.Owner,
		SortBy:         sortBy,
		SortOrder:      order,
		Limit:          size,
		Offset:         (page - 1) * size,
	}, page, nil
}

// present copies item into a view, dropping an expired shared link and
// attaching a signed URL to files
func (s *service) present(ctx context.Context, item *Item) (*ItemView, error) {
	view := &ItemView{Item: *item.Clone()}
	if !view.SharedLinkValid(s.now()) {
		view.SharedLink = nil
		view.ExpirationDate = nil
	}
	if item.ContentRef != "" {
		url, err := s.pipeline.SignedURL(ctx, item.ContentRef, item.Name)
		if err != nil {
			return nil, &ItemError{ItemID: item.ID, Op: "sign", Err: err}
		}
		view.SignedURL = url
	}
	return view, nil
}
