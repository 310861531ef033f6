// Package api exposes the item service over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-drive/pkg/simpledrive"
	"github.com/tendant/simple-drive/pkg/simpledrive/metrics"
)

const (
	defaultMaxUploadBytes = 100 << 20
	multipartMemory       = 32 << 20
)

// DeleteResponse is the body of a successful DELETE /items/{id}. Blob
// cleanup failures do not fail the request.
type DeleteResponse struct {
	ID                uuid.UUID `json:"id"`
	Deleted           bool      `json:"deleted"`
	BlobCleanupErrors []string  `json:"blobCleanupErrors,omitempty"`
}

// ItemHandler handles HTTP requests for items
type ItemHandler struct {
	service        simpledrive.Service
	maxUploadBytes int64
}

// NewItemHandler creates a new item handler
func NewItemHandler(service simpledrive.Service) *ItemHandler {
	return &ItemHandler{
		service:        service,
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

// WithMaxUploadBytes limits request bodies carrying file content
func (h *ItemHandler) WithMaxUploadBytes(n int64) *ItemHandler {
	h.maxUploadBytes = n
	return h
}

// Register mounts the authenticated /items routes and the anonymous
// /shared routes on r
func Register(r chi.Router, h *ItemHandler, auth *jwtauth.JWTAuth) {
	r.Group(func(r chi.Router) {
		r.Use(metrics.Middleware)
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(auth))
			r.Use(jwtauth.Authenticator)
			r.Mount("/items", h.Routes())
		})
		r.Mount("/shared", h.SharedRoutes())
	})
}

// Routes returns the routes for items. Requests must carry a verified token.
func (h *ItemHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateItem)
	r.Get("/", h.ListItems)
	r.Get("/{id}", h.GetItem)
	r.Put("/{id}", h.UpdateItem)
	r.Delete("/{id}", h.DeleteItem)

	r.Get("/archive/{id}", h.ArchiveItem)
	r.Get("/restore/{id}", h.RestoreItem)
	r.Post("/access/{id}", h.UpdateAccess)
	r.Post("/shared_link/{id}", h.CreateSharedLink)
	r.Delete("/shared_link/{id}", h.RemoveSharedLink)
	r.Get("/accessed/{id}", h.TouchAccessTime)

	return r
}

// SharedRoutes returns the anonymous shared link routes
func (h *ItemHandler) SharedRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{token}", h.OpenSharedLink)
	return r
}

// requestIDs resolves the acting user and the {id} URL parameter
func requestIDs(w http.ResponseWriter, r *http.Request) (actor, itemID uuid.UUID, ok bool) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return uuid.Nil, uuid.Nil, false
	}
	itemID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "Invalid item ID")
		return uuid.Nil, uuid.Nil, false
	}
	return actor, itemID, true
}

// CreateItem creates a folder, or a file when the multipart body has a file part
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	var req simpledrive.CreateItemRequest
	switch {
	case isJSON(r):
		req, err = createRequestFromJSON(r.Body)
	case isMultipart(r):
		if err = r.ParseMultipartForm(multipartMemory); err == nil {
			req, err = createRequestFromForm(r)
		}
	default:
		if err = r.ParseForm(); err == nil {
			req, err = createRequestFromForm(r)
		}
	}
	if err != nil {
		badRequest(w, r, "Invalid request body: %v", err)
		return
	}
	req.Actor = actor
	req.OriginatingDeviceID = r.Header.Get(DeviceIDHeader)

	if isMultipart(r) {
		if req.Content, err = readUpload(r); err != nil {
			badRequest(w, r, "%v", err)
			return
		}
	}

	item, err := h.service.CreateItem(r.Context(), req)
	if err != nil {
		writeError(w, r, "create item", err)
		return
	}

	slog.Info("Item created", "item_id", item.ID, "type", item.Type)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

// ListItems lists the items visible to the caller
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return
	}

	req, err := listRequestFromQuery(r, actor)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}

	page, err := h.service.ListItems(r.Context(), req)
	if err != nil {
		writeError(w, r, "list items", err)
		return
	}
	render.JSON(w, r, page)
}

// GetItem returns a single item with the caller's permission and its path
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetItem(r.Context(), itemID, actor)
	if err != nil {
		writeError(w, r, "get item", err)
		return
	}
	render.JSON(w, r, view)
}

// UpdateItem applies a JSON patch, or multipart fields with an optional
// replacement file
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}

	req := simpledrive.UpdateItemRequest{ItemID: itemID, Actor: actor}
	var err error
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			badRequest(w, r, "Invalid multipart body: %v", err)
			return
		}
		if req.Patch, err = patchFromForm(r); err != nil {
			badRequest(w, r, "%v", err)
			return
		}
		if req.Content, err = readUpload(r); err != nil {
			badRequest(w, r, "%v", err)
			return
		}
	} else if req.Patch, err = patchFromJSON(r.Body); err != nil {
		badRequest(w, r, "%v", err)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), req)
	if err != nil {
		writeError(w, r, "update item", err)
		return
	}
	render.JSON(w, r, item)
}

// DeleteItem deletes an item and reports blobs that could not be removed
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}

	report, err := h.service.DeleteItem(r.Context(), itemID, actor)
	if err != nil {
		writeError(w, r, "delete item", err)
		return
	}

	if !report.Clean() {
		slog.Warn("Item deleted with orphaned blobs", "item_id", itemID, "errors", len(report.BlobErrors))
	}
	render.JSON(w, r, DeleteResponse{
		ID:                itemID,
		Deleted:           true,
		BlobCleanupErrors: report.BlobErrorMessages(),
	})
}

// ArchiveItem marks an item archived
func (h *ItemHandler) ArchiveItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}
	item, err := h.service.ArchiveItem(r.Context(), itemID, actor)
	if err != nil {
		writeError(w, r, "archive item", err)
		return
	}
	render.JSON(w, r, item)
}

// RestoreItem clears the archived flag
func (h *ItemHandler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}
	item, err := h.service.RestoreItem(r.Context(), itemID, actor)
	if err != nil {
		writeError(w, r, "restore item", err)
		return
	}
	render.JSON(w, r, item)
}

// UpdateAccess grants or changes a user's permission
func (h *ItemHandler) UpdateAccess(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}

	var body UpdateAccessBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		badRequest(w, r, "Invalid JSON body: %v", err)
		return
	}
	if err := validate.Struct(body); err != nil {
		badRequest(w, r, "%v", formatValidationError(err))
		return
	}

	item, err := h.service.UpdateAccess(r.Context(), simpledrive.UpdateAccessRequest{
		ItemID:     itemID,
		Actor:      actor,
		User:       uuid.MustParse(body.UserID),
		Permission: simpledrive.Permission(body.Permission),
	})
	if err != nil {
		writeError(w, r, "update access", err)
		return
	}
	render.JSON(w, r, item)
}

// CreateSharedLink issues a new shared link, optionally expiring
func (h *ItemHandler) CreateSharedLink(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}

	var body SharedLinkBody
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			badRequest(w, r, "Invalid JSON body: %v", err)
			return
		}
	}

	item, err := h.service.CreateSharedLink(r.Context(), simpledrive.CreateSharedLinkRequest{
		ItemID:    itemID,
		Actor:     actor,
		ExpiresAt: body.ExpirationDate,
	})
	if err != nil {
		writeError(w, r, "create shared link", err)
		return
	}
	render.JSON(w, r, item)
}

// RemoveSharedLink revokes the item's shared link
func (h *ItemHandler) RemoveSharedLink(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}
	item, err := h.service.RemoveSharedLink(r.Context(), itemID, actor)
	if err != nil {
		writeError(w, r, "remove shared link", err)
		return
	}
	render.JSON(w, r, item)
}

// TouchAccessTime records that the caller accessed the item
func (h *ItemHandler) TouchAccessTime(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := requestIDs(w, r)
	if !ok {
		return
	}
	item, err := h.service.TouchAccessTime(r.Context(), itemID, actor)
	if err != nil {
		writeError(w, r, "touch access time", err)
		return
	}
	render.JSON(w, r, item)
}

// OpenSharedLink resolves a shared link token without authentication
func (h *ItemHandler) OpenSharedLink(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.OpenSharedLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, "open shared link", err)
		return
	}
	render.JSON(w, r, view)
}
