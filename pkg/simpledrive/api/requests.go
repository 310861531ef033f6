package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tendant/simple-drive/pkg/simpledrive"
)

// validate is the singleton validator instance
var validate = validator.New()

// UpdateAccessBody is the body of POST /items/access/{id}
type UpdateAccessBody struct {
	UserID     string `json:"userId" validate:"required,uuid"`
	Permission string `json:"permission" validate:"required,oneof=read write admin"`
}

// SharedLinkBody is the optional body of POST /items/shared_link/{id}
type SharedLinkBody struct {
	ExpirationDate *time.Time `json:"expirationDate"`
}

// CreateFolderBody is the JSON form of POST /items; it always creates a folder
type CreateFolderBody struct {
	Name             string         `json:"name" validate:"required"`
	Description      string         `json:"description"`
	ParentFolderID   string         `json:"parentFolderId" validate:"omitempty,uuid"`
	UserTags         []string       `json:"userTags"`
	CustomProperties map[string]any `json:"customProperties"`
	IsHidden         bool           `json:"isHidden"`
}

// listParams holds the raw query of GET /items
type listParams struct {
	Page      int    `validate:"gte=0"`
	Limit     int    `validate:"gte=0"`
	SortOrder string `validate:"omitempty,oneof=asc desc"`
	FileType  string `validate:"omitempty,oneof=file folder"`
}

// patchFields are the keys an update may change; anything else is ignored
var patchFields = []string{
	"name", "description", "isArchived", "isHidden", "customProperties",
	"userTags", "parentFolderId", "isEncrypted", "compressionType", "sharedLink",
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readUpload returns the "file" part of a parsed multipart form, or nil
func readUpload(r *http.Request) (*simpledrive.Upload, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return &simpledrive.Upload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// createRequestFromForm builds a CreateItemRequest from multipart or
// urlencoded form fields
func createRequestFromForm(r *http.Request) (simpledrive.CreateItemRequest, error) {
	var req simpledrive.CreateItemRequest
	var err error

	req.Name = r.FormValue("name")
	req.Description = r.FormValue("description")
	req.OriginalLocation = r.FormValue("originalLocation")
	req.CompressionType = r.FormValue("compressionType")
	if req.ParentFolderID, err = parseOptionalUUID("parentFolderId", r.FormValue("parentFolderId")); err != nil {
		return req, err
	}
	if req.IsHidden, err = parseFormBool("isHidden", r.FormValue("isHidden")); err != nil {
		return req, err
	}
	if req.IsEncrypted, err = parseFormBool("isEncrypted", r.FormValue("isEncrypted")); err != nil {
		return req, err
	}
	if v := r.FormValue("userTags"); v != "" {
		req.UserTags = parseTags(v)
	}
	if v := r.FormValue("customProperties"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.CustomProperties); err != nil {
			return req, fmt.Errorf("customProperties must be a JSON object")
		}
	}
	return req, nil
}

// createRequestFromJSON decodes and validates a CreateFolderBody
func createRequestFromJSON(body io.Reader) (simpledrive.CreateItemRequest, error) {
	var req simpledrive.CreateItemRequest
	var in CreateFolderBody
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		return req, fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(in); err != nil {
		return req, formatValidationError(err)
	}

	parent, err := parseOptionalUUID("parentFolderId", in.ParentFolderID)
	if err != nil {
		return req, err
	}
	req.ParentFolderID = parent
	req.Name = in.Name
	req.Description = in.Description
	req.UserTags = in.UserTags
	req.CustomProperties = in.CustomProperties
	req.IsHidden = in.IsHidden
	return req, nil
}

// patchFromJSON decodes an update body. Only allow-listed keys are read and
// an explicit null parentFolderId moves the item to the root.
func patchFromJSON(body io.Reader) (simpledrive.ItemPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return simpledrive.ItemPatch{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	var p simpledrive.ItemPatch
	for _, field := range patchFields {
		value, ok := raw[field]
		if !ok {
			continue
		}
		if err := applyJSONField(&p, field, value); err != nil {
			return p, fmt.Errorf("invalid %s: %w", field, err)
		}
	}
	return p, nil
}

func applyJSONField(p *simpledrive.ItemPatch, field string, value json.RawMessage) error {
	switch field {
	case "name":
		return json.Unmarshal(value, &p.Name)
	case "description":
		return json.Unmarshal(value, &p.Description)
	case "isArchived":
		return json.Unmarshal(value, &p.IsArchived)
	case "isHidden":
		return json.Unmarshal(value, &p.IsHidden)
	case "isEncrypted":
		return json.Unmarshal(value, &p.IsEncrypted)
	case "compressionType":
		return json.Unmarshal(value, &p.CompressionType)
	case "sharedLink":
		if string(value) == "null" {
			p.SharedLink = new(string)
			return nil
		}
		return json.Unmarshal(value, &p.SharedLink)
	case "customProperties":
		return json.Unmarshal(value, &p.CustomProperties)
	case "userTags":
		return json.Unmarshal(value, &p.UserTags)
	case "parentFolderId":
		var s *string
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		change := &simpledrive.ParentChange{}
		if s != nil && *s != "" {
			id, err := uuid.Parse(*s)
			if err != nil {
				return err
			}
			change.FolderID = &id
		}
		p.Parent = change
	}
	return nil
}

// patchFromForm reads allow-listed fields present in a parsed multipart form
func patchFromForm(r *http.Request) (simpledrive.ItemPatch, error) {
	var p simpledrive.ItemPatch
	form := r.MultipartForm.Value
	has := func(key string) (string, bool) {
		values, ok := form[key]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	}

	if v, ok := has("name"); ok {
		p.Name = &v
	}
	if v, ok := has("description"); ok {
		p.Description = &v
	}
	if v, ok := has("compressionType"); ok {
		p.CompressionType = &v
	}
	if v, ok := has("sharedLink"); ok {
		p.SharedLink = &v
	}
	for key, dst := range map[string]**bool{"isArchived": &p.IsArchived, "isHidden": &p.IsHidden, "isEncrypted": &p.IsEncrypted} {
		if v, ok := has(key); ok {
			b, err := parseFormBool(key, v)
			if err != nil {
				return p, err
			}
			*dst = &b
		}
	}
	if v, ok := has("userTags"); ok {
		p.UserTags = parseTags(v)
	}
	if v, ok := has("customProperties"); ok {
		if err := json.Unmarshal([]byte(v), &p.CustomProperties); err != nil {
			return p, fmt.Errorf("customProperties must be a JSON object")
		}
	}
	if v, ok := has("parentFolderId"); ok {
		if v == "null" {
			v = ""
		}
		id, err := parseOptionalUUID("parentFolderId", v)
		if err != nil {
			return p, err
		}
		p.Parent = &simpledrive.ParentChange{FolderID: id}
	}
	return p, nil
}

// listRequestFromQuery builds a ListItemsRequest from GET /items query parameters
func listRequestFromQuery(r *http.Request, actor uuid.UUID) (simpledrive.ListItemsRequest, error) {
	q := r.URL.Query()
	req := simpledrive.ListItemsRequest{
		Actor:  actor,
		Search: q.Get("search"),
		SortBy: q.Get("sortBy"),
	}

	var params listParams
	var err error
	if params.Page, err = parseQueryInt("page", q.Get("page")); err != nil {
		return req, err
	}
	limit := q.Get("limit")
	if limit == "" {
		limit = q.Get("pageSize")
	}
	if params.Limit, err = parseQueryInt("limit", limit); err != nil {
		return req, err
	}
	params.SortOrder = strings.ToLower(q.Get("sortOrder"))
	params.FileType = q.Get("fileType")
	if params.FileType == "" {
		params.FileType = q.Get("type")
	}
	if err := validate.Struct(params); err != nil {
		return req, formatValidationError(err)
	}

	req.Page = params.Page
	req.PageSize = params.Limit
	req.SortOrder = simpledrive.SortOrder(params.SortOrder)
	req.Type = simpledrive.ItemType(params.FileType)

	if req.ParentFolderID, err = parseOptionalUUID("parentFolderId", q.Get("parentFolderId")); err != nil {
		return req, err
	}
	if req.Owner, err = parseOptionalUUID("owner", q.Get("owner")); err != nil {
		return req, err
	}
	if req.StartDate, err = parseQueryTime("startDate", q.Get("startDate")); err != nil {
		return req, err
	}
	if req.EndDate, err = parseQueryTime("endDate", q.Get("endDate")); err != nil {
		return req, err
	}
	return req, nil
}

func parseOptionalUUID(field, v string) (*uuid.UUID, error) {
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID", field)
	}
	return &id, nil
}

func parseFormBool(field, v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", field)
	}
	return b, nil
}

func parseQueryInt(field, v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	return n, nil
}

// parseQueryTime accepts RFC 3339 timestamps and plain dates. A plain end
// date covers the whole day.
func parseQueryTime(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC 3339 timestamp or a date", field)
	}
	if field == "endDate" {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// parseTags accepts a JSON array or a comma separated list
func parseTags(v string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(v), &tags); err == nil {
		return tags
	}
	return strings.Split(v, ",")
}
