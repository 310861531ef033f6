package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive"
	"github.com/tendant/simple-drive/pkg/simpledrive/api"
	"github.com/tendant/simple-drive/pkg/simpledrive/repo/memory"
	memorystorage "github.com/tendant/simple-drive/pkg/simpledrive/storage/memory"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
	tokens map[uuid.UUID]string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	svc, err := simpledrive.New(
		simpledrive.WithRepository(memory.New()),
		simpledrive.WithBlobStore("memory", memorystorage.New()),
	)
	require.NoError(t, err)

	auth := api.NewAuth("test-secret")
	r := chi.NewRouter()
	api.Register(r, api.NewItemHandler(svc), auth)

	ts := &testServer{t: t, server: httptest.NewServer(r), tokens: map[uuid.UUID]string{}}
	t.Cleanup(ts.server.Close)

	for _, user := range []uuid.UUID{owner, other} {
		token, err := api.IssueToken(auth, user)
		require.NoError(t, err)
		ts.tokens[user] = token
	}
	return ts
}

var (
	owner = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	other = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func (ts *testServer) do(user uuid.UUID, method, path, contentType string, body []byte) *http.Response {
	ts.t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, bytes.NewReader(body))
	require.NoError(ts.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token, ok := ts.tokens[user]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(api.DeviceIDHeader, "laptop-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) doJSON(user uuid.UUID, method, path string, body any) *http.Response {
	ts.t.Helper()
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(ts.t, err)
	}
	return ts.do(user, method, path, "application/json", data)
}

func (ts *testServer) upload(user uuid.UUID, method, path string, fields map[string]string, fileName, content string) *http.Response {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(ts.t, mw.WriteField(k, v))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(ts.t, err)
		_, err = part.Write([]byte(content))
		require.NoError(ts.t, err)
	}
	require.NoError(ts.t, mw.Close())
	return ts.do(user, method, path, mw.FormDataContentType(), buf.Bytes())
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) createFolder(user uuid.UUID, name string, parent *uuid.UUID) simpledrive.Item {
	ts.t.Helper()
	body := map[string]any{"name": name}
	if parent != nil {
		body["parentFolderId"] = parent.String()
	}
	resp := ts.doJSON(user, http.MethodPost, "/items", body)
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode)
	return decode[simpledrive.Item](ts.t, resp)
}

func TestRequiresToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.doJSON(uuid.New(), http.MethodGet, "/items", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateFolderFromJSON(t *testing.T) {
	ts := setupTestServer(t)

	folder := ts.createFolder(owner, "Photos", nil)
	assert.Equal(t, simpledrive.ItemTypeFolder, folder.Type)
	assert.Equal(t, owner, folder.Owner)
	assert.Equal(t, 1, folder.Version)
	assert.Nil(t, folder.ParentFolderID)

	resp := ts.doJSON(owner, http.MethodPost, "/items", map[string]any{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFileFromMultipart(t *testing.T) {
	ts := setupTestServer(t)
	folder := ts.createFolder(owner, "Docs", nil)

	resp := ts.upload(owner, http.MethodPost, "/items", map[string]string{
		"parentFolderId": folder.ID.String(),
		"userTags":       "work, notes",
	}, "notes.txt", "hello drive")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	file := decode[simpledrive.Item](t, resp)
	assert.Equal(t, simpledrive.ItemTypeFile, file.Type)
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, int64(len("hello drive")), file.Size)
	assert.Equal(t, "laptop-1", file.OriginatingDeviceID)
	assert.ElementsMatch(t, []string{"work", "notes"}, file.UserTags)
	require.NotNil(t, file.ParentFolderID)
	assert.Equal(t, folder.ID, *file.ParentFolderID)
	assert.NotEmpty(t, file.ContentRef)
}

func TestCreateWithoutFileCreatesFolder(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.upload(owner, http.MethodPost, "/items", map[string]string{"name": "Empty"}, "", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := decode[simpledrive.Item](t, resp)
	assert.Equal(t, simpledrive.ItemTypeFolder, item.Type)
}

func TestGetAndListItems(t *testing.T) {
	ts := setupTestServer(t)
	folder := ts.createFolder(owner, "Music", nil)
	ts.createFolder(owner, "Art", nil)

	resp := ts.doJSON(owner, http.MethodGet, "/items/"+folder.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[simpledrive.ItemView](t, resp)
	assert.Equal(t, "Music", view.Name)
	assert.True(t, view.IsOwner)
	assert.Equal(t, simpledrive.PermissionAdmin, view.UserPermission)

	resp = ts.doJSON(owner, http.MethodGet, "/items?sortBy=name&sortOrder=asc&limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[simpledrive.ItemPage](t, resp)
	assert.Equal(t, 2, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Art", page.Items[0].Name)

	resp = ts.doJSON(other, http.MethodGet, "/items", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[simpledrive.ItemPage](t, resp).Items)

	t.Run("invalid query", func(t *testing.T) {
		for _, query := range []string{"page=abc", "sortOrder=sideways", "fileType=link", "parentFolderId=nope", "page=922337203685477580&limit=100"} {
			resp := ts.doJSON(owner, http.MethodGet, "/items?"+query, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		}
	})
}

func TestErrorStatusMapping(t *testing.T) {
	ts := setupTestServer(t)
	folder := ts.createFolder(owner, "Private", nil)

	tests := []struct {
		name   string
		user   uuid.UUID
		path   string
		status int
	}{
		{"malformed id", owner, "/items/not-a-uuid", http.StatusBadRequest},
		{"unknown item", owner, "/items/" + uuid.NewString(), http.StatusNotFound},
		{"no permission", other, "/items/" + folder.ID.String(), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.doJSON(tt.user, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decode[api.ErrorResponse](t, resp).Error)
		})
	}
}

func TestUpdateItemJSON(t *testing.T) {
	ts := setupTestServer(t)
	parent := ts.createFolder(owner, "Parent", nil)
	child := ts.createFolder(owner, "Child", &parent.ID)

	resp := ts.do(owner, http.MethodPut, "/items/"+child.ID.String(), "application/json",
		[]byte(`{"name":"Renamed","owner":"`+other.String()+`"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[simpledrive.Item](t, resp)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, owner, updated.Owner)
	assert.Equal(t, 2, updated.Version)
	require.NotNil(t, updated.ParentFolderID)

	resp = ts.do(owner, http.MethodPut, "/items/"+child.ID.String(), "application/json",
		[]byte(`{"parentFolderId":null}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decode[simpledrive.Item](t, resp)
	assert.Nil(t, moved.ParentFolderID)

	resp = ts.do(owner, http.MethodPut, "/items/"+child.ID.String(), "application/json", []byte(`{"name":`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(owner, http.MethodPut, "/items/"+child.ID.String(), "application/json",
		[]byte(`{"owner":"`+other.String()+`"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(owner, http.MethodPut, "/items/"+child.ID.String(), "application/json", []byte(`{"sharedLink":"chosen"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateItemMultipartReplacesContent(t *testing.T) {
	ts := setupTestServer(t)
	resp := ts.upload(owner, http.MethodPost, "/items", nil, "a.txt", "first")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	file := decode[simpledrive.Item](t, resp)

	resp = ts.upload(owner, http.MethodPut, "/items/"+file.ID.String(),
		map[string]string{"description": "second draft"}, "a.txt", "second version")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[simpledrive.Item](t, resp)
	assert.Equal(t, "second draft", updated.Description)
	assert.Equal(t, int64(len("second version")), updated.Size)
	assert.NotEqual(t, file.ContentRef, updated.ContentRef)
}

func TestArchiveRestoreAndTouch(t *testing.T) {
	ts := setupTestServer(t)
	folder := ts.createFolder(owner, "Old", nil)
	id := folder.ID.String()

	resp := ts.doJSON(owner, http.MethodGet, "/items/archive/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[simpledrive.Item](t, resp).IsArchived)

	resp = ts.doJSON(owner, http.MethodGet, "/items/restore/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[simpledrive.Item](t, resp).IsArchived)

	resp = ts.doJSON(owner, http.MethodGet, "/items/accessed/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	touched := decode[simpledrive.Item](t, resp)
	assert.NotNil(t, touched.LastAccessedOn)
	assert.Equal(t, 3, touched.Version)
}

func TestUpdateAccess(t *testing.T) {
	ts := setupTestServer(t)
	folder := ts.createFolder(owner, "Team", nil)
	path := "/items/access/" + folder.ID.String()

	resp := ts.doJSON(owner, http.MethodPost, path, map[string]string{"userId": other.String(), "permission": "superuser"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.doJSON(other, http.MethodPost, path, map[string]string{"userId": other.String(), "permission": "admin"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.doJSON(owner, http.MethodPost, path, map[string]string{"userId": other.String(), "permission": "write"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.doJSON(other, http.MethodGet, "/items/"+folder.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[simpledrive.ItemView](t, resp)
	assert.Equal(t, simpledrive.PermissionWrite, view.UserPermission)
	assert.False(t, view.IsOwner)
}

func TestSharedLinkEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	folder := ts.createFolder(owner, "Public", nil)
	path := "/items/shared_link/" + folder.ID.String()

	resp := ts.do(owner, http.MethodPost, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	linked := decode[simpledrive.Item](t, resp)
	require.NotNil(t, linked.SharedLink)

	resp = ts.do(uuid.New(), http.MethodGet, "/shared/"+*linked.SharedLink, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[simpledrive.ItemView](t, resp)
	assert.Equal(t, "Public", view.Name)
	assert.Empty(t, view.Access)

	resp = ts.do(owner, http.MethodDelete, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(uuid.New(), http.MethodGet, "/shared/"+*linked.SharedLink, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	t.Run("expiration in the past", func(t *testing.T) {
		resp := ts.do(owner, http.MethodPost, path, "application/json",
			[]byte(`{"expirationDate":"2000-01-01T00:00:00Z"}`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeleteItem(t *testing.T) {
	ts := setupTestServer(t)
	resp := ts.upload(owner, http.MethodPost, "/items", nil, "gone.txt", strings.Repeat("x", 64))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	file := decode[simpledrive.Item](t, resp)

	resp = ts.do(other, http.MethodDelete, "/items/"+file.ID.String(), "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(owner, http.MethodDelete, "/items/"+file.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deleted := decode[api.DeleteResponse](t, resp)
	assert.True(t, deleted.Deleted)
	assert.Empty(t, deleted.BlobCleanupErrors)

	resp = ts.do(owner, http.MethodGet, "/items/"+file.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
