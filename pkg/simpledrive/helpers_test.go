package simpledrive_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive"
	"github.com/tendant/simple-drive/pkg/simpledrive/repo/memory"
	memorystorage "github.com/tendant/simple-drive/pkg/simpledrive/storage/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc   simpledrive.Service
	repo  *memory.Repository
	blobs *memorystorage.Backend
	clock *testClock
}

func setupTestService(t *testing.T, opts ...simpledrive.Option) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:  memory.New(),
		blobs: memorystorage.New(),
		clock: newTestClock(),
	}
	options := append([]simpledrive.Option{
		simpledrive.WithRepository(env.repo),
		simpledrive.WithBlobStore("memory", env.blobs),
		simpledrive.WithClock(env.clock.Now),
	}, opts...)

	svc, err := simpledrive.New(options...)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func (e *testEnv) folder(t *testing.T, owner uuid.UUID, name string, parent *uuid.UUID) *simpledrive.Item {
	t.Helper()
	item, err := e.svc.CreateItem(context.Background(), simpledrive.CreateItemRequest{
		Actor:          owner,
		ParentFolderID: parent,
		Name:           name,
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) file(t *testing.T, owner uuid.UUID, name string, parent *uuid.UUID, data string) *simpledrive.Item {
	t.Helper()
	item, err := e.svc.CreateItem(context.Background(), simpledrive.CreateItemRequest{
		Actor:          owner,
		ParentFolderID: parent,
		Content:        &simpledrive.Upload{FileName: name, MimeType: "text/plain", Data: []byte(data)},
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) grant(t *testing.T, itemID, owner, user uuid.UUID, p simpledrive.Permission) {
	t.Helper()
	_, err := e.svc.UpdateAccess(context.Background(), simpledrive.UpdateAccessRequest{
		ItemID: itemID, Actor: owner, User: user, Permission: p,
	})
	require.NoError(t, err)
}

// mockBlobStore records blob calls through testify/mock
type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) UploadWithParams(ctx context.Context, r io.Reader, params simpledrive.UploadParams) error {
	args := m.Called(ctx, r, params)
	return args.Error(0)
}

func (m *mockBlobStore) GetDownloadURL(ctx context.Context, key string, downloadFilename string) (string, error) {
	args := m.Called(ctx, key, downloadFilename)
	return args.String(0), args.Error(1)
}

func (m *mockBlobStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func ptr[T any](v T) *T { return &v }
