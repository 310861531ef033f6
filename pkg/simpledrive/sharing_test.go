package simpledrive_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive"
)

func TestSharedLinkLifecycle(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	reader := uuid.New()
	file := env.file(t, owner, "a.txt", nil, "public")
	env.grant(t, file.ID, owner, reader, simpledrive.PermissionRead)

	_, err := env.svc.CreateSharedLink(ctx, simpledrive.CreateSharedLinkRequest{ItemID: file.ID, Actor: reader})
	assert.ErrorIs(t, err, simpledrive.ErrAccessDenied)

	expires := env.clock.Now().Add(time.Hour)
	shared, err := env.svc.CreateSharedLink(ctx, simpledrive.CreateSharedLinkRequest{
		ItemID: file.ID, Actor: owner, ExpiresAt: &expires,
	})
	require.NoError(t, err)
	require.NotNil(t, shared.SharedLink)
	assert.Len(t, *shared.SharedLink, 43)
	assert.Equal(t, expires, *shared.ExpirationDate)
	assert.Equal(t, 3, shared.Version)

	view, err := env.svc.OpenSharedLink(ctx, *shared.SharedLink)
	require.NoError(t, err)
	assert.Equal(t, file.ID, view.ID)
	assert.NotEmpty(t, view.SignedURL)
	assert.Nil(t, view.Access)
	assert.Equal(t, uuid.Nil, view.LastModifiedBy)

	again, err := env.svc.CreateSharedLink(ctx, simpledrive.CreateSharedLinkRequest{ItemID: file.ID, Actor: owner})
	require.NoError(t, err)
	assert.NotEqual(t, *shared.SharedLink, *again.SharedLink)
	assert.Nil(t, again.ExpirationDate)

	_, err = env.svc.OpenSharedLink(ctx, *shared.SharedLink)
	assert.ErrorIs(t, err, simpledrive.ErrNotFound)

	removed, err := env.svc.RemoveSharedLink(ctx, file.ID, owner)
	require.NoError(t, err)
	assert.Nil(t, removed.SharedLink)
	assert.Nil(t, removed.ExpirationDate)

	_, err = env.svc.OpenSharedLink(ctx, *again.SharedLink)
	assert.ErrorIs(t, err, simpledrive.ErrNotFound)
}

func TestSharedLinkExpiry(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	folder := env.folder(t, owner, "docs", nil)

	past := env.clock.Now().Add(-time.Second)
	_, err := env.svc.CreateSharedLink(ctx, simpledrive.CreateSharedLinkRequest{ItemID: folder.ID, Actor: owner, ExpiresAt: &past})
	assert.ErrorIs(t, err, simpledrive.ErrValidation)

	expires := env.clock.Now().Add(time.Minute)
	shared, err := env.svc.CreateSharedLink(ctx, simpledrive.CreateSharedLinkRequest{ItemID: folder.ID, Actor: owner, ExpiresAt: &expires})
	require.NoError(t, err)

	_, err = env.svc.OpenSharedLink(ctx, *shared.SharedLink)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	_, err = env.svc.OpenSharedLink(ctx, *shared.SharedLink)
	assert.ErrorIs(t, err, simpledrive.ErrNotFound)

	view, err := env.svc.GetItem(ctx, folder.ID, owner)
	require.NoError(t, err)
	assert.Nil(t, view.SharedLink)
	assert.Nil(t, view.ExpirationDate)

	stored, err := env.repo.GetItem(ctx, folder.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.SharedLink)
}

func TestOpenSharedLinkUnknownToken(t *testing.T) {
	env := setupTestService(t)

	_, err := env.svc.OpenSharedLink(context.Background(), "")
	assert.ErrorIs(t, err, simpledrive.ErrNotFound)

	_, err = env.svc.OpenSharedLink(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, simpledrive.ErrNotFound)
}

func TestPatchClearsSharedLink(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	folder := env.folder(t, owner, "docs", nil)

	expires := env.clock.Now().Add(time.Hour)
	_, err := env.svc.CreateSharedLink(ctx, simpledrive.CreateSharedLinkRequest{ItemID: folder.ID, Actor: owner, ExpiresAt: &expires})
	require.NoError(t, err)

	updated, err := env.svc.UpdateItem(ctx, simpledrive.UpdateItemRequest{
		ItemID: folder.ID, Actor: owner, Patch: simpledrive.ItemPatch{SharedLink: ptr("")},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.SharedLink)
	assert.Nil(t, updated.ExpirationDate)
}

func TestPatchCannotChooseSharedLink(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	folder := env.folder(t, owner, "docs", nil)

	_, err := env.svc.UpdateItem(ctx, simpledrive.UpdateItemRequest{
		ItemID: folder.ID, Actor: owner, Patch: simpledrive.ItemPatch{SharedLink: ptr("x")},
	})
	assert.ErrorIs(t, err, simpledrive.ErrValidation)

	_, err = env.svc.OpenSharedLink(ctx, "x")
	assert.ErrorIs(t, err, simpledrive.ErrNotFound)
	stored, err := env.repo.GetItem(ctx, folder.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.SharedLink)
	assert.Equal(t, 1, stored.Version)
}
