package badger_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive"
	"github.com/tendant/simple-drive/pkg/simpledrive/repo/badger"
	"github.com/tendant/simple-drive/pkg/simpledrive/repo/repotest"
)

func TestBadgerRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) simpledrive.Repository {
		repo, err := badger.Open(badger.Config{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestBadgerRepositoryPersists(t *testing.T) {
	dir := t.TempDir()
	repo, err := badger.Open(badger.Config{Dir: dir})
	require.NoError(t, err)

	item := repotest.NewItem(uuid.New(), "docs", nil)
	require.NoError(t, repo.CreateItem(t.Context(), item))
	require.NoError(t, repo.Close())

	reopened, err := badger.Open(badger.Config{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetItem(t.Context(), item.ID)
	require.NoError(t, err)
	require.Equal(t, "docs", got.Name)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := badger.Open(badger.Config{})
	require.Error(t, err)
}
