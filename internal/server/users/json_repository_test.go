package users

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(name string) *User {
	return &User{
		ID:       uuid.NewString(),
		Username: name,
		Salt:     []byte("salt-bytes"),
		Verifier: []byte("verifier-bytes"),
		Address:  "10.0.0.1:4242",
	}
}

func TestJSONRepository_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()

	repo, err := NewJSONRepository(path)
	require.NoError(t, err)
	_, err = repo.Create(ctx, testUser("alice"))
	require.NoError(t, err)

	reopened, err := NewJSONRepository(path)
	require.NoError(t, err)

	got, err := reopened.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []byte("salt-bytes"), got.Salt)
	assert.Equal(t, []byte("verifier-bytes"), got.Verifier)
	assert.Equal(t, "10.0.0.1:4242", got.Address)
	assert.False(t, got.RegisteredAt.IsZero())
}

func TestJSONRepository_GetUnknown(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	_, err = repo.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestJSONRepository_ConcurrentCreate_OneWinner(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, testUser("alice"))
		}(i)
	}
	wg.Wait()

	var created, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case assert.ErrorIs(t, err, common.ErrorAlreadyExists):
			duplicates++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicates)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJSONRepository_UpdateLastAccess(t *testing.T) {
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Create(ctx, testUser("alice"))
	require.NoError(t, err)

	before, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateLastAccess(ctx, "alice"))

	after, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, after.LastAccess.Before(before.LastAccess))
}
