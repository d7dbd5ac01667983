package photo

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoshare/photoshare-web/internal/pkg/database"
)

// setupTestDB connects to TEST_DATABASE_URL and migrates it, or skips
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skipf("TEST_DATABASE_URL not set")
	}

	db, err := database.NewPostgres(dsn)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE photos RESTART IDENTITY`)
	require.NoError(t, err)
	return db
}

func TestRepository_CreateGetUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	p := &Photo{
		Caption:     "harbour",
		Tags:        SplitTags("boat, sea"),
		Owner:       "user-1",
		OwnerName:   "alice",
		BlobKey:     "blob-1",
		ContentType: "image/jpeg",
		Comments:    Comments{},
	}
	require.NoError(t, repo.Create(ctx, p))
	assert.NotZero(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"boat", "sea"}, []string(got.Tags))
	assert.Nil(t, got.Thumbnail)
	assert.Empty(t, got.Comments)

	got.Comments = append(got.Comments, Comment{Content: "hi", AuthorID: "user-2", Author: "bob"})
	got.Thumbnail = []byte{1, 2, 3}
	got.ThumbnailType = "image/jpeg"
	got.Thumbnailed = true
	require.NoError(t, repo.Update(ctx, got))

	again, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, again.Thumbnail)
	assert.True(t, again.Thumbnailed)
	require.Len(t, again.Comments, 1)
	assert.Equal(t, "bob", again.Comments[0].Author)

	missing, err := repo.GetByID(ctx, p.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, repo.Update(ctx, &Photo{ID: p.ID + 100, Comments: Comments{}}), ErrPhotoNotFound)
}

func TestRepository_Lists(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	create := func(owner, tags string, private bool) *Photo {
		p := &Photo{Owner: owner, Tags: SplitTags(tags), Private: private, BlobKey: owner + tags, Comments: Comments{}}
		require.NoError(t, repo.Create(ctx, p))
		return p
	}
	a1 := create("alice", "cat", false)
	a2 := create("alice", "cat,", true)
	b1 := create("bob", "cat", true)
	b2 := create("bob", "dog", false)

	list, err := repo.ListPublic(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a1.ID, b2.ID}, ids(list))

	list, err = repo.ListByOwner(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []int64{b1.ID, b2.ID}, ids(list))

	list, err = repo.ListPublicOrOwned(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{a1.ID, a2.ID, b2.ID}, ids(list))

	list, err = repo.ListPublicByTag(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, []int64{a1.ID}, ids(list))

	list, err = repo.ListOwnedByTag(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, []int64{a2.ID}, ids(list))

	unthumbed, err := repo.ListUnthumbnailedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{a1.ID, a2.ID, b1.ID, b2.ID}, unthumbed)
}
