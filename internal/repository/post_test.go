package repository

import (
	"context"
	"testing"
	"time"

	"askbox/internal/cache"
	"askbox/internal/models"
	"askbox/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_ListByAuthorsOrderAndCursor(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	profiles := NewProfileRepository(db, nil)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	a := seedProfile(t, profiles, "alice", owner.ID)
	b := seedProfile(t, profiles, "bob", owner.ID)
	c := seedProfile(t, profiles, "carol", owner.ID)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(author string, offset time.Duration) *models.Post {
		p := &models.Post{AuthorID: author, Content: "post", CreatedAt: base.Add(offset)}
		require.NoError(t, repo.Create(ctx, p))
		return p
	}
	p1 := mk(a.ID, 0)
	p2 := mk(b.ID, time.Minute)
	p3 := mk(b.ID, time.Minute) // same instant as p2, larger id
	mk(c.ID, 2*time.Minute)
	p5 := mk(a.ID, 3*time.Minute)

	page, err := repo.ListByAuthors(ctx, []string{a.ID, b.ID}, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []uint{p5.ID, p3.ID}, []uint{page[0].ID, page[1].ID})

	last := page[len(page)-1]
	page, err = repo.ListByAuthors(ctx, []string{a.ID, b.ID}, 2, &PostCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []uint{p2.ID, p1.ID}, []uint{page[0].ID, page[1].ID})

	last = page[len(page)-1]
	page, err = repo.ListByAuthors(ctx, []string{a.ID, b.ID}, 2, &PostCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	require.NoError(t, err)
	assert.Empty(t, page)

	none, err := repo.ListByAuthors(ctx, nil, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_LikesAreIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	profiles := NewProfileRepository(db, nil)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	a := seedProfile(t, profiles, "alice", owner.ID)
	b := seedProfile(t, profiles, "bob", owner.ID)

	post := &models.Post{AuthorID: a.ID, Content: "hello"}
	require.NoError(t, repo.Create(ctx, post))
	assert.Equal(t, []string{}, post.LikeIDs)

	liked, err := repo.Like(ctx, post.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = repo.Like(ctx, post.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, got.LikeIDs)

	likes, err := repo.LikedBy(ctx, b.ID, 0)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, post.ID, likes[0].ID)
	assert.Equal(t, []string{b.ID}, likes[0].LikeIDs)

	removed, err := repo.Unlike(ctx, post.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Unlike(ctx, post.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPostRepository_DeleteEvictsCache(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store, mr := testutil.NewCache(t)
	profiles := NewProfileRepository(db, nil)
	repo := NewPostRepository(db, store)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	a := seedProfile(t, profiles, "alice", owner.ID)

	post := &models.Post{AuthorID: a.ID, Content: "bye"}
	require.NoError(t, repo.Create(ctx, post))
	_, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	deleted, err := repo.Delete(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "bye", deleted.Content)
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	_, err = repo.GetByID(ctx, post.ID)
	assert.True(t, models.IsNotFound(err))
	_, err = repo.Delete(ctx, post.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestQuestionRepository_ListsAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	profiles := NewProfileRepository(db, nil)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	a := seedProfile(t, profiles, "alice", owner.ID)
	b := seedProfile(t, profiles, "bob", owner.ID)

	first := &models.Question{Content: "first?", FromID: a.ID, RecipientID: b.ID}
	second := &models.Question{Content: "second?", FromID: a.ID, RecipientID: b.ID, Anonymous: true}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	inbox, err := repo.ListByRecipient(ctx, b.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, second.ID, inbox[0].ID)

	asked, err := repo.ListByAsker(ctx, a.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, asked, 1)
	assert.Equal(t, first.ID, asked[0].ID)

	none, err := repo.ListByRecipient(ctx, a.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	deleted, err := repo.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first?", deleted.Content)
	_, err = repo.GetByID(ctx, first.ID)
	assert.True(t, models.IsNotFound(err))
}
