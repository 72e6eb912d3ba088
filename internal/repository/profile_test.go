package repository

import (
	"context"
	"regexp"
	"testing"

	"askbox/internal/cache"
	"askbox/internal/database"
	"askbox/internal/models"
	"askbox/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_FollowingIDsQueryShape(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProfileRepository(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "followed_id" FROM "follows" WHERE follower_id = $1 ORDER BY created_at DESC`)).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"followed_id"}).AddRow("p-2").AddRow("p-3"))

	ids, err := repo.FollowingIDs(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p-2", "p-3"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_CreateAssignsOwner(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	p := seedProfile(t, repo, "alice", owner.ID)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []uint{owner.ID}, p.ManagerIDs)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Tag)
	assert.Equal(t, []uint{owner.ID}, got.ManagerIDs)
}

func TestProfileRepository_DuplicateTagWritesNothing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	seedProfile(t, repo, "alice", owner.ID)

	dup := &models.Profile{Tag: "alice", Name: "Another"}
	err := repo.Create(ctx, dup, owner.ID)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	var profiles, links int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&profiles).Error)
	require.NoError(t, db.Model(&models.ProfileManager{}).Count(&links).Error)
	assert.EqualValues(t, 1, profiles)
	assert.EqualValues(t, 1, links)
}

func TestProfileRepository_UpdateTagCollision(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	seedProfile(t, repo, "alice", owner.ID)
	bob := seedProfile(t, repo, "bob", owner.ID)

	bob.Tag = "alice"
	err := repo.Update(ctx, bob)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	err = repo.Update(ctx, &models.Profile{ID: "00000000-0000-0000-0000-000000000000", Tag: "ghost", Name: "Ghost"})
	assert.True(t, models.IsNotFound(err))
}

func TestProfileRepository_FollowIsSymmetricAndIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	a := seedProfile(t, repo, "alice", owner.ID)
	b := seedProfile(t, repo, "bob", owner.ID)

	created, err := repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	var edges int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&edges).Error)
	assert.EqualValues(t, 1, edges)

	followers, err := repo.Followers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)
	assert.Equal(t, []uint{owner.ID}, followers[0].ManagerIDs)

	following, err := repo.Following(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, b.ID, following[0].ID)

	ids, err := repo.FollowerIDs(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids)

	removed, err := repo.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Unfollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	followers, err = repo.Followers(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestProfileRepository_FollowingIDsCacheInvalidation(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store, mr := testutil.NewCache(t)
	repo := NewProfileRepository(db, store)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	a := seedProfile(t, repo, "alice", owner.ID)
	b := seedProfile(t, repo, "bob", owner.ID)
	c := seedProfile(t, repo, "carol", owner.ID)

	ids, err := repo.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.True(t, mr.Exists(cache.FollowingKey(a.ID)))

	_, err = repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.FollowingKey(a.ID)))

	ids, err = repo.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)

	_, err = repo.Follow(ctx, a.ID, c.ID)
	require.NoError(t, err)
	ids, err = repo.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, ids)
	assert.NotContains(t, ids, a.ID)

	_, err = repo.Delete(ctx, c.ID)
	require.NoError(t, err)
	ids, err = repo.FollowingIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)
}

func TestProfileRepository_DeleteRemovesOwnedRows(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, nil)
	posts := NewPostRepository(db, nil)
	questions := NewQuestionRepository(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	a := seedProfile(t, repo, "alice", owner.ID)
	b := seedProfile(t, repo, "bob", owner.ID)

	_, err := repo.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = repo.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)

	q := &models.Question{Content: "hi?", FromID: b.ID, RecipientID: a.ID}
	require.NoError(t, questions.Create(ctx, q))

	own := &models.Post{AuthorID: a.ID, Content: "mine"}
	require.NoError(t, posts.Create(ctx, own))
	answer := &models.Post{AuthorID: b.ID, Content: "reply", QuestionID: &q.ID}
	require.NoError(t, posts.Create(ctx, answer))
	_, err = posts.Like(ctx, answer.ID, a.ID)
	require.NoError(t, err)
	_, err = posts.Like(ctx, own.ID, b.ID)
	require.NoError(t, err)

	snapshot, err := repo.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", snapshot.Tag)
	assert.Equal(t, []uint{owner.ID}, snapshot.ManagerIDs)

	count := func(model any) int64 {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}
	assert.EqualValues(t, 0, count(&models.Follow{}))
	assert.EqualValues(t, 0, count(&models.PostLike{}))
	assert.EqualValues(t, 0, count(&models.Question{}))
	assert.EqualValues(t, 1, count(&models.Post{}))
	assert.EqualValues(t, 1, count(&models.ProfileManager{}))
	assert.EqualValues(t, 1, count(&models.User{}))

	kept, err := posts.GetByID(ctx, answer.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.QuestionID)

	_, err = repo.Delete(ctx, a.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestProfileRepository_Relationships(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	viewer := seedProfile(t, repo, "viewer", owner.ID)
	mutual := seedProfile(t, repo, "mutual", owner.ID)
	fan := seedProfile(t, repo, "fan", owner.ID)
	stranger := seedProfile(t, repo, "stranger", owner.ID)

	for _, edge := range [][2]string{
		{viewer.ID, mutual.ID},
		{mutual.ID, viewer.ID},
		{fan.ID, viewer.ID},
	} {
		_, err := repo.Follow(ctx, edge[0], edge[1])
		require.NoError(t, err)
	}

	rels, err := repo.Relationships(ctx, viewer.ID, []string{mutual.ID, fan.ID, stranger.ID})
	require.NoError(t, err)
	assert.Equal(t, models.Relationship{Following: true, FollowedBy: true}, rels[mutual.ID])
	assert.Equal(t, models.Relationship{FollowedBy: true}, rels[fan.ID])
	assert.Equal(t, models.Relationship{}, rels[stranger.ID])
	assert.Len(t, rels, 3)
}

func TestProfileRepository_ManagersAreIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	store, mr := testutil.NewCache(t)
	repo := NewProfileRepository(db, store)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	p := seedProfile(t, repo, "shared", alice.ID)

	_, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.ProfileKey(p.ID)))

	require.NoError(t, repo.AddManager(ctx, p.ID, bob.ID))
	require.NoError(t, repo.AddManager(ctx, p.ID, bob.ID))
	assert.False(t, mr.Exists(cache.ProfileKey(p.ID)))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, got.ManagerIDs)

	require.NoError(t, repo.RemoveManager(ctx, p.ID, alice.ID))
	require.NoError(t, repo.RemoveManager(ctx, p.ID, alice.ID))
	require.NoError(t, repo.RemoveManager(ctx, p.ID, bob.ID))

	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ManagerIDs)
}

func TestProfileRepository_GetByTagAndIDs(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewProfileRepository(db, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	b := seedProfile(t, repo, "bob", owner.ID)
	a := seedProfile(t, repo, "alice", owner.ID)

	got, err := repo.GetByTag(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)

	got, err = repo.GetByTag(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := repo.GetByIDs(ctx, []string{b.ID, a.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Tag)
	assert.Equal(t, "bob", list[1].Tag)
}

func TestProfileRepository_FreshReadsIgnoreLaggingReplica(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	t.Cleanup(database.UseReadDB(testutil.NewSQLiteDB(t)))
	store, _ := testutil.NewCache(t)
	repo := NewProfileRepository(db, store)
	ctx := context.Background()

	owner := seedUser(t, db, "owner")
	helper := seedUser(t, db, "helper")
	a := seedProfile(t, repo, "alice", owner.ID)
	b := seedProfile(t, repo, "bob", owner.ID)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{owner.ID}, got.ManagerIDs)

	require.NoError(t, repo.AddManager(ctx, a.ID, helper.ID))
	got, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{owner.ID, helper.ID}, got.ManagerIDs)

	_, err = repo.Follow(ctx, b.ID, a.ID)
	require.NoError(t, err)
	ids, err := repo.FollowerIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)
}
