package service

import (
	"context"
	"testing"
	"time"

	"askbox/internal/events"
	"askbox/internal/models"
	"askbox/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 30, 0, 123456000, time.UTC)
	token := EncodeCursor(repository.PostCursor{CreatedAt: at, ID: 42})

	got, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.CreatedAt))
	assert.Equal(t, uint(42), got.ID)

	none, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, none)

	for _, bad := range []string{"***", "bm9jb2xvbg", "MTIzOmFiYw", "MTIzOjA"} {
		_, err := DecodeCursor(bad)
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err), bad)
	}
}

func TestPostService_GetByProfileListDeduplicatesAndPages(t *testing.T) {
	var gotIDs []string
	var gotLimit int
	var gotBefore *repository.PostCursor
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	posts := &postRepoStub{
		listByAuthorsFn: func(_ context.Context, ids []string, limit int, before *repository.PostCursor) ([]models.Post, error) {
			gotIDs, gotLimit, gotBefore = ids, limit, before
			out := make([]models.Post, 0, limit)
			for i := 0; i < limit; i++ {
				out = append(out, models.Post{ID: uint(100 - i), AuthorID: profileA, CreatedAt: base.Add(-time.Duration(i) * time.Minute)})
			}
			return out, nil
		},
	}
	svc := NewPostService(posts, &profileRepoStub{}, &questionRepoStub{}, nil)

	page, err := svc.GetByProfileList(context.Background(), TimelineInput{
		ProfileIDs: []string{profileA, profileB, profileA, "", profileB},
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{profileA, profileB}, gotIDs)
	assert.Equal(t, 2, gotLimit)
	assert.Nil(t, gotBefore)
	require.Len(t, page.Posts, 2)
	require.NotEmpty(t, page.NextCursor)

	_, err = svc.GetByProfileList(context.Background(), TimelineInput{
		ProfileIDs: []string{profileA},
		Before:     page.NextCursor,
		Limit:      500,
	})
	require.NoError(t, err)
	assert.Equal(t, MaxTimelineLimit, gotLimit)
	require.NotNil(t, gotBefore)
	assert.Equal(t, uint(99), gotBefore.ID)
	assert.True(t, base.Add(-time.Minute).Equal(gotBefore.CreatedAt))

	_, err = svc.GetByProfileList(context.Background(), TimelineInput{ProfileIDs: []string{profileA}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimelineLimit, gotLimit)
}

func TestPostService_GetByProfileListShortPageHasNoCursor(t *testing.T) {
	posts := &postRepoStub{
		listByAuthorsFn: func(context.Context, []string, int, *repository.PostCursor) ([]models.Post, error) {
			return []models.Post{{ID: 1, AuthorID: profileA}}, nil
		},
	}
	svc := NewPostService(posts, &profileRepoStub{}, &questionRepoStub{}, nil)

	page, err := svc.GetByProfileList(context.Background(), TimelineInput{ProfileIDs: []string{profileA}, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)
	assert.Empty(t, page.NextCursor)

	_, err = svc.GetByProfileList(context.Background(), TimelineInput{ProfileIDs: []string{"bogus"}})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.GetByProfileList(context.Background(), TimelineInput{ProfileIDs: []string{profileA}, Before: "%%%"})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestPostService_ExpandAuthorLikesQuestion(t *testing.T) {
	qid := uint(7)
	posts := &postRepoStub{
		listByAuthorsFn: func(context.Context, []string, int, *repository.PostCursor) ([]models.Post, error) {
			return []models.Post{
				{ID: 2, AuthorID: profileA, LikeIDs: []string{profileB, profileC}, QuestionID: &qid},
				{ID: 1, AuthorID: profileB, LikeIDs: []string{}},
			}, nil
		},
	}
	var lookedUp []string
	profiles := &profileRepoStub{
		getByIDsFn: func(_ context.Context, ids []string) ([]models.Profile, error) {
			lookedUp = ids
			out := make([]models.Profile, 0, len(ids))
			for _, id := range ids {
				out = append(out, models.Profile{ID: id, Tag: "t" + id[:1]})
			}
			return out, nil
		},
	}
	questions := &questionRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Question, error) {
			return &models.Question{ID: id, Anonymous: true, FromID: profileC, RecipientID: profileA}, nil
		},
	}
	svc := NewPostService(posts, profiles, questions, nil)

	page, err := svc.GetByProfileList(context.Background(), TimelineInput{
		ProfileIDs: []string{profileA, profileB},
		Expand:     models.PostExpand{Author: true, Likes: true, Question: true},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{profileA, profileB, profileC}, lookedUp)

	first := page.Posts[0]
	require.NotNil(t, first.Author)
	assert.Equal(t, profileA, first.Author.ID)
	require.Len(t, first.Likes, 2)
	require.NotNil(t, first.Question)
	assert.Empty(t, first.Question.FromID)
	assert.Equal(t, profileA, first.Question.RecipientID)

	second := page.Posts[1]
	require.NotNil(t, second.Author)
	assert.Equal(t, profileB, second.Author.ID)
	assert.Empty(t, second.Likes)
	assert.Nil(t, second.Question)
}

func TestPostService_CreateAnsweringQuestion(t *testing.T) {
	questions := &questionRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Question, error) {
			return &models.Question{ID: id, FromID: profileB, RecipientID: profileA}, nil
		},
	}
	pub := &recordingPublisher{}
	svc := NewPostService(&postRepoStub{}, &profileRepoStub{}, questions, pub)
	ctx := context.Background()

	qid := uint(3)
	post, err := svc.Create(ctx, CreatePostInput{AuthorID: profileA, Content: "answer", QuestionID: &qid}, models.PostExpand{})
	require.NoError(t, err)
	assert.Equal(t, &qid, post.QuestionID)
	assert.Equal(t, []events.Type{events.TypePostCreated}, pub.types())

	_, err = svc.Create(ctx, CreatePostInput{AuthorID: profileB, Content: "hijack", QuestionID: &qid}, models.PostExpand{})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	_, err = svc.Create(ctx, CreatePostInput{AuthorID: profileA, Content: ""}, models.PostExpand{})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestPostService_LikeNotifiesAuthorOnce(t *testing.T) {
	liked := false
	posts := &postRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, AuthorID: profileA}, nil
		},
		likeFn: func(context.Context, uint, string) (bool, error) {
			if liked {
				return false, nil
			}
			liked = true
			return true, nil
		},
	}
	pub := &recordingPublisher{}
	svc := NewPostService(posts, &profileRepoStub{}, &questionRepoStub{}, pub)

	require.NoError(t, svc.Like(context.Background(), 5, profileB))
	require.NoError(t, svc.Like(context.Background(), 5, profileB))
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypePostLiked, pub.events[0].Type)
	assert.Equal(t, profileA, pub.events[0].ProfileID)

	svc = NewPostService(&postRepoStub{}, &profileRepoStub{}, &questionRepoStub{}, pub)
	err := svc.Like(context.Background(), 9, profileB)
	assert.True(t, models.IsNotFound(err))
}
