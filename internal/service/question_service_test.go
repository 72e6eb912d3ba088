package service

import (
	"context"
	"strings"
	"testing"

	"askbox/internal/events"
	"askbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionService_CreateValidation(t *testing.T) {
	tests := []struct {
		name     string
		in       CreateQuestionInput
		exists   map[string]bool
		wantCode string
	}{
		{
			name: "Success",
			in:   CreateQuestionInput{Content: "Why?", FromID: profileA, RecipientID: profileB},
		},
		{
			name: "Max Length",
			in:   CreateQuestionInput{Content: strings.Repeat("é", 280), FromID: profileA, RecipientID: profileB},
		},
		{
			name:     "Too Long",
			in:       CreateQuestionInput{Content: strings.Repeat("a", 281), FromID: profileA, RecipientID: profileB},
			wantCode: models.CodeValidation,
		},
		{
			name:     "Empty",
			in:       CreateQuestionInput{Content: "", FromID: profileA, RecipientID: profileB},
			wantCode: models.CodeValidation,
		},
		{
			name:     "Malformed From",
			in:       CreateQuestionInput{Content: "hi", FromID: "alice", RecipientID: profileB},
			wantCode: models.CodeValidation,
		},
		{
			name:     "Malformed Recipient",
			in:       CreateQuestionInput{Content: "hi", FromID: profileA, RecipientID: "42"},
			wantCode: models.CodeValidation,
		},
		{
			name:     "Ask Self",
			in:       CreateQuestionInput{Content: "hi", FromID: profileA, RecipientID: profileA},
			wantCode: models.CodeValidation,
		},
		{
			name:     "Missing Recipient",
			in:       CreateQuestionInput{Content: "hi", FromID: profileA, RecipientID: profileC},
			exists:   map[string]bool{profileA: true},
			wantCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &profileRepoStub{
				existsFn: func(_ context.Context, id string) (bool, error) {
					if tt.exists == nil {
						return true, nil
					}
					return tt.exists[id], nil
				},
			}
			pub := &recordingPublisher{}
			svc := NewQuestionService(&questionRepoStub{}, profiles, pub)

			q, err := svc.Create(context.Background(), tt.in)
			if tt.wantCode != "" {
				assert.Nil(t, q)
				assert.Equal(t, tt.wantCode, models.ErrorCode(err))
				assert.Empty(t, pub.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in.RecipientID, q.RecipientID)
			assert.Equal(t, []events.Type{events.TypeQuestionReceived}, pub.types())
		})
	}
}

func TestQuestionService_AnonymousAskerIsHidden(t *testing.T) {
	stored := models.Question{ID: 1, Content: "secret?", Anonymous: true, FromID: profileA, RecipientID: profileB}
	repo := &questionRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Question, error) {
			q := stored
			return &q, nil
		},
		listFn: func(context.Context, string, int, int) ([]models.Question, error) {
			return []models.Question{stored}, nil
		},
	}
	svc := NewQuestionService(repo, &profileRepoStub{}, nil)
	ctx := context.Background()

	recipient := &models.User{ID: 2, ProfileIDs: []string{profileB}}
	asker := &models.User{ID: 1, ProfileIDs: []string{profileA}}

	q, err := svc.Get(ctx, 1, recipient)
	require.NoError(t, err)
	assert.Empty(t, q.FromID)

	q, err = svc.Get(ctx, 1, asker)
	require.NoError(t, err)
	assert.Equal(t, profileA, q.FromID)

	q, err = svc.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, q.FromID)

	inbox, err := svc.ListReceived(ctx, ListQuestionsInput{ProfileID: profileB, Viewer: recipient})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Empty(t, inbox[0].FromID)

	sent, err := svc.ListAsked(ctx, ListQuestionsInput{ProfileID: profileA, Viewer: asker})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, profileA, sent[0].FromID)
}

func TestQuestionService_AnonymousEventOmitsActor(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewQuestionService(&questionRepoStub{}, &profileRepoStub{}, pub)

	_, err := svc.Create(context.Background(), CreateQuestionInput{
		Content: "who am I?", Anonymous: true, FromID: profileA, RecipientID: profileB,
	})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Empty(t, pub.events[0].ActorID)
	assert.Equal(t, profileB, pub.events[0].ProfileID)
}
