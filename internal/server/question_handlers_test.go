package server

import (
	"fmt"
	"net/http"
	"testing"

	"askbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type questionFixture struct {
	env                  *testEnv
	aliceToken, bobToken string
	alice, bob           models.Profile
}

func newQuestionFixture(t *testing.T) *questionFixture {
	env := newTestEnv(t)
	f := &questionFixture{env: env}
	f.aliceToken, _ = env.signup(t, "alice")
	f.bobToken, _ = env.signup(t, "bob")
	f.alice = env.createProfile(t, f.aliceToken, "alice_main")
	f.bob = env.createProfile(t, f.bobToken, "bob_main")
	return f
}

func (f *questionFixture) ask(t *testing.T, content string, anonymous bool) models.Question {
	t.Helper()
	resp := f.env.do(t, http.MethodPost, "/api/questions", f.bobToken, map[string]any{
		"from": f.bob.ID, "recipient": f.alice.ID, "content": content, "anonymous": anonymous,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeJSON[models.Question](t, resp)
}

func TestCreateQuestion(t *testing.T) {
	f := newQuestionFixture(t)

	q := f.ask(t, "favourite colour?", false)
	assert.Equal(t, f.bob.ID, q.FromID)
	assert.Equal(t, f.alice.ID, q.RecipientID)

	tests := []struct {
		name   string
		token  string
		body   map[string]any
		status int
	}{
		{"ask as someone else", f.aliceToken, map[string]any{
			"from": f.bob.ID, "recipient": f.alice.ID, "content": "spoof",
		}, http.StatusForbidden},
		{"ask yourself", f.bobToken, map[string]any{
			"from": f.bob.ID, "recipient": f.bob.ID, "content": "hmm",
		}, http.StatusBadRequest},
		{"empty", f.bobToken, map[string]any{
			"from": f.bob.ID, "recipient": f.alice.ID, "content": "",
		}, http.StatusBadRequest},
		{"no token", "", map[string]any{
			"from": f.bob.ID, "recipient": f.alice.ID, "content": "hi",
		}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.env.do(t, http.MethodPost, "/api/questions", tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestGetQuestion_AnonymousAskerIsHidden(t *testing.T) {
	f := newQuestionFixture(t)
	q := f.ask(t, "secret admirer here", true)
	path := fmt.Sprintf("/api/questions/%d", q.ID)

	tests := []struct {
		name  string
		token string
		from  string
	}{
		{"anonymous caller", "", ""},
		{"recipient manager", f.aliceToken, ""},
		{"asker manager", f.bobToken, f.bob.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.env.do(t, http.MethodGet, path, tt.token, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			got := decodeJSON[models.Question](t, resp)
			assert.True(t, got.Anonymous)
			assert.Equal(t, tt.from, got.FromID)
		})
	}

	assert.Equal(t, http.StatusNotFound, f.env.do(t, http.MethodGet, "/api/questions/9999", "", nil).StatusCode)
}

func TestListQuestions(t *testing.T) {
	f := newQuestionFixture(t)
	f.ask(t, "first", false)
	f.ask(t, "second", true)

	resp := f.env.do(t, http.MethodGet, "/api/profiles/"+f.alice.ID+"/questions", f.aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inbox := decodeJSON[[]models.Question](t, resp)
	require.Len(t, inbox, 2)
	assert.Equal(t, "second", inbox[0].Content)
	assert.Empty(t, inbox[0].FromID)
	assert.Equal(t, f.bob.ID, inbox[1].FromID)

	resp = f.env.do(t, http.MethodGet, "/api/profiles/"+f.alice.ID+"/questions?limit=1&offset=1", f.aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeJSON[[]models.Question](t, resp)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Content)

	assert.Equal(t, http.StatusForbidden,
		f.env.do(t, http.MethodGet, "/api/profiles/"+f.alice.ID+"/questions", f.bobToken, nil).StatusCode)

	resp = f.env.do(t, http.MethodGet, "/api/profiles/"+f.bob.ID+"/questions/asked", f.bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	asked := decodeJSON[[]models.Question](t, resp)
	require.Len(t, asked, 2)
	for _, q := range asked {
		assert.Equal(t, f.bob.ID, q.FromID)
	}
}

func TestDeleteQuestion_OnlyRecipient(t *testing.T) {
	f := newQuestionFixture(t)
	q := f.ask(t, "delete me", false)
	path := fmt.Sprintf("/api/questions/%d", q.ID)

	assert.Equal(t, http.StatusForbidden, f.env.do(t, http.MethodDelete, path, f.bobToken, nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, f.env.do(t, http.MethodDelete, path, f.aliceToken, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, f.env.do(t, http.MethodGet, path, "", nil).StatusCode)
}
