package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"askbox/internal/models"
	"askbox/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

func (e *testEnv) ticket(t *testing.T, token string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON[ticketResponse](t, resp)
	require.NotEmpty(t, out.Ticket)
	return out.Ticket
}

// listen serves the app on a loopback port and returns its ws base URL.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func TestIssueWSTicket(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.signup(t, "alice")

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeJSON[ticketResponse](t, resp)
	assert.Equal(t, int(wsTicketTTL.Seconds()), out.ExpiresIn)

	stored, err := env.mr.Get(wsTicketKey(out.Ticket))
	require.NoError(t, err)
	assert.Equal(t, formatUserID(userID), stored)
	assert.Equal(t, wsTicketTTL, env.mr.TTL(wsTicketKey(out.Ticket)))

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/ws/ticket", "", nil).StatusCode)
}

func TestProfileFeed_Rejections(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.signup(t, "alice")
	bobToken, _ := env.signup(t, "bob")
	alice := env.createProfile(t, aliceToken, "alice_main")

	get := func(path string) int {
		resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/ws/profiles/"+alice.ID))
	assert.Equal(t, http.StatusForbidden, get("/api/ws/profiles/"+alice.ID+"?ticket="+env.ticket(t, bobToken)))
	assert.Equal(t, http.StatusUpgradeRequired, get("/api/ws/profiles/"+alice.ID+"?ticket="+env.ticket(t, aliceToken)))
}

func TestProfileFeed_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "alice")
	p := env.createProfile(t, token, "alice_main")
	env.srv.feedHub = nil

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet,
		"/api/ws/profiles/"+p.ID+"?ticket="+env.ticket(t, token), nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProfileFeed_StreamsEventsUntilProfileDeleted(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.signup(t, "alice")
	bobToken, _ := env.signup(t, "bob")
	alice := env.createProfile(t, aliceToken, "alice_main")
	bob := env.createProfile(t, bobToken, "bob_main")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sub, ok := env.srv.publisher.(notifications.Subscriber)
	require.True(t, ok)
	require.NoError(t, env.srv.feedHub.StartWiring(ctx, sub))

	base := env.listen(t)
	conn, resp, err := websocket.DefaultDialer.Dial(
		base+"/api/ws/profiles/"+alice.ID+"?ticket="+env.ticket(t, aliceToken), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	assert.Eventually(t, func() bool { return env.srv.feedHub.Watchers(alice.ID) == 1 },
		time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusNoContent,
		env.do(t, http.MethodPut, "/api/profiles/"+alice.ID+"/followers/"+bob.ID, bobToken, nil).StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"profile.followed"`)
	assert.Contains(t, string(msg), bob.ID)

	require.Equal(t, http.StatusNoContent,
		env.do(t, http.MethodDelete, "/api/profiles/"+alice.ID, aliceToken, nil).StatusCode)

	// Deleting the profile ends the stream; a late profile.deleted event may
	// arrive first.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
	assert.Zero(t, env.srv.feedHub.Watchers(alice.ID))
}

func TestProfileFeed_ManagerRemovalDisconnects(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.signup(t, "alice")
	bobToken, bobID := env.signup(t, "bob")
	shared := env.createProfile(t, aliceToken, "shared_box")

	managerPath := "/api/users/" + formatUserID(bobID) + "/profiles/" + shared.ID
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, managerPath, aliceToken, nil).StatusCode)

	base := env.listen(t)
	conn, resp, err := websocket.DefaultDialer.Dial(
		base+"/api/ws/profiles/"+shared.ID+"?ticket="+env.ticket(t, bobToken), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	assert.Eventually(t, func() bool { return env.srv.feedHub.Watchers(shared.ID) == 1 },
		time.Second, 10*time.Millisecond)

	resp2 := env.do(t, http.MethodDelete, managerPath, aliceToken, nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Empty(t, decodeJSON[models.User](t, resp2).ProfileIDs)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}
