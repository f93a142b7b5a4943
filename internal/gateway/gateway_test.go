package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/crew"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/messaging"
	"github.com/matheus3301/crewchat/internal/metrics"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/status"
	"github.com/matheus3301/crewchat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	srv     *httptest.Server
	tokens  *identity.TokenService
	machine *status.Machine
	client  *messaging.Client
}

// flakyList fails ListMessages while failing is set.
type flakyList struct {
	*store.DB
	failing atomic.Bool
}

func (f *flakyList) ListMessages(ctx context.Context, conversationID, before string, limit int) ([]message.Message, error) {
	if f.failing.Load() {
		return nil, message.E(message.KindTransient, "list messages", errors.New("disk I/O error"))
	}
	return f.DB.ListMessages(ctx, conversationID, before, limit)
}

func newEnv(t *testing.T) *env {
	return newEnvWithStore(t, nil)
}

func newEnvWithStore(t *testing.T, wrap func(*store.DB) messaging.Store) *env {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "crew.db"))
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	m := metrics.New(b)
	tokens := identity.NewTokenService("test-secret", time.Hour)
	var st messaging.Store = db
	if wrap != nil {
		st = wrap(db)
	}
	client := messaging.NewClient(st, b, nil, messaging.DefaultConfig(), messaging.WithObserver(m))
	directory := crew.NewDirectory(db, tokens, nil)
	_, err = directory.EnsureGlobal(context.Background())
	require.NoError(t, err)
	machine := status.NewMachine(b)

	router := NewRouter(Deps{
		Client:    client,
		Directory: directory,
		DB:        db,
		Tracker:   presence.NewTracker(db, b, nil, 0),
		Tokens:    tokens,
		Machine:   machine,
		Metrics:   m.Handler(),
	}, Options{Feed: feed.Options{Location: time.UTC}})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(client.Close)
	return &env{srv: srv, tokens: tokens, machine: machine, client: client}
}

func (e *env) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := e.tokens.CreateForUser(identity.Identity{UID: uid, DisplayName: strings.ToUpper(uid)})
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	var body map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "BOOTING", body["status"])

	require.NoError(t, e.machine.Transition(status.Ready))
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", "", nil, &body))
	assert.Equal(t, "READY", body["status"])
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/conversations", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/conversations", "garbage", nil, nil))

	var me identity.Identity
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/me", e.token(t, "amy"), nil, &me))
	assert.Equal(t, "amy", me.UID)
}

func TestSendListAndFeed(t *testing.T) {
	e := newEnv(t)
	amy := e.token(t, "amy")

	var conv message.Conversation
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/crews/local-46/channels", amy, nil, &conv))
	require.Equal(t, "crew:local-46:general", conv.ID)

	base := "/api/conversations/" + conv.ID
	var bad errorBody
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, base+"/messages", amy, sendRequest{Content: " "}, &bad))
	assert.Equal(t, message.KindValidation, bad.Kind)

	for _, text := range []string{"on site", "need a ladder"} {
		var sent sendResponse
		require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, base+"/messages", amy, sendRequest{Content: text, Wait: true}, &sent))
		assert.Equal(t, message.StatusSent, sent.Message.Status)
	}

	var list struct {
		Messages []message.Message `json:"messages"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, base+"/messages", amy, nil, &list))
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "on site", list.Messages[0].Content)

	var fd struct {
		Items []feed.Item `json:"items"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, base+"/feed", amy, nil, &fd))
	require.Len(t, fd.Items, 3)
	assert.Equal(t, "separator", fd.Items[0].Type)
	assert.True(t, fd.Items[1].StartsGroup)
	assert.False(t, fd.Items[2].StartsGroup)

	var search struct {
		Results []struct {
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/search?q=ladder", amy, nil, &search))
	require.Len(t, search.Results, 1)
	assert.Contains(t, search.Results[0].Snippet, "<<ladder>>")

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, base+"/messages", e.token(t, "bo"), nil, nil))
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/conversations/crew:x:general/messages", amy, nil, nil))
}

func TestInviteFlowAndPresence(t *testing.T) {
	e := newEnv(t)
	amy, bo := e.token(t, "amy"), e.token(t, "bo")

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/crews/local-46/channels", amy, nil, nil))
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/crews/local-46/members", bo, nil, nil))

	var invite struct {
		Token string `json:"token"`
	}
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/crews/local-46/invites", amy, map[string]int{"ttl_seconds": 600}, &invite))
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/crews/join", bo, map[string]string{"invite_token": invite.Token}, nil))

	var members struct {
		Members []message.Member `json:"members"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/crews/local-46/members", bo, nil, &members))
	assert.Len(t, members.Members, 2)

	var rec presence.Record
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/crews/local-46/presence", bo, map[string]bool{"online": true}, &rec))
	assert.True(t, rec.IsOnline)

	var recs struct {
		Records []presence.Record `json:"records"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/crews/local-46/presence", amy, nil, &recs))
	require.Len(t, recs.Records, 1)
	assert.Equal(t, "bo", recs.Records[0].UserID)

	var dm message.Conversation
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/direct", bo, map[string]string{"user_id": "amy"}, &dm))
	assert.Equal(t, "dm:amy:bo", dm.ID)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	amy := e.token(t, "amy")
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/conversations/global/messages", amy, sendRequest{Content: "hello", Wait: true}, nil))

	resp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), "crewchat_messages_sent_total 1")
}

func TestWebSocketSnapshots(t *testing.T) {
	e := newEnv(t)
	amy := e.token(t, "amy")

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/conversations/global"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + amy}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Frame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	assert.Empty(t, first.Messages)

	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/api/conversations/global/messages", amy, sendRequest{Content: "roll call"}, nil))

	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		require.Equal(t, "snapshot", f.Type)
		if len(f.Messages) == 1 && f.Messages[0].Status == message.StatusSent {
			assert.Equal(t, "roll call", f.Messages[0].Content)
			break
		}
	}
}

func TestWebSocketRejectsUnauthorized(t *testing.T) {
	e := newEnv(t)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/conversations/dm:amy:bo"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + e.token(t, "cat")}})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketErrorFrameOnFailure(t *testing.T) {
	flaky := &flakyList{}
	e := newEnvWithStore(t, func(db *store.DB) messaging.Store {
		flaky.DB = db
		return flaky
	})
	amy := e.token(t, "amy")

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/conversations/global"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + amy}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Frame
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "snapshot", first.Type)

	flaky.failing.Store(true)
	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/api/conversations/global/messages", amy, sendRequest{Content: "anyone?"}, nil))

	var last Frame
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		last = f
	}
	assert.Equal(t, "error", last.Type)
	assert.True(t, last.Reconnect)
	assert.Equal(t, message.KindTransient, last.Kind)
}

func TestWebSocketEndsWhenClientCloses(t *testing.T) {
	e := newEnv(t)
	amy := e.token(t, "amy")

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/conversations/global"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + amy}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Frame
	require.NoError(t, conn.ReadJSON(&first))

	e.client.Close()
	var f Frame
	err = conn.ReadJSON(&f)
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrDeadlineExceeded), "socket stayed open: %v", err)
}
