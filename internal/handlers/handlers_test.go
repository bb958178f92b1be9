package handlers

import (
	"bytes"
	"context"
	"editorchat-backend/internal/attachments"
	"editorchat-backend/internal/commands"
	"editorchat-backend/internal/database"
	"editorchat-backend/internal/identity"
	"editorchat-backend/internal/jwt"
	"editorchat-backend/internal/keyValue"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/poll"
	"editorchat-backend/internal/store"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type testServer struct {
	handler http.Handler
	store   *store.Store
	author  models.User
	editor  models.User
	admin   models.User
	general models.Channel
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	sugar := zap.NewNop().Sugar()
	keyValue.Setup(sugar, nil, true)
	if err := jwt.Setup(strings.Repeat("k", 32), false); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	db, err := database.OpenSqlite(sugar, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := store.New(db, store.Options{Sugar: sugar})
	if err != nil {
		t.Fatal(err)
	}

	Setup(Dependencies{
		Sugar:       sugar,
		Processor:   commands.New(s, keyValue.Locker{}, sugar),
		Reader:      poll.New(s, 50),
		Users:       identity.New(s, sugar),
		Attachments: attachments.New(filepath.Join(dir, "attachments"), 1024),
	})

	ts := testServer{
		handler: Router(&models.ConfigFile{BehindNginx: true}),
		store:   s,
	}

	ctx := context.Background()
	hash, err := identity.HashPassword("deadline")
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []struct {
		dst  *models.User
		user models.User
	}{
		{&ts.author, models.User{Email: "author@example.com", DisplayName: "Ann", Role: models.RoleAuthor, Password: hash}},
		{&ts.editor, models.User{Email: "editor@example.com", DisplayName: "Eve", Role: models.RoleEditor}},
		{&ts.admin, models.User{Email: "admin@example.com", DisplayName: "Ada", Role: models.RoleAdmin}},
	} {
		created, err := s.CreateUser(ctx, u.user)
		if err != nil {
			t.Fatal(err)
		}
		*u.dst = created
	}

	ts.general, err = s.CreateChannel(ctx, models.Channel{Slug: "general", Name: "General"})
	if err != nil {
		t.Fatal(err)
	}

	return ts
}

func (ts testServer) do(t *testing.T, user models.User, method string, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
	}

	r := httptest.NewRequest(method, target, bytes.NewReader(payload))
	if user.ID != 0 {
		cookie, err := jwt.CreateSession(user.ID, false, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		r.AddCookie(&cookie)
	}

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return v
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, models.User{}, "POST", "/api/auth/login", map[string]string{"email": "author@example.com", "password": "deadline"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	if cookies := w.Result().Cookies(); len(cookies) != 1 || cookies[0].Name != jwt.CookieName {
		t.Errorf("cookies = %+v", cookies)
	}

	w = ts.do(t, models.User{}, "POST", "/api/auth/login", map[string]string{"email": "author@example.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", w.Code)
	}

	w = ts.do(t, models.User{}, "POST", "/api/auth/login", map[string]string{"email": "not-an-email", "password": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid email status = %d", w.Code)
	}

	w = ts.do(t, models.User{}, "GET", "/api/auth/isLoggedIn", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no cookie status = %d", w.Code)
	}
}

func TestLogoutDropsCachedUser(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	key := "user:" + idString(ts.author.ID)

	if w := ts.do(t, ts.author, "GET", "/api/auth/isLoggedIn", nil); w.Code != http.StatusOK {
		t.Fatalf("isLoggedIn status = %d", w.Code)
	}
	if cached, _ := keyValue.Get(ctx, key); cached == "" {
		t.Fatal("user was not cached by the request")
	}

	w := ts.do(t, ts.author, "POST", "/api/auth/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}
	if cached, _ := keyValue.Get(ctx, key); cached != "" {
		t.Errorf("cached user after logout = %q", cached)
	}
}

func TestMessageLifecycle(t *testing.T) {
	ts := newTestServer(t)
	conv := models.ChannelConversation(ts.general.ID).Key()

	w := ts.do(t, ts.author, "POST", "/api/message/create", map[string]string{"conversation": conv, "body": "Check this @Eve"})
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	a := decode[models.Message](t, w)
	if len(a.Mentions) != 1 || a.Mentions[0] != ts.editor.ID {
		t.Errorf("mentions = %v", a.Mentions)
	}

	w = ts.do(t, ts.editor, "POST", "/api/message/poll", map[string]any{"conversation": conv})
	first := decode[poll.Result](t, w)
	if len(first.NewMessages) != 1 || first.NewMessages[0].ID != a.ID {
		t.Fatalf("first poll = %+v", first)
	}

	w = ts.do(t, ts.editor, "POST", "/api/message/react", map[string]string{"messageID": idString(a.ID), "emoji": "🔥"})
	if w.Code != http.StatusOK {
		t.Fatalf("react status = %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, ts.editor, "POST", "/api/message/create", map[string]string{"conversation": conv, "body": "On it", "parentID": idString(a.ID)})
	b := decode[models.Message](t, w)

	w = ts.do(t, ts.editor, "POST", "/api/message/poll", map[string]any{"conversation": conv, "cursor": first.Cursor, "visible": models.IDs{a.ID}})
	second := decode[poll.Result](t, w)
	if len(second.NewMessages) != 1 || second.NewMessages[0].ID != b.ID {
		t.Errorf("new = %+v", second.NewMessages)
	}
	if len(second.MutatedMessages) != 1 || len(second.MutatedMessages[0].Reactions) != 1 {
		t.Errorf("mutated = %+v", second.MutatedMessages)
	}

	w = ts.do(t, ts.editor, "POST", "/api/message/edit", map[string]string{"messageID": idString(a.ID), "body": "hijack"})
	if w.Code != http.StatusForbidden {
		t.Errorf("edit by other status = %d", w.Code)
	}

	w = ts.do(t, ts.author, "POST", "/api/message/delete", map[string]string{"messageID": idString(a.ID)})
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = ts.do(t, ts.editor, "POST", "/api/message/poll", map[string]any{"conversation": conv, "cursor": second.Cursor})
	third := decode[poll.Result](t, w)
	if len(third.DeletedIDs) != 1 || third.DeletedIDs[0] != a.ID {
		t.Errorf("deleted = %v", third.DeletedIDs)
	}

	w = ts.do(t, ts.author, "POST", "/api/message/edit", map[string]string{"messageID": idString(a.ID), "body": "again"})
	if w.Code != http.StatusNotFound {
		t.Errorf("edit deleted status = %d", w.Code)
	}
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	dm := models.DirectConversation(ts.author.ID, ts.editor.ID).Key()

	w := ts.do(t, ts.author, "POST", "/api/message/create", map[string]string{"conversation": dm, "body": "psst"})
	msg := decode[models.Message](t, w)

	tests := []struct {
		name   string
		user   models.User
		method string
		target string
		body   any
		status int
		code   string
	}{
		{"Pin in direct message", ts.author, "POST", "/api/message/pin", map[string]string{"messageID": idString(msg.ID)}, http.StatusBadRequest, "validation"},
		{"Poll someone else's DM", ts.admin, "POST", "/api/message/poll", map[string]any{"conversation": dm}, http.StatusForbidden, "permission"},
		{"Malformed conversation", ts.author, "POST", "/api/message/create", map[string]string{"conversation": "room:1", "body": "x"}, http.StatusBadRequest, "validation"},
		{"Channel create as author", ts.author, "POST", "/api/channel/create", map[string]any{"slug": "ops", "name": "Ops"}, http.StatusForbidden, "permission"},
		{"Unknown message thread", ts.author, "GET", "/api/message/thread?messageID=99", nil, http.StatusNotFound, "not_found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, tc.user, tc.method, tc.target, tc.body)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.status, w.Body.String())
			}
			if got := decode[errorResponse](t, w); got.Error != tc.code {
				t.Errorf("error = %q, want %q", got.Error, tc.code)
			}
		})
	}
}

func TestChannelsAndConversations(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, ts.admin, "POST", "/api/channel/create", map[string]any{"slug": "desk", "name": "Desk", "color": "#aa00ff", "isPrivate": true, "allowedRoles": []string{"editor"}})
	if w.Code != http.StatusOK {
		t.Fatalf("create channel status = %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, ts.author, "GET", "/api/channel/fetch", nil)
	if channels := decode[[]models.Channel](t, w); len(channels) != 1 {
		t.Errorf("author sees %+v", channels)
	}
	w = ts.do(t, ts.editor, "GET", "/api/channel/fetch", nil)
	if channels := decode[[]models.Channel](t, w); len(channels) != 2 {
		t.Errorf("editor sees %+v", channels)
	}

	w = ts.do(t, ts.author, "POST", "/api/conversation/open", map[string]string{"peerID": idString(ts.editor.ID)})
	if w.Code != http.StatusOK {
		t.Fatalf("open status = %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, ts.editor, "GET", "/api/conversation/fetch", nil)
	summaries := decode[[]models.ConversationSummary](t, w)
	if len(summaries) != 3 {
		t.Errorf("summaries = %+v", summaries)
	}

	w = ts.do(t, ts.author, "GET", "/api/members/complete?q=@e", nil)
	type suggestion struct {
		DisplayName string `json:"displayName"`
	}
	if got := decode[[]suggestion](t, w); len(got) != 1 || got[0].DisplayName != "Eve" {
		t.Errorf("suggestions = %+v", got)
	}

	w = ts.do(t, ts.author, "GET", "/api/members/fetch", nil)
	members := decode[[]models.Member](t, w)
	online := 0
	for _, member := range members {
		if member.Online {
			online++
		}
	}
	// everyone who made a request above
	if online != 3 {
		t.Errorf("online members = %d, want 3", online)
	}
}
