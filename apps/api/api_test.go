package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/correction"
	"github.com/kayesmahmud/Speaky/pkg/messages"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"go.uber.org/zap"
)

type apiFixture struct {
	srv     *httptest.Server
	store   *store.Memory
	jwt     *auth.JWT
	a, b, c *model.User
	conn    *model.Connection
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	f := &apiFixture{store: s, jwt: auth.NewJWT("api-secret")}
	f.a, _ = s.CreateUser(ctx, "ana")
	f.b, _ = s.CreateUser(ctx, "ben")
	f.c, _ = s.CreateUser(ctx, "cai")
	f.conn, _ = s.CreateConnection(ctx, f.a.ID, f.b.ID)
	_ = s.UpdateConnectionStatus(ctx, f.conn.ID, model.StatusAccepted)

	api := &server{
		messages:    messages.NewService(s, 20),
		corrections: correction.NewService(s),
		presence:    storePresence{users: s},
		verifier:    f.jwt,
		log:         zap.NewNop(),
	}
	f.srv = httptest.NewServer(api.routes())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, user *model.User, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, f.srv.URL+path, &buf)
	if user != nil {
		token, err := f.jwt.GenerateToken(user.ID, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthzIsPublic(t *testing.T) {
	f := newAPI(t)
	if code := f.do(t, nil, http.MethodGet, "/healthz", nil, nil); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
	if code := f.do(t, nil, http.MethodGet, "/api/messages/unread", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated = %d", code)
	}
}

func TestMessagesFlow(t *testing.T) {
	f := newAPI(t)
	path := fmt.Sprintf("/api/connections/%d/messages", f.conn.ID)

	var sent model.MessagePayload
	if code := f.do(t, f.a, http.MethodPost, path, sendRequest{Content: "hola"}, &sent); code != http.StatusCreated {
		t.Fatalf("send = %d", code)
	}
	if sent.Content != "hola" || sent.SenderID != f.a.ID || sent.Type != model.TypeText {
		t.Fatalf("sent = %+v", sent)
	}

	var history []model.MessagePayload
	if code := f.do(t, f.b, http.MethodGet, path, nil, &history); code != http.StatusOK || len(history) != 1 {
		t.Fatalf("history = %d %+v", code, history)
	}

	var unread map[string]int
	f.do(t, f.b, http.MethodGet, path+"/unread", nil, &unread)
	if unread["unread_count"] != 1 {
		t.Fatalf("unread = %v", unread)
	}
	var total map[string]int
	f.do(t, f.b, http.MethodGet, "/api/messages/unread", nil, &total)
	if total["total_unread_count"] != 1 {
		t.Fatalf("total = %v", total)
	}

	var marked map[string]int
	if code := f.do(t, f.b, http.MethodPost, path+"/read", nil, &marked); code != http.StatusOK || marked["marked_read"] != 1 {
		t.Fatalf("read = %d %v", code, marked)
	}
	f.do(t, f.b, http.MethodGet, path+"/unread", nil, &unread)
	if unread["unread_count"] != 0 {
		t.Fatalf("unread after read = %v", unread)
	}
}

func TestMessagesErrors(t *testing.T) {
	f := newAPI(t)
	path := fmt.Sprintf("/api/connections/%d/messages", f.conn.ID)

	var body map[string]string
	if code := f.do(t, f.c, http.MethodGet, path, nil, &body); code != http.StatusForbidden || body["error"] == "" {
		t.Fatalf("outsider = %d %v", code, body)
	}
	if code := f.do(t, f.a, http.MethodPost, path, sendRequest{Content: " "}, nil); code != http.StatusBadRequest {
		t.Fatalf("blank = %d", code)
	}
	if code := f.do(t, f.a, http.MethodPost, path, sendRequest{Content: "hi", Type: "video"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad type = %d", code)
	}
	if code := f.do(t, f.a, http.MethodPost, path, sendRequest{Content: "this line is longer than twenty"}, nil); code != http.StatusBadRequest {
		t.Fatalf("too long = %d", code)
	}
	if code := f.do(t, f.a, http.MethodGet, "/api/connections/999/messages", nil, nil); code != http.StatusForbidden {
		t.Fatalf("missing connection = %d", code)
	}
}

func TestCorrectionsFlow(t *testing.T) {
	f := newAPI(t)
	msg, _ := f.store.CreateMessage(context.Background(), model.NewMessage{ConnectionID: f.conn.ID, SenderID: f.a.ID, Content: "I go to school", Type: model.TypeText})

	req := correction.Create{MessageID: msg.ID, CorrectedText: "I went to school"}
	if code := f.do(t, f.a, http.MethodPost, "/api/corrections", req, nil); code != http.StatusForbidden {
		t.Fatalf("own message = %d", code)
	}
	if code := f.do(t, f.c, http.MethodPost, "/api/corrections", req, nil); code != http.StatusForbidden {
		t.Fatalf("outsider = %d", code)
	}

	var created correction.View
	if code := f.do(t, f.b, http.MethodPost, "/api/corrections", req, &created); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if created.OriginalText != "I go to school" || len(created.Diff) != 4 {
		t.Fatalf("created = %+v", created)
	}

	var list []correction.View
	f.do(t, f.a, http.MethodGet, fmt.Sprintf("/api/corrections/message/%d", msg.ID), nil, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}
	var mine []correction.View
	f.do(t, f.a, http.MethodGet, "/api/corrections/my", nil, &mine)
	if len(mine) != 1 || mine[0].Message == nil || mine[0].Message.ID != msg.ID {
		t.Fatalf("mine = %+v", mine)
	}

	path := fmt.Sprintf("/api/corrections/%d", created.ID)
	if code := f.do(t, f.a, http.MethodDelete, path, nil, nil); code != http.StatusForbidden {
		t.Fatalf("delete by non-author = %d", code)
	}
	var ok map[string]bool
	if code := f.do(t, f.b, http.MethodDelete, path, nil, &ok); code != http.StatusOK || !ok["success"] {
		t.Fatalf("delete = %d %v", code, ok)
	}
	if code := f.do(t, f.b, http.MethodDelete, path, nil, nil); code != http.StatusNotFound {
		t.Fatalf("second delete = %d", code)
	}
}

func TestUserPresence(t *testing.T) {
	f := newAPI(t)

	var resp presenceResponse
	if code := f.do(t, f.a, http.MethodGet, "/api/users/404/presence", nil, &resp); code != http.StatusOK || resp.Online || resp.LastSeen != nil {
		t.Fatalf("unknown user = %d %+v", code, resp)
	}

	online := true
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	_ = f.store.UpdateUser(context.Background(), f.b.ID, model.UserPatch{IsOnline: &online, LastActive: &at})
	f.do(t, f.a, http.MethodGet, fmt.Sprintf("/api/users/%d/presence", f.b.ID), nil, &resp)
	if !resp.Online || resp.UserID != f.b.ID || resp.LastSeen == nil || *resp.LastSeen != "2026-05-01T09:30:00.000Z" {
		t.Fatalf("presence = %+v", resp)
	}
}

func TestPreflightGetsCORSHeaders(t *testing.T) {
	f := newAPI(t)
	req, _ := http.NewRequest(http.MethodOptions, fmt.Sprintf("%s/api/connections/%d/messages", f.srv.URL, f.conn.ID), nil)
	req.Header.Set("Origin", "https://speaky.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Fatalf("Access-Control-Allow-Headers = %q", got)
	}
}

func TestCORSHeadersOnResponses(t *testing.T) {
	f := newAPI(t)
	resp, err := http.Get(f.srv.URL + "/api/messages/unread")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("status = %d, allow-origin = %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
