/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Seednode/imposterbox/games/imposter"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &Config{}
	mux := httprouter.New()
	registerImposterGame(cfg, "/imposter", mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, want int, v any) {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("got status %d, want %d", resp.StatusCode, want)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func createTestSession(t *testing.T, srv *httptest.Server) createSessionResponse {
	t.Helper()

	resp := postJSON(t, srv.URL+"/imposter/lobby", createSessionRequest{
		HostName:      "Ann",
		ImpostorCount: 1,
		Theme:         "space",
	})

	var created createSessionResponse
	decodeInto(t, resp, http.StatusCreated, &created)
	return created
}

func joinTestSession(t *testing.T, srv *httptest.Server, code, name string) joinSessionResponse {
	t.Helper()

	resp := postJSON(t, srv.URL+"/imposter/lobby/"+code+"/join", joinSessionRequest{DisplayName: name})

	var joined joinSessionResponse
	decodeInto(t, resp, http.StatusOK, &joined)
	return joined
}

// Full happy path: create, join twice, start, read every role, end.
func TestAPILifecycle(t *testing.T) {
	srv := newTestServer(t)

	created := createTestSession(t, srv)
	if created.Code == "" || created.HostID == "" {
		t.Fatalf("create response missing identifiers: %+v", created)
	}
	if created.Status != imposter.StatusWaiting || len(created.Players) != 1 {
		t.Fatalf("unexpected create response: %+v", created)
	}

	ben := joinTestSession(t, srv, created.Code, "Ben")
	cid := joinTestSession(t, srv, created.Code, "Cid")
	if len(cid.Players) != 3 {
		t.Fatalf("expected 3 players after joins, got %d", len(cid.Players))
	}

	resp := postJSON(t, srv.URL+"/imposter/lobby/"+created.Code+"/start", actorRequest{ActorID: created.HostID})
	var startView imposter.View
	decodeInto(t, resp, http.StatusOK, &startView)
	if startView.Status != imposter.StatusPlaying || startView.Round == nil {
		t.Fatalf("unexpected start view: %+v", startView)
	}

	impostors, speakers := 0, 0
	for _, id := range []string{created.HostID, ben.PlayerID, cid.PlayerID} {
		get, err := http.Get(srv.URL + "/imposter/lobby/" + created.Code + "/role/" + id)
		if err != nil {
			t.Fatalf("GET role: %v", err)
		}
		var role imposter.Role
		decodeInto(t, get, http.StatusOK, &role)

		switch role.Type {
		case imposter.RoleImpostor:
			impostors++
			if role.Word != "" {
				t.Fatalf("impostor role carries the word: %+v", role)
			}
		case imposter.RoleWordHolder:
			if role.Word == "" {
				t.Fatalf("holder role missing the word: %+v", role)
			}
		default:
			t.Fatalf("unknown role type %q", role.Type)
		}
		if role.IsFirstSpeaker {
			speakers++
		}
	}
	if impostors != 1 || speakers != 1 {
		t.Fatalf("expected 1 impostor and 1 first speaker, got %d/%d", impostors, speakers)
	}

	resp = postJSON(t, srv.URL+"/imposter/lobby/"+created.Code+"/end", actorRequest{ActorID: created.HostID})
	var endView imposter.View
	decodeInto(t, resp, http.StatusOK, &endView)
	if endView.Status != imposter.StatusWaiting || endView.Round != nil || len(endView.Players) != 3 {
		t.Fatalf("unexpected end view: %+v", endView)
	}
}

// The polled session view must never expose round secrets, raw or in JSON.
func TestAPISessionViewRedacted(t *testing.T) {
	srv := newTestServer(t)

	created := createTestSession(t, srv)
	joinTestSession(t, srv, created.Code, "Ben")

	resp := postJSON(t, srv.URL+"/imposter/lobby/"+created.Code+"/start", actorRequest{ActorID: created.HostID})
	decodeInto(t, resp, http.StatusOK, nil)

	get, err := http.Get(srv.URL + "/imposter/lobby/" + created.Code)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	defer get.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(get.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := buf.String()

	for _, secret := range []string{"secretWord", "impostors", "firstSpeaker", "wordHolder", "hostId"} {
		if strings.Contains(body, secret) {
			t.Fatalf("session view leaks %q: %s", secret, body)
		}
	}

	var view imposter.View
	if err := json.Unmarshal(buf.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Round == nil || view.Round.StartedAt.IsZero() {
		t.Fatalf("view must still carry the round start time: %s", body)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	created := createTestSession(t, srv)
	ben := joinTestSession(t, srv, created.Code, "Ben")

	tests := []struct {
		name     string
		do       func() *http.Response
		status   int
		wantKind string
	}{
		{
			name: "unknown session",
			do: func() *http.Response {
				resp, err := http.Get(srv.URL + "/imposter/lobby/ZZZZZZ")
				if err != nil {
					t.Fatalf("GET: %v", err)
				}
				return resp
			},
			status:   http.StatusNotFound,
			wantKind: "NotFound",
		},
		{
			name: "blank host name",
			do: func() *http.Response {
				return postJSON(t, srv.URL+"/imposter/lobby", createSessionRequest{Theme: "space", ImpostorCount: 1})
			},
			status:   http.StatusBadRequest,
			wantKind: "InvalidSettings",
		},
		{
			name: "oversized impostor count",
			do: func() *http.Response {
				return postJSON(t, srv.URL+"/imposter/lobby", createSessionRequest{HostName: "Ann", Theme: "space", ImpostorCount: 9})
			},
			status:   http.StatusBadRequest,
			wantKind: "InvalidSettings",
		},
		{
			name: "start by non-host",
			do: func() *http.Response {
				return postJSON(t, srv.URL+"/imposter/lobby/"+created.Code+"/start", actorRequest{ActorID: ben.PlayerID})
			},
			status:   http.StatusForbidden,
			wantKind: "Forbidden",
		},
		{
			name: "role for stranger",
			do: func() *http.Response {
				resp, err := http.Get(srv.URL + "/imposter/lobby/" + created.Code + "/role/player_stranger")
				if err != nil {
					t.Fatalf("GET: %v", err)
				}
				return resp
			},
			status:   http.StatusNotFound,
			wantKind: "NotAMember",
		},
		{
			name: "role before start",
			do: func() *http.Response {
				resp, err := http.Get(srv.URL + "/imposter/lobby/" + created.Code + "/role/" + ben.PlayerID)
				if err != nil {
					t.Fatalf("GET: %v", err)
				}
				return resp
			},
			status:   http.StatusBadRequest,
			wantKind: "NotActive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got errorResponse
			decodeInto(t, tt.do(), tt.status, &got)
			if got.Error != tt.wantKind {
				t.Fatalf("got kind %q, want %q", got.Error, tt.wantKind)
			}
			if got.Message == "" {
				t.Fatalf("error response missing message")
			}
		})
	}
}

// Scenario: the party fills up with impostors, then shrinks below the
// minimum, and start reports the first failing precondition each time.
func TestAPIStartPreconditions(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/imposter/lobby", createSessionRequest{
		HostName:      "Ann",
		ImpostorCount: 2,
		Theme:         "space",
	})
	var created createSessionResponse
	decodeInto(t, resp, http.StatusCreated, &created)

	start := func() errorResponse {
		resp := postJSON(t, srv.URL+"/imposter/lobby/"+created.Code+"/start", actorRequest{ActorID: created.HostID})
		var got errorResponse
		decodeInto(t, resp, http.StatusBadRequest, &got)
		return got
	}

	if got := start(); got.Error != "InsufficientPlayers" {
		t.Fatalf("solo start: got %q, want InsufficientPlayers", got.Error)
	}

	joinTestSession(t, srv, created.Code, "Ben")
	if got := start(); got.Error != "InvalidPartyState" {
		t.Fatalf("two players, two impostors: got %q, want InvalidPartyState", got.Error)
	}
}

func TestAPIJoinAfterStart(t *testing.T) {
	srv := newTestServer(t)

	created := createTestSession(t, srv)
	joinTestSession(t, srv, created.Code, "Ben")

	resp := postJSON(t, srv.URL+"/imposter/lobby/"+created.Code+"/start", actorRequest{ActorID: created.HostID})
	decodeInto(t, resp, http.StatusOK, nil)

	late := postJSON(t, srv.URL+"/imposter/lobby/"+created.Code+"/join", joinSessionRequest{DisplayName: "Cid"})
	var got errorResponse
	decodeInto(t, late, http.StatusBadRequest, &got)
	if got.Error != "AlreadyStarted" {
		t.Fatalf("got kind %q, want AlreadyStarted", got.Error)
	}
}

func TestAPISessionQR(t *testing.T) {
	srv := newTestServer(t)
	created := createTestSession(t, srv)

	resp, err := http.Get(srv.URL + "/imposter/lobby/" + created.Code + "/qr")
	if err != nil {
		t.Fatalf("GET qr: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("got content type %q", ct)
	}
}

// The watch stream mirrors the redacted view: an initial snapshot on
// connect, then one update per lifecycle change.
func TestAPIWatchStream(t *testing.T) {
	srv := newTestServer(t)

	created := createTestSession(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/imposter/lobby/" + created.Code + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	defer conn.Close()

	var initial imposter.View
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial view: %v", err)
	}
	if initial.Code != created.Code || len(initial.Players) != 1 {
		t.Fatalf("unexpected initial view: %+v", initial)
	}

	joinTestSession(t, srv, created.Code, "Ben")

	var updated imposter.View
	if err := conn.ReadJSON(&updated); err != nil {
		t.Fatalf("read join update: %v", err)
	}
	if len(updated.Players) != 2 {
		t.Fatalf("expected the join broadcast, got %+v", updated)
	}
}

// Broadcasts from racing join handlers and the initial snapshot write all
// target one connection; the per-watcher writer must serialize them so the
// stream survives and the snapshot arrives first.
func TestAPIWatchConcurrentJoins(t *testing.T) {
	srv := newTestServer(t)

	created := createTestSession(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/imposter/lobby/" + created.Code + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watch: %v", err)
	}
	defer conn.Close()

	const joiners = 8
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, _ := json.Marshal(joinSessionRequest{DisplayName: fmt.Sprintf("Player%d", i)})
			resp, err := http.Post(srv.URL+"/imposter/lobby/"+created.Code+"/join", "application/json", bytes.NewReader(raw))
			if err != nil {
				t.Errorf("join %d: %v", i, err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("join %d: status %d", i, resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()

	var initial imposter.View
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial view: %v", err)
	}
	if initial.Code != created.Code || len(initial.Players) != 1 {
		t.Fatalf("expected the pre-join snapshot first, got %+v", initial)
	}

	maxPlayers := 0
	for i := 0; i < joiners; i++ {
		var update imposter.View
		if err := conn.ReadJSON(&update); err != nil {
			t.Fatalf("read update %d: %v", i, err)
		}
		if len(update.Players) > maxPlayers {
			maxPlayers = len(update.Players)
		}
	}
	if maxPlayers != joiners+1 {
		t.Fatalf("expected a view with the full roster, largest had %d players", maxPlayers)
	}
}

func TestAPIRejectsOversizedBody(t *testing.T) {
	srv := newTestServer(t)

	body := fmt.Sprintf(`{"hostName":%q,"impostorCount":1,"theme":"space"}`, strings.Repeat("a", maxRequestBody))
	resp, err := http.Post(srv.URL+"/imposter/lobby", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var got errorResponse
	decodeInto(t, resp, http.StatusBadRequest, &got)
	if got.Error != "InvalidSettings" {
		t.Fatalf("got kind %q, want InvalidSettings", got.Error)
	}
}
