// Imposterbox Word Imposter Game
//
// One player creates a session and shares its code; the rest join with a
// display name. When the host starts the round, the server asks the word
// service for a secret word matching the session's theme, deals roles
// (word holders see the word, impostors see each other), and picks a first
// speaker. Clients poll the session and fetch only their own role, so no
// honest client can read another player's secret.
//
// Features:
// - JSON API per session code: create, join, fetch, start, end, role fetch
// - Full-session view never includes the word, the impostor set, or roles
// - Host-only start with pre- and post-word-call validation
// - End is idempotent and keeps the roster for a rematch
// - Sessions auto-reaped after configurable idle timeout
// - Random session codes from an ambiguity-free alphabet, collision-checked
// - In-browser QR button to share the current session, backed by go-qrcode
// - Optional websocket watch stream mirroring the polled view

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/Seednode/imposterbox/games/imposter"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// External interface bounds.
const (
	maxNameLength    = 50
	maxThemeLength   = 200
	maxImpostorCount = 5
	maxRequestBody   = 4096
)

type createSessionRequest struct {
	HostName      string `json:"hostName"`
	ImpostorCount int    `json:"impostorCount"`
	Theme         string `json:"theme"`
}

type joinSessionRequest struct {
	DisplayName string `json:"displayName"`
}

type actorRequest struct {
	ActorID string `json:"actorId"`
}

type createSessionResponse struct {
	Code     string            `json:"code"`
	HostID   string            `json:"hostId"`
	Status   imposter.Status   `json:"status"`
	Players  []imposter.Player `json:"players"`
	Settings imposter.Settings `json:"settings"`
}

type joinSessionResponse struct {
	Code     string            `json:"code"`
	PlayerID string            `json:"playerId"`
	Status   imposter.Status   `json:"status"`
	Players  []imposter.Player `json:"players"`
	Settings imposter.Settings `json:"settings"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorKind maps engine sentinels to stable machine-readable kinds.
func errorKind(err error) string {
	switch {
	case errors.Is(err, imposter.ErrInvalidSettings):
		return "InvalidSettings"
	case errors.Is(err, imposter.ErrNotFound):
		return "NotFound"
	case errors.Is(err, imposter.ErrAlreadyStarted):
		return "AlreadyStarted"
	case errors.Is(err, imposter.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, imposter.ErrNotWaiting):
		return "NotWaiting"
	case errors.Is(err, imposter.ErrInsufficientPlayers):
		return "InsufficientPlayers"
	case errors.Is(err, imposter.ErrInvalidPartyState):
		return "InvalidPartyState"
	case errors.Is(err, imposter.ErrNotActive):
		return "NotActive"
	case errors.Is(err, imposter.ErrNotAMember):
		return "NotAMember"
	default:
		return "Internal"
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, imposter.ErrNotFound), errors.Is(err, imposter.ErrNotAMember):
		return http.StatusNotFound
	case errors.Is(err, imposter.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, imposter.ErrRoleMissing):
		return http.StatusInternalServerError
	case errors.Is(err, imposter.ErrInvalidSettings),
		errors.Is(err, imposter.ErrAlreadyStarted),
		errors.Is(err, imposter.ErrNotWaiting),
		errors.Is(err, imposter.ErrInsufficientPlayers),
		errors.Is(err, imposter.ErrInvalidPartyState),
		errors.Is(err, imposter.ErrNotActive):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(cfg *Config, w http.ResponseWriter, err error) {
	status := errorStatus(err)
	kind := errorKind(err)

	// Internal invariant violations are logged, never explained to players.
	if status == http.StatusInternalServerError {
		logf(cfg, "ERROR: %v", err)
		writeJSON(cfg, w, status, errorResponse{
			Error:   "Internal",
			Message: "An error has occurred. Please try again.",
		})
		return
	}

	writeJSON(cfg, w, status, errorResponse{Error: kind, Message: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody)).Decode(v)
}

// imposterGame bundles the engine with the watch hub for route handlers.
type imposterGame struct {
	sessions *imposter.Sessions
	hub      *watchHub
}

func serveCreateSession(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createSessionRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "invalid JSON body"})
			return
		}

		req.HostName = strings.TrimSpace(req.HostName)
		req.Theme = strings.TrimSpace(req.Theme)
		switch {
		case req.HostName == "" || len(req.HostName) > maxNameLength:
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "hostName is required and must be at most 50 characters"})
			return
		case req.Theme == "" || len(req.Theme) > maxThemeLength:
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "theme is required and must be at most 200 characters"})
			return
		case req.ImpostorCount < 1 || req.ImpostorCount > maxImpostorCount:
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "impostorCount must be between 1 and 5"})
			return
		}

		sess, err := g.sessions.Create(req.HostName, imposter.Settings{
			ImpostorCount: req.ImpostorCount,
			Theme:         req.Theme,
		})
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		logf(cfg, "GAMES: Session %s created by %q", sess.Code, req.HostName)

		writeJSON(cfg, w, http.StatusCreated, createSessionResponse{
			Code:     sess.Code,
			HostID:   sess.HostID,
			Status:   sess.Status,
			Players:  sess.Players,
			Settings: sess.Settings,
		})
	}
}

func serveJoinSession(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := p.ByName("code")

		var req joinSessionRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "invalid JSON body"})
			return
		}

		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.DisplayName == "" || len(req.DisplayName) > maxNameLength {
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "displayName is required and must be at most 50 characters"})
			return
		}

		sess, playerID, err := g.sessions.Join(code, req.DisplayName)
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		logf(cfg, "GAMES: Player %q joined %s", req.DisplayName, code)
		g.hub.broadcast(code, sess.View())

		writeJSON(cfg, w, http.StatusOK, joinSessionResponse{
			Code:     sess.Code,
			PlayerID: playerID,
			Status:   sess.Status,
			Players:  sess.Players,
			Settings: sess.Settings,
		})
	}
}

func serveGetSession(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		sess, err := g.sessions.Get(p.ByName("code"))
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, sess.View())
	}
}

func serveStartSession(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := p.ByName("code")

		var req actorRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "invalid JSON body"})
			return
		}

		sess, err := g.sessions.Start(r.Context(), code, req.ActorID)
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		logf(cfg, "GAMES: Session %s started with %d players, %d impostors",
			code, len(sess.Players), sess.Settings.ImpostorCount)
		g.hub.broadcast(code, sess.View())

		writeJSON(cfg, w, http.StatusOK, sess.View())
	}
}

func serveEndSession(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := p.ByName("code")

		var req actorRequest
		if err := decodeBody(r, &req); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "InvalidSettings", Message: "invalid JSON body"})
			return
		}

		sess, err := g.sessions.End(code)
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		logf(cfg, "GAMES: Session %s ended", code)
		g.hub.broadcast(code, sess.View())

		writeJSON(cfg, w, http.StatusOK, sess.View())
	}
}

func serveRole(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		role, err := g.sessions.Role(p.ByName("code"), p.ByName("playerid"))
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		writeJSON(cfg, w, http.StatusOK, role)
	}
}

// serveSessionQR generates a PNG QR code for the session's join URL.
func serveSessionQR(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := p.ByName("code")

		if _, err := g.sessions.Get(code); err != nil {
			writeError(cfg, w, err)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at .../:code/qr; strip trailing "/qr" to get the session URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			writeJSON(cfg, w, http.StatusInternalServerError, errorResponse{Error: "Internal", Message: "qr generation failed"})
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// watcher is one websocket subscriber. All writes to the connection go
// through send, drained by a single goroutine, since the connection allows
// only one concurrent writer.
type watcher struct {
	conn *websocket.Conn
	send chan imposter.View
}

// watchHub fans the redacted full-session view out to websocket watchers.
// Polling stays the canonical protocol; the watch stream carries nothing a
// poller would not see.
type watchHub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]bool
}

func newWatchHub() *watchHub {
	return &watchHub{watchers: make(map[string]map[*watcher]bool)}
}

func (h *watchHub) add(code string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[code] == nil {
		h.watchers[code] = make(map[*watcher]bool)
	}
	h.watchers[code][w] = true
}

// remove unregisters a watcher and closes its send channel, ending its
// writer goroutine. Safe to call after the hub already dropped it.
func (h *watchHub) remove(code string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[code][w] {
		delete(h.watchers[code], w)
		close(w.send)
	}
	if len(h.watchers[code]) == 0 {
		delete(h.watchers, code)
	}
}

func (h *watchHub) broadcast(code string, view imposter.View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[code] {
		select {
		case w.send <- view:
		default:
			// Watcher can't keep up; drop it rather than block the game.
			delete(h.watchers[code], w)
			close(w.send)
		}
	}
	if len(h.watchers[code]) == 0 {
		delete(h.watchers, code)
	}
}

func serveWatchSession(cfg *Config, g *imposterGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code := p.ByName("code")

		sess, err := g.sessions.Get(code)
		if err != nil {
			writeError(cfg, w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade: %v", err)
			return
		}

		wt := &watcher{conn: conn, send: make(chan imposter.View, 16)}

		// Queue the initial snapshot before registering, so it always lands
		// ahead of any broadcast update.
		wt.send <- sess.View()
		g.hub.add(code, wt)

		// Sole writer for this connection.
		go func() {
			for view := range wt.send {
				if err := wt.conn.WriteJSON(view); err != nil {
					break
				}
			}
			_ = wt.conn.Close()
		}()

		defer func() {
			g.hub.remove(code, wt)
			_ = conn.Close()
		}()

		// Watchers only listen; drain until the peer goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// newWordSource picks the configured word service, or the offline pool when
// no key is set.
func newWordSource(cfg *Config) imposter.WordSource {
	if cfg.wordAPIKey == "" {
		return &imposter.StaticWords{}
	}
	return &imposter.APIWords{
		APIKey:  cfg.wordAPIKey,
		Model:   cfg.wordModel,
		BaseURL: cfg.wordAPIURL,
		Timeout: cfg.wordTimeout,
	}
}

// registerImposterGame sets up routes so that:
//   - POST $path/lobby                      → create session
//   - POST $path/lobby/:code/join           → join session
//   - GET  $path/lobby/:code                → full-session view
//   - POST $path/lobby/:code/start          → start round (host only)
//   - POST $path/lobby/:code/end            → end round
//   - GET  $path/lobby/:code/role/:playerid → that player's role
//   - GET  $path/lobby/:code/qr             → PNG QR code for the session URL
//   - GET  $path/lobby/:code/watch          → websocket view stream
//
// Start validation failures return 400, except a non-host actor, which
// returns 403 Forbidden so clients can tell an authorization failure from a
// session-state one.
func registerImposterGame(cfg *Config, path string, mux *httprouter.Router) *imposterGame {
	store := imposter.NewMemoryStore(cfg.sessionTimeout)
	sessions := imposter.NewSessions(store, newWordSource(cfg), cfg.codeLength)

	g := &imposterGame{
		sessions: sessions,
		hub:      newWatchHub(),
	}

	mux.POST(cfg.prefix+path+"/lobby", serveCreateSession(cfg, g))
	mux.POST(cfg.prefix+path+"/lobby/:code/join", serveJoinSession(cfg, g))
	mux.GET(cfg.prefix+path+"/lobby/:code", serveGetSession(cfg, g))
	mux.POST(cfg.prefix+path+"/lobby/:code/start", serveStartSession(cfg, g))
	mux.POST(cfg.prefix+path+"/lobby/:code/end", serveEndSession(cfg, g))
	mux.GET(cfg.prefix+path+"/lobby/:code/role/:playerid", serveRole(cfg, g))
	mux.GET(cfg.prefix+path+"/lobby/:code/qr", serveSessionQR(cfg, g))
	mux.GET(cfg.prefix+path+"/lobby/:code/watch", serveWatchSession(cfg, g))

	return g
}
