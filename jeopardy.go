/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Triviaboard Jeopardy Game
//
// Each game ID owns one board at a time. The board is built in the background
// from the quiz API, then every connected browser sees the same grid and the
// same reveals.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - First "start" builds a board; "restart" always replaces it
// - Loading state follows the build, not a timer
// - Superseded builds are cancelled and their late results dropped
// - Reveals are applied by the hub goroutine and broadcast to every client
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs, with server-side collision check
// - In-browser QR button to share the current session, backed by go-qrcode
// - JSON snapshot of the current board at /path/:gameid/board

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/triviaboard/trivia"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"lukechampine.com/frand"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "start", "restart", "reveal"
	Category int    `json:"category,omitempty"` // reveal
	Clue     int    `json:"clue,omitempty"`     // reveal
}

// BoardMessage carries the whole grid as it currently appears.
type BoardMessage struct {
	Type       string          `json:"type"` // "board"
	Generation uint64          `json:"generation"`
	Columns    []trivia.Column `json:"columns"`
}

// CellMessage updates a single cell after a reveal.
type CellMessage struct {
	Type     string `json:"type"` // "cell"
	Category int    `json:"category"`
	Clue     int    `json:"clue"`
	State    string `json:"state"`
	Text     string `json:"text"`
}

// SimpleMessage is for generic notifications ("loading", "error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// BoardSnapshot is the JSON body of the /board endpoint.
type BoardSnapshot struct {
	Generation uint64          `json:"generation"`
	Loading    bool            `json:"loading"`
	CreatedAt  time.Time       `json:"created_at"`
	LastActive time.Time       `json:"last_active"`
	Columns    []trivia.Column `json:"columns,omitempty"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type startRequest struct {
	client  *Client
	restart bool
}

type revealRequest struct {
	client *Client
	at     trivia.Coordinate
}

type buildResult struct {
	generation uint64
	board      *trivia.Board
	err        error
}

// BoardBuilder is the part of trivia.Builder a hub needs.
type BoardBuilder interface {
	BuildBoard(ctx context.Context, categoryCount, cluesPerCategory int) (*trivia.Board, error)
}

type Hub struct {
	id      string
	builder BoardBuilder
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	starts   chan startRequest
	reveals  chan revealRequest
	built    chan buildResult
	done     chan struct{}
	stopOnce sync.Once

	// mu guards the fields read from outside the run loop.
	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
	board      *trivia.Board
	generation uint64
	building   bool

	cancelBuild context.CancelFunc
}

func newHub(gameID string, builder BoardBuilder) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		builder:    builder,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		starts:     make(chan startRequest),
		reveals:    make(chan revealRequest),
		built:      make(chan buildResult),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true

			h.mu.RLock()
			board, gen, building := h.board, h.generation, h.building
			h.mu.RUnlock()

			switch {
			case board != nil:
				h.sendTo(c, BoardMessage{Type: "board", Generation: gen, Columns: board.Snapshot()})
			case building:
				h.sendTo(c, SimpleMessage{Type: "loading"})
			}

		case c := <-h.unreg:
			h.touch()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case sr := <-h.starts:
			h.handleStart(cfg, sr)

		case rr := <-h.reveals:
			h.handleReveal(cfg, rr)

		case res := <-h.built:
			h.handleBuilt(cfg, res)

		case <-h.done:
			h.mu.Lock()
			if h.cancelBuild != nil {
				h.cancelBuild()
			}
			h.mu.Unlock()

			for c := range h.clients {
				close(c.send)
				_ = c.conn.Close()
				delete(h.clients, c)
			}

			return
		}
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

// sendTo queues msg for one client, dropping the client if its buffer is full.
// Clients already dropped are skipped, since their send channel is closed.
func (h *Hub) sendTo(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

// handleStart begins a build. A plain start is ignored while a board exists or
// is already being built; a restart always replaces the current board.
func (h *Hub) handleStart(cfg *Config, sr startRequest) {
	h.touch()

	h.mu.Lock()
	if !sr.restart && (h.board != nil || h.building) {
		board, gen, building := h.board, h.generation, h.building
		h.mu.Unlock()

		if sr.client != nil {
			if building {
				h.sendTo(sr.client, SimpleMessage{Type: "loading"})
			} else {
				h.sendTo(sr.client, BoardMessage{Type: "board", Generation: gen, Columns: board.Snapshot()})
			}
		}

		return
	}

	if h.cancelBuild != nil {
		h.cancelBuild()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancelBuild = cancel
	h.generation++
	h.board = nil
	h.building = true
	gen := h.generation
	h.mu.Unlock()

	logf(cfg, "GAMES: Building board %d for %s", gen, h.id)

	h.broadcast(SimpleMessage{Type: "loading"})

	go func() {
		board, err := h.builder.BuildBoard(ctx, cfg.categories, cfg.clues)

		select {
		case h.built <- buildResult{generation: gen, board: board, err: err}:
		case <-h.done:
		}
	}()
}

func (h *Hub) handleBuilt(cfg *Config, res buildResult) {
	h.mu.Lock()
	if res.generation != h.generation {
		h.mu.Unlock()

		log.Debug().Str("game", h.id).Uint64("generation", res.generation).Msg("discarding superseded board")

		return
	}

	h.building = false
	if h.cancelBuild != nil {
		h.cancelBuild()
		h.cancelBuild = nil
	}

	if res.err != nil {
		h.mu.Unlock()

		log.Warn().Err(res.err).Str("game", h.id).Msg("GAMES: Board build failed")
		h.broadcast(SimpleMessage{
			Type:    "error",
			Message: "Could not load trivia right now. Please try again.",
		})

		return
	}

	h.board = res.board
	h.lastActive = time.Now()
	h.mu.Unlock()

	logf(cfg, "GAMES: Board %d ready for %s", res.generation, h.id)

	h.broadcast(BoardMessage{Type: "board", Generation: res.generation, Columns: res.board.Snapshot()})
}

func (h *Hub) handleReveal(cfg *Config, rr revealRequest) {
	h.touch()

	h.mu.RLock()
	board := h.board
	h.mu.RUnlock()

	if board == nil {
		return
	}

	result, err := trivia.Reveal(board, rr.at)
	if err != nil {
		log.Warn().Err(err).Str("game", h.id).Msg("GAMES: Rejected reveal")
		if rr.client != nil {
			h.sendTo(rr.client, SimpleMessage{Type: "error", Message: err.Error()})
		}

		return
	}

	if !result.Changed() {
		return
	}

	logf(cfg, "GAMES: Revealed %s at %d-%d in %s", result.State, rr.at.Category, rr.at.Clue, h.id)

	h.broadcast(CellMessage{
		Type:     "cell",
		Category: rr.at.Category,
		Clue:     rr.at.Clue,
		State:    result.State.String(),
		Text:     result.Text,
	})
}

// snapshot returns the current board as shown to players. Columns is nil
// while there is no board.
func (h *Hub) snapshot() BoardSnapshot {
	h.mu.RLock()
	snap := BoardSnapshot{
		Generation: h.generation,
		Loading:    h.building,
		CreatedAt:  h.createdAt,
		LastActive: h.lastActive,
	}
	board := h.board
	h.mu.RUnlock()

	if board != nil {
		snap.Columns = board.Snapshot()
	}

	return snap
}

// stop ends the run loop, which disconnects every client.
func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	builder     BoardBuilder
	quit        chan struct{}
	closeOnce   sync.Once
}

func newGameManager(idleTimeout time.Duration, builder BoardBuilder) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		builder:     builder,
		quit:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID, gm.builder)
	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub
}

// lookup returns an existing hub without creating one.
func (gm *GameManager) lookup(gameID string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	return hub, ok
}

// newGameID generates a random game ID and ensures it doesn't collide with
// existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[frand.Intn(len(letters))]
		}
		id := string(out)

		if _, exists := gm.lookup(id); !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.quit:
			return
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		}
	}
}

// reap stops and forgets every hub last active before cutoff.
func (gm *GameManager) reap(cutoff time.Time) int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	reaped := 0
	for id, hub := range gm.hubs {
		hub.mu.RLock()
		last := hub.lastActive
		hub.mu.RUnlock()

		if last.Before(cutoff) {
			delete(gm.hubs, id)
			hub.stop()
			reaped++
		}
	}

	return reaped
}

// Close stops the reaper and every hub.
func (gm *GameManager) Close() {
	gm.closeOnce.Do(func() {
		close(gm.quit)
	})

	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("SERVE: websocket upgrade failed")
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: Client %s connected to %s", realIP(r), gameID)

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		var req any
		switch msg.Type {
		case "start", "restart":
			req = startRequest{client: c, restart: msg.Type == "restart"}
		case "reveal":
			req = revealRequest{
				client: c,
				at:     trivia.Coordinate{Category: msg.Category, Clue: msg.Clue},
			}
		default:
			continue
		}

		if !h.dispatch(req) {
			return
		}
	}
}

// dispatch hands a request to the run loop, reporting false once the hub has
// stopped.
func (h *Hub) dispatch(req any) bool {
	switch r := req.(type) {
	case startRequest:
		select {
		case h.starts <- r:
		case <-h.done:
			return false
		}
	case revealRequest:
		select {
		case h.reveals <- r:
		case <-h.done:
			return false
		}
	}

	return true
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func serveBoardSnapshot(cfg *Config, gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, ok := gm.lookup(ps.ByName("gameid"))
		if !ok {
			http.Error(w, "no such game", http.StatusNotFound)
			return
		}

		snap := hub.snapshot()
		if snap.Columns == nil && !snap.Loading {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(snap); err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, cfg.prefix+path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerJeopardyGame sets up routes so that:
//   - $path                  → redirects to new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
//   - $path/:gameid/board    → JSON snapshot of that game's board
func registerJeopardyGame(cfg *Config, path string, mux *httprouter.Router, builder BoardBuilder, errs chan<- error) *GameManager {
	gm := newGameManager(cfg.sessionTimeout, builder)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", serveAsset(cfg, "assets/jeopardy/index.html", errs))

	mux.GET(cfg.prefix+"/assets/jeopardy/app.css", serveAsset(cfg, "assets/jeopardy/app.css", errs))
	mux.GET(cfg.prefix+"/assets/jeopardy/app.js", serveAsset(cfg, "assets/jeopardy/app.js", errs))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)

	mux.GET(cfg.prefix+path+"/:gameid/board", serveBoardSnapshot(cfg, gm, errs))

	return gm
}
