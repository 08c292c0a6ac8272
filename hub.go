/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/whosetune/internal/game"
	"github.com/Seednode/whosetune/internal/metadata"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

// Messages coming from clients
type ClientMessage struct {
	Type     string              `json:"type"`
	Item     *game.Item          `json:"item,omitempty"`     // submit
	ItemID   string              `json:"itemId,omitempty"`   // remove
	Target   string              `json:"target,omitempty"`   // vote
	Settings *game.SettingsPatch `json:"settings,omitempty"` // change_setting
}

// ResultMessage answers a single client message, and only goes to its sender.
type ResultMessage struct {
	Type   string `json:"type"` // "result"
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"message,omitempty"`
}

// StateMessage carries the recipient's own view of the session.
type StateMessage struct {
	Type  string         `json:"type"` // "state"
	State *game.Snapshot `json:"state"`
}

type NominationsMessage struct {
	Type        string            `json:"type"` // "nominations"
	Nominations *game.Nominations `json:"nominations"`
}

// SimpleMessage is for notifications without a payload ("session_ended").
type SimpleMessage struct {
	Type string `json:"type"`
}

type Client struct {
	id       string
	username string
	conn     *websocket.Conn
	send     chan any
}

// Hub fans session changes out to every client connected to one session.
type Hub struct {
	id      string
	clients map[*Client]bool

	mu sync.Mutex
}

func newHub(id string) *Hub {
	return &Hub{
		id:      id,
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true
}

// remove drops c and reports whether another client is still connected
// under the same username.
func (h *Hub) remove(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c)

	return h.connectedLocked(c.username)
}

// connected reports whether any client is attached under username.
func (h *Hub) connected(username string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.connectedLocked(username)
}

func (h *Hub) connectedLocked(username string) bool {
	for c := range h.clients {
		if c.username == username {
			return true
		}
	}
	return false
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) sendLocked(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.dropLocked(c)
	}
}

func (h *Hub) send(c *Client, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sendLocked(c, msg)
}

// broadcast sends every client its own projection of the session, followed
// by the nominations once the game is over.
func (h *Hub) broadcast(store *game.Store) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		snap, err := store.Snapshot(h.id, c.username)
		if err != nil {
			return
		}
		h.sendLocked(c, StateMessage{Type: "state", State: snap})

		if snap.Phase != game.PhaseGameFinished {
			continue
		}
		if noms, err := store.Nominations(h.id); err == nil {
			h.sendLocked(c, NominationsMessage{Type: "nominations", Nominations: noms})
		}
	}
}

func (h *Hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// closeAll tells every client the session is over and disconnects them.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.sendLocked(c, SimpleMessage{Type: "session_ended"})
		h.dropLocked(c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager pairs the session store with the hubs of connected clients.
type GameManager struct {
	cfg   *Config
	store *game.Store
	meta  *metadata.Service // nil when enrichment is disabled

	mu   sync.Mutex
	hubs map[string]*Hub
}

func newGameManager(cfg *Config) *GameManager {
	return &GameManager{
		cfg:  cfg,
		hubs: make(map[string]*Hub),
	}
}

func (gm *GameManager) getHub(id string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[id]; ok {
		return hub
	}

	hub := newHub(id)
	gm.hubs[id] = hub
	return hub
}

func (gm *GameManager) lookupHub(id string) (*Hub, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[id]
	return hub, ok
}

// refresh pushes fresh state to everyone watching session id.
func (gm *GameManager) refresh(id string) {
	if hub, ok := gm.lookupHub(id); ok {
		hub.broadcast(gm.store)
	}
}

// reap ends every session idle for longer than the configured timeout.
func (gm *GameManager) reap() {
	for _, id := range gm.store.Reap(gm.cfg.sessionTimeout) {
		gm.mu.Lock()
		hub, ok := gm.hubs[id]
		delete(gm.hubs, id)
		gm.mu.Unlock()

		clients := 0
		if ok {
			clients = hub.len()
			hub.closeAll()
		}

		logf(gm.cfg, "GAMES: Ended idle session %s, disconnecting %d clients", id, clients)
	}
}

// reaperLoop periodically removes sessions that have been idle longer than
// the session timeout.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	if gm.cfg.sessionTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(gm.cfg.sessionTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gm.reap()
		}
	}
}

// dispatch applies one client message on behalf of c. It reports whether
// the session changed and should be broadcast.
func (gm *GameManager) dispatch(hub *Hub, c *Client, msg ClientMessage) (bool, error) {
	id, name := hub.id, c.username

	switch msg.Type {
	case "submit":
		if msg.Item == nil {
			return false, fmt.Errorf("missing item: %w", game.ErrInvalidInput)
		}
		_, err := gm.store.Submit(id, name, *msg.Item)
		return err == nil, err
	case "remove":
		err := gm.store.Remove(id, name, msg.ItemID)
		return err == nil, err
	case "change_setting":
		if msg.Settings == nil {
			return false, fmt.Errorf("missing settings: %w", game.ErrInvalidInput)
		}
		err := gm.store.ChangeSetting(id, name, *msg.Settings)
		return err == nil, err
	case "start_game":
		err := gm.store.StartGame(id, name)
		return err == nil, err
	case "vote":
		err := gm.store.SubmitVote(id, name, msg.Target)
		return err == nil, err
	case "appreciate":
		err := gm.store.MarkAppreciation(id, name)
		return err == nil, err
	case "reveal":
		err := gm.store.RevealResults(id, name)
		return err == nil, err
	case "next_round":
		err := gm.store.NextRound(id, name)
		return err == nil, err
	case "leave":
		err := gm.store.Leave(id, name)
		return err == nil, err
	case "state":
		snap, err := gm.store.Snapshot(id, name)
		if err == nil {
			hub.send(c, StateMessage{Type: "state", State: snap})
		}
		return false, err
	case "nominations":
		noms, err := gm.store.Nominations(id)
		if err == nil {
			hub.send(c, NominationsMessage{Type: "nominations", Nominations: noms})
		}
		return false, err
	default:
		return false, fmt.Errorf("unknown message type %q: %w", msg.Type, game.ErrInvalidInput)
	}
}

// serveWS joins the requesting user to the session, then relays their
// actions until the connection drops.
func serveWS(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id := ps.ByName("id")
		username := r.URL.Query().Get("username")

		if err := gm.store.Join(id, username); err != nil {
			serverError(gm.cfg, w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(gm.cfg, "SERVE: WebSocket upgrade for %s failed: %v", id, err)
			if hub, ok := gm.lookupHub(id); !ok || !hub.connected(username) {
				_ = gm.store.Disconnect(id, username)
			}
			return
		}

		client := &Client{
			id:       uuid.NewString(),
			username: username,
			conn:     conn,
			send:     make(chan any, sendBuffer),
		}

		hub := gm.getHub(id)
		hub.add(client)

		logf(gm.cfg, "SERVE: Client %s connected to %s as %q from %s", client.id, id, username, realIP(r))

		go client.writePump()

		hub.broadcast(gm.store)

		client.readPump(gm, hub)
	}
}

func (c *Client) readPump(gm *GameManager, h *Hub) {
	// The connection itself is closed by writePump once the send channel
	// has been drained.
	defer func() {
		if h.remove(c) {
			return
		}

		err := gm.store.Disconnect(h.id, c.username)
		if err == nil {
			h.broadcast(gm.store)
		} else if !errors.Is(err, game.ErrNotFound) {
			logErr(err)
		}

		logf(gm.cfg, "SERVE: Client %s disconnected from %s", c.id, h.id)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		changed, err := gm.dispatch(h, c, msg)

		result := ResultMessage{Type: "result", Action: msg.Type, OK: err == nil}
		if err != nil {
			result.Error = game.Code(err)
			result.Detail = err.Error()
			logf(gm.cfg, "GAMES: %q in %s rejected %s: %v", c.username, h.id, msg.Type, err)
		}
		h.send(c, result)

		if changed {
			h.broadcast(gm.store)
		}

		if msg.Type == "leave" && err == nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
