// Package broadcast fans typed events out to the four audiences of a
// game: host control, host display, player monitor, and individual
// players. It knows nothing about transports; websocket connections
// attach through the Subscriber interface.
package broadcast

import (
	"log"
	"sync"
)

type Role string

const (
	RoleHostControl Role = "host-control"
	RoleHostDisplay Role = "host-display"
	RolePlayer      Role = "player"
	RoleMonitor     Role = "player-monitor"
)

func (r Role) Valid() bool {
	return r == RoleHostControl || r == RoleHostDisplay || r == RolePlayer || r == RoleMonitor
}

// HostRole reports whether the role requires host credentials.
func (r Role) HostRole() bool {
	return r == RoleHostControl || r == RoleHostDisplay || r == RoleMonitor
}

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Subscriber receives events for one attached client. Send must not
// block; slow consumers drop or disconnect on their own side.
type Subscriber interface {
	Send(ev Event)
	Close()
}

type subscription struct {
	role     Role
	playerID string
	sub      Subscriber
}

type Hub struct {
	mu    sync.RWMutex
	games map[string][]subscription
}

func NewHub() *Hub {
	return &Hub{games: make(map[string][]subscription)}
}

// Subscribe attaches sub to a game room under a role. playerID is only
// meaningful for RolePlayer.
func (h *Hub) Subscribe(code string, role Role, playerID string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.games[code] = append(h.games[code], subscription{role: role, playerID: playerID, sub: sub})
	log.Printf("broadcast: client subscribed to %s as %s (total: %d)", code, role, len(h.games[code]))
}

func (h *Hub) Unsubscribe(code string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.games[code]
	for i, s := range subs {
		if s.sub == sub {
			h.games[code] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.games[code]) == 0 {
		delete(h.games, code)
	}
}

// Publish delivers ev to every subscriber of the given role in a game.
func (h *Hub) Publish(code string, role Role, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.games[code] {
		if s.role == role {
			s.sub.Send(ev)
		}
	}
}

// PublishToPlayer delivers ev to one player's connections only.
func (h *Hub) PublishToPlayer(code, playerID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.games[code] {
		if s.role == RolePlayer && s.playerID == playerID {
			s.sub.Send(ev)
		}
	}
}

// CloseGame severs every connection in a game room.
func (h *Hub) CloseGame(code string) {
	h.mu.Lock()
	subs := h.games[code]
	delete(h.games, code)
	h.mu.Unlock()

	for _, s := range subs {
		s.sub.Close()
	}
	if len(subs) > 0 {
		log.Printf("broadcast: closed %d connections for game %s", len(subs), code)
	}
}

// PlayerIDs returns the players that currently hold at least one live
// player-role subscription.
func (h *Hub) PlayerIDs(code string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, s := range h.games[code] {
		if s.role == RolePlayer && s.playerID != "" && !seen[s.playerID] {
			seen[s.playerID] = true
			ids = append(ids, s.playerID)
		}
	}
	return ids
}
