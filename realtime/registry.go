// realtime/registry.go
package realtime

import (
	"log"
	"strings"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the subset of *websocket.Conn the registry needs, kept narrow so
// tests can register fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

type connKey struct {
	code     string
	playerID uint
}

// Registry maps (gameCode, playerID) to the live socket owned by this
// process. It is pure runtime routing state: authoritative game state lives
// in the database, so losing the registry on restart is harmless — clients
// reconnect and re-resolve their identity.
//
// Writes to a registered conn only ever happen from the relay's single
// delivery goroutine, which keeps us inside the websocket library's
// one-concurrent-writer rule.
type Registry struct {
	mu    sync.RWMutex
	conns map[connKey]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[connKey]Conn)}
}

// Register stores the connection for a player, replacing any previous one.
// The replaced handle is not closed here; its own read pump notices the
// dead transport and cleans up.
func (r *Registry) Register(code string, playerID uint, conn Conn) {
	key := connKey{code: strings.ToUpper(code), playerID: playerID}

	r.mu.Lock()
	r.conns[key] = conn
	r.mu.Unlock()
}

// Unregister removes the mapping only if it still points at conn, so a
// reconnect's deferred cleanup cannot evict its replacement. Idempotent.
func (r *Registry) Unregister(code string, playerID uint, conn Conn) {
	key := connKey{code: strings.ToUpper(code), playerID: playerID}

	r.mu.Lock()
	if r.conns[key] == conn {
		delete(r.conns, key)
	}
	r.mu.Unlock()
}

// Broadcast delivers a payload to every connection registered for the game.
// Failed writes are logged and the connection dropped, never retried.
func (r *Registry) Broadcast(code string, payload []byte) {
	upper := strings.ToUpper(code)

	r.mu.RLock()
	targets := make(map[connKey]Conn)
	for key, conn := range r.conns {
		if key.code == upper {
			targets[key] = conn
		}
	}
	r.mu.RUnlock()

	for key, conn := range targets {
		r.write(key, conn, payload)
	}
}

// Send delivers a payload to the single connection for (code, playerID),
// if this process owns one. Other processes ignore players they don't hold.
func (r *Registry) Send(code string, playerID uint, payload []byte) {
	key := connKey{code: strings.ToUpper(code), playerID: playerID}

	r.mu.RLock()
	conn, ok := r.conns[key]
	r.mu.RUnlock()

	if ok {
		r.write(key, conn, payload)
	}
}

// Count returns the number of live connections for a game.
func (r *Registry) Count(code string) int {
	upper := strings.ToUpper(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for key := range r.conns {
		if key.code == upper {
			n++
		}
	}
	return n
}

func (r *Registry) write(key connKey, conn Conn, payload []byte) {
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[Realtime] Dropping dead connection for game %s player %d: %v",
			key.code, key.playerID, err)
		r.Unregister(key.code, key.playerID, conn)
	}
}
