package game

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
)

// codeAlphabet skips 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// Registry maps live game codes to their sessions. It is an explicit
// process-scoped object, injected wherever connections are handled, so
// tests can run any number of independent registries.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{games: make(map[string]*Session)}
}

// NormalizeCode upper-cases a game code; codes are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateCode returns a code that is not currently registered.
func (r *Registry) GenerateCode() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := r.games[code]; !taken {
			return code
		}
	}
}

// Register adds a session under its code.
func (r *Registry) Register(s *Session) error {
	code := NormalizeCode(s.Code())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.games[code]; taken {
		return apperr.Newf(apperr.KindStateConflict, "game code %s already in use", code)
	}
	r.games[code] = s
	return nil
}

// Lookup resolves a case-insensitive game code to its live session.
func (r *Registry) Lookup(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.games[NormalizeCode(code)]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "no live game with code %s", NormalizeCode(code))
	}
	return s, nil
}

// Evict removes a finished or cancelled game from memory.
func (r *Registry) Evict(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, NormalizeCode(code))
}

// Len reports the number of live games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
