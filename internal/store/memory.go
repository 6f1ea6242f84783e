// internal/store/memory.go
//
// In-memory session store for live quiz games.
// In-progress GameState is never persisted; it is lost when the process restarts.
//
// Characteristics:
//   - Stores *Session values keyed by game ID in a map.
//   - Update runs a mutation under the write lock, which serializes every
//     engine call on a game (the engine itself is not goroutine-safe).
//   - ErrNotFound is returned for unknown IDs.
//   - Prune drops sessions idle past their TTL: a short one once the game is
//     finished (so clients can still fetch the final state), a longer one for
//     abandoned live games. Janitor runs Prune on a ticker.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/internal/quiz"
)

// ErrNotFound is returned when no session exists for an ID.
var ErrNotFound = errors.New("not found")

// Game modes.
const (
	ModeClassic = "classic"
	ModeDaily   = "daily"
)

// Session wraps a live game with the bookkeeping presentation layers need.
type Session struct {
	Game      *quiz.Game
	OwnerID   string // user ID, or anonymous ID when Anonymous is true
	Anonymous bool
	Mode      string
	Date      string // daily mode only
	StartedAt time.Time
	Recorded  bool // result written to the ledger
}

// Store defines the session persistence interface.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by game ID. The returned value must only be
	// read; mutate through Update.
	Get(ctx context.Context, id string) (*Session, error)

	// Update runs fn on the session under an exclusive lock.
	Update(ctx context.Context, id string, fn func(*Session) error) error

	// Delete removes a session. Unknown IDs are ignored.
	Delete(ctx context.Context, id string) error

	// Prune evicts expired sessions and reports how many were removed.
	Prune(ctx context.Context) int
}

// Default session lifetimes, measured from the last Save or Update.
const (
	DefaultIdleTTL     = 2 * time.Hour
	DefaultFinishedTTL = 10 * time.Minute
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex         // guards sessions and seen
	sessions map[string]*Session  // keyed by Game.ID
	seen     map[string]time.Time // last Save/Update per ID

	idleTTL     time.Duration
	finishedTTL time.Duration
	now         func() time.Time
}

// NewMemoryStore constructs a new in-memory Store with the default lifetimes.
func NewMemoryStore() Store {
	return NewMemoryStoreTTL(DefaultIdleTTL, DefaultFinishedTTL)
}

// NewMemoryStoreTTL constructs an in-memory Store that evicts live games after
// idle and finished games after finished without activity.
func NewMemoryStoreTTL(idle, finished time.Duration) Store {
	return &memory{
		sessions:    make(map[string]*Session),
		seen:        make(map[string]time.Time),
		idleTTL:     idle,
		finishedTTL: finished,
		now:         time.Now,
	}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Game.ID] = s
	m.seen[s.Game.ID] = m.now()
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Update(ctx context.Context, id string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	m.seen[id] = m.now()
	return fn(s)
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.seen, id)
	return nil
}

func (m *memory) Prune(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, s := range m.sessions {
		ttl := m.idleTTL
		if s.Game.Finished() {
			ttl = m.finishedTTL
		}
		if now.Sub(m.seen[id]) > ttl {
			delete(m.sessions, id)
			delete(m.seen, id)
			n++
		}
	}
	return n
}

// Janitor calls st.Prune every interval until ctx is done.
func Janitor(ctx context.Context, st Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.Prune(ctx); n > 0 {
				log.Debug().Int("evicted", n).Msg("session store pruned")
			}
		}
	}
}
