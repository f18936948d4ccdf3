package app

import (
    "context"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/jaminalder/cube-tic-tac-toe/internal/domain"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("game not found")

// GameState is the in-memory state tracked per game session.
type GameState struct {
    ID      string
    History domain.History
    // Version counts successful transitions; it only grows.
    Version uint64
    Created time.Time
    Updated time.Time
}

type subscriber struct {
    ch        chan GameState
    closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Service owns every game session and serializes transitions on them.
type Service struct {
    mu    sync.Mutex
    games map[string]*GameState
    subs  map[string]map[*subscriber]struct{}
    log   *slog.Logger
    now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
    return func(s *Service) {
        if l != nil {
            s.log = l
        }
    }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
    return func(s *Service) {
        if now != nil {
            s.now = now
        }
    }
}

// NewService creates an empty service.
func NewService(opts ...Option) *Service {
    s := &Service{
        games: make(map[string]*GameState),
        subs:  make(map[string]map[*subscriber]struct{}),
        log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
        now:   time.Now,
    }
    for _, o := range opts {
        o(s)
    }
    s.log = s.log.With("component", "app")
    return s
}

// CreateGame creates and registers a new game.
func (s *Service) CreateGame() (*GameState, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    id := uuid.NewString()
    now := s.now()
    gs := &GameState{ID: id, History: domain.NewHistory(), Created: now, Updated: now}
    s.games[id] = gs
    s.log.Info("game created", "game", id)
    cp := *gs
    return &cp, nil
}

// Get returns a copy of the game state if present.
func (s *Service) Get(id string) (*GameState, bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    gs, ok := s.games[id]
    if !ok {
        return nil, false
    }
    cp := *gs
    return &cp, true
}

// Play applies m for the player whose turn it is at the current ply.
// Rejected moves leave the game untouched and return the current state with the rejection.
func (s *Service) Play(id string, m domain.Move) (*GameState, error) {
    return s.update(id, func(h domain.History) (domain.History, error) {
        return h.Play(m)
    })
}

// JumpTo moves the game's pointer to ply without altering its history.
func (s *Service) JumpTo(id string, ply int) (*GameState, error) {
    return s.update(id, func(h domain.History) (domain.History, error) {
        return h.JumpTo(ply)
    })
}

func (s *Service) update(id string, fn func(domain.History) (domain.History, error)) (*GameState, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    gs, ok := s.games[id]
    if !ok {
        return nil, ErrNotFound
    }
    next, err := fn(gs.History)
    if err != nil {
        cp := *gs
        return &cp, fmt.Errorf("game %s: %w", id, err)
    }
    gs.History = next
    gs.Version++
    gs.Updated = s.now()
    cp := *gs
    s.broadcastLocked(id, cp)
    return &cp, nil
}

// broadcastLocked fans out without blocking. Each subscriber holds only the
// latest state: a value still unread is replaced. Sends and closes both
// happen under s.mu.
func (s *Service) broadcastLocked(id string, gs GameState) {
    for sub := range s.subs[id] {
        select {
        case sub.ch <- gs:
            continue
        default:
        }
        select {
        case <-sub.ch:
        default:
        }
        select {
        case sub.ch <- gs:
        default:
            s.log.Warn("subscriber update lost", "game", id, "version", gs.Version)
        }
    }
}

// Subscribe registers a subscriber for a game. The channel receives a copy of the
// latest state after changes; a reader that falls behind skips straight to the
// newest state. It is closed when ctx ends, the unsubscribe func runs, or the
// game is reaped.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan GameState, func(), error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.games[id]; !ok {
        return nil, func() {}, ErrNotFound
    }
    set := s.subs[id]
    if set == nil {
        set = make(map[*subscriber]struct{})
        s.subs[id] = set
    }
    sub := &subscriber{ch: make(chan GameState, 1)}
    set[sub] = struct{}{}

    unsubOnce := &sync.Once{}
    unsub := func() {
        unsubOnce.Do(func() {
            s.mu.Lock()
            if set, ok := s.subs[id]; ok {
                delete(set, sub)
                if len(set) == 0 {
                    delete(s.subs, id)
                }
            }
            s.mu.Unlock()
            sub.close()
        })
    }
    go func() {
        <-ctx.Done()
        unsub()
    }()
    return sub.ch, unsub, nil
}

// Reap removes games not updated within ttl and closes their subscribers.
func (s *Service) Reap(ttl time.Duration) int {
    cutoff := s.now().Add(-ttl)

    s.mu.Lock()
    n := 0
    for id, gs := range s.games {
        if gs.Updated.After(cutoff) {
            continue
        }
        delete(s.games, id)
        for sub := range s.subs[id] {
            sub.close()
        }
        delete(s.subs, id)
        n++
    }
    s.mu.Unlock()

    if n > 0 {
        s.log.Info("reaped idle games", "count", n, "ttl", ttl)
    }
    return n
}

// RunReaper calls Reap every interval until ctx is done.
func (s *Service) RunReaper(ctx context.Context, interval, ttl time.Duration) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            s.Reap(ttl)
        }
    }
}
