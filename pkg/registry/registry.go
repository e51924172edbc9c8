package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cbodonnell/rally/pkg/game"
	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/match"
	"github.com/cbodonnell/rally/pkg/workers"
)

// ErrDuplicateSession is returned when a username already holds a live
// slot from a different connection.
var ErrDuplicateSession = errors.New("user already has an active session")

// DefaultLinger is how long an empty waiting match survives before
// removal, absorbing rapid reconnect and page-reload races.
const DefaultLinger = time.Second

// WaitingEntry tracks a match with exactly one connected player that a
// stranger may claim through matchmaking.
type WaitingEntry struct {
	MatchID  int64
	Username string
	Since    time.Time
}

// Registry is the process-wide table of active matches. It is the only
// cross-match shared state; the table and the waiting pool are guarded
// by one mutex. Lock order is registry before match — a match never
// calls back into the registry synchronously.
type Registry struct {
	mu      sync.Mutex
	matches map[int64]*match.Match
	waiting map[int64]*WaitingEntry
	nextID  int64

	geo    game.Geometry
	events chan<- workers.MatchEvent
	linger time.Duration
}

type NewRegistryOptions struct {
	Geometry game.Geometry
	// Events receives match lifecycle events for the persistence bridge.
	Events chan<- workers.MatchEvent
	// Linger overrides DefaultLinger when positive.
	Linger time.Duration
}

func NewRegistry(opts NewRegistryOptions) *Registry {
	linger := opts.Linger
	if linger <= 0 {
		linger = DefaultLinger
	}
	return &Registry{
		matches: make(map[int64]*match.Match),
		waiting: make(map[int64]*WaitingEntry),
		nextID:  1,
		geo:     opts.Geometry,
		events:  opts.Events,
		linger:  linger,
	}
}

// CreateOrGet returns the match with the given id, allocating it in
// PhaseWaiting if absent. Idempotent.
func (r *Registry) CreateOrGet(matchID int64) *match.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createOrGetLocked(matchID, false)
}

func (r *Registry) createOrGetLocked(matchID int64, practice bool) *match.Match {
	if m, ok := r.matches[matchID]; ok {
		return m
	}

	m := match.NewMatch(match.NewMatchOptions{
		ID:         matchID,
		Geometry:   r.geo,
		Events:     r.events,
		OnFinished: r.remove,
		Practice:   practice,
	})
	r.matches[matchID] = m
	if matchID >= r.nextID {
		r.nextID = matchID + 1
	}

	r.sendEvent(workers.MatchEvent{
		Type:     workers.MatchEventTypeCreated,
		RecordID: m.RecordID,
	})

	log.Debug("Created match %d (record %s)", matchID, m.RecordID)
	return m
}

// Join binds a connection to a slot in the given match, creating the
// match if needed. Returns the match handle and assigned player number.
func (r *Registry) Join(matchID int64, conn match.Conn, username string) (*match.Match, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.createOrGetLocked(matchID, false)
	player, err := m.Join(conn, username)
	if err != nil {
		return nil, 0, err
	}
	r.syncWaitingLocked(m, username)

	return m, player, nil
}

// Leave clears the slot held by conn. An in-progress match finishes
// with the remaining player as winner (handled by the match itself);
// an empty waiting match is removed after a short linger so a reload
// can reclaim it.
func (r *Registry) Leave(matchID int64, conn match.Conn) {
	r.mu.Lock()
	m, ok := r.matches[matchID]
	if !ok {
		r.mu.Unlock()
		return
	}
	m.Leave(conn)

	if m.Finished() {
		// Removal happens via the match's OnFinished hook.
		delete(r.waiting, matchID)
		r.mu.Unlock()
		return
	}

	if m.PlayerCount() == 0 {
		delete(r.waiting, matchID)
		r.mu.Unlock()
		time.AfterFunc(r.linger, func() {
			r.removeIfEmpty(matchID)
		})
		return
	}
	r.mu.Unlock()
}

// MatchmakingResult describes the outcome of a matchmaking request.
type MatchmakingResult struct {
	Match       *match.Match
	MatchID     int64
	Player      int
	Created     bool
	Reconnected bool
}

// FindOrCreateForMatchmaking places a connection in a match: reconnect
// to a slot the username already holds, claim the oldest waiting match
// from a stranger, or create a fresh one. The whole scan-and-claim is
// atomic with respect to concurrent matchmaking calls.
func (r *Registry) FindOrCreateForMatchmaking(conn match.Conn, username string) (*MatchmakingResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Reconnect: the username may already hold a slot in a live match.
	for id, m := range r.matches {
		if m.Finished() || m.Practice() {
			continue
		}
		old, ok := m.SlotConn(username)
		if !ok {
			continue
		}
		if old != nil && old != conn && old.Alive() {
			return nil, ErrDuplicateSession
		}
		player, err := m.Rebind(conn, username)
		if err != nil {
			continue
		}
		log.Info("Player %s reconnected to match %d", username, id)
		return &MatchmakingResult{Match: m, MatchID: id, Player: player, Reconnected: true}, nil
	}

	// Claim the oldest waiting match opened by someone else.
	entries := make([]*WaitingEntry, 0, len(r.waiting))
	for _, e := range r.waiting {
		if e.Username == username {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Since.Before(entries[j].Since) })
	for _, e := range entries {
		m, ok := r.matches[e.MatchID]
		if !ok || m.Finished() {
			delete(r.waiting, e.MatchID)
			continue
		}
		player, err := m.Join(conn, username)
		if err != nil {
			continue
		}
		delete(r.waiting, e.MatchID)
		return &MatchmakingResult{Match: m, MatchID: e.MatchID, Player: player}, nil
	}

	// Nothing to claim: open a new match and enter the pool.
	id := r.nextID
	m := r.createOrGetLocked(id, false)
	player, err := m.Join(conn, username)
	if err != nil {
		return nil, err
	}
	r.waiting[id] = &WaitingEntry{MatchID: id, Username: username, Since: time.Now()}

	return &MatchmakingResult{Match: m, MatchID: id, Player: player, Created: true}, nil
}

// CreatePractice allocates a single-player match against the scripted
// opponent. Practice matches never enter the waiting pool.
func (r *Registry) CreatePractice(conn match.Conn, username string) (*match.Match, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	m := r.createOrGetLocked(id, true)
	player, err := m.Join(conn, username)
	if err != nil {
		return nil, 0, err
	}

	return m, player, nil
}

// Get returns the match with the given id, if present.
func (r *Registry) Get(matchID int64) (*match.Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	return m, ok
}

// Snapshot returns summaries of all active matches, newest first.
func (r *Registry) Snapshot() []match.Summary {
	r.mu.Lock()
	matches := make([]*match.Match, 0, len(r.matches))
	for _, m := range r.matches {
		matches = append(matches, m)
	}
	r.mu.Unlock()

	summaries := make([]match.Summary, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, m.Summarize())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID > summaries[j].ID })
	return summaries
}

// syncWaitingLocked updates the waiting pool after a join: a non-practice
// match with exactly one player is claimable, a full one is not.
func (r *Registry) syncWaitingLocked(m *match.Match, username string) {
	if m.Practice() {
		return
	}
	switch m.PlayerCount() {
	case 1:
		if _, ok := r.waiting[m.ID]; !ok {
			r.waiting[m.ID] = &WaitingEntry{MatchID: m.ID, Username: username, Since: time.Now()}
		}
	default:
		delete(r.waiting, m.ID)
	}
}

// remove drops a match from the table. Used as the match's OnFinished
// hook; runs on its own goroutine, so it may take the registry lock.
func (r *Registry) remove(matchID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, matchID)
	delete(r.waiting, matchID)
	log.Debug("Removed match %d from registry", matchID)
}

func (r *Registry) removeIfEmpty(matchID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return
	}
	if m.PlayerCount() == 0 {
		delete(r.matches, matchID)
		delete(r.waiting, matchID)
		log.Debug("Removed idle match %d from registry", matchID)
	}
}

func (r *Registry) sendEvent(event workers.MatchEvent) {
	if r.events == nil {
		return
	}
	select {
	case r.events <- event:
	default:
		log.Warn("Match event channel full, dropping event for record %s", event.RecordID)
	}
}
