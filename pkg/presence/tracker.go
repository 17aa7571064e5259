// Package presence tracks which users have at least one live socket on this
// process. Transitions between offline and online are pushed to a Mirror.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Mirror receives online/offline transitions. Implementations are best effort:
// the tracker logs their errors and carries on.
type Mirror interface {
	SetOnline(ctx context.Context, userID int64, online bool, at time.Time) error
}

type Tracker struct {
	mu      sync.Mutex
	sockets map[int64]map[string]struct{}
	syncs   map[int64]*mirrorSync
	mirror  Mirror
	log     *zap.Logger
	now     func() time.Time
}

// mirrorSync orders mirror writes for one user. It lives while calls for
// that user are in flight; refs is guarded by Tracker.mu, the rest by mu.
type mirrorSync struct {
	mu       sync.Mutex
	refs     int
	known    bool
	mirrored bool
}

func NewTracker(mirror Mirror, log *zap.Logger) *Tracker {
	if mirror == nil {
		mirror = NopMirror{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		sockets: make(map[int64]map[string]struct{}),
		syncs:   make(map[int64]*mirrorSync),
		mirror:  mirror,
		log:     log,
		now:     time.Now,
	}
}

// Register adds socketID to userID's set. It reports true when the user went
// from offline to online.
func (t *Tracker) Register(ctx context.Context, userID int64, socketID string) bool {
	t.mu.Lock()
	set, ok := t.sockets[userID]
	if !ok {
		set = make(map[string]struct{})
		t.sockets[userID] = set
	}
	set[socketID] = struct{}{}
	t.mu.Unlock()

	if ok {
		return false
	}
	t.mirrorState(ctx, userID)
	return true
}

// Unregister removes socketID. It reports true when the user's last socket
// went away. Unknown users and sockets are ignored.
func (t *Tracker) Unregister(ctx context.Context, userID int64, socketID string) bool {
	t.mu.Lock()
	set, ok := t.sockets[userID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if _, ok := set[socketID]; !ok {
		t.mu.Unlock()
		return false
	}
	delete(set, socketID)
	empty := len(set) == 0
	if empty {
		delete(t.sockets, userID)
	}
	t.mu.Unlock()

	if empty {
		t.mirrorState(ctx, userID)
	}
	return empty
}

func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sockets[userID]) > 0
}

// Connections lists a user's socket ids in sorted order.
func (t *Tracker) Connections(userID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.sockets[userID]))
	for id := range t.sockets[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sockets)
}

// mirrorState writes the user's current state, not the state of the
// transition that triggered it. Writes for a user run one at a time, so a
// slow offline write cannot land after a newer online one.
func (t *Tracker) mirrorState(ctx context.Context, userID int64) {
	t.mu.Lock()
	ms, ok := t.syncs[userID]
	if !ok {
		ms = &mirrorSync{}
		t.syncs[userID] = ms
	}
	ms.refs++
	t.mu.Unlock()

	ms.mu.Lock()
	online := t.IsOnline(userID)
	if !ms.known || ms.mirrored != online {
		if err := t.mirror.SetOnline(ctx, userID, online, t.now()); err != nil {
			ms.known = false
			t.log.Warn("presence mirror failed",
				zap.Int64("user_id", userID),
				zap.Bool("online", online),
				zap.Error(err),
			)
		} else {
			ms.known, ms.mirrored = true, online
		}
	}
	ms.mu.Unlock()

	t.mu.Lock()
	if ms.refs--; ms.refs == 0 {
		delete(t.syncs, userID)
	}
	t.mu.Unlock()
}
