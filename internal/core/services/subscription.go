package services

import (
	"sync"

	"signalbroker/internal/core/domain"
	"signalbroker/internal/core/ports"
)

// SubscriptionGraph is the bidirectional player<->streamer binding table
// (§4.D). Exactly one mutex per streamer guards that streamer's
// membership set, so binding a player under streamer A never contends
// with binding under streamer B — but the check-and-bind for a single
// streamer is atomic (I3).
type SubscriptionGraph struct {
	maxSubscribers int
	metrics        ports.MetricsObserver

	mu             sync.Mutex // guards the two maps below and streamerLocks membership
	streamerLocks  map[domain.ConnectionID]*sync.Mutex
	subscribers    map[domain.ConnectionID]map[domain.ConnectionID]struct{} // streamerID -> set of playerIDs
	playerStreamer map[domain.ConnectionID]domain.ConnectionID              // playerID -> streamerID
}

// NewSubscriptionGraph builds an empty graph with the given per-streamer
// subscriber cap.
func NewSubscriptionGraph(maxSubscribers int, metrics ports.MetricsObserver) *SubscriptionGraph {
	return &SubscriptionGraph{
		maxSubscribers: maxSubscribers,
		metrics:        metrics,
		streamerLocks:  make(map[domain.ConnectionID]*sync.Mutex),
		subscribers:    make(map[domain.ConnectionID]map[domain.ConnectionID]struct{}),
		playerStreamer: make(map[domain.ConnectionID]domain.ConnectionID),
	}
}

func (g *SubscriptionGraph) lockFor(streamerID domain.ConnectionID) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.streamerLocks[streamerID]
	if !ok {
		l = &sync.Mutex{}
		g.streamerLocks[streamerID] = l
	}
	return l
}

// Bind atomically checks the streamer's subscriber cap and, if there is
// room, adds playerID to its subscriber set (I3). If the player was
// already bound elsewhere, it is unbound first.
func (g *SubscriptionGraph) Bind(streamerID, playerID domain.ConnectionID) error {
	g.Unbind(playerID)

	lock := g.lockFor(streamerID)
	lock.Lock()
	defer lock.Unlock()

	g.mu.Lock()
	set, ok := g.subscribers[streamerID]
	if !ok {
		set = make(map[domain.ConnectionID]struct{})
		g.subscribers[streamerID] = set
	}
	current := len(set)
	g.mu.Unlock()

	if g.maxSubscribers > 0 && current >= g.maxSubscribers {
		return domain.ErrCapacityExceeded
	}

	g.mu.Lock()
	g.subscribers[streamerID][playerID] = struct{}{}
	g.playerStreamer[playerID] = streamerID
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.SubscriptionBound()
	}
	return nil
}

// Unbind removes playerID from whatever streamer it is currently
// subscribed to, if any (I2). Returns the former streamer ID.
func (g *SubscriptionGraph) Unbind(playerID domain.ConnectionID) (domain.ConnectionID, bool) {
	g.mu.Lock()
	streamerID, ok := g.playerStreamer[playerID]
	if !ok {
		g.mu.Unlock()
		return "", false
	}
	delete(g.playerStreamer, playerID)
	if set, ok := g.subscribers[streamerID]; ok {
		delete(set, playerID)
	}
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.SubscriptionUnbound()
	}
	return streamerID, true
}

// UnbindStreamer removes a streamer and every one of its subscribers'
// bindings (called when a streamer disconnects), returning the player IDs
// that were bound so the caller can notify them.
func (g *SubscriptionGraph) UnbindStreamer(streamerID domain.ConnectionID) []domain.ConnectionID {
	g.mu.Lock()
	set, ok := g.subscribers[streamerID]
	if !ok {
		g.mu.Unlock()
		return nil
	}
	players := make([]domain.ConnectionID, 0, len(set))
	for p := range set {
		players = append(players, p)
		delete(g.playerStreamer, p)
	}
	delete(g.subscribers, streamerID)
	delete(g.streamerLocks, streamerID)
	g.mu.Unlock()

	if g.metrics != nil {
		for range players {
			g.metrics.SubscriptionUnbound()
		}
	}
	return players
}

// StreamerOf returns the streamer a player is currently subscribed to, if
// any. A player with no binding cannot forward (I5).
func (g *SubscriptionGraph) StreamerOf(playerID domain.ConnectionID) (domain.ConnectionID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.playerStreamer[playerID]
	return id, ok
}

// PlayerCount returns the number of players currently subscribed to a
// streamer.
func (g *SubscriptionGraph) PlayerCount(streamerID domain.ConnectionID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subscribers[streamerID])
}

// HasCapacity reports whether streamerID can accept one more subscriber
// (I3). Used as the predicate Registry.FindAvailableStreamer filters on.
func (g *SubscriptionGraph) HasCapacity(streamerID domain.ConnectionID) bool {
	if g.maxSubscribers <= 0 {
		return true
	}
	return g.PlayerCount(streamerID) < g.maxSubscribers
}

// IsSubscriberOf reports whether playerID is currently bound to
// streamerID specifically, used by the streamer state machine to reject
// a forward targeting a player that isn't actually its subscriber.
func (g *SubscriptionGraph) IsSubscriberOf(streamerID, playerID domain.ConnectionID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playerStreamer[playerID] == streamerID
}

// Subscribers returns the player IDs currently subscribed to a streamer.
func (g *SubscriptionGraph) Subscribers(streamerID domain.ConnectionID) []domain.ConnectionID {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.subscribers[streamerID]
	out := make([]domain.ConnectionID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// TotalSubscriptions counts every bound player across every streamer, for
// the admin stats snapshot.
func (g *SubscriptionGraph) TotalSubscriptions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.playerStreamer)
}
