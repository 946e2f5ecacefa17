package protection

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gravitas-games/orp/internal/config"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testPlayer struct {
	id    uint64
	tribe int
}

func (p testPlayer) PlayerID() uint64 { return p.id }
func (p testPlayer) TribeID() int     { return p.tribe }

type testTarget struct {
	tribe    int
	category Category
}

func (t testTarget) TribeID() int       { return t.tribe }
func (t testTarget) Category() Category { return t.category }

type notice struct {
	playerID uint64
	message  string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(playerID uint64, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{playerID, message})
}

func (n *recordingNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

type countingMetrics struct {
	mu        sync.Mutex
	connects  int
	newPlayer int
	scaled    map[string]int
}

func (m *countingMetrics) PlayerConnected(firstSeen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if firstSeen {
		m.newPlayer++
	}
}

func (m *countingMetrics) PlayerDisconnected() {}

func (m *countingMetrics) DamageScaled(pass, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scaled == nil {
		m.scaled = make(map[string]int)
	}
	m.scaled[pass+"/"+reason]++
}

func newTestEngine(cfg *config.Protection) (*Engine, *fakeClock, *recordingNotifier) {
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	return NewEngine(cfg, clock, notifier, nil, zerolog.Nop()), clock, notifier
}
