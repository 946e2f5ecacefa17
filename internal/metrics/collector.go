package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gravitas-games/orp/internal/protection"
)

const namespaceORP = "orp"

// Collector exports protection engine events to prometheus.
type Collector struct {
	connects     prometheus.Counter
	firstSeen    prometheus.Counter
	disconnects  prometheus.Counter
	damageScaled *prometheus.CounterVec
}

var _ protection.Metrics = (*Collector)(nil)

// NewCollector registers the ORP metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceORP,
			Name:      "player_connects_total",
			Help:      "count of player connections reported by game hosts",
		}),
		firstSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceORP,
			Name:      "players_first_seen_total",
			Help:      "count of players seen for the first time in this process",
		}),
		disconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceORP,
			Name:      "player_disconnects_total",
			Help:      "count of player disconnections reported by game hosts",
		}),
		damageScaled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceORP,
			Name:      "damage_scaled_total",
			Help:      "count of damage events altered by protection, by pass and reason",
		}, []string{"pass", "reason"}),
	}
}

// StateSource reports how much protection state is held.
type StateSource interface {
	Stats() (tribes, players int)
}

// RegisterStateGauges exposes the tracked tribe and player counts of src.
// Both are read from src on every scrape.
func RegisterStateGauges(reg prometheus.Registerer, src StateSource) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespaceORP,
		Name:      "tracked_tribes",
		Help:      "number of tribes with recorded online state",
	}, func() float64 {
		tribes, _ := src.Stats()
		return float64(tribes)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespaceORP,
		Name:      "tracked_players",
		Help:      "number of players with a recorded first sighting",
	}, func() float64 {
		_, players := src.Stats()
		return float64(players)
	})
}

// PlayerConnected counts a connection, and a first sighting when firstSeen is set.
func (c *Collector) PlayerConnected(firstSeen bool) {
	c.connects.Inc()
	if firstSeen {
		c.firstSeen.Inc()
	}
}

// PlayerDisconnected counts a disconnection.
func (c *Collector) PlayerDisconnected() {
	c.disconnects.Inc()
}

// DamageScaled counts a damage event altered by the given pass and reason.
func (c *Collector) DamageScaled(pass, reason string) {
	c.damageScaled.WithLabelValues(pass, reason).Inc()
}
