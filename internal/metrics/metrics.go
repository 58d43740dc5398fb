package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "literacy_games"

// Play holds the gameplay collectors.
type Play struct {
	RoundsTotal       *prometheus.CounterVec
	PointsTotal       *prometheus.CounterVec
	AchievementsTotal *prometheus.CounterVec
	DiscoveryMisses   *prometheus.CounterVec
	GamesCompleted    *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
}

// NewPlay registers the gameplay collectors on reg. A nil reg uses the default registerer.
func NewPlay(reg prometheus.Registerer) *Play {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Play{
		RoundsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Finished rounds by game and outcome.",
		}, []string{"game", "outcome"}),
		PointsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points awarded at round end.",
		}, []string{"game"}),
		AchievementsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_awarded_total",
			Help:      "Newly earned achievements.",
		}, []string{"game", "achievement"}),
		DiscoveryMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_misses_total",
			Help:      "Wrong probes on discovery items.",
		}, []string{"game"}),
		GamesCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_completed_total",
			Help:      "Sessions that reached game over.",
		}, []string{"game"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently hosted by this instance.",
		}),
	}
}
