package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InboundMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autohost_inbound_messages_total",
			Help: "Messages received from the game client bridge",
		},
		[]string{"command"},
	)

	ChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autohost_lobby_changes_total",
			Help: "Change events produced by applying lobby payloads",
		},
		[]string{"kind"}, // joined|left|moved|swapped|slot
	)

	SwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autohost_swaps_total",
			Help: "Swap commands by outcome",
		},
		[]string{"outcome"}, // issued|matched|cancelled|unexpected
	)

	BalanceRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autohost_balance_runs_total",
			Help: "Balance and shuffle runs by result",
		},
		[]string{"result"}, // balanced|swapping|error
	)

	BalanceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autohost_balance_duration_seconds",
			Help:    "Duration of the balance search",
			Buckets: prometheus.DefBuckets,
		},
	)

	RatingLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autohost_rating_lookups_total",
			Help: "Rating lookups by result",
		},
		[]string{"result"}, // success|not_found|failure|discarded|rejected
	)

	RatingRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autohost_rating_retries_total",
			Help: "Retry rounds for failed rating lookups",
		},
	)

	StaleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autohost_stale_total",
			Help: "Stale watchdog fires that found too few players",
		},
	)

	RefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autohost_slot_refresh_total",
			Help: "Slot refreshes triggered by the stale watchdog",
		},
	)

	LobbyPlayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autohost_lobby_players",
			Help: "Human players in the hosted lobby",
		},
	)

	LobbyReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autohost_lobby_ready",
			Help: "1 when the hosted lobby passed the readiness gate",
		},
	)

	PendingSwaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autohost_pending_swaps",
			Help: "Expected swaps waiting for confirmation",
		},
	)
)

func init() {
	prometheus.MustRegister(InboundMessagesTotal)
	prometheus.MustRegister(ChangesTotal)
	prometheus.MustRegister(SwapsTotal)
	prometheus.MustRegister(BalanceRunsTotal)
	prometheus.MustRegister(BalanceDuration)
	prometheus.MustRegister(RatingLookupsTotal)
	prometheus.MustRegister(RatingRetriesTotal)
	prometheus.MustRegister(StaleTotal)
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(LobbyPlayers)
	prometheus.MustRegister(LobbyReady)
	prometheus.MustRegister(PendingSwaps)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func BoolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
