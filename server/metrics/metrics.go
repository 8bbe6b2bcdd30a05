// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "speedcad_submissions_total", Help: "Submission attempts by outcome"},
		[]string{"outcome"},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "speedcad_clock_transitions_total", Help: "Competition clock transitions by name and result"},
		[]string{"transition", "result"},
	)
	LeaderboardRecomputes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "speedcad_leaderboard_recomputes_total", Help: "Full leaderboard recomputations"},
	)
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "speedcad_websocket_clients", Help: "Connected realtime WebSocket clients"},
	)
)

func Register() {
	prometheus.MustRegister(Submissions, Transitions, LeaderboardRecomputes, WebSocketClients)
}
