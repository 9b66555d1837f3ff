package livesync

import (
	"github.com/desertthunder/recap/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "recap"

var allModes = []models.ConnectivityMode{
	models.ModeDisconnected,
	models.ModePushConnected,
	models.ModePushReconnecting,
	models.ModePollingFallback,
}

// Metrics records live channel activity on its own registry.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// connectAttempts counts push dials.
	connectAttempts prometheus.Counter

	// authenticated counts connections that completed authentication.
	authenticated prometheus.Counter

	// disconnects counts closed connections.
	// Labels: reason (auth_timeout, dial_error, read_error, write_error, credential)
	disconnects *prometheus.CounterVec

	// messages counts decoded push frames.
	// Labels: type
	messages *prometheus.CounterVec

	// malformed counts frames that could not be decoded.
	malformed prometheus.Counter

	// polls counts fallback poll cycles.
	// Labels: result (success, error)
	polls *prometheus.CounterVec

	// mode is 1 for the active connectivity mode and 0 for the others.
	// Labels: mode
	mode *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		connectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "push",
			Name:      "connect_attempts_total",
			Help:      "Push connection attempts",
		}),
		authenticated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "push",
			Name:      "authenticated_total",
			Help:      "Push connections that completed authentication",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "push",
			Name:      "disconnects_total",
			Help:      "Push connections closed, by reason",
		}, []string{"reason"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "push",
			Name:      "messages_total",
			Help:      "Decoded push frames, by type",
		}, []string{"type"}),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "push",
			Name:      "malformed_messages_total",
			Help:      "Push frames dropped because they could not be decoded",
		}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Fallback poll cycles, by result",
		}, []string{"result"}),
		mode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connectivity_mode",
			Help:      "Current connectivity mode (1 = active)",
		}, []string{"mode"}),
	}
	m.Mode(models.ModeDisconnected)
	return m
}

// Registry returns the registry holding the collectors, for serving /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectAttempt() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

func (m *Metrics) Authenticated() {
	if m != nil {
		m.authenticated.Inc()
	}
}

func (m *Metrics) Disconnect(reason string) {
	if m != nil {
		m.disconnects.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Message(t EventType) {
	if m == nil {
		return
	}
	switch t {
	case TypeAuthenticated, TypeProgress, TypeCompleted, TypeError, TypeNotification:
		m.messages.WithLabelValues(string(t)).Inc()
	default:
		m.messages.WithLabelValues("unknown").Inc()
	}
}

func (m *Metrics) Malformed() {
	if m != nil {
		m.malformed.Inc()
	}
}

func (m *Metrics) Poll(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.polls.WithLabelValues("error").Inc()
		return
	}
	m.polls.WithLabelValues("success").Inc()
}

func (m *Metrics) Mode(mode models.ConnectivityMode) {
	if m == nil {
		return
	}
	for _, candidate := range allModes {
		v := 0.0
		if candidate == mode {
			v = 1
		}
		m.mode.WithLabelValues(string(candidate)).Set(v)
	}
}
