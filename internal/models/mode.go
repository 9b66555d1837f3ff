package models

// ConnectivityMode is the single process-wide indicator of how live updates are flowing.
type ConnectivityMode string

const (
	// ModeDisconnected is the reset value before the first connect and after an explicit disconnect.
	ModeDisconnected     ConnectivityMode = "disconnected"
	ModePushConnected    ConnectivityMode = "push-connected"
	ModePushReconnecting ConnectivityMode = "push-reconnecting"
	ModePollingFallback  ConnectivityMode = "polling-fallback"
)

// Live reports whether updates are currently being delivered, by push or by polling.
func (m ConnectivityMode) Live() bool {
	return m == ModePushConnected || m == ModePollingFallback
}

// Label returns a short human-readable indicator for m.
func (m ConnectivityMode) Label() string {
	switch m {
	case ModePushConnected:
		return "live"
	case ModePushReconnecting:
		return "reconnecting"
	case ModePollingFallback:
		return "polling"
	default:
		return "offline"
	}
}
