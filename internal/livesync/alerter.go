package livesync

import "sync/atomic"

// ChannelAlerter queues alerts for a consumer running elsewhere, such as a TUI event loop.
// Alerts that do not fit in the buffer are dropped.
type ChannelAlerter struct {
	ch      chan Alert
	dropped atomic.Int64
}

// NewChannelAlerter creates a [ChannelAlerter] holding up to buffer pending alerts.
func NewChannelAlerter(buffer int) *ChannelAlerter {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelAlerter{ch: make(chan Alert, buffer)}
}

func (c *ChannelAlerter) Alert(a Alert) {
	select {
	case c.ch <- a:
	default:
		c.dropped.Add(1)
	}
}

// Alerts returns the receive side of the queue.
func (c *ChannelAlerter) Alerts() <-chan Alert {
	return c.ch
}

// Dropped returns how many alerts were discarded because the queue was full.
func (c *ChannelAlerter) Dropped() int64 {
	return c.dropped.Load()
}

// MultiAlerter fans an alert out to every non-nil alerter in order.
func MultiAlerter(alerters ...Alerter) Alerter {
	return AlerterFunc(func(a Alert) {
		for _, al := range alerters {
			if al != nil {
				al.Alert(a)
			}
		}
	})
}
