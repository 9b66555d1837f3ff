package livesync

import "time"

// Backoff returns the delay before reconnect attempt n (0-based): base doubled n times, capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := base
	for range attempt {
		if d >= max {
			return max
		}
		d *= 2
	}
	return min(d, max)
}
