package domain

import "time"

// RefreshStats holds statistics about one stale-article refresh pass.
type RefreshStats struct {
	Checked   int
	Refreshed int
	Errors    int
	Duration  time.Duration
}
