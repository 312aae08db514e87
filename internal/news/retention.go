package news

import "time"

// RetentionCutoff returns the instant days whole days before now, in UTC.
// Rows dated before it are eligible for cleanup.
func RetentionCutoff(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}
