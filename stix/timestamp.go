package stix

import "time"

// TimestampFormat is the STIX timestamp layout with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// nextModified returns the modified timestamp for a new version: now truncated to
// milliseconds, but strictly later than prev.
func nextModified(prev, now time.Time) time.Time {
	next := now.UTC().Truncate(time.Millisecond)
	if !next.After(prev) {
		next = prev.Add(time.Millisecond)
	}
	return next
}
