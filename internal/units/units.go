// Package units provides shared timestamp conversions. All sensor
// timestamps in this repository are int64 nanoseconds in the sensor
// clock domain; these helpers are the single place where they meet
// time.Time and time.Duration.
package units

import "time"

// NowNanos returns the current wall-clock time as nanoseconds.
func NowNanos() int64 {
	return time.Now().UnixNano()
}

// TimeToNanos converts a time.Time to nanoseconds.
func TimeToNanos(t time.Time) int64 {
	return t.UnixNano()
}

// NanosToTime converts nanoseconds to a time.Time.
func NanosToTime(ns int64) time.Time {
	return time.Unix(0, ns)
}

// NanosToDuration converts a nanosecond interval to a time.Duration.
func NanosToDuration(ns int64) time.Duration {
	return time.Duration(ns)
}

// DurationToNanos converts a time.Duration to nanoseconds.
func DurationToNanos(d time.Duration) int64 {
	return d.Nanoseconds()
}
