package fcb

import "time"

// TimeToDOS packs a time.Time into the DOS date/time word, interpreting
// the time in its own location (the caller decides local vs UTC).
func TimeToDOS(t time.Time) uint32 {
	return ToDOS(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// DOSToTime expands a DOS date/time word into a time.Time in loc.
func DOSToTime(d uint32, loc *time.Location) time.Time {
	year, month, day, hour, minute, second := FromDOS(d)
	if year < 1980 {
		year = 1980
	}
	if month < 1 {
		month = 1
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
}
