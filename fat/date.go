package fat

import (
	"time"
)

// parseDate decodes a directory entry date stamp.
// Bits 0-4 are the day, 5-8 the month and 9-15 the years since 1980.
// Day or month 0 are invalid and give the zero time.
func parseDate(input uint16) time.Time {
	day := input & 0x1F
	month := input & 0x1E0 >> 5
	year := input & 0xFE00 >> 9

	if day == 0 || month == 0 {
		return time.Time{}
	}

	return time.Date(1980+int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
}

// parseTime decodes a directory entry time stamp with a granularity of two seconds.
// Bits 0-4 are the seconds halved, 5-10 the minutes and 11-15 the hours.
// Out of range values are clamped to 23:59:59.
func parseTime(input uint16) (hour, min, sec int) {
	sec = int(input&0x1F) * 2
	min = int(input & 0x7E0 >> 5)
	hour = int(input & 0xF800 >> 11)

	if hour > 23 || min > 59 || sec > 59 {
		return 23, 59, 59
	}
	return hour, min, sec
}

// timestamp combines a date and a time stamp. It is the zero time if the date is invalid.
func timestamp(date, tm uint16) time.Time {
	d := parseDate(date)
	if d.IsZero() {
		return time.Time{}
	}

	hour, min, sec := parseTime(tm)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, sec, 0, time.UTC)
}
