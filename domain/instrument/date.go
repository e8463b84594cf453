package instrument

import "time"

// tjdOffset converts a Julian day to a Truncated Julian Day.
const tjdOffset = 2440000

// JD returns the Julian day number of a Gregorian calendar date.
func JD(year int, month time.Month, day int) int32 {
	// Fliegel and Van Flandern.
	y, m, d := year, int(month), day
	a := (14 - m) / 12
	y = y + 4800 - a
	m = m + 12*a - 3
	return int32(d + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045)
}

// JDFromTime returns the Julian day of t in UTC.
func JDFromTime(t time.Time) int32 {
	y, m, d := t.UTC().Date()
	return JD(y, m, d)
}

// JDToTime returns midnight UTC of Julian day jd.
func JDToTime(jd int32) time.Time {
	a := int(jd) + 32044
	b := (4*a + 3) / 146097
	c := a - 146097*b/4
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153
	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := 100*b + d - 4800 + m/10
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// TJD truncates a Julian day.
func TJD(jd int32) int32 {
	return jd - tjdOffset
}

// ValidSettlDay reports whether jd fits the settlement day bits of BookKey
// and PositionKey. Days outside the range would share keys with others.
func ValidSettlDay(jd int32) bool {
	tjd := TJD(jd)
	return tjd >= 0 && tjd <= JDMask
}
