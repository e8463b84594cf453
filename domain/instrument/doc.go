// Package instrument holds contract reference data together with the date
// and key helpers used to identify a book: contract id plus settlement day,
// the latter stored as a Julian day and packed as a Truncated Julian Day.
package instrument
