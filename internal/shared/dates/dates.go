package dates

import "time"

const ISOFormat = "2006-01-02"

// Day truncates t to a calendar date in UTC.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ISO(t time.Time) string {
	return t.Format(ISOFormat)
}

// Between returns the number of calendar days from start to end.
// Same-day ranges count as zero.
func Between(start, end time.Time) int {
	s := Day(start.Year(), start.Month(), start.Day())
	e := Day(end.Year(), end.Month(), end.Day())
	return int(e.Sub(s).Hours() / 24)
}

func InMonth(year int, m time.Month) int {
	return Day(year, m, 1).AddDate(0, 1, -1).Day()
}
