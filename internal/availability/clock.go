package availability

import "time"

// Clock supplies the wall-clock time used to hide slots that already started.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// weekdayNumbers maps Go weekdays onto the stored workDays convention.
// The two happen to agree today; the table keeps the contract explicit.
var weekdayNumbers = map[time.Weekday]int{
	time.Sunday:    0,
	time.Monday:    1,
	time.Tuesday:   2,
	time.Wednesday: 3,
	time.Thursday:  4,
	time.Friday:    5,
	time.Saturday:  6,
}

// WeekdayNumber returns the workDays number (0 = Sunday .. 6 = Saturday) of t.
func WeekdayNumber(t time.Time) int {
	return weekdayNumbers[t.Weekday()]
}
