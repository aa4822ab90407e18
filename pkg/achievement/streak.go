package achievement

import "time"

// NextStreak applies one day's result to a streak. today and last are
// calendar dates. credited is false when nothing should be written: the goal
// was missed, or today was already credited.
func NextStreak(streak int, last *time.Time, today time.Time, goalMet bool) (next int, credited bool) {
	if !goalMet {
		return streak, false
	}
	if last != nil && sameDay(*last, today) {
		return streak, false
	}
	if last != nil && sameDay(*last, today.AddDate(0, 0, -1)) {
		return streak + 1, true
	}
	return 1, true
}

// dateIn returns t's calendar date in loc as midnight UTC, the form DATE
// columns round-trip through.
func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
