package domain

import (
	"time"
)

// Schedule is a weekly working-hours window in a named timezone.
// Days holds ISO weekday numbers (1 = Monday .. 7 = Sunday); Start and End
// are local wall-clock times in "15:04" format.
type Schedule struct {
	Days     []int
	Start    string
	End      string
	Timezone string
}

// WithinWorkingHours reports whether now falls inside the schedule.
// An unparseable schedule fails closed.
func WithinWorkingHours(s Schedule, now time.Time) bool {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return false
	}
	local := now.In(loc)

	isoDay := int(local.Weekday())
	if isoDay == 0 {
		isoDay = 7
	}
	dayMatch := false
	for _, d := range s.Days {
		if d == isoDay {
			dayMatch = true
			break
		}
	}
	if !dayMatch {
		return false
	}

	start, err := minutesOfDay(s.Start)
	if err != nil {
		return false
	}
	end, err := minutesOfDay(s.End)
	if err != nil {
		return false
	}

	current := local.Hour()*60 + local.Minute()
	return current >= start && current < end
}

func minutesOfDay(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
