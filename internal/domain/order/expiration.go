package order

import "time"

// CalculateExpiration derives the expiration date of an order applied on applicationDate.
// Unknown policies behave like fixed_period with DefaultPeriodMonths.
func CalculateExpiration(t *OrderType, applicationDate time.Time) time.Time {
	if t == nil {
		return AddMonthsClamped(applicationDate, DefaultPeriodMonths)
	}
	switch t.Policy {
	case PolicyCalendarYearEnd:
		return time.Date(applicationDate.Year(), time.December, 31, 23, 59, 59, 0, applicationDate.Location())
	case PolicyFixedPeriod:
		return AddMonthsClamped(applicationDate, t.Months())
	default:
		return AddMonthsClamped(applicationDate, DefaultPeriodMonths)
	}
}

// AddMonthsClamped adds months to t keeping the day of month when it exists in the target month
// and clamping it to the month's last day otherwise (Jan 31 + 1 month = Feb 28 or 29).
// time.AddDate would overflow into the next month instead.
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
