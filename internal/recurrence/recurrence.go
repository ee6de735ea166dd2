// Package recurrence turns a recurring template date into concrete calendar
// days, and answers whether a template would fall on a given day without
// materializing anything.
package recurrence

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/GregMSThompson/household-ledger/internal/models"
)

// MaxInstances caps a single expansion.
const MaxInstances = 366

// Expand returns the dates a template starting on start repeats on, up to
// and including end. The result is strictly increasing, always contains
// start, and never holds more than MaxInstances dates. When end is before
// start the template degrades to a single occurrence.
//
// Monthly and yearly rules are anchored on start: the n-th instance is start
// plus n months (or years) with the day clamped to the last day of the
// target month, so Jan 31 yields Feb 29, Mar 31, Apr 30 rather than drifting.
func Expand(start, end civil.Date, rule models.Recurrence) []civil.Date {
	if end.Before(start) || rule == models.RecurrenceNone || !rule.Valid() {
		return []civil.Date{start}
	}

	out := []civil.Date{start}
	for n := 1; len(out) < MaxInstances; n++ {
		next, ok := nth(start, rule, n, out[len(out)-1])
		if !ok || next.After(end) {
			break
		}
		out = append(out, next)
	}
	return out
}

// nth returns the n-th instance after start; prev is the (n-1)-th instance.
func nth(start civil.Date, rule models.Recurrence, n int, prev civil.Date) (civil.Date, bool) {
	switch rule {
	case models.RecurrenceDaily:
		return prev.AddDays(1), true
	case models.RecurrenceWeekly:
		return prev.AddDays(7), true
	case models.RecurrenceMonthly:
		return addMonthsClamped(start, n), true
	case models.RecurrenceYearly:
		return addMonthsClamped(start, 12*n), true
	case models.RecurrenceWeekdays, models.RecurrenceWeekends:
		d := prev.AddDays(1)
		for !dayMatches(rule, d) {
			d = d.AddDays(1)
		}
		return d, true
	default:
		return civil.Date{}, false
	}
}

// OccursOn reports whether a template dated template with the given rule
// falls on candidate. It is the display-time counterpart of Expand: monthly
// matching compares day-of-month exactly and does not clamp.
func OccursOn(template, candidate civil.Date, rule models.Recurrence) bool {
	if template == candidate {
		return true
	}
	if rule == models.RecurrenceNone || candidate.Before(template) {
		return false
	}

	switch rule {
	case models.RecurrenceDaily:
		return true
	case models.RecurrenceWeekly:
		return weekday(template) == weekday(candidate)
	case models.RecurrenceMonthly:
		return template.Day == candidate.Day
	case models.RecurrenceYearly:
		return template.Day == candidate.Day && template.Month == candidate.Month
	case models.RecurrenceWeekdays, models.RecurrenceWeekends:
		return dayMatches(rule, candidate)
	default:
		return false
	}
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the first and last day of the month containing d.
func MonthBounds(d civil.Date) (civil.Date, civil.Date) {
	first := civil.Date{Year: d.Year, Month: d.Month, Day: 1}
	last := civil.Date{Year: d.Year, Month: d.Month, Day: DaysIn(d.Year, d.Month)}
	return first, last
}

func addMonthsClamped(d civil.Date, months int) civil.Date {
	total := int(d.Month) - 1 + months
	year := d.Year + total/12
	month := time.Month(total%12 + 1)
	day := d.Day
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

func weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

func dayMatches(rule models.Recurrence, d civil.Date) bool {
	wd := weekday(d)
	weekend := wd == time.Saturday || wd == time.Sunday
	if rule == models.RecurrenceWeekends {
		return weekend
	}
	return !weekend
}
