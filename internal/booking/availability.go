package booking

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultQuickPickDays = 7
	DefaultCalendarDays  = 365
)

// Timetable is the part of the marketplace API that knows seller schedules.
type Timetable interface {
	ActiveDays(ctx context.Context, sellerID int64) ([]ActiveDay, error)
	AvailableTimes(ctx context.Context, sellerID int64, date CalendarDate) ([]TimeOfDay, error)
}

// Resolver answers which dates and times a seller can be booked on.
type Resolver struct {
	api Timetable
}

func NewResolver(api Timetable) *Resolver {
	if api == nil {
		panic("booking: timetable required")
	}
	return &Resolver{api: api}
}

// ActiveDays returns the seller's weekly template. An empty template is a
// legitimate "unavailable" state, not an error.
func (r *Resolver) ActiveDays(ctx context.Context, sellerID int64) ([]ActiveDay, error) {
	days, err := r.api.ActiveDays(ctx, sellerID)
	if err != nil {
		return nil, classify(opActiveDays, err)
	}
	return days, nil
}

func (r *Resolver) ActiveWeekdays(ctx context.Context, sellerID int64) (WeekdaySet, error) {
	days, err := r.ActiveDays(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	return WeekdaysOf(days), nil
}

// AvailableSlots fetches the free times for one date. On failure the slot list
// is empty; it is never a previous date's list.
func (r *Resolver) AvailableSlots(ctx context.Context, sellerID int64, date CalendarDate) ([]TimeOfDay, error) {
	if date.IsZero() {
		return []TimeOfDay{}, fmt.Errorf("%w: available slots need a date", ErrContract)
	}
	slots, err := r.api.AvailableTimes(ctx, sellerID, date)
	if err != nil {
		return []TimeOfDay{}, classify(opAvailableTime, err)
	}
	return normalizeSlots(slots), nil
}

func normalizeSlots(in []TimeOfDay) []TimeOfDay {
	seen := make(map[int]struct{}, len(in))
	out := make([]TimeOfDay, 0, len(in))
	for _, t := range in {
		if t.IsZero() {
			continue
		}
		if _, dup := seen[t.minutes()]; dup {
			continue
		}
		seen[t.minutes()] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func WeekdaysOf(days []ActiveDay) WeekdaySet {
	var set WeekdaySet
	for _, d := range days {
		set |= NewWeekdaySet(d.Weekday)
	}
	return set
}

// IsBookable reports whether date falls on an active weekday.
func IsBookable(set WeekdaySet, date CalendarDate) bool {
	return !date.IsZero() && set.Has(date.Weekday())
}

// OfferedDates enumerates the bookable dates in [from, from+days).
func OfferedDates(set WeekdaySet, from CalendarDate, days int) []CalendarDate {
	out := []CalendarDate{}
	if set.Empty() {
		return out
	}
	for i := 0; i < days; i++ {
		d := from.AddDays(i)
		if IsBookable(set, d) {
			out = append(out, d)
		}
	}
	return out
}

// MonthGroup is one month of the full date picker.
type MonthGroup struct {
	Year  int            `json:"year"`
	Month time.Month     `json:"month"`
	Label string         `json:"label"`
	Dates []CalendarDate `json:"dates"`
}

// GroupByMonth groups ordered dates by calendar month.
func GroupByMonth(dates []CalendarDate) []MonthGroup {
	groups := []MonthGroup{}
	for _, d := range dates {
		n := len(groups)
		if n == 0 || groups[n-1].Year != d.Year || groups[n-1].Month != d.Month {
			groups = append(groups, MonthGroup{
				Year:  d.Year,
				Month: d.Month,
				Label: fmt.Sprintf("%s %d", d.Month, d.Year),
			})
			n++
		}
		groups[n-1].Dates = append(groups[n-1].Dates, d)
	}
	return groups
}

// QuickPick is the short row of dates shown above the full picker.
func QuickPick(set WeekdaySet, today CalendarDate, days int) []CalendarDate {
	if days <= 0 {
		days = DefaultQuickPickDays
	}
	return OfferedDates(set, today, days)
}

// Calendar is the full date picker, grouped by month.
func Calendar(set WeekdaySet, today CalendarDate, days int) []MonthGroup {
	if days <= 0 {
		days = DefaultCalendarDays
	}
	return GroupByMonth(OfferedDates(set, today, days))
}
