package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a day of the seller's week. The marketplace calendar starts on Saturday.
type Weekday int

const (
	Saturday Weekday = iota
	Sunday
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
)

var weekdayNames = [...]string{"Saturday", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

func (d Weekday) String() string {
	if !d.Valid() {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

// Valid reports whether d is one of the seven named days.
func (d Weekday) Valid() bool {
	return d >= Saturday && d <= Friday
}

// ParseWeekday accepts full English day names and their three-letter forms.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, full := range weekdayNames {
		lower := strings.ToLower(full)
		if name == lower || (len(name) == 3 && strings.HasPrefix(lower, name)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("booking: unknown weekday %q", s)
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("booking: invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func weekdayOf(w time.Weekday) Weekday {
	return Weekday((int(w) + 1) % 7)
}

// WeekdaySet is a set of active weekdays.
type WeekdaySet uint8

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d.Valid() {
			s |= 1 << uint(d)
		}
	}
	return s
}

func (s WeekdaySet) Has(d Weekday) bool {
	return d.Valid() && s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool { return s == 0 }

// Days lists the members in calendar order, Saturday first.
func (s WeekdaySet) Days() []Weekday {
	out := make([]Weekday, 0, 7)
	for d := Saturday; d <= Friday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// CalendarDate is a day on the seller's calendar, independent of time zone.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

const isoDate = "2006-01-02"

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (CalendarDate, error) {
	t, err := time.Parse(isoDate, strings.TrimSpace(s))
	if err != nil {
		return CalendarDate{}, fmt.Errorf("booking: invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d CalendarDate) IsZero() bool { return d == CalendarDate{} }

// String renders the date as YYYY-MM-DD with no offset applied.
func (d CalendarDate) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d CalendarDate) Weekday() Weekday {
	return weekdayOf(d.midnight().Weekday())
}

func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.midnight().AddDate(0, 0, n))
}

func (d CalendarDate) Before(o CalendarDate) bool {
	return d.midnight().Before(o.midnight())
}

// DaysUntil returns the number of whole days from d to o.
func (d CalendarDate) DaysUntil(o CalendarDate) int {
	return int(o.midnight().Sub(d.midnight()).Hours() / 24)
}

func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CalendarDate) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = CalendarDate{}
		return nil
	}
	// Backend timestamps such as 2026-10-24T00:00:00.000000Z keep their date part.
	s := string(b)
	if len(s) > len(isoDate) && s[len(isoDate)] == 'T' {
		s = s[:len(isoDate)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time (HH:MM). The zero value means "not set".
type TimeOfDay struct {
	hour, minute int
	set          bool
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("booking: invalid time %02d:%02d", hour, minute)
	}
	return TimeOfDay{hour: hour, minute: minute, set: true}, nil
}

// MustTimeOfDay is NewTimeOfDay for constants.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay accepts HH:MM and HH:MM:SS; seconds are dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("booking: invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("booking: invalid time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("booking: invalid time %q", s)
	}
	return NewTimeOfDay(h, m)
}

func (t TimeOfDay) IsZero() bool { return !t.set }
func (t TimeOfDay) Hour() int    { return t.hour }
func (t TimeOfDay) Minute() int  { return t.minute }

func (t TimeOfDay) String() string {
	if !t.set {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", t.hour, t.minute)
}

func (t TimeOfDay) minutes() int { return t.hour*60 + t.minute }

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.minutes() < o.minutes() }

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = TimeOfDay{}
		return nil
	}
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
