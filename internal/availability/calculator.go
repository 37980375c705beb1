// Package availability computes the bookable slots of a doctor for one calendar day.
package availability

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
)

// Calculator turns a DoctorSchedule and the day's bookings into free slot start times.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	clock    Clock
	location *time.Location
}

// NewCalculator builds a Calculator. A nil clock falls back to SystemClock and a
// nil location to UTC.
func NewCalculator(clock Clock, location *time.Location) *Calculator {
	if clock == nil {
		clock = SystemClock{}
	}
	if location == nil {
		location = time.UTC
	}
	return &Calculator{clock: clock, location: location}
}

// Today returns midnight of the current day in the calculator's location.
func (c *Calculator) Today() time.Time {
	now := c.clock.Now().In(c.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location)
}

// ParseDate parses a "YYYY-MM-DD" calendar day in the calculator's location.
func (c *Calculator) ParseDate(value string) (time.Time, error) {
	return ParseDate(value, c.location)
}

// ParseDate parses a "YYYY-MM-DD" calendar day in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &InputError{Reason: "date is required"}
	}
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, &InputError{Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return d, nil
}

// ValidateSchedule checks the fields Slots relies on. A StartHour at or after
// EndHour is valid and simply yields no slots.
func ValidateSchedule(s models.DoctorSchedule) error {
	if _, err := parseClock("startHour", s.StartHour); err != nil {
		return err
	}
	if _, err := parseClock("endHour", s.EndHour); err != nil {
		return err
	}
	if s.SlotDuration <= 0 {
		return &ConfigurationError{Field: "slotDuration", Reason: "must be a positive number of minutes"}
	}
	for _, d := range s.WorkDays {
		if d < 0 || d > 6 {
			return &ConfigurationError{Field: "workDays", Reason: "weekdays must be between 0 (Sunday) and 6 (Saturday)"}
		}
	}
	return nil
}

// Slots returns the free "HH:mm" slot starts of doctorID on date, in ascending order.
//
// Only the calendar day of date is used. Appointments for other days, or for a
// different doctor when both IDs are known, are ignored; cancelled appointments
// never occupy a slot. When date is today in the calculator's location, slots
// starting strictly before the current time are dropped.
func (c *Calculator) Slots(doctorID primitive.ObjectID, schedule models.DoctorSchedule, date time.Time, existing []models.Appointment) ([]string, error) {
	if date.IsZero() {
		return nil, &InputError{Reason: "date is required"}
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	// The calendar day is taken as given; converting zones first could move it.
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, c.location)

	slots := []string{}
	if !worksOn(schedule.WorkDays, WeekdayNumber(day)) {
		return slots, nil
	}

	start, _ := parseClock("startHour", schedule.StartHour)
	end, _ := parseClock("endHour", schedule.EndHour)

	dayKey := day.Format(models.DateLayout)
	occupied := make(map[string]struct{})
	for _, a := range existing {
		if !a.Occupies() || a.Date != dayKey {
			continue
		}
		if !doctorID.IsZero() && !a.DoctorID.IsZero() && a.DoctorID != doctorID {
			continue
		}
		occupied[normalizeTime(a.Time)] = struct{}{}
	}

	// Slots are whole wall-clock minutes of the day, so DST shifts neither skip
	// nor repeat a label.
	now := c.clock.Now().In(c.location)
	today := sameDay(now, day)
	elapsed := sinceMidnight(now)

	for m := minuteOfDay(start); m < minuteOfDay(end); m += schedule.SlotDuration {
		if today && time.Duration(m)*time.Minute < elapsed {
			continue
		}
		label := fmt.Sprintf("%02d:%02d", m/60, m%60)
		if _, taken := occupied[label]; taken {
			continue
		}
		slots = append(slots, label)
	}
	return slots, nil
}

// IsAvailable reports whether slot is among the free slots of the given day.
func (c *Calculator) IsAvailable(doctorID primitive.ObjectID, schedule models.DoctorSchedule, date time.Time, existing []models.Appointment, slot string) (bool, error) {
	slots, err := c.Slots(doctorID, schedule, date, existing)
	if err != nil {
		return false, err
	}
	want := normalizeTime(slot)
	for _, s := range slots {
		if s == want {
			return true, nil
		}
	}
	return false, nil
}

// parseClock parses an "HH:mm" wall-clock value.
func parseClock(field, value string) (time.Time, error) {
	t, err := time.Parse(models.TimeLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ConfigurationError{Field: field, Reason: "expected HH:mm"}
	}
	return t, nil
}

func minuteOfDay(clock time.Time) int {
	return clock.Hour()*60 + clock.Minute()
}

// sinceMidnight is the wall-clock time of day of t.
func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// normalizeTime rewrites "9:00" style values as "09:00"; unparseable values pass through.
func normalizeTime(value string) string {
	value = strings.TrimSpace(value)
	t, err := time.Parse(models.TimeLayout, value)
	if err != nil {
		return value
	}
	return t.Format(models.TimeLayout)
}

func worksOn(days []int, weekday int) bool {
	for _, d := range days {
		if d == weekday {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
