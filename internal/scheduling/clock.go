package scheduling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tutordesk/backend/internal/models"
)

const (
	DefaultClassDuration = 50 * time.Minute

	defaultOpenStart = 8 * 60
	defaultOpenEnd   = 20 * 60
	minutesPerDay    = 24 * 60
)

var (
	ErrEmptySchedule   = errors.New("weekly schedule is empty")
	ErrInvalidSlot     = errors.New("invalid weekly slot")
	ErrInvalidClock    = errors.New("time must be HH:MM")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidTotal    = errors.New("total lessons must be positive")
)

var weekdayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func WeekdayName(day int) string {
	if day < 0 || day >= len(weekdayNames) {
		return fmt.Sprintf("day %d", day)
	}
	return weekdayNames[day]
}

// ParseClock converts "HH:MM" (24h, "24:00" allowed as end of day) into minutes since midnight.
func ParseClock(value string) (int, error) {
	hours, minutes, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hours) == 0 || len(hours) > 2 || len(minutes) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return h*60 + m, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeSchedule validates every slot and rewrites times into canonical "HH:MM".
func NormalizeSchedule(slots []models.WeeklySlot) ([]models.WeeklySlot, error) {
	if len(slots) == 0 {
		return nil, ErrEmptySchedule
	}

	normalized := make([]models.WeeklySlot, 0, len(slots))
	for _, slot := range slots {
		if slot.DayOfWeek < 0 || slot.DayOfWeek > 6 {
			return nil, fmt.Errorf("%w: day_of_week %d", ErrInvalidSlot, slot.DayOfWeek)
		}
		if strings.TrimSpace(slot.Time) == "" {
			return nil, fmt.Errorf("%w: empty time", ErrInvalidSlot)
		}
		minutes, err := ParseClock(slot.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
		}
		if minutes >= minutesPerDay {
			return nil, fmt.Errorf("%w: time %q", ErrInvalidSlot, slot.Time)
		}
		normalized = append(normalized, models.WeeklySlot{
			DayOfWeek: slot.DayOfWeek,
			Time:      FormatClock(minutes),
		})
	}
	return normalized, nil
}

// NextOccurrence returns the first instant strictly after now that falls on the slot's
// weekday and wall clock in loc.
func NextOccurrence(slot models.WeeklySlot, now time.Time, loc *time.Location) (time.Time, error) {
	minutes, err := ParseClock(slot.Time)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc)
	daysAhead := (slot.DayOfWeek - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+daysAhead, minutes/60, minutes%60, 0, 0, loc)
	if !candidate.After(now) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+daysAhead+7, minutes/60, minutes%60, 0, 0, loc)
	}
	return candidate, nil
}

// addWeeks keeps the wall clock stable across DST changes.
func addWeeks(t time.Time, weeks int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+7*weeks, t.Hour(), t.Minute(), 0, 0, t.Location())
}

// wallOffset is the wall-clock time since local midnight, to the nanosecond.
func wallOffset(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}
