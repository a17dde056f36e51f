package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/tutordesk/backend/internal/models"
)

// SlotConflict names the weekly slot whose candidate date could not be booked.
type SlotConflict struct {
	DayOfWeek int       `json:"day_of_week"`
	Time      string    `json:"time"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}

func (e *SlotConflict) Error() string {
	return fmt.Sprintf("%s %s (%s): %s", WeekdayName(e.DayOfWeek), e.Time, e.Date.Format("2006-01-02"), e.Reason)
}

type PlanInput struct {
	Schedule       []models.WeeklySlot
	TotalLessons   int
	FirstClassFree bool
	Duration       time.Duration
	Now            time.Time
	Calendar       Calendar
}

// PlannedClass is one dated lesson produced from a weekly slot.
type PlannedClass struct {
	Start    time.Time
	Slot     models.WeeklySlot
	Sequence int
	IsFree   bool
}

// PlanClasses expands a weekly schedule into TotalLessons dated lessons in chronological
// order. Slots are ordered by their next occurrence after Now and cycled, each round one
// week later than the previous. Every candidate is checked against the calendar and the
// lessons already planned; the first failure aborts the whole plan with a *SlotConflict.
func PlanClasses(input PlanInput) ([]PlannedClass, error) {
	if input.TotalLessons <= 0 {
		return nil, ErrInvalidTotal
	}
	duration := input.Duration
	if duration == 0 {
		duration = DefaultClassDuration
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}

	schedule, err := NormalizeSchedule(input.Schedule)
	if err != nil {
		return nil, err
	}

	loc := input.Calendar.location()
	type firstOccurrence struct {
		slot  models.WeeklySlot
		start time.Time
	}
	firsts := make([]firstOccurrence, 0, len(schedule))
	for _, slot := range schedule {
		start, err := NextOccurrence(slot, input.Now, loc)
		if err != nil {
			return nil, err
		}
		firsts = append(firsts, firstOccurrence{slot: slot, start: start})
	}
	sort.SliceStable(firsts, func(i, j int) bool { return firsts[i].start.Before(firsts[j].start) })

	planned := make([]PlannedClass, 0, input.TotalLessons)
	for week := 0; len(planned) < input.TotalLessons; week++ {
		for _, first := range firsts {
			if len(planned) == input.TotalLessons {
				break
			}
			start := addWeeks(first.start, week)
			if conflict := checkCandidate(input.Calendar, planned, first.slot, start, duration); conflict != nil {
				return nil, conflict
			}
			planned = append(planned, PlannedClass{
				Start:    start,
				Slot:     first.slot,
				Sequence: len(planned) + 1,
			})
		}
	}

	if input.FirstClassFree && len(planned) > 0 {
		planned[0].IsFree = true
	}
	return planned, nil
}

func checkCandidate(
	calendar Calendar,
	planned []PlannedClass,
	slot models.WeeklySlot,
	start time.Time,
	duration time.Duration,
) *SlotConflict {
	if result := calendar.Check(start, duration); !result.Available {
		return &SlotConflict{DayOfWeek: slot.DayOfWeek, Time: slot.Time, Date: start, Reason: result.Reason}
	}
	end := start.Add(duration)
	for _, other := range planned {
		if Overlaps(start, end, other.Start, other.Start.Add(duration)) {
			return &SlotConflict{DayOfWeek: slot.DayOfWeek, Time: slot.Time, Date: start, Reason: ReasonOverlapsRequested}
		}
	}
	return nil
}
