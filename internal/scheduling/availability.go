package scheduling

import (
	"sort"
	"time"

	"github.com/tutordesk/backend/internal/models"
)

const (
	ReasonOutsideAvailability = "outside teacher availability"
	ReasonOverlapsClass       = "overlaps existing class"
	ReasonOverlapsRequested   = "overlaps another requested slot"
)

// Calendar is a teacher's recurring availability plus the classes already on the books,
// evaluated in the business time zone.
type Calendar struct {
	Location     *time.Location
	Availability []models.TeacherAvailability
	Classes      []models.Class
	// ExcludeClassID skips one class when checking overlaps, used when rescheduling it.
	ExcludeClassID int64
}

type window struct {
	start int
	end   int
}

func (w window) startOffset() time.Duration { return time.Duration(w.start) * time.Minute }

func (w window) endOffset() time.Duration { return time.Duration(w.end) * time.Minute }

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Check reports whether [start, start+duration) is bookable.
func (c Calendar) Check(start time.Time, duration time.Duration) models.AvailabilityResult {
	if duration <= 0 {
		return models.AvailabilityResult{Available: false, Reason: ReasonOutsideAvailability}
	}
	if !c.withinAvailability(start, duration) {
		return models.AvailabilityResult{Available: false, Reason: ReasonOutsideAvailability}
	}
	if _, booked := c.overlappingClass(start, start.Add(duration)); booked {
		return models.AvailabilityResult{Available: false, Reason: ReasonOverlapsClass}
	}
	return models.AvailabilityResult{Available: true}
}

func (c Calendar) withinAvailability(start time.Time, duration time.Duration) bool {
	local := start.In(c.location())
	from := wallOffset(local)
	to := from + duration
	if to > minutesPerDay*time.Minute {
		return false
	}

	open, closed := c.windowsFor(int(local.Weekday()))
	for _, w := range closed {
		if from < w.endOffset() && w.startOffset() < to {
			return false
		}
	}
	for _, w := range open {
		if from >= w.startOffset() && to <= w.endOffset() {
			return true
		}
	}
	return false
}

// windowsFor returns merged open windows and the closed windows of a weekday. A weekday
// without any rows is open 08:00-20:00.
func (c Calendar) windowsFor(day int) (open []window, closed []window) {
	hasRows := false
	for _, row := range c.Availability {
		if row.DayOfWeek != day {
			continue
		}
		hasRows = true

		start, err := ParseClock(row.StartTime)
		if err != nil {
			continue
		}
		end, err := ParseClock(row.EndTime)
		if err != nil || end <= start {
			continue
		}
		if row.IsAvailable {
			open = append(open, window{start: start, end: end})
		} else {
			closed = append(closed, window{start: start, end: end})
		}
	}
	if !hasRows {
		return []window{{start: defaultOpenStart, end: defaultOpenEnd}}, nil
	}
	return mergeWindows(open), closed
}

func mergeWindows(windows []window) []window {
	if len(windows) < 2 {
		return windows
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

	merged := []window{windows[0]}
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.start <= last.end {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

func (c Calendar) overlappingClass(start, end time.Time) (*models.Class, bool) {
	for i := range c.Classes {
		class := &c.Classes[i]
		if class.Status == models.ClassStatusCancelled || (c.ExcludeClassID != 0 && class.ID == c.ExcludeClassID) {
			continue
		}
		if Overlaps(start, end, class.ClassDate, class.EndsAt()) {
			return class, true
		}
	}
	return nil, false
}

// Overlaps is the half-open interval intersection of [aStart, aEnd) and [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
