package scheduling

import (
	"time"

	"github.com/tutordesk/backend/internal/models"
)

const DaySlotLength = 50 * time.Minute

// DailySlots lays out the calendar day view: 50 minute cells from 08:00, none ending after
// 20:00. A cell overlapping a class is booked; otherwise it is unavailable when the
// teacher's windows exclude it.
func DailySlots(date time.Time, calendar Calendar) []models.ScheduleSlot {
	loc := calendar.location()
	local := date.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), defaultOpenStart/60, defaultOpenStart%60, 0, 0, loc)
	dayEnd := time.Date(local.Year(), local.Month(), local.Day(), defaultOpenEnd/60, defaultOpenEnd%60, 0, 0, loc)

	slots := make([]models.ScheduleSlot, 0, 14)
	for start := dayStart; !start.Add(DaySlotLength).After(dayEnd); start = start.Add(DaySlotLength) {
		end := start.Add(DaySlotLength)
		slot := models.ScheduleSlot{
			Start:  start,
			End:    end,
			Label:  start.Format("15:04"),
			Status: models.SlotStatusAvailable,
		}

		if class, booked := calendar.overlappingClass(start, end); booked {
			id := class.ID
			slot.Status = models.SlotStatusBooked
			slot.ClassID = &id
		} else if !calendar.withinAvailability(start, DaySlotLength) {
			slot.Status = models.SlotStatusUnavailable
		}
		slots = append(slots, slot)
	}
	return slots
}
