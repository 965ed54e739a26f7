package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const statsDayFormat = "2006-01-02"

// AvailabilityStats computes, for every date in [from, to], the total bookable
// capacity against the allocations already taken. Totals come from expanding
// the weekly windows analytically, never from the slot table, so the numbers
// are correct even for days nobody has materialized yet.
func (s *Service) AvailabilityStats(ctx context.Context, facilityExternalID, userExternalID string, from, to time.Time) (map[string]DayStats, error) {
	if err := validatePeriod(from, to, maxStatsPeriodDays); err != nil {
		return nil, err
	}
	resource, err := s.resolveResource(ctx, userExternalID, facilityExternalID)
	if err != nil {
		return nil, err
	}

	from, to = dateOf(from), dateOf(to)

	schedules, err := s.schedules.ListOverlapping(ctx, resource.ID, from, to)
	if err != nil {
		return nil, err
	}
	scheduleIDs := make([]uuid.UUID, 0, len(schedules))
	for _, sched := range schedules {
		scheduleIDs = append(scheduleIDs, sched.ID)
	}
	availabilities, err := s.availabilities.ListByScheduleIDs(ctx, scheduleIDs, SlotTypeAppointment)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.exceptions.ListOverlapping(ctx, resource.ID, from, to)
	if err != nil {
		return nil, err
	}

	days := make(map[string]DayStats)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		var dayExceptions []*AvailabilityException
		for _, exc := range exceptions {
			if exc.Covers(day) {
				dayExceptions = append(dayExceptions, exc)
			}
		}
		total := 0
		for _, sched := range schedules {
			if !sched.Contains(day) {
				continue
			}
			for _, a := range availabilities[sched.ID] {
				for range expandWindows(a, dayExceptions, day) {
					total += *a.TokensPerSlot
				}
			}
		}
		days[day.Format(statsDayFormat)] = DayStats{TotalSlots: total}
	}

	allocated, err := s.slots.AllocatedTotalsByDay(ctx, resource.ID, from, to)
	if err != nil {
		return nil, err
	}
	for key, sum := range allocated {
		if stats, ok := days[key]; ok {
			stats.BookedSlots = sum
			days[key] = stats
		}
	}
	return days, nil
}
