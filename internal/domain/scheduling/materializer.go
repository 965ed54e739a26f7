package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxSlotsPerWindow guards against a runaway expansion loop when a window is
// absurdly long relative to its slot size.
const maxSlotsPerWindow = 30

// slotCandidate is one interval produced by expanding a weekly window onto a
// concrete day.
type slotCandidate struct {
	start        time.Time
	end          time.Time
	availability *Availability
}

// expandWindows walks an availability's weekly windows that fall on the given
// day, stepping in slot-size increments and dropping any candidate that
// intersects an exception's daily range. The same expansion drives both slot
// materialization and the analytic stats totals, so the two always agree.
func expandWindows(a *Availability, exceptions []*AvailabilityException, day time.Time) []slotCandidate {
	dayStart := dateOf(day)
	dow := weekdayIndex(dayStart)
	size := time.Duration(*a.SlotSizeInMinutes) * time.Minute

	var candidates []slotCandidate
	for _, w := range a.Windows {
		if w.DayOfWeek != dow {
			continue
		}
		windowEnd := w.EndTime.At(dayStart)
		cur := w.StartTime.At(dayStart)
		for i := 0; cur.Before(windowEnd); i++ {
			if i == maxSlotsPerWindow {
				break
			}
			end := cur.Add(size)
			if !conflictsException(cur, end, exceptions, dayStart) {
				candidates = append(candidates, slotCandidate{start: cur, end: end, availability: a})
			}
			cur = end
		}
	}
	return candidates
}

func conflictsException(start, end time.Time, exceptions []*AvailabilityException, dayStart time.Time) bool {
	for _, exc := range exceptions {
		excStart := exc.StartTime.At(dayStart)
		excEnd := exc.EndTime.At(dayStart)
		if excStart.Before(end) && excEnd.After(start) {
			return true
		}
	}
	return false
}

// slotKey identifies a materialized interval within a day.
func slotKey(start, end time.Time, availabilityID uuid.UUID) string {
	return fmt.Sprintf("%s-%s-%s", start.Format("15:04"), end.Format("15:04"), availabilityID)
}

// GetSlotsForDay materializes and returns the bookable slots for one user on
// one day at a facility. Candidates already on record are skipped, so repeat
// calls are idempotent; existing slots are never mutated.
func (s *Service) GetSlotsForDay(ctx context.Context, facilityExternalID, userExternalID string, day time.Time) ([]*SlotView, error) {
	resource, err := s.resolveResource(ctx, userExternalID, facilityExternalID)
	if err != nil {
		return nil, err
	}

	availabilities, err := s.availabilities.ListAppointmentForDay(ctx, resource.ID, day)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.exceptions.ListCovering(ctx, resource.ID, day)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*Availability, len(availabilities))
	candidates := make(map[string]slotCandidate)
	for _, a := range availabilities {
		byID[a.ID] = a
		for _, c := range expandWindows(a, exceptions, day) {
			candidates[slotKey(c.start, c.end, a.ID)] = c
		}
	}

	existing, err := s.slots.ListForDay(ctx, resource.ID, day)
	if err != nil {
		return nil, err
	}
	for _, sl := range existing {
		delete(candidates, slotKey(sl.StartDatetime, sl.EndDatetime, sl.AvailabilityID))
	}

	if len(candidates) > 0 {
		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			for _, c := range candidates {
				sl := &Slot{
					ResourceID:     resource.ID,
					AvailabilityID: c.availability.ID,
					StartDatetime:  c.start,
					EndDatetime:    c.end,
				}
				if err := s.slots.Create(ctx, sl); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		existing, err = s.slots.ListForDay(ctx, resource.ID, day)
		if err != nil {
			return nil, err
		}
	}

	views := make([]*SlotView, 0, len(existing))
	for _, sl := range existing {
		view := &SlotView{
			ID:            sl.ID,
			StartDatetime: sl.StartDatetime,
			EndDatetime:   sl.EndDatetime,
			Allocated:     sl.Allocated,
		}
		if a, ok := byID[sl.AvailabilityID]; ok {
			view.Availability = a.Ref()
		} else if a, err := s.availabilities.GetByID(ctx, sl.AvailabilityID); err == nil {
			byID[a.ID] = a
			view.Availability = a.Ref()
		}
		views = append(views, view)
	}
	return views, nil
}

// GetSlot returns one slot with its availability annotation.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*SlotView, error) {
	sl, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &SlotView{
		ID:            sl.ID,
		StartDatetime: sl.StartDatetime,
		EndDatetime:   sl.EndDatetime,
		Allocated:     sl.Allocated,
	}
	if a, err := s.availabilities.GetByID(ctx, sl.AvailabilityID); err == nil {
		view.Availability = a.Ref()
	}
	return view, nil
}
