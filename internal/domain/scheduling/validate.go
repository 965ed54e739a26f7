package scheduling

import (
	"fmt"
	"time"
)

// maxStatsPeriodDays bounds the availability-stats date range.
const maxStatsPeriodDays = 32

// hasOverlappingWindows reports whether any two windows on the same day of
// week overlap. Boundaries are compared inclusively, so back-to-back windows
// sharing an endpoint count as overlapping.
func hasOverlappingWindows(windows []AvailabilityWindow) bool {
	for i := 0; i < len(windows); i++ {
		for j := i + 1; j < len(windows); j++ {
			if windows[i].DayOfWeek != windows[j].DayOfWeek {
				continue
			}
			if windows[i].StartTime <= windows[j].EndTime && windows[j].StartTime <= windows[i].EndTime {
				return true
			}
		}
	}
	return false
}

// validatePeriod enforces from <= to and a maximum span in days.
func validatePeriod(from, to time.Time, maxDays int) error {
	if from.After(to) {
		return ErrInvalidPeriod
	}
	if to.Sub(from) > time.Duration(maxDays)*24*time.Hour {
		return ErrPeriodTooLong
	}
	return nil
}

// Validate checks an availability's internal consistency. For non-appointment
// slot types it clears the appointment-only fields instead of rejecting them.
func (a *Availability) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("availability name is required")
	}
	if !a.SlotType.Valid() {
		return fmt.Errorf("invalid slot type: %s", a.SlotType)
	}
	for _, w := range a.Windows {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return fmt.Errorf("day_of_week must be between 0 and 6, got %d", w.DayOfWeek)
		}
		if w.StartTime >= w.EndTime {
			return fmt.Errorf("start time must be earlier than end time")
		}
	}
	if hasOverlappingWindows(a.Windows) {
		return ErrOverlappingWindows
	}

	if a.SlotType != SlotTypeAppointment {
		a.SlotSizeInMinutes = nil
		a.TokensPerSlot = nil
		return nil
	}

	if a.SlotSizeInMinutes == nil || *a.SlotSizeInMinutes < 1 {
		return fmt.Errorf("slot size in minutes is required for appointment slots")
	}
	if a.TokensPerSlot == nil || *a.TokensPerSlot < 1 {
		return fmt.Errorf("tokens per slot is required for appointment slots")
	}
	for _, w := range a.Windows {
		durationMinutes := int(w.EndTime - w.StartTime)
		if durationMinutes%*a.SlotSizeInMinutes != 0 {
			return fmt.Errorf("availability duration must be a multiple of slot size in minutes")
		}
	}
	return nil
}

// validateAvailabilitySet checks the combined windows of several availabilities
// created together so that no two windows across the set overlap.
func validateAvailabilitySet(availabilities []*Availability) error {
	var combined []AvailabilityWindow
	for _, a := range availabilities {
		if err := a.Validate(); err != nil {
			return err
		}
		combined = append(combined, a.Windows...)
	}
	if hasOverlappingWindows(combined) {
		return ErrOverlappingWindows
	}
	return nil
}
