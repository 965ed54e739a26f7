package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ehr/scheduler/internal/platform/lock"
)

// CreateAppointment books a slot for a patient. The allocation check, the
// duplicate check and the counter increment all happen while holding the
// resource lock inside one transaction, so two racing requests on the same
// resource serialize and the loser sees the updated counter.
func (s *Service) CreateAppointment(ctx context.Context, slotID uuid.UUID, patientExternalID, reasonForVisit, actor string) (*Booking, error) {
	sl, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	patient, err := s.directory.LookupPatient(ctx, patientExternalID)
	if err != nil {
		return nil, err
	}

	var booking *Booking
	err = s.locks.WithLock(ctx, lock.ResourceKey(sl.ResourceID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			b, err := s.allocate(ctx, slotID, patient.ID, reasonForVisit, actor)
			if err != nil {
				return err
			}
			booking = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// allocate performs the guarded increment-and-create. Callers must hold the
// resource lock and an open transaction.
func (s *Service) allocate(ctx context.Context, slotID, patientID uuid.UUID, reasonForVisit, actor string) (*Booking, error) {
	sl, err := s.slots.GetByIDForUpdate(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if sl.StartDatetime.Before(s.now()) {
		return nil, ErrSlotExpired
	}
	availability, err := s.availabilities.GetByID(ctx, sl.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if availability.TokensPerSlot == nil || sl.Allocated >= *availability.TokensPerSlot {
		return nil, ErrSlotFull
	}
	duplicate, err := s.bookings.HasActiveForSlotPatient(ctx, slotID, patientID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, ErrDuplicateBooking
	}
	if err := s.slots.UpdateAllocated(ctx, slotID, +1); err != nil {
		return nil, err
	}
	booking := &Booking{
		SlotID:         slotID,
		PatientID:      patientID,
		Status:         BookingStatusBooked,
		ReasonForVisit: reasonForVisit,
		BookedBy:       actor,
		UpdatedBy:      actor,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking moves a booking into a terminal state. The slot allocation is
// released only on the first transition into the cancelled set; re-cancelling
// with a different terminal reason updates the status without touching the
// counter again.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason BookingStatus, actor string) (*Booking, error) {
	if !reason.IsCancelled() {
		return nil, fmt.Errorf("invalid cancellation reason: %s", reason)
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sl, err := s.slots.GetByID(ctx, booking.SlotID)
	if err != nil {
		return nil, err
	}

	err = s.locks.WithLock(ctx, lock.ResourceKey(sl.ResourceID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.release(ctx, booking, reason, actor)
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// release performs the guarded decrement-and-update. Callers must hold the
// resource lock and an open transaction.
func (s *Service) release(ctx context.Context, booking *Booking, reason BookingStatus, actor string) error {
	if !booking.Status.IsCancelled() {
		if err := s.slots.UpdateAllocated(ctx, booking.SlotID, -1); err != nil {
			return err
		}
	}
	booking.Status = reason
	booking.UpdatedBy = actor
	return s.bookings.Update(ctx, booking)
}

// RescheduleBooking atomically moves a booking to a new slot on the same
// resource: the old booking becomes rescheduled and a fresh one is created
// against the new slot, subject to the usual expiry and capacity checks.
func (s *Service) RescheduleBooking(ctx context.Context, id, newSlotID uuid.UUID, actor string) (*Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlot, err := s.slots.GetByID(ctx, booking.SlotID)
	if err != nil {
		return nil, err
	}
	newSlot, err := s.slots.GetByID(ctx, newSlotID)
	if err != nil {
		return nil, err
	}
	if newSlot.ResourceID != oldSlot.ResourceID {
		return nil, ErrDifferentResource
	}

	var replacement *Booking
	err = s.locks.WithLock(ctx, lock.ResourceKey(oldSlot.ResourceID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.release(ctx, booking, BookingStatusRescheduled, actor); err != nil {
				return err
			}
			b, err := s.allocate(ctx, newSlotID, booking.PatientID, booking.ReasonForVisit, actor)
			if err != nil {
				return err
			}
			replacement = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}
