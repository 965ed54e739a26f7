package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ResourceRepository interface {
	GetOrCreate(ctx context.Context, userID, facilityID uuid.UUID) (*Resource, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Resource, error)
	GetByUserFacility(ctx context.Context, userID, facilityID uuid.UUID) (*Resource, error)
	ListUserIDsByFacility(ctx context.Context, facilityID uuid.UUID) ([]uuid.UUID, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*Schedule, int, error)
	// ListOverlapping returns schedules whose validity window intersects
	// [from, to], both bounds inclusive.
	ListOverlapping(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*Schedule, error)
}

type AvailabilityRepository interface {
	Create(ctx context.Context, a *Availability) error
	GetByID(ctx context.Context, id uuid.UUID) (*Availability, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*Availability, error)
	// ListByScheduleIDs returns availabilities of the given slot type across
	// several schedules, keyed by schedule.
	ListByScheduleIDs(ctx context.Context, scheduleIDs []uuid.UUID, slotType SlotType) (map[uuid.UUID][]*Availability, error)
	// ListAppointmentForDay returns appointment-type availabilities whose
	// owning schedule's validity window contains the given day.
	ListAppointmentForDay(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*Availability, error)
}

type ExceptionRepository interface {
	Create(ctx context.Context, e *AvailabilityException) error
	GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityException, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*AvailabilityException, int, error)
	// ListCovering returns exceptions whose date range contains the day.
	ListCovering(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*AvailabilityException, error)
	// ListOverlapping returns exceptions whose date range intersects [from, to].
	ListOverlapping(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*AvailabilityException, error)
}

type SlotRepository interface {
	Create(ctx context.Context, sl *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// GetByIDForUpdate re-reads the slot under a row lock; callers must be
	// inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListForDay(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*Slot, error)
	// UpdateAllocated adjusts the allocation counter by delta.
	UpdateAllocated(ctx context.Context, id uuid.UUID, delta int) error
	// SumAllocatedInWindow sums allocations across a schedule's slots whose
	// start falls inside [from, to].
	SumAllocatedInWindow(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) (int, error)
	// HasFutureAllocated reports whether any slot under the given
	// availabilities starts after now with a nonzero allocation.
	HasFutureAllocated(ctx context.Context, availabilityIDs []uuid.UUID, now time.Time) (bool, error)
	// AllocatedTotalsByDay sums allocations grouped by start date for slots
	// starting in [from, to]; keys use the "2006-01-02" format.
	AllocatedTotalsByDay(ctx context.Context, resourceID uuid.UUID, from, to time.Time) (map[string]int, error)
	// HasAllocatedInException reports whether any allocated slot conflicts
	// with the exception's repeated daily range.
	HasAllocatedInException(ctx context.Context, e *AvailabilityException) (bool, error)
	// DeleteUnallocatedInException soft-deletes conflicting slots that hold
	// no allocations.
	DeleteUnallocatedInException(ctx context.Context, e *AvailabilityException) (int64, error)
	// DeleteByAvailabilities soft-deletes all slots under the availabilities.
	DeleteByAvailabilities(ctx context.Context, availabilityIDs []uuid.UUID) error
}

// BookingFilters narrows booking list queries. Zero values are ignored.
type BookingFilters struct {
	Status     BookingStatus
	PatientID  uuid.UUID
	ResourceID uuid.UUID
	SlotID     uuid.UUID
	DateFrom   time.Time
	DateTo     time.Time
}

type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	Update(ctx context.Context, b *Booking) error
	// HasActiveForSlotPatient reports whether a non-cancelled booking exists
	// for the (slot, patient) pair.
	HasActiveForSlotPatient(ctx context.Context, slotID, patientID uuid.UUID) (bool, error)
	List(ctx context.Context, filters BookingFilters, limit, offset int) ([]*Booking, int, error)
}
