package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/scheduler/internal/domain/directory"
	"github.com/ehr/scheduler/internal/platform/db"
	"github.com/ehr/scheduler/internal/platform/lock"
)

// Directory resolves the external identifiers the API speaks in to the
// internal records scheduling works with.
type Directory interface {
	LookupUser(ctx context.Context, externalID string) (*directory.User, error)
	LookupPatient(ctx context.Context, externalID string) (*directory.Patient, error)
	LookupFacility(ctx context.Context, externalID string) (*directory.Facility, error)
	UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*directory.User, error)
}

// Deps collects everything the scheduling service needs.
type Deps struct {
	Resources      ResourceRepository
	Schedules      ScheduleRepository
	Availabilities AvailabilityRepository
	Exceptions     ExceptionRepository
	Slots          SlotRepository
	Bookings       BookingRepository
	Directory      Directory
	Locks          lock.Provider
	Tx             db.TxRunner
	// Now is swappable in tests; defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	resources      ResourceRepository
	schedules      ScheduleRepository
	availabilities AvailabilityRepository
	exceptions     ExceptionRepository
	slots          SlotRepository
	bookings       BookingRepository
	directory      Directory
	locks          lock.Provider
	tx             db.TxRunner
	now            func() time.Time
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		resources:      d.Resources,
		schedules:      d.Schedules,
		availabilities: d.Availabilities,
		exceptions:     d.Exceptions,
		slots:          d.Slots,
		bookings:       d.Bookings,
		directory:      d.Directory,
		locks:          d.Locks,
		tx:             d.Tx,
		now:            d.Now,
	}
}

// resolveResource maps a (user, facility) external-id pair to the schedulable
// resource, failing with ErrNotSchedulable when either side is unknown or no
// resource has been provisioned for the pair.
func (s *Service) resolveResource(ctx context.Context, userExternalID, facilityExternalID string) (*Resource, error) {
	user, err := s.directory.LookupUser(ctx, userExternalID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotSchedulable, userExternalID)
	}
	facility, err := s.directory.LookupFacility(ctx, facilityExternalID)
	if err != nil {
		return nil, fmt.Errorf("%w: facility %s", ErrNotSchedulable, facilityExternalID)
	}
	return s.resources.GetByUserFacility(ctx, user.ID, facility.ID)
}

// -- Schedule --

// ScheduleCreate is the payload for creating a schedule together with its
// initial availabilities.
type ScheduleCreate struct {
	UserExternalID string          `json:"user"`
	Name           string          `json:"name"`
	ValidFrom      time.Time       `json:"valid_from"`
	ValidTo        time.Time       `json:"valid_to"`
	Availabilities []*Availability `json:"availabilities"`
}

func (s *Service) CreateSchedule(ctx context.Context, facilityExternalID string, in *ScheduleCreate, actor string) (*Schedule, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("schedule name is required")
	}
	if in.ValidFrom.After(in.ValidTo) {
		return nil, ErrInvalidPeriod
	}
	if err := validateAvailabilitySet(in.Availabilities); err != nil {
		return nil, err
	}

	user, err := s.directory.LookupUser(ctx, in.UserExternalID)
	if err != nil {
		return nil, err
	}
	facility, err := s.directory.LookupFacility(ctx, facilityExternalID)
	if err != nil {
		return nil, err
	}

	resource, err := s.resources.GetOrCreate(ctx, user.ID, facility.ID)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{
		ResourceID: resource.ID,
		Name:       in.Name,
		ValidFrom:  in.ValidFrom,
		ValidTo:    in.ValidTo,
		CreatedBy:  actor,
		UpdatedBy:  actor,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.schedules.Create(ctx, sched); err != nil {
			return err
		}
		for _, a := range in.Availabilities {
			a.ScheduleID = sched.ID
			if err := s.availabilities.Create(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, []*Availability, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	availabilities, err := s.availabilities.ListBySchedule(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sched, availabilities, nil
}

func (s *Service) ListSchedules(ctx context.Context, facilityExternalID, userExternalID string, limit, offset int) ([]*Schedule, int, error) {
	resource, err := s.resolveResource(ctx, userExternalID, facilityExternalID)
	if err != nil {
		return nil, 0, err
	}
	return s.schedules.ListByResource(ctx, resource.ID, limit, offset)
}

// ScheduleUpdate carries the mutable schedule fields.
type ScheduleUpdate struct {
	Name      string    `json:"name"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

// UpdateSchedule changes a schedule's name and validity window. Shrinking the
// window is allowed only when it strands no allocated slots, so the allocated
// sum inside the old and new windows must agree.
func (s *Service) UpdateSchedule(ctx context.Context, id uuid.UUID, in *ScheduleUpdate, actor string) (*Schedule, error) {
	if in.ValidFrom.After(in.ValidTo) {
		return nil, ErrInvalidPeriod
	}
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.locks.WithLock(ctx, lock.ResourceKey(sched.ResourceID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			oldSum, err := s.slots.SumAllocatedInWindow(ctx, id, sched.ValidFrom, sched.ValidTo)
			if err != nil {
				return err
			}
			newSum, err := s.slots.SumAllocatedInWindow(ctx, id, in.ValidFrom, in.ValidTo)
			if err != nil {
				return err
			}
			if oldSum != newSum {
				return fmt.Errorf("%w: old range has %d allocated, new range has %d", ErrValidityShrink, oldSum, newSum)
			}
			sched.Name = in.Name
			sched.ValidFrom = in.ValidFrom
			sched.ValidTo = in.ValidTo
			sched.UpdatedBy = actor
			return s.schedules.Update(ctx, sched)
		})
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// DeleteSchedule removes a schedule and everything under it, refusing while
// any of its future slots still hold allocations.
func (s *Service) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.locks.WithLock(ctx, lock.ResourceKey(sched.ResourceID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			availabilities, err := s.availabilities.ListBySchedule(ctx, id)
			if err != nil {
				return err
			}
			ids := make([]uuid.UUID, 0, len(availabilities))
			for _, a := range availabilities {
				ids = append(ids, a.ID)
			}
			hasFuture, err := s.slots.HasFutureAllocated(ctx, ids, s.now())
			if err != nil {
				return err
			}
			if hasFuture {
				return fmt.Errorf("cannot delete schedule: %w", ErrFutureBookingsExist)
			}
			if err := s.slots.DeleteByAvailabilities(ctx, ids); err != nil {
				return err
			}
			return s.schedules.Delete(ctx, id)
		})
	})
}

// -- Availability --

// CreateAvailability adds an availability to an existing schedule. Its windows
// are checked against every other availability already on the schedule.
func (s *Service) CreateAvailability(ctx context.Context, scheduleID uuid.UUID, a *Availability) (*Availability, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	sched, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	existing, err := s.availabilities.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	combined := append([]AvailabilityWindow{}, a.Windows...)
	for _, other := range existing {
		combined = append(combined, other.Windows...)
	}
	if hasOverlappingWindows(combined) {
		return nil, ErrOverlappingWindows
	}
	a.ScheduleID = sched.ID
	if err := s.availabilities.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAvailabilities(ctx context.Context, scheduleID uuid.UUID) ([]*Availability, error) {
	if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.availabilities.ListBySchedule(ctx, scheduleID)
}

// DeleteAvailability removes an availability unless future slots under it
// still hold allocations.
func (s *Service) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	a, err := s.availabilities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	sched, err := s.schedules.GetByID(ctx, a.ScheduleID)
	if err != nil {
		return err
	}
	return s.locks.WithLock(ctx, lock.ResourceKey(sched.ResourceID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			hasFuture, err := s.slots.HasFutureAllocated(ctx, []uuid.UUID{id}, s.now())
			if err != nil {
				return err
			}
			if hasFuture {
				return fmt.Errorf("cannot delete availability: %w", ErrFutureBookingsExist)
			}
			if err := s.slots.DeleteByAvailabilities(ctx, []uuid.UUID{id}); err != nil {
				return err
			}
			return s.availabilities.Delete(ctx, id)
		})
	})
}

// -- Availability exceptions --

// ExceptionCreate is the payload for declaring a time-off range.
type ExceptionCreate struct {
	UserExternalID string    `json:"user"`
	Reason         string    `json:"reason"`
	ValidFrom      time.Time `json:"valid_from"`
	ValidTo        time.Time `json:"valid_to"`
	StartTime      ClockTime `json:"start_time"`
	EndTime        ClockTime `json:"end_time"`
}

// CreateException records an exception and withdraws the unallocated slots it
// covers. It refuses when any covered slot already holds a booking.
func (s *Service) CreateException(ctx context.Context, facilityExternalID string, in *ExceptionCreate) (*AvailabilityException, error) {
	if in.ValidFrom.After(in.ValidTo) {
		return nil, ErrInvalidPeriod
	}
	if in.StartTime >= in.EndTime {
		return nil, fmt.Errorf("start time must be earlier than end time")
	}
	resource, err := s.resolveResource(ctx, in.UserExternalID, facilityExternalID)
	if err != nil {
		return nil, err
	}
	exc := &AvailabilityException{
		ResourceID: resource.ID,
		Reason:     in.Reason,
		ValidFrom:  dateOf(in.ValidFrom),
		ValidTo:    dateOf(in.ValidTo),
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
	}
	err = s.locks.WithLock(ctx, lock.ResourceKey(resource.ID), func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			conflicting, err := s.slots.HasAllocatedInException(ctx, exc)
			if err != nil {
				return err
			}
			if conflicting {
				return ErrExceptionConflict
			}
			if _, err := s.slots.DeleteUnallocatedInException(ctx, exc); err != nil {
				return err
			}
			return s.exceptions.Create(ctx, exc)
		})
	})
	if err != nil {
		return nil, err
	}
	return exc, nil
}

func (s *Service) GetException(ctx context.Context, id uuid.UUID) (*AvailabilityException, error) {
	return s.exceptions.GetByID(ctx, id)
}

func (s *Service) ListExceptions(ctx context.Context, facilityExternalID, userExternalID string, limit, offset int) ([]*AvailabilityException, int, error) {
	resource, err := s.resolveResource(ctx, userExternalID, facilityExternalID)
	if err != nil {
		return nil, 0, err
	}
	return s.exceptions.ListByResource(ctx, resource.ID, limit, offset)
}

func (s *Service) DeleteException(ctx context.Context, id uuid.UUID) error {
	if _, err := s.exceptions.GetByID(ctx, id); err != nil {
		return err
	}
	return s.exceptions.Delete(ctx, id)
}

// -- Bookings (read and non-allocating updates) --

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

// BookingQuery narrows booking listings. External identifiers are resolved
// against the directory; an unknown patient or user yields an empty result
// rather than an error, matching filter semantics.
type BookingQuery struct {
	Status            BookingStatus
	PatientExternalID string
	UserExternalID    string
	FacilityExtID     string
	SlotID            uuid.UUID
	DateFrom          time.Time
	DateTo            time.Time
}

func (s *Service) ListBookings(ctx context.Context, q BookingQuery, limit, offset int) ([]*Booking, int, error) {
	filters := BookingFilters{
		Status:   q.Status,
		SlotID:   q.SlotID,
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
	}
	if q.PatientExternalID != "" {
		patient, err := s.directory.LookupPatient(ctx, q.PatientExternalID)
		if err != nil {
			return nil, 0, nil
		}
		filters.PatientID = patient.ID
	}
	if q.UserExternalID != "" {
		resource, err := s.resolveResource(ctx, q.UserExternalID, q.FacilityExtID)
		if err != nil {
			return nil, 0, nil
		}
		filters.ResourceID = resource.ID
	}
	return s.bookings.List(ctx, filters, limit, offset)
}

// UpdateBooking moves a booking through its non-terminal states. Terminal
// transitions must go through CancelBooking so the slot allocation is
// released exactly once.
func (s *Service) UpdateBooking(ctx context.Context, id uuid.UUID, status BookingStatus, reasonForVisit, actor string) (*Booking, error) {
	if !validBookingStatuses[status] {
		return nil, fmt.Errorf("invalid booking status: %s", status)
	}
	if status.IsCancelled() {
		return nil, ErrCancelOnly
	}
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.Status = status
	if reasonForVisit != "" {
		booking.ReasonForVisit = reasonForVisit
	}
	booking.UpdatedBy = actor
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// AvailableUsers lists the facility's users that have at least one schedulable
// resource, i.e. those a booking can be made against.
func (s *Service) AvailableUsers(ctx context.Context, facilityExternalID string) ([]*directory.User, error) {
	facility, err := s.directory.LookupFacility(ctx, facilityExternalID)
	if err != nil {
		return nil, err
	}
	ids, err := s.resources.ListUserIDsByFacility(ctx, facility.ID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*directory.User{}, nil
	}
	return s.directory.UsersByIDs(ctx, ids)
}
