package scheduling

import "errors"

// Sentinel errors surfaced by the scheduling engine. Handlers map these onto
// HTTP statuses with errors.Is; everything else propagates as a 500.
var (
	// Not-found family.
	ErrNotSchedulable   = errors.New("resource is not schedulable")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrBookingNotFound  = errors.New("booking not found")

	// State conflicts, detected inside the locked transaction.
	ErrSlotExpired         = errors.New("slot is already past")
	ErrSlotFull            = errors.New("slot is already full")
	ErrDuplicateBooking    = errors.New("patient already has a booking for this slot")
	ErrDifferentResource   = errors.New("new slot belongs to a different resource")
	ErrFutureBookingsExist = errors.New("future bookings exist")
	ErrValidityShrink      = errors.New("validity change would exclude allocated slots")
	ErrExceptionConflict   = errors.New("there are bookings during this exception")

	// Input validation.
	ErrInvalidPeriod      = errors.New("from date cannot be after to date")
	ErrPeriodTooLong      = errors.New("period cannot be greater than 32 days")
	ErrOverlappingWindows = errors.New("availability time ranges are overlapping")
	ErrCancelOnly         = errors.New("status can only be cancelled through the cancel operation")
)
