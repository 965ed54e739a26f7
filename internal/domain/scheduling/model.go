package scheduling

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotType categorises an availability. Only the appointment type produces
// bookable slots; open and closed are informational.
type SlotType string

const (
	SlotTypeOpen        SlotType = "open"
	SlotTypeAppointment SlotType = "appointment"
	SlotTypeClosed      SlotType = "closed"
)

func (t SlotType) Valid() bool {
	switch t {
	case SlotTypeOpen, SlotTypeAppointment, SlotTypeClosed:
		return true
	}
	return false
}

// BookingStatus is a booking's position in its lifecycle.
type BookingStatus string

const (
	BookingStatusBooked         BookingStatus = "booked"
	BookingStatusCheckedIn      BookingStatus = "checked_in"
	BookingStatusInConsultation BookingStatus = "in_consultation"
	BookingStatusFulfilled      BookingStatus = "fulfilled"
	BookingStatusNoShow         BookingStatus = "noshow"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusEnteredInError BookingStatus = "entered_in_error"
	BookingStatusRescheduled    BookingStatus = "rescheduled"
)

var validBookingStatuses = map[BookingStatus]bool{
	BookingStatusBooked:         true,
	BookingStatusCheckedIn:      true,
	BookingStatusInConsultation: true,
	BookingStatusFulfilled:      true,
	BookingStatusNoShow:         true,
	BookingStatusCancelled:      true,
	BookingStatusEnteredInError: true,
	BookingStatusRescheduled:    true,
}

// cancelledStatuses is the terminal set. A booking in one of these states has
// released its slot token.
var cancelledStatuses = map[BookingStatus]bool{
	BookingStatusCancelled:      true,
	BookingStatusEnteredInError: true,
	BookingStatusRescheduled:    true,
}

// IsCancelled reports whether the status belongs to the terminal cancelled set.
func (s BookingStatus) IsCancelled() bool { return cancelledStatuses[s] }

// ClockTime is a time of day with minute resolution, serialised as "HH:MM".
// It is the unit availability windows and exceptions are expressed in.
type ClockTime int

// NewClockTime builds a ClockTime from an hour and minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

func (ct ClockTime) Hour() int   { return int(ct) / 60 }
func (ct ClockTime) Minute() int { return int(ct) % 60 }

func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", ct.Hour(), ct.Minute())
}

// At anchors the clock time onto a calendar day, in the day's location.
func (ct ClockTime) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), ct.Hour(), ct.Minute(), 0, 0, day.Location())
}

func parseClockTime(s string) (ClockTime, error) {
	var hour, minute, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &hour, &minute, &sec); err != nil {
		if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
			return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewClockTime(hour, minute), nil
}

func (ct ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ct.String())
}

func (ct *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := parseClockTime(s)
	if err != nil {
		return err
	}
	*ct = parsed
	return nil
}

// Value implements driver.Valuer so clock times persist as "HH:MM" text.
func (ct ClockTime) Value() (driver.Value, error) {
	return ct.String(), nil
}

// Scan implements sql.Scanner for text columns.
func (ct *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := parseClockTime(v)
		if err != nil {
			return err
		}
		*ct = parsed
		return nil
	case []byte:
		return ct.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

// Resource is the schedulable entity: one user acting within one facility.
// Created lazily on first schedule creation and never deleted.
type Resource struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	FacilityID uuid.UUID `db:"facility_id" json:"facility_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Schedule is a named validity window owned by one Resource.
type Schedule struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ResourceID uuid.UUID `db:"resource_id" json:"resource_id"`
	Name       string    `db:"name" json:"name"`
	ValidFrom  time.Time `db:"valid_from" json:"valid_from"`
	ValidTo    time.Time `db:"valid_to" json:"valid_to"`
	CreatedBy  string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy  string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Contains reports whether the given day falls inside the validity window.
// Both bounds are inclusive.
func (s *Schedule) Contains(day time.Time) bool {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return s.ValidFrom.Before(dayEnd) && !s.ValidTo.Before(dayStart)
}

// AvailabilityWindow is one recurring weekly open-hours range.
// DayOfWeek runs 0..6 with Monday as 0.
type AvailabilityWindow struct {
	DayOfWeek int       `json:"day_of_week"`
	StartTime ClockTime `json:"start_time"`
	EndTime   ClockTime `json:"end_time"`
}

// Availability is a recurring weekly template under a Schedule. For the
// appointment slot type, SlotSizeInMinutes and TokensPerSlot are required;
// for other types both are cleared to nil.
type Availability struct {
	ID                uuid.UUID            `db:"id" json:"id"`
	ScheduleID        uuid.UUID            `db:"schedule_id" json:"schedule_id"`
	Name              string               `db:"name" json:"name"`
	SlotType          SlotType             `db:"slot_type" json:"slot_type"`
	SlotSizeInMinutes *int                 `db:"slot_size_in_minutes" json:"slot_size_in_minutes,omitempty"`
	TokensPerSlot     *int                 `db:"tokens_per_slot" json:"tokens_per_slot,omitempty"`
	Reason            string               `db:"reason" json:"reason,omitempty"`
	Windows           []AvailabilityWindow `db:"windows" json:"availability"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time            `db:"updated_at" json:"updated_at"`
}

// Ref returns the public shape attached to slot views.
func (a *Availability) Ref() AvailabilityRef {
	return AvailabilityRef{
		ID:                a.ID,
		Name:              a.Name,
		SlotType:          a.SlotType,
		SlotSizeInMinutes: a.SlotSizeInMinutes,
		TokensPerSlot:     a.TokensPerSlot,
	}
}

// AvailabilityException suppresses availability during a time-of-day range,
// repeated on every day of [ValidFrom, ValidTo]. It belongs to the Resource,
// not to a Schedule.
type AvailabilityException struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ResourceID uuid.UUID `db:"resource_id" json:"resource_id"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
	ValidFrom  time.Time `db:"valid_from" json:"valid_from"`
	ValidTo    time.Time `db:"valid_to" json:"valid_to"`
	StartTime  ClockTime `db:"start_time" json:"start_time"`
	EndTime    ClockTime `db:"end_time" json:"end_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether the exception's date range includes the given day.
func (e *AvailabilityException) Covers(day time.Time) bool {
	d := dateOf(day)
	return !d.Before(dateOf(e.ValidFrom)) && !d.After(dateOf(e.ValidTo))
}

// Slot is a materialized bookable unit. Only the materializer creates slots.
// Allocated counts active bookings and never exceeds the owning availability's
// TokensPerSlot.
type Slot struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ResourceID     uuid.UUID `db:"resource_id" json:"resource_id"`
	AvailabilityID uuid.UUID `db:"availability_id" json:"availability_id"`
	StartDatetime  time.Time `db:"start_datetime" json:"start_datetime"`
	EndDatetime    time.Time `db:"end_datetime" json:"end_datetime"`
	Allocated      int       `db:"allocated" json:"allocated"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// AvailabilityRef is the public shape of an availability attached to slot
// views returned by the materializer.
type AvailabilityRef struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	SlotType          SlotType  `json:"slot_type"`
	SlotSizeInMinutes *int      `json:"slot_size_in_minutes,omitempty"`
	TokensPerSlot     *int      `json:"tokens_per_slot,omitempty"`
}

// SlotView is a slot annotated with its owning availability.
type SlotView struct {
	ID            uuid.UUID       `json:"id"`
	StartDatetime time.Time       `json:"start_datetime"`
	EndDatetime   time.Time       `json:"end_datetime"`
	Allocated     int             `json:"allocated"`
	Availability  AvailabilityRef `json:"availability"`
}

// Booking is a patient's reservation against a slot. While its status is not
// in the cancelled set it holds exactly one unit of the slot's allocation.
type Booking struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	SlotID         uuid.UUID     `db:"slot_id" json:"slot_id"`
	PatientID      uuid.UUID     `db:"patient_id" json:"patient_id"`
	Status         BookingStatus `db:"status" json:"status"`
	ReasonForVisit string        `db:"reason_for_visit" json:"reason_for_visit"`
	BookedBy       string        `db:"booked_by" json:"booked_by,omitempty"`
	UpdatedBy      string        `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// DayStats is one day's capacity in an availability-stats response.
type DayStats struct {
	TotalSlots  int `json:"total_slots"`
	BookedSlots int `json:"booked_slots"`
}

// weekdayIndex maps a time.Weekday onto the 0..6 scheme used by availability
// windows, where Monday is 0 and Sunday is 6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// dateOf truncates a timestamp to midnight UTC. Days are handled in UTC
// throughout the scheduling engine.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
