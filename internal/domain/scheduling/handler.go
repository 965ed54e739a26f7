package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/scheduler/internal/domain/directory"
	"github.com/ehr/scheduler/internal/platform/auth"
	"github.com/ehr/scheduler/internal/platform/lock"
	"github.com/ehr/scheduler/pkg/pagination"
)

const dayFormat = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	facility := api.Group("/facilities/:facility_external_id")

	// Schedule management – admin, physician
	manage := facility.Group("", auth.RequireRole("admin", "physician"))
	manage.POST("/schedules", h.CreateSchedule)
	manage.PUT("/schedules/:id", h.UpdateSchedule)
	manage.DELETE("/schedules/:id", h.DeleteSchedule)
	manage.POST("/schedules/:schedule_id/availabilities", h.CreateAvailability)
	manage.DELETE("/availabilities/:id", h.DeleteAvailability)
	manage.POST("/exceptions", h.CreateException)
	manage.DELETE("/exceptions/:id", h.DeleteException)

	// Booking flow and reads – admin, physician, nurse, registrar
	rw := facility.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	rw.GET("/schedules", h.ListSchedules)
	rw.GET("/schedules/:id", h.GetSchedule)
	rw.GET("/schedules/:schedule_id/availabilities", h.ListAvailabilities)
	rw.GET("/exceptions", h.ListExceptions)
	rw.GET("/exceptions/:id", h.GetException)
	rw.POST("/slots/get_slots_for_day", h.GetSlotsForDay)
	rw.POST("/slots/availability_stats", h.AvailabilityStats)
	rw.GET("/slots/:id", h.GetSlot)
	rw.POST("/slots/:id/create_appointment", h.CreateAppointment)
	rw.GET("/bookings", h.ListBookings)
	rw.GET("/bookings/available_users", h.AvailableUsers)
	rw.GET("/bookings/:id", h.GetBooking)
	rw.PUT("/bookings/:id", h.UpdateBooking)
	rw.POST("/bookings/:id/cancel", h.CancelBooking)
	rw.POST("/bookings/:id/reschedule", h.RescheduleBooking)
}

// httpError maps domain errors onto HTTP statuses. Unknown errors surface as
// 500 so they are never silently swallowed.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrScheduleNotFound),
		errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, directory.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotExpired),
		errors.Is(err, ErrSlotFull),
		errors.Is(err, ErrDuplicateBooking),
		errors.Is(err, ErrFutureBookingsExist),
		errors.Is(err, ErrValidityShrink),
		errors.Is(err, ErrExceptionConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotSchedulable),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrPeriodTooLong),
		errors.Is(err, ErrOverlappingWindows),
		errors.Is(err, ErrDifferentResource),
		errors.Is(err, ErrCancelOnly):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Schedules --

func (h *Handler) CreateSchedule(c echo.Context) error {
	var in ScheduleCreate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.CreateSchedule(c.Request().Context(),
		c.Param("facility_external_id"), &in, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	sched, availabilities, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"schedule":       sched,
		"availabilities": availabilities,
	})
}

func (h *Handler) ListSchedules(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListSchedules(c.Request().Context(),
		c.Param("facility_external_id"), c.QueryParam("user"), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in ScheduleUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.UpdateSchedule(c.Request().Context(), id, &in, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSchedule(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Availabilities --

func (h *Handler) CreateAvailability(c echo.Context) error {
	scheduleID, err := pathID(c, "schedule_id")
	if err != nil {
		return err
	}
	var a Availability
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.svc.CreateAvailability(c.Request().Context(), scheduleID, &a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListAvailabilities(c echo.Context) error {
	scheduleID, err := pathID(c, "schedule_id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListAvailabilities(c.Request().Context(), scheduleID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": items})
}

func (h *Handler) DeleteAvailability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAvailability(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Exceptions --

func (h *Handler) CreateException(c echo.Context) error {
	var in ExceptionCreate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	exc, err := h.svc.CreateException(c.Request().Context(), c.Param("facility_external_id"), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, exc)
}

func (h *Handler) GetException(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	exc, err := h.svc.GetException(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, exc)
}

func (h *Handler) ListExceptions(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListExceptions(c.Request().Context(),
		c.Param("facility_external_id"), c.QueryParam("user"), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) DeleteException(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteException(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Slots --

type slotsForDayRequest struct {
	User string `json:"user"`
	Day  string `json:"day"`
}

func (h *Handler) GetSlotsForDay(c echo.Context) error {
	var in slotsForDayRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	day, err := time.Parse(dayFormat, in.Day)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid day, expected YYYY-MM-DD")
	}
	slots, err := h.svc.GetSlotsForDay(c.Request().Context(),
		c.Param("facility_external_id"), in.User, day)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": slots})
}

func (h *Handler) GetSlot(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	slot, err := h.svc.GetSlot(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slot)
}

type availabilityStatsRequest struct {
	User     string `json:"user"`
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

func (h *Handler) AvailabilityStats(c echo.Context) error {
	var in availabilityStatsRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	from, err := time.Parse(dayFormat, in.FromDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from_date, expected YYYY-MM-DD")
	}
	to, err := time.Parse(dayFormat, in.ToDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to_date, expected YYYY-MM-DD")
	}
	stats, err := h.svc.AvailabilityStats(c.Request().Context(),
		c.Param("facility_external_id"), in.User, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// -- Bookings --

type appointmentRequest struct {
	Patient        string `json:"patient"`
	ReasonForVisit string `json:"reason_for_visit"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	slotID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in appointmentRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	booking, err := h.svc.CreateAppointment(c.Request().Context(),
		slotID, in.Patient, in.ReasonForVisit, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, booking)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	booking, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, booking)
}

func (h *Handler) ListBookings(c echo.Context) error {
	p := pagination.FromContext(c)
	q := BookingQuery{
		Status:            BookingStatus(c.QueryParam("status")),
		PatientExternalID: c.QueryParam("patient"),
		UserExternalID:    c.QueryParam("user"),
		FacilityExtID:     c.Param("facility_external_id"),
	}
	if v := c.QueryParam("slot"); v != "" {
		slotID, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid slot")
		}
		q.SlotID = slotID
	}
	if v := c.QueryParam("date_after"); v != "" {
		t, err := time.Parse(dayFormat, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date_after")
		}
		q.DateFrom = t
	}
	if v := c.QueryParam("date_before"); v != "" {
		t, err := time.Parse(dayFormat, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date_before")
		}
		q.DateTo = t
	}
	items, total, err := h.svc.ListBookings(c.Request().Context(), q, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

type bookingUpdateRequest struct {
	Status         BookingStatus `json:"status"`
	ReasonForVisit string        `json:"reason_for_visit"`
}

func (h *Handler) UpdateBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in bookingUpdateRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	booking, err := h.svc.UpdateBooking(c.Request().Context(), id, in.Status, in.ReasonForVisit,
		auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, booking)
}

type cancelRequest struct {
	Reason BookingStatus `json:"reason"`
}

// CancelBooking accepts only the client-facing terminal reasons; the
// rescheduled status is reserved for the reschedule flow.
func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in cancelRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.Reason != BookingStatusCancelled && in.Reason != BookingStatusEnteredInError {
		return echo.NewHTTPError(http.StatusBadRequest, "reason must be cancelled or entered_in_error")
	}
	booking, err := h.svc.CancelBooking(c.Request().Context(), id, in.Reason,
		auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, booking)
}

type rescheduleRequest struct {
	NewSlot uuid.UUID `json:"new_slot"`
}

func (h *Handler) RescheduleBooking(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in rescheduleRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	booking, err := h.svc.RescheduleBooking(c.Request().Context(), id, in.NewSlot,
		auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, booking)
}

func (h *Handler) AvailableUsers(c echo.Context) error {
	users, err := h.svc.AvailableUsers(c.Request().Context(), c.Param("facility_external_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": users})
}
