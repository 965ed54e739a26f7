package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/scheduler/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// conn prefers the active transaction, then the tenant connection, then the
// pool. Repositories never manage transactions themselves.
func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Resource Repository ===========

type resourceRepoPG struct{ pool *pgxpool.Pool }

func NewResourceRepoPG(pool *pgxpool.Pool) ResourceRepository { return &resourceRepoPG{pool: pool} }

func (r *resourceRepoPG) scan(row pgx.Row) (*Resource, error) {
	var res Resource
	err := row.Scan(&res.ID, &res.UserID, &res.FacilityID, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotSchedulable
	}
	return &res, err
}

func (r *resourceRepoPG) GetOrCreate(ctx context.Context, userID, facilityID uuid.UUID) (*Resource, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO schedulable_resource (id, user_id, facility_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, facility_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, facility_id, created_at`,
		uuid.New(), userID, facilityID))
}

func (r *resourceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Resource, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, user_id, facility_id, created_at FROM schedulable_resource WHERE id = $1`, id))
}

func (r *resourceRepoPG) GetByUserFacility(ctx context.Context, userID, facilityID uuid.UUID) (*Resource, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, user_id, facility_id, created_at FROM schedulable_resource
		 WHERE user_id = $1 AND facility_id = $2`, userID, facilityID))
}

func (r *resourceRepoPG) ListUserIDsByFacility(ctx context.Context, facilityID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT user_id FROM schedulable_resource WHERE facility_id = $1`, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

const schedCols = `id, resource_id, name, valid_from, valid_to, created_by, updated_by, created_at, updated_at`

func (r *scheduleRepoPG) scan(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.ResourceID, &s.Name, &s.ValidFrom, &s.ValidTo,
		&s.CreatedBy, &s.UpdatedBy, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	return &s, err
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO schedule (id, resource_id, name, valid_from, valid_to, created_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.ResourceID, s.Name, s.ValidFrom, s.ValidTo, s.CreatedBy, s.UpdatedBy)
	return err
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+schedCols+` FROM schedule WHERE id = $1 AND NOT deleted`, id))
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *Schedule) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE schedule SET name=$2, valid_from=$3, valid_to=$4, updated_by=$5, updated_at=NOW()
		WHERE id = $1 AND NOT deleted`,
		s.ID, s.Name, s.ValidFrom, s.ValidTo, s.UpdatedBy)
	return err
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE schedule SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		UPDATE availability SET deleted = TRUE, updated_at = NOW() WHERE schedule_id = $1`, id)
	return err
}

func (r *scheduleRepoPG) ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM schedule WHERE resource_id = $1 AND NOT deleted`, resourceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+schedCols+` FROM schedule WHERE resource_id = $1 AND NOT deleted
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, resourceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *scheduleRepoPG) ListOverlapping(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*Schedule, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+schedCols+` FROM schedule
		 WHERE resource_id = $1 AND NOT deleted AND valid_from <= $3 AND valid_to >= $2`,
		resourceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

const availCols = `id, schedule_id, name, slot_type, slot_size_in_minutes, tokens_per_slot, reason, windows, created_at, updated_at`

func scanAvailability(row pgx.Row) (*Availability, error) {
	var a Availability
	var windows []byte
	err := row.Scan(&a.ID, &a.ScheduleID, &a.Name, &a.SlotType, &a.SlotSizeInMinutes,
		&a.TokensPerSlot, &a.Reason, &windows, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("availability: %w", pgx.ErrNoRows)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(windows, &a.Windows); err != nil {
		return nil, fmt.Errorf("decode availability windows: %w", err)
	}
	return &a, nil
}

func (r *availabilityRepoPG) Create(ctx context.Context, a *Availability) error {
	a.ID = uuid.New()
	windows, err := json.Marshal(a.Windows)
	if err != nil {
		return fmt.Errorf("encode availability windows: %w", err)
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO availability (id, schedule_id, name, slot_type, slot_size_in_minutes, tokens_per_slot, reason, windows)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.ScheduleID, a.Name, a.SlotType, a.SlotSizeInMinutes, a.TokensPerSlot, a.Reason, windows)
	return err
}

func (r *availabilityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Availability, error) {
	return scanAvailability(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+availCols+` FROM availability WHERE id = $1 AND NOT deleted`, id))
}

func (r *availabilityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE availability SET deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *availabilityRepoPG) collect(rows pgx.Rows) ([]*Availability, error) {
	defer rows.Close()
	var items []*Availability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *availabilityRepoPG) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*Availability, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+availCols+` FROM availability WHERE schedule_id = $1 AND NOT deleted ORDER BY created_at`, scheduleID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *availabilityRepoPG) ListByScheduleIDs(ctx context.Context, scheduleIDs []uuid.UUID, slotType SlotType) (map[uuid.UUID][]*Availability, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+availCols+` FROM availability
		 WHERE schedule_id = ANY($1) AND slot_type = $2 AND NOT deleted`, scheduleIDs, slotType)
	if err != nil {
		return nil, err
	}
	items, err := r.collect(rows)
	if err != nil {
		return nil, err
	}
	grouped := make(map[uuid.UUID][]*Availability, len(scheduleIDs))
	for _, a := range items {
		grouped[a.ScheduleID] = append(grouped[a.ScheduleID], a)
	}
	return grouped, nil
}

func (r *availabilityRepoPG) ListAppointmentForDay(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*Availability, error) {
	dayStart := dateOf(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT a.id, a.schedule_id, a.name, a.slot_type, a.slot_size_in_minutes, a.tokens_per_slot, a.reason, a.windows, a.created_at, a.updated_at
		FROM availability a
		JOIN schedule s ON s.id = a.schedule_id
		WHERE s.resource_id = $1
		  AND a.slot_type = $2
		  AND NOT a.deleted AND NOT s.deleted
		  AND s.valid_from < $4 AND s.valid_to >= $3`,
		resourceID, SlotTypeAppointment, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// =========== Exception Repository ===========

type exceptionRepoPG struct{ pool *pgxpool.Pool }

func NewExceptionRepoPG(pool *pgxpool.Pool) ExceptionRepository { return &exceptionRepoPG{pool: pool} }

const exceptionCols = `id, resource_id, reason, valid_from, valid_to, start_time, end_time, created_at`

func (r *exceptionRepoPG) scan(row pgx.Row) (*AvailabilityException, error) {
	var e AvailabilityException
	err := row.Scan(&e.ID, &e.ResourceID, &e.Reason, &e.ValidFrom, &e.ValidTo,
		&e.StartTime, &e.EndTime, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("availability exception: %w", pgx.ErrNoRows)
	}
	return &e, err
}

func (r *exceptionRepoPG) Create(ctx context.Context, e *AvailabilityException) error {
	e.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO availability_exception (id, resource_id, reason, valid_from, valid_to, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.ResourceID, e.Reason, e.ValidFrom, e.ValidTo, e.StartTime, e.EndTime)
	return err
}

func (r *exceptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityException, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+exceptionCols+` FROM availability_exception WHERE id = $1`, id))
}

func (r *exceptionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM availability_exception WHERE id = $1`, id)
	return err
}

func (r *exceptionRepoPG) collect(rows pgx.Rows) ([]*AvailabilityException, error) {
	defer rows.Close()
	var items []*AvailabilityException
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *exceptionRepoPG) ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*AvailabilityException, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM availability_exception WHERE resource_id = $1`, resourceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+exceptionCols+` FROM availability_exception WHERE resource_id = $1
		 ORDER BY valid_from DESC LIMIT $2 OFFSET $3`, resourceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *exceptionRepoPG) ListCovering(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*AvailabilityException, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+exceptionCols+` FROM availability_exception
		 WHERE resource_id = $1 AND valid_from <= $2 AND valid_to >= $2`,
		resourceID, dateOf(day))
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *exceptionRepoPG) ListOverlapping(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*AvailabilityException, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+exceptionCols+` FROM availability_exception
		 WHERE resource_id = $1 AND valid_from <= $3 AND valid_to >= $2`,
		resourceID, dateOf(from), dateOf(to))
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

const slotCols = `id, resource_id, availability_id, start_datetime, end_datetime, allocated, created_at`

func (r *slotRepoPG) scan(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(&sl.ID, &sl.ResourceID, &sl.AvailabilityID,
		&sl.StartDatetime, &sl.EndDatetime, &sl.Allocated, &sl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return &sl, err
}

func (r *slotRepoPG) Create(ctx context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	// ON CONFLICT keeps concurrent materializer calls idempotent; the losing
	// insert is simply dropped.
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO slot (id, resource_id, availability_id, start_datetime, end_datetime, allocated)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (resource_id, availability_id, start_datetime, end_datetime) DO NOTHING`,
		sl.ID, sl.ResourceID, sl.AvailabilityID, sl.StartDatetime, sl.EndDatetime, sl.Allocated)
	return err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+slotCols+` FROM slot WHERE id = $1 AND NOT deleted`, id))
}

func (r *slotRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+slotCols+` FROM slot WHERE id = $1 AND NOT deleted FOR UPDATE`, id))
}

func (r *slotRepoPG) ListForDay(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*Slot, error) {
	dayStart := dateOf(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+slotCols+` FROM slot
		 WHERE resource_id = $1 AND NOT deleted
		   AND start_datetime >= $2 AND start_datetime < $3
		 ORDER BY start_datetime`, resourceID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) UpdateAllocated(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE slot SET allocated = allocated + $2 WHERE id = $1 AND NOT deleted`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) SumAllocatedInWindow(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) (int, error) {
	var total int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(sl.allocated), 0)
		FROM slot sl
		JOIN availability a ON a.id = sl.availability_id
		WHERE a.schedule_id = $1 AND NOT sl.deleted
		  AND sl.start_datetime >= $2 AND sl.start_datetime <= $3`,
		scheduleID, from, to).Scan(&total)
	return total, err
}

func (r *slotRepoPG) HasFutureAllocated(ctx context.Context, availabilityIDs []uuid.UUID, now time.Time) (bool, error) {
	if len(availabilityIDs) == 0 {
		return false, nil
	}
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM slot
			WHERE availability_id = ANY($1) AND NOT deleted
			  AND start_datetime > $2 AND allocated > 0
		)`, availabilityIDs, now).Scan(&exists)
	return exists, err
}

func (r *slotRepoPG) AllocatedTotalsByDay(ctx context.Context, resourceID uuid.UUID, from, to time.Time) (map[string]int, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT to_char(start_datetime AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(allocated)
		FROM slot
		WHERE resource_id = $1 AND NOT deleted
		  AND start_datetime >= $2 AND start_datetime < $3
		GROUP BY day`,
		resourceID, dateOf(from), dateOf(to).AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[string]int)
	for rows.Next() {
		var day string
		var sum int
		if err := rows.Scan(&day, &sum); err != nil {
			return nil, err
		}
		totals[day] = sum
	}
	return totals, rows.Err()
}

// exceptionConflictWhere matches slots whose time-of-day range intersects the
// exception's repeated daily range inside its date span.
const exceptionConflictWhere = `
	resource_id = $1 AND NOT deleted
	AND start_datetime >= $2 AND start_datetime < $3
	AND to_char(start_datetime AT TIME ZONE 'UTC', 'HH24:MI') < $5
	AND to_char(end_datetime AT TIME ZONE 'UTC', 'HH24:MI') > $4`

func (r *slotRepoPG) HasAllocatedInException(ctx context.Context, e *AvailabilityException) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM slot WHERE`+exceptionConflictWhere+` AND allocated > 0)`,
		e.ResourceID, dateOf(e.ValidFrom), dateOf(e.ValidTo).AddDate(0, 0, 1),
		e.StartTime.String(), e.EndTime.String()).Scan(&exists)
	return exists, err
}

func (r *slotRepoPG) DeleteUnallocatedInException(ctx context.Context, e *AvailabilityException) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE slot SET deleted = TRUE WHERE`+exceptionConflictWhere+` AND allocated = 0`,
		e.ResourceID, dateOf(e.ValidFrom), dateOf(e.ValidTo).AddDate(0, 0, 1),
		e.StartTime.String(), e.EndTime.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *slotRepoPG) DeleteByAvailabilities(ctx context.Context, availabilityIDs []uuid.UUID) error {
	if len(availabilityIDs) == 0 {
		return nil
	}
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE slot SET deleted = TRUE WHERE availability_id = ANY($1)`, availabilityIDs)
	return err
}

// =========== Booking Repository ===========

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{pool: pool} }

const bookingCols = `id, slot_id, patient_id, status, reason_for_visit, booked_by, updated_by, created_at, updated_at`

func (r *bookingRepoPG) scan(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.PatientID, &b.Status, &b.ReasonForVisit,
		&b.BookedBy, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return &b, err
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO booking (id, slot_id, patient_id, status, reason_for_visit, booked_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.SlotID, b.PatientID, b.Status, b.ReasonForVisit, b.BookedBy, b.UpdatedBy)
	return err
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
}

func (r *bookingRepoPG) Update(ctx context.Context, b *Booking) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE booking SET status=$2, reason_for_visit=$3, updated_by=$4, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.Status, b.ReasonForVisit, b.UpdatedBy)
	return err
}

func (r *bookingRepoPG) HasActiveForSlotPatient(ctx context.Context, slotID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM booking
			WHERE slot_id = $1 AND patient_id = $2
			  AND status NOT IN ($3, $4, $5)
		)`, slotID, patientID,
		BookingStatusCancelled, BookingStatusEnteredInError, BookingStatusRescheduled).Scan(&exists)
	return exists, err
}

func (r *bookingRepoPG) List(ctx context.Context, filters BookingFilters, limit, offset int) ([]*Booking, int, error) {
	where := ` FROM booking b JOIN slot sl ON sl.id = b.slot_id WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(clause string, val interface{}) {
		where += fmt.Sprintf(clause, idx)
		args = append(args, val)
		idx++
	}

	if filters.Status != "" {
		add(` AND b.status = $%d`, filters.Status)
	}
	if filters.PatientID != uuid.Nil {
		add(` AND b.patient_id = $%d`, filters.PatientID)
	}
	if filters.ResourceID != uuid.Nil {
		add(` AND sl.resource_id = $%d`, filters.ResourceID)
	}
	if filters.SlotID != uuid.Nil {
		add(` AND b.slot_id = $%d`, filters.SlotID)
	}
	if !filters.DateFrom.IsZero() {
		add(` AND sl.start_datetime >= $%d`, dateOf(filters.DateFrom))
	}
	if !filters.DateTo.IsZero() {
		add(` AND sl.start_datetime < $%d`, dateOf(filters.DateTo).AddDate(0, 0, 1))
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bookingColsPrefixed + where +
		fmt.Sprintf(` ORDER BY b.updated_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

const bookingColsPrefixed = `b.id, b.slot_id, b.patient_id, b.status, b.reason_for_visit, b.booked_by, b.updated_by, b.created_at, b.updated_at`
