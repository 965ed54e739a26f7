package scheduling

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/scheduler/internal/domain/directory"
	"github.com/ehr/scheduler/internal/platform/lock"
)

// memStore is a shared in-memory backing for the fake repositories. A single
// mutex keeps individual operations atomic; cross-operation atomicity comes
// from the resource lock, exactly as it does against Postgres.
type memStore struct {
	mu sync.Mutex

	resources   map[uuid.UUID]*Resource
	schedules   map[uuid.UUID]*Schedule
	schedGone   map[uuid.UUID]bool
	avails      map[uuid.UUID]*Availability
	availGone   map[uuid.UUID]bool
	exceptions  map[uuid.UUID]*AvailabilityException
	slots       map[uuid.UUID]*Slot
	slotGone    map[uuid.UUID]bool
	bookings    map[uuid.UUID]*Booking
}

func newMemStore() *memStore {
	return &memStore{
		resources:  map[uuid.UUID]*Resource{},
		schedules:  map[uuid.UUID]*Schedule{},
		schedGone:  map[uuid.UUID]bool{},
		avails:     map[uuid.UUID]*Availability{},
		availGone:  map[uuid.UUID]bool{},
		exceptions: map[uuid.UUID]*AvailabilityException{},
		slots:      map[uuid.UUID]*Slot{},
		slotGone:   map[uuid.UUID]bool{},
		bookings:   map[uuid.UUID]*Booking{},
	}
}

// --- ResourceRepository ---

type memResources struct{ st *memStore }

func (r *memResources) GetOrCreate(ctx context.Context, userID, facilityID uuid.UUID) (*Resource, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, res := range r.st.resources {
		if res.UserID == userID && res.FacilityID == facilityID {
			return res, nil
		}
	}
	res := &Resource{ID: uuid.New(), UserID: userID, FacilityID: facilityID, CreatedAt: time.Now()}
	r.st.resources[res.ID] = res
	return res, nil
}

func (r *memResources) GetByID(ctx context.Context, id uuid.UUID) (*Resource, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if res, ok := r.st.resources[id]; ok {
		return res, nil
	}
	return nil, ErrNotSchedulable
}

func (r *memResources) GetByUserFacility(ctx context.Context, userID, facilityID uuid.UUID) (*Resource, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, res := range r.st.resources {
		if res.UserID == userID && res.FacilityID == facilityID {
			return res, nil
		}
	}
	return nil, ErrNotSchedulable
}

func (r *memResources) ListUserIDsByFacility(ctx context.Context, facilityID uuid.UUID) ([]uuid.UUID, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var ids []uuid.UUID
	for _, res := range r.st.resources {
		if res.FacilityID == facilityID {
			ids = append(ids, res.UserID)
		}
	}
	return ids, nil
}

// --- ScheduleRepository ---

type memSchedules struct{ st *memStore }

func (r *memSchedules) Create(ctx context.Context, s *Schedule) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	r.st.schedules[s.ID] = &cp
	return nil
}

func (r *memSchedules) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if s, ok := r.st.schedules[id]; ok && !r.st.schedGone[id] {
		cp := *s
		return &cp, nil
	}
	return nil, ErrScheduleNotFound
}

func (r *memSchedules) Update(ctx context.Context, s *Schedule) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.schedules[s.ID]; !ok || r.st.schedGone[s.ID] {
		return ErrScheduleNotFound
	}
	cp := *s
	cp.UpdatedAt = time.Now()
	r.st.schedules[s.ID] = &cp
	return nil
}

func (r *memSchedules) Delete(ctx context.Context, id uuid.UUID) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.schedGone[id] = true
	for aid, a := range r.st.avails {
		if a.ScheduleID == id {
			r.st.availGone[aid] = true
		}
	}
	return nil
}

func (r *memSchedules) ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*Schedule
	for id, s := range r.st.schedules {
		if s.ResourceID == resourceID && !r.st.schedGone[id] {
			cp := *s
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (r *memSchedules) ListOverlapping(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*Schedule, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*Schedule
	for id, s := range r.st.schedules {
		if s.ResourceID == resourceID && !r.st.schedGone[id] &&
			!s.ValidFrom.After(to) && !s.ValidTo.Before(from) {
			cp := *s
			items = append(items, &cp)
		}
	}
	return items, nil
}

// --- AvailabilityRepository ---

type memAvailabilities struct{ st *memStore }

func (r *memAvailabilities) Create(ctx context.Context, a *Availability) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.st.avails[a.ID] = &cp
	return nil
}

func (r *memAvailabilities) GetByID(ctx context.Context, id uuid.UUID) (*Availability, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if a, ok := r.st.avails[id]; ok && !r.st.availGone[id] {
		cp := *a
		return &cp, nil
	}
	return nil, ErrScheduleNotFound
}

func (r *memAvailabilities) Delete(ctx context.Context, id uuid.UUID) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.availGone[id] = true
	return nil
}

func (r *memAvailabilities) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*Availability, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*Availability
	for id, a := range r.st.avails {
		if a.ScheduleID == scheduleID && !r.st.availGone[id] {
			cp := *a
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *memAvailabilities) ListByScheduleIDs(ctx context.Context, scheduleIDs []uuid.UUID, slotType SlotType) (map[uuid.UUID][]*Availability, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(scheduleIDs))
	for _, id := range scheduleIDs {
		want[id] = true
	}
	grouped := make(map[uuid.UUID][]*Availability)
	for id, a := range r.st.avails {
		if want[a.ScheduleID] && a.SlotType == slotType && !r.st.availGone[id] {
			cp := *a
			grouped[a.ScheduleID] = append(grouped[a.ScheduleID], &cp)
		}
	}
	return grouped, nil
}

func (r *memAvailabilities) ListAppointmentForDay(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*Availability, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*Availability
	for id, a := range r.st.avails {
		if a.SlotType != SlotTypeAppointment || r.st.availGone[id] {
			continue
		}
		s, ok := r.st.schedules[a.ScheduleID]
		if !ok || r.st.schedGone[s.ID] || s.ResourceID != resourceID || !s.Contains(day) {
			continue
		}
		cp := *a
		items = append(items, &cp)
	}
	return items, nil
}

// --- ExceptionRepository ---

type memExceptions struct{ st *memStore }

func (r *memExceptions) Create(ctx context.Context, e *AvailabilityException) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	r.st.exceptions[e.ID] = &cp
	return nil
}

func (r *memExceptions) GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityException, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if e, ok := r.st.exceptions[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, ErrScheduleNotFound
}

func (r *memExceptions) Delete(ctx context.Context, id uuid.UUID) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	delete(r.st.exceptions, id)
	return nil
}

func (r *memExceptions) ListByResource(ctx context.Context, resourceID uuid.UUID, limit, offset int) ([]*AvailabilityException, int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*AvailabilityException
	for _, e := range r.st.exceptions {
		if e.ResourceID == resourceID {
			cp := *e
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ValidFrom.After(items[j].ValidFrom) })
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (r *memExceptions) ListCovering(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*AvailabilityException, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*AvailabilityException
	for _, e := range r.st.exceptions {
		if e.ResourceID == resourceID && e.Covers(day) {
			cp := *e
			items = append(items, &cp)
		}
	}
	return items, nil
}

func (r *memExceptions) ListOverlapping(ctx context.Context, resourceID uuid.UUID, from, to time.Time) ([]*AvailabilityException, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*AvailabilityException
	for _, e := range r.st.exceptions {
		if e.ResourceID == resourceID &&
			!dateOf(e.ValidFrom).After(dateOf(to)) && !dateOf(e.ValidTo).Before(dateOf(from)) {
			cp := *e
			items = append(items, &cp)
		}
	}
	return items, nil
}

// --- SlotRepository ---

type memSlots struct{ st *memStore }

func (r *memSlots) Create(ctx context.Context, sl *Slot) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	// Mirror the natural-key ON CONFLICT DO NOTHING: an existing row, even a
	// soft-deleted one, blocks re-insertion.
	for _, existing := range r.st.slots {
		if existing.ResourceID == sl.ResourceID && existing.AvailabilityID == sl.AvailabilityID &&
			existing.StartDatetime.Equal(sl.StartDatetime) && existing.EndDatetime.Equal(sl.EndDatetime) {
			return nil
		}
	}
	sl.ID = uuid.New()
	sl.CreatedAt = time.Now()
	cp := *sl
	r.st.slots[sl.ID] = &cp
	return nil
}

func (r *memSlots) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if sl, ok := r.st.slots[id]; ok && !r.st.slotGone[id] {
		cp := *sl
		return &cp, nil
	}
	return nil, ErrSlotNotFound
}

func (r *memSlots) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.GetByID(ctx, id)
}

func (r *memSlots) ListForDay(ctx context.Context, resourceID uuid.UUID, day time.Time) ([]*Slot, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	dayStart := dateOf(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	var items []*Slot
	for id, sl := range r.st.slots {
		if sl.ResourceID == resourceID && !r.st.slotGone[id] &&
			!sl.StartDatetime.Before(dayStart) && sl.StartDatetime.Before(dayEnd) {
			cp := *sl
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartDatetime.Before(items[j].StartDatetime) })
	return items, nil
}

func (r *memSlots) UpdateAllocated(ctx context.Context, id uuid.UUID, delta int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	sl, ok := r.st.slots[id]
	if !ok || r.st.slotGone[id] {
		return ErrSlotNotFound
	}
	sl.Allocated += delta
	return nil
}

func (r *memSlots) SumAllocatedInWindow(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	total := 0
	for id, sl := range r.st.slots {
		if r.st.slotGone[id] {
			continue
		}
		a, ok := r.st.avails[sl.AvailabilityID]
		if !ok || a.ScheduleID != scheduleID {
			continue
		}
		if !sl.StartDatetime.Before(from) && !sl.StartDatetime.After(to) {
			total += sl.Allocated
		}
	}
	return total, nil
}

func (r *memSlots) HasFutureAllocated(ctx context.Context, availabilityIDs []uuid.UUID, now time.Time) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(availabilityIDs))
	for _, id := range availabilityIDs {
		want[id] = true
	}
	for id, sl := range r.st.slots {
		if !r.st.slotGone[id] && want[sl.AvailabilityID] && sl.StartDatetime.After(now) && sl.Allocated > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSlots) AllocatedTotalsByDay(ctx context.Context, resourceID uuid.UUID, from, to time.Time) (map[string]int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	start := dateOf(from)
	end := dateOf(to).AddDate(0, 0, 1)
	totals := make(map[string]int)
	for id, sl := range r.st.slots {
		if sl.ResourceID != resourceID || r.st.slotGone[id] {
			continue
		}
		if sl.StartDatetime.Before(start) || !sl.StartDatetime.Before(end) {
			continue
		}
		totals[sl.StartDatetime.UTC().Format(statsDayFormat)] += sl.Allocated
	}
	return totals, nil
}

func (r *memSlots) matchesException(sl *Slot, e *AvailabilityException) bool {
	start := dateOf(e.ValidFrom)
	end := dateOf(e.ValidTo).AddDate(0, 0, 1)
	if sl.ResourceID != e.ResourceID || sl.StartDatetime.Before(start) || !sl.StartDatetime.Before(end) {
		return false
	}
	slotStart := sl.StartDatetime.UTC().Format("15:04")
	slotEnd := sl.EndDatetime.UTC().Format("15:04")
	return slotStart < e.EndTime.String() && slotEnd > e.StartTime.String()
}

func (r *memSlots) HasAllocatedInException(ctx context.Context, e *AvailabilityException) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for id, sl := range r.st.slots {
		if !r.st.slotGone[id] && sl.Allocated > 0 && r.matchesException(sl, e) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSlots) DeleteUnallocatedInException(ctx context.Context, e *AvailabilityException) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, sl := range r.st.slots {
		if !r.st.slotGone[id] && sl.Allocated == 0 && r.matchesException(sl, e) {
			r.st.slotGone[id] = true
			n++
		}
	}
	return n, nil
}

func (r *memSlots) DeleteByAvailabilities(ctx context.Context, availabilityIDs []uuid.UUID) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(availabilityIDs))
	for _, id := range availabilityIDs {
		want[id] = true
	}
	for id, sl := range r.st.slots {
		if want[sl.AvailabilityID] {
			r.st.slotGone[id] = true
		}
	}
	return nil
}

// --- BookingRepository ---

type memBookings struct{ st *memStore }

func (r *memBookings) Create(ctx context.Context, b *Booking) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	r.st.bookings[b.ID] = &cp
	return nil
}

func (r *memBookings) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if b, ok := r.st.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, ErrBookingNotFound
}

func (r *memBookings) Update(ctx context.Context, b *Booking) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.bookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	cp := *b
	cp.UpdatedAt = time.Now()
	r.st.bookings[b.ID] = &cp
	return nil
}

func (r *memBookings) HasActiveForSlotPatient(ctx context.Context, slotID, patientID uuid.UUID) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, b := range r.st.bookings {
		if b.SlotID == slotID && b.PatientID == patientID && !b.Status.IsCancelled() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBookings) List(ctx context.Context, filters BookingFilters, limit, offset int) ([]*Booking, int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var items []*Booking
	for _, b := range r.st.bookings {
		sl := r.st.slots[b.SlotID]
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		if filters.PatientID != uuid.Nil && b.PatientID != filters.PatientID {
			continue
		}
		if filters.SlotID != uuid.Nil && b.SlotID != filters.SlotID {
			continue
		}
		if filters.ResourceID != uuid.Nil && (sl == nil || sl.ResourceID != filters.ResourceID) {
			continue
		}
		if !filters.DateFrom.IsZero() && (sl == nil || sl.StartDatetime.Before(dateOf(filters.DateFrom))) {
			continue
		}
		if !filters.DateTo.IsZero() && (sl == nil || !sl.StartDatetime.Before(dateOf(filters.DateTo).AddDate(0, 0, 1))) {
			continue
		}
		cp := *b
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	total := len(items)
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

// --- Directory fake ---

type memDirectory struct {
	users      map[string]*directory.User
	patients   map[string]*directory.Patient
	facilities map[string]*directory.Facility
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users:      map[string]*directory.User{},
		patients:   map[string]*directory.Patient{},
		facilities: map[string]*directory.Facility{},
	}
}

func (d *memDirectory) addUser(externalID string) *directory.User {
	u := &directory.User{ID: uuid.New(), ExternalID: externalID, Name: externalID}
	d.users[externalID] = u
	return u
}

func (d *memDirectory) addPatient(externalID string) *directory.Patient {
	p := &directory.Patient{ID: uuid.New(), ExternalID: externalID, Name: externalID}
	d.patients[externalID] = p
	return p
}

func (d *memDirectory) addFacility(externalID string) *directory.Facility {
	f := &directory.Facility{ID: uuid.New(), ExternalID: externalID, Name: externalID}
	d.facilities[externalID] = f
	return f
}

func (d *memDirectory) LookupUser(ctx context.Context, externalID string) (*directory.User, error) {
	if u, ok := d.users[externalID]; ok {
		return u, nil
	}
	return nil, directory.ErrNotFound
}

func (d *memDirectory) LookupPatient(ctx context.Context, externalID string) (*directory.Patient, error) {
	if p, ok := d.patients[externalID]; ok {
		return p, nil
	}
	return nil, directory.ErrNotFound
}

func (d *memDirectory) LookupFacility(ctx context.Context, externalID string) (*directory.Facility, error) {
	if f, ok := d.facilities[externalID]; ok {
		return f, nil
	}
	return nil, directory.ErrNotFound
}

func (d *memDirectory) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*directory.User, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var users []*directory.User
	for _, u := range d.users {
		if want[u.ID] {
			users = append(users, u)
		}
	}
	return users, nil
}

// --- Transaction fake ---

// passTxRunner runs the function directly. The in-memory store has no
// rollback; tests that need atomicity assertions check observable state
// instead.
type passTxRunner struct{}

func (passTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Test fixture ---

type fixture struct {
	svc      *Service
	store    *memStore
	dir      *memDirectory
	user     *directory.User
	patient  *directory.Patient
	facility *directory.Facility
	now      time.Time
}

// newFixture builds a service over the in-memory fakes with one user, one
// patient and one facility pre-registered. The clock is pinned to a Monday
// morning so weekday-based expectations stay stable.
func newFixture() *fixture {
	st := newMemStore()
	dir := newMemDirectory()
	f := &fixture{
		store:    st,
		dir:      dir,
		user:     dir.addUser("dr-smith"),
		patient:  dir.addPatient("pat-jones"),
		facility: dir.addFacility("main"),
		// Monday 2025-06-02 08:00 UTC.
		now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Deps{
		Resources:      &memResources{st: st},
		Schedules:      &memSchedules{st: st},
		Availabilities: &memAvailabilities{st: st},
		Exceptions:     &memExceptions{st: st},
		Slots:          &memSlots{st: st},
		Bookings:       &memBookings{st: st},
		Directory:      dir,
		Locks:          lock.NewLocalProvider(),
		Tx:             passTxRunner{},
		Now:            func() time.Time { return f.now },
	})
	return f
}

func intPtr(v int) *int { return &v }

// createSchedule seeds a schedule with a single appointment availability and
// returns it with its availabilities.
func (f *fixture) createSchedule(t *testing.T, validFrom, validTo time.Time, windows []AvailabilityWindow, slotSize, tokens int) (*Schedule, []*Availability) {
	t.Helper()
	sched, err := f.svc.CreateSchedule(context.Background(), f.facility.ExternalID, &ScheduleCreate{
		UserExternalID: f.user.ExternalID,
		Name:           "weekly clinic",
		ValidFrom:      validFrom,
		ValidTo:        validTo,
		Availabilities: []*Availability{{
			Name:              "morning consultations",
			SlotType:          SlotTypeAppointment,
			SlotSizeInMinutes: intPtr(slotSize),
			TokensPerSlot:     intPtr(tokens),
			Windows:           windows,
		}},
	}, "tester")
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	availabilities, err := f.svc.ListAvailabilities(context.Background(), sched.ID)
	if err != nil {
		t.Fatalf("list availabilities: %v", err)
	}
	return sched, availabilities
}
