package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	byID  map[uuid.UUID]*User
	byExt map[string]*User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*User{}, byExt: map[string]*User{}}
}

func (r *memUsers) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	r.byID[u.ID] = u
	r.byExt[u.ExternalID] = u
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (r *memUsers) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	if u, ok := r.byExt[externalID]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (r *memUsers) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	var users []*User
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

type memPatients struct{ byExt map[string]*Patient }

func (r *memPatients) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	r.byExt[p.ExternalID] = p
	return nil
}

func (r *memPatients) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	for _, p := range r.byExt {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memPatients) GetByExternalID(ctx context.Context, externalID string) (*Patient, error) {
	if p, ok := r.byExt[externalID]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

type memFacilities struct{ byExt map[string]*Facility }

func (r *memFacilities) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	r.byExt[f.ExternalID] = f
	return nil
}

func (r *memFacilities) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	for _, f := range r.byExt {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memFacilities) GetByExternalID(ctx context.Context, externalID string) (*Facility, error) {
	if f, ok := r.byExt[externalID]; ok {
		return f, nil
	}
	return nil, ErrNotFound
}

func newTestService() *Service {
	return NewService(newMemUsers(), &memPatients{byExt: map[string]*Patient{}}, &memFacilities{byExt: map[string]*Facility{}})
}

func TestServiceLookups(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.CreateUser(ctx, &User{ExternalID: "dr-smith", Name: "Dr Smith", Role: "physician"}))
	require.NoError(t, svc.CreatePatient(ctx, &Patient{ExternalID: "pat-jones", Name: "Pat Jones"}))
	require.NoError(t, svc.CreateFacility(ctx, &Facility{ExternalID: "main", Name: "Main Campus"}))

	u, err := svc.LookupUser(ctx, "dr-smith")
	require.NoError(t, err)
	assert.Equal(t, "Dr Smith", u.Name)

	p, err := svc.LookupPatient(ctx, "pat-jones")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)

	fac, err := svc.LookupFacility(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "Main Campus", fac.Name)

	_, err = svc.LookupUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.LookupPatient(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.LookupFacility(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCreateValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	assert.Error(t, svc.CreateUser(ctx, &User{ExternalID: "u1"}))
	assert.Error(t, svc.CreatePatient(ctx, &Patient{ExternalID: "p1"}))
	assert.Error(t, svc.CreateFacility(ctx, &Facility{ExternalID: "f1"}))
}

func TestUsersByIDs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	a := &User{ExternalID: "a", Name: "A"}
	b := &User{ExternalID: "b", Name: "B"}
	require.NoError(t, svc.CreateUser(ctx, a))
	require.NoError(t, svc.CreateUser(ctx, b))

	users, err := svc.UsersByIDs(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = svc.UsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}
