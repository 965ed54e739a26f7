package directory

import (
	"context"
	"errors"

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	if u.ExternalID == "" {
		u.ExternalID = u.ID.String()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO app_user (id, external_id, name, role)
		VALUES ($1,$2,$3,$4)`,
		u.ID, u.ExternalID, u.Name, u.Role)
	return err
}

func (r *userRepoPG) scan(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &u, err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, external_id, name, role, created_at FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, external_id, name, role, created_at FROM app_user WHERE external_id = $1`, externalID))
}

func (r *userRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, external_id, name, role, created_at FROM app_user WHERE id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &u)
	}
	return items, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.ExternalID == "" {
		p.ExternalID = p.ID.String()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient (id, external_id, name)
		VALUES ($1,$2,$3)`,
		p.ID, p.ExternalID, p.Name)
	return err
}

func (r *patientRepoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.ExternalID, &p.Name, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, external_id, name, created_at FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByExternalID(ctx context.Context, externalID string) (*Patient, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, external_id, name, created_at FROM patient WHERE external_id = $1`, externalID))
}

// =========== Facility Repository ===========

type facilityRepoPG struct{ pool *pgxpool.Pool }

func NewFacilityRepoPG(pool *pgxpool.Pool) FacilityRepository { return &facilityRepoPG{pool: pool} }

func (r *facilityRepoPG) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	if f.ExternalID == "" {
		f.ExternalID = f.ID.String()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO facility (id, external_id, name)
		VALUES ($1,$2,$3)`,
		f.ID, f.ExternalID, f.Name)
	return err
}

func (r *facilityRepoPG) scan(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(&f.ID, &f.ExternalID, &f.Name, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &f, err
}

func (r *facilityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, external_id, name, created_at FROM facility WHERE id = $1`, id))
}

func (r *facilityRepoPG) GetByExternalID(ctx context.Context, externalID string) (*Facility, error) {
	return r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, external_id, name, created_at FROM facility WHERE external_id = $1`, externalID))
}
