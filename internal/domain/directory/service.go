package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	users      UserRepository
	patients   PatientRepository
	facilities FacilityRepository
}

func NewService(users UserRepository, patients PatientRepository, facilities FacilityRepository) *Service {
	return &Service{users: users, patients: patients, facilities: facilities}
}

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if u.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.users.Create(ctx, u)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) CreateFacility(ctx context.Context, f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.facilities.Create(ctx, f)
}

func (s *Service) LookupUser(ctx context.Context, externalID string) (*User, error) {
	return s.users.GetByExternalID(ctx, externalID)
}

func (s *Service) LookupPatient(ctx context.Context, externalID string) (*Patient, error) {
	return s.patients.GetByExternalID(ctx, externalID)
}

func (s *Service) LookupFacility(ctx context.Context, externalID string) (*Facility, error) {
	return s.facilities.GetByExternalID(ctx, externalID)
}

func (s *Service) UsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.users.ListByIDs(ctx, ids)
}
