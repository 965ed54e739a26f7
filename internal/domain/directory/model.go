// Package directory holds the identity records the scheduling engine
// collaborates with: users, patients and facilities. Records are looked up by
// their externally visible id; everything else about them is opaque to the
// scheduler.
package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups for unknown external ids.
var ErrNotFound = errors.New("not found")

// User maps to the app_user table.
type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"external_id"`
	Name       string    `db:"name" json:"name"`
	Role       string    `db:"role" json:"role,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Patient maps to the patient table.
type Patient struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"external_id"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Facility maps to the facility table.
type Facility struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"external_id"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
