// Package store defines the customer-record collaborator contract. The
// resolution core only requests mutations through this contract and never
// holds a mutable reference across I/O boundaries.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indica que el registro no existe.
var ErrNotFound = errors.New("store: not found")

// Profile is a local customer record.
type Profile struct {
	ID                 uuid.UUID
	Login              string
	Email              string
	FirstName          string
	LastName           string
	CredentialsEnabled bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ExternalLink ties a local profile to an external identity, keyed by
// (provider id, subject id).
type ExternalLink struct {
	ProfileID  uuid.UUID
	ProviderID string
	SubjectID  string
	Email      string
	CreatedAt  time.Time
}

// Tx is the mutation surface for one identity resolution. Every write for
// a resolution happens inside one Tx; the adapter guarantees commit only on
// full success and rollback on any error, so a crash mid-resolution leaves
// either no new link or a fully-formed one.
type Tx interface {
	FindByLogin(ctx context.Context, login string) (*Profile, error)
	SearchByEmail(ctx context.Context, email string) ([]*Profile, error)
	CreateExternallyAuthenticatedCustomer(ctx context.Context, providerID, subjectID string) (*Profile, error)
	LinkExternalProfile(ctx context.Context, profileID uuid.UUID, providerID, subjectID string) (*ExternalLink, error)
	SetExternalEmail(ctx context.Context, providerID, subjectID, email string) error
	SetEmail(ctx context.Context, profileID uuid.UUID, email string) error
	SetFirstName(ctx context.Context, profileID uuid.UUID, firstName string) error
	SetLastName(ctx context.Context, profileID uuid.UUID, lastName string) error
}

// CustomerStore is the customer store collaborator.
type CustomerStore interface {
	// FindLinkedProfile looks up the profile linked to (providerID, subjectID).
	// Returns ErrNotFound when no link exists.
	FindLinkedProfile(ctx context.Context, providerID, subjectID string) (*Profile, error)

	// WithinTx runs fn inside a single all-or-nothing transaction.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
