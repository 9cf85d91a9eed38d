// Package session maneja el estado de sesión por request: autenticación y
// el privacy cache request-scoped (destino post-login, provider usado).
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Privacy-cache keys.
const (
	KeyLoginTarget     = "oauthLoginTargetEndPoint"
	KeyOAuthProviderID = "oauthProviderID"
)

// ErrNotFound indica que la sesión no existe o expiró.
var ErrNotFound = errors.New("session: not found")

// Data es el estado de una sesión.
type Data struct {
	Authenticated bool              `json:"authenticated"`
	ProviderID    string            `json:"provider_id,omitempty"`
	SubjectID     string            `json:"subject_id,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	Privacy       map[string]string `json:"privacy,omitempty"`
}

// NewData crea una sesión vacía.
func NewData() *Data {
	return &Data{Privacy: make(map[string]string)}
}

// ClearPrivacy vacía el privacy cache.
func (d *Data) ClearPrivacy() {
	d.Privacy = make(map[string]string)
}

// SetPrivacy guarda un valor en el privacy cache.
func (d *Data) SetPrivacy(key, value string) {
	if d.Privacy == nil {
		d.Privacy = make(map[string]string)
	}
	d.Privacy[key] = value
}

// GetPrivacy lee un valor del privacy cache.
func (d *Data) GetPrivacy(key string) string {
	return d.Privacy[key]
}

// NewID genera un identificador de sesión.
func NewID() string {
	return uuid.NewString()
}

// Store persiste sesiones por ID con TTL.
type Store interface {
	Get(ctx context.Context, sid string) (*Data, error)
	Save(ctx context.Context, sid string, d *Data, ttl time.Duration) error
	Delete(ctx context.Context, sid string) error
}
