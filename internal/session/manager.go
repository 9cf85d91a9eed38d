package session

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ManagerConfig configura cookie y TTL de sesión.
type ManagerConfig struct {
	CookieName string
	Domain     string
	SameSite   string // Lax | Strict | None
	Secure     bool
	TTL        time.Duration
}

// Manager une el Store con la cookie de sesión del request.
type Manager struct {
	store Store
	cfg   ManagerConfig
}

func NewManager(store Store, cfg ManagerConfig) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "sid"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Manager{store: store, cfg: cfg}
}

// Load retorna la sesión del request, o una nueva si no existe cookie o la
// sesión expiró. El sid retornado es el que debe persistirse.
func (m *Manager) Load(r *http.Request) (string, *Data) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err == nil && c.Value != "" {
		if d, err := m.store.Get(r.Context(), c.Value); err == nil {
			return c.Value, d
		}
	}
	return NewID(), NewData()
}

// Save persiste la sesión y setea la cookie en la respuesta.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sid string, d *Data) error {
	if err := m.store.Save(ctx, sid, d, m.cfg.TTL); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    sid,
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   int(m.cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: parseSameSite(m.cfg.SameSite),
	})
	return nil
}

// Establish marca la sesión como autenticada para (providerID, subjectID),
// limpia el privacy cache y registra el provider usado para referencia
// posterior.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, sid string, d *Data, providerID, subjectID, customerID string) error {
	d.Authenticated = true
	d.ProviderID = providerID
	d.SubjectID = subjectID
	d.CustomerID = customerID

	d.ClearPrivacy()
	d.SetPrivacy(KeyOAuthProviderID, providerID)

	return m.Save(ctx, w, sid, d)
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
