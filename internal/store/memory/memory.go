// Package memory implements store.CustomerStore in process memory.
// Útil para desarrollo y testing.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/reentry/internal/store"
)

type Store struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*store.Profile
	order    []uuid.UUID
	links    map[string]*store.ExternalLink
}

func New() *Store {
	return &Store{
		profiles: make(map[uuid.UUID]*store.Profile),
		links:    make(map[string]*store.ExternalLink),
	}
}

func linkKey(providerID, subjectID string) string {
	return providerID + "|" + subjectID
}

// Put inserta o reemplaza un profile. Pensado para seeds y tests.
func (s *Store) Put(p store.Profile) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, exists := s.profiles[p.ID]; !exists {
		s.order = append(s.order, p.ID)
	}
	cp := p
	s.profiles[p.ID] = &cp
	return p.ID
}

// Link inserta un vínculo externo. Pensado para seeds y tests.
func (s *Store) Link(profileID uuid.UUID, providerID, subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[linkKey(providerID, subjectID)] = &store.ExternalLink{
		ProfileID:  profileID,
		ProviderID: providerID,
		SubjectID:  subjectID,
		CreatedAt:  time.Now(),
	}
}

// Profiles retorna el total de profiles. Pensado para asserts en tests.
func (s *Store) Profiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func (s *Store) FindLinkedProfile(ctx context.Context, providerID, subjectID string) (*store.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[linkKey(providerID, subjectID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	p, ok := s.profiles[l.ProfileID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// WithinTx serializa las transacciones con el mutex y restaura un snapshot
// completo si fn falla: o se aplica todo o no se aplica nada.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapProfiles := make(map[uuid.UUID]*store.Profile, len(s.profiles))
	for k, v := range s.profiles {
		cp := *v
		snapProfiles[k] = &cp
	}
	snapOrder := append([]uuid.UUID(nil), s.order...)
	snapLinks := make(map[string]*store.ExternalLink, len(s.links))
	for k, v := range s.links {
		cp := *v
		snapLinks[k] = &cp
	}

	if err := fn(&memTx{s: s}); err != nil {
		s.profiles = snapProfiles
		s.order = snapOrder
		s.links = snapLinks
		return err
	}
	return nil
}

// memTx opera sobre los maps vivos; el rollback lo hace WithinTx.
type memTx struct {
	s *Store
}

func (t *memTx) FindByLogin(ctx context.Context, login string) (*store.Profile, error) {
	if login == "" {
		return nil, store.ErrNotFound
	}
	for _, id := range t.s.order {
		p := t.s.profiles[id]
		if strings.EqualFold(p.Login, login) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) SearchByEmail(ctx context.Context, email string) ([]*store.Profile, error) {
	var out []*store.Profile
	for _, id := range t.s.order {
		p := t.s.profiles[id]
		if strings.EqualFold(p.Email, email) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) CreateExternallyAuthenticatedCustomer(ctx context.Context, providerID, subjectID string) (*store.Profile, error) {
	now := time.Now()
	p := &store.Profile{
		ID:                 uuid.New(),
		CredentialsEnabled: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	t.s.profiles[p.ID] = p
	t.s.order = append(t.s.order, p.ID)

	if _, err := t.LinkExternalProfile(ctx, p.ID, providerID, subjectID); err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) LinkExternalProfile(ctx context.Context, profileID uuid.UUID, providerID, subjectID string) (*store.ExternalLink, error) {
	l := &store.ExternalLink{
		ProfileID:  profileID,
		ProviderID: providerID,
		SubjectID:  subjectID,
		CreatedAt:  time.Now(),
	}
	t.s.links[linkKey(providerID, subjectID)] = l
	cp := *l
	return &cp, nil
}

func (t *memTx) SetExternalEmail(ctx context.Context, providerID, subjectID, email string) error {
	l, ok := t.s.links[linkKey(providerID, subjectID)]
	if !ok {
		return store.ErrNotFound
	}
	l.Email = email
	return nil
}

func (t *memTx) SetEmail(ctx context.Context, profileID uuid.UUID, email string) error {
	return t.update(profileID, func(p *store.Profile) { p.Email = email })
}

func (t *memTx) SetFirstName(ctx context.Context, profileID uuid.UUID, firstName string) error {
	return t.update(profileID, func(p *store.Profile) { p.FirstName = firstName })
}

func (t *memTx) SetLastName(ctx context.Context, profileID uuid.UUID, lastName string) error {
	return t.update(profileID, func(p *store.Profile) { p.LastName = lastName })
}

func (t *memTx) update(profileID uuid.UUID, apply func(*store.Profile)) error {
	p, ok := t.s.profiles[profileID]
	if !ok {
		return store.ErrNotFound
	}
	apply(p)
	p.UpdatedAt = time.Now()
	return nil
}
