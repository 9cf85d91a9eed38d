package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/reentry/internal/store"
	"github.com/dropDatabas3/reentry/internal/store/memory"
)

func janeClaims() map[string]any {
	return map[string]any{
		"sub":         "u1",
		"email":       "jane@example.com",
		"given_name":  "Jane",
		"family_name": "Doe",
	}
}

func TestFromClaims(t *testing.T) {
	t.Run("maps claims", func(t *testing.T) {
		id, err := FromClaims("azure", janeClaims())
		require.NoError(t, err)
		assert.Equal(t, "azure", id.ProviderID)
		assert.Equal(t, "u1", id.SubjectID)
		assert.Equal(t, "jane@example.com", id.Email)
		assert.Equal(t, "Jane", id.FirstName)
		assert.Equal(t, "Doe", id.LastName)
	})

	t.Run("missing sub is terminal", func(t *testing.T) {
		_, err := FromClaims("azure", map[string]any{"email": "jane@example.com"})
		assert.ErrorIs(t, err, ErrMissingSubject)
	})

	t.Run("missing provider is terminal", func(t *testing.T) {
		_, err := FromClaims("", janeClaims())
		assert.ErrorIs(t, err, ErrMissingProvider)
	})

	t.Run("optional claims may be absent", func(t *testing.T) {
		id, err := FromClaims("azure", map[string]any{"sub": "u1"})
		require.NoError(t, err)
		assert.Empty(t, id.Email)
	})
}

func TestResolve_CreatesNewCustomer(t *testing.T) {
	st := memory.New()
	r := NewResolver(st, nil)
	ctx := context.Background()

	id, err := FromClaims("azure", janeClaims())
	require.NoError(t, err)

	p, err := r.Resolve(ctx, *id, SiteConfig{})
	require.NoError(t, err)
	assert.True(t, p.CredentialsEnabled)
	assert.Equal(t, "jane@example.com", p.Email)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, 1, st.Profiles())

	// serial repeat resolves the same customer, creates nothing
	again, err := r.Resolve(ctx, *id, SiteConfig{})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, 1, st.Profiles())
}

func TestResolve_ExistingLinkSkipsMutation(t *testing.T) {
	st := memory.New()
	pid := st.Put(store.Profile{Email: "old@example.com", FirstName: "Old", CredentialsEnabled: true})
	st.Link(pid, "azure", "u1")

	r := NewResolver(st, nil)
	p, err := r.Resolve(context.Background(), ExternalIdentity{
		ProviderID: "azure", SubjectID: "u1", Email: "new@example.com", FirstName: "New",
	}, SiteConfig{})
	require.NoError(t, err)
	assert.Equal(t, pid, p.ID)
	assert.Equal(t, "old@example.com", p.Email, "already-linked profiles are returned as-is")
}

func TestResolve_RequiresEmailForCreation(t *testing.T) {
	r := NewResolver(memory.New(), nil)
	_, err := r.Resolve(context.Background(), ExternalIdentity{
		ProviderID: "azure", SubjectID: "u1",
	}, SiteConfig{})
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestResolve_InputValidation(t *testing.T) {
	r := NewResolver(memory.New(), nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, ExternalIdentity{SubjectID: "u1"}, SiteConfig{})
	assert.ErrorIs(t, err, ErrMissingProvider)

	_, err = r.Resolve(ctx, ExternalIdentity{ProviderID: "azure"}, SiteConfig{})
	assert.ErrorIs(t, err, ErrMissingSubject)
}

type recordingNotifier struct {
	emails []string
}

func (n *recordingNotifier) ExternalAccountLinked(ctx context.Context, email, providerID string) error {
	n.emails = append(n.emails, email)
	return nil
}

func TestResolve_MergeByLogin(t *testing.T) {
	st := memory.New()
	pid := st.Put(store.Profile{Login: "jane@example.com", Email: "jane@example.com", CredentialsEnabled: true})

	notifier := &recordingNotifier{}
	r := NewResolver(st, notifier)

	id, _ := FromClaims("azure", janeClaims())
	p, err := r.Resolve(context.Background(), *id, SiteConfig{EnableMergeExternalAccounts: true})
	require.NoError(t, err)
	assert.Equal(t, pid, p.ID, "external identity links onto the login match")
	assert.Equal(t, 1, st.Profiles())
	assert.Equal(t, []string{"jane@example.com"}, notifier.emails)

	// the link now resolves directly
	direct, err := st.FindLinkedProfile(context.Background(), "azure", "u1")
	require.NoError(t, err)
	assert.Equal(t, pid, direct.ID)
}

func TestResolve_MergeByEmailPrefersEnabledCredentials(t *testing.T) {
	st := memory.New()
	st.Put(store.Profile{Login: "other", Email: "jane@example.com", CredentialsEnabled: false})
	enabled := st.Put(store.Profile{Login: "another", Email: "jane@example.com", CredentialsEnabled: true})

	r := NewResolver(st, nil)
	id, _ := FromClaims("azure", janeClaims())
	p, err := r.Resolve(context.Background(), *id, SiteConfig{EnableMergeExternalAccounts: true})
	require.NoError(t, err)
	assert.Equal(t, enabled, p.ID, "disabled accounts are skipped in the email search")
	assert.Equal(t, 2, st.Profiles())
}

func TestResolve_MergeDisabledAlwaysCreates(t *testing.T) {
	st := memory.New()
	existing := st.Put(store.Profile{Login: "jane@example.com", Email: "jane@example.com", CredentialsEnabled: true})

	r := NewResolver(st, nil)
	id, _ := FromClaims("azure", janeClaims())
	p, err := r.Resolve(context.Background(), *id, SiteConfig{EnableMergeExternalAccounts: false})
	require.NoError(t, err)
	assert.NotEqual(t, existing, p.ID)
	assert.Equal(t, 2, st.Profiles())
}

// failingStore fails the last mutation of the resolve sequence so the whole
// transaction must roll back.
type failingStore struct {
	*memory.Store
}

type failingTx struct {
	store.Tx
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.WithinTx(ctx, func(tx store.Tx) error {
		return fn(&failingTx{Tx: tx})
	})
}

func (f *failingTx) SetLastName(ctx context.Context, profileID uuid.UUID, lastName string) error {
	return errors.New("boom")
}

func TestResolve_FailureLeavesNoPartialWrites(t *testing.T) {
	st := &failingStore{Store: memory.New()}
	r := NewResolver(st, nil)

	id, _ := FromClaims("azure", janeClaims())
	_, err := r.Resolve(context.Background(), *id, SiteConfig{})
	require.ErrorIs(t, err, ErrResolutionFailed)

	assert.Equal(t, 0, st.Profiles(), "rolled back: no customer was created")
	_, err = st.FindLinkedProfile(context.Background(), "azure", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolve_NotifierFailureDoesNotFailResolution(t *testing.T) {
	st := memory.New()
	st.Put(store.Profile{Login: "jane@example.com", Email: "jane@example.com", CredentialsEnabled: true})

	r := NewResolver(st, failingNotifier{})
	id, _ := FromClaims("azure", janeClaims())
	_, err := r.Resolve(context.Background(), *id, SiteConfig{EnableMergeExternalAccounts: true})
	assert.NoError(t, err)
}

type failingNotifier struct{}

func (failingNotifier) ExternalAccountLinked(ctx context.Context, email, providerID string) error {
	return errors.New("smtp down")
}
