package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() (*Manager, Store) {
	st := NewMemory(time.Minute)
	return NewManager(st, ManagerConfig{CookieName: "sid", TTL: time.Hour}), st
}

func TestLoad_NewSessionWithoutCookie(t *testing.T) {
	m, _ := newTestManager()
	sid, d := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, sid)
	assert.False(t, d.Authenticated)
}

func TestLoad_ExistingSession(t *testing.T) {
	m, st := newTestManager()
	sid := NewID()
	d := NewData()
	d.SetPrivacy(KeyLoginTarget, "/checkout")
	require.NoError(t, st.Save(context.Background(), sid, d, time.Hour))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sid", Value: sid})

	gotSid, got := m.Load(r)
	assert.Equal(t, sid, gotSid)
	assert.Equal(t, "/checkout", got.GetPrivacy(KeyLoginTarget))
}

func TestEstablish_ClearsPrivacyAndMarksProvider(t *testing.T) {
	m, st := newTestManager()
	sid := NewID()
	d := NewData()
	d.SetPrivacy(KeyLoginTarget, "/checkout")

	w := httptest.NewRecorder()
	require.NoError(t, m.Establish(context.Background(), w, sid, d, "azure", "u1", "c1"))

	// cookie set
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, sid, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	// persisted state
	got, err := st.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.True(t, got.Authenticated)
	assert.Equal(t, "azure", got.ProviderID)
	assert.Equal(t, "u1", got.SubjectID)
	assert.Equal(t, "c1", got.CustomerID)
	assert.Empty(t, got.GetPrivacy(KeyLoginTarget), "privacy cache is wiped on establishment")
	assert.Equal(t, "azure", got.GetPrivacy(KeyOAuthProviderID))
}

func TestMemoryStore_Expiry(t *testing.T) {
	st := NewMemory(time.Minute)
	sid := NewID()
	require.NoError(t, st.Save(context.Background(), sid, NewData(), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := st.Get(context.Background(), sid)
	assert.ErrorIs(t, err, ErrNotFound)
}
