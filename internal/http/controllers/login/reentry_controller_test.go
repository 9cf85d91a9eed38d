package login

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/reentry/internal/hooks"
	"github.com/dropDatabas3/reentry/internal/http/views"
	"github.com/dropDatabas3/reentry/internal/identity"
	"github.com/dropDatabas3/reentry/internal/oauthflow"
	"github.com/dropDatabas3/reentry/internal/session"
	"github.com/dropDatabas3/reentry/internal/store"
	"github.com/dropDatabas3/reentry/internal/store/memory"
	"github.com/dropDatabas3/reentry/internal/svcclient"
)

type fakeOAuth struct {
	result *oauthflow.AccessTokenResult
	err    error
}

func (f *fakeOAuth) ObtainAccessToken(ctx context.Context, code, state string) (*oauthflow.AccessTokenResult, error) {
	return f.result, f.err
}

type fakeUserInfo struct {
	parsed svcclient.ParsedResult
	token  string
}

func (f *fakeUserInfo) GetUserInfo(ctx context.Context, accessToken string) svcclient.ParsedResult {
	f.token = accessToken
	return f.parsed
}

func goodClaims() map[string]any {
	return map[string]any{
		"sub":         "u1",
		"email":       "jane@example.com",
		"given_name":  "Jane",
		"family_name": "Doe",
	}
}

type fixture struct {
	controller *ReentryController
	sessions   *session.Manager
	sessStore  session.Store
	customers  *memory.Store
	oauth      *fakeOAuth
	userinfo   *fakeUserInfo
	hooks      *hooks.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sessStore := session.NewMemory(time.Hour)
	sessions := session.NewManager(sessStore, session.ManagerConfig{CookieName: "sid", TTL: time.Hour})
	customers := memory.New()

	oauth := &fakeOAuth{result: &oauthflow.AccessTokenResult{
		AccessToken:     "at-1",
		OAuthProviderID: "azure",
	}}
	userinfo := &fakeUserInfo{parsed: svcclient.ParsedResult{
		Success:        true,
		ResponseObject: goodClaims(),
	}}
	reg := hooks.New()

	c := NewReentryController(Deps{
		OAuth:              oauth,
		UserInfo:           userinfo,
		Resolver:           identity.NewResolver(customers, nil),
		Sessions:           sessions,
		Hooks:              reg,
		Views:              views.New("/"),
		Site:               identity.SiteConfig{},
		DefaultDestination: "/account",
	})

	return &fixture{
		controller: c,
		sessions:   sessions,
		sessStore:  sessStore,
		customers:  customers,
		oauth:      oauth,
		userinfo:   userinfo,
		hooks:      reg,
	}
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.controller.Reentry(w, r)
	return w
}

func sessionFromResponse(t *testing.T, f *fixture, w *httptest.ResponseRecorder) *session.Data {
	t.Helper()
	var sid string
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			sid = c.Value
		}
	}
	require.NotEmpty(t, sid, "session cookie expected")
	d, err := f.sessStore.Get(context.Background(), sid)
	require.NoError(t, err)
	return d
}

func TestReentry_SuccessEstablishesSessionAndRedirects(t *testing.T) {
	f := newFixture(t)
	var hookProvider, hookSubject string
	f.hooks.OnCustomerLoggedIn(func(ctx context.Context, providerID, subjectID string) {
		hookProvider, hookSubject = providerID, subjectID
	})

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/account", w.Header().Get("Location"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "at-1", f.userinfo.token)

	d := sessionFromResponse(t, f, w)
	assert.True(t, d.Authenticated)
	assert.Equal(t, "azure", d.ProviderID)
	assert.Equal(t, "u1", d.SubjectID)
	assert.NotEmpty(t, d.CustomerID)
	assert.Equal(t, "azure", d.GetPrivacy(session.KeyOAuthProviderID))

	assert.Equal(t, 1, f.customers.Profiles())
	assert.Equal(t, "azure", hookProvider)
	assert.Equal(t, "u1", hookSubject)
}

func TestReentry_UsesStoredDestination(t *testing.T) {
	f := newFixture(t)

	// pre-seed a session holding the stored destination
	sid := session.NewID()
	d := session.NewData()
	d.SetPrivacy(session.KeyLoginTarget, "/checkout")
	require.NoError(t, f.sessStore.Save(context.Background(), sid, d, time.Hour))

	r := httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil)
	r.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	w := f.do(r)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/checkout", w.Header().Get("Location"))

	// establishment wiped the privacy cache except the provider marker
	got := sessionFromResponse(t, f, w)
	assert.Empty(t, got.GetPrivacy(session.KeyLoginTarget))
	assert.Equal(t, "azure", got.GetPrivacy(session.KeyOAuthProviderID))
}

func assertGenericError(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), views.GenericLoginError)
}

func TestReentry_ProviderErrorParam(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?error=access_denied", nil))
	assertGenericError(t, w)
	assert.Equal(t, 0, f.customers.Profiles())
}

func TestReentry_ExchangeFailure(t *testing.T) {
	f := newFixture(t)
	f.oauth.result = nil
	f.oauth.err = oauthflow.ErrExchangeFailed

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))
	assertGenericError(t, w)
}

func TestReentry_EmptyAccessToken(t *testing.T) {
	f := newFixture(t)
	f.oauth.result = &oauthflow.AccessTokenResult{OAuthProviderID: "azure"}

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))
	assertGenericError(t, w)
}

func TestReentry_UserInfoFailure(t *testing.T) {
	f := newFixture(t)
	f.userinfo.parsed = svcclient.ParsedResult{Success: false}

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))
	assertGenericError(t, w)
}

func TestReentry_MissingSubjectClaim(t *testing.T) {
	f := newFixture(t)
	f.userinfo.parsed = svcclient.ParsedResult{
		Success:        true,
		ResponseObject: map[string]any{"email": "jane@example.com"},
	}

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))
	assertGenericError(t, w)
	assert.Equal(t, 0, f.customers.Profiles())
}

func TestReentry_CredentialsDisabledBlocksLogin(t *testing.T) {
	f := newFixture(t)
	pid := f.customers.Put(store.Profile{Email: "jane@example.com", CredentialsEnabled: false})
	f.customers.Link(pid, "azure", "u1")

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))
	assertGenericError(t, w)

	// no session cookie, no authentication
	for _, c := range w.Result().Cookies() {
		assert.NotEqual(t, "sid", c.Name)
	}
}

func TestReentry_ResolutionFailure(t *testing.T) {
	f := newFixture(t)
	f.userinfo.parsed = svcclient.ParsedResult{
		Success: true,
		// no email claim: creation is impossible and resolution fails
		ResponseObject: map[string]any{"sub": "u1"},
	}

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))
	assertGenericError(t, w)
	assert.Equal(t, 0, f.customers.Profiles())
}

type failingResolver struct{}

func (failingResolver) Resolve(ctx context.Context, id identity.ExternalIdentity, site identity.SiteConfig) (*store.Profile, error) {
	return nil, errors.New("db down")
}

func TestReentry_ResolverErrorRendersGenericPage(t *testing.T) {
	f := newFixture(t)
	f.controller = NewReentryController(Deps{
		OAuth:    f.oauth,
		UserInfo: f.userinfo,
		Resolver: failingResolver{},
		Sessions: f.sessions,
		Views:    views.New("/"),
	})

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/reentry?code=c1&state=s1", nil))
	assertGenericError(t, w)
}
