package oauthflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner() *StateSigner {
	return NewStateSigner("test-secret", "reentry-test", 5*time.Minute)
}

func TestStateSigner_RoundTrip(t *testing.T) {
	s := testSigner()
	tok, err := s.Sign("azure", "n-123")
	require.NoError(t, err)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "azure", claims.Provider)
	assert.Equal(t, "n-123", claims.Nonce)
}

func TestStateSigner_RejectsTamperedSecret(t *testing.T) {
	tok, err := testSigner().Sign("azure", "n")
	require.NoError(t, err)

	other := NewStateSigner("other-secret", "reentry-test", 5*time.Minute)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrStateInvalid)
}

func TestStateSigner_RejectsExpired(t *testing.T) {
	expired := &StateSigner{secret: []byte("test-secret"), issuer: "reentry-test", ttl: -2 * time.Minute}
	tok, err := expired.Sign("azure", "n")
	require.NoError(t, err)

	_, err = testSigner().Parse(tok)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestStateSigner_RejectsGarbage(t *testing.T) {
	_, err := testSigner().Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrStateInvalid)
}

func tokenServer(t *testing.T, status int, body string, gotForm *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if gotForm != nil {
			m := map[string]string{}
			for k := range r.PostForm {
				m[k] = r.PostForm.Get(k)
			}
			*gotForm = m
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestObtainAccessToken_Success(t *testing.T) {
	var form map[string]string
	srv := tokenServer(t, http.StatusOK, `{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`, &form)
	defer srv.Close()

	signer := testSigner()
	m := NewHTTPManager(Config{
		ProviderID:    "azure",
		TokenEndpoint: srv.URL,
		ClientID:      "cid",
		ClientSecret:  "sec",
		RedirectURL:   "https://shop.example.com/auth/reentry",
	}, signer, srv.Client())

	state, err := signer.Sign("azure", "n")
	require.NoError(t, err)

	res, err := m.ObtainAccessToken(context.Background(), "the-code", state)
	require.NoError(t, err)
	assert.Equal(t, "at-1", res.AccessToken)
	assert.Equal(t, "azure", res.OAuthProviderID)

	assert.Equal(t, "authorization_code", form["grant_type"])
	assert.Equal(t, "the-code", form["code"])
	assert.Equal(t, "cid", form["client_id"])
	assert.Equal(t, "sec", form["client_secret"])
	assert.Equal(t, "https://shop.example.com/auth/reentry", form["redirect_uri"])
}

func TestObtainAccessToken_MissingCode(t *testing.T) {
	signer := testSigner()
	m := NewHTTPManager(Config{ProviderID: "azure"}, signer, nil)

	state, _ := signer.Sign("azure", "n")
	_, err := m.ObtainAccessToken(context.Background(), "  ", state)
	assert.ErrorIs(t, err, ErrMissingCode)
}

func TestObtainAccessToken_ProviderMismatch(t *testing.T) {
	signer := testSigner()
	m := NewHTTPManager(Config{ProviderID: "azure"}, signer, nil)

	state, _ := signer.Sign("google", "n")
	_, err := m.ObtainAccessToken(context.Background(), "code", state)
	assert.ErrorIs(t, err, ErrStateProvider)
}

func TestObtainAccessToken_EndpointRejects(t *testing.T) {
	srv := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"code expired"}`, nil)
	defer srv.Close()

	signer := testSigner()
	m := NewHTTPManager(Config{ProviderID: "azure", TokenEndpoint: srv.URL}, signer, srv.Client())

	state, _ := signer.Sign("azure", "n")
	_, err := m.ObtainAccessToken(context.Background(), "code", state)
	require.ErrorIs(t, err, ErrExchangeFailed)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestObtainAccessToken_EmptyAccessToken(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, `{"token_type":"Bearer"}`, nil)
	defer srv.Close()

	signer := testSigner()
	m := NewHTTPManager(Config{ProviderID: "azure", TokenEndpoint: srv.URL}, signer, srv.Client())

	state, _ := signer.Sign("azure", "n")
	_, err := m.ObtainAccessToken(context.Background(), "code", state)
	assert.ErrorIs(t, err, ErrExchangeFailed)
}
