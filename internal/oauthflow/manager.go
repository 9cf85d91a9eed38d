// Package oauthflow covers the provider-facing half of the reentry flow:
// validating the signed state that came back from the provider and
// exchanging the authorization code for an access token.
package oauthflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/reentry/internal/observability/logger"
)

var (
	ErrMissingCode    = errors.New("oauthflow: authorization code missing")
	ErrExchangeFailed = errors.New("oauthflow: code exchange failed")
)

// AccessTokenResult is the outcome of a successful reentry exchange.
type AccessTokenResult struct {
	AccessToken     string
	OAuthProviderID string
}

// Manager obtains an access token from the provider callback parameters.
type Manager interface {
	ObtainAccessToken(ctx context.Context, code, state string) (*AccessTokenResult, error)
}

// Config configures the HTTP manager for one provider.
type Config struct {
	ProviderID    string
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
}

// HTTPManager implements Manager against a real token endpoint.
type HTTPManager struct {
	cfg    Config
	signer *StateSigner
	http   *http.Client
}

func NewHTTPManager(cfg Config, signer *StateSigner, client *http.Client) *HTTPManager {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPManager{cfg: cfg, signer: signer, http: client}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// ObtainAccessToken validates the signed state, checks it was issued for
// this provider and exchanges the code. Any failure is terminal for the
// reentry flow.
func (m *HTTPManager) ObtainAccessToken(ctx context.Context, code, state string) (*AccessTokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("oauthflow"),
		logger.Provider(m.cfg.ProviderID),
	)

	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}

	claims, err := m.signer.Parse(state)
	if err != nil {
		log.Warn("state validation failed", logger.Err(err))
		return nil, err
	}
	if claims.Provider != m.cfg.ProviderID {
		log.Warn("state issued for another provider", logger.String("state_provider", claims.Provider))
		return nil, ErrStateProvider
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("redirect_uri", m.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		log.Error("token endpoint unreachable", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var b struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		log.Warn("token endpoint rejected exchange",
			logger.Status(resp.StatusCode),
			logger.String("oauth_error", b.Error),
		)
		return nil, fmt.Errorf("%w: http %d: %s %s", ErrExchangeFailed, resp.StatusCode, b.Error, b.ErrorDescription)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access_token", ErrExchangeFailed)
	}

	log.Debug("code exchanged")
	return &AccessTokenResult{
		AccessToken:     tr.AccessToken,
		OAuthProviderID: m.cfg.ProviderID,
	}, nil
}
