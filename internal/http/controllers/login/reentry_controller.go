// Package login handles the browser-facing reentry endpoint of the
// federated login flow: the provider redirects the customer back here with
// code and state, and this package turns that into an authenticated session.
package login

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/reentry/internal/hooks"
	"github.com/dropDatabas3/reentry/internal/http/views"
	"github.com/dropDatabas3/reentry/internal/identity"
	"github.com/dropDatabas3/reentry/internal/oauthflow"
	"github.com/dropDatabas3/reentry/internal/observability/logger"
	"github.com/dropDatabas3/reentry/internal/session"
	"github.com/dropDatabas3/reentry/internal/store"
	"github.com/dropDatabas3/reentry/internal/svcclient"
)

// UserInfoService fetches the external profile for an access token.
type UserInfoService interface {
	GetUserInfo(ctx context.Context, accessToken string) svcclient.ParsedResult
}

// CustomerResolver resolves an external identity to a local profile.
type CustomerResolver interface {
	Resolve(ctx context.Context, id identity.ExternalIdentity, site identity.SiteConfig) (*store.Profile, error)
}

// Deps agrupa los colaboradores del controller.
type Deps struct {
	OAuth    oauthflow.Manager
	UserInfo UserInfoService
	Resolver CustomerResolver
	Sessions *session.Manager
	Hooks    *hooks.Registry
	Views    *views.Views

	Site               identity.SiteConfig
	DefaultDestination string
}

// ReentryController maneja GET /auth/reentry.
type ReentryController struct {
	deps Deps
}

func NewReentryController(deps Deps) *ReentryController {
	if deps.Views == nil {
		deps.Views = views.New("/")
	}
	return &ReentryController{deps: deps}
}

// Reentry runs the whole post-provider sequence: obtain the access token,
// fetch and parse the external profile, resolve it to a local customer,
// gate on enabled credentials and establish the session. Every failure,
// whatever the cause, renders the same generic error page; details go only
// to the log.
func (c *ReentryController) Reentry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ReentryController.Reentry"))

	// La sesión y el destino se leen antes de tocar nada: Establish limpia
	// el privacy cache y se llevaría el destino guardado.
	sid, data := c.deps.Sessions.Load(r)
	destination := data.GetPrivacy(session.KeyLoginTarget)
	if destination == "" {
		destination = c.deps.DefaultDestination
	}
	if destination == "" {
		destination = "/"
	}

	q := r.URL.Query()
	if idpErr := strings.TrimSpace(q.Get("error")); idpErr != "" {
		log.Warn("provider returned error",
			logger.String("error", idpErr),
			logger.String("description", strings.TrimSpace(q.Get("error_description"))),
		)
		c.deps.Views.RenderLoginError(w)
		return
	}

	code := strings.TrimSpace(q.Get("code"))
	state := strings.TrimSpace(q.Get("state"))

	tok, err := c.deps.OAuth.ObtainAccessToken(ctx, code, state)
	if err != nil {
		log.Warn("access token not obtained", logger.Err(err))
		c.deps.Views.RenderLoginError(w)
		return
	}
	if tok == nil || tok.AccessToken == "" || tok.OAuthProviderID == "" {
		log.Warn("incomplete token result")
		c.deps.Views.RenderLoginError(w)
		return
	}

	log = log.With(logger.Provider(tok.OAuthProviderID))

	parsed := c.deps.UserInfo.GetUserInfo(ctx, tok.AccessToken)
	if !parsed.Success {
		log.Warn("user info unavailable")
		c.deps.Views.RenderLoginError(w)
		return
	}
	claims, ok := parsed.ResponseObject.(map[string]any)
	if !ok {
		log.Warn("user info payload is not an object")
		c.deps.Views.RenderLoginError(w)
		return
	}

	extID, err := identity.FromClaims(tok.OAuthProviderID, claims)
	if err != nil {
		log.Warn("external profile incomplete", logger.Err(err))
		c.deps.Views.RenderLoginError(w)
		return
	}

	profile, err := c.deps.Resolver.Resolve(ctx, *extID, c.deps.Site)
	if err != nil {
		log.Error("identity resolution failed", logger.Err(err))
		c.deps.Views.RenderLoginError(w)
		return
	}
	if !profile.CredentialsEnabled {
		log.Warn("login blocked: credentials disabled",
			logger.CustomerID(profile.ID.String()),
		)
		c.deps.Views.RenderLoginError(w)
		return
	}

	if err := c.deps.Sessions.Establish(ctx, w, sid, data, extID.ProviderID, extID.SubjectID, profile.ID.String()); err != nil {
		log.Error("session establishment failed", logger.Err(err))
		c.deps.Views.RenderLoginError(w)
		return
	}

	if c.deps.Hooks != nil {
		c.deps.Hooks.FireCustomerLoggedIn(ctx, extID.ProviderID, extID.SubjectID)
	}

	log.Info("customer logged in",
		logger.SubjectID(extID.SubjectID),
		logger.CustomerID(profile.ID.String()),
	)

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	http.Redirect(w, r, destination, http.StatusFound)
}
