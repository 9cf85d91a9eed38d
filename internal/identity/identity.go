// Package identity turns a verified external profile into a resolved local
// customer record with deterministic merge/create semantics.
package identity

import (
	"errors"
	"strings"
)

// SiteConfig are the site-level flags resolution depends on. The value is
// passed in explicitly per call so the resolution logic stays pure and
// testable; it never reads global configuration.
type SiteConfig struct {
	EnableMergeExternalAccounts bool
}

// ExternalIdentity is a verified identity at a third-party provider.
// SubjectID is mandatory; its absence is a terminal failure for the flow.
type ExternalIdentity struct {
	ProviderID string
	SubjectID  string
	Email      string
	FirstName  string
	LastName   string
}

var (
	ErrMissingProvider     = errors.New("identity: provider id missing")
	ErrMissingSubject      = errors.New("identity: external subject id missing")
	ErrMissingEmail        = errors.New("identity: email claim missing")
	ErrResolutionFailed    = errors.New("identity: resolution failed")
	ErrCredentialsDisabled = errors.New("identity: credentials disabled")
)

// FromClaims maps a parsed user-info object onto an ExternalIdentity.
// Expected claims: sub (required), email, given_name, family_name.
func FromClaims(providerID string, claims map[string]any) (*ExternalIdentity, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, ErrMissingProvider
	}
	sub := strClaim(claims, "sub")
	if sub == "" {
		return nil, ErrMissingSubject
	}
	return &ExternalIdentity{
		ProviderID: providerID,
		SubjectID:  sub,
		Email:      strClaim(claims, "email"),
		FirstName:  strClaim(claims, "given_name"),
		LastName:   strClaim(claims, "family_name"),
	}, nil
}

func strClaim(m map[string]any, k string) string {
	if m == nil {
		return ""
	}
	s, _ := m[k].(string)
	return s
}
