package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/reentry/internal/notify"
	"github.com/dropDatabas3/reentry/internal/observability/logger"
	"github.com/dropDatabas3/reentry/internal/store"
)

// Resolver resolves an external identity to a local customer profile,
// creating or merging inside a single transactional boundary.
type Resolver struct {
	store    store.CustomerStore
	notifier notify.Notifier
}

// NewResolver creates a Resolver. notifier may be nil.
func NewResolver(s store.CustomerStore, n notify.Notifier) *Resolver {
	if n == nil {
		n = notify.Noop{}
	}
	return &Resolver{store: s, notifier: n}
}

// Resolve returns the profile linked to (ProviderID, SubjectID), creating
// it when absent:
//
//  1. With merge enabled, an existing account whose login equals the
//     claimed email is linked; failing that, the first email match with
//     enabled credentials is linked.
//  2. Otherwise a brand-new externally authenticated customer is created.
//
// In every creation branch the external link records the claimed email and
// the resolved profile's email/first/last name are updated from non-empty
// claims only. All mutations for one resolution run inside one
// store.WithinTx; any error rolls everything back and is reported as
// ErrResolutionFailed.
//
// Two concurrent first-time resolutions for the same subject are not
// deduplicated here; the store's uniqueness constraint on the link key
// makes the loser fail its transaction.
func (r *Resolver) Resolve(ctx context.Context, id ExternalIdentity, site SiteConfig) (*store.Profile, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("identity.resolver"),
		logger.Provider(id.ProviderID),
		logger.SubjectID(id.SubjectID),
	)

	if id.ProviderID == "" {
		return nil, ErrMissingProvider
	}
	if id.SubjectID == "" {
		return nil, ErrMissingSubject
	}

	existing, err := r.store.FindLinkedProfile(ctx, id.ProviderID, id.SubjectID)
	if err == nil {
		log.Debug("linked profile found", logger.CustomerID(existing.ID.String()))
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error("linked profile lookup failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	// Never create a customer with an empty email.
	if id.Email == "" {
		return nil, ErrMissingEmail
	}

	var resolved *store.Profile
	merged := false

	err = r.store.WithinTx(ctx, func(tx store.Tx) error {
		var profile *store.Profile

		if site.EnableMergeExternalAccounts {
			byLogin, err := tx.FindByLogin(ctx, id.Email)
			switch {
			case err == nil:
				log.Debug("merging onto account matched by login")
				profile = byLogin
			case !errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("find by login: %w", err)
			default:
				candidates, err := tx.SearchByEmail(ctx, id.Email)
				if err != nil {
					return fmt.Errorf("search by email: %w", err)
				}
				for _, c := range candidates {
					if c.CredentialsEnabled {
						log.Debug("merging onto first enabled account matched by email")
						profile = c
						break
					}
				}
			}
		}

		if profile == nil {
			created, err := tx.CreateExternallyAuthenticatedCustomer(ctx, id.ProviderID, id.SubjectID)
			if err != nil {
				return fmt.Errorf("create customer: %w", err)
			}
			profile = created
		} else {
			if _, err := tx.LinkExternalProfile(ctx, profile.ID, id.ProviderID, id.SubjectID); err != nil {
				return fmt.Errorf("link profile: %w", err)
			}
			merged = true
		}

		if err := tx.SetExternalEmail(ctx, id.ProviderID, id.SubjectID, id.Email); err != nil {
			return fmt.Errorf("set link email: %w", err)
		}

		// claims never overwrite with empty values
		if err := tx.SetEmail(ctx, profile.ID, id.Email); err != nil {
			return fmt.Errorf("set email: %w", err)
		}
		profile.Email = id.Email
		if id.FirstName != "" {
			if err := tx.SetFirstName(ctx, profile.ID, id.FirstName); err != nil {
				return fmt.Errorf("set first name: %w", err)
			}
			profile.FirstName = id.FirstName
		}
		if id.LastName != "" {
			if err := tx.SetLastName(ctx, profile.ID, id.LastName); err != nil {
				return fmt.Errorf("set last name: %w", err)
			}
			profile.LastName = id.LastName
		}

		resolved = profile
		return nil
	})
	if err != nil {
		log.Error("resolution failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}

	log.Info("external identity resolved",
		logger.CustomerID(resolved.ID.String()),
		logger.Bool("merged", merged),
	)

	if merged {
		// best effort: the notice must never fail a login
		if err := r.notifier.ExternalAccountLinked(ctx, id.Email, id.ProviderID); err != nil {
			log.Warn("link notification failed", logger.Err(err))
		}
	}

	return resolved, nil
}
