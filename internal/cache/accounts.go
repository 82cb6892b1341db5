package cache

import (
	"context"

	"github.com/modern-blog/internal/models"
	"github.com/rs/zerolog"
)

// AccountLoader reads accounts from the authoritative store
type AccountLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Accounts is a read-through account lookup. Cache failures are logged
// and fall through to the loader.
type Accounts struct {
	loader AccountLoader
	cache  AccountCache
	log    zerolog.Logger
}

// NewAccounts creates a read-through lookup over loader
func NewAccounts(loader AccountLoader, cache AccountCache, log zerolog.Logger) *Accounts {
	return &Accounts{
		loader: loader,
		cache:  cache,
		log:    log.With().Str("component", "account_cache").Logger(),
	}
}

// GetByID returns the account or nil when it does not exist
func (a *Accounts) GetByID(ctx context.Context, id string) (*models.User, error) {
	cached, err := a.cache.Get(ctx, id)
	if err != nil {
		a.log.Warn().Err(err).Str("account_id", id).Msg("Account cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	user, err := a.loader.GetByID(ctx, id)
	if err != nil || user == nil {
		return user, err
	}

	if err := a.cache.Set(ctx, user); err != nil {
		a.log.Warn().Err(err).Str("account_id", id).Msg("Account cache write failed")
	}
	return user, nil
}

// Invalidate drops the cached copy of an account after it changes
func (a *Accounts) Invalidate(ctx context.Context, id string) {
	if err := a.cache.Invalidate(ctx, id); err != nil {
		a.log.Warn().Err(err).Str("account_id", id).Msg("Account cache invalidation failed")
	}
}
