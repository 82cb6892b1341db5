package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/rs/zerolog"
)

// AccountSource looks up the account a session token refers to
type AccountSource interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Claims is the payload of a session token
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and resolves stateless session tokens
type Issuer struct {
	secret   []byte
	ttl      time.Duration
	accounts AccountSource
	log      zerolog.Logger
	now      func() time.Time
}

// NewIssuer creates an Issuer signing with secret
func NewIssuer(secret string, ttl time.Duration, accounts AccountSource, log zerolog.Logger) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	return &Issuer{
		secret:   []byte(secret),
		ttl:      ttl,
		accounts: accounts,
		log:      log.With().Str("component", "session").Logger(),
		now:      time.Now,
	}, nil
}

// Issue signs a token for the account, expiring after the configured TTL
func (i *Issuer) Issue(accountID string, role models.Role) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Resolve turns a token into the actor it identifies. Any failure yields
// Anonymous with discard set, telling the caller to drop the token. An
// empty token is Anonymous without discard.
func (i *Issuer) Resolve(ctx context.Context, token string) (policy.Actor, bool) {
	if token == "" {
		return policy.Anonymous, false
	}

	claims, err := i.parse(token)
	if err != nil {
		i.log.Debug().Err(err).Msg("Rejected session token")
		return policy.Anonymous, true
	}

	user, err := i.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		i.log.Error().Err(err).Str("account_id", claims.Subject).Msg("Failed to load session account")
		return policy.Anonymous, true
	}
	if user == nil {
		return policy.Anonymous, true
	}

	// the stored role wins over the role in the token
	return policy.ActorFor(user), false
}

func (i *Issuer) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
