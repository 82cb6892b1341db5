package service

import (
	"context"

	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/repository"
)

// quotaGuard answers whether another administrator may be registered.
// The answer is advisory; the slot claim in UserRepository.Create is what
// holds the cap under concurrent registrations.
type quotaGuard struct {
	users repository.UserRepository
}

func newQuotaGuard(users repository.UserRepository) *quotaGuard {
	return &quotaGuard{users: users}
}

// CanGrantAdminRole reports whether fewer than three administrators exist
func (q *quotaGuard) CanGrantAdminRole(ctx context.Context) (bool, error) {
	n, err := q.users.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	return n < models.MaxAdministrators, nil
}
