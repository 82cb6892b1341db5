package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/repository"
	"github.com/modern-blog/internal/validation"
	"github.com/rs/zerolog"
)

const (
	msgAccountNotFound = "User not found"
	// recentArticles is how many published articles the account page lists
	recentArticles = 10
	// profileArticles bounds the author listing on the profile page
	profileArticles = models.MaxPageSize
)

// accountService is the concrete implementation of AccountService
type accountService struct {
	users     repository.UserRepository
	articles  repository.ArticleRepository
	accounts  AccountInvalidator
	validator *validation.Validator
	log       zerolog.Logger
}

func newAccountService(repos *repository.Repositories, accounts AccountInvalidator, v *validation.Validator, log zerolog.Logger) *accountService {
	return &accountService{
		users:     repos.User,
		articles:  repos.Article,
		accounts:  accounts,
		validator: v,
		log:       log.With().Str("service", "account").Logger(),
	}
}

// Profile returns the signed-in account and the articles it authored,
// in every status.
func (s *accountService) Profile(ctx context.Context, actor policy.Actor) (*Profile, error) {
	if actor.IsAnonymous() {
		return nil, errs.NewAuthentication("Authentication required")
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load profile", err)
	}
	if user == nil {
		return nil, errs.NewNotFound(msgAccountNotFound)
	}

	articles, _, err := s.articles.ListByAuthor(ctx, models.ArticleFilter{
		AuthorID: user.ID,
		Page:     1,
		Limit:    profileArticles,
	})
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load profile", err)
	}
	if articles == nil {
		articles = []*models.Article{}
	}

	return &Profile{User: user, Articles: articles}, nil
}

// UpdateProfile changes the display fields of the actor's own account
func (s *accountService) UpdateProfile(ctx context.Context, actor policy.Actor, p *models.ProfileUpdate) (*models.User, error) {
	if err := policy.Authorize(actor, policy.ActionModifyAccount, policy.Resource{OwnerID: actor.ID}).Err(); err != nil {
		return nil, err
	}

	if fields := s.validator.ValidateProfile(p); len(fields) > 0 {
		return nil, errs.NewValidation(msgInvalidInput, fields...)
	}

	update := &models.ProfileUpdate{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Bio:       p.Bio,
	}

	user, err := s.users.UpdateProfile(ctx, actor.ID, update)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to update profile", err)
	}
	if user == nil {
		return nil, errs.NewNotFound(msgAccountNotFound)
	}

	s.accounts.Invalidate(ctx, actor.ID)
	s.log.Info().Str("account_id", actor.ID).Msg("Profile updated")
	return user, nil
}

// Detail returns an account and its latest published articles. Only the
// account itself and administrators may look.
func (s *accountService) Detail(ctx context.Context, actor policy.Actor, id string) (*AccountDetail, error) {
	if actor.IsAnonymous() {
		return nil, errs.NewAuthentication("Authentication required")
	}
	if err := policy.Authorize(actor, policy.ActionViewAccount, policy.Resource{OwnerID: id}).Err(); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.NewNotFound(msgAccountNotFound)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load user", err)
	}
	if user == nil {
		return nil, errs.NewNotFound(msgAccountNotFound)
	}

	articles, _, err := s.articles.ListPublished(ctx, models.ArticleFilter{
		AuthorID: id,
		Page:     1,
		Limit:    recentArticles,
	})
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load user articles", err)
	}
	if articles == nil {
		articles = []*models.Article{}
	}

	return &AccountDetail{User: user, Articles: articles}, nil
}
