package service

import (
	"context"

	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// adminService is the concrete implementation of AdminService
type adminService struct {
	users    repository.UserRepository
	articles repository.ArticleRepository
	log      zerolog.Logger
}

func newAdminService(repos *repository.Repositories, log zerolog.Logger) *adminService {
	return &adminService{
		users:    repos.User,
		articles: repos.Article,
		log:      log.With().Str("service", "admin").Logger(),
	}
}

// Dashboard loads every account, every article and the counters. The four
// queries are independent and run concurrently.
func (s *adminService) Dashboard(ctx context.Context, actor policy.Actor) (*Dashboard, error) {
	if err := policy.Authorize(actor, policy.ActionViewDashboard, policy.Resource{}).Err(); err != nil {
		return nil, err
	}

	var (
		users    []*models.User
		articles []*models.Article
		byStatus map[models.ArticleStatus]int
		admins   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.users.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		articles, err = s.articles.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		byStatus, err = s.articles.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		admins, err = s.users.CountAdmins(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Msg("Failed to load dashboard")
		return nil, errs.NewUnexpected("Failed to load dashboard", err)
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	if users == nil {
		users = []*models.User{}
	}
	if articles == nil {
		articles = []*models.Article{}
	}

	return &Dashboard{
		Users:    users,
		Articles: articles,
		Stats: models.ArticleStats{
			TotalUsers:     len(users),
			TotalArticles:  total,
			Published:      byStatus[models.StatusPublished],
			Drafts:         byStatus[models.StatusDraft],
			Administrators: admins,
		},
	}, nil
}
