package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/repository"
	"github.com/modern-blog/internal/storage"
	"github.com/modern-blog/internal/validation"
	"github.com/rs/zerolog"
)

const msgArticleNotFound = "Article not found"

// articleService is the concrete implementation of ArticleService
type articleService struct {
	articles  repository.ArticleRepository
	comments  repository.CommentRepository
	store     storage.Storage
	views     *ViewRecorder
	validator *validation.Validator
	log       zerolog.Logger
	now       func() time.Time
}

func newArticleService(repos *repository.Repositories, store storage.Storage, views *ViewRecorder, v *validation.Validator, log zerolog.Logger) *articleService {
	return &articleService{
		articles:  repos.Article,
		comments:  repos.Comment,
		store:     store,
		views:     views,
		validator: v,
		log:       log.With().Str("service", "article").Logger(),
		now:       time.Now,
	}
}

// ListVisible returns a page of published articles. Every actor gets the
// same listing.
func (s *articleService) ListVisible(ctx context.Context, actor policy.Actor, filter models.ArticleFilter) (*models.ArticlePage, error) {
	if err := policy.Authorize(actor, policy.ActionListContent, policy.Resource{}).Err(); err != nil {
		return nil, err
	}

	filter.Normalize()
	filter.Status = models.StatusPublished

	if filter.AuthorID != "" {
		if _, err := uuid.Parse(filter.AuthorID); err != nil {
			// no account can match a malformed id
			return newPage(nil, filter, 0), nil
		}
	}

	articles, total, err := s.articles.ListPublished(ctx, filter)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load articles", err)
	}

	categories, err := s.articles.Categories(ctx)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load categories", err)
	}

	page := newPage(articles, filter, total)
	page.Categories = categories
	page.Filter.Category = filter.Category
	page.Filter.Search = filter.Search
	page.Filter.Author = filter.AuthorID
	return page, nil
}

// ListOwn returns the actor's own articles in every status
func (s *articleService) ListOwn(ctx context.Context, actor policy.Actor, filter models.ArticleFilter) (*models.ArticlePage, error) {
	if err := policy.Authorize(actor, policy.ActionListOwnContent, policy.Resource{}).Err(); err != nil {
		return nil, err
	}

	filter.Normalize()
	filter.AuthorID = actor.ID
	if !models.ValidStatuses[filter.Status] {
		filter.Status = ""
	}

	articles, total, err := s.articles.ListByAuthor(ctx, filter)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load articles", err)
	}

	page := newPage(articles, filter, total)
	page.Filter.Status = string(filter.Status)
	return page, nil
}

func newPage(articles []*models.Article, filter models.ArticleFilter, total int) *models.ArticlePage {
	if articles == nil {
		articles = []*models.Article{}
	}
	return &models.ArticlePage{
		Articles:   articles,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
	}
}

// GetOne returns an article with its comments when the actor may see it.
// Reading a published article schedules one view increment.
func (s *articleService) GetOne(ctx context.Context, actor policy.Actor, id string) (*models.ArticleDetail, error) {
	article, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	decision := policy.Authorize(actor, policy.ActionViewContent, policy.Resource{
		OwnerID: article.AuthorID,
		Status:  article.Status,
	})
	if err := decision.Err(); err != nil {
		s.log.Debug().Str("article_id", id).Str("reason", string(decision.Reason)).Msg("Article view denied")
		return nil, err
	}

	comments, err := s.comments.ListByArticle(ctx, id)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load comments", err)
	}

	if article.IsPublished() {
		s.views.Record(article.ID)
		// the stored counter is updated asynchronously; show the reader's view now
		article.Views++
	}

	return &models.ArticleDetail{Article: article, Comments: comments}, nil
}

// GetForEdit returns an article for the edit form
func (s *articleService) GetForEdit(ctx context.Context, actor policy.Actor, id string) (*models.Article, error) {
	if err := policy.Authorize(actor, policy.ActionModifyContent, policy.Resource{}).Err(); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create validates and stores a new article authored by the actor
func (s *articleService) Create(ctx context.Context, actor policy.Actor, in *models.ArticleInput, image *ImageUpload) (*models.Article, error) {
	if err := policy.Authorize(actor, policy.ActionCreateContent, policy.Resource{}).Err(); err != nil {
		return nil, err
	}

	tags := models.ParseTags(in.Tags)
	if fields := s.validator.ValidateArticle(in, tags); len(fields) > 0 {
		return nil, errs.NewValidation(msgInvalidInput, fields...)
	}

	ref, err := s.saveImage(ctx, image)
	if err != nil {
		return nil, err
	}

	now := s.now()
	article := &models.Article{
		ID:            uuid.New().String(),
		AuthorID:      actor.ID,
		CreatedAt:     now,
		FeaturedImage: ref,
	}
	applyInput(article, in, tags)
	article.PrepareSave(nil, now)

	if err := s.articles.Create(ctx, article); err != nil {
		s.release(ctx, ref)
		return nil, errs.NewUnexpected("Failed to create article", err)
	}

	s.log.Info().
		Str("article_id", article.ID).
		Str("author_id", actor.ID).
		Str("status", string(article.Status)).
		Msg("Article created")

	article.AuthorUsername = actor.Username
	return article, nil
}

// Update applies the input to an existing article. The author, view
// counter and creation time never change.
func (s *articleService) Update(ctx context.Context, actor policy.Actor, id string, in *models.ArticleInput, image *ImageUpload) (*models.Article, error) {
	if err := policy.Authorize(actor, policy.ActionModifyContent, policy.Resource{}).Err(); err != nil {
		return nil, err
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	tags := models.ParseTags(in.Tags)
	if fields := s.validator.ValidateArticle(in, tags); len(fields) > 0 {
		return nil, errs.NewValidation(msgInvalidInput, fields...)
	}

	ref, err := s.saveImage(ctx, image)
	if err != nil {
		return nil, err
	}

	updated := *existing
	applyInput(&updated, in, tags)
	if updated.Status == "" {
		// an update that leaves status out keeps the stored one
		updated.Status = existing.Status
	}
	switch {
	case ref != "":
		updated.FeaturedImage = ref
	case in.RemoveImage:
		updated.FeaturedImage = ""
	}
	updated.PrepareSave(existing, s.now())

	if err := s.articles.Update(ctx, &updated); err != nil {
		s.release(ctx, ref)
		return nil, errs.NewUnexpected("Failed to update article", err)
	}

	if existing.FeaturedImage != "" && existing.FeaturedImage != updated.FeaturedImage {
		s.release(ctx, existing.FeaturedImage)
	}

	s.log.Info().Str("article_id", id).Str("status", string(updated.Status)).Msg("Article updated")
	return &updated, nil
}

// Delete removes an article with its comments, then its image
func (s *articleService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if err := policy.Authorize(actor, policy.ActionDeleteContent, policy.Resource{}).Err(); err != nil {
		return err
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.articles.Delete(ctx, id)
	if err != nil {
		return errs.NewUnexpected("Failed to delete article", err)
	}
	if !deleted {
		return errs.NewNotFound(msgArticleNotFound)
	}

	s.release(ctx, existing.FeaturedImage)
	s.log.Info().Str("article_id", id).Str("deleted_by", actor.ID).Msg("Article deleted")
	return nil
}

func (s *articleService) load(ctx context.Context, id string) (*models.Article, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.NewNotFound(msgArticleNotFound)
	}
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load article", err)
	}
	if article == nil {
		return nil, errs.NewNotFound(msgArticleNotFound)
	}
	return article, nil
}

func applyInput(a *models.Article, in *models.ArticleInput, tags models.Tags) {
	a.Title = strings.TrimSpace(in.Title)
	a.Body = in.Body
	a.Summary = strings.TrimSpace(in.Summary)
	a.Category = in.Category
	a.Tags = tags
	a.Status = models.ArticleStatus(strings.TrimSpace(in.Status))
}

// saveImage stores the upload and returns its reference, or "" when no
// image was submitted.
func (s *articleService) saveImage(ctx context.Context, image *ImageUpload) (string, error) {
	if image == nil || image.Body == nil {
		return "", nil
	}
	ref, err := s.store.Save(ctx, image.Filename, image.Body, image.Size)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrTooLarge):
		return "", errs.NewValidation(msgInvalidInput, errs.FieldError{Field: "featured_image", Message: err.Error()})
	default:
		return "", errs.NewUnexpected("Failed to store image", err)
	}
}

// release drops an image reference. Failures are logged, never returned.
func (s *articleService) release(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.store.Release(ctx, ref); err != nil {
		s.log.Warn().Err(err).Str("ref", ref).Msg("Failed to release image")
	}
}
