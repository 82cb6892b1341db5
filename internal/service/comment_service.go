package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/repository"
	"github.com/modern-blog/internal/validation"
	"github.com/rs/zerolog"
)

const msgCommentNotFound = "Comment not found"

// commentService is the concrete implementation of CommentService
type commentService struct {
	articles  repository.ArticleRepository
	comments  repository.CommentRepository
	validator *validation.Validator
	log       zerolog.Logger
	now       func() time.Time
}

func newCommentService(repos *repository.Repositories, v *validation.Validator, log zerolog.Logger) *commentService {
	return &commentService{
		articles:  repos.Article,
		comments:  repos.Comment,
		validator: v,
		log:       log.With().Str("service", "comment").Logger(),
		now:       time.Now,
	}
}

// Create adds a comment to an article the actor can see. A reply must
// point at a comment on the same article.
func (s *commentService) Create(ctx context.Context, actor policy.Actor, articleID string, in *models.CommentInput) (*models.Comment, error) {
	if err := policy.Authorize(actor, policy.ActionCreateComment, policy.Resource{}).Err(); err != nil {
		return nil, err
	}

	article, err := s.visibleArticle(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}

	if fields := s.validator.ValidateComment(in.Body); len(fields) > 0 {
		return nil, errs.NewValidation(msgInvalidInput, fields...)
	}

	var parentID *string
	if pid := strings.TrimSpace(in.ParentID); pid != "" {
		parent, err := s.find(ctx, pid)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.ArticleID != article.ID {
			return nil, errs.NewValidation(msgInvalidInput, errs.FieldError{
				Field:   "parent_id",
				Message: "Parent comment does not belong to this article",
			})
		}
		parentID = &parent.ID
	}

	now := s.now()
	comment := &models.Comment{
		ID:        uuid.New().String(),
		ArticleID: article.ID,
		AuthorID:  actor.ID,
		ParentID:  parentID,
		Body:      strings.TrimSpace(in.Body),
		Status:    models.CommentApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, errs.NewUnexpected("Failed to add comment", err)
	}

	s.log.Info().Str("comment_id", comment.ID).Str("article_id", article.ID).Msg("Comment added")

	comment.AuthorUsername = actor.Username
	return comment, nil
}

// Edit replaces the body of a comment written by the actor. Administrators
// may edit any comment.
func (s *commentService) Edit(ctx context.Context, actor policy.Actor, articleID, commentID, body string) (*models.Comment, error) {
	if actor.IsAnonymous() {
		return nil, policy.Authorize(actor, policy.ActionModifyComment, policy.Resource{}).Err()
	}

	comment, err := s.find(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.ArticleID != articleID {
		return nil, errs.NewNotFound(msgCommentNotFound)
	}

	if err := policy.Authorize(actor, policy.ActionModifyComment, policy.Resource{OwnerID: comment.AuthorID}).Err(); err != nil {
		return nil, err
	}

	if fields := s.validator.ValidateComment(body); len(fields) > 0 {
		return nil, errs.NewValidation(msgInvalidInput, fields...)
	}

	comment.Edit(body, s.now())
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, errs.NewUnexpected("Failed to update comment", err)
	}

	s.log.Info().Str("comment_id", comment.ID).Str("edited_by", actor.ID).Msg("Comment edited")
	return comment, nil
}

// visibleArticle loads an article and applies the visibility rule, so
// hidden articles cannot be commented on.
func (s *commentService) visibleArticle(ctx context.Context, actor policy.Actor, id string) (*models.Article, error) {
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
	decision := policy.Authorize(actor, policy.ActionViewContent, policy.Resource{
		OwnerID: article.AuthorID,
		Status:  article.Status,
	})
	if err := decision.Err(); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *commentService) find(ctx context.Context, id string) (*models.Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, errs.NewUnexpected("Failed to load comment", err)
	}
	return comment, nil
}
