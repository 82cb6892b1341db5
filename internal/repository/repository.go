package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/modern-blog/internal/database"
	"github.com/modern-blog/internal/models"
)

var (
	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("duplicate key")
	// ErrNoAdminSlot is returned when every administrator slot is taken
	ErrNoAdminSlot = errors.New("no administrator slot available")
)

// UserRepository defines the interface for account data operations
type UserRepository interface {
	// Create inserts the account. Administrators claim one of the fixed
	// admin slots in the same transaction; ErrNoAdminSlot means nothing
	// was written.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, p *models.ProfileUpdate) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	List(ctx context.Context) ([]*models.User, error)
	CountAdmins(ctx context.Context) (int, error)
}

// ArticleRepository defines the interface for article data operations
type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	Update(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	// ListPublished returns a page of published articles and the total match count
	ListPublished(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, int, error)
	// ListByAuthor returns a page of the author's articles in any status
	ListByAuthor(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, int, error)
	ListAll(ctx context.Context) ([]*models.Article, error)
	IncrementViews(ctx context.Context, id string) error
	// Delete removes the article and its comments in one transaction
	Delete(ctx context.Context, id string) (bool, error)
	CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error)
	Categories(ctx context.Context) ([]string, error)
}

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	Update(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByArticle(ctx context.Context, articleID string) ([]*models.Comment, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	User    UserRepository
	Article ArticleRepository
	Comment CommentRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepo(db),
		Article: NewArticleRepo(db),
		Comment: NewCommentRepo(db),
	}
}

// uniqueViolation is the PostgreSQL error code for unique_violation
const uniqueViolation = "23505"

// mapError turns a unique violation into ErrDuplicate naming the constraint
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
