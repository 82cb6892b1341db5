package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/modern-blog/internal/database"
	"github.com/modern-blog/internal/models"
)

const articleSelect = `
	SELECT a.id, a.title, a.body, a.summary, a.category, a.tags, a.status, a.featured_image,
		a.read_time, a.views, a.author_id, a.created_at, a.updated_at, a.published_at,
		COALESCE(u.username, '') AS author_username,
		(SELECT COUNT(*) FROM comments c WHERE c.article_id = a.id) AS comment_count
	FROM articles a
	LEFT JOIN users u ON u.id = a.author_id
`

// searchVector is the text searched by free-text queries
const searchVector = `to_tsvector('english', a.title || ' ' || a.body || ' ' || a.tags::text)`

// articleRepo is the concrete implementation of ArticleRepository
type articleRepo struct {
	db *database.DB
}

// NewArticleRepo creates a new article repository
func NewArticleRepo(db *database.DB) ArticleRepository {
	return &articleRepo{db: db}
}

// Create inserts a new article
func (r *articleRepo) Create(ctx context.Context, article *models.Article) error {
	query := `
		INSERT INTO articles (id, title, body, summary, category, tags, status, featured_image,
			read_time, views, author_id, created_at, updated_at, published_at)
		VALUES (:id, :title, :body, :summary, :category, :tags, :status, :featured_image,
			:read_time, :views, :author_id, :created_at, :updated_at, :published_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, article)
	return err
}

// Update saves the editable fields. The author is never changed.
func (r *articleRepo) Update(ctx context.Context, article *models.Article) error {
	query := `
		UPDATE articles SET
			title = :title,
			body = :body,
			summary = :summary,
			category = :category,
			tags = :tags,
			status = :status,
			featured_image = :featured_image,
			read_time = :read_time,
			updated_at = :updated_at,
			published_at = :published_at
		WHERE id = :id
	`
	_, err := r.db.NamedExecContext(ctx, query, article)
	return err
}

// GetByID retrieves an article by ID
func (r *articleRepo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	err := r.db.GetContext(ctx, &article, articleSelect+` WHERE a.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// articleWhere builds the WHERE clause for a filter. Published listings
// always restrict to published articles.
func articleWhere(f models.ArticleFilter, publishedOnly bool) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if publishedOnly {
		add("a.status = $%d", models.StatusPublished)
	} else if f.Status != "" {
		add("a.status = $%d", f.Status)
	}
	if f.AuthorID != "" {
		add("a.author_id = $%d", f.AuthorID)
	}
	if f.Category != "" {
		add("a.category = $%d", f.Category)
	}
	if f.Search != "" {
		add(searchVector+" @@ plainto_tsquery('english', $%d)", f.Search)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *articleRepo) list(ctx context.Context, f models.ArticleFilter, publishedOnly bool, orderBy string) ([]*models.Article, int, error) {
	where, args := articleWhere(f, publishedOnly)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM articles a`+where, args...); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		articleSelect, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset())

	articles := []*models.Article{}
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// ListPublished returns published articles, most recently published first
func (r *articleRepo) ListPublished(ctx context.Context, f models.ArticleFilter) ([]*models.Article, int, error) {
	return r.list(ctx, f, true, "a.published_at DESC NULLS LAST, a.created_at DESC")
}

// ListByAuthor returns the author's articles in every status, newest first
func (r *articleRepo) ListByAuthor(ctx context.Context, f models.ArticleFilter) ([]*models.Article, int, error) {
	if f.AuthorID == "" {
		return nil, 0, fmt.Errorf("author id is required")
	}
	return r.list(ctx, f, false, "a.created_at DESC")
}

// ListAll returns every article with its author handle, newest first
func (r *articleRepo) ListAll(ctx context.Context) ([]*models.Article, error) {
	articles := []*models.Article{}
	err := r.db.SelectContext(ctx, &articles, articleSelect+` ORDER BY a.created_at DESC`)
	return articles, err
}

// IncrementViews atomically bumps the view counter of a published article
func (r *articleRepo) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE articles SET views = views + 1 WHERE id = $1 AND status = $2",
		id, models.StatusPublished,
	)
	return err
}

// Delete removes the article's comments and then the article
func (r *articleRepo) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE article_id = $1", id); err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("failed to delete article: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// CountByStatus returns the number of articles per status
func (r *articleRepo) CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM articles GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ArticleStatus]int)
	for rows.Next() {
		var status models.ArticleStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Categories returns the distinct categories used by published articles
func (r *articleRepo) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := r.db.SelectContext(ctx, &categories,
		"SELECT DISTINCT category FROM articles WHERE status = $1 ORDER BY category",
		models.StatusPublished,
	)
	return categories, err
}
