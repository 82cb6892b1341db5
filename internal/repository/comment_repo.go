package repository

import (
	"context"
	"database/sql"

	"github.com/modern-blog/internal/database"
	"github.com/modern-blog/internal/models"
)

const commentSelect = `
	SELECT c.id, c.article_id, c.author_id, c.parent_id, c.body, c.status, c.is_edited,
		c.edited_at, c.liked_by, c.created_at, c.updated_at,
		COALESCE(u.username, '') AS author_username,
		(SELECT COUNT(*) FROM comments r WHERE r.parent_id = c.id) AS reply_count
	FROM comments c
	LEFT JOIN users u ON u.id = c.author_id
`

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db}
}

// Create inserts a new comment
func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	if comment.LikedBy == nil {
		comment.LikedBy = []string{}
	}
	query := `
		INSERT INTO comments (id, article_id, author_id, parent_id, body, status, is_edited,
			edited_at, liked_by, created_at, updated_at)
		VALUES (:id, :article_id, :author_id, :parent_id, :body, :status, :is_edited,
			:edited_at, :liked_by, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, comment)
	return err
}

// Update saves an edited comment body
func (r *commentRepo) Update(ctx context.Context, comment *models.Comment) error {
	query := `
		UPDATE comments SET body = :body, is_edited = :is_edited, edited_at = :edited_at, updated_at = :updated_at
		WHERE id = :id
	`
	_, err := r.db.NamedExecContext(ctx, query, comment)
	return err
}

// GetByID retrieves a comment by ID
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.GetContext(ctx, &comment, commentSelect+` WHERE c.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByArticle returns an article's comments, newest first
func (r *commentRepo) ListByArticle(ctx context.Context, articleID string) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	err := r.db.SelectContext(ctx, &comments, commentSelect+` WHERE c.article_id = $1 ORDER BY c.created_at DESC`, articleID)
	return comments, err
}
