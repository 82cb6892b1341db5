package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// CommentStatus is the moderation state of a comment. Only the default
// is ever assigned; there is no moderation workflow.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

// CommentMaxLength is the maximum allowed characters in a comment body
const CommentMaxLength = 1000

// Comment represents a comment on an article
type Comment struct {
	ID             string         `json:"id" db:"id"`
	ArticleID      string         `json:"article_id" db:"article_id"`
	AuthorID       string         `json:"author_id" db:"author_id"`
	AuthorUsername string         `json:"author_username,omitempty" db:"author_username"`
	ParentID       *string        `json:"parent_id,omitempty" db:"parent_id"`
	Body           string         `json:"body" db:"body"`
	Status         CommentStatus  `json:"status" db:"status"`
	IsEdited       bool           `json:"is_edited" db:"is_edited"`
	EditedAt       *time.Time     `json:"edited_at,omitempty" db:"edited_at"`
	LikedBy        pq.StringArray `json:"-" db:"liked_by"`
	ReplyCount     int            `json:"reply_count" db:"reply_count"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// LikeCount returns the number of accounts that liked the comment
func (c *Comment) LikeCount() int {
	return len(c.LikedBy)
}

// Edit replaces the body and marks the comment as edited
func (c *Comment) Edit(body string, now time.Time) {
	c.Body = strings.TrimSpace(body)
	c.IsEdited = true
	edited := now
	c.EditedAt = &edited
	c.UpdatedAt = now
}

// CommentInput is the comment form or JSON body
type CommentInput struct {
	Body     string `json:"body" form:"content"`
	ParentID string `json:"parent_id" form:"parentComment"`
}
