package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/service"
	"github.com/rs/zerolog"
)

// CommentHandler handles comment endpoints
type CommentHandler struct {
	services *service.Services
	log      zerolog.Logger
	errorResponder
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		services:       services,
		log:            log.With().Str("handler", "comment").Logger(),
		errorResponder: errorResponder{production: cfg.Server.IsProduction()},
	}
}

// Create handles POST /articles/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	articleID := c.Param("id")

	var in models.CommentInput
	if err := c.ShouldBind(&in); err != nil {
		h.respondError(c, errs.NewValidation("Invalid request body"), "", nil)
		return
	}

	comment, err := h.services.Comment.Create(c.Request.Context(), actorFrom(c), articleID, &in)
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}

	h.log.Info().
		Str("article_id", articleID).
		Str("comment_id", comment.ID).
		Bool("reply", comment.ParentID != nil).
		Msg("Comment added")

	respondOrRedirect(c, http.StatusCreated, "/articles/"+articleID+"#comment-"+comment.ID, gin.H{
		"message": "Comment added successfully",
		"comment": comment,
	})
}

// Edit handles POST /articles/:id/comments/:commentId/edit
func (h *CommentHandler) Edit(c *gin.Context) {
	articleID := c.Param("id")

	var in models.CommentInput
	if err := c.ShouldBind(&in); err != nil {
		h.respondError(c, errs.NewValidation("Invalid request body"), "", nil)
		return
	}

	comment, err := h.services.Comment.Edit(c.Request.Context(), actorFrom(c), articleID, c.Param("commentId"), in.Body)
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	h.log.Info().Str("comment_id", comment.ID).Msg("Comment edited")

	respondOrRedirect(c, http.StatusOK, "/articles/"+articleID+"#comment-"+comment.ID, gin.H{
		"message": "Comment updated successfully",
		"comment": comment,
	})
}
