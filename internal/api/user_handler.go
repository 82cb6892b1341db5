package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/service"
	"github.com/rs/zerolog"
)

// UserHandler handles account pages and the administrator dashboard
type UserHandler struct {
	services *service.Services
	log      zerolog.Logger
	errorResponder
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *UserHandler {
	return &UserHandler{
		services:       services,
		log:            log.With().Str("handler", "user").Logger(),
		errorResponder: errorResponder{production: cfg.Server.IsProduction()},
	}
}

// Dashboard handles GET /users/admin
func (h *UserHandler) Dashboard(c *gin.Context) {
	dash, err := h.services.Admin.Dashboard(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}

	h.log.Debug().
		Str("actor_id", actorFrom(c).ID).
		Int("users", dash.Stats.TotalUsers).
		Int("articles", dash.Stats.TotalArticles).
		Msg("Dashboard served")
	respond(c, http.StatusOK, "dashboard.html", gin.H{
		"title":    "Admin Dashboard",
		"users":    dash.Users,
		"articles": dash.Articles,
		"stats":    dash.Stats,
	})
}

// Detail handles GET /users/:id
func (h *UserHandler) Detail(c *gin.Context) {
	detail, err := h.services.Account.Detail(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	respond(c, http.StatusOK, "user.html", gin.H{
		"title":    detail.User.Username,
		"user":     detail.User,
		"articles": detail.Articles,
	})
}

// ProfileRedirect handles GET /users/profile
func (h *UserHandler) ProfileRedirect(c *gin.Context) {
	c.Redirect(http.StatusFound, "/auth/profile")
}
