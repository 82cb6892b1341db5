package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/service"
	"github.com/rs/zerolog"
)

// AuthHandler handles registration, login and profile endpoints
type AuthHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
	errorResponder
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		services:       services,
		cfg:            cfg,
		log:            log.With().Str("handler", "auth").Logger(),
		errorResponder: errorResponder{production: cfg.Server.IsProduction()},
	}
}

// LoginForm handles GET /auth/login
func (h *AuthHandler) LoginForm(c *gin.Context) {
	if actor := actorFrom(c); !actor.IsAnonymous() {
		c.Redirect(http.StatusFound, landingFor(actor))
		return
	}
	c.HTML(http.StatusOK, "login.html", viewData(c, gin.H{
		"title":    "Login",
		"redirect": c.Query("redirect"),
	}))
}

// RegisterForm handles GET /auth/register
func (h *AuthHandler) RegisterForm(c *gin.Context) {
	if actor := actorFrom(c); !actor.IsAnonymous() {
		c.Redirect(http.StatusFound, landingFor(actor))
		return
	}
	c.HTML(http.StatusOK, "register.html", viewData(c, gin.H{
		"title": "Register",
		"input": gin.H{},
	}))
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, errs.NewValidation("Invalid request body"), "register.html", gin.H{"title": "Register", "input": gin.H{}})
		return
	}

	user, session, err := h.services.Auth.Register(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err, "register.html", gin.H{
			"title": "Register",
			"input": registerEcho(&req),
		})
		return
	}

	setSessionCookie(c, h.cfg, session)
	h.log.Info().Str("account_id", user.ID).Msg("Registration completed")

	respondOrRedirect(c, http.StatusCreated, landingFor(policy.ActorFor(user)), gin.H{
		"message":    "Registration successful",
		"user":       user.Public(),
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
	})
}

// registerEcho returns the submitted fields for re-populating the form
func registerEcho(req *models.RegisterRequest) gin.H {
	return gin.H{
		"username":  req.Username,
		"email":     req.Email,
		"firstName": req.FirstName,
		"lastName":  req.LastName,
		"bio":       req.Bio,
		"role":      req.Role,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, errs.NewValidation("Invalid request body"), "login.html", gin.H{"title": "Login"})
		return
	}

	redirect := c.Query("redirect")
	if redirect == "" {
		redirect = c.PostForm("redirect")
	}

	user, session, err := h.services.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err, "login.html", gin.H{
			"title":    "Login",
			"redirect": redirect,
			"input":    gin.H{"email": req.Email, "expectedRole": req.ExpectedRole},
		})
		return
	}

	setSessionCookie(c, h.cfg, session)

	target := safeRedirect(redirect, landingFor(policy.ActorFor(user)))
	respondOrRedirect(c, http.StatusOK, target, gin.H{
		"message":    "Login successful",
		"user":       user.Public(),
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
	})
}

// Logout handles GET and POST /auth/logout. Only the client copy of the
// token is cleared; the token stays valid until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	clearSessionCookie(c, h.cfg)
	respondOrRedirect(c, http.StatusOK, "/", gin.H{"message": "Logout successful"})
}

// Profile handles GET /auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	profile, err := h.services.Account.Profile(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	respond(c, http.StatusOK, "profile.html", gin.H{
		"title":    "My Profile",
		"user":     profile.User,
		"articles": profile.Articles,
	})
}

// UpdateProfile handles POST /auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, errs.NewValidation("Invalid request body"), "", nil)
		return
	}

	actor := actorFrom(c)
	user, err := h.services.Account.UpdateProfile(c.Request.Context(), actor, &req)
	if err != nil {
		data := gin.H{"title": "My Profile", "input": req}
		if profile, perr := h.services.Account.Profile(c.Request.Context(), actor); perr == nil {
			data["user"] = profile.User
			data["articles"] = profile.Articles
		}
		h.respondError(c, err, "profile.html", data)
		return
	}

	respondOrRedirect(c, http.StatusOK, "/auth/profile", gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// CurrentUser handles GET /auth/api/user
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	profile, err := h.services.Account.Profile(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile.User.Public()})
}
