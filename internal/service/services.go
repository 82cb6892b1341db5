package service

import (
	"context"
	"io"
	"time"

	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/repository"
	"github.com/modern-blog/internal/storage"
	"github.com/modern-blog/internal/validation"
	"github.com/rs/zerolog"
)

// Session is a freshly issued session token
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// ImageUpload is a featured image submitted with an article form
type ImageUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Profile is the signed-in account with the articles it authored
type Profile struct {
	User     *models.User      `json:"user"`
	Articles []*models.Article `json:"articles"`
}

// AccountDetail is an account with its latest published articles
type AccountDetail struct {
	User     *models.User      `json:"user"`
	Articles []*models.Article `json:"articles"`
}

// Dashboard is the administrator overview
type Dashboard struct {
	Users    []*models.User      `json:"users"`
	Articles []*models.Article   `json:"articles"`
	Stats    models.ArticleStats `json:"stats"`
}

// SessionIssuer signs and resolves session tokens
type SessionIssuer interface {
	Issue(accountID string, role models.Role) (string, time.Time, error)
	Resolve(ctx context.Context, token string) (policy.Actor, bool)
}

// AccountInvalidator drops cached copies of changed accounts
type AccountInvalidator interface {
	Invalidate(ctx context.Context, id string)
}

// AuthService defines the interface for registration and login
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, *Session, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, *Session, error)
	Resolve(ctx context.Context, token string) (policy.Actor, bool)
}

// QuotaGuard bounds the number of administrator accounts
type QuotaGuard interface {
	CanGrantAdminRole(ctx context.Context) (bool, error)
}

// ArticleService is the content visibility engine
type ArticleService interface {
	ListVisible(ctx context.Context, actor policy.Actor, filter models.ArticleFilter) (*models.ArticlePage, error)
	ListOwn(ctx context.Context, actor policy.Actor, filter models.ArticleFilter) (*models.ArticlePage, error)
	GetOne(ctx context.Context, actor policy.Actor, id string) (*models.ArticleDetail, error)
	GetForEdit(ctx context.Context, actor policy.Actor, id string) (*models.Article, error)
	Create(ctx context.Context, actor policy.Actor, in *models.ArticleInput, image *ImageUpload) (*models.Article, error)
	Update(ctx context.Context, actor policy.Actor, id string, in *models.ArticleInput, image *ImageUpload) (*models.Article, error)
	Delete(ctx context.Context, actor policy.Actor, id string) error
}

// CommentService defines the interface for comment operations
type CommentService interface {
	Create(ctx context.Context, actor policy.Actor, articleID string, in *models.CommentInput) (*models.Comment, error)
	Edit(ctx context.Context, actor policy.Actor, articleID, commentID, body string) (*models.Comment, error)
}

// AccountService defines the interface for profile and account pages
type AccountService interface {
	Profile(ctx context.Context, actor policy.Actor) (*Profile, error)
	UpdateProfile(ctx context.Context, actor policy.Actor, p *models.ProfileUpdate) (*models.User, error)
	Detail(ctx context.Context, actor policy.Actor, id string) (*AccountDetail, error)
}

// AdminService defines the interface for the administrator dashboard
type AdminService interface {
	Dashboard(ctx context.Context, actor policy.Actor) (*Dashboard, error)
}

// Services holds all service interfaces
type Services struct {
	Auth    AuthService
	Quota   QuotaGuard
	Article ArticleService
	Comment CommentService
	Account AccountService
	Admin   AdminService
	Views   *ViewRecorder
}

// NewServices creates all services
func NewServices(
	repos *repository.Repositories,
	store storage.Storage,
	issuer SessionIssuer,
	accounts AccountInvalidator,
	log zerolog.Logger,
) *Services {
	v := validation.NewValidator()
	quota := newQuotaGuard(repos.User)
	views := NewViewRecorder(repos.Article, log)

	return &Services{
		Auth:    newAuthService(repos.User, quota, issuer, v, log),
		Quota:   quota,
		Article: newArticleService(repos, store, views, v, log),
		Comment: newCommentService(repos, v, log),
		Account: newAccountService(repos, accounts, v, log),
		Admin:   newAdminService(repos, log),
		Views:   views,
	}
}
