package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/mocks"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/policy"
	"github.com/modern-blog/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// stubIssuer hands out predictable tokens and counts them
type stubIssuer struct {
	mu     sync.Mutex
	issued int
}

func (s *stubIssuer) Issue(accountID string, role models.Role) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return fmt.Sprintf("token-%s-%s", accountID, role), time.Now().Add(7 * 24 * time.Hour), nil
}

func (s *stubIssuer) Resolve(ctx context.Context, token string) (policy.Actor, bool) {
	return policy.Anonymous, token != ""
}

func (s *stubIssuer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

type stubInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (s *stubInvalidator) Invalidate(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
}

type testHarness struct {
	services    *service.Services
	userRepo    *mocks.MockUserRepository
	articleRepo *mocks.MockArticleRepository
	commentRepo *mocks.MockCommentRepository
	store       *mocks.MockStorage
	issuer      *stubIssuer
	invalidator *stubInvalidator
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	repos, users, articles, comments := mocks.NewMockRepositories()
	store := mocks.NewMockStorage()
	issuer := &stubIssuer{}
	invalidator := &stubInvalidator{}

	services := service.NewServices(repos, store, issuer, invalidator, zerolog.Nop())
	t.Cleanup(func() { services.Views.Flush() })

	return &testHarness{
		services:    services,
		userRepo:    users,
		articleRepo: articles,
		commentRepo: comments,
		store:       store,
		issuer:      issuer,
		invalidator: invalidator,
	}
}

func (h *testHarness) register(t *testing.T, username string, role models.Role) policy.Actor {
	t.Helper()
	user, _, err := h.services.Auth.Register(context.Background(), &models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return policy.ActorFor(user)
}

func (h *testHarness) createArticle(t *testing.T, admin policy.Actor, status models.ArticleStatus) *models.Article {
	t.Helper()
	article, err := h.services.Article.Create(context.Background(), admin, &models.ArticleInput{
		Title:    "Understanding Go interfaces",
		Body:     "Interfaces in Go are satisfied implicitly by any type with the right methods.",
		Category: "Technology",
		Tags:     "go, interfaces",
		Status:   string(status),
	}, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return article
}

func assertKind(t *testing.T, err error, want errs.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", want)
	}
	if got := errs.KindOf(err); got != want {
		t.Fatalf("Expected %s error, got %s (%v)", want, got, err)
	}
}

// Registration and login

func TestRegister_Reader(t *testing.T) {
	h := newTestHarness(t)

	user, session, err := h.services.Auth.Register(context.Background(), &models.RegisterRequest{
		Username:  "jane",
		Email:     "Jane@Example.com",
		Password:  "secret123",
		FirstName: "Jane",
		Role:      "reader",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Role != models.RoleReader {
		t.Errorf("Expected reader role, got %s", user.Role)
	}
	if user.Email != "jane@example.com" {
		t.Errorf("Expected lowercased email, got %s", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret123" {
		t.Error("Password must be stored hashed")
	}
	if session == nil || session.Token == "" {
		t.Fatal("Expected a session to be issued")
	}
}

func TestRegister_ValidationFailure(t *testing.T) {
	h := newTestHarness(t)

	_, _, err := h.services.Auth.Register(context.Background(), &models.RegisterRequest{
		Username: "x",
		Email:    "not-an-email",
		Password: "123",
		Role:     "superuser",
	})
	assertKind(t, err, errs.KindValidation)

	if fields := errs.From(err).Fields; len(fields) < 4 {
		t.Errorf("Expected a message per invalid field, got %v", fields)
	}
	if h.issuer.count() != 0 {
		t.Error("No session should be issued")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	h := newTestHarness(t)
	h.register(t, "jane", models.RoleReader)

	_, _, err := h.services.Auth.Register(context.Background(), &models.RegisterRequest{
		Username: "jane",
		Email:    "other@example.com",
		Password: "secret123",
		Role:     "reader",
	})
	assertKind(t, err, errs.KindValidation)
}

func TestRegister_AdminQuota(t *testing.T) {
	h := newTestHarness(t)
	for i := 0; i < models.MaxAdministrators; i++ {
		h.register(t, fmt.Sprintf("admin%d", i), models.RoleAdministrator)
	}

	_, session, err := h.services.Auth.Register(context.Background(), &models.RegisterRequest{
		Username: "admin4",
		Email:    "admin4@example.com",
		Password: "secret123",
		Role:     "admin",
	})
	assertKind(t, err, errs.KindQuotaExceeded)
	if !errors.Is(err, errs.ErrAdminQuota) {
		t.Error("Expected ErrAdminQuota")
	}
	if session != nil {
		t.Error("No session should be issued")
	}

	n, _ := h.userRepo.CountAdmins(context.Background())
	if n != models.MaxAdministrators {
		t.Errorf("Expected %d administrators, got %d", models.MaxAdministrators, n)
	}

	// readers are not affected by the cap
	h.register(t, "reader", models.RoleReader)
}

func TestRegister_ConcurrentAdminQuota(t *testing.T) {
	h := newTestHarness(t)
	h.register(t, "admin0", models.RoleAdministrator)

	const attempts = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 1; i <= attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := h.services.Auth.Register(context.Background(), &models.RegisterRequest{
				Username: fmt.Sprintf("admin%d", i),
				Email:    fmt.Sprintf("admin%d@example.com", i),
				Password: "secret123",
				Role:     "administrator",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errs.KindOf(err) == errs.KindQuotaExceeded:
				rejected++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 2 || rejected != attempts-2 {
		t.Errorf("Expected 2 accepted and %d rejected, got %d and %d", attempts-2, accepted, rejected)
	}
	n, _ := h.userRepo.CountAdmins(context.Background())
	if n != models.MaxAdministrators {
		t.Errorf("Expected %d administrators, got %d", models.MaxAdministrators, n)
	}
}

func TestLogin_Success(t *testing.T) {
	h := newTestHarness(t)
	h.register(t, "jane", models.RoleReader)

	user, session, err := h.services.Auth.Login(context.Background(), &models.LoginRequest{
		Email:    "JANE@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.Username != "jane" || session.Token == "" {
		t.Errorf("Unexpected login result: %+v %+v", user, session)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newTestHarness(t)
	actor := h.register(t, "jane", models.RoleReader)
	before, _ := h.userRepo.GetByID(context.Background(), actor.ID)
	issued := h.issuer.count()

	_, session, err := h.services.Auth.Login(context.Background(), &models.LoginRequest{
		Email:    "jane@example.com",
		Password: "wrong-password",
	})
	assertKind(t, err, errs.KindValidation)
	if errs.From(err).Message != "Invalid email or password" {
		t.Errorf("Unexpected message %q", errs.From(err).Message)
	}
	if session != nil || h.issuer.count() != issued {
		t.Error("No session should be issued on a failed login")
	}

	after, _ := h.userRepo.GetByID(context.Background(), actor.ID)
	if *after != *before {
		t.Error("A failed login must not change the account")
	}
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	h := newTestHarness(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	h.userRepo.Users["legacy-id"] = &models.User{
		ID:           "legacy-id",
		Username:     "legacy",
		Email:        "legacy@example.com",
		PasswordHash: string(legacy),
		Role:         models.RoleReader,
	}

	if _, _, err := h.services.Auth.Login(context.Background(), &models.LoginRequest{
		Email:    "legacy@example.com",
		Password: "secret123",
	}); err != nil {
		t.Fatalf("Login with legacy hash failed: %v", err)
	}

	stored, _ := h.userRepo.GetByID(context.Background(), "legacy-id")
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Errorf("Expected the hash to be upgraded, got %q", stored.PasswordHash)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	h := newTestHarness(t)

	_, _, err := h.services.Auth.Login(context.Background(), &models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "secret123",
	})
	assertKind(t, err, errs.KindValidation)
}

func TestLogin_ExpectedRoleMismatch(t *testing.T) {
	h := newTestHarness(t)
	h.register(t, "jane", models.RoleReader)

	_, _, err := h.services.Auth.Login(context.Background(), &models.LoginRequest{
		Email:        "jane@example.com",
		Password:     "secret123",
		ExpectedRole: "admin",
	})
	assertKind(t, err, errs.KindValidation)
	if !strings.Contains(errs.From(err).Message, "registered as") {
		t.Errorf("Expected role mismatch message, got %q", errs.From(err).Message)
	}
}

// Articles

func TestArticle_ReaderCannotCreate(t *testing.T) {
	h := newTestHarness(t)
	reader := h.register(t, "jane", models.RoleReader)

	_, err := h.services.Article.Create(context.Background(), reader, &models.ArticleInput{
		Title: "A reader article",
		Body:  "Readers are not allowed to publish content here.",
	}, nil)
	assertKind(t, err, errs.KindAuthorization)
	if errs.From(err).Reason != string(policy.ReasonInsufficientRole) {
		t.Errorf("Expected insufficient_role, got %s", errs.From(err).Reason)
	}
	if len(h.articleRepo.Articles) != 0 {
		t.Error("No article should be persisted")
	}
}

func TestArticle_AnonymousCannotCreate(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.services.Article.Create(context.Background(), policy.Anonymous, &models.ArticleInput{
		Title: "Anonymous article",
		Body:  "Anonymous visitors cannot write anything.",
	}, nil)
	assertKind(t, err, errs.KindAuthentication)
}

func TestArticle_CreateDefaults(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)

	body := strings.Repeat("word ", 250)
	article, err := h.services.Article.Create(context.Background(), admin, &models.ArticleInput{
		Title: "Defaults applied",
		Body:  body,
	}, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if article.Status != models.StatusDraft {
		t.Errorf("Expected draft, got %s", article.Status)
	}
	if article.Category != models.DefaultCategory {
		t.Errorf("Expected default category, got %s", article.Category)
	}
	if article.ReadTime != 2 {
		t.Errorf("Expected read time 2, got %d", article.ReadTime)
	}
	if !strings.HasSuffix(article.Summary, "...") {
		t.Errorf("Expected derived summary, got %q", article.Summary)
	}
	if article.PublishedAt != nil {
		t.Error("Drafts have no publish time")
	}
	if article.AuthorID != admin.ID {
		t.Error("Author must be the creating administrator")
	}
}

func TestArticle_ValidationFailure(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)

	_, err := h.services.Article.Create(context.Background(), admin, &models.ArticleInput{
		Title:    "Hi",
		Body:     "short",
		Category: "Gardening",
	}, &service.ImageUpload{Filename: "a.png", Size: 3, Body: strings.NewReader("png")})
	assertKind(t, err, errs.KindValidation)

	if h.store.Count() != 0 {
		t.Error("Rejected input must not store an image")
	}
}

func TestArticle_RoundTrip(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	created := h.createArticle(t, admin, models.StatusPublished)

	detail, err := h.services.Article.GetOne(context.Background(), admin, created.ID)
	if err != nil {
		t.Fatalf("GetOne failed: %v", err)
	}
	got := detail.Article
	if got.Title != created.Title || got.Body != created.Body || got.Category != created.Category {
		t.Errorf("Round trip mismatch: %+v vs %+v", got, created)
	}
	if strings.Join(got.Tags, ",") != "go,interfaces" {
		t.Errorf("Unexpected tags %v", got.Tags)
	}
	if got.AuthorUsername != "admin" {
		t.Errorf("Expected author handle, got %q", got.AuthorUsername)
	}
}

func TestArticle_PublishedAtStampedOnce(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	article := h.createArticle(t, admin, models.StatusDraft)

	in := &models.ArticleInput{
		Title:  article.Title,
		Body:   article.Body,
		Status: string(models.StatusPublished),
	}
	published, err := h.services.Article.Update(context.Background(), admin, article.ID, in, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if published.PublishedAt == nil {
		t.Fatal("Publishing must stamp publishedAt")
	}
	stamp := *published.PublishedAt

	in.Title = "Understanding Go interfaces, revised"
	again, err := h.services.Article.Update(context.Background(), admin, article.ID, in, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if again.PublishedAt == nil || !again.PublishedAt.Equal(stamp) {
		t.Errorf("publishedAt changed from %v to %v", stamp, again.PublishedAt)
	}

	in.Status = string(models.StatusArchived)
	if _, err := h.services.Article.Update(context.Background(), admin, article.ID, in, nil); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	in.Status = string(models.StatusPublished)
	republished, err := h.services.Article.Update(context.Background(), admin, article.ID, in, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !republished.PublishedAt.Equal(stamp) {
		t.Error("Re-publishing must not reset publishedAt")
	}
}

func TestArticle_ReadTimeFollowsBody(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	article := h.createArticle(t, admin, models.StatusPublished)
	if article.ReadTime != 1 {
		t.Fatalf("Expected read time 1, got %d", article.ReadTime)
	}

	in := &models.ArticleInput{
		Title:  article.Title,
		Body:   strings.Repeat("lorem ", 401),
		Status: string(article.Status),
	}
	updated, err := h.services.Article.Update(context.Background(), admin, article.ID, in, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ReadTime != 3 {
		t.Errorf("Expected read time 3 after body change, got %d", updated.ReadTime)
	}
}

func TestArticle_ExplicitSummaryKept(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)

	article, err := h.services.Article.Create(context.Background(), admin, &models.ArticleInput{
		Title:   "With a summary",
		Body:    strings.Repeat("content ", 100),
		Summary: "Hand written summary",
	}, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if article.Summary != "Hand written summary" {
		t.Errorf("Explicit summary overwritten: %q", article.Summary)
	}
}

func TestArticle_AnonymousDraftIsHidden(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	draft := h.createArticle(t, admin, models.StatusDraft)

	_, err := h.services.Article.GetOne(context.Background(), policy.Anonymous, draft.ID)
	assertKind(t, err, errs.KindNotFound)
	if errs.From(err).Reason != string(policy.ReasonNotVisible) {
		t.Errorf("Expected not_visible, got %s", errs.From(err).Reason)
	}

	h.services.Views.Flush()
	if v := h.articleRepo.Views(draft.ID); v != 0 {
		t.Errorf("View counter changed to %d", v)
	}
	if h.articleRepo.ViewCalls != 0 {
		t.Error("No increment may be attempted for a hidden article")
	}
}

func TestArticle_DraftVisibleToAdministrator(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	other := h.register(t, "other", models.RoleAdministrator)
	draft := h.createArticle(t, admin, models.StatusDraft)

	for _, actor := range []policy.Actor{admin, other} {
		if _, err := h.services.Article.GetOne(context.Background(), actor, draft.ID); err != nil {
			t.Errorf("Administrator %s should see the draft: %v", actor.Username, err)
		}
	}

	h.services.Views.Flush()
	if v := h.articleRepo.Views(draft.ID); v != 0 {
		t.Errorf("Draft views must not change, got %d", v)
	}
}

func TestArticle_ViewCountedOnce(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	article := h.createArticle(t, admin, models.StatusPublished)

	detail, err := h.services.Article.GetOne(context.Background(), policy.Anonymous, article.ID)
	if err != nil {
		t.Fatalf("GetOne failed: %v", err)
	}
	if detail.Article.Views != 1 {
		t.Errorf("Expected the returned copy to show 1 view, got %d", detail.Article.Views)
	}

	h.services.Views.Flush()
	if v := h.articleRepo.Views(article.ID); v != 1 {
		t.Errorf("Expected 1 stored view, got %d", v)
	}
}

func TestArticle_ViewFailureDoesNotFailRead(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	article := h.createArticle(t, admin, models.StatusPublished)
	h.articleRepo.IncrementErr = mocks.ErrMockFailure

	if _, err := h.services.Article.GetOne(context.Background(), policy.Anonymous, article.ID); err != nil {
		t.Fatalf("A failed increment must not fail the read: %v", err)
	}
	h.services.Views.Flush()
}

func TestArticle_GetOneNotFound(t *testing.T) {
	h := newTestHarness(t)

	for _, id := range []string{"not-a-uuid", "6f1c1b9e-9a51-4c61-9f7e-5a4f7c1d2e3f"} {
		_, err := h.services.Article.GetOne(context.Background(), policy.Anonymous, id)
		assertKind(t, err, errs.KindNotFound)
	}
}

func TestArticle_ListVisible(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	for i := 0; i < 3; i++ {
		h.createArticle(t, admin, models.StatusPublished)
	}
	h.createArticle(t, admin, models.StatusDraft)
	h.createArticle(t, admin, models.StatusArchived)

	for _, actor := range []policy.Actor{policy.Anonymous, admin} {
		page, err := h.services.Article.ListVisible(context.Background(), actor, models.ArticleFilter{Limit: 2})
		if err != nil {
			t.Fatalf("ListVisible failed: %v", err)
		}
		if page.Pagination.TotalCount != 3 || len(page.Articles) != 2 {
			t.Errorf("Expected 2 of 3 published, got %d of %d", len(page.Articles), page.Pagination.TotalCount)
		}
		if !page.Pagination.HasNext || page.Pagination.Total != 2 {
			t.Errorf("Unexpected pagination %+v", page.Pagination)
		}
		for _, a := range page.Articles {
			if a.Status != models.StatusPublished {
				t.Errorf("Listing leaked a %s article", a.Status)
			}
		}
	}
}

func TestArticle_ListVisibleFilters(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	h.createArticle(t, admin, models.StatusPublished)
	if _, err := h.services.Article.Create(context.Background(), admin, &models.ArticleInput{
		Title:    "Street food in Bangkok",
		Body:     "Where to eat noodles at midnight in the old town.",
		Category: "Food",
		Tags:     "travel, noodles",
		Status:   "published",
	}, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name   string
		filter models.ArticleFilter
		want   int
	}{
		{"category", models.ArticleFilter{Category: "Food"}, 1},
		{"search title", models.ArticleFilter{Search: "interfaces"}, 1},
		{"search tag", models.ArticleFilter{Search: "noodles"}, 1},
		{"no match", models.ArticleFilter{Search: "kubernetes"}, 0},
		{"all", models.ArticleFilter{}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := h.services.Article.ListVisible(context.Background(), policy.Anonymous, tt.filter)
			if err != nil {
				t.Fatalf("ListVisible failed: %v", err)
			}
			if len(page.Articles) != tt.want {
				t.Errorf("Expected %d articles, got %d", tt.want, len(page.Articles))
			}
		})
	}
}

func TestArticle_ListVisibleByAuthor(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	other := h.register(t, "other", models.RoleAdministrator)
	h.createArticle(t, admin, models.StatusPublished)
	h.createArticle(t, admin, models.StatusDraft)
	h.createArticle(t, other, models.StatusPublished)

	page, err := h.services.Article.ListVisible(context.Background(), policy.Anonymous,
		models.ArticleFilter{AuthorID: admin.ID, Category: "all"})
	if err != nil {
		t.Fatalf("ListVisible failed: %v", err)
	}
	if len(page.Articles) != 1 || page.Articles[0].AuthorID != admin.ID {
		t.Fatalf("Expected the author's one published article, got %d", len(page.Articles))
	}
	if page.Filter.Author != admin.ID {
		t.Errorf("Expected author filter echoed, got %q", page.Filter.Author)
	}

	page, err = h.services.Article.ListVisible(context.Background(), policy.Anonymous,
		models.ArticleFilter{AuthorID: "not-an-id"})
	if err != nil {
		t.Fatalf("ListVisible with malformed author failed: %v", err)
	}
	if len(page.Articles) != 0 || page.Pagination.TotalCount != 0 {
		t.Errorf("Expected an empty page for a malformed author id, got %d", len(page.Articles))
	}
}

func TestArticle_ListOwn(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	other := h.register(t, "other", models.RoleAdministrator)
	reader := h.register(t, "jane", models.RoleReader)
	h.createArticle(t, admin, models.StatusPublished)
	h.createArticle(t, admin, models.StatusDraft)
	h.createArticle(t, other, models.StatusDraft)

	page, err := h.services.Article.ListOwn(context.Background(), admin, models.ArticleFilter{})
	if err != nil {
		t.Fatalf("ListOwn failed: %v", err)
	}
	if len(page.Articles) != 2 {
		t.Errorf("Expected 2 own articles, got %d", len(page.Articles))
	}

	drafts, err := h.services.Article.ListOwn(context.Background(), admin, models.ArticleFilter{Status: models.StatusDraft})
	if err != nil {
		t.Fatalf("ListOwn failed: %v", err)
	}
	if len(drafts.Articles) != 1 || drafts.Filter.Status != "draft" {
		t.Errorf("Expected 1 draft, got %d", len(drafts.Articles))
	}

	_, err = h.services.Article.ListOwn(context.Background(), reader, models.ArticleFilter{})
	assertKind(t, err, errs.KindAuthorization)
}

func TestArticle_DeleteCascades(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	reader := h.register(t, "jane", models.RoleReader)
	article := h.createArticle(t, admin, models.StatusPublished)

	var commentIDs []string
	for i := 0; i < 2; i++ {
		c, err := h.services.Comment.Create(context.Background(), reader, article.ID, &models.CommentInput{Body: fmt.Sprintf("Comment %d", i)})
		if err != nil {
			t.Fatalf("Comment create failed: %v", err)
		}
		commentIDs = append(commentIDs, c.ID)
	}

	if err := h.services.Article.Delete(context.Background(), admin, article.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := h.services.Article.GetOne(context.Background(), admin, article.ID)
	assertKind(t, err, errs.KindNotFound)

	for _, id := range commentIDs {
		if c, _ := h.commentRepo.GetByID(context.Background(), id); c != nil {
			t.Errorf("Comment %s survived the delete", id)
		}
	}

	profile, err := h.services.Account.Profile(context.Background(), admin)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	for _, a := range profile.Articles {
		if a.ID == article.ID {
			t.Error("Deleted article still listed for its author")
		}
	}
}

func TestArticle_DeleteByReader(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	reader := h.register(t, "jane", models.RoleReader)
	article := h.createArticle(t, admin, models.StatusPublished)

	err := h.services.Article.Delete(context.Background(), reader, article.ID)
	assertKind(t, err, errs.KindAuthorization)
	if _, ok := h.articleRepo.Articles[article.ID]; !ok {
		t.Error("Article must survive a denied delete")
	}
}

func TestArticle_DeleteFailureReported(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	article := h.createArticle(t, admin, models.StatusPublished)
	h.articleRepo.DeleteError = mocks.ErrMockFailure

	err := h.services.Article.Delete(context.Background(), admin, article.ID)
	assertKind(t, err, errs.KindUnexpected)
}

// Featured images

func TestArticle_ImageReleasedOnFailedCreate(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	h.articleRepo.InsertError = mocks.ErrMockFailure

	_, err := h.services.Article.Create(context.Background(), admin, &models.ArticleInput{
		Title: "Image article",
		Body:  "An article that carries a featured image.",
	}, &service.ImageUpload{Filename: "cover.png", Size: 4, Body: strings.NewReader("data")})
	assertKind(t, err, errs.KindUnexpected)

	if h.store.Count() != 0 {
		t.Error("The uploaded image must be released when the create fails")
	}
}

func TestArticle_ImageReplaced(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)

	in := &models.ArticleInput{
		Title: "Image article",
		Body:  "An article that carries a featured image.",
	}
	article, err := h.services.Article.Create(context.Background(), admin, in,
		&service.ImageUpload{Filename: "first.png", Size: 5, Body: strings.NewReader("first")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	first := article.FeaturedImage

	updated, err := h.services.Article.Update(context.Background(), admin, article.ID, in,
		&service.ImageUpload{Filename: "second.png", Size: 6, Body: strings.NewReader("second")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.FeaturedImage == first || !h.store.Has(updated.FeaturedImage) {
		t.Error("Expected the new image to be referenced")
	}
	if h.store.Has(first) {
		t.Error("The replaced image must be released")
	}

	if err := h.services.Article.Delete(context.Background(), admin, article.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if h.store.Count() != 0 {
		t.Error("Delete must release the image")
	}
}

func TestArticle_UpdateWithoutStatusKeepsStatus(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	article := h.createArticle(t, admin, models.StatusPublished)

	updated, err := h.services.Article.Update(context.Background(), admin, article.ID, &models.ArticleInput{
		Title:    "Understanding Go interfaces, revised",
		Body:     article.Body,
		Category: article.Category,
	}, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != models.StatusPublished {
		t.Fatalf("Expected status to stay published, got %s", updated.Status)
	}
	if !updated.PublishedAt.Equal(*article.PublishedAt) {
		t.Error("publishedAt must not change when status is kept")
	}

	detail, err := h.services.Article.GetOne(context.Background(), policy.Anonymous, article.ID)
	if err != nil {
		t.Fatalf("Expected the article to stay visible, got %v", err)
	}
	if detail.Article.Title != "Understanding Go interfaces, revised" {
		t.Errorf("Unexpected title %q", detail.Article.Title)
	}

	// an explicit status still applies
	archived, err := h.services.Article.Update(context.Background(), admin, article.ID, &models.ArticleInput{
		Title:  updated.Title,
		Body:   updated.Body,
		Status: "archived",
	}, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if archived.Status != models.StatusArchived {
		t.Errorf("Expected archived, got %s", archived.Status)
	}
}

func TestArticle_ImageReleasedOnFailedUpdate(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	article := h.createArticle(t, admin, models.StatusDraft)
	h.articleRepo.UpdateError = mocks.ErrMockFailure

	_, err := h.services.Article.Update(context.Background(), admin, article.ID, &models.ArticleInput{
		Title: article.Title,
		Body:  article.Body,
	}, &service.ImageUpload{Filename: "cover.png", Size: 4, Body: strings.NewReader("data")})
	assertKind(t, err, errs.KindUnexpected)

	if h.store.Count() != 0 {
		t.Error("The uploaded image must be released when the update fails")
	}
}

func TestArticle_RemoveImage(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	in := &models.ArticleInput{Title: "Image article", Body: "An article that carries a featured image."}
	article, err := h.services.Article.Create(context.Background(), admin, in,
		&service.ImageUpload{Filename: "cover.png", Size: 4, Body: strings.NewReader("data")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	in.RemoveImage = true
	updated, err := h.services.Article.Update(context.Background(), admin, article.ID, in, nil)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.FeaturedImage != "" || h.store.Count() != 0 {
		t.Error("Expected the image to be removed and released")
	}
}

// Comments

func TestComment_CreateAndEdit(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	reader := h.register(t, "jane", models.RoleReader)
	article := h.createArticle(t, admin, models.StatusPublished)

	comment, err := h.services.Comment.Create(context.Background(), reader, article.ID, &models.CommentInput{Body: "  Great post  "})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if comment.IsEdited || comment.EditedAt != nil {
		t.Error("A new comment is not edited")
	}
	if comment.Status != models.CommentApproved {
		t.Errorf("Expected approved, got %s", comment.Status)
	}
	if comment.Body != "Great post" {
		t.Errorf("Expected trimmed body, got %q", comment.Body)
	}

	edited, err := h.services.Comment.Edit(context.Background(), reader, article.ID, comment.ID, "Great post, thanks")
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if !edited.IsEdited || edited.EditedAt == nil {
		t.Error("Edit must set isEdited and editedAt")
	}

	stored, _ := h.commentRepo.GetByID(context.Background(), comment.ID)
	if !stored.IsEdited || stored.Body != "Great post, thanks" {
		t.Errorf("Edit not persisted: %+v", stored)
	}

	// administrators may edit any comment
	if _, err := h.services.Comment.Edit(context.Background(), admin, article.ID, comment.ID, "Moderated"); err != nil {
		t.Errorf("Administrator edit failed: %v", err)
	}
}

func TestComment_EditByOtherReader(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	author := h.register(t, "jane", models.RoleReader)
	other := h.register(t, "john", models.RoleReader)
	article := h.createArticle(t, admin, models.StatusPublished)

	comment, err := h.services.Comment.Create(context.Background(), author, article.ID, &models.CommentInput{Body: "Mine"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = h.services.Comment.Edit(context.Background(), other, article.ID, comment.ID, "Not mine")
	assertKind(t, err, errs.KindAuthorization)
	if errs.From(err).Reason != string(policy.ReasonNotOwner) {
		t.Errorf("Expected not_owner, got %s", errs.From(err).Reason)
	}

	_, err = h.services.Comment.Edit(context.Background(), policy.Anonymous, article.ID, comment.ID, "Anonymous")
	assertKind(t, err, errs.KindAuthentication)
}

func TestComment_EditWrongArticle(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	first := h.createArticle(t, admin, models.StatusPublished)
	second := h.createArticle(t, admin, models.StatusPublished)

	comment, err := h.services.Comment.Create(context.Background(), admin, first.ID, &models.CommentInput{Body: "On the first"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = h.services.Comment.Edit(context.Background(), admin, second.ID, comment.ID, "Moved")
	assertKind(t, err, errs.KindNotFound)
}

func TestComment_Rules(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	reader := h.register(t, "jane", models.RoleReader)
	published := h.createArticle(t, admin, models.StatusPublished)
	draft := h.createArticle(t, admin, models.StatusDraft)
	other := h.createArticle(t, admin, models.StatusPublished)

	parentOnOther, err := h.services.Comment.Create(context.Background(), reader, other.ID, &models.CommentInput{Body: "Elsewhere"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name      string
		actor     policy.Actor
		articleID string
		input     models.CommentInput
		want      errs.Kind
	}{
		{"anonymous", policy.Anonymous, published.ID, models.CommentInput{Body: "Hello"}, errs.KindAuthentication},
		{"hidden draft", reader, draft.ID, models.CommentInput{Body: "Hello"}, errs.KindNotFound},
		{"missing article", reader, "6f1c1b9e-9a51-4c61-9f7e-5a4f7c1d2e3f", models.CommentInput{Body: "Hello"}, errs.KindNotFound},
		{"empty body", reader, published.ID, models.CommentInput{Body: "   "}, errs.KindValidation},
		{"too long", reader, published.ID, models.CommentInput{Body: strings.Repeat("a", models.CommentMaxLength+1)}, errs.KindValidation},
		{"foreign parent", reader, published.ID, models.CommentInput{Body: "Reply", ParentID: parentOnOther.ID}, errs.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			_, err := h.services.Comment.Create(context.Background(), tt.actor, tt.articleID, &in)
			assertKind(t, err, tt.want)
		})
	}
}

func TestComment_Reply(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	reader := h.register(t, "jane", models.RoleReader)
	article := h.createArticle(t, admin, models.StatusPublished)

	parent, err := h.services.Comment.Create(context.Background(), reader, article.ID, &models.CommentInput{Body: "Question?"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	reply, err := h.services.Comment.Create(context.Background(), admin, article.ID, &models.CommentInput{Body: "Answer.", ParentID: parent.ID})
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply.ParentID == nil || *reply.ParentID != parent.ID {
		t.Error("Reply must reference its parent")
	}

	detail, err := h.services.Article.GetOne(context.Background(), reader, article.ID)
	if err != nil {
		t.Fatalf("GetOne failed: %v", err)
	}
	if len(detail.Comments) != 2 {
		t.Errorf("Expected 2 comments, got %d", len(detail.Comments))
	}
}

// Accounts and dashboard

func TestAccount_Detail(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	jane := h.register(t, "jane", models.RoleReader)
	john := h.register(t, "john", models.RoleReader)

	if _, err := h.services.Account.Detail(context.Background(), jane, jane.ID); err != nil {
		t.Errorf("Self detail failed: %v", err)
	}
	if _, err := h.services.Account.Detail(context.Background(), admin, jane.ID); err != nil {
		t.Errorf("Administrator detail failed: %v", err)
	}

	_, err := h.services.Account.Detail(context.Background(), john, jane.ID)
	assertKind(t, err, errs.KindAuthorization)

	_, err = h.services.Account.Detail(context.Background(), policy.Anonymous, jane.ID)
	assertKind(t, err, errs.KindAuthentication)

	_, err = h.services.Account.Detail(context.Background(), admin, "6f1c1b9e-9a51-4c61-9f7e-5a4f7c1d2e3f")
	assertKind(t, err, errs.KindNotFound)
}

func TestAccount_DetailListsPublishedOnly(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	h.createArticle(t, admin, models.StatusPublished)
	h.createArticle(t, admin, models.StatusDraft)

	detail, err := h.services.Account.Detail(context.Background(), admin, admin.ID)
	if err != nil {
		t.Fatalf("Detail failed: %v", err)
	}
	if len(detail.Articles) != 1 {
		t.Errorf("Expected 1 published article, got %d", len(detail.Articles))
	}
}

func TestAccount_UpdateProfile(t *testing.T) {
	h := newTestHarness(t)
	jane := h.register(t, "jane", models.RoleReader)

	user, err := h.services.Account.UpdateProfile(context.Background(), jane, &models.ProfileUpdate{
		FirstName: " Jane ",
		LastName:  "Doe",
		Bio:       "Writes about Go.",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if user.FirstName != "Jane" || user.LastName != "Doe" || user.Bio != "Writes about Go." {
		t.Errorf("Unexpected profile %+v", user)
	}
	if len(h.invalidator.ids) != 1 || h.invalidator.ids[0] != jane.ID {
		t.Errorf("Expected the cached account to be invalidated, got %v", h.invalidator.ids)
	}

	_, err = h.services.Account.UpdateProfile(context.Background(), jane, &models.ProfileUpdate{Bio: strings.Repeat("b", 501)})
	assertKind(t, err, errs.KindValidation)

	_, err = h.services.Account.UpdateProfile(context.Background(), policy.Anonymous, &models.ProfileUpdate{})
	assertKind(t, err, errs.KindAuthentication)
}

func TestAdmin_Dashboard(t *testing.T) {
	h := newTestHarness(t)
	admin := h.register(t, "admin", models.RoleAdministrator)
	reader := h.register(t, "jane", models.RoleReader)
	h.createArticle(t, admin, models.StatusPublished)
	h.createArticle(t, admin, models.StatusPublished)
	h.createArticle(t, admin, models.StatusDraft)
	h.createArticle(t, admin, models.StatusArchived)

	dash, err := h.services.Admin.Dashboard(context.Background(), admin)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	want := models.ArticleStats{TotalUsers: 2, TotalArticles: 4, Published: 2, Drafts: 1, Administrators: 1}
	if dash.Stats != want {
		t.Errorf("Expected stats %+v, got %+v", want, dash.Stats)
	}
	if len(dash.Users) != 2 || len(dash.Articles) != 4 {
		t.Errorf("Expected 2 users and 4 articles, got %d and %d", len(dash.Users), len(dash.Articles))
	}

	_, err = h.services.Admin.Dashboard(context.Background(), reader)
	assertKind(t, err, errs.KindAuthorization)
}
