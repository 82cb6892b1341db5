package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/repository"
)

// NewMockRepositories wires mock repositories together so deleting an
// article also deletes its comments.
func NewMockRepositories() (*repository.Repositories, *MockUserRepository, *MockArticleRepository, *MockCommentRepository) {
	users := NewMockUserRepository()
	comments := NewMockCommentRepository()
	articles := NewMockArticleRepository()
	articles.Comments = comments
	articles.Users = users
	comments.Users = users

	return &repository.Repositories{
		User:    users,
		Article: articles,
		Comment: comments,
	}, users, articles, comments
}

// MockUserRepository is a mock implementation of UserRepository. The
// administrator cap is enforced under the mutex, like the slot claim.
type MockUserRepository struct {
	mu          sync.Mutex
	Users       map[string]*models.User
	InsertError error
	GetError    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[string]*models.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertError != nil {
		return m.InsertError
	}
	admins := 0
	for _, u := range m.Users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
		}
		if u.Username == user.Username {
			return fmt.Errorf("%w: users_username_key", repository.ErrDuplicate)
		}
		if u.Role == models.RoleAdministrator {
			admins++
		}
	}
	if user.Role == models.RoleAdministrator && admins >= models.MaxAdministrators {
		return repository.ErrNoAdminSlot
	}

	stored := *user
	m.Users[user.ID] = &stored
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	for _, u := range m.Users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *MockUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id string, p *models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, nil
	}
	u.FirstName, u.LastName, u.Bio = p.FirstName, p.LastName, p.Bio
	clone := *u
	return &clone, nil
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.Users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func (m *MockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*models.User, 0, len(m.Users))
	for _, u := range m.Users {
		clone := *u
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (m *MockUserRepository) CountAdmins(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.Users {
		if u.Role == models.RoleAdministrator {
			n++
		}
	}
	return n, nil
}

func (m *MockUserRepository) username(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.Users[id]; ok {
		return u.Username
	}
	return ""
}

// MockArticleRepository is a mock implementation of ArticleRepository
type MockArticleRepository struct {
	mu           sync.Mutex
	Articles     map[string]*models.Article
	Comments     *MockCommentRepository
	Users        *MockUserRepository
	InsertError  error
	UpdateError  error
	DeleteError  error
	IncrementErr error
	ViewCalls    int
}

func NewMockArticleRepository() *MockArticleRepository {
	return &MockArticleRepository{Articles: make(map[string]*models.Article)}
}

func (m *MockArticleRepository) Create(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	stored := *article
	m.Articles[article.ID] = &stored
	return nil
}

func (m *MockArticleRepository) Update(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	existing, ok := m.Articles[article.ID]
	if !ok {
		return nil
	}
	stored := *article
	stored.AuthorID = existing.AuthorID
	stored.Views = existing.Views
	stored.CreatedAt = existing.CreatedAt
	m.Articles[article.ID] = &stored
	return nil
}

func (m *MockArticleRepository) decorate(a *models.Article) *models.Article {
	clone := *a
	if m.Users != nil {
		clone.AuthorUsername = m.Users.username(a.AuthorID)
	}
	if m.Comments != nil {
		clone.CommentCount = m.Comments.count(a.ID)
	}
	return &clone
}

func (m *MockArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Articles[id]
	if !ok {
		return nil, nil
	}
	return m.decorate(a), nil
}

func matchesSearch(a *models.Article, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(a.Title), q) || strings.Contains(strings.ToLower(a.Body), q) {
		return true
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func (m *MockArticleRepository) filter(f models.ArticleFilter, publishedOnly bool) []*models.Article {
	var out []*models.Article
	for _, a := range m.Articles {
		if publishedOnly && a.Status != models.StatusPublished {
			continue
		}
		if !publishedOnly && f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && a.AuthorID != f.AuthorID {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		if f.Search != "" && !matchesSearch(a, f.Search) {
			continue
		}
		out = append(out, m.decorate(a))
	}
	return out
}

func page(articles []*models.Article, f models.ArticleFilter) []*models.Article {
	start := f.Offset()
	if start >= len(articles) {
		return []*models.Article{}
	}
	end := start + f.Limit
	if end > len(articles) {
		end = len(articles)
	}
	return articles[start:end]
}

func (m *MockArticleRepository) ListPublished(ctx context.Context, f models.ArticleFilter) ([]*models.Article, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	articles := m.filter(f, true)
	sort.Slice(articles, func(i, j int) bool {
		pi, pj := articles[i].PublishedAt, articles[j].PublishedAt
		if pi != nil && pj != nil && !pi.Equal(*pj) {
			return pi.After(*pj)
		}
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
	return page(articles, f), len(articles), nil
}

func (m *MockArticleRepository) ListByAuthor(ctx context.Context, f models.ArticleFilter) ([]*models.Article, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.AuthorID == "" {
		return nil, 0, fmt.Errorf("author id is required")
	}
	articles := m.filter(f, false)
	sort.Slice(articles, func(i, j int) bool { return articles[i].CreatedAt.After(articles[j].CreatedAt) })
	return page(articles, f), len(articles), nil
}

func (m *MockArticleRepository) ListAll(ctx context.Context) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	articles := make([]*models.Article, 0, len(m.Articles))
	for _, a := range m.Articles {
		articles = append(articles, m.decorate(a))
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].CreatedAt.After(articles[j].CreatedAt) })
	return articles, nil
}

func (m *MockArticleRepository) IncrementViews(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ViewCalls++
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	if a, ok := m.Articles[id]; ok && a.Status == models.StatusPublished {
		a.Views++
	}
	return nil
}

func (m *MockArticleRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	if _, ok := m.Articles[id]; !ok {
		return false, nil
	}
	if m.Comments != nil {
		m.Comments.deleteByArticle(id)
	}
	delete(m.Articles, id)
	return true, nil
}

func (m *MockArticleRepository) CountByStatus(ctx context.Context) (map[models.ArticleStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[models.ArticleStatus]int)
	for _, a := range m.Articles {
		counts[a.Status]++
	}
	return counts, nil
}

func (m *MockArticleRepository) Categories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	categories := []string{}
	for _, a := range m.Articles {
		if a.Status == models.StatusPublished && !seen[a.Category] {
			seen[a.Category] = true
			categories = append(categories, a.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// Views returns the stored view counter of an article
func (m *MockArticleRepository) Views(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Articles[id]; ok {
		return a.Views
	}
	return -1
}

// MockCommentRepository is a mock implementation of CommentRepository
type MockCommentRepository struct {
	mu          sync.Mutex
	Comments    map[string]*models.Comment
	Users       *MockUserRepository
	InsertError error
}

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{Comments: make(map[string]*models.Comment)}
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	stored := *comment
	m.Comments[comment.ID] = &stored
	return nil
}

func (m *MockCommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Comments[comment.ID]; ok {
		stored := *comment
		m.Comments[comment.ID] = &stored
	}
	return nil
}

func (m *MockCommentRepository) decorate(c *models.Comment) *models.Comment {
	clone := *c
	if m.Users != nil {
		clone.AuthorUsername = m.Users.username(c.AuthorID)
	}
	for _, other := range m.Comments {
		if other.ParentID != nil && *other.ParentID == c.ID {
			clone.ReplyCount++
		}
	}
	return &clone
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Comments[id]
	if !ok {
		return nil, nil
	}
	return m.decorate(c), nil
}

func (m *MockCommentRepository) ListByArticle(ctx context.Context, articleID string) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comments := []*models.Comment{}
	for _, c := range m.Comments {
		if c.ArticleID == articleID {
			comments = append(comments, m.decorate(c))
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.After(comments[j].CreatedAt) })
	return comments, nil
}

func (m *MockCommentRepository) count(articleID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Comments {
		if c.ArticleID == articleID {
			n++
		}
	}
	return n
}

func (m *MockCommentRepository) deleteByArticle(articleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.Comments {
		if c.ArticleID == articleID {
			delete(m.Comments, id)
		}
	}
}
