package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modern-blog/internal/config"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
	"github.com/modern-blog/internal/service"
	"github.com/rs/zerolog"
)

// imageFields are the multipart fields that may carry the featured image.
// articleImage is the name older form clients send.
var imageFields = []string{"featuredImage", "articleImage"}

// ArticleHandler handles article endpoints
type ArticleHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
	errorResponder
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services:       services,
		cfg:            cfg,
		log:            log.With().Str("handler", "article").Logger(),
		errorResponder: errorResponder{production: cfg.Server.IsProduction()},
	}
}

// listFilter reads paging and filter parameters from the query string
func listFilter(c *gin.Context) models.ArticleFilter {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return models.ArticleFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Status:   models.ArticleStatus(c.Query("status")),
		Page:     page,
		Limit:    limit,
	}
}

// List handles GET /articles
func (h *ArticleHandler) List(c *gin.Context) {
	filter := listFilter(c)
	filter.AuthorID = c.Query("author")

	page, err := h.services.Article.ListVisible(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	respond(c, http.StatusOK, "articles.html", gin.H{
		"title":      "Articles",
		"articles":   page.Articles,
		"pagination": page.Pagination,
		"categories": page.Categories,
		"filters":    page.Filter,
	})
}

// MyArticles handles GET /articles/my
func (h *ArticleHandler) MyArticles(c *gin.Context) {
	page, err := h.services.Article.ListOwn(c.Request.Context(), actorFrom(c), listFilter(c))
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	respond(c, http.StatusOK, "my_articles.html", gin.H{
		"title":      "My Articles",
		"articles":   page.Articles,
		"pagination": page.Pagination,
		"filters":    page.Filter,
	})
}

// Show handles GET /articles/:id
func (h *ArticleHandler) Show(c *gin.Context) {
	detail, err := h.services.Article.GetOne(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	respond(c, http.StatusOK, "article.html", gin.H{
		"title":    detail.Article.Title,
		"article":  detail.Article,
		"comments": detail.Comments,
	})
}

// NewForm handles GET /articles/new
func (h *ArticleHandler) NewForm(c *gin.Context) {
	c.HTML(http.StatusOK, "article_form.html", viewData(c, formData("Create Article", nil, nil)))
}

// Create handles POST /articles/new
func (h *ArticleHandler) Create(c *gin.Context) {
	var in models.ArticleInput
	if err := c.ShouldBind(&in); err != nil {
		h.respondError(c, errs.NewValidation("Invalid request body"), "article_form.html", formData("Create Article", nil, &in))
		return
	}

	image, closeImage := h.imageUpload(c)
	defer closeImage()

	article, err := h.services.Article.Create(c.Request.Context(), actorFrom(c), &in, image)
	if err != nil {
		h.respondError(c, err, "article_form.html", formData("Create Article", nil, &in))
		return
	}

	respondOrRedirect(c, http.StatusCreated, "/articles/"+article.ID, gin.H{
		"message": "Article created successfully",
		"article": article,
	})
}

// EditForm handles GET /articles/:id/edit
func (h *ArticleHandler) EditForm(c *gin.Context) {
	article, err := h.services.Article.GetForEdit(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	respond(c, http.StatusOK, "article_form.html", formData("Edit Article", article, nil))
}

// Update handles POST /articles/:id/edit
func (h *ArticleHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var in models.ArticleInput
	if err := c.ShouldBind(&in); err != nil {
		h.respondError(c, errs.NewValidation("Invalid request body"), "", nil)
		return
	}

	image, closeImage := h.imageUpload(c)
	defer closeImage()

	article, err := h.services.Article.Update(c.Request.Context(), actorFrom(c), id, &in, image)
	if err != nil {
		h.respondError(c, err, "article_form.html", formData("Edit Article", &models.Article{ID: id}, &in))
		return
	}

	respondOrRedirect(c, http.StatusOK, "/articles/"+article.ID, gin.H{
		"message": "Article updated successfully",
		"article": article,
	})
}

// Delete handles POST /articles/:id/delete
func (h *ArticleHandler) Delete(c *gin.Context) {
	if err := h.services.Article.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err, "", nil)
		return
	}
	respondOrRedirect(c, http.StatusOK, "/articles/my", gin.H{"message": "Article deleted successfully"})
}

// imageUpload returns the submitted featured image, or nil when the
// request carries none.
func (h *ArticleHandler) imageUpload(c *gin.Context) (*service.ImageUpload, func()) {
	noop := func() {}
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, noop
	}
	for _, field := range imageFields {
		file, header, err := c.Request.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			h.log.Warn().Err(err).Str("field", field).Msg("Unreadable image upload ignored")
			return nil, noop
		}
		return newImageUpload(file, header), func() { file.Close() }
	}
	return nil, noop
}

func newImageUpload(file multipart.File, header *multipart.FileHeader) *service.ImageUpload {
	return &service.ImageUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	}
}

// formData is the page data of the article form. in, when set, is the
// submitted input echoed back.
func formData(title string, article *models.Article, in *models.ArticleInput) gin.H {
	data := gin.H{
		"title":      title,
		"categories": models.Categories,
		"statuses":   []models.ArticleStatus{models.StatusDraft, models.StatusPublished, models.StatusArchived},
	}
	if article != nil {
		data["article"] = article
	}
	if in != nil {
		data["input"] = in
	}
	return data
}
