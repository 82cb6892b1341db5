package api

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/policy"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"date": func(t interface{}) string {
		switch v := t.(type) {
		case time.Time:
			return v.Format("Jan 2, 2006")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.Format("Jan 2, 2006")
		}
		return ""
	},
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
}

// loadTemplates installs the view templates. dir overrides the embedded set.
func loadTemplates(router *gin.Engine, dir string) error {
	if dir != "" {
		router.SetFuncMap(templateFuncs)
		router.LoadHTMLGlob(filepath.Join(dir, "*.html"))
		return nil
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)
	return nil
}

// wantsJSON reports whether the client asked for structured data rather
// than a rendered page.
func wantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// respond writes payload as JSON or renders it into view
func respond(c *gin.Context, status int, view string, payload gin.H) {
	if wantsJSON(c) {
		c.JSON(status, payload)
		return
	}
	c.HTML(status, view, viewData(c, payload))
}

// respondOrRedirect answers JSON clients with payload and sends browsers
// to location.
func respondOrRedirect(c *gin.Context, status int, location string, payload gin.H) {
	if wantsJSON(c) {
		payload["redirect"] = location
		c.JSON(status, payload)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// viewData adds the signed-in actor to the page data
func viewData(c *gin.Context, payload gin.H) gin.H {
	data := gin.H{}
	for k, v := range payload {
		data[k] = v
	}
	actor := actorFrom(c)
	if !actor.IsAnonymous() {
		data["viewer"] = actor
	}
	return data
}

// errorResponder maps service errors to responses. Unexpected failures
// are logged and their details withheld in production.
type errorResponder struct {
	production bool
}

// respondError writes err. For validation failures on a form, view is
// re-rendered with the field messages and the submitted input in payload.
func (r errorResponder) respondError(c *gin.Context, err error, view string, payload gin.H) {
	e := errs.From(err)
	status := e.StatusCode()

	if e.Kind == errs.KindUnexpected {
		c.Error(err)
	}

	message := e.Message
	if e.Kind == errs.KindUnexpected && r.production {
		message = "Internal server error"
	}

	if wantsJSON(c) {
		body := gin.H{"error": message}
		if e.Reason != "" {
			body["reason"] = e.Reason
		}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		if e.Kind == errs.KindUnexpected && !r.production && e.Cause != nil {
			body["details"] = e.Cause.Error()
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	if e.Kind == errs.KindAuthentication {
		c.Redirect(http.StatusFound, loginURL(c))
		c.Abort()
		return
	}

	data := gin.H{}
	for k, v := range payload {
		data[k] = v
	}
	data["error"] = message
	data["fields"] = e.Fields

	if view == "" || (e.Kind != errs.KindValidation && e.Kind != errs.KindQuotaExceeded) {
		view = "error.html"
		data["status"] = status
	}
	c.HTML(status, view, viewData(c, data))
	c.Abort()
}

func loginURL(c *gin.Context) string {
	return "/auth/login?redirect=" + url.QueryEscape(c.Request.URL.RequestURI())
}

// landingFor is where an account goes after signing in
func landingFor(actor policy.Actor) string {
	if actor.IsAdmin() {
		return "/articles/my"
	}
	return "/articles"
}

// safeRedirect accepts only local paths
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return fallback
	}
	return target
}

var errNoRoute = errs.NewNotFound("Page not found")
