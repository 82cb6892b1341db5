package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Validator checks user supplied input before it reaches the services
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance with the domain rules registered
func NewValidator() *Validator {
	v := validator.New()

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseRole(fl.Field().String())
		return ok
	})
	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.IsValidCategory(fl.Field().String())
	})
	v.RegisterValidation("articlestatus", func(fl validator.FieldLevel) bool {
		return models.ValidStatuses[models.ArticleStatus(fl.Field().String())]
	})

	return &Validator{validate: v}
}

type registration struct {
	Username  string `json:"username" validate:"required,min=3,max=30,username"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"max=50"`
	LastName  string `json:"last_name" validate:"max=50"`
	Bio       string `json:"bio" validate:"max=500"`
	Role      string `json:"role" validate:"required,role"`
}

type login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profile struct {
	FirstName string `json:"first_name" validate:"max=50"`
	LastName  string `json:"last_name" validate:"max=50"`
	Bio       string `json:"bio" validate:"max=500"`
}

type article struct {
	Title    string   `json:"title" validate:"required,min=5,max=200"`
	Body     string   `json:"body" validate:"required,min=10"`
	Summary  string   `json:"summary" validate:"max=500"`
	Category string   `json:"category" validate:"omitempty,category"`
	Tags     []string `json:"tags" validate:"dive,max=50"`
	Status   string   `json:"status" validate:"omitempty,articlestatus"`
}

type comment struct {
	Body string `json:"body" validate:"required,max=1000"`
}

// ValidateRegistration validates a registration request
func (v *Validator) ValidateRegistration(req *models.RegisterRequest) []errs.FieldError {
	return v.check(&registration{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Bio:       req.Bio,
		Role:      req.Role,
	})
}

// ValidateLogin validates a login request
func (v *Validator) ValidateLogin(req *models.LoginRequest) []errs.FieldError {
	return v.check(&login{Email: strings.TrimSpace(req.Email), Password: req.Password})
}

// ValidateProfile validates a profile update
func (v *Validator) ValidateProfile(p *models.ProfileUpdate) []errs.FieldError {
	return v.check(&profile{FirstName: strings.TrimSpace(p.FirstName), LastName: strings.TrimSpace(p.LastName), Bio: p.Bio})
}

// ValidateArticle validates article input. tags is the parsed tag list.
func (v *Validator) ValidateArticle(in *models.ArticleInput, tags []string) []errs.FieldError {
	return v.check(&article{
		Title:    strings.TrimSpace(in.Title),
		Body:     in.Body,
		Summary:  in.Summary,
		Category: in.Category,
		Tags:     tags,
		Status:   in.Status,
	})
}

// ValidateComment validates a comment body after trimming
func (v *Validator) ValidateComment(body string) []errs.FieldError {
	return v.check(&comment{Body: strings.TrimSpace(body)})
}

func (v *Validator) check(s interface{}) []errs.FieldError {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []errs.FieldError{{Field: "", Message: err.Error()}}
	}

	fields := make([]errs.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errs.FieldError{Field: fieldName(fe), Message: message(fe)})
	}
	return fields
}

// fieldName collapses tags[2] to tags
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i > 0 {
		return name[:i]
	}
	return name
}

var labels = map[string]string{
	"username":   "Username",
	"email":      "Email",
	"password":   "Password",
	"first_name": "First name",
	"last_name":  "Last name",
	"bio":        "Bio",
	"role":       "Account type",
	"title":      "Title",
	"body":       "Content",
	"summary":    "Summary",
	"category":   "Category",
	"tags":       "Tag",
	"status":     "Status",
}

func message(fe validator.FieldError) string {
	label, ok := labels[fieldName(fe)]
	if !ok {
		label = fieldName(fe)
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be less than %s characters", label, fe.Param())
	case "email":
		return "Please enter a valid email"
	case "username":
		return "Username may only contain letters, numbers, dots, dashes and underscores"
	case "role":
		return "Please select a valid account type"
	case "category":
		return fmt.Sprintf("Category must be one of: %s", strings.Join(models.Categories, ", "))
	case "articlestatus":
		return "Status must be one of: draft, published, archived"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
