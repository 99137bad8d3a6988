package model

import (
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CompanySizes are the accepted company_size values.
var CompanySizes = []string{"1-10", "11-50", "51-200", "200+"}

// FormSubmission represents the lead form as posted by the landing page.
type FormSubmission struct {
	Name        string `json:"name" validate:"required,max=50"`
	Email       string `json:"email" validate:"required,email"`
	Company     string `json:"company" validate:"required,max=100"`
	CompanySize string `json:"company_size" validate:"required,oneof=1-10 11-50 51-200 200+"`
	ITChallenge string `json:"it_challenge" validate:"required,max=100"`
	ITSetup     string `json:"it_setup" validate:"max=200"`
	Consent     *bool  `json:"consent" validate:"required"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var labels = map[string]string{
	"name":         "Name",
	"email":        "Email",
	"company":      "Company",
	"company_size": "Company size",
	"it_challenge": "IT challenge",
	"it_setup":     "IT setup",
	"consent":      "Consent",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims surrounding whitespace from every text field.
func (f *FormSubmission) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Company = strings.TrimSpace(f.Company)
	f.CompanySize = strings.TrimSpace(f.CompanySize)
	f.ITChallenge = strings.TrimSpace(f.ITChallenge)
	f.ITSetup = strings.TrimSpace(f.ITSetup)
}

// Validate checks field shape, length and type constraints and returns one
// entry per failing field. An empty result means the form is acceptable.
func (f *FormSubmission) Validate() []FieldError {
	var out []FieldError
	if err := validate.Struct(f); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return []FieldError{{Field: "form", Message: err.Error()}}
		}
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
		}
	}
	if f.Consent != nil && !*f.Consent {
		out = append(out, FieldError{Field: "consent", Message: "Consent must be given"})
	}
	return out
}

// MissingRequired is the second, coarse check: any required field empty or
// consent not affirmatively given.
func (f *FormSubmission) MissingRequired() bool {
	return f.Name == "" || f.Email == "" || f.Company == "" || f.CompanySize == "" ||
		f.ITChallenge == "" || f.Consent == nil || !*f.Consent
}

// Sanitize HTML-escapes free-text fields before they reach the prompt, the
// rendered document or the e-mail body.
func (f *FormSubmission) Sanitize() {
	f.Name = html.EscapeString(f.Name)
	f.Company = html.EscapeString(f.Company)
	f.ITChallenge = html.EscapeString(f.ITChallenge)
	f.ITSetup = html.EscapeString(f.ITSetup)
}

func message(fe validator.FieldError) string {
	label := labels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "email":
		return "A valid email address is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(CompanySizes, ", "))
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
