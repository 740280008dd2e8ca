package api

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bobarin/clipforge/internal/config"
	"github.com/bobarin/clipforge/internal/models"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// validationError is a client error rendered as 400 with optional details.
type validationError struct {
	Message string
	Details []string
}

func (e *validationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

// requestValidator checks incoming bodies against the configured catalogue
// of formats and styles.
type requestValidator struct {
	validate        *validator.Validate
	trans           ut.Translator
	maxScriptLength int
}

func newRequestValidator(cfg *config.Config) (*requestValidator, error) {
	v := validator.New()

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("failed to register translations: %w", err)
	}

	formats := make([]string, 0, len(cfg.VideoFormats))
	for f := range cfg.VideoFormats {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	rules := []struct {
		tag     string
		allowed []string
		check   func(string) bool
	}{
		{
			tag:     "videoformat",
			allowed: formats,
			check: func(s string) bool {
				_, ok := cfg.VideoFormats[s]
				return ok
			},
		},
		{
			tag:     "videostyle",
			allowed: cfg.VideoStyles,
			check:   cfg.HasStyle,
		},
	}

	for _, rule := range rules {
		check := rule.check
		if err := v.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		}); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", rule.tag, err)
		}

		text := "{0} must be one of: " + strings.Join(rule.allowed, ", ")
		tag := rule.tag
		err := v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tag, fe.Field())
				return msg
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to register %s translation: %w", rule.tag, err)
		}
	}

	return &requestValidator{
		validate:        v,
		trans:           trans,
		maxScriptLength: cfg.MaxScriptLength,
	}, nil
}

// VideoRequest validates a creation request.
func (rv *requestValidator) VideoRequest(req *models.VideoRequest) error {
	if err := rv.validate.Struct(req); err != nil {
		return rv.translate(err)
	}
	if strings.TrimSpace(req.Script) == "" {
		return &validationError{Message: "Validation failed", Details: []string{"script is a required field"}}
	}
	if rv.maxScriptLength > 0 && utf8.RuneCountInString(req.Script) > rv.maxScriptLength {
		return &validationError{Message: fmt.Sprintf("Script too long. Maximum %d characters", rv.maxScriptLength)}
	}
	return nil
}

// VideoUpdate validates the fields a catalog update sets.
func (rv *requestValidator) VideoUpdate(u *models.VideoUpdate) error {
	var details []string
	check := func(field string, value *string, tag string) {
		if value == nil {
			return
		}
		if err := rv.validate.Var(*value, tag); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range verrs {
					details = append(details, field+fe.Translate(rv.trans))
				}
				return
			}
			details = append(details, field+" is invalid")
		}
	}

	check("title", u.Title, "required")
	check("format", u.Format, "videoformat")
	check("style", u.Style, "videostyle")

	if u.Duration != nil && *u.Duration < 0 {
		details = append(details, "duration must not be negative")
	}
	if len(details) > 0 {
		return &validationError{Message: "Validation failed", Details: details}
	}
	return nil
}

func (rv *requestValidator) translate(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &validationError{Message: "Validation failed", Details: []string{err.Error()}}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fe.Translate(rv.trans))
	}
	return &validationError{Message: "Validation failed", Details: details}
}
