package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/id"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	id_translations "github.com/go-playground/validator/v10/translations/id"
	"golang.org/x/text/language"
)

var (
	setupOnce sync.Once
	uni       *ut.UniversalTranslator
	matcher   = language.NewMatcher([]language.Tag{language.English, language.Indonesian})
)

// Setup registers the validator with English and Indonesian translations on
// Gin's binding engine. Safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}
		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni = ut.New(enLocale, enLocale, id.New())

		enTrans, _ := uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, enTrans)
		idTrans, _ := uni.GetTranslator("id")
		_ = id_translations.RegisterDefaultTranslations(v, idTrans)
	})
}

func translatorFor(c *gin.Context) ut.Translator {
	if uni == nil {
		return nil
	}
	lang := "en"
	if c != nil {
		tag, _ := language.MatchStrings(matcher, c.Query("lang"), c.GetHeader("Accept-Language"))
		if base, _ := tag.Base(); base.String() == "id" {
			lang = "id"
		}
	}
	trans, _ := uni.GetTranslator(lang)
	return trans
}

// TranslateErrors takes a binding/validation error and returns a map of
// field path → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(c *gin.Context, err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		trans := translatorFor(c)
		for _, fe := range ve {
			msg := fe.Error()
			if trans != nil {
				msg = fe.Translate(trans)
			}
			fields[fieldPath(fe)] = msg
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// fieldPath drops the root struct name so nested fields read like
// "questions[0].options".
func fieldPath(fe govalidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(c, err)
	}
	return nil
}
