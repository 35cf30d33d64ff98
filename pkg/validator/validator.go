// Package validator wraps go-playground/validator for typed subsystem
// options: field names come from mapstructure tags so messages name the
// configuration key, and errors are translated to English or Chinese.
package validator

import (
	stderrors "errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Language constants for i18n support.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator wraps go-playground/validator with translations.
type Validator struct {
	validate *validator.Validate
	uni      *ut.UniversalTranslator
	trans    map[string]ut.Translator
	mu       sync.RWMutex
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global returns the process-wide validator.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a Validator with English and Chinese translations and the
// custom rules registered.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator),
	}

	// 使用 mapstructure 标签作为字段名，与配置键保持一致
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	v.uni = ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := v.uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := v.uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	v.registerCustomRules()
	return v
}

// registerCustomRules adds the "host" rule: a hostname, an IP address, or
// empty when combined with omitempty.
func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation("host", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if net.ParseIP(s) != nil {
			return true
		}
		return v.validate.Var(s, "hostname_rfc1123") == nil
	})

	messages := map[string]string{
		LangEN: "{0} must be a valid hostname or IP address",
		LangZH: "{0}必须是有效的主机名或IP地址",
	}
	for lang, msg := range messages {
		trans := v.GetTranslator(lang)
		_ = v.validate.RegisterTranslation("host", trans,
			func(ut ut.Translator) error { return ut.Add("host", msg, true) },
			func(ut ut.Translator, fe validator.FieldError) string {
				t, _ := ut.T("host", fe.Field())
				return t
			},
		)
	}
}

// GetTranslator returns the translator for lang, English by default.
func (v *Validator) GetTranslator(lang string) ut.Translator {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if trans, ok := v.trans[lang]; ok {
		return trans
	}
	return v.trans[LangEN]
}

// Struct validates s and returns English messages.
func (v *Validator) Struct(s any) error {
	return v.StructWithLang(s, LangEN)
}

// StructWithLang validates s. The result is nil or a *ValidationErrors;
// a value that cannot be validated at all (nil, not a struct) is returned
// as a plain error.
func (v *Validator) StructWithLang(s any, lang string) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	trans := v.GetTranslator(lang)
	result := &ValidationErrors{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		result.add(FieldError{
			Key:     configKey(fe.Namespace()),
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: fe.Translate(trans),
		})
	}
	return result
}

// Struct validates s with the global validator.
func Struct(s any) error {
	return Global().Struct(s)
}
