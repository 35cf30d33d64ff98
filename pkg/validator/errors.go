package validator

import (
	"sort"
	"strings"

	"github.com/kart-io/legalstudy/pkg/errors"
)

// ValidationErrors lists every rule a configuration struct broke. It
// unwraps to errors.ErrConfigInvalid.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError is one broken rule.
type FieldError struct {
	Key     string `json:"key"`             // 完整配置键，如 tls.ca-file
	Field   string `json:"field"`           // 最后一段
	Tag     string `json:"tag"`             // 失败的校验规则
	Param   string `json:"param,omitempty"` // 规则参数
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (v *ValidationErrors) Error() string {
	if v.Count() == 0 {
		return ""
	}
	return "validation failed: " + strings.Join(v.Messages(), "; ")
}

func (v *ValidationErrors) Unwrap() error {
	return errors.ErrConfigInvalid
}

// Count returns how many rules were broken.
func (v *ValidationErrors) Count() int {
	if v == nil {
		return 0
	}
	return len(v.Errors)
}

// Messages returns the translated messages in struct order.
func (v *ValidationErrors) Messages() []string {
	if v.Count() == 0 {
		return nil
	}
	out := make([]string, 0, len(v.Errors))
	for _, fe := range v.Errors {
		out = append(out, fe.Message)
	}
	return out
}

// ForField returns the messages for a key. name may be the full dotted key
// or only its last segment.
func (v *ValidationErrors) ForField(name string) []string {
	if v == nil {
		return nil
	}
	var out []string
	for _, fe := range v.Errors {
		if fe.Key == name || fe.Field == name {
			out = append(out, fe.Message)
		}
	}
	return out
}

// Keys returns the distinct offending keys, sorted.
func (v *ValidationErrors) Keys() []string {
	if v == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(v.Errors))
	var keys []string
	for _, fe := range v.Errors {
		if _, ok := seen[fe.Key]; ok {
			continue
		}
		seen[fe.Key] = struct{}{}
		keys = append(keys, fe.Key)
	}
	sort.Strings(keys)
	return keys
}

func (v *ValidationErrors) add(fe FieldError) {
	if fe.Key == "" {
		fe.Key = fe.Field
	}
	v.Errors = append(v.Errors, fe)
}

// configKey drops the root type name from a validator namespace:
// "Options.tls.ca-file" becomes "tls.ca-file".
func configKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
