package identity

import (
	"errors"
	"strings"
)

// Caller filter rejections.
var (
	ErrUnbalancedFilter = errors.New("filter has unbalanced parentheses")
	ErrFilterComment    = errors.New("filter comments are not allowed")
	ErrUnterminatedText = errors.New("filter has an unterminated string literal")
)

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Quote renders s as a double-quoted PocketBase filter string literal.
func Quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}

// Eq renders the clause `field = "value"`.
func Eq(field, value string) string {
	return field + " = " + Quote(value)
}

// OwnerFilter restricts callerFilter to records whose owner field equals uid.
// A blank callerFilter yields only the ownership clause. The caller's filter
// is wrapped in parentheses so a top-level || cannot escape the ownership
// check; callers must pass it through CheckCallerFilter first.
func OwnerFilter(field, uid, callerFilter string) string {
	owner := Eq(field, uid)
	if strings.TrimSpace(callerFilter) == "" {
		return owner
	}
	return "(" + callerFilter + ") && " + owner
}

// CheckCallerFilter rejects a caller filter that could leave the parentheses
// OwnerFilter puts around it: unbalanced parentheses outside string
// literals, an unterminated literal, or a '//' line comment. Anything else is
// left to the backend to parse.
func CheckCallerFilter(filter string) error {
	depth := 0
	var quote byte
	for i := 0; i < len(filter); i++ {
		ch := filter[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return ErrUnbalancedFilter
			}
		case '/':
			if i+1 < len(filter) && filter[i+1] == '/' {
				return ErrFilterComment
			}
		}
	}
	if quote != 0 {
		return ErrUnterminatedText
	}
	if depth != 0 {
		return ErrUnbalancedFilter
	}
	return nil
}

// ScopedFilter matches the single record id owned by uid.
func ScopedFilter(field, uid, id string) string {
	return Eq("id", id) + " && " + Eq(field, uid)
}
