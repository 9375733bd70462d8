package analytics

import (
	"fmt"
	"regexp"
	"strconv"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// RenderTemplate substitutes {key} tokens from ctx into template.
// Tokens with no matching key are left verbatim.
func RenderTemplate(template string, ctx map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := ctx[key]
		if !ok || v == nil {
			return match
		}
		return FormatValue(v)
	})
}

// FormatValue renders a template value without trailing float zeros
func FormatValue(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case string:
		return n
	default:
		return fmt.Sprintf("%v", v)
	}
}
