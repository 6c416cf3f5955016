package rule

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/greybell/butler/pkg/domain"
)

// placeholderPattern matches the {{event.<field>}} syntax.
var placeholderPattern = regexp.MustCompile(`\{\{event\.([^{}]+)\}\}`)

// RenderTemplate replaces every {{event.<field>}} occurrence with the string
// form of the corresponding payload field. Missing fields render as the
// empty string.
func RenderTemplate(template string, event domain.AgentEvent) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		field := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		value := event.Payload.Get(field)
		if value == nil {
			return ""
		}
		return stringify(value)
	})
}

// stringify renders a payload value the way a human would write it:
// float64 values holding integers (the usual JSON decode shape) print
// without a trailing ".0...".
func stringify(value interface{}) string {
	if f, ok := value.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", value)
}
