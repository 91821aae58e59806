package executor

import (
	"fmt"
	"regexp"
)

var templateVarPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// resolveTemplate substitutes {identifier} placeholders against vars,
// leaving unresolved placeholders literally in place (§4.4 step 3).
func resolveTemplate(template string, vars map[string]any) string {
	return templateVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := templateVarPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return fmt.Sprint(v)
		}
		return match
	})
}
