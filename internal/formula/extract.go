package formula

import "regexp"

var (
	// placeholderRe matches a single $name reference. A '$' that is not
	// followed by a valid first character does not match at that position.
	placeholderRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// ExtractVariables returns the distinct variable names referenced in expr,
// without the '$' prefix, in order of first occurrence.
// Examples:
//
//	"$a + $b * $a" -> ["a", "b"]
//	"$a$b"         -> ["a", "b"]
//	"$1invalid"    -> []
func ExtractVariables(expr string) []string {
	out := make([]string, 0)
	if expr == "" {
		return out
	}
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(expr, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// CountVariables returns the number of distinct variables in expr.
func CountVariables(expr string) int {
	return len(ExtractVariables(expr))
}

// ReplaceVariables rewrites every $name reference in expr with repl(name).
func ReplaceVariables(expr string, repl func(name string) string) string {
	return placeholderRe.ReplaceAllStringFunc(expr, func(m string) string {
		return repl(m[1:])
	})
}
