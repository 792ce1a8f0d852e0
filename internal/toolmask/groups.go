package toolmask

import (
	"strings"
	"unicode"
)

// GroupOf returns the leading snake_case or camelCase segment of a tool
// name, or "" when the name has no recognizable prefix.
//
//	GroupOf("file_read")  == "file"
//	GroupOf("gitCommit")  == "git"
//	GroupOf("search")     == ""
func GroupOf(name string) string {
	if i := strings.IndexAny(name, "_-."); i > 0 {
		return strings.ToLower(name[:i])
	}
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			return strings.ToLower(name[:i])
		}
	}
	return ""
}
