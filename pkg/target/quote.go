package target

import "strings"

// safeArg matches arguments that need no quoting under POSIX sh.
func isSafeArg(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == '/' || c == ':' ||
			c == '=' || c == ',' || c == '@' || c == '+' || c == '%':
		default:
			return false
		}
	}
	return true
}

// Quote escapes a single value for interpolation into a POSIX shell
// command line. Safe values pass through untouched; everything else is
// wrapped in single quotes, with embedded single quotes spliced as
// '\''.
func Quote(s string) string {
	if isSafeArg(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
