package subprocess

import "strings"

// cleanStderr drops bundler source-context lines ("1234 | <code>") from
// captured stderr so error reports keep only messages and stack traces.
func cleanStderr(stderr string) string {
	if stderr == "" {
		return ""
	}

	var cleaned strings.Builder

	for line := range strings.SplitSeq(stderr, "\n") {
		if isSourceContextLine(strings.TrimSpace(line)) {
			continue
		}

		if cleaned.Len() > 0 {
			cleaned.WriteString("\n")
		}

		cleaned.WriteString(line)
	}

	return strings.TrimSpace(cleaned.String())
}

func isSourceContextLine(line string) bool {
	prefix, _, found := strings.Cut(line, "|")
	if !found {
		return false
	}

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return false
	}

	for _, ch := range prefix {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
