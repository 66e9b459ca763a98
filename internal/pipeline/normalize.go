package pipeline

import (
	"regexp"
	"strings"
)

var statementPattern = regexp.MustCompile(`(?is)\b(SELECT|WITH|EXPLAIN|DESCRIBE|SHOW|VALUES)\b`)

// ExtractSQL pulls a bare SQL statement out of free-form model output:
// fenced code blocks are unwrapped and leading prose is dropped. It is
// idempotent — already-clean SQL comes back unchanged — and returns
// ErrNoSQLFound when no recognizable statement remains.
func ExtractSQL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrNoSQLFound
	}

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = unwrapFence(trimmed[idx:])
	}

	loc := statementPattern.FindStringIndex(trimmed)
	if loc == nil {
		return "", ErrNoSQLFound
	}
	return strings.TrimSpace(trimmed[loc[0]:]), nil
}

func unwrapFence(fenced string) string {
	body := strings.TrimPrefix(fenced, "```")
	// Drop a language tag such as "sql" on the opening fence line.
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(body[:newline])
		if firstLine != "" && len(firstLine) <= 12 && !strings.ContainsAny(firstLine, " \t") {
			body = body[newline+1:]
		}
	}
	if closing := strings.Index(body, "```"); closing >= 0 {
		body = body[:closing]
	}
	return strings.TrimSpace(body)
}
