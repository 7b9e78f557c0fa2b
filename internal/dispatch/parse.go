package dispatch

import (
	"strings"
	"unicode"

	"pdf-tools-bot/internal/domain"
)

// ParseCommand splits an inbound message into its command and argument
// string. It accepts "/cmd args", "cmd args" and "/cmd@BotName args"; the
// command token is matched case-insensitively. ok is false for blank input.
func ParseCommand(text string) (cmd domain.Command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}

	token, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		token, rest = text[:i], text[i:]
	}
	token = strings.TrimPrefix(token, "/")
	if at := strings.IndexByte(token, '@'); at >= 0 {
		token = token[:at]
	}
	if token == "" {
		return "", "", false
	}

	return domain.Command(strings.ToLower(token)), strings.TrimSpace(rest), true
}
