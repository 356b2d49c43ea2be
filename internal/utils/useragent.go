package utils

import (
	"strings"

	"github.com/mssola/user_agent"
)

// NormalizeUserAgent reduces a raw User-Agent header to a compact
// "browser/version (os)" form for audit rows. Unparseable strings come
// back truncated rather than dropped.
func NormalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := user_agent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		if len(raw) > 120 {
			return raw[:120]
		}
		return raw
	}
	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		b.WriteString("/")
		b.WriteString(version)
	}
	if os := ua.OS(); os != "" {
		b.WriteString(" (")
		b.WriteString(os)
		b.WriteString(")")
	}
	return b.String()
}
