package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUserAgent(t *testing.T) {
	chrome := "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	normalized := NormalizeUserAgent(chrome)
	assert.Contains(t, normalized, "Chrome")
	assert.Contains(t, normalized, "Linux")
}

func TestNormalizeUserAgent_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeUserAgent(""))
}

func TestNormalizeUserAgent_UnparseableTruncated(t *testing.T) {
	raw := strings.Repeat("x", 300)
	normalized := NormalizeUserAgent(raw)
	assert.LessOrEqual(t, len(normalized), 120)
}
