package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Article/", "https://example.com/Article"},
		{"https://example.com/a?utm_source=x&utm_medium=y&id=7", "https://example.com/a?id=7"},
		{"https://example.com/a#section", "https://example.com/a"},
		{"https://example.com/a?fbclid=abc", "https://example.com/a"},
		{"not a url at all ::", "not a url at all ::"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CanonicalizeURL(tc.in), "in=%s", tc.in)
	}
}

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	h1 := HashURL("https://example.com/a?utm_source=x")
	h2 := HashURL("https://example.com/a")
	h3 := HashURL("https://example.com/b")

	assert.Equal(t, h1, h2, "tracking params must not affect the hash")
	assert.NotEqual(t, h1, h3)
}

func TestCleanText(t *testing.T) {
	in := `<p>First &amp; foremost.</p><P>Second   paragraph.</P>`
	out := CleanText(in)
	assert.Equal(t, "First & foremost.\nSecond paragraph.", out)

	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "plain", CleanText("plain"))
}
