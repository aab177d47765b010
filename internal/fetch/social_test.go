package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLitePage = `<html><body><table>
<tr><td><a rel="nofollow" class="result-link" href="https://www.reddit.com/r/aviation/comments/1abcd9/gripen_vs_f35/">Gripen vs F-35 discussion</a></td></tr>
<tr><td class="result-snippet">Comparing the two jets for the upcoming procurement decision.</td></tr>
<tr><td><a rel="nofollow" class="result-link" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fx.com%2Fdefence_nl%2Fstatus%2F1784512345678901248&amp;rut=abc">Defence ministry statement</a></td></tr>
<tr><td class="result-snippet">Official statement thread.</td></tr>
<tr><td><a rel="nofollow" class="result-link" href="">broken</a></td></tr>
</table></body></html>`

func TestParseResults(t *testing.T) {
	candidates, err := parseResults(strings.NewReader(sampleLitePage))
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	reddit := candidates[0]
	assert.Equal(t, "reddit", reddit.Platform)
	assert.Equal(t, "1abcd9", reddit.PostID)
	assert.Equal(t, "Gripen vs F-35 discussion", reddit.Title)
	assert.Equal(t, "Comparing the two jets for the upcoming procurement decision.", reddit.Body)
	assert.True(t, reddit.PublishedEstimated, "search results never carry exact dates")

	x := candidates[1]
	assert.Equal(t, "x", x.Platform)
	assert.Equal(t, "1784512345678901248", x.PostID, "redirect URL must be unwrapped before id extraction")
}

func TestInferPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.reddit.com/r/aviation/comments/abc/x/", "reddit"},
		{"https://old.reddit.com/r/aviation/comments/abc/x/", "reddit"},
		{"https://x.com/user/status/123", "x"},
		{"https://twitter.com/user/status/123", "x"},
		{"https://forum.example.org/thread/9", "forum"},
		{"::bad::", "unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, inferPlatform(tc.url), "url=%s", tc.url)
	}
}

func TestExtractPostIDFallsBackToURLHash(t *testing.T) {
	id := extractPostID("reddit", "https://www.reddit.com/r/aviation/")
	assert.Len(t, id, 16, "no native id in URL, expect hash prefix")

	// Same URL always yields the same fallback id.
	assert.Equal(t, id, extractPostID("reddit", "https://www.reddit.com/r/aviation/"))
}

func TestDateFilter(t *testing.T) {
	assert.Equal(t, "d", dateFilter(1))
	assert.Equal(t, "w", dateFilter(7))
	assert.Equal(t, "m", dateFilter(30))
}
