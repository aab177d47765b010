package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response   string
	err        error
	configured bool
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return f.response, f.err
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validOutletJSON = `[
	{"name": "De Telegraaf", "domain": "www.telegraaf.nl", "type": "news", "language": "nl", "credibility": 4},
	{"name": "Ministerie van Defensie", "domain": "https://defensie.nl", "type": "government", "language": "nl", "credibility": 5},
	{"name": "No Domain", "domain": "", "type": "news", "language": "nl", "credibility": 3},
	{"name": "Weird Type", "domain": "weird.example", "type": "blogring", "language": "nl", "credibility": 3},
	{"name": "Telegraaf Dupe", "domain": "telegraaf.nl", "type": "news", "language": "nl", "credibility": 9}
]`

func TestDiscoverOutlets(t *testing.T) {
	d := NewDiscovery(&fakeCompleter{response: validOutletJSON, configured: true}, discardLogger())

	outlets, err := d.DiscoverOutlets(context.Background(), "NL", "Netherlands")
	require.NoError(t, err)
	require.Len(t, outlets, 2, "entries without domain, with unknown type, or duplicating a domain are dropped")

	assert.Equal(t, "telegraaf.nl", outlets[0].Domain, "scheme and www stripped")
	assert.Equal(t, "defensie.nl", outlets[1].Domain)
	assert.Equal(t, 5, outlets[1].Credibility)
}

func TestDiscoverOutletsFailsClosedOnMalformedData(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"prose", "Here are some outlets you might like"},
		{"object instead of array", `{"name": "De Telegraaf"}`},
		{"invalid json", `[{"name": "broken"`},
		{"empty array", `[]`},
		{"all entries invalid", `[{"name": "", "domain": "", "type": "news"}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDiscovery(&fakeCompleter{response: tc.response, configured: true}, discardLogger())

			outlets, err := d.DiscoverOutlets(context.Background(), "NL", "Netherlands")
			require.ErrorIs(t, err, ErrDiscoveryUnavailable)
			assert.Empty(t, outlets)
		})
	}
}

func TestDiscoverOutletsCollaboratorUnreachable(t *testing.T) {
	d := NewDiscovery(&fakeCompleter{err: errors.New("connection refused"), configured: true}, discardLogger())

	_, err := d.DiscoverOutlets(context.Background(), "NL", "Netherlands")
	assert.ErrorIs(t, err, ErrDiscoveryUnavailable)
}

func TestDiscoverOutletsNotConfigured(t *testing.T) {
	d := NewDiscovery(&fakeCompleter{configured: false}, discardLogger())

	_, err := d.DiscoverOutlets(context.Background(), "NL", "Netherlands")
	assert.ErrorIs(t, err, ErrDiscoveryUnavailable)
}

func TestDiscoverOutletsStripsCodeFence(t *testing.T) {
	d := NewDiscovery(&fakeCompleter{
		response:   "```json\n[{\"name\": \"NOS\", \"domain\": \"nos.nl\", \"type\": \"news\", \"language\": \"nl\", \"credibility\": 4}]\n```",
		configured: true,
	}, discardLogger())

	outlets, err := d.DiscoverOutlets(context.Background(), "NL", "Netherlands")
	require.NoError(t, err)
	require.Len(t, outlets, 1)
	assert.Equal(t, "nos.nl", outlets[0].Domain)
}

type fakeOutletSaver struct {
	userID  uuid.UUID
	outlets []string
}

func (f *fakeOutletSaver) SetPrioritizedOutlets(_ context.Context, userID uuid.UUID, outlets []string) error {
	f.userID = userID
	f.outlets = outlets
	return nil
}

func TestSaveDiscoveredWritesOnlyOutletDomains(t *testing.T) {
	saver := &fakeOutletSaver{}
	userID := uuid.New()

	err := SaveDiscovered(context.Background(), saver, userID, []OutletCandidate{
		{Name: "NOS", Domain: "nos.nl"},
		{Name: "De Telegraaf", Domain: "telegraaf.nl"},
	})
	require.NoError(t, err)
	assert.Equal(t, userID, saver.userID)
	assert.Equal(t, []string{"nos.nl", "telegraaf.nl"}, saver.outlets)
}
