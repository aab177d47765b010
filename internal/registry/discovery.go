// Package registry manages the outlet catalogue: discovery of new outlets for
// a country through the classification service and merge-safe persistence of
// the resulting preferences.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ErrDiscoveryUnavailable marks an unreachable discovery collaborator or a
// malformed response. Discovery fails closed: zero outlets, never fabricated
// data.
var ErrDiscoveryUnavailable = errors.New("registry: outlet discovery unavailable")

// Outlet types accepted from the discovery collaborator.
var validOutletTypes = []string{"news", "government", "defense", "social", "comment"}

// OutletCandidate is one discovered media outlet for a country.
type OutletCandidate struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Type        string `json:"type"`
	Language    string `json:"language"`
	Credibility int    `json:"credibility"`
}

// Completer is the discovery collaborator contract, satisfied by the
// classifier client.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Configured() bool
}

// OutletSaver persists a prioritized outlet list for a user without touching
// unrelated preferences.
type OutletSaver interface {
	SetPrioritizedOutlets(ctx context.Context, userID uuid.UUID, outlets []string) error
}

// Discovery asks the external collaborator for candidate outlets per country.
type Discovery struct {
	completer Completer
	logger    *slog.Logger
}

// NewDiscovery creates a Discovery backed by the given collaborator.
func NewDiscovery(completer Completer, logger *slog.Logger) *Discovery {
	return &Discovery{completer: completer, logger: logger}
}

const discoverySystemPrompt = `You are a media research assistant. Given a country, list its most relevant
media outlets for covering defense procurement and military aviation news.
Respond ONLY with a JSON array of 15 to 25 objects, no prose, each exactly:
{"name": "<outlet name>", "domain": "<bare domain, no scheme>", "type": "<news|government|defense|social|comment>", "language": "<ISO 639-1 code>", "credibility": <1-5>}
Include the country's largest general news outlets, its defense ministry
newsroom, and specialist defense publications covering it.`

// DiscoverOutlets returns candidate outlets for a country. Malformed or
// non-array collaborator output returns ErrDiscoveryUnavailable with an empty
// list.
func (d *Discovery) DiscoverOutlets(ctx context.Context, country, countryName string) ([]OutletCandidate, error) {
	if !d.completer.Configured() {
		return nil, fmt.Errorf("%w: collaborator not configured", ErrDiscoveryUnavailable)
	}

	prompt := fmt.Sprintf("Country code: %s\nCountry name: %s", country, countryName)
	raw, err := d.completer.Complete(ctx, discoverySystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnavailable, err)
	}

	outlets, err := parseOutlets(raw)
	if err != nil {
		d.logger.Warn("outlet discovery returned malformed data", "country", country, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDiscoveryUnavailable, err)
	}
	if len(outlets) == 0 {
		return nil, fmt.Errorf("%w: empty outlet list", ErrDiscoveryUnavailable)
	}

	d.logger.Info("discovered outlets", "country", country, "count", len(outlets))
	return outlets, nil
}

// SaveDiscovered stores discovered outlet domains as the user's prioritized
// outlet list. Only that column is written, so the user's tracked competitors
// and active country are untouched.
func SaveDiscovered(ctx context.Context, store OutletSaver, userID uuid.UUID, outlets []OutletCandidate) error {
	domains := make([]string, 0, len(outlets))
	for _, o := range outlets {
		domains = append(domains, o.Domain)
	}
	if err := store.SetPrioritizedOutlets(ctx, userID, domains); err != nil {
		return fmt.Errorf("registry: save discovered outlets: %w", err)
	}
	return nil
}

// parseOutlets validates the collaborator payload. The outer value must be a
// JSON array; entries missing a name or domain, or carrying an unknown type,
// are dropped. Credibility is clamped to the 1-5 tier range.
func parseOutlets(raw string) ([]OutletCandidate, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(raw, "```")
		raw = strings.TrimSpace(raw)
	}
	if !strings.HasPrefix(raw, "[") {
		return nil, errors.New("payload is not a JSON array")
	}

	var candidates []OutletCandidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	outlets := make([]OutletCandidate, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		c.Name = strings.TrimSpace(c.Name)
		c.Domain = normalizeDomain(c.Domain)
		c.Type = strings.ToLower(strings.TrimSpace(c.Type))
		if c.Name == "" || c.Domain == "" || seen[c.Domain] {
			continue
		}
		if !slices.Contains(validOutletTypes, c.Type) {
			continue
		}
		if c.Credibility < 1 {
			c.Credibility = 1
		}
		if c.Credibility > 5 {
			c.Credibility = 5
		}
		seen[c.Domain] = true
		outlets = append(outlets, c)
	}
	return outlets, nil
}

func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(strings.ToLower(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimSuffix(domain, "/")
}
