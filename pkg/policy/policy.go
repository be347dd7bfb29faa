// Package policy provides pluggable match-filtering policies applied above
// raw similarity scoring.
package policy

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/Ramsey-B/fern/pkg/models"
)

// File is the on-disk policy configuration. Provider scoping and closure
// phrases live here so operators can adjust them without a deploy.
type File struct {
	// ProviderRegions scopes a provider's dataset to one jurisdiction.
	// Matches against entities outside that region are rejected unless the
	// match is high confidence.
	ProviderRegions map[string]string `yaml:"provider_regions"`
	// ClosurePhrases overrides the closure-indicating phrases used by the
	// history builder.
	ClosurePhrases []string `yaml:"closure_phrases"`
}

// Load reads a policy file. A missing path yields an empty File, not an error.
func Load(path string) (File, error) {
	var file File
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return file, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return file, nil
}

// AllowAll accepts every match; the default when no jurisdiction scoping is
// configured.
type AllowAll struct{}

// Allow always returns true.
func (AllowAll) Allow(models.Match, models.RestaurantGroup, models.Entity) bool {
	return true
}

// Jurisdiction rejects matches against entities outside a region-scoped
// provider's jurisdiction unless the match is high confidence. This guards
// single-city datasets against coincidental name collisions in other regions.
type Jurisdiction struct {
	providerRegions map[string]string
}

// NewJurisdiction creates a jurisdiction policy from provider-to-region scoping.
func NewJurisdiction(providerRegions map[string]string) *Jurisdiction {
	normalized := make(map[string]string, len(providerRegions))
	for provider, region := range providerRegions {
		normalized[strings.ToLower(provider)] = strings.ToLower(region)
	}
	return &Jurisdiction{providerRegions: normalized}
}

// Allow rejects out-of-region matches for scoped providers below high confidence.
func (p *Jurisdiction) Allow(match models.Match, group models.RestaurantGroup, entity models.Entity) bool {
	region, scoped := p.providerRegions[strings.ToLower(group.Restaurant.Provider)]
	if !scoped {
		return true
	}
	if strings.EqualFold(entity.Region, region) {
		return true
	}
	return match.Confidence == models.ConfidenceHigh
}
