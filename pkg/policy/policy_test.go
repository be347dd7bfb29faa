package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestLoad(t *testing.T) {
	t.Run("empty path yields empty policy", func(t *testing.T) {
		file, err := Load("")
		require.NoError(t, err)
		assert.Empty(t, file.ProviderRegions)
		assert.Empty(t, file.ClosurePhrases)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("parses provider regions and closure phrases", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		content := `provider_regions:
  cdph: chicago-il
  king-county: seattle-wa
closure_phrases:
  - closed
  - suspended
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		file, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "chicago-il", file.ProviderRegions["cdph"])
		assert.Equal(t, "seattle-wa", file.ProviderRegions["king-county"])
		assert.Equal(t, []string{"closed", "suspended"}, file.ClosurePhrases)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("provider_regions: [not a map"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestAllowAll(t *testing.T) {
	assert.True(t, AllowAll{}.Allow(models.Match{}, models.RestaurantGroup{}, models.Entity{}))
}

func TestJurisdictionAllow(t *testing.T) {
	p := NewJurisdiction(map[string]string{"CDPH": "Chicago-IL"})

	group := func(provider string) models.RestaurantGroup {
		return models.RestaurantGroup{Restaurant: models.RestaurantSummary{Provider: provider}}
	}

	tests := []struct {
		name       string
		provider   string
		region     string
		confidence models.Confidence
		allowed    bool
	}{
		{"unscoped provider always allowed", "king-county", "seattle-wa", models.ConfidenceLow, true},
		{"in-region match allowed", "cdph", "chicago-il", models.ConfidenceLow, true},
		{"region comparison is case-insensitive", "CdPh", "CHICAGO-IL", models.ConfidenceMedium, true},
		{"out-of-region medium rejected", "cdph", "seattle-wa", models.ConfidenceMedium, false},
		{"out-of-region low rejected", "cdph", "seattle-wa", models.ConfidenceLow, false},
		{"out-of-region high allowed", "cdph", "seattle-wa", models.ConfidenceHigh, true},
		{"empty entity region rejected below high", "cdph", "", models.ConfidenceMedium, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := models.Match{Confidence: tt.confidence}
			entity := models.Entity{Region: tt.region}
			assert.Equal(t, tt.allowed, p.Allow(match, group(tt.provider), entity))
		})
	}
}
