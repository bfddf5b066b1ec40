package engine

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Tier presets.
const (
	PresetThreeTier = "three_tier"
	PresetFourTier  = "four_tier"
)

// Three-tier table names.
const (
	TierHealthy  model.RiskTier = "healthy"
	TierModerate model.RiskTier = "moderate"
	TierHighRisk model.RiskTier = "high_risk"
)

// Four-tier table names.
const (
	TierLow      model.RiskTier = "low"
	TierMedium   model.RiskTier = "medium"
	TierHigh     model.RiskTier = "high"
	TierCritical model.RiskTier = "critical"
)

// Band is one row of a threshold table. Min is an inclusive lower bound on
// the percentage.
type Band struct {
	Tier model.RiskTier
	Min  float64
}

var presets = map[string][]Band{
	PresetThreeTier: {
		{Tier: TierHealthy, Min: 71},
		{Tier: TierModerate, Min: 41},
		{Tier: TierHighRisk, Min: 0},
	},
	PresetFourTier: {
		{Tier: TierLow, Min: 80},
		{Tier: TierMedium, Min: 60},
		{Tier: TierHigh, Min: 40},
		{Tier: TierCritical, Min: 0},
	},
}

// Preset returns a copy of a named threshold table.
func Preset(name string) ([]Band, error) {
	bands, ok := presets[name]
	if !ok {
		return nil, eris.Errorf("engine: unknown tier preset %q", name)
	}
	return append([]Band(nil), bands...), nil
}

// BandsFromConfig converts a configured table, falling back to the preset when
// no custom table is set.
func BandsFromConfig(cfg config.EngineConfig) ([]Band, error) {
	if len(cfg.Tiers) == 0 {
		preset := cfg.TierPreset
		if preset == "" {
			preset = PresetThreeTier
		}
		return Preset(preset)
	}
	bands := make([]Band, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		bands[i] = Band{Tier: model.RiskTier(strings.TrimSpace(t.Tier)), Min: t.Min}
	}
	return bands, nil
}

// Classifier maps percentages to risk tiers. Bands are ordered healthiest
// first; rank 0 is the healthiest tier.
type Classifier struct {
	bands []Band
	rank  map[model.RiskTier]int
}

// NewClassifier validates a threshold table.
func NewClassifier(bands []Band) (*Classifier, error) {
	var errs []string
	if len(bands) == 0 {
		errs = append(errs, "at least one tier is required")
	}

	rank := make(map[model.RiskTier]int, len(bands))
	for i, b := range bands {
		if b.Tier == "" {
			errs = append(errs, fmt.Sprintf("tier %d has no name", i))
		}
		if _, dup := rank[b.Tier]; dup {
			errs = append(errs, fmt.Sprintf("duplicate tier %q", b.Tier))
		}
		rank[b.Tier] = i
		if b.Min < 0 || b.Min > 100 {
			errs = append(errs, fmt.Sprintf("tier %q: min must be between 0 and 100", b.Tier))
		}
		if i > 0 && b.Min >= bands[i-1].Min {
			errs = append(errs, fmt.Sprintf("tier %q: min must be below %q", b.Tier, bands[i-1].Tier))
		}
	}
	if len(bands) > 0 && bands[len(bands)-1].Min != 0 {
		errs = append(errs, "last tier must have min 0")
	}

	if len(errs) > 0 {
		return nil, eris.Errorf("engine: invalid tier table: %s", strings.Join(errs, "; "))
	}
	return &Classifier{bands: append([]Band(nil), bands...), rank: rank}, nil
}

// Classify returns the tier for a percentage.
func (c *Classifier) Classify(pct float64) model.RiskTier {
	for _, b := range c.bands {
		if pct >= b.Min {
			return b.Tier
		}
	}
	return c.Worst()
}

// Rank returns the position of a tier, 0 being the healthiest.
func (c *Classifier) Rank(tier model.RiskTier) (int, bool) {
	r, ok := c.rank[tier]
	return r, ok
}

// Has reports whether tier belongs to the table.
func (c *Classifier) Has(tier model.RiskTier) bool {
	_, ok := c.rank[tier]
	return ok
}

// AtLeast reports whether tag is as severe as floor or worse. Unknown tags
// never qualify.
func (c *Classifier) AtLeast(tag, floor model.RiskTier) bool {
	t, ok := c.rank[tag]
	if !ok {
		return false
	}
	f, ok := c.rank[floor]
	if !ok {
		return false
	}
	return t >= f
}

// Healthiest returns the first tier of the table.
func (c *Classifier) Healthiest() model.RiskTier { return c.bands[0].Tier }

// Worst returns the last tier of the table.
func (c *Classifier) Worst() model.RiskTier { return c.bands[len(c.bands)-1].Tier }

// Tiers returns tier names healthiest first.
func (c *Classifier) Tiers() []model.RiskTier {
	out := make([]model.RiskTier, len(c.bands))
	for i, b := range c.bands {
		out[i] = b.Tier
	}
	return out
}

// Bands returns a copy of the threshold table.
func (c *Classifier) Bands() []Band {
	return append([]Band(nil), c.bands...)
}

// DefaultFloor is the issue severity floor used when none is configured. On
// tables of four or more tiers it is the second-worst tier ("high or worse"),
// otherwise the worst tier.
func (c *Classifier) DefaultFloor() model.RiskTier {
	if len(c.bands) >= 4 {
		return c.bands[len(c.bands)-2].Tier
	}
	return c.Worst()
}

var upperCaser = cases.Upper(language.English)

// TierLabel renders a tier for action text, e.g. "high_risk" -> "HIGH RISK".
func TierLabel(t model.RiskTier) string {
	return upperCaser.String(strings.ReplaceAll(string(t), "_", " "))
}
