package catalog

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// CostTier is a coarse bucket summarizing a provider's relative price.
type CostTier string

const (
	TierFree   CostTier = "free"
	TierLow    CostTier = "low"
	TierMedium CostTier = "medium"
	TierHigh   CostTier = "high"
)

// Normalized maps the tier onto [0,1] for scoring. Lower is cheaper.
func (t CostTier) Normalized() float64 {
	switch t {
	case TierFree:
		return 0.0
	case TierLow:
		return 0.2
	case TierMedium:
		return 0.6
	case TierHigh:
		return 1.0
	default:
		return 1.0
	}
}

// Valid reports whether t is one of the known tiers.
func (t CostTier) Valid() bool {
	switch t {
	case TierFree, TierLow, TierMedium, TierHigh:
		return true
	}
	return false
}

// Model tier labels used by the complexity bonus.
const (
	ModelTierFast     = "fast"
	ModelTierPowerful = "powerful"
)

// ModelSpec describes one model a provider exposes.
type ModelSpec struct {
	Name string `yaml:"name" json:"name"`
	// Tier is "fast", "powerful", or empty for a general-purpose model.
	Tier string `yaml:"tier,omitempty" json:"tier,omitempty"`
}

// ProviderProfile holds the static cost and quality attributes of one
// provider. Profiles are immutable once loaded; a config reload swaps the
// whole catalog snapshot atomically.
type ProviderProfile struct {
	Name               string      `yaml:"name" json:"name"`
	CostTier           CostTier    `yaml:"cost_tier" json:"cost_tier"`
	InputCostPer1K     float64     `yaml:"input_cost_per_1k" json:"input_cost_per_1k"`
	OutputCostPer1K    float64     `yaml:"output_cost_per_1k" json:"output_cost_per_1k"`
	DailyBudgetLimit   float64     `yaml:"daily_budget_limit" json:"daily_budget_limit"`
	RateLimitPerMinute int         `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	QualityScore       float64     `yaml:"quality_score" json:"quality_score"`
	SpeedScore         float64     `yaml:"speed_score" json:"speed_score"`
	MaxContextTokens   int         `yaml:"max_context_tokens" json:"max_context_tokens"`
	RequiresCredential bool        `yaml:"requires_credential" json:"requires_credential"`
	Enabled            bool        `yaml:"enabled" json:"enabled"`
	Models             []ModelSpec `yaml:"models" json:"models"`
}

// ProviderModel is the unit actually selected and invoked: one profile plus
// one of its model names.
type ProviderModel struct {
	Profile *ProviderProfile `json:"profile"`
	Model   ModelSpec        `json:"model"`
}

// ErrProfileNotFound is returned by GetProfile for unknown provider names.
type ErrProfileNotFound struct {
	Name string
}

func (e *ErrProfileNotFound) Error() string {
	return fmt.Sprintf("provider profile %q not found", e.Name)
}

type snapshot struct {
	order    []string
	profiles map[string]*ProviderProfile
}

// Catalog is the registry of known provider profiles. Reads are lock-free
// against an atomic snapshot so routing decisions in flight keep a
// consistent view across a hot reload.
type Catalog struct {
	current atomic.Pointer[snapshot]
	logger  *logrus.Logger
}

// NewCatalog validates the profiles and builds a catalog. Integrity errors
// (negative costs, out-of-range scores, duplicate names) are reported here
// once; callers treat them as fatal.
func NewCatalog(profiles []ProviderProfile, logger *logrus.Logger) (*Catalog, error) {
	snap, err := buildSnapshot(profiles)
	if err != nil {
		return nil, err
	}

	c := &Catalog{logger: logger}
	c.current.Store(snap)

	logger.WithField("providers", len(snap.order)).Info("Provider catalog loaded")
	return c, nil
}

// Reload atomically replaces the catalog contents. In-flight decisions keep
// the snapshot they started with.
func (c *Catalog) Reload(profiles []ProviderProfile) error {
	snap, err := buildSnapshot(profiles)
	if err != nil {
		return fmt.Errorf("catalog reload rejected: %w", err)
	}

	c.current.Store(snap)
	c.logger.WithField("providers", len(snap.order)).Info("Provider catalog reloaded")
	return nil
}

// GetProfile returns the profile for a provider name.
func (c *Catalog) GetProfile(name string) (*ProviderProfile, error) {
	snap := c.current.Load()
	profile, ok := snap.profiles[name]
	if !ok {
		return nil, &ErrProfileNotFound{Name: name}
	}
	return profile, nil
}

// ListEnabled returns enabled profiles in registration order. Registration
// order is the tie break for equal routing scores, so it must be stable.
func (c *Catalog) ListEnabled() []*ProviderProfile {
	snap := c.current.Load()

	enabled := make([]*ProviderProfile, 0, len(snap.order))
	for _, name := range snap.order {
		if p := snap.profiles[name]; p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// ListAll returns every profile in registration order, enabled or not.
func (c *Catalog) ListAll() []*ProviderProfile {
	snap := c.current.Load()

	all := make([]*ProviderProfile, 0, len(snap.order))
	for _, name := range snap.order {
		all = append(all, snap.profiles[name])
	}
	return all
}

func buildSnapshot(profiles []ProviderProfile) (*snapshot, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one provider")
	}

	snap := &snapshot{
		order:    make([]string, 0, len(profiles)),
		profiles: make(map[string]*ProviderProfile, len(profiles)),
	}

	for i := range profiles {
		p := profiles[i]
		if err := validateProfile(&p); err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		if _, exists := snap.profiles[p.Name]; exists {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name)
		}

		snap.order = append(snap.order, p.Name)
		snap.profiles[p.Name] = &p
	}

	return snap, nil
}

func validateProfile(p *ProviderProfile) error {
	if p.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !p.CostTier.Valid() {
		return fmt.Errorf("invalid cost tier %q", p.CostTier)
	}
	if p.InputCostPer1K < 0 || p.OutputCostPer1K < 0 {
		return fmt.Errorf("token costs cannot be negative")
	}
	if p.DailyBudgetLimit < 0 {
		return fmt.Errorf("daily budget limit cannot be negative")
	}
	if p.QualityScore < 0 || p.QualityScore > 1 {
		return fmt.Errorf("quality score %.2f outside [0,1]", p.QualityScore)
	}
	if p.SpeedScore < 0 || p.SpeedScore > 1 {
		return fmt.Errorf("speed score %.2f outside [0,1]", p.SpeedScore)
	}
	if p.MaxContextTokens <= 0 {
		return fmt.Errorf("max context tokens must be positive")
	}
	if len(p.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	for _, m := range p.Models {
		if m.Name == "" {
			return fmt.Errorf("model name cannot be empty")
		}
		if m.Tier != "" && m.Tier != ModelTierFast && m.Tier != ModelTierPowerful {
			return fmt.Errorf("invalid model tier %q", m.Tier)
		}
	}
	return nil
}
