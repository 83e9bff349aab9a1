package catalog

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func validProfile(name string) ProviderProfile {
	return ProviderProfile{
		Name:             name,
		CostTier:         TierLow,
		InputCostPer1K:   0.001,
		OutputCostPer1K:  0.002,
		DailyBudgetLimit: 5.0,
		QualityScore:     0.8,
		SpeedScore:       0.7,
		MaxContextTokens: 32000,
		Enabled:          true,
		Models:           []ModelSpec{{Name: name + "-default"}},
	}
}

func TestNewCatalog_GetProfile(t *testing.T) {
	c, err := NewCatalog([]ProviderProfile{validProfile("ollama"), validProfile("openai")}, testLogger())
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	profile, err := c.GetProfile("ollama")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if profile.Name != "ollama" {
		t.Errorf("Expected profile 'ollama', got %s", profile.Name)
	}

	_, err = c.GetProfile("nope")
	var notFound *ErrProfileNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProviderProfile)
	}{
		{"empty name", func(p *ProviderProfile) { p.Name = "" }},
		{"bad tier", func(p *ProviderProfile) { p.CostTier = "platinum" }},
		{"negative input cost", func(p *ProviderProfile) { p.InputCostPer1K = -0.01 }},
		{"negative budget", func(p *ProviderProfile) { p.DailyBudgetLimit = -1 }},
		{"quality out of range", func(p *ProviderProfile) { p.QualityScore = 1.5 }},
		{"speed out of range", func(p *ProviderProfile) { p.SpeedScore = -0.1 }},
		{"zero context", func(p *ProviderProfile) { p.MaxContextTokens = 0 }},
		{"no models", func(p *ProviderProfile) { p.Models = nil }},
		{"bad model tier", func(p *ProviderProfile) { p.Models[0].Tier = "turbo" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile("broken")
			tt.mutate(&p)

			if _, err := NewCatalog([]ProviderProfile{p}, testLogger()); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestNewCatalog_DuplicateNames(t *testing.T) {
	profiles := []ProviderProfile{validProfile("dup"), validProfile("dup")}
	if _, err := NewCatalog(profiles, testLogger()); err == nil {
		t.Error("Expected duplicate name error, got nil")
	}
}

func TestCatalog_ListEnabledOrder(t *testing.T) {
	a := validProfile("alpha")
	b := validProfile("beta")
	b.Enabled = false
	g := validProfile("gamma")

	c, err := NewCatalog([]ProviderProfile{a, b, g}, testLogger())
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	enabled := c.ListEnabled()
	if len(enabled) != 2 {
		t.Fatalf("Expected 2 enabled providers, got %d", len(enabled))
	}
	if enabled[0].Name != "alpha" || enabled[1].Name != "gamma" {
		t.Errorf("Registration order not preserved: %s, %s", enabled[0].Name, enabled[1].Name)
	}
}

func TestCatalog_Reload(t *testing.T) {
	c, err := NewCatalog([]ProviderProfile{validProfile("one")}, testLogger())
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	// In-flight readers keep their snapshot.
	before := c.ListEnabled()

	if err := c.Reload([]ProviderProfile{validProfile("two")}); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if before[0].Name != "one" {
		t.Error("Pre-reload snapshot was mutated")
	}
	after := c.ListEnabled()
	if len(after) != 1 || after[0].Name != "two" {
		t.Errorf("Expected reloaded catalog with 'two', got %+v", after)
	}

	// A bad reload leaves the current snapshot untouched.
	bad := validProfile("three")
	bad.QualityScore = 2.0
	if err := c.Reload([]ProviderProfile{bad}); err == nil {
		t.Error("Expected reload rejection, got nil")
	}
	if c.ListEnabled()[0].Name != "two" {
		t.Error("Failed reload must not replace the catalog")
	}
}

func TestCostTier_Normalized(t *testing.T) {
	tests := []struct {
		tier CostTier
		want float64
	}{
		{TierFree, 0.0},
		{TierLow, 0.2},
		{TierMedium, 0.6},
		{TierHigh, 1.0},
	}

	for _, tt := range tests {
		if got := tt.tier.Normalized(); got != tt.want {
			t.Errorf("Normalized(%s) = %v, want %v", tt.tier, got, tt.want)
		}
	}
}
