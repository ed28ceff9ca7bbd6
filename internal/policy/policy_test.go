package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antygravity/internal/domain"
)

const minimalPolicy = `
version: test
max_score: 100
min_score: 0
permission_cap: 30
thresholds: {critical: 20, high: 15, medium: 8}
permissions:
  android.permission.CAMERA: {weight: 15, category: camera}
network_usage: {low: 0, Medium: 5, HIGH: 10}
categories:
  "Health & Fitness": -3
actions: {keep: 70, review: 40}
`

func TestBuiltinPolicies(t *testing.T) {
	policies, err := Builtin()
	require.NoError(t, err)
	require.Len(t, policies, 2)

	assert.Equal(t, "v1", policies[0].Version)
	assert.Equal(t, "v2", policies[1].Version)
	for _, p := range policies {
		assert.Len(t, p.Hash, 64)
		rule, ok := p.Permission("android.permission.SEND_SMS")
		require.True(t, ok)
		assert.Equal(t, 18, rule.Weight)
		assert.Equal(t, "sms", rule.Category)
	}
	assert.False(t, policies[0].ChecksInstallSource())
	assert.True(t, policies[1].ChecksInstallSource())
	assert.True(t, policies[1].TrustedSource("com.android.vending"))
	assert.True(t, policies[1].TrustedSource(" COM.APPLE.APPSTORE "))
}

func TestParseNormalises(t *testing.T) {
	p, err := Parse([]byte(minimalPolicy))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"LOW": 0, "MEDIUM": 5, "HIGH": 10}, p.NetworkUsage)
	assert.Equal(t, []string{"health_fitness"}, p.KnownCategories())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{"missing version", func(s string) string { return strings.Replace(s, "version: test", "", 1) }, "version is required"},
		{"bad bounds", func(s string) string { return strings.Replace(s, "min_score: 0", "min_score: 100", 1) }, "max_score"},
		{"bad thresholds", func(s string) string { return strings.Replace(s, "medium: 8", "medium: 18", 1) }, "thresholds"},
		{"negative weight", func(s string) string { return strings.Replace(s, "weight: 15", "weight: -1", 1) }, "weight must not be negative"},
		{"unknown usage level", func(s string) string { return strings.Replace(s, "HIGH: 10", "EXTREME: 10", 1) }, "unknown level"},
		{"actions out of order", func(s string) string { return strings.Replace(s, "keep: 70", "keep: 30", 1) }, "actions"},
		{"not yaml", func(string) string { return "version: [" }, "failed to parse policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(minimalPolicy)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSeverityFor(t *testing.T) {
	p, err := Parse([]byte(minimalPolicy))
	require.NoError(t, err)

	tests := []struct {
		weight int
		want   domain.Severity
		ok     bool
	}{
		{3, 0, false},
		{8, domain.SeverityMedium, true},
		{14, domain.SeverityMedium, true},
		{15, domain.SeverityHigh, true},
		{20, domain.SeverityCritical, true},
	}
	for _, tt := range tests {
		got, ok := p.SeverityFor(tt.weight)
		assert.Equal(t, tt.ok, ok, "weight %d", tt.weight)
		assert.Equal(t, tt.want, got, "weight %d", tt.weight)
	}
}

func TestNormaliseCategory(t *testing.T) {
	assert.Equal(t, "health_fitness", NormaliseCategory("Health & Fitness"))
	assert.Equal(t, "health_fitness", NormaliseCategory("health&fitness"))
	assert.Equal(t, "social", NormaliseCategory(" Social "))
	assert.Equal(t, "", NormaliseCategory(""))
}
