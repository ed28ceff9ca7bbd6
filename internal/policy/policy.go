// Package policy holds versioned privacy scoring policies.
//
// A policy is a YAML document. Once parsed and validated it is never mutated;
// the Registry publishes whole snapshots of policies so scoring code always
// sees a consistent rule set.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"antygravity/internal/domain"
)

// PermissionRule weighs one declared permission.
type PermissionRule struct {
	Weight   int    `yaml:"weight"`
	Category string `yaml:"category"`
}

// Thresholds map a permission weight to a finding severity. A weight below
// Medium produces no finding.
type Thresholds struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Medium   int `yaml:"medium"`
}

// ActionThresholds are the minimum scores for KEEP and REVIEW.
type ActionThresholds struct {
	Keep   int `yaml:"keep"`
	Review int `yaml:"review"`
}

type TrackerRule struct {
	Weight   int    `yaml:"weight"`
	Severity string `yaml:"severity"`
	Label    string `yaml:"label"`
}

// EndpointRules penalise contacted hosts whose registrable domain is a known tracker.
type EndpointRules struct {
	Cap      int                    `yaml:"cap"`
	Trackers map[string]TrackerRule `yaml:"trackers"`
}

type InstallSourceRules struct {
	Trusted          []string `yaml:"trusted"`
	UntrustedPenalty int      `yaml:"untrusted_penalty"`
	Severity         string   `yaml:"severity"`
}

// Policy is one immutable, versioned rule set.
type Policy struct {
	Version        string                    `yaml:"version"`
	Description    string                    `yaml:"description"`
	MaxScore       int                       `yaml:"max_score"`
	MinScore       int                       `yaml:"min_score"`
	PermissionCap  int                       `yaml:"permission_cap"`
	Thresholds     Thresholds                `yaml:"thresholds"`
	Permissions    map[string]PermissionRule `yaml:"permissions"`
	NetworkUsage   map[string]int            `yaml:"network_usage"`
	Categories     map[string]int            `yaml:"categories"`
	Actions        ActionThresholds          `yaml:"actions"`
	Endpoints      EndpointRules             `yaml:"endpoints,omitempty"`
	InstallSources InstallSourceRules        `yaml:"install_sources,omitempty"`

	// Hash of the source document, for audit trails.
	Hash string `yaml:"-"`

	trusted         map[string]bool
	trackerSeverity map[string]domain.Severity
	installSeverity domain.Severity
}

// Parse decodes, normalises and validates a policy document.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	p.normalise()
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy %q: %w", p.Version, err)
	}
	sum := sha256.Sum256(data)
	p.Hash = hex.EncodeToString(sum[:])
	return &p, nil
}

// NormaliseCategory folds an app category into the policy key form,
// e.g. "Health & Fitness" -> "health_fitness".
func NormaliseCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.NewReplacer(" & ", "_", "&", "_", " ", "_", "-", "_").Replace(c)
	for strings.Contains(c, "__") {
		c = strings.ReplaceAll(c, "__", "_")
	}
	return c
}

func (p *Policy) normalise() {
	p.Version = strings.TrimSpace(p.Version)

	usage := make(map[string]int, len(p.NetworkUsage))
	for k, v := range p.NetworkUsage {
		usage[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	p.NetworkUsage = usage

	cats := make(map[string]int, len(p.Categories))
	for k, v := range p.Categories {
		cats[NormaliseCategory(k)] = v
	}
	p.Categories = cats

	trackers := make(map[string]TrackerRule, len(p.Endpoints.Trackers))
	for k, v := range p.Endpoints.Trackers {
		trackers[strings.ToLower(strings.TrimSpace(k))] = v
	}
	p.Endpoints.Trackers = trackers

	p.trusted = make(map[string]bool, len(p.InstallSources.Trusted))
	for _, s := range p.InstallSources.Trusted {
		p.trusted[strings.ToLower(strings.TrimSpace(s))] = true
	}
}

func (p *Policy) validate() error {
	if p.Version == "" {
		return fmt.Errorf("version is required")
	}
	if p.MaxScore <= p.MinScore {
		return fmt.Errorf("max_score (%d) must be greater than min_score (%d)", p.MaxScore, p.MinScore)
	}
	if p.PermissionCap < 0 {
		return fmt.Errorf("permission_cap must not be negative")
	}
	t := p.Thresholds
	if t.Medium <= 0 || t.Medium > t.High || t.High > t.Critical {
		return fmt.Errorf("thresholds must satisfy 0 < medium <= high <= critical (got %d/%d/%d)", t.Medium, t.High, t.Critical)
	}
	if len(p.Permissions) == 0 {
		return fmt.Errorf("at least one permission rule is required")
	}
	for name, rule := range p.Permissions {
		if rule.Weight < 0 {
			return fmt.Errorf("permission %s: weight must not be negative", name)
		}
		if strings.TrimSpace(rule.Category) == "" {
			return fmt.Errorf("permission %s: category is required", name)
		}
	}
	for level, penalty := range p.NetworkUsage {
		switch level {
		case domain.UsageLow, domain.UsageMedium, domain.UsageHigh:
		default:
			return fmt.Errorf("network_usage: unknown level %q", level)
		}
		if penalty < 0 {
			return fmt.Errorf("network_usage %s: penalty must not be negative", level)
		}
	}
	a := p.Actions
	if a.Review > a.Keep || a.Keep > p.MaxScore || a.Review < p.MinScore {
		return fmt.Errorf("actions must satisfy min_score <= review <= keep <= max_score")
	}
	if p.Endpoints.Cap < 0 {
		return fmt.Errorf("endpoints.cap must not be negative")
	}
	p.trackerSeverity = make(map[string]domain.Severity, len(p.Endpoints.Trackers))
	for host, rule := range p.Endpoints.Trackers {
		if rule.Weight < 0 {
			return fmt.Errorf("tracker %s: weight must not be negative", host)
		}
		sev, err := domain.ParseSeverity(rule.Severity)
		if err != nil {
			return fmt.Errorf("tracker %s: %w", host, err)
		}
		p.trackerSeverity[host] = sev
	}
	if p.InstallSources.UntrustedPenalty < 0 {
		return fmt.Errorf("install_sources.untrusted_penalty must not be negative")
	}
	if len(p.trusted) > 0 {
		sev, err := domain.ParseSeverity(p.InstallSources.Severity)
		if err != nil {
			return fmt.Errorf("install_sources: %w", err)
		}
		p.installSeverity = sev
	}
	return nil
}

// Permission returns the rule for a permission string, if any.
func (p *Policy) Permission(name string) (PermissionRule, bool) {
	r, ok := p.Permissions[name]
	return r, ok
}

// SeverityFor maps a permission weight onto a severity; ok is false when the
// weight does not warrant a finding.
func (p *Policy) SeverityFor(weight int) (domain.Severity, bool) {
	switch {
	case weight >= p.Thresholds.Critical:
		return domain.SeverityCritical, true
	case weight >= p.Thresholds.High:
		return domain.SeverityHigh, true
	case weight >= p.Thresholds.Medium:
		return domain.SeverityMedium, true
	}
	return 0, false
}

// Tracker looks up a registrable domain in the tracker table.
func (p *Policy) Tracker(registrable string) (TrackerRule, domain.Severity, bool) {
	r, ok := p.Endpoints.Trackers[registrable]
	if !ok {
		return TrackerRule{}, 0, false
	}
	return r, p.trackerSeverity[registrable], true
}

// ChecksInstallSource reports whether this policy scores install sources at all.
func (p *Policy) ChecksInstallSource() bool { return len(p.trusted) > 0 }

func (p *Policy) TrustedSource(src string) bool {
	return p.trusted[strings.ToLower(strings.TrimSpace(src))]
}

func (p *Policy) InstallSourceSeverity() domain.Severity { return p.installSeverity }

// KnownCategories lists the categories the policy adjusts, sorted.
func (p *Policy) KnownCategories() []string {
	out := make([]string, 0, len(p.Categories))
	for c := range p.Categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
