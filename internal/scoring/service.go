// Package scoring computes privacy scores for installed applications.
//
// Check is deterministic for a given descriptor and policy version: the same
// input always yields the same score and the same ordered findings. The only
// time-dependent field of a result is CreatedAt.
package scoring

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"antygravity/internal/domain"
	"antygravity/internal/policy"
)

// PolicySource resolves a policy version; "" selects the default.
type PolicySource interface {
	Get(version string) (*policy.Policy, error)
}

type Service struct {
	policies PolicySource
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(policies PolicySource, opts ...Option) *Service {
	s := &Service{policies: policies, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check validates d, resolves policyVersion and scores. Validation runs
// first so malformed input never reaches the policy lookup.
func (s *Service) Check(d domain.AppDescriptor, policyVersion string) (domain.CheckResult, error) {
	nd, err := Validate(d)
	if err != nil {
		return domain.CheckResult{}, err
	}
	p, err := s.policies.Get(policyVersion)
	if err != nil {
		return domain.CheckResult{}, err
	}
	a := Evaluate(p, nd)
	return domain.CheckResult{
		Descriptor:      nd,
		PolicyVersion:   p.Version,
		Score:           a.Score,
		Findings:        a.Findings,
		Explanation:     a.Explanation,
		SuggestedAction: a.SuggestedAction,
		CreatedAt:       s.now().UTC().Truncate(time.Microsecond),
	}, nil
}

// Breakdown is the penalty applied per rule family. Category may be negative.
type Breakdown struct {
	Permissions   int `json:"permissions"`
	Network       int `json:"network"`
	Category      int `json:"category"`
	Endpoints     int `json:"endpoints"`
	InstallSource int `json:"install_source"`
}

func (b Breakdown) Total() int {
	return b.Permissions + b.Network + b.Category + b.Endpoints + b.InstallSource
}

// Assessment is the pure outcome of applying a policy to a descriptor.
type Assessment struct {
	Score           int              `json:"score"`
	Findings        []domain.Finding `json:"findings"`
	Explanation     string           `json:"explanation"`
	SuggestedAction string           `json:"suggested_action"`
	Breakdown       Breakdown        `json:"breakdown"`
}

// Evaluate applies p to an already validated descriptor.
func Evaluate(p *policy.Policy, d domain.AppDescriptor) Assessment {
	var (
		b         Breakdown
		findings  = []domain.Finding{}
		highRisk  []string
		sensitive []string
		trackers  []string
	)

	for _, perm := range d.Permissions {
		rule, ok := p.Permission(perm)
		if !ok {
			continue
		}
		b.Permissions += rule.Weight
		sev, flagged := p.SeverityFor(rule.Weight)
		if !flagged {
			continue
		}
		name := HumanPermission(perm)
		findings = append(findings, domain.Finding{
			Category:    rule.Category,
			Severity:    sev,
			Explanation: "Requests " + name,
		})
		if sev >= domain.SeverityHigh {
			highRisk = append(highRisk, name)
		} else {
			sensitive = append(sensitive, name)
		}
	}
	if b.Permissions > p.PermissionCap {
		b.Permissions = p.PermissionCap
	}

	if lvl := d.NetworkUsageLevel; lvl != "" {
		b.Network = p.NetworkUsage[lvl]
		if lvl == domain.UsageHigh {
			findings = append(findings, domain.Finding{
				Category:    "network",
				Severity:    domain.SeverityMedium,
				Explanation: "High network activity may indicate data sharing",
			})
		}
	}

	b.Category = p.Categories[policy.NormaliseCategory(d.Category)]

	seen := map[string]bool{}
	for _, host := range d.Endpoints {
		reg := registrableDomain(host)
		if seen[reg] {
			continue
		}
		seen[reg] = true
		rule, sev, ok := p.Tracker(reg)
		if !ok {
			continue
		}
		b.Endpoints += rule.Weight
		label := rule.Label
		if label == "" {
			label = reg
		}
		findings = append(findings, domain.Finding{
			Category:    "tracking",
			Severity:    sev,
			Explanation: fmt.Sprintf("Contacts %s (%s)", label, reg),
		})
		trackers = append(trackers, reg)
	}
	if p.Endpoints.Cap > 0 && b.Endpoints > p.Endpoints.Cap {
		b.Endpoints = p.Endpoints.Cap
	}

	untrusted := p.ChecksInstallSource() && d.InstallSource != "" && !p.TrustedSource(d.InstallSource)
	if untrusted {
		b.InstallSource = p.InstallSources.UntrustedPenalty
		findings = append(findings, domain.Finding{
			Category:    "install_source",
			Severity:    p.InstallSourceSeverity(),
			Explanation: "Installed from untrusted source " + d.InstallSource,
		})
	}

	score := clamp(p.MaxScore-b.Total(), p.MinScore, p.MaxScore)
	SortFindings(findings)

	var concerns, positives []string
	if len(highRisk) > 0 {
		sort.Strings(highRisk)
		concerns = append(concerns, "High-risk permissions: "+strings.Join(highRisk, ", "))
	}
	if len(sensitive) > 0 {
		sort.Strings(sensitive)
		if len(sensitive) > 5 {
			sensitive = sensitive[:5]
		}
		concerns = append(concerns, "Sensitive permissions: "+strings.Join(sensitive, ", "))
	}
	if d.NetworkUsageLevel == domain.UsageHigh {
		concerns = append(concerns, "High network activity may indicate data sharing")
	}
	if len(trackers) > 0 {
		sort.Strings(trackers)
		concerns = append(concerns, "Tracker endpoints: "+strings.Join(trackers, ", "))
	}
	if untrusted {
		concerns = append(concerns, "Untrusted install source: "+d.InstallSource)
	}
	if b.Category < 0 {
		positives = append(positives, fmt.Sprintf("Trusted category (%s): +%d points", d.Category, -b.Category))
	}
	if score >= 80 {
		positives = append(positives, "Low privacy risk overall")
	} else if len(d.Permissions) == 0 {
		positives = append(positives, "No dangerous permissions requested")
	}

	var parts []string
	if len(concerns) > 0 {
		parts = append(parts, "Concerns: "+strings.Join(concerns, "; "))
	}
	if len(positives) > 0 {
		parts = append(parts, "Positives: "+strings.Join(positives, "; "))
	}
	explanation := "This app has moderate privacy characteristics."
	if len(parts) > 0 {
		explanation = strings.Join(parts, " | ")
	}

	return Assessment{
		Score:           score,
		Findings:        findings,
		Explanation:     explanation,
		SuggestedAction: suggestedAction(p, score),
		Breakdown:       b,
	}
}

// SortFindings orders by severity (worst first), then category, then explanation.
func SortFindings(f []domain.Finding) {
	sort.SliceStable(f, func(i, j int) bool {
		if f[i].Severity != f[j].Severity {
			return f[i].Severity > f[j].Severity
		}
		if f[i].Category != f[j].Category {
			return f[i].Category < f[j].Category
		}
		return f[i].Explanation < f[j].Explanation
	})
}

// HumanPermission turns android.permission.READ_SMS into "Read Sms".
func HumanPermission(perm string) string {
	simple, ok := strings.CutPrefix(perm, "android.permission.")
	if !ok {
		return perm
	}
	words := strings.Fields(strings.ReplaceAll(simple, "_", " "))
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	reg, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return reg
}

func suggestedAction(p *policy.Policy, score int) string {
	switch {
	case score >= p.Actions.Keep:
		return domain.ActionKeep
	case score >= p.Actions.Review:
		return domain.ActionReview
	}
	return domain.ActionConsiderUninstall
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
