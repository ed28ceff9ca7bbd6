package policy

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"antygravity/internal/domain"
)

// Snapshot is an immutable set of published policies plus the default version.
type Snapshot struct {
	policies       map[string]*Policy
	defaultVersion string
	publishedAt    time.Time
}

// Get returns the policy for version; an empty version selects the default.
func (s *Snapshot) Get(version string) (*Policy, error) {
	if version == "" {
		version = s.defaultVersion
	}
	p, ok := s.policies[version]
	if !ok {
		return nil, &domain.UnknownPolicyError{Version: version}
	}
	return p, nil
}

func (s *Snapshot) Default() string { return s.defaultVersion }

func (s *Snapshot) PublishedAt() time.Time { return s.publishedAt }

// Versions returns the published versions, lowest first. Digit runs compare
// numerically so v10 sorts after v2.
func (s *Snapshot) Versions() []string {
	out := make([]string, 0, len(s.policies))
	for v := range s.policies {
		out = append(out, v)
	}
	slices.SortFunc(out, CompareVersions)
	return out
}

// CompareVersions orders version labels by splitting them into digit and
// non-digit runs. Digit runs compare as numbers, everything else as text.
func CompareVersions(a, b string) int {
	for a != "" && b != "" {
		ca, restA := nextChunk(a)
		cb, restB := nextChunk(b)
		na, errA := strconv.ParseUint(ca, 10, 64)
		nb, errB := strconv.ParseUint(cb, 10, 64)
		var c int
		if errA == nil && errB == nil {
			c = cmp.Compare(na, nb)
		}
		if c == 0 {
			c = cmp.Compare(ca, cb)
		}
		if c != 0 {
			return c
		}
		a, b = restA, restB
	}
	return cmp.Compare(len(a), len(b))
}

func nextChunk(s string) (chunk, rest string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// Policies returns the published policies sorted by version.
func (s *Snapshot) Policies() []*Policy {
	out := make([]*Policy, 0, len(s.policies))
	for _, v := range s.Versions() {
		out = append(out, s.policies[v])
	}
	return out
}

// Registry hands out the current Snapshot. Publish swaps in a complete new
// snapshot; readers holding the old one keep a consistent view.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry publishes the given policies as the first snapshot.
func NewRegistry(defaultVersion string, policies ...*Policy) (*Registry, error) {
	r := &Registry{}
	if err := r.Publish(defaultVersion, policies...); err != nil {
		return nil, err
	}
	return r, nil
}

// Publish replaces the whole policy set. An empty defaultVersion selects the
// highest sorted version.
func (r *Registry) Publish(defaultVersion string, policies ...*Policy) error {
	if len(policies) == 0 {
		return fmt.Errorf("no policies to publish")
	}
	set := make(map[string]*Policy, len(policies))
	for _, p := range policies {
		if prev, dup := set[p.Version]; dup && prev.Hash != p.Hash {
			return fmt.Errorf("policy %s published twice with different content", p.Version)
		}
		set[p.Version] = p
	}
	snap := &Snapshot{policies: set, publishedAt: time.Now().UTC()}
	if defaultVersion == "" {
		versions := snap.Versions()
		defaultVersion = versions[len(versions)-1]
	}
	if _, ok := set[defaultVersion]; !ok {
		return &domain.UnknownPolicyError{Version: defaultVersion}
	}
	snap.defaultVersion = defaultVersion
	r.current.Store(snap)
	return nil
}

func (r *Registry) Snapshot() *Snapshot { return r.current.Load() }

// Get is shorthand for r.Snapshot().Get(version).
func (r *Registry) Get(version string) (*Policy, error) {
	return r.Snapshot().Get(version)
}
