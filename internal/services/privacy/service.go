// Package privacy scores single descriptors and keeps the per-user history.
package privacy

import (
	"context"
	"fmt"
	"log/slog"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
	"antygravity/internal/scoring"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Service struct {
	scorer *scoring.Service
	checks ports.CheckRepository
	log    *slog.Logger
}

var _ ports.Checker = (*Service)(nil)

func New(scorer *scoring.Service, checks ports.CheckRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{scorer: scorer, checks: checks, log: log}
}

// Check scores d and persists the result for userID. When scoring succeeds
// but the write fails, the unsaved result is returned together with an error
// wrapping domain.ErrNotSaved.
func (s *Service) Check(ctx context.Context, userID string, d domain.AppDescriptor, policyVersion string) (domain.PrivacyCheck, error) {
	res, err := s.scorer.Check(d, policyVersion)
	if err != nil {
		return domain.PrivacyCheck{}, err
	}
	saved, err := s.checks.SaveCheck(ctx, userID, nil, res)
	if err != nil {
		s.log.ErrorContext(ctx, "privacy check not saved",
			"user_id", userID, "package_name", res.Descriptor.PackageName, "err", err)
		return domain.PrivacyCheck{UserID: userID, CheckResult: res}, fmt.Errorf("%w: %v", domain.ErrNotSaved, err)
	}
	s.log.DebugContext(ctx, "privacy check saved",
		"check_id", saved.ID, "package_name", res.Descriptor.PackageName,
		"policy_version", res.PolicyVersion, "score", res.Score)
	return saved, nil
}

// List returns userID's checks, newest first.
func (s *Service) List(ctx context.Context, userID string, f domain.CheckFilter) ([]domain.PrivacyCheck, error) {
	f, err := NormaliseFilter(f)
	if err != nil {
		return nil, err
	}
	return s.checks.ListChecks(ctx, userID, f)
}

func (s *Service) Get(ctx context.Context, userID, id string) (domain.PrivacyCheck, error) {
	return s.checks.GetCheck(ctx, userID, id)
}

// NormaliseFilter applies the default page size and rejects out of range paging.
func NormaliseFilter(f domain.CheckFilter) (domain.CheckFilter, error) {
	verr := &domain.ValidationError{Err: domain.ErrInvalidInput}
	switch {
	case f.Limit < 0 || f.Limit > MaxLimit:
		verr.Add("limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
	case f.Limit == 0:
		f.Limit = DefaultLimit
	}
	if f.Offset < 0 {
		verr.Add("offset", "must not be negative")
	}
	if !verr.Empty() {
		return f, verr
	}
	return f, nil
}
