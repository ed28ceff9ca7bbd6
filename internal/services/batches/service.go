// Package batches enqueues asynchronous multi-app privacy checks.
package batches

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
	"antygravity/internal/scoring"
)

// MaxDescriptors bounds a single batch.
const MaxDescriptors = 500

type Service struct {
	policies scoring.PolicySource
	batches  ports.BatchRepository
	log      *slog.Logger
}

var _ ports.Batches = (*Service)(nil)

func New(policies scoring.PolicySource, batches ports.BatchRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{policies: policies, batches: batches, log: log}
}

// Enqueue validates every descriptor before anything is stored; one bad entry
// rejects the whole batch. The policy version is resolved now so the batch is
// scored under the version that was current when it was submitted.
func (s *Service) Enqueue(ctx context.Context, userID, policyVersion string, descriptors []domain.AppDescriptor) (string, error) {
	if len(descriptors) == 0 {
		return "", &domain.ValidationError{Err: domain.ErrInvalidInput, Fields: map[string]string{"apps": "at least one app is required"}}
	}
	if len(descriptors) > MaxDescriptors {
		return "", &domain.ValidationError{Err: domain.ErrInvalidInput, Fields: map[string]string{
			"apps": fmt.Sprintf("at most %d apps are accepted per batch", MaxDescriptors),
		}}
	}
	normalised := make([]domain.AppDescriptor, len(descriptors))
	for i, d := range descriptors {
		nd, err := scoring.Validate(d)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				fields := make(map[string]string, len(verr.Fields))
				for k, v := range verr.Fields {
					fields[fmt.Sprintf("apps[%d].%s", i, k)] = v
				}
				return "", &domain.ValidationError{Fields: fields}
			}
			return "", err
		}
		normalised[i] = nd
	}

	p, err := s.policies.Get(policyVersion)
	if err != nil {
		return "", err
	}
	batchID, err := s.batches.CreateBatch(ctx, userID, p.Version, normalised)
	if err != nil {
		return "", err
	}
	s.log.InfoContext(ctx, "batch queued", "batch_id", batchID, "apps", len(normalised), "policy_version", p.Version)
	return batchID, nil
}

func (s *Service) Status(ctx context.Context, userID, batchID string) (domain.Batch, error) {
	return s.batches.GetBatch(ctx, userID, batchID)
}
