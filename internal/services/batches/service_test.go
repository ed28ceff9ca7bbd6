package batches

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antygravity/internal/domain"
	"antygravity/internal/policy"
)

type fakeBatches struct {
	userID, version string
	descriptors     []domain.AppDescriptor
}

func (f *fakeBatches) CreateBatch(_ context.Context, userID, policyVersion string, ds []domain.AppDescriptor) (string, error) {
	f.userID, f.version, f.descriptors = userID, policyVersion, ds
	return "batch-1", nil
}

func (f *fakeBatches) GetBatch(_ context.Context, userID, batchID string) (domain.Batch, error) {
	if userID != f.userID || batchID != "batch-1" {
		return domain.Batch{}, domain.ErrNotFound
	}
	return domain.Batch{ID: batchID, UserID: userID, PolicyVersion: f.version, Status: domain.StatusQueued, Total: len(f.descriptors)}, nil
}

func newService(t *testing.T) (*Service, *fakeBatches) {
	t.Helper()
	builtin, err := policy.Builtin()
	require.NoError(t, err)
	reg, err := policy.NewRegistry("v2", builtin...)
	require.NoError(t, err)
	repo := &fakeBatches{}
	return New(reg, repo, nil), repo
}

func TestEnqueuePinsDefaultVersion(t *testing.T) {
	s, repo := newService(t)

	id, err := s.Enqueue(context.Background(), "alice", "", []domain.AppDescriptor{
		{PackageName: " com.example.a ", AppName: "A", Permissions: []string{"x.Y", "x.Y"}, NetworkUsageLevel: "low"},
	})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", id)
	assert.Equal(t, "v2", repo.version)
	require.Len(t, repo.descriptors, 1)
	assert.Equal(t, "com.example.a", repo.descriptors[0].PackageName)
	assert.Equal(t, []string{"x.Y"}, repo.descriptors[0].Permissions)
	assert.Equal(t, "LOW", repo.descriptors[0].NetworkUsageLevel)

	b, err := s.Status(context.Background(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Total)
	_, err = s.Status(context.Background(), "bob", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnqueueRejectsWholeBatch(t *testing.T) {
	s, repo := newService(t)

	_, err := s.Enqueue(context.Background(), "alice", "v1", []domain.AppDescriptor{
		{PackageName: "com.example.a", AppName: "A", Permissions: []string{}},
		{PackageName: "com.example.b", Permissions: []string{}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidDescriptor)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "apps[1].app_name")
	assert.Nil(t, repo.descriptors)
}

func TestEnqueueErrors(t *testing.T) {
	s, _ := newService(t)
	ok := []domain.AppDescriptor{{PackageName: "com.example.a", AppName: "A", Permissions: []string{}}}

	_, err := s.Enqueue(context.Background(), "alice", "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Enqueue(context.Background(), "alice", "", make([]domain.AppDescriptor, MaxDescriptors+1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Enqueue(context.Background(), "alice", "v0", ok)
	assert.ErrorIs(t, err, domain.ErrUnknownPolicyVersion)
}
