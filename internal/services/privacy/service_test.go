package privacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antygravity/internal/domain"
	"antygravity/internal/policy"
	"antygravity/internal/scoring"
)

type fakeChecks struct {
	saved   []domain.PrivacyCheck
	saveErr error
	filter  domain.CheckFilter
}

func (f *fakeChecks) SaveCheck(_ context.Context, userID string, batchID *string, res domain.CheckResult) (domain.PrivacyCheck, error) {
	if f.saveErr != nil {
		return domain.PrivacyCheck{}, f.saveErr
	}
	c := domain.PrivacyCheck{ID: "chk-1", UserID: userID, BatchID: batchID, CheckResult: res}
	f.saved = append(f.saved, c)
	return c, nil
}

func (f *fakeChecks) ListChecks(_ context.Context, _ string, filter domain.CheckFilter) ([]domain.PrivacyCheck, error) {
	f.filter = filter
	return f.saved, nil
}

func (f *fakeChecks) GetCheck(_ context.Context, userID, id string) (domain.PrivacyCheck, error) {
	for _, c := range f.saved {
		if c.ID == id && c.UserID == userID {
			return c, nil
		}
	}
	return domain.PrivacyCheck{}, domain.ErrNotFound
}

func newService(t *testing.T, checks *fakeChecks) *Service {
	t.Helper()
	builtin, err := policy.Builtin()
	require.NoError(t, err)
	reg, err := policy.NewRegistry("v1", builtin...)
	require.NoError(t, err)
	scorer := scoring.New(reg, scoring.WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	return New(scorer, checks, nil)
}

var camera = domain.AppDescriptor{
	PackageName: "com.example.cam",
	AppName:     "Cam",
	Permissions: []string{"android.permission.CAMERA"},
}

func TestCheckSaves(t *testing.T) {
	checks := &fakeChecks{}
	s := newService(t, checks)

	c, err := s.Check(context.Background(), "alice", camera, "")
	require.NoError(t, err)
	assert.Equal(t, "chk-1", c.ID)
	assert.Equal(t, "alice", c.UserID)
	assert.Equal(t, 85, c.Score)
	assert.Equal(t, "v1", c.PolicyVersion)
	assert.Len(t, checks.saved, 1)

	got, err := s.Get(context.Background(), "alice", "chk-1")
	require.NoError(t, err)
	assert.Equal(t, c, got)
	_, err = s.Get(context.Background(), "bob", "chk-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckReturnsResultWhenSaveFails(t *testing.T) {
	s := newService(t, &fakeChecks{saveErr: errors.New("disk full")})

	c, err := s.Check(context.Background(), "alice", camera, "v2")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotSaved)
	assert.Empty(t, c.ID)
	assert.Equal(t, 85, c.Score)
	assert.Equal(t, "v2", c.PolicyVersion)
}

func TestCheckDoesNotSaveInvalidInput(t *testing.T) {
	checks := &fakeChecks{}
	s := newService(t, checks)

	_, err := s.Check(context.Background(), "alice", domain.AppDescriptor{PackageName: "nodots", AppName: "x", Permissions: []string{}}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidDescriptor)
	_, err = s.Check(context.Background(), "alice", camera, "v404")
	assert.ErrorIs(t, err, domain.ErrUnknownPolicyVersion)
	assert.Empty(t, checks.saved)
}

func TestListNormalisesFilter(t *testing.T) {
	checks := &fakeChecks{}
	s := newService(t, checks)

	_, err := s.List(context.Background(), "alice", domain.CheckFilter{PackageName: "com.example.cam"})
	require.NoError(t, err)
	assert.Equal(t, domain.CheckFilter{PackageName: "com.example.cam", Limit: DefaultLimit}, checks.filter)

	_, err = s.List(context.Background(), "alice", domain.CheckFilter{Limit: MaxLimit + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = s.List(context.Background(), "alice", domain.CheckFilter{Offset: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
