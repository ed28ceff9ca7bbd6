package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antygravity/internal/domain"
)

var t0 = time.Date(2025, 5, 1, 9, 30, 0, 123456000, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, SQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	s.now = func() time.Time { return t0 }
	return s
}

func result(pkg string, score int, at time.Time) domain.CheckResult {
	return domain.CheckResult{
		Descriptor:    domain.AppDescriptor{PackageName: pkg, AppName: pkg, Permissions: []string{"android.permission.CAMERA"}},
		PolicyVersion: "v1",
		Score:         score,
		Findings: []domain.Finding{
			{Category: "camera", Severity: domain.SeverityHigh, Explanation: "Requests Camera"},
		},
		Explanation:     "Concerns: High-risk permissions: Camera",
		SuggestedAction: domain.ActionKeep,
		CreatedAt:       at,
	}
}

func TestChecksRoundTripAndOwnership(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	saved, err := s.SaveCheck(ctx, "alice", nil, result("com.example.a", 85, t0))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	got, err := s.GetCheck(ctx, "alice", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
	assert.Nil(t, got.BatchID)

	_, err = s.GetCheck(ctx, "bob", saved.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetCheck(ctx, "alice", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListChecksOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, pkg := range []string{"com.example.a", "com.example.b", "com.example.a"} {
		_, err := s.SaveCheck(ctx, "alice", nil, result(pkg, 50+i, t0.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := s.SaveCheck(ctx, "bob", nil, result("com.example.a", 10, t0))
	require.NoError(t, err)

	all, err := s.ListChecks(ctx, "alice", domain.CheckFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{52, 51, 50}, []int{all[0].Score, all[1].Score, all[2].Score})

	onlyA, err := s.ListChecks(ctx, "alice", domain.CheckFilter{PackageName: "com.example.a"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	page, err := s.ListChecks(ctx, "alice", domain.CheckFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 51, page[0].Score)

	tail, err := s.ListChecks(ctx, "alice", domain.CheckFilter{Offset: 2})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, 50, tail[0].Score)

	none, err := s.ListChecks(ctx, "carol", domain.CheckFilter{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	everyone, err := s.ListChecks(ctx, "", domain.CheckFilter{})
	require.NoError(t, err)
	assert.Len(t, everyone, 4)
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	descriptors := []domain.AppDescriptor{
		{PackageName: "com.example.a", AppName: "A", Permissions: []string{}},
		{PackageName: "com.example.b", AppName: "B", Permissions: []string{"android.permission.CAMERA"}},
	}
	id, err := s.CreateBatch(ctx, "alice", "v1", descriptors)
	require.NoError(t, err)

	b, err := s.GetBatch(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, b.Status)
	assert.Equal(t, 2, b.Total)
	assert.Equal(t, descriptors, b.Descriptors)
	assert.Equal(t, t0.Truncate(time.Microsecond), b.CreatedAt)
	assert.Nil(t, b.StartedAt)

	_, err = s.GetBatch(ctx, "bob", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	job, found, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, job.BatchID)

	_, found, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.StartJobForBatch(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpdateBatchProgress(ctx, id, 0.5))
	b, err = s.LoadBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, b.Status)
	assert.InDelta(t, 0.5, b.Progress, 1e-9)
	require.NotNil(t, b.StartedAt)

	require.NoError(t, s.MarkCompleted(ctx, job.ID))
	b, err = s.LoadBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, b.Status)
	assert.InDelta(t, 1.0, b.Progress, 1e-9)
	require.NotNil(t, b.FinishedAt)
}

func TestBatchFailureAndInlineStart(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateBatch(ctx, "alice", "v2", []domain.AppDescriptor{{PackageName: "com.example.a", AppName: "A", Permissions: []string{}}})
	require.NoError(t, err)

	jobID, err := s.StartJobForBatch(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	require.NoError(t, s.MarkFailed(ctx, jobID, "policy v2 withdrawn"))
	b, err := s.GetBatch(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, b.Status)
	assert.Equal(t, "policy v2 withdrawn", b.LastError)

	assert.ErrorIs(t, s.MarkFailed(ctx, "no-such-job", "x"), domain.ErrNotFound)
}

func TestChecksLinkedToBatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateBatch(ctx, "alice", "v1", []domain.AppDescriptor{{PackageName: "com.example.a", AppName: "A", Permissions: []string{}}})
	require.NoError(t, err)
	_, err = s.SaveCheck(ctx, "alice", &id, result("com.example.a", 100, t0))
	require.NoError(t, err)
	_, err = s.SaveCheck(ctx, "alice", nil, result("com.example.b", 100, t0))
	require.NoError(t, err)

	linked, err := s.ListChecks(ctx, "alice", domain.CheckFilter{BatchID: id})
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.NotNil(t, linked[0].BatchID)
	assert.Equal(t, id, *linked[0].BatchID)
}

func TestUpsertDeviceByMAC(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	dev, created, err := s.UpsertDevice(ctx, "alice", domain.DeviceObservation{
		Name: "Pixel", IPAddress: "192.168.1.10", MACAddress: "aa:bb:cc:dd:ee:ff", DeviceType: "PHONE",
	}, t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "PHONE", dev.DeviceType)

	later := t0.Add(time.Hour)
	again, created, err := s.UpsertDevice(ctx, "alice", domain.DeviceObservation{
		IPAddress: "192.168.1.11", MACAddress: "aa:bb:cc:dd:ee:ff",
	}, later)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, dev.ID, again.ID)
	assert.Equal(t, "Pixel", again.Name)
	assert.Equal(t, "192.168.1.11", again.IPAddress)
	assert.Equal(t, "PHONE", again.DeviceType)
	assert.Equal(t, later, again.LastSeenAt)
	assert.Equal(t, t0, again.FirstSeenAt)

	// Another owner's device with the same MAC is separate.
	other, created, err := s.UpsertDevice(ctx, "bob", domain.DeviceObservation{MACAddress: "aa:bb:cc:dd:ee:ff"}, t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, dev.ID, other.ID)
	assert.Equal(t, "0.0.0.0", other.IPAddress)
	assert.Equal(t, domain.DeviceUnknown, other.DeviceType)
}

func TestUpsertDeviceByIP(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first, created, err := s.UpsertDevice(ctx, "alice", domain.DeviceObservation{IPAddress: "10.0.0.5"}, t0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, first.MACAddress)

	second, created, err := s.UpsertDevice(ctx, "alice", domain.DeviceObservation{IPAddress: "10.0.0.5", Name: "Printer", DeviceType: "IOT"}, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Printer", second.Name)
	assert.Equal(t, "IOT", second.DeviceType)

	devices, err := s.ListDevices(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestUpdateAndDeleteDevice(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	dev, _, err := s.UpsertDevice(ctx, "alice", domain.DeviceObservation{IPAddress: "10.0.0.5"}, t0)
	require.NoError(t, err)

	trusted, name := true, "Kitchen TV"
	updated, err := s.UpdateDevice(ctx, "alice", dev.ID, domain.DevicePatch{IsTrusted: &trusted, Name: &name})
	require.NoError(t, err)
	assert.True(t, updated.IsTrusted)
	assert.False(t, updated.IsBlocked)
	assert.Equal(t, "Kitchen TV", updated.Name)

	same, err := s.UpdateDevice(ctx, "alice", dev.ID, domain.DevicePatch{})
	require.NoError(t, err)
	assert.Equal(t, updated, same)

	_, err = s.UpdateDevice(ctx, "bob", dev.ID, domain.DevicePatch{IsTrusted: &trusted})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.DeleteDevice(ctx, "bob", dev.ID), domain.ErrNotFound)
	require.NoError(t, s.DeleteDevice(ctx, "alice", dev.ID))
	_, err = s.GetDevice(ctx, "alice", dev.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScanLogs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreateScanLog(ctx, domain.ScanLog{OwnerID: "alice", NetworkSSID: "home", CreatedAt: t0})
	require.NoError(t, err)
	log, err := s.CreateScanLog(ctx, domain.ScanLog{
		OwnerID:      "alice",
		NetworkSSID:  "home",
		NetworkBSSID: "aa:bb:cc:00:11:22",
		Devices:      []domain.DeviceObservation{{IPAddress: "10.0.0.5"}},
		CreatedAt:    t0.Add(time.Minute),
	})
	require.NoError(t, err)

	logs, err := s.ListScanLogs(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, log, logs[0])
	assert.Empty(t, logs[1].Devices)

	logs, err = s.ListScanLogs(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
