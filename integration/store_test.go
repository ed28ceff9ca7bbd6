//go:build database

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antygravity/internal/adapters/storage"
	"antygravity/internal/domain"
	"antygravity/internal/policy"
	"antygravity/internal/scoring"
	"antygravity/internal/workers/batchrunner"
)

// exerciseStore runs the same contract checks against any migrated backend.
func exerciseStore(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	builtin, err := policy.Builtin()
	require.NoError(t, err)
	reg, err := policy.NewRegistry("v1", builtin...)
	require.NoError(t, err)
	scorer := scoring.New(reg)

	t.Run("checks", func(t *testing.T) {
		res, err := scorer.Check(domain.AppDescriptor{
			PackageName: "com.example.cam",
			AppName:     "Cam",
			Permissions: []string{"android.permission.CAMERA"},
		}, "")
		require.NoError(t, err)

		saved, err := store.SaveCheck(ctx, "alice", nil, res)
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)

		got, err := store.GetCheck(ctx, "alice", saved.ID)
		require.NoError(t, err)
		assert.Equal(t, 85, got.Score)
		assert.Equal(t, res.Findings, got.Findings)
		assert.True(t, got.CreatedAt.Equal(res.CreatedAt))

		_, err = store.GetCheck(ctx, "bob", saved.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.GetCheck(ctx, "alice", "not-an-id")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		list, err := store.ListChecks(ctx, "alice", domain.CheckFilter{PackageName: "com.example.cam"})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("batches", func(t *testing.T) {
		id, err := store.CreateBatch(ctx, "alice", "v1", []domain.AppDescriptor{
			{PackageName: "com.example.a", AppName: "A", Permissions: []string{}},
			{PackageName: "com.example.b", AppName: "B", Permissions: []string{"android.permission.SEND_SMS"}},
		})
		require.NoError(t, err)

		b, err := store.GetBatch(ctx, "alice", id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusQueued, b.Status)
		assert.Equal(t, 2, b.Total)

		processor := batchrunner.Scorer{Jobs: store, Checks: store, Scoring: scorer}
		require.NoError(t, batchrunner.ProcessInline(ctx, store, processor, id))

		b, err = store.GetBatch(ctx, "alice", id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, b.Status)
		assert.InDelta(t, 1.0, b.Progress, 1e-9)
		require.NotNil(t, b.FinishedAt)

		checks, err := store.ListChecks(ctx, "alice", domain.CheckFilter{BatchID: id})
		require.NoError(t, err)
		assert.Len(t, checks, 2)

		_, found, err := store.ClaimNext(ctx)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("workers", func(t *testing.T) {
		id, err := store.CreateBatch(ctx, "carol", "v2", []domain.AppDescriptor{
			{PackageName: "com.example.c", AppName: "C", Permissions: []string{}},
		})
		require.NoError(t, err)

		runCtx, cancel := context.WithCancel(ctx)
		done := batchrunner.Run(runCtx, store, batchrunner.Scorer{Jobs: store, Checks: store, Scoring: scorer}, 2, 50*time.Millisecond, nil)
		require.Eventually(t, func() bool {
			b, err := store.GetBatch(ctx, "carol", id)
			return err == nil && b.Status == domain.StatusCompleted
		}, 10*time.Second, 50*time.Millisecond)
		cancel()
		<-done
	})

	t.Run("devices", func(t *testing.T) {
		seen := time.Now().UTC().Truncate(time.Microsecond)
		dev, created, err := store.UpsertDevice(ctx, "alice", domain.DeviceObservation{
			MACAddress: "aa:bb:cc:dd:ee:ff", IPAddress: "192.168.1.10", Name: "Pixel", DeviceType: "PHONE",
		}, seen)
		require.NoError(t, err)
		assert.True(t, created)

		again, created, err := store.UpsertDevice(ctx, "alice", domain.DeviceObservation{
			MACAddress: "aa:bb:cc:dd:ee:ff", IPAddress: "192.168.1.11",
		}, seen.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, dev.ID, again.ID)
		assert.Equal(t, "192.168.1.11", again.IPAddress)
		assert.Equal(t, "Pixel", again.Name)

		_, created, err = store.UpsertDevice(ctx, "alice", domain.DeviceObservation{IPAddress: "192.168.1.20"}, seen)
		require.NoError(t, err)
		assert.True(t, created)

		trusted := true
		updated, err := store.UpdateDevice(ctx, "alice", dev.ID, domain.DevicePatch{IsTrusted: &trusted})
		require.NoError(t, err)
		assert.True(t, updated.IsTrusted)

		devices, err := store.ListDevices(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, devices, 2)

		require.NoError(t, store.DeleteDevice(ctx, "alice", dev.ID))
		assert.ErrorIs(t, store.DeleteDevice(ctx, "alice", dev.ID), domain.ErrNotFound)
	})

	t.Run("scan logs", func(t *testing.T) {
		l, err := store.CreateScanLog(ctx, domain.ScanLog{
			OwnerID:     "alice",
			NetworkSSID: "home",
			Devices:     []domain.DeviceObservation{{IPAddress: "10.0.0.2"}},
			CreatedAt:   time.Now().UTC(),
		})
		require.NoError(t, err)
		logs, err := store.ListScanLogs(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, l.ID, logs[0].ID)
		assert.Len(t, logs[0].Devices, 1)
	})
}
