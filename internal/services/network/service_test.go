package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antygravity/internal/adapters/sqlstore"
	"antygravity/internal/domain"
)

func newService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.SQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	s := New(store, store, nil)
	s.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestIngestScanUpsertsDevices(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	scan, err := s.IngestScan(ctx, "alice", "home", "AA:BB:CC:00:11:22", []domain.DeviceObservation{
		{Name: "Pixel", IPAddress: "192.168.1.10", MACAddress: "AA-BB-CC-DD-EE-FF", DeviceType: "phone"},
		{IPAddress: "192.168.1.20", DeviceType: "fridge"},
		{Name: "ghost"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, scan.ID)
	assert.Len(t, scan.Devices, 3)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", scan.Devices[0].MACAddress)

	devices, err := s.Devices(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, devices, 2)

	byIP := map[string]domain.Device{}
	for _, d := range devices {
		byIP[d.IPAddress] = d
	}
	assert.Equal(t, "PHONE", byIP["192.168.1.10"].DeviceType)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", byIP["192.168.1.10"].MACAddress)
	assert.Equal(t, domain.DeviceUnknown, byIP["192.168.1.20"].DeviceType)

	// Same MAC from a new IP updates in place.
	_, err = s.IngestScan(ctx, "alice", "home", "", []domain.DeviceObservation{
		{IPAddress: "192.168.1.11", MACAddress: "aa:bb:cc:dd:ee:ff"},
	})
	require.NoError(t, err)
	devices, err = s.Devices(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	scans, err := s.Scans(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, scans, 2)

	other, err := s.Devices(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestIngestScanValidation(t *testing.T) {
	s := newService(t)
	_, err := s.IngestScan(context.Background(), "alice", "", "", []domain.DeviceObservation{
		{IPAddress: "999.1.1.1"},
		{MACAddress: "not-a-mac"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "devices[0]")
	assert.Contains(t, verr.Fields, "devices[1]")

	scans, err := s.Scans(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestMarks(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.IngestScan(ctx, "alice", "", "", []domain.DeviceObservation{{IPAddress: "10.0.0.2"}})
	require.NoError(t, err)
	devices, err := s.Devices(ctx, "alice")
	require.NoError(t, err)
	id := devices[0].ID

	d, err := s.MarkTrusted(ctx, "alice", id)
	require.NoError(t, err)
	assert.True(t, d.IsTrusted)
	assert.False(t, d.IsBlocked)

	d, err = s.MarkBlocked(ctx, "alice", id)
	require.NoError(t, err)
	assert.False(t, d.IsTrusted)
	assert.True(t, d.IsBlocked)

	d, err = s.Unmark(ctx, "alice", id)
	require.NoError(t, err)
	assert.False(t, d.IsTrusted)
	assert.False(t, d.IsBlocked)

	_, err = s.MarkTrusted(ctx, "bob", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateDeviceValidation(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.IngestScan(ctx, "alice", "", "", []domain.DeviceObservation{{IPAddress: "10.0.0.2"}})
	require.NoError(t, err)
	devices, err := s.Devices(ctx, "alice")
	require.NoError(t, err)
	id := devices[0].ID

	tv := "tv"
	d, err := s.UpdateDevice(ctx, "alice", id, domain.DevicePatch{DeviceType: &tv})
	require.NoError(t, err)
	assert.Equal(t, "TV", d.DeviceType)

	bad := "toaster"
	_, err = s.UpdateDevice(ctx, "alice", id, domain.DevicePatch{DeviceType: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	yes := true
	_, err = s.UpdateDevice(ctx, "alice", id, domain.DevicePatch{IsTrusted: &yes, IsBlocked: &yes})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, s.DeleteDevice(ctx, "alice", id))
	_, err = s.Device(ctx, "alice", id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateDeviceKeepsMarksExclusive(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	_, err := s.IngestScan(ctx, "alice", "", "", []domain.DeviceObservation{{IPAddress: "10.0.0.3"}})
	require.NoError(t, err)
	devices, err := s.Devices(ctx, "alice")
	require.NoError(t, err)
	id := devices[0].ID

	_, err = s.MarkBlocked(ctx, "alice", id)
	require.NoError(t, err)

	yes := true
	d, err := s.UpdateDevice(ctx, "alice", id, domain.DevicePatch{IsTrusted: &yes})
	require.NoError(t, err)
	assert.True(t, d.IsTrusted)
	assert.False(t, d.IsBlocked)

	d, err = s.UpdateDevice(ctx, "alice", id, domain.DevicePatch{IsBlocked: &yes})
	require.NoError(t, err)
	assert.False(t, d.IsTrusted)
	assert.True(t, d.IsBlocked)

	// Clearing one mark leaves the other alone.
	no := false
	d, err = s.UpdateDevice(ctx, "alice", id, domain.DevicePatch{IsTrusted: &no})
	require.NoError(t, err)
	assert.False(t, d.IsTrusted)
	assert.True(t, d.IsBlocked)

	stored, err := s.Device(ctx, "alice", id)
	require.NoError(t, err)
	assert.False(t, stored.IsTrusted && stored.IsBlocked)
}

func TestNormaliseObservation(t *testing.T) {
	got, err := NormaliseObservation(domain.DeviceObservation{IPAddress: " ::ffff:10.0.0.1 ", MACAddress: "0A:1B:2C:3D:4E:5F", DeviceType: " laptop "})
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceObservation{IPAddress: "10.0.0.1", MACAddress: "0a:1b:2c:3d:4e:5f", DeviceType: "LAPTOP"}, got)

	_, err = NormaliseObservation(domain.DeviceObservation{MACAddress: "00:00:5e:00:53:01:02:03"})
	assert.Error(t, err)
}
