package ports

import (
	"context"

	"antygravity/internal/domain"
	"antygravity/internal/policy"
)

// Checker scores descriptors and keeps the per-user history.
type Checker interface {
	Check(ctx context.Context, userID string, d domain.AppDescriptor, policyVersion string) (domain.PrivacyCheck, error)
	List(ctx context.Context, userID string, f domain.CheckFilter) ([]domain.PrivacyCheck, error)
	Get(ctx context.Context, userID, id string) (domain.PrivacyCheck, error)
}

// Batches enqueues and tracks asynchronous batch checks.
type Batches interface {
	Enqueue(ctx context.Context, userID, policyVersion string, descriptors []domain.AppDescriptor) (batchID string, err error)
	Status(ctx context.Context, userID, batchID string) (domain.Batch, error)
}

// Network manages a user's network devices and scan history.
type Network interface {
	IngestScan(ctx context.Context, ownerID, ssid, bssid string, devices []domain.DeviceObservation) (domain.ScanLog, error)
	Scans(ctx context.Context, ownerID string) ([]domain.ScanLog, error)
	Devices(ctx context.Context, ownerID string) ([]domain.Device, error)
	Device(ctx context.Context, ownerID, id string) (domain.Device, error)
	UpdateDevice(ctx context.Context, ownerID, id string, patch domain.DevicePatch) (domain.Device, error)
	DeleteDevice(ctx context.Context, ownerID, id string) error
	MarkTrusted(ctx context.Context, ownerID, id string) (domain.Device, error)
	MarkBlocked(ctx context.Context, ownerID, id string) (domain.Device, error)
	Unmark(ctx context.Context, ownerID, id string) (domain.Device, error)
}

// Policies exposes the currently published policy snapshot.
type Policies interface {
	Snapshot() *policy.Snapshot
}
