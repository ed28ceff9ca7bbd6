package ports

import (
	"context"
	"time"

	"antygravity/internal/domain"
)

// CheckRepository persists privacy check results. An empty userID in
// ListChecks lists every user's checks (operator export only).
type CheckRepository interface {
	SaveCheck(ctx context.Context, userID string, batchID *string, res domain.CheckResult) (domain.PrivacyCheck, error)
	ListChecks(ctx context.Context, userID string, f domain.CheckFilter) ([]domain.PrivacyCheck, error)
	GetCheck(ctx context.Context, userID, id string) (domain.PrivacyCheck, error)
}

// BatchRepository creates batches together with their queued job row.
type BatchRepository interface {
	CreateBatch(ctx context.Context, userID, policyVersion string, descriptors []domain.AppDescriptor) (batchID string, err error)
	GetBatch(ctx context.Context, userID, batchID string) (domain.Batch, error)
}

// DeviceRepository stores network devices. UpsertDevice matches by MAC when
// present, otherwise by IP among devices without a MAC.
type DeviceRepository interface {
	UpsertDevice(ctx context.Context, ownerID string, obs domain.DeviceObservation, seenAt time.Time) (dev domain.Device, created bool, err error)
	ListDevices(ctx context.Context, ownerID string) ([]domain.Device, error)
	GetDevice(ctx context.Context, ownerID, id string) (domain.Device, error)
	UpdateDevice(ctx context.Context, ownerID, id string, patch domain.DevicePatch) (domain.Device, error)
	DeleteDevice(ctx context.Context, ownerID, id string) error
}

type ScanLogRepository interface {
	CreateScanLog(ctx context.Context, log domain.ScanLog) (domain.ScanLog, error)
	ListScanLogs(ctx context.Context, ownerID string) ([]domain.ScanLog, error)
}

// Store is everything a storage backend provides.
type Store interface {
	CheckRepository
	BatchRepository
	JobRepository
	DeviceRepository
	ScanLogRepository
	Close() error
}
