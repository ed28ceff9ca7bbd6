package domain

import "time"

// Core domain models used internally. HTTP request/response shapes live in
// internal/adapters/http; keep these decoupled where helpful.

// Network usage levels reported by the device agent.
const (
	UsageLow    = "LOW"
	UsageMedium = "MEDIUM"
	UsageHigh   = "HIGH"
)

// Suggested actions attached to a check result.
const (
	ActionKeep              = "KEEP"
	ActionReview            = "REVIEW"
	ActionConsiderUninstall = "CONSIDER_UNINSTALL"
)

// AppDescriptor identifies one installed application. Owned by the caller.
type AppDescriptor struct {
	PackageName       string   `json:"package_name"`
	AppName           string   `json:"app_name"`
	Category          string   `json:"category,omitempty"`
	Permissions       []string `json:"permissions"`
	NetworkUsageLevel string   `json:"network_usage_level,omitempty"`
	Endpoints         []string `json:"endpoints,omitempty"`
	InstallSource     string   `json:"install_source,omitempty"`
}

// Finding is one flagged privacy concern.
type Finding struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
}

// CheckResult is the outcome of scoring one descriptor under one policy version.
type CheckResult struct {
	Descriptor      AppDescriptor `json:"descriptor"`
	PolicyVersion   string        `json:"policy_version"`
	Score           int           `json:"score"`
	Findings        []Finding     `json:"findings"`
	Explanation     string        `json:"explanation"`
	SuggestedAction string        `json:"suggested_action"`
	CreatedAt       time.Time     `json:"created_at"`
}

// PrivacyCheck is a persisted CheckResult.
type PrivacyCheck struct {
	ID      string
	UserID  string
	BatchID *string
	CheckResult
}

// CheckFilter narrows a per-user check listing.
type CheckFilter struct {
	PackageName string
	BatchID     string
	Limit       int
	Offset      int
}

// Batch statuses; jobs share the same vocabulary.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Batch struct {
	ID            string
	UserID        string
	PolicyVersion string
	Status        string // queued|running|completed|failed
	Progress      float64
	Total         int
	Descriptors   []AppDescriptor
	LastError     string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// Device types accepted for network devices.
var DeviceTypes = []string{"PHONE", "LAPTOP", "TABLET", "TV", "CONSOLE", "ROUTER", "IOT", "OTHER", "UNKNOWN"}

const DeviceUnknown = "UNKNOWN"

type Device struct {
	ID          string
	OwnerID     string
	Name        string
	IPAddress   string
	MACAddress  string
	DeviceType  string
	IsTrusted   bool
	IsBlocked   bool
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// DeviceObservation is one device entry reported inside a network scan.
type DeviceObservation struct {
	Name       string `json:"name,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
}

// DevicePatch carries optional field updates; nil means unchanged.
type DevicePatch struct {
	Name       *string
	DeviceType *string
	IsTrusted  *bool
	IsBlocked  *bool
}

type ScanLog struct {
	ID           string
	OwnerID      string
	NetworkSSID  string
	NetworkBSSID string
	Devices      []DeviceObservation
	CreatedAt    time.Time
}
