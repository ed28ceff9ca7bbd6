package httpadapter

import (
	"slices"
	"time"

	"antygravity/internal/domain"
	"antygravity/internal/policy"
)

type checkResponse struct {
	ID              string               `json:"id,omitempty"`
	Saved           bool                 `json:"saved"`
	BatchID         *string              `json:"batch_id,omitempty"`
	PackageName     string               `json:"package_name"`
	AppName         string               `json:"app_name"`
	PolicyVersion   string               `json:"policy_version"`
	Score           int                  `json:"score"`
	Findings        []domain.Finding     `json:"findings"`
	Explanation     string               `json:"explanation"`
	SuggestedAction string               `json:"suggested_action"`
	Descriptor      domain.AppDescriptor `json:"descriptor"`
	CreatedAt       time.Time            `json:"created_at"`
}

func toCheckResponse(c domain.PrivacyCheck) checkResponse {
	findings := c.Findings
	if findings == nil {
		findings = []domain.Finding{}
	}
	return checkResponse{
		ID:              c.ID,
		Saved:           c.ID != "",
		BatchID:         c.BatchID,
		PackageName:     c.Descriptor.PackageName,
		AppName:         c.Descriptor.AppName,
		PolicyVersion:   c.PolicyVersion,
		Score:           c.Score,
		Findings:        findings,
		Explanation:     c.Explanation,
		SuggestedAction: c.SuggestedAction,
		Descriptor:      c.Descriptor,
		CreatedAt:       c.CreatedAt,
	}
}

type checkListResponse struct {
	Results []checkResponse `json:"results"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type batchRequest struct {
	PolicyVersion string                 `json:"policy_version,omitempty"`
	Apps          []domain.AppDescriptor `json:"apps"`
}

type batchAcceptedResponse struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
}

type batchResponse struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Progress      float64         `json:"progress"`
	Total         int             `json:"total"`
	PolicyVersion string          `json:"policy_version"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Results       []checkResponse `json:"results,omitempty"`
}

func toBatchResponse(b domain.Batch, checks []domain.PrivacyCheck) batchResponse {
	out := batchResponse{
		ID:            b.ID,
		Status:        b.Status,
		Progress:      b.Progress,
		Total:         b.Total,
		PolicyVersion: b.PolicyVersion,
		LastError:     b.LastError,
		CreatedAt:     b.CreatedAt,
		StartedAt:     b.StartedAt,
		FinishedAt:    b.FinishedAt,
	}
	for _, c := range submissionOrder(b.Descriptors, checks) {
		out.Results = append(out.Results, toCheckResponse(c))
	}
	return out
}

// submissionOrder sorts batch results to follow the submitted descriptors.
// Repeated package names are matched to their positions in stored order.
func submissionOrder(descriptors []domain.AppDescriptor, checks []domain.PrivacyCheck) []domain.PrivacyCheck {
	positions := make(map[string][]int, len(descriptors))
	for i, d := range descriptors {
		positions[d.PackageName] = append(positions[d.PackageName], i)
	}
	type indexed struct {
		pos   int
		check domain.PrivacyCheck
	}
	ordered := make([]indexed, 0, len(checks))
	for _, c := range slices.Backward(checks) {
		pos := len(descriptors)
		if q := positions[c.Descriptor.PackageName]; len(q) > 0 {
			pos, positions[c.Descriptor.PackageName] = q[0], q[1:]
		}
		ordered = append(ordered, indexed{pos: pos, check: c})
	}
	slices.SortStableFunc(ordered, func(a, b indexed) int { return a.pos - b.pos })
	out := make([]domain.PrivacyCheck, len(ordered))
	for i, o := range ordered {
		out[i] = o.check
	}
	return out
}

type policySummary struct {
	Version       string `json:"version"`
	Description   string `json:"description,omitempty"`
	Hash          string `json:"hash"`
	Default       bool   `json:"default"`
	MaxScore      int    `json:"max_score"`
	MinScore      int    `json:"min_score"`
	PermissionCap int    `json:"permission_cap"`
	Permissions   int    `json:"permissions"`
	Trackers      int    `json:"trackers"`
}

type policiesResponse struct {
	Default     string          `json:"default"`
	PublishedAt time.Time       `json:"published_at"`
	Policies    []policySummary `json:"policies"`
}

func toPoliciesResponse(snap *policy.Snapshot) policiesResponse {
	out := policiesResponse{Default: snap.Default(), PublishedAt: snap.PublishedAt(), Policies: []policySummary{}}
	for _, p := range snap.Policies() {
		out.Policies = append(out.Policies, policySummary{
			Version:       p.Version,
			Description:   p.Description,
			Hash:          p.Hash,
			Default:       p.Version == snap.Default(),
			MaxScore:      p.MaxScore,
			MinScore:      p.MinScore,
			PermissionCap: p.PermissionCap,
			Permissions:   len(p.Permissions),
			Trackers:      len(p.Endpoints.Trackers),
		})
	}
	return out
}

type deviceResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IPAddress   string    `json:"ip_address"`
	MACAddress  string    `json:"mac_address"`
	DeviceType  string    `json:"device_type"`
	IsTrusted   bool      `json:"is_trusted"`
	IsBlocked   bool      `json:"is_blocked"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

func toDeviceResponse(d domain.Device) deviceResponse {
	return deviceResponse{
		ID:          d.ID,
		Name:        d.Name,
		IPAddress:   d.IPAddress,
		MACAddress:  d.MACAddress,
		DeviceType:  d.DeviceType,
		IsTrusted:   d.IsTrusted,
		IsBlocked:   d.IsBlocked,
		FirstSeenAt: d.FirstSeenAt,
		LastSeenAt:  d.LastSeenAt,
	}
}

type devicePatchRequest struct {
	Name       *string `json:"name"`
	DeviceType *string `json:"device_type"`
	IsTrusted  *bool   `json:"is_trusted"`
	IsBlocked  *bool   `json:"is_blocked"`
}

type scanRequest struct {
	NetworkSSID  string                     `json:"network_ssid"`
	NetworkBSSID string                     `json:"network_bssid"`
	Devices      []domain.DeviceObservation `json:"devices"`
}

type scanResponse struct {
	ID           string                     `json:"id"`
	NetworkSSID  string                     `json:"network_ssid"`
	NetworkBSSID string                     `json:"network_bssid"`
	DeviceCount  int                        `json:"device_count"`
	Devices      []domain.DeviceObservation `json:"devices"`
	CreatedAt    time.Time                  `json:"created_at"`
}

func toScanResponse(l domain.ScanLog) scanResponse {
	devices := l.Devices
	if devices == nil {
		devices = []domain.DeviceObservation{}
	}
	return scanResponse{
		ID:           l.ID,
		NetworkSSID:  l.NetworkSSID,
		NetworkBSSID: l.NetworkBSSID,
		DeviceCount:  len(devices),
		Devices:      devices,
		CreatedAt:    l.CreatedAt,
	}
}
