// Package network records LAN scans reported by devices and manages the
// resulting device inventory.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
)

const (
	maxSSID        = 255
	maxBSSID       = 17
	maxDeviceName  = 255
	maxScanDevices = 1024
)

type Service struct {
	devices ports.DeviceRepository
	scans   ports.ScanLogRepository
	log     *slog.Logger
	now     func() time.Time
}

var _ ports.Network = (*Service)(nil)

func New(devices ports.DeviceRepository, scans ports.ScanLogRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{devices: devices, scans: scans, log: log, now: time.Now}
}

// IngestScan stores the scan and upserts every reported device. Entries with
// neither MAC nor IP are kept in the log but create no device.
func (s *Service) IngestScan(ctx context.Context, ownerID, ssid, bssid string, devices []domain.DeviceObservation) (domain.ScanLog, error) {
	verr := &domain.ValidationError{Err: domain.ErrInvalidInput}
	ssid, bssid = strings.TrimSpace(ssid), strings.TrimSpace(bssid)
	if len(ssid) > maxSSID {
		verr.Add("network_ssid", fmt.Sprintf("must be at most %d characters", maxSSID))
	}
	if len(bssid) > maxBSSID {
		verr.Add("network_bssid", fmt.Sprintf("must be at most %d characters", maxBSSID))
	}
	if len(devices) > maxScanDevices {
		verr.Add("devices", fmt.Sprintf("at most %d devices are accepted per scan", maxScanDevices))
	}
	observed := make([]domain.DeviceObservation, 0, len(devices))
	for i, d := range devices {
		nd, err := NormaliseObservation(d)
		if err != nil {
			verr.Add(fmt.Sprintf("devices[%d]", i), err.Error())
			continue
		}
		observed = append(observed, nd)
	}
	if !verr.Empty() {
		return domain.ScanLog{}, verr
	}

	now := s.now().UTC()
	scan, err := s.scans.CreateScanLog(ctx, domain.ScanLog{
		OwnerID:      ownerID,
		NetworkSSID:  ssid,
		NetworkBSSID: bssid,
		Devices:      observed,
		CreatedAt:    now,
	})
	if err != nil {
		return domain.ScanLog{}, err
	}

	var created, updated int
	for _, obs := range observed {
		if obs.MACAddress == "" && obs.IPAddress == "" {
			continue
		}
		_, isNew, err := s.devices.UpsertDevice(ctx, ownerID, obs, now)
		if err != nil {
			return scan, fmt.Errorf("upsert device: %w", err)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	s.log.InfoContext(ctx, "network scan ingested",
		"scan_id", scan.ID, "devices", len(observed), "created", created, "updated", updated)
	return scan, nil
}

// NormaliseObservation lower-cases the MAC into colon form, validates the IP
// and upper-cases the device type. Unrecognised device types are dropped.
func NormaliseObservation(d domain.DeviceObservation) (domain.DeviceObservation, error) {
	out := domain.DeviceObservation{
		Name:       strings.TrimSpace(d.Name),
		IPAddress:  strings.TrimSpace(d.IPAddress),
		MACAddress: strings.TrimSpace(d.MACAddress),
		DeviceType: strings.ToUpper(strings.TrimSpace(d.DeviceType)),
	}
	if len(out.Name) > maxDeviceName {
		return out, fmt.Errorf("name must be at most %d characters", maxDeviceName)
	}
	if out.MACAddress != "" {
		hw, err := net.ParseMAC(out.MACAddress)
		if err != nil || len(hw) != 6 {
			return out, fmt.Errorf("invalid mac_address %q", d.MACAddress)
		}
		out.MACAddress = hw.String()
	}
	if out.IPAddress != "" {
		ip := net.ParseIP(out.IPAddress)
		if ip == nil {
			return out, fmt.Errorf("invalid ip_address %q", d.IPAddress)
		}
		out.IPAddress = ip.String()
	}
	if !slices.Contains(domain.DeviceTypes, out.DeviceType) {
		out.DeviceType = ""
	}
	return out, nil
}

func (s *Service) Scans(ctx context.Context, ownerID string) ([]domain.ScanLog, error) {
	return s.scans.ListScanLogs(ctx, ownerID)
}

func (s *Service) Devices(ctx context.Context, ownerID string) ([]domain.Device, error) {
	return s.devices.ListDevices(ctx, ownerID)
}

func (s *Service) Device(ctx context.Context, ownerID, id string) (domain.Device, error) {
	return s.devices.GetDevice(ctx, ownerID, id)
}

func (s *Service) UpdateDevice(ctx context.Context, ownerID, id string, patch domain.DevicePatch) (domain.Device, error) {
	verr := &domain.ValidationError{Err: domain.ErrInvalidInput}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if len(name) > maxDeviceName {
			verr.Add("name", fmt.Sprintf("must be at most %d characters", maxDeviceName))
		}
		patch.Name = &name
	}
	if patch.DeviceType != nil {
		t := strings.ToUpper(strings.TrimSpace(*patch.DeviceType))
		if !slices.Contains(domain.DeviceTypes, t) {
			verr.Add("device_type", fmt.Sprintf("must be one of %s", strings.Join(domain.DeviceTypes, ", ")))
		}
		patch.DeviceType = &t
	}
	if patch.IsTrusted != nil && patch.IsBlocked != nil && *patch.IsTrusted && *patch.IsBlocked {
		verr.Add("is_blocked", "a device cannot be both trusted and blocked")
	}
	if !verr.Empty() {
		return domain.Device{}, verr
	}
	// Trusting clears a block and blocking clears trust.
	no := false
	if patch.IsTrusted != nil && *patch.IsTrusted && patch.IsBlocked == nil {
		patch.IsBlocked = &no
	}
	if patch.IsBlocked != nil && *patch.IsBlocked && patch.IsTrusted == nil {
		patch.IsTrusted = &no
	}
	return s.devices.UpdateDevice(ctx, ownerID, id, patch)
}

func (s *Service) DeleteDevice(ctx context.Context, ownerID, id string) error {
	return s.devices.DeleteDevice(ctx, ownerID, id)
}

// MarkTrusted trusts a device and clears any block.
func (s *Service) MarkTrusted(ctx context.Context, ownerID, id string) (domain.Device, error) {
	return s.setMarks(ctx, ownerID, id, true, false)
}

// MarkBlocked blocks a device and clears any trust.
func (s *Service) MarkBlocked(ctx context.Context, ownerID, id string) (domain.Device, error) {
	return s.setMarks(ctx, ownerID, id, false, true)
}

func (s *Service) Unmark(ctx context.Context, ownerID, id string) (domain.Device, error) {
	return s.setMarks(ctx, ownerID, id, false, false)
}

func (s *Service) setMarks(ctx context.Context, ownerID, id string, trusted, blocked bool) (domain.Device, error) {
	return s.devices.UpdateDevice(ctx, ownerID, id, domain.DevicePatch{IsTrusted: &trusted, IsBlocked: &blocked})
}
