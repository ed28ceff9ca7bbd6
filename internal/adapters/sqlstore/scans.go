package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"antygravity/internal/domain"
)

func (s *Store) CreateScanLog(ctx context.Context, log domain.ScanLog) (domain.ScanLog, error) {
	if log.Devices == nil {
		log.Devices = []domain.DeviceObservation{}
	}
	payload, err := json.Marshal(log.Devices)
	if err != nil {
		return domain.ScanLog{}, err
	}
	log.ID = uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO network_scan_logs (id, owner_id, network_ssid, network_bssid, devices, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, log.OwnerID, log.NetworkSSID, log.NetworkBSSID, string(payload), micros(log.CreatedAt))
	if err != nil {
		return domain.ScanLog{}, err
	}
	log.CreatedAt = fromMicros(micros(log.CreatedAt))
	return log, nil
}

func (s *Store) ListScanLogs(ctx context.Context, ownerID string) ([]domain.ScanLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, network_ssid, network_bssid, devices, created_at
		FROM network_scan_logs WHERE owner_id = ?
		ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.ScanLog{}
	for rows.Next() {
		var (
			l       domain.ScanLog
			payload string
			created int64
		)
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.NetworkSSID, &l.NetworkBSSID, &payload, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &l.Devices); err != nil {
			return nil, fmt.Errorf("decode scan devices: %w", err)
		}
		l.CreatedAt = fromMicros(created)
		out = append(out, l)
	}
	return out, rows.Err()
}
