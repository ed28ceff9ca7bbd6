package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"antygravity/internal/domain"
)

func (db *DB) CreateScanLog(ctx context.Context, log domain.ScanLog) (domain.ScanLog, error) {
	if log.Devices == nil {
		log.Devices = []domain.DeviceObservation{}
	}
	payload, err := json.Marshal(log.Devices)
	if err != nil {
		return domain.ScanLog{}, err
	}
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO network_scan_logs (owner_id, network_ssid, network_bssid, devices, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, log.OwnerID, log.NetworkSSID, log.NetworkBSSID, payload, log.CreatedAt).Scan(&log.ID)
	return log, err
}

func (db *DB) ListScanLogs(ctx context.Context, ownerID string) ([]domain.ScanLog, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, owner_id, network_ssid, network_bssid, devices, created_at
		FROM network_scan_logs WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.ScanLog{}
	for rows.Next() {
		var (
			l       domain.ScanLog
			payload []byte
		)
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.NetworkSSID, &l.NetworkBSSID, &payload, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &l.Devices); err != nil {
			return nil, fmt.Errorf("decode scan devices: %w", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}
