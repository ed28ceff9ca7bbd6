package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"antygravity/internal/domain"
)

const deviceColumns = `id, owner_id, name, ip_address, mac_address, device_type, is_trusted, is_blocked, first_seen_at, last_seen_at`

// UpsertDevice expects obs already normalised: empty fields mean "not reported".
func (s *Store) UpsertDevice(ctx context.Context, ownerID string, obs domain.DeviceObservation, seenAt time.Time) (domain.Device, bool, error) {
	var (
		dev     domain.Device
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if obs.MACAddress != "" {
			dev, err = scanDevice(tx.QueryRowContext(ctx,
				`SELECT `+deviceColumns+` FROM network_devices WHERE owner_id = ? AND mac_address = ?`+s.forUpdate(false),
				ownerID, obs.MACAddress))
		} else {
			dev, err = scanDevice(tx.QueryRowContext(ctx,
				`SELECT `+deviceColumns+` FROM network_devices
				WHERE owner_id = ? AND mac_address IS NULL AND ip_address = ?
				ORDER BY last_seen_at DESC LIMIT 1`+s.forUpdate(false),
				ownerID, orZeroIP(obs.IPAddress)))
		}
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			dev = domain.Device{
				ID:          uuid.NewString(),
				OwnerID:     ownerID,
				Name:        obs.Name,
				IPAddress:   orZeroIP(obs.IPAddress),
				MACAddress:  obs.MACAddress,
				DeviceType:  obs.DeviceType,
				FirstSeenAt: fromMicros(micros(seenAt)),
				LastSeenAt:  fromMicros(micros(seenAt)),
			}
			if dev.DeviceType == "" {
				dev.DeviceType = domain.DeviceUnknown
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO network_devices (`+deviceColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				dev.ID, ownerID, dev.Name, dev.IPAddress, nullable(dev.MACAddress), dev.DeviceType,
				false, false, micros(seenAt), micros(seenAt))
			return err
		case err != nil:
			return err
		}

		if obs.Name != "" {
			dev.Name = obs.Name
		}
		if obs.IPAddress != "" {
			dev.IPAddress = obs.IPAddress
		}
		if obs.DeviceType != "" {
			dev.DeviceType = obs.DeviceType
		}
		dev.LastSeenAt = fromMicros(micros(seenAt))
		_, err = tx.ExecContext(ctx, `
			UPDATE network_devices SET name = ?, ip_address = ?, device_type = ?, last_seen_at = ?
			WHERE id = ?`, dev.Name, dev.IPAddress, dev.DeviceType, micros(seenAt), dev.ID)
		return err
	})
	if err != nil {
		return domain.Device{}, false, err
	}
	return dev, created, nil
}

func (s *Store) ListDevices(ctx context.Context, ownerID string) ([]domain.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM network_devices WHERE owner_id = ? ORDER BY last_seen_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetDevice(ctx context.Context, ownerID, id string) (domain.Device, error) {
	d, err := scanDevice(s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM network_devices WHERE id = ? AND owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Device{}, domain.ErrNotFound
	}
	return d, err
}

func (s *Store) UpdateDevice(ctx context.Context, ownerID, id string, patch domain.DevicePatch) (domain.Device, error) {
	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.DeviceType != nil {
		sets = append(sets, "device_type = ?")
		args = append(args, *patch.DeviceType)
	}
	if patch.IsTrusted != nil {
		sets = append(sets, "is_trusted = ?")
		args = append(args, *patch.IsTrusted)
	}
	if patch.IsBlocked != nil {
		sets = append(sets, "is_blocked = ?")
		args = append(args, *patch.IsBlocked)
	}
	var dev domain.Device
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if len(sets) > 0 {
			// MySQL reports zero affected rows for no-op updates, so existence
			// is checked by the select below instead.
			q := `UPDATE network_devices SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND owner_id = ?`
			if _, err := tx.ExecContext(ctx, q, append(args, id, ownerID)...); err != nil {
				return err
			}
		}
		var err error
		dev, err = scanDevice(tx.QueryRowContext(ctx,
			`SELECT `+deviceColumns+` FROM network_devices WHERE id = ? AND owner_id = ?`, id, ownerID))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	})
	return dev, err
}

func (s *Store) DeleteDevice(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM network_devices WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDevice(row rowScanner) (domain.Device, error) {
	var (
		d                   domain.Device
		mac                 sql.NullString
		firstSeen, lastSeen int64
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &d.IPAddress, &mac, &d.DeviceType,
		&d.IsTrusted, &d.IsBlocked, &firstSeen, &lastSeen)
	if err != nil {
		return d, err
	}
	d.MACAddress = mac.String
	d.FirstSeenAt = fromMicros(firstSeen)
	d.LastSeenAt = fromMicros(lastSeen)
	return d, nil
}

func orZeroIP(ip string) string {
	if ip == "" {
		return "0.0.0.0"
	}
	return ip
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
