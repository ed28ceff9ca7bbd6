package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"antygravity/internal/domain"
)

const deviceColumns = `id, owner_id, name, ip_address, mac_address, device_type, is_trusted, is_blocked, first_seen_at, last_seen_at`

// UpsertDevice expects obs already normalised: empty fields mean "not reported".
func (db *DB) UpsertDevice(ctx context.Context, ownerID string, obs domain.DeviceObservation, seenAt time.Time) (domain.Device, bool, error) {
	ip := obs.IPAddress
	if ip == "" {
		ip = "0.0.0.0"
	}
	deviceType := obs.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceUnknown
	}

	if obs.MACAddress != "" {
		var (
			dev     domain.Device
			created bool
		)
		row := db.Pool.QueryRow(ctx, `
			INSERT INTO network_devices (owner_id, name, ip_address, mac_address, device_type, first_seen_at, last_seen_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (owner_id, mac_address) DO UPDATE SET
				name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE network_devices.name END,
				ip_address = CASE WHEN $7 THEN EXCLUDED.ip_address ELSE network_devices.ip_address END,
				device_type = CASE WHEN $8 THEN EXCLUDED.device_type ELSE network_devices.device_type END,
				last_seen_at = EXCLUDED.last_seen_at
			RETURNING `+deviceColumns+`, (xmax = 0)`,
			ownerID, obs.Name, ip, obs.MACAddress, deviceType, seenAt, obs.IPAddress != "", obs.DeviceType != "")
		err := scanDeviceInto(row, &dev, &created)
		return dev, created, err
	}

	var (
		dev     domain.Device
		created bool
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
			SELECT id FROM network_devices
			WHERE owner_id = $1 AND mac_address IS NULL AND ip_address = $2
			ORDER BY last_seen_at DESC
			LIMIT 1
			FOR UPDATE
		`, ownerID, ip).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			created = true
			return scanDeviceInto(tx.QueryRow(ctx, `
				INSERT INTO network_devices (owner_id, name, ip_address, device_type, first_seen_at, last_seen_at)
				VALUES ($1, $2, $3, $4, $5, $5)
				RETURNING `+deviceColumns,
				ownerID, obs.Name, ip, deviceType, seenAt), &dev)
		}
		if err != nil {
			return err
		}
		return scanDeviceInto(tx.QueryRow(ctx, `
			UPDATE network_devices SET
				name = CASE WHEN $2 <> '' THEN $2 ELSE name END,
				device_type = CASE WHEN $3 THEN $4 ELSE device_type END,
				last_seen_at = $5
			WHERE id = $1
			RETURNING `+deviceColumns,
			id, obs.Name, obs.DeviceType != "", deviceType, seenAt), &dev)
	})
	return dev, created, err
}

func (db *DB) ListDevices(ctx context.Context, ownerID string) ([]domain.Device, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+deviceColumns+` FROM network_devices WHERE owner_id = $1 ORDER BY last_seen_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Device{}
	for rows.Next() {
		var d domain.Device
		if err := scanDeviceInto(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) GetDevice(ctx context.Context, ownerID, id string) (domain.Device, error) {
	var d domain.Device
	err := scanDeviceInto(db.Pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM network_devices WHERE id = $1 AND owner_id = $2`, id, ownerID), &d)
	return d, notFound(err)
}

func (db *DB) UpdateDevice(ctx context.Context, ownerID, id string, patch domain.DevicePatch) (domain.Device, error) {
	var d domain.Device
	err := scanDeviceInto(db.Pool.QueryRow(ctx, `
		UPDATE network_devices SET
			name = COALESCE($3, name),
			device_type = COALESCE($4, device_type),
			is_trusted = COALESCE($5, is_trusted),
			is_blocked = COALESCE($6, is_blocked)
		WHERE id = $1 AND owner_id = $2
		RETURNING `+deviceColumns,
		id, ownerID, patch.Name, patch.DeviceType, patch.IsTrusted, patch.IsBlocked), &d)
	return d, notFound(err)
}

func (db *DB) DeleteDevice(ctx context.Context, ownerID, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM network_devices WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return notFound(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanDeviceInto reads deviceColumns plus any trailing extra columns.
func scanDeviceInto(row rowScanner, d *domain.Device, extra ...any) error {
	var mac *string
	dest := append([]any{&d.ID, &d.OwnerID, &d.Name, &d.IPAddress, &mac, &d.DeviceType,
		&d.IsTrusted, &d.IsBlocked, &d.FirstSeenAt, &d.LastSeenAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if mac != nil {
		d.MACAddress = *mac
	}
	d.FirstSeenAt = d.FirstSeenAt.UTC()
	d.LastSeenAt = d.LastSeenAt.UTC()
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
		return domain.ErrNotFound
	}
	return err
}
