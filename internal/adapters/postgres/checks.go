package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"antygravity/internal/domain"
)

const checkColumns = `id, user_id, batch_id, descriptor, policy_version, score, findings, explanation, suggested_action, created_at`

func (db *DB) SaveCheck(ctx context.Context, userID string, batchID *string, res domain.CheckResult) (domain.PrivacyCheck, error) {
	descriptor, err := json.Marshal(res.Descriptor)
	if err != nil {
		return domain.PrivacyCheck{}, err
	}
	findings, err := json.Marshal(res.Findings)
	if err != nil {
		return domain.PrivacyCheck{}, err
	}
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO privacy_checks (user_id, batch_id, app_package_name, app_name, descriptor,
			policy_version, score, findings, explanation, suggested_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+checkColumns,
		userID, batchID, res.Descriptor.PackageName, res.Descriptor.AppName, descriptor,
		res.PolicyVersion, res.Score, findings, res.Explanation, res.SuggestedAction, res.CreatedAt)
	return scanCheck(row)
}

func (db *DB) ListChecks(ctx context.Context, userID string, f domain.CheckFilter) ([]domain.PrivacyCheck, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if userID != "" {
		where = append(where, "user_id = "+arg(userID))
	}
	if f.PackageName != "" {
		where = append(where, "app_package_name = "+arg(f.PackageName))
	}
	if f.BatchID != "" {
		where = append(where, "batch_id = "+arg(f.BatchID))
	}
	q := `SELECT ` + checkColumns + ` FROM privacy_checks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}

	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		if invalidID(err) {
			return []domain.PrivacyCheck{}, nil
		}
		return nil, err
	}
	defer rows.Close()
	out := []domain.PrivacyCheck{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) GetCheck(ctx context.Context, userID, id string) (domain.PrivacyCheck, error) {
	c, err := scanCheck(db.Pool.QueryRow(ctx,
		`SELECT `+checkColumns+` FROM privacy_checks WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
		return domain.PrivacyCheck{}, domain.ErrNotFound
	}
	return c, err
}

func scanCheck(row rowScanner) (domain.PrivacyCheck, error) {
	var (
		c                    domain.PrivacyCheck
		descriptor, findings []byte
	)
	err := row.Scan(&c.ID, &c.UserID, &c.BatchID, &descriptor, &c.PolicyVersion, &c.Score,
		&findings, &c.Explanation, &c.SuggestedAction, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(descriptor, &c.Descriptor); err != nil {
		return c, fmt.Errorf("decode descriptor: %w", err)
	}
	if err := json.Unmarshal(findings, &c.Findings); err != nil {
		return c, fmt.Errorf("decode findings: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
