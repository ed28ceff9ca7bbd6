package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"antygravity/internal/domain"
)

const checkColumns = `id, user_id, batch_id, descriptor, policy_version, score, findings, explanation, suggested_action, created_at`

func (s *Store) SaveCheck(ctx context.Context, userID string, batchID *string, res domain.CheckResult) (domain.PrivacyCheck, error) {
	descriptor, err := json.Marshal(res.Descriptor)
	if err != nil {
		return domain.PrivacyCheck{}, err
	}
	findings, err := json.Marshal(res.Findings)
	if err != nil {
		return domain.PrivacyCheck{}, err
	}
	c := domain.PrivacyCheck{ID: uuid.NewString(), UserID: userID, BatchID: batchID, CheckResult: res}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO privacy_checks (id, user_id, batch_id, app_package_name, app_name, descriptor,
			policy_version, score, findings, explanation, suggested_action, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, userID, batchID, res.Descriptor.PackageName, res.Descriptor.AppName, string(descriptor),
		res.PolicyVersion, res.Score, string(findings), res.Explanation, res.SuggestedAction, micros(res.CreatedAt))
	if err != nil {
		return domain.PrivacyCheck{}, err
	}
	c.CreatedAt = fromMicros(micros(res.CreatedAt))
	return c, nil
}

func (s *Store) ListChecks(ctx context.Context, userID string, f domain.CheckFilter) ([]domain.PrivacyCheck, error) {
	var (
		where []string
		args  []any
	)
	if userID != "" {
		where = append(where, "user_id = ?")
		args = append(args, userID)
	}
	if f.PackageName != "" {
		where = append(where, "app_package_name = ?")
		args = append(args, f.PackageName)
	}
	if f.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, f.BatchID)
	}
	q := `SELECT ` + checkColumns + ` FROM privacy_checks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"
	switch {
	case f.Limit > 0:
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	case f.Offset > 0:
		// Both engines need a LIMIT before OFFSET.
		q += " LIMIT ? OFFSET ?"
		args = append(args, int64(1<<62), f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
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

func (s *Store) GetCheck(ctx context.Context, userID, id string) (domain.PrivacyCheck, error) {
	c, err := scanCheck(s.db.QueryRowContext(ctx,
		`SELECT `+checkColumns+` FROM privacy_checks WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PrivacyCheck{}, domain.ErrNotFound
	}
	return c, err
}

func scanCheck(row rowScanner) (domain.PrivacyCheck, error) {
	var (
		c                    domain.PrivacyCheck
		batchID              sql.NullString
		descriptor, findings string
		created              int64
	)
	err := row.Scan(&c.ID, &c.UserID, &batchID, &descriptor, &c.PolicyVersion, &c.Score,
		&findings, &c.Explanation, &c.SuggestedAction, &created)
	if err != nil {
		return c, err
	}
	if batchID.Valid {
		c.BatchID = &batchID.String
	}
	if err := json.Unmarshal([]byte(descriptor), &c.Descriptor); err != nil {
		return c, fmt.Errorf("decode descriptor: %w", err)
	}
	if err := json.Unmarshal([]byte(findings), &c.Findings); err != nil {
		return c, fmt.Errorf("decode findings: %w", err)
	}
	c.CreatedAt = fromMicros(created)
	return c, nil
}
