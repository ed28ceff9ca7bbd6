// Package export writes privacy check history to Parquet files using
// github.com/parquet-go/parquet-go.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
)

// pageSize is how many checks are read from the store per query.
const pageSize = 500

// CheckRow is one persisted privacy check flattened for analytics.
type CheckRow struct {
	// ID is the check id assigned by the store
	ID string `parquet:"id,snappy"`

	UserID string `parquet:"user_id,snappy,dict"`

	// BatchID is set for checks produced by a batch (nullable)
	BatchID *string `parquet:"batch_id,optional,snappy"`

	PackageName   string `parquet:"package_name,snappy,dict"`
	AppName       string `parquet:"app_name,snappy"`
	Category      string `parquet:"category,snappy,dict"`
	InstallSource string `parquet:"install_source,snappy,dict"`
	NetworkUsage  string `parquet:"network_usage_level,snappy,dict"`
	PolicyVersion string `parquet:"policy_version,snappy,dict"`

	// Score is within the policy bounds; lower is worse
	Score int32 `parquet:"score,snappy"`

	SuggestedAction string `parquet:"suggested_action,snappy,dict"`

	// MaxSeverity is the worst finding severity, empty when there are none
	MaxSeverity  string `parquet:"max_severity,snappy,dict"`
	FindingCount int32  `parquet:"finding_count,snappy"`

	// Findings holds the JSON-encoded ordered findings
	Findings string `parquet:"findings,snappy"`

	PermissionCount int32     `parquet:"permission_count,snappy"`
	Explanation     string    `parquet:"explanation,snappy"`
	CreatedAt       time.Time `parquet:"created_at,snappy"`
}

// NewCheckRow flattens a stored check.
func NewCheckRow(c domain.PrivacyCheck) (CheckRow, error) {
	findings := c.Findings
	if findings == nil {
		findings = []domain.Finding{}
	}
	encoded, err := json.Marshal(findings)
	if err != nil {
		return CheckRow{}, fmt.Errorf("encode findings of %s: %w", c.ID, err)
	}
	row := CheckRow{
		ID:              c.ID,
		UserID:          c.UserID,
		BatchID:         c.BatchID,
		PackageName:     c.Descriptor.PackageName,
		AppName:         c.Descriptor.AppName,
		Category:        c.Descriptor.Category,
		InstallSource:   c.Descriptor.InstallSource,
		NetworkUsage:    c.Descriptor.NetworkUsageLevel,
		PolicyVersion:   c.PolicyVersion,
		Score:           int32(c.Score),
		SuggestedAction: c.SuggestedAction,
		FindingCount:    int32(len(findings)),
		Findings:        string(encoded),
		PermissionCount: int32(len(c.Descriptor.Permissions)),
		Explanation:     c.Explanation,
		CreatedAt:       c.CreatedAt.UTC(),
	}
	// Findings are ordered worst first.
	if len(findings) > 0 {
		row.MaxSeverity = findings[0].Severity.String()
	}
	return row, nil
}

// WriteChecks writes checks as Parquet rows to w.
func WriteChecks(w io.Writer, checks []domain.PrivacyCheck) error {
	writer := parquet.NewGenericWriter[CheckRow](w)
	rows := make([]CheckRow, 0, len(checks))
	for _, c := range checks {
		row, err := NewCheckRow(c)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	return writer.Close()
}

// Checks pages through the stored checks of userID ("" for every user)
// and writes them to w. It returns the number of rows written.
func Checks(ctx context.Context, repo ports.CheckRepository, userID string, f domain.CheckFilter, w io.Writer) (int, error) {
	writer := parquet.NewGenericWriter[CheckRow](w)
	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := repo.ListChecks(ctx, userID, domain.CheckFilter{
			PackageName: f.PackageName,
			BatchID:     f.BatchID,
			Limit:       pageSize,
			Offset:      offset,
		})
		if err != nil {
			return total, fmt.Errorf("list checks: %w", err)
		}
		rows := make([]CheckRow, 0, len(page))
		for _, c := range page {
			row, err := NewCheckRow(c)
			if err != nil {
				return total, err
			}
			rows = append(rows, row)
		}
		if _, err := writer.Write(rows); err != nil {
			return total, fmt.Errorf("failed to write data to parquet file: %w", err)
		}
		total += len(rows)
		if len(page) < pageSize {
			break
		}
	}
	if err := writer.Close(); err != nil {
		return total, err
	}
	return total, nil
}

// ChecksFile is Checks into a newly created file at outputPath.
func ChecksFile(ctx context.Context, repo ports.CheckRepository, userID string, f domain.CheckFilter, outputPath string) (int, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	n, err := Checks(ctx, repo, userID, f, file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return n, err
}
