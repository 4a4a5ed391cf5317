// Package export writes the funding ledger out as CSV for finance teams.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"needsmatch/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
)

var header = []string{"id", "created_at", "user_id", "username", "need_id", "need_title", "quantity", "amount"}

// ObjectPutter is the slice of the S3 client the exporter needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type FundingExporter struct {
	client ObjectPutter
	bucket string
}

func NewFundingExporter(client ObjectPutter, bucket string) *FundingExporter {
	return &FundingExporter{client: client, bucket: bucket}
}

// WriteCSV renders entries with a header row and a trailing total row.
func WriteCSV(entries []*types.FundingEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	total := decimal.Zero
	for _, e := range entries {
		row := []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.UserID,
			e.Username,
			e.NeedID,
			e.NeedTitle,
			strconv.Itoa(e.Quantity),
			e.Amount.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row for record %s: %w", e.ID, err)
		}
		total = total.Add(e.Amount)
	}

	if err := w.Write([]string{"total", "", "", "", "", "", "", total.StringFixed(2)}); err != nil {
		return nil, fmt.Errorf("failed to write csv total: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

// ObjectKey names an export by the time it was taken.
func ObjectKey(at time.Time) string {
	return fmt.Sprintf("funding/%s/funding-%s.csv", at.UTC().Format("2006/01/02"), at.UTC().Format("20060102T150405Z"))
}

// Export uploads the CSV for entries and returns the object key.
func (e *FundingExporter) Export(ctx context.Context, entries []*types.FundingEntry, at time.Time) (string, error) {
	body, err := WriteCSV(entries)
	if err != nil {
		return "", err
	}

	key := ObjectKey(at)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload funding export to s3://%s/%s: %w", e.bucket, key, err)
	}

	return key, nil
}
