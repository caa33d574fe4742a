package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// multipartThreshold is the payload size above which uploads switch to the
// multipart manager.
const multipartThreshold = 8 * 1024 * 1024

// ArbArchiveStore is the slice of domain.ArbStore the archiver needs.
type ArbArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ArbRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver. It serializes old arbitrage
// records to JSONL, uploads them, confirms the object exists, and only then
// deletes the rows from the primary store.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	arb    ArbArchiveStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates a new ArchiveImpl. reader may be nil to skip the
// post-upload check.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	arb ArbArchiveStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		arb:    arb,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveArbHistory moves every record detected before the cutoff into
// archive/arb_history/YYYY-MM/<cutoff>.jsonl and returns how many were moved.
func (a *ArchiveImpl) ArchiveArbHistory(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.arb.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive arb history query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive arb history marshal: %w", err)
	}

	path := archivePath("arb_history", before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive arb history upload: %w", err)
	}

	if a.reader != nil {
		ok, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive arb history verify: %w", err)
		}
		if !ok {
			return 0, fmt.Errorf("s3blob: archive arb history verify %s: %w", path, domain.ErrNotFound)
		}
	}

	deleted, err := a.arb.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive arb history delete: %w", err)
	}

	count := int64(len(recs))
	if deleted != count {
		a.logger.Warn("archive row count mismatch",
			slog.Int64("archived", count),
			slog.Int64("deleted", deleted),
		)
	}

	a.logger.Info("arb history archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.arb_history", map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive arb history audit log: %w", err)
		}
	}

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/arb_history/2026-01/20260115T000000Z.jsonl
func archivePath(kind string, before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01"), before.Format("20060102T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
