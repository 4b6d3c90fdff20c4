package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// Narrow store interfaces the archiver actually needs. The Postgres stores
// satisfy them implicitly through their ListBefore methods.

// AuditArchiveStore reads audit entries for archival.
type AuditArchiveStore interface {
	// ListBefore returns audit entries recorded strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error)
}

// CommitmentArchiveStore reads terminal commitments for archival.
type CommitmentArchiveStore interface {
	// ListTerminalBefore returns commitments that reached a terminal status
	// and whose expiry falls strictly before the cutoff.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Commitment, error)
}

// ArchiveImpl implements domain.Archiver. It queries the stores for cold
// records, serializes them to JSONL, and uploads the result to blob storage.
// Archived records stay in the primary store; pruning is a separate step run
// only after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	audit       AuditArchiveStore
	commitments CommitmentArchiveStore
	auditLog    domain.AuditStore
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	audit AuditArchiveStore,
	commitments CommitmentArchiveStore,
	auditLog domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		audit:       audit,
		commitments: commitments,
		auditLog:    auditLog,
	}
}

// ArchiveAudit exports audit entries recorded before the cutoff to
// archive/audit/YYYY-MM.jsonl and records the export itself in the audit
// log. It returns the number of exported entries.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(entries))
	if err := a.auditLog.Log(ctx, "archive.audit", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive audit log: %w", err)
	}
	return count, nil
}

// ArchiveCommitments exports terminal commitments whose expiry precedes the
// cutoff to archive/commitments/YYYY-MM.jsonl. It returns the number of
// exported records.
func (a *ArchiveImpl) ArchiveCommitments(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.commitments.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive commitments query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive commitments marshal: %w", err)
	}

	path := archivePath("commitments", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive commitments upload: %w", err)
	}

	count := int64(len(records))
	if err := a.auditLog.Log(ctx, "archive.commitments", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive commitments log: %w", err)
	}
	return count, nil
}

// archivePath builds the object key, partitioned by the cutoff's year-month:
//
//	archive/audit/2026-01.jsonl
//	archive/commitments/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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

var _ domain.Archiver = (*ArchiveImpl)(nil)
