// Package ingest feeds documents into the engine from the local filesystem:
// it plays the upload collaborator, creating document rows and enqueueing
// processing jobs.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/async"
	"github.com/ledgerline/receipt-recon/internal/entity"
	"github.com/ledgerline/receipt-recon/internal/repository"
)

// Result reports one ingestion attempt.
type Result struct {
	DocumentID uuid.UUID
	Path       string
	Deduped    bool // identical content was already submitted
}

// FSIngestor reads documents from the local filesystem. Content dedup lives
// in the store, so resubmissions are recognized across process restarts.
type FSIngestor struct {
	docs        repository.DocumentRepository
	queue       async.Queue
	logger      *slog.Logger
	allowedExts map[string]struct{}
}

func NewFSIngestor(docs repository.DocumentRepository, queue async.Queue, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		docs:        docs,
		queue:       queue,
		logger:      logger,
		allowedExts: constants.AllowedExtensions,
	}
}

// IngestPath registers one file as an uploaded document and queues it for
// processing. Resubmitting identical content is a deduplicated no-op, not
// an error.
func (i *FSIngestor) IngestPath(ctx context.Context, profileID uuid.UUID, path string) (Result, error) {
	var out Result

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, err
	}
	out.Path = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if _, ok := i.allowedExts[ext]; !ok {
		return out, fmt.Errorf("unsupported or missing extension %q", ext)
	}

	hash, err := hashFile(abs)
	if err != nil {
		return out, err
	}

	doc := &entity.Document{
		ID:          uuid.New(),
		ProfileID:   profileID,
		Filename:    filepath.Base(abs),
		ContentHash: hash,
		Status:      constants.DocumentUploaded,
		UploadedAt:  time.Now().UTC(),
	}
	stored, duplicated, err := i.docs.CreateIfAbsent(ctx, doc)
	if err != nil {
		return out, err
	}
	out.DocumentID = stored.ID
	if duplicated {
		out.Deduped = true
		i.logger.Info("duplicate content, skipping", "path", abs, "document_id", stored.ID)
		return out, nil
	}

	if err := i.queue.Enqueue(ctx, async.Job{
		ProfileID:   profileID,
		DocumentID:  stored.ID,
		Path:        abs,
		Filename:    stored.Filename,
		SubmittedAt: time.Now().UTC(),
	}); err != nil {
		return out, err
	}

	i.logger.Info("document ingested", "path", abs, "document_id", stored.ID)
	return out, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
