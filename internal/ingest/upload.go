package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/models"
)

// WithDocumentsDir sets where uploaded PDFs are stored.
func WithDocumentsDir(dir string) Option {
	return func(p *Pipeline) { p.documentsDir = dir }
}

// SaveUpload writes an uploaded PDF to the documents directory under a
// generated name and records it as pending. The original filename is kept
// only as display metadata.
func (p *Pipeline) SaveUpload(ctx context.Context, r io.Reader, originalName string) (*models.Document, error) {
	if p.documentsDir == "" {
		return nil, fmt.Errorf("documents directory not configured")
	}
	if err := os.MkdirAll(p.documentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	path := filepath.Join(p.documentsDir, uuid.NewString()+".pdf")
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	written, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	doc := &models.Document{
		Filename: originalName,
		Filepath: path,
		FileSize: written,
		Status:   models.DocumentStatusPending,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	p.logger.Info("document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", originalName),
		zap.Int64("size", written))
	return doc, nil
}
