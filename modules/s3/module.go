// Package s3 uploads files to pre-signed object storage URLs.
package s3

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"resty.dev/v3"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is shared by all uploads. Created on Register when nil.
	Client *resty.Client
}

// Register registers io.upload.
func (m *Module) Register(b *registry.Builder) error {
	if m.Client == nil {
		m.Client = resty.New()
	}
	return b.Register("io.upload", "(string, string) -> bool", registry.Func2(m.upload), registry.Impure(),
		registry.WithDoc("Uploads a local file with a PUT to a pre-signed URL."))
}

// upload sends the file at sourcePath to uploadURL.
func (m *Module) upload(ctx context.Context, sourcePath, uploadURL string) (bool, error) {
	logger := ctxlog.FromContext(ctx).With("action", "upload")

	file, err := os.Open(sourcePath)
	if err != nil {
		return false, fmt.Errorf("failed to open source file '%s': %w", sourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to get file stats for '%s': %w", sourcePath, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(sourcePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	logger.Info("Uploading file to S3", "source", sourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := m.Client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(file).
		Put(uploadURL)
	if err != nil {
		return false, fmt.Errorf("failed to execute S3 upload request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("S3 upload failed with status: %s", resp.Status())
	}

	logger.Info("Successfully uploaded file", "status", resp.Status())
	return true, nil
}
