// Package storage keeps featured images for articles.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/modern-blog/internal/config"
	"github.com/rs/zerolog"
)

// Storage saves uploaded images and releases them when they are no longer
// referenced. Save returns the stable reference stored on the article.
type Storage interface {
	Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
	Release(ctx context.Context, ref string) error
}

var (
	ErrUnsupportedType = errors.New("only image files are allowed (jpeg, png, gif, webp)")
	ErrTooLarge        = errors.New("image exceeds the maximum upload size")
	ErrForeignRef      = errors.New("reference does not belong to this storage")
)

// allowedTypes maps accepted MIME types to the extension stored on disk
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// sniffLen is how much of the upload mimetype needs to see
const sniffLen = 3072

// upload is a validated image stream
type upload struct {
	ext         string
	contentType string
	body        io.Reader
}

// inspect sniffs the content type from the first bytes of r and rejects
// anything that is not an allowed image or is larger than max.
func inspect(r io.Reader, size, max int64) (*upload, error) {
	if max > 0 && size > max {
		return nil, ErrTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	ext, ok := allowedTypes[mt.String()]
	if !ok {
		return nil, ErrUnsupportedType
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	if max > 0 {
		body = &limitedReader{r: body, remaining: max}
	}

	return &upload{ext: ext, contentType: mt.String(), body: body}, nil
}

// limitedReader fails once more than remaining bytes are read, so a client
// lying about the size cannot overrun the limit.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// New builds the backend selected by configuration
func New(ctx context.Context, cfg *config.StorageConfig, log zerolog.Logger) (Storage, error) {
	switch cfg.Backend {
	case "minio":
		m, err := NewMinIO(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "local", "":
		l, err := NewLocal(cfg.UploadDir, cfg.PublicPrefix, cfg.MaxUploadSize, log)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
