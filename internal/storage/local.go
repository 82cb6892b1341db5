package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Local stores images in a directory served under a public URL prefix
type Local struct {
	dir     string
	prefix  string
	maxSize int64
	log     zerolog.Logger
}

// NewLocal creates the upload directory if needed
func NewLocal(dir, prefix string, maxSize int64, log zerolog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{
		dir:     dir,
		prefix:  strings.TrimSuffix(prefix, "/"),
		maxSize: maxSize,
		log:     log.With().Str("component", "storage").Str("backend", "local").Logger(),
	}, nil
}

// Dir returns the directory served as static files
func (s *Local) Dir() string { return s.dir }


func (s *Local) Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	up, err := inspect(r, size, s.maxSize)
	if err != nil {
		return "", err
	}

	name := "featuredImage-" + uuid.New().String() + up.ext
	dst := filepath.Join(s.dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, up.body); err != nil {
		f.Close()
		os.Remove(dst)
		if errors.Is(err, ErrTooLarge) {
			return "", ErrTooLarge
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	s.log.Debug().Str("file", name).Str("original", filename).Msg("Image saved")
	return path.Join(s.prefix, name), nil
}

func (s *Local) Release(ctx context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.prefix+"/") {
		return ErrForeignRef
	}
	name := filepath.Base(strings.TrimPrefix(ref, s.prefix+"/"))
	if name == "." || name == "/" {
		return ErrForeignRef
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
