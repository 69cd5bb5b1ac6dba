package parley

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/hay-kot/criterio"

	"github.com/colonyops/parley/internal/core/chat"
)

// MediaURLPrefix is prepended to stored media names in returned URLs.
const MediaURLPrefix = "/media/"

var mediaName = regexp.MustCompile(`^[0-9a-f-]{36}\.bin$`)

// ErrMediaNotFound is returned by Open for unknown or malformed names.
var ErrMediaNotFound = errors.New("media not found")

// MediaStore saves uploaded blobs on the local filesystem.
type MediaStore struct {
	dir     string
	maxSize int64
}

func NewMediaStore(dir string, maxSize int64) *MediaStore {
	return &MediaStore{dir: dir, maxSize: maxSize}
}

// Save writes r to a new file and returns its URL. Uploads larger than the
// configured limit are rejected with chat.ErrInvalidInput and leave no file
// behind.
func (m *MediaStore) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := uuid.NewString() + ".bin"
	path := filepath.Join(m.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(contextReader{ctx, r}, m.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > m.maxSize {
		err = chat.Invalid(criterio.NewFieldErrors("body", fmt.Errorf("exceeds %d bytes", m.maxSize)))
	}
	if err == nil && n == 0 {
		err = chat.Invalid(criterio.NewFieldErrors("body", fmt.Errorf("is empty")))
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return MediaURLPrefix + name, nil
}

// Open returns the stored blob called name.
func (m *MediaStore) Open(name string) (*os.File, error) {
	if !mediaName.MatchString(name) {
		return nil, ErrMediaNotFound
	}
	f, err := os.Open(filepath.Join(m.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return f, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
