// Package blob stores uploaded media on local disk under a configured root.
// Stored names are generated, never taken from the client.
package blob

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes uploads below root and serves them under urlPrefix.
type Store struct {
	root      string
	urlPrefix string
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// New creates the root directory if needed and returns a store.
func New(root, urlPrefix string) (*Store, error) {
	if root == "" {
		root = "./media"
	}
	if urlPrefix == "" {
		urlPrefix = "/upload"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Store{root: root, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Save persists an upload and returns its public URL path. The original
// filename only contributes its extension.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}

	name := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(s.root, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return path.Join(s.urlPrefix, name), nil
}

// URLPrefix reports the public path prefix the store serves under.
func (s *Store) URLPrefix() string {
	return s.urlPrefix
}

// Handler serves stored files. Mount it at URLPrefix.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(s.urlPrefix+"/", http.FileServer(http.Dir(s.root)))
}
