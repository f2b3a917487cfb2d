// Package cardstore persists encoded cards and hands back the reference
// returned to clients.
package cardstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrCardExists is returned when a card name is already taken.
var ErrCardExists = errors.New("card already exists")

// Store saves a PNG under name and returns its reference. Remove takes a
// reference returned by Save; removing a missing card is not an error.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Remove(ctx context.Context, ref string) error
}

// nameOf recovers the card file name from a path or URL reference.
func nameOf(ref string) (string, error) {
	name := path.Base(filepath.ToSlash(ref))
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("invalid card reference %q", ref)
	}
	return name, nil
}

// CardsPath is the URL segment under the static prefix where local cards are served.
const CardsPath = "/generated_cards"

// LocalStore writes cards to a directory. With a base URL set the reference
// is a public URL, otherwise it is the file path.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed. publicBase is "{public_base_url}{static_prefix}"
// or empty for path references.
func NewLocalStore(dir, publicBase string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(publicBase, "/")}, nil
}

// Dir returns the output directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save never overwrites an existing file.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid card name %q", name)
	}
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrCardExists, name)
		}
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	if s.baseURL == "" {
		return path, nil
	}
	return s.baseURL + CardsPath + "/" + name, nil
}

func (s *LocalStore) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := nameOf(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
