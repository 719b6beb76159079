// Package images processes and stores book cover artwork.
package images

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage keeps processed cover JPEGs on disk, one file per key.
// Thumbnails share the directory under a derived key. Safe for
// concurrent use.
type Storage struct {
	basePath string
	mu       sync.RWMutex
}

// NewStorage creates cover storage under {basePath}/covers.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	storagePath := filepath.Join(basePath, "covers")
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("create covers directory: %w", err)
	}

	return &Storage{basePath: storagePath}, nil
}

// Save writes image data under the key, replacing any previous image.
func (s *Storage) Save(id string, imgData []byte) error {
	if id == "" {
		return fmt.Errorf("book ID cannot be empty")
	}
	if len(imgData) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.Path(id), imgData, 0644); err != nil {
		return fmt.Errorf("write image file: %w", err)
	}

	return nil
}

// Get reads the image stored under the key.
func (s *Storage) Get(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("book ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cover not found for %s: %w", id, err)
		}
		return nil, fmt.Errorf("read image file: %w", err)
	}

	return data, nil
}

// Exists reports whether an image is stored under the key.
func (s *Storage) Exists(id string) bool {
	if id == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Delete removes the image under the key. A missing image is not an
// error; the caller only cares that it is gone.
func (s *Storage) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("book ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(id)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete image file: %w", err)
	}

	return nil
}

// Hash returns the hex SHA-256 of the stored image, used as the ETag
// for cover revalidation.
func (s *Storage) Hash(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("book ID cannot be empty")
	}

	data, err := s.Get(id)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// Path returns the filesystem path for a key's image.
func (s *Storage) Path(id string) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%s.jpg", id))
}
