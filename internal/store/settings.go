package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

const (
	readerSettingsKey      = "settings:reader"
	bookSettingsPrefix     = "settings:book:"
	libraryPathSettingsKey = "settings:library_path"
)

// Settings Operations
//
// Global reader settings apply to every book; a per-book override, when
// present, wins in full (no field-level merging).

// GetReaderSettings returns the global reader settings, or defaults if
// none have been saved yet.
func (s *Store) GetReaderSettings(ctx context.Context) (*domain.ReaderSettings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var settings domain.ReaderSettings
	err := s.get([]byte(readerSettingsKey), &settings)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.DefaultReaderSettings(), nil
		}
		return nil, fmt.Errorf("get reader settings: %w", err)
	}
	return &settings, nil
}

// SaveReaderSettings stores the global reader settings.
func (s *Store) SaveReaderSettings(ctx context.Context, settings *domain.ReaderSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.set([]byte(readerSettingsKey), settings); err != nil {
		return fmt.Errorf("save reader settings: %w", err)
	}
	return nil
}

// GetBookSettings returns the per-book settings override, or nil when the
// book uses the global settings.
func (s *Store) GetBookSettings(ctx context.Context, bookID string) (*domain.ReaderSettings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var settings domain.ReaderSettings
	err := s.get([]byte(bookSettingsPrefix+bookID), &settings)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book settings: %w", err)
	}
	return &settings, nil
}

// SaveBookSettings stores a per-book settings override.
func (s *Store) SaveBookSettings(ctx context.Context, bookID string, settings *domain.ReaderSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.set([]byte(bookSettingsPrefix+bookID), settings); err != nil {
		return fmt.Errorf("save book settings: %w", err)
	}
	return nil
}

// DeleteBookSettings removes a per-book settings override.
// Deleting a missing override is not an error.
func (s *Store) DeleteBookSettings(ctx context.Context, bookID string) error {
	if err := s.delete([]byte(bookSettingsPrefix + bookID)); err != nil {
		return fmt.Errorf("delete book settings: %w", err)
	}
	return nil
}

// EffectiveSettings returns the settings that apply to the given book:
// the per-book override when one exists, the global settings otherwise.
func (s *Store) EffectiveSettings(ctx context.Context, bookID string) (*domain.ReaderSettings, error) {
	override, err := s.GetBookSettings(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if override != nil {
		return override, nil
	}
	return s.GetReaderSettings(ctx)
}

// GetLibraryPath returns the configured library path, or empty if the
// library has not been set up yet.
func (s *Store) GetLibraryPath(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var path string
	err := s.get([]byte(libraryPathSettingsKey), &path)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get library path: %w", err)
	}
	return path, nil
}

// SaveLibraryPath stores the library path chosen during setup.
func (s *Store) SaveLibraryPath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.set([]byte(libraryPathSettingsKey), path); err != nil {
		return fmt.Errorf("save library path: %w", err)
	}
	return nil
}
