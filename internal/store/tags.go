package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/util"
)

const tagPrefix = "tag:"

var (
	ErrTagNotFound = errors.New("tag not found")
	ErrTagExists   = errors.New("tag already exists")
)

// Tag Operations
//
// Tag membership lives on the book (Book.TagIDs); tags themselves are
// just named records.

// CreateTag creates a new tag. Tag names must be unique (case-insensitive).
func (s *Store) CreateTag(ctx context.Context, tag *domain.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := s.GetTagByName(ctx, tag.Name)
	if err != nil && !errors.Is(err, ErrTagNotFound) {
		return fmt.Errorf("check tag name: %w", err)
	}
	if existing != nil {
		return ErrTagExists
	}

	key := []byte(tagPrefix + tag.ID)
	if err := s.set(key, tag); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("tag created", "id", tag.ID, "name", tag.Name)
	}
	return nil
}

// GetTag retrieves a tag by ID.
func (s *Store) GetTag(ctx context.Context, id string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(tagPrefix + id)

	var tag domain.Tag
	err := s.get(key, &tag)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return &tag, nil
}

// GetTagByName retrieves a tag by name. Names are compared by their
// normalized slug, so "Slow Burn" and "slow_burn" resolve to the same tag.
func (s *Store) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	tags, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	slug := util.NormalizeTagSlug(name)
	for _, tag := range tags {
		if util.NormalizeTagSlug(tag.Name) == slug {
			return tag, nil
		}
	}
	return nil, ErrTagNotFound
}

// DeleteTag deletes a tag and removes it from every book carrying it.
func (s *Store) DeleteTag(ctx context.Context, id string) error {
	if _, err := s.GetTag(ctx, id); err != nil {
		return err
	}

	books, err := s.AllBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books for tag removal: %w", err)
	}

	for _, book := range books {
		changed := false
		kept := book.TagIDs[:0]
		for _, tagID := range book.TagIDs {
			if tagID == id {
				changed = true
				continue
			}
			kept = append(kept, tagID)
		}
		if changed {
			book.TagIDs = kept
			if err := s.UpdateBook(ctx, book); err != nil {
				return fmt.Errorf("remove tag from book %s: %w", book.ID, err)
			}
		}
	}

	if err := s.delete([]byte(tagPrefix + id)); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("tag deleted", "id", id)
	}
	return nil
}

// ListTags returns all tags sorted by name.
func (s *Store) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tags, err := listPrefix[domain.Tag](s, []byte(tagPrefix))
	if err != nil {
		return nil, err
	}

	sort.Slice(tags, func(i, j int) bool {
		return strings.ToLower(tags[i].Name) < strings.ToLower(tags[j].Name)
	})
	return tags, nil
}
