package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/sse"
)

const (
	sharePrefix        = "bookshare:"
	shareByTokenPrefix = "idx:shares:token:"
	shareByBookPrefix  = "idx:shares:book:"
)

var ErrShareNotFound = errors.New("share not found")

// Share Operations

// CreateShare creates a new share with its token and book indexes.
func (s *Store) CreateShare(ctx context.Context, share *domain.Share) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := []byte(sharePrefix + share.ID)

	err := s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(share)
		if err != nil {
			return fmt.Errorf("marshal share: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}

		tokenKey := []byte(shareByTokenPrefix + share.Token)
		if err := txn.Set(tokenKey, []byte(share.ID)); err != nil {
			return err
		}

		bookKey := []byte(shareByBookPrefix + share.BookID + ":" + share.ID)
		return txn.Set(bookKey, []byte(share.ID))
	})
	if err != nil {
		return fmt.Errorf("create share: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("share created",
			"id", share.ID,
			"book_id", share.BookID,
			"expires_at", share.ExpiresAt,
			"password_protected", share.RequiresPassword())
	}

	s.eventEmitter.Emit(sse.NewShareCreatedEvent(share))
	return nil
}

// GetShare retrieves a share by ID.
func (s *Store) GetShare(ctx context.Context, id string) (*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(sharePrefix + id)

	var share domain.Share
	err := s.get(key, &share)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("get share: %w", err)
	}
	return &share, nil
}

// GetShareByToken retrieves a share by its access token.
func (s *Store) GetShareByToken(ctx context.Context, token string) (*domain.Share, error) {
	tokenKey := []byte(shareByTokenPrefix + token)

	var shareID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			shareID = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("get share by token: %w", err)
	}
	return s.GetShare(ctx, shareID)
}

// IncrementShareAccess records one access against the share's budget.
// The read-modify-write runs inside a single transaction so concurrent
// downloads cannot exceed MaxAccesses.
func (s *Store) IncrementShareAccess(ctx context.Context, id string) (*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(sharePrefix + id)

	var share domain.Share
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &share)
		}); err != nil {
			return err
		}

		share.AccessCount++

		data, err := json.Marshal(&share)
		if err != nil {
			return fmt.Errorf("marshal share: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("increment share access: %w", err)
	}
	return &share, nil
}

// RevokeShare marks a share as revoked. Revoking twice is a no-op.
func (s *Store) RevokeShare(ctx context.Context, id string) error {
	share, err := s.GetShare(ctx, id)
	if err != nil {
		return err
	}

	if share.RevokedAt != nil {
		return nil
	}

	now := time.Now()
	share.RevokedAt = &now

	if err := s.set([]byte(sharePrefix+id), share); err != nil {
		return fmt.Errorf("revoke share: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("share revoked", "id", id, "book_id", share.BookID)
	}

	s.eventEmitter.Emit(sse.NewShareRevokedEvent(share))
	return nil
}

// DeleteShare removes a share and its indexes.
func (s *Store) DeleteShare(ctx context.Context, id string) error {
	share, err := s.GetShare(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(sharePrefix + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(shareByTokenPrefix + share.Token)); err != nil {
			return err
		}
		return txn.Delete([]byte(shareByBookPrefix + share.BookID + ":" + id))
	})
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	return nil
}

// ListShares returns all shares, including revoked and expired ones.
func (s *Store) ListShares(ctx context.Context) ([]*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return listPrefix[domain.Share](s, []byte(sharePrefix))
}

// SharesForBook returns every share for the given book.
func (s *Store) SharesForBook(ctx context.Context, bookID string) ([]*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := s.idsForIndexPrefix([]byte(shareByBookPrefix + bookID + ":"))
	if err != nil {
		return nil, fmt.Errorf("scan shares for book %s: %w", bookID, err)
	}

	shares := make([]*domain.Share, 0, len(ids))
	for _, id := range ids {
		share, err := s.GetShare(ctx, id)
		if err != nil {
			if errors.Is(err, ErrShareNotFound) {
				continue
			}
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, nil
}

// DeleteSharesForBook removes every share for a book.
// Used when a book is deleted from the library.
func (s *Store) DeleteSharesForBook(ctx context.Context, bookID string) error {
	shares, err := s.SharesForBook(ctx, bookID)
	if err != nil {
		return err
	}

	for _, share := range shares {
		if err := s.DeleteShare(ctx, share.ID); err != nil && !errors.Is(err, ErrShareNotFound) {
			return err
		}
	}
	return nil
}
