package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shiori-reader/shiori-server/internal/auth"
	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/id"
	"github.com/shiori-reader/shiori-server/internal/sse"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// ShareAccess is the result of unlocking a share: the share itself plus
// a session token the client presents on download requests instead of
// the password.
type ShareAccess struct {
	Share        *domain.Share `json:"share"`
	SessionToken string        `json:"session_token"`
}

// ShareService manages time-limited book share links on the local
// network.
type ShareService struct {
	store      *store.Store
	tokens     *auth.TokenService
	sseManager *sse.Manager
	logger     *slog.Logger
	cfg        config.ShareConfig
}

// NewShareService creates a new share service.
func NewShareService(store *store.Store, tokens *auth.TokenService, cfg config.ShareConfig, sseManager *sse.Manager, logger *slog.Logger) *ShareService {
	return &ShareService{
		store:      store,
		tokens:     tokens,
		sseManager: sseManager,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateShare creates a share link for a book. The token is unguessable;
// a non-empty password additionally locks access behind Argon2id. A zero
// duration falls back to the configured default; maxAccesses of zero
// means unlimited.
func (s *ShareService) CreateShare(ctx context.Context, bookID, password string, duration time.Duration, maxAccesses int) (*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exists, err := s.store.BookExists(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if !exists {
		return nil, apperrors.NotFoundf("book %s not found", bookID)
	}

	if duration <= 0 {
		duration = s.cfg.DefaultDuration
	}
	if maxAccesses < 0 {
		return nil, apperrors.Validation("max accesses cannot be negative")
	}

	share := &domain.Share{
		ID:          id.MustGenerate("share"),
		BookID:      bookID,
		Token:       uuid.NewString(),
		ExpiresAt:   time.Now().Add(duration),
		MaxAccesses: maxAccesses,
		CreatedAt:   time.Now(),
	}

	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		share.PasswordHash = hash
	}

	if err := s.store.CreateShare(ctx, share); err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}

	s.logger.Info("share created",
		"share_id", share.ID,
		"book_id", bookID,
		"expires_at", share.ExpiresAt,
		"protected", share.RequiresPassword(),
	)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewShareCreatedEvent(share))
	}
	return share, nil
}

// LookupShare resolves a share token without counting an access. Used to
// show the share landing page and decide whether to prompt for a
// password.
func (s *ShareService) LookupShare(ctx context.Context, token string) (*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	share, err := s.store.GetShareByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup share: %w", err)
	}
	if !share.Usable(time.Now()) {
		return nil, apperrors.ShareExpired("share is no longer accessible")
	}
	return share, nil
}

// AccessShare unlocks a share: the password is checked when the share
// requires one, the access counter is bumped, and a session token is
// issued so later requests skip the password.
func (s *ShareService) AccessShare(ctx context.Context, token, password string) (*ShareAccess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	share, err := s.LookupShare(ctx, token)
	if err != nil {
		return nil, err
	}

	if share.RequiresPassword() {
		ok, err := auth.VerifyPassword(share.PasswordHash, password)
		if err != nil {
			return nil, fmt.Errorf("verify password: %w", err)
		}
		if !ok {
			return nil, apperrors.Forbidden("wrong share password")
		}
	}

	share, err = s.store.IncrementShareAccess(ctx, share.ID)
	if err != nil {
		return nil, fmt.Errorf("count access: %w", err)
	}

	sessionToken, err := s.tokens.GenerateShareToken(share)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	s.logger.Info("share accessed",
		"share_id", share.ID,
		"book_id", share.BookID,
		"access_count", share.AccessCount,
	)

	return &ShareAccess{Share: share, SessionToken: sessionToken}, nil
}

// ValidateSession verifies a session token and confirms the share behind
// it is still usable. Revocation wins over an unexpired token.
func (s *ShareService) ValidateSession(ctx context.Context, sessionToken string) (*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := s.tokens.VerifyShareToken(sessionToken)
	if err != nil {
		return nil, apperrors.Forbidden("invalid share session")
	}

	share, err := s.store.GetShare(ctx, claims.ShareID)
	if err != nil {
		return nil, fmt.Errorf("get share: %w", err)
	}
	if share.RevokedAt != nil || time.Now().After(share.ExpiresAt) {
		return nil, apperrors.ShareExpired("share is no longer accessible")
	}
	return share, nil
}

// RevokeShare invalidates a share immediately. Existing session tokens
// stop working at the next validation.
func (s *ShareService) RevokeShare(ctx context.Context, shareID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.RevokeShare(ctx, shareID); err != nil {
		return fmt.Errorf("revoke share: %w", err)
	}

	share, err := s.store.GetShare(ctx, shareID)
	if err != nil {
		return fmt.Errorf("get share: %w", err)
	}

	s.logger.Info("share revoked", "share_id", shareID, "book_id", share.BookID)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewShareRevokedEvent(share))
	}
	return nil
}

// ListShares returns all shares, active and expired.
func (s *ShareService) ListShares(ctx context.Context) ([]*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shares, err := s.store.ListShares(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	return shares, nil
}

// SharesForBook returns the shares pointing at one book.
func (s *ShareService) SharesForBook(ctx context.Context, bookID string) ([]*domain.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shares, err := s.store.SharesForBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("shares for book: %w", err)
	}
	return shares, nil
}
