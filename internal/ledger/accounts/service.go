package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Service exposes chart of accounts operations. The per-tenant account list is
// read on nearly every posting, so it is cached in Redis and invalidated on
// mutation.
type Service struct {
	repo     Repository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewService constructs the accounts service. Cache may be nil, in which case
// every read hits the database.
func NewService(repo Repository, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func cacheKey(companyID int64) string {
	return fmt.Sprintf("accounts:%d", companyID)
}

// Create validates and inserts a chart of accounts node.
func (s *Service) Create(ctx context.Context, input CreateAccountInput) (Account, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Code == "" {
		return Account{}, fmt.Errorf("%w: account code is required", shared.ErrValidation)
	}
	if input.Name == "" {
		return Account{}, fmt.Errorf("%w: account name is required", shared.ErrValidation)
	}
	if !input.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, input.Type)
	}
	if input.ParentID != nil {
		parent, err := s.repo.Get(ctx, input.CompanyID, *input.ParentID)
		if err != nil {
			return Account{}, err
		}
		if parent.Type != input.Type {
			return Account{}, fmt.Errorf("%w: parent account %s has type %s, child must match", shared.ErrValidation, parent.Code, parent.Type)
		}
	}

	account, err := s.repo.Create(ctx, input, NormalBalanceFor(input.Type))
	if err != nil {
		return Account{}, err
	}
	s.invalidate(ctx, input.CompanyID)
	return account, nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Account, error) {
	return s.repo.Get(ctx, companyID, id)
}

// GetByCode fetches one account by code.
func (s *Service) GetByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, companyID, code)
}

// List returns the tenant's chart of accounts, served from cache when warm.
func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey(companyID)).Bytes()
		if err == nil {
			var cached []Account
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	list, err := s.repo.List(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(list); err == nil {
			if err := s.cache.Set(ctx, cacheKey(companyID), raw, s.cacheTTL).Err(); err != nil && s.logger != nil {
				s.logger.Warn("account cache set failed", slog.Any("error", err))
			}
		}
	}
	return list, nil
}

// Archive deactivates an account. Accounts referenced by postings are never
// deleted; archiving is the only retirement path.
func (s *Service) Archive(ctx context.Context, companyID, id int64) error {
	if err := s.repo.SetActive(ctx, companyID, id, false); err != nil {
		return err
	}
	s.invalidate(ctx, companyID)
	return nil
}

// Activate re-enables an archived account.
func (s *Service) Activate(ctx context.Context, companyID, id int64) error {
	if err := s.repo.SetActive(ctx, companyID, id, true); err != nil {
		return err
	}
	s.invalidate(ctx, companyID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, companyID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(companyID)).Err(); err != nil && s.logger != nil {
		s.logger.Warn("account cache invalidate failed", slog.Any("error", err))
	}
}
