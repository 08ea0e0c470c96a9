package accounts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryAccountRepo struct {
	accounts map[int64]Account
	nextID   int64
	listHits int
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[int64]Account)}
}

func (r *memoryAccountRepo) Create(ctx context.Context, input CreateAccountInput, normal NormalBalance) (Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == input.CompanyID && a.Code == input.Code {
			return Account{}, fmt.Errorf("%w: account code %q already exists", shared.ErrValidation, input.Code)
		}
	}
	r.nextID++
	account := Account{
		ID:            r.nextID,
		CompanyID:     input.CompanyID,
		Code:          input.Code,
		Name:          input.Name,
		Type:          input.Type,
		NormalBalance: normal,
		ParentID:      input.ParentID,
		IsActive:      true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memoryAccountRepo) Get(ctx context.Context, companyID, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok || a.CompanyID != companyID {
		return Account{}, fmt.Errorf("account %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func (r *memoryAccountRepo) GetByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return Account{}, fmt.Errorf("account code %q: %w", code, shared.ErrNotFound)
}

func (r *memoryAccountRepo) List(ctx context.Context, companyID int64) ([]Account, error) {
	r.listHits++
	var out []Account
	for _, a := range r.accounts {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAccountRepo) SetActive(ctx context.Context, companyID, id int64, active bool) error {
	a, ok := r.accounts[id]
	if !ok || a.CompanyID != companyID {
		return fmt.Errorf("account %d: %w", id, shared.ErrNotFound)
	}
	a.IsActive = active
	r.accounts[id] = a
	return nil
}

func (r *memoryAccountRepo) HasPostings(ctx context.Context, companyID, id int64) (bool, error) {
	return false, nil
}

func newCache(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestCreateDerivesNormalBalance(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	cases := []struct {
		typ    AccountType
		normal NormalBalance
	}{
		{AccountTypeAsset, NormalDebit},
		{AccountTypeExpense, NormalDebit},
		{AccountTypeLiability, NormalCredit},
		{AccountTypeEquity, NormalCredit},
		{AccountTypeRevenue, NormalCredit},
	}
	for i, tc := range cases {
		account, err := svc.Create(ctx, CreateAccountInput{
			CompanyID: 1,
			Code:      fmt.Sprintf("%d00", i+1),
			Name:      string(tc.typ),
			Type:      tc.typ,
		})
		require.NoError(t, err)
		require.Equal(t, tc.normal, account.NormalBalance)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "", Name: "Cash", Type: AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "1100", Name: "Cash", Type: AccountType("WEIRD")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "1100", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "1100", Name: "Cash again", Type: AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsParentTypeMismatch(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo, nil, 0, nil)
	ctx := context.Background()

	parent, err := svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "1000", Name: "Current Assets", Type: AccountTypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "4100", Name: "Sales", Type: AccountTypeRevenue, ParentID: &parent.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListUsesCacheUntilInvalidated(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo, newCache(t), time.Minute, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "1100", Name: "Bank", Type: AccountTypeAsset})
	require.NoError(t, err)

	first, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, repo.listHits, "second read should come from cache")

	_, err = svc.Create(ctx, CreateAccountInput{CompanyID: 1, Code: "4100", Name: "Sales", Type: AccountTypeRevenue})
	require.NoError(t, err)

	third, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, third, 2)
	require.Equal(t, 2, repo.listHits, "mutation should invalidate cache")
}
