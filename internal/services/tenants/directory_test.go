package tenants

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformsec/rbacgate/internal/db/models"
	"github.com/platformsec/rbacgate/internal/repository"
)

// fakeTenantRepository is an in-memory TenantRepository with call counting,
// enough to observe caching and creation behavior.
type fakeTenantRepository struct {
	mu      sync.Mutex
	tenants map[string]*models.Tenant // keyed by account ID

	getCalls    int
	createCalls int
}

func newFakeTenantRepository() *fakeTenantRepository {
	return &fakeTenantRepository{tenants: map[string]*models.Tenant{}}
}

func (f *fakeTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if _, exists := f.tenants[tenant.AccountID]; exists {
		return fmt.Errorf("create tenant: UNIQUE constraint failed: tenants.account_id")
	}
	tenant.ID = uuid.NewString()
	tenant.SchemaName = models.SchemaName(tenant.AccountID)
	f.tenants[tenant.AccountID] = tenant
	return nil
}

func (f *fakeTenantRepository) GetByAccount(ctx context.Context, accountID string) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	tenant, ok := f.tenants[accountID]
	if !ok {
		return nil, fmt.Errorf("tenant for account %s: %w", accountID, repository.ErrNotFound)
	}
	return tenant, nil
}

func (f *fakeTenantRepository) GetBySchema(ctx context.Context, schemaName string) (*models.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tenant := range f.tenants {
		if tenant.SchemaName == schemaName {
			return tenant, nil
		}
	}
	return nil, fmt.Errorf("tenant %s: %w", schemaName, repository.ErrNotFound)
}

func (f *fakeTenantRepository) GetOrCreate(ctx context.Context, accountID string) (*models.Tenant, error) {
	if tenant, err := f.GetByAccount(ctx, accountID); err == nil {
		return tenant, nil
	}
	created := &models.Tenant{AccountID: accountID}
	if err := f.Create(ctx, created); err != nil {
		return f.GetByAccount(ctx, accountID)
	}
	return created, nil
}

func TestDirectory_GetOrCreate(t *testing.T) {
	repo := newFakeTenantRepository()
	dir, err := NewDirectory(repo, 16)
	require.NoError(t, err)
	ctx := context.Background()

	tenant, err := dir.GetOrCreate(ctx, "10001")
	require.NoError(t, err)
	assert.Equal(t, "10001", tenant.AccountID)
	assert.Equal(t, "acct10001", tenant.SchemaName)

	// Same account again resolves from cache without touching the store.
	storeCalls := repo.getCalls
	again, err := dir.GetOrCreate(ctx, "10001")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, again.ID)
	assert.Equal(t, storeCalls, repo.getCalls)
}

func TestDirectory_GetOrCreate_EmptyAccount(t *testing.T) {
	dir, err := NewDirectory(newFakeTenantRepository(), 16)
	require.NoError(t, err)

	_, err = dir.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAccount)
}

func TestDirectory_Get(t *testing.T) {
	repo := newFakeTenantRepository()
	dir, err := NewDirectory(repo, 16)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("unknown account is not found, not created", func(t *testing.T) {
		_, err := dir.Get(ctx, "99999")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Zero(t, repo.createCalls)
	})

	t.Run("existing account resolves and caches", func(t *testing.T) {
		created, err := dir.GetOrCreate(ctx, "10001")
		require.NoError(t, err)

		got, err := dir.Get(ctx, "10001")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("empty account", func(t *testing.T) {
		_, err := dir.Get(ctx, "")
		assert.ErrorIs(t, err, ErrNoAccount)
	})
}

func TestDirectory_ConcurrentGetOrCreate(t *testing.T) {
	repo := newFakeTenantRepository()
	dir, err := NewDirectory(repo, 16)
	require.NoError(t, err)
	ctx := context.Background()

	const workers = 16
	results := make([]*models.Tenant, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = dir.GetOrCreate(ctx, "10001")
		}(i)
	}
	wg.Wait()

	// Every caller gets the same committed record; the store ends up with
	// exactly one tenant row however the race resolved.
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}
	assert.Len(t, repo.tenants, 1)
}
