package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/models"
)

type fakeStore struct {
	keysByHash map[string]*models.APIKey
	tenants    map[string]*models.Tenant
	touched    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		keysByHash: map[string]*models.APIKey{},
		tenants:    map[string]*models.Tenant{},
	}
}

func (f *fakeStore) LookupAPIKeyByHash(_ context.Context, keyHash string) (*models.APIKey, *models.Tenant, error) {
	key, ok := f.keysByHash[keyHash]
	if !ok {
		return nil, nil, models.ErrNotFound
	}
	return key, f.tenants[key.TenantID], nil
}

func (f *fakeStore) TouchAPIKeyLastUsed(_ context.Context, keyID string, _ time.Time) error {
	f.touched = append(f.touched, keyID)
	return nil
}

func TestResolver_Authenticate_Success(t *testing.T) {
	store := newFakeStore()
	raw := "hornet_testkey123"
	h := hashKey(raw)
	store.keysByHash[h] = &models.APIKey{ID: "key1", TenantID: "tenant1", Scopes: []string{"read"}}
	store.tenants["tenant1"] = &models.Tenant{ID: "tenant1", Name: "Acme", IsActive: true}

	r := NewResolver(store, time.Minute)
	identity, err := r.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "tenant1", identity.TenantID)
	assert.Equal(t, "Acme", identity.TenantName)
	assert.True(t, identity.HasScope("read"))
	assert.Len(t, store.touched, 1)

	// Second call should be served from cache, no additional touch.
	_, err = r.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Len(t, store.touched, 1)
}

func TestResolver_Authenticate_MissingCredential(t *testing.T) {
	r := NewResolver(newFakeStore(), time.Minute)
	_, err := r.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestResolver_Authenticate_MalformedCredential(t *testing.T) {
	r := NewResolver(newFakeStore(), time.Minute)
	_, err := r.Authenticate(context.Background(), "not-a-hornet-key")
	assert.ErrorIs(t, err, ErrMalformedCredential)
}

func TestResolver_Authenticate_UnknownKey(t *testing.T) {
	r := NewResolver(newFakeStore(), time.Minute)
	_, err := r.Authenticate(context.Background(), "hornet_unknown")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestResolver_Authenticate_ExpiredKey(t *testing.T) {
	store := newFakeStore()
	raw := "hornet_expiredkey"
	h := hashKey(raw)
	past := time.Now().Add(-time.Hour)
	store.keysByHash[h] = &models.APIKey{ID: "key2", TenantID: "tenant1", ExpiresAt: &past}
	store.tenants["tenant1"] = &models.Tenant{ID: "tenant1", IsActive: true}

	r := NewResolver(store, time.Minute)
	_, err := r.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrKeyExpired)
}

func TestResolver_Authenticate_InactiveTenant(t *testing.T) {
	store := newFakeStore()
	raw := "hornet_inactivekey"
	h := hashKey(raw)
	store.keysByHash[h] = &models.APIKey{ID: "key3", TenantID: "tenant2"}
	store.tenants["tenant2"] = &models.Tenant{ID: "tenant2", IsActive: false}

	r := NewResolver(store, time.Minute)
	_, err := r.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrTenantInactive)
}

func TestContext_RoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), models.TenantIdentity{TenantID: "t1"})
	identity, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "t1", identity.TenantID)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
