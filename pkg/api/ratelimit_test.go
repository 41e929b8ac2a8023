package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hornet-sec/hornet/pkg/config"
	"github.com/hornet-sec/hornet/pkg/models"
)

func TestRateLimiterDefaultsFallBackForUnknownTier(t *testing.T) {
	rl := NewRateLimiter(nil)
	require.NotNil(t, rl)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("tenant-a", "/api/v1/events", models.SubscriptionTier("unknown")))
	}
	assert.False(t, rl.Allow("tenant-a", "/api/v1/events", models.SubscriptionTier("unknown")))
}

func TestRateLimiterScopedPerTenantAndPath(t *testing.T) {
	rl := NewRateLimiter(map[models.SubscriptionTier]TierLimits{
		models.TierFree: {RatePerSecond: 1, Burst: 1},
	})

	assert.True(t, rl.Allow("tenant-a", "/api/v1/events", models.TierFree))
	assert.False(t, rl.Allow("tenant-a", "/api/v1/events", models.TierFree), "second call on same bucket should be throttled")

	// A different tenant, and a different path for the same tenant,
	// each get their own bucket.
	assert.True(t, rl.Allow("tenant-b", "/api/v1/events", models.TierFree))
	assert.True(t, rl.Allow("tenant-a", "/api/v1/incidents", models.TierFree))

	assert.Equal(t, 3, rl.BucketCount())
}

func TestRateLimiterSweepClearsBuckets(t *testing.T) {
	rl := NewRateLimiter(map[models.SubscriptionTier]TierLimits{
		models.TierFree: {RatePerSecond: 1, Burst: 1},
	})
	rl.Allow("tenant-a", "/api/v1/events", models.TierFree)
	require.Equal(t, 1, rl.BucketCount())

	rl.Sweep()
	assert.Equal(t, 0, rl.BucketCount())

	// The bucket is recreated with a fresh burst, not denied outright.
	assert.True(t, rl.Allow("tenant-a", "/api/v1/events", models.TierFree))
}

func TestTierLimitsFromConfigOverridesOnlyNamedTiers(t *testing.T) {
	tiers := TierLimitsFromConfig(config.RateLimitConfig{
		Tiers: []config.RateLimitTier{
			{Tier: models.TierEnterprise, RatePerSecond: 500, Burst: 1000},
		},
	})

	assert.Equal(t, TierLimits{RatePerSecond: 500, Burst: 1000}, tiers[models.TierEnterprise])
	assert.Equal(t, DefaultTierLimits()[models.TierFree], tiers[models.TierFree])
}
