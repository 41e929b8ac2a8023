package api

import (
	"sync"

	echo "github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/hornet-sec/hornet/pkg/config"
	"github.com/hornet-sec/hornet/pkg/models"
	"github.com/hornet-sec/hornet/pkg/tenant"
)

// TierLimits gives the requests-per-second and burst parameters a
// subscription tier is entitled to, grounded on the teacher's
// subscription-tier-to-quota table convention.
type TierLimits struct {
	RatePerSecond float64
	Burst         int
}

// DefaultTierLimits is seeded at startup and may be overridden by
// config. Tiers not present here fall back to TierFree's limits.
func DefaultTierLimits() map[models.SubscriptionTier]TierLimits {
	return map[models.SubscriptionTier]TierLimits{
		models.TierFree:       {RatePerSecond: 2, Burst: 5},
		models.TierStandard:   {RatePerSecond: 10, Burst: 30},
		models.TierEnterprise: {RatePerSecond: 50, Burst: 150},
	}
}

// RateLimiter enforces a token-bucket limit per (tenant_id,
// endpoint_path), with bucket parameters drawn from the caller's
// subscription tier (spec §5: "Rate limiting is token-bucket per
// (tenant_id, endpoint_path), parameters depending on subscription
// tier; implemented atomically so that concurrent acquirers on the
// same bucket see a consistent result"). Grounded on the r3e-network
// example's infrastructure/middleware/ratelimit.go: a map of
// *rate.Limiter keyed by string, built lazily under a mutex, with
// x/time/rate providing the atomic per-key decision.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	tiers    map[models.SubscriptionTier]TierLimits
	fallback TierLimits
}

// TierLimitsFromConfig builds a tier map from operator-supplied
// overrides (pkg/config's RateLimitConfig.Tiers), falling back to
// DefaultTierLimits for any tier the overrides don't mention.
func TierLimitsFromConfig(cfg config.RateLimitConfig) map[models.SubscriptionTier]TierLimits {
	tiers := DefaultTierLimits()
	for _, o := range cfg.Tiers {
		tiers[o.Tier] = TierLimits{RatePerSecond: o.RatePerSecond, Burst: o.Burst}
	}
	return tiers
}

// NewRateLimiter builds a RateLimiter from the given per-tier
// parameters. A nil or empty tiers map uses DefaultTierLimits.
func NewRateLimiter(tiers map[models.SubscriptionTier]TierLimits) *RateLimiter {
	if len(tiers) == 0 {
		tiers = DefaultTierLimits()
	}
	return &RateLimiter{
		buckets:  make(map[string]*rate.Limiter),
		tiers:    tiers,
		fallback: tiers[models.TierFree],
	}
}

func (rl *RateLimiter) limits(tier models.SubscriptionTier) TierLimits {
	if l, ok := rl.tiers[tier]; ok {
		return l
	}
	return rl.fallback
}

// Allow reports whether one request for (tenantID, path) at tier may
// proceed right now, creating the bucket on first use.
func (rl *RateLimiter) Allow(tenantID, path string, tier models.SubscriptionTier) bool {
	key := tenantID + "\x00" + path
	limits := rl.limits(tier)

	rl.mu.Lock()
	limiter, ok := rl.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(limits.RatePerSecond), limits.Burst)
		rl.buckets[key] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// BucketCount reports the number of distinct (tenant, path) buckets
// currently tracked, exposed for the periodic sweep in pkg/jobs and
// for tests.
func (rl *RateLimiter) BucketCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Sweep discards every tracked bucket, bounding unbounded growth from
// an ever-changing set of (tenant, path) pairs. Buckets are re-created
// lazily on next use, so this never rejects a request that would
// otherwise have been allowed under a fresh bucket.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.buckets = make(map[string]*rate.Limiter)
}

// rateLimit builds the echo middleware enforcing rl against the
// authenticated tenant identity and the route's registered path
// (not the raw request path, so "/incidents/:id" shares one bucket
// across every incident id rather than one bucket per id).
func rateLimit(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if rl == nil {
				return next(c)
			}
			identity, ok := tenant.FromContext(c.Request().Context())
			if !ok {
				return next(c)
			}
			path := c.Request().URL.Path
			if rp := c.Path(); rp != "" {
				path = rp
			}
			if !rl.Allow(identity.TenantID, path, identity.SubscriptionTier) {
				return rateLimitErr(c)
			}
			return next(c)
		}
	}
}
