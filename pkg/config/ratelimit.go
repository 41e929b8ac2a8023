package config

import "github.com/hornet-sec/hornet/pkg/models"

// RateLimitTier is one subscription tier's token-bucket parameters for
// the API layer's per-(tenant, endpoint) limiter (spec §5).
type RateLimitTier struct {
	Tier          models.SubscriptionTier `yaml:"tier"`
	RatePerSecond float64                 `yaml:"rate_per_second"`
	Burst         int                     `yaml:"burst"`
}

// RateLimitConfig overrides the built-in per-tier rate limits. An
// empty Tiers list keeps the API layer's compiled-in defaults.
type RateLimitConfig struct {
	Tiers []RateLimitTier `yaml:"tiers,omitempty"`
}
