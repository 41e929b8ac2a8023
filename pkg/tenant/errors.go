package tenant

import "errors"

// Error taxonomy for C1, matching spec §7's AuthError /
// TenantIsolationError classes for this component.
var (
	// ErrMissingCredential is returned when no Authorization header,
	// X-API-Key header, or api_key query parameter is present.
	ErrMissingCredential = errors.New("tenant: missing credential")

	// ErrMalformedCredential is returned when the credential is present
	// but does not match the vendor's key format.
	ErrMalformedCredential = errors.New("tenant: malformed credential")

	// ErrUnknownKey is returned when no APIKey matches the hashed
	// credential.
	ErrUnknownKey = errors.New("tenant: unknown API key")

	// ErrKeyExpired is returned when the matched APIKey's ExpiresAt has
	// passed.
	ErrKeyExpired = errors.New("tenant: API key expired")

	// ErrTenantInactive is returned when the matched key is valid but
	// its tenant has been deactivated.
	ErrTenantInactive = errors.New("tenant: tenant is inactive")
)
