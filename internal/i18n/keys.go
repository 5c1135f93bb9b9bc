// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess       = "success"
	KeyError         = "error"
	KeyInternalError = "error.internal"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAuthForbidden    = "auth.forbidden"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyRateLimited       = "rate_limit.exceeded"

	// Upstream collaborators
	KeyUpstreamUnavailable = "upstream.unavailable"
	KeyUpstreamTimeout     = "upstream.timeout"

	// Users
	KeyUserNotFound       = "user.not_found"
	KeyUserCreated        = "user.created"
	KeyUserProfileUpdated = "user.profile_updated"
	KeyUserAvatarUpdated  = "user.avatar_updated"

	// Posts
	KeyPostNotFound           = "post.not_found"
	KeyPostCreated            = "post.created"
	KeyPostCreatedPartial     = "post.created_partial"
	KeyPostCreationFailed     = "post.creation_failed"
	KeyPostCreationInProgress = "post.creation_in_progress"
)
