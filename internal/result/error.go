package result

import (
	"fmt"
	"strings"
)

// Category identifies the failure class of a SyncError.
type Category string

const (
	CategoryAuthenticationFailed Category = "authentication_failed"
	CategoryTokenExpired         Category = "token_expired"
	CategoryPermissionDenied     Category = "permission_denied"
	CategoryNetworkError         Category = "network_error"
	CategoryTimeout              Category = "timeout"
	CategoryServiceUnavailable   Category = "service_unavailable"
	CategoryAPIRateLimit         Category = "api_rate_limit"
	CategoryInvalidData          Category = "invalid_data"
	CategorySchemaMismatch       Category = "schema_mismatch"
	CategoryDuplicateEntity      Category = "duplicate_entity"
	CategoryValidationError      Category = "validation_error"
	CategoryResourceNotFound     Category = "resource_not_found"
	CategoryResourceDeleted      Category = "resource_deleted"
	CategoryMilestoneNotFound    Category = "milestone_not_found"
	CategoryProjectNotFound      Category = "project_not_found"
	CategoryConflict             Category = "conflict"
	CategoryMergeConflict        Category = "merge_conflict"
	CategoryDatabaseError        Category = "database_error"
	CategoryFileSystemError      Category = "file_system_error"
	CategoryConfigurationError   Category = "configuration_error"
	CategoryCircuitBreakerOpen   Category = "circuit_breaker_open"
	CategoryRetryExhausted       Category = "retry_exhausted"
	CategoryUnknownError         Category = "unknown_error"
)

// Transient reports whether errors of this category are worth retrying.
func (c Category) Transient() bool {
	switch c {
	case CategoryNetworkError, CategoryTimeout, CategoryServiceUnavailable, CategoryAPIRateLimit:
		return true
	}
	return false
}

// nonRecoverable categories need operator intervention; retrying or
// continuing the run cannot fix them.
var nonRecoverable = map[Category]bool{
	CategoryAuthenticationFailed: true,
	CategoryTokenExpired:         true,
	CategoryPermissionDenied:     true,
	CategorySchemaMismatch:       true,
	CategoryConfigurationError:   true,
}

var suggestedFixes = map[Category]string{
	CategoryAuthenticationFailed: "check GITHUB_TOKEN and re-authenticate",
	CategoryTokenExpired:         "generate a new access token and update GITHUB_TOKEN",
	CategoryPermissionDenied:     "verify the token has repo scope for this repository",
	CategoryNetworkError:         "check network connectivity and retry",
	CategoryTimeout:              "retry; consider raising the request timeout",
	CategoryServiceUnavailable:   "remote service is unavailable; retry later",
	CategoryAPIRateLimit:         "wait for the rate limit window to reset before retrying",
	CategoryInvalidData:          "fix the payload fields reported by the remote",
	CategorySchemaMismatch:       "run 'rdm init' to bring the store schema up to date",
	CategoryDuplicateEntity:      "run 'rdm duplicates' and merge or link the copies",
	CategoryValidationError:      "fix the entity fields that failed validation",
	CategoryResourceNotFound:     "the remote record no longer exists; unlink or recreate it",
	CategoryResourceDeleted:      "the remote record was deleted; unlink or recreate it",
	CategoryMilestoneNotFound:    "create the milestone first or clear the reference",
	CategoryProjectNotFound:      "create the project first or clear the reference",
	CategoryConflict:             "both sides changed since the last sync; resolve manually",
	CategoryMergeConflict:        "resolve the conflict markers in the managed files",
	CategoryDatabaseError:        "check the store file; 'rdm sync --full' rebuilds it",
	CategoryFileSystemError:      "check file permissions and free disk space",
	CategoryConfigurationError:   "fix .roadmap/config.yaml and rerun",
	CategoryCircuitBreakerOpen:   "backend is failing; wait for the cool-down before retrying",
	CategoryRetryExhausted:       "all retries failed; check the underlying error",
	CategoryUnknownError:         "inspect the message; rerun with RDM_DEBUG=1 for details",
}

// SyncError is the structured error carried through every Result in the
// sync engine.
type SyncError struct {
	Category     Category
	Message      string
	EntityType   string
	EntityID     string
	Recoverable  bool
	SuggestedFix string
	Metadata     map[string]any
	Cause        error
}

// New returns a SyncError with the recoverable flag and suggested fix
// derived from the category.
func New(category Category, message string) *SyncError {
	return &SyncError{
		Category:     category,
		Message:      message,
		Recoverable:  !nonRecoverable[category],
		SuggestedFix: suggestedFixes[category],
	}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(category Category, format string, args ...any) *SyncError {
	return New(category, fmt.Sprintf(format, args...))
}

func (e *SyncError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (%s %s)", e.Category, e.Message, e.EntityType, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *SyncError) Unwrap() error { return e.Cause }

// WithEntity records which entity the error concerns.
func (e *SyncError) WithEntity(entityType, entityID string) *SyncError {
	e.EntityType = entityType
	e.EntityID = entityID
	return e
}

// WithMeta attaches a metadata key/value pair.
func (e *SyncError) WithMeta(key string, value any) *SyncError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithCause records the wrapped underlying error.
func (e *SyncError) WithCause(cause error) *SyncError {
	e.Cause = cause
	return e
}

// FromException converts an arbitrary error into a SyncError, inferring
// the category from the error text and its Go type name. Already-typed
// SyncErrors pass through with entity fields filled in when empty.
func FromException(err error, entityType, entityID string) *SyncError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SyncError); ok {
		if se.EntityType == "" {
			se.EntityType = entityType
		}
		if se.EntityID == "" {
			se.EntityID = entityID
		}
		return se
	}
	category := inferCategory(err.Error(), fmt.Sprintf("%T", err))
	return New(category, err.Error()).WithEntity(entityType, entityID).WithCause(err)
}

// inferCategory maps raw error text onto the taxonomy. Ordered from the
// most specific signal to the least; first hit wins.
func inferCategory(message, typeName string) Category {
	msg := strings.ToLower(message)
	typ := strings.ToLower(typeName)

	contains := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("foreign key"):
		return CategoryDatabaseError
	case contains("milestone") && contains("not found", "missing", "does not exist"):
		return CategoryMilestoneNotFound
	case contains("project") && contains("not found", "missing", "does not exist"):
		return CategoryProjectNotFound
	case contains("rate limit", "too many requests", "429"):
		return CategoryAPIRateLimit
	case contains("timeout", "timed out", "deadline exceeded"):
		return CategoryTimeout
	case contains("service unavailable", "bad gateway", "502", "503"):
		return CategoryServiceUnavailable
	case contains("connection", "network", "dial", "dns", "unreachable", "broken pipe"):
		return CategoryNetworkError
	case contains("token") && contains("expired"):
		return CategoryTokenExpired
	case contains("unauthorized", "authentication", "bad credentials", "401"):
		return CategoryAuthenticationFailed
	case strings.Contains(typ, "patherror") || strings.Contains(typ, "linkerror") ||
		contains("no such file", "is a directory", "disk"):
		return CategoryFileSystemError
	case contains("forbidden", "permission", "403"):
		return CategoryPermissionDenied
	case contains("unique constraint", "duplicate", "already exists"):
		return CategoryDuplicateEntity
	case contains("validation", "invalid"):
		return CategoryValidationError
	case contains("gone", "deleted", "410"):
		return CategoryResourceDeleted
	case contains("not found", "404"):
		return CategoryResourceNotFound
	case contains("sqlite", "database", "sql:"):
		return CategoryDatabaseError
	case contains("config"):
		return CategoryConfigurationError
	case contains("conflict"):
		return CategoryConflict
	}
	return CategoryUnknownError
}
