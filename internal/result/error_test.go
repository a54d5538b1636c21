package result

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestFromExceptionInference(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"foreign key", errors.New("FOREIGN KEY constraint failed"), CategoryDatabaseError},
		{"milestone missing", errors.New("milestone 'v2.0' not found"), CategoryMilestoneNotFound},
		{"project missing", errors.New("project p-1 does not exist"), CategoryProjectNotFound},
		{"rate limit", errors.New("API rate limit exceeded"), CategoryAPIRateLimit},
		{"timeout", errors.New("context deadline exceeded"), CategoryTimeout},
		{"service down", errors.New("502 Bad Gateway"), CategoryServiceUnavailable},
		{"network", errors.New("dial tcp: connection refused"), CategoryNetworkError},
		{"auth", errors.New("401 Unauthorized: bad credentials"), CategoryAuthenticationFailed},
		{"token expired", errors.New("token has expired"), CategoryTokenExpired},
		{"permission", errors.New("403 Forbidden"), CategoryPermissionDenied},
		{"duplicate", errors.New("UNIQUE constraint failed: issues.id"), CategoryDuplicateEntity},
		{"validation", errors.New("validation failed: title empty"), CategoryValidationError},
		{"deleted", errors.New("410 Gone"), CategoryResourceDeleted},
		{"not found", errors.New("404 Not Found"), CategoryResourceNotFound},
		{"unknown", errors.New("something odd happened"), CategoryUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := FromException(tt.err, "issue", "rm-1")
			if se.Category != tt.want {
				t.Errorf("FromException(%q).Category = %q, want %q", tt.err, se.Category, tt.want)
			}
			if se.EntityType != "issue" || se.EntityID != "rm-1" {
				t.Errorf("entity = (%q, %q), want (issue, rm-1)", se.EntityType, se.EntityID)
			}
			if !errors.Is(se, tt.err) {
				t.Error("FromException did not wrap the cause")
			}
		})
	}
}

func TestFromExceptionPathError(t *testing.T) {
	pathErr := &os.PathError{Op: "open", Path: "/nope", Err: errors.New("weird io state")}
	se := FromException(pathErr, "", "")
	if se.Category != CategoryFileSystemError {
		t.Errorf("PathError category = %q, want %q", se.Category, CategoryFileSystemError)
	}
}

func TestFromExceptionPassthrough(t *testing.T) {
	orig := New(CategoryAPIRateLimit, "slow down").WithEntity("issue", "")
	se := FromException(orig, "milestone", "m-3")
	if se != orig {
		t.Fatal("typed SyncError was re-wrapped instead of passed through")
	}
	if se.EntityType != "issue" {
		t.Errorf("non-empty EntityType was overwritten: %q", se.EntityType)
	}
	if se.EntityID != "m-3" {
		t.Errorf("empty EntityID was not filled: %q", se.EntityID)
	}
}

func TestFromExceptionNil(t *testing.T) {
	if se := FromException(nil, "issue", "x"); se != nil {
		t.Errorf("FromException(nil) = %v, want nil", se)
	}
}

func TestRecoverableFlags(t *testing.T) {
	tests := []struct {
		category Category
		want     bool
	}{
		{CategoryAuthenticationFailed, false},
		{CategoryTokenExpired, false},
		{CategoryPermissionDenied, false},
		{CategorySchemaMismatch, false},
		{CategoryConfigurationError, false},
		{CategoryNetworkError, true},
		{CategoryMilestoneNotFound, true},
		{CategoryDatabaseError, true},
		{CategoryConflict, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := New(tt.category, "x").Recoverable; got != tt.want {
				t.Errorf("New(%q).Recoverable = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestTransientCategories(t *testing.T) {
	transient := []Category{CategoryNetworkError, CategoryTimeout, CategoryServiceUnavailable, CategoryAPIRateLimit}
	for _, c := range transient {
		if !c.Transient() {
			t.Errorf("%q.Transient() = false, want true", c)
		}
	}
	for _, c := range []Category{CategoryAuthenticationFailed, CategoryInvalidData, CategoryUnknownError} {
		if c.Transient() {
			t.Errorf("%q.Transient() = true, want false", c)
		}
	}
}

func TestEveryCategoryHasAFix(t *testing.T) {
	all := []Category{
		CategoryAuthenticationFailed, CategoryTokenExpired, CategoryPermissionDenied,
		CategoryNetworkError, CategoryTimeout, CategoryServiceUnavailable,
		CategoryAPIRateLimit, CategoryInvalidData, CategorySchemaMismatch,
		CategoryDuplicateEntity, CategoryValidationError, CategoryResourceNotFound,
		CategoryResourceDeleted, CategoryMilestoneNotFound, CategoryProjectNotFound,
		CategoryConflict, CategoryMergeConflict, CategoryDatabaseError,
		CategoryFileSystemError, CategoryConfigurationError, CategoryCircuitBreakerOpen,
		CategoryRetryExhausted, CategoryUnknownError,
	}
	if len(all) != 23 {
		t.Fatalf("taxonomy has %d categories, want 23", len(all))
	}
	for _, c := range all {
		if suggestedFixes[c] == "" {
			t.Errorf("category %q has no suggested fix", c)
		}
	}
}

func TestErrorString(t *testing.T) {
	se := New(CategoryTimeout, "request timed out").WithEntity("issue", "rm-7")
	want := "timeout: request timed out (issue rm-7)"
	if se.Error() != want {
		t.Errorf("Error() = %q, want %q", se.Error(), want)
	}
	bare := New(CategoryTimeout, "request timed out")
	if bare.Error() != "timeout: request timed out" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestWithMeta(t *testing.T) {
	se := New(CategoryAPIRateLimit, "throttled").WithMeta("retry_after", 30)
	if got := se.Metadata["retry_after"]; got != 30 {
		t.Errorf("Metadata[retry_after] = %v, want 30", got)
	}
	_ = fmt.Sprintf("%v", se) // Error() must not panic with metadata set
}
