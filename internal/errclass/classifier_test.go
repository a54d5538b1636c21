package errclass

import (
	"fmt"
	"testing"
)

func TestCategorizeWaterfall(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		typeName string
		want     Category
	}{
		{"foreign key", "FOREIGN KEY constraint failed", "sqlite3.Error", CategoryForeignKeyConstraint},
		{"milestone", "milestone 'v1.0' not found", "", CategoryMilestoneNotFound},
		{"project", "project roadmap-x does not exist", "", CategoryProjectNotFound},
		{"dependency", "dependency rm-9 not found", "", CategoryDependencyNotFound},
		{"rate limit", "API rate limit exceeded for installation", "", CategoryAPIRateLimit},
		{"network", "dial tcp 140.82.121.3:443: connection refused", "*net.OpError", CategoryNetworkError},
		{"timeout", "request timed out after 30s", "", CategoryTimeout},
		{"service", "503 Service Unavailable", "", CategoryServiceUnavailable},
		{"auth", "401 bad credentials", "", CategoryAuthenticationFailed},
		{"token expired", "token has expired, please regenerate", "", CategoryTokenExpired},
		{"permission", "403 Forbidden: resource not accessible", "", CategoryPermissionDenied},
		{"duplicate", "UNIQUE constraint failed: issues.id", "", CategoryDuplicateEntity},
		{"validation", "validation error: title must not be empty", "", CategoryValidationError},
		{"deleted", "410 Gone", "", CategoryResourceDeleted},
		{"not found", "404 Not Found", "", CategoryResourceNotFound},
		{"file system", "open .roadmap/issues/x.md: no such file", "*fs.PathError", CategoryFileSystemError},
		{"unknown", "inexplicable failure", "", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.message, tt.typeName); got != tt.want {
				t.Errorf("Categorize(%q, %q) = %q, want %q", tt.message, tt.typeName, got, tt.want)
			}
		})
	}
}

// Ordering matters: "milestone not found" must not fall through to the
// generic not-found step, and foreign-key beats everything.
func TestCategorizeOrdering(t *testing.T) {
	if got := Categorize("milestone not found", ""); got != CategoryMilestoneNotFound {
		t.Errorf("got %q, want milestone_not_found", got)
	}
	if got := Categorize("FOREIGN KEY constraint failed on milestone not found path", ""); got != CategoryForeignKeyConstraint {
		t.Errorf("got %q, want foreign_key_constraint", got)
	}
	if got := Categorize("connection timed out", ""); got != CategoryNetworkError {
		t.Errorf("got %q, want network_error (network precedes timeout)", got)
	}
}

func TestSummaryAggregation(t *testing.T) {
	c := New()
	for i := 0; i < 5; i++ {
		c.Classify(fmt.Sprintf("FOREIGN KEY constraint failed (%d)", i), "", "issue", fmt.Sprintf("rm-%d", i))
	}
	for i := 0; i < 3; i++ {
		c.Classify("milestone 'v2' not found", "", "issue", fmt.Sprintf("rm-%d", 10+i))
	}

	rows := c.Summary()
	if len(rows) != 2 {
		t.Fatalf("Summary() returned %d rows, want 2", len(rows))
	}
	if rows[0].Category != CategoryForeignKeyConstraint || rows[0].Count != 5 {
		t.Errorf("rows[0] = %q/%d, want foreign_key_constraint/5", rows[0].Category, rows[0].Count)
	}
	if rows[1].Category != CategoryMilestoneNotFound || rows[1].Count != 3 {
		t.Errorf("rows[1] = %q/%d, want milestone_not_found/3", rows[1].Category, rows[1].Count)
	}
	for _, row := range rows {
		if !row.Recoverable {
			t.Errorf("%q reported non-recoverable", row.Category)
		}
	}
	if c.Total() != 8 {
		t.Errorf("Total() = %d, want 8", c.Total())
	}
}

func TestSampleBounding(t *testing.T) {
	c := New()
	for i := 0; i < 12; i++ {
		c.Classify("dial tcp: connection refused", "", "issue", fmt.Sprintf("rm-%d", i))
	}
	rows := c.Summary()
	if len(rows) != 1 {
		t.Fatalf("Summary() rows = %d, want 1", len(rows))
	}
	if len(rows[0].Samples) != DefaultSampleLimit {
		t.Errorf("samples = %d, want %d", len(rows[0].Samples), DefaultSampleLimit)
	}
	if len(rows[0].EntityIDs) != DefaultSampleLimit {
		t.Errorf("entity IDs = %d, want %d", len(rows[0].EntityIDs), DefaultSampleLimit)
	}
	if rows[0].Count != 12 {
		t.Errorf("count = %d, want 12 (bounding samples must not bound counts)", rows[0].Count)
	}
	if rows[0].EntityIDs[0] != "issue:rm-0" {
		t.Errorf("entity sample = %q, want issue:rm-0", rows[0].EntityIDs[0])
	}
}

func TestSummaryDictBuckets(t *testing.T) {
	c := New()
	c.Classify("FOREIGN KEY constraint failed", "", "", "")
	c.Classify("milestone m not found", "", "", "")
	c.Classify("dial tcp: network unreachable", "", "", "")
	c.Classify("401 unauthorized", "", "", "")
	c.Classify("completely novel failure", "", "", "")

	dict := c.SummaryDict()
	want := map[Bucket]int{
		BucketDependency: 2,
		BucketAPI:        1,
		BucketAuth:       1,
		BucketUnknown:    1,
	}
	for bucket, n := range want {
		if dict[bucket] != n {
			t.Errorf("SummaryDict()[%q] = %d, want %d", bucket, dict[bucket], n)
		}
	}
}

func TestRecommendations(t *testing.T) {
	for _, b := range []Bucket{BucketDependency, BucketAPI, BucketAuth, BucketData, BucketResource, BucketFileSystem, BucketUnknown} {
		if Recommendation(b) == "" {
			t.Errorf("Recommendation(%q) is empty", b)
		}
	}
}

func TestRecoverableFlags(t *testing.T) {
	for _, c := range []Category{CategoryAuthenticationFailed, CategoryPermissionDenied, CategoryTokenExpired} {
		if c.Recoverable() {
			t.Errorf("%q.Recoverable() = true, want false", c)
		}
	}
	if !CategoryForeignKeyConstraint.Recoverable() {
		t.Error("foreign_key_constraint should be recoverable")
	}
}
