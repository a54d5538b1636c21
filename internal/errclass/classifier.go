// Package errclass aggregates the errors raised during a sync run into
// a category report with recovery hints. It is the reporting half of
// error handling; the per-call taxonomy lives in internal/result.
package errclass

import (
	"sort"
	"strings"
)

// Category is a classifier bucket for a single error occurrence.
type Category string

const (
	CategoryForeignKeyConstraint Category = "foreign_key_constraint"
	CategoryMilestoneNotFound    Category = "milestone_not_found"
	CategoryProjectNotFound      Category = "project_not_found"
	CategoryDependencyNotFound   Category = "dependency_not_found"
	CategoryAPIRateLimit         Category = "api_rate_limit"
	CategoryNetworkError         Category = "network_error"
	CategoryTimeout              Category = "timeout"
	CategoryServiceUnavailable   Category = "service_unavailable"
	CategoryAuthenticationFailed Category = "authentication_failed"
	CategoryPermissionDenied     Category = "permission_denied"
	CategoryTokenExpired         Category = "token_expired"
	CategoryDuplicateEntity      Category = "duplicate_entity"
	CategoryValidationError      Category = "validation_error"
	CategoryResourceDeleted      Category = "resource_deleted"
	CategoryResourceNotFound     Category = "resource_not_found"
	CategoryFileSystemError      Category = "file_system_error"
	CategoryUnknown              Category = "unknown"
)

// Bucket groups categories for the run-level summary.
type Bucket string

const (
	BucketDependency Bucket = "dependency"
	BucketAPI        Bucket = "api"
	BucketAuth       Bucket = "auth"
	BucketData       Bucket = "data"
	BucketResource   Bucket = "resource"
	BucketFileSystem Bucket = "file_system"
	BucketUnknown    Bucket = "unknown"
)

var categoryBuckets = map[Category]Bucket{
	CategoryForeignKeyConstraint: BucketDependency,
	CategoryMilestoneNotFound:    BucketDependency,
	CategoryProjectNotFound:      BucketDependency,
	CategoryDependencyNotFound:   BucketDependency,
	CategoryAPIRateLimit:         BucketAPI,
	CategoryNetworkError:         BucketAPI,
	CategoryTimeout:              BucketAPI,
	CategoryServiceUnavailable:   BucketAPI,
	CategoryAuthenticationFailed: BucketAuth,
	CategoryPermissionDenied:     BucketAuth,
	CategoryTokenExpired:         BucketAuth,
	CategoryDuplicateEntity:      BucketData,
	CategoryValidationError:      BucketData,
	CategoryResourceDeleted:      BucketResource,
	CategoryResourceNotFound:     BucketResource,
	CategoryFileSystemError:      BucketFileSystem,
	CategoryUnknown:              BucketUnknown,
}

var categoryFixes = map[Category]string{
	CategoryForeignKeyConstraint: "sync projects and milestones before issues so references resolve",
	CategoryMilestoneNotFound:    "create the milestone first or clear the milestone reference",
	CategoryProjectNotFound:      "create the project first or clear the project reference",
	CategoryDependencyNotFound:   "create the depended-on issue first or drop the dependency",
	CategoryAPIRateLimit:         "wait for the rate limit window to reset",
	CategoryNetworkError:         "check network connectivity and retry",
	CategoryTimeout:              "retry; consider raising the request timeout",
	CategoryServiceUnavailable:   "remote service is unavailable; retry later",
	CategoryAuthenticationFailed: "check GITHUB_TOKEN and re-authenticate",
	CategoryPermissionDenied:     "verify the token has repo scope for this repository",
	CategoryTokenExpired:         "generate a new access token",
	CategoryDuplicateEntity:      "run 'rdm duplicates' and merge or link the copies",
	CategoryValidationError:      "fix the entity fields that failed validation",
	CategoryResourceDeleted:      "the remote record was deleted; unlink or recreate it",
	CategoryResourceNotFound:     "remove the stale remote link or recreate the record",
	CategoryFileSystemError:      "check file permissions and free disk space under .roadmap/",
	CategoryUnknown:              "rerun with RDM_DEBUG=1 and inspect the sampled messages",
}

var bucketRecommendations = map[Bucket]string{
	BucketDependency: "sync parents before children: projects, then milestones, then issues",
	BucketAPI:        "check connectivity and rate limits, then rerun the sync",
	BucketAuth:       "refresh GITHUB_TOKEN and verify repository permissions",
	BucketData:       "deduplicate and fix validation failures, then rerun",
	BucketResource:   "clear stale remote links or recreate the missing remote records",
	BucketFileSystem: "check permissions and disk space under .roadmap/",
	BucketUnknown:    "rerun with RDM_DEBUG=1 and inspect the sampled messages",
}

// nonRecoverable marks categories that no retry or rerun can fix.
var nonRecoverable = map[Category]bool{
	CategoryAuthenticationFailed: true,
	CategoryPermissionDenied:     true,
	CategoryTokenExpired:         true,
}

// Recoverable reports whether errors in this category can be fixed by
// adjusting data or retrying, as opposed to needing new credentials.
func (c Category) Recoverable() bool { return !nonRecoverable[c] }

// SuggestedFix returns the per-category remediation hint.
func (c Category) SuggestedFix() string { return categoryFixes[c] }

// Bucket returns the summary bucket this category belongs to.
func (c Category) Bucket() Bucket { return categoryBuckets[c] }

// Recommendation returns the top-level remediation string for a bucket.
func Recommendation(b Bucket) string { return bucketRecommendations[b] }

// Categorize runs the predicate waterfall over an error's message and
// type name. The order is fixed, most specific first; the first
// predicate that fires decides the category.
func Categorize(message, typeName string) Category {
	msg := strings.ToLower(message)
	typ := strings.ToLower(typeName)

	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
	missing := func() bool {
		return has("not found", "missing", "does not exist", "unknown")
	}

	switch {
	case has("foreign key"):
		return CategoryForeignKeyConstraint
	case has("milestone") && missing():
		return CategoryMilestoneNotFound
	case has("project") && missing():
		return CategoryProjectNotFound
	case has("dependency", "depends on", "depends-on") && missing():
		return CategoryDependencyNotFound
	case has("rate limit", "too many requests", "429"):
		return CategoryAPIRateLimit
	case has("network", "connection", "dial", "dns", "unreachable", "broken pipe"):
		return CategoryNetworkError
	case has("timeout", "timed out", "deadline exceeded"):
		return CategoryTimeout
	case has("service unavailable", "bad gateway", "502", "503", "504"):
		return CategoryServiceUnavailable
	case has("unauthorized", "authentication", "bad credentials", "401"):
		return CategoryAuthenticationFailed
	case has("token") && has("expired", "revoked"):
		return CategoryTokenExpired
	case has("forbidden", "permission", "403"):
		return CategoryPermissionDenied
	case has("unique constraint", "duplicate", "already exists") || strings.Contains(typ, "integrityerror"):
		return CategoryDuplicateEntity
	case has("validation", "invalid"):
		return CategoryValidationError
	case has("deleted", "gone", "410"):
		return CategoryResourceDeleted
	case has("not found", "404", "does not exist"):
		return CategoryResourceNotFound
	case strings.Contains(typ, "patherror") || strings.Contains(typ, "linkerror") ||
		has("no such file", "file exists", "is a directory", "read-only file system", "i/o error", "disk"):
		return CategoryFileSystemError
	}
	return CategoryUnknown
}

// CategorySummary is one row of the per-run error report.
type CategorySummary struct {
	Category     Category
	Count        int
	Recoverable  bool
	SuggestedFix string
	Samples      []string
	EntityIDs    []string
}

// DefaultSampleLimit bounds the per-category message and ID samples.
const DefaultSampleLimit = 5

// Classifier accumulates classified errors across a sync run.
type Classifier struct {
	sampleLimit int
	counts      map[Category]int
	samples     map[Category][]string
	entityIDs   map[Category][]string
	seen        []Category
}

// New returns a Classifier with the default sample bound.
func New() *Classifier { return NewWithSampleLimit(DefaultSampleLimit) }

// NewWithSampleLimit returns a Classifier keeping at most limit sampled
// messages and entity IDs per category.
func NewWithSampleLimit(limit int) *Classifier {
	if limit < 0 {
		limit = 0
	}
	return &Classifier{
		sampleLimit: limit,
		counts:      make(map[Category]int),
		samples:     make(map[Category][]string),
		entityIDs:   make(map[Category][]string),
	}
}

// Classify categorizes one error occurrence and records it.
func (c *Classifier) Classify(message, typeName, entityType, entityID string) Category {
	cat := Categorize(message, typeName)
	if c.counts[cat] == 0 {
		c.seen = append(c.seen, cat)
	}
	c.counts[cat]++
	if len(c.samples[cat]) < c.sampleLimit {
		c.samples[cat] = append(c.samples[cat], message)
	}
	if entityID != "" && len(c.entityIDs[cat]) < c.sampleLimit {
		id := entityID
		if entityType != "" {
			id = entityType + ":" + entityID
		}
		c.entityIDs[cat] = append(c.entityIDs[cat], id)
	}
	return cat
}

// Total returns the number of classified errors.
func (c *Classifier) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Summary returns one row per seen category, sorted by count descending.
// Ties keep first-seen order.
func (c *Classifier) Summary() []CategorySummary {
	rows := make([]CategorySummary, 0, len(c.seen))
	for _, cat := range c.seen {
		rows = append(rows, CategorySummary{
			Category:     cat,
			Count:        c.counts[cat],
			Recoverable:  cat.Recoverable(),
			SuggestedFix: cat.SuggestedFix(),
			Samples:      c.samples[cat],
			EntityIDs:    c.entityIDs[cat],
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	return rows
}

// SummaryDict returns error counts grouped by bucket.
func (c *Classifier) SummaryDict() map[Bucket]int {
	out := make(map[Bucket]int)
	for cat, n := range c.counts {
		out[cat.Bucket()] += n
	}
	return out
}
