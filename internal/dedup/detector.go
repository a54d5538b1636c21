package dedup

import (
	"fmt"
	"sort"
	"strings"
)

// MatchType names the signal that produced a cross-side match.
type MatchType string

const (
	MatchIDCollision    MatchType = "id_collision"
	MatchTitleExact     MatchType = "title_exact"
	MatchTitleSimilar   MatchType = "title_similar"
	MatchContentSimilar MatchType = "content_similar"
)

// Recommendation is the detector's advisory action for a match. The
// resolver decides; this is a hint.
type Recommendation string

const (
	RecommendAutoMerge    Recommendation = "auto_merge"
	RecommendManualReview Recommendation = "manual_review"
	RecommendSkip         Recommendation = "skip"
)

// Record is the detector's view of an entity on either side. RemoteKey
// is the primary-key collision signal: for local issues the linked
// remote ID for the configured backend, for remote issues the backend
// ID itself.
type Record struct {
	ID        string
	Title     string
	Content   string
	RemoteKey string
}

// Match is one candidate duplicate pair.
type Match struct {
	Local       Record
	Remote      Record
	Type        MatchType
	Confidence  float64
	Recommended Recommendation
	Details     map[string]any
}

// NewMatch constructs a Match, rejecting confidence outside [0,1].
func NewMatch(local, remote Record, matchType MatchType, confidence float64, recommended Recommendation, details map[string]any) (Match, error) {
	if confidence < 0 || confidence > 1 {
		return Match{}, fmt.Errorf("match %s/%s: confidence %v outside [0,1]", local.ID, remote.ID, confidence)
	}
	return Match{
		Local:       local,
		Remote:      remote,
		Type:        matchType,
		Confidence:  confidence,
		Recommended: recommended,
		Details:     details,
	}, nil
}

// Config tunes the detector. Zero thresholds fall back to the defaults.
type Config struct {
	Backend                    string
	EnableFuzzyMatching        bool
	EnableContentMatching      bool
	TitleSimilarityThreshold   float64
	ContentSimilarityThreshold float64
	AutoResolveThreshold       float64
}

// DefaultConfig returns the tuned thresholds: 0.90 title, 0.85 content,
// 0.95 auto-resolve. Both optional passes stay off: content matching is
// quadratic per pair even after self-dedup, and fuzzy titles at 0.90
// start uniting numbered siblings ("Issue 1" vs "Issue 10" is 0.93).
func DefaultConfig() Config {
	return Config{
		Backend:                    "github",
		EnableFuzzyMatching:        false,
		EnableContentMatching:      false,
		TitleSimilarityThreshold:   0.90,
		ContentSimilarityThreshold: 0.85,
		AutoResolveThreshold:       0.95,
	}
}

// idCollisionReviewThreshold gates the manual-review recommendation on
// id-collision matches: below this similarity on title or content the
// two records have diverged and need a human (OR semantics; see
// DESIGN.md).
const idCollisionReviewThreshold = 0.80

// Detector runs self-dedup and cross-side matching.
type Detector struct {
	cfg Config
}

// New returns a Detector, filling unset thresholds from DefaultConfig.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if cfg.TitleSimilarityThreshold == 0 {
		cfg.TitleSimilarityThreshold = def.TitleSimilarityThreshold
	}
	if cfg.ContentSimilarityThreshold == 0 {
		cfg.ContentSimilarityThreshold = def.ContentSimilarityThreshold
	}
	if cfg.AutoResolveThreshold == 0 {
		cfg.AutoResolveThreshold = def.AutoResolveThreshold
	}
	return &Detector{cfg: cfg}
}

// Config returns the detector's effective configuration.
func (d *Detector) Config() Config { return d.cfg }

// SelfDedupStats are the aggregate counters of one self-dedup pass.
type SelfDedupStats struct {
	Input             int
	Canonical         int
	TitleMatches      int
	IDCollisions      int
	SimilarityMatches int
}

// SelfDedup collapses duplicates within one side to canonical
// representatives: exact-title buckets, primary-key collisions, then an
// optional fuzzy-title pass over coarse buckets. The side tag only
// labels the debug counters.
func (d *Detector) SelfDedup(side string, records []Record) ([]Record, SelfDedupStats) {
	stats := SelfDedupStats{Input: len(records)}
	if len(records) == 0 {
		logReduction(side, stats)
		return nil, stats
	}

	ds := NewDisjointSet()
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		ds.Add(r.ID)
		if _, dup := byID[r.ID]; !dup {
			byID[r.ID] = r
		}
	}

	// Exact title buckets: string equality after trim.
	titleBuckets := make(map[string][]string)
	for _, r := range records {
		key := strings.TrimSpace(r.Title)
		titleBuckets[key] = append(titleBuckets[key], r.ID)
	}
	exactMatched := make(map[string]bool)
	for title, ids := range titleBuckets {
		if len(ids) < 2 {
			continue
		}
		exactMatched[title] = true
		for _, id := range ids[1:] {
			ds.Union(ids[0], id)
			stats.TitleMatches++
		}
	}

	// Primary-key collisions. A remote key claimed by several records
	// is an integrity defect that exists in the wild; dedup reconciles it.
	keyBuckets := make(map[string][]string)
	for _, r := range records {
		if r.RemoteKey == "" {
			continue
		}
		keyBuckets[r.RemoteKey] = append(keyBuckets[r.RemoteKey], r.ID)
	}
	for _, ids := range keyBuckets {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids[1:] {
			ds.Union(ids[0], id)
			stats.IDCollisions++
		}
	}

	// Fuzzy title fallback over coarse buckets keyed by the first three
	// characters of the normalized title. Titles that already had exact
	// matches are skipped; they are unioned already.
	if d.cfg.EnableFuzzyMatching {
		coarse := make(map[string][]Record)
		for _, r := range records {
			if exactMatched[strings.TrimSpace(r.Title)] {
				continue
			}
			norm := Normalize(r.Title)
			if norm == "" {
				continue
			}
			coarse[bucketKey(norm)] = append(coarse[bucketKey(norm)], r)
		}
		for _, bucket := range coarse {
			for i := 0; i < len(bucket); i++ {
				for j := i + 1; j < len(bucket); j++ {
					a, b := bucket[i], bucket[j]
					if ds.Find(a.ID) == ds.Find(b.ID) {
						continue
					}
					if Ratio(Normalize(a.Title), Normalize(b.Title)) >= d.cfg.TitleSimilarityThreshold {
						ds.Union(a.ID, b.ID)
						stats.SimilarityMatches++
					}
				}
			}
		}
	}

	reps := ds.Representatives()
	canonical := make([]Record, 0, len(reps))
	for _, id := range reps {
		canonical = append(canonical, byID[id])
	}
	stats.Canonical = len(canonical)
	logReduction(side, stats)
	return canonical, stats
}

// CrossMatch compares canonical locals against canonical remotes and
// returns the ranked candidate pairs. Call it on self-deduped input;
// it does not reduce either side itself.
func (d *Detector) CrossMatch(locals, remotes []Record) []Match {
	var matches []Match

	byBackendID := make(map[string][]Record)
	byNormTitle := make(map[string][]Record)
	for _, r := range remotes {
		if r.RemoteKey != "" {
			byBackendID[r.RemoteKey] = append(byBackendID[r.RemoteKey], r)
		}
		byNormTitle[Normalize(r.Title)] = append(byNormTitle[Normalize(r.Title)], r)
	}

	for _, local := range locals {
		localNorm := Normalize(local.Title)

		// ID collision: the local row claims a backend ID some remote
		// record actually has. Confidence is fixed; the recommendation
		// depends on how far the two have diverged.
		if local.RemoteKey != "" {
			for _, remote := range byBackendID[local.RemoteKey] {
				titleSim := Ratio(localNorm, Normalize(remote.Title))
				contentSim := Ratio(Normalize(local.Content), Normalize(remote.Content))
				recommended := RecommendAutoMerge
				if titleSim < idCollisionReviewThreshold || contentSim < idCollisionReviewThreshold {
					recommended = RecommendManualReview
				}
				m, err := NewMatch(local, remote, MatchIDCollision, 1.0, recommended, map[string]any{
					"backend_id":         local.RemoteKey,
					"title_similarity":   titleSim,
					"content_similarity": contentSim,
				})
				if err == nil {
					matches = append(matches, m)
				}
			}
		}

		if localNorm != "" {
			// Exact title.
			for _, remote := range byNormTitle[localNorm] {
				m, err := NewMatch(local, remote, MatchTitleExact, 0.98, RecommendAutoMerge, map[string]any{
					"title": localNorm,
				})
				if err == nil {
					matches = append(matches, m)
				}
			}
			// Similar title.
			for _, remote := range remotes {
				remoteNorm := Normalize(remote.Title)
				if remoteNorm == localNorm {
					continue
				}
				ratio := Ratio(localNorm, remoteNorm)
				if ratio < d.cfg.TitleSimilarityThreshold {
					continue
				}
				m, err := NewMatch(local, remote, MatchTitleSimilar, ratio, RecommendManualReview, map[string]any{
					"title_similarity": ratio,
				})
				if err == nil {
					matches = append(matches, m)
				}
			}
		}

		if d.cfg.EnableContentMatching {
			localContent := Normalize(local.Content)
			if localContent == "" {
				continue
			}
			for _, remote := range remotes {
				remoteContent := Normalize(remote.Content)
				if remoteContent == "" {
					continue
				}
				contentRatio := Ratio(localContent, remoteContent)
				if contentRatio < d.cfg.ContentSimilarityThreshold {
					continue
				}
				titleRatio := Ratio(localNorm, Normalize(remote.Title))
				combined := 0.6*contentRatio + 0.4*titleRatio
				recommended := RecommendManualReview
				if combined >= d.cfg.AutoResolveThreshold {
					recommended = RecommendAutoMerge
				}
				m, err := NewMatch(local, remote, MatchContentSimilar, combined, recommended, map[string]any{
					"content_similarity": contentRatio,
					"title_similarity":   titleRatio,
				})
				if err == nil {
					matches = append(matches, m)
				}
			}
		}
	}

	return dedupeAndSort(matches)
}

// Report is the full detector output for one run.
type Report struct {
	Matches          []Match
	LocalStats       SelfDedupStats
	RemoteStats      SelfDedupStats
	CanonicalLocals  []Record
	CanonicalRemotes []Record
}

// Detect runs the two-phase pipeline: self-dedup each side, then
// cross-match the canonical representatives.
func (d *Detector) Detect(locals, remotes []Record) Report {
	canonicalLocals, localStats := d.SelfDedup("local", locals)
	canonicalRemotes, remoteStats := d.SelfDedup("remote", remotes)
	return Report{
		Matches:          d.CrossMatch(canonicalLocals, canonicalRemotes),
		LocalStats:       localStats,
		RemoteStats:      remoteStats,
		CanonicalLocals:  canonicalLocals,
		CanonicalRemotes: canonicalRemotes,
	}
}

// dedupeAndSort collapses matches sharing a (local, remote) pair to the
// highest-confidence one, then orders by confidence descending with
// stable ties.
func dedupeAndSort(matches []Match) []Match {
	index := make(map[[2]string]int)
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		key := [2]string{m.Local.ID, m.Remote.ID}
		if at, seen := index[key]; seen {
			if m.Confidence > out[at].Confidence {
				out[at] = m
			}
			continue
		}
		index[key] = len(out)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
