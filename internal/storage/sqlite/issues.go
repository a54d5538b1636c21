package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
)

// CreateIssue inserts a new issue with its labels, dependencies and
// remote links. A duplicate ID returns a *storage.CreateError. An empty
// ID is minted from the issue sequence.
func (s *Store) CreateIssue(ctx context.Context, issue *roadmap.Issue) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateIssue(ctx, issue)
	})
}

func (t *Tx) CreateIssue(ctx context.Context, issue *roadmap.Issue) error {
	return createIssue(ctx, t.tx, t.store, issue)
}

func createIssue(ctx context.Context, q querier, s *Store, issue *roadmap.Issue) error {
	normalizeIssue(issue)
	if err := issue.Validate(); err != nil {
		return err
	}
	if issue.ID == "" {
		id, err := s.mintID(ctx, q, "issue")
		if err != nil {
			return err
		}
		issue.ID = id
	}

	milestoneID, err := resolveMilestone(ctx, q, issue.Milestone)
	if err != nil {
		return err
	}
	meta, err := marshalSyncMeta(issue.SyncMeta)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO issues (id, title, content, status, priority, assignee, milestone_id, sync_meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, issue.ID, issue.Title, issue.Content, string(issue.Status), string(issue.Priority),
		issue.Assignee, milestoneID, meta, issue.Created, issue.Updated)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &storage.CreateError{Entity: "issue", ID: issue.ID, Err: err}
		}
		return fmt.Errorf("inserting issue %s: %w", issue.ID, err)
	}

	if err := replaceLabels(ctx, q, issue.ID, issue.Labels); err != nil {
		return err
	}
	if err := replaceDependencies(ctx, q, issue.ID, issue.DependsOn); err != nil {
		return err
	}
	return upsertRemoteLinks(ctx, q, issue.ID, issue.RemoteIDs)
}

// UpdateIssue rewrites an existing issue and reports whether a row was
// found. Labels and dependencies are replaced from the entity; remote
// links are upserted but never removed here (unlinking is explicit).
func (s *Store) UpdateIssue(ctx context.Context, issue *roadmap.Issue) (bool, error) {
	var found bool
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		found, err = tx.UpdateIssue(ctx, issue)
		return err
	})
	return found, err
}

func (t *Tx) UpdateIssue(ctx context.Context, issue *roadmap.Issue) (bool, error) {
	return updateIssue(ctx, t.tx, issue)
}

func updateIssue(ctx context.Context, q querier, issue *roadmap.Issue) (bool, error) {
	normalizeIssue(issue)
	if err := issue.Validate(); err != nil {
		return false, err
	}

	milestoneID, err := resolveMilestone(ctx, q, issue.Milestone)
	if err != nil {
		return false, err
	}
	meta, err := marshalSyncMeta(issue.SyncMeta)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE issues
		SET title = ?, content = ?, status = ?, priority = ?, assignee = ?, milestone_id = ?, sync_meta = ?, updated_at = ?
		WHERE id = ?
	`, issue.Title, issue.Content, string(issue.Status), string(issue.Priority),
		issue.Assignee, milestoneID, meta, issue.Updated, issue.ID)
	if err != nil {
		return false, fmt.Errorf("updating issue %s: %w", issue.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating issue %s: %w", issue.ID, err)
	}
	if n == 0 {
		return false, nil
	}

	if err := replaceLabels(ctx, q, issue.ID, issue.Labels); err != nil {
		return false, err
	}
	if err := replaceDependencies(ctx, q, issue.ID, issue.DependsOn); err != nil {
		return false, err
	}
	if err := upsertRemoteLinks(ctx, q, issue.ID, issue.RemoteIDs); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteIssue removes an issue; dependencies, labels and comments
// cascade. Deleting a missing issue is a no-op.
func (s *Store) DeleteIssue(ctx context.Context, id string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteIssue(ctx, id)
	})
}

func (t *Tx) DeleteIssue(ctx context.Context, id string) error {
	return deleteIssue(ctx, t.tx, id)
}

func deleteIssue(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting issue %s: %w", id, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM remote_links WHERE local_id = ?`, id); err != nil {
		return fmt.Errorf("deleting remote links for %s: %w", id, err)
	}
	return nil
}

// GetIssue loads one issue with labels, dependencies and remote links.
// Returns nil when no issue has the ID.
func (s *Store) GetIssue(ctx context.Context, id string) (*roadmap.Issue, error) {
	return getIssue(ctx, s.db, id)
}

func (t *Tx) GetIssue(ctx context.Context, id string) (*roadmap.Issue, error) {
	return getIssue(ctx, t.tx, id)
}

const issueColumns = `id, title, content, status, priority, assignee, COALESCE(milestone_id, ''), sync_meta, created_at, updated_at`

func getIssue(ctx context.Context, q querier, id string) (*roadmap.Issue, error) {
	row := q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading issue %s: %w", id, err)
	}
	if err := loadIssueRelations(ctx, q, issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// ListIssues returns issues matching the filter, oldest first.
func (s *Store) ListIssues(ctx context.Context, filter storage.IssueFilter) ([]*roadmap.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.MilestoneID != "" {
		conds = append(conds, "milestone_id = ?")
		args = append(args, filter.MilestoneID)
	}
	if filter.Assignee != "" {
		conds = append(conds, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	if filter.Label != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM issue_labels l WHERE l.issue_id = issues.id AND l.label = ?)")
		args = append(args, filter.Label)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	var issues []*roadmap.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	for _, issue := range issues {
		if err := loadIssueRelations(ctx, s.db, issue); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

// DeleteAllIssues drops every issue row (full rebuild support). Remote
// links survive: rebuilt issues keep their IDs, so links stay valid.
func (s *Store) DeleteAllIssues(ctx context.Context) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteAllIssues(ctx)
	})
}

func (t *Tx) DeleteAllIssues(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM issues`); err != nil {
		return fmt.Errorf("clearing issues: %w", err)
	}
	return nil
}

// AddDependency appends depends-on to the issue's ordered dependency
// list. A missing target surfaces as a foreign key constraint error;
// an existing edge is a no-op.
func (s *Store) AddDependency(ctx context.Context, issueID, dependsOnID string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.AddDependency(ctx, issueID, dependsOnID)
	})
}

func (t *Tx) AddDependency(ctx context.Context, issueID, dependsOnID string) error {
	return addDependency(ctx, t.tx, issueID, dependsOnID)
}

func addDependency(ctx context.Context, q querier, issueID, dependsOnID string) error {
	if issueID == dependsOnID {
		return fmt.Errorf("issue %s cannot depend on itself", issueID)
	}
	var next int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM issue_dependencies WHERE issue_id = ?`,
		issueID).Scan(&next)
	if err != nil {
		return fmt.Errorf("reading dependency positions for %s: %w", issueID, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO issue_dependencies (issue_id, depends_on_id, position)
		VALUES (?, ?, ?)
	`, issueID, dependsOnID, next)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return fmt.Errorf("adding dependency %s -> %s: %w", issueID, dependsOnID, err)
	}
	return nil
}

// RemoveDependency drops the edge; missing edges are a no-op.
func (s *Store) RemoveDependency(ctx context.Context, issueID, dependsOnID string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.RemoveDependency(ctx, issueID, dependsOnID)
	})
}

func (t *Tx) RemoveDependency(ctx context.Context, issueID, dependsOnID string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM issue_dependencies WHERE issue_id = ? AND depends_on_id = ?`,
		issueID, dependsOnID)
	if err != nil {
		return fmt.Errorf("removing dependency %s -> %s: %w", issueID, dependsOnID, err)
	}
	return nil
}

// ReplaceDependencies swaps the issue's dependency list wholesale,
// preserving the given order.
func (s *Store) ReplaceDependencies(ctx context.Context, issueID string, dependsOn []string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.ReplaceDependencies(ctx, issueID, dependsOn)
	})
}

func (t *Tx) ReplaceDependencies(ctx context.Context, issueID string, dependsOn []string) error {
	return replaceDependencies(ctx, t.tx, issueID, dependsOn)
}

func replaceDependencies(ctx context.Context, q querier, issueID string, dependsOn []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM issue_dependencies WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("clearing dependencies for %s: %w", issueID, err)
	}
	for i, dep := range dependsOn {
		if dep == issueID {
			return fmt.Errorf("issue %s cannot depend on itself", issueID)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO issue_dependencies (issue_id, depends_on_id, position)
			VALUES (?, ?, ?)
		`, issueID, dep, i)
		if err != nil {
			return fmt.Errorf("adding dependency %s -> %s: %w", issueID, dep, err)
		}
	}
	return nil
}

// GetDependencies returns the issue's depends-on IDs in declared order.
func (s *Store) GetDependencies(ctx context.Context, issueID string) ([]string, error) {
	return loadDependencies(ctx, s.db, issueID)
}

// GetDependencyGraph returns every dependency edge, keyed by issue.
func (s *Store) GetDependencyGraph(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue_id, depends_on_id FROM issue_dependencies ORDER BY issue_id, position`)
	if err != nil {
		return nil, fmt.Errorf("loading dependency graph: %w", err)
	}
	defer rows.Close()

	graph := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("scanning dependency edge: %w", err)
		}
		graph[from] = append(graph[from], to)
	}
	return graph, rows.Err()
}

// AddLabel attaches a label; duplicates are a no-op.
func (s *Store) AddLabel(ctx context.Context, issueID, label string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.AddLabel(ctx, issueID, label)
	})
}

func (t *Tx) AddLabel(ctx context.Context, issueID, label string) error {
	if err := requireIssue(ctx, t.tx, issueID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO issue_labels (issue_id, label) VALUES (?, ?)`, issueID, label)
	if err != nil {
		return fmt.Errorf("adding label %q to %s: %w", label, issueID, err)
	}
	return nil
}

// RemoveLabel detaches a label; missing labels are a no-op.
func (s *Store) RemoveLabel(ctx context.Context, issueID, label string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.RemoveLabel(ctx, issueID, label)
	})
}

func (t *Tx) RemoveLabel(ctx context.Context, issueID, label string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM issue_labels WHERE issue_id = ? AND label = ?`, issueID, label)
	if err != nil {
		return fmt.Errorf("removing label %q from %s: %w", label, issueID, err)
	}
	return nil
}

// GetLabels returns the issue's labels sorted.
func (s *Store) GetLabels(ctx context.Context, issueID string) ([]string, error) {
	return loadLabels(ctx, s.db, issueID)
}

// --- helpers ---

func normalizeIssue(issue *roadmap.Issue) {
	if issue.Status == "" {
		issue.Status = roadmap.StatusBacklog
	}
	if issue.Priority == "" {
		issue.Priority = roadmap.PriorityMedium
	}
	now := time.Now().UTC()
	if issue.Created.IsZero() {
		issue.Created = now
	}
	if issue.Updated.IsZero() {
		issue.Updated = issue.Created
	}
}

// resolveMilestone turns a milestone reference (ID or name) into the
// row ID, or NULL for the empty reference.
func resolveMilestone(ctx context.Context, q querier, ref string) (sql.NullString, error) {
	if ref == "" {
		return sql.NullString{}, nil
	}
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM milestones WHERE id = ?`, ref).Scan(&id)
	if err == nil {
		return sql.NullString{String: id, Valid: true}, nil
	}
	if err != sql.ErrNoRows {
		return sql.NullString{}, fmt.Errorf("resolving milestone %s: %w", ref, err)
	}
	err = q.QueryRowContext(ctx,
		`SELECT id FROM milestones WHERE name = ? ORDER BY created_at LIMIT 1`, ref).Scan(&id)
	if err == sql.ErrNoRows {
		return sql.NullString{}, fmt.Errorf("milestone not found: %s", ref)
	}
	if err != nil {
		return sql.NullString{}, fmt.Errorf("resolving milestone %s: %w", ref, err)
	}
	return sql.NullString{String: id, Valid: true}, nil
}

func requireIssue(ctx context.Context, q querier, issueID string) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = ?)`, issueID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking issue %s: %w", issueID, err)
	}
	if !exists {
		return fmt.Errorf("issue %s not found", issueID)
	}
	return nil
}

func marshalSyncMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding sync metadata: %w", err)
	}
	return string(raw), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*roadmap.Issue, error) {
	issue := &roadmap.Issue{}
	var status, priority, meta string
	err := row.Scan(&issue.ID, &issue.Title, &issue.Content, &status, &priority,
		&issue.Assignee, &issue.Milestone, &meta, &issue.Created, &issue.Updated)
	if err != nil {
		return nil, err
	}
	issue.Status = roadmap.Status(status)
	issue.Priority = roadmap.Priority(priority)
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &issue.SyncMeta); err != nil {
			return nil, fmt.Errorf("decoding sync metadata for %s: %w", issue.ID, err)
		}
	}
	return issue, nil
}

func loadIssueRelations(ctx context.Context, q querier, issue *roadmap.Issue) error {
	labels, err := loadLabels(ctx, q, issue.ID)
	if err != nil {
		return err
	}
	issue.Labels = labels

	deps, err := loadDependencies(ctx, q, issue.ID)
	if err != nil {
		return err
	}
	issue.DependsOn = deps

	links, err := loadRemoteLinks(ctx, q, issue.ID)
	if err != nil {
		return err
	}
	issue.RemoteIDs = links
	return nil
}

func loadLabels(ctx context.Context, q querier, issueID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT label FROM issue_labels WHERE issue_id = ? ORDER BY label`, issueID)
	if err != nil {
		return nil, fmt.Errorf("loading labels for %s: %w", issueID, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func loadDependencies(ctx context.Context, q querier, issueID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT depends_on_id FROM issue_dependencies WHERE issue_id = ? ORDER BY position`, issueID)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies for %s: %w", issueID, err)
	}
	defer rows.Close()

	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

func replaceLabels(ctx context.Context, q querier, issueID string, labels []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM issue_labels WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("clearing labels for %s: %w", issueID, err)
	}
	for _, label := range labels {
		_, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO issue_labels (issue_id, label) VALUES (?, ?)`, issueID, label)
		if err != nil {
			return fmt.Errorf("adding label %q to %s: %w", label, issueID, err)
		}
	}
	return nil
}

func upsertRemoteLinks(ctx context.Context, q querier, localID string, remoteIDs map[string]string) error {
	if len(remoteIDs) == 0 {
		return nil
	}
	backends := make([]string, 0, len(remoteIDs))
	for backend := range remoteIDs {
		backends = append(backends, backend)
	}
	sort.Strings(backends)
	for _, backend := range backends {
		if remoteIDs[backend] == "" {
			continue
		}
		if err := setRemoteLink(ctx, q, localID, backend, remoteIDs[backend]); err != nil {
			return err
		}
	}
	return nil
}

func loadRemoteLinks(ctx context.Context, q querier, localID string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT backend_name, remote_id FROM remote_links WHERE local_id = ?`, localID)
	if err != nil {
		return nil, fmt.Errorf("loading remote links for %s: %w", localID, err)
	}
	defer rows.Close()

	var links map[string]string
	for rows.Next() {
		var backend, remoteID string
		if err := rows.Scan(&backend, &remoteID); err != nil {
			return nil, fmt.Errorf("scanning remote link: %w", err)
		}
		if links == nil {
			links = make(map[string]string)
		}
		links[backend] = remoteID
	}
	return links, rows.Err()
}
