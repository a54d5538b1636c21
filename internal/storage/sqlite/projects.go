package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
)

// CreateProject inserts a new project. A duplicate ID returns a
// *storage.CreateError; an empty ID is minted.
func (s *Store) CreateProject(ctx context.Context, project *roadmap.Project) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateProject(ctx, project)
	})
}

func (t *Tx) CreateProject(ctx context.Context, project *roadmap.Project) error {
	return createProject(ctx, t.tx, t.store, project)
}

func createProject(ctx context.Context, q querier, s *Store, project *roadmap.Project) error {
	normalizeProject(project)
	if err := project.Validate(); err != nil {
		return err
	}
	if project.ID == "" {
		id, err := s.mintID(ctx, q, "project")
		if err != nil {
			return err
		}
		project.ID = id
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, project.ID, project.Name, project.Description, string(project.Status),
		project.Created, project.Updated)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &storage.CreateError{Entity: "project", ID: project.ID, Err: err}
		}
		return fmt.Errorf("inserting project %s: %w", project.ID, err)
	}
	return nil
}

// UpdateProject rewrites an existing project, reporting whether a row
// was found.
func (s *Store) UpdateProject(ctx context.Context, project *roadmap.Project) (bool, error) {
	var found bool
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		found, err = tx.UpdateProject(ctx, project)
		return err
	})
	return found, err
}

func (t *Tx) UpdateProject(ctx context.Context, project *roadmap.Project) (bool, error) {
	normalizeProject(project)
	if err := project.Validate(); err != nil {
		return false, err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, project.Name, project.Description, string(project.Status), project.Updated, project.ID)
	if err != nil {
		return false, fmt.Errorf("updating project %s: %w", project.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating project %s: %w", project.ID, err)
	}
	return n > 0, nil
}

// GetProject returns nil when no project has the ID.
func (s *Store) GetProject(ctx context.Context, id string) (*roadmap.Project, error) {
	return scanProjectRow(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, created_at, updated_at FROM projects WHERE id = ?`, id))
}

// GetProjectByName returns nil when no project has the name.
func (s *Store) GetProjectByName(ctx context.Context, name string) (*roadmap.Project, error) {
	return scanProjectRow(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, created_at, updated_at FROM projects WHERE name = ? ORDER BY created_at LIMIT 1`, name))
}

// ListProjects returns all projects, oldest first.
func (s *Store) ListProjects(ctx context.Context) ([]*roadmap.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, status, created_at, updated_at FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*roadmap.Project
	for rows.Next() {
		p := &roadmap.Project{}
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &status, &p.Created, &p.Updated); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.Status = roadmap.ProjectStatus(status)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project; its milestones and their issues
// cascade. Orphaned remote links are swept afterwards.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.RunInTransaction(ctx, func(txi storage.Transaction) error {
		t := txi.(*Tx)
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting project %s: %w", id, err)
		}
		return pruneRemoteLinks(ctx, t.tx)
	})
}

// CreateMilestone inserts a new milestone. Names are kept unique among
// open milestones; an empty ID is minted.
func (s *Store) CreateMilestone(ctx context.Context, milestone *roadmap.Milestone) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateMilestone(ctx, milestone)
	})
}

func (t *Tx) CreateMilestone(ctx context.Context, milestone *roadmap.Milestone) error {
	return createMilestone(ctx, t.tx, t.store, milestone)
}

func createMilestone(ctx context.Context, q querier, s *Store, milestone *roadmap.Milestone) error {
	normalizeMilestone(milestone)
	if err := milestone.Validate(); err != nil {
		return err
	}
	if milestone.Status == roadmap.MilestoneOpen {
		var clashes int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM milestones WHERE name = ? AND status = 'open'`,
			milestone.Name).Scan(&clashes)
		if err != nil {
			return fmt.Errorf("checking milestone name %q: %w", milestone.Name, err)
		}
		if clashes > 0 {
			return fmt.Errorf("duplicate milestone name among open milestones: %s", milestone.Name)
		}
	}
	if milestone.ID == "" {
		id, err := s.mintID(ctx, q, "milestone")
		if err != nil {
			return err
		}
		milestone.ID = id
	}

	projectID, err := resolveProject(ctx, q, milestone.ProjectID)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO milestones (id, project_id, name, headline, status, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, milestone.ID, projectID, milestone.Name, milestone.Headline,
		string(milestone.Status), milestone.DueDate, milestone.Created, milestone.Updated)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &storage.CreateError{Entity: "milestone", ID: milestone.ID, Err: err}
		}
		return fmt.Errorf("inserting milestone %s: %w", milestone.ID, err)
	}
	return upsertRemoteLinks(ctx, q, milestone.ID, milestone.RemoteIDs)
}

// UpdateMilestone rewrites an existing milestone, reporting whether a
// row was found.
func (s *Store) UpdateMilestone(ctx context.Context, milestone *roadmap.Milestone) (bool, error) {
	var found bool
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		found, err = tx.UpdateMilestone(ctx, milestone)
		return err
	})
	return found, err
}

func (t *Tx) UpdateMilestone(ctx context.Context, milestone *roadmap.Milestone) (bool, error) {
	normalizeMilestone(milestone)
	if err := milestone.Validate(); err != nil {
		return false, err
	}
	projectID, err := resolveProject(ctx, t.tx, milestone.ProjectID)
	if err != nil {
		return false, err
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE milestones SET project_id = ?, name = ?, headline = ?, status = ?, due_date = ?, updated_at = ?
		WHERE id = ?
	`, projectID, milestone.Name, milestone.Headline, string(milestone.Status),
		milestone.DueDate, milestone.Updated, milestone.ID)
	if err != nil {
		return false, fmt.Errorf("updating milestone %s: %w", milestone.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating milestone %s: %w", milestone.ID, err)
	}
	if n == 0 {
		return false, nil
	}
	return true, upsertRemoteLinks(ctx, t.tx, milestone.ID, milestone.RemoteIDs)
}

const milestoneColumns = `id, COALESCE(project_id, ''), name, headline, status, due_date, created_at, updated_at`

// GetMilestone returns nil when no milestone has the ID.
func (s *Store) GetMilestone(ctx context.Context, id string) (*roadmap.Milestone, error) {
	m, err := scanMilestoneRow(s.db.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id))
	if err != nil || m == nil {
		return m, err
	}
	return s.finishMilestone(ctx, m)
}

// GetMilestoneByName prefers an open milestone when several share the
// name. Returns nil when none match.
func (s *Store) GetMilestoneByName(ctx context.Context, name string) (*roadmap.Milestone, error) {
	m, err := scanMilestoneRow(s.db.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE name = ?
		 ORDER BY CASE status WHEN 'open' THEN 0 ELSE 1 END, created_at LIMIT 1`, name))
	if err != nil || m == nil {
		return m, err
	}
	return s.finishMilestone(ctx, m)
}

// ListMilestones returns all milestones, oldest first.
func (s *Store) ListMilestones(ctx context.Context) ([]*roadmap.Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*roadmap.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	for _, m := range milestones {
		if _, err := s.finishMilestone(ctx, m); err != nil {
			return nil, err
		}
	}
	return milestones, nil
}

// DeleteMilestone removes a milestone; its issues cascade. Orphaned
// remote links are swept afterwards.
func (s *Store) DeleteMilestone(ctx context.Context, id string) error {
	return s.RunInTransaction(ctx, func(txi storage.Transaction) error {
		t := txi.(*Tx)
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM milestones WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting milestone %s: %w", id, err)
		}
		return pruneRemoteLinks(ctx, t.tx)
	})
}

// MilestoneProgress counts the milestone's closed and total issues.
func (s *Store) MilestoneProgress(ctx context.Context, id string) (roadmap.Progress, error) {
	var progress roadmap.Progress
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END), 0)
		FROM issues WHERE milestone_id = ?
	`, id).Scan(&progress.TotalIssues, &progress.ClosedIssues)
	if err != nil {
		return roadmap.Progress{}, fmt.Errorf("computing progress for %s: %w", id, err)
	}
	return progress, nil
}

// --- helpers ---

func normalizeProject(project *roadmap.Project) {
	if project.Status == "" {
		project.Status = roadmap.ProjectActive
	}
	now := time.Now().UTC()
	if project.Created.IsZero() {
		project.Created = now
	}
	if project.Updated.IsZero() {
		project.Updated = project.Created
	}
}

func normalizeMilestone(milestone *roadmap.Milestone) {
	if milestone.Status == "" {
		milestone.Status = roadmap.MilestoneOpen
	}
	now := time.Now().UTC()
	if milestone.Created.IsZero() {
		milestone.Created = now
	}
	if milestone.Updated.IsZero() {
		milestone.Updated = milestone.Created
	}
}

// resolveProject turns a project reference (ID or name) into the row
// ID, or NULL for the empty reference.
func resolveProject(ctx context.Context, q querier, ref string) (sql.NullString, error) {
	if ref == "" {
		return sql.NullString{}, nil
	}
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = ?`, ref).Scan(&id)
	if err == nil {
		return sql.NullString{String: id, Valid: true}, nil
	}
	if err != sql.ErrNoRows {
		return sql.NullString{}, fmt.Errorf("resolving project %s: %w", ref, err)
	}
	err = q.QueryRowContext(ctx,
		`SELECT id FROM projects WHERE name = ? ORDER BY created_at LIMIT 1`, ref).Scan(&id)
	if err == sql.ErrNoRows {
		return sql.NullString{}, fmt.Errorf("project not found: %s", ref)
	}
	if err != nil {
		return sql.NullString{}, fmt.Errorf("resolving project %s: %w", ref, err)
	}
	return sql.NullString{String: id, Valid: true}, nil
}

func scanMilestone(row rowScanner) (*roadmap.Milestone, error) {
	m := &roadmap.Milestone{}
	var status string
	var due sql.NullTime
	err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Headline, &status, &due, &m.Created, &m.Updated)
	if err != nil {
		return nil, err
	}
	m.Status = roadmap.MilestoneStatus(status)
	if due.Valid {
		d := due.Time
		m.DueDate = &d
	}
	return m, nil
}

func scanMilestoneRow(row *sql.Row) (*roadmap.Milestone, error) {
	m, err := scanMilestone(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading milestone: %w", err)
	}
	return m, nil
}

func (s *Store) finishMilestone(ctx context.Context, m *roadmap.Milestone) (*roadmap.Milestone, error) {
	links, err := loadRemoteLinks(ctx, s.db, m.ID)
	if err != nil {
		return nil, err
	}
	m.RemoteIDs = links
	return m, nil
}

func scanProjectRow(row *sql.Row) (*roadmap.Project, error) {
	p := &roadmap.Project{}
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &p.Created, &p.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	p.Status = roadmap.ProjectStatus(status)
	return p, nil
}

// pruneRemoteLinks drops links whose local entity no longer exists
// (cascaded deletes do not touch remote_links).
func pruneRemoteLinks(ctx context.Context, q querier) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM remote_links WHERE local_id NOT IN (
			SELECT id FROM issues
			UNION SELECT id FROM milestones
			UNION SELECT id FROM projects
		)
	`)
	if err != nil {
		return fmt.Errorf("pruning remote links: %w", err)
	}
	return nil
}
