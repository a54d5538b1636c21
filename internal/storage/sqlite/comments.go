package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/untoldecay/roadmap/internal/roadmap"
	"github.com/untoldecay/roadmap/internal/storage"
)

// AddComment appends a comment to an issue and returns it with its
// assigned ID and timestamp.
func (s *Store) AddComment(ctx context.Context, issueID, author, body string) (*roadmap.Comment, error) {
	var comment *roadmap.Comment
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		comment, err = tx.AddComment(ctx, issueID, author, body)
		return err
	})
	return comment, err
}

func (t *Tx) AddComment(ctx context.Context, issueID, author, body string) (*roadmap.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("comment body must not be empty")
	}
	if err := requireIssue(ctx, t.tx, issueID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO comments (issue_id, author, body, created_at)
		VALUES (?, ?, ?, ?)
	`, issueID, author, body, now)
	if err != nil {
		return nil, fmt.Errorf("adding comment to %s: %w", issueID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("adding comment to %s: %w", issueID, err)
	}
	return &roadmap.Comment{
		ID:      id,
		IssueID: issueID,
		Author:  author,
		Body:    body,
		Created: now,
	}, nil
}

// GetComments returns an issue's comments, oldest first.
func (s *Store) GetComments(ctx context.Context, issueID string) ([]*roadmap.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, COALESCE(author, ''), body, created_at
		FROM comments WHERE issue_id = ?
		ORDER BY created_at, id
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("listing comments for %s: %w", issueID, err)
	}
	defer rows.Close()

	var comments []*roadmap.Comment
	for rows.Next() {
		c := &roadmap.Comment{}
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Author, &c.Body, &c.Created); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
