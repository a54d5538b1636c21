package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/roadmap/internal/frontmatter"
	"github.com/untoldecay/roadmap/internal/storage"
)

// SetRemoteLink records the remote counterpart of a local entity.
// Writing an existing (local, backend) pair or reusing a remote ID
// replaces the older link.
func (s *Store) SetRemoteLink(ctx context.Context, localID, backend, remoteID string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.SetRemoteLink(ctx, localID, backend, remoteID)
	})
}

func (t *Tx) SetRemoteLink(ctx context.Context, localID, backend, remoteID string) error {
	return setRemoteLink(ctx, t.tx, localID, backend, remoteID)
}

func setRemoteLink(ctx context.Context, q querier, localID, backend, remoteID string) error {
	if localID == "" || backend == "" || remoteID == "" {
		return fmt.Errorf("remote link requires local ID, backend, and remote ID")
	}
	// OR REPLACE resolves both uniqueness axes: a re-linked local entity
	// and a re-used remote ID each evict the stale row.
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO remote_links (local_id, backend_name, remote_id, linked_at)
		VALUES (?, ?, ?, ?)
	`, localID, backend, remoteID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("linking %s to %s/%s: %w", localID, backend, remoteID, err)
	}
	return nil
}

// GetRemoteLink returns the remote ID linked to a local entity, or ""
// when no link exists.
func (s *Store) GetRemoteLink(ctx context.Context, localID, backend string) (string, error) {
	var remoteID string
	err := s.db.QueryRowContext(ctx,
		`SELECT remote_id FROM remote_links WHERE local_id = ? AND backend_name = ?`,
		localID, backend).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading remote link for %s: %w", localID, err)
	}
	return remoteID, nil
}

// FindLocalByRemote returns the local ID linked to a remote ID, or ""
// when the remote entity is unknown.
func (s *Store) FindLocalByRemote(ctx context.Context, backend, remoteID string) (string, error) {
	var localID string
	err := s.db.QueryRowContext(ctx,
		`SELECT local_id FROM remote_links WHERE backend_name = ? AND remote_id = ?`,
		backend, remoteID).Scan(&localID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving remote %s/%s: %w", backend, remoteID, err)
	}
	return localID, nil
}

// ListRemoteLinks returns all local -> remote mappings for a backend.
func (s *Store) ListRemoteLinks(ctx context.Context, backend string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT local_id, remote_id FROM remote_links WHERE backend_name = ?`, backend)
	if err != nil {
		return nil, fmt.Errorf("listing remote links for %s: %w", backend, err)
	}
	defer rows.Close()

	links := make(map[string]string)
	for rows.Next() {
		var localID, remoteID string
		if err := rows.Scan(&localID, &remoteID); err != nil {
			return nil, fmt.Errorf("scanning remote link: %w", err)
		}
		links[localID] = remoteID
	}
	return links, rows.Err()
}

// DeleteRemoteLink unlinks a local entity from a backend. Missing
// links are a no-op.
func (s *Store) DeleteRemoteLink(ctx context.Context, localID, backend string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM remote_links WHERE local_id = ? AND backend_name = ?`, localID, backend)
	if err != nil {
		return fmt.Errorf("unlinking %s from %s: %w", localID, backend, err)
	}
	return nil
}

// SetSyncState upserts a sync bookkeeping key.
func (s *Store) SetSyncState(ctx context.Context, key, value string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.SetSyncState(ctx, key, value)
	})
}

func (t *Tx) SetSyncState(ctx context.Context, key, value string) error {
	return setSyncState(ctx, t.tx, key, value)
}

func setSyncState(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("setting sync state %s: %w", key, err)
	}
	return nil
}

// GetSyncState returns the value for a sync bookkeeping key, or ""
// when the key was never set.
func (s *Store) GetSyncState(ctx context.Context, key string) (string, error) {
	return getSyncState(ctx, s.db, key)
}

func (t *Tx) GetSyncState(ctx context.Context, key string) (string, error) {
	return getSyncState(ctx, t.tx, key)
}

func getSyncState(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading sync state %s: %w", key, err)
	}
	return value, nil
}

// UpsertFileSyncState records the content hash a file had when it was
// last synced.
func (s *Store) UpsertFileSyncState(ctx context.Context, path, contentHash string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.UpsertFileSyncState(ctx, path, contentHash)
	})
}

func (t *Tx) UpsertFileSyncState(ctx context.Context, path, contentHash string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO file_sync_state (path, content_hash, synced_at)
		VALUES (?, ?, ?)
	`, path, contentHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording sync state for %s: %w", path, err)
	}
	return nil
}

// ClearFileSyncState forgets all recorded file hashes, forcing the
// next sync to treat every file as changed.
func (s *Store) ClearFileSyncState(ctx context.Context) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.ClearFileSyncState(ctx)
	})
}

func (t *Tx) ClearFileSyncState(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM file_sync_state`); err != nil {
		return fmt.Errorf("clearing file sync state: %w", err)
	}
	return nil
}

// GetFileSyncState returns the hash recorded for a path, or "" when
// the path was never synced.
func (s *Store) GetFileSyncState(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM file_sync_state WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading sync state for %s: %w", path, err)
	}
	return hash, nil
}

// HasFileChanged reports whether a file's current content differs from
// what was last synced. Never-synced and deleted files both count as
// changed.
func (s *Store) HasFileChanged(ctx context.Context, path string) (bool, error) {
	recorded, err := s.GetFileSyncState(ctx, path)
	if err != nil {
		return false, err
	}
	if recorded == "" {
		return true, nil
	}
	current, err := frontmatter.Hash(path)
	if err != nil {
		return false, err
	}
	return current != recorded, nil
}
