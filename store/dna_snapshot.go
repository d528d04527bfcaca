package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DnaSnapshot is an immutable, versioned DNA profile, optionally linked to
// a parent forming a per-target ancestry DAG.
type DnaSnapshot struct {
	ID        string
	TargetID  string
	Version   string
	DnaJSON   string
	ParentID  string
	IsActive  bool
	CreatedAt int64
}

// CreateDnaSnapshot inserts snap and, when deactivatePriorActive is true,
// atomically deactivates the target's previous active snapshot and points
// target.current_dna_id at the new one. Activation flip and insertion
// succeed or fail together.
func (s *Store) CreateDnaSnapshot(ctx context.Context, snap *DnaSnapshot, deactivatePriorActive bool) error {
	if snap.CreatedAt == 0 {
		snap.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if deactivatePriorActive {
		if _, err := tx.ExecContext(ctx,
			`UPDATE dna_snapshots SET is_active = 0 WHERE target_id = ? AND is_active = 1`,
			snap.TargetID); err != nil {
			return fmt.Errorf("store: deactivate prior dna: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dna_snapshots (id, target_id, version, dna_json, parent_id, is_active, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		snap.ID, snap.TargetID, snap.Version, snap.DnaJSON, nullStr(snap.ParentID), boolInt(snap.IsActive), snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert dna snapshot: %w", err)
	}

	if snap.IsActive {
		if _, err := tx.ExecContext(ctx,
			`UPDATE targets SET current_dna_id = ?, updated_at = ? WHERE id = ?`,
			snap.ID, time.Now().UnixMilli(), snap.TargetID); err != nil {
			return fmt.Errorf("store: update target current_dna_id: %w", err)
		}
	}

	return tx.Commit()
}

// GetActiveDna returns the currently active DNA snapshot for targetId, or
// (nil, nil) if none exists.
func (s *Store) GetActiveDna(ctx context.Context, targetID string) (*DnaSnapshot, error) {
	snap := &DnaSnapshot{}
	var parentID sql.NullString
	var isActive int

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, target_id, version, dna_json, parent_id, is_active, created_at
		FROM dna_snapshots WHERE target_id = ? AND is_active = 1`, targetID).Scan(
		&snap.ID, &snap.TargetID, &snap.Version, &snap.DnaJSON, &parentID, &isActive, &snap.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.ParentID = parentID.String
	snap.IsActive = isActive != 0
	return snap, nil
}

// GetDnaSnapshot retrieves a snapshot by ID, or (nil, nil) if not found.
func (s *Store) GetDnaSnapshot(ctx context.Context, id string) (*DnaSnapshot, error) {
	snap := &DnaSnapshot{}
	var parentID sql.NullString
	var isActive int

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, target_id, version, dna_json, parent_id, is_active, created_at
		FROM dna_snapshots WHERE id = ?`, id).Scan(
		&snap.ID, &snap.TargetID, &snap.Version, &snap.DnaJSON, &parentID, &isActive, &snap.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.ParentID = parentID.String
	snap.IsActive = isActive != 0
	return snap, nil
}

// GetDnaLineage returns every snapshot for targetId ordered oldest first,
// forming the ancestry DAG (forest, typically a single chain per target).
func (s *Store) GetDnaLineage(ctx context.Context, targetID string) ([]*DnaSnapshot, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, target_id, version, dna_json, parent_id, is_active, created_at
		FROM dna_snapshots WHERE target_id = ? ORDER BY created_at ASC`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DnaSnapshot
	for rows.Next() {
		snap := &DnaSnapshot{}
		var parentID sql.NullString
		var isActive int
		if err := rows.Scan(
			&snap.ID, &snap.TargetID, &snap.Version, &snap.DnaJSON, &parentID, &isActive, &snap.CreatedAt,
		); err != nil {
			return nil, err
		}
		snap.ParentID = parentID.String
		snap.IsActive = isActive != 0
		out = append(out, snap)
	}
	return out, rows.Err()
}
