package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Target status enum values.
const (
	StatusDiscovering = "discovering"
	StatusLearning    = "learning"
	StatusEstablished = "established"
	StatusPaused      = "paused"
	StatusFailed      = "failed"
)

// Green-light status enum values.
const (
	GreenLightRed         = "RED"
	GreenLightYellow      = "YELLOW"
	GreenLightGreen       = "GREEN"
	GreenLightEstablished = "ESTABLISHED"
)

// Target is the unit of adaptation.
type Target struct {
	ID               string
	URL              string
	Type             string
	Status           string
	GreenLightStatus string
	TrustScore       int
	EstablishedAt    *int64
	MaintainedFor    int
	IsAuthenticated  bool
	AuthEndpoint     string
	AuthUsername     string
	SessionCookie    string
	CurrentDnaID     string
	LastSeen         *int64
	CreatedAt        int64
	UpdatedAt        int64
}

// CreateTarget inserts a new target row. Created via operator action; the
// Store does not itself enforce a uniqueness constraint on URL — that is a
// policy decision left to the caller.
func (s *Store) CreateTarget(ctx context.Context, t *Target) error {
	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Type == "" {
		t.Type = "web"
	}
	if t.Status == "" {
		t.Status = StatusDiscovering
	}
	if t.GreenLightStatus == "" {
		t.GreenLightStatus = GreenLightRed
	}

	sealedCookie, err := s.sealCookie(t.SessionCookie)
	if err != nil {
		return fmt.Errorf("store: seal session cookie: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO targets
			(id, url, type, status, green_light_status, trust_score,
			 established_at, maintained_for, is_authenticated, auth_endpoint,
			 auth_username, session_cookie, current_dna_id, last_seen,
			 created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.URL, t.Type, t.Status, t.GreenLightStatus, t.TrustScore,
		nullInt64(t.EstablishedAt), t.MaintainedFor, boolInt(t.IsAuthenticated), nullStr(t.AuthEndpoint),
		nullStr(t.AuthUsername), nullStr(sealedCookie), nullStr(t.CurrentDnaID), nullInt64(t.LastSeen),
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTarget retrieves a target by ID. Returns (nil, nil) if not found.
func (s *Store) GetTarget(ctx context.Context, id string) (*Target, error) {
	t := &Target{}
	var establishedAt, lastSeen sql.NullInt64
	var authEndpoint, authUsername, sessionCookie, currentDnaID sql.NullString
	var isAuth int

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, url, type, status, green_light_status, trust_score,
		       established_at, maintained_for, is_authenticated, auth_endpoint,
		       auth_username, session_cookie, current_dna_id, last_seen,
		       created_at, updated_at
		FROM targets WHERE id = ?`, id).Scan(
		&t.ID, &t.URL, &t.Type, &t.Status, &t.GreenLightStatus, &t.TrustScore,
		&establishedAt, &t.MaintainedFor, &isAuth, &authEndpoint,
		&authUsername, &sessionCookie, &currentDnaID, &lastSeen,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if establishedAt.Valid {
		t.EstablishedAt = &establishedAt.Int64
	}
	if lastSeen.Valid {
		t.LastSeen = &lastSeen.Int64
	}
	t.IsAuthenticated = isAuth != 0
	t.AuthEndpoint = authEndpoint.String
	t.AuthUsername = authUsername.String
	t.CurrentDnaID = currentDnaID.String

	opened, err := s.openCookie(sessionCookie.String)
	if err != nil {
		return nil, fmt.Errorf("store: open session cookie: %w", err)
	}
	t.SessionCookie = opened
	return t, nil
}

// TargetPatch is a partial update to a target row. Only non-nil fields are
// applied; this is the shape UpdateTargetFields accepts.
type TargetPatch struct {
	Status           *string
	GreenLightStatus *string
	TrustScore       *int
	EstablishedAt    *int64
	ClearEstablished bool
	MaintainedFor    *int
	CurrentDnaID     *string
	LastSeen         *int64
	IsAuthenticated  *bool
	SessionCookie    *string
}

// UpdateTargetFields applies patch to the target row identified by id.
func (s *Store) UpdateTargetFields(ctx context.Context, id string, patch TargetPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UnixMilli()}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.GreenLightStatus != nil {
		sets = append(sets, "green_light_status = ?")
		args = append(args, *patch.GreenLightStatus)
	}
	if patch.TrustScore != nil {
		sets = append(sets, "trust_score = ?")
		args = append(args, *patch.TrustScore)
	}
	if patch.ClearEstablished {
		sets = append(sets, "established_at = NULL")
	} else if patch.EstablishedAt != nil {
		sets = append(sets, "established_at = ?")
		args = append(args, *patch.EstablishedAt)
	}
	if patch.MaintainedFor != nil {
		sets = append(sets, "maintained_for = ?")
		args = append(args, *patch.MaintainedFor)
	}
	if patch.CurrentDnaID != nil {
		sets = append(sets, "current_dna_id = ?")
		args = append(args, *patch.CurrentDnaID)
	}
	if patch.LastSeen != nil {
		sets = append(sets, "last_seen = ?")
		args = append(args, *patch.LastSeen)
	}
	if patch.IsAuthenticated != nil {
		sets = append(sets, "is_authenticated = ?")
		args = append(args, boolInt(*patch.IsAuthenticated))
	}
	if patch.SessionCookie != nil {
		sealed, err := s.sealCookie(*patch.SessionCookie)
		if err != nil {
			return fmt.Errorf("store: seal session cookie: %w", err)
		}
		sets = append(sets, "session_cookie = ?")
		args = append(args, sealed)
	}

	query := "UPDATE targets SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	args = append(args, id)

	_, err := s.DB.ExecContext(ctx, query, args...)
	return err
}

// DeleteTarget removes a target and cascades to its dependent rows.
// Destruction happens only on explicit operator request, per the data model.
func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	return err
}
