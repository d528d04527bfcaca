package store

import (
	"context"
	"database/sql"
	"time"
)

// Learning event type enum values.
const (
	EventBirth      = "birth"
	EventMutation   = "mutation"
	EventMilestone  = "milestone"
	EventChallenge  = "challenge"
	EventDiscovery  = "discovery"
	EventGreenLight = "green_light"
	EventFailure    = "failure"
)

// LearningEvent is an append-only audit entry.
type LearningEvent struct {
	ID              string
	TargetID        string
	DnaVersionID    string
	EventType       string
	Title           string
	Description     string
	McpInsight      string
	McpConfidence   *float64
	McpModel        string
	DnaChanges      string
	BeforeState     string
	AfterState      string
	TrustImpact     int
	ChallengeType   string
	ChallengeSolved *bool
	CreatedAt       int64
}

// AppendLearningEvent inserts a new, immutable learning event row.
func (s *Store) AppendLearningEvent(ctx context.Context, e *LearningEvent) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}

	var confidence sql.NullFloat64
	if e.McpConfidence != nil {
		confidence = sql.NullFloat64{Float64: *e.McpConfidence, Valid: true}
	}
	var solved sql.NullInt64
	if e.ChallengeSolved != nil {
		solved = sql.NullInt64{Int64: int64(boolInt(*e.ChallengeSolved)), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO learning_events
			(id, target_id, dna_version_id, event_type, title, description,
			 mcp_insight, mcp_confidence, mcp_model, dna_changes, before_state,
			 after_state, trust_impact, challenge_type, challenge_solved, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.TargetID, nullStr(e.DnaVersionID), e.EventType, e.Title, e.Description,
		nullStr(e.McpInsight), confidence, nullStr(e.McpModel), nullStr(e.DnaChanges), nullStr(e.BeforeState),
		nullStr(e.AfterState), e.TrustImpact, nullStr(e.ChallengeType), solved, e.CreatedAt,
	)
	return err
}

// RecentLearningEvents returns the most recent n learning events for a target,
// newest first.
func (s *Store) RecentLearningEvents(ctx context.Context, targetID string, n int) ([]*LearningEvent, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, target_id, dna_version_id, event_type, title, description,
		       mcp_insight, mcp_confidence, mcp_model, dna_changes, before_state,
		       after_state, trust_impact, challenge_type, challenge_solved, created_at
		FROM learning_events WHERE target_id = ? ORDER BY created_at DESC LIMIT ?`, targetID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*LearningEvent
	for rows.Next() {
		e := &LearningEvent{}
		var dnaVersionID, mcpInsight, mcpModel, dnaChanges, beforeState, afterState, challengeType sql.NullString
		var confidence sql.NullFloat64
		var solved sql.NullInt64

		if err := rows.Scan(
			&e.ID, &e.TargetID, &dnaVersionID, &e.EventType, &e.Title, &e.Description,
			&mcpInsight, &confidence, &mcpModel, &dnaChanges, &beforeState,
			&afterState, &e.TrustImpact, &challengeType, &solved, &e.CreatedAt,
		); err != nil {
			return nil, err
		}

		e.DnaVersionID = dnaVersionID.String
		e.McpInsight = mcpInsight.String
		e.McpModel = mcpModel.String
		e.DnaChanges = dnaChanges.String
		e.BeforeState = beforeState.String
		e.AfterState = afterState.String
		e.ChallengeType = challengeType.String
		if confidence.Valid {
			e.McpConfidence = &confidence.Float64
		}
		if solved.Valid {
			b := solved.Int64 != 0
			e.ChallengeSolved = &b
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
