package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RequestLog is one row per outbound request. Response fields are filled
// in exactly once, by UpdateRequestLogResponse, when the response completes.
type RequestLog struct {
	ID                  string
	TargetID            string
	DnaID               string
	Method              string
	URL                 string
	RequestHeaders      string
	BodyPreview         string
	ResponseStatus      *int
	ResponseHeaders     string
	ResponseBodyPreview string
	WasBlocked          bool
	BlockReason         string
	ChallengeDetected   bool
	ChallengeType       string
	TimingMs            *int64
	CreatedAt           int64
	RespondedAt         *int64
}

// AppendRequestLog inserts a new request log row before the response is
// known.
func (s *Store) AppendRequestLog(ctx context.Context, r *RequestLog) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO request_logs (id, target_id, dna_id, method, url, request_headers, body_preview, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.ID, r.TargetID, nullStr(r.DnaID), r.Method, r.URL, r.RequestHeaders, r.BodyPreview, r.CreatedAt,
	)
	return err
}

// ResponseUpdate carries the fields UpdateRequestLogResponse fills in. A
// RequestLog allows exactly one post-creation update for response fields.
type ResponseUpdate struct {
	ResponseStatus      int
	ResponseHeaders     string
	ResponseBodyPreview string
	WasBlocked          bool
	BlockReason         string
	ChallengeDetected   bool
	ChallengeType       string
	TimingMs            int64
}

// UpdateRequestLogResponse fills in the response fields of an existing
// RequestLog row.
func (s *Store) UpdateRequestLogResponse(ctx context.Context, id string, u ResponseUpdate) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		UPDATE request_logs SET
			response_status = ?, response_headers = ?, response_body_preview = ?,
			was_blocked = ?, block_reason = ?, challenge_detected = ?, challenge_type = ?,
			timing_ms = ?, responded_at = ?
		WHERE id = ? AND responded_at IS NULL`,
		u.ResponseStatus, u.ResponseHeaders, u.ResponseBodyPreview,
		boolInt(u.WasBlocked), nullStr(u.BlockReason), boolInt(u.ChallengeDetected), nullStr(u.ChallengeType),
		u.TimingMs, now, id,
	)
	return err
}

// RecentRequestLogs returns the most recent n request logs for a target,
// newest first.
func (s *Store) RecentRequestLogs(ctx context.Context, targetID string, n int) ([]*RequestLog, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, target_id, dna_id, method, url, request_headers, body_preview,
		       response_status, response_headers, response_body_preview,
		       was_blocked, block_reason, challenge_detected, challenge_type,
		       timing_ms, created_at, responded_at
		FROM request_logs WHERE target_id = ? ORDER BY created_at DESC LIMIT ?`, targetID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RequestLog
	for rows.Next() {
		r := &RequestLog{}
		var dnaID, responseHeaders, responseBodyPreview, blockReason, challengeType sql.NullString
		var responseStatus, timingMs, respondedAt sql.NullInt64
		var wasBlocked, challengeDetected int

		if err := rows.Scan(
			&r.ID, &r.TargetID, &dnaID, &r.Method, &r.URL, &r.RequestHeaders, &r.BodyPreview,
			&responseStatus, &responseHeaders, &responseBodyPreview,
			&wasBlocked, &blockReason, &challengeDetected, &challengeType,
			&timingMs, &r.CreatedAt, &respondedAt,
		); err != nil {
			return nil, err
		}

		r.DnaID = dnaID.String
		r.ResponseHeaders = responseHeaders.String
		r.ResponseBodyPreview = responseBodyPreview.String
		r.BlockReason = blockReason.String
		r.ChallengeType = challengeType.String
		r.WasBlocked = wasBlocked != 0
		r.ChallengeDetected = challengeDetected != 0
		if responseStatus.Valid {
			v := int(responseStatus.Int64)
			r.ResponseStatus = &v
		}
		if timingMs.Valid {
			r.TimingMs = &timingMs.Int64
		}
		if respondedAt.Valid {
			r.RespondedAt = &respondedAt.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRequestLog retrieves a single request log by ID, or (nil, nil) if not found.
func (s *Store) GetRequestLog(ctx context.Context, id string) (*RequestLog, error) {
	r := &RequestLog{}
	var dnaID, responseHeaders, responseBodyPreview, blockReason, challengeType sql.NullString
	var responseStatus, timingMs, respondedAt sql.NullInt64
	var wasBlocked, challengeDetected int

	qErr := s.DB.QueryRowContext(ctx, `
		SELECT id, target_id, dna_id, method, url, request_headers, body_preview,
		       response_status, response_headers, response_body_preview,
		       was_blocked, block_reason, challenge_detected, challenge_type,
		       timing_ms, created_at, responded_at
		FROM request_logs WHERE id = ?`, id).Scan(
		&r.ID, &r.TargetID, &dnaID, &r.Method, &r.URL, &r.RequestHeaders, &r.BodyPreview,
		&responseStatus, &responseHeaders, &responseBodyPreview,
		&wasBlocked, &blockReason, &challengeDetected, &challengeType,
		&timingMs, &r.CreatedAt, &respondedAt,
	)
	if errors.Is(qErr, sql.ErrNoRows) {
		return nil, nil
	}
	if qErr != nil {
		return nil, qErr
	}

	r.DnaID = dnaID.String
	r.ResponseHeaders = responseHeaders.String
	r.ResponseBodyPreview = responseBodyPreview.String
	r.BlockReason = blockReason.String
	r.ChallengeType = challengeType.String
	r.WasBlocked = wasBlocked != 0
	r.ChallengeDetected = challengeDetected != 0
	if responseStatus.Valid {
		v := int(responseStatus.Int64)
		r.ResponseStatus = &v
	}
	if timingMs.Valid {
		r.TimingMs = &timingMs.Int64
	}
	if respondedAt.Valid {
		r.RespondedAt = &respondedAt.Int64
	}
	return r, nil
}
