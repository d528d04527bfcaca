package store

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// GreenLightState is a history row capturing the outcome of a Scorer
// computation.
type GreenLightState struct {
	ID            string
	TargetID      string
	Status        string
	TrustScore    int
	SignalsJSON   string
	EstablishedAt *int64
	MaintainedFor int
	LostAt        *int64
	ReasonLost    string
	CreatedAt     int64
}

// PutGreenLightState appends a new green-light state row and refreshes the
// in-memory cache for its target.
func (s *Store) PutGreenLightState(ctx context.Context, g *GreenLightState) error {
	if g.CreatedAt == 0 {
		g.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO green_light_states
			(id, target_id, status, trust_score, signals_json, established_at,
			 maintained_for, lost_at, reason_lost, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		g.ID, g.TargetID, g.Status, g.TrustScore, g.SignalsJSON, nullInt64(g.EstablishedAt),
		g.MaintainedFor, nullInt64(g.LostAt), nullStr(g.ReasonLost), g.CreatedAt,
	)
	if err != nil {
		return err
	}
	s.gls.put(g.TargetID, g)
	return nil
}

// GetCachedGreenLightState returns the most recent GreenLightState for a
// target. It is served from a short-lived in-memory cache (TTL ~30s) when
// fresh; this is a cache, never authoritative — callers needing the
// authoritative value should query green_light_states directly.
func (s *Store) GetCachedGreenLightState(ctx context.Context, targetID string) (*GreenLightState, error) {
	if g, ok := s.gls.get(targetID); ok {
		return g, nil
	}

	g := &GreenLightState{}
	var establishedAt, lostAt sql.NullInt64
	var reasonLost sql.NullString

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, target_id, status, trust_score, signals_json, established_at,
		       maintained_for, lost_at, reason_lost, created_at
		FROM green_light_states WHERE target_id = ? ORDER BY created_at DESC LIMIT 1`, targetID).Scan(
		&g.ID, &g.TargetID, &g.Status, &g.TrustScore, &g.SignalsJSON, &establishedAt,
		&g.MaintainedFor, &lostAt, &reasonLost, &g.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if establishedAt.Valid {
		g.EstablishedAt = &establishedAt.Int64
	}
	if lostAt.Valid {
		g.LostAt = &lostAt.Int64
	}
	g.ReasonLost = reasonLost.String

	s.gls.put(targetID, g)
	return g, nil
}

// glsCacheTTL is the freshness window for the in-memory GreenLightState
// cache. Typical TTL per the Store contract is ~30s.
const glsCacheTTL = 30 * time.Second

type glsCacheEntry struct {
	state     *GreenLightState
	expiresAt time.Time
}

// glsCache is a per-target, in-process cache of the latest GreenLightState.
// It is never authoritative; invalidation happens implicitly by TTL.
type glsCache struct {
	mu      sync.Mutex
	entries map[string]glsCacheEntry
}

func newGLSCache() *glsCache {
	return &glsCache{entries: make(map[string]glsCacheEntry)}
}

func (c *glsCache) get(targetID string) (*GreenLightState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[targetID]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.state, true
}

func (c *glsCache) put(targetID string, g *GreenLightState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[targetID] = glsCacheEntry{state: g, expiresAt: time.Now().Add(glsCacheTTL)}
}
